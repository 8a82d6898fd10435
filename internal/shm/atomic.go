package shm

import (
	"fmt"
	"unsafe"
)

// Uint32At returns a pointer to the 32-bit word at byte offset off of a
// mapping. The word must only be accessed through sync/atomic since the other
// process writes it concurrently. It panics if the word is out of bounds or
// misaligned.
func Uint32At(mem []byte, off int) *uint32 {
	if off < 0 || off+4 > len(mem) {
		panic(fmt.Sprintf("shm: word offset %d out of range [0,%d)", off, len(mem)))
	}
	p := unsafe.Pointer(&mem[off])
	if uintptr(p)%4 != 0 {
		panic(fmt.Sprintf("shm: word offset %d is not 4-byte aligned", off))
	}
	return (*uint32)(p)
}
