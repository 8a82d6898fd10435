package shm

import "bytes"

// Field is a fixed-capacity, NUL-terminated byte window over a segment.
//
// A Field does no locking. Exactly one process may use it at a time and the
// handshake semaphores decide which one.
type Field struct {
	name string
	data []byte
}

// NewField wraps buf as a field. It is used for heap backed fields in tests
// and by Layout.Carve for mapped ones.
func NewField(name string, buf []byte) *Field {
	return &Field{name: name, data: buf}
}

// Name returns the field name from the layout.
func (f *Field) Name() string {
	return f.name
}

// Cap returns the field capacity including the terminator byte.
func (f *Field) Cap() int {
	return len(f.data)
}

// Store copies p into the field followed by a NUL terminator. At most Cap()-1
// bytes fit; the rest is dropped and truncated is true.
func (f *Field) Store(p []byte) (n int, truncated bool) {
	if len(f.data) == 0 {
		return 0, len(p) > 0
	}
	max := len(f.data) - 1
	if len(p) > max {
		p = p[:max]
		truncated = true
	}
	n = copy(f.data, p)
	f.data[n] = 0
	return n, truncated
}

// Load returns a copy of the field contents up to the first NUL, or the whole
// field when it holds no terminator.
func (f *Field) Load() []byte {
	end := bytes.IndexByte(f.data, 0)
	if end < 0 {
		end = len(f.data)
	}
	out := make([]byte, end)
	copy(out, f.data[:end])
	return out
}

// Bytes exposes the raw window. Writers other than Store must leave a NUL
// terminator in place before handing the field over.
func (f *Field) Bytes() []byte {
	return f.data
}
