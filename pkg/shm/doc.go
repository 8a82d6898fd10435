// Package shm provides the fixed-layout shared memory segment exchanged by the
// controller and the worker.
//
// A segment is a named POSIX shared memory object carved into fixed-capacity
// fields. The default layout has two fields, inbound (controller to worker)
// and outbound (worker to controller), of 2048 bytes each, and nothing else:
// there is no header and no in-band flag. Which process may touch a field is
// decided entirely by the semaphore handshake in package transport.
//
// Example usage:
//
//	seg, err := shm.Create(ctx, shm.Options{Name: "/sumipc-shm-42"})
//	// ...
//	seg.Inbound().Store([]byte("1 2 3\n"))
//
// Platform-specific helpers are in internal/shm.
package shm
