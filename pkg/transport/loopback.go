package transport

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/Workiva/go-datastructures/queue"
)

const loopbackPoll = 20 * time.Millisecond

// Loopback is one end of an in-process transport. Each direction holds at
// most one pending line, so a sender cannot get ahead of its peer by more
// than one line, like the semaphore handshake.
type Loopback struct {
	role   Role
	send   *queue.RingBuffer
	recv   *queue.RingBuffer
	closed atomic.Bool
}

// NewLoopback returns the controller and worker ends of a fresh channel.
func NewLoopback() (controller, worker *Loopback) {
	// a ring of size 1 has a zero mask and cannot tell full from empty
	requests := queue.NewRingBuffer(2)
	responses := queue.NewRingBuffer(2)
	controller = &Loopback{role: RoleController, send: requests, recv: responses}
	worker = &Loopback{role: RoleWorker, send: responses, recv: requests}
	return controller, worker
}

// MaxLine reports the per-line capacity, terminator included.
func (t *Loopback) MaxLine() int {
	return MaxLine
}

// SendLine queues a copy of line, cut to MaxLine-1 bytes. It blocks while the
// previous line has not been taken.
func (t *Loopback) SendLine(ctx context.Context, line []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}
	if len(line) > MaxLine-1 {
		line = line[:MaxLine-1]
	}
	item := append([]byte{}, line...)
	for {
		// each direction has a single sender, so Len cannot grow under us
		if t.send.Len() == 0 {
			ok, err := t.send.Offer(item)
			if err != nil {
				return ErrClosed
			}
			if ok {
				return nil
			}
		} else if t.send.IsDisposed() {
			return ErrClosed
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

// RecvLine takes the next line. It returns io.EOF once the peer has closed
// its end, and ctx.Err() when ctx is done first.
func (t *Loopback) RecvLine(ctx context.Context) ([]byte, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}
	for {
		item, err := t.recv.Poll(loopbackPoll)
		switch {
		case err == nil:
			return item.([]byte), nil
		case errors.Is(err, queue.ErrDisposed):
			return nil, io.EOF
		case !errors.Is(err, queue.ErrTimeout):
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// Close disposes the outgoing direction. Lines still queued towards the
// peer are dropped and the peer's next RecvLine reports io.EOF.
func (t *Loopback) Close() error {
	if t.closed.CompareAndSwap(false, true) {
		t.send.Dispose()
	}
	return nil
}
