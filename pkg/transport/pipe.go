package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Pipe frames lines over a byte stream pair, one line per '\n'. Lines are
// bounded like the shared memory buffers: longer input is cut to
// MaxLine-1 bytes and the remainder of the line is discarded.
type Pipe struct {
	role   Role
	r      *bufio.Reader
	w      io.WriteCloser
	inst   instruments
	closed atomic.Bool
}

// NewPipe returns a transport reading lines from r and writing them to w.
// Close closes w so the peer sees end of stream.
func NewPipe(role Role, r io.Reader, w io.WriteCloser, cfg Config) *Pipe {
	return &Pipe{
		role: role,
		r:    bufio.NewReaderSize(r, MaxLine),
		w:    w,
		inst: newInstruments("pipe", role, cfg),
	}
}

// MaxLine reports the per-line capacity, terminator included.
func (t *Pipe) MaxLine() int {
	return MaxLine
}

// SendLine writes line, adding the '\n' framing when it is missing. An empty
// line is the termination sentinel.
func (t *Pipe) SendLine(ctx context.Context, line []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}
	_, span := t.inst.tracer.Start(ctx, "sumipc.send",
		trace.WithAttributes(attribute.String("role", string(t.role))))
	defer span.End()

	if len(line) > MaxLine-1 {
		internalLogger.Debugf("%s line cut from %d to %d bytes", t.role, len(line), MaxLine-1)
		line = line[:MaxLine-1]
	}
	frame := make([]byte, 0, len(line)+1)
	frame = append(frame, line...)
	if len(frame) == 0 || frame[len(frame)-1] != '\n' {
		frame = append(frame, '\n')
	}
	if _, err := t.w.Write(frame); err != nil {
		span.RecordError(err)
		return fmt.Errorf("transport: %s send: %w", t.role, err)
	}
	t.inst.lines.Add(ctx, 1, t.inst.sent)
	return nil
}

// RecvLine returns the next line including its '\n'. A final line without a
// newline is returned as is; after it RecvLine returns io.EOF.
func (t *Pipe) RecvLine(ctx context.Context) ([]byte, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}
	_, span := t.inst.tracer.Start(ctx, "sumipc.recv",
		trace.WithAttributes(attribute.String("role", string(t.role))))
	defer span.End()

	chunk, err := t.r.ReadSlice('\n')
	line := append([]byte(nil), chunk...)
	if errors.Is(err, bufio.ErrBufferFull) {
		line = line[:MaxLine-1]
		for errors.Is(err, bufio.ErrBufferFull) {
			_, err = t.r.ReadSlice('\n')
		}
		internalLogger.Debugf("%s received line cut to %d bytes", t.role, len(line))
		if errors.Is(err, io.EOF) {
			err = nil
		}
	}
	switch {
	case errors.Is(err, io.EOF) && len(line) == 0:
		return nil, io.EOF
	case err != nil && !errors.Is(err, io.EOF):
		span.RecordError(err)
		return nil, fmt.Errorf("transport: %s recv: %w", t.role, err)
	}
	t.inst.lines.Add(ctx, 1, t.inst.recvd)
	return line, nil
}

// Close closes the writing side. It is idempotent.
func (t *Pipe) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	return t.w.Close()
}
