/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package transport

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/srediag/sumipc/pkg/sem"
	"github.com/srediag/sumipc/pkg/shm"
)

// Channel is one direction of the rendezvous: the buffer the sender fills
// and the semaphore it posts once the buffer is complete.
type Channel struct {
	Field *shm.Field
	Ready *sem.Semaphore
}

func (c Channel) valid() bool {
	return c.Field != nil && c.Ready != nil
}

// Shm is the shared memory transport. It is not safe for concurrent use: the
// protocol has exactly one sender per direction and strict alternation.
type Shm struct {
	role    Role
	send    Channel
	recv    Channel
	segment *shm.Segment
	sems    []*sem.Semaphore
	inst    instruments
	closed  atomic.Bool
}

// NewShm builds a transport over already opened objects. The transport owns
// seg and both semaphores and releases them on Close; it never unlinks them.
func NewShm(role Role, seg *shm.Segment, requestReady, responseReady *sem.Semaphore, cfg Config) (*Shm, error) {
	if seg == nil || requestReady == nil || responseReady == nil {
		return nil, errors.New("transport: segment and semaphores are required")
	}
	request := Channel{Field: seg.Inbound(), Ready: requestReady}
	response := Channel{Field: seg.Outbound(), Ready: responseReady}
	if !request.valid() || !response.valid() {
		return nil, fmt.Errorf("transport: segment %s lacks the %s/%s fields", seg.Name(), shm.FieldInbound, shm.FieldOutbound)
	}
	t := &Shm{
		role:    role,
		segment: seg,
		sems:    []*sem.Semaphore{requestReady, responseReady},
		inst:    newInstruments("shm", role, cfg),
	}
	switch role {
	case RoleController:
		t.send, t.recv = request, response
	case RoleWorker:
		t.send, t.recv = response, request
	default:
		return nil, fmt.Errorf("transport: unknown role %q", role)
	}
	return t, nil
}

// OpenWorker opens the objects a controller created and returns the worker
// end. Anything opened before a failure is released again.
func OpenWorker(ctx context.Context, segName, requestName, responseName string, cfg Config) (*Shm, error) {
	seg, err := shm.Open(ctx, shm.Options{Name: segName})
	if err != nil {
		return nil, err
	}
	req, err := sem.Open(requestName)
	if err != nil {
		_ = seg.Close()
		return nil, err
	}
	resp, err := sem.Open(responseName)
	if err != nil {
		_ = req.Close()
		_ = seg.Close()
		return nil, err
	}
	return NewShm(RoleWorker, seg, req, resp, cfg)
}

// Role reports which end t is.
func (t *Shm) Role() Role {
	return t.role
}

// MaxLine reports the capacity of the outgoing buffer, terminator included.
func (t *Shm) MaxLine() int {
	return t.send.Field.Cap()
}

// SendLine stores line in the outgoing buffer and posts its semaphore. A
// line longer than MaxLine()-1 is cut. The post publishes the buffer: the
// peer only reads it after its wait returns.
func (t *Shm) SendLine(ctx context.Context, line []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}
	_, span := t.inst.tracer.Start(ctx, "sumipc.send",
		trace.WithAttributes(attribute.String("role", string(t.role))))
	defer span.End()

	n, truncated := t.send.Field.Store(line)
	if truncated {
		internalLogger.Debugf("%s line cut from %d to %d bytes", t.role, len(line), n)
	}
	span.SetAttributes(attribute.Int("bytes", n), attribute.Bool("truncated", truncated))
	if err := t.send.Ready.Post(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "post")
		return fmt.Errorf("transport: %s send: %w", t.role, err)
	}
	t.inst.lines.Add(ctx, 1, t.inst.sent)
	return nil
}

// RecvLine blocks until the peer posts, then returns a copy of the incoming
// buffer up to its terminator. The wait cannot be cancelled.
func (t *Shm) RecvLine(ctx context.Context) ([]byte, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}
	_, span := t.inst.tracer.Start(ctx, "sumipc.recv",
		trace.WithAttributes(attribute.String("role", string(t.role))))
	defer span.End()

	if err := t.recv.Ready.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "wait")
		return nil, fmt.Errorf("transport: %s recv: %w", t.role, err)
	}
	line := t.recv.Field.Load()
	span.SetAttributes(attribute.Int("bytes", len(line)))
	t.inst.lines.Add(ctx, 1, t.inst.recvd)
	return line, nil
}

// Close unmaps the segment and closes both semaphores. It is idempotent.
func (t *Shm) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	for _, s := range t.sems {
		errs = append(errs, s.Close())
	}
	errs = append(errs, t.segment.Close())
	return errors.Join(errs...)
}
