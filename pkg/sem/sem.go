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

// Package sem implements named counting semaphores shared between processes.
//
// A semaphore is a small shared memory object holding a 32-bit count and a
// waiter count. Wait sleeps on a shared futex over the count; Post increments
// the count and wakes one sleeper. Post is a sequentially consistent atomic
// read-modify-write, so every write a process made before Post is visible to
// the process whose Wait consumed that post.
//
// The object lives at /dev/shm/sem.<name>, the same place glibc keeps named
// semaphores, but the layout is not glibc's: use this package on both sides.
package sem

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	internalshm "github.com/srediag/sumipc/internal/shm"
)

const (
	objectSize    = 64
	valueOffset   = 0
	waitersOffset = 4

	// MaxValue is the largest count a semaphore can hold.
	MaxValue = math.MaxInt32
)

var (
	// ErrClosed is returned by operations on a closed Semaphore.
	ErrClosed = errors.New("sem: semaphore closed")
	// ErrOverflow is returned by Post when the count is already MaxValue.
	ErrOverflow = errors.New("sem: value overflow")
	// ErrUnsupported is returned on platforms without shared futexes.
	ErrUnsupported = internalshm.ErrUnsupported
)

// Semaphore is one process's handle on a named counting semaphore.
type Semaphore struct {
	name    string
	region  *internalshm.MappedRegion
	value   *uint32
	waiters *uint32
}

// Create makes a new semaphore with the given initial count. It fails if the
// name already exists.
func Create(name string, initial uint32) (*Semaphore, error) {
	if initial > MaxValue {
		return nil, fmt.Errorf("sem: initial value %d exceeds %d", initial, MaxValue)
	}
	s, err := mapSemaphore(name, true)
	if err != nil {
		return nil, err
	}
	atomic.StoreUint32(s.value, initial)
	return s, nil
}

// Open attaches to an existing semaphore. It never creates one.
func Open(name string) (*Semaphore, error) {
	return mapSemaphore(name, false)
}

func mapSemaphore(name string, create bool) (*Semaphore, error) {
	if err := internalshm.ValidName(name); err != nil {
		return nil, err
	}
	region, err := internalshm.MapRegion(context.Background(), internalshm.MapOptions{
		Name:   internalshm.SemaphoreObject(name),
		Size:   objectSize,
		Create: create,
	})
	if err != nil {
		return nil, fmt.Errorf("sem: open %s: %w", name, err)
	}
	return &Semaphore{
		name:    name,
		region:  region,
		value:   internalshm.Uint32At(region.Addr, valueOffset),
		waiters: internalshm.Uint32At(region.Addr, waitersOffset),
	}, nil
}

// Name returns the semaphore name.
func (s *Semaphore) Name() string {
	return s.name
}

// Post increments the count and wakes one waiter.
func (s *Semaphore) Post() error {
	if s.value == nil {
		return ErrClosed
	}
	for {
		v := atomic.LoadUint32(s.value)
		if v >= MaxValue {
			return fmt.Errorf("%w: %s", ErrOverflow, s.name)
		}
		if atomic.CompareAndSwapUint32(s.value, v, v+1) {
			break
		}
	}
	// A waiter that registers after this load sees the new count in the
	// kernel's futex compare and does not sleep.
	if atomic.LoadUint32(s.waiters) > 0 {
		if _, err := internalshm.FutexWake(s.value, 1); err != nil {
			return fmt.Errorf("sem: post %s: %w", s.name, err)
		}
	}
	return nil
}

// Wait decrements the count, sleeping while it is zero. It blocks with no
// timeout: if the peer never posts, Wait never returns. Interrupted sleeps are
// retried; any other failure is returned and the handshake is unusable.
func (s *Semaphore) Wait() error {
	if s.value == nil {
		return ErrClosed
	}
	for {
		if s.TryWait() {
			return nil
		}
		atomic.AddUint32(s.waiters, 1)
		err := internalshm.FutexWait(s.value, 0)
		atomic.AddUint32(s.waiters, ^uint32(0))
		if err != nil {
			return fmt.Errorf("sem: wait %s: %w", s.name, err)
		}
	}
}

// TryWait decrements the count if it is positive and reports whether it did.
func (s *Semaphore) TryWait() bool {
	if s.value == nil {
		return false
	}
	for {
		v := atomic.LoadUint32(s.value)
		if v == 0 {
			return false
		}
		if atomic.CompareAndSwapUint32(s.value, v, v-1) {
			return true
		}
	}
}

// Value returns a snapshot of the count.
func (s *Semaphore) Value() uint32 {
	if s.value == nil {
		return 0
	}
	return atomic.LoadUint32(s.value)
}

// Waiters returns a snapshot of the number of processes sleeping in Wait.
func (s *Semaphore) Waiters() uint32 {
	if s.waiters == nil {
		return 0
	}
	return atomic.LoadUint32(s.waiters)
}

// Close releases this process's handle. The semaphore stays in the system
// until Unlink.
func (s *Semaphore) Close() error {
	if s == nil || s.region == nil {
		return nil
	}
	s.value, s.waiters = nil, nil
	err := internalshm.UnmapRegion(context.Background(), s.region)
	s.region = nil
	return err
}

// Unlink removes the semaphore name from the system. Handles that are still
// open keep working.
func Unlink(name string) error {
	if err := internalshm.ValidName(name); err != nil {
		return err
	}
	return internalshm.UnlinkRegion(internalshm.SemaphoreObject(name))
}
