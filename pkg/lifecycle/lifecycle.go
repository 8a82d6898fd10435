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

// Package lifecycle creates the IPC objects of a session, spawns the worker
// process on them and tears everything down once the worker is reaped.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/srediag/sumipc/api"
	"github.com/srediag/sumipc/internal/logging"
	"github.com/srediag/sumipc/pkg/security"
	"github.com/srediag/sumipc/pkg/sem"
	"github.com/srediag/sumipc/pkg/shm"
	"github.com/srediag/sumipc/pkg/transport"
)

// ErrNoWorker is returned when the worker executable cannot be found.
var ErrNoWorker = errors.New("lifecycle: worker executable not found")

var internalLogger = logging.New("lifecycle", nil)

// newNames is replaced in tests to force name collisions.
var newNames = security.NewNames

// Config describes how to start a session.
type Config struct {
	// WorkerPath is the worker executable, resolved through PATH when it has
	// no slash.
	WorkerPath string
	// LogPath is handed to the worker, which appends every response to it.
	LogPath string
	// WorkerArgs are passed before the positional parameters, e.g. flags.
	WorkerArgs []string
	// Stderr receives the worker's diagnostics. Nil means os.Stderr.
	Stderr io.Writer
	// CreateRetries bounds the retries after a name collision.
	CreateRetries uint64
	// RetryInterval is the constant pause between retries.
	RetryInterval time.Duration
	// Transport instruments the controller end.
	Transport transport.Config
}

// DefaultConfig returns the default session config.
func DefaultConfig() Config {
	return Config{
		CreateRetries: 3,
		RetryInterval: 10 * time.Millisecond,
	}
}

// VerifyConfig checks that cfg can start a worker.
func VerifyConfig(cfg Config) error {
	if cfg.WorkerPath == "" {
		return fmt.Errorf("%w: no path configured", ErrNoWorker)
	}
	if _, err := exec.LookPath(cfg.WorkerPath); err != nil {
		return fmt.Errorf("%w: %v", ErrNoWorker, err)
	}
	if cfg.LogPath == "" {
		return errors.New("lifecycle: log path is required")
	}
	return nil
}

// Session is a running worker and the controller end of its transport.
type Session struct {
	Names     security.Names
	Transport api.Transport

	cmd      *exec.Cmd
	owned    bool
	waitOnce sync.Once
	waitErr  error
	code     int
	closed   bool
}

// StartShm creates the segment and both semaphores under fresh names and
// spawns `<worker> --transport shm <log> <segment> <request> <response>`.
// A partially created set of objects is removed again on failure.
func StartShm(ctx context.Context, cfg Config) (*Session, error) {
	if err := VerifyConfig(cfg); err != nil {
		return nil, err
	}
	var (
		names    security.Names
		seg      *shm.Segment
		req, rsp *sem.Semaphore
	)
	create := func() error {
		var err error
		if names, err = newNames(); err != nil {
			return backoff.Permanent(err)
		}
		seg, req, rsp, err = createObjects(ctx, names)
		if errors.Is(err, os.ErrExist) {
			internalLogger.Warnf("name collision, retrying: %v", err)
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(cfg.RetryInterval), cfg.CreateRetries),
		ctx)
	if err := backoff.Retry(create, policy); err != nil {
		return nil, fmt.Errorf("lifecycle: create IPC objects: %w", err)
	}

	t, err := transport.NewShm(transport.RoleController, seg, req, rsp, cfg.Transport)
	if err != nil {
		_ = req.Close()
		_ = rsp.Close()
		_ = seg.Close()
		removeObjects(names)
		return nil, err
	}

	args := append(append([]string{}, cfg.WorkerArgs...), "--transport", "shm",
		cfg.LogPath, names.Segment, names.RequestReady, names.ResponseReady)
	cmd := exec.Command(cfg.WorkerPath, args...)
	cmd.Stderr = stderrOf(cfg)
	s := &Session{Names: names, Transport: t, cmd: cmd, owned: true}
	if err := cmd.Start(); err != nil {
		_ = t.Close()
		removeObjects(names)
		return nil, fmt.Errorf("lifecycle: start worker: %w", err)
	}
	internalLogger.Infof("worker pid %d on %s", cmd.Process.Pid, names.Segment)
	return s, nil
}

// StartPipe spawns `<worker> --transport pipe <log>` with its stdin and
// stdout as the transport.
func StartPipe(_ context.Context, cfg Config) (*Session, error) {
	if err := VerifyConfig(cfg); err != nil {
		return nil, err
	}
	args := append(append([]string{}, cfg.WorkerArgs...), "--transport", "pipe", cfg.LogPath)
	cmd := exec.Command(cfg.WorkerPath, args...)
	cmd.Stderr = stderrOf(cfg)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("lifecycle: worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("lifecycle: worker stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("lifecycle: start worker: %w", err)
	}
	internalLogger.Infof("worker pid %d on pipes", cmd.Process.Pid)
	return &Session{
		Transport: transport.NewPipe(transport.RoleController, stdout, stdin, cfg.Transport),
		cmd:       cmd,
	}, nil
}

func stderrOf(cfg Config) io.Writer {
	if cfg.Stderr != nil {
		return cfg.Stderr
	}
	return os.Stderr
}

func createObjects(ctx context.Context, names security.Names) (*shm.Segment, *sem.Semaphore, *sem.Semaphore, error) {
	seg, err := shm.Create(ctx, shm.Options{Name: names.Segment})
	if err != nil {
		return nil, nil, nil, err
	}
	register(names.Segment, kindSegment)
	req, err := sem.Create(names.RequestReady, 0)
	if err != nil {
		_ = seg.Close()
		removeObjects(names)
		return nil, nil, nil, err
	}
	register(names.RequestReady, kindSemaphore)
	rsp, err := sem.Create(names.ResponseReady, 0)
	if err != nil {
		_ = req.Close()
		_ = seg.Close()
		removeObjects(names)
		return nil, nil, nil, err
	}
	register(names.ResponseReady, kindSemaphore)
	return seg, req, rsp, nil
}

// removeObjects unlinks whatever of names this process registered.
func removeObjects(names security.Names) {
	for _, name := range names.All() {
		kind, ok := live.Get(name)
		if !ok {
			continue
		}
		deregister(name)
		if err := unlink(name, kind); err != nil {
			internalLogger.Warnf("%v", err)
		}
	}
}

// Pid returns the worker process id.
func (s *Session) Pid() int {
	return s.cmd.Process.Pid
}

// Wait reaps the worker and returns its exit status. A worker that did not
// exit normally, e.g. killed by a signal, reports 1. Wait may be called
// more than once.
func (s *Session) Wait() (int, error) {
	s.waitOnce.Do(func() {
		err := s.cmd.Wait()
		var exitErr *exec.ExitError
		switch {
		case err == nil:
			s.code = 0
		case errors.As(err, &exitErr):
			s.code = exitErr.ExitCode()
			if s.code < 0 {
				s.code = 1
			}
		default:
			s.code = 1
			s.waitErr = fmt.Errorf("lifecycle: wait worker: %w", err)
		}
		internalLogger.Infof("worker exited with status %d", s.code)
	})
	return s.code, s.waitErr
}

// Close releases the controller end and, for a shared memory session, unlinks
// the objects. A worker still running is killed and reaped first so names
// are never unlinked under a live worker that has yet to open them.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var errs []error
	if s.cmd.ProcessState == nil {
		if err := s.Transport.Close(); err != nil {
			errs = append(errs, err)
		}
		select {
		case <-s.exited():
		case <-time.After(time.Second):
			_ = s.cmd.Process.Kill()
		}
	}
	if _, err := s.Wait(); err != nil {
		errs = append(errs, err)
	}
	// reaping a pipe worker already closed its stdin
	if err := s.Transport.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		errs = append(errs, err)
	}
	if s.owned {
		removeObjects(s.Names)
	}
	return errors.Join(errs...)
}

func (s *Session) exited() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		_, _ = s.Wait()
		close(done)
	}()
	return done
}
