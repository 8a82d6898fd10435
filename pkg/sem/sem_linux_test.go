//go:build linux

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

package sem

import (
	"fmt"
	"math/rand"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	internalshm "github.com/srediag/sumipc/internal/shm"
)

type SemaphoreTestSuite struct {
	suite.Suite
	names []string
}

func (s *SemaphoreTestSuite) newName() string {
	name := fmt.Sprintf("/sumipc-sem-test-%d-%d", os.Getpid(), rand.Int63())
	s.names = append(s.names, name)
	return name
}

func (s *SemaphoreTestSuite) TearDownTest() {
	for _, name := range s.names {
		_ = Unlink(name)
	}
	s.names = nil
}

func (s *SemaphoreTestSuite) TestCreateOpenShareCount() {
	name := s.newName()
	a, err := Create(name, 0)
	s.Require().NoError(err)
	defer a.Close()

	b, err := Open(name)
	s.Require().NoError(err)
	defer b.Close()

	s.False(b.TryWait())
	s.Require().NoError(a.Post())
	s.Equal(uint32(1), b.Value())
	s.True(b.TryWait())
	s.Equal(uint32(0), a.Value())
}

func (s *SemaphoreTestSuite) TestCreateIsExclusive() {
	name := s.newName()
	a, err := Create(name, 0)
	s.Require().NoError(err)
	defer a.Close()

	_, err = Create(name, 0)
	s.ErrorIs(err, os.ErrExist)
}

func (s *SemaphoreTestSuite) TestOpenMissing() {
	_, err := Open(s.newName())
	s.ErrorIs(err, os.ErrNotExist)
}

func (s *SemaphoreTestSuite) TestInitialValueCounts() {
	name := s.newName()
	a, err := Create(name, 2)
	s.Require().NoError(err)
	defer a.Close()

	s.Require().NoError(a.Wait())
	s.Require().NoError(a.Wait())
	s.False(a.TryWait())
}

func (s *SemaphoreTestSuite) TestWaitBlocksUntilPost() {
	name := s.newName()
	poster, err := Create(name, 0)
	s.Require().NoError(err)
	defer poster.Close()
	waiter, err := Open(name)
	s.Require().NoError(err)
	defer waiter.Close()

	done := make(chan error, 1)
	go func() { done <- waiter.Wait() }()

	select {
	case <-done:
		s.FailNow("Wait returned before Post")
	case <-time.After(50 * time.Millisecond):
	}

	s.Require().NoError(poster.Post())
	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(5 * time.Second):
		s.FailNow("Wait did not return after Post")
	}
	s.Equal(uint32(0), poster.Value())
}

func (s *SemaphoreTestSuite) TestPingPong() {
	ping, pong := s.newName(), s.newName()
	pingA, err := Create(ping, 0)
	s.Require().NoError(err)
	defer pingA.Close()
	pongA, err := Create(pong, 0)
	s.Require().NoError(err)
	defer pongA.Close()
	pingB, err := Open(ping)
	s.Require().NoError(err)
	defer pingB.Close()
	pongB, err := Open(pong)
	s.Require().NoError(err)
	defer pongB.Close()

	const rounds = 2000
	var counter int
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			if err := pingB.Wait(); err != nil {
				s.T().Errorf("ping wait: %v", err)
				return
			}
			counter++
			if err := pongB.Post(); err != nil {
				s.T().Errorf("pong post: %v", err)
				return
			}
		}
	}()
	for i := 0; i < rounds; i++ {
		s.Require().NoError(pingA.Post())
		s.Require().NoError(pongA.Wait())
		s.Require().Equal(i+1, counter, "strict alternation")
	}
	wg.Wait()
	s.Equal(uint32(0), pingA.Value())
	s.Equal(uint32(0), pongA.Value())
}

func (s *SemaphoreTestSuite) TestClosedHandle() {
	name := s.newName()
	a, err := Create(name, 1)
	s.Require().NoError(err)
	s.Require().NoError(a.Close())
	s.Require().NoError(a.Close())

	s.ErrorIs(a.Post(), ErrClosed)
	s.ErrorIs(a.Wait(), ErrClosed)
	s.False(a.TryWait())
	s.Zero(a.Value())
}

func (s *SemaphoreTestSuite) TestOverflow() {
	name := s.newName()
	a, err := Create(name, MaxValue)
	s.Require().NoError(err)
	defer a.Close()
	s.ErrorIs(a.Post(), ErrOverflow)

	_, err = Create(s.newName(), MaxValue+1)
	s.Error(err)
}

func (s *SemaphoreTestSuite) TestUnlinkKeepsOpenHandles() {
	name := s.newName()
	a, err := Create(name, 0)
	s.Require().NoError(err)
	defer a.Close()
	b, err := Open(name)
	s.Require().NoError(err)
	defer b.Close()

	s.Require().NoError(Unlink(name))
	_, err = os.Stat(internalshm.ObjectPath(internalshm.SemaphoreObject(name)))
	s.True(os.IsNotExist(err))

	s.Require().NoError(a.Post())
	s.Require().NoError(b.Wait())

	_, err = Open(name)
	s.ErrorIs(err, os.ErrNotExist)
}

func TestSemaphoreTestSuite(t *testing.T) {
	suite.Run(t, new(SemaphoreTestSuite))
}
