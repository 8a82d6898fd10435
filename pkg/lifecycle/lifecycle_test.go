//go:build linux

package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/srediag/sumipc/internal/shm"
	"github.com/srediag/sumipc/pkg/security"
	pkgshm "github.com/srediag/sumipc/pkg/shm"
	"github.com/srediag/sumipc/pkg/worker"
)

const workerEnv = "SUMIPC_LIFECYCLE_TEST_WORKER"

func TestMain(m *testing.M) {
	if os.Getenv(workerEnv) == "1" {
		os.Exit(worker.Main(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
	}
	os.Exit(m.Run())
}

type LifecycleTestSuite struct {
	suite.Suite
	ctx context.Context
	cfg Config
}

func (s *LifecycleTestSuite) SetupTest() {
	s.T().Setenv(workerEnv, "1")
	exe, err := os.Executable()
	s.Require().NoError(err)
	s.ctx = context.Background()
	s.cfg = DefaultConfig()
	s.cfg.WorkerPath = exe
	s.cfg.LogPath = filepath.Join(s.T().TempDir(), "worker.log")
}

func (s *LifecycleTestSuite) TearDownTest() {
	s.NoError(CleanupAll())
}

func (s *LifecycleTestSuite) exists(name string) bool {
	_, err := os.Stat(shm.ObjectPath(name))
	return err == nil
}

func (s *LifecycleTestSuite) TestShmSession() {
	session, err := StartShm(s.ctx, s.cfg)
	s.Require().NoError(err)
	s.Positive(session.Pid())
	s.ElementsMatch(session.Names.All(), Registered())
	s.True(s.exists(session.Names.Segment))
	s.True(s.exists(shm.SemaphoreObject(session.Names.RequestReady)))

	s.Require().NoError(session.Transport.SendLine(s.ctx, []byte("2 2\n")))
	resp, err := session.Transport.RecvLine(s.ctx)
	s.Require().NoError(err)
	s.Equal("sum=4\n", string(resp))
	s.Require().NoError(session.Transport.SendLine(s.ctx, nil))

	code, err := session.Wait()
	s.Require().NoError(err)
	s.Equal(0, code)
	s.Require().NoError(session.Close())
	s.NoError(session.Close())

	s.Empty(Registered())
	s.False(s.exists(session.Names.Segment))
	s.False(s.exists(shm.SemaphoreObject(session.Names.ResponseReady)))
}

func (s *LifecycleTestSuite) TestPipeSession() {
	session, err := StartPipe(s.ctx, s.cfg)
	s.Require().NoError(err)
	s.Empty(Registered())

	s.Require().NoError(session.Transport.SendLine(s.ctx, []byte("1.5\n")))
	resp, err := session.Transport.RecvLine(s.ctx)
	s.Require().NoError(err)
	s.Equal("ERR: invalid number format\n", string(resp))
	s.Require().NoError(session.Transport.SendLine(s.ctx, nil))

	code, err := session.Wait()
	s.Require().NoError(err)
	s.Equal(0, code)
	s.NoError(session.Close())
}

func (s *LifecycleTestSuite) TestPipeSessionCloseAfterReap() {
	session, err := StartPipe(s.ctx, s.cfg)
	s.Require().NoError(err)
	s.Require().NoError(session.Transport.SendLine(s.ctx, nil))

	code, err := session.Wait()
	s.Require().NoError(err)
	s.Equal(0, code)
	s.NoError(session.Close(), "stdin was already closed by the reap")
	s.NoError(session.Close())
}

func (s *LifecycleTestSuite) TestCloseReapsUnfinishedWorker() {
	session, err := StartShm(s.ctx, s.cfg)
	s.Require().NoError(err)
	// the worker is blocked waiting for a request
	s.Require().NoError(session.Close())
	code, _ := session.Wait()
	s.NotEqual(0, code)
	s.Empty(Registered())
}

func (s *LifecycleTestSuite) TestWorkerFailureStatus() {
	s.cfg.LogPath = filepath.Join(s.T().TempDir(), "missing", "dir", "x.log")
	session, err := StartPipe(s.ctx, s.cfg)
	s.Require().NoError(err)
	code, err := session.Wait()
	s.Require().NoError(err)
	s.Equal(1, code)
	s.NoError(session.Close())
}

func (s *LifecycleTestSuite) TestVerifyConfig() {
	c := s.cfg
	c.WorkerPath = ""
	s.ErrorIs(VerifyConfig(c), ErrNoWorker)
	c.WorkerPath = filepath.Join(s.T().TempDir(), "absent")
	s.ErrorIs(VerifyConfig(c), ErrNoWorker)
	c = s.cfg
	c.LogPath = ""
	s.Error(VerifyConfig(c))

	_, err := StartShm(s.ctx, Config{WorkerPath: "sumipc-worker-that-does-not-exist", LogPath: "x"})
	s.ErrorIs(err, ErrNoWorker)
	s.Empty(Registered())
}

func (s *LifecycleTestSuite) TestCleanupAll() {
	session, err := StartShm(s.ctx, s.cfg)
	s.Require().NoError(err)
	names := session.Names
	// one round trip so the worker has attached to every object
	s.Require().NoError(session.Transport.SendLine(s.ctx, []byte("1\n")))
	_, err = session.Transport.RecvLine(s.ctx)
	s.Require().NoError(err)

	s.Require().NoError(CleanupAll())
	s.Empty(Registered())
	for _, name := range []string{names.Segment, shm.SemaphoreObject(names.RequestReady), shm.SemaphoreObject(names.ResponseReady)} {
		s.False(s.exists(name), name)
	}
	// the worker still holds its mappings and finishes normally
	s.Require().NoError(session.Transport.SendLine(s.ctx, nil))
	code, err := session.Wait()
	s.Require().NoError(err)
	s.Equal(0, code)
	s.NoError(session.Close())
}

func (s *LifecycleTestSuite) TestNameCollisionIsRetried() {
	taken, err := security.NewNames()
	s.Require().NoError(err)
	seg, err := pkgshm.Create(s.ctx, pkgshm.Options{Name: taken.Segment})
	s.Require().NoError(err)
	defer func() {
		_ = seg.Close()
		_ = pkgshm.Unlink(taken.Segment)
	}()

	calls := 0
	newNames = func() (security.Names, error) {
		calls++
		if calls == 1 {
			return taken, nil
		}
		return security.NewNames()
	}
	defer func() { newNames = security.NewNames }()

	session, err := StartShm(s.ctx, s.cfg)
	s.Require().NoError(err)
	s.Equal(2, calls)
	s.NotEqual(taken.Segment, session.Names.Segment)
	s.NotContains(Registered(), taken.Segment, "the colliding name is not ours to unlink")
	s.Require().NoError(session.Transport.SendLine(s.ctx, nil))
	_, _ = session.Wait()
	s.NoError(session.Close())
	s.True(s.exists(taken.Segment))
}

func (s *LifecycleTestSuite) TestRetriesAreBounded() {
	taken, err := security.NewNames()
	s.Require().NoError(err)
	seg, err := pkgshm.Create(s.ctx, pkgshm.Options{Name: taken.Segment})
	s.Require().NoError(err)
	defer func() {
		_ = seg.Close()
		_ = pkgshm.Unlink(taken.Segment)
	}()

	calls := 0
	newNames = func() (security.Names, error) {
		calls++
		return taken, nil
	}
	defer func() { newNames = security.NewNames }()

	s.cfg.CreateRetries = 2
	_, err = StartShm(s.ctx, s.cfg)
	s.ErrorIs(err, os.ErrExist)
	s.Equal(3, calls)
	s.Empty(Registered())
}

func (s *LifecycleTestSuite) TestCleanupAllIgnoresMissing() {
	register("/sumipc-shm-gone-0000000000000000", kindSegment)
	register("/sumipc-req-gone-0000000000000000", kindSemaphore)
	s.NoError(CleanupAll())
	s.Empty(Registered())
}

func TestLifecycleTestSuite(t *testing.T) {
	suite.Run(t, new(LifecycleTestSuite))
}
