package controller

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srediag/sumipc/pkg/lifecycle"
	"github.com/srediag/sumipc/pkg/wire"
	"github.com/srediag/sumipc/pkg/worker"
)

// The test binary doubles as the worker executable.
const workerEnv = "SUMIPC_CONTROLLER_TEST_WORKER"

func TestMain(m *testing.M) {
	if os.Getenv(workerEnv) == "1" {
		os.Exit(worker.Main(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
	}
	os.Exit(m.Run())
}

func selfAsWorker(t *testing.T) string {
	t.Helper()
	t.Setenv(workerEnv, "1")
	exe, err := os.Executable()
	require.NoError(t, err)
	return exe
}

func TestMainScenario(t *testing.T) {
	for _, kind := range []string{worker.TransportShm, worker.TransportPipe} {
		t.Run(kind, func(t *testing.T) {
			logPath := filepath.Join(t.TempDir(), "sums.log")
			var stdout, stderr bytes.Buffer
			code := Main([]string{
				"--worker", selfAsWorker(t),
				"--transport", kind,
				"--log-file", logPath,
				"--prompt", "off",
			}, strings.NewReader("1 2 3\n10,5\n\n"), &stdout, &stderr)

			require.Equal(t, 0, code, stderr.String())
			want := "sum=6\n" + wire.MsgInvalidFormat
			assert.Equal(t, want, stdout.String())
			data, err := os.ReadFile(logPath)
			require.NoError(t, err)
			assert.Equal(t, want, string(data))
			assert.Empty(t, lifecycle.Registered(), "every IPC name is unlinked")
		})
	}
}

func TestMainAsksForFileName(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "asked.log")
	var stdout, stderr bytes.Buffer
	code := Main([]string{"--worker", selfAsWorker(t), "--prompt", "off"},
		strings.NewReader(logPath+"\n40 2\n"), &stdout, &stderr)

	require.Equal(t, 0, code, stderr.String())
	assert.Equal(t, FileNamePrompt+"sum=42\n", stdout.String())
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, "sum=42\n", string(data))
}

func TestMainNoFileName(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Main([]string{"--worker", selfAsWorker(t)}, strings.NewReader("\n"), &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "no file name given")
}

func TestMainMissingWorker(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Main([]string{"--worker", filepath.Join(t.TempDir(), "absent"), "--log-file", "x.log"},
		strings.NewReader(""), &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), lifecycle.ErrNoWorker.Error())
}

func TestMainWorkerStatusPropagates(t *testing.T) {
	// the worker cannot open its log, exits 1 and closes its end of the pipe
	bad := filepath.Join(t.TempDir(), "no", "such", "dir", "x.log")
	var stdout, stderr bytes.Buffer
	code := Main([]string{
		"--worker", selfAsWorker(t),
		"--transport", worker.TransportPipe,
		"--log-file", bad,
		"--prompt", "off",
	}, strings.NewReader("1\n"), &stdout, &stderr)
	assert.Equal(t, 1, code)
}

func TestMainInvalidFlags(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, Main([]string{"--transport", "tcp"}, strings.NewReader(""), &stdout, &stderr))
	assert.Contains(t, stderr.String(), "invalid config")
	assert.Equal(t, 0, Main([]string{"--help"}, strings.NewReader(""), &stdout, &stderr))
}
