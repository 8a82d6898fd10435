package transport

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srediag/sumipc/api"
)

var (
	_ api.Transport = (*Shm)(nil)
	_ api.Transport = (*Pipe)(nil)
	_ api.Transport = (*Loopback)(nil)
	_ api.Bounded   = (*Shm)(nil)
	_ api.Bounded   = (*Pipe)(nil)
	_ api.Bounded   = (*Loopback)(nil)
)

func TestLoopbackRoundTrip(t *testing.T) {
	ctx := context.Background()
	controller, worker := NewLoopback()

	go func() {
		line, err := worker.RecvLine(ctx)
		if err == nil {
			_ = worker.SendLine(ctx, append([]byte("echo "), line...))
		}
	}()
	require.NoError(t, controller.SendLine(ctx, []byte("1 2\n")))
	got, err := controller.RecvLine(ctx)
	require.NoError(t, err)
	assert.Equal(t, "echo 1 2\n", string(got))
}

func TestLoopbackSenderCannotRunAhead(t *testing.T) {
	controller, _ := NewLoopback()
	require.NoError(t, controller.SendLine(context.Background(), []byte("first\n")))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, controller.SendLine(ctx, []byte("second\n")), context.DeadlineExceeded)
}

func TestLoopbackBackToBackSendsKeepOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	controller, worker := NewLoopback()

	sent := make(chan error, 1)
	go func() {
		if err := controller.SendLine(ctx, []byte("first\n")); err != nil {
			sent <- err
			return
		}
		sent <- controller.SendLine(ctx, []byte("second\n"))
	}()

	for _, want := range []string{"first\n", "second\n"} {
		got, err := worker.RecvLine(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
	require.NoError(t, <-sent)

	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	_, err := worker.RecvLine(ctx2)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "nothing is left queued")
}

func TestLoopbackRecvHonoursContext(t *testing.T) {
	controller, _ := NewLoopback()
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)
	_, err := controller.RecvLine(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoopbackClose(t *testing.T) {
	ctx := context.Background()
	controller, worker := NewLoopback()
	require.NoError(t, controller.Close())
	require.NoError(t, controller.Close())

	_, err := worker.RecvLine(ctx)
	assert.ErrorIs(t, err, io.EOF)
	assert.ErrorIs(t, controller.SendLine(ctx, nil), ErrClosed)
	_, err = controller.RecvLine(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestLoopbackCutsLongLines(t *testing.T) {
	ctx := context.Background()
	controller, worker := NewLoopback()
	require.NoError(t, controller.SendLine(ctx, []byte(strings.Repeat("9", 2*MaxLine))))
	line, err := worker.RecvLine(ctx)
	require.NoError(t, err)
	assert.Len(t, line, MaxLine-1)
}
