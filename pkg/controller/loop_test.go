package controller

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/suite"

	"github.com/srediag/sumipc/api"
	"github.com/srediag/sumipc/pkg/health"
	"github.com/srediag/sumipc/pkg/transport"
	"github.com/srediag/sumipc/pkg/wire"
	"github.com/srediag/sumipc/pkg/worker"
)

type LoopTestSuite struct {
	suite.Suite
	ctx        context.Context
	controller *transport.Loopback
	done       chan error
	recorded   []string
}

func (s *LoopTestSuite) SetupTest() {
	s.ctx = context.Background()
	var w *transport.Loopback
	s.controller, w = transport.NewLoopback()
	s.recorded = nil
	s.done = make(chan error, 1)
	go func() {
		s.done <- worker.Serve(s.ctx, w, api.RecorderFunc(func(line []byte) error {
			s.recorded = append(s.recorded, string(line))
			return nil
		}))
	}()
}

func (s *LoopTestSuite) run(input string, opts LoopOptions) string {
	var out bytes.Buffer
	s.Require().NoError(Loop(s.ctx, s.controller, strings.NewReader(input), &out, opts))
	s.Require().NoError(<-s.done, "worker stops on the sentinel")
	return out.String()
}

func (s *LoopTestSuite) TestScenario() {
	out := s.run("1 2 3\n10,5\n\n4\n", LoopOptions{})
	s.Equal("sum=6\n"+wire.MsgInvalidFormat, out)
	s.Equal([]string{"sum=6\n", wire.MsgInvalidFormat}, s.recorded)
}

func (s *LoopTestSuite) TestEndOfInput() {
	out := s.run("12 -3 7\n+5 5", LoopOptions{})
	s.Equal("sum=16\nsum=10\n", out)
}

func (s *LoopTestSuite) TestNulLineEndsSession() {
	out := s.run("5 5\n\x00 1 2\n3\n", LoopOptions{})
	s.Equal("sum=10\n", out)
	s.Equal([]string{"sum=10\n"}, s.recorded)
}

func (s *LoopTestSuite) TestPrompts() {
	out := s.run("abc\n", LoopOptions{Prompt: true})
	s.Equal(Intro+Prompt+wire.MsgNoNumbers+Prompt, out)
}

func (s *LoopTestSuite) TestLongLineIsCut() {
	long := strings.Repeat("1 ", transport.MaxLine) + "\n"
	out := s.run(long, LoopOptions{})
	// 1024 ones fit in 2047 bytes
	s.Equal("sum=1024\n", out)
}

func (s *LoopTestSuite) TestMetrics() {
	reg := prometheus.NewRegistry()
	m := health.NewMetrics(reg)
	s.run("1\n1.5\n\n", LoopOptions{Metrics: m})

	var out dto.Metric
	s.Require().NoError(m.Requests.Write(&out))
	s.Equal(2.0, out.GetCounter().GetValue())
	s.Require().NoError(m.Responses.WithLabelValues("parse_error").Write(&out))
	s.Equal(1.0, out.GetCounter().GetValue())
}

func TestLoopTestSuite(t *testing.T) {
	suite.Run(t, new(LoopTestSuite))
}

// closedStream accepts requests but its peer is gone.
type closedStream struct{ sent int }

func (c *closedStream) SendLine(context.Context, []byte) error { c.sent++; return nil }
func (c *closedStream) RecvLine(context.Context) ([]byte, error) { return nil, io.EOF }
func (c *closedStream) Close() error                             { return nil }

func TestLoopWorkerClosedPipe(t *testing.T) {
	var out bytes.Buffer
	c := &closedStream{}
	err := Loop(context.Background(), c, strings.NewReader("1 2\n3\n"), &out, LoopOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if out.String() != WorkerClosed || c.sent != 1 {
		t.Fatalf("got %q after %d sends", out.String(), c.sent)
	}
}
