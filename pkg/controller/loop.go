package controller

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/srediag/sumipc/api"
	"github.com/srediag/sumipc/internal/logging"
	"github.com/srediag/sumipc/pkg/health"
	"github.com/srediag/sumipc/pkg/transport"
	"github.com/srediag/sumipc/pkg/wire"
)

var internalLogger = logging.New("controller", nil)

// Intro is printed before the first prompt.
const Intro = "Enter a line, for example: \"12 -3 7\", and press Enter.\n" +
	"An empty line finishes.\n"

// Prompt is printed before each line is read.
const Prompt = "> "

// WorkerClosed is printed when a stream transport ends before a response.
const WorkerClosed = "(worker closed pipe)\n"

// LoopOptions tune Loop.
type LoopOptions struct {
	// Prompt prints Intro and Prompt.
	Prompt bool
	// Metrics, when set, counts requests and responses.
	Metrics *health.Metrics
}

// Loop reads lines from in, sends each to the worker and prints the response
// to out verbatim. End of input or an empty line sends the termination
// sentinel; Loop returns right after without waiting for a response.
// Lines longer than the transport allows are cut.
func Loop(ctx context.Context, t api.Transport, in io.Reader, out io.Writer, opts LoopOptions) error {
	limit := transport.MaxLine - 1
	if b, ok := t.(api.Bounded); ok {
		limit = b.MaxLine() - 1
	}
	r, ok := in.(*bufio.Reader)
	if !ok {
		r = bufio.NewReader(in)
	}
	if opts.Prompt {
		fmt.Fprint(out, Intro)
	}
	for {
		if opts.Prompt {
			fmt.Fprint(out, Prompt)
		}
		line, err := r.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("controller: read input: %w", err)
		}
		if wire.IsSentinel(line) {
			internalLogger.Debugf("end of input, sending the termination sentinel")
			return t.SendLine(ctx, nil)
		}
		if len(line) > limit {
			internalLogger.Warnf("line of %d bytes cut to %d", len(line), limit)
			line = line[:limit]
		}

		start := time.Now()
		if err := t.SendLine(ctx, line); err != nil {
			return err
		}
		opts.Metrics.ObserveRequest()
		resp, err := t.RecvLine(ctx)
		if errors.Is(err, io.EOF) {
			fmt.Fprint(out, WorkerClosed)
			return nil
		}
		if err != nil {
			return err
		}
		opts.Metrics.ObserveResponse(resp, time.Since(start))
		if _, err := out.Write(resp); err != nil {
			return fmt.Errorf("controller: write output: %w", err)
		}
	}
}
