package worker

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/srediag/sumipc/api"
	"github.com/srediag/sumipc/internal/logging"
	"github.com/srediag/sumipc/pkg/audit"
	"github.com/srediag/sumipc/pkg/transport"
)

// Transport kinds accepted by --transport.
const (
	TransportShm  = "shm"
	TransportPipe = "pipe"
)

// Main runs the worker process and returns its exit status.
//
//	sumipc-worker [--transport shm] <log> <shm> <request-sem> <response-sem>
//	sumipc-worker --transport pipe <log>
//
// In pipe mode stdin and stdout carry the lines.
func Main(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("sumipc-worker", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	kind := fs.String("transport", TransportShm, "transport to serve on: shm or pipe")
	level := fs.Int("log-level", -1, "log level, 0 (trace) to 5 (silent)")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: sumipc-worker [--transport shm] <log> <shm> <request-sem> <response-sem>\n")
		fmt.Fprintf(stderr, "       sumipc-worker --transport pipe <log>\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 1
	}
	if *level >= 0 {
		logging.SetLevel(*level)
	}

	want := 4
	if *kind == TransportPipe {
		want = 1
	} else if *kind != TransportShm {
		fmt.Fprintf(stderr, "error: unknown transport %q\n", *kind)
		return 1
	}
	if fs.NArg() != want {
		fs.Usage()
		return 1
	}
	pos := fs.Args()

	ctx := context.Background()
	rec, err := audit.OpenFile(pos[0])
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer rec.Close()

	var t api.Transport
	if *kind == TransportPipe {
		t = transport.NewPipe(transport.RoleWorker, stdin, writeCloser(stdout), transport.Config{})
	} else {
		t, err = transport.OpenWorker(ctx, pos[1], pos[2], pos[3], transport.Config{})
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
	}
	defer t.Close()

	if err := Serve(ctx, t, rec); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func writeCloser(w io.Writer) io.WriteCloser {
	if wc, ok := w.(io.WriteCloser); ok {
		return wc
	}
	return nopCloser{w}
}
