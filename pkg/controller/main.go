package controller

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/srediag/sumipc/internal/logging"
	"github.com/srediag/sumipc/pkg/health"
	"github.com/srediag/sumipc/pkg/lifecycle"
	"github.com/srediag/sumipc/pkg/worker"
)

// FileNamePrompt asks for the worker's log file when none is configured.
const FileNamePrompt = "Enter file name: "

// ExitInterrupted is the status after SIGINT or SIGTERM.
const ExitInterrupted = 130

// exit is replaced in tests.
var exit = os.Exit

// Main runs the controller process and returns the worker's exit status, or
// 1 when the session could not be run.
func Main(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := parseFlags(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	logging.SetLevel(cfg.LogLevel)

	in := bufio.NewReader(stdin)
	if cfg.LogFile == "" {
		fmt.Fprint(stdout, FileNamePrompt)
		name, err := in.ReadString('\n')
		name = strings.TrimRight(name, "\r\n")
		if name == "" {
			if err == nil || errors.Is(err, io.EOF) {
				err = errors.New("no file name given")
			}
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		cfg.LogFile = name
	}

	var hs *health.Server
	if cfg.HealthAddr != "" {
		hs = health.New()
		if _, err := hs.Start(cfg.HealthAddr); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = hs.Shutdown(ctx)
		}()
	}

	stop := handleSignals(stderr)
	defer stop()

	ctx := context.Background()
	lc := lifecycle.DefaultConfig()
	lc.WorkerPath = cfg.Worker
	lc.LogPath = cfg.LogFile
	lc.Stderr = stderr
	lc.CreateRetries = cfg.CreateRetries
	lc.RetryInterval = cfg.RetryInterval
	if cfg.LogLevel != logging.LevelWarn {
		lc.WorkerArgs = []string{fmt.Sprintf("--log-level=%d", cfg.LogLevel)}
	}

	var session *lifecycle.Session
	if cfg.Transport == worker.TransportPipe {
		session, err = lifecycle.StartPipe(ctx, lc)
	} else {
		session, err = lifecycle.StartShm(ctx, lc)
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if hs != nil {
		hs.SetWorkerRunning(true)
	}

	opts := LoopOptions{Prompt: promptEnabled(cfg.Prompt, stdin)}
	if hs != nil {
		opts.Metrics = hs.Metrics
	}
	if err := Loop(ctx, session.Transport, in, stdout, opts); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		_ = session.Close()
		return 1
	}

	code, err := session.Wait()
	if hs != nil {
		hs.SetWorkerRunning(false)
	}
	if err != nil {
		internalLogger.Errorf("%v", err)
	}
	if err := session.Close(); err != nil {
		internalLogger.Warnf("teardown: %v", err)
	}
	return code
}

func parseFlags(args []string, stderr io.Writer) (Config, error) {
	fs := pflag.NewFlagSet("sumipc-controller", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	def := DefaultConfig()
	configPath := fs.String("config", "", "YAML config file")
	workerPath := fs.String("worker", def.Worker, "worker executable")
	kind := fs.String("transport", def.Transport, "transport: shm or pipe")
	logFile := fs.String("log-file", "", "file the worker appends responses to")
	healthAddr := fs.String("health-addr", "", "serve /live, /ready and /metrics on this address")
	level := fs.Int("log-level", def.LogLevel, "log level, 0 (trace) to 5 (silent)")
	prompt := fs.String("prompt", def.Prompt, "show prompts: auto, on or off")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("%w: unexpected arguments %v", ErrInvalidConfig, fs.Args())
	}

	cfg := def
	if *configPath != "" {
		var err error
		if cfg, err = LoadConfig(*configPath); err != nil {
			return Config{}, err
		}
	}
	if fs.Changed("worker") {
		cfg.Worker = *workerPath
	}
	if fs.Changed("transport") {
		cfg.Transport = *kind
	}
	if fs.Changed("log-file") {
		cfg.LogFile = *logFile
	}
	if fs.Changed("health-addr") {
		cfg.HealthAddr = *healthAddr
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = *level
	}
	if fs.Changed("prompt") {
		cfg.Prompt = *prompt
	}
	return cfg, VerifyConfig(cfg)
}

func promptEnabled(mode string, stdin io.Reader) bool {
	switch mode {
	case PromptOn:
		return true
	case PromptOff:
		return false
	}
	f, ok := stdin.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// handleSignals unlinks every live IPC object and exits on SIGINT or
// SIGTERM. The main goroutine may be blocked in a semaphore wait, so the
// process is ended from here.
func handleSignals(stderr io.Writer) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case sig := <-ch:
			if err := lifecycle.CleanupAll(); err != nil {
				fmt.Fprintf(stderr, "error: cleanup: %v\n", err)
			}
			fmt.Fprintf(stderr, "interrupted by %v\n", sig)
			exit(ExitInterrupted)
		case <-done:
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}
