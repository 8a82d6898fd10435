package dice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strconv"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/spf13/pflag"
)

// WriteReport prints the outcome percentages and the elapsed time.
func (r Result) WriteReport(w io.Writer) {
	fmt.Fprintf(w, "Player 1 wins: %.2f%%\n", r.Percent(r.Player1Wins))
	fmt.Fprintf(w, "Player 2 wins: %.2f%%\n", r.Percent(r.Player2Wins))
	fmt.Fprintf(w, "Draws: %.2f%%\n", r.Percent(r.Draws))
	fmt.Fprintf(w, "Time: %.2f ms\n", float64(r.Elapsed.Microseconds())/1000)
}

// LogicalCPUs reports the number of logical processors.
func LogicalCPUs() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return runtime.NumCPU()
	}
	return n
}

// Main runs the dice-sim command and returns its exit status.
//
//	dice-sim [--seed N] <rounds> <current-round> <p1-score> <p2-score> <experiments> [threads]
func Main(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("dice-sim", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	seed := fs.Uint32("seed", 0, "generator seed, 0 seeds from the clock")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: dice-sim [--seed N] <rounds> <current-round> <p1-score> <p2-score> <experiments> [threads]")
		fs.PrintDefaults()
	}
	// scores may be negative
	fs.SetInterspersed(false)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 1
	}
	if fs.NArg() < 5 || fs.NArg() > 6 {
		fs.Usage()
		return 1
	}

	c := DefaultConfig()
	c.Seed = *seed
	var err error
	for i, dst := range []*int{&c.Rounds, &c.CurrentRound, &c.Player1Score, &c.Player2Score} {
		if *dst, err = strconv.Atoi(fs.Arg(i)); err != nil {
			fmt.Fprintf(stderr, "error: argument %d: %v\n", i+1, err)
			return 1
		}
	}
	if c.Experiments, err = strconv.ParseUint(fs.Arg(4), 10, 64); err != nil {
		fmt.Fprintf(stderr, "error: experiments: %v\n", err)
		return 1
	}
	if fs.NArg() == 6 {
		if c.Threads, err = strconv.Atoi(fs.Arg(5)); err != nil {
			fmt.Fprintf(stderr, "error: threads: %v\n", err)
			return 1
		}
	}
	if err := VerifyConfig(c); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Number of logical processors: %d\n", LogicalCPUs())
	fmt.Fprintf(stdout, "\n--- Running with %d threads ---\n", c.Threads)
	res, err := Run(context.Background(), c)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	res.WriteReport(stdout)
	return 0
}
