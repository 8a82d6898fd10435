// Package dice estimates the outcome of a two player dice game by Monte
// Carlo simulation.
//
// Each of the remaining rounds both players roll two six-sided dice and add
// the pips to their score. The player with the higher final score wins.
// Experiments are split over a fixed pool of goroutines, each with a
// private generator and tally, reduced after all of them finish.
package dice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

// ErrInvalidConfig wraps every VerifyConfig failure.
var ErrInvalidConfig = errors.New("dice: invalid config")

const cancelCheckEvery = 1024

// Config describes one simulation.
type Config struct {
	// Rounds is the total number of rounds in a game.
	Rounds int
	// CurrentRound is the number of rounds already played.
	CurrentRound int
	// Player1Score and Player2Score are the scores so far.
	Player1Score int
	Player2Score int
	// Experiments is the number of simulated games.
	Experiments uint64
	// Threads is the number of pool workers. One runs inline.
	Threads int
	// Seed seeds the generators. Zero means seed from the clock.
	Seed uint32
}

// DefaultConfig returns a fresh game simulated 100000 times on one thread.
func DefaultConfig() Config {
	return Config{
		Rounds:      10,
		Experiments: 100000,
		Threads:     1,
	}
}

// VerifyConfig checks c.
func VerifyConfig(c Config) error {
	switch {
	case c.Rounds < 0:
		return fmt.Errorf("%w: negative rounds %d", ErrInvalidConfig, c.Rounds)
	case c.CurrentRound < 0:
		return fmt.Errorf("%w: negative current round %d", ErrInvalidConfig, c.CurrentRound)
	case c.Experiments == 0:
		return fmt.Errorf("%w: no experiments", ErrInvalidConfig)
	case c.Threads < 1:
		return fmt.Errorf("%w: threads must be at least 1, got %d", ErrInvalidConfig, c.Threads)
	}
	return nil
}

// Tally counts game outcomes.
type Tally struct {
	Player1Wins uint64
	Player2Wins uint64
	Draws       uint64
}

func (t *Tally) add(o Tally) {
	t.Player1Wins += o.Player1Wins
	t.Player2Wins += o.Player2Wins
	t.Draws += o.Draws
}

// Total returns the number of games counted.
func (t Tally) Total() uint64 {
	return t.Player1Wins + t.Player2Wins + t.Draws
}

// Result is a finished simulation.
type Result struct {
	Tally
	Experiments uint64
	Threads     int
	Elapsed     time.Duration
}

// Percent returns n as a percentage of the experiments.
func (r Result) Percent(n uint64) float64 {
	if r.Experiments == 0 {
		return 0
	}
	return 100 * float64(n) / float64(r.Experiments)
}

// Generator is the linear congruential generator
// seed = (seed*1103515245 + 12345) & 0x7fffffff.
type Generator struct {
	seed uint32
}

// NewGenerator returns a generator starting at seed.
func NewGenerator(seed uint32) *Generator {
	return &Generator{seed: seed}
}

// Next advances the generator and returns the new value.
func (g *Generator) Next() uint32 {
	g.seed = (g.seed*1103515245 + 12345) & 0x7fffffff
	return g.seed
}

// RollTwoDice returns the pips of two dice, 2 to 12.
func (g *Generator) RollTwoDice() int {
	a := int(g.Next()%6) + 1
	b := int(g.Next()%6) + 1
	return a + b
}

// SimulateGame plays the remaining rounds once and adds the outcome to t.
func SimulateGame(c Config, g *Generator, t *Tally) {
	p1, p2 := c.Player1Score, c.Player2Score
	for round := c.CurrentRound; round < c.Rounds; round++ {
		p1 += g.RollTwoDice()
		p2 += g.RollTwoDice()
	}
	switch {
	case p1 > p2:
		t.Player1Wins++
	case p2 > p1:
		t.Player2Wins++
	default:
		t.Draws++
	}
}

func simulate(ctx context.Context, c Config, g *Generator, n uint64) (Tally, error) {
	var t Tally
	for i := uint64(0); i < n; i++ {
		if i%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return t, err
			}
		}
		SimulateGame(c, g, &t)
	}
	return t, nil
}

// Run simulates c.Experiments games. With more than one thread the games are
// split evenly, the first Experiments%Threads workers taking one extra.
func Run(ctx context.Context, c Config) (Result, error) {
	if err := VerifyConfig(c); err != nil {
		return Result{}, err
	}
	seed := c.Seed
	if seed == 0 {
		seed = uint32(time.Now().UnixNano())
	}
	res := Result{Experiments: c.Experiments, Threads: c.Threads}
	start := time.Now()

	if c.Threads == 1 {
		t, err := simulate(ctx, c, NewGenerator(seed), c.Experiments)
		res.Tally = t
		res.Elapsed = time.Since(start)
		return res, err
	}

	pool, err := ants.NewPool(c.Threads)
	if err != nil {
		return Result{}, fmt.Errorf("dice: create pool: %w", err)
	}
	defer pool.Release()

	var (
		wg      sync.WaitGroup
		tallies = make([]Tally, c.Threads)
		errs    = make([]error, c.Threads)
		per     = c.Experiments / uint64(c.Threads)
		extra   = c.Experiments % uint64(c.Threads)
	)
	for i := 0; i < c.Threads; i++ {
		n := per
		if uint64(i) < extra {
			n++
		}
		i := i
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			g := NewGenerator(seed ^ uint32(i)<<16)
			tallies[i], errs[i] = simulate(ctx, c, g, n)
		}); err != nil {
			wg.Done()
			errs[i] = fmt.Errorf("dice: submit: %w", err)
		}
	}
	wg.Wait()
	for _, t := range tallies {
		res.Tally.add(t)
	}
	res.Elapsed = time.Since(start)
	return res, errors.Join(errs...)
}
