// Package simulation runs Monte Carlo iterations over a project network.
//
// Every iteration samples one duration per task, recomputes the critical path
// and records the outcome in an Aggregate. Iteration i always draws from the
// same random stream for a given seed, so results do not depend on how many
// workers run them.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"github.com/joshharrison/pertsim/internal/cpm"
	"github.com/joshharrison/pertsim/internal/graph"
	"github.com/joshharrison/pertsim/internal/sampler"
)

var (
	ErrNoNetwork   = errors.New("simulation network not built")
	ErrNoSampler   = errors.New("simulation sampler not set")
	ErrInvalidRuns = errors.New("number of runs must be positive")
	ErrFinalized   = errors.New("aggregate already finalized")
)

// Options configures an Engine.
type Options struct {
	Sampler       sampler.Sampler
	Seed          uint64
	Workers       int             // <= 1 runs sequentially
	ProgressEvery int             // log progress every N iterations (0 disables)
	Logger        *zerolog.Logger // nil disables logging
}

// Engine drives simulation iterations over a single network.
type Engine struct {
	net  *graph.Network
	opts Options
	log  zerolog.Logger

	sched *cpm.Schedule
	src   *rand.PCG
	agg   *Aggregate
	next  int // stream index of the next RunIteration
}

// IterationResult is a snapshot of one iteration.
type IterationResult struct {
	Index           int         `json:"index"`
	ProjectDuration float64     `json:"project_duration"`
	CriticalPath    []string    `json:"critical_path"`
	Tasks           []TaskStats `json:"tasks"`
}

// TaskStats is one task's schedule within an iteration.
type TaskStats struct {
	TaskID      string  `json:"task_id"`
	Category    string  `json:"category"`
	Duration    float64 `json:"duration"`
	EarlyStart  float64 `json:"early_start"`
	EarlyFinish float64 `json:"early_finish"`
	LateStart   float64 `json:"late_start"`
	LateFinish  float64 `json:"late_finish"`
	TotalFloat  float64 `json:"total_float"`
	IsCritical  bool    `json:"is_critical"`
}

// New creates an Engine for net.
func New(net *graph.Network, opts Options) (*Engine, error) {
	if net == nil {
		return nil, ErrNoNetwork
	}
	if opts.Sampler == nil {
		return nil, ErrNoSampler
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	return &Engine{
		net:   net,
		opts:  opts,
		log:   log.With().Str("component", "simulation").Logger(),
		sched: cpm.NewSchedule(net.TaskCount()),
		src:   rand.NewPCG(0, 0),
		agg:   newAggregate(net.TaskCount(), 0),
	}, nil
}

// RunIteration runs one iteration, records it and returns its snapshot.
// Iterations run this way accumulate into Results until Finalize.
func (e *Engine) RunIteration() (*IterationResult, error) {
	if e.agg.Finalized() {
		return nil, ErrFinalized
	}

	res, err := e.step(e.sched, e.src, e.next)
	if err != nil {
		return nil, err
	}
	if err := e.agg.record(res, e.sched); err != nil {
		return nil, err
	}

	ir := &IterationResult{
		Index:           e.next,
		ProjectDuration: res.ProjectDuration,
		CriticalPath:    res.CriticalPath,
		Tasks:           make([]TaskStats, e.net.TaskCount()),
	}
	for i, t := range e.net.Tasks {
		ir.Tasks[i] = TaskStats{
			TaskID:      t.ID,
			Category:    t.Category,
			Duration:    e.sched.Duration[i],
			EarlyStart:  e.sched.EarlyStart[i],
			EarlyFinish: e.sched.EarlyFinish[i],
			LateStart:   e.sched.LateStart[i],
			LateFinish:  e.sched.LateFinish[i],
			TotalFloat:  e.sched.TotalFloat[i],
			IsCritical:  e.sched.Critical[i],
		}
	}
	e.next++
	return ir, nil
}

// Results returns the aggregate built by RunIteration or the last Run.
func (e *Engine) Results() *Aggregate {
	return e.agg
}

// Finalize freezes the aggregate built by RunIteration.
func (e *Engine) Finalize() *Aggregate {
	e.agg.Finalize()
	return e.agg
}

// Run executes n fresh iterations, replacing any previous results, and
// returns the finalized aggregate. If ctx is cancelled the iterations that
// completed are finalized and returned along with the context error.
func (e *Engine) Run(ctx context.Context, n int) (*Aggregate, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRuns, n)
	}

	start := time.Now()
	e.log.Info().
		Int("runs", n).
		Int("tasks", e.net.TaskCount()).
		Int("workers", e.opts.Workers).
		Str("sampler", e.opts.Sampler.Name()).
		Uint64("seed", e.opts.Seed).
		Msg("simulation started")

	var (
		agg *Aggregate
		err error
	)
	if e.opts.Workers > 1 && n > 1 {
		agg, err = e.runParallel(ctx, n)
	} else {
		agg, err = e.runRange(ctx, 0, n)
	}
	agg.Finalize()
	e.agg = agg
	e.next = n

	if err != nil {
		e.log.Warn().Err(err).Int("completed", agg.Runs).Int("runs", n).Msg("simulation stopped early")
		return agg, fmt.Errorf("simulation stopped after %d of %d runs: %w", agg.Runs, n, err)
	}

	e.log.Info().
		Int("runs", agg.Runs).
		Dur("elapsed", time.Since(start)).
		Msg("simulation complete")
	return agg, nil
}

// runRange runs iterations [from, to) on a private schedule and random
// source. It stops early, returning what it has, when ctx is done.
func (e *Engine) runRange(ctx context.Context, from, to int) (*Aggregate, error) {
	sched := cpm.NewSchedule(e.net.TaskCount())
	src := rand.NewPCG(0, 0)
	agg := newAggregate(e.net.TaskCount(), to-from)

	for i := from; i < to; i++ {
		if err := ctx.Err(); err != nil {
			return agg, err
		}
		res, err := e.step(sched, src, i)
		if err != nil {
			return agg, err
		}
		if err := agg.record(res, sched); err != nil {
			return agg, err
		}
		if e.opts.ProgressEvery > 0 && (i+1)%e.opts.ProgressEvery == 0 {
			e.log.Debug().Int("iteration", i+1).Int("of", to).Msg("progress")
		}
	}
	return agg, nil
}

// step samples and calculates iteration i on sched.
func (e *Engine) step(sched *cpm.Schedule, src *rand.PCG, i int) (cpm.Result, error) {
	src.Seed(e.opts.Seed, streamSeed(uint64(i)))
	sched.Sample(e.net, e.opts.Sampler, src)
	res, err := sched.Calculate(e.net)
	if err != nil {
		return cpm.Result{}, fmt.Errorf("iteration %d: %w", i, err)
	}
	return res, nil
}

// streamSeed spreads consecutive iteration indices across the PCG state
// space (splitmix64 finalizer).
func streamSeed(i uint64) uint64 {
	z := i + 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
