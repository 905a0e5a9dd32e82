// Package sampler draws random task durations from three-point estimates.
//
// Two strategies are provided and neither is a default:
//
//   - beta4: a fixed-shape Beta(4,4) variate rescaled into [optimistic, pessimistic].
//   - pert:  a Beta variate whose shape parameters are derived from the PERT mean,
//     each clamped to at least 0.1.
//
// Both return the most-likely value, without drawing, when pessimistic <= optimistic.
package sampler

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/joshharrison/pertsim/internal/graph"
)

const (
	NameFixedBeta = "beta4"
	NamePERT      = "pert"
)

// minShape is the lower bound applied to derived Beta shape parameters.
const minShape = 0.1

var (
	ErrNoStrategy      = errors.New("no sampling strategy selected")
	ErrUnknownStrategy = errors.New("unknown sampling strategy")
)

// Sampler draws one duration for a task from src.
type Sampler interface {
	Name() string
	Sample(t *graph.Task, src rand.Source) float64
}

var registry = map[string]Sampler{
	NameFixedBeta: FixedBeta{},
	NamePERT:      PERT{},
}

// Parse returns the strategy registered under name.
func Parse(name string) (Sampler, error) {
	if name == "" {
		return nil, fmt.Errorf("%w (choose one of %v)", ErrNoStrategy, Names())
	}
	s, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (choose one of %v)", ErrUnknownStrategy, name, Names())
	}
	return s, nil
}

// Names lists the registered strategy names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FixedBeta samples Beta(4,4) scaled to the task's [optimistic, pessimistic] range.
type FixedBeta struct{}

func (FixedBeta) Name() string { return NameFixedBeta }

func (FixedBeta) Sample(t *graph.Task, src rand.Source) float64 {
	if t.Degenerate() {
		return t.MostLikely
	}
	b := distuv.Beta{Alpha: 4, Beta: 4, Src: src}
	return t.Optimistic + b.Rand()*(t.Pessimistic-t.Optimistic)
}

// PERT samples Beta(alpha, beta) with shape parameters derived from the PERT mean.
type PERT struct{}

func (PERT) Name() string { return NamePERT }

func (PERT) Sample(t *graph.Task, src rand.Source) float64 {
	if t.Degenerate() {
		return t.MostLikely
	}
	alpha, beta := Shape(t.Optimistic, t.MostLikely, t.Pessimistic)
	b := distuv.Beta{Alpha: alpha, Beta: beta, Src: src}
	return t.Optimistic + b.Rand()*(t.Pessimistic-t.Optimistic)
}

// Shape returns the clamped Beta parameters the PERT strategy uses for (o, m, p).
// It assumes p > o.
func Shape(o, m, p float64) (alpha, beta float64) {
	expected := (o + 4*m + p) / 6
	span := p - o
	alpha = math.Max(6*(expected-o)/span, minShape)
	beta = math.Max(6*(p-expected)/span, minShape)
	return alpha, beta
}
