package graph

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultCategory is assigned to tasks loaded without a category.
const DefaultCategory = "general"

var (
	ErrEmptyNetwork       = errors.New("network has no tasks")
	ErrDuplicateTask      = errors.New("duplicate task id")
	ErrUnknownPredecessor = errors.New("unknown predecessor")
	ErrCycle              = errors.New("dependency cycle")
)

// Task is a single task and its three-point duration estimate.
// It holds no per-iteration schedule state and is never mutated after Build.
type Task struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Category     string   `json:"category"`
	Predecessors []string `json:"predecessors,omitempty"`
	Resources    []string `json:"resources,omitempty"`
	Optimistic   float64  `json:"optimistic"`
	MostLikely   float64  `json:"most_likely"`
	Pessimistic  float64  `json:"pessimistic"`
}

// Mean is the PERT expected duration (O + 4M + P) / 6.
func (t *Task) Mean() float64 {
	return (t.Optimistic + 4*t.MostLikely + t.Pessimistic) / 6
}

// StdDev is the PERT standard deviation (P - O) / 6.
func (t *Task) StdDev() float64 {
	return (t.Pessimistic - t.Optimistic) / 6
}

// Degenerate reports whether the estimate has no spread, in which case
// samplers return MostLikely without drawing.
func (t *Task) Degenerate() bool {
	return t.Pessimistic <= t.Optimistic
}

// Network is a directed acyclic graph of tasks. Tasks keep the order they were
// given to Build; every per-task slice in this module is indexed by that order.
type Network struct {
	Tasks  []*Task
	Preds  [][]int // task index -> predecessor indices
	Succs  [][]int // task index -> successor indices
	Roots  []int   // tasks with no predecessors
	Leaves []int   // tasks with no successors

	index map[string]int
}

// CycleError reports a dependency cycle. Path starts and ends on the same id.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCycle, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }
