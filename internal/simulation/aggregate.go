package simulation

import (
	"github.com/joshharrison/pertsim/internal/cpm"
)

// Aggregate accumulates results across iterations. It only grows until
// Finalize, after which it is read-only.
type Aggregate struct {
	Durations      []float64   `json:"durations"`
	CriticalPaths  [][]string  `json:"critical_paths"`
	CriticalCounts []int       `json:"critical_counts"` // indexed by task
	Criticality    []float64   `json:"criticality"`     // percent of runs, set by Finalize
	TaskDurations  [][]float64 `json:"task_durations"`  // indexed by task, one entry per run
	Runs           int         `json:"runs"`

	finalized bool
}

func newAggregate(tasks, capacity int) *Aggregate {
	a := &Aggregate{
		Durations:      make([]float64, 0, capacity),
		CriticalPaths:  make([][]string, 0, capacity),
		CriticalCounts: make([]int, tasks),
		TaskDurations:  make([][]float64, tasks),
	}
	for i := range a.TaskDurations {
		a.TaskDurations[i] = make([]float64, 0, capacity)
	}
	return a
}

// record appends one iteration. s must be the schedule res was computed from.
func (a *Aggregate) record(res cpm.Result, s *cpm.Schedule) error {
	if a.finalized {
		return ErrFinalized
	}
	a.Durations = append(a.Durations, res.ProjectDuration)
	a.CriticalPaths = append(a.CriticalPaths, res.CriticalPath)
	for i, critical := range s.Critical {
		if critical {
			a.CriticalCounts[i]++
		}
	}
	for i, d := range s.Duration {
		a.TaskDurations[i] = append(a.TaskDurations[i], d)
	}
	a.Runs++
	return nil
}

// merge appends other's iterations after a's. Counts are summed.
func (a *Aggregate) merge(other *Aggregate) {
	a.Durations = append(a.Durations, other.Durations...)
	a.CriticalPaths = append(a.CriticalPaths, other.CriticalPaths...)
	for i := range a.CriticalCounts {
		a.CriticalCounts[i] += other.CriticalCounts[i]
		a.TaskDurations[i] = append(a.TaskDurations[i], other.TaskDurations[i]...)
	}
	a.Runs += other.Runs
}

// Finalize converts criticality counts to percentages of Runs and freezes
// the aggregate. Calling it again has no effect.
func (a *Aggregate) Finalize() {
	if a.finalized {
		return
	}
	a.Criticality = make([]float64, len(a.CriticalCounts))
	if a.Runs > 0 {
		for i, c := range a.CriticalCounts {
			a.Criticality[i] = float64(c) / float64(a.Runs) * 100
		}
	}
	a.finalized = true
}

// Finalized reports whether Finalize has been called.
func (a *Aggregate) Finalized() bool {
	return a.finalized
}
