package cpm

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/joshharrison/pertsim/internal/graph"
	"github.com/joshharrison/pertsim/internal/sampler"
)

// NewSchedule allocates a Schedule for a network of n tasks.
func NewSchedule(n int) *Schedule {
	return &Schedule{
		Duration:    make([]float64, n),
		EarlyStart:  make([]float64, n),
		EarlyFinish: make([]float64, n),
		LateStart:   make([]float64, n),
		LateFinish:  make([]float64, n),
		TotalFloat:  make([]float64, n),
		Critical:    make([]bool, n),
		Order:       make([]int, 0, n),
		inDegree:    make([]int, n),
	}
}

// Reset zeroes every per-iteration field. Durations must be set again
// before the next Calculate.
func (s *Schedule) Reset() {
	clear(s.Duration)
	clear(s.EarlyStart)
	clear(s.EarlyFinish)
	clear(s.LateStart)
	clear(s.LateFinish)
	clear(s.TotalFloat)
	clear(s.Critical)
	s.ProjectDuration = 0
	s.Order = s.Order[:0]
	s.sampled = false
	s.forwardDone = false
}

// Sample resets the schedule and draws one duration per task.
func (s *Schedule) Sample(n *graph.Network, smp sampler.Sampler, src rand.Source) {
	s.Reset()
	for i, t := range n.Tasks {
		s.Duration[i] = smp.Sample(t, src)
	}
	s.sampled = true
}

// SetDurations resets the schedule and uses the given durations, one per task.
func (s *Schedule) SetDurations(durations []float64) error {
	if len(durations) != len(s.Duration) {
		return fmt.Errorf("%w: got %d, want %d", ErrDurationCount, len(durations), len(s.Duration))
	}
	s.Reset()
	copy(s.Duration, durations)
	s.sampled = true
	return nil
}

// Calculate runs the forward pass then the backward pass over the current
// durations and reports the project duration and critical path.
func (s *Schedule) Calculate(n *graph.Network) (Result, error) {
	if n.TaskCount() == 0 {
		return Result{}, ErrNoTasks
	}
	if !s.sampled {
		return Result{}, ErrNoDurations
	}
	if len(s.Duration) != n.TaskCount() {
		return Result{}, fmt.Errorf("%w: schedule has %d, network has %d", ErrDurationCount, len(s.Duration), n.TaskCount())
	}

	if err := s.ForwardPass(n); err != nil {
		return Result{}, err
	}
	if err := s.BackwardPass(n); err != nil {
		return Result{}, err
	}

	result := Result{
		ProjectDuration: s.ProjectDuration,
		TotalTasks:      n.TaskCount(),
	}
	for _, i := range s.Order {
		if s.Critical[i] {
			result.CriticalPath = append(result.CriticalPath, n.Tasks[i].ID)
		}
	}
	result.CriticalPathLength = len(result.CriticalPath)
	return result, nil
}

// ForwardPass computes early start and early finish in topological order
// (Kahn's algorithm). The order among tasks that become ready together is
// not part of the contract.
func (s *Schedule) ForwardPass(n *graph.Network) error {
	s.forwardDone = false
	for i := range n.Tasks {
		s.inDegree[i] = len(n.Preds[i])
	}

	// Order doubles as the worklist: the queue is Order[head:].
	s.Order = append(s.Order[:0], n.Roots...)

	for head := 0; head < len(s.Order); head++ {
		node := s.Order[head]

		es := 0.0
		for _, pred := range n.Preds[node] {
			es = math.Max(es, s.EarlyFinish[pred])
		}
		s.EarlyStart[node] = es
		s.EarlyFinish[node] = es + s.Duration[node]

		for _, succ := range n.Succs[node] {
			s.inDegree[succ]--
			if s.inDegree[succ] == 0 {
				s.Order = append(s.Order, succ)
			}
		}
	}

	if len(s.Order) != n.TaskCount() {
		return fmt.Errorf("topological sort failed: %w (%d of %d tasks sorted)", graph.ErrCycle, len(s.Order), n.TaskCount())
	}

	// Max over all tasks, not just leaves, so disconnected sub-networks count.
	s.ProjectDuration = 0
	for i := range n.Tasks {
		s.ProjectDuration = math.Max(s.ProjectDuration, s.EarlyFinish[i])
	}

	s.forwardDone = true
	return nil
}

// BackwardPass computes late start, late finish, total float and criticality
// in reverse topological order.
func (s *Schedule) BackwardPass(n *graph.Network) error {
	if !s.forwardDone {
		return ErrForwardPassPending
	}

	for k := len(s.Order) - 1; k >= 0; k-- {
		node := s.Order[k]

		lf := s.ProjectDuration
		if len(n.Succs[node]) > 0 {
			lf = math.Inf(1)
			for _, succ := range n.Succs[node] {
				lf = math.Min(lf, s.LateStart[succ])
			}
		}
		s.LateFinish[node] = lf
		s.LateStart[node] = lf - s.Duration[node]
		s.TotalFloat[node] = s.LateStart[node] - s.EarlyStart[node]
		s.Critical[node] = math.Abs(s.TotalFloat[node]) < CriticalTolerance
	}
	return nil
}

// Analyze runs a single critical path analysis over fixed durations and
// groups tasks into waves by early start.
func Analyze(n *graph.Network, durations []float64) (*Analysis, error) {
	s := NewSchedule(n.TaskCount())
	if err := s.SetDurations(durations); err != nil {
		return nil, err
	}
	res, err := s.Calculate(n)
	if err != nil {
		return nil, err
	}

	a := &Analysis{
		Result: res,
		Tasks:  make(map[string]*TaskSchedule, n.TaskCount()),
	}
	for _, i := range s.Order {
		id := n.Tasks[i].ID
		a.TopoOrder = append(a.TopoOrder, id)
		a.Tasks[id] = &TaskSchedule{
			TaskID:     id,
			Duration:   s.Duration[i],
			ES:         s.EarlyStart[i],
			EF:         s.EarlyFinish[i],
			LS:         s.LateStart[i],
			LF:         s.LateFinish[i],
			Slack:      s.TotalFloat[i],
			IsCritical: s.Critical[i],
		}
	}
	a.Waves = computeWaves(a)
	return a, nil
}

// MeanDurations returns the PERT mean of every task, in network order.
func MeanDurations(n *graph.Network) []float64 {
	d := make([]float64, n.TaskCount())
	for i, t := range n.Tasks {
		d[i] = t.Mean()
	}
	return d
}

// computeWaves groups tasks by their earliest start time. Start times within
// CriticalTolerance of a wave's first task share that wave.
func computeWaves(a *Analysis) []Wave {
	ids := make([]string, len(a.TopoOrder))
	copy(ids, a.TopoOrder)
	sort.SliceStable(ids, func(x, y int) bool {
		return a.Tasks[ids[x]].ES < a.Tasks[ids[y]].ES
	})

	var waves []Wave
	for _, id := range ids {
		ts := a.Tasks[id]
		if len(waves) == 0 || ts.ES-waves[len(waves)-1].Start > CriticalTolerance {
			waves = append(waves, Wave{Index: len(waves), Start: ts.ES})
		}
		w := &waves[len(waves)-1]
		ts.Wave = w.Index
		w.TaskIDs = append(w.TaskIDs, id)
		if ts.IsCritical {
			w.IsCritical = true
		}
	}

	// Critical tasks first within a wave
	for i := range waves {
		taskIDs := waves[i].TaskIDs
		sort.SliceStable(taskIDs, func(x, y int) bool {
			return a.Tasks[taskIDs[x]].IsCritical && !a.Tasks[taskIDs[y]].IsCritical
		})
	}
	return waves
}
