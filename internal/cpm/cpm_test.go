package cpm

import (
	"errors"
	"math"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/joshharrison/pertsim/internal/graph"
	"github.com/joshharrison/pertsim/internal/sampler"
	"github.com/joshharrison/pertsim/internal/taskfile"
)

const eps = 1e-9

func buildTestNetwork(t *testing.T, raw []taskfile.Record) *graph.Network {
	t.Helper()
	n, err := graph.Build(raw)
	if err != nil {
		t.Fatalf("build network: %v", err)
	}
	return n
}

func calculate(t *testing.T, n *graph.Network, durations []float64) (*Schedule, Result) {
	t.Helper()
	s := NewSchedule(n.TaskCount())
	if err := s.SetDurations(durations); err != nil {
		t.Fatalf("set durations: %v", err)
	}
	res, err := s.Calculate(n)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	return s, res
}

func abcNetwork(t *testing.T) *graph.Network {
	return buildTestNetwork(t, []taskfile.Record{
		{ID: "A", Optimistic: 1, MostLikely: 2, Pessimistic: 3},
		{ID: "B", Predecessors: []string{"A"}, Optimistic: 2, MostLikely: 3, Pessimistic: 4},
		{ID: "C", Predecessors: []string{"A"}, Optimistic: 1, MostLikely: 1, Pessimistic: 1},
	})
}

func TestCalculate_ABCScenario(t *testing.T) {
	n := abcNetwork(t)
	s, res := calculate(t, n, MeanDurations(n))

	if math.Abs(res.ProjectDuration-5) > eps {
		t.Errorf("expected project duration 5, got %v", res.ProjectDuration)
	}
	assertSchedule(t, s, n, "A", 0, 2, 0, 2, 0, true)
	assertSchedule(t, s, n, "B", 2, 5, 2, 5, 0, true)
	assertSchedule(t, s, n, "C", 2, 3, 4, 5, 2, false)

	got := append([]string(nil), res.CriticalPath...)
	sort.Strings(got)
	if len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("expected critical path {A, B}, got %v", res.CriticalPath)
	}
	if res.CriticalPathLength != 2 || res.TotalTasks != 3 {
		t.Errorf("unexpected counts: length=%d total=%d", res.CriticalPathLength, res.TotalTasks)
	}
}

func TestCalculate_LinearChain(t *testing.T) {
	// A -> B -> C
	n := buildTestNetwork(t, []taskfile.Record{
		{ID: "a"},
		{ID: "b", Predecessors: []string{"a"}},
		{ID: "c", Predecessors: []string{"b"}},
	})
	s, res := calculate(t, n, []float64{1, 1, 1})

	if res.ProjectDuration != 3 {
		t.Errorf("expected total duration 3, got %v", res.ProjectDuration)
	}
	if len(res.CriticalPath) != 3 {
		t.Errorf("expected 3 tasks on critical path, got %v", res.CriticalPath)
	}
	assertSchedule(t, s, n, "a", 0, 1, 0, 1, 0, true)
	assertSchedule(t, s, n, "b", 1, 2, 1, 2, 0, true)
	assertSchedule(t, s, n, "c", 2, 3, 2, 3, 0, true)
}

func TestCalculate_WithSlack(t *testing.T) {
	// A(5) -> B(1) -> D(1)
	// A(5) -> C(10) -> D(1)
	n := buildTestNetwork(t, []taskfile.Record{
		{ID: "a"},
		{ID: "b", Predecessors: []string{"a"}},
		{ID: "c", Predecessors: []string{"a"}},
		{ID: "d", Predecessors: []string{"b", "c"}},
	})
	s, res := calculate(t, n, []float64{5, 1, 10, 1})

	if res.ProjectDuration != 16 {
		t.Errorf("expected total duration 16, got %v", res.ProjectDuration)
	}
	b, _ := n.Index("b")
	if s.Critical[b] {
		t.Error("expected task b to NOT be critical")
	}
	if s.TotalFloat[b] != 9 {
		t.Errorf("expected b float=9, got %v", s.TotalFloat[b])
	}
	for _, id := range []string{"a", "c", "d"} {
		i, _ := n.Index(id)
		if !s.Critical[i] {
			t.Errorf("expected task %s to be critical", id)
		}
	}
}

func TestCalculate_DisconnectedSubnetworks(t *testing.T) {
	// a -> b (total 3) and an isolated c (7): the project is as long as c.
	n := buildTestNetwork(t, []taskfile.Record{
		{ID: "a"},
		{ID: "b", Predecessors: []string{"a"}},
		{ID: "c"},
	})
	s, res := calculate(t, n, []float64{1, 2, 7})

	if res.ProjectDuration != 7 {
		t.Errorf("expected project duration 7, got %v", res.ProjectDuration)
	}
	if len(res.CriticalPath) != 1 || res.CriticalPath[0] != "c" {
		t.Errorf("expected critical path [c], got %v", res.CriticalPath)
	}
	a, _ := n.Index("a")
	if s.TotalFloat[a] != 4 {
		t.Errorf("expected a float=4, got %v", s.TotalFloat[a])
	}
}

func TestCalculate_NearZeroFloatIsCritical(t *testing.T) {
	n := buildTestNetwork(t, []taskfile.Record{
		{ID: "a"},
		{ID: "b"},
	})
	s, _ := calculate(t, n, []float64{10, 10 - CriticalTolerance/2})
	if !s.Critical[1] {
		t.Error("expected task within tolerance to be critical")
	}

	s, _ = calculate(t, n, []float64{10, 10 - 2*CriticalTolerance})
	if s.Critical[1] {
		t.Error("expected task outside tolerance to not be critical")
	}
}

func TestCalculate_Preconditions(t *testing.T) {
	n := abcNetwork(t)
	s := NewSchedule(n.TaskCount())

	if _, err := s.Calculate(n); !errors.Is(err, ErrNoDurations) {
		t.Errorf("expected ErrNoDurations before sampling, got %v", err)
	}

	if err := s.SetDurations([]float64{1, 2}); !errors.Is(err, ErrDurationCount) {
		t.Errorf("expected ErrDurationCount, got %v", err)
	}

	s.Sample(n, sampler.FixedBeta{}, rand.NewPCG(1, 2))
	if _, err := s.Calculate(n); err != nil {
		t.Fatalf("unexpected error after sampling: %v", err)
	}

	s.Reset()
	if _, err := s.Calculate(n); !errors.Is(err, ErrNoDurations) {
		t.Errorf("expected ErrNoDurations after reset, got %v", err)
	}

	if err := NewSchedule(3).BackwardPass(n); !errors.Is(err, ErrForwardPassPending) {
		t.Errorf("expected ErrForwardPassPending, got %v", err)
	}

	empty := &graph.Network{}
	if _, err := NewSchedule(0).Calculate(empty); !errors.Is(err, ErrNoTasks) {
		t.Errorf("expected ErrNoTasks, got %v", err)
	}
}

func TestCalculate_Idempotent(t *testing.T) {
	n := wideNetwork(t)
	s := NewSchedule(n.TaskCount())
	s.Sample(n, sampler.PERT{}, rand.NewPCG(9, 9))

	first, err := s.Calculate(n)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	ls := append([]float64(nil), s.LateStart...)

	second, err := s.Calculate(n)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if first.ProjectDuration != second.ProjectDuration || len(first.CriticalPath) != len(second.CriticalPath) {
		t.Errorf("results differ: %+v vs %+v", first, second)
	}
	for i := range ls {
		if ls[i] != s.LateStart[i] {
			t.Errorf("late start of %s changed: %v -> %v", n.Tasks[i].ID, ls[i], s.LateStart[i])
		}
	}
}

func TestCalculate_ScheduleInvariants(t *testing.T) {
	n := wideNetwork(t)
	s := NewSchedule(n.TaskCount())

	for seed := uint64(0); seed < 200; seed++ {
		s.Sample(n, sampler.FixedBeta{}, rand.NewPCG(seed, 0))
		res, err := s.Calculate(n)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}

		maxEF, maxLF := 0.0, 0.0
		critical := 0
		for i := range n.Tasks {
			if s.EarlyFinish[i] < s.EarlyStart[i] {
				t.Fatalf("seed %d: EF < ES for %s", seed, n.Tasks[i].ID)
			}
			for _, p := range n.Preds[i] {
				if s.EarlyStart[i] < s.EarlyFinish[p] {
					t.Fatalf("seed %d: %s starts before predecessor %s finishes", seed, n.Tasks[i].ID, n.Tasks[p].ID)
				}
			}
			if s.TotalFloat[i] < -CriticalTolerance {
				t.Fatalf("seed %d: negative float %v for %s", seed, s.TotalFloat[i], n.Tasks[i].ID)
			}
			maxEF = math.Max(maxEF, s.EarlyFinish[i])
			maxLF = math.Max(maxLF, s.LateFinish[i])
			if s.Critical[i] {
				critical++
			}
		}

		if math.Abs(maxEF-res.ProjectDuration) > eps || math.Abs(maxLF-res.ProjectDuration) > eps {
			t.Fatalf("seed %d: max EF %v / max LF %v != project duration %v", seed, maxEF, maxLF, res.ProjectDuration)
		}
		if critical == 0 {
			t.Fatalf("seed %d: empty critical path", seed)
		}
		if critical != res.CriticalPathLength {
			t.Fatalf("seed %d: %d critical tasks, critical path length %d", seed, critical, res.CriticalPathLength)
		}
	}
}

func TestAnalyze_Waves(t *testing.T) {
	//     A
	//   / | \
	//  B  C  D
	//   \ | /
	//     E
	n := wideNetwork(t)
	a, err := Analyze(n, []float64{1, 1, 1, 1, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(a.Waves) != 3 {
		t.Fatalf("expected 3 waves, got %d", len(a.Waves))
	}
	if len(a.Waves[1].TaskIDs) != 3 {
		t.Errorf("expected 3 tasks in wave 1, got %v", a.Waves[1].TaskIDs)
	}
	if a.Tasks["e"].Wave != 2 {
		t.Errorf("expected e in wave 2, got %d", a.Tasks["e"].Wave)
	}
	if len(a.TopoOrder) != 5 || a.TopoOrder[0] != "a" || a.TopoOrder[4] != "e" {
		t.Errorf("unexpected topological order %v", a.TopoOrder)
	}
}

func TestAnalyze_CriticalFirstWithinWave(t *testing.T) {
	n := buildTestNetwork(t, []taskfile.Record{
		{ID: "short"},
		{ID: "long"},
	})
	a, err := Analyze(n, []float64{1, 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a.Waves) != 1 {
		t.Fatalf("expected 1 wave, got %d", len(a.Waves))
	}
	if a.Waves[0].TaskIDs[0] != "long" || !a.Waves[0].IsCritical {
		t.Errorf("expected critical task first, got %v", a.Waves[0].TaskIDs)
	}
}

func wideNetwork(t *testing.T) *graph.Network {
	return buildTestNetwork(t, []taskfile.Record{
		{ID: "a", Optimistic: 1, MostLikely: 2, Pessimistic: 6},
		{ID: "b", Predecessors: []string{"a"}, Optimistic: 2, MostLikely: 4, Pessimistic: 9},
		{ID: "c", Predecessors: []string{"a"}, Optimistic: 1, MostLikely: 5, Pessimistic: 8},
		{ID: "d", Predecessors: []string{"a"}, Optimistic: 3, MostLikely: 3, Pessimistic: 3},
		{ID: "e", Predecessors: []string{"b", "c", "d"}, Optimistic: 1, MostLikely: 1, Pessimistic: 4},
	})
}

func assertSchedule(t *testing.T, s *Schedule, n *graph.Network, id string, es, ef, ls, lf, slack float64, critical bool) {
	t.Helper()
	i, ok := n.Index(id)
	if !ok {
		t.Fatalf("task %s not in network", id)
	}
	check := func(name string, got, want float64) {
		if math.Abs(got-want) > eps {
			t.Errorf("task %s: expected %s=%v, got %v", id, name, want, got)
		}
	}
	check("ES", s.EarlyStart[i], es)
	check("EF", s.EarlyFinish[i], ef)
	check("LS", s.LateStart[i], ls)
	check("LF", s.LateFinish[i], lf)
	check("float", s.TotalFloat[i], slack)
	if s.Critical[i] != critical {
		t.Errorf("task %s: expected critical=%v, got %v", id, critical, s.Critical[i])
	}
}
