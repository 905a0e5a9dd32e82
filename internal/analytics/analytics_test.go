package analytics

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/joshharrison/pertsim/internal/graph"
	"github.com/joshharrison/pertsim/internal/sampler"
	"github.com/joshharrison/pertsim/internal/simulation"
	"github.com/joshharrison/pertsim/internal/taskfile"
)

const eps = 1e-9

func approx(a, b float64) bool { return math.Abs(a-b) < eps }

func buildTestNetwork(t *testing.T) *graph.Network {
	t.Helper()
	n, err := graph.Build([]taskfile.Record{
		{ID: "a", Name: "Alpha", Category: "dev", Optimistic: 1, MostLikely: 5, Pessimistic: 10},
		{ID: "b", Name: "Bravo", Category: "dev", Optimistic: 3, MostLikely: 3, Pessimistic: 3},
		{ID: "c", Name: "Charlie", Category: "qa", Optimistic: 0.5, MostLikely: 2, Pessimistic: 5},
	})
	if err != nil {
		t.Fatalf("build network: %v", err)
	}
	return n
}

// fixedAggregate is ten runs of durations 1..10 where a tracks the project
// exactly, b never varies and c is half the project.
func fixedAggregate() *simulation.Aggregate {
	project := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	half := make([]float64, len(project))
	flat := make([]float64, len(project))
	for i, d := range project {
		half[i] = d / 2
		flat[i] = 3
	}
	agg := &simulation.Aggregate{
		Durations:      project,
		CriticalPaths:  make([][]string, len(project)),
		CriticalCounts: []int{10, 6, 1},
		TaskDurations:  [][]float64{slices.Clone(project), flat, half},
		Runs:           len(project),
	}
	agg.Finalize()
	return agg
}

func TestPercentile_Interpolation(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{10, 1.4},
		{25, 2},
		{50, 3},
		{90, 4.6},
		{100, 5},
		{-5, 1},
		{150, 5},
	}
	for _, tt := range tests {
		if got := Percentile(xs, tt.p); !approx(got, tt.want) {
			t.Errorf("Percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}

	if got := Percentile([]float64{7}, 33); got != 7 {
		t.Errorf("single value: got %v, want 7", got)
	}
	if got := Percentile(nil, 50); !math.IsNaN(got) {
		t.Errorf("empty: got %v, want NaN", got)
	}
}

func TestPercentile_Monotonic(t *testing.T) {
	r := rand.New(rand.NewPCG(42, 0))
	xs := make([]float64, 997)
	for i := range xs {
		xs[i] = r.ExpFloat64() * 20
	}
	slices.Sort(xs)

	prev := math.Inf(-1)
	for p := 0.0; p <= 100; p += 0.5 {
		v := Percentile(xs, p)
		if v < prev {
			t.Fatalf("percentile decreased at p=%v: %v < %v", p, v, prev)
		}
		prev = v
	}
}

func TestHistogram_CountsEverySample(t *testing.T) {
	xs := []float64{1, 1.5, 2, 2, 3, 7, 9.99, 10}
	bins := Histogram(xs, 5)
	if len(bins) != 5 {
		t.Fatalf("expected 5 bins, got %d", len(bins))
	}
	total := 0
	for _, b := range bins {
		total += b.Count
	}
	if total != len(xs) {
		t.Errorf("expected %d samples binned, got %d", len(xs), total)
	}
	if bins[0].Lower != 1 || bins[4].Upper != 10 {
		t.Errorf("expected bins to span [1, 10], got [%v, %v]", bins[0].Lower, bins[4].Upper)
	}
	// max lands in the closed last bin
	if bins[4].Count != 2 {
		t.Errorf("expected last bin to hold 9.99 and 10, got %d", bins[4].Count)
	}
}

func TestHistogram_ConstantSamples(t *testing.T) {
	bins := Histogram([]float64{4, 4, 4}, 10)
	total := 0
	for _, b := range bins {
		total += b.Count
	}
	if total != 3 {
		t.Errorf("expected 3 samples binned, got %d", total)
	}
	if bins[0].Lower != 3.5 || bins[9].Upper != 4.5 {
		t.Errorf("expected widened range [3.5, 4.5], got [%v, %v]", bins[0].Lower, bins[9].Upper)
	}
	if Histogram(nil, 10) != nil {
		t.Error("expected nil histogram for no samples")
	}
}

func TestCumulative(t *testing.T) {
	pts := Cumulative([]float64{2, 4, 6, 8})
	if len(pts) != 4 {
		t.Fatalf("expected 4 points, got %d", len(pts))
	}
	if pts[0].Probability != 0.25 || pts[3].Probability != 1 {
		t.Errorf("unexpected probabilities %v, %v", pts[0].Probability, pts[3].Probability)
	}
}

func TestAnalyze_Preconditions(t *testing.T) {
	n := buildTestNetwork(t)

	if _, err := Analyze(n, nil, Options{}); !errors.Is(err, ErrNoData) {
		t.Errorf("nil aggregate: expected ErrNoData, got %v", err)
	}

	open := &simulation.Aggregate{Durations: []float64{1}, Runs: 1}
	if _, err := Analyze(n, open, Options{}); !errors.Is(err, ErrNotFinalized) {
		t.Errorf("open aggregate: expected ErrNotFinalized, got %v", err)
	}

	empty := &simulation.Aggregate{CriticalCounts: make([]int, 3)}
	empty.Finalize()
	if _, err := Analyze(n, empty, Options{}); !errors.Is(err, ErrNoData) {
		t.Errorf("empty aggregate: expected ErrNoData, got %v", err)
	}

	short := &simulation.Aggregate{Durations: []float64{1}, CriticalCounts: []int{1}, TaskDurations: [][]float64{{1}}, Runs: 1}
	short.Finalize()
	if _, err := Analyze(n, short, Options{}); !errors.Is(err, ErrTaskMismatch) {
		t.Errorf("mismatched aggregate: expected ErrTaskMismatch, got %v", err)
	}

	for _, c := range []float64{0, 1, -0.2, 1.5, math.NaN()} {
		if _, err := Analyze(n, fixedAggregate(), Options{ConfidenceLevels: []float64{c}}); !errors.Is(err, ErrInvalidConfidence) {
			t.Errorf("confidence %v: expected ErrInvalidConfidence, got %v", c, err)
		}
	}
}

func TestAnalyze_Percentiles(t *testing.T) {
	r, err := Analyze(buildTestNetwork(t), fixedAggregate(), Options{})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	p := r.Percentiles
	want := map[string]float64{
		"P10": 1.9, "P25": 3.25, "P50": 5.5, "P75": 7.75,
		"P80": 8.2, "P90": 9.1, "P95": 9.55,
	}
	for _, pt := range p.Points() {
		if !approx(pt.Value, want[pt.Name]) {
			t.Errorf("%s = %v, want %v", pt.Name, pt.Value, want[pt.Name])
		}
	}
	if !approx(p.Mean, 5.5) {
		t.Errorf("mean = %v, want 5.5", p.Mean)
	}
	if !approx(p.StdDev, math.Sqrt(8.25)) {
		t.Errorf("population std = %v, want %v", p.StdDev, math.Sqrt(8.25))
	}

	s := r.Summary
	if s.TotalTasks != 3 || s.Runs != 10 || s.MinDuration != 1 || s.MaxDuration != 10 {
		t.Errorf("unexpected summary %+v", s)
	}
	if len(r.Histogram) != DefaultHistogramBins {
		t.Errorf("expected %d histogram bins, got %d", DefaultHistogramBins, len(r.Histogram))
	}
	if len(r.Cumulative) != 10 {
		t.Errorf("expected 10 cumulative points, got %d", len(r.Cumulative))
	}
}

func TestAnalyze_ConfidenceIntervals(t *testing.T) {
	r, err := Analyze(buildTestNetwork(t), fixedAggregate(), Options{ConfidenceLevels: []float64{0.9, 0.5}})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(r.ConfidenceIntervals) != 2 {
		t.Fatalf("expected 2 intervals, got %d", len(r.ConfidenceIntervals))
	}

	ci := r.ConfidenceIntervals[0]
	if ci.Label != "90%" {
		t.Errorf("expected label 90%%, got %q", ci.Label)
	}
	if !approx(ci.Lower, 1.45) || !approx(ci.Upper, 9.55) || !approx(ci.Range, 8.1) {
		t.Errorf("unexpected 90%% interval %+v", ci)
	}

	ci = r.ConfidenceIntervals[1]
	if ci.Label != "50%" || !approx(ci.Lower, 3.25) || !approx(ci.Upper, 7.75) {
		t.Errorf("unexpected 50%% interval %+v", ci)
	}
}

func TestAnalyze_CriticalTasks(t *testing.T) {
	r, err := Analyze(buildTestNetwork(t), fixedAggregate(), Options{})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if len(r.Tasks) != 3 {
		t.Fatalf("expected all 3 tasks listed, got %d", len(r.Tasks))
	}
	wantOrder := []string{"a", "b", "c"}
	wantPriority := []string{"Critical", "High", "Low"}
	wantAllocation := []string{"Best resources", "Monitor closely", "Standard"}
	for i, tc := range r.Tasks {
		if tc.TaskID != wantOrder[i] || tc.Priority != wantPriority[i] || tc.Allocation != wantAllocation[i] {
			t.Errorf("task %d: got %s/%s/%s", i, tc.TaskID, tc.Priority, tc.Allocation)
		}
	}
	if !approx(r.Tasks[0].Criticality, 100) || !approx(r.Tasks[1].Criticality, 60) || !approx(r.Tasks[2].Criticality, 10) {
		t.Errorf("unexpected criticality %v %v %v", r.Tasks[0].Criticality, r.Tasks[1].Criticality, r.Tasks[2].Criticality)
	}

	if len(r.CriticalTasks) != 2 || r.CriticalTasks[0].TaskID != "a" || r.CriticalTasks[1].TaskID != "b" {
		t.Errorf("expected critical tasks [a b], got %+v", r.CriticalTasks)
	}

	r, err = Analyze(buildTestNetwork(t), fixedAggregate(), Options{CriticalityThreshold: 80})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(r.CriticalTasks) != 1 {
		t.Errorf("threshold 80: expected 1 critical task, got %d", len(r.CriticalTasks))
	}
}

func TestAnalyze_Sensitivity(t *testing.T) {
	r, err := Analyze(buildTestNetwork(t), fixedAggregate(), Options{})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	got := make([]string, len(r.Sensitivity))
	for i, s := range r.Sensitivity {
		got[i] = s.TaskID
	}
	if !slices.Equal(got, []string{"a", "c", "b"}) {
		t.Fatalf("expected impact order [a c b], got %v", got)
	}

	a, c, b := r.Sensitivity[0], r.Sensitivity[1], r.Sensitivity[2]
	if math.Abs(a.Correlation-1) > 1e-6 || !approx(a.Variance, 8.25) || a.RiskLevel != "High" {
		t.Errorf("unexpected sensitivity for a: %+v", a)
	}
	if !approx(c.Variance, 2.0625) || math.Abs(c.ImpactScore-2.0625) > 1e-6 {
		t.Errorf("unexpected sensitivity for c: %+v", c)
	}
	if b.Correlation != 0 || b.Variance != 0 || b.ImpactScore != 0 || b.RiskLevel != "Low" {
		t.Errorf("constant task should have zero sensitivity, got %+v", b)
	}
}

func TestAnalyze_ConstantProjectHasNoCorrelation(t *testing.T) {
	agg := &simulation.Aggregate{
		Durations:      []float64{5, 5, 5, 5},
		CriticalCounts: []int{4, 0, 0},
		TaskDurations:  [][]float64{{5, 5, 5, 5}, {3, 3, 3, 3}, {1, 2, 3, 4}},
		Runs:           4,
	}
	agg.Finalize()

	r, err := Analyze(buildTestNetwork(t), agg, Options{})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	for _, s := range r.Sensitivity {
		if s.Correlation != 0 || math.IsNaN(s.ImpactScore) {
			t.Errorf("task %s: expected zero correlation, got %+v", s.TaskID, s)
		}
	}
	if r.Percentiles.StdDev != 0 {
		t.Errorf("expected zero std, got %v", r.Percentiles.StdDev)
	}
}

func TestAnalyze_Risk(t *testing.T) {
	r, err := Analyze(buildTestNetwork(t), fixedAggregate(), Options{Baseline: 7})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	risk := r.Risk
	if !approx(risk.ProbabilityOverMean, 0.5) {
		t.Errorf("P(>mean) = %v, want 0.5", risk.ProbabilityOverMean)
	}
	if !approx(risk.ProbabilityOver150Percent, 0.2) {
		t.Errorf("P(>150%%) = %v, want 0.2", risk.ProbabilityOver150Percent)
	}
	if risk.ProbabilityOver200Percent != 0 {
		t.Errorf("P(>200%%) = %v, want 0", risk.ProbabilityOver200Percent)
	}
	if !approx(risk.ValueAtRisk95, 9.55) || !approx(risk.ExpectedShortfall95, 10) {
		t.Errorf("unexpected VaR/ES: %v / %v", risk.ValueAtRisk95, risk.ExpectedShortfall95)
	}
	if risk.Baseline != 7 || !approx(risk.ProbabilityOverBaseline, 0.3) {
		t.Errorf("unexpected baseline comparison %v / %v", risk.Baseline, risk.ProbabilityOverBaseline)
	}
}

func TestAnalyze_Categories(t *testing.T) {
	r, err := Analyze(buildTestNetwork(t), fixedAggregate(), Options{})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(r.Categories) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(r.Categories))
	}

	dev, qa := r.Categories[0], r.Categories[1]
	if dev.Category != "dev" || dev.TaskCount != 2 {
		t.Errorf("unexpected dev stats %+v", dev)
	}
	// a (1..10) pooled with b (ten 3s)
	if !approx(dev.MeanDuration, 4.25) || !approx(dev.AvgCriticality, 80) || !approx(dev.MaxCriticality, 100) {
		t.Errorf("unexpected dev stats %+v", dev)
	}
	if !approx(dev.RiskContribution, dev.StdDuration*dev.StdDuration) {
		t.Errorf("risk contribution should be the pooled variance, got %+v", dev)
	}
	if qa.Category != "qa" || qa.TaskCount != 1 || !approx(qa.MeanDuration, 2.75) || !approx(qa.MaxCriticality, 10) {
		t.Errorf("unexpected qa stats %+v", qa)
	}
}

func TestAnalyze_Buffers(t *testing.T) {
	r, err := Analyze(buildTestNetwork(t), fixedAggregate(), Options{})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	tests := []struct {
		scenario string
		target   float64
		buffer   float64
		success  float64
	}{
		{ScenarioAggressive, 5.5, 0, 50},
		{ScenarioModerate, 7.75, 2.25, 75},
		{ScenarioConservative, 9.1, 3.6, 90},
		{ScenarioVeryConservative, 9.55, 4.05, 95},
	}
	for _, tt := range tests {
		b, ok := r.Buffer(tt.scenario)
		if !ok {
			t.Fatalf("missing scenario %s", tt.scenario)
		}
		if !approx(b.Target, tt.target) || !approx(b.Buffer, tt.buffer) || b.SuccessProbability != tt.success {
			t.Errorf("%s: got %+v", tt.scenario, b)
		}
		if b.Description == "" || b.RecommendedFor == "" {
			t.Errorf("%s: missing labels", tt.scenario)
		}
	}
	if _, ok := r.Buffer("reckless"); ok {
		t.Error("expected unknown scenario to be missing")
	}
}

func TestAnalyze_SimulatedPercentilesOrdered(t *testing.T) {
	n, err := graph.Build([]taskfile.Record{
		{ID: "brief", Optimistic: 1, MostLikely: 2, Pessimistic: 6},
		{ID: "build", Predecessors: []string{"brief"}, Optimistic: 4, MostLikely: 6, Pessimistic: 14},
		{ID: "docs", Predecessors: []string{"brief"}, Optimistic: 2, MostLikely: 5, Pessimistic: 9},
		{ID: "ship", Predecessors: []string{"build", "docs"}, Optimistic: 1, MostLikely: 1, Pessimistic: 2},
	})
	if err != nil {
		t.Fatalf("build network: %v", err)
	}
	e, err := simulation.New(n, simulation.Options{Sampler: sampler.PERT{}, Seed: 17})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	agg, err := e.Run(context.Background(), 2000)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	r, err := Analyze(n, agg, Options{})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	pts := r.Percentiles.Points()
	for i := 1; i < len(pts); i++ {
		if pts[i].Value < pts[i-1].Value {
			t.Errorf("%s (%v) < %s (%v)", pts[i].Name, pts[i].Value, pts[i-1].Name, pts[i-1].Value)
		}
	}
	if r.Summary.MinDuration > r.Percentiles.P10 || r.Summary.MaxDuration < r.Percentiles.P95 {
		t.Errorf("percentiles outside observed range: %+v %+v", r.Summary, r.Percentiles)
	}

	// brief and ship are on every path
	for _, id := range []string{"brief", "ship"} {
		found := false
		for _, tc := range r.CriticalTasks {
			if tc.TaskID == id {
				found = tc.Criticality == 100
			}
		}
		if !found {
			t.Errorf("expected %s to be critical in every run", id)
		}
	}
}
