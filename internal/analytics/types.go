package analytics

import "errors"

const (
	DefaultCriticalityThreshold = 50.0
	DefaultHistogramBins        = 50
)

// DefaultConfidenceLevels is used when Options.ConfidenceLevels is empty.
var DefaultConfidenceLevels = []float64{0.80, 0.90, 0.95}

var (
	ErrNotFinalized      = errors.New("aggregate not finalized")
	ErrNoData            = errors.New("no simulation runs to analyze")
	ErrInvalidConfidence = errors.New("confidence level must be in (0, 1)")
	ErrTaskMismatch      = errors.New("aggregate does not match network")
)

// Scenario names for buffer recommendations, ordered by risk tolerance.
const (
	ScenarioAggressive       = "aggressive"
	ScenarioModerate         = "moderate"
	ScenarioConservative     = "conservative"
	ScenarioVeryConservative = "very_conservative"
)

// Options tunes Analyze.
type Options struct {
	ConfidenceLevels     []float64
	CriticalityThreshold float64 // percent; zero uses DefaultCriticalityThreshold
	Baseline             float64 // deterministic duration to compare against; zero skips
	HistogramBins        int     // zero uses DefaultHistogramBins
}

// Result is the full statistical analysis of one simulation.
type Result struct {
	Summary             Summary              `json:"project_summary"`
	Percentiles         Percentiles          `json:"percentiles"`
	ConfidenceIntervals []ConfidenceInterval `json:"confidence_intervals"`
	Tasks               []TaskCriticality    `json:"tasks"`
	CriticalTasks       []TaskCriticality    `json:"critical_tasks"`
	Sensitivity         []Sensitivity        `json:"sensitivity_analysis"`
	Risk                Risk                 `json:"risk_analysis"`
	Categories          []CategoryStats      `json:"category_analysis"`
	Buffers             []Buffer             `json:"buffer_recommendations"`
	Histogram           []Bin                `json:"histogram"`
	Cumulative          []CumulativePoint    `json:"-"`
}

// Summary describes the project and the spread of simulated durations.
type Summary struct {
	TotalTasks   int     `json:"total_tasks"`
	Runs         int     `json:"simulation_runs"`
	MeanDuration float64 `json:"mean_duration"`
	StdDuration  float64 `json:"std_duration"`
	MinDuration  float64 `json:"min_duration"`
	MaxDuration  float64 `json:"max_duration"`
}

// Percentiles of the project duration distribution. StdDev is the
// population standard deviation.
type Percentiles struct {
	P10    float64 `json:"P10"`
	P25    float64 `json:"P25"`
	P50    float64 `json:"P50"`
	P75    float64 `json:"P75"`
	P80    float64 `json:"P80"`
	P90    float64 `json:"P90"`
	P95    float64 `json:"P95"`
	Mean   float64 `json:"Mean"`
	StdDev float64 `json:"StdDev"`
}

// Point is a named percentile value.
type Point struct {
	Name  string
	Value float64
}

// Points lists the percentiles in ascending order.
func (p Percentiles) Points() []Point {
	return []Point{
		{"P10", p.P10},
		{"P25", p.P25},
		{"P50", p.P50},
		{"P75", p.P75},
		{"P80", p.P80},
		{"P90", p.P90},
		{"P95", p.P95},
	}
}

type ConfidenceInterval struct {
	Label string  `json:"label"` // e.g. "90%"
	Level float64 `json:"level"`
	Lower float64 `json:"lower_bound"`
	Upper float64 `json:"upper_bound"`
	Range float64 `json:"range"`
}

// TaskCriticality is how often a task was critical, with its PERT moments.
type TaskCriticality struct {
	TaskID       string  `json:"task_id"`
	Name         string  `json:"task_name"`
	Category     string  `json:"category"`
	Criticality  float64 `json:"criticality_percentage"`
	MeanDuration float64 `json:"mean_duration"`
	StdDuration  float64 `json:"std_duration"`
	Priority     string  `json:"priority_level"`
	Allocation   string  `json:"resource_allocation"`
}

// Sensitivity measures how strongly a task's duration drives the project's.
type Sensitivity struct {
	TaskID      string  `json:"task_id"`
	Name        string  `json:"task_name"`
	Category    string  `json:"category"`
	Correlation float64 `json:"correlation"`
	Variance    float64 `json:"variance"`
	ImpactScore float64 `json:"impact_score"`
	Criticality float64 `json:"criticality_percentage"`
	RiskLevel   string  `json:"risk_level"`
}

type Risk struct {
	ProbabilityOverMean       float64 `json:"probability_over_mean"`
	ProbabilityOver150Percent float64 `json:"probability_over_150_percent"`
	ProbabilityOver200Percent float64 `json:"probability_over_200_percent"`
	ValueAtRisk95             float64 `json:"value_at_risk_95"`
	ExpectedShortfall95       float64 `json:"expected_shortfall_95"`
	Baseline                  float64 `json:"baseline,omitempty"`
	ProbabilityOverBaseline   float64 `json:"probability_over_baseline,omitempty"`
}

// CategoryStats pools every sampled duration of the tasks in one category.
type CategoryStats struct {
	Category         string  `json:"category"`
	TaskCount        int     `json:"task_count"`
	MeanDuration     float64 `json:"total_duration_mean"`
	StdDuration      float64 `json:"total_duration_std"`
	AvgCriticality   float64 `json:"avg_criticality"`
	MaxCriticality   float64 `json:"max_criticality"`
	RiskContribution float64 `json:"risk_contribution"`
}

// Buffer is a schedule target for one level of risk tolerance.
type Buffer struct {
	Scenario           string  `json:"scenario"`
	Target             float64 `json:"target"`
	Buffer             float64 `json:"buffer"`
	SuccessProbability float64 `json:"success_probability"`
	Description        string  `json:"description"`
	RecommendedFor     string  `json:"recommended_for"`
}

// Bin is one histogram bucket, [Lower, Upper) except the last which is closed.
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// CumulativePoint is one sorted duration and the fraction of runs at or below it.
type CumulativePoint struct {
	Duration    float64
	Probability float64
}

// Buffer returns the recommendation for scenario, or false.
func (r *Result) Buffer(scenario string) (Buffer, bool) {
	for _, b := range r.Buffers {
		if b.Scenario == scenario {
			return b, true
		}
	}
	return Buffer{}, false
}
