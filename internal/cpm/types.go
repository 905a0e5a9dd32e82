package cpm

import "errors"

// CriticalTolerance is the largest |total float| at which a task still counts
// as critical. Float sums rarely cancel to exactly zero.
const CriticalTolerance = 1e-3

var (
	ErrNoTasks            = errors.New("network has no tasks")
	ErrNoDurations        = errors.New("no durations set for this iteration")
	ErrDurationCount      = errors.New("duration count does not match task count")
	ErrForwardPassPending = errors.New("forward pass has not completed")
)

// Result is the outcome of one network calculation.
type Result struct {
	ProjectDuration    float64  `json:"project_duration"`
	CriticalPath       []string `json:"critical_path"` // critical task ids in topological order
	CriticalPathLength int      `json:"critical_path_length"`
	TotalTasks         int      `json:"total_tasks"`
}

// Schedule holds the per-iteration state of every task, indexed by the
// network's task order. A Schedule belongs to a single goroutine; parallel
// simulations give each worker its own.
type Schedule struct {
	Duration    []float64
	EarlyStart  []float64
	EarlyFinish []float64
	LateStart   []float64
	LateFinish  []float64
	TotalFloat  []float64
	Critical    []bool

	ProjectDuration float64
	Order           []int // topological order used by the last forward pass

	sampled     bool
	forwardDone bool
	inDegree    []int
}

// TaskSchedule is the schedule of a single task in an Analysis.
type TaskSchedule struct {
	TaskID     string  `json:"task_id"`
	Duration   float64 `json:"duration"`
	ES         float64 `json:"early_start"`
	EF         float64 `json:"early_finish"`
	LS         float64 `json:"late_start"`
	LF         float64 `json:"late_finish"`
	Slack      float64 `json:"total_float"`
	IsCritical bool    `json:"is_critical"`
	Wave       int     `json:"wave"`
}

// Analysis is a one-off critical path analysis with tasks grouped into waves.
type Analysis struct {
	Result
	Tasks     map[string]*TaskSchedule `json:"tasks"`
	Waves     []Wave                   `json:"waves"`
	TopoOrder []string                 `json:"topo_order"`
}

// Wave is a group of tasks sharing an early start time.
type Wave struct {
	Index      int      `json:"index"`
	Start      float64  `json:"start"`
	TaskIDs    []string `json:"task_ids"`
	IsCritical bool     `json:"is_critical"` // true if the wave contains critical tasks
}
