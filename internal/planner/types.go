package planner

import "time"

// Duration estimates a baseline plan can be built from.
const (
	EstimateMean       = "mean"        // PERT mean (O + 4M + P) / 6
	EstimateMostLikely = "most_likely" // single-point most likely estimate
)

// TaskDeps holds per-task predecessor and successor lists for dependency tracking.
type TaskDeps struct {
	Predecessors map[string][]string `json:"predecessors"`
	Successors   map[string][]string `json:"successors"`
}

// BaselinePlan is the deterministic schedule the simulation is compared to.
type BaselinePlan struct {
	ID           string                  `json:"id"`
	CreatedAt    time.Time               `json:"created_at"`
	TotalTasks   int                     `json:"total_tasks"`
	TotalWaves   int                     `json:"total_waves"`
	Duration     float64                 `json:"duration"`
	CriticalPath []string                `json:"critical_path"`
	Waves        []PlanWave              `json:"waves"`
	Tasks        map[string]*PlannedTask `json:"tasks"`
	Deps         TaskDeps                `json:"deps"`
	Config       PlanConfig              `json:"config"`
}

// PlanWave is a group of tasks sharing an earliest start time.
type PlanWave struct {
	Index      int           `json:"index"`
	Start      float64       `json:"start"`
	IsCritical bool          `json:"is_critical"`
	Tasks      []PlannedTask `json:"tasks"`
	DependsOn  []int         `json:"depends_on"`
}

// PlannedTask is a single task with its baseline schedule.
type PlannedTask struct {
	TaskID     string   `json:"task_id"`
	Name       string   `json:"name"`
	Category   string   `json:"category"`
	Resources  []string `json:"resources,omitempty"`
	Duration   float64  `json:"duration"`
	ES         float64  `json:"es"`
	EF         float64  `json:"ef"`
	Slack      float64  `json:"slack"`
	IsCritical bool     `json:"is_critical"`
	WaveIndex  int      `json:"wave_index"`
}

// PlanConfig holds configuration for baseline planning.
type PlanConfig struct {
	Estimate        string `json:"estimate"`
	DOTTemplatePath string `json:"dot_template_path,omitempty"`
}
