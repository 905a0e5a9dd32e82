// Package planner builds the deterministic baseline schedule: one critical
// path analysis over fixed task durations, grouped into waves.
package planner

import (
	"fmt"
	"time"

	"github.com/joshharrison/pertsim/internal/cpm"
	"github.com/joshharrison/pertsim/internal/graph"
)

// Generate runs a critical path analysis over the configured point estimates
// and lays the result out as a BaselinePlan.
func Generate(net *graph.Network, config PlanConfig) (*BaselinePlan, error) {
	if config.Estimate == "" {
		config.Estimate = EstimateMean
	}

	durations, err := Durations(net, config.Estimate)
	if err != nil {
		return nil, err
	}
	result, err := cpm.Analyze(net, durations)
	if err != nil {
		return nil, fmt.Errorf("baseline analysis: %w", err)
	}

	plan := &BaselinePlan{
		ID:           fmt.Sprintf("plan-%s", time.Now().Format("2006-01-02-150405")),
		CreatedAt:    time.Now(),
		TotalTasks:   net.TaskCount(),
		TotalWaves:   len(result.Waves),
		Duration:     result.ProjectDuration,
		CriticalPath: result.CriticalPath,
		Tasks:        make(map[string]*PlannedTask, net.TaskCount()),
		Deps: TaskDeps{
			Predecessors: make(map[string][]string, net.TaskCount()),
			Successors:   make(map[string][]string, net.TaskCount()),
		},
		Config: config,
	}

	for i, t := range net.Tasks {
		plan.Deps.Predecessors[t.ID] = net.IDs(net.Preds[i])
		plan.Deps.Successors[t.ID] = net.IDs(net.Succs[i])
	}

	for _, wave := range result.Waves {
		pw := PlanWave{
			Index:      wave.Index,
			Start:      wave.Start,
			IsCritical: wave.IsCritical,
		}

		// Each wave depends on all previous waves
		if wave.Index > 0 {
			pw.DependsOn = []int{wave.Index - 1}
		}

		for _, taskID := range wave.TaskIDs {
			task := net.Task(taskID)
			schedule := result.Tasks[taskID]

			pt := PlannedTask{
				TaskID:     taskID,
				Name:       task.Name,
				Category:   task.Category,
				Resources:  task.Resources,
				Duration:   schedule.Duration,
				ES:         schedule.ES,
				EF:         schedule.EF,
				Slack:      schedule.Slack,
				IsCritical: schedule.IsCritical,
				WaveIndex:  wave.Index,
			}
			pw.Tasks = append(pw.Tasks, pt)
			plan.Tasks[taskID] = &pt
		}

		plan.Waves = append(plan.Waves, pw)
	}

	return plan, nil
}

// Durations returns one point estimate per task, in network order.
func Durations(net *graph.Network, estimate string) ([]float64, error) {
	switch estimate {
	case EstimateMean:
		return cpm.MeanDurations(net), nil
	case EstimateMostLikely:
		d := make([]float64, net.TaskCount())
		for i, t := range net.Tasks {
			d[i] = t.MostLikely
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown estimate %q (want %s or %s)", estimate, EstimateMean, EstimateMostLikely)
	}
}
