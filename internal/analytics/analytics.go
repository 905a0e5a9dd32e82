// Package analytics turns a finalized simulation aggregate into percentiles,
// confidence intervals, task criticality, sensitivity, risk measures and
// buffer recommendations.
package analytics

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/joshharrison/pertsim/internal/graph"
	"github.com/joshharrison/pertsim/internal/simulation"
)

// Analyze computes the full Result for agg, which must be finalized and
// non-empty and must come from a simulation over net.
func Analyze(net *graph.Network, agg *simulation.Aggregate, opts Options) (*Result, error) {
	if agg == nil {
		return nil, ErrNoData
	}
	if !agg.Finalized() {
		return nil, ErrNotFinalized
	}
	if agg.Runs == 0 || len(agg.Durations) == 0 {
		return nil, ErrNoData
	}
	if net == nil || len(agg.CriticalCounts) != net.TaskCount() {
		return nil, ErrTaskMismatch
	}

	levels := opts.ConfidenceLevels
	if len(levels) == 0 {
		levels = DefaultConfidenceLevels
	}
	for _, c := range levels {
		if !(c > 0 && c < 1) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfidence, c)
		}
	}
	threshold := opts.CriticalityThreshold
	if threshold == 0 {
		threshold = DefaultCriticalityThreshold
	}
	bins := opts.HistogramBins
	if bins <= 0 {
		bins = DefaultHistogramBins
	}

	sorted := slices.Clone(agg.Durations)
	slices.Sort(sorted)

	r := &Result{}
	r.Percentiles = percentiles(sorted)
	r.Summary = Summary{
		TotalTasks:   net.TaskCount(),
		Runs:         agg.Runs,
		MeanDuration: r.Percentiles.Mean,
		StdDuration:  r.Percentiles.StdDev,
		MinDuration:  sorted[0],
		MaxDuration:  sorted[len(sorted)-1],
	}
	r.ConfidenceIntervals = confidenceIntervals(sorted, levels)
	r.Tasks = taskCriticality(net, agg)
	for _, tc := range r.Tasks {
		if tc.Criticality > threshold {
			r.CriticalTasks = append(r.CriticalTasks, tc)
		}
	}
	r.Sensitivity = sensitivity(net, agg)
	r.Risk = risk(sorted, r.Percentiles, opts.Baseline)
	r.Categories = categories(net, agg)
	r.Buffers = buffers(r.Percentiles)
	r.Histogram = Histogram(sorted, bins)
	r.Cumulative = Cumulative(sorted)
	return r, nil
}

func percentiles(sorted []float64) Percentiles {
	mean, std := popStats(sorted)
	return Percentiles{
		P10:    Percentile(sorted, 10),
		P25:    Percentile(sorted, 25),
		P50:    Percentile(sorted, 50),
		P75:    Percentile(sorted, 75),
		P80:    Percentile(sorted, 80),
		P90:    Percentile(sorted, 90),
		P95:    Percentile(sorted, 95),
		Mean:   mean,
		StdDev: std,
	}
}

func confidenceIntervals(sorted []float64, levels []float64) []ConfidenceInterval {
	out := make([]ConfidenceInterval, 0, len(levels))
	for _, c := range levels {
		alpha := 1 - c
		lower := Percentile(sorted, alpha/2*100)
		upper := Percentile(sorted, (1-alpha/2)*100)
		out = append(out, ConfidenceInterval{
			Label: fmt.Sprintf("%.0f%%", c*100),
			Level: c,
			Lower: lower,
			Upper: upper,
			Range: upper - lower,
		})
	}
	return out
}

// taskCriticality lists every task, most critical first. Ties keep network
// order.
func taskCriticality(net *graph.Network, agg *simulation.Aggregate) []TaskCriticality {
	out := make([]TaskCriticality, net.TaskCount())
	for i, t := range net.Tasks {
		crit := agg.Criticality[i]
		out[i] = TaskCriticality{
			TaskID:       t.ID,
			Name:         t.Name,
			Category:     t.Category,
			Criticality:  crit,
			MeanDuration: t.Mean(),
			StdDuration:  t.StdDev(),
			Priority:     Priority(crit),
			Allocation:   Allocation(crit),
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Criticality > out[j].Criticality
	})
	return out
}

// sensitivity scores each task by |corr(task, project)| times the task's
// population variance. A constant series on either side has no correlation.
func sensitivity(net *graph.Network, agg *simulation.Aggregate) []Sensitivity {
	projectConstant := constant(agg.Durations)

	out := make([]Sensitivity, net.TaskCount())
	for i, t := range net.Tasks {
		series := agg.TaskDurations[i]
		_, variance := popMeanVariance(series)

		corr := 0.0
		if !projectConstant && !constant(series) {
			corr = stat.Correlation(series, agg.Durations, nil)
			if math.IsNaN(corr) {
				corr = 0
			}
		}
		impact := math.Abs(corr) * variance

		out[i] = Sensitivity{
			TaskID:      t.ID,
			Name:        t.Name,
			Category:    t.Category,
			Correlation: corr,
			Variance:    variance,
			ImpactScore: impact,
			Criticality: agg.Criticality[i],
			RiskLevel:   RiskLevel(impact),
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ImpactScore > out[j].ImpactScore
	})
	return out
}

func risk(sorted []float64, p Percentiles, baseline float64) Risk {
	var tail []float64
	for _, d := range sorted {
		if d >= p.P95 {
			tail = append(tail, d)
		}
	}

	r := Risk{
		ProbabilityOverMean:       fractionAbove(sorted, p.Mean),
		ProbabilityOver150Percent: fractionAbove(sorted, 1.5*p.Mean),
		ProbabilityOver200Percent: fractionAbove(sorted, 2*p.Mean),
		ValueAtRisk95:             p.P95,
		ExpectedShortfall95:       stat.Mean(tail, nil),
	}
	if baseline > 0 {
		r.Baseline = baseline
		r.ProbabilityOverBaseline = fractionAbove(sorted, baseline)
	}
	return r
}

// categories pools task samples and criticalities by category, in the order
// categories first appear in the network.
func categories(net *graph.Network, agg *simulation.Aggregate) []CategoryStats {
	var out []CategoryStats
	for _, cat := range net.Categories() {
		var (
			durations []float64
			crits     []float64
		)
		for i, t := range net.Tasks {
			if t.Category != cat {
				continue
			}
			durations = append(durations, agg.TaskDurations[i]...)
			crits = append(crits, agg.Criticality[i])
		}

		mean, variance := popMeanVariance(durations)
		out = append(out, CategoryStats{
			Category:         cat,
			TaskCount:        len(crits),
			MeanDuration:     mean,
			StdDuration:      math.Sqrt(variance),
			AvgCriticality:   stat.Mean(crits, nil),
			MaxCriticality:   floats.Max(crits),
			RiskContribution: variance,
		})
	}
	return out
}

func buffers(p Percentiles) []Buffer {
	return []Buffer{
		{
			Scenario:           ScenarioAggressive,
			Target:             p.P50,
			SuccessProbability: 50,
			Description:        "No buffer - 50% chance of success",
			RecommendedFor:     "Internal stretch goals",
		},
		{
			Scenario:           ScenarioModerate,
			Target:             p.P75,
			Buffer:             p.P75 - p.Mean,
			SuccessProbability: 75,
			Description:        "Moderate buffer - 75% chance of success",
			RecommendedFor:     "Team planning",
		},
		{
			Scenario:           ScenarioConservative,
			Target:             p.P90,
			Buffer:             p.P90 - p.Mean,
			SuccessProbability: 90,
			Description:        "Conservative buffer - 90% chance of success",
			RecommendedFor:     "Client commitments",
		},
		{
			Scenario:           ScenarioVeryConservative,
			Target:             p.P95,
			Buffer:             p.P95 - p.Mean,
			SuccessProbability: 95,
			Description:        "Very conservative - 95% chance of success",
			RecommendedFor:     "High-risk projects",
		},
	}
}

// Priority labels a task by the percentage of runs it was critical in.
func Priority(criticality float64) string {
	switch {
	case criticality > 80:
		return "Critical"
	case criticality > 50:
		return "High"
	case criticality > 20:
		return "Medium"
	default:
		return "Low"
	}
}

// Allocation suggests how to staff a task of the given criticality.
func Allocation(criticality float64) string {
	switch {
	case criticality > 80:
		return "Best resources"
	case criticality > 20:
		return "Monitor closely"
	default:
		return "Standard"
	}
}

// RiskLevel labels a sensitivity impact score.
func RiskLevel(impact float64) string {
	switch {
	case impact > 1:
		return "High"
	case impact > 0.3:
		return "Medium"
	default:
		return "Low"
	}
}
