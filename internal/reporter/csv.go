package reporter

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joshharrison/pertsim/internal/analytics"
)

// CSV files written by ExportCSV.
const (
	DistributionCSV = "project_duration_distribution.csv"
	PercentilesCSV  = "percentiles_and_buffers.csv"
	CriticalityCSV  = "task_criticality.csv"
	SensitivityCSV  = "sensitivity_analysis.csv"
	CategoryCSV     = "category_analysis.csv"
	ScenarioCSV     = "scenario_planning.csv"
)

var percentileUseCases = map[string]string{
	"P10": "Optimistic scenario",
	"P25": "Aggressive planning",
	"P50": "Baseline estimate",
	"P75": "Internal planning",
	"P80": "Moderate buffer",
	"P90": "External commitments",
	"P95": "Conservative buffer",
}

// ExportCSV writes the analysis as a set of CSV tables into dir and returns
// the paths written.
func (r *Reporter) ExportCSV(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	a := r.analysis()
	tables := []struct {
		name    string
		headers []string
		rows    [][]string
	}{
		{DistributionCSV, []string{"Duration_Days", "Frequency", "Cumulative_Probability"}, distributionRows(a)},
		{PercentilesCSV, []string{"Percentile", "Days", "Buffer_Days", "Buffer_Percentage", "Use_Case"}, percentileRows(a)},
		{CriticalityCSV, []string{"Task_ID", "Task_Name", "Category", "Criticality_Percentage", "Priority_Level", "Resource_Allocation"}, criticalityRows(a)},
		{SensitivityCSV, []string{"Task_ID", "Task_Name", "Category", "Impact_Score", "Correlation", "Variance", "Risk_Level"}, sensitivityRows(a)},
		{CategoryCSV, []string{"Category", "Task_Count", "Mean_Duration", "Std_Duration", "Risk_Contribution", "Avg_Criticality"}, categoryRows(a)},
		{ScenarioCSV, []string{"Scenario", "Target_Days", "Success_Probability", "Buffer_Days", "Recommended_For"}, scenarioRows(a)},
	}

	paths := make([]string, 0, len(tables))
	for _, tbl := range tables {
		path := filepath.Join(dir, tbl.name)
		if err := writeCSV(path, tbl.headers, tbl.rows); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeCSV(path string, headers []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, record := range rows {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// distributionRows uses histogram bin midpoints as the duration.
func distributionRows(a *analytics.Result) [][]string {
	total := 0
	for _, b := range a.Histogram {
		total += b.Count
	}

	rows := make([][]string, 0, len(a.Histogram))
	seen := 0
	for _, b := range a.Histogram {
		seen += b.Count
		cum := 0.0
		if total > 0 {
			cum = float64(seen) / float64(total)
		}
		rows = append(rows, []string{
			ff((b.Lower+b.Upper)/2, 2),
			strconv.Itoa(b.Count),
			ff(cum, 4),
		})
	}
	return rows
}

// percentileRows reports each percentile's buffer over the median.
func percentileRows(a *analytics.Result) [][]string {
	p50 := a.Percentiles.P50
	var rows [][]string
	for _, p := range a.Percentiles.Points() {
		buf := p.Value - p50
		pct := 0.0
		if p50 != 0 {
			pct = buf / p50 * 100
		}
		rows = append(rows, []string{p.Name, ff(p.Value, 1), ff(buf, 1), ff(pct, 1), percentileUseCases[p.Name]})
	}
	return rows
}

func criticalityRows(a *analytics.Result) [][]string {
	rows := make([][]string, 0, len(a.Tasks))
	for _, tc := range a.Tasks {
		rows = append(rows, []string{tc.TaskID, tc.Name, tc.Category, ff(tc.Criticality, 1), tc.Priority, tc.Allocation})
	}
	return rows
}

func sensitivityRows(a *analytics.Result) [][]string {
	rows := make([][]string, 0, len(a.Sensitivity))
	for _, s := range a.Sensitivity {
		rows = append(rows, []string{s.TaskID, s.Name, s.Category, ff(s.ImpactScore, 3), ff(s.Correlation, 3), ff(s.Variance, 2), s.RiskLevel})
	}
	return rows
}

func categoryRows(a *analytics.Result) [][]string {
	rows := make([][]string, 0, len(a.Categories))
	for _, c := range a.Categories {
		rows = append(rows, []string{c.Category, strconv.Itoa(c.TaskCount), ff(c.MeanDuration, 1), ff(c.StdDuration, 1), ff(c.RiskContribution, 1), ff(c.AvgCriticality, 1)})
	}
	return rows
}

func scenarioRows(a *analytics.Result) [][]string {
	rows := make([][]string, 0, len(a.Buffers))
	for _, b := range a.Buffers {
		rows = append(rows, []string{scenarioLabel(b.Scenario), ff(b.Target, 1), ff(b.SuccessProbability, 0) + "%", ff(b.Buffer, 1), b.RecommendedFor})
	}
	return rows
}

// scenarioLabel turns "very_conservative" into "Very_Conservative".
func scenarioLabel(s string) string {
	parts := strings.Split(s, "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, "_")
}

func ff(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
