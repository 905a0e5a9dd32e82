package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/joshharrison/pertsim/internal/analytics"
	"github.com/joshharrison/pertsim/internal/planner"
	"github.com/joshharrison/pertsim/internal/state"
	"github.com/joshharrison/pertsim/internal/ui"
)

const defaultTopN = 5

// Reporter renders a simulation run for terminals, JSON consumers and CSV.
type Reporter struct {
	Record *state.RunRecord
	Plan   *planner.BaselinePlan // optional
	TopN   int
}

// New creates a new Reporter. plan may be nil.
func New(rec *state.RunRecord, plan *planner.BaselinePlan) *Reporter {
	return &Reporter{
		Record: rec,
		Plan:   plan,
		TopN:   defaultTopN,
	}
}

func (r *Reporter) analysis() *analytics.Result {
	return r.Record.Analysis
}

func (r *Reporter) topN(n int) int {
	if r.TopN > 0 && r.TopN < n {
		return r.TopN
	}
	return n
}

// PrintSummaryReport writes the executive summary to the given writer and
// also returns it as a string.
func (r *Reporter) PrintSummaryReport(w io.Writer) string {
	var b strings.Builder
	mw := io.MultiWriter(w, &b) // write to both output and capture

	a := r.analysis()
	rec := r.Record

	// --- Header ---
	statusText := ui.BoldGreen("completed")
	statusEmoji := "✅"
	if rec.Status == state.StatusCancelled {
		statusText = ui.Yellow("cancelled")
		statusEmoji = "🚫"
	}

	fmt.Fprintf(mw, "\n%s %s\n", statusEmoji, ui.BoldCyan("Monte Carlo Schedule Analysis"))
	fmt.Fprintf(mw, "%s\n", ui.Cyan("══════════════════════════════"))
	fmt.Fprintf(mw, "Run:       %s\n", ui.Dim(rec.RunID))
	fmt.Fprintf(mw, "Tasks:     %s (%d tasks)\n", rec.TaskFile, a.Summary.TotalTasks)
	fmt.Fprintf(mw, "Status:    %s\n", statusText)
	fmt.Fprintf(mw, "Runs:      %d of %d  %s\n", a.Summary.Runs, rec.Runs,
		ui.Dim(fmt.Sprintf("[sampler %s, seed %d, %s]", rec.Sampler, rec.Seed, rec.Elapsed)))

	// --- Duration ---
	fmt.Fprintf(mw, "\n📊 %s\n", ui.BoldWhite("Project duration"))
	fmt.Fprintf(mw, "   Mean:      %s days\n", ui.Bold(fmt.Sprintf("%.1f", a.Percentiles.Mean)))
	fmt.Fprintf(mw, "   Std dev:   ±%.1f days\n", a.Percentiles.StdDev)
	fmt.Fprintf(mw, "   Range:     %.1f - %.1f days\n", a.Summary.MinDuration, a.Summary.MaxDuration)
	if r.Plan != nil {
		fmt.Fprintf(mw, "   Baseline:  %.1f days %s\n", r.Plan.Duration,
			ui.Dim(fmt.Sprintf("(deterministic, %s estimates)", r.Plan.Config.Estimate)))
	}

	fmt.Fprintf(mw, "\n📈 %s\n", ui.BoldWhite("Key percentiles"))
	for _, p := range a.Percentiles.Points() {
		switch p.Name {
		case "P50", "P75", "P80", "P90", "P95":
			fmt.Fprintf(mw, "   %-4s %6.1f days\n", p.Name, p.Value)
		}
	}

	fmt.Fprintf(mw, "\n🎯 %s\n", ui.BoldWhite("Confidence intervals"))
	for _, ci := range a.ConfidenceIntervals {
		fmt.Fprintf(mw, "   %-4s %.1f - %.1f days %s\n", ci.Label, ci.Lower, ci.Upper,
			ui.Dim(fmt.Sprintf("(range %.1f)", ci.Range)))
	}

	// --- Risk ---
	risk := a.Risk
	fmt.Fprintf(mw, "\n⚠️  %s\n", ui.BoldWhite("Risk"))
	fmt.Fprintf(mw, "   P(exceed mean):     %5.1f%%\n", risk.ProbabilityOverMean*100)
	fmt.Fprintf(mw, "   P(exceed 150%%):     %5.1f%%\n", risk.ProbabilityOver150Percent*100)
	fmt.Fprintf(mw, "   P(exceed 200%%):     %5.1f%%\n", risk.ProbabilityOver200Percent*100)
	if risk.Baseline > 0 {
		fmt.Fprintf(mw, "   P(exceed baseline): %s\n", ui.Yellow(fmt.Sprintf("%5.1f%%", risk.ProbabilityOverBaseline*100)))
	}
	fmt.Fprintf(mw, "   VaR 95%%:            %.1f days\n", risk.ValueAtRisk95)
	fmt.Fprintf(mw, "   Expected shortfall: %.1f days\n", risk.ExpectedShortfall95)

	// --- Critical tasks ---
	fmt.Fprintf(mw, "\n🔥 %s\n", ui.BoldWhite("Top critical tasks"))
	if len(a.CriticalTasks) == 0 {
		fmt.Fprintf(mw, "   %s\n", ui.Dim("No task is critical above the threshold"))
	}
	for i, tc := range a.CriticalTasks[:r.topN(len(a.CriticalTasks))] {
		fmt.Fprintf(mw, "   %d. %s %-30s %s %5.1f%% %s\n", i+1,
			ui.BoldYellow("⚡"), truncate(displayName(tc.TaskID, tc.Name), 30),
			ui.Dim(tc.Category), tc.Criticality, ui.Priority(tc.Priority))
	}

	fmt.Fprintf(mw, "\n🧭 %s\n", ui.BoldWhite("Top risk drivers"))
	for i, s := range a.Sensitivity[:r.topN(len(a.Sensitivity))] {
		fmt.Fprintf(mw, "   %d. %-30s impact %.3f  %s\n", i+1,
			truncate(displayName(s.TaskID, s.Name), 30), s.ImpactScore, ui.RiskLevel(s.RiskLevel))
	}

	// --- Buffers ---
	fmt.Fprintf(mw, "\n💰 %s\n", ui.BoldWhite("Buffer recommendations"))
	for _, buf := range a.Buffers {
		fmt.Fprintf(mw, "   %-18s %6.1f days (+%.1f)  %s\n", buf.Scenario, buf.Target, buf.Buffer,
			ui.Dim(buf.RecommendedFor))
	}

	// --- Footer ---
	fmt.Fprintf(mw, "%s\n", ui.Cyan("──────────────────────────────"))
	if buf, ok := a.Buffer(analytics.ScenarioConservative); ok {
		fmt.Fprintf(mw, "Recommend: plan for %s (%s)\n", ui.BoldGreen(fmt.Sprintf("%.1f days", buf.Target)), buf.Description)
	}
	if n := r.topN(len(a.CriticalTasks)); n > 0 {
		ids := make([]string, 0, n)
		for _, tc := range a.CriticalTasks[:min(n, 3)] {
			ids = append(ids, tc.TaskID)
		}
		fmt.Fprintf(mw, "Monitor:   %s\n", ui.BoldYellow("⚡ "+strings.Join(ids, ", ")))
	}

	return b.String()
}

// PrintHistogram draws the duration distribution as horizontal bars,
// merging histogram bins down to at most rows lines.
func (r *Reporter) PrintHistogram(w io.Writer, rows, width int) {
	bins := r.analysis().Histogram
	if len(bins) == 0 || rows <= 0 {
		return
	}

	group := (len(bins) + rows - 1) / rows
	var merged []analytics.Bin
	for i := 0; i < len(bins); i += group {
		end := min(i+group, len(bins))
		m := analytics.Bin{Lower: bins[i].Lower, Upper: bins[end-1].Upper}
		for _, b := range bins[i:end] {
			m.Count += b.Count
		}
		merged = append(merged, m)
	}

	peak := 0
	for _, m := range merged {
		peak = max(peak, m.Count)
	}

	fmt.Fprintf(w, "\n%s\n", ui.BoldWhite("Duration distribution"))
	for _, m := range merged {
		frac := 0.0
		if peak > 0 {
			frac = float64(m.Count) / float64(peak)
		}
		fmt.Fprintf(w, "  %7.1f - %-7.1f %s %d\n", m.Lower, m.Upper, ui.Bar(frac, width), m.Count)
	}
}

// PrintPlan writes the baseline plan as a wave table.
func PrintPlan(w io.Writer, plan *planner.BaselinePlan) {
	fmt.Fprintf(w, "%s %s  %d tasks, %d waves, %s days\n\n",
		ui.BoldCyan("📐 Baseline plan"),
		ui.Dim(plan.ID),
		plan.TotalTasks, plan.TotalWaves,
		ui.Bold(fmt.Sprintf("%.1f", plan.Duration)))

	for _, wave := range plan.Waves {
		label := ui.Dim("")
		if wave.IsCritical {
			label = ui.BoldYellow("critical")
		}
		fmt.Fprintf(w, "  🌊 %s %d  day %.1f  %s\n", ui.BoldWhite("WAVE"), wave.Index+1, wave.Start, label)

		for _, task := range wave.Tasks {
			printPlannedTask(w, task)
		}
		fmt.Fprintln(w)
	}

	if len(plan.CriticalPath) > 0 {
		fmt.Fprintf(w, "Critical:  %s\n",
			ui.BoldYellow("⚡ "+strings.Join(plan.CriticalPath, " → ")))
	}
}

func printPlannedTask(w io.Writer, task planner.PlannedTask) {
	critical := " "
	if task.IsCritical {
		critical = ui.BoldYellow("⚡")
	}

	name := truncate(task.Name, 40)
	timing := ui.Dim(fmt.Sprintf("[%.1f → %.1f, %.1fd]", task.ES, task.EF, task.Duration))
	slack := ""
	if !task.IsCritical {
		slack = ui.Green(fmt.Sprintf("slack %.1f", task.Slack))
	}

	fmt.Fprintf(w, "    %s %s %-40s %s  %s\n", critical, ui.TaskPrefix(task.TaskID), name, timing, slack)
}

// PrintHistory writes one line per archived run.
func PrintHistory(w io.Writer, runs []state.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, ui.Dim("No archived runs."))
		return
	}
	for _, run := range runs {
		fmt.Fprintf(w, "%s %s  %s  %-20s %6d runs  %s  P50 %.1f  P90 %.1f\n",
			ui.StatusIcon(run.Status),
			ui.BoldMagenta(run.RunID),
			ui.Dim(run.CreatedAt.Format("2006-01-02 15:04")),
			truncate(run.TaskFile, 20),
			run.Runs,
			run.Sampler,
			run.P50, run.P90)
	}
}

// JSON returns the machine-readable run report.
func (r *Reporter) JSON() ([]byte, error) {
	type output struct {
		*state.RunRecord
		Baseline *planner.BaselinePlan `json:"baseline,omitempty"`
	}
	return json.MarshalIndent(output{RunRecord: r.Record, Baseline: r.Plan}, "", "  ")
}

func displayName(id, name string) string {
	if name == "" {
		return id
	}
	return name
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
