// Package state persists simulation reports under a state directory: the
// latest report and baseline plan at the top level, and every finished run
// archived under history/<run-id>.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/joshharrison/pertsim/internal/analytics"
	"github.com/joshharrison/pertsim/internal/planner"
)

const (
	reportFile = "report.json"
	planFile   = "plan.json"
	historyDir = "history"
)

// Run statuses.
const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled" // stopped early; the analysis covers completed runs only
)

var ErrNoHistory = errors.New("no archived runs")

// RunRecord is one persisted simulation run.
type RunRecord struct {
	RunID     string            `json:"run_id"`
	CreatedAt time.Time         `json:"created_at"`
	TaskFile  string            `json:"task_file"`
	Status    string            `json:"status"`
	Sampler   string            `json:"sampler"`
	Seed      uint64            `json:"seed"`
	Runs      int               `json:"runs"` // requested; Analysis.Summary.Runs holds completed
	Workers   int               `json:"workers"`
	Elapsed   string            `json:"elapsed"`
	Analysis  *analytics.Result `json:"analysis"`
	Durations []float64         `json:"durations,omitempty"`
}

// RunSummary is the subset of a RunRecord shown in history listings.
type RunSummary struct {
	RunID     string
	CreatedAt time.Time
	TaskFile  string
	Status    string
	Sampler   string
	Runs      int
	Mean      float64
	P50       float64
	P90       float64
}

// Store reads and writes run state below a single directory.
type Store struct {
	dir string
	mu  sync.Mutex
}

// Open creates dir if needed and returns a Store rooted there.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the state directory.
func (s *Store) Dir() string {
	return s.dir
}

// SaveReport persists rec as the latest report.
func (s *Store) SaveReport(rec *RunRecord) error {
	return s.writeJSON(filepath.Join(s.dir, reportFile), rec)
}

// LoadReport reads the latest report.
func (s *Store) LoadReport() (*RunRecord, error) {
	var rec RunRecord
	if err := readJSON(filepath.Join(s.dir, reportFile), &rec); err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}
	return &rec, nil
}

// Exists checks if a report file exists.
func (s *Store) Exists() bool {
	return fileExists(filepath.Join(s.dir, reportFile))
}

// SavePlan persists the baseline plan used for the latest report.
func (s *Store) SavePlan(plan *planner.BaselinePlan) error {
	return s.writeJSON(filepath.Join(s.dir, planFile), plan)
}

// LoadPlan reads the latest baseline plan.
func (s *Store) LoadPlan() (*planner.BaselinePlan, error) {
	var plan planner.BaselinePlan
	if err := readJSON(filepath.Join(s.dir, planFile), &plan); err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}
	return &plan, nil
}

// PlanExists checks if a plan file exists.
func (s *Store) PlanExists() bool {
	return fileExists(filepath.Join(s.dir, planFile))
}

// Archive copies the latest report, and plan if present, into
// history/<run-id>.
func (s *Store) Archive() error {
	rec, err := s.LoadReport()
	if err != nil {
		return err
	}
	if rec.RunID == "" {
		return fmt.Errorf("archive: report has no run id")
	}

	dest := filepath.Join(s.dir, historyDir, rec.RunID)
	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}

	for _, name := range []string{reportFile, planFile} {
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if errors.Is(err, os.ErrNotExist) && name == planFile {
			continue
		}
		if err != nil {
			return fmt.Errorf("archive %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dest, name), data, 0644); err != nil {
			return fmt.Errorf("archive %s: %w", name, err)
		}
	}
	return nil
}

// LoadArchived reads the report archived for runID.
func (s *Store) LoadArchived(runID string) (*RunRecord, error) {
	var rec RunRecord
	if err := readJSON(filepath.Join(s.dir, historyDir, runID, reportFile), &rec); err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	return &rec, nil
}

// LoadArchivedPlan reads the baseline plan archived for runID.
func (s *Store) LoadArchivedPlan(runID string) (*planner.BaselinePlan, error) {
	var plan planner.BaselinePlan
	if err := readJSON(filepath.Join(s.dir, historyDir, runID, planFile), &plan); err != nil {
		return nil, fmt.Errorf("load plan for run %s: %w", runID, err)
	}
	return &plan, nil
}

// Summarize lists archived runs, newest first. Only the listed fields are
// read from each report.
func (s *Store) Summarize() ([]RunSummary, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, historyDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	var out []RunSummary
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, historyDir, e.Name(), reportFile))
		if err != nil {
			// Incomplete archive; skip
			continue
		}
		if !gjson.ValidBytes(data) {
			continue
		}

		fields := gjson.GetManyBytes(data,
			"run_id", "created_at", "task_file", "status", "sampler",
			"analysis.project_summary.simulation_runs",
			"analysis.percentiles.Mean", "analysis.percentiles.P50", "analysis.percentiles.P90",
		)
		sum := RunSummary{
			RunID:     fields[0].String(),
			CreatedAt: fields[1].Time(),
			TaskFile:  fields[2].String(),
			Status:    fields[3].String(),
			Sampler:   fields[4].String(),
			Runs:      int(fields[5].Int()),
			Mean:      fields[6].Float(),
			P50:       fields[7].Float(),
			P90:       fields[8].Float(),
		}
		if sum.RunID == "" {
			sum.RunID = e.Name()
		}
		out = append(out, sum)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ListHistory returns archived run ids, newest first.
func (s *Store) ListHistory() ([]string, error) {
	sums, err := s.Summarize()
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(sums))
	for i, sum := range sums {
		ids[i] = sum.RunID
	}
	return ids, nil
}

// HistoryExists reports whether any run has been archived.
func (s *Store) HistoryExists() bool {
	entries, err := os.ReadDir(filepath.Join(s.dir, historyDir))
	return err == nil && len(entries) > 0
}

// LoadPrevious returns the newest archived run and its plan, if it has one.
func (s *Store) LoadPrevious() (*RunRecord, *planner.BaselinePlan, error) {
	ids, err := s.ListHistory()
	if err != nil {
		return nil, nil, err
	}
	if len(ids) == 0 {
		return nil, nil, ErrNoHistory
	}

	rec, err := s.LoadArchived(ids[0])
	if err != nil {
		return nil, nil, err
	}
	plan, _ := s.LoadArchivedPlan(ids[0])
	return rec, plan, nil
}

// CleanCurrent removes the latest report and plan but keeps history.
func (s *Store) CleanCurrent() error {
	for _, name := range []string{reportFile, planFile} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Clean removes the state directory.
func (s *Store) Clean() error {
	return os.RemoveAll(s.dir)
}

func (s *Store) writeJSON(path string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, data, 0644)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
