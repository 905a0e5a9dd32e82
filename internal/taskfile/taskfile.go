// Package taskfile reads three-point task estimates from YAML, JSON and CSV
// files.
package taskfile

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnsupportedFormat is returned for task files with an unknown extension.
	ErrUnsupportedFormat = errors.New("unsupported task file format")
	ErrInvalidTask       = errors.New("invalid task")
)

// Record is one task as read from a task file, before it is placed in a network.
type Record struct {
	ID           string   `yaml:"id" json:"id" validate:"required"`
	Name         string   `yaml:"name" json:"name"`
	Predecessors []string `yaml:"predecessors,omitempty" json:"predecessors,omitempty"`
	Optimistic   float64  `yaml:"optimistic" json:"optimistic" validate:"gte=0"`
	MostLikely   float64  `yaml:"most_likely" json:"most_likely" validate:"gte=0"`
	Pessimistic  float64  `yaml:"pessimistic" json:"pessimistic" validate:"gte=0"`
	Category     string   `yaml:"category,omitempty" json:"category,omitempty"`
	Resources    []string `yaml:"resources,omitempty" json:"resources,omitempty"`
}

// document is the top-level shape of YAML and JSON task files.
type document struct {
	Project string   `yaml:"project" json:"project"`
	Tasks   []Record `yaml:"tasks" json:"tasks"`
}

// csvColumns is the header layout of CSV task files.
var csvColumns = []string{
	"Task_ID", "Task_Name", "Predecessors", "Optimistic",
	"Most_Likely", "Pessimistic", "Category", "Resources",
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads task records from path. The format is chosen by extension:
// .yaml/.yml, .json or .csv.
func Load(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open task file: %w", err)
	}
	defer f.Close()

	var records []Record
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		records, err = ReadYAML(f)
	case ".json":
		records, err = ReadJSON(f)
	case ".csv":
		records, err = ReadCSV(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := Validate(records); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}
	return records, nil
}

// ReadYAML decodes a YAML document with a top-level "tasks" list.
func ReadYAML(r io.Reader) ([]Record, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return doc.Tasks, nil
}

// ReadJSON decodes a JSON document with a top-level "tasks" list.
func ReadJSON(r io.Reader) ([]Record, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return doc.Tasks, nil
}

// ReadCSV decodes the column layout in csvColumns. List cells are
// semicolon-separated; column order is taken from the header row.
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, name := range csvColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("csv header missing column %q", name)
		}
	}

	var records []Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}

		cell := func(name string) string { return strings.TrimSpace(row[col[name]]) }
		num := func(name string) (float64, error) {
			v, err := strconv.ParseFloat(cell(name), 64)
			if err != nil {
				return 0, fmt.Errorf("csv line %d: column %s: %w", line, name, err)
			}
			return v, nil
		}

		rec := Record{
			ID:           cell("Task_ID"),
			Name:         cell("Task_Name"),
			Predecessors: splitList(cell("Predecessors")),
			Category:     cell("Category"),
			Resources:    splitList(cell("Resources")),
		}
		if rec.Optimistic, err = num("Optimistic"); err != nil {
			return nil, err
		}
		if rec.MostLikely, err = num("Most_Likely"); err != nil {
			return nil, err
		}
		if rec.Pessimistic, err = num("Pessimistic"); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks field constraints on every record and that each predecessor
// names a task in the same collection.
func Validate(records []Record) error {
	ids := make(map[string]bool, len(records))
	for i := range records {
		rec := &records[i]
		if err := validate.Struct(rec); err != nil {
			return fmt.Errorf("%w: task %d (%q): %v", ErrInvalidTask, i+1, rec.ID, err)
		}
		if ids[rec.ID] {
			return fmt.Errorf("%w: duplicate task id %q", ErrInvalidTask, rec.ID)
		}
		ids[rec.ID] = true
	}
	for _, rec := range records {
		for _, pred := range rec.Predecessors {
			if !ids[pred] {
				return fmt.Errorf("%w: task %q: unknown predecessor %q", ErrInvalidTask, rec.ID, pred)
			}
		}
	}
	return nil
}
