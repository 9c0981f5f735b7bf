// Package tracker loads tickets and the associate roster exported from the
// issue tracker and the ITSM system. Files are read once at startup and are
// never written back.
package tracker

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/marcus/triage/internal/tasks"
)

//go:embed seed/*.yaml
var seedFS embed.FS

// ErrUnsupportedFormat is returned for files that are not yaml, json or toml.
var ErrUnsupportedFormat = errors.New("unsupported file format")

type taskFile struct {
	Tasks []tasks.Task `json:"tasks" yaml:"tasks" toml:"tasks"`
}

type rosterFile struct {
	Associates []tasks.Associate `json:"associates" yaml:"associates" toml:"associates"`
}

// LoadTasks reads and validates a ticket export.
func LoadTasks(path string) ([]tasks.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tasks: %w", err)
	}
	var f taskFile
	if err := decode(path, data, &f); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if err := ValidateTasks(f.Tasks); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f.Tasks, nil
}

// LoadAssociates reads and validates an associate roster.
func LoadAssociates(path string) ([]tasks.Associate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading associates: %w", err)
	}
	var f rosterFile
	if err := decode(path, data, &f); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if err := ValidateAssociates(f.Associates); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f.Associates, nil
}

// Seed returns the built-in demo tickets and roster.
func Seed() ([]tasks.Task, []tasks.Associate, error) {
	taskData, err := seedFS.ReadFile("seed/tasks.yaml")
	if err != nil {
		return nil, nil, err
	}
	rosterData, err := seedFS.ReadFile("seed/associates.yaml")
	if err != nil {
		return nil, nil, err
	}

	var tf taskFile
	if err := decode("tasks.yaml", taskData, &tf); err != nil {
		return nil, nil, fmt.Errorf("decoding seed tasks: %w", err)
	}
	var rf rosterFile
	if err := decode("associates.yaml", rosterData, &rf); err != nil {
		return nil, nil, fmt.Errorf("decoding seed roster: %w", err)
	}
	return tf.Tasks, rf.Associates, nil
}

// Load resolves tickets and roster from the given paths. An empty path falls
// back to the corresponding seed data.
func Load(tasksPath, associatesPath string) ([]tasks.Task, []tasks.Associate, error) {
	seedTasks, seedRoster, err := Seed()
	if err != nil {
		return nil, nil, err
	}

	ts := seedTasks
	if tasksPath != "" {
		if ts, err = LoadTasks(expandPath(tasksPath)); err != nil {
			return nil, nil, err
		}
	}
	roster := seedRoster
	if associatesPath != "" {
		if roster, err = LoadAssociates(expandPath(associatesPath)); err != nil {
			return nil, nil, err
		}
	}
	return ts, roster, nil
}

func decode(path string, data []byte, v any) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		return dec.Decode(v)
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(v)
	case ".toml":
		return toml.Unmarshal(data, v)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ValidateTasks checks ids, enums and ranges. All problems are reported.
func ValidateTasks(ts []tasks.Task) error {
	var errs []error
	seen := make(map[string]bool, len(ts))
	for i, t := range ts {
		if t.ID == "" {
			errs = append(errs, fmt.Errorf("tasks[%d]: missing id", i))
			continue
		}
		if seen[t.ID] {
			errs = append(errs, fmt.Errorf("%s: duplicate id", t.ID))
		}
		seen[t.ID] = true

		if !t.Source.Valid() {
			errs = append(errs, fmt.Errorf("%s: invalid source %q", t.ID, t.Source))
		} else if want, ok := tasks.SourceOf(t.ID); ok && want != t.Source {
			errs = append(errs, fmt.Errorf("%s: source %q does not match id prefix (want %q)", t.ID, t.Source, want))
		}
		if !t.Priority.Valid() {
			errs = append(errs, fmt.Errorf("%s: invalid priority %q", t.ID, t.Priority))
		}
		if !t.Status.Valid() {
			errs = append(errs, fmt.Errorf("%s: invalid status %q", t.ID, t.Status))
		}
		if t.Complexity < 1 || t.Complexity > 5 {
			errs = append(errs, fmt.Errorf("%s: complexity %d out of range 1-5", t.ID, t.Complexity))
		}
		if t.BusinessImpact < 1 || t.BusinessImpact > 5 {
			errs = append(errs, fmt.Errorf("%s: business impact %d out of range 1-5", t.ID, t.BusinessImpact))
		}
	}
	return errors.Join(errs...)
}

// ValidateAssociates checks that every associate has a unique id and a name.
func ValidateAssociates(roster []tasks.Associate) error {
	var errs []error
	seen := make(map[string]bool, len(roster))
	for i, a := range roster {
		if a.ID == "" {
			errs = append(errs, fmt.Errorf("associates[%d]: missing id", i))
			continue
		}
		if seen[a.ID] {
			errs = append(errs, fmt.Errorf("%s: duplicate id", a.ID))
		}
		seen[a.ID] = true
		if a.Name == "" {
			errs = append(errs, fmt.Errorf("%s: missing name", a.ID))
		}
	}
	return errors.Join(errs...)
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
