package tracker

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marcus/triage/internal/tasks"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadTasks_Formats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "tasks.yaml",
			content: `
tasks:
  - id: INC0000001
    title: Payment gateway down
    source: ServiceNow
    priority: Highest
    status: New
    complexity: 3
    business_impact: 5
    module: Billing
`,
		},
		{
			name: "json",
			file: "tasks.json",
			content: `{"tasks": [{"id": "INC0000001", "title": "Payment gateway down", "source": "ServiceNow",
"priority": "Highest", "status": "New", "complexity": 3, "businessImpact": 5, "module": "Billing"}]}`,
		},
		{
			name: "toml",
			file: "tasks.toml",
			content: `
[[tasks]]
id = "INC0000001"
title = "Payment gateway down"
source = "ServiceNow"
priority = "Highest"
status = "New"
complexity = 3
business_impact = 5
module = "Billing"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			ts, err := LoadTasks(path)
			if err != nil {
				t.Fatalf("LoadTasks error: %v", err)
			}
			if len(ts) != 1 {
				t.Fatalf("len = %d, want 1", len(ts))
			}
			got := ts[0]
			if got.ID != "INC0000001" || got.Priority != tasks.PriorityHighest || got.BusinessImpact != 5 {
				t.Errorf("unexpected task: %+v", got)
			}
			if !got.IsUnassigned() {
				t.Error("expected task to be unassigned")
			}
		})
	}
}

func TestLoadTasks_UnsupportedFormat(t *testing.T) {
	path := writeFile(t, "tasks.csv", "id,title\n")
	_, err := LoadTasks(path)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestLoadTasks_UnknownField(t *testing.T) {
	path := writeFile(t, "tasks.yaml", `
tasks:
  - id: ZA-1
    title: x
    owner: someone
`)
	if _, err := LoadTasks(path); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestValidateTasks(t *testing.T) {
	ts := []tasks.Task{
		{ID: "ZA-1", Source: tasks.SourceJira, Priority: tasks.PriorityHigh, Status: tasks.StatusNew, Complexity: 2, BusinessImpact: 2},
		{ID: "ZA-1", Source: tasks.SourceJira, Priority: tasks.PriorityHigh, Status: tasks.StatusNew, Complexity: 2, BusinessImpact: 2},
		{ID: "INC1", Source: tasks.SourceJira, Priority: "Urgent", Status: "Blocked", Complexity: 0, BusinessImpact: 6},
		{Title: "no id"},
	}

	err := ValidateTasks(ts)
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{
		"ZA-1: duplicate id",
		"INC1: source \"Jira\" does not match id prefix",
		"invalid priority \"Urgent\"",
		"invalid status \"Blocked\"",
		"complexity 0 out of range",
		"business impact 6 out of range",
		"tasks[3]: missing id",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error missing %q:\n%s", want, msg)
		}
	}
}

func TestValidateAssociates(t *testing.T) {
	err := ValidateAssociates([]tasks.Associate{
		{ID: "assoc-1", Name: "A"},
		{ID: "assoc-1", Name: "B"},
		{ID: "assoc-2"},
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "assoc-1: duplicate id") || !strings.Contains(err.Error(), "assoc-2: missing name") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSeed(t *testing.T) {
	ts, roster, err := Seed()
	if err != nil {
		t.Fatalf("Seed error: %v", err)
	}
	if err := ValidateTasks(ts); err != nil {
		t.Errorf("seed tasks invalid: %v", err)
	}
	if err := ValidateAssociates(roster); err != nil {
		t.Errorf("seed roster invalid: %v", err)
	}
	if len(roster) != 12 {
		t.Errorf("roster len = %d, want 12", len(roster))
	}
	if n := len(tasks.Unassigned(ts)); n != 23 {
		t.Errorf("unassigned seed tasks = %d, want 23", n)
	}
}

func TestLoad_FallsBackToSeed(t *testing.T) {
	rosterPath := writeFile(t, "team.yaml", `
associates:
  - id: a1
    name: Only One
    skills: [Go]
`)
	ts, roster, err := Load("", rosterPath)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(ts) == 0 {
		t.Error("expected seed tasks")
	}
	if len(roster) != 1 || roster[0].Name != "Only One" {
		t.Errorf("roster = %+v", roster)
	}
}
