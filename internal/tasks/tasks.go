// Package tasks defines the ticket and associate model shared by the
// dashboard, the triage pass and the ticket loaders.
// Tickets come from Jira (ZA-xxxx) and ServiceNow (INC/TASK/PRB ids).
package tasks

import (
	"fmt"
	"strings"
)

// Source identifies the tracker a ticket was imported from.
type Source string

const (
	SourceJira       Source = "Jira"
	SourceServiceNow Source = "ServiceNow"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	return s == SourceJira || s == SourceServiceNow
}

// Priority is the tracker-assigned priority of a ticket.
type Priority string

const (
	PriorityHighest Priority = "Highest"
	PriorityHigh    Priority = "High"
	PriorityMedium  Priority = "Medium"
	PriorityLow     Priority = "Low"
	PriorityLowest  Priority = "Lowest"
)

// Rank orders priorities from Lowest (1) to Highest (5). Unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityHighest:
		return 5
	case PriorityHigh:
		return 4
	case PriorityMedium:
		return 3
	case PriorityLow:
		return 2
	case PriorityLowest:
		return 1
	default:
		return 0
	}
}

// Valid reports whether p is one of the five known levels.
func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// Status is the workflow state of a ticket.
type Status string

const (
	StatusNew        Status = "New"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusNew || s == StatusInProgress || s == StatusDone
}

// order is used when sorting the assigned column.
func (s Status) order() int {
	switch s {
	case StatusNew:
		return 0
	case StatusInProgress:
		return 1
	case StatusDone:
		return 2
	default:
		return 3
	}
}

// Kind is the ticket subtype inferred from the id prefix.
type Kind int

const (
	KindUnknown Kind = iota
	KindJiraIssue
	KindIncident
	KindServiceTask
	KindProblem
)

func (k Kind) String() string {
	switch k {
	case KindJiraIssue:
		return "jira"
	case KindIncident:
		return "incident"
	case KindServiceTask:
		return "task"
	case KindProblem:
		return "problem"
	default:
		return "unknown"
	}
}

// KindOf infers the ticket subtype from its identifier.
func KindOf(id string) Kind {
	switch {
	case strings.HasPrefix(id, "ZA-"):
		return KindJiraIssue
	case strings.HasPrefix(id, "INC"):
		return KindIncident
	case strings.HasPrefix(id, "TASK"):
		return KindServiceTask
	case strings.HasPrefix(id, "PRB"):
		return KindProblem
	default:
		return KindUnknown
	}
}

// SourceOf returns the tracker implied by an identifier's prefix.
func SourceOf(id string) (Source, bool) {
	switch KindOf(id) {
	case KindJiraIssue:
		return SourceJira, true
	case KindIncident, KindServiceTask, KindProblem:
		return SourceServiceNow, true
	default:
		return "", false
	}
}

// Task is a single ticket. AssignedTo is empty while unassigned.
// The AI* fields and SuggestedTo are only meaningful while the ticket is
// unassigned; they are cleared on acceptance and at the start of each pass.
type Task struct {
	ID             string   `json:"id" yaml:"id" toml:"id"`
	Title          string   `json:"title" yaml:"title" toml:"title"`
	Description    string   `json:"description" yaml:"description" toml:"description"`
	Source         Source   `json:"source" yaml:"source" toml:"source"`
	Priority       Priority `json:"priority" yaml:"priority" toml:"priority"`
	Status         Status   `json:"status" yaml:"status" toml:"status"`
	Complexity     int      `json:"complexity" yaml:"complexity" toml:"complexity"`
	BusinessImpact int      `json:"businessImpact" yaml:"business_impact" toml:"business_impact"`
	Dependencies   []string `json:"dependencies" yaml:"dependencies" toml:"dependencies"`
	AssignedTo     string   `json:"assignedTo,omitempty" yaml:"assigned_to,omitempty" toml:"assigned_to,omitempty"`
	Module         string   `json:"module" yaml:"module" toml:"module"`

	SuggestedTo     string   `json:"suggestedTo,omitempty" yaml:"-" toml:"-"`
	AIPriorityScore *float64 `json:"aiPriorityScore,omitempty" yaml:"-" toml:"-"`
	AIReasoning     string   `json:"aiReasoning,omitempty" yaml:"-" toml:"-"`
}

// Kind returns the ticket subtype inferred from the id.
func (t Task) Kind() Kind {
	return KindOf(t.ID)
}

// IsUnassigned reports whether the ticket is new and has no assignee.
func (t Task) IsUnassigned() bool {
	return t.Status == StatusNew && t.AssignedTo == ""
}

// HasSuggestion reports whether a pass produced a suggestion for the ticket.
func (t Task) HasSuggestion() bool {
	return t.SuggestedTo != ""
}

// Score returns the AI priority score, or 0 when none is set.
func (t Task) Score() float64 {
	if t.AIPriorityScore == nil {
		return 0
	}
	return *t.AIPriorityScore
}

// ClearSuggestion resets the suggestion fields.
func (t *Task) ClearSuggestion() {
	t.SuggestedTo = ""
	t.AIPriorityScore = nil
	t.AIReasoning = ""
}

// clone returns a copy that shares no slices or pointers with t.
func (t Task) clone() Task {
	c := t
	if t.Dependencies != nil {
		c.Dependencies = append([]string(nil), t.Dependencies...)
	}
	if t.AIPriorityScore != nil {
		s := *t.AIPriorityScore
		c.AIPriorityScore = &s
	}
	return c
}

func (t Task) String() string {
	return fmt.Sprintf("%s [%s] %s", t.ID, t.Priority, t.Title)
}

// Associate is a team member that tickets can be assigned to.
type Associate struct {
	ID     string   `json:"id" yaml:"id" toml:"id"`
	Name   string   `json:"name" yaml:"name" toml:"name"`
	Skills []string `json:"skills" yaml:"skills" toml:"skills"`
}

// Recommendation is one provider suggestion for one ticket.
type Recommendation struct {
	TaskID               string  `json:"taskId"`
	SuggestedAssociateID string  `json:"suggestedAssociateId"`
	Reasoning            string  `json:"reasoning"`
	PriorityScore        float64 `json:"priorityScore"`
}

// Clone copies a collection so callers can mutate it freely.
func Clone(ts []Task) []Task {
	if ts == nil {
		return nil
	}
	out := make([]Task, len(ts))
	for i, t := range ts {
		out[i] = t.clone()
	}
	return out
}

// Unassigned returns copies of the tickets that are new and unassigned,
// preserving collection order.
func Unassigned(ts []Task) []Task {
	out := make([]Task, 0, len(ts))
	for _, t := range ts {
		if t.IsUnassigned() {
			out = append(out, t.clone())
		}
	}
	return out
}

// Assigned returns copies of every ticket that is not unassigned.
func Assigned(ts []Task) []Task {
	out := make([]Task, 0, len(ts))
	for _, t := range ts {
		if !t.IsUnassigned() {
			out = append(out, t.clone())
		}
	}
	return out
}

// Find returns the index of the ticket with the given id, or -1.
func Find(ts []Task, id string) int {
	for i := range ts {
		if ts[i].ID == id {
			return i
		}
	}
	return -1
}
