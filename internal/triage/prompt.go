package triage

import (
	"encoding/json"
	"strings"

	"github.com/marcus/triage/internal/tasks"
)

// DefaultBatchSize is the maximum number of tasks per provider request.
const DefaultBatchSize = 10

// Partition splits items into contiguous batches of at most size elements.
// The batches concatenate back to items in order. size <= 0 uses
// DefaultBatchSize; empty input yields no batches.
func Partition[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultBatchSize
	}
	if len(items) == 0 {
		return nil
	}
	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end:end])
	}
	return batches
}

// promptAssociate is the roster entry sent to the model.
type promptAssociate struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Skills          []string `json:"skills"`
	CurrentWorkload int      `json:"currentWorkload"`
}

// promptTask is the ticket entry sent to the model. Descriptions are left
// out to keep requests small.
type promptTask struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Priority       tasks.Priority `json:"priority"`
	Complexity     int            `json:"complexity"`
	BusinessImpact int            `json:"businessImpact"`
	Dependencies   []string       `json:"dependencies"`
	Module         string         `json:"module"`
}

const promptHeader = `You are an expert assistant embedded in a task prioritization dashboard for a telecom delivery team. Tickets come from Jira (ZA-xxxx) and ServiceNow (INCxxxxxxx incidents, TASKxxxxxxx service tasks, PRBxxxxxxx problems) and touch modules such as SFDC (CRM), BRM, BPM, IIB, SOA, GIS, OSS, ServiceNow and Billing.

For every ticket in this batch:
1. Prioritize: assign a priority score from 1 to 100, where 100 is the most urgent and important.
2. Assign: recommend the single best associate from the roster below.

Priority criteria:
- Urgency: the ticket's priority field (Highest, High, Medium, Low, Lowest) is a primary factor.
- Business impact: how critical the ticket is for the business (1-5).
- Complexity: how hard the ticket is (1-5). High complexity on a high-impact ticket raises priority.
- Dependencies: tickets that block others are more critical.
- Implicit cues: Highest priority tickets usually carry strict SLAs. Titles or ids containing "Fix", "Critical", "Production" or an INC prefix are very urgent.

Assignment criteria:
- Skill match is the most important factor. Infer the ticket's needs from its title and module and match them against each associate's skills.
- Workload balancing: prefer associates with a lower currentWorkload (number of in-progress tickets).
- Assume associates with strong skill matches have performed well on similar tickets before.
`

// BuildPrompt renders the instruction payload for one batch.
func BuildPrompt(batch []tasks.Task, roster []tasks.AssociateLoad) string {
	associates := make([]promptAssociate, len(roster))
	for i, a := range roster {
		skills := a.Skills
		if skills == nil {
			skills = []string{}
		}
		associates[i] = promptAssociate{
			ID:              a.ID,
			Name:            a.Name,
			Skills:          skills,
			CurrentWorkload: a.Workload.Total,
		}
	}

	items := make([]promptTask, len(batch))
	for i, t := range batch {
		deps := t.Dependencies
		if deps == nil {
			deps = []string{}
		}
		items[i] = promptTask{
			ID:             t.ID,
			Title:          t.Title,
			Priority:       t.Priority,
			Complexity:     t.Complexity,
			BusinessImpact: t.BusinessImpact,
			Dependencies:   deps,
			Module:         t.Module,
		}
	}

	var sb strings.Builder
	sb.WriteString(promptHeader)
	sb.WriteString("\nAssociates:\n")
	writeJSON(&sb, associates)
	sb.WriteString("\n\nUnassigned tickets (this batch):\n")
	writeJSON(&sb, items)
	sb.WriteString("\n\nReturn a JSON object whose recommendations array holds one entry per ticket with the ticket id (taskId), the suggested associate id (suggestedAssociateId), the priority score (priorityScore) and a brief reasoning.\n")
	return sb.String()
}

// writeJSON cannot fail for the plain structs above.
func writeJSON(sb *strings.Builder, v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	sb.Write(data)
}
