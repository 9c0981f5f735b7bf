package tasks

// Workload counts the in-progress tickets assigned to one associate.
type Workload struct {
	Total       int `json:"total"`
	Jira        int `json:"jira"`
	Incident    int `json:"serviceNowIncident"`
	ServiceTask int `json:"serviceNowTask"`
	Problem     int `json:"serviceNowProblem"`
}

// AssociateLoad is an associate annotated with its current workload.
type AssociateLoad struct {
	Associate
	Workload Workload `json:"currentWorkload"`
}

// Band classifies a load or score into low, medium or high.
type Band int

const (
	BandLow Band = iota
	BandMedium
	BandHigh
)

func (b Band) String() string {
	switch b {
	case BandHigh:
		return "high"
	case BandMedium:
		return "medium"
	default:
		return "low"
	}
}

// WorkloadBand buckets an associate's total load: 8+ is high, 5+ medium.
func WorkloadBand(total int) Band {
	switch {
	case total >= 8:
		return BandHigh
	case total >= 5:
		return BandMedium
	default:
		return BandLow
	}
}

// ScoreBand buckets an AI priority score: 75+ is high, 50+ medium.
func ScoreBand(score float64) Band {
	switch {
	case score >= 75:
		return BandHigh
	case score >= 50:
		return BandMedium
	default:
		return BandLow
	}
}

// ComputeWorkloads derives each associate's workload from the collection.
// Only In Progress tickets count. The result follows roster order.
func ComputeWorkloads(ts []Task, roster []Associate) []AssociateLoad {
	loads := make([]AssociateLoad, len(roster))
	index := make(map[string]int, len(roster))
	for i, a := range roster {
		loads[i] = AssociateLoad{Associate: a}
		index[a.ID] = i
	}

	for _, t := range ts {
		if t.Status != StatusInProgress || t.AssignedTo == "" {
			continue
		}
		i, ok := index[t.AssignedTo]
		if !ok {
			continue
		}
		w := &loads[i].Workload
		w.Total++
		switch t.Kind() {
		case KindJiraIssue:
			w.Jira++
		case KindIncident:
			w.Incident++
		case KindServiceTask:
			w.ServiceTask++
		case KindProblem:
			w.Problem++
		}
	}
	return loads
}

// AssociateName returns the display name for id, or "" if unknown.
func AssociateName(roster []Associate, id string) string {
	for _, a := range roster {
		if a.ID == id {
			return a.Name
		}
	}
	return ""
}
