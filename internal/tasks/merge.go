package tasks

import "errors"

// Errors returned by Accept.
var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrNotUnassigned = errors.New("task is not unassigned")
	ErrNoAssociate   = errors.New("associate id is required")
)

// ResetSuggestions returns a copy of ts with every suggestion field cleared.
func ResetSuggestions(ts []Task) []Task {
	out := Clone(ts)
	for i := range out {
		out[i].ClearSuggestion()
	}
	return out
}

// ApplyRecommendations folds recs into a copy of ts by task id.
// Recommendations are applied in order, so for duplicate ids the last one
// wins. Recommendations for unknown ids are ignored.
func ApplyRecommendations(ts []Task, recs []Recommendation) []Task {
	out := Clone(ts)
	index := make(map[string]int, len(out))
	for i, t := range out {
		if _, seen := index[t.ID]; !seen {
			index[t.ID] = i
		}
	}
	for _, rec := range recs {
		i, ok := index[rec.TaskID]
		if !ok {
			continue
		}
		score := rec.PriorityScore
		out[i].SuggestedTo = rec.SuggestedAssociateID
		out[i].AIPriorityScore = &score
		out[i].AIReasoning = rec.Reasoning
	}
	return out
}

// Accept assigns a ticket and moves it to In Progress, clearing its
// suggestion fields. Only unassigned tickets (with or without a suggestion)
// can be accepted. The input collection is not modified.
func Accept(ts []Task, taskID, associateID string) ([]Task, error) {
	if associateID == "" {
		return nil, ErrNoAssociate
	}
	i := Find(ts, taskID)
	if i < 0 {
		return nil, ErrTaskNotFound
	}
	if !ts[i].IsUnassigned() {
		return nil, ErrNotUnassigned
	}

	out := Clone(ts)
	out[i].AssignedTo = associateID
	out[i].Status = StatusInProgress
	out[i].ClearSuggestion()
	return out, nil
}

// AcceptSuggestion accepts a ticket using its current suggested assignee.
func AcceptSuggestion(ts []Task, taskID string) ([]Task, error) {
	i := Find(ts, taskID)
	if i < 0 {
		return nil, ErrTaskNotFound
	}
	return Accept(ts, taskID, ts[i].SuggestedTo)
}
