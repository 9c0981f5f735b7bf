package tasks

import (
	"fmt"
	"slices"
	"strings"
)

// SortKey selects the ordering of a dashboard column.
type SortKey string

const (
	// Unassigned column.
	SortScore      SortKey = "score"
	SortPriority   SortKey = "priority"
	SortComplexity SortKey = "complexity"

	// Assigned column.
	SortStatus   SortKey = "status"
	SortAssignee SortKey = "assignee"
)

// UnassignedSortKeys lists the orderings offered for unassigned tickets.
var UnassignedSortKeys = []SortKey{SortScore, SortPriority, SortComplexity}

// AssignedSortKeys lists the orderings offered for assigned tickets.
var AssignedSortKeys = []SortKey{SortStatus, SortPriority, SortAssignee}

// Label returns the short display label for a sort key.
func (k SortKey) Label() string {
	switch k {
	case SortScore:
		return "AI Score"
	case SortPriority:
		return "Priority"
	case SortComplexity:
		return "Complexity"
	case SortStatus:
		return "Status"
	case SortAssignee:
		return "Assignee"
	default:
		return string(k)
	}
}

// ParseSortKey validates s against the allowed keys.
func ParseSortKey(s string, allowed []SortKey) (SortKey, error) {
	k := SortKey(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(allowed, k) {
		return k, nil
	}
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}
	return "", fmt.Errorf("invalid sort key %q (valid: %s)", s, strings.Join(names, ", "))
}

// NextSortKey cycles to the key after current in keys.
func NextSortKey(current SortKey, keys []SortKey) SortKey {
	i := slices.Index(keys, current)
	return keys[(i+1)%len(keys)]
}

// SortUnassigned returns a sorted copy of ts. Missing scores sort as 0.
// Unknown keys fall back to score order.
func SortUnassigned(ts []Task, key SortKey) []Task {
	out := Clone(ts)
	var cmp func(a, b Task) int
	switch key {
	case SortPriority:
		cmp = func(a, b Task) int { return b.Priority.Rank() - a.Priority.Rank() }
	case SortComplexity:
		cmp = func(a, b Task) int { return b.Complexity - a.Complexity }
	default:
		cmp = func(a, b Task) int {
			switch {
			case a.Score() > b.Score():
				return -1
			case a.Score() < b.Score():
				return 1
			}
			return 0
		}
	}
	slices.SortStableFunc(out, cmp)
	return out
}

// SortAssigned returns a sorted copy of ts. For the assignee key, names are
// resolved through roster and tickets without a known assignee sort last.
func SortAssigned(ts []Task, key SortKey, roster []Associate) []Task {
	out := Clone(ts)
	var cmp func(a, b Task) int
	switch key {
	case SortPriority:
		cmp = func(a, b Task) int { return b.Priority.Rank() - a.Priority.Rank() }
	case SortAssignee:
		name := func(t Task) string {
			if n := AssociateName(roster, t.AssignedTo); n != "" {
				return strings.ToLower(n)
			}
			return "zzz"
		}
		cmp = func(a, b Task) int { return strings.Compare(name(a), name(b)) }
	default:
		cmp = func(a, b Task) int { return a.Status.order() - b.Status.order() }
	}
	slices.SortStableFunc(out, cmp)
	return out
}
