package triage

import "time"

// EventType classifies pass lifecycle events.
type EventType int

const (
	EventPassStart  EventType = iota // batches built, requests about to be sent
	EventBatchStart                  // one batch request issued
	EventBatchEnd                    // one batch request finished
	EventPassEnd                     // all batches joined, or the pass failed
)

func (t EventType) String() string {
	switch t {
	case EventPassStart:
		return "pass_start"
	case EventBatchStart:
		return "batch_start"
	case EventBatchEnd:
		return "batch_end"
	case EventPassEnd:
		return "pass_end"
	default:
		return "unknown"
	}
}

// Event carries data about a pass lifecycle event.
type Event struct {
	Type     EventType
	Time     time.Time
	Batch    int           // 0-based batch index; -1 for pass events
	Batches  int           // total batches in the pass
	Tasks    int           // tasks in the batch, or in the pass
	Results  int           // recommendations returned so far
	Duration time.Duration // for end events: elapsed time
	Error    string        // error message if applicable
}

// EventHandler is a callback that receives pass events. It may be called
// from several goroutines at once.
type EventHandler func(Event)
