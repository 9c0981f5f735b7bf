package triage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/marcus/triage/internal/logging"
	"github.com/marcus/triage/internal/tasks"
)

// ErrNothingToDo is returned when no ticket is unassigned. It is a notice,
// not a failure.
var ErrNothingToDo = errors.New("no unassigned tasks to analyze")

// Run statuses recorded for each pass.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// PassResult holds the outcome of a successful pass.
type PassResult struct {
	ID              string
	StartedAt       time.Time
	Tasks           []tasks.Task // full collection with suggestions applied
	Recommendations []tasks.Recommendation
	Analyzed        int // unassigned tasks sent to the provider
	Batches         int
	Duration        time.Duration
}

// RunRecord summarizes one pass for run history.
type RunRecord struct {
	ID                  string
	StartedAt           time.Time
	Duration            time.Duration
	Provider            string
	Model               string
	TaskCount           int
	BatchCount          int
	RecommendationCount int
	Status              string
	Error               string
	TriggeredBy         string // board, analyze, daemon
}

// Recorder persists run records. Record errors are logged, not returned.
type Recorder interface {
	RecordRun(ctx context.Context, r RunRecord) error
}

// Pass runs reset, recommend and merge over a task collection.
type Pass struct {
	orch        *Orchestrator
	recorder    Recorder
	triggeredBy string
	logger      *logging.Logger
}

// PassOption configures a Pass.
type PassOption func(*Pass)

// WithRecorder sets where run records are written.
func WithRecorder(r Recorder) PassOption {
	return func(p *Pass) {
		p.recorder = r
	}
}

// WithTrigger labels recorded runs with what started them.
func WithTrigger(name string) PassOption {
	return func(p *Pass) {
		p.triggeredBy = name
	}
}

// NewPass creates a pass driver around orch.
func NewPass(orch *Orchestrator, opts ...PassOption) *Pass {
	p := &Pass{
		orch:   orch,
		logger: logging.Component("pass"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Orchestrator returns the underlying orchestrator.
func (p *Pass) Orchestrator() *Orchestrator {
	return p.orch
}

// Run scores the unassigned tickets in ts. The input is never modified; on
// success the returned result carries the updated collection, on failure
// the caller keeps its own.
//
// Suggestions from earlier passes are cleared first, so tickets the
// provider skips end up with no suggestion.
func (p *Pass) Run(ctx context.Context, ts []tasks.Task, roster []tasks.Associate) (*PassResult, error) {
	unassigned := tasks.Unassigned(ts)
	if len(unassigned) == 0 {
		return nil, ErrNothingToDo
	}

	started := time.Now()
	id := uuid.NewString()
	loads := tasks.ComputeWorkloads(ts, roster)
	reset := tasks.ResetSuggestions(ts)

	recs, err := p.orch.Recommend(ctx, tasks.Unassigned(reset), loads)
	record := RunRecord{
		ID:          id,
		StartedAt:   started,
		Duration:    time.Since(started),
		TaskCount:   len(unassigned),
		BatchCount:  len(Partition(unassigned, p.orch.BatchSize())),
		TriggeredBy: p.triggeredBy,
	}
	if prov := p.orch.Provider(); prov != nil {
		record.Provider = prov.Name()
		record.Model = prov.Model()
	}

	if err != nil {
		if errors.Is(err, ErrPassInProgress) {
			return nil, err
		}
		record.Status = StatusFailed
		record.Error = err.Error()
		p.record(ctx, record)
		return nil, err
	}

	updated := tasks.ApplyRecommendations(reset, recs)
	record.Status = StatusSuccess
	record.RecommendationCount = len(recs)
	p.record(ctx, record)

	p.logger.InfoCtx("pass applied", map[string]any{
		"pass_id":         id,
		"analyzed":        len(unassigned),
		"recommendations": len(recs),
	})

	return &PassResult{
		ID:              id,
		StartedAt:       started,
		Tasks:           updated,
		Recommendations: recs,
		Analyzed:        len(unassigned),
		Batches:         record.BatchCount,
		Duration:        record.Duration,
	}, nil
}

func (p *Pass) record(ctx context.Context, r RunRecord) {
	if p.recorder == nil {
		return
	}
	// The pass context may already be cancelled.
	if err := p.recorder.RecordRun(context.WithoutCancel(ctx), r); err != nil {
		p.logger.WarnCtx("recording run failed", map[string]any{"error": err.Error(), "pass_id": r.ID})
	}
}
