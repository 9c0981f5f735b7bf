// Package triage scores unassigned tickets and suggests assignees by
// sending batched prompts to a model provider.
package triage

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/marcus/triage/internal/logging"
	"github.com/marcus/triage/internal/providers"
	"github.com/marcus/triage/internal/tasks"
)

// DefaultTimeout bounds a whole pass.
const DefaultTimeout = 2 * time.Minute

// Orchestrator errors.
var (
	ErrPassInProgress = errors.New("a triage pass is already running")
	ErrNoProvider     = errors.New("no provider configured")
)

// PassError reports the batch that failed a pass.
type PassError struct {
	Batch   int // 0-based
	Batches int
	Err     error
}

func (e *PassError) Error() string {
	return fmt.Sprintf("batch %d of %d: %v", e.Batch+1, e.Batches, e.Err)
}

func (e *PassError) Unwrap() error {
	return e.Err
}

// Config holds orchestrator configuration.
type Config struct {
	BatchSize      int           // Tasks per request (default: 10)
	Timeout        time.Duration // Whole-pass timeout (0 = none)
	MaxConcurrency int           // In-flight batches (0 = all)
}

// DefaultConfig returns default orchestrator config.
func DefaultConfig() Config {
	return Config{
		BatchSize: DefaultBatchSize,
		Timeout:   DefaultTimeout,
	}
}

// Orchestrator fans batches out to a provider and joins the results.
// Only one Recommend call may run at a time.
type Orchestrator struct {
	provider     providers.Provider
	config       Config
	logger       *logging.Logger
	eventHandler EventHandler
	running      atomic.Bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProvider sets the model provider.
func WithProvider(p providers.Provider) Option {
	return func(o *Orchestrator) {
		o.provider = p
	}
}

// WithConfig sets orchestrator configuration.
func WithConfig(c Config) Option {
	return func(o *Orchestrator) {
		o.config = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithEventHandler sets an optional callback for pass events.
func WithEventHandler(h EventHandler) Option {
	return func(o *Orchestrator) {
		o.eventHandler = h
	}
}

// New creates an orchestrator with the given options.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		config: DefaultConfig(),
		logger: logging.Component("triage"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Provider returns the configured provider.
func (o *Orchestrator) Provider() providers.Provider {
	return o.provider
}

// BatchSize returns the effective batch size.
func (o *Orchestrator) BatchSize() int {
	if o.config.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return o.config.BatchSize
}

// Running reports whether a pass is in flight.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

func (o *Orchestrator) emit(e Event) {
	if o.eventHandler != nil {
		e.Time = time.Now()
		o.eventHandler(e)
	}
}

// Recommend sends every batch of ts to the provider concurrently and
// returns the recommendations concatenated in batch order. Any batch
// failure cancels the others and fails the call as a whole; no partial
// result is returned. Empty input returns an empty result without calling
// the provider.
func (o *Orchestrator) Recommend(ctx context.Context, ts []tasks.Task, roster []tasks.AssociateLoad) ([]tasks.Recommendation, error) {
	if len(ts) == 0 {
		return []tasks.Recommendation{}, nil
	}
	if o.provider == nil {
		return nil, ErrNoProvider
	}
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrPassInProgress
	}
	defer o.running.Store(false)

	if o.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	batches := Partition(ts, o.BatchSize())
	results := make([][]tasks.Recommendation, len(batches))

	o.logger.InfoCtx("pass start", map[string]any{
		"tasks":    len(ts),
		"batches":  len(batches),
		"provider": o.provider.Name(),
		"model":    o.provider.Model(),
	})
	o.emit(Event{Type: EventPassStart, Batch: -1, Batches: len(batches), Tasks: len(ts)})

	p := pool.New().WithContext(ctx).WithFailFast()
	if o.config.MaxConcurrency > 0 {
		p = p.WithMaxGoroutines(o.config.MaxConcurrency)
	}
	schema := ResponseSchema()
	for i, batch := range batches {
		p.Go(func(ctx context.Context) error {
			recs, err := o.runBatch(ctx, i, len(batches), batch, roster, schema)
			if err != nil {
				return &PassError{Batch: i, Batches: len(batches), Err: err}
			}
			results[i] = recs
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		duration := time.Since(start)
		o.logger.ErrorCtx("pass failed", map[string]any{
			"error":       err.Error(),
			"duration_ms": duration.Milliseconds(),
		})
		o.emit(Event{Type: EventPassEnd, Batch: -1, Batches: len(batches), Tasks: len(ts), Duration: duration, Error: err.Error()})
		return nil, err
	}

	var all []tasks.Recommendation
	for _, recs := range results {
		all = append(all, recs...)
	}
	if all == nil {
		all = []tasks.Recommendation{}
	}

	duration := time.Since(start)
	o.logger.InfoCtx("pass complete", map[string]any{
		"recommendations": len(all),
		"duration_ms":     duration.Milliseconds(),
	})
	o.emit(Event{Type: EventPassEnd, Batch: -1, Batches: len(batches), Tasks: len(ts), Results: len(all), Duration: duration})
	return all, nil
}

func (o *Orchestrator) runBatch(ctx context.Context, i, n int, batch []tasks.Task, roster []tasks.AssociateLoad, schema *providers.Schema) ([]tasks.Recommendation, error) {
	start := time.Now()
	o.emit(Event{Type: EventBatchStart, Batch: i, Batches: n, Tasks: len(batch)})

	recs, err := o.requestBatch(ctx, batch, roster, schema)
	duration := time.Since(start)

	fields := map[string]any{
		"batch":       i + 1,
		"batches":     n,
		"tasks":       len(batch),
		"duration_ms": duration.Milliseconds(),
	}
	if err != nil {
		fields["error"] = err.Error()
		o.logger.WarnCtx("batch failed", fields)
		o.emit(Event{Type: EventBatchEnd, Batch: i, Batches: n, Tasks: len(batch), Duration: duration, Error: err.Error()})
		return nil, err
	}
	fields["recommendations"] = len(recs)
	o.logger.DebugCtx("batch complete", fields)
	o.emit(Event{Type: EventBatchEnd, Batch: i, Batches: n, Tasks: len(batch), Results: len(recs), Duration: duration})
	return recs, nil
}

func (o *Orchestrator) requestBatch(ctx context.Context, batch []tasks.Task, roster []tasks.AssociateLoad, schema *providers.Schema) ([]tasks.Recommendation, error) {
	resp, err := o.provider.Generate(ctx, providers.Request{
		Prompt: BuildPrompt(batch, roster),
		Schema: schema,
	})
	if err != nil {
		return nil, err
	}
	return ParseResponse(resp.Text)
}
