package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marcus/triage/internal/triage"
)

// startedLayout is fixed width so started_at sorts lexically.
const startedLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Stats aggregates run history.
type Stats struct {
	Total                int
	Succeeded            int
	Failed               int
	SuccessRate          float64 // 0..1
	AvgDuration          time.Duration
	TotalRecommendations int
	LastRun              time.Time // zero when no runs exist
}

// RecordRun stores one pass summary. Satisfies triage.Recorder.
func (d *DB) RecordRun(ctx context.Context, r triage.RunRecord) error {
	if d == nil || d.sql == nil {
		return errors.New("db is nil")
	}
	if r.ID == "" {
		return errors.New("run id is required")
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}

	var errText sql.NullString
	if r.Error != "" {
		errText = sql.NullString{String: r.Error, Valid: true}
	}

	_, err := d.sql.ExecContext(ctx, `
		INSERT INTO triage_runs (
			id, started_at, duration_ms, provider, model, task_count,
			batch_count, recommendation_count, status, error, triggered_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.StartedAt.UTC().Format(startedLayout),
		r.Duration.Milliseconds(),
		r.Provider,
		r.Model,
		r.TaskCount,
		r.BatchCount,
		r.RecommendationCount,
		r.Status,
		errText,
		r.TriggeredBy,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first. limit <= 0 means 20.
func (d *DB) RecentRuns(ctx context.Context, limit int) ([]triage.RunRecord, error) {
	if d == nil || d.sql == nil {
		return nil, errors.New("db is nil")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := d.sql.QueryContext(ctx, `
		SELECT id, CAST(started_at AS TEXT), duration_ms, provider, model, task_count,
		       batch_count, recommendation_count, status, error, triggered_by
		FROM triage_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []triage.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// RunStats aggregates all recorded runs.
func (d *DB) RunStats(ctx context.Context) (Stats, error) {
	var stats Stats
	if d == nil || d.sql == nil {
		return stats, errors.New("db is nil")
	}

	row := d.sql.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(AVG(duration_ms), 0),
		       COALESCE(SUM(recommendation_count), 0),
		       CAST(MAX(started_at) AS TEXT)
		FROM triage_runs`, triage.StatusSuccess, triage.StatusFailed)

	var avgMS float64
	var lastRaw sql.NullString
	if err := row.Scan(&stats.Total, &stats.Succeeded, &stats.Failed, &avgMS, &stats.TotalRecommendations, &lastRaw); err != nil {
		return stats, fmt.Errorf("query run stats: %w", err)
	}

	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Succeeded) / float64(stats.Total)
		stats.AvgDuration = time.Duration(avgMS * float64(time.Millisecond))
	}
	if lastRaw.Valid {
		if t, ok := parseTimestamp(lastRaw.String); ok {
			stats.LastRun = t
		}
	}
	return stats, nil
}

func scanRun(rows *sql.Rows) (triage.RunRecord, error) {
	var run triage.RunRecord
	var startedRaw string
	var durationMS int64
	var errText sql.NullString
	if err := rows.Scan(
		&run.ID,
		&startedRaw,
		&durationMS,
		&run.Provider,
		&run.Model,
		&run.TaskCount,
		&run.BatchCount,
		&run.RecommendationCount,
		&run.Status,
		&errText,
		&run.TriggeredBy,
	); err != nil {
		return triage.RunRecord{}, fmt.Errorf("scan run: %w", err)
	}
	if t, ok := parseTimestamp(startedRaw); ok {
		run.StartedAt = t
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	if errText.Valid {
		run.Error = errText.String
	}
	return run, nil
}

// parseTimestamp accepts the layouts SQLite and the driver may hand back.
func parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
