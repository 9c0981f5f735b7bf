package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marcus/triage/internal/triage"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	database, err := Open(filepath.Join(t.TempDir(), "triage.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestOpenCreatesSchema(t *testing.T) {
	database := openTestDB(t)

	for _, table := range []string{"schema_version", "triage_runs"} {
		if !tableExists(t, database.SQL(), table) {
			t.Fatalf("expected table %q to exist", table)
		}
	}

	for _, column := range []string{"provider", "model", "duration_ms", "triggered_by"} {
		if !columnExists(t, database.SQL(), "triage_runs", column) {
			t.Fatalf("expected triage_runs.%s column to exist", column)
		}
	}
}

func TestOpenIdempotent(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dbPath := filepath.Join(t.TempDir(), "triage.db")

	database, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}

	database, err = Open(dbPath)
	if err != nil {
		t.Fatalf("reopen db: %v", err)
	}
	defer func() { _ = database.Close() }()

	var count int
	row := database.SQL().QueryRow(`SELECT COUNT(*) FROM schema_version`)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("scan schema_version count: %v", err)
	}
	if count != len(migrations) {
		t.Fatalf("expected %d schema_version rows, got %d", len(migrations), count)
	}
}

func TestOpenCreatesParentDir(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dbPath := filepath.Join(t.TempDir(), "nested", "deeper", "triage.db")

	database, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() { _ = database.Close() }()

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected db file at %s: %v", dbPath, err)
	}
	if database.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", database.Path(), dbPath)
	}
}

func TestOpenAppliesPragmas(t *testing.T) {
	database := openTestDB(t)

	var mode string
	if err := database.SQL().QueryRow(`PRAGMA journal_mode`).Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if !strings.EqualFold(mode, "wal") {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	var timeout int
	if err := database.SQL().QueryRow(`PRAGMA busy_timeout`).Scan(&timeout); err != nil {
		t.Fatalf("busy_timeout: %v", err)
	}
	if timeout != 5000 {
		t.Errorf("busy_timeout = %d, want 5000", timeout)
	}
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"~", home},
		{"~/data/triage.db", filepath.Join(home, "data", "triage.db")},
		{"/abs/triage.db", "/abs/triage.db"},
		{"~other/x", "~other/x"},
	}
	for _, tt := range tests {
		if got := expandPath(tt.in); got != tt.want {
			t.Errorf("expandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMigrationVersioning(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	orig := make([]Migration, len(migrations))
	copy(orig, migrations)
	defer func() {
		migrations = orig
	}()

	dbPath := filepath.Join(t.TempDir(), "triage.db")

	database, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}

	nextVersion := len(migrations) + 1
	migrations = append(migrations, Migration{
		Version:     nextVersion,
		Description: "add test table",
		SQL:         `CREATE TABLE migration_test (id INTEGER);`,
	})

	database, err = Open(dbPath)
	if err != nil {
		t.Fatalf("reopen db: %v", err)
	}
	defer func() { _ = database.Close() }()

	version, err := CurrentVersion(database.SQL())
	if err != nil {
		t.Fatalf("current version: %v", err)
	}
	if version != nextVersion {
		t.Fatalf("expected version %d, got %d", nextVersion, version)
	}

	if !tableExists(t, database.SQL(), "migration_test") {
		t.Fatalf("expected migration_test table to exist")
	}
}

func TestCurrentVersionFresh(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dbPath := filepath.Join(t.TempDir(), "triage.db")

	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	defer func() { _ = sqlDB.Close() }()

	if _, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY, applied_at DATETIME)`); err != nil {
		t.Fatalf("create schema_version: %v", err)
	}

	version, err := CurrentVersion(sqlDB)
	if err != nil {
		t.Fatalf("current version: %v", err)
	}
	if version != 0 {
		t.Fatalf("expected version 0, got %d", version)
	}
}

func TestMigrateNilDB(t *testing.T) {
	if err := Migrate(nil); err == nil {
		t.Fatal("expected error for nil db")
	}
	if _, err := CurrentVersion(nil); err == nil {
		t.Fatal("expected error for nil db")
	}
}

func TestRecordAndRecentRuns(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	runs := []triage.RunRecord{
		{ID: "run-1", StartedAt: base, Duration: 1500 * time.Millisecond, Provider: "gemini", Model: "gemini-2.5-flash",
			TaskCount: 23, BatchCount: 3, RecommendationCount: 23, Status: triage.StatusSuccess, TriggeredBy: "board"},
		{ID: "run-2", StartedAt: base.Add(time.Hour), Duration: 800 * time.Millisecond, Provider: "gemini", Model: "gemini-2.5-flash",
			TaskCount: 23, BatchCount: 3, Status: triage.StatusFailed, Error: "batch 2 of 3: quota exceeded", TriggeredBy: "daemon"},
		{ID: "run-3", StartedAt: base.Add(2 * time.Hour), Duration: 2 * time.Second, Provider: "gemini", Model: "gemini-2.5-flash",
			TaskCount: 20, BatchCount: 2, RecommendationCount: 19, Status: triage.StatusSuccess, TriggeredBy: "analyze"},
	}
	for _, r := range runs {
		if err := database.RecordRun(ctx, r); err != nil {
			t.Fatalf("RecordRun(%s): %v", r.ID, err)
		}
	}

	got, err := database.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d runs, want 2", len(got))
	}
	if got[0].ID != "run-3" || got[1].ID != "run-2" {
		t.Errorf("order = %s, %s; want run-3, run-2", got[0].ID, got[1].ID)
	}
	if !got[0].StartedAt.Equal(runs[2].StartedAt) {
		t.Errorf("StartedAt = %v, want %v", got[0].StartedAt, runs[2].StartedAt)
	}
	if got[0].Duration != 2*time.Second || got[0].RecommendationCount != 19 || got[0].TriggeredBy != "analyze" {
		t.Errorf("run-3 = %+v", got[0])
	}
	if got[1].Error != "batch 2 of 3: quota exceeded" || got[1].Status != triage.StatusFailed {
		t.Errorf("run-2 = %+v", got[1])
	}

	all, err := database.RecentRuns(ctx, 0)
	if err != nil {
		t.Fatalf("RecentRuns(0): %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d runs with default limit, want 3", len(all))
	}
	if all[2].Error != "" {
		t.Errorf("successful run has error %q", all[2].Error)
	}
}

func TestRecordRunRequiresID(t *testing.T) {
	database := openTestDB(t)
	if err := database.RecordRun(context.Background(), triage.RunRecord{Status: triage.StatusSuccess}); err == nil {
		t.Fatal("expected error for empty run id")
	}
}

func TestRecordRunDuplicateID(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	r := triage.RunRecord{ID: "dup", StartedAt: time.Now(), Status: triage.StatusSuccess}
	if err := database.RecordRun(ctx, r); err != nil {
		t.Fatalf("first RecordRun: %v", err)
	}
	if err := database.RecordRun(ctx, r); err == nil {
		t.Fatal("expected error for duplicate run id")
	}
}

func TestRunStats(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	empty, err := database.RunStats(ctx)
	if err != nil {
		t.Fatalf("RunStats on empty db: %v", err)
	}
	if empty.Total != 0 || empty.SuccessRate != 0 || !empty.LastRun.IsZero() {
		t.Errorf("empty stats = %+v", empty)
	}

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	records := []triage.RunRecord{
		{ID: "a", StartedAt: base, Duration: time.Second, RecommendationCount: 10, Status: triage.StatusSuccess},
		{ID: "b", StartedAt: base.Add(time.Minute), Duration: 3 * time.Second, Status: triage.StatusFailed, Error: "boom"},
		{ID: "c", StartedAt: base.Add(2 * time.Minute), Duration: 2 * time.Second, RecommendationCount: 5, Status: triage.StatusSuccess},
		{ID: "d", StartedAt: base.Add(3 * time.Minute), Duration: 2 * time.Second, RecommendationCount: 7, Status: triage.StatusSuccess},
	}
	for _, r := range records {
		if err := database.RecordRun(ctx, r); err != nil {
			t.Fatalf("RecordRun(%s): %v", r.ID, err)
		}
	}

	stats, err := database.RunStats(ctx)
	if err != nil {
		t.Fatalf("RunStats: %v", err)
	}
	if stats.Total != 4 || stats.Succeeded != 3 || stats.Failed != 1 {
		t.Errorf("counts = %+v", stats)
	}
	if stats.SuccessRate != 0.75 {
		t.Errorf("SuccessRate = %v, want 0.75", stats.SuccessRate)
	}
	if stats.AvgDuration != 2*time.Second {
		t.Errorf("AvgDuration = %v, want 2s", stats.AvgDuration)
	}
	if stats.TotalRecommendations != 22 {
		t.Errorf("TotalRecommendations = %d, want 22", stats.TotalRecommendations)
	}
	if !stats.LastRun.Equal(base.Add(3 * time.Minute)) {
		t.Errorf("LastRun = %v, want %v", stats.LastRun, base.Add(3*time.Minute))
	}
}

func TestDBSatisfiesRecorder(t *testing.T) {
	var _ triage.Recorder = (*DB)(nil)
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	for _, raw := range []string{
		"2026-03-02T09:30:00Z",
		"2026-03-02T09:30:00.000Z",
		"2026-03-02 09:30:00+00:00",
		"2026-03-02 09:30:00",
	} {
		got, ok := parseTimestamp(raw)
		if !ok || !got.Equal(want) {
			t.Errorf("parseTimestamp(%q) = %v, %v", raw, got, ok)
		}
	}
	if _, ok := parseTimestamp("  "); ok {
		t.Error("blank timestamp parsed")
	}
	if _, ok := parseTimestamp("yesterday"); ok {
		t.Error("garbage timestamp parsed")
	}
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()

	row := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, name)
	var got string
	if err := row.Scan(&got); err != nil {
		if err == sql.ErrNoRows {
			return false
		}
		t.Fatalf("query sqlite_master: %v", err)
	}
	return got == name
}

func columnExists(t *testing.T, db *sql.DB, table, column string) bool {
	t.Helper()

	rows, err := db.Query(`PRAGMA table_info(` + table + `)`)
	if err != nil {
		t.Fatalf("query table_info(%s): %v", table, err)
	}
	defer func() { _ = rows.Close() }()

	var (
		cid      int
		name     string
		colType  string
		notNull  int
		defaultV sql.NullString
		primaryK int
	)
	for rows.Next() {
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultV, &primaryK); err != nil {
			t.Fatalf("scan table_info(%s): %v", table, err)
		}
		if name == column {
			return true
		}
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows table_info(%s): %v", table, err)
	}
	return false
}
