package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/marcus/triage/internal/config"
	"github.com/marcus/triage/internal/db"
	"github.com/marcus/triage/internal/providers"
	"github.com/marcus/triage/internal/tasks"
	"github.com/marcus/triage/internal/triage"
)

var ticketIDPattern = regexp.MustCompile(`"id": "([A-Z][A-Z0-9]*-?\d+)"`)

// stubProvider suggests assoc-1 for every ticket in the prompt.
type stubProvider struct{}

func (stubProvider) Name() string  { return "stub" }
func (stubProvider) Model() string { return "stub-model" }

func (stubProvider) Generate(ctx context.Context, req providers.Request) (*providers.Response, error) {
	recs := []tasks.Recommendation{}
	for i, m := range ticketIDPattern.FindAllStringSubmatch(req.Prompt, -1) {
		recs = append(recs, tasks.Recommendation{
			TaskID:               m[1],
			SuggestedAssociateID: "assoc-1",
			Reasoning:            "stub",
			PriorityScore:        float64(90 - i),
		})
	}
	data, _ := json.Marshal(map[string]any{"recommendations": recs})
	return &providers.Response{Text: string(data)}, nil
}

// isolate points HOME and the working dir at a temp dir and stubs the
// provider.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("NO_COLOR", "1")
	t.Chdir(dir)

	origProvider := newProvider
	newProvider = func(ctx context.Context, cfg *config.Config) (providers.Provider, error) {
		return stubProvider{}, nil
	}
	origInteractive := isInteractive
	isInteractive = func() bool { return false }
	t.Cleanup(func() {
		newProvider = origProvider
		isInteractive = origInteractive
	})
	return dir
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("triage %s: %v\n%s", strings.Join(args, " "), err, buf.String())
	}
	return buf.String()
}

func TestAnalyzeJSONRecordsRun(t *testing.T) {
	dir := isolate(t)

	out := execute(t, "analyze", "--json", "--batch-size", "4")

	var got analyzeOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	seed, roster, err := loadSources(&config.Config{})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	unassigned := len(tasks.Unassigned(seed))
	if got.Analyzed != unassigned {
		t.Errorf("analyzed = %d, want %d", got.Analyzed, unassigned)
	}
	if got.Batches != (unassigned+3)/4 {
		t.Errorf("batches = %d, want %d", got.Batches, (unassigned+3)/4)
	}
	if len(got.Recommendations) != unassigned {
		t.Errorf("recommendations = %d, want %d", len(got.Recommendations), unassigned)
	}
	if len(got.Workloads) != len(roster) {
		t.Errorf("workloads = %d, want %d", len(got.Workloads), len(roster))
	}

	database, err := db.Open(filepath.Join(dir, ".local", "share", "triage", "triage.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer database.Close()
	runs, err := database.RecentRuns(context.Background(), 5)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	if runs[0].ID != got.ID || runs[0].TriggeredBy != "analyze" || runs[0].Provider != "stub" {
		t.Errorf("run = %+v", runs[0])
	}
}

func TestWriteAnalyzeJSONEmptyRecommendations(t *testing.T) {
	var buf bytes.Buffer
	res := &triage.PassResult{ID: "run-1", Analyzed: 2, Batches: 1, Duration: 1500 * time.Millisecond}
	if err := writeAnalyzeJSON(&buf, res, nil); err != nil {
		t.Fatalf("writeAnalyzeJSON: %v", err)
	}
	if !strings.Contains(buf.String(), `"recommendations": []`) {
		t.Errorf("want empty array, got:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), `"durationMs": 1500`) {
		t.Errorf("want durationMs 1500, got:\n%s", buf.String())
	}
}

func TestRenderPassResult(t *testing.T) {
	score := 87.0
	roster := []tasks.Associate{{ID: "assoc-1", Name: "Priya Raman"}}
	res := &triage.PassResult{
		ID:       "run-1",
		Analyzed: 2,
		Batches:  1,
		Duration: 2 * time.Second,
		Tasks: []tasks.Task{
			{ID: "ZA-1", Status: tasks.StatusNew, SuggestedTo: "assoc-1", AIPriorityScore: &score, AIReasoning: "knows the API"},
			{ID: "INC0002", Status: tasks.StatusNew},
			{ID: "ZA-3", Status: tasks.StatusInProgress, AssignedTo: "assoc-1"},
		},
	}

	var buf bytes.Buffer
	renderPassResult(&buf, res, roster)
	out := buf.String()

	for _, want := range []string{"2 tickets in 1 batches", "ZA-1", "Priya Raman", "knows the API", "INC0002", "no suggestion"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "ZA-3") {
		t.Errorf("assigned ticket should not be listed:\n%s", out)
	}
	if strings.Index(out, "ZA-1") > strings.Index(out, "INC0002") {
		t.Errorf("scored ticket should come first:\n%s", out)
	}
}

func TestRenderWorkloads(t *testing.T) {
	loads := []tasks.AssociateLoad{{
		Associate: tasks.Associate{ID: "assoc-1", Name: "Priya Raman"},
		Workload:  tasks.Workload{Total: 3, Jira: 1, Incident: 1, ServiceTask: 1},
	}}
	var buf bytes.Buffer
	renderWorkloads(&buf, loads)
	out := buf.String()
	if !strings.Contains(out, "Priya Raman") || !strings.Contains(out, "Jira:1 INC:1 TASK:1 PRB:0") {
		t.Errorf("unexpected output:\n%s", out)
	}

	buf.Reset()
	renderWorkloads(&buf, nil)
	if !strings.Contains(buf.String(), "No associates.") {
		t.Errorf("empty roster output:\n%s", buf.String())
	}
}

func TestRenderStats(t *testing.T) {
	var buf bytes.Buffer
	renderStats(&buf, &db.Stats{}, nil)
	if !strings.Contains(buf.String(), "No runs recorded yet.") {
		t.Errorf("empty stats output:\n%s", buf.String())
	}

	buf.Reset()
	s := &db.Stats{Total: 2, Succeeded: 1, Failed: 1, SuccessRate: 0.5, AvgDuration: 3 * time.Second, TotalRecommendations: 7, LastRun: time.Now()}
	runs := []triage.RunRecord{
		{ID: "a", StartedAt: time.Now(), Status: triage.StatusSuccess, TriggeredBy: "daemon", TaskCount: 7, BatchCount: 1, RecommendationCount: 7},
		{ID: "b", StartedAt: time.Now(), Status: triage.StatusFailed, TriggeredBy: "board", Error: "batch 1 of 1: 503"},
	}
	renderStats(&buf, s, runs)
	out := buf.String()
	for _, want := range []string{"2 (1 ok, 1 failed, 50% success)", "3.0s", "daemon", "board", "batch 1 of 1: 503"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderTaskList(t *testing.T) {
	score := 72.0
	roster := []tasks.Associate{{ID: "assoc-2", Name: "Daniel Okafor"}}
	ts := []tasks.Task{
		{ID: "ZA-1", Title: "Fix login", Priority: tasks.PriorityHigh, Status: tasks.StatusNew, SuggestedTo: "assoc-2", AIPriorityScore: &score},
		{ID: "TASK0003", Title: "Rotate certs", Priority: tasks.PriorityLow, Status: tasks.StatusInProgress, AssignedTo: "assoc-2"},
	}
	var buf bytes.Buffer
	renderTaskList(&buf, "Tickets", ts, roster)
	out := buf.String()
	if !strings.Contains(out, "Tickets (2)") {
		t.Errorf("missing header:\n%s", out)
	}
	if !strings.Contains(out, "[72 -> Daniel Okafor]") {
		t.Errorf("missing suggestion:\n%s", out)
	}
	if !strings.Contains(out, "@Daniel Okafor") {
		t.Errorf("missing assignee:\n%s", out)
	}
}

func TestAcceptedCount(t *testing.T) {
	before := []tasks.Task{
		{ID: "A", Status: tasks.StatusNew},
		{ID: "B", Status: tasks.StatusNew},
		{ID: "C", Status: tasks.StatusInProgress, AssignedTo: "assoc-1"},
	}
	after := tasks.Clone(before)
	after[0].AssignedTo = "assoc-2"
	after[0].Status = tasks.StatusInProgress

	if got := acceptedCount(before, after); got != 1 {
		t.Errorf("acceptedCount = %d, want 1", got)
	}
	if got := acceptedCount(before, before); got != 0 {
		t.Errorf("acceptedCount(unchanged) = %d, want 0", got)
	}
}

func TestDaemonSchedule(t *testing.T) {
	tests := []struct {
		name         string
		in           config.ScheduleConfig
		wantCron     string
		wantInterval string
	}{
		{"default", config.ScheduleConfig{}, config.DefaultSchedule, ""},
		{"cron", config.ScheduleConfig{Cron: "*/15 * * * *"}, "*/15 * * * *", ""},
		{"interval", config.ScheduleConfig{Interval: "30m"}, "", "30m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := daemonSchedule(&config.Config{Schedule: tt.in})
			if got.Cron != tt.wantCron || got.Interval != tt.wantInterval {
				t.Errorf("daemonSchedule = %+v, want cron %q interval %q", got, tt.wantCron, tt.wantInterval)
			}
		})
	}
}

func TestDoctorChecks(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Gemini: config.GeminiConfig{
			Backend:    "cli",
			Model:      "gemini-2.5-flash",
			BinaryPath: filepath.Join(dir, "missing-gemini"),
		},
		History: config.HistoryConfig{Enabled: true, DBPath: filepath.Join(dir, "triage.db")},
	}

	results := doctorChecks(context.Background(), cfg)
	byName := map[string]checkResult{}
	for _, r := range results {
		byName[r.name] = r
	}

	tests := []struct {
		name string
		want checkStatus
	}{
		{"config", statusOK},
		{"gemini cli", statusFail},
		{"sources", statusWarn},
		{"history", statusOK},
		{"schedule", statusOK},
	}
	for _, tt := range tests {
		r, ok := byName[tt.name]
		if !ok {
			t.Errorf("missing check %q", tt.name)
			continue
		}
		if r.status != tt.want {
			t.Errorf("%s: status = %s (%s), want %s", tt.name, r.status, r.detail, tt.want)
		}
	}
	if !strings.Contains(byName["schedule"].detail, config.DefaultSchedule) {
		t.Errorf("schedule detail = %q", byName["schedule"].detail)
	}
}

func TestDoctorChecksAPIKey(t *testing.T) {
	t.Setenv("API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	cfg := &config.Config{Gemini: config.GeminiConfig{Backend: "api"}}

	results := doctorChecks(context.Background(), cfg)
	var found bool
	for _, r := range results {
		if r.name == "api key" {
			found = true
			if r.status != statusFail {
				t.Errorf("api key status = %s, want FAIL", r.status)
			}
		}
		if r.name == "history" && r.status != statusWarn {
			t.Errorf("disabled history status = %s, want WARN", r.status)
		}
	}
	if !found {
		t.Error("missing api key check")
	}

	t.Setenv("GEMINI_API_KEY", "k")
	for _, r := range doctorChecks(context.Background(), cfg) {
		if r.name == "api key" && r.status != statusOK {
			t.Errorf("api key status with key = %s, want OK", r.status)
		}
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cmd := analyzeCmd
	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{Logging: config.LoggingConfig{Level: "info"}}
	applyFlagOverrides(cmd, cfg)
	if cfg.Logging.Level != "info" || cfg.Sources.Tasks != "" {
		t.Errorf("unset flags changed config: %+v", cfg)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1m30s"},
		{125 * time.Minute, "2h5m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPidFileRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if err := writePidFile(); err != nil {
		t.Fatalf("writePidFile: %v", err)
	}
	pid, err := readPidFile()
	if err != nil {
		t.Fatalf("readPidFile: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}
	if running, _ := isDaemonRunning(); !running {
		t.Error("isDaemonRunning = false for own pid")
	}
	if err := removePidFile(); err != nil {
		t.Fatalf("removePidFile: %v", err)
	}
	if running, _ := isDaemonRunning(); running {
		t.Error("isDaemonRunning = true after removal")
	}
}
