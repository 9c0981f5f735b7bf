package tasks

import "testing"

func TestComputeWorkloads(t *testing.T) {
	roster := []Associate{
		{ID: "assoc-1", Name: "Rohit Patil"},
		{ID: "assoc-2", Name: "Yogesh Patil"},
		{ID: "assoc-3", Name: "Sneha Priyanshu"},
	}
	ts := append(sampleTasks(),
		Task{ID: "ZA-3000", Status: StatusInProgress, AssignedTo: "assoc-2"},
		Task{ID: "ZA-3001", Status: StatusInProgress, AssignedTo: "ghost"},
	)

	loads := ComputeWorkloads(ts, roster)
	if len(loads) != 3 {
		t.Fatalf("len = %d, want 3", len(loads))
	}

	want := map[string]Workload{
		"assoc-1": {Total: 2, ServiceTask: 1, Problem: 1},
		// ZA-1002 is Done and does not count.
		"assoc-2": {Total: 2, Jira: 1, Incident: 1},
		"assoc-3": {},
	}
	for _, l := range loads {
		if l.Workload != want[l.ID] {
			t.Errorf("%s workload = %+v, want %+v", l.ID, l.Workload, want[l.ID])
		}
	}
}

func TestComputeWorkloads_IsPure(t *testing.T) {
	roster := []Associate{{ID: "assoc-1"}}
	ts := sampleTasks()
	first := ComputeWorkloads(ts, roster)
	second := ComputeWorkloads(ts, roster)
	if first[0].Workload != second[0].Workload {
		t.Error("repeated derivation differs")
	}
}

func TestBands(t *testing.T) {
	tests := []struct {
		total int
		want  Band
	}{
		{0, BandLow}, {4, BandLow}, {5, BandMedium}, {7, BandMedium}, {8, BandHigh}, {12, BandHigh},
	}
	for _, tt := range tests {
		if got := WorkloadBand(tt.total); got != tt.want {
			t.Errorf("WorkloadBand(%d) = %v, want %v", tt.total, got, tt.want)
		}
	}

	if ScoreBand(90) != BandHigh || ScoreBand(75) != BandHigh {
		t.Error("expected 75+ to be high")
	}
	if ScoreBand(50) != BandMedium || ScoreBand(74.9) != BandMedium {
		t.Error("expected 50-74 to be medium")
	}
	if ScoreBand(49) != BandLow {
		t.Error("expected <50 to be low")
	}
}
