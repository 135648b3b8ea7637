package domain

import (
	"encoding/json"
	"testing"
)

func TestJobTerminal(t *testing.T) {
	cases := []struct {
		status   string
		terminal bool
	}{
		{JobStatusQueued, false},
		{JobStatusRunning, false},
		{JobStatusDone, true},
		{JobStatusError, true},
	}
	for _, tc := range cases {
		j := Job{Status: tc.status}
		if j.Terminal() != tc.terminal {
			t.Fatalf("status %q: expected terminal=%v", tc.status, tc.terminal)
		}
	}
}

func TestJobUnmarshalWireFormat(t *testing.T) {
	raw := []byte(`{
		"id": "job-1",
		"chapter_file": "ch01.txt",
		"engine": "xtts",
		"status": "running",
		"created_at": 1700000000.5,
		"started_at": 1700000010.0,
		"progress": 0.25,
		"eta_seconds": 120,
		"warning_count": 2
	}`)

	var j Job
	if err := json.Unmarshal(raw, &j); err != nil {
		t.Fatalf("unmarshal job: %v", err)
	}
	if j.ChapterFile != "ch01.txt" {
		t.Fatalf("expected chapter_file ch01.txt, got %q", j.ChapterFile)
	}
	if j.StartedAt == nil || *j.StartedAt != 1700000010.0 {
		t.Fatalf("expected started_at to be set, got %v", j.StartedAt)
	}
	if j.ETASeconds == nil || *j.ETASeconds != 120 {
		t.Fatalf("expected eta_seconds 120, got %v", j.ETASeconds)
	}
	if j.FinishedAt != nil {
		t.Fatal("expected finished_at to stay nil when absent")
	}
}
