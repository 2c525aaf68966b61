package run

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/dataloom-cli/internal/pipeline"
)

func sampleRecord(id string, created time.Time) *Record {
	return &Record{
		ID:         id,
		Dataset:    "data/a.csv",
		CreatedAt:  created,
		DurationMS: 42,
		Stages: []pipeline.StageStatus{
			{Name: "validate_data", Status: pipeline.StatusDone, DurationMS: 1},
		},
		Warnings: []string{"column \"x\": no values to plot"},
		Report:   json.RawMessage(`{"Narrative":"ok"}`),
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())
	rec := sampleRecord("run-1", time.Now().UTC().Truncate(time.Second))
	if err := s.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load("run-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ID != rec.ID || got.Dataset != rec.Dataset || got.DurationMS != rec.DurationMS {
		t.Fatalf("loaded record differs: %+v", got)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, rec.CreatedAt)
	}
	if len(got.Stages) != 1 || got.Stages[0].Name != "validate_data" {
		t.Fatalf("stages = %+v", got.Stages)
	}
	if len(got.Warnings) != 1 {
		t.Fatalf("warnings = %+v", got.Warnings)
	}
	if string(got.Report) != `{"Narrative":"ok"}` {
		t.Fatalf("report = %s", got.Report)
	}
}

func TestSaveRequiresID(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.Save(&Record{}); err == nil {
		t.Fatalf("expected error for empty id")
	}
}

func TestLoadMissingRun(t *testing.T) {
	s := NewStore(t.TempDir())
	if _, err := s.Load("nope"); err == nil {
		t.Fatalf("expected error for missing run")
	}
}

func TestListNewestFirst(t *testing.T) {
	s := NewStore(t.TempDir())
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		if err := s.Save(sampleRecord(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	got, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("records = %d, want 3", len(got))
	}
	wantOrder := []string{"new", "mid", "old"}
	for i, w := range wantOrder {
		if got[i].ID != w {
			t.Fatalf("record[%d] = %s, want %s", i, got[i].ID, w)
		}
	}
}

func TestListMissingRootIsEmpty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "does-not-exist"))
	got, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("records = %d, want 0", len(got))
	}
}

func TestListSkipsForeignEntries(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)
	if err := s.Save(sampleRecord("real", time.Now().UTC())); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// A stray directory without run.json and a stray file must both be ignored.
	if err := os.MkdirAll(filepath.Join(root, "stray"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].ID != "real" {
		t.Fatalf("records = %+v", got)
	}
}

func TestNewRecordCapturesResult(t *testing.T) {
	res := &pipeline.Result{
		RunID:    "abc",
		Report:   &pipeline.Report{Narrative: "done"},
		Stages:   []pipeline.StageStatus{{Name: "generate_report", Status: pipeline.StatusDone}},
		Warnings: []string{"w"},
		Duration: 1500 * time.Millisecond,
	}
	rec, err := NewRecord("data/a.csv", res)
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	if rec.ID != "abc" || rec.Dataset != "data/a.csv" || rec.DurationMS != 1500 {
		t.Fatalf("record = %+v", rec)
	}
	if !strings.Contains(string(rec.Report), `"Narrative":"done"`) {
		t.Fatalf("report payload = %s", rec.Report)
	}
	if rec.CreatedAt.IsZero() {
		t.Fatalf("created_at not set")
	}
}
