package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// execCLI runs the root command with args. Bound flag variables keep their
// values between Execute calls in one test binary, so reset them first.
func execCLI(t *testing.T, args ...string) error {
	t.Helper()
	cfg = nil
	runOutputPath, runStaticDir, runModel, runProvider, runOllamaHost = "", "", "", "", ""
	runNoNarrative, runSave, runQuiet = false, false, false
	runTimeoutSec = 0
	batchOutDir, batchStaticDir, batchModel, batchProvider, batchOllamaHost = "", "", "", "", ""
	batchNoNarrative, batchSave, batchQuiet = false, false, false
	batchTimeoutSec = 0
	narModel, narProvider, narOllamaHost, narOutputPath = "", "", "", ""
	narUpdate, narDryRun, narQuiet = false, false, false
	narTimeoutSec = 0
	runsDirFlag = ""
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func mustCLI(t *testing.T, args ...string) {
	t.Helper()
	if err := execCLI(t, args...); err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
}

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestCLI_RunWritesReportFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	csv := writeCSV(t, home, "sales.csv", "region,units\nnorth,10\nsouth,12\neast,9\nwest,14\n")
	out := filepath.Join(home, "report.json")
	static := filepath.Join(home, "static")

	mustCLI(t, "run", csv, "--no-narrative", "--quiet", "-o", out, "--static-dir", static)

	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var rep map[string]json.RawMessage
	if err := json.Unmarshal(raw, &rep); err != nil {
		t.Fatalf("parse report: %v", err)
	}
	for _, key := range []string{"Validation", "Summary_info", "Summary", "Anomalies", "Narrative", "Visualizations"} {
		if _, ok := rep[key]; !ok {
			t.Fatalf("report missing key %q", key)
		}
	}
	var narrative string
	if err := json.Unmarshal(rep["Narrative"], &narrative); err != nil {
		t.Fatalf("parse narrative: %v", err)
	}
	if narrative != "Narrative generation disabled." {
		t.Fatalf("unexpected narrative: %q", narrative)
	}
	var viz map[string]string
	if err := json.Unmarshal(rep["Visualizations"], &viz); err != nil {
		t.Fatalf("parse visualizations: %v", err)
	}
	if len(viz) == 0 {
		t.Fatal("expected plot entries for the numeric column")
	}
}

func TestCLI_RunUnsupportedFormatHint(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	bad := writeCSV(t, home, "notes.txt", "not a dataset")
	err := execCLI(t, "run", bad, "--no-narrative", "--quiet", "--static-dir", filepath.Join(home, "static"))
	if err == nil {
		t.Fatal("expected error for .txt input")
	}
	if !strings.Contains(err.Error(), ".csv and .json") {
		t.Fatalf("expected format hint, got: %v", err)
	}
}

func TestCLI_RunSaveCreatesRecord(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	csv := writeCSV(t, home, "m.csv", "x,y\n1,2\n3,4\n5,6\n")
	out := filepath.Join(home, "report.json")

	mustCLI(t, "run", csv, "--no-narrative", "--quiet", "--save", "-o", out, "--static-dir", filepath.Join(home, "static"))

	runsDir := filepath.Join(home, ".dataloom", "runs")
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		t.Fatalf("read runs dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one run record, got %d", len(entries))
	}
	id := entries[0].Name()
	if _, err := os.Stat(filepath.Join(runsDir, id, "run.json")); err != nil {
		t.Fatalf("run record file missing: %v", err)
	}

	mustCLI(t, "runs", "list")
	mustCLI(t, "runs", "show", id)

	if err := execCLI(t, "runs", "show", "no-such-run"); err == nil {
		t.Fatal("expected error for unknown run id")
	}
}

func TestCLI_BatchKeepsGoingPastFailures(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	writeCSV(t, home, "a.csv", "x,y\n1,2\n3,4\n")
	writeCSV(t, home, "b.csv", "p,q\n5,6\n7,8\n")
	writeCSV(t, home, "notes.txt", "not a dataset")
	outDir := filepath.Join(home, "reports")

	err := execCLI(t, "batch",
		filepath.Join(home, "a.csv"), filepath.Join(home, "b.csv"), filepath.Join(home, "notes.txt"),
		"--no-narrative", "--quiet", "--out-dir", outDir, "--static-dir", filepath.Join(home, "static"))
	if err == nil {
		t.Fatal("expected batch to report the failed file")
	}
	if !strings.Contains(err.Error(), "1 of 3 datasets failed") {
		t.Fatalf("unexpected batch error: %v", err)
	}
	for _, name := range []string{"a.report.json", "b.report.json"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Fatalf("expected %s despite the failure: %v", name, err)
		}
	}
}

func TestCLI_BatchGlobDedup(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	a := writeCSV(t, home, "a.csv", "x,y\n1,2\n3,4\n")
	writeCSV(t, home, "b.csv", "p,q\n5,6\n7,8\n")
	outDir := filepath.Join(home, "reports")

	// a.csv matches both the glob and the literal arg; it must run once.
	mustCLI(t, "batch", filepath.Join(home, "*.csv"), a,
		"--no-narrative", "--quiet", "--out-dir", outDir, "--static-dir", filepath.Join(home, "static"))

	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("read out dir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(entries))
	}
}

func TestCLI_NarrateDryRunFromSavedReport(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	csv := writeCSV(t, home, "m.csv", "x,y\n1,2\n3,4\n5,6\n")
	out := filepath.Join(home, "report.json")
	mustCLI(t, "run", csv, "--no-narrative", "--quiet", "-o", out, "--static-dir", filepath.Join(home, "static"))

	mustCLI(t, "narrate", out, "--dry-run", "--quiet")

	if err := execCLI(t, "narrate", filepath.Join(home, "missing.json"), "--dry-run"); err == nil {
		t.Fatal("expected error for missing report")
	}
}

func TestCLI_ConfigSetAndValidate(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	mustCLI(t, "config", "set", "default_model", "openai/gpt-4o")
	data, err := os.ReadFile(filepath.Join(home, ".dataloom", "config.yaml"))
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(data), "default_model: openai/gpt-4o") {
		t.Fatalf("config not persisted, got:\n%s", data)
	}

	if err := execCLI(t, "config", "set", "default_provider", "bogus"); err == nil {
		t.Fatal("expected error for invalid provider")
	}
	if err := execCLI(t, "config", "set", "narrate_timeout_sec", "-3"); err == nil {
		t.Fatal("expected error for negative timeout")
	}
	if err := execCLI(t, "config", "set", "no_such_key", "x"); err == nil {
		t.Fatal("expected error for unknown key")
	}

	mustCLI(t, "config", "show")
}
