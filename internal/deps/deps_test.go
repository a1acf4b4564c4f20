package deps

import (
	"os"
	"path/filepath"
	"testing"

	"veritas/internal/config"
)

func writeStub(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestCheckBinaries(t *testing.T) {
	present := writeStub(t, t.TempDir(), "present")
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Path != present || results[0].Detail != "" {
		t.Fatalf("unexpected status for present binary: %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail: %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected status for blank command: %#v", results[2])
	}
}

func TestRequirementsFollowConfig(t *testing.T) {
	cfg := config.Default()
	if got := len(Requirements(&cfg)); got != 3 {
		t.Fatalf("expected 3 requirements without transcription, got %d", got)
	}
	cfg.Transcription.Enabled = true
	reqs := Requirements(&cfg)
	if len(reqs) != 4 || reqs[3].Command != cfg.Transcription.Binary || !reqs[3].Optional {
		t.Fatalf("unexpected requirements: %#v", reqs)
	}
}

func TestCheckReportsMissingRequired(t *testing.T) {
	binDir := t.TempDir()
	writeStub(t, binDir, "ffmpeg")
	t.Setenv("PATH", binDir)

	cfg := config.Default()
	statuses, err := Check(&cfg)
	if err == nil {
		t.Fatal("expected error when ffprobe is missing")
	}
	missing := MissingRequired(statuses)
	if len(missing) != 1 || missing[0].Command != cfg.FFprobeBinary() {
		t.Fatalf("unexpected missing set: %#v", missing)
	}

	writeStub(t, binDir, "ffprobe")
	if _, err := Check(&cfg); err != nil {
		t.Fatalf("optional binaries should not fail the check: %v", err)
	}
}
