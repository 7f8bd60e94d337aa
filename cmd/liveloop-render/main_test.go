package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOutputPath(t *testing.T) {
	if got := outputPath("sets/beat.yaml", ""); got != filepath.Join("sets", "beat.wav") {
		t.Fatalf("unexpected %q", got)
	}
	if got := outputPath("sets/beat.yaml", "out"); got != filepath.Join("out", "beat.wav") {
		t.Fatalf("unexpected %q", got)
	}
}

func TestRenderOneWritesWAV(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "beat.yaml")
	src := "bpm: 120\nloops:\n  - name: b\n    steps:\n      - note: c4\n      - sleep: 1\n"
	if err := os.WriteFile(in, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "beat.wav")
	if err := renderOne(in, out, 8000, time.Second); err != nil {
		t.Fatalf("render: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data[:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("not a WAV file")
	}
	if err := renderOne(filepath.Join(dir, "missing.yaml"), out, 8000, time.Second); err == nil {
		t.Fatalf("expected an error for a missing input")
	}
}
