package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/docstack-ai/docstack/engine/embed"
)

func TestBuildProviderSwitchesOnKey(t *testing.T) {
	p, err := buildProvider("", 64, slog.Default())
	if err != nil {
		t.Fatalf("no key: %v", err)
	}
	if _, ok := p.(*embed.Deterministic); !ok {
		t.Fatalf("no key: provider = %T, want deterministic", p)
	}

	p, err = buildProvider("sk-test", 64, slog.Default())
	if err != nil {
		t.Fatalf("with key: %v", err)
	}
	if _, ok := p.(*embed.Resilient); !ok {
		t.Fatalf("with key: provider = %T, want resilient remote wrapper", p)
	}
	if p.Dimension() != 64 {
		t.Errorf("dimension = %d, want 64", p.Dimension())
	}
}

func TestStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	saveState(path, map[string]bool{"a.txt:10": true})
	got := loadState(path)
	if !got["a.txt:10"] {
		t.Fatalf("state = %v", got)
	}
}

func TestLoadStateMissingFile(t *testing.T) {
	got := loadState(filepath.Join(t.TempDir(), "absent.json"))
	if len(got) != 0 {
		t.Fatalf("state = %v, want empty", got)
	}
}

func TestWatchScansOnce(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt", ".hidden"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	var seen []string
	process := func(_ context.Context, path string) bool {
		seen = append(seen, filepath.Base(path))
		return true
	}

	// A cancelled context stops the loop right after the initial scan.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	state := filepath.Join(dir, ".ingest-state.json")
	watch(ctx, dir, time.Hour, state, process, slog.Default())

	if len(seen) != 2 {
		t.Fatalf("processed %v, want the two visible files", seen)
	}

	// Successful files are recorded so a rescan skips them.
	if got := loadState(state); len(got) != 2 {
		t.Fatalf("state = %v", got)
	}
}

func TestWatchRetriesFailures(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	process := func(context.Context, string) bool { return false }
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	state := filepath.Join(dir, ".ingest-state.json")
	watch(ctx, dir, time.Hour, state, process, slog.Default())

	if got := loadState(state); len(got) != 0 {
		t.Fatalf("failed file must not be marked processed: %v", got)
	}
}
