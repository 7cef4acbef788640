package cmd_test

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReplayCommand_CachesAcrossInvocations(t *testing.T) {
	dir := t.TempDir()
	suitePath := writeFixtureSuite(t, dir)
	runtimeDir := filepath.Join(dir, "runtime")

	runApp := newApp()
	if err := runApp.Run([]string{
		"governor", "run",
		"--suite-path", suitePath,
		"--runtime-dir", runtimeDir,
		"--run-id", "fixture-run",
		"--run-instance-id", "attempt1",
	}); err != nil {
		t.Fatalf("run command failed: %v", err)
	}

	envelopePath := filepath.Join(runtimeDir, "benchmarks", "autonomous", "fixture-run__attempt1.run.json")

	firstApp := newApp()
	if err := firstApp.Run([]string{"governor", "replay", "--format", "json", envelopePath}); err != nil {
		t.Fatalf("first replay failed: %v", err)
	}

	cacheDir := filepath.Join(runtimeDir, ".governor-cache")
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		t.Fatalf("expected cache dir to exist: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 cache entry, got %d", len(entries))
	}

	secondApp := newApp()
	if err := secondApp.Run([]string{"governor", "replay", "--format", "json", envelopePath}); err != nil {
		t.Fatalf("second replay failed: %v", err)
	}
}

func TestReplayCommand_NoCacheSkipsMemoization(t *testing.T) {
	dir := t.TempDir()
	suitePath := writeFixtureSuite(t, dir)
	runtimeDir := filepath.Join(dir, "runtime")

	runApp := newApp()
	if err := runApp.Run([]string{
		"governor", "run",
		"--suite-path", suitePath,
		"--runtime-dir", runtimeDir,
		"--run-id", "fixture-run",
		"--run-instance-id", "attempt1",
	}); err != nil {
		t.Fatalf("run command failed: %v", err)
	}

	envelopePath := filepath.Join(runtimeDir, "benchmarks", "autonomous", "fixture-run__attempt1.run.json")

	app := newApp()
	if err := app.Run([]string{"governor", "replay", "--no-cache", envelopePath}); err != nil {
		t.Fatalf("replay with --no-cache failed: %v", err)
	}

	cacheDir := filepath.Join(runtimeDir, ".governor-cache")
	if _, err := os.Stat(cacheDir); !os.IsNotExist(err) {
		t.Fatalf("expected no cache dir with --no-cache, stat err: %v", err)
	}
}

func TestReplayCommand_MissingEnvelope(t *testing.T) {
	app := newApp()
	err := app.Run([]string{"governor", "replay", filepath.Join(t.TempDir(), "missing.run.json")})
	if err == nil {
		t.Fatal("expected error for missing envelope")
	}
}
