package cmd_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/governor/cli/cmd"
)

func writeFixtureSuite(t *testing.T, dir string) string {
	t.Helper()
	suitePath := filepath.Join(dir, "suite")
	if err := os.MkdirAll(suitePath, 0o755); err != nil {
		t.Fatal(err)
	}

	line := `{"case_id":"case-1","actions":[{"action_id":"a1","tool_name":"write_file","arguments":{"path":"out.txt","content":"hi"}},{"action_id":"a2","tool_name":"read_file","arguments":{"path":"out.txt"}}]}` + "\n"
	if err := os.WriteFile(filepath.Join(suitePath, "cases.jsonl"), []byte(line), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(suitePath, "manifest.json"), []byte(`{"suite_id":"fixture","expected_cases":1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	return suitePath
}

func newApp() *cli.App {
	return &cli.App{
		Name: "governor",
		Commands: []*cli.Command{
			cmd.RunCommand(),
			cmd.VerifyCommand(),
			cmd.InspectCommand(),
			cmd.ReplayCommand(),
			cmd.VersionCommand("", "test"),
		},
	}
}

func TestRunCommand_ProducesVerifiableEnvelope(t *testing.T) {
	dir := t.TempDir()
	suitePath := writeFixtureSuite(t, dir)
	runtimeDir := filepath.Join(dir, "runtime")

	app := newApp()
	args := []string{
		"governor", "run",
		"--format", "json",
		"--suite-path", suitePath,
		"--runtime-dir", runtimeDir,
		"--run-id", "fixture-run",
		"--run-instance-id", "attempt1",
	}
	if err := app.Run(args); err != nil {
		t.Fatalf("run command failed: %v", err)
	}

	envelopePath := filepath.Join(runtimeDir, "benchmarks", "autonomous", "fixture-run__attempt1.run.json")
	data, err := os.ReadFile(envelopePath)
	if err != nil {
		t.Fatalf("expected envelope file: %v", err)
	}
	var envelope map[string]any
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("invalid envelope JSON: %v", err)
	}
	if envelope["exit_status"] != "ok" {
		t.Errorf("expected exit_status=ok, got %v", envelope["exit_status"])
	}

	verifyApp := newApp()
	if err := verifyApp.Run([]string{"governor", "verify", "--format", "json", envelopePath}); err != nil {
		t.Fatalf("verify command failed: %v", err)
	}

	inspectApp := newApp()
	if err := inspectApp.Run([]string{"governor", "inspect", "--format", "json", envelopePath}); err != nil {
		t.Fatalf("inspect command failed: %v", err)
	}
}

func TestRunCommand_InvalidGovernanceMode(t *testing.T) {
	dir := t.TempDir()
	suitePath := writeFixtureSuite(t, dir)

	app := newApp()
	args := []string{
		"governor", "run",
		"--suite-path", suitePath,
		"--runtime-dir", filepath.Join(dir, "runtime"),
		"--run-id", "fixture-run",
		"--governance-efficiency-mode", "bogus",
	}
	if err := app.Run(args); err == nil {
		t.Fatal("expected error for invalid governance-efficiency-mode")
	}
}

func TestVerifyCommand_MissingEnvelope(t *testing.T) {
	app := newApp()
	err := app.Run([]string{"governor", "verify", filepath.Join(t.TempDir(), "missing.run.json")})
	if err == nil {
		t.Fatal("expected error for missing envelope")
	}
}
