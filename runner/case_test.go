package runner_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/justapithecus/governor/execlog"
	"github.com/justapithecus/governor/runner"
	"github.com/justapithecus/governor/types"
)

func actionArgs(path, content string) map[string]any {
	if content == "" {
		return map[string]any{"path": path}
	}
	return map[string]any{"path": path, "content": content}
}

func TestRunCase_BenignPlanExecutesEverything(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "run.jsonl")
	sandboxRoot := filepath.Join(dir, "sandbox")

	summary, err := runner.RunCase(runner.CaseOptions{
		RunID:       "r1",
		CaseID:      "c1",
		SandboxRoot: sandboxRoot,
		LogPath:     logPath,
		Actions: []types.Action{
			{ToolName: "write_file", Arguments: actionArgs("a.txt", "hello")},
			{ToolName: "read_file", Arguments: actionArgs("a.txt", "")},
		},
	})
	if err != nil {
		t.Fatalf("RunCase: %v", err)
	}
	if summary.BlockedActionCount != 0 {
		t.Errorf("expected no blocked actions, got %d", summary.BlockedActionCount)
	}
	if summary.ExecutedActionCount == 0 {
		t.Errorf("expected at least one executed action")
	}

	events, err := execlog.ReadRaw(logPath)
	if err != nil {
		t.Fatal(err)
	}
	var hasReceipt bool
	for _, ev := range events {
		if ev["stage"] == "receipt_logging" {
			hasReceipt = true
		}
		if ev["case_id"] != "c1" {
			t.Errorf("expected every event tagged with case_id c1, got %v", ev["case_id"])
		}
	}
	if !hasReceipt {
		t.Errorf("expected a receipt_logging event")
	}
}

func TestRunCase_UnsafeActionIsBlockedNotExecuted(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "run.jsonl")
	sandboxRoot := filepath.Join(dir, "sandbox")

	summary, err := runner.RunCase(runner.CaseOptions{
		RunID:       "r1",
		CaseID:      "c1",
		SandboxRoot: sandboxRoot,
		LogPath:     logPath,
		Actions: []types.Action{
			{ToolName: "write_file", Arguments: actionArgs("../evil.txt", "bad")},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if summary.BlockedActionCount != 1 {
		t.Fatalf("expected the traversal write blocked, got blocked=%d executed=%d", summary.BlockedActionCount, summary.ExecutedActionCount)
	}
	if summary.ExecutedActionCount != 0 {
		t.Errorf("expected nothing executed")
	}
}

func TestRunCase_OverlyBroadDeleteIsStabilizedAndExecutedAsNoop(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "run.jsonl")
	sandboxRoot := filepath.Join(dir, "sandbox")

	summary, err := runner.RunCase(runner.CaseOptions{
		RunID:       "r1",
		CaseID:      "c1",
		SandboxRoot: sandboxRoot,
		LogPath:     logPath,
		Actions: []types.Action{
			{ToolName: "delete_file", Arguments: actionArgs("*", "")},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if summary.ModifiedActionCount != 1 {
		t.Fatalf("expected one modified action, got %+v", summary)
	}
	if summary.ExecutedActionCount != 1 {
		t.Fatalf("expected the stabilized noop write executed, got %+v", summary)
	}
}

type stubPlanner struct {
	raw string
	err error
}

func (s stubPlanner) Generate(prompt string, seed int) (string, error) {
	return s.raw, s.err
}

func TestRunCase_PlannerRawTextIsParsedAndExecuted(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "run.jsonl")
	sandboxRoot := filepath.Join(dir, "sandbox")

	summary, err := runner.RunCase(runner.CaseOptions{
		RunID:            "r1",
		CaseID:           "c1",
		SandboxRoot:      sandboxRoot,
		LogPath:          logPath,
		TaskIntakePrompt: "write a file",
		Planner:          stubPlanner{raw: `{"actions": [{"tool_name": "write_file", "arguments": {"path": "a.txt", "content": "hi"}}]}`},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !summary.LLMMeta.HadPlanner || !summary.LLMMeta.ParseOK {
		t.Fatalf("expected planner meta marked ok, got %+v", summary.LLMMeta)
	}
	if summary.ExecutedActionCount != 1 {
		t.Fatalf("expected one executed action, got %+v", summary)
	}
}

func TestRunCase_PlannerFailureYieldsParseFailureAndEmptyPlan(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "run.jsonl")
	sandboxRoot := filepath.Join(dir, "sandbox")

	summary, err := runner.RunCase(runner.CaseOptions{
		RunID:            "r1",
		CaseID:           "c1",
		SandboxRoot:      sandboxRoot,
		LogPath:          logPath,
		TaskIntakePrompt: "do something",
		Planner:          stubPlanner{err: errors.New("timeout")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if summary.TotalActions != 0 || summary.ExecutedActionCount != 0 {
		t.Fatalf("expected empty plan on planner failure, got %+v", summary)
	}

	events, err := execlog.ReadRaw(logPath)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, ev := range events {
		if ev["stage"] == "plan_parse_failure" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a plan_parse_failure event")
	}
}
