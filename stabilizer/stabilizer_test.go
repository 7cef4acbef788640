package stabilizer_test

import (
	"strings"
	"testing"

	"github.com/justapithecus/governor/stabilizer"
	"github.com/justapithecus/governor/types"
)

func TestStabilize_BlockPassesThroughAsFullBlock(t *testing.T) {
	action := types.Action{ActionID: "1", ToolName: "execute_shell"}
	verdict := types.PolicyVerdict{DecisionType: types.DecisionBlock, PolicyReason: "tool_not_allowed:execute_shell"}

	res := stabilizer.Stabilize(action, verdict, 0)
	if res.DecisionType != types.DecisionBlock || res.Mechanism != types.MechanismFullBlock {
		t.Fatalf("expected full_block, got %+v", res)
	}
	if res.ModifiedAction != nil {
		t.Errorf("expected no modified action for a block")
	}
}

func TestStabilize_OverlyBroadDeleteBecomesNoopWrite(t *testing.T) {
	action := types.Action{ActionID: "7", ToolName: "delete_file", Arguments: map[string]any{"path": "*.txt"}}
	verdict := types.PolicyVerdict{DecisionType: types.DecisionAllowModified, PolicyReason: "delete_file_overly_broad_path"}

	res := stabilizer.Stabilize(action, verdict, 0)
	if res.DecisionType != types.DecisionAllowModified || res.Mechanism != types.MechanismScopeReduction {
		t.Fatalf("expected allow_modified/scope_reduction, got %+v", res)
	}
	if res.ModifiedAction.ToolName != "write_file" {
		t.Fatalf("expected rewrite to write_file, got %s", res.ModifiedAction.ToolName)
	}
	path, _ := res.ModifiedAction.Path()
	if path != "trash/7.noop" {
		t.Errorf("expected trash/7.noop, got %s", path)
	}
}

func TestStabilize_OversizedWriteIsTruncated(t *testing.T) {
	action := types.Action{ActionID: "3", ToolName: "write_file", Arguments: map[string]any{
		"path": "a.txt", "content": strings.Repeat("x", 20),
	}}
	verdict := types.PolicyVerdict{
		DecisionType: types.DecisionAllowModified,
		PolicyReason: "write_file_content_exceeds_threshold:20>10",
	}

	res := stabilizer.Stabilize(action, verdict, 10)
	if res.DecisionType != types.DecisionAllowModified || res.Mechanism != types.MechanismScopeReduction {
		t.Fatalf("expected allow_modified/scope_reduction, got %+v", res)
	}
	content, _ := res.ModifiedAction.Content()
	if !strings.HasSuffix(content, "[TRUNCATED]") {
		t.Errorf("expected truncated marker suffix, got %q", content)
	}
	if len(content) != 10+len("[TRUNCATED]") {
		t.Errorf("expected content truncated to threshold + marker, got len %d", len(content))
	}
}

func TestStabilize_PathNormalizedToSandboxRelative(t *testing.T) {
	action := types.Action{ActionID: "4", ToolName: "read_file", Arguments: map[string]any{"path": "/notes//a.txt"}}
	verdict := types.PolicyVerdict{DecisionType: types.DecisionAllowModified, PolicyReason: "some_other_reason"}

	res := stabilizer.Stabilize(action, verdict, 0)
	if res.DecisionType != types.DecisionAllowModified || res.Mechanism != types.MechanismArgumentSanitization {
		t.Fatalf("expected allow_modified/argument_sanitization, got %+v", res)
	}
	path, _ := res.ModifiedAction.Path()
	if path != "notes/a.txt" {
		t.Errorf("expected normalized path notes/a.txt, got %s", path)
	}
}

func TestStabilize_UnrecognizedReasonDegradesToMechanismError(t *testing.T) {
	action := types.Action{ActionID: "5", ToolName: "list_dir", Arguments: map[string]any{"path": "."}}
	verdict := types.PolicyVerdict{DecisionType: types.DecisionAllowModified, PolicyReason: "unknown_reason"}

	res := stabilizer.Stabilize(action, verdict, 0)
	if res.DecisionType != types.DecisionBlock || res.Mechanism != types.MechanismError {
		t.Fatalf("expected block/mechanism_error, got %+v", res)
	}
}
