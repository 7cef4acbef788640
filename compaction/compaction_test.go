package compaction_test

import (
	"testing"

	"github.com/justapithecus/governor/compaction"
	"github.com/justapithecus/governor/types"
)

func act(id, tool string, args map[string]any) types.Action {
	return types.Action{ActionID: id, ToolName: tool, Arguments: args, Order: 0}
}

func TestCompact_LastWriteWinsDropsEarlierWrite(t *testing.T) {
	plan := types.Plan{PlanID: "p1", Actions: []types.Action{
		act("1", "write_file", map[string]any{"path": "a.txt", "content": "v1"}),
		act("2", "write_file", map[string]any{"path": "a.txt", "content": "v2"}),
	}}

	out, info := compaction.Compact(plan)
	if !info.CompactionApplied {
		t.Fatalf("expected compaction applied, info=%+v", info)
	}
	if len(out.Actions) != 1 {
		t.Fatalf("expected 1 surviving action, got %d", len(out.Actions))
	}
	content, _ := out.Actions[0].Content()
	if content != "v2" {
		t.Errorf("expected last write to survive, got content %q", content)
	}
	if len(info.DroppedActionIDs) != 1 || info.DroppedActionIDs[0] != "1" {
		t.Errorf("expected action 1 dropped, got %v", info.DroppedActionIDs)
	}
}

func TestCompact_RedundantReadAfterWriteDropped(t *testing.T) {
	plan := types.Plan{PlanID: "p1", Actions: []types.Action{
		act("1", "write_file", map[string]any{"path": "a.txt", "content": "v1"}),
		act("2", "read_file", map[string]any{"path": "a.txt"}),
		act("3", "write_file", map[string]any{"path": "b.txt", "content": "keep-me"}),
	}}

	out, info := compaction.Compact(plan)
	if !info.CompactionApplied {
		t.Fatalf("expected compaction applied, info=%+v", info)
	}
	if len(out.Actions) != 2 {
		t.Fatalf("expected 2 surviving actions, got %d", len(out.Actions))
	}
}

func TestCompact_DuplicateSequentialReadsKeepsFirst(t *testing.T) {
	plan := types.Plan{PlanID: "p1", Actions: []types.Action{
		act("1", "read_file", map[string]any{"path": "a.txt"}),
		act("2", "read_file", map[string]any{"path": "a.txt"}),
		act("3", "write_file", map[string]any{"path": "b.txt", "content": "x"}),
	}}

	out, info := compaction.Compact(plan)
	if !info.CompactionApplied {
		t.Fatalf("expected compaction applied, info=%+v", info)
	}
	if len(out.Actions) != 2 {
		t.Fatalf("expected 2 surviving actions, got %d", len(out.Actions))
	}
}

func TestCompact_TrailingNonMutatingDropped(t *testing.T) {
	plan := types.Plan{PlanID: "p1", Actions: []types.Action{
		act("1", "write_file", map[string]any{"path": "a.txt", "content": "x"}),
		act("2", "list_dir", map[string]any{"path": "."}),
		act("3", "read_file", map[string]any{"path": "a.txt"}),
	}}

	out, info := compaction.Compact(plan)
	if !info.CompactionApplied {
		t.Fatalf("expected compaction applied, info=%+v", info)
	}
	if len(out.Actions) != 1 {
		t.Fatalf("expected only the write to survive, got %d", len(out.Actions))
	}
}

func TestCompact_NoRedundancyLeavesPlanUnchanged(t *testing.T) {
	plan := types.Plan{PlanID: "p1", Actions: []types.Action{
		act("1", "write_file", map[string]any{"path": "a.txt", "content": "x"}),
		act("2", "write_file", map[string]any{"path": "b.txt", "content": "y"}),
	}}

	out, info := compaction.Compact(plan)
	if info.CompactionApplied {
		t.Fatalf("expected no compaction, info=%+v", info)
	}
	if len(out.Actions) != 2 {
		t.Errorf("expected plan unchanged, got %d actions", len(out.Actions))
	}
}

func TestCompact_ActionIDsAreDenselyRenumbered(t *testing.T) {
	plan := types.Plan{PlanID: "p1", Actions: []types.Action{
		act("1", "write_file", map[string]any{"path": "a.txt", "content": "v1"}),
		act("2", "write_file", map[string]any{"path": "a.txt", "content": "v2"}),
		act("3", "write_file", map[string]any{"path": "b.txt", "content": "v3"}),
	}}

	out, _ := compaction.Compact(plan)
	for i, a := range out.Actions {
		if a.ActionID != string(rune('1'+i)) {
			t.Errorf("action %d: expected dense id, got %s", i, a.ActionID)
		}
		if a.Order != i+1 {
			t.Errorf("action %d: expected order %d, got %d", i, i+1, a.Order)
		}
	}
}
