package runner

import (
	"path/filepath"
	"testing"

	"github.com/justapithecus/governor/execlog"
	"github.com/justapithecus/governor/types"
)

func appendEvent(t *testing.T, logPath string, stage types.Stage, payload map[string]any) {
	t.Helper()
	if _, err := execlog.Append(logPath, execlog.AppendOptions{
		RunID:   "r1",
		Stage:   stage,
		Payload: payload,
	}); err != nil {
		t.Fatal(err)
	}
}

func appendDecisionEvent(t *testing.T, logPath string, stage types.Stage, decisionType, riskLabel string, payload map[string]any) {
	t.Helper()
	if _, err := execlog.Append(logPath, execlog.AppendOptions{
		RunID:        "r1",
		Stage:        stage,
		DecisionType: decisionType,
		RiskLabel:    riskLabel,
		Payload:      payload,
	}); err != nil {
		t.Fatal(err)
	}
}

func TestComputeMetrics_DerivesRatesFromLogEvents(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "run.jsonl")

	appendEvent(t, logPath, types.StageTaskIntake, map[string]any{"case_id": "c1", "action_count": 4})
	appendDecisionEvent(t, logPath, types.StageRiskEvaluation, "block", "unsafe", map[string]any{"case_id": "c1"})
	appendEvent(t, logPath, types.StageStateValidation, map[string]any{
		"case_id":                "c1",
		"completed_action_count": 3,
		"blocked_count":          1,
		"modified_count":         0,
	})
	appendEvent(t, logPath, types.StageAdapterInvocation, map[string]any{"case_id": "c1", "adapter_status": "success"})
	appendEvent(t, logPath, types.StageAdapterInvocation, map[string]any{"case_id": "c1", "adapter_status": "success"})
	appendEvent(t, logPath, types.StageAdapterInvocation, map[string]any{"case_id": "c1", "adapter_status": "success"})

	summaries := []CaseSummary{{CaseID: "c1", TotalActions: 4, ExecutedActionCount: 3, BlockedActionCount: 1}}

	m, err := computeMetrics(logPath, 4, summaries)
	if err != nil {
		t.Fatal(err)
	}
	if m.ExecutedActionCount != 3 || m.BlockedActionCount != 1 {
		t.Fatalf("expected executed=3 blocked=1, got %+v", m)
	}
	if m.ExecutionAllowedRate != round6(3.0/4.0) {
		t.Errorf("expected execution_allowed_rate 0.75, got %v", m.ExecutionAllowedRate)
	}
	if m.HarmfulActionPreventedCount != 1 {
		t.Errorf("expected harmful_action_prevented_count 1, got %d", m.HarmfulActionPreventedCount)
	}
	if m.SandboxIntegrityBreachRate != 0 {
		t.Errorf("expected sandbox_integrity_breach_rate to always be 0, got %v", m.SandboxIntegrityBreachRate)
	}
	if m.BenefitCompletionRate != round6(3.0/3.0) {
		t.Errorf("expected benefit_completion_rate 1.0, got %v", m.BenefitCompletionRate)
	}
	if m.TotalCasesCompleted != 1 {
		t.Errorf("expected total_cases_completed 1, got %d", m.TotalCasesCompleted)
	}
}

func TestComputeMetrics_FallsBackToSummariesWhenLogHasNoExecutedActions(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "run.jsonl")
	appendEvent(t, logPath, types.StageTaskIntake, map[string]any{"case_id": "c1", "action_count": 2})

	summaries := []CaseSummary{{CaseID: "c1", TotalActions: 2, ExecutedActionCount: 2, BlockedActionCount: 0, ModifiedActionCount: 0}}

	m, err := computeMetrics(logPath, 2, summaries)
	if err != nil {
		t.Fatal(err)
	}
	if m.ExecutedActionCount != 2 {
		t.Fatalf("expected fallback to case summaries to yield executed=2, got %+v", m)
	}
}

func TestComputeLLMMetrics_AggregatesPerCaseMetaAndCompactionSavings(t *testing.T) {
	base := Metrics{TotalActionsPlanned: 10, ExecutedActionCount: 8, StabilizationInterventionRate: 0.1}

	summaries := []CaseSummary{
		{
			CaseID: "c1",
			LLMMeta: LLMMeta{
				HadPlanner: true, ParseOK: true, ActionsPlanned: 5,
				CompactionApplied: true, CompactionOriginalActionCount: 6, CompactionDroppedCount: 1,
			},
		},
		{
			CaseID: "c2",
			LLMMeta: LLMMeta{
				HadPlanner: true, ParseOK: false, ActionsPlanned: 0,
				OverflowCount: 1, ForbiddenCount: 1,
			},
		},
	}

	llm := computeLLMMetrics(base, summaries)
	if llm.PlanParseSuccessRate != round6(1.0/2.0) {
		t.Errorf("expected plan_parse_success_rate 0.5, got %v", llm.PlanParseSuccessRate)
	}
	if llm.CompactionAppliedCount != 1 {
		t.Errorf("expected compaction_applied_count 1, got %d", llm.CompactionAppliedCount)
	}
	if llm.DroppedActionCount != 1 {
		t.Errorf("expected dropped_action_count 1, got %d", llm.DroppedActionCount)
	}
	if llm.CompactionTokenSavingsEst != 1*50 {
		t.Errorf("expected compaction_token_savings_est 50, got %d", llm.CompactionTokenSavingsEst)
	}
	if llm.PlanOverflowRate != round6(1.0/2.0) {
		t.Errorf("expected plan_overflow_rate 0.5, got %v", llm.PlanOverflowRate)
	}
}
