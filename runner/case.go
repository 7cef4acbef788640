// Package runner implements the Case Runner and Suite Runner: the
// orchestration layer that drives a plan through parsing, compaction,
// policy evaluation, stabilization, and sandboxed execution, logging every
// step to the execution log and rolling per-case outcomes up into a suite
// envelope.
package runner

import (
	"fmt"

	"github.com/justapithecus/governor/compaction"
	"github.com/justapithecus/governor/execlog"
	"github.com/justapithecus/governor/log"
	"github.com/justapithecus/governor/planparser"
	"github.com/justapithecus/governor/policy"
	"github.com/justapithecus/governor/sandbox"
	"github.com/justapithecus/governor/stabilizer"
	"github.com/justapithecus/governor/types"
)

// CaseOptions configures one case run. Actions is the pre-canned action
// list used when Planner is nil or TaskIntakePrompt is empty; otherwise the
// planner's reply supersedes it.
type CaseOptions struct {
	RunID            string
	CaseID           string
	TaskIntakePrompt string
	Actions          []types.Action
	Planner          Planner
	Seed             int
	SandboxRoot      string
	LogPath          string
	MaxActions       int
	GovernanceMode   planparser.GovernanceMode
	WriteContentMax  int
	Stats            *policy.StatsRecorder
	Logger           *log.Logger
}

// LLMMeta carries the planner-mode signals compute_metrics_llm-style
// suite metrics are built from. Zero value means the case had no planner.
type LLMMeta struct {
	HadPlanner                  bool
	ParseOK                     bool
	ActionsPlanned              int
	OverflowCount               int
	ForbiddenCount              int
	PromptChars                 int
	ResponseChars               int
	PatternRedundancyDetected   bool
	CompactionApplied           bool
	CompactionOriginalActionCount int
	CompactionDroppedCount      int
}

// CaseSummary is what the suite runner accumulates across cases.
type CaseSummary struct {
	CaseID              string
	TotalActions        int
	ExecutedActionCount int
	BlockedActionCount  int
	ModifiedActionCount int
	LLMMeta             LLMMeta
}

// scheduledAction is one action that survived stabilization and is queued
// for sandbox execution, tagged with whether it differs from the verdict's
// original action.
type scheduledAction struct {
	action       types.Action
	verdict      types.PolicyVerdict
	wasModified  bool
}

// RunCase drives one case through the full INTAKE → RECEIPT state machine,
// appending every stage's event to opts.LogPath. A returned error means a
// log I/O failure or a sandbox that could not be initialized — the failure
// modes this package treats as fatal to the run, in line with the
// error-handling design's "I/O errors on log or envelope are fatal for the
// run" rule.
func RunCase(opts CaseOptions) (CaseSummary, error) {
	if opts.Logger != nil {
		opts.Logger.Info("case started", map[string]any{"case_id": opts.CaseID})
	}

	adapter, err := sandbox.New(opts.SandboxRoot)
	if err != nil {
		if opts.Logger != nil {
			opts.Logger.Error("sandbox init failed", map[string]any{"case_id": opts.CaseID, "error": err.Error()})
		}
		return CaseSummary{}, fmt.Errorf("runner: sandbox init for case %s: %w", opts.CaseID, err)
	}

	cl := &caseLogger{logPath: opts.LogPath, runID: opts.RunID, caseID: opts.CaseID}

	plan := types.Plan{PlanID: opts.CaseID, Actions: normalizeActions(opts.Actions)}
	var meta LLMMeta

	if opts.Planner != nil && opts.TaskIntakePrompt != "" {
		meta.HadPlanner = true
		rawText, genErr := opts.Planner.Generate(opts.TaskIntakePrompt, opts.Seed)
		meta.PromptChars = len(opts.TaskIntakePrompt)
		if err := cl.log(types.StageLLMPlanRequest, "", "", "", "", "", "", map[string]any{
			"prompt_chars": meta.PromptChars,
		}); err != nil {
			return CaseSummary{}, err
		}

		if genErr != nil {
			if err := cl.log(types.StagePlanParseFailure, "", "", "", "", "", "", map[string]any{
				"errors": []string{genErr.Error()},
			}); err != nil {
				return CaseSummary{}, err
			}
			plan = types.Plan{PlanID: opts.CaseID, Actions: nil}
		} else {
			meta.ResponseChars = len(rawText)
			res := planparser.Parse(rawText, planparser.Options{MaxActions: opts.MaxActions, Mode: opts.GovernanceMode})
			meta.OverflowCount = res.OverflowCount
			meta.ForbiddenCount = res.ForbiddenToolCount

			if res.Plan == nil {
				if err := cl.log(types.StagePlanParseFailure, "", "", "", "", "", "", map[string]any{
					"errors": res.ParseErrors,
				}); err != nil {
					return CaseSummary{}, err
				}
				plan = types.Plan{PlanID: opts.CaseID, Actions: nil}
			} else {
				meta.ParseOK = true
				meta.ActionsPlanned = len(res.Plan.Actions)
				actions := make([]types.Action, 0, len(res.Plan.Actions))
				for _, pa := range res.Plan.Actions {
					actions = append(actions, types.Action{ActionID: pa.ActionID, ToolName: pa.ToolName, Arguments: pa.Arguments, Order: pa.Order})
				}
				plan = types.Plan{PlanID: opts.CaseID, Actions: actions}

				if dup := duplicateActionCount(actions); dup > 0 {
					meta.PatternRedundancyDetected = true
					if err := cl.log(types.StagePatternRedundancyDetected, "", "", "", "", "", "", map[string]any{
						"duplicate_count": dup,
					}); err != nil {
						return CaseSummary{}, err
					}
				}

				if err := cl.log(types.StageLLMPlanResponse, "", "", "", "", "", "", map[string]any{
					"response_chars":       meta.ResponseChars,
					"forbidden_tool_count": meta.ForbiddenCount,
					"overflow_count":       meta.OverflowCount,
				}); err != nil {
					return CaseSummary{}, err
				}
			}
		}
	}

	if err := cl.log(types.StageTaskIntake, "", "", "", "", "", "", map[string]any{
		"plan_id":      plan.PlanID,
		"action_count": len(plan.Actions),
	}); err != nil {
		return CaseSummary{}, err
	}
	if err := cl.log(types.StagePlanGeneration, "", "", "", "", "", "", map[string]any{
		"action_count": len(plan.Actions),
	}); err != nil {
		return CaseSummary{}, err
	}

	plan.Actions = types.Renumber(plan.Actions)

	snapshot := make([]map[string]any, 0, len(plan.Actions))
	for _, a := range plan.Actions {
		snapshot = append(snapshot, map[string]any{"tool_name": a.ToolName, "arguments": a.Arguments})
	}
	snapshotHash := types.CanonicalSHA256(snapshot)
	if err := cl.log(types.StagePlanCommitted, "", "", "", "", "", "", map[string]any{
		"plan_id":                    plan.PlanID,
		"plan_actions_snapshot":      snapshot,
		"plan_actions_snapshot_sha256": snapshotHash,
	}); err != nil {
		return CaseSummary{}, err
	}

	meta.CompactionOriginalActionCount = len(plan.Actions)
	compactedPlan, compactionInfo := compaction.Compact(plan)
	meta.CompactionApplied = compactionInfo.CompactionApplied
	meta.CompactionDroppedCount = compactionInfo.DroppedActionCount
	if err := cl.log(types.StagePlanCompaction, "", "", "", "", "", "", map[string]any{
		"compaction_applied":                 compactionInfo.CompactionApplied,
		"original_action_count":              compactionInfo.OriginalActionCount,
		"compacted_action_count":             compactionInfo.CompactedActionCount,
		"rules_applied":                      compactionInfo.RulesApplied,
		"dropped_action_ids":                 compactionInfo.DroppedActionIDs,
		"dropped_action_count":               compactionInfo.DroppedActionCount,
		"compaction_aborted":                 compactionInfo.CompactionAborted,
		"compaction_aborted_reason":          compactionInfo.CompactionAbortedReason,
		"sandbox_state_hash_simulated_before": compactionInfo.SandboxStateHashSimulatedBefore,
		"sandbox_state_hash_simulated_after":  compactionInfo.SandboxStateHashSimulatedAfter,
	}); err != nil {
		return CaseSummary{}, err
	}

	finalPlan := plan
	if compactionInfo.CompactionApplied {
		finalPlan = compactedPlan
	}

	verdicts := make([]types.PolicyVerdict, len(finalPlan.Actions))
	for i, a := range finalPlan.Actions {
		v := policy.Evaluate(a, adapter.Root(), policy.Options{WriteContentMax: opts.WriteContentMax})
		verdicts[i] = v
		if opts.Stats != nil {
			opts.Stats.Record(v)
		}
		if err := cl.log(types.StageRiskEvaluation, v.ActionID, string(v.DecisionType), "", string(v.RiskLabel), v.RiskScore, v.PolicyReason, map[string]any{
			"modified_action":          nil,
			"stabilization_mechanism":  "",
		}); err != nil {
			return CaseSummary{}, err
		}
	}

	var scheduled []scheduledAction
	blockedCount := 0
	modifiedCount := 0
	for i, a := range finalPlan.Actions {
		v := verdicts[i]
		if v.DecisionType == types.DecisionAllow {
			scheduled = append(scheduled, scheduledAction{action: a, verdict: v, wasModified: false})
			continue
		}
		stab := stabilizer.Stabilize(a, v, opts.WriteContentMax)
		if err := cl.log(types.StageStabilization, a.ActionID, string(stab.DecisionType), "", string(v.RiskLabel), v.RiskScore, v.PolicyReason, map[string]any{
			"original_action":       a,
			"modified_action":       stab.ModifiedAction,
			"stabilization_mechanism": string(stab.Mechanism),
			"stabilization_reason":   stab.Reason,
		}); err != nil {
			return CaseSummary{}, err
		}
		if stab.DecisionType == types.DecisionAllowModified && stab.ModifiedAction != nil {
			scheduled = append(scheduled, scheduledAction{action: *stab.ModifiedAction, verdict: v, wasModified: true})
			modifiedCount++
		} else {
			blockedCount++
		}
	}

	results := make([]sandbox.Result, 0, len(scheduled))
	for _, s := range scheduled {
		result := adapter.Execute(s.action)
		results = append(results, result)
		if err := cl.log(types.StageAdapterInvocation, s.action.ActionID, string(s.verdict.DecisionType), result.AdapterStatus, string(s.verdict.RiskLabel), s.verdict.RiskScore, s.verdict.PolicyReason, map[string]any{
			"output_hash":  result.OutputHash,
			"was_modified": s.wasModified,
		}); err != nil {
			return CaseSummary{}, err
		}
	}

	executedCount := len(results)
	integrityOK := true
	for _, r := range results {
		if r.AdapterStatus != sandbox.StatusSuccess {
			integrityOK = false
			break
		}
	}
	if err := cl.log(types.StageStateValidation, "", "", "", "", "", "", map[string]any{
		"integrity_ok":          integrityOK,
		"completed_action_count": executedCount,
		"total_evaluated":       len(finalPlan.Actions),
		"blocked_count":         blockedCount,
		"modified_count":        modifiedCount,
	}); err != nil {
		return CaseSummary{}, err
	}

	if err := cl.log(types.StageReceiptLogging, "", "", "", "", "", "", map[string]any{
		"event_count":           cl.count + 1,
		"executed_action_count": executedCount,
		"modified_action_count": modifiedCount,
	}); err != nil {
		return CaseSummary{}, err
	}

	if opts.Logger != nil {
		opts.Logger.Info("case completed", map[string]any{
			"case_id":       opts.CaseID,
			"executed":      executedCount,
			"blocked":       blockedCount,
			"modified":      modifiedCount,
			"integrity_ok":  integrityOK,
		})
	}

	return CaseSummary{
		CaseID:              opts.CaseID,
		TotalActions:        len(finalPlan.Actions),
		ExecutedActionCount: executedCount,
		BlockedActionCount:  blockedCount,
		ModifiedActionCount: modifiedCount,
		LLMMeta:             meta,
	}, nil
}

// normalizeActions fills in empty-argument defaults and assigns dense
// action_id/order to a pre-canned action list, mirroring NormalizeAction.
func normalizeActions(actions []types.Action) []types.Action {
	if actions == nil {
		return nil
	}
	out := make([]types.Action, len(actions))
	for i, a := range actions {
		out[i] = types.NormalizeAction(a)
	}
	return types.Renumber(out)
}

// duplicateActionCount counts actions whose canonical (tool_name,
// arguments) pair repeats an earlier action in the same plan — a
// planner-facing redundancy signal that does not affect execution.
func duplicateActionCount(actions []types.Action) int {
	seen := make(map[string]int, len(actions))
	dup := 0
	for _, a := range actions {
		key := types.CanonicalSHA256(map[string]any{"tool_name": a.ToolName, "arguments": a.Arguments})
		seen[key]++
		if seen[key] > 1 {
			dup++
		}
	}
	return dup
}

// caseLogger appends case-scoped events to the run's shared log file,
// injecting case_id into every payload and counting how many lines this
// case has written so receipt_logging can report an accurate event_count.
type caseLogger struct {
	logPath string
	runID   string
	caseID  string
	count   int
}

func (cl *caseLogger) log(stage types.Stage, actionID, decisionType, adapterStatus, riskLabel, riskScore, policyReason string, payload map[string]any) error {
	p := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		p[k] = v
	}
	if cl.caseID != "" {
		p["case_id"] = cl.caseID
	}
	_, err := execlog.Append(cl.logPath, execlog.AppendOptions{
		RunID:         cl.runID,
		Stage:         stage,
		ActionID:      actionID,
		DecisionType:  decisionType,
		AdapterStatus: adapterStatus,
		RiskLabel:     riskLabel,
		RiskScore:     riskScore,
		PolicyReason:  policyReason,
		Payload:       p,
	})
	if err != nil {
		return err
	}
	cl.count++
	return nil
}
