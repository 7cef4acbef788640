package types

import "encoding/json"

// Stage names an execution log event's pipeline stage.
type Stage string

// Stages per spec.md §3 Execution Event.
const (
	StageTaskIntake                 Stage = "task_intake"
	StagePlanGeneration             Stage = "plan_generation"
	StageLLMPlanRequest             Stage = "llm_plan_request"
	StageLLMPlanResponse            Stage = "llm_plan_response"
	StagePlanParseFailure           Stage = "plan_parse_failure"
	StagePlanCommitted              Stage = "plan_committed"
	StagePlanCompaction             Stage = "plan_compaction"
	StageRiskEvaluation             Stage = "risk_evaluation"
	StageStabilization              Stage = "stabilization"
	StageAdapterInvocation          Stage = "adapter_invocation"
	StageStateValidation            Stage = "state_validation"
	StageReceiptLogging             Stage = "receipt_logging"
	StagePatternRedundancyDetected  Stage = "pattern_redundancy_detected"
)

// Event is one append-only execution log record. Fields beyond the fixed
// header are free-form and stage-specific; they live in Payload and are
// flattened into the top level on marshal, mirroring the Python harness's
// `event.update(payload)`.
type Event struct {
	EventID       string         `json:"-"`
	RunID         string         `json:"-"`
	Stage         Stage          `json:"-"`
	TsUTC         string         `json:"-"`
	DecisionType  string         `json:"-"`
	ActionID      string         `json:"-"`
	AdapterStatus string         `json:"-"`
	RiskLabel     string         `json:"-"`
	RiskScore     string         `json:"-"`
	PolicyReason  string         `json:"-"`
	Payload       map[string]any `json:"-"`
	PayloadHash   string         `json:"-"`
}

// flatten builds the map[string]any that represents this event on the
// wire, with Payload fields merged at the top level first and the fixed
// header fields written after them, so a header field overrides a payload
// key of the same name. event_id, run_id, stage, ts_utc and decision_type
// are always written; action_id, adapter_status and the other optional
// header fields are written only when non-empty.
func (e Event) flatten() map[string]any {
	m := make(map[string]any, len(e.Payload)+10)
	for k, v := range e.Payload {
		m[k] = v
	}
	m["event_id"] = e.EventID
	m["run_id"] = e.RunID
	m["stage"] = string(e.Stage)
	m["ts_utc"] = e.TsUTC
	m["decision_type"] = e.DecisionType
	if e.ActionID != "" {
		m["action_id"] = e.ActionID
	}
	if e.AdapterStatus != "" {
		m["adapter_status"] = e.AdapterStatus
	}
	if e.RiskLabel != "" {
		m["risk_label"] = e.RiskLabel
	}
	if e.RiskScore != "" {
		m["risk_score"] = e.RiskScore
	}
	if e.PolicyReason != "" {
		m["policy_reason"] = e.PolicyReason
	}
	if e.PayloadHash != "" {
		m["payload_hash"] = e.PayloadHash
	}
	return m
}

// MarshalJSON flattens the event to a single JSON object.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.flatten())
}

// HashableMap returns the event as a map with ts_utc and event_id removed,
// per the canonical log hash rule in spec.md §4.5.
func (e Event) HashableMap() map[string]any {
	m := e.flatten()
	delete(m, "ts_utc")
	delete(m, "event_id")
	return m
}

// PayloadHashableMap returns the event as a map with only ts_utc removed,
// per the per-event payload_hash rule in spec.md §4.5 ("excluding ts_utc").
func (e Event) PayloadHashableMap() map[string]any {
	m := e.flatten()
	delete(m, "ts_utc")
	return m
}
