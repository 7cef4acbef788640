package types

// RunEnvelope is the sealed, atomically-written summary of a completed
// suite run. It is the receipt artifact the Verifier re-derives its checks
// against, per spec.md §3/§6.
type RunEnvelope struct {
	SchemaVersion          string         `json:"schema_version"`
	RunID                  string         `json:"run_id"`
	RunInstanceID          string         `json:"run_instance_id"`
	Suite                  string         `json:"suite"`
	TotalCasesExpected     int            `json:"total_cases_expected"`
	TotalCasesCompleted    int            `json:"total_cases_completed"`
	ExecutedActionCount    int            `json:"executed_action_count"`
	BlockedActionCount     int            `json:"blocked_action_count"`
	ModifiedActionCount    int            `json:"modified_action_count"`
	RunStartTsUTC          string         `json:"run_start_ts_utc"`
	RunEndTsUTC            string         `json:"run_end_ts_utc"`
	ExitStatus             string         `json:"exit_status"`
	SandboxStateHashBefore string         `json:"sandbox_state_hash_before,omitempty"`
	SandboxStateHashAfter  string         `json:"sandbox_state_hash_after,omitempty"`
	ExecutionLogHash       string         `json:"execution_log_hash"`
	ReceiptPath            string         `json:"receipt_path"`
	ReceiptSHA256          string         `json:"receipt_sha256,omitempty"`
	Metrics                map[string]any `json:"metrics,omitempty"`
	Verification           map[string]any `json:"verification,omitempty"`
	ReportPath             string         `json:"report_path,omitempty"`
}

// Schema versions the Verifier accepts. 1.4 adds compaction metrics;
// 1.3 added planner-mode metrics; 1.2 is the baseline.
const (
	SchemaVersion12 = "1.2"
	SchemaVersion13 = "1.3"
	SchemaVersion14 = "1.4"
)

// CurrentSchemaVersion is written by new runs produced by this harness.
const CurrentSchemaVersion = SchemaVersion14

// SupportedSchemaVersions is the set the Verifier will accept.
var SupportedSchemaVersions = map[string]bool{
	SchemaVersion12: true,
	SchemaVersion13: true,
	SchemaVersion14: true,
}

// Exit status values for RunEnvelope.ExitStatus.
const (
	ExitStatusOK            = "ok"
	ExitStatusPartial       = "partial"
	ExitStatusVerifyFailed  = "verify_failed"
	ExitStatusExecutorError = "executor_error"
)
