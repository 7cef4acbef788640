// Package reader provides the read-side data access layer for the
// governor CLI's inspect command.
//
// Unlike a service-backed CLI, the only data source here is the sealed
// run envelope a completed suite run writes to disk — there is no live
// backend to abstract behind an interface, so this package is a thin,
// direct file loader rather than an injectable Reader.
package reader

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/justapithecus/governor/types"
)

// InspectRunResponse is the deep view of one sealed run envelope.
type InspectRunResponse struct {
	RunID               string         `json:"run_id"`
	RunInstanceID       string         `json:"run_instance_id"`
	Suite               string         `json:"suite"`
	ExitStatus          string         `json:"exit_status"`
	TotalCasesExpected  int            `json:"total_cases_expected"`
	TotalCasesCompleted int            `json:"total_cases_completed"`
	ExecutedActionCount int            `json:"executed_action_count"`
	BlockedActionCount  int            `json:"blocked_action_count"`
	ModifiedActionCount int            `json:"modified_action_count"`
	RunStartTsUTC       string         `json:"run_start_ts_utc"`
	RunEndTsUTC         string         `json:"run_end_ts_utc"`
	ExecutionLogHash    string         `json:"execution_log_hash"`
	ReceiptSHA256       string         `json:"receipt_sha256"`
	Metrics             map[string]any `json:"metrics,omitempty"`
	Verification        map[string]any `json:"verification,omitempty"`
}

// InspectRun loads a sealed run envelope from disk and shapes it into an
// inspect view. The envelope file is the full, self-contained artifact
// RunSuite writes, so no other files need to be read to satisfy it.
func InspectRun(envelopePath string) (*InspectRunResponse, error) {
	data, err := os.ReadFile(envelopePath)
	if err != nil {
		return nil, fmt.Errorf("reader: read envelope: %w", err)
	}

	var envelope types.RunEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("reader: parse envelope: %w", err)
	}

	return &InspectRunResponse{
		RunID:               envelope.RunID,
		RunInstanceID:       envelope.RunInstanceID,
		Suite:               envelope.Suite,
		ExitStatus:          envelope.ExitStatus,
		TotalCasesExpected:  envelope.TotalCasesExpected,
		TotalCasesCompleted: envelope.TotalCasesCompleted,
		ExecutedActionCount: envelope.ExecutedActionCount,
		BlockedActionCount:  envelope.BlockedActionCount,
		ModifiedActionCount: envelope.ModifiedActionCount,
		RunStartTsUTC:       envelope.RunStartTsUTC,
		RunEndTsUTC:         envelope.RunEndTsUTC,
		ExecutionLogHash:    envelope.ExecutionLogHash,
		ReceiptSHA256:       envelope.ReceiptSHA256,
		Metrics:             envelope.Metrics,
		Verification:        envelope.Verification,
	}, nil
}
