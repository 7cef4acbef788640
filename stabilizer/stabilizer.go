// Package stabilizer rewrites actions that the Policy Evaluator flagged as
// allow_modified into a safe equivalent action, deterministically and
// without ever touching the sandbox itself.
package stabilizer

import (
	"fmt"
	"strings"

	"github.com/justapithecus/governor/types"
)

// Stabilize produces the execution-time disposition for an action given
// its policy verdict. Block verdicts pass through untouched. allow_modified
// verdicts are rewritten by the mechanism matching their policy reason. An
// allow_modified verdict with any other reason gets path normalization
// (argument_sanitization) when normalizing its path changes more than
// backslashes, surrounding spaces and leading slashes (for example,
// repeated slashes are collapsed); otherwise it degrades to a block with
// mechanism_error rather than
// executing an unstabilized action.
func Stabilize(action types.Action, verdict types.PolicyVerdict, writeContentMax int) types.StabilizationResult {
	if writeContentMax <= 0 {
		writeContentMax = defaultWriteContentMax
	}

	if verdict.DecisionType == types.DecisionBlock {
		return types.StabilizationResult{
			DecisionType: types.DecisionBlock,
			Mechanism:    types.MechanismFullBlock,
			Reason:       verdict.PolicyReason,
		}
	}

	if strings.Contains(verdict.PolicyReason, "delete_file_overly_broad_path") {
		return stabilizeOverlyBroadDelete(action)
	}

	if strings.Contains(verdict.PolicyReason, "write_file_content_exceeds_threshold") ||
		strings.Contains(verdict.PolicyReason, "write_file_content_too_large") {
		return stabilizeOversizedWrite(action, writeContentMax)
	}

	if path, ok := action.Path(); ok && path != "" {
		normalized := normalizeToSandboxRel(path)
		if normalized != strings.TrimLeft(strings.ReplaceAll(strings.TrimSpace(path), `\`, "/"), "/") {
			modified := action.Clone()
			modified.Arguments["path"] = normalized
			return types.StabilizationResult{
				DecisionType:   types.DecisionAllowModified,
				ModifiedAction: &modified,
				Mechanism:      types.MechanismArgumentSanitization,
				Reason:         "path normalized to sandbox-relative form",
			}
		}
	}

	return types.StabilizationResult{
		DecisionType: types.DecisionBlock,
		Mechanism:    types.MechanismError,
		Reason:       fmt.Sprintf("no stabilization for policy_reason=%s", verdict.PolicyReason),
	}
}

const defaultWriteContentMax = 1 * 1024 * 1024

// stabilizeOverlyBroadDelete replaces a delete with an explainable no-op
// write, leaving a trace of what would have happened without deleting
// anything.
func stabilizeOverlyBroadDelete(action types.Action) types.StabilizationResult {
	path, _ := action.Path()
	modified := types.Action{
		ActionID: action.ActionID,
		ToolName: string(types.ToolWriteFile),
		Order:    action.Order,
		Arguments: map[string]any{
			"path": fmt.Sprintf("trash/%s.noop", action.ActionID),
			"content": fmt.Sprintf(
				"stabilization: delete_file_overly_broad_path; original path=%s; scope_reduction to no-op marker",
				path,
			),
		},
	}
	return types.StabilizationResult{
		DecisionType:   types.DecisionAllowModified,
		ModifiedAction: &modified,
		Mechanism:      types.MechanismScopeReduction,
		Reason:         "delete_file_overly_broad_path: replaced with no-op marker write",
	}
}

// stabilizeOversizedWrite truncates write content to the threshold at a
// valid UTF-8 boundary and appends a marker, rather than rejecting the
// write outright.
func stabilizeOversizedWrite(action types.Action, writeContentMax int) types.StabilizationResult {
	content, ok := action.Content()
	if !ok {
		return types.StabilizationResult{
			DecisionType: types.DecisionBlock,
			Mechanism:    types.MechanismError,
			Reason:       "write_file stabilization failed: invalid content",
		}
	}
	if len(content) <= writeContentMax {
		return types.StabilizationResult{
			DecisionType: types.DecisionBlock,
			Mechanism:    types.MechanismError,
			Reason:       "write_file stabilization failed: invalid content",
		}
	}

	truncated := truncateValidUTF8(content, writeContentMax) + "[TRUNCATED]"
	path, _ := action.Path()
	modified := types.Action{
		ActionID: action.ActionID,
		ToolName: string(types.ToolWriteFile),
		Order:    action.Order,
		Arguments: map[string]any{
			"path":    path,
			"content": truncated,
		},
	}
	return types.StabilizationResult{
		DecisionType:   types.DecisionAllowModified,
		ModifiedAction: &modified,
		Mechanism:      types.MechanismScopeReduction,
		Reason:         fmt.Sprintf("write_file content truncated to %d bytes", writeContentMax),
	}
}

// truncateValidUTF8 cuts b's UTF-8 encoding to at most n bytes, backing off
// to the nearest rune boundary so the result never splits a multi-byte
// character, matching the original's errors="ignore" decode-from-bytes
// behavior (which silently drops a trailing partial sequence).
func truncateValidUTF8(s string, n int) string {
	if n >= len(s) {
		return s
	}
	cut := n
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// normalizeToSandboxRel normalizes a path to forward slashes, strips any
// leading slash, and collapses repeated slashes, matching the Python
// harness's sandbox-relative path form.
func normalizeToSandboxRel(path string) string {
	p := strings.ReplaceAll(strings.TrimSpace(path), `\`, "/")
	p = strings.TrimLeft(p, "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	if p == "" {
		return "."
	}
	return p
}
