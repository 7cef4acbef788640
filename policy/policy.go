// Package policy implements the deterministic, rule-based risk evaluator
// that classifies each action in a plan before it ever reaches the sandbox.
package policy

import (
	"fmt"
	"strings"

	"github.com/justapithecus/governor/types"
)

// DefaultWriteContentMax is the default write_file content size threshold,
// in bytes, above which a write is classified risky rather than benign.
const DefaultWriteContentMax = 1 * 1024 * 1024

// shellMarkers are substrings in a path argument that indicate an attempt
// to smuggle shell execution through a file-tool path.
var shellMarkers = []string{";", "&&", "|", "`", "$("}

// broadPathPatterns flag a delete_file path as overly broad (wildcards,
// root, or other patterns that could delete far more than intended).
var broadPathPatterns = []string{"*", "?", "**", "./", `.\`, "/*", `\*`}

// Options configures Evaluate. The zero value uses DefaultWriteContentMax.
type Options struct {
	WriteContentMax int
}

// Evaluate classifies one action against the sandbox it will run in,
// returning the action's risk label, reason, and decision type. Checks run
// in a fixed order — tool allow-list, path containment, shell markers,
// then tool-specific heuristics — so the same action always produces the
// same verdict (spec determinism requirement).
//
// A panic anywhere in evaluation (a malformed Arguments value, say) is
// recovered here and converted to an unsafe/block verdict rather than
// propagated, matching the evaluator's evaluation_error contract. This is
// the only recover boundary in this package.
func Evaluate(action types.Action, sandboxRoot string, opts Options) (verdict types.PolicyVerdict) {
	defer func() {
		if r := recover(); r != nil {
			verdict = types.PolicyVerdict{
				ActionID:     action.ActionID,
				RiskLabel:    types.RiskUnsafe,
				RiskScore:    string(types.RiskUnsafe),
				PolicyReason: fmt.Sprintf("evaluation_error:%v", r),
				DecisionType: types.DecisionBlock,
			}
		}
	}()
	return evaluate(action, sandboxRoot, opts)
}

func evaluate(action types.Action, sandboxRoot string, opts Options) types.PolicyVerdict {
	writeMax := opts.WriteContentMax
	if writeMax <= 0 {
		writeMax = DefaultWriteContentMax
	}

	if !types.AllowedTools[types.ToolName(action.ToolName)] {
		return types.PolicyVerdict{
			ActionID:     action.ActionID,
			RiskLabel:    types.RiskUnsafe,
			RiskScore:    string(types.RiskUnsafe),
			PolicyReason: "tool_not_allowed:" + action.ToolName,
			DecisionType: types.DecisionBlock,
		}
	}

	pathArgs := pathArguments(action.Arguments)

	for _, p := range pathArgs {
		if !pathResolvesInsideSandbox(sandboxRoot, p) {
			return types.PolicyVerdict{
				ActionID:     action.ActionID,
				RiskLabel:    types.RiskUnsafe,
				RiskScore:    string(types.RiskUnsafe),
				PolicyReason: "path_traversal_or_outside_sandbox",
				DecisionType: types.DecisionBlock,
			}
		}
	}

	for _, p := range pathArgs {
		if containsShellMarkers(p) {
			return types.PolicyVerdict{
				ActionID:     action.ActionID,
				RiskLabel:    types.RiskUnsafe,
				RiskScore:    string(types.RiskUnsafe),
				PolicyReason: "shell_execution_markers_in_path",
				DecisionType: types.DecisionBlock,
			}
		}
	}

	if types.ToolName(action.ToolName) == types.ToolDeleteFile {
		path, _ := action.Path()
		if pathIsOverlyBroad(path) {
			return types.PolicyVerdict{
				ActionID:     action.ActionID,
				RiskLabel:    types.RiskRisky,
				RiskScore:    string(types.RiskRisky),
				PolicyReason: "delete_file_overly_broad_path",
				DecisionType: types.DecisionAllowModified,
			}
		}
	}

	if types.ToolName(action.ToolName) == types.ToolWriteFile {
		content, _ := action.Content()
		size := len(content)
		if size > writeMax {
			return types.PolicyVerdict{
				ActionID:     action.ActionID,
				RiskLabel:    types.RiskRisky,
				RiskScore:    string(types.RiskRisky),
				PolicyReason: fmt.Sprintf("write_file_content_exceeds_threshold:%d>%d", size, writeMax),
				DecisionType: types.DecisionAllowModified,
			}
		}
	}

	return types.PolicyVerdict{
		ActionID:     action.ActionID,
		RiskLabel:    types.RiskBenign,
		RiskScore:    string(types.RiskBenign),
		PolicyReason: "within_policy",
		DecisionType: types.DecisionAllow,
	}
}

// pathArguments extracts path-like argument values to subject to
// traversal and shell-marker checks. Only the conventional path-bearing
// keys are considered; an action with no such argument yields no checks,
// which is safe since those tools are validated elsewhere (e.g. an empty
// write_file path is caught by the sandbox adapter at execution time).
func pathArguments(args map[string]any) []string {
	var out []string
	for _, key := range []string{"path", "file", "target"} {
		if v, ok := args[key]; ok {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

func pathResolvesInsideSandbox(sandboxRoot, path string) bool {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || trimmed == "/" || trimmed == "." {
		return true
	}
	clean := strings.ReplaceAll(strings.TrimLeft(path, "/"), "\\", "/")
	for _, part := range strings.Split(clean, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}

func containsShellMarkers(s string) bool {
	for _, m := range shellMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func pathIsOverlyBroad(path string) bool {
	trimmed := strings.TrimSpace(path)
	switch trimmed {
	case "", ".", "/", "..":
		return true
	}
	for _, p := range broadPathPatterns {
		if strings.Contains(trimmed, p) {
			return true
		}
	}
	return strings.HasSuffix(trimmed, "/") || strings.HasSuffix(trimmed, `\`)
}
