// Package planparser turns an untrusted planner's raw text reply into a
// canonical, size-bounded Plan. The planner is never trusted beyond its
// text: this package only ever produces a Plan or a list of parse errors,
// never a Go error, since a malformed reply is an expected outcome to be
// logged and metriced, not a program fault.
package planparser

import (
	"encoding/json"
	"strconv"
	"strings"
)

// DefaultMaxActions is the default cap on actions kept from a parsed plan.
const DefaultMaxActions = 6

// GovernanceMode selects how an over-length plan is trimmed.
type GovernanceMode string

const (
	// ModeSoftTrim keeps the first MaxActions, then additionally drops a
	// trailing run of non-mutating actions from within that window.
	ModeSoftTrim GovernanceMode = "soft_trim"
	// ModeOff truncates to the first MaxActions with no further trimming.
	ModeOff GovernanceMode = "off"
)

// Options configures Parse.
type Options struct {
	MaxActions int
	Mode       GovernanceMode
}

// rawPlan decodes only the outer shape of planner JSON. Actions is kept as
// raw, undecoded elements so one malformed element can be rejected on its
// own — via elementError — without a single bad `tool_name` or `arguments`
// type taking the whole plan down with it.
type rawPlan struct {
	PlanID  string            `json:"plan_id"`
	Actions []json.RawMessage `json:"actions"`
}

// Result is the outcome of parsing one planner reply.
type Result struct {
	Plan              *ParsedPlan
	ParseErrors       []string
	ForbiddenToolCount int
	OverflowCount     int
	TrimInfo          string
}

// ParsedPlan is the parser's canonical output: dense action_id/order,
// tool_name/arguments pass-through (unvalidated against the allowed tool
// set — that is the Policy Evaluator's job).
type ParsedPlan struct {
	PlanID  string
	Actions []ParsedAction
}

// ParsedAction is one canonicalized action.
type ParsedAction struct {
	ActionID  string
	ToolName  string
	Arguments map[string]any
	Order     int
}

var allowedTools = map[string]bool{
	"write_file": true, "read_file": true, "list_dir": true, "delete_file": true,
}
var nonMutatingTools = map[string]bool{"read_file": true, "list_dir": true}

// Parse extracts a Plan from raw planner text.
func Parse(raw string, opts Options) Result {
	maxActions := opts.MaxActions
	if maxActions <= 0 {
		maxActions = DefaultMaxActions
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Result{ParseErrors: []string{"empty_response"}}
	}

	jsonText, ok := extractJSONObject(trimmed)
	if !ok {
		return Result{ParseErrors: []string{"no_json_object_found"}}
	}
	jsonText = normalizeTrailingCommas(jsonText)

	var rp rawPlan
	if err := json.Unmarshal([]byte(jsonText), &rp); err != nil {
		return Result{ParseErrors: []string{"json_decode_error:" + err.Error()}}
	}

	var rawActionsPresent bool
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonText), &probe); err == nil {
		_, rawActionsPresent = probe["actions"]
	}
	if !rawActionsPresent {
		return Result{ParseErrors: []string{"missing_actions_field"}}
	}

	var parseErrors []string
	forbiddenCount := 0
	actions := make([]ParsedAction, 0, len(rp.Actions))
	for i, raw := range rp.Actions {
		var elem map[string]any
		if err := json.Unmarshal(raw, &elem); err != nil {
			parseErrors = append(parseErrors, elementError(i, "not_an_object"))
			continue
		}

		toolNameRaw, hasToolName := elem["tool_name"]
		toolName, isString := toolNameRaw.(string)
		tool := strings.TrimSpace(toolName)
		if !hasToolName || !isString || tool == "" {
			parseErrors = append(parseErrors, elementError(i, "missing_or_empty_tool_name"))
			continue
		}

		args := map[string]any{}
		if argsRaw, hasArguments := elem["arguments"]; hasArguments {
			argsMap, isMap := argsRaw.(map[string]any)
			if !isMap {
				parseErrors = append(parseErrors, elementError(i, "arguments_not_object"))
				continue
			}
			args = argsMap
		}

		if !allowedTools[tool] {
			forbiddenCount++
		}
		actions = append(actions, ParsedAction{ToolName: tool, Arguments: args})
	}

	overflowCount := 0
	trimInfo := ""
	if len(actions) > maxActions {
		overflowCount = 1
		switch opts.Mode {
		case ModeSoftTrim:
			actions = softTrim(actions, maxActions)
			trimInfo = "soft_trim"
		default:
			actions = actions[:maxActions]
			trimInfo = "truncated"
		}
	}

	for i := range actions {
		actions[i].ActionID = strconv.Itoa(i + 1)
		actions[i].Order = i + 1
	}

	plan := &ParsedPlan{PlanID: rp.PlanID, Actions: actions}
	return Result{
		Plan:               plan,
		ParseErrors:        parseErrors,
		ForbiddenToolCount: forbiddenCount,
		OverflowCount:      overflowCount,
		TrimInfo:           trimInfo,
	}
}

// softTrim keeps the first maxActions, then drops a trailing run of
// non-mutating actions from within that window — it never looks past the
// truncation point, since those actions were already discarded.
func softTrim(actions []ParsedAction, maxActions int) []ParsedAction {
	kept := actions[:maxActions]
	i := len(kept) - 1
	for i >= 0 && nonMutatingTools[kept[i].ToolName] {
		i--
	}
	return kept[:i+1]
}

// extractJSONObject locates the planner's JSON payload: first inside a
// fenced ```json or ``` code block, else as the substring from the first
// '{' to its brace-depth-matched '}'.
func extractJSONObject(s string) (string, bool) {
	if fenced, ok := extractFenced(s); ok {
		return fenced, true
	}
	return extractByBraceDepth(s)
}

func extractFenced(s string) (string, bool) {
	const fence = "```"
	start := strings.Index(s, fence)
	if start == -1 {
		return "", false
	}
	rest := s[start+len(fence):]
	if strings.HasPrefix(rest, "json") {
		rest = rest[len("json"):]
	}
	rest = strings.TrimPrefix(rest, "\n")
	end := strings.Index(rest, fence)
	if end == -1 {
		return "", false
	}
	body := strings.TrimSpace(rest[:end])
	if body == "" {
		return "", false
	}
	return body, true
}

func extractByBraceDepth(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// normalizeTrailingCommas removes a comma that directly precedes a
// closing '}' or ']' (ignoring whitespace between them), which many LLMs
// emit but encoding/json rejects.
func normalizeTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] == ',' {
			j := i + 1
			for j < len(runes) && (runes[j] == ' ' || runes[j] == '\n' || runes[j] == '\t' || runes[j] == '\r') {
				j++
			}
			if j < len(runes) && (runes[j] == '}' || runes[j] == ']') {
				continue
			}
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}

func elementError(index int, reason string) string {
	return "action[" + strconv.Itoa(index) + "]:" + reason
}
