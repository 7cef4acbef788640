// Package types defines the canonical data model for the governance
// pipeline: actions, plans, policy verdicts, stabilization results,
// compaction info, execution events, and the run envelope. It has no
// internal dependencies, matching the teacher's "types is a leaf package"
// convention.
package types

import "strconv"

// ToolName identifies the tool an Action invokes. Unrecognized tool names
// are passed through as opaque strings so the policy evaluator — not the
// parser — is the single place that blocks them (see SPEC_FULL.md, decision (iv)).
type ToolName string

// Recognized tool names per the action schema.
const (
	ToolWriteFile  ToolName = "write_file"
	ToolReadFile   ToolName = "read_file"
	ToolListDir    ToolName = "list_dir"
	ToolDeleteFile ToolName = "delete_file"
)

// MutatingTools is the set of tools that change sandbox state.
var MutatingTools = map[ToolName]bool{
	ToolWriteFile:  true,
	ToolDeleteFile: true,
}

// NonMutatingTools is the set of tools that only observe sandbox state.
var NonMutatingTools = map[ToolName]bool{
	ToolReadFile: true,
	ToolListDir:  true,
}

// AllowedTools is the full set of tools the harness recognizes.
var AllowedTools = map[ToolName]bool{
	ToolWriteFile:  true,
	ToolReadFile:   true,
	ToolListDir:    true,
	ToolDeleteFile: true,
}

// Action is one tool invocation inside a Plan.
type Action struct {
	ActionID  string         `json:"action_id"`
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	Order     int            `json:"order"`
}

// Clone returns a deep-enough copy of a for safe mutation (arguments map
// is copied one level deep; argument values are not deep-cloned since the
// schema only recognizes scalar string arguments).
func (a Action) Clone() Action {
	args := make(map[string]any, len(a.Arguments))
	for k, v := range a.Arguments {
		args[k] = v
	}
	return Action{ActionID: a.ActionID, ToolName: a.ToolName, Arguments: args, Order: a.Order}
}

// Path returns the "path" argument as a string, and whether it was present
// and string-typed.
func (a Action) Path() (string, bool) {
	v, ok := a.Arguments["path"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Content returns the "content" argument as a string, and whether it was
// present and string-typed.
func (a Action) Content() (string, bool) {
	v, ok := a.Arguments["content"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// NormalizeAction fills in an empty arguments map when a raw action has
// none; all other fields are returned unchanged.
func NormalizeAction(a Action) Action {
	out := a
	if out.Arguments == nil {
		out.Arguments = map[string]any{}
	}
	return out
}

// Plan is an ordered sequence of actions.
type Plan struct {
	PlanID  string   `json:"plan_id"`
	Actions []Action `json:"actions"`
}

// Renumber assigns dense 1-based action_id/order to actions, in place
// order, returning a new slice. Used after trimming/compaction so
// action_id and order stay dense and match position, per the data model
// invariant in spec.md §3.
func Renumber(actions []Action) []Action {
	out := make([]Action, len(actions))
	for i, a := range actions {
		c := a.Clone()
		id := strconv.Itoa(i + 1)
		c.ActionID = id
		c.Order = i + 1
		out[i] = c
	}
	return out
}
