// Package compaction implements the plan compactor: a set of safe,
// scope-preserving rewrites that drop provably redundant actions from a
// plan before it executes. Compaction never adds actions or broadens what
// a plan does — a dry-run safety guard verifies that before and after
// states are identical, and aborts the compaction (leaving the plan
// unchanged) if they are not.
package compaction

import (
	"github.com/justapithecus/governor/types"
)

// AvgActionTokenEstimate is the per-action token cost used to estimate
// compaction's token savings in suite metrics.
const AvgActionTokenEstimate = 50

// Compact applies rules A-D to plan.Actions and returns the possibly
// rewritten plan along with a report of what happened. If no actions were
// dropped, or the dry-run safety guard detects the rewrite would change
// final sandbox state, the original plan is returned unchanged.
func Compact(plan types.Plan) (types.Plan, types.CompactionInfo) {
	info := types.NewCompactionInfo(len(plan.Actions))

	if len(plan.Actions) == 0 {
		return plan, info
	}

	compacted, rules, droppedIDs := applyRules(plan.Actions)
	if len(droppedIDs) == 0 {
		return plan, info
	}

	before := simulate(plan.Actions)
	after := simulate(compacted)
	hashBefore := stateHash(before)
	hashAfter := stateHash(after)
	info.SandboxStateHashSimulatedBefore = hashBefore
	info.SandboxStateHashSimulatedAfter = hashAfter

	if hashBefore != hashAfter {
		info.CompactionAborted = true
		info.CompactionAbortedReason = "simulated_state_mismatch"
		return plan, info
	}

	info.CompactionApplied = true
	info.CompactedActionCount = len(compacted)
	info.RulesApplied = rules
	info.DroppedActionIDs = droppedIDs
	info.DroppedActionCount = len(droppedIDs)

	return types.Plan{PlanID: plan.PlanID, Actions: compacted}, info
}

// applyRules runs rules C, B, D, then A in that order against actions and
// returns the surviving, densely renumbered actions, which rules fired,
// and the original action IDs that were cut. It never broadens scope —
// every rule only ever adds indices to the drop set.
func applyRules(actions []types.Action) (kept []types.Action, rulesApplied []types.CompactionRule, droppedIDs []string) {
	n := len(actions)
	drop := make(map[int]bool, n)

	path := func(a types.Action) (string, bool) {
		return a.Path()
	}
	isMutating := func(a types.Action) bool {
		return types.MutatingTools[types.ToolName(a.ToolName)]
	}

	// Rule C — last-write-wins per path: keep only the final write_file(path).
	lastWriteIndex := make(map[string]int)
	ruleCDropped := false
	for i, a := range actions {
		if types.ToolName(a.ToolName) != types.ToolWriteFile {
			continue
		}
		p, ok := path(a)
		if !ok {
			continue
		}
		if prev, seen := lastWriteIndex[p]; seen {
			drop[prev] = true
			ruleCDropped = true
		}
		lastWriteIndex[p] = i
	}
	if ruleCDropped {
		rulesApplied = append(rulesApplied, types.RuleLastWriteWins)
	}

	// Rule B — redundant read after write: drop read_file(X) immediately
	// following the last mutation to X, provided nothing mutates X between.
	lastMutToPath := make(map[string]int)
	ruleBFired := false
	for i, a := range actions {
		p, ok := path(a)
		if !ok {
			continue
		}
		switch {
		case isMutating(a):
			lastMutToPath[p] = i
		case types.ToolName(a.ToolName) == types.ToolReadFile:
			j, seen := lastMutToPath[p]
			if seen && j == i-1 {
				drop[i] = true
				ruleBFired = true
			}
		}
	}
	if ruleBFired {
		rulesApplied = append(rulesApplied, types.RuleRedundantReadAfterWrite)
	}

	// Rule D — duplicate sequential reads: read_file(X) read_file(X) keeps
	// only the first.
	prevReadPath := ""
	havePrevRead := false
	ruleDFired := false
	for i, a := range actions {
		if types.ToolName(a.ToolName) != types.ToolReadFile {
			havePrevRead = false
			continue
		}
		p, ok := path(a)
		if ok && havePrevRead && p == prevReadPath {
			drop[i] = true
			ruleDFired = true
		}
		prevReadPath = p
		havePrevRead = ok
	}
	if ruleDFired {
		rulesApplied = append(rulesApplied, types.RuleDuplicateSequentialReads)
	}

	// Rule A — trailing non-mutating drop: strip a trailing run of
	// read_file/list_dir actions that leave no trace since nothing after
	// them observes their result.
	i := n - 1
	for i >= 0 && types.NonMutatingTools[types.ToolName(actions[i].ToolName)] {
		drop[i] = true
		i--
	}
	if i < n-1 {
		rulesApplied = append(rulesApplied, types.RuleTrailingNonMutatingDrop)
	}

	for idx, a := range actions {
		if drop[idx] {
			droppedIDs = append(droppedIDs, a.ActionID)
			continue
		}
		kept = append(kept, a)
	}

	kept = types.Renumber(kept)
	if rulesApplied == nil {
		rulesApplied = []types.CompactionRule{}
	}
	if droppedIDs == nil {
		droppedIDs = []string{}
	}
	return kept, rulesApplied, droppedIDs
}

// simulate dry-runs actions against an in-memory map without touching the
// filesystem: write_file sets state[path]=content, delete_file clears it,
// reads are no-ops.
func simulate(actions []types.Action) map[string]string {
	state := make(map[string]string)
	for _, a := range actions {
		p, ok := a.Path()
		if !ok {
			continue
		}
		switch types.ToolName(a.ToolName) {
		case types.ToolWriteFile:
			content, _ := a.Content()
			state[p] = content
		case types.ToolDeleteFile:
			delete(state, p)
		}
	}
	return state
}

// stateHash returns the canonical SHA-256 of a simulated state, encoded as
// a sorted list of [path, content] pairs so it matches regardless of Go
// map iteration order.
func stateHash(state map[string]string) string {
	pairs := make([][2]string, 0, len(state))
	for k, v := range state {
		pairs = append(pairs, [2]string{k, v})
	}
	sortPairs(pairs)
	return types.CanonicalSHA256(pairs)
}

func sortPairs(pairs [][2]string) {
	for i := 1; i < len(pairs); i++ {
		for j := i; j > 0 && pairs[j-1][0] > pairs[j][0]; j-- {
			pairs[j-1], pairs[j] = pairs[j], pairs[j-1]
		}
	}
}
