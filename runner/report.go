package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/justapithecus/governor/verify"
)

// reportData carries everything the markdown report template needs.
type reportData struct {
	RunID         string
	RunInstanceID string
	Suite         string
	LogPath       string
	EnvelopePath  string
	MetricsPath   string
	SandboxRoot   string
	RuntimeRoot   string
	Metrics       LLMMetrics
	Verification  verify.Result
	RunEndTS      string
}

// writeReport renders a human-readable audit narrative: every assertion in
// it names the artifact backing it, so a reader can check the claim
// against the file rather than trusting the prose.
func writeReport(path string, d reportData) error {
	var b strings.Builder

	rel := func(p string) string {
		if r, err := filepath.Rel(d.RuntimeRoot, p); err == nil && !strings.HasPrefix(r, "..") {
			return filepath.ToSlash(r)
		}
		return p
	}
	pass := func(ok bool) string {
		if ok {
			return "PASS"
		}
		return "FAIL"
	}

	fmt.Fprintf(&b, "# Autonomous Execution Benchmark Suite Report\n\n")
	fmt.Fprintf(&b, "**Run ID:** %s\n", d.RunID)
	fmt.Fprintf(&b, "**Run Instance ID:** %s\n", d.RunInstanceID)
	fmt.Fprintf(&b, "**Suite:** %s\n\n", d.Suite)
	fmt.Fprintf(&b, "## Audit Narrative\n\n")
	fmt.Fprintf(&b, "This report documents the autonomous execution benchmark run. Every assertion references an artifact.\n\n")
	fmt.Fprintf(&b, "### Artifacts\n\n")
	fmt.Fprintf(&b, "- **Execution log:** `%s`\n", rel(d.LogPath))
	fmt.Fprintf(&b, "- **Envelope:** `%s`\n", rel(d.EnvelopePath))
	fmt.Fprintf(&b, "- **Metrics:** `%s`\n", rel(d.MetricsPath))
	fmt.Fprintf(&b, "- **Sandbox root:** `%s`\n\n", rel(d.SandboxRoot))
	fmt.Fprintf(&b, "### Hashes\n\n")
	fmt.Fprintf(&b, "- **execution_log_hash:** `%s`\n", d.Verification.ExecutionLogHash.Got)
	fmt.Fprintf(&b, "\n## Metrics\n\n")
	fmt.Fprintf(&b, "| Metric | Value |\n|--------|-------|\n")
	fmt.Fprintf(&b, "| execution_allowed_rate | %v |\n", d.Metrics.ExecutionAllowedRate)
	fmt.Fprintf(&b, "| stabilization_intervention_rate | %v |\n", d.Metrics.StabilizationInterventionRate)
	fmt.Fprintf(&b, "| harmful_action_prevented_count | %v |\n", d.Metrics.HarmfulActionPreventedCount)
	fmt.Fprintf(&b, "| sandbox_integrity_breach_rate | %v |\n", d.Metrics.SandboxIntegrityBreachRate)
	fmt.Fprintf(&b, "| benefit_completion_rate | %v |\n", d.Metrics.BenefitCompletionRate)
	fmt.Fprintf(&b, "| compaction_applied_count | %v |\n", d.Metrics.CompactionAppliedCount)
	fmt.Fprintf(&b, "| compaction_rate | %v |\n", d.Metrics.CompactionRate)
	fmt.Fprintf(&b, "| dropped_action_count | %v |\n", d.Metrics.DroppedActionCount)
	fmt.Fprintf(&b, "\n## Verification\n\n")
	fmt.Fprintf(&b, "- total_cases_completed: **%s**\n", pass(d.Verification.TotalCasesCompleted.Pass))
	fmt.Fprintf(&b, "- execution_log_hash: **%s**\n", pass(d.Verification.ExecutionLogHash.Pass))
	fmt.Fprintf(&b, "- sandbox_hashes_recorded: **%s**\n", pass(d.Verification.SandboxHashesRecorded.Pass))
	fmt.Fprintf(&b, "- no_tmp_remains: **%s**\n", pass(d.Verification.NoTmpRemains.Pass))
	fmt.Fprintf(&b, "- compaction_metrics_consistent: **%s**\n", pass(d.Verification.CompactionMetricsConsistent.Pass))
	fmt.Fprintf(&b, "- overall: **%s**\n", pass(d.Verification.Overall.Pass))
	if len(d.Verification.NoTmpRemains.Found) > 0 {
		fmt.Fprintf(&b, "\n  Remaining .tmp files: %s\n", strings.Join(d.Verification.NoTmpRemains.Found, ", "))
	}
	fmt.Fprintf(&b, "\n---\nGenerated: %s\n", d.RunEndTS)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
