// Package verify implements the Verifier: a read-only post-run checker
// that recomputes the run envelope's hash invariants from the artifacts it
// claims to describe, rather than trusting the envelope's own fields.
package verify

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/justapithecus/governor/execlog"
	"github.com/justapithecus/governor/types"
)

// CheckResult is one named invariant's outcome. Carries msgpack tags
// alongside json so a Result can round-trip through the replay command's
// on-disk cache without a parallel wire struct.
type CheckResult struct {
	Pass  bool     `json:"pass" msgpack:"pass"`
	Want  string   `json:"expected,omitempty" msgpack:"expected,omitempty"`
	Got   string   `json:"actual,omitempty" msgpack:"actual,omitempty"`
	Found []string `json:"found,omitempty" msgpack:"found,omitempty"`
}

// Result is the full set of post-run checks, matching the envelope's
// "verification" field shape.
type Result struct {
	SchemaVersionValid         CheckResult `json:"schema_version_valid" msgpack:"schema_version_valid"`
	TotalCasesCompleted        CheckResult `json:"total_cases_completed" msgpack:"total_cases_completed"`
	ExecutionLogHash           CheckResult `json:"execution_log_hash" msgpack:"execution_log_hash"`
	SandboxHashesRecorded      CheckResult `json:"sandbox_hashes_recorded" msgpack:"sandbox_hashes_recorded"`
	NoTmpRemains               CheckResult `json:"no_tmp_remains" msgpack:"no_tmp_remains"`
	CompactionMetricsConsistent CheckResult `json:"compaction_metrics_consistent" msgpack:"compaction_metrics_consistent"`
	Overall                    CheckResult `json:"overall" msgpack:"overall"`
}

// compactionMetricKeys are the schema-1.4 metric fields the envelope's
// metrics map must carry for compaction_metrics_consistent to pass.
var compactionMetricKeys = []string{
	"compaction_applied_count",
	"compaction_rate",
	"dropped_action_count",
	"compaction_token_savings_est",
}

// VerifyRun checks envelope against the on-disk execution log and runtime
// tree it describes. It never mutates anything — every check either reads
// a file or compares fields already in memory.
func VerifyRun(envelope types.RunEnvelope, logPath, runtimeRoot string, expectedCases int) Result {
	var result Result

	result.SchemaVersionValid = CheckResult{
		Pass: types.SupportedSchemaVersions[envelope.SchemaVersion],
		Got:  envelope.SchemaVersion,
	}

	result.TotalCasesCompleted = CheckResult{
		Pass: envelope.TotalCasesCompleted == expectedCases,
	}

	if computed, err := execlog.ComputeHash(logPath); err == nil {
		result.ExecutionLogHash = CheckResult{
			Pass: computed == envelope.ExecutionLogHash,
			Want: computed,
			Got:  envelope.ExecutionLogHash,
		}
	} else {
		result.ExecutionLogHash = CheckResult{Pass: false}
	}

	result.SandboxHashesRecorded = CheckResult{
		Pass: envelope.SandboxStateHashBefore != "" || envelope.SandboxStateHashAfter != "",
	}

	tmpFiles := findTmpFiles(runtimeRoot)
	result.NoTmpRemains = CheckResult{
		Pass:  len(tmpFiles) == 0,
		Found: tmpFiles,
	}

	result.CompactionMetricsConsistent = CheckResult{Pass: true}
	if envelope.SchemaVersion == types.SchemaVersion14 {
		for _, key := range compactionMetricKeys {
			if _, ok := envelope.Metrics[key]; !ok {
				result.CompactionMetricsConsistent = CheckResult{Pass: false}
				break
			}
		}
	}

	result.Overall = CheckResult{Pass: result.SchemaVersionValid.Pass &&
		result.TotalCasesCompleted.Pass &&
		result.ExecutionLogHash.Pass &&
		result.SandboxHashesRecorded.Pass &&
		result.NoTmpRemains.Pass &&
		result.CompactionMetricsConsistent.Pass,
	}

	return result
}

// findTmpFiles walks root for any file matching *.tmp — a surviving one
// means an atomic write was interrupted before its rename.
func findTmpFiles(root string) []string {
	var found []string
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".tmp") {
			found = append(found, path)
		}
		return nil
	})
	return found
}

// AsMap flattens Result into a map[string]any for embedding into a run
// envelope's "verification" field, matching the shape the original harness
// produces as a plain dict.
func (r Result) AsMap() map[string]any {
	toMap := func(c CheckResult) map[string]any {
		m := map[string]any{"pass": c.Pass}
		if c.Want != "" {
			m["expected"] = c.Want
		}
		if c.Got != "" {
			m["actual"] = c.Got
		}
		if c.Found != nil {
			m["found"] = c.Found
		} else {
			m["found"] = []string{}
		}
		return m
	}
	return map[string]any{
		"schema_version_valid":          toMap(r.SchemaVersionValid),
		"total_cases_completed":         toMap(r.TotalCasesCompleted),
		"execution_log_hash":            toMap(r.ExecutionLogHash),
		"sandbox_hashes_recorded":       toMap(r.SandboxHashesRecorded),
		"no_tmp_remains":                toMap(r.NoTmpRemains),
		"compaction_metrics_consistent": toMap(r.CompactionMetricsConsistent),
		"overall":                       toMap(r.Overall),
	}
}
