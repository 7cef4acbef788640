package verify_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/justapithecus/governor/execlog"
	"github.com/justapithecus/governor/types"
	"github.com/justapithecus/governor/verify"
)

func TestVerifyRun_AllChecksPassOnWellFormedRun(t *testing.T) {
	runtimeRoot := t.TempDir()
	logPath := filepath.Join(runtimeRoot, "benchmarks", "execution_logs", "r1__i1.events.jsonl")

	if _, err := execlog.Append(logPath, execlog.AppendOptions{RunID: "r1", Stage: types.StageTaskIntake}); err != nil {
		t.Fatal(err)
	}
	hash, err := execlog.ComputeHash(logPath)
	if err != nil {
		t.Fatal(err)
	}

	envelope := types.RunEnvelope{
		SchemaVersion:          types.SchemaVersion14,
		TotalCasesCompleted:    1,
		ExecutionLogHash:       hash,
		SandboxStateHashAfter:  "deadbeef",
		Metrics: map[string]any{
			"compaction_applied_count":     0,
			"compaction_rate":              0.0,
			"dropped_action_count":         0,
			"compaction_token_savings_est": 0,
		},
	}

	result := verify.VerifyRun(envelope, logPath, runtimeRoot, 1)
	if !result.Overall.Pass {
		t.Fatalf("expected overall pass, got %+v", result)
	}
}

func TestVerifyRun_SurvivingTmpFileFailsNoTmpRemains(t *testing.T) {
	runtimeRoot := t.TempDir()
	if err := os.WriteFile(filepath.Join(runtimeRoot, "autonomous", "x.run.json.tmp"), []byte("{}"), 0o644); err == nil {
		t.Fatal("expected write to a nonexistent dir to fail without MkdirAll")
	}
	if err := os.MkdirAll(filepath.Join(runtimeRoot, "autonomous"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(runtimeRoot, "autonomous", "x.run.json.tmp"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	envelope := types.RunEnvelope{SchemaVersion: types.SchemaVersion12, TotalCasesCompleted: 0}
	result := verify.VerifyRun(envelope, filepath.Join(runtimeRoot, "missing.jsonl"), runtimeRoot, 0)
	if result.NoTmpRemains.Pass {
		t.Errorf("expected no_tmp_remains to fail with a surviving .tmp file")
	}
	if result.Overall.Pass {
		t.Errorf("expected overall to fail")
	}
}

func TestVerifyRun_UnsupportedSchemaVersionFails(t *testing.T) {
	envelope := types.RunEnvelope{SchemaVersion: "0.9"}
	result := verify.VerifyRun(envelope, filepath.Join(t.TempDir(), "missing.jsonl"), t.TempDir(), 0)
	if result.SchemaVersionValid.Pass {
		t.Errorf("expected schema_version_valid to fail for unsupported version")
	}
}
