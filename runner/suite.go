package runner

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/justapithecus/governor/execlog"
	"github.com/justapithecus/governor/log"
	"github.com/justapithecus/governor/planparser"
	"github.com/justapithecus/governor/policy"
	"github.com/justapithecus/governor/sandbox"
	"github.com/justapithecus/governor/types"
	"github.com/justapithecus/governor/verify"
)

// Case is one entry from a suite's cases.jsonl: either a pre-canned action
// list, a planner prompt, or both (Actions wins when Planner is absent).
type Case struct {
	CaseID     string         `json:"case_id"`
	TaskIntake string         `json:"task_intake"`
	Actions    []types.Action `json:"actions"`
}

// Manifest is a suite's manifest.json.
type Manifest struct {
	SuiteID       string `json:"suite_id"`
	ExpectedCases int    `json:"expected_cases"`
}

// LoadSuite reads cases.jsonl and manifest.json from suitePath. A missing
// manifest.json yields a zero Manifest; a missing cases.jsonl yields no
// cases — both are valid, empty starting points rather than errors.
func LoadSuite(suitePath string) ([]Case, Manifest, error) {
	var cases []Case
	casesPath := filepath.Join(suitePath, "cases.jsonl")
	if data, err := os.ReadFile(casesPath); err == nil {
		scanner := bufio.NewScanner(strings.NewReader(string(data)))
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var c Case
			if err := json.Unmarshal([]byte(line), &c); err != nil {
				return nil, Manifest{}, fmt.Errorf("runner: parse cases.jsonl: %w", err)
			}
			cases = append(cases, c)
		}
	} else if !os.IsNotExist(err) {
		return nil, Manifest{}, err
	}

	var manifest Manifest
	manifestPath := filepath.Join(suitePath, "manifest.json")
	if data, err := os.ReadFile(manifestPath); err == nil {
		if err := json.Unmarshal(data, &manifest); err != nil {
			return nil, Manifest{}, fmt.Errorf("runner: parse manifest.json: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, Manifest{}, err
	}
	if manifest.ExpectedCases == 0 {
		manifest.ExpectedCases = len(cases)
	}

	return cases, manifest, nil
}

// SuiteOptions configures a full suite run.
type SuiteOptions struct {
	SuitePath       string
	RuntimeRoot     string
	RunID           string
	RunInstanceID   string
	Seed            *int
	MaxActions      int
	GovernanceMode  planparser.GovernanceMode
	WriteContentMax int
	Planner         Planner
}

// SuiteResult is everything RunSuite produces: the sealed envelope as
// written to disk, plus the post-run verification and report path that
// are never persisted back into the envelope file itself (the envelope is
// the receipt the verifier checks; amending it after the fact would defeat
// the point).
type SuiteResult struct {
	Envelope      types.RunEnvelope
	Verification  verify.Result
	ReportPath    string
	EnvelopePath  string
	MetricsPath   string
}

// RunSuite loads a suite, runs every case through RunCase, writes the run
// envelope atomically and then the metrics file, verifies the result
// without rewriting the envelope, and finally writes the report.
func RunSuite(opts SuiteOptions) (SuiteResult, error) {
	cases, manifest, err := LoadSuite(opts.SuitePath)
	if err != nil {
		return SuiteResult{}, err
	}

	runInstanceID := opts.RunInstanceID
	if runInstanceID == "" {
		runInstanceID = time.Now().UTC().Format("20060102T150405")
	}
	if opts.Seed != nil {
		runInstanceID = fmt.Sprintf("%s_seed%d", runInstanceID, *opts.Seed)
	}

	logger := log.NewLogger(opts.RunID, runInstanceID)
	logger.Info("suite started", map[string]any{"suite_path": opts.SuitePath, "case_count": len(cases)})

	logsDir := filepath.Join(opts.RuntimeRoot, "benchmarks", "execution_logs")
	autonomousDir := filepath.Join(opts.RuntimeRoot, "benchmarks", "autonomous")
	reportsDir := filepath.Join(opts.RuntimeRoot, "benchmarks", "reports")
	sandboxRoot := filepath.Join(opts.RuntimeRoot, "sandbox", opts.RunID)

	eventsFilename := fmt.Sprintf("%s__%s.events.jsonl", opts.RunID, runInstanceID)
	logPath := filepath.Join(logsDir, eventsFilename)
	envelopePath := filepath.Join(autonomousDir, fmt.Sprintf("%s__%s.run.json", opts.RunID, runInstanceID))
	metricsPath := filepath.Join(autonomousDir, fmt.Sprintf("%s__%s.metrics.json", opts.RunID, runInstanceID))
	reportPath := filepath.Join(reportsDir, fmt.Sprintf("%s__%s.report.md", opts.RunID, runInstanceID))

	for _, dir := range []string{logsDir, autonomousDir, reportsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return SuiteResult{}, err
		}
	}

	runStartTS := time.Now().UTC().Format(time.RFC3339Nano)

	orderedCases := cases
	if opts.Seed != nil {
		orderedCases = make([]Case, len(cases))
		copy(orderedCases, cases)
		rng := rand.New(rand.NewSource(int64(*opts.Seed)))
		rng.Shuffle(len(orderedCases), func(i, j int) {
			orderedCases[i], orderedCases[j] = orderedCases[j], orderedCases[i]
		})
	}

	totalActionsPlanned := 0
	for _, c := range orderedCases {
		totalActionsPlanned += len(c.Actions)
	}

	stats := policy.NewStatsRecorder()
	summaries := make([]CaseSummary, 0, len(orderedCases))
	for i, c := range orderedCases {
		caseID := c.CaseID
		if caseID == "" {
			caseID = "case_" + strconv.Itoa(i)
		}
		caseSandbox := filepath.Join(sandboxRoot, caseID)

		seed := 0
		if opts.Seed != nil {
			seed = *opts.Seed
		}
		summary, err := RunCase(CaseOptions{
			RunID:            opts.RunID,
			CaseID:           caseID,
			TaskIntakePrompt: c.TaskIntake,
			Actions:          c.Actions,
			Planner:          opts.Planner,
			Seed:             seed,
			SandboxRoot:      caseSandbox,
			LogPath:          logPath,
			MaxActions:       opts.MaxActions,
			GovernanceMode:   opts.GovernanceMode,
			WriteContentMax:  opts.WriteContentMax,
			Stats:            stats,
			Logger:           logger,
		})
		if err != nil {
			logger.Error("case failed", map[string]any{"case_id": caseID, "error": err.Error()})
			return SuiteResult{}, fmt.Errorf("runner: case %s: %w", caseID, err)
		}
		summaries = append(summaries, summary)
	}

	runEndTS := time.Now().UTC().Format(time.RFC3339Nano)

	executionLogHash, err := execlog.ComputeHash(logPath)
	if err != nil {
		return SuiteResult{}, fmt.Errorf("runner: compute execution log hash: %w", err)
	}
	receiptSHA256, err := fileSHA256(logPath)
	if err != nil {
		return SuiteResult{}, fmt.Errorf("runner: hash execution log file: %w", err)
	}

	executedTotal, blockedTotal, modifiedTotal := 0, 0, 0
	for _, s := range summaries {
		executedTotal += s.ExecutedActionCount
		blockedTotal += s.BlockedActionCount
		modifiedTotal += s.ModifiedActionCount
	}

	base, err := computeMetrics(logPath, totalActionsPlanned, summaries)
	if err != nil {
		return SuiteResult{}, fmt.Errorf("runner: compute metrics: %w", err)
	}
	metrics := computeLLMMetrics(base, summaries)
	metricsMap, err := structToMap(metrics)
	if err != nil {
		return SuiteResult{}, err
	}

	sandboxStateHashAfter, err := sandbox.ComputeStateHash(sandboxRoot)
	if err != nil {
		return SuiteResult{}, fmt.Errorf("runner: compute sandbox state hash: %w", err)
	}

	exitStatus := types.ExitStatusOK
	if len(summaries) != manifest.ExpectedCases {
		exitStatus = types.ExitStatusPartial
	}

	suiteID := manifest.SuiteID
	if suiteID == "" {
		suiteID = "autonomous_exec_v0_1"
	}

	envelope := types.RunEnvelope{
		SchemaVersion:          types.CurrentSchemaVersion,
		RunID:                  opts.RunID,
		RunInstanceID:          runInstanceID,
		Suite:                  suiteID,
		TotalCasesExpected:     manifest.ExpectedCases,
		TotalCasesCompleted:    len(summaries),
		ExecutedActionCount:    executedTotal,
		BlockedActionCount:     blockedTotal,
		ModifiedActionCount:    modifiedTotal,
		RunStartTsUTC:          runStartTS,
		RunEndTsUTC:            runEndTS,
		ExitStatus:             exitStatus,
		SandboxStateHashBefore: "",
		SandboxStateHashAfter:  sandboxStateHashAfter,
		ExecutionLogHash:       executionLogHash,
		ReceiptPath:            filepath.ToSlash(filepath.Join("benchmarks", "execution_logs", eventsFilename)),
		ReceiptSHA256:          receiptSHA256,
		Metrics:                metricsMap,
	}

	if err := writeEnvelopeAtomic(envelopePath, envelope); err != nil {
		return SuiteResult{}, fmt.Errorf("runner: write run envelope: %w", err)
	}
	if err := writeJSONFile(metricsPath, metricsMap); err != nil {
		return SuiteResult{}, fmt.Errorf("runner: write metrics file: %w", err)
	}

	verification := verify.VerifyRun(envelope, logPath, opts.RuntimeRoot, manifest.ExpectedCases)

	if err := writeReport(reportPath, reportData{
		RunID:         opts.RunID,
		RunInstanceID: runInstanceID,
		Suite:         suiteID,
		LogPath:       logPath,
		EnvelopePath:  envelopePath,
		MetricsPath:   metricsPath,
		SandboxRoot:   sandboxRoot,
		RuntimeRoot:   opts.RuntimeRoot,
		Metrics:       metrics,
		Verification:  verification,
		RunEndTS:      runEndTS,
	}); err != nil {
		return SuiteResult{}, fmt.Errorf("runner: write report: %w", err)
	}

	envelope.Verification = verification.AsMap()
	envelope.ReportPath = reportPath

	logger.Info("suite completed", map[string]any{
		"exit_status":      string(exitStatus),
		"cases_completed":  len(summaries),
		"verification_pass": verification.Overall.Pass,
	})

	return SuiteResult{
		Envelope:     envelope,
		Verification: verification,
		ReportPath:   reportPath,
		EnvelopePath: envelopePath,
		MetricsPath:  metricsPath,
	}, nil
}

// structToMap round-trips v through JSON to a map[string]any, the same
// canonicalization trick types.CanonicalJSON uses, so the embedded struct
// tags become the map's keys.
func structToMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func fileSHA256(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return types.SHA256Hex(data), nil
}

// writeEnvelopeAtomic writes envelope to path via a temp file plus rename,
// so a reader never observes a partially written envelope and a crash
// mid-write leaves only a detectable ".tmp" behind.
func writeEnvelopeAtomic(path string, envelope types.RunEnvelope) error {
	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
