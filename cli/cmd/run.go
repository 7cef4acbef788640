package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/governor/archive"
	"github.com/justapithecus/governor/archive/s3archive"
	"github.com/justapithecus/governor/cli/render"
	"github.com/justapithecus/governor/config"
	"github.com/justapithecus/governor/notify"
	"github.com/justapithecus/governor/notify/redis"
	"github.com/justapithecus/governor/notify/webhook"
	"github.com/justapithecus/governor/planparser"
	"github.com/justapithecus/governor/runner"
	"github.com/justapithecus/governor/types"
)

// RunCommand returns the run command: executes one suite end to end and
// seals a run envelope.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run a benchmark suite under governance and seal a run envelope",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{Name: "config", Usage: "Path to a governor.yaml config file"},
			&cli.StringFlag{Name: "suite-path", Required: true, Usage: "Directory containing cases.jsonl and manifest.json"},
			&cli.StringFlag{Name: "runtime-dir", Value: "./runtime", Usage: "Root directory for logs, sandbox, and artifacts"},
			&cli.StringFlag{Name: "run-id", Required: true, Usage: "Identifier for this suite run"},
			&cli.StringFlag{Name: "run-instance-id", Usage: "Identifier for this attempt; defaults to a UTC timestamp"},
			&cli.IntFlag{Name: "seed", Usage: "Deterministic shuffle seed; omit to preserve case order"},
			&cli.IntFlag{Name: "max-actions", Value: planparser.DefaultMaxActions, Usage: "Maximum actions accepted from a single plan"},
			&cli.StringFlag{Name: "governance-efficiency-mode", Value: string(planparser.ModeSoftTrim), Usage: "Plan overflow handling: soft_trim or off"},
			&cli.BoolFlag{Name: "no-planner-efficiency-prompt", Usage: "Reserved for planner integrations; has no effect on pre-canned suites"},
		),
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	var cfg *config.Config
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		cfg = loaded
	}

	mode := planparser.GovernanceMode(resolveString(c, "governance-efficiency-mode", configVal(cfg, func(cfg *config.Config) string { return cfg.GovernanceEfficiencyMode })))
	if mode != planparser.ModeSoftTrim && mode != planparser.ModeOff {
		return cli.Exit(fmt.Sprintf("invalid --governance-efficiency-mode: %q (must be soft_trim or off)", mode), 1)
	}

	opts := runner.SuiteOptions{
		SuitePath:       c.String("suite-path"),
		RuntimeRoot:     c.String("runtime-dir"),
		RunID:           c.String("run-id"),
		RunInstanceID:   c.String("run-instance-id"),
		MaxActions:      resolveInt(c, "max-actions", configIntVal(cfg, func(cfg *config.Config) int { return cfg.MaxActions })),
		GovernanceMode:  mode,
		WriteContentMax: configIntVal(cfg, func(cfg *config.Config) int { return cfg.WriteContentMaxBytes }),
	}
	if c.IsSet("seed") {
		seed := c.Int("seed")
		opts.Seed = &seed
	}

	result, err := runner.RunSuite(opts)
	if err != nil {
		return cli.Exit(fmt.Sprintf("run failed: %v", err), 1)
	}

	notifyRunCompleted(c.Context, cfg, &result.Envelope, result.EnvelopePath, result.Verification.Overall.Pass)
	archiveRunArtifacts(c.Context, cfg, result)

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	resp := RunResponse{
		RunID:               result.Envelope.RunID,
		RunInstanceID:       result.Envelope.RunInstanceID,
		ExitStatus:          result.Envelope.ExitStatus,
		TotalCasesExpected:  result.Envelope.TotalCasesExpected,
		TotalCasesCompleted: result.Envelope.TotalCasesCompleted,
		ExecutedActionCount: result.Envelope.ExecutedActionCount,
		BlockedActionCount:  result.Envelope.BlockedActionCount,
		ModifiedActionCount: result.Envelope.ModifiedActionCount,
		VerificationPassed:  result.Verification.Overall.Pass,
		EnvelopePath:        result.EnvelopePath,
		ReportPath:          result.ReportPath,
	}

	if err := r.Render(resp); err != nil {
		return err
	}

	if result.Envelope.ExitStatus != types.ExitStatusOK || !result.Verification.Overall.Pass {
		return cli.Exit("", 1)
	}
	return nil
}

// notifyRunCompleted fires configured notifiers best-effort after a run
// has already been sealed. A notifier failure is logged and otherwise
// ignored — it never changes the run's exit status or verification result.
func notifyRunCompleted(ctx context.Context, cfg *config.Config, envelope *types.RunEnvelope, envelopePath string, verificationPassed bool) {
	if cfg == nil {
		return
	}

	event := &notify.RunCompletedEvent{
		RunID:               envelope.RunID,
		RunInstanceID:       envelope.RunInstanceID,
		Suite:               envelope.Suite,
		ExitStatus:          envelope.ExitStatus,
		VerificationPassed:  verificationPassed,
		TotalCasesExpected:  envelope.TotalCasesExpected,
		TotalCasesCompleted: envelope.TotalCasesCompleted,
		ExecutedActionCount: envelope.ExecutedActionCount,
		BlockedActionCount:  envelope.BlockedActionCount,
		ModifiedActionCount: envelope.ModifiedActionCount,
		EnvelopePath:        envelopePath,
		Timestamp:           envelope.RunEndTsUTC,
	}

	if rc := cfg.Notifier.Redis; rc != nil {
		n, err := redis.New(redis.Config{
			Addr:    rc.Addr,
			Channel: rc.Channel,
			Timeout: rc.Timeout.Duration,
			Retries: rc.Retries,
		})
		if err != nil {
			log.Printf("notify: redis notifier not constructed: %v", err)
		} else {
			if err := n.Notify(ctx, event); err != nil {
				log.Printf("notify: redis publish failed: %v", err)
			}
			_ = n.Close()
		}
	}

	if wc := cfg.Notifier.Webhook; wc != nil {
		n, err := webhook.New(webhook.Config{
			URL:     wc.URL,
			Headers: wc.Headers,
			Timeout: wc.Timeout.Duration,
			Retries: wc.Retries,
		})
		if err != nil {
			log.Printf("notify: webhook notifier not constructed: %v", err)
		} else {
			if err := n.Notify(ctx, event); err != nil {
				log.Printf("notify: webhook post failed: %v", err)
			}
			_ = n.Close()
		}
	}
}

// archiveRunArtifacts mirrors the sealed envelope, metrics, and report
// files to S3 when an archive destination is configured. Best-effort:
// logged and ignored on failure, never changes the run's exit status.
func archiveRunArtifacts(ctx context.Context, cfg *config.Config, result runner.SuiteResult) {
	if cfg == nil || cfg.Archive.S3 == nil {
		return
	}
	sc := cfg.Archive.S3

	a, err := s3archive.New(ctx, s3archive.Config{
		Bucket: sc.Bucket,
		Prefix: sc.Prefix,
		Region: sc.Region,
	})
	if err != nil {
		log.Printf("archive: s3 archiver not constructed: %v", err)
		return
	}

	var artifacts []archive.Artifact
	for _, f := range []struct {
		name, contentType, path string
	}{
		{"envelope.json", "application/json", result.EnvelopePath},
		{"metrics.json", "application/json", result.MetricsPath},
		{"report.md", "text/markdown", result.ReportPath},
	} {
		if f.path == "" {
			continue
		}
		data, err := os.ReadFile(f.path)
		if err != nil {
			log.Printf("archive: read %s: %v", f.name, err)
			continue
		}
		artifacts = append(artifacts, archive.Artifact{Name: f.name, ContentType: f.contentType, Data: data})
	}
	if len(artifacts) == 0 {
		return
	}

	if err := a.PutArtifacts(ctx, result.Envelope.RunID, result.Envelope.RunInstanceID, artifacts); err != nil {
		log.Printf("archive: upload failed: %v", err)
	}
}

// RunResponse is the run command's rendered summary of a completed run.
type RunResponse struct {
	RunID               string `json:"run_id"`
	RunInstanceID       string `json:"run_instance_id"`
	ExitStatus          string `json:"exit_status"`
	TotalCasesExpected  int    `json:"total_cases_expected"`
	TotalCasesCompleted int    `json:"total_cases_completed"`
	ExecutedActionCount int    `json:"executed_action_count"`
	BlockedActionCount  int    `json:"blocked_action_count"`
	ModifiedActionCount int    `json:"modified_action_count"`
	VerificationPassed  bool   `json:"verification_passed"`
	EnvelopePath        string `json:"envelope_path"`
	ReportPath          string `json:"report_path"`
}
