package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/governor/cli/render"
	"github.com/justapithecus/governor/types"
	"github.com/justapithecus/governor/verify"
)

// VerifyCommand returns the verify command: re-checks a sealed run
// envelope against the on-disk artifacts it claims to describe, without
// re-executing anything.
func VerifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "Re-verify a sealed run envelope against its on-disk artifacts",
		ArgsUsage: "<envelope-path>",
		Flags:     ReadOnlyFlags(),
		Action:    verifyAction,
	}
}

func verifyAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("envelope-path required", 1)
	}
	envelopePath := c.Args().First()

	envelope, runtimeRoot, logPath, err := loadEnvelope(envelopePath)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	result := verify.VerifyRun(envelope, logPath, runtimeRoot, envelope.TotalCasesExpected)

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if err := r.Render(result); err != nil {
		return err
	}

	if !result.Overall.Pass {
		return cli.Exit("", 1)
	}
	return nil
}

// loadEnvelope reads a sealed run envelope and derives the runtime root
// and execution log path it was written under. The runtime root is two
// levels above benchmarks/autonomous/<envelope file>, matching the layout
// RunSuite produces.
func loadEnvelope(envelopePath string) (types.RunEnvelope, string, string, error) {
	data, err := os.ReadFile(envelopePath)
	if err != nil {
		return types.RunEnvelope{}, "", "", fmt.Errorf("read envelope: %w", err)
	}
	var envelope types.RunEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return types.RunEnvelope{}, "", "", fmt.Errorf("parse envelope: %w", err)
	}

	runtimeRoot := filepath.Dir(filepath.Dir(filepath.Dir(envelopePath)))
	logFilename := fmt.Sprintf("%s__%s.events.jsonl", envelope.RunID, envelope.RunInstanceID)
	logPath := filepath.Join(runtimeRoot, "benchmarks", "execution_logs", logFilename)

	return envelope, runtimeRoot, logPath, nil
}
