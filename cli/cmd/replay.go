package cmd

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/justapithecus/governor/cli/render"
	"github.com/justapithecus/governor/execlog"
	"github.com/justapithecus/governor/verify"
)

// cacheDirName is the on-disk replay cache directory, rooted under the
// run's runtime directory so repeated replays of runs from different
// runtime roots never collide or depend on the caller's working directory.
const cacheDirName = ".governor-cache"

// ReplayCommand returns the replay command: recomputes a sealed run's
// verification result from its execution log without re-executing
// anything, memoizing the result by execution-log hash.
func ReplayCommand() *cli.Command {
	return &cli.Command{
		Name:      "replay",
		Usage:     "Recompute a run's verification result from its execution log, using an on-disk cache",
		ArgsUsage: "<envelope-path>",
		Flags: append(ReadOnlyFlags(),
			&cli.BoolFlag{Name: "no-cache", Usage: "Skip the on-disk replay cache and always recompute"},
		),
		Action: replayAction,
	}
}

// ReplayResponse is the replay command's rendered summary.
type ReplayResponse struct {
	ExecutionLogHash string        `json:"execution_log_hash"`
	FromCache        bool          `json:"from_cache"`
	Verification     verify.Result `json:"verification"`
}

func replayAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("envelope-path required", 1)
	}
	envelopePath := c.Args().First()

	envelope, runtimeRoot, logPath, err := loadEnvelope(envelopePath)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	logHash, err := execlog.ComputeHash(logPath)
	if err != nil {
		return cli.Exit("compute execution log hash: "+err.Error(), 1)
	}

	useCache := !c.Bool("no-cache")
	cachePath := filepath.Join(runtimeRoot, cacheDirName, logHash+".msgpack")

	var result verify.Result
	fromCache := false
	if useCache {
		if cached, ok := loadReplayCache(cachePath); ok {
			result = cached
			fromCache = true
		}
	}
	if !fromCache {
		result = verify.VerifyRun(envelope, logPath, runtimeRoot, envelope.TotalCasesExpected)
		if useCache {
			_ = saveReplayCache(cachePath, result)
		}
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	resp := ReplayResponse{ExecutionLogHash: logHash, FromCache: fromCache, Verification: result}
	if err := r.Render(resp); err != nil {
		return err
	}

	if !result.Overall.Pass {
		return cli.Exit("", 1)
	}
	return nil
}

// loadReplayCache reads a cached verify.Result from disk. A missing or
// unreadable cache entry is treated as a cache miss, never an error —
// the cache is a memoization layer, not a source of truth.
func loadReplayCache(path string) (verify.Result, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return verify.Result{}, false
	}
	var result verify.Result
	if err := msgpack.Unmarshal(data, &result); err != nil {
		return verify.Result{}, false
	}
	return result, true
}

// saveReplayCache writes a verify.Result to the on-disk replay cache,
// creating the cache directory if needed.
func saveReplayCache(path string, result verify.Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := msgpack.Marshal(result)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
