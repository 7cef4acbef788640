package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/governor/cli/reader"
	"github.com/justapithecus/governor/cli/render"
)

// InspectCommand returns the inspect command: a deep view of one sealed
// run envelope, optionally interactive.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Inspect a sealed run envelope",
		ArgsUsage: "<envelope-path>",
		Flags:     TUIReadOnlyFlags(),
		Action:    inspectRunAction,
	}
}

func inspectRunAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("envelope-path required", 1)
	}
	envelopePath := c.Args().First()

	resp, err := reader.InspectRun(envelopePath)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI("inspect_run", resp)
	}
	return r.Render(resp)
}
