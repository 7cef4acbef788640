package tui

import "fmt"

// Run starts the TUI for the given view type.
// Returns an error if the view type doesn't support TUI.
func Run(viewType string, data any) error {
	if !IsTUISupported(viewType) {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}
	return RunInspectTUI(viewType, data)
}

// IsTUISupported returns true if the view type supports TUI mode.
// Only inspect is interactive; run and verify are one-shot commands.
func IsTUISupported(viewType string) bool {
	return viewType == "inspect_run"
}

// SupportedTUIViews returns every view type that supports TUI.
func SupportedTUIViews() []string {
	return []string{"inspect_run"}
}
