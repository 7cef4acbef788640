// Package archive defines the best-effort post-run artifact mirror.
//
// An Archiver copies a sealed run's artifacts (envelope, metrics,
// report) to durable off-box storage after the run has already completed.
// Like notify, archiving runs strictly after the governed execution path
// finishes — a mirror failure never changes a run's exit status.
package archive

import "context"

// Artifact is a single file to mirror, keyed by its run-relative name
// (e.g. "envelope.json", "execution_log.jsonl").
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// Archiver mirrors run artifacts to durable storage.
type Archiver interface {
	// PutArtifacts uploads every artifact under a run-scoped prefix.
	// Must respect context cancellation and deadlines.
	PutArtifacts(ctx context.Context, runID, runInstanceID string, artifacts []Artifact) error
}
