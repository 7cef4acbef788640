// Package execlog implements the append-only JSONL execution log every
// governed run writes to: one line per pipeline event, flushed and synced
// before the call returns so a crash mid-run never loses or corrupts a
// prior line.
package execlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/justapithecus/governor/types"
)

// Log appends events to a single JSONL file.
type Log struct {
	path string
}

// Open ensures path's parent directory exists and returns a Log appending
// to it. Open does not create or truncate the file itself — Append does,
// on first write.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &Log{path: path}, nil
}

// Path returns the log's file path.
func (l *Log) Path() string {
	return l.path
}

// AppendOptions carries the fixed header fields for one event. Stage and
// RunID are required; DecisionType defaults to "allow" when empty and is
// always written; everything else is included only when non-empty,
// matching the Python harness's "include if not None" semantics.
type AppendOptions struct {
	RunID         string
	Stage         types.Stage
	ActionID      string
	DecisionType  string
	AdapterStatus string
	RiskLabel     string
	RiskScore     string
	PolicyReason  string
	Payload       map[string]any
}

// Append writes one event to the log, assigning it a fresh UUID event_id
// and the current UTC timestamp, then computes and stores its payload
// hash. The write is flushed and fsynced before Append returns.
func Append(path string, opts AppendOptions) (types.Event, error) {
	decisionType := opts.DecisionType
	if decisionType == "" {
		decisionType = "allow"
	}
	event := types.Event{
		EventID:       uuid.NewString(),
		RunID:         opts.RunID,
		Stage:         opts.Stage,
		TsUTC:         time.Now().UTC().Format(time.RFC3339Nano),
		DecisionType:  decisionType,
		ActionID:      opts.ActionID,
		AdapterStatus: opts.AdapterStatus,
		RiskLabel:     opts.RiskLabel,
		RiskScore:     opts.RiskScore,
		PolicyReason:  opts.PolicyReason,
		Payload:       opts.Payload,
	}
	event.PayloadHash = types.CanonicalSHA256(event.PayloadHashableMap())

	line, err := json.Marshal(event)
	if err != nil {
		return types.Event{}, err
	}

	if err := appendLine(path, line); err != nil {
		return types.Event{}, err
	}
	return event, nil
}

// appendLine opens path in append mode, writes line plus a trailing
// newline, and fsyncs before closing so the write survives a crash.
func appendLine(path string, line []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.Write(line); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

// ReadRaw reads every event line in the log as a generic map, in the
// defensive style used to read data whose shape varies by stage rather
// than unmarshaling into a single fixed struct.
func ReadRaw(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for _, line := range bytes.Split(data, []byte("\n")) {
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// ComputeHash returns the canonical SHA-256 of the log's events with
// ts_utc and event_id removed from each, so two runs that made identical
// decisions hash identically regardless of wall-clock time or random
// event IDs. A missing log file hashes as the empty-list snapshot.
func ComputeHash(path string) (string, error) {
	events, err := ReadRaw(path)
	if err != nil {
		return "", err
	}
	canonicalized := make([]map[string]any, 0, len(events))
	for _, e := range events {
		c := make(map[string]any, len(e))
		for k, v := range e {
			if k == "ts_utc" || k == "event_id" {
				continue
			}
			c[k] = v
		}
		canonicalized = append(canonicalized, c)
	}
	return types.CanonicalSHA256(canonicalized), nil
}
