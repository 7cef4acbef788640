package policy

import (
	"sync"

	"github.com/justapithecus/governor/types"
)

// Stats tallies policy verdicts across a run, for the Suite Runner's
// metrics computation.
type Stats struct {
	TotalActions     int64
	AllowCount       int64
	AllowModifiedCount int64
	BlockCount       int64
	ByReason         map[string]int64
}

// statsRecorder is a thread-safe accumulator for Stats. The Case Runner
// holds one recorder per suite run and calls Record from whatever
// goroutine evaluates each action's verdict.
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

// NewStatsRecorder returns a recorder with an initialized ByReason map.
func NewStatsRecorder() *StatsRecorder {
	return &StatsRecorder{r: &statsRecorder{stats: Stats{ByReason: make(map[string]int64)}}}
}

// StatsRecorder is the exported handle returned by NewStatsRecorder; it
// wraps the internal recorder so callers cannot reach into its mutex.
type StatsRecorder struct {
	r *statsRecorder
}

// Record tallies one verdict's disposition and reason.
func (s *StatsRecorder) Record(v types.PolicyVerdict) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	s.r.stats.TotalActions++
	switch v.DecisionType {
	case types.DecisionAllow:
		s.r.stats.AllowCount++
	case types.DecisionAllowModified:
		s.r.stats.AllowModifiedCount++
	case types.DecisionBlock:
		s.r.stats.BlockCount++
	}
	s.r.stats.ByReason[v.PolicyReason]++
}

// Snapshot returns a copy of the accumulated stats safe for the caller to
// read without further locking.
func (s *StatsRecorder) Snapshot() Stats {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	out := s.r.stats
	out.ByReason = make(map[string]int64, len(s.r.stats.ByReason))
	for k, v := range s.r.stats.ByReason {
		out.ByReason[k] = v
	}
	return out
}
