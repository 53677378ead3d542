package pipeline

import "sync/atomic"

// Stats holds the per-stage counters the CLI stats command reports:
// received/enriched/classified/stored/suppressed/dropped/errors.
type Stats struct {
	Received   atomic.Int64
	Enriched   atomic.Int64
	Classified atomic.Int64
	Stored     atomic.Int64
	Suppressed atomic.Int64
	Dropped    atomic.Int64
	Errors     atomic.Int64
}

// Snapshot is a point-in-time, JSON-safe copy of the counters.
type Snapshot struct {
	Received   int64 `json:"received"`
	Enriched   int64 `json:"enriched"`
	Classified int64 `json:"classified"`
	Stored     int64 `json:"stored"`
	Suppressed int64 `json:"suppressed"`
	Dropped    int64 `json:"dropped"`
	Errors     int64 `json:"errors"`
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Received:   s.Received.Load(),
		Enriched:   s.Enriched.Load(),
		Classified: s.Classified.Load(),
		Stored:     s.Stored.Load(),
		Suppressed: s.Suppressed.Load(),
		Dropped:    s.Dropped.Load(),
		Errors:     s.Errors.Load(),
	}
}
