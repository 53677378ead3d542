// Package store defines the repository interfaces the pipeline depends
// on for persistence, one interface per concern. Concrete
// implementations live in store/postgres and store/redis.
package store

import (
	"context"
	"time"

	"github.com/kodascan/whalewatch/internal/domain/model"
)

// LabelRepository is the read-through label store backing the address
// label provider: get(address, chain) -> AddressLabel?, upsert(AddressLabel).
type LabelRepository interface {
	Get(ctx context.Context, chain model.Chain, address string) (*model.AddressLabel, error)
	Upsert(ctx context.Context, label model.AddressLabel) error
}

// WhaleRecordRepository is the sink's idempotent storage target,
// keyed on (chain, tx_hash).
type WhaleRecordRepository interface {
	// Upsert inserts or updates the record. On conflict, the existing
	// row's confidence is replaced only if the incoming confidence is
	// higher, so a record's confidence is the max across every upsert
	// attempt. Returns true if a new
	// row was inserted, false if an existing row was touched (updated or
	// left as-is).
	Upsert(ctx context.Context, record model.WhaleRecord) (inserted bool, err error)
	Get(ctx context.Context, key model.RecordKey) (*model.WhaleRecord, error)
}

// DedupLookbackRepository backs the near-duplicate suppressor's L2 layer
// layer: the last M records for a (whale_address, token_symbol) key within
// a time window.
type DedupLookbackRepository interface {
	RecentByKey(ctx context.Context, key model.DedupKey, since time.Time, limit int) ([]model.WhaleRecord, error)
	// Replace overwrites an existing record in place (used by the dedup
	// merge policy when the incoming record wins).
	Replace(ctx context.Context, record model.WhaleRecord) error
}

// CleanupRepository is the offline surface the cleanup-duplicates CLI
// command scans and prunes through.
type CleanupRepository interface {
	ListSince(ctx context.Context, since time.Time, limit int) ([]model.WhaleRecord, error)
	Delete(ctx context.Context, key model.RecordKey) error
}

// DeadLetterEntry is a record the sink could not persist after exhausting
// retries.
type DeadLetterEntry struct {
	ID        string
	Chain     model.Chain
	TxHash    string
	Payload   []byte // JSON-encoded original WhaleRecord
	LastError string
	FailedAt  time.Time
}

// DeadLetterRepository persists permanently-failed sink writes for later
// operator inspection/replay.
type DeadLetterRepository interface {
	Write(ctx context.Context, entry DeadLetterEntry) error
	List(ctx context.Context, limit int) ([]DeadLetterEntry, error)
}

// Watermark is a source's ingestion high-watermark, persisted so a
// restarted poller resumes where it left off.
type Watermark struct {
	SourceID  string
	LastBlock int64
	LastTime  time.Time
}

// HighWatermarkRepository persists per-source high-watermarks keyed by
// source_id. Its one implementation, postgres.WatermarkRepo, stores them
// as rows of the source_watermarks table; no JSON file is written.
type HighWatermarkRepository interface {
	Get(ctx context.Context, sourceID string) (*Watermark, error)
	Set(ctx context.Context, wm Watermark) error
}
