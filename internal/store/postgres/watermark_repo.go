package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kodascan/whalewatch/internal/store"
)

// WatermarkRepo persists each source's ingestion high-watermark so a
// restarted poller resumes where it left off.
type WatermarkRepo struct {
	db *DB
}

func NewWatermarkRepo(db *DB) *WatermarkRepo {
	return &WatermarkRepo{db: db}
}

func (r *WatermarkRepo) Get(ctx context.Context, sourceID string) (*store.Watermark, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var wm store.Watermark
	err := r.db.QueryRowContext(ctx, `
		SELECT source_id, last_block, last_time
		FROM source_watermarks WHERE source_id = $1
	`, sourceID).Scan(&wm.SourceID, &wm.LastBlock, &wm.LastTime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get watermark: %w", err)
	}
	return &wm, nil
}

func (r *WatermarkRepo) Set(ctx context.Context, wm store.Watermark) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO source_watermarks (source_id, last_block, last_time)
		VALUES ($1, $2, $3)
		ON CONFLICT (source_id) DO UPDATE SET
			last_block = EXCLUDED.last_block,
			last_time = EXCLUDED.last_time
	`, wm.SourceID, wm.LastBlock, wm.LastTime)
	if err != nil {
		return fmt.Errorf("set watermark: %w", err)
	}
	return nil
}
