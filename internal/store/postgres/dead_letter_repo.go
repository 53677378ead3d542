package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kodascan/whalewatch/internal/store"
)

// DeadLetterRepo persists sink writes that exhausted their retry budget
// so an operator can inspect or replay them later.
type DeadLetterRepo struct {
	db *DB
}

func NewDeadLetterRepo(db *DB) *DeadLetterRepo {
	return &DeadLetterRepo{db: db}
}

func (r *DeadLetterRepo) Write(ctx context.Context, entry store.DeadLetterEntry) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dead_letters (id, chain, tx_hash, payload, last_error, failed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.Chain, entry.TxHash, entry.Payload, entry.LastError, entry.FailedAt)
	if err != nil {
		return fmt.Errorf("write dead letter: %w", err)
	}
	return nil
}

func (r *DeadLetterRepo) List(ctx context.Context, limit int) ([]store.DeadLetterEntry, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, chain, tx_hash, payload, last_error, failed_at
		FROM dead_letters
		ORDER BY failed_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var out []store.DeadLetterEntry
	for rows.Next() {
		var e store.DeadLetterEntry
		if err := rows.Scan(&e.ID, &e.Chain, &e.TxHash, &e.Payload, &e.LastError, &e.FailedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
