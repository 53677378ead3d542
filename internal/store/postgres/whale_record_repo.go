package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/kodascan/whalewatch/internal/domain/model"
)

// WhaleRecordRepo is the sink's idempotent storage target.
// Unique index on (chain, tx_hash); confidence is monotonic across
// re-upserts.
type WhaleRecordRepo struct {
	db *DB
}

func NewWhaleRecordRepo(db *DB) *WhaleRecordRepo {
	return &WhaleRecordRepo{db: db}
}

// Upsert inserts or updates a WhaleRecord, keyed on (chain, tx_hash).
// The `xmax = 0` trick distinguishes a fresh insert from a conflict
// update without a round trip.
func (r *WhaleRecordRepo) Upsert(ctx context.Context, rec model.WhaleRecord) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	evidence := strings.Join(rec.Evidence, "\n")

	var inserted bool
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO whale_records (
			chain, tx_hash, block_time, whale_address, counterparty_address,
			counterparty_kind, is_cex_transaction, classification, confidence,
			token_symbol, usd_value, from_label, to_label, evidence, source_id, ingested_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (chain, tx_hash) DO UPDATE SET
			classification = CASE WHEN EXCLUDED.confidence >= whale_records.confidence THEN EXCLUDED.classification ELSE whale_records.classification END,
			confidence = GREATEST(EXCLUDED.confidence, whale_records.confidence),
			evidence = CASE WHEN EXCLUDED.confidence >= whale_records.confidence THEN EXCLUDED.evidence ELSE whale_records.evidence END,
			usd_value = CASE WHEN EXCLUDED.confidence >= whale_records.confidence THEN EXCLUDED.usd_value ELSE whale_records.usd_value END,
			from_label = CASE WHEN EXCLUDED.confidence >= whale_records.confidence THEN EXCLUDED.from_label ELSE whale_records.from_label END,
			to_label = CASE WHEN EXCLUDED.confidence >= whale_records.confidence THEN EXCLUDED.to_label ELSE whale_records.to_label END,
			counterparty_kind = CASE WHEN EXCLUDED.confidence >= whale_records.confidence THEN EXCLUDED.counterparty_kind ELSE whale_records.counterparty_kind END,
			is_cex_transaction = CASE WHEN EXCLUDED.confidence >= whale_records.confidence THEN EXCLUDED.is_cex_transaction ELSE whale_records.is_cex_transaction END
		RETURNING (xmax = 0) AS inserted
	`,
		rec.Chain, rec.TxHash, rec.BlockTime, rec.WhaleAddress, rec.CounterpartyAddress,
		rec.CounterpartyKind, rec.IsCEXTransaction, rec.Classification, rec.Confidence,
		rec.TokenSymbol, rec.USDValue, rec.FromLabel, rec.ToLabel, evidence, rec.SourceID, rec.IngestedAt,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert whale record: %w", err)
	}
	return inserted, nil
}

func (r *WhaleRecordRepo) Get(ctx context.Context, key model.RecordKey) (*model.WhaleRecord, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var rec model.WhaleRecord
	var evidence string
	err := r.db.QueryRowContext(ctx, `
		SELECT chain, tx_hash, block_time, whale_address, counterparty_address,
			counterparty_kind, is_cex_transaction, classification, confidence,
			token_symbol, usd_value, from_label, to_label, evidence, source_id, ingested_at
		FROM whale_records WHERE chain = $1 AND tx_hash = $2
	`, key.Chain, key.TxHash).Scan(
		&rec.Chain, &rec.TxHash, &rec.BlockTime, &rec.WhaleAddress, &rec.CounterpartyAddress,
		&rec.CounterpartyKind, &rec.IsCEXTransaction, &rec.Classification, &rec.Confidence,
		&rec.TokenSymbol, &rec.USDValue, &rec.FromLabel, &rec.ToLabel, &evidence, &rec.SourceID, &rec.IngestedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get whale record: %w", err)
	}
	if evidence != "" {
		rec.Evidence = strings.Split(evidence, "\n")
	}
	return &rec, nil
}

// ListSince returns records whose block_time is at or after since, oldest
// block_time first, for the cleanup-duplicates scan.
func (r *WhaleRecordRepo) ListSince(ctx context.Context, since time.Time, limit int) ([]model.WhaleRecord, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT chain, tx_hash, block_time, whale_address, counterparty_address,
			counterparty_kind, is_cex_transaction, classification, confidence,
			token_symbol, usd_value, from_label, to_label, evidence, source_id, ingested_at
		FROM whale_records
		WHERE block_time >= $1
		ORDER BY block_time ASC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list whale records: %w", err)
	}
	defer rows.Close()

	var out []model.WhaleRecord
	for rows.Next() {
		var rec model.WhaleRecord
		var evidence string
		if err := rows.Scan(
			&rec.Chain, &rec.TxHash, &rec.BlockTime, &rec.WhaleAddress, &rec.CounterpartyAddress,
			&rec.CounterpartyKind, &rec.IsCEXTransaction, &rec.Classification, &rec.Confidence,
			&rec.TokenSymbol, &rec.USDValue, &rec.FromLabel, &rec.ToLabel, &evidence, &rec.SourceID, &rec.IngestedAt,
		); err != nil {
			return nil, fmt.Errorf("scan whale record row: %w", err)
		}
		if evidence != "" {
			rec.Evidence = strings.Split(evidence, "\n")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete removes the record at key. Used only by the offline
// cleanup-duplicates command; the live pipeline never deletes.
func (r *WhaleRecordRepo) Delete(ctx context.Context, key model.RecordKey) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		DELETE FROM whale_records WHERE chain = $1 AND tx_hash = $2
	`, key.Chain, key.TxHash)
	if err != nil {
		return fmt.Errorf("delete whale record: %w", err)
	}
	return nil
}
