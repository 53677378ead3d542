package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kodascan/whalewatch/internal/domain/model"
)

// DedupLookbackRepo backs the near-duplicate suppressor's L2 layer
// the last M records for (whale_address, token_symbol)
// within a time window, using the
// (whale_address, token_symbol, block_time desc) index.
type DedupLookbackRepo struct {
	db *DB
}

func NewDedupLookbackRepo(db *DB) *DedupLookbackRepo {
	return &DedupLookbackRepo{db: db}
}

func (r *DedupLookbackRepo) RecentByKey(ctx context.Context, key model.DedupKey, since time.Time, limit int) ([]model.WhaleRecord, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT chain, tx_hash, block_time, whale_address, counterparty_address,
			counterparty_kind, is_cex_transaction, classification, confidence,
			token_symbol, usd_value, from_label, to_label, evidence, source_id, ingested_at
		FROM whale_records
		WHERE whale_address = $1 AND token_symbol = $2 AND block_time >= $3
		ORDER BY block_time DESC
		LIMIT $4
	`, key.WhaleAddress, key.TokenSymbol, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query dedup lookback: %w", err)
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
			return nil, fmt.Errorf("scan dedup lookback row: %w", err)
		}
		if evidence != "" {
			rec.Evidence = strings.Split(evidence, "\n")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Replace overwrites an existing record's mutable fields in place,
// preserving its original (earliest) block_time per the merge policy
// of the suppressor.
func (r *DedupLookbackRepo) Replace(ctx context.Context, rec model.WhaleRecord) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		UPDATE whale_records SET
			classification = $3, confidence = $4, usd_value = $5,
			from_label = $6, to_label = $7, counterparty_kind = $8,
			is_cex_transaction = $9, evidence = $10
		WHERE chain = $1 AND tx_hash = $2
	`, rec.Chain, rec.TxHash, rec.Classification, rec.Confidence, rec.USDValue,
		rec.FromLabel, rec.ToLabel, rec.CounterpartyKind, rec.IsCEXTransaction,
		strings.Join(rec.Evidence, "\n"))
	if err != nil {
		return fmt.Errorf("replace whale record: %w", err)
	}
	return nil
}
