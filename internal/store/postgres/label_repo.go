package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kodascan/whalewatch/internal/domain/model"
)

// LabelRepo is the Postgres-backed read-through store the label
// provider falls through to on an LRU miss.
type LabelRepo struct {
	db *DB
}

func NewLabelRepo(db *DB) *LabelRepo {
	return &LabelRepo{db: db}
}

// Get returns the stored label, or nil if no row exists for (chain, address).
func (r *LabelRepo) Get(ctx context.Context, chain model.Chain, address string) (*model.AddressLabel, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var l model.AddressLabel
	var entityName sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT address, chain, kind, entity_name, confidence, updated_at
		FROM address_labels
		WHERE chain = $1 AND address = $2
	`, chain, address).Scan(&l.Address, &l.Chain, &l.Kind, &entityName, &l.Confidence, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get address label: %w", err)
	}
	l.EntityName = entityName.String
	return &l, nil
}

// Upsert writes a label, keeping the higher-confidence entry on conflict;
// ties are broken by freshness (updated_at).
func (r *LabelRepo) Upsert(ctx context.Context, label model.AddressLabel) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO address_labels (address, chain, kind, entity_name, confidence, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (chain, address) DO UPDATE SET
			kind = CASE WHEN EXCLUDED.confidence > address_labels.confidence OR (EXCLUDED.confidence = address_labels.confidence AND EXCLUDED.updated_at >= address_labels.updated_at) THEN EXCLUDED.kind ELSE address_labels.kind END,
			entity_name = CASE WHEN EXCLUDED.confidence > address_labels.confidence OR (EXCLUDED.confidence = address_labels.confidence AND EXCLUDED.updated_at >= address_labels.updated_at) THEN EXCLUDED.entity_name ELSE address_labels.entity_name END,
			confidence = GREATEST(EXCLUDED.confidence, address_labels.confidence),
			updated_at = CASE WHEN EXCLUDED.confidence > address_labels.confidence OR (EXCLUDED.confidence = address_labels.confidence AND EXCLUDED.updated_at >= address_labels.updated_at) THEN EXCLUDED.updated_at ELSE address_labels.updated_at END
	`, label.Address, label.Chain, label.Kind, nullableString(label.EntityName), label.Confidence, label.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert address label: %w", err)
	}
	return nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
