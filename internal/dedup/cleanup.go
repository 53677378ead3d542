package dedup

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/kodascan/whalewatch/internal/domain/model"
	"github.com/kodascan/whalewatch/internal/store"
)

// CleanupReport summarizes one cleanup-duplicates run.
type CleanupReport struct {
	Scanned   int  `json:"scanned"`
	Matched   int  `json:"matched"`
	Deleted   int  `json:"deleted"`
	Merged    int  `json:"merged"`
	Protected int  `json:"protected"`
	DryRun    bool `json:"dry_run"`
}

// Cleanup scans stored records from since onward and applies the same
// match predicate and merge policy the live suppressor uses,
// retroactively. With dryRun set, nothing is written; the report counts
// what would have happened. Backs the CLI's
// `cleanup-duplicates [--dry-run|--live]` surface.
func Cleanup(ctx context.Context, cfg MatchConfig, repo store.CleanupRepository, lookback store.DedupLookbackRepository, since time.Time, limit int, dryRun bool, logger *slog.Logger) (CleanupReport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	report := CleanupReport{DryRun: dryRun}

	records, err := repo.ListSince(ctx, since, limit)
	if err != nil {
		return report, err
	}
	report.Scanned = len(records)

	groups := make(map[model.DedupKey][]model.WhaleRecord)
	for _, rec := range records {
		key := rec.DedupGroupKey()
		groups[key] = append(groups[key], rec)
	}

	for _, group := range groups {
		sort.Slice(group, func(i, j int) bool {
			return group[i].BlockTime.Before(group[j].BlockTime)
		})
		removed := make(map[model.RecordKey]bool)

		for i := 0; i < len(group); i++ {
			if removed[group[i].Key()] {
				continue
			}
			for j := i + 1; j < len(group); j++ {
				if removed[group[j].Key()] {
					continue
				}
				keep, drop := group[i], group[j]
				pattern, ok := Match(cfg, keep, drop)
				if !ok {
					continue
				}
				report.Matched++
				if reason, guarded := Safeguarded(cfg, keep, drop); guarded {
					report.Protected++
					logger.Info("duplicate pair protected by safeguard",
						"keep", keep.TxHash, "drop", drop.TxHash, "reason", string(reason))
					continue
				}

				// The later record loses unless it carries strictly
				// higher confidence, in which case its fields are merged
				// onto the earlier row.
				if drop.Confidence > keep.Confidence {
					merged := drop
					merged.Chain = keep.Chain
					merged.TxHash = keep.TxHash
					merged.BlockTime = keep.BlockTime
					if !dryRun {
						if err := lookback.Replace(ctx, merged); err != nil {
							return report, err
						}
					}
					group[i] = merged
					report.Merged++
				}
				if !dryRun {
					if err := repo.Delete(ctx, drop.Key()); err != nil {
						return report, err
					}
				}
				removed[drop.Key()] = true
				report.Deleted++
				logger.Info("duplicate removed",
					"keep", group[i].TxHash, "drop", drop.TxHash,
					"pattern", string(pattern), "dry_run", dryRun)
			}
		}
	}

	return report, nil
}
