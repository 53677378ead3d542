// Package ingest runs independent transfer sources fanning in
// to a single bounded channel.
package ingest

import (
	"context"

	"github.com/kodascan/whalewatch/internal/domain/model"
)

// Source is one independent feed of raw transfers. Run blocks until ctx
// is cancelled or the source is exhausted, pushing every decoded
// transfer onto out. Implementations must honor ctx cancellation
// promptly and must not close out (FanIn owns that).
type Source interface {
	// Name identifies the source for metrics and logs.
	Name() string
	// Run consumes the upstream feed and sends RawTransfers to out until
	// ctx is done or the source permanently fails.
	Run(ctx context.Context, out chan<- model.RawTransfer) error
}
