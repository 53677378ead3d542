package ingest

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/kodascan/whalewatch/internal/domain/model"
	"github.com/kodascan/whalewatch/internal/metrics"
)

// FanIn runs a set of independent Sources, each pushing into its own
// bounded per-source channel, then forwards every transfer onto a single
// shared output channel. A source blocks when the
// shared channel is full unless a drop budget is configured, in which
// case it drops the oldest buffered item and logs a counter.
type FanIn struct {
	sources    []Source
	queueSize  int
	dropBudget int
	logger     *slog.Logger
}

// New constructs a FanIn over sources. queueSize bounds each source's
// private relay channel; dropBudget is the length of the per-source
// in-memory queue forward keeps under backpressure, evicting the oldest
// queued item whenever it is full (dropBudget<=0 means always block,
// never drop).
func New(sources []Source, queueSize, dropBudget int, logger *slog.Logger) *FanIn {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FanIn{
		sources:    sources,
		queueSize:  queueSize,
		dropBudget: dropBudget,
		logger:     logger.With("component", "ingest.fanin"),
	}
}

// Run starts every source concurrently and forwards their output onto
// out until ctx is cancelled or every source has returned. Run does not
// close out; the caller owns that once all upstream stages have drained.
func (f *FanIn) Run(ctx context.Context, out chan<- model.RawTransfer) error {
	g, gCtx := errgroup.WithContext(ctx)
	for _, src := range f.sources {
		src := src
		relay := make(chan model.RawTransfer, f.queueSize)

		g.Go(func() error {
			defer close(relay)
			return src.Run(gCtx, relay)
		})

		g.Go(func() error {
			return f.forward(gCtx, src.Name(), relay, out)
		})
	}
	return g.Wait()
}

// forward drains relay into out. With no drop budget configured it simply
// blocks on out, which in turn blocks relay and, transitively, the
// source itself. With a drop
// budget configured, it keeps a small in-memory queue of up to
// dropBudget items and evicts the oldest queued item to make room for a
// newly arrived one rather than blocking the source.
func (f *FanIn) forward(ctx context.Context, sourceName string, relay <-chan model.RawTransfer, out chan<- model.RawTransfer) error {
	if f.dropBudget <= 0 {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case item, ok := <-relay:
				if !ok {
					return nil
				}
				metrics.IngestEventsReceived.WithLabelValues(string(item.Chain), sourceName).Inc()
				select {
				case out <- item:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}

	var queue []model.RawTransfer
	for {
		if len(queue) == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case item, ok := <-relay:
				if !ok {
					return nil
				}
				metrics.IngestEventsReceived.WithLabelValues(string(item.Chain), sourceName).Inc()
				queue = append(queue, item)
			}
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- queue[0]:
			queue = queue[1:]
		case item, ok := <-relay:
			if !ok {
				// drain the remaining queue, then exit.
				for _, q := range queue {
					select {
					case out <- q:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
				return nil
			}
			metrics.IngestEventsReceived.WithLabelValues(string(item.Chain), sourceName).Inc()
			if len(queue) >= f.dropBudget {
				evicted := queue[0]
				queue = append(queue[1:], item)
				metrics.IngestDropped.WithLabelValues(string(evicted.Chain), sourceName).Inc()
				f.logger.Warn("dropping oldest queued item under backpressure",
					"source", sourceName, "budget", f.dropBudget)
			} else {
				queue = append(queue, item)
			}
		}
	}
}
