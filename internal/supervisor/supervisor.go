package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kodascan/whalewatch/internal/alert"
	"github.com/kodascan/whalewatch/internal/circuitbreaker"
	"github.com/kodascan/whalewatch/internal/domain/model"
	"github.com/kodascan/whalewatch/internal/ingest"
	"github.com/kodascan/whalewatch/internal/metrics"
)

const (
	restartBackoffBase = time.Second
	restartBackoffCap  = 60 * time.Second
	// steadyRunThreshold: a run that survives this long resets the
	// restart backoff to its base.
	steadyRunThreshold = 60 * time.Second
	probeInterval      = 15 * time.Second

	breakerFailureThreshold = 10
	breakerOpenTimeout      = 30 * time.Second
)

// Supervisor runs every ingestion source under a restart-with-backoff
// loop, a health probe, and a per-source circuit breaker.
// A source that keeps failing has its circuit opened and stops consuming
// restart budget; the other sources keep running.
type Supervisor struct {
	sources  []ingest.Source
	health   map[string]*Health
	breakers map[string]*circuitbreaker.Breaker
	alerter  alert.Alerter
	logger   *slog.Logger
	sleepFn  func(context.Context, time.Duration) error
}

func New(sources []ingest.Source, alerter alert.Alerter, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	if alerter == nil {
		alerter = &alert.NoopAlerter{}
	}
	s := &Supervisor{
		sources:  sources,
		health:   make(map[string]*Health, len(sources)),
		breakers: make(map[string]*circuitbreaker.Breaker, len(sources)),
		alerter:  alerter,
		logger:   logger.With("component", "supervisor"),
		sleepFn:  sleepCtx,
	}
	for _, src := range sources {
		name := src.Name()
		s.health[name] = NewHealth(name)
		s.breakers[name] = circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: breakerFailureThreshold,
			OpenTimeout:      breakerOpenTimeout,
			OnStateChange: func(from, to circuitbreaker.State) {
				metrics.SourceCircuitState.WithLabelValues(name).Set(float64(to))
				if to == circuitbreaker.StateOpen {
					s.logger.Warn("source circuit opened", "source", name)
				}
			},
		})
	}
	return s
}

// Run supervises every source concurrently until ctx is cancelled. Each
// source emits into out through a recorder that feeds its health probe.
// Run never fails because one source does: a permanently broken source
// parks behind its open circuit while the rest continue.
func (s *Supervisor) Run(ctx context.Context, out chan<- model.RawTransfer) error {
	g, gCtx := errgroup.WithContext(ctx)
	for _, src := range s.sources {
		src := src
		g.Go(func() error { return s.supervise(gCtx, src, out) })
	}
	g.Go(func() error { return s.probeLoop(gCtx) })
	return g.Wait()
}

func (s *Supervisor) supervise(ctx context.Context, src ingest.Source, out chan<- model.RawTransfer) error {
	name := src.Name()
	health := s.health[name]
	breaker := s.breakers[name]
	backoff := restartBackoffBase

	for {
		if err := ctx.Err(); err != nil {
			health.MarkInactive()
			return err
		}

		if err := breaker.Allow(); err != nil {
			if err := s.sleepFn(ctx, breakerOpenTimeout); err != nil {
				health.MarkInactive()
				return err
			}
			continue
		}

		start := time.Now()
		err := s.runOnce(ctx, src, health, out)
		if err == nil || errors.Is(err, context.Canceled) {
			health.MarkInactive()
			return nil
		}

		breaker.RecordFailure()
		health.RecordFailure()
		metrics.SourceRestartsTotal.WithLabelValues(name).Inc()
		s.logger.Warn("source failed, restarting",
			"source", name, "backoff", backoff, "error", err)

		if time.Since(start) >= steadyRunThreshold {
			backoff = restartBackoffBase
		}
		if err := s.sleepFn(ctx, backoff); err != nil {
			health.MarkInactive()
			return err
		}
		backoff *= 2
		if backoff > restartBackoffCap {
			backoff = restartBackoffCap
		}
	}
}

// runOnce runs the source through a relay channel so every successful
// emit is recorded against the health probe and the circuit breaker.
func (s *Supervisor) runOnce(ctx context.Context, src ingest.Source, health *Health, out chan<- model.RawTransfer) error {
	relay := make(chan model.RawTransfer)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer close(relay)
		done <- src.Run(runCtx, relay)
	}()

	name := src.Name()
	breaker := s.breakers[name]
	for item := range relay {
		if recovered := health.RecordEmit(); recovered {
			s.logger.Info("source recovered", "source", name)
			_ = s.alerter.Send(ctx, alert.Alert{
				Type:     alert.AlertTypeSourceRecovered,
				SourceID: name,
				Title:    "source recovered",
			})
		}
		breaker.RecordSuccess()
		select {
		case out <- item:
		case <-ctx.Done():
			return <-done
		}
	}
	return <-done
}

func (s *Supervisor) probeLoop(ctx context.Context) error {
	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			for name, h := range s.health {
				prev := h.Snapshot().Status
				status := h.Probe(now)
				metrics.SourceHealthStatus.WithLabelValues(name).Set(statusGaugeValue(status))
				if status == StatusUnhealthy && prev != string(StatusUnhealthy) {
					s.logger.Warn("source unhealthy: no emit within window", "source", name)
					_ = s.alerter.Send(ctx, alert.Alert{
						Type:     alert.AlertTypeSourceUnhealthy,
						SourceID: name,
						Title:    "source unhealthy",
						Message:  "no successful emit within the health window",
					})
				}
			}
		}
	}
}

// SourceStatus is the per-source view the CLI stats surface reports.
type SourceStatus struct {
	Health       Snapshot `json:"health"`
	CircuitState string   `json:"circuit_state"`
}

// Statuses returns the current status of every supervised source.
func (s *Supervisor) Statuses() map[string]SourceStatus {
	out := make(map[string]SourceStatus, len(s.sources))
	for name, h := range s.health {
		out[name] = SourceStatus{
			Health:       h.Snapshot(),
			CircuitState: circuitStateName(s.breakers[name].GetState()),
		}
	}
	return out
}

func statusGaugeValue(s Status) float64 {
	switch s {
	case StatusHealthy:
		return 1
	case StatusDegraded:
		return 2
	case StatusUnhealthy:
		return 3
	case StatusInactive:
		return 4
	default:
		return 0
	}
}

func circuitStateName(s circuitbreaker.State) string {
	switch s {
	case circuitbreaker.StateOpen:
		return "open"
	case circuitbreaker.StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
