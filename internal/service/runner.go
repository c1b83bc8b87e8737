package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/WookyDO/huawei-emma-charger/internal/domain"
)

// Publisher receives one cycle's worth of readings.
type Publisher interface {
	PublishReadings(ctx context.Context, readings map[string]domain.Reading) error
}

// Runner drives the coordinator on a fixed interval and hands results
// to the publisher. A failed cycle publishes nothing: downstream keeps
// the last known values.
type Runner struct {
	coordinator *Coordinator
	publisher   Publisher
	interval    time.Duration
	logger      zerolog.Logger

	started atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunner creates a runner polling at the given interval.
func NewRunner(coordinator *Coordinator, publisher Publisher, interval time.Duration, logger zerolog.Logger) *Runner {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Runner{
		coordinator: coordinator,
		publisher:   publisher,
		interval:    interval,
		logger:      logger.With().Str("component", "poll-runner").Logger(),
	}
}

// Start begins the polling loop. The first cycle runs immediately.
func (r *Runner) Start(ctx context.Context) error {
	if r.started.Swap(true) {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.logger.Info().Dur("interval", r.interval).Msg("Starting poll loop")

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.runOnce(runCtx)
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				r.runOnce(runCtx)
			}
		}
	}()

	return nil
}

// Stop cancels the loop and waits for an in-flight cycle to finish or
// the given context to expire.
func (r *Runner) Stop(ctx context.Context) error {
	if !r.started.Swap(false) {
		return nil
	}
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info().Msg("Poll loop stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn().Msg("Timeout waiting for poll loop to stop")
		return ctx.Err()
	}
}

func (r *Runner) runOnce(ctx context.Context) {
	readings, err := r.coordinator.RunCycle(ctx)
	if err != nil {
		// RunCycle already logged the failure; previously published
		// values stay in place until the next successful cycle.
		return
	}
	if len(readings) == 0 {
		return
	}
	if r.publisher == nil {
		return
	}
	if err := r.publisher.PublishReadings(ctx, readings); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Warn().Err(err).Int("readings", len(readings)).Msg("Failed to publish cycle readings")
	}
}
