package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/WookyDO/huawei-emma-charger/internal/adapter/modbus"
	"github.com/WookyDO/huawei-emma-charger/internal/domain"
	"github.com/WookyDO/huawei-emma-charger/internal/metrics"
)

// Transport is the Modbus collaborator the coordinator polls through.
type Transport interface {
	IdentificationPager
	Connect(ctx context.Context) error
	ReadHoldingRegisters(ctx context.Context, slaveID byte, address, quantity uint16) ([]uint16, error)
	Close() error
}

// Coordinator runs the poll cycle state machine: discover chargers,
// read the register catalog per charger, decode, derive power. One
// cycle runs at a time; a second caller gets ErrCycleInFlight.
type Coordinator struct {
	config    CoordinatorConfig
	transport Transport
	catalog   []domain.RegisterDefinition
	logger    zerolog.Logger
	metrics   *metrics.Registry
	breaker   *gobreaker.CircuitBreaker

	mu         sync.Mutex
	devices    []domain.DiscoveredDevice
	energy     map[int]energySample
	cycleCount uint64

	lastSuccess atomic.Bool
	lastErrMu   sync.RWMutex
	lastErr     error

	stats *CycleStats
}

// CoordinatorConfig holds configuration for the coordinator.
type CoordinatorConfig struct {
	// ReadTimeout bounds each register read and identification page
	ReadTimeout time.Duration

	// RediscoverEvery re-runs discovery every Nth cycle; between passes
	// the cached device list is used. 1 rediscovers every cycle.
	RediscoverEvery int

	// MaxPages bounds the identification paging loop
	MaxPages int
}

// CycleStats tracks coordinator counters.
type CycleStats struct {
	CyclesTotal   atomic.Uint64
	CyclesFailed  atomic.Uint64
	ReadingsTotal atomic.Uint64
	ReadErrors    atomic.Uint64
}

// energySample is the per-slave state that persists across cycles to
// derive instantaneous power from the cumulative energy counter.
type energySample struct {
	energy    float64
	at        time.Time
	lastPower float64
}

// NewCoordinator creates a coordinator over the given transport and
// register catalog. The catalog must already be validated.
func NewCoordinator(
	config CoordinatorConfig,
	transport Transport,
	catalog []domain.RegisterDefinition,
	logger zerolog.Logger,
	metricsReg *metrics.Registry,
) *Coordinator {
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 5 * time.Second
	}
	if config.RediscoverEvery <= 0 {
		config.RediscoverEvery = 10
	}
	if config.MaxPages <= 0 {
		config.MaxPages = DefaultMaxPages
	}

	c := &Coordinator{
		config:    config,
		transport: transport,
		catalog:   catalog,
		logger:    logger.With().Str("component", "coordinator").Logger(),
		metrics:   metricsReg,
		energy:    make(map[int]energySample),
		stats:     &CycleStats{},
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "charger-gateway",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Info().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Gateway circuit breaker state changed")
		},
	})
	return c
}

// RunCycle performs one full refresh: discover (or reuse the cached
// device list), read every catalog register for every charger, derive
// power. Per-register failures are isolated; only discovery failures
// fail the cycle.
func (c *Coordinator) RunCycle(ctx context.Context) (map[string]domain.Reading, error) {
	if !c.mu.TryLock() {
		return nil, domain.ErrCycleInFlight
	}
	defer c.mu.Unlock()

	start := time.Now()
	c.stats.CyclesTotal.Add(1)
	c.cycleCount++

	devices, err := c.ensureDevices(ctx)
	if err != nil {
		c.failCycle(err)
		return nil, fmt.Errorf("%w: %v", domain.ErrCycleFailed, err)
	}

	results := make(map[string]domain.Reading, len(devices)*(len(c.catalog)+1))
	for _, dev := range devices {
		energy, haveEnergy := c.readDevice(ctx, dev, results)
		if haveEnergy {
			if power, ok := c.derivePower(dev.SlaveID, energy, time.Now()); ok {
				results[domain.ResultKey(domain.InstantPowerKey, dev.SlaveID)] = domain.Reading{
					Name:      "Instant power",
					Value:     power,
					Unit:      "kW",
					SlaveID:   dev.SlaveID,
					Timestamp: time.Now(),
				}
				if c.metrics != nil {
					c.metrics.SetInstantPower(dev.SlaveID, power)
				}
			}
		}
	}

	c.lastSuccess.Store(true)
	c.setLastError(nil)
	c.stats.ReadingsTotal.Add(uint64(len(results)))

	duration := time.Since(start)
	if c.metrics != nil {
		c.metrics.RecordCycleSuccess(duration.Seconds(), len(results))
	}
	c.logger.Debug().
		Int("chargers", len(devices)).
		Int("readings", len(results)).
		Dur("duration", duration).
		Msg("Poll cycle completed")

	return results, nil
}

// ensureDevices returns the charger list for this cycle, re-running
// discovery on the first cycle, every Nth cycle, and whenever the cache
// was invalidated by a previous failure.
func (c *Coordinator) ensureDevices(ctx context.Context) ([]domain.DiscoveredDevice, error) {
	due := c.devices == nil || (c.cycleCount-1)%uint64(c.config.RediscoverEvery) == 0
	if !due {
		return c.devices, nil
	}

	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.discover(ctx)
	})
	if c.metrics != nil {
		c.metrics.RecordDiscovery(err == nil, time.Since(start).Seconds())
	}
	if err != nil {
		// Discovery failure invalidates the cache so the next cycle
		// retries instead of polling a stale device list.
		c.devices = nil
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, domain.ErrCircuitOpen
		}
		return nil, err
	}

	c.devices = result.([]domain.DiscoveredDevice)
	return c.devices, nil
}

// discover runs the identification exchange and classification.
func (c *Coordinator) discover(ctx context.Context) ([]domain.DiscoveredDevice, error) {
	connectCtx, cancel := context.WithTimeout(ctx, c.config.ReadTimeout)
	defer cancel()
	if err := c.transport.Connect(connectCtx); err != nil {
		return nil, err
	}

	catalog, err := ReadDeviceCatalog(ctx, c.transport, c.config.MaxPages)
	if err != nil {
		return nil, err
	}

	reported := ReportedDeviceCount(catalog)
	chargers := Classify(catalog, c.logger)

	if c.metrics != nil {
		c.metrics.UpdateDeviceCounts(len(chargers), reported)
	}
	c.logger.Info().
		Int("reported_devices", reported).
		Int("chargers", len(chargers)).
		Msg("Discovery pass completed")

	return chargers, nil
}

// readDevice reads and decodes every catalog register for one charger
// into results. Failures are isolated per register: the key is omitted
// and reading continues. Returns the decoded total energy, if any.
func (c *Coordinator) readDevice(ctx context.Context, dev domain.DiscoveredDevice, results map[string]domain.Reading) (energy float64, haveEnergy bool) {
	for i := range c.catalog {
		def := &c.catalog[i]

		readCtx, cancel := context.WithTimeout(ctx, c.config.ReadTimeout)
		words, err := c.transport.ReadHoldingRegisters(readCtx, byte(dev.SlaveID), def.Address, def.Quantity)
		cancel()
		if err != nil {
			c.recordReadError(def, dev.SlaveID, err)
			continue
		}

		value, err := modbus.Decode(words, def.Type, def.Scale)
		if err != nil {
			c.recordReadError(def, dev.SlaveID, err)
			continue
		}

		results[domain.ResultKey(def.Key, dev.SlaveID)] = domain.Reading{
			Name:      def.Name,
			Value:     value,
			Unit:      def.Unit,
			SlaveID:   dev.SlaveID,
			Timestamp: time.Now(),
		}

		if def.Key == domain.EnergyRegisterKey {
			if kwh, ok := value.(float64); ok {
				energy, haveEnergy = kwh, true
			}
		}
	}
	return energy, haveEnergy
}

func (c *Coordinator) recordReadError(def *domain.RegisterDefinition, slaveID int, err error) {
	c.stats.ReadErrors.Add(1)
	if c.metrics != nil {
		c.metrics.RecordReadError(def.Key, slaveID)
	}
	c.logger.Warn().
		Err(err).
		Str("register", def.Key).
		Int("slave_id", slaveID).
		Msg("Register read failed, omitting from cycle")
}

func (c *Coordinator) failCycle(err error) {
	c.stats.CyclesFailed.Add(1)
	c.lastSuccess.Store(false)
	c.setLastError(err)
	if c.metrics != nil {
		c.metrics.RecordCycleError()
	}
	if errors.Is(err, domain.ErrCircuitOpen) {
		// Endpoint already known unhealthy; don't spam error logs.
		c.logger.Debug().Err(err).Msg("Poll cycle skipped: circuit breaker open")
		return
	}
	c.logger.Error().Err(err).Msg("Poll cycle failed")
}

func (c *Coordinator) setLastError(err error) {
	c.lastErrMu.Lock()
	c.lastErr = err
	c.lastErrMu.Unlock()
}

// LastSuccess reports whether the most recent cycle completed.
func (c *Coordinator) LastSuccess() bool {
	return c.lastSuccess.Load()
}

// LastError returns the most recent cycle error, nil after a success.
func (c *Coordinator) LastError() error {
	c.lastErrMu.RLock()
	defer c.lastErrMu.RUnlock()
	return c.lastErr
}

// HealthCheck reports the outcome of the most recent cycle. Before the
// first cycle completes it reports healthy.
func (c *Coordinator) HealthCheck(ctx context.Context) error {
	if c.stats.CyclesTotal.Load() == 0 {
		return nil
	}
	if !c.lastSuccess.Load() {
		if err := c.LastError(); err != nil {
			return err
		}
		return domain.ErrCycleFailed
	}
	return nil
}

// StatsSnapshot holds a point-in-time snapshot of coordinator counters.
type StatsSnapshot struct {
	CyclesTotal   uint64
	CyclesFailed  uint64
	ReadingsTotal uint64
	ReadErrors    uint64
}

// Stats returns a snapshot of the coordinator statistics.
func (c *Coordinator) Stats() StatsSnapshot {
	return StatsSnapshot{
		CyclesTotal:   c.stats.CyclesTotal.Load(),
		CyclesFailed:  c.stats.CyclesFailed.Load(),
		ReadingsTotal: c.stats.ReadingsTotal.Load(),
		ReadErrors:    c.stats.ReadErrors.Load(),
	}
}
