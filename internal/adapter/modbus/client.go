// Package modbus provides the Modbus TCP transport for the charger
// gateway: serialized holding-register reads addressed per sub-device
// and the vendor device-identification primitive (function 0x2B).
package modbus

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goburrow/modbus"
	"github.com/rs/zerolog"

	"github.com/WookyDO/huawei-emma-charger/internal/domain"
)

// Client is a Modbus TCP client for a single gateway endpoint. All
// sub-devices behind the gateway are reached through one connection;
// reads are serialized so only one request is in flight at a time.
type Client struct {
	config    ClientConfig
	handler   *modbus.TCPClientHandler
	client    modbus.Client
	logger    zerolog.Logger
	mu        sync.Mutex
	connected atomic.Bool
	stats     *ClientStats
}

// ClientConfig holds configuration for the gateway connection.
type ClientConfig struct {
	// Host is the gateway's network address
	Host string

	// Port is the Modbus TCP port (default 502)
	Port int

	// UnitID is the slave address used for device identification
	UnitID byte

	// Timeout applies to connect and to each request/response exchange
	Timeout time.Duration

	// IdleTimeout is how long to keep an idle connection open
	IdleTimeout time.Duration
}

// ClientStats tracks transport counters.
type ClientStats struct {
	ReadCount  atomic.Uint64
	ErrorCount atomic.Uint64
}

// NewClient creates a client for the given gateway.
func NewClient(config ClientConfig, logger zerolog.Logger) (*Client, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("gateway host is required")
	}
	if config.Port == 0 {
		config.Port = 502
	}
	if config.UnitID == 0 {
		return nil, domain.ErrInvalidSlaveID
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = 60 * time.Second
	}

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	return &Client{
		config: config,
		logger: logger.With().Str("component", "modbus-client").Str("address", address).Logger(),
		stats:  &ClientStats{},
	}, nil
}

// Connect establishes the TCP connection to the gateway.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected.Load() {
		return nil
	}

	c.logger.Debug().Msg("Connecting to Modbus gateway")

	handler := modbus.NewTCPClientHandler(fmt.Sprintf("%s:%d", c.config.Host, c.config.Port))
	handler.Timeout = c.config.Timeout
	handler.IdleTimeout = c.config.IdleTimeout
	handler.SlaveId = c.config.UnitID

	connectDone := make(chan error, 1)
	go func() {
		connectDone <- handler.Connect()
	}()

	select {
	case err := <-connectDone:
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrConnectFailed, err)
		}
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", domain.ErrConnectionTimeout, ctx.Err())
	}

	c.handler = handler
	c.client = modbus.NewClient(handler)
	c.connected.Store(true)

	c.logger.Info().Msg("Connected to Modbus gateway")
	return nil
}

// Close tears down the gateway connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected.Load() {
		return nil
	}
	if c.handler != nil {
		if err := c.handler.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("Error closing Modbus connection")
		}
	}
	c.connected.Store(false)
	c.handler = nil
	c.client = nil

	c.logger.Debug().Msg("Disconnected from Modbus gateway")
	return nil
}

// IsConnected returns true while the connection is established.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// ReadHoldingRegisters reads quantity registers at address from the
// given sub-device and returns them as 16-bit words. The call holds the
// connection lock for the duration of the exchange.
func (c *Client) ReadHoldingRegisters(ctx context.Context, slaveID byte, address, quantity uint16) ([]uint16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected.Load() || c.client == nil {
		return nil, domain.ErrConnectionClosed
	}

	c.handler.SlaveId = slaveID
	raw, err := c.client.ReadHoldingRegisters(address, quantity)
	if err != nil {
		c.stats.ErrorCount.Add(1)
		return nil, c.translateError(err)
	}
	if len(raw) != int(quantity)*2 {
		c.stats.ErrorCount.Add(1)
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", domain.ErrInvalidLength, quantity*2, len(raw))
	}

	c.stats.ReadCount.Add(1)

	words := make([]uint16, quantity)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(raw[i*2:])
	}
	return words, nil
}

// translateError maps library errors to the domain taxonomy so callers
// can distinguish exception responses from transport failures.
func (c *Client) translateError(err error) error {
	var mbErr *modbus.ModbusError
	if errors.As(err, &mbErr) {
		return fmt.Errorf("%w: %v", domain.ModbusExceptionToError(mbErr.ExceptionCode), err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", domain.ErrConnectionTimeout, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrReadFailed, err)
}

// HealthCheck reports whether the gateway connection is usable.
// Satisfies the health.Component interface.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.connected.Load() {
		return domain.ErrConnectionClosed
	}
	return nil
}

// Stats returns transport counters.
func (c *Client) Stats() map[string]uint64 {
	return map[string]uint64{
		"read_count":  c.stats.ReadCount.Load(),
		"error_count": c.stats.ErrorCount.Load(),
	}
}
