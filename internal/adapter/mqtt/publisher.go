// Package mqtt publishes cycle readings to an MQTT broker with
// automatic reconnection.
package mqtt

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/WookyDO/huawei-emma-charger/internal/domain"
	"github.com/WookyDO/huawei-emma-charger/internal/metrics"
)

// Publisher handles publishing readings to the MQTT broker.
type Publisher struct {
	config    Config
	client    pahomqtt.Client
	logger    zerolog.Logger
	metrics   *metrics.Registry
	connected atomic.Bool
	stats     *PublisherStats
}

// Config holds MQTT publisher configuration.
type Config struct {
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string
	QoS            byte
	Retain         bool
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
	ReconnectDelay time.Duration
}

// PublisherStats tracks publish counters.
type PublisherStats struct {
	MessagesPublished atomic.Uint64
	MessagesFailed    atomic.Uint64
}

// NewPublisher creates a new MQTT publisher.
func NewPublisher(config Config, logger zerolog.Logger, metricsReg *metrics.Registry) (*Publisher, error) {
	if config.BrokerURL == "" {
		return nil, fmt.Errorf("%w: broker URL is required", domain.ErrInvalidConfig)
	}
	if config.ClientID == "" {
		config.ClientID = "charger-gateway"
	}
	if config.TopicPrefix == "" {
		config.TopicPrefix = "charger"
	}
	if config.KeepAlive == 0 {
		config.KeepAlive = 30 * time.Second
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	if config.PublishTimeout == 0 {
		config.PublishTimeout = 5 * time.Second
	}
	if config.ReconnectDelay == 0 {
		config.ReconnectDelay = 5 * time.Second
	}

	return &Publisher{
		config:  config,
		logger:  logger.With().Str("component", "mqtt-publisher").Logger(),
		metrics: metricsReg,
		stats:   &PublisherStats{},
	}, nil
}

// Connect establishes the broker connection.
func (p *Publisher) Connect(ctx context.Context) error {
	opts := pahomqtt.NewClientOptions().
		AddBroker(p.config.BrokerURL).
		SetClientID(p.config.ClientID).
		SetUsername(p.config.Username).
		SetPassword(p.config.Password).
		SetKeepAlive(p.config.KeepAlive).
		SetConnectTimeout(p.config.ConnectTimeout).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(p.config.ReconnectDelay).
		SetOnConnectHandler(func(pahomqtt.Client) {
			p.connected.Store(true)
			p.logger.Info().Str("broker", p.config.BrokerURL).Msg("Connected to MQTT broker")
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			p.connected.Store(false)
			p.logger.Warn().Err(err).Msg("MQTT connection lost")
		})

	p.client = pahomqtt.NewClient(opts)

	token := p.client.Connect()
	if !token.WaitTimeout(p.config.ConnectTimeout) {
		return fmt.Errorf("%w: connect timed out", domain.ErrMQTTConnectionFailed)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMQTTConnectionFailed, err)
	}
	return nil
}

// Disconnect closes the broker connection.
func (p *Publisher) Disconnect() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
	p.connected.Store(false)
}

// PublishReadings publishes one cycle's readings, one message per
// result key on "<prefix>/<slave>/<key>". A failed publish is counted
// and the remaining readings are still attempted.
func (p *Publisher) PublishReadings(ctx context.Context, readings map[string]domain.Reading) error {
	if p.client == nil || !p.client.IsConnected() {
		return domain.ErrMQTTNotConnected
	}

	var firstErr error
	for key, reading := range readings {
		if err := ctx.Err(); err != nil {
			return err
		}

		payload, err := reading.ToJSON()
		if err != nil {
			p.recordPublish(false)
			p.logger.Warn().Err(err).Str("key", key).Msg("Failed to encode reading")
			continue
		}

		topic := fmt.Sprintf("%s/%d/%s", p.config.TopicPrefix, reading.SlaveID, key)
		token := p.client.Publish(topic, p.config.QoS, p.config.Retain, payload)
		if !token.WaitTimeout(p.config.PublishTimeout) {
			p.recordPublish(false)
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: publish to %s timed out", domain.ErrMQTTPublishFailed, topic)
			}
			continue
		}
		if err := token.Error(); err != nil {
			p.recordPublish(false)
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: %v", domain.ErrMQTTPublishFailed, err)
			}
			continue
		}
		p.recordPublish(true)
	}

	return firstErr
}

func (p *Publisher) recordPublish(success bool) {
	if success {
		p.stats.MessagesPublished.Add(1)
	} else {
		p.stats.MessagesFailed.Add(1)
	}
	if p.metrics != nil {
		p.metrics.RecordMQTTPublish(success)
	}
}

// HealthCheck reports broker connectivity. Satisfies health.Component.
func (p *Publisher) HealthCheck(ctx context.Context) error {
	if p.client == nil || !p.client.IsConnected() {
		return domain.ErrMQTTNotConnected
	}
	return nil
}

// Stats returns publish counters.
func (p *Publisher) Stats() map[string]uint64 {
	return map[string]uint64{
		"messages_published": p.stats.MessagesPublished.Load(),
		"messages_failed":    p.stats.MessagesFailed.Load(),
	}
}
