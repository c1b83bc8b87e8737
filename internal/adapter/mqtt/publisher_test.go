package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/WookyDO/huawei-emma-charger/internal/domain"
)

func TestNewPublisherDefaults(t *testing.T) {
	p, err := NewPublisher(Config{BrokerURL: "tcp://localhost:1883"}, zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	if p.config.ClientID != "charger-gateway" {
		t.Errorf("ClientID = %q, want charger-gateway", p.config.ClientID)
	}
	if p.config.TopicPrefix != "charger" {
		t.Errorf("TopicPrefix = %q, want charger", p.config.TopicPrefix)
	}
	if p.config.PublishTimeout != 5*time.Second {
		t.Errorf("PublishTimeout = %v, want 5s", p.config.PublishTimeout)
	}
}

func TestNewPublisherRequiresBroker(t *testing.T) {
	if _, err := NewPublisher(Config{}, zerolog.Nop(), nil); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("NewPublisher() error = %v, want ErrInvalidConfig", err)
	}
}

func TestPublishReadingsNotConnected(t *testing.T) {
	p, err := NewPublisher(Config{BrokerURL: "tcp://localhost:1883"}, zerolog.Nop(), nil)
	if err != nil {
		t.Fatal(err)
	}
	readings := map[string]domain.Reading{
		"total_energy_83": {Name: "Total energy", Value: 100.5, SlaveID: 83, Timestamp: time.Now()},
	}
	if err := p.PublishReadings(context.Background(), readings); !errors.Is(err, domain.ErrMQTTNotConnected) {
		t.Errorf("PublishReadings() error = %v, want ErrMQTTNotConnected", err)
	}
}
