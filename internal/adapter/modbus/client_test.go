package modbus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/WookyDO/huawei-emma-charger/internal/domain"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(ClientConfig{UnitID: 82}, zerolog.Nop()); err == nil {
		t.Error("NewClient() without host succeeded, want error")
	}
	if _, err := NewClient(ClientConfig{Host: "192.168.1.10"}, zerolog.Nop()); !errors.Is(err, domain.ErrInvalidSlaveID) {
		t.Errorf("NewClient() with zero unit ID error = %v, want ErrInvalidSlaveID", err)
	}
}

func TestNewClientDefaults(t *testing.T) {
	c, err := NewClient(ClientConfig{Host: "192.168.1.10", UnitID: 82}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if c.config.Port != 502 {
		t.Errorf("Port = %d, want 502", c.config.Port)
	}
	if c.config.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", c.config.Timeout)
	}
}

func TestReadBeforeConnect(t *testing.T) {
	c, err := NewClient(ClientConfig{Host: "192.168.1.10", UnitID: 82}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.ReadHoldingRegisters(context.Background(), 83, 30506, 2); !errors.Is(err, domain.ErrConnectionClosed) {
		t.Errorf("ReadHoldingRegisters() error = %v, want ErrConnectionClosed", err)
	}
	if _, err := c.ReadDeviceIdentification(context.Background(), domain.RootObjectID); !errors.Is(err, domain.ErrConnectionClosed) {
		t.Errorf("ReadDeviceIdentification() error = %v, want ErrConnectionClosed", err)
	}
}
