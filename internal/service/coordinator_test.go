package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/WookyDO/huawei-emma-charger/internal/domain"
)

// mockTransport serves a single-page device catalog and scripted
// register contents shared by all slaves.
type mockTransport struct {
	page       *domain.IdentificationPage
	identErr   error
	identCalls int

	registers map[uint16][]uint16
	failAddrs map[uint16]error
	readCalls int
}

func (m *mockTransport) Connect(ctx context.Context) error { return nil }
func (m *mockTransport) Close() error                      { return nil }

func (m *mockTransport) ReadDeviceIdentification(ctx context.Context, objectID byte) (*domain.IdentificationPage, error) {
	m.identCalls++
	if m.identErr != nil {
		return nil, m.identErr
	}
	return m.page, nil
}

func (m *mockTransport) ReadHoldingRegisters(ctx context.Context, slaveID byte, address, quantity uint16) ([]uint16, error) {
	m.readCalls++
	if err, ok := m.failAddrs[address]; ok {
		return nil, err
	}
	words, ok := m.registers[address]
	if !ok {
		return nil, domain.ErrModbusIllegalAddress
	}
	return words, nil
}

func testCatalog() []domain.RegisterDefinition {
	return []domain.RegisterDefinition{
		{Key: domain.EnergyRegisterKey, Name: "Total energy", Address: 30506, Quantity: 2, Type: domain.ValueTypeUInt32, Scale: 1000, Unit: "kWh"},
		{Key: "charger_temp", Name: "Charger temp.", Address: 30508, Quantity: 2, Type: domain.ValueTypeInt32, Scale: 10, Unit: "°C"},
	}
}

func singleChargerTransport() *mockTransport {
	return &mockTransport{
		page: &domain.IdentificationPage{
			Objects: map[int][]byte{
				domain.RootObjectID: {0x01},
				0x88:                []byte("1=EMMA-A02;5=83;8=CHARGER"),
			},
		},
		registers: map[uint16][]uint16{
			30506: {0x0001, 0x86A0}, // 100.0 kWh
			30508: {0x0000, 0x00FA}, // 25.0 °C
		},
	}
}

func newTestCoordinator(transport Transport) *Coordinator {
	return NewCoordinator(CoordinatorConfig{
		ReadTimeout:     time.Second,
		RediscoverEvery: 10,
	}, transport, testCatalog(), zerolog.Nop(), nil)
}

func TestRunCycleFirstCycleOmitsPower(t *testing.T) {
	transport := singleChargerTransport()
	c := newTestCoordinator(transport)

	results, err := c.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	energy, ok := results["total_energy_83"]
	if !ok {
		t.Fatal("missing total_energy_83 reading")
	}
	if energy.Value != 100.0 {
		t.Errorf("total energy = %v, want 100.0", energy.Value)
	}
	if temp := results["charger_temp_83"]; temp.Value != 25.0 {
		t.Errorf("charger temp = %v, want 25.0", temp.Value)
	}
	if _, ok := results["instant_power_83"]; ok {
		t.Error("first cycle emitted instant_power_83, want omitted")
	}
	if !c.LastSuccess() {
		t.Error("LastSuccess() = false after successful cycle")
	}
}

func TestRunCycleSecondCycleEmitsPower(t *testing.T) {
	transport := singleChargerTransport()
	c := newTestCoordinator(transport)

	if _, err := c.RunCycle(context.Background()); err != nil {
		t.Fatalf("first RunCycle() error = %v", err)
	}
	// Same energy counter: zero delta holds the last power, which is
	// still zero this early in the device's life.
	results, err := c.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("second RunCycle() error = %v", err)
	}
	power, ok := results["instant_power_83"]
	if !ok {
		t.Fatal("second cycle missing instant_power_83")
	}
	if power.Value != 0.0 {
		t.Errorf("instant power = %v, want 0.0", power.Value)
	}
	if power.Unit != "kW" {
		t.Errorf("instant power unit = %q, want kW", power.Unit)
	}
}

func TestRunCycleDiscoveryFailure(t *testing.T) {
	transport := singleChargerTransport()
	transport.identErr = errors.New("gateway unreachable")
	c := newTestCoordinator(transport)

	_, err := c.RunCycle(context.Background())
	if !errors.Is(err, domain.ErrCycleFailed) {
		t.Fatalf("RunCycle() error = %v, want ErrCycleFailed", err)
	}
	if c.LastSuccess() {
		t.Error("LastSuccess() = true after failed cycle")
	}
	if c.LastError() == nil {
		t.Error("LastError() = nil after failed cycle")
	}
	if got := c.Stats().CyclesFailed; got != 1 {
		t.Errorf("CyclesFailed = %d, want 1", got)
	}

	// Recovery clears the error state.
	transport.identErr = nil
	if _, err := c.RunCycle(context.Background()); err != nil {
		t.Fatalf("recovery RunCycle() error = %v", err)
	}
	if c.LastError() != nil {
		t.Errorf("LastError() = %v after recovery, want nil", c.LastError())
	}
}

func TestRunCycleRegisterFailureIsolated(t *testing.T) {
	transport := singleChargerTransport()
	transport.failAddrs = map[uint16]error{30508: domain.ErrModbusDeviceFailure}
	c := newTestCoordinator(transport)

	results, err := c.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if _, ok := results["charger_temp_83"]; ok {
		t.Error("failing register still produced charger_temp_83")
	}
	if _, ok := results["total_energy_83"]; !ok {
		t.Error("healthy register total_energy_83 missing")
	}
	if got := c.Stats().ReadErrors; got != 1 {
		t.Errorf("ReadErrors = %d, want 1", got)
	}
}

func TestRunCycleCachesDiscovery(t *testing.T) {
	transport := singleChargerTransport()
	c := newTestCoordinator(transport)

	for i := 0; i < 3; i++ {
		if _, err := c.RunCycle(context.Background()); err != nil {
			t.Fatalf("RunCycle() %d error = %v", i, err)
		}
	}
	if transport.identCalls != 1 {
		t.Errorf("identification ran %d times over 3 cycles, want 1", transport.identCalls)
	}
}

func TestDerivePower(t *testing.T) {
	c := newTestCoordinator(singleChargerTransport())
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	// First observation only seeds the sample.
	if _, ok := c.derivePower(83, 100.0, base); ok {
		t.Fatal("first observation reported a power value")
	}

	// 0.5 kWh over 30 minutes is 1.0 kW.
	power, ok := c.derivePower(83, 100.5, base.Add(30*time.Minute))
	if !ok || power != 1.0 {
		t.Fatalf("derivePower() = (%v, %v), want (1.0, true)", power, ok)
	}

	// Zero delta holds the last non-zero power.
	power, ok = c.derivePower(83, 100.5, base.Add(60*time.Minute))
	if !ok || power != 1.0 {
		t.Errorf("derivePower() on zero delta = (%v, %v), want (1.0, true)", power, ok)
	}

	// Counter rollover clamps the delta: power is held, never negative.
	power, ok = c.derivePower(83, 0.1, base.Add(90*time.Minute))
	if !ok || power < 0 {
		t.Errorf("derivePower() on rollover = (%v, %v), want non-negative", power, ok)
	}
	if power != 1.0 {
		t.Errorf("derivePower() on rollover = %v, want held value 1.0", power)
	}
}

func TestDerivePowerRounding(t *testing.T) {
	c := newTestCoordinator(singleChargerTransport())
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	c.derivePower(83, 10.0, base)
	// 0.2 kWh over 10 minutes is 1.2 kW.
	power, ok := c.derivePower(83, 10.2, base.Add(10*time.Minute))
	if !ok || power != 1.2 {
		t.Fatalf("derivePower() = (%v, %v), want (1.2, true)", power, ok)
	}

	c.derivePower(84, 10.0, base)
	// 0.1 kWh over 7 minutes rounds to 3 decimals.
	power, ok = c.derivePower(84, 10.1, base.Add(7*time.Minute))
	if !ok || power != 0.857 {
		t.Errorf("derivePower() = (%v, %v), want (0.857, true)", power, ok)
	}
}

func TestDerivePowerClockSkew(t *testing.T) {
	c := newTestCoordinator(singleChargerTransport())
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	c.derivePower(83, 100.0, base)
	if power, ok := c.derivePower(83, 100.5, base.Add(30*time.Minute)); !ok || power != 1.0 {
		t.Fatalf("derivePower() = (%v, %v), want (1.0, true)", power, ok)
	}

	// Clock went backwards: hold the previous value, don't recompute.
	power, ok := c.derivePower(83, 101.0, base.Add(29*time.Minute))
	if !ok || power != 1.0 {
		t.Errorf("derivePower() on clock skew = (%v, %v), want (1.0, true)", power, ok)
	}
}

func TestRunCycleInFlight(t *testing.T) {
	c := newTestCoordinator(singleChargerTransport())
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.RunCycle(context.Background()); !errors.Is(err, domain.ErrCycleInFlight) {
		t.Errorf("RunCycle() error = %v, want ErrCycleInFlight", err)
	}
}
