// Package domain contains core business entities.
package domain

import "fmt"

// ValueType describes how a register block is decoded.
type ValueType string

const (
	ValueTypeString ValueType = "string"
	ValueTypeUInt32 ValueType = "uint32"
	ValueTypeInt32  ValueType = "int32"
)

// RegisterDefinition describes one holding-register block to poll from a
// charger. Definitions are immutable after process start; the catalog is
// shared read-only across all poll cycles.
type RegisterDefinition struct {
	// Key is the unique identifier used to derive result-map keys
	Key string `json:"key" yaml:"key"`

	// Name is a human-readable name for the reading
	Name string `json:"name" yaml:"name"`

	// Address is the holding-register start offset
	Address uint16 `json:"address" yaml:"address"`

	// Quantity is the number of 16-bit registers to read
	Quantity uint16 `json:"quantity" yaml:"quantity"`

	// Type selects the decoder for the raw words
	Type ValueType `json:"type" yaml:"type"`

	// Scale divides the raw 32-bit value to get the engineering value.
	// Ignored for strings.
	Scale float64 `json:"scale,omitempty" yaml:"scale,omitempty"`

	// Unit is the engineering unit (e.g. "kWh", "V")
	Unit string `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// Validate checks a single register definition.
func (r *RegisterDefinition) Validate() error {
	if r.Key == "" {
		return fmt.Errorf("register key is required")
	}
	if r.Name == "" {
		return fmt.Errorf("register name is required for %s", r.Key)
	}
	if r.Quantity == 0 {
		return fmt.Errorf("register quantity must be positive for %s", r.Key)
	}
	switch r.Type {
	case ValueTypeUInt32, ValueTypeInt32:
		if r.Quantity != 2 {
			return fmt.Errorf("register %s: 32-bit values need exactly 2 registers, got %d", r.Key, r.Quantity)
		}
	case ValueTypeString:
	default:
		return fmt.Errorf("register %s: %w: %q", r.Key, ErrUnknownValueType, r.Type)
	}
	if r.Scale == 0 {
		r.Scale = 1
	}
	if r.Scale < 1 {
		return fmt.Errorf("register %s: scale must be >= 1, got %v", r.Key, r.Scale)
	}
	return nil
}

// EnergyRegisterKey is the catalog key whose readings feed the
// instantaneous-power derivation.
const EnergyRegisterKey = "total_energy"

// DefaultCatalog returns the built-in register catalog for EMMA charger
// sub-devices. Order is fixed: result-map keys are derived from catalog
// iteration order, which must be identical every cycle.
func DefaultCatalog() []RegisterDefinition {
	return []RegisterDefinition{
		{Key: "offering_name", Name: "Offering name", Address: 30000, Quantity: 15, Type: ValueTypeString, Scale: 1},
		{Key: "esn", Name: "ESN", Address: 30015, Quantity: 16, Type: ValueTypeString, Scale: 1},
		{Key: "software_version", Name: "Software version", Address: 30031, Quantity: 16, Type: ValueTypeString, Scale: 1},
		{Key: "rated_power", Name: "Rated power", Address: 30076, Quantity: 2, Type: ValueTypeUInt32, Scale: 10, Unit: "kW"},
		{Key: "charger_model", Name: "Charger model", Address: 30078, Quantity: 14, Type: ValueTypeString, Scale: 1},
		{Key: "bluetooth_name", Name: "Bluetooth name", Address: 30094, Quantity: 16, Type: ValueTypeString, Scale: 1},
		{Key: "phase_a_voltage", Name: "Phase A voltage", Address: 30500, Quantity: 2, Type: ValueTypeUInt32, Scale: 10, Unit: "V"},
		{Key: "phase_b_voltage", Name: "Phase B voltage", Address: 30502, Quantity: 2, Type: ValueTypeUInt32, Scale: 10, Unit: "V"},
		{Key: "phase_c_voltage", Name: "Phase C voltage", Address: 30504, Quantity: 2, Type: ValueTypeUInt32, Scale: 10, Unit: "V"},
		{Key: EnergyRegisterKey, Name: "Total energy", Address: 30506, Quantity: 2, Type: ValueTypeUInt32, Scale: 1000, Unit: "kWh"},
		{Key: "charger_temp", Name: "Charger temp.", Address: 30508, Quantity: 2, Type: ValueTypeInt32, Scale: 10, Unit: "°C"},
	}
}

// ValidateCatalog validates a full catalog: every definition must be
// valid and keys must be unique.
func ValidateCatalog(catalog []RegisterDefinition) error {
	if len(catalog) == 0 {
		return ErrCatalogEmpty
	}
	seen := make(map[string]struct{}, len(catalog))
	for i := range catalog {
		if err := catalog[i].Validate(); err != nil {
			return err
		}
		if _, dup := seen[catalog[i].Key]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateRegKey, catalog[i].Key)
		}
		seen[catalog[i].Key] = struct{}{}
	}
	return nil
}
