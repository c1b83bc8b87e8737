// Package domain contains core business entities.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// InstantPowerKey is the derived-register key for instantaneous power.
const InstantPowerKey = "instant_power"

// Reading is one decoded register value (or derived value) from one
// charger, produced once per cycle and consumed immediately.
type Reading struct {
	// Name is the human-readable register name
	Name string `json:"name"`

	// Value is the decoded value: string for string registers,
	// float64 for numeric ones
	Value interface{} `json:"v"`

	// Unit is the engineering unit, empty for strings
	Unit string `json:"u,omitempty"`

	// SlaveID is the sub-device the value was read from
	SlaveID int `json:"slave_id"`

	// Timestamp is when the value was read
	Timestamp time.Time `json:"ts"`
}

// ResultKey derives the result-map key for a register on a given slave,
// e.g. "total_energy_83".
func ResultKey(registerKey string, slaveID int) string {
	return fmt.Sprintf("%s_%d", registerKey, slaveID)
}

// MQTTPayload is the compact wire format for publishing a reading.
type MQTTPayload struct {
	Value interface{} `json:"v"`
	Unit  string      `json:"u,omitempty"`
	Name  string      `json:"name"`
	TS    int64       `json:"ts"`
}

// ToJSON serializes the reading to its MQTT payload.
func (r *Reading) ToJSON() ([]byte, error) {
	return json.Marshal(MQTTPayload{
		Value: r.Value,
		Unit:  r.Unit,
		Name:  r.Name,
		TS:    r.Timestamp.UnixMilli(),
	})
}
