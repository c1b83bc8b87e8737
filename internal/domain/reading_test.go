package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestReadingToJSON(t *testing.T) {
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	reading := Reading{
		Name:      "Total energy",
		Value:     100.5,
		Unit:      "kWh",
		SlaveID:   83,
		Timestamp: ts,
	}

	data, err := reading.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if payload["v"] != 100.5 {
		t.Errorf("v = %v, want 100.5", payload["v"])
	}
	if payload["u"] != "kWh" {
		t.Errorf("u = %v, want kWh", payload["u"])
	}
	if payload["name"] != "Total energy" {
		t.Errorf("name = %v", payload["name"])
	}
	if int64(payload["ts"].(float64)) != ts.UnixMilli() {
		t.Errorf("ts = %v, want %d", payload["ts"], ts.UnixMilli())
	}
}

func TestReadingToJSONOmitsEmptyUnit(t *testing.T) {
	reading := Reading{Name: "ESN", Value: "EM123", SlaveID: 83, Timestamp: time.Now()}
	data, err := reading.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatal(err)
	}
	if _, ok := payload["u"]; ok {
		t.Error("empty unit was serialized, want omitted")
	}
}
