package domain

import (
	"reflect"
	"testing"
)

func TestParseDeviceDescription(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want map[int]string
	}{
		{
			name: "typical charger record",
			raw:  []byte("1=EMMA-A02;5=83;8=CHARGER"),
			want: map[int]string{1: "EMMA-A02", 5: "83", 8: "CHARGER"},
		},
		{
			name: "trailing nul padding",
			raw:  []byte("5=83;8=CHARGER\x00\x00\x00"),
			want: map[int]string{5: "83", 8: "CHARGER"},
		},
		{
			name: "malformed pair skipped",
			raw:  []byte("garbage;5=83;8=CHARGER"),
			want: map[int]string{5: "83", 8: "CHARGER"},
		},
		{
			name: "non-integer key skipped",
			raw:  []byte("x=1;5=83"),
			want: map[int]string{5: "83"},
		},
		{
			name: "empty value kept",
			raw:  []byte("5=;8=CHARGER"),
			want: map[int]string{5: "", 8: "CHARGER"},
		},
		{
			name: "non-ascii bytes dropped",
			raw:  append([]byte{0xFF, 0xFE}, []byte("8=CHARGER")...),
			want: map[int]string{8: "CHARGER"},
		},
		{
			name: "empty payload",
			raw:  []byte{},
			want: map[int]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDeviceDescription(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseDeviceDescription() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDiscoveredDeviceModel(t *testing.T) {
	dev := DiscoveredDevice{Attributes: map[int]string{1: "EMMA-A02"}}
	if got := dev.Model(); got != "EMMA-A02" {
		t.Errorf("Model() = %q, want %q", got, "EMMA-A02")
	}

	empty := DiscoveredDevice{Attributes: map[int]string{}}
	if got := empty.Model(); got != "" {
		t.Errorf("Model() on missing attribute = %q, want empty", got)
	}
}

func TestResultKey(t *testing.T) {
	if got := ResultKey("total_energy", 83); got != "total_energy_83" {
		t.Errorf("ResultKey() = %q, want %q", got, "total_energy_83")
	}
}
