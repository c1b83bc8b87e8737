// Package domain contains core business entities.
package domain

import (
	"strconv"
	"strings"
)

// Vendor device-identification constants. The gateway exposes its
// sub-device list behind object ID 0x87 (function 0x2B, MEI type 0x0E,
// read code 0x03).
const (
	RootObjectID       = 0x87
	IdentificationCode = 0x03
	AttrIDSlaveAddress = 5
	AttrIDDeviceType   = 8
	DeviceTypeCharger  = "CHARGER"
)

// IdentificationPage is one page of a device-identification response.
type IdentificationPage struct {
	// Objects maps object ID to its raw byte payload
	Objects map[int][]byte

	// MoreFollows indicates another page must be requested
	MoreFollows bool

	// NextObjectID is the object ID to request next when MoreFollows is set
	NextObjectID byte
}

// DiscoveredDevice is one charger sub-device found behind the gateway.
// Instances are produced fresh on every discovery pass.
type DiscoveredDevice struct {
	// ObjectID is the identification object the device was parsed from
	ObjectID int

	// Attributes holds the parsed key=value pairs of the description string
	Attributes map[int]string

	// SlaveID is the Modbus sub-device address used for register reads
	SlaveID int
}

// Model returns the device's model attribute, if present.
func (d *DiscoveredDevice) Model() string {
	return d.Attributes[1]
}

// ParseDeviceDescription decodes an identification payload such as
// "1=EMMA-A02;5=83;8=CHARGER" into an attribute map. The payload is
// ASCII with trailing NUL padding; malformed pairs and non-integer keys
// are skipped rather than failing the whole record.
func ParseDeviceDescription(raw []byte) map[int]string {
	desc := strings.TrimRight(asciiString(raw), "\x00")
	attrs := make(map[int]string)
	for _, pair := range strings.Split(desc, ";") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			continue
		}
		attrs[id] = v
	}
	return attrs
}

// asciiString drops non-ASCII bytes, mirroring a lenient ASCII decode.
func asciiString(raw []byte) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, c := range raw {
		if c < 0x80 {
			b.WriteByte(c)
		}
	}
	return b.String()
}
