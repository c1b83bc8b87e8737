package modbus

import (
	"context"
	"fmt"

	"github.com/goburrow/modbus"

	"github.com/WookyDO/huawei-emma-charger/internal/domain"
)

// Function 0x2B (Encapsulated Interface Transport), MEI type 0x0E
// (Read Device Identification). goburrow/modbus has no native support
// for this function, so the PDU is built and parsed here and sent
// through the handler's packager/transporter.
const (
	funcReadDeviceIdent = 0x2B
	meiTypeDeviceIdent  = 0x0E
	exceptionBit        = 0x80
)

// ReadDeviceIdentification requests one page of device-identification
// objects starting at objectID and returns the parsed page. Paging
// across multiple calls is the caller's responsibility.
func (c *Client) ReadDeviceIdentification(ctx context.Context, objectID byte) (*domain.IdentificationPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected.Load() || c.handler == nil {
		return nil, domain.ErrConnectionClosed
	}

	// Identification always targets the gateway's own unit ID, not a
	// charger sub-device.
	c.handler.SlaveId = c.config.UnitID

	request := modbus.ProtocolDataUnit{
		FunctionCode: funcReadDeviceIdent,
		Data:         []byte{meiTypeDeviceIdent, domain.IdentificationCode, objectID},
	}

	aduRequest, err := c.handler.Encode(&request)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", domain.ErrDiscoveryFailed, err)
	}
	aduResponse, err := c.handler.Send(aduRequest)
	if err != nil {
		c.stats.ErrorCount.Add(1)
		return nil, fmt.Errorf("%w: %v", domain.ErrDiscoveryFailed, err)
	}
	if err := c.handler.Verify(aduRequest, aduResponse); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDiscoveryFailed, err)
	}
	response, err := c.handler.Decode(aduResponse)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrDiscoveryFailed, err)
	}

	if response.FunctionCode == funcReadDeviceIdent|exceptionBit {
		code := byte(0)
		if len(response.Data) > 0 {
			code = response.Data[0]
		}
		c.stats.ErrorCount.Add(1)
		return nil, fmt.Errorf("%w: %v", domain.ErrDiscoveryFailed, domain.ModbusExceptionToError(code))
	}
	if response.FunctionCode != funcReadDeviceIdent {
		return nil, fmt.Errorf("%w: unexpected function code 0x%02X", domain.ErrDiscoveryFailed, response.FunctionCode)
	}

	page, err := parseIdentificationPage(response.Data)
	if err != nil {
		return nil, err
	}

	c.stats.ReadCount.Add(1)
	c.logger.Debug().
		Int("objects", len(page.Objects)).
		Bool("more_follows", page.MoreFollows).
		Uint8("next_object_id", page.NextObjectID).
		Msg("Device identification page read")

	return page, nil
}

// parseIdentificationPage parses the response PDU data:
// MEI type, read code, conformity, more-follows, next object ID,
// object count, then (id, length, value) per object.
func parseIdentificationPage(data []byte) (*domain.IdentificationPage, error) {
	if len(data) < 6 {
		return nil, fmt.Errorf("%w: short identification response (%d bytes)", domain.ErrDiscoveryFailed, len(data))
	}
	if data[0] != meiTypeDeviceIdent {
		return nil, fmt.Errorf("%w: unexpected MEI type 0x%02X", domain.ErrDiscoveryFailed, data[0])
	}

	page := &domain.IdentificationPage{
		Objects:      make(map[int][]byte),
		MoreFollows:  data[3] != 0x00,
		NextObjectID: data[4],
	}
	count := int(data[5])

	offset := 6
	for i := 0; i < count; i++ {
		if offset+2 > len(data) {
			return nil, fmt.Errorf("%w: truncated object header at offset %d", domain.ErrDiscoveryFailed, offset)
		}
		id := int(data[offset])
		length := int(data[offset+1])
		offset += 2
		if offset+length > len(data) {
			return nil, fmt.Errorf("%w: truncated object 0x%02X payload", domain.ErrDiscoveryFailed, id)
		}
		value := make([]byte, length)
		copy(value, data[offset:offset+length])
		page.Objects[id] = value
		offset += length
	}

	return page, nil
}
