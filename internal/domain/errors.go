// Package domain contains core business entities.
package domain

import "errors"

// Connection errors.
var (
	ErrConnectFailed     = errors.New("connection failed")
	ErrConnectionTimeout = errors.New("connection timeout")
	ErrConnectionClosed  = errors.New("connection closed")
	ErrInvalidSlaveID    = errors.New("invalid slave ID")
	ErrCircuitOpen       = errors.New("gateway circuit breaker is open")
)

// Discovery errors. Fatal to the cycle that triggered them.
var (
	ErrDiscoveryFailed   = errors.New("device identification failed")
	ErrMissingRootObject = errors.New("device identification response missing root object")
	ErrTooManyPages      = errors.New("device identification paging exceeded limit")
)

// Read/decode errors. Isolated to the single register block that failed.
var (
	ErrReadFailed       = errors.New("read operation failed")
	ErrInvalidLength    = errors.New("invalid register data length")
	ErrUnknownValueType = errors.New("unknown register value type")
)

// Modbus exception responses.
var (
	ErrModbusIllegalFunction        = errors.New("modbus: illegal function")
	ErrModbusIllegalAddress         = errors.New("modbus: illegal data address")
	ErrModbusIllegalValue           = errors.New("modbus: illegal data value")
	ErrModbusDeviceFailure          = errors.New("modbus: slave device failure")
	ErrModbusAcknowledge            = errors.New("modbus: acknowledge - long operation in progress")
	ErrModbusBusy                   = errors.New("modbus: slave device busy")
	ErrModbusNegativeAck            = errors.New("modbus: negative acknowledge")
	ErrModbusMemoryParityError      = errors.New("modbus: memory parity error")
	ErrModbusGatewayPathUnavailable = errors.New("modbus: gateway path unavailable")
	ErrModbusGatewayTargetFailed    = errors.New("modbus: gateway target device failed to respond")
)

// Cycle and service errors.
var (
	ErrCycleFailed     = errors.New("poll cycle produced no fresh data")
	ErrCycleInFlight   = errors.New("a poll cycle is already running")
	ErrServiceStopped  = errors.New("service has been stopped")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrCatalogEmpty    = errors.New("register catalog is empty")
	ErrDuplicateRegKey = errors.New("duplicate register key in catalog")
)

// MQTT errors.
var (
	ErrMQTTConnectionFailed = errors.New("MQTT connection failed")
	ErrMQTTPublishFailed    = errors.New("MQTT publish failed")
	ErrMQTTNotConnected     = errors.New("MQTT client not connected")
)

// ModbusExceptionToError converts a Modbus exception code to a domain error.
func ModbusExceptionToError(code byte) error {
	switch code {
	case 0x01:
		return ErrModbusIllegalFunction
	case 0x02:
		return ErrModbusIllegalAddress
	case 0x03:
		return ErrModbusIllegalValue
	case 0x04:
		return ErrModbusDeviceFailure
	case 0x05:
		return ErrModbusAcknowledge
	case 0x06:
		return ErrModbusBusy
	case 0x07:
		return ErrModbusNegativeAck
	case 0x08:
		return ErrModbusMemoryParityError
	case 0x0A:
		return ErrModbusGatewayPathUnavailable
	case 0x0B:
		return ErrModbusGatewayTargetFailed
	default:
		return ErrReadFailed
	}
}
