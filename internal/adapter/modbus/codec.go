package modbus

import (
	"fmt"
	"strings"

	"github.com/WookyDO/huawei-emma-charger/internal/domain"
)

// Decode converts raw 16-bit register words into the typed value a
// register definition declares. Strings never fail; numeric types
// require exactly two words.
func Decode(words []uint16, valueType domain.ValueType, scale float64) (interface{}, error) {
	switch valueType {
	case domain.ValueTypeString:
		return DecodeString(words), nil
	case domain.ValueTypeUInt32:
		raw, err := combineWords(words)
		if err != nil {
			return nil, err
		}
		return float64(raw) / scale, nil
	case domain.ValueTypeInt32:
		raw, err := combineWords(words)
		if err != nil {
			return nil, err
		}
		return float64(int32(raw)) / scale, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownValueType, valueType)
	}
}

// DecodeString concatenates the words big-endian, drops non-ASCII
// bytes, and strips trailing NUL padding. The result may be empty.
func DecodeString(words []uint16) string {
	var b strings.Builder
	b.Grow(len(words) * 2)
	for _, w := range words {
		hi, lo := byte(w>>8), byte(w)
		if hi < 0x80 {
			b.WriteByte(hi)
		}
		if lo < 0x80 {
			b.WriteByte(lo)
		}
	}
	return strings.TrimRight(b.String(), "\x00")
}

// combineWords packs exactly two registers into a 32-bit value,
// word0 high.
func combineWords(words []uint16) (uint32, error) {
	if len(words) != 2 {
		return 0, fmt.Errorf("%w: need 2 registers for 32-bit value, got %d", domain.ErrInvalidLength, len(words))
	}
	return uint32(words[0])<<16 | uint32(words[1]), nil
}
