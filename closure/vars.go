package closure

import (
	"encoding/binary"
	"fmt"
	"math"
)

// VarType is the type of a single closure payload field.
type VarType uint8

const (
	VarInt VarType = iota
	VarFloat
	VarDouble
	VarBool
	VarFloat3
	VarFloat4
	VarMatrix
)

// Size returns the encoded size of the field type in bytes.
func (t VarType) Size() int {
	switch t {
	case VarInt, VarFloat, VarBool:
		return 4
	case VarDouble:
		return 8
	case VarFloat3:
		return 12
	case VarFloat4:
		return 16
	case VarMatrix:
		return 64
	default:
		return 0
	}
}

// Alignment returns the required alignment of the field type. Vector and
// matrix fields align on their scalar size, so the payload layout has no
// implicit padding beyond what the offsets document.
func (t VarType) Alignment() int {
	if t == VarDouble {
		return 8
	}
	return 4
}

// String returns the source-language name of the field type.
func (t VarType) String() string {
	switch t {
	case VarInt:
		return "int"
	case VarFloat:
		return "float"
	case VarDouble:
		return "double"
	case VarBool:
		return "bool"
	case VarFloat3:
		return "float3"
	case VarFloat4:
		return "float4"
	case VarMatrix:
		return "matrix"
	default:
		return "unknown"
	}
}

// Var describes one field of a registered closure's payload.
type Var struct {
	Name string
	Type VarType
}

// FieldOffsets computes the payload offset of every field and the total
// payload size. Fields are laid out in declaration order with natural
// alignment; the total size is rounded up to the largest field alignment.
func FieldOffsets(vars []Var) (offsets []int, size int) {
	offsets = make([]int, len(vars))
	maxAlign := 1
	for i, v := range vars {
		align := v.Type.Alignment()
		if align > maxAlign {
			maxAlign = align
		}
		if rem := size % align; rem != 0 {
			size += align - rem
		}
		offsets[i] = size
		size += v.Type.Size()
	}
	if rem := size % maxAlign; rem != 0 {
		size += maxAlign - rem
	}
	return offsets, size
}

// EncodePayload writes field values into a fresh payload buffer per the
// declared field layout. Values must match the field types: int32, float32,
// float64, bool, [3]float32, [4]float32 or [16]float32.
func EncodePayload(vars []Var, values []any) ([]byte, error) {
	if len(values) != len(vars) {
		return nil, fmt.Errorf("closure: payload expects %d values, got %d", len(vars), len(values))
	}
	offsets, size := FieldOffsets(vars)
	payload := make([]byte, size)
	for i, v := range vars {
		if err := encodeField(payload[offsets[i]:], v.Type, values[i]); err != nil {
			return nil, fmt.Errorf("closure: field %q: %w", v.Name, err)
		}
	}
	return payload, nil
}

// DecodePayload reads field values back from a payload buffer.
func DecodePayload(vars []Var, payload []byte) ([]any, error) {
	offsets, size := FieldOffsets(vars)
	if len(payload) < size {
		return nil, fmt.Errorf("closure: payload too short: %d bytes, layout needs %d", len(payload), size)
	}
	values := make([]any, len(vars))
	for i, v := range vars {
		values[i] = decodeField(payload[offsets[i]:], v.Type)
	}
	return values, nil
}

func encodeField(dst []byte, t VarType, value any) error {
	switch t {
	case VarInt:
		v, ok := value.(int32)
		if !ok {
			return fmt.Errorf("expected int32, got %T", value)
		}
		binary.LittleEndian.PutUint32(dst, uint32(v))
	case VarFloat:
		v, ok := value.(float32)
		if !ok {
			return fmt.Errorf("expected float32, got %T", value)
		}
		binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
	case VarDouble:
		v, ok := value.(float64)
		if !ok {
			return fmt.Errorf("expected float64, got %T", value)
		}
		binary.LittleEndian.PutUint64(dst, math.Float64bits(v))
	case VarBool:
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", value)
		}
		var bits uint32
		if v {
			bits = 1
		}
		binary.LittleEndian.PutUint32(dst, bits)
	case VarFloat3:
		v, ok := value.([3]float32)
		if !ok {
			return fmt.Errorf("expected [3]float32, got %T", value)
		}
		for i, f := range v {
			binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(f))
		}
	case VarFloat4:
		v, ok := value.([4]float32)
		if !ok {
			return fmt.Errorf("expected [4]float32, got %T", value)
		}
		for i, f := range v {
			binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(f))
		}
	case VarMatrix:
		v, ok := value.([16]float32)
		if !ok {
			return fmt.Errorf("expected [16]float32, got %T", value)
		}
		for i, f := range v {
			binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(f))
		}
	default:
		return fmt.Errorf("unsupported field type %v", t)
	}
	return nil
}

func decodeField(src []byte, t VarType) any {
	switch t {
	case VarInt:
		return int32(binary.LittleEndian.Uint32(src))
	case VarFloat:
		return math.Float32frombits(binary.LittleEndian.Uint32(src))
	case VarDouble:
		return math.Float64frombits(binary.LittleEndian.Uint64(src))
	case VarBool:
		return binary.LittleEndian.Uint32(src) != 0
	case VarFloat3:
		var v [3]float32
		for i := range v {
			v[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
		}
		return v
	case VarFloat4:
		var v [4]float32
		for i := range v {
			v[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
		}
		return v
	case VarMatrix:
		var v [16]float32
		for i := range v {
			v[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
		}
		return v
	default:
		return nil
	}
}
