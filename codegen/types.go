package codegen

// Type represents a type in the IR.
type Type interface {
	typeKind()
	String() string
}

// VoidType is the absence of a value, used for function results only.
type VoidType struct{}

func (VoidType) typeKind()      {}
func (VoidType) String() string { return "void" }

// BoolType represents a boolean.
type BoolType struct{}

func (BoolType) typeKind()      {}
func (BoolType) String() string { return "bool" }

// IntType represents a 32-bit signed integer.
type IntType struct{}

func (IntType) typeKind()      {}
func (IntType) String() string { return "int" }

// FloatType represents a 32-bit float.
type FloatType struct{}

func (FloatType) typeKind()      {}
func (FloatType) String() string { return "float" }

// DoubleType represents a 64-bit float.
type DoubleType struct{}

func (DoubleType) typeKind()      {}
func (DoubleType) String() string { return "double" }

// Float3Type represents a three-component float vector.
type Float3Type struct{}

func (Float3Type) typeKind()      {}
func (Float3Type) String() string { return "float3" }

// Float4Type represents a four-component float vector.
type Float4Type struct{}

func (Float4Type) typeKind()      {}
func (Float4Type) String() string { return "float4" }

// MatrixType represents a 4x4 float matrix.
type MatrixType struct{}

func (MatrixType) typeKind()      {}
func (MatrixType) String() string { return "matrix" }

// ClosureType represents a pointer to a closure tree node.
type ClosureType struct{}

func (ClosureType) typeKind()      {}
func (ClosureType) String() string { return "closure" }

// StructType represents a named aggregate. Struct identity is by name; two
// struct types with the same name are the same type.
type StructType struct {
	Name   string
	Fields []Field
}

func (StructType) typeKind()        {}
func (s StructType) String() string { return s.Name }

// Field is one member of a struct type.
type Field struct {
	Name string
	Type Type
}

// PointerType represents a pointer to storage of the element type. Output
// parameters and alloca results are pointers.
type PointerType struct {
	Elem Type
}

func (PointerType) typeKind()        {}
func (p PointerType) String() string { return p.Elem.String() + "*" }

// Equal reports whether two types are the same type.
func Equal(a, b Type) bool {
	switch at := a.(type) {
	case StructType:
		bt, ok := b.(StructType)
		return ok && at.Name == bt.Name
	case PointerType:
		bt, ok := b.(PointerType)
		return ok && Equal(at.Elem, bt.Elem)
	default:
		return a == b
	}
}

// IsNumeric reports whether the type supports arithmetic.
func IsNumeric(t Type) bool {
	switch t.(type) {
	case IntType, FloatType, DoubleType, Float3Type, Float4Type:
		return true
	default:
		return false
	}
}

// VectorSize returns the component count of a vector type, or zero.
func VectorSize(t Type) int {
	switch t.(type) {
	case Float3Type:
		return 3
	case Float4Type:
		return 4
	default:
		return 0
	}
}

// ZeroValue returns the runtime zero value of a type, in the engine's
// value representation.
func ZeroValue(t Type) any {
	switch tt := t.(type) {
	case BoolType:
		return false
	case IntType:
		return int32(0)
	case FloatType:
		return float32(0)
	case DoubleType:
		return float64(0)
	case Float3Type:
		return [3]float32{}
	case Float4Type:
		return [4]float32{}
	case MatrixType:
		return [16]float32{}
	case ClosureType:
		return (closureRef)(nil)
	case StructType:
		fields := make([]any, len(tt.Fields))
		for i, f := range tt.Fields {
			fields[i] = ZeroValue(f.Type)
		}
		return fields
	case PointerType:
		return (ptrVal)(nil)
	default:
		return nil
	}
}
