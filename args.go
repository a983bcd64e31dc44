package tsl

import (
	"sync"

	"github.com/gogpu/tsl/codegen"
	"github.com/gogpu/tsl/syntax"
)

// ArgType enumerates the types a shader argument can carry.
type ArgType uint8

const (
	ArgInt ArgType = iota
	ArgFloat
	ArgDouble
	ArgBool
	ArgFloat3
	ArgFloat4
	ArgMatrix
	ArgClosure
)

// String returns the source-language name of the type.
func (t ArgType) String() string {
	switch t {
	case ArgInt:
		return "int"
	case ArgFloat:
		return "float"
	case ArgDouble:
		return "double"
	case ArgBool:
		return "bool"
	case ArgFloat3:
		return "float3"
	case ArgFloat4:
		return "float4"
	case ArgMatrix:
		return "matrix"
	case ArgClosure:
		return "closure"
	default:
		return "unknown"
	}
}

// ShaderArgument describes one parameter of a shader entry point.
type ShaderArgument struct {
	Name   string
	Type   ArgType
	Output bool
}

// ShaderValue is a typed constant used to initialize shader inputs.
type ShaderValue struct {
	typ ArgType
	v   any
}

func IntVal(v int32) ShaderValue        { return ShaderValue{typ: ArgInt, v: v} }
func FloatVal(v float32) ShaderValue    { return ShaderValue{typ: ArgFloat, v: v} }
func DoubleVal(v float64) ShaderValue   { return ShaderValue{typ: ArgDouble, v: v} }
func BoolVal(v bool) ShaderValue        { return ShaderValue{typ: ArgBool, v: v} }
func Float3Val(v [3]float32) ShaderValue { return ShaderValue{typ: ArgFloat3, v: v} }
func Float4Val(v [4]float32) ShaderValue { return ShaderValue{typ: ArgFloat4, v: v} }

// Type returns the type the value carries.
func (v ShaderValue) Type() ArgType { return v.typ }

// argTypeOf maps a parsed type to an argument type. Struct and void
// types are not valid argument types.
func argTypeOf(t syntax.DataType) (ArgType, bool) {
	switch t.Kind {
	case syntax.TypeInt:
		return ArgInt, true
	case syntax.TypeFloat:
		return ArgFloat, true
	case syntax.TypeDouble:
		return ArgDouble, true
	case syntax.TypeBool:
		return ArgBool, true
	case syntax.TypeFloat3:
		return ArgFloat3, true
	case syntax.TypeFloat4:
		return ArgFloat4, true
	case syntax.TypeMatrix:
		return ArgMatrix, true
	case syntax.TypeClosure:
		return ArgClosure, true
	default:
		return 0, false
	}
}

// backendType returns the code generator's type for an argument type.
func (t ArgType) backendType() codegen.Type {
	switch t {
	case ArgInt:
		return codegen.IntType{}
	case ArgFloat:
		return codegen.FloatType{}
	case ArgDouble:
		return codegen.DoubleType{}
	case ArgBool:
		return codegen.BoolType{}
	case ArgFloat3:
		return codegen.Float3Type{}
	case ArgFloat4:
		return codegen.Float4Type{}
	case ArgMatrix:
		return codegen.MatrixType{}
	case ArgClosure:
		return codegen.ClosureType{}
	default:
		return codegen.VoidType{}
	}
}

// ShaderGlobals carries named values readable through global_value
// inside shaders. Pass it as the trailing argument of a resolved shader
// function. Safe for concurrent use.
type ShaderGlobals struct {
	mu   sync.RWMutex
	vals map[string]any
}

// NewShaderGlobals returns an empty global state.
func NewShaderGlobals() *ShaderGlobals {
	return &ShaderGlobals{vals: make(map[string]any)}
}

// Set stores a value under a name, replacing any previous value.
func (g *ShaderGlobals) Set(name string, v any) {
	g.mu.Lock()
	g.vals[name] = v
	g.mu.Unlock()
}

// GlobalValue returns the value stored under a name.
func (g *ShaderGlobals) GlobalValue(name string) (any, bool) {
	g.mu.RLock()
	v, ok := g.vals[name]
	g.mu.RUnlock()
	return v, ok
}
