package codegen

import (
	"fmt"
	"math"

	"github.com/gogpu/tsl/closure"
)

// closureRef is the runtime representation of a closure value.
type closureRef = closure.TreeNode

// GlobalState supplies the fields readable through global_value inside a
// shader. A nil state resolves every field to its zero value.
type GlobalState interface {
	GlobalValue(name string) (any, bool)
}

// NativeFunction is a callable produced by an ExecutionEngine for a shader
// entry point. Input parameters are passed by value; output parameters as
// typed Go pointers, written on return. Functions taking global state
// expect it as the trailing argument.
type NativeFunction func(args ...any)

// ptrVal is the runtime representation of a pointer value.
type ptrVal interface {
	load() any
	store(v any)
}

// cellPtr points at a storage cell. Struct values are []any, so field
// pointers into them alias the shared backing array.
type cellPtr struct {
	p *any
}

func (c cellPtr) load() any   { return *c.p }
func (c cellPtr) store(v any) { *c.p = v }

// vecPtr addresses one component of a vector or matrix held in a cell.
type vecPtr struct {
	base  *any
	index int
}

func (v vecPtr) load() any {
	switch a := (*v.base).(type) {
	case [3]float32:
		return a[v.index]
	case [4]float32:
		return a[v.index]
	case [16]float32:
		return a[v.index]
	default:
		return float32(0)
	}
}

func (v vecPtr) store(val any) {
	f := toFloat32(val)
	switch a := (*v.base).(type) {
	case [3]float32:
		a[v.index] = f
		*v.base = a
	case [4]float32:
		a[v.index] = f
		*v.base = a
	case [16]float32:
		a[v.index] = f
		*v.base = a
	}
}

// linkedModule is a module admitted to an engine, with its own function
// table and global storage.
type linkedModule struct {
	mod     *Module
	funcs   map[string]*Function
	globals map[string]*any
}

// ExecutionEngine links modules and produces native callables for their
// functions. Call resolution is scoped: a call is looked up in the
// caller's own module first, then in the other linked modules in the
// order they were added.
type ExecutionEngine struct {
	modules []*linkedModule
}

// NewExecutionEngine returns an engine with no modules linked.
func NewExecutionEngine() *ExecutionEngine {
	return &ExecutionEngine{}
}

// AddModule links a module into the engine. The engine takes ownership
// of the module; callers that reuse a module elsewhere should hand the
// engine a Clone.
func (e *ExecutionEngine) AddModule(m *Module) {
	lm := &linkedModule{
		mod:     m,
		funcs:   make(map[string]*Function, len(m.Functions)),
		globals: make(map[string]*any, len(m.Globals)),
	}
	for _, fn := range m.Functions {
		lm.funcs[fn.Name] = fn
	}
	for _, g := range m.Globals {
		cell := new(any)
		if g.Init != nil {
			*cell = g.Init
		} else {
			*cell = ZeroValue(g.Ty)
		}
		lm.globals[g.Name] = cell
	}
	e.modules = append(e.modules, lm)
}

func (e *ExecutionEngine) resolve(from *linkedModule, name string) (*linkedModule, *Function) {
	if from != nil {
		if fn, ok := from.funcs[name]; ok {
			return from, fn
		}
	}
	for _, lm := range e.modules {
		if lm == from {
			continue
		}
		if fn, ok := lm.funcs[name]; ok {
			return lm, fn
		}
	}
	return nil, nil
}

// FunctionAddress returns a native callable for the named function, or an
// error if no linked module defines it.
func (e *ExecutionEngine) FunctionAddress(name string) (NativeFunction, error) {
	lm, fn := e.resolve(nil, name)
	if fn == nil {
		return nil, fmt.Errorf("codegen: undefined function %q", name)
	}
	return func(args ...any) {
		var globals GlobalState
		want := len(fn.Params)
		if fn.HasGlobals && len(args) > want {
			if gs, ok := args[want].(GlobalState); ok {
				globals = gs
			}
			args = args[:want]
		}
		callArgs := make([]any, len(fn.Params))
		outs := make([]any, len(fn.Params))
		for i, p := range fn.Params {
			var in any
			if i < len(args) {
				in = args[i]
			}
			if p.Output {
				cell := new(any)
				*cell = outValue(in, p.Ty)
				callArgs[i] = cellPtr{p: cell}
				outs[i] = in
			} else {
				callArgs[i] = coerce(in, p.Ty)
			}
		}
		e.run(lm, fn, callArgs, globals)
		for i, p := range fn.Params {
			if !p.Output || outs[i] == nil {
				continue
			}
			writeBack(outs[i], callArgs[i].(cellPtr).load())
		}
	}, nil
}

// Call invokes the named function directly and returns its result.
func (e *ExecutionEngine) Call(name string, args ...any) (any, error) {
	lm, fn := e.resolve(nil, name)
	if fn == nil {
		return nil, fmt.Errorf("codegen: undefined function %q", name)
	}
	callArgs := make([]any, len(fn.Params))
	for i, p := range fn.Params {
		var in any
		if i < len(args) {
			in = args[i]
		}
		callArgs[i] = coerce(in, p.Ty)
	}
	return e.run(lm, fn, callArgs, nil), nil
}

// outValue reads the current value behind a caller-supplied out pointer.
func outValue(ptr any, ty Type) any {
	switch p := ptr.(type) {
	case *int32:
		return *p
	case *float32:
		return *p
	case *float64:
		return *p
	case *bool:
		return *p
	case *[3]float32:
		return *p
	case *[4]float32:
		return *p
	case *[16]float32:
		return *p
	case *closure.TreeNode:
		return closureRef(*p)
	case *any:
		if *p == nil {
			return ZeroValue(ty)
		}
		return *p
	default:
		return ZeroValue(ty)
	}
}

// writeBack copies an engine value out through a caller-supplied pointer.
func writeBack(ptr any, v any) {
	switch p := ptr.(type) {
	case *int32:
		p2, _ := v.(int32)
		*p = p2
	case *float32:
		*p = toFloat32(v)
	case *float64:
		p2, _ := v.(float64)
		*p = p2
	case *bool:
		p2, _ := v.(bool)
		*p = p2
	case *[3]float32:
		p2, _ := v.([3]float32)
		*p = p2
	case *[4]float32:
		p2, _ := v.([4]float32)
		*p = p2
	case *[16]float32:
		p2, _ := v.([16]float32)
		*p = p2
	case *closure.TreeNode:
		p2, _ := v.(closureRef)
		*p = p2
	case *any:
		*p = v
	}
}

// coerce adapts a caller-supplied Go value to the engine representation
// of the parameter type.
func coerce(v any, ty Type) any {
	if v == nil {
		return ZeroValue(ty)
	}
	switch ty.(type) {
	case IntType:
		switch n := v.(type) {
		case int32:
			return n
		case int:
			return int32(n)
		case int64:
			return int32(n)
		}
	case FloatType:
		switch n := v.(type) {
		case float32:
			return n
		case float64:
			return float32(n)
		case int:
			return float32(n)
		}
	case DoubleType:
		switch n := v.(type) {
		case float64:
			return n
		case float32:
			return float64(n)
		case int:
			return float64(n)
		}
	case ClosureType:
		if n, ok := v.(closure.TreeNode); ok {
			return closureRef(n)
		}
	}
	return v
}

func toFloat32(v any) float32 {
	switch n := v.(type) {
	case float32:
		return n
	case float64:
		return float32(n)
	case int32:
		return float32(n)
	case int:
		return float32(n)
	default:
		return 0
	}
}

// run interprets a function body. The IR is in block form with explicit
// terminators, so execution is a loop over the current block's values
// with branches selecting the next block.
func (e *ExecutionEngine) run(lm *linkedModule, fn *Function, args []any, globals GlobalState) any {
	vals := make([]any, len(fn.Instrs))
	blk := 0
	for {
		next := -1
		for _, v := range fn.Blocks[blk].Vals {
			switch k := fn.Instrs[v].Kind.(type) {
			case ConstInt:
				vals[v] = k.V
			case ConstFloat:
				vals[v] = k.V
			case ConstDouble:
				vals[v] = k.V
			case ConstBool:
				vals[v] = k.V
			case Alloca:
				cell := new(any)
				*cell = ZeroValue(k.Elem)
				vals[v] = cellPtr{p: cell}
			case Arg:
				vals[v] = args[k.Index]
			case GlobalRef:
				cell, ok := lm.globals[k.Name]
				if !ok {
					cell = new(any)
				}
				vals[v] = cellPtr{p: cell}
			case Load:
				vals[v] = vals[k.Ptr].(ptrVal).load()
			case Store:
				vals[k.Ptr].(ptrVal).store(vals[k.Val])
			case FieldPtr:
				vals[v] = fieldPointer(vals[k.Ptr].(ptrVal), k.Index)
			case Extract:
				vals[v] = extract(vals[k.Agg], k.Index)
			case Compose:
				vals[v] = compose(k.Ty, k.Elems, vals)
			case Binary:
				vals[v] = evalBinary(k.Op, vals[k.L], vals[k.R])
			case Unary:
				vals[v] = evalUnary(k.Op, vals[k.V])
			case Call:
				callArgs := make([]any, len(k.Args))
				for i, a := range k.Args {
					callArgs[i] = vals[a]
				}
				clm, cfn := e.resolve(lm, k.Callee)
				if cfn != nil {
					vals[v] = e.run(clm, cfn, callArgs, globals)
				}
			case MakeClosure:
				payload, _ := closure.EncodePayload(k.Vars, argValues(k.Args, vals))
				vals[v] = closureRef(&closure.LeafNode{ID: k.ID, Payload: payload})
			case ClosureAdd:
				l, _ := vals[k.L].(closureRef)
				r, _ := vals[k.R].(closureRef)
				vals[v] = closureRef(closure.NewAdd(l, r))
			case ClosureMul:
				w := toFloat32(vals[k.W])
				c, _ := vals[k.C].(closureRef)
				vals[v] = closureRef(closure.NewMul(w, c))
			case GlobalValue:
				if globals != nil {
					if gv, ok := globals.GlobalValue(k.Field); ok {
						vals[v] = coerce(gv, k.Ty)
						break
					}
				}
				vals[v] = ZeroValue(k.Ty)
			case Ret:
				if k.HasVal {
					return vals[k.Val]
				}
				return nil
			case Br:
				next = k.Target
			case CondBr:
				if b, _ := vals[k.Cond].(bool); b {
					next = k.Then
				} else {
					next = k.Else
				}
			}
			if next >= 0 {
				break
			}
		}
		if next < 0 {
			return nil
		}
		blk = next
	}
}

func argValues(handles []Value, vals []any) []any {
	out := make([]any, len(handles))
	for i, h := range handles {
		out[i] = vals[h]
	}
	return out
}

func fieldPointer(p ptrVal, index int) ptrVal {
	cp, ok := p.(cellPtr)
	if !ok {
		return p
	}
	switch agg := (*cp.p).(type) {
	case []any:
		return cellPtr{p: &agg[index]}
	case [3]float32, [4]float32, [16]float32:
		return vecPtr{base: cp.p, index: index}
	default:
		return p
	}
}

func extract(agg any, index int) any {
	switch a := agg.(type) {
	case []any:
		return a[index]
	case [3]float32:
		return a[index]
	case [4]float32:
		return a[index]
	case [16]float32:
		return a[index]
	default:
		return agg
	}
}

func compose(ty Type, elems []Value, vals []any) any {
	switch tt := ty.(type) {
	case Float3Type:
		var out [3]float32
		for i := range out {
			out[i] = toFloat32(vals[elems[i]])
		}
		return out
	case Float4Type:
		var out [4]float32
		for i := range out {
			out[i] = toFloat32(vals[elems[i]])
		}
		return out
	case MatrixType:
		var out [16]float32
		for i := range out {
			out[i] = toFloat32(vals[elems[i]])
		}
		return out
	case StructType:
		out := make([]any, len(tt.Fields))
		for i := range out {
			out[i] = vals[elems[i]]
		}
		return out
	default:
		if len(elems) > 0 {
			return vals[elems[0]]
		}
		return nil
	}
}

func evalBinary(op BinOp, l, r any) any {
	switch lv := l.(type) {
	case int32:
		rv, _ := r.(int32)
		return intBinary(op, lv, rv)
	case float32:
		rv, _ := r.(float32)
		return floatBinary(op, lv, rv)
	case float64:
		rv, _ := r.(float64)
		return doubleBinary(op, lv, rv)
	case bool:
		rv, _ := r.(bool)
		return boolBinary(op, lv, rv)
	case [3]float32:
		rv, _ := r.([3]float32)
		var out [3]float32
		for i := range out {
			out[i] = floatBinary(op, lv[i], rv[i]).(float32)
		}
		return out
	case [4]float32:
		rv, _ := r.([4]float32)
		var out [4]float32
		for i := range out {
			out[i] = floatBinary(op, lv[i], rv[i]).(float32)
		}
		return out
	default:
		return nil
	}
}

func intBinary(op BinOp, l, r int32) any {
	switch op {
	case OpAdd:
		return l + r
	case OpSub:
		return l - r
	case OpMul:
		return l * r
	case OpDiv:
		if r == 0 {
			return int32(0)
		}
		return l / r
	case OpMod:
		if r == 0 {
			return int32(0)
		}
		return l % r
	case OpEq:
		return l == r
	case OpNe:
		return l != r
	case OpLt:
		return l < r
	case OpLe:
		return l <= r
	case OpGt:
		return l > r
	case OpGe:
		return l >= r
	default:
		return nil
	}
}

func floatBinary(op BinOp, l, r float32) any {
	switch op {
	case OpAdd:
		return l + r
	case OpSub:
		return l - r
	case OpMul:
		return l * r
	case OpDiv:
		return l / r
	case OpMod:
		return float32(math.Mod(float64(l), float64(r)))
	case OpEq:
		return l == r
	case OpNe:
		return l != r
	case OpLt:
		return l < r
	case OpLe:
		return l <= r
	case OpGt:
		return l > r
	case OpGe:
		return l >= r
	default:
		return nil
	}
}

func doubleBinary(op BinOp, l, r float64) any {
	switch op {
	case OpAdd:
		return l + r
	case OpSub:
		return l - r
	case OpMul:
		return l * r
	case OpDiv:
		return l / r
	case OpMod:
		return math.Mod(l, r)
	case OpEq:
		return l == r
	case OpNe:
		return l != r
	case OpLt:
		return l < r
	case OpLe:
		return l <= r
	case OpGt:
		return l > r
	case OpGe:
		return l >= r
	default:
		return nil
	}
}

func boolBinary(op BinOp, l, r bool) any {
	switch op {
	case OpAnd:
		return l && r
	case OpOr:
		return l || r
	case OpEq:
		return l == r
	case OpNe:
		return l != r
	default:
		return nil
	}
}

func evalUnary(op UnOp, v any) any {
	switch op {
	case OpNeg:
		switch n := v.(type) {
		case int32:
			return -n
		case float32:
			return -n
		case float64:
			return -n
		case [3]float32:
			return [3]float32{-n[0], -n[1], -n[2]}
		case [4]float32:
			return [4]float32{-n[0], -n[1], -n[2], -n[3]}
		}
	case OpNot:
		if b, ok := v.(bool); ok {
			return !b
		}
	}
	return v
}
