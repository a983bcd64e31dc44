package codegen

import "fmt"

// Module is a compilation unit: a set of functions, external function
// declarations and module-scope globals. Modules are linked into an
// ExecutionEngine, which resolves cross-module calls.
type Module struct {
	Name      string
	Functions []*Function
	Decls     []FuncDecl
	Globals   []Global
}

// FuncDecl declares an external function defined in another module.
type FuncDecl struct {
	Name   string
	Params []Type
	Ret    Type
}

// Global is a module-scope variable. Each engine holds its own storage
// for the globals of the modules linked into it.
type Global struct {
	Name string
	Ty   Type
	Init any
}

// Param describes one function parameter. Output parameters are passed
// by pointer and copied back to the caller.
type Param struct {
	Name   string
	Ty     Type
	Output bool
}

// Function is a function definition: a parameter list and a body of
// basic blocks over a shared instruction arena.
type Function struct {
	Name   string
	Params []Param
	Ret    Type

	// HasGlobals marks functions that take an implicit trailing
	// global-state argument.
	HasGlobals bool

	Instrs []Instr
	Types  []Type
	Blocks []Block
}

// Block is a basic block: an ordered list of handles into the function's
// instruction arena. The last entry must be a terminator.
type Block struct {
	Name string
	Vals []Value
}

// NewModule returns an empty module.
func NewModule(name string) *Module {
	return &Module{Name: name}
}

// NewFunction appends an empty function definition to the module and
// returns it.
func (m *Module) NewFunction(name string, params []Param, ret Type) *Function {
	fn := &Function{Name: name, Params: params, Ret: ret}
	m.Functions = append(m.Functions, fn)
	return fn
}

// Declare records an external function the module's code may call.
func (m *Module) Declare(name string, params []Type, ret Type) {
	m.Decls = append(m.Decls, FuncDecl{Name: name, Params: params, Ret: ret})
}

// AddGlobal appends a module-scope variable.
func (m *Module) AddGlobal(name string, ty Type, init any) {
	m.Globals = append(m.Globals, Global{Name: name, Ty: ty, Init: init})
}

// Function returns the definition with the given name, or nil.
func (m *Module) Function(name string) *Function {
	for _, fn := range m.Functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

// Clone returns a deep copy of the module. Linking hands the engine a
// clone so the source module stays reusable.
func (m *Module) Clone() *Module {
	out := &Module{Name: m.Name}
	out.Decls = append([]FuncDecl(nil), m.Decls...)
	for i := range out.Decls {
		out.Decls[i].Params = append([]Type(nil), m.Decls[i].Params...)
	}
	out.Globals = append([]Global(nil), m.Globals...)
	out.Functions = make([]*Function, len(m.Functions))
	for i, fn := range m.Functions {
		out.Functions[i] = fn.Clone()
	}
	return out
}

// Clone returns a deep copy of the function.
func (fn *Function) Clone() *Function {
	out := &Function{
		Name:       fn.Name,
		Params:     append([]Param(nil), fn.Params...),
		Ret:        fn.Ret,
		HasGlobals: fn.HasGlobals,
		Types:      append([]Type(nil), fn.Types...),
	}
	out.Instrs = make([]Instr, len(fn.Instrs))
	for i, in := range fn.Instrs {
		out.Instrs[i] = Instr{Kind: cloneKind(in.Kind)}
	}
	out.Blocks = make([]Block, len(fn.Blocks))
	for i, b := range fn.Blocks {
		out.Blocks[i] = Block{Name: b.Name, Vals: append([]Value(nil), b.Vals...)}
	}
	return out
}

func cloneKind(k InstrKind) InstrKind {
	switch k := k.(type) {
	case Compose:
		k.Elems = append([]Value(nil), k.Elems...)
		return k
	case Call:
		k.Args = append([]Value(nil), k.Args...)
		return k
	case MakeClosure:
		k.Vars = append(k.Vars[:0:0], k.Vars...)
		k.Args = append([]Value(nil), k.Args...)
		return k
	default:
		return k
	}
}

// TypeOf returns the result type of the instruction at v.
func (fn *Function) TypeOf(v Value) Type {
	return fn.Types[v]
}

func (fn *Function) String() string {
	return fmt.Sprintf("func %s (%d blocks, %d instrs)", fn.Name, len(fn.Blocks), len(fn.Instrs))
}
