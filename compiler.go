package tsl

import (
	"errors"
	"fmt"

	"github.com/gogpu/tsl/codegen"
	"github.com/gogpu/tsl/syntax"
)

var (
	// ErrParse wraps lexer and parser failures.
	ErrParse = errors.New("tsl: parse failed")

	// ErrUnregisteredClosure is returned when a shader constructs a
	// closure type the shading system does not know.
	ErrUnregisteredClosure = errors.New("tsl: unregistered closure")

	// ErrNoShaderEntry is returned when a unit source defines no shader
	// function, or more than one.
	ErrNoShaderEntry = errors.New("tsl: source must define exactly one shader function")

	// ErrCodegen wraps lowering and verification failures.
	ErrCodegen = errors.New("tsl: code generation failed")
)

// compiler holds the state of one compile in flight. A context owns one
// compiler and reuses it across compiles; reset clears everything the
// previous compile deposited.
type compiler struct {
	sys       *ShadingSystem
	ownership *OwnershipTable
	strings   map[string]string

	// Per-compile state, filled by the push API while walking the
	// parsed module and consumed by lowering.
	astRoot         *syntax.Module
	functions       []*syntax.FunctionDecl
	structures      []*syntax.StructDecl
	globals         []*syntax.VarDecl
	closuresTouched map[string]struct{}
	usesGlobals     bool
	typeCache       map[string]codegen.StructType
	nextType        *syntax.DataType
}

func newCompiler(sys *ShadingSystem) *compiler {
	return &compiler{
		sys:       sys,
		ownership: NewOwnershipTable(),
		strings:   make(map[string]string),
	}
}

// reset clears the per-compile state. The interner and ownership table
// persist across compiles.
func (c *compiler) reset() {
	c.astRoot = nil
	c.functions = nil
	c.structures = nil
	c.globals = nil
	c.closuresTouched = make(map[string]struct{})
	c.usesGlobals = false
	c.typeCache = make(map[string]codegen.StructType)
	c.nextType = nil
}

// intern returns the canonical instance of a string, so type and symbol
// names compare cheaply across one context's compiles.
func (c *compiler) intern(s string) string {
	if canon, ok := c.strings[s]; ok {
		return canon
	}
	c.strings[s] = s
	return s
}

// PushFunction deposits a parsed function declaration.
func (c *compiler) PushFunction(fn *syntax.FunctionDecl) {
	fn.Name = c.intern(fn.Name)
	c.functions = append(c.functions, fn)
}

// PushStructureDeclaration deposits a parsed struct declaration.
func (c *compiler) PushStructureDeclaration(st *syntax.StructDecl) {
	st.Name = c.intern(st.Name)
	c.structures = append(c.structures, st)
}

// PushGlobalParameter deposits a module-scope variable declaration.
func (c *compiler) PushGlobalParameter(v *syntax.VarDecl) {
	v.Name = c.intern(v.Name)
	c.globals = append(c.globals, v)
}

// CacheNextDataType stores a type for the next DataTypeCache call.
func (c *compiler) CacheNextDataType(t syntax.DataType) {
	c.nextType = &t
}

// DataTypeCache returns the cached type and clears the cache.
func (c *compiler) DataTypeCache() (syntax.DataType, bool) {
	if c.nextType == nil {
		return syntax.DataType{}, false
	}
	t := *c.nextType
	c.nextType = nil
	return t, true
}

// ClosureTouched records that the compile constructs the named closure.
func (c *compiler) ClosureTouched(name string) {
	c.closuresTouched[c.intern(name)] = struct{}{}
}

// compile parses, checks and lowers one shader unit source.
func (c *compiler) compile(name, source string) (*ShaderUnitTemplate, error) {
	c.reset()
	release := c.ownership.PushFrame()
	defer release()

	tokens, err := syntax.NewLexer(source).Tokenize()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, name, err)
	}
	mod, err := syntax.NewParser(tokens).Parse()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, name, err)
	}
	c.astRoot = mod
	if err := c.ownership.Track(mod); err != nil {
		return nil, err
	}

	if err := c.deposit(mod); err != nil {
		return nil, err
	}
	if err := c.checkClosures(); err != nil {
		return nil, err
	}

	entry := c.shaderEntry()
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoShaderEntry, name)
	}

	mangled := fmt.Sprintf("%s_shader_%d", name, c.sys.unitSeq.Add(1))
	cg, err := c.lower(name, entry, mangled)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCodegen, name, err)
	}
	if err := codegen.Verify(cg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCodegen, name, err)
	}

	args, err := c.shaderArguments(entry)
	if err != nil {
		return nil, err
	}

	c.ownership.Transfer(mod)
	Logger().Debug("shader unit compiled", "name", name, "entry", mangled,
		"functions", len(c.functions), "structs", len(c.structures))
	return &ShaderUnitTemplate{
		name:        name,
		ast:         mod,
		module:      cg,
		entry:       mangled,
		args:        args,
		usesGlobals: c.usesGlobals,
		registry:    c.sys.registry,
	}, nil
}

// deposit walks the parsed module and feeds every declaration through
// the push API, recording the closures and globals the bodies touch.
func (c *compiler) deposit(mod *syntax.Module) error {
	for _, st := range mod.Structs {
		if err := c.ownership.Track(st); err != nil {
			return err
		}
		c.PushStructureDeclaration(st)
	}
	for _, g := range mod.GlobalVars {
		if err := c.ownership.Track(g); err != nil {
			return err
		}
		c.PushGlobalParameter(g)
	}
	for _, fn := range mod.Functions {
		if err := c.ownership.Track(fn); err != nil {
			return err
		}
		c.PushFunction(fn)
		walkStmt(fn.Body, func(e syntax.Expr) {
			switch e := e.(type) {
			case *syntax.MakeClosureExpr:
				c.ClosureTouched(e.Closure)
			case *syntax.GlobalValueExpr:
				c.usesGlobals = true
			}
		})
	}
	return nil
}

// checkClosures verifies every constructed closure is registered.
func (c *compiler) checkClosures() error {
	for name := range c.closuresTouched {
		if _, ok := c.sys.registry.lookup(name); !ok {
			return fmt.Errorf("%w: %s", ErrUnregisteredClosure, name)
		}
	}
	return nil
}

// shaderEntry returns the unit's single shader function, or nil.
func (c *compiler) shaderEntry() *syntax.FunctionDecl {
	var entry *syntax.FunctionDecl
	for _, fn := range c.functions {
		if !fn.Shader {
			continue
		}
		if entry != nil {
			return nil
		}
		entry = fn
	}
	return entry
}

// shaderArguments maps the entry's parameters to the template's public
// argument list.
func (c *compiler) shaderArguments(entry *syntax.FunctionDecl) ([]ShaderArgument, error) {
	args := make([]ShaderArgument, len(entry.Params))
	for i, p := range entry.Params {
		at, ok := argTypeOf(p.Type)
		if !ok {
			return nil, fmt.Errorf("%w: parameter %s has non-argument type %s", ErrCodegen, p.Name, p.Type)
		}
		args[i] = ShaderArgument{Name: p.Name, Type: at, Output: p.Output}
	}
	return args, nil
}

// structType resolves a struct declaration to the backend type, caching
// the result by name.
func (c *compiler) structType(name string) (codegen.StructType, error) {
	if st, ok := c.typeCache[name]; ok {
		return st, nil
	}
	for _, decl := range c.structures {
		if decl.Name != name {
			continue
		}
		st := codegen.StructType{Name: name, Fields: make([]codegen.Field, len(decl.Members))}
		for i, m := range decl.Members {
			c.CacheNextDataType(m.Type)
			mt, _ := c.DataTypeCache()
			ft, err := c.backendType(mt)
			if err != nil {
				return codegen.StructType{}, err
			}
			st.Fields[i] = codegen.Field{Name: m.Name, Type: ft}
		}
		c.typeCache[name] = st
		return st, nil
	}
	return codegen.StructType{}, fmt.Errorf("undefined struct %s", name)
}

// backendType maps a parsed type to the code generator's type.
func (c *compiler) backendType(t syntax.DataType) (codegen.Type, error) {
	switch t.Kind {
	case syntax.TypeVoid:
		return codegen.VoidType{}, nil
	case syntax.TypeInt:
		return codegen.IntType{}, nil
	case syntax.TypeFloat:
		return codegen.FloatType{}, nil
	case syntax.TypeDouble:
		return codegen.DoubleType{}, nil
	case syntax.TypeBool:
		return codegen.BoolType{}, nil
	case syntax.TypeFloat3:
		return codegen.Float3Type{}, nil
	case syntax.TypeFloat4:
		return codegen.Float4Type{}, nil
	case syntax.TypeMatrix:
		return codegen.MatrixType{}, nil
	case syntax.TypeClosure:
		return codegen.ClosureType{}, nil
	case syntax.TypeStruct:
		return c.structType(t.StructName)
	default:
		return nil, fmt.Errorf("unsupported type %s", t)
	}
}

// walkStmt visits every expression reachable from a statement.
func walkStmt(s syntax.Stmt, visit func(syntax.Expr)) {
	switch s := s.(type) {
	case *syntax.BlockStmt:
		for _, inner := range s.Statements {
			walkStmt(inner, visit)
		}
	case *syntax.VarDecl:
		walkExpr(s.Init, visit)
	case *syntax.ReturnStmt:
		walkExpr(s.Value, visit)
	case *syntax.IfStmt:
		walkExpr(s.Condition, visit)
		walkStmt(s.Body, visit)
		if s.Else != nil {
			walkStmt(s.Else, visit)
		}
	case *syntax.AssignStmt:
		walkExpr(s.Left, visit)
		walkExpr(s.Right, visit)
	case *syntax.ExprStmt:
		walkExpr(s.Expr, visit)
	}
}

// walkExpr visits an expression tree in prefix order.
func walkExpr(e syntax.Expr, visit func(syntax.Expr)) {
	if e == nil {
		return
	}
	visit(e)
	switch e := e.(type) {
	case *syntax.BinaryExpr:
		walkExpr(e.Left, visit)
		walkExpr(e.Right, visit)
	case *syntax.UnaryExpr:
		walkExpr(e.Operand, visit)
	case *syntax.CallExpr:
		for _, a := range e.Args {
			walkExpr(a, visit)
		}
	case *syntax.MemberExpr:
		walkExpr(e.Expr, visit)
	case *syntax.ConstructExpr:
		for _, a := range e.Args {
			walkExpr(a, visit)
		}
	case *syntax.MakeClosureExpr:
		for _, a := range e.Args {
			walkExpr(a, visit)
		}
	}
}
