package tsl

import (
	"sync"

	"github.com/gogpu/tsl/codegen"
	"github.com/gogpu/tsl/syntax"
)

// NativeFunction is the callable a resolved shader instance exposes.
type NativeFunction = codegen.NativeFunction

// ShaderUnitTemplate is a compiled shader unit: the backend module for
// one source, its entry point and public argument list. Templates are
// immutable once compiled; instances made from them resolve and execute
// independently.
type ShaderUnitTemplate struct {
	name        string
	ast         *syntax.Module
	module      *codegen.Module
	entry       string
	args        []ShaderArgument
	usesGlobals bool
	registry    *closureRegistry
}

// Name returns the template name given at compile time.
func (t *ShaderUnitTemplate) Name() string { return t.name }

// Arguments returns the entry point's argument list.
func (t *ShaderUnitTemplate) Arguments() []ShaderArgument {
	return append([]ShaderArgument(nil), t.args...)
}

// UsesGlobalState reports whether the unit reads global_value fields.
// Resolved functions of such units take the global state as their
// trailing argument.
func (t *ShaderUnitTemplate) UsesGlobalState() bool { return t.usesGlobals }

// Listing returns a textual dump of the lowered module.
func (t *ShaderUnitTemplate) Listing() string {
	return codegen.Print(t.module)
}

// MakeShaderInstance creates an unresolved instance of the unit.
func (t *ShaderUnitTemplate) MakeShaderInstance() *ShaderInstance {
	return &ShaderInstance{unit: t}
}

// argument returns the declared argument with the given name.
func (t *ShaderUnitTemplate) argument(name string) (ShaderArgument, bool) {
	for _, a := range t.args {
		if a.Name == name {
			return a, true
		}
	}
	return ShaderArgument{}, false
}

// ShaderInstance is one resolvable occurrence of a unit or group
// template. Resolving links the code and pins the native function;
// instances of the same template resolve independently.
type ShaderInstance struct {
	unit  *ShaderUnitTemplate
	group *ShaderGroupTemplate

	mu       sync.Mutex
	resolved bool
	fn       NativeFunction
}

// Function returns the native function of a resolved instance, or nil
// before resolution.
func (i *ShaderInstance) Function() NativeFunction {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.fn
}

type connection struct {
	SrcUnit string
	SrcArg  string
	DstUnit string
	DstArg  string
}

type exposedArg struct {
	Unit string
	Arg  string
}

// ShaderGroupTemplate composes shader units into a graph: connections
// feed one unit's outputs into another's inputs, inits pin inputs to
// constants, and exposed arguments become the resolved group's own
// signature, in exposure order. Built through a context between
// BeginShaderGroupTemplate and EndShaderGroupTemplate.
type ShaderGroupTemplate struct {
	name      string
	ctx       *ShadingContext
	units     map[string]*ShaderUnitTemplate
	unitOrder []string
	root      string
	conns     []connection
	inits     map[string]map[string]ShaderValue
	exposed   []exposedArg
	sealed    bool
}

// Name returns the group name.
func (g *ShaderGroupTemplate) Name() string { return g.name }

// AddShaderUnit places a copy of a unit template in the group under a
// name unique within the group.
func (g *ShaderGroupTemplate) AddShaderUnit(name string, tmpl *ShaderUnitTemplate) Status {
	if name == "" || tmpl == nil {
		return InvalidInput
	}
	if g.sealed {
		return InvalidShaderGroupTemplate
	}
	if _, ok := g.units[name]; ok {
		return InvalidInput
	}
	g.units[name] = tmpl
	g.unitOrder = append(g.unitOrder, name)
	return Succeed
}

// SetRootShaderUnit marks the unit whose outputs are the group's result.
func (g *ShaderGroupTemplate) SetRootShaderUnit(name string) Status {
	if g.sealed {
		return InvalidShaderGroupTemplate
	}
	if _, ok := g.units[name]; !ok {
		return UndefinedShaderUnit
	}
	g.root = name
	return Succeed
}

// ConnectShaderUnits routes an output argument of one unit into an input
// argument of another. A later connection to the same input replaces an
// earlier one.
func (g *ShaderGroupTemplate) ConnectShaderUnits(srcUnit, srcArg, dstUnit, dstArg string) Status {
	if g.sealed {
		return InvalidShaderGroupTemplate
	}
	src, ok := g.units[srcUnit]
	if !ok {
		return UndefinedShaderUnit
	}
	dst, ok := g.units[dstUnit]
	if !ok {
		return UndefinedShaderUnit
	}
	sa, ok := src.argument(srcArg)
	if !ok || !sa.Output {
		return InvalidArgType
	}
	da, ok := dst.argument(dstArg)
	if !ok || da.Output || da.Type != sa.Type {
		return InvalidArgType
	}
	g.conns = append(g.conns, connection{SrcUnit: srcUnit, SrcArg: srcArg, DstUnit: dstUnit, DstArg: dstArg})
	return Succeed
}

// InitShaderUnitInput pins an input argument to a constant value.
func (g *ShaderGroupTemplate) InitShaderUnitInput(unit, arg string, val ShaderValue) Status {
	if g.sealed {
		return InvalidShaderGroupTemplate
	}
	u, ok := g.units[unit]
	if !ok {
		return UndefinedShaderUnit
	}
	a, ok := u.argument(arg)
	if !ok || a.Output || a.Type != val.Type() {
		return InvalidArgType
	}
	if g.inits[unit] == nil {
		g.inits[unit] = make(map[string]ShaderValue)
	}
	g.inits[unit][arg] = val
	return Succeed
}

// ExposeShaderArgument promotes a unit argument to the group's own
// signature. Exposure order fixes the argument's position.
func (g *ShaderGroupTemplate) ExposeShaderArgument(unit, arg string) Status {
	if g.sealed {
		return InvalidShaderGroupTemplate
	}
	u, ok := g.units[unit]
	if !ok {
		return UndefinedShaderUnit
	}
	if _, ok := u.argument(arg); !ok {
		return InvalidArgType
	}
	for _, e := range g.exposed {
		if e.Unit == unit && e.Arg == arg {
			return InvalidInput
		}
	}
	g.exposed = append(g.exposed, exposedArg{Unit: unit, Arg: arg})
	return Succeed
}

// Arguments returns the group's signature: the exposed arguments in
// exposure order.
func (g *ShaderGroupTemplate) Arguments() []ShaderArgument {
	args := make([]ShaderArgument, 0, len(g.exposed))
	for _, e := range g.exposed {
		a, _ := g.units[e.Unit].argument(e.Arg)
		a.Name = e.Unit + "_" + e.Arg
		args = append(args, a)
	}
	return args
}

// MakeShaderInstance creates an unresolved instance of the group. The
// group must be sealed with EndShaderGroupTemplate first.
func (g *ShaderGroupTemplate) MakeShaderInstance() *ShaderInstance {
	return &ShaderInstance{group: g}
}
