// Package tsl implements a compiler and runtime for TSL, a small
// shading language built around closures. A ShadingSystem owns the
// shared closure registry; each goroutine compiles through its own
// ShadingContext. Shader unit templates compile from source, group
// templates compose units into graphs, and resolving an instance links
// everything into a callable function.
//
//	sys := tsl.NewShadingSystem()
//	sys.RegisterClosure("lambert", []closure.Var{{Name: "albedo", Type: closure.VarFloat3}})
//
//	ctx := sys.NewContext()
//	tmpl, err := ctx.CompileShaderUnitTemplate("diffuse", source)
//	...
//	inst := tmpl.MakeShaderInstance()
//	if st := ctx.ResolveShaderInstance(inst); st != tsl.Succeed {
//		...
//	}
//	inst.Function()(args...)
package tsl

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/tsl/closure"
	"github.com/gogpu/tsl/codegen"
)

// ShadingSystem is the root object of the shading runtime. It owns the
// closure registry shared by all contexts and hands out the sequence
// numbers that keep entry names unique across contexts. Safe for
// concurrent use.
type ShadingSystem struct {
	registry *closureRegistry
	unitSeq  atomic.Uint64
}

// NewShadingSystem creates an empty shading system.
func NewShadingSystem() *ShadingSystem {
	return &ShadingSystem{registry: newClosureRegistry()}
}

// RegisterClosure assigns an identity to a closure type and makes it
// constructible from shaders. Registering the same name with the same
// fields again returns the existing identity; a different field list is
// rejected with ErrConflictingClosure.
func (s *ShadingSystem) RegisterClosure(name string, vars []closure.Var) (closure.ID, error) {
	return s.register(name, vars)
}

func (s *ShadingSystem) register(name string, vars []closure.Var) (closure.ID, error) {
	return s.registry.register(name, vars)
}

// DecodeClosureTree decodes a closure tree from its encoded byte form,
// using the registry to size leaf payloads.
func (s *ShadingSystem) DecodeClosureTree(buf []byte) (closure.TreeNode, error) {
	return closure.DecodeTree(buf, s.registry.payloadSize)
}

// ClosureFields returns the registered field list of a closure identity.
func (s *ShadingSystem) ClosureFields(id closure.ID) ([]closure.Var, bool) {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()
	c, ok := s.registry.byID[id]
	if !ok {
		return nil, false
	}
	return append([]closure.Var(nil), c.Vars...), true
}

// NewContext creates a shading context. A context is single-threaded;
// make one per goroutine. Contexts of one system share the closure
// registry.
func (s *ShadingSystem) NewContext() *ShadingContext {
	return &ShadingContext{sys: s, compiler: newCompiler(s)}
}

// ShadingContext carries the compilation state of one goroutine. Not
// safe for concurrent use.
type ShadingContext struct {
	sys      *ShadingSystem
	compiler *compiler
	groupSeq int
}

// CompileShaderUnitTemplate compiles TSL source into a unit template.
// The source must define exactly one shader function; its parameters
// become the template's arguments.
func (c *ShadingContext) CompileShaderUnitTemplate(name, source string) (*ShaderUnitTemplate, error) {
	if name == "" {
		return nil, fmt.Errorf("tsl: empty template name")
	}
	if source == "" {
		return nil, fmt.Errorf("%w: %s: empty source", ErrParse, name)
	}
	return c.compiler.compile(name, source)
}

// BeginShaderGroupTemplate starts building a group template. Populate it
// with AddShaderUnit, ConnectShaderUnits, SetRootShaderUnit and the
// other group operations, then seal it with EndShaderGroupTemplate.
func (c *ShadingContext) BeginShaderGroupTemplate(name string) *ShaderGroupTemplate {
	return &ShaderGroupTemplate{
		name:  name,
		ctx:   c,
		units: make(map[string]*ShaderUnitTemplate),
		inits: make(map[string]map[string]ShaderValue),
	}
}

// EndShaderGroupTemplate seals a group template. After sealing, the
// group accepts no further edits and its instances can resolve.
func (c *ShadingContext) EndShaderGroupTemplate(g *ShaderGroupTemplate) Status {
	if g == nil || g.ctx != c {
		return InvalidInput
	}
	if g.sealed {
		return InvalidShaderGroupTemplate
	}
	if g.root == "" {
		return ShaderGroupWithoutRoot
	}
	if _, ok := g.units[g.root]; !ok {
		return UndefinedShaderUnit
	}
	g.sealed = true
	Logger().Info("shader group sealed", "name", g.name,
		"units", len(g.units), "connections", len(g.conns), "exposed", len(g.exposed))
	return Succeed
}

// ResolveShaderInstance links an instance into a callable function.
// Resolving an already resolved instance succeeds without relinking.
func (c *ShadingContext) ResolveShaderInstance(inst *ShaderInstance) Status {
	if inst == nil {
		return InvalidInput
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.resolved {
		return Succeed
	}

	var (
		fn NativeFunction
		st Status
	)
	switch {
	case inst.unit != nil:
		fn, st = link(inst.unit.registry, inst.unit.entry, inst.unit.module)
	case inst.group != nil:
		fn, st = c.resolveGroup(inst.group)
	default:
		return InvalidInput
	}
	if st != Succeed {
		return st
	}
	inst.fn = fn
	inst.resolved = true
	return Succeed
}

func (c *ShadingContext) resolveGroup(g *ShaderGroupTemplate) (NativeFunction, Status) {
	if !g.sealed {
		return nil, InvalidShaderGroupTemplate
	}
	c.groupSeq++
	entry := fmt.Sprintf("%s_group_%d", g.name, c.groupSeq)
	wrapper, st := g.buildWrapper(entry)
	if st != Succeed {
		return nil, st
	}

	modules := []*codegen.Module{wrapper}
	seen := make(map[*ShaderUnitTemplate]bool)
	for _, name := range g.unitOrder {
		t := g.units[name]
		if seen[t] {
			continue
		}
		seen[t] = true
		modules = append(modules, t.module)
	}
	// Units carry the registry of the system that compiled them; the
	// root's registry supplies the closure constructors for the link.
	return link(g.units[g.root].registry, entry, modules...)
}
