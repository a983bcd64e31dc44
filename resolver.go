package tsl

import (
	"github.com/gogpu/tsl/codegen"
)

// VarMapping records, per unit copy, the wrapper-local storage slot that
// holds each of the unit's output arguments. Connections between units
// read through it.
type VarMapping map[string]map[string]codegen.Value

func (m VarMapping) set(unit, arg string, slot codegen.Value) {
	if m[unit] == nil {
		m[unit] = make(map[string]codegen.Value)
	}
	m[unit][arg] = slot
}

func (m VarMapping) get(unit, arg string) (codegen.Value, bool) {
	slot, ok := m[unit][arg]
	return slot, ok
}

// dfs colors, in visiting order.
const (
	unitWhite = iota
	unitGrey
	unitBlack
)

// resolveOrder orders the group's unit copies so every unit runs after
// the units feeding it. Returns ShaderGroupWithCycles when the
// connection graph has a cycle. The root's dependency tree is visited
// first; remaining units follow in insertion order.
func (g *ShaderGroupTemplate) resolveOrder() ([]string, Status) {
	deps := make(map[string][]string)
	for _, c := range g.conns {
		deps[c.DstUnit] = append(deps[c.DstUnit], c.SrcUnit)
	}

	color := make(map[string]int, len(g.units))
	order := make([]string, 0, len(g.units))
	var visit func(string) bool
	visit = func(unit string) bool {
		switch color[unit] {
		case unitGrey:
			return false
		case unitBlack:
			return true
		}
		color[unit] = unitGrey
		for _, dep := range deps[unit] {
			if !visit(dep) {
				return false
			}
		}
		color[unit] = unitBlack
		order = append(order, unit)
		return true
	}

	if !visit(g.root) {
		return nil, ShaderGroupWithCycles
	}
	for _, unit := range g.unitOrder {
		if !visit(unit) {
			return nil, ShaderGroupWithCycles
		}
	}
	return order, Succeed
}

// buildWrapper synthesizes the group's entry function: one call per unit
// copy in dependency order, with inputs routed from connections, exposed
// arguments or init constants, and exposed outputs copied out to the
// wrapper's own parameters.
func (g *ShaderGroupTemplate) buildWrapper(entry string) (*codegen.Module, Status) {
	order, st := g.resolveOrder()
	if st != Succeed {
		Logger().Error("shader group connection graph has cycles", "group", g.name)
		return nil, st
	}

	m := codegen.NewModule("group_" + g.name)
	declared := make(map[string]bool)
	usesGlobals := false
	for _, name := range g.unitOrder {
		t := g.units[name]
		if t.usesGlobals {
			usesGlobals = true
		}
		if declared[t.entry] {
			continue
		}
		declared[t.entry] = true
		fn := t.module.Function(t.entry)
		params := make([]codegen.Type, len(fn.Params))
		for i, p := range fn.Params {
			if p.Output {
				params[i] = codegen.PointerType{Elem: p.Ty}
			} else {
				params[i] = p.Ty
			}
		}
		m.Declare(t.entry, params, fn.Ret)
	}

	params := make([]codegen.Param, len(g.exposed))
	for i, a := range g.Arguments() {
		params[i] = codegen.Param{Name: a.Name, Ty: a.Type.backendType(), Output: a.Output}
	}
	wrapper := m.NewFunction(entry, params, codegen.VoidType{})
	wrapper.HasGlobals = usesGlobals
	b := codegen.NewBuilder(wrapper)

	exposedIndex := make(map[exposedArg]int, len(g.exposed))
	for i, e := range g.exposed {
		exposedIndex[e] = i
	}
	connected := make(map[string]map[string]connection)
	for _, c := range g.conns {
		if connected[c.DstUnit] == nil {
			connected[c.DstUnit] = make(map[string]connection)
		}
		connected[c.DstUnit][c.DstArg] = c
	}

	mapping := make(VarMapping)
	for _, unit := range order {
		t := g.units[unit]
		callArgs := make([]codegen.Value, len(t.args))
		type copyOut struct {
			slot  codegen.Value
			param int
		}
		var copyOuts []copyOut

		for i, a := range t.args {
			ty := a.Type.backendType()
			if a.Output {
				slot := b.Alloca(ty, unit+"_"+a.Name)
				mapping.set(unit, a.Name, slot)
				callArgs[i] = slot
				if pi, ok := exposedIndex[exposedArg{Unit: unit, Arg: a.Name}]; ok {
					copyOuts = append(copyOuts, copyOut{slot: slot, param: pi})
				}
				continue
			}
			switch {
			case connected[unit][a.Name] != (connection{}):
				c := connected[unit][a.Name]
				slot, ok := mapping.get(c.SrcUnit, c.SrcArg)
				if !ok {
					Logger().Error("connection source has no storage",
						"group", g.name, "unit", unit, "arg", a.Name,
						"src_unit", c.SrcUnit, "src_arg", c.SrcArg)
					return nil, InvalidShaderGroupTemplate
				}
				callArgs[i] = b.Load(slot)
			default:
				if pi, ok := exposedIndex[exposedArg{Unit: unit, Arg: a.Name}]; ok {
					callArgs[i] = b.Arg(pi)
					break
				}
				if val, ok := g.inits[unit][a.Name]; ok {
					callArgs[i] = emitConstant(b, val)
					break
				}
				Logger().Error("argument without initialization",
					"group", g.name, "unit", unit, "arg", a.Name)
				return nil, ArgumentWithoutInitialization
			}
		}

		fn := t.module.Function(t.entry)
		b.Call(t.entry, callArgs, fn.Ret)
		for _, co := range copyOuts {
			b.Store(b.Arg(co.param), b.Load(co.slot))
		}
	}
	b.RetVoid()
	return m, Succeed
}

// emitConstant materializes an init value in the wrapper body.
func emitConstant(b *codegen.Builder, val ShaderValue) codegen.Value {
	switch v := val.v.(type) {
	case int32:
		return b.ConstInt(v)
	case float32:
		return b.ConstFloat(v)
	case float64:
		return b.ConstDouble(v)
	case bool:
		return b.ConstBool(v)
	case [3]float32:
		elems := make([]codegen.Value, 3)
		for i, f := range v {
			elems[i] = b.ConstFloat(f)
		}
		return b.Compose(codegen.Float3Type{}, elems)
	case [4]float32:
		elems := make([]codegen.Value, 4)
		for i, f := range v {
			elems[i] = b.ConstFloat(f)
		}
		return b.Compose(codegen.Float4Type{}, elems)
	default:
		return b.ConstFloat(0)
	}
}
