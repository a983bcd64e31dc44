package codegen

import (
	"fmt"
	"strings"
)

// Print returns a textual listing of the module, one function at a
// time, in the order instructions appear in their blocks.
func Print(m *Module) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "module %s\n", m.Name)
	for _, g := range m.Globals {
		fmt.Fprintf(&sb, "global %s: %s\n", g.Name, g.Ty)
	}
	for _, d := range m.Decls {
		fmt.Fprintf(&sb, "declare %s%s\n", d.Name, signature(d.Params, d.Ret))
	}
	for _, fn := range m.Functions {
		printFunction(&sb, fn)
	}
	return sb.String()
}

func signature(params []Type, ret Type) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.String()
	}
	return fmt.Sprintf("(%s) %s", strings.Join(parts, ", "), ret)
}

func printFunction(sb *strings.Builder, fn *Function) {
	parts := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		dir := "in"
		if p.Output {
			dir = "out"
		}
		parts[i] = fmt.Sprintf("%s %s %s", dir, p.Name, p.Ty)
	}
	fmt.Fprintf(sb, "\nfunc %s(%s) %s {\n", fn.Name, strings.Join(parts, ", "), fn.Ret)
	for bi, b := range fn.Blocks {
		fmt.Fprintf(sb, "%s.%d:\n", b.Name, bi)
		for _, v := range b.Vals {
			fmt.Fprintf(sb, "  %s\n", formatInstr(fn, v))
		}
	}
	sb.WriteString("}\n")
}

func formatInstr(fn *Function, v Value) string {
	lhs := fmt.Sprintf("%%%d = ", v)
	switch k := fn.Instrs[v].Kind.(type) {
	case ConstInt:
		return fmt.Sprintf("%sconst int %d", lhs, k.V)
	case ConstFloat:
		return fmt.Sprintf("%sconst float %g", lhs, k.V)
	case ConstDouble:
		return fmt.Sprintf("%sconst double %g", lhs, k.V)
	case ConstBool:
		return fmt.Sprintf("%sconst bool %t", lhs, k.V)
	case Alloca:
		return fmt.Sprintf("%salloca %s ; %s", lhs, k.Elem, k.Name)
	case Arg:
		return fmt.Sprintf("%sarg %d", lhs, k.Index)
	case GlobalRef:
		return fmt.Sprintf("%sglobal_ref %s", lhs, k.Name)
	case Load:
		return fmt.Sprintf("%sload %%%d", lhs, k.Ptr)
	case Store:
		return fmt.Sprintf("store %%%d -> %%%d", k.Val, k.Ptr)
	case FieldPtr:
		return fmt.Sprintf("%sfield_ptr %%%d, %d", lhs, k.Ptr, k.Index)
	case Extract:
		return fmt.Sprintf("%sextract %%%d, %d", lhs, k.Agg, k.Index)
	case Compose:
		return fmt.Sprintf("%scompose %s %s", lhs, k.Ty, valueList(k.Elems))
	case Binary:
		return fmt.Sprintf("%sbinary %s %%%d, %%%d", lhs, k.Op, k.L, k.R)
	case Unary:
		op := "neg"
		if k.Op == OpNot {
			op = "not"
		}
		return fmt.Sprintf("%sunary %s %%%d", lhs, op, k.V)
	case Call:
		return fmt.Sprintf("%scall %s%s", lhs, k.Callee, valueList(k.Args))
	case MakeClosure:
		return fmt.Sprintf("%smake_closure #%d%s", lhs, k.ID, valueList(k.Args))
	case ClosureAdd:
		return fmt.Sprintf("%sclosure_add %%%d, %%%d", lhs, k.L, k.R)
	case ClosureMul:
		return fmt.Sprintf("%sclosure_mul %%%d, %%%d", lhs, k.W, k.C)
	case GlobalValue:
		return fmt.Sprintf("%sglobal_value %s: %s", lhs, k.Field, k.Ty)
	case Ret:
		if k.HasVal {
			return fmt.Sprintf("ret %%%d", k.Val)
		}
		return "ret"
	case Br:
		return fmt.Sprintf("br %d", k.Target)
	case CondBr:
		return fmt.Sprintf("cond_br %%%d, %d, %d", k.Cond, k.Then, k.Else)
	default:
		return lhs + "?"
	}
}

func valueList(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprintf("%%%d", v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
