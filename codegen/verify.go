package codegen

import (
	"errors"
	"fmt"
)

// ErrVerification is wrapped by every error returned from Verify.
var ErrVerification = errors.New("function verification failed")

// Verify checks the structural and type invariants of every function in
// the module: blocks end in a single terminator, operand handles are in
// range, operand types line up and calls match a known signature.
func Verify(m *Module) error {
	for _, fn := range m.Functions {
		if err := verifyFunction(m, fn); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrVerification, fn.Name, err)
		}
	}
	return nil
}

func verifyFunction(m *Module, fn *Function) error {
	if len(fn.Instrs) != len(fn.Types) {
		return fmt.Errorf("instruction arena and type arena disagree")
	}
	if len(fn.Blocks) == 0 {
		return fmt.Errorf("no blocks")
	}
	check := func(v Value) error {
		if int(v) >= len(fn.Instrs) {
			return fmt.Errorf("operand %d out of range", v)
		}
		return nil
	}
	for bi, b := range fn.Blocks {
		if len(b.Vals) == 0 {
			return fmt.Errorf("block %d is empty", bi)
		}
		for vi, v := range b.Vals {
			if err := check(v); err != nil {
				return err
			}
			k := fn.Instrs[v].Kind
			last := vi == len(b.Vals)-1
			if IsTerminator(k) != last {
				if last {
					return fmt.Errorf("block %d does not end in a terminator", bi)
				}
				return fmt.Errorf("block %d has a terminator before its end", bi)
			}
			if err := verifyInstr(m, fn, v, k); err != nil {
				return fmt.Errorf("block %d: %v", bi, err)
			}
		}
	}
	return nil
}

func verifyInstr(m *Module, fn *Function, v Value, kind InstrKind) error {
	operands := func(vs ...Value) error {
		for _, o := range vs {
			if int(o) >= len(fn.Instrs) {
				return fmt.Errorf("operand %d out of range", o)
			}
		}
		return nil
	}
	switch k := kind.(type) {
	case Arg:
		if k.Index < 0 || k.Index >= len(fn.Params) {
			return fmt.Errorf("argument index %d out of range", k.Index)
		}
	case Load:
		if err := operands(k.Ptr); err != nil {
			return err
		}
		pt, ok := fn.TypeOf(k.Ptr).(PointerType)
		if !ok {
			return fmt.Errorf("load from non-pointer %s", fn.TypeOf(k.Ptr))
		}
		if !Equal(pt.Elem, fn.TypeOf(v)) {
			return fmt.Errorf("load type %s does not match pointee %s", fn.TypeOf(v), pt.Elem)
		}
	case Store:
		if err := operands(k.Ptr, k.Val); err != nil {
			return err
		}
		pt, ok := fn.TypeOf(k.Ptr).(PointerType)
		if !ok {
			return fmt.Errorf("store to non-pointer %s", fn.TypeOf(k.Ptr))
		}
		if !Equal(pt.Elem, fn.TypeOf(k.Val)) {
			return fmt.Errorf("store of %s through pointer to %s", fn.TypeOf(k.Val), pt.Elem)
		}
	case FieldPtr:
		if err := operands(k.Ptr); err != nil {
			return err
		}
		pt, ok := fn.TypeOf(k.Ptr).(PointerType)
		if !ok {
			return fmt.Errorf("field address into non-pointer %s", fn.TypeOf(k.Ptr))
		}
		switch et := pt.Elem.(type) {
		case StructType:
			if k.Index < 0 || k.Index >= len(et.Fields) {
				return fmt.Errorf("field index %d out of range for %s", k.Index, et.Name)
			}
		case Float3Type, Float4Type, MatrixType:
			n := VectorSize(pt.Elem)
			if n == 0 {
				n = 16
			}
			if k.Index < 0 || k.Index >= n {
				return fmt.Errorf("component index %d out of range for %s", k.Index, pt.Elem)
			}
		default:
			return fmt.Errorf("field address into %s", pt.Elem)
		}
	case Extract:
		if err := operands(k.Agg); err != nil {
			return err
		}
	case Compose:
		if err := operands(k.Elems...); err != nil {
			return err
		}
		if n := VectorSize(k.Ty); n != 0 && len(k.Elems) != n {
			return fmt.Errorf("%s composed from %d elements", k.Ty, len(k.Elems))
		}
	case Binary:
		if err := operands(k.L, k.R); err != nil {
			return err
		}
		lt, rt := fn.TypeOf(k.L), fn.TypeOf(k.R)
		if !Equal(lt, rt) {
			return fmt.Errorf("operands of %s have mismatched types %s and %s", k.Op, lt, rt)
		}
		switch k.Op {
		case OpAnd, OpOr:
			if !Equal(lt, BoolType{}) {
				return fmt.Errorf("logical %s on %s", k.Op, lt)
			}
		case OpMod:
			if !Equal(lt, IntType{}) && !Equal(lt, FloatType{}) && !Equal(lt, DoubleType{}) {
				return fmt.Errorf("modulo on %s", lt)
			}
		case OpAdd, OpSub, OpMul, OpDiv:
			if !IsNumeric(lt) {
				return fmt.Errorf("arithmetic %s on %s", k.Op, lt)
			}
		}
	case Unary:
		if err := operands(k.V); err != nil {
			return err
		}
		vt := fn.TypeOf(k.V)
		if k.Op == OpNot && !Equal(vt, BoolType{}) {
			return fmt.Errorf("logical not on %s", vt)
		}
		if k.Op == OpNeg && !IsNumeric(vt) {
			return fmt.Errorf("negation of %s", vt)
		}
	case Call:
		if err := operands(k.Args...); err != nil {
			return err
		}
		params, ret, ok := lookupSignature(m, k.Callee)
		if !ok {
			return fmt.Errorf("call to undeclared function %q", k.Callee)
		}
		if len(k.Args) != len(params) {
			return fmt.Errorf("call to %q with %d arguments, want %d", k.Callee, len(k.Args), len(params))
		}
		for i, a := range k.Args {
			if !Equal(fn.TypeOf(a), params[i]) {
				return fmt.Errorf("call to %q: argument %d is %s, want %s", k.Callee, i, fn.TypeOf(a), params[i])
			}
		}
		if !Equal(ret, k.Ret) {
			return fmt.Errorf("call to %q: result recorded as %s, want %s", k.Callee, k.Ret, ret)
		}
	case MakeClosure:
		if err := operands(k.Args...); err != nil {
			return err
		}
		if len(k.Args) != len(k.Vars) {
			return fmt.Errorf("closure construction with %d arguments for %d fields", len(k.Args), len(k.Vars))
		}
	case ClosureAdd:
		if err := operands(k.L, k.R); err != nil {
			return err
		}
		if !Equal(fn.TypeOf(k.L), ClosureType{}) || !Equal(fn.TypeOf(k.R), ClosureType{}) {
			return fmt.Errorf("closure addition on non-closure operands")
		}
	case ClosureMul:
		if err := operands(k.W, k.C); err != nil {
			return err
		}
		if !Equal(fn.TypeOf(k.C), ClosureType{}) {
			return fmt.Errorf("closure scaling of non-closure operand")
		}
	case Ret:
		if k.HasVal {
			if err := operands(k.Val); err != nil {
				return err
			}
			if Equal(fn.Ret, VoidType{}) {
				return fmt.Errorf("value return from void function")
			}
			if !Equal(fn.TypeOf(k.Val), fn.Ret) {
				return fmt.Errorf("return of %s from function returning %s", fn.TypeOf(k.Val), fn.Ret)
			}
		} else if !Equal(fn.Ret, VoidType{}) {
			return fmt.Errorf("bare return from function returning %s", fn.Ret)
		}
	case Br:
		if k.Target < 0 || k.Target >= len(fn.Blocks) {
			return fmt.Errorf("branch target %d out of range", k.Target)
		}
	case CondBr:
		if err := operands(k.Cond); err != nil {
			return err
		}
		if !Equal(fn.TypeOf(k.Cond), BoolType{}) {
			return fmt.Errorf("branch condition is %s", fn.TypeOf(k.Cond))
		}
		if k.Then < 0 || k.Then >= len(fn.Blocks) || k.Else < 0 || k.Else >= len(fn.Blocks) {
			return fmt.Errorf("branch target out of range")
		}
	}
	return nil
}

// lookupSignature finds the parameter and result types for a callee in
// the module's definitions or external declarations.
func lookupSignature(m *Module, name string) ([]Type, Type, bool) {
	for _, fn := range m.Functions {
		if fn.Name != name {
			continue
		}
		params := make([]Type, len(fn.Params))
		for i, p := range fn.Params {
			if p.Output {
				params[i] = PointerType{Elem: p.Ty}
			} else {
				params[i] = p.Ty
			}
		}
		return params, fn.Ret, true
	}
	for _, d := range m.Decls {
		if d.Name == name {
			return d.Params, d.Ret, true
		}
	}
	return nil, nil, false
}
