package codegen

import (
	"strings"
	"testing"

	"github.com/gogpu/tsl/closure"
)

// buildScale returns a module with scale(x float) float { return x * 2 }.
func buildScale() *Module {
	m := NewModule("scale")
	fn := m.NewFunction("scale", []Param{{Name: "x", Ty: FloatType{}}}, FloatType{})
	b := NewBuilder(fn)
	x := b.Arg(0)
	two := b.ConstFloat(2)
	b.Ret(b.Binary(OpMul, x, two))
	return m
}

func TestEngineScalarFunction(t *testing.T) {
	e := NewExecutionEngine()
	e.AddModule(buildScale())
	got, err := e.Call("scale", float32(3))
	if err != nil {
		t.Fatal(err)
	}
	if got != float32(6) {
		t.Errorf("scale(3) = %v, want 6", got)
	}
}

func TestEngineOutputParameter(t *testing.T) {
	m := NewModule("out")
	fn := m.NewFunction("double_into", []Param{
		{Name: "x", Ty: FloatType{}},
		{Name: "result", Ty: FloatType{}, Output: true},
	}, VoidType{})
	b := NewBuilder(fn)
	x := b.Arg(0)
	out := b.Arg(1)
	two := b.ConstFloat(2)
	b.Store(out, b.Binary(OpMul, x, two))
	b.RetVoid()

	e := NewExecutionEngine()
	e.AddModule(m)
	call, err := e.FunctionAddress("double_into")
	if err != nil {
		t.Fatal(err)
	}
	var result float32
	call(float32(21), &result)
	if result != 42 {
		t.Errorf("result = %v, want 42", result)
	}
}

func TestEngineBranching(t *testing.T) {
	m := NewModule("branch")
	fn := m.NewFunction("abs", []Param{{Name: "x", Ty: IntType{}}}, IntType{})
	b := NewBuilder(fn)
	x := b.Arg(0)
	zero := b.ConstInt(0)
	neg := b.NewBlock("neg")
	pos := b.NewBlock("pos")
	b.CondBr(b.Binary(OpLt, x, zero), neg, pos)
	b.SetInsertPoint(neg)
	b.Ret(b.Unary(OpNeg, x))
	b.SetInsertPoint(pos)
	b.Ret(x)

	e := NewExecutionEngine()
	e.AddModule(m)
	for _, tt := range []struct {
		in, want int32
	}{
		{-5, 5},
		{7, 7},
		{0, 0},
	} {
		got, err := e.Call("abs", tt.in)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("abs(%d) = %v, want %d", tt.in, got, tt.want)
		}
	}
}

func TestEngineCrossModuleCall(t *testing.T) {
	callee := buildScale()

	caller := NewModule("caller")
	caller.Declare("scale", []Type{FloatType{}}, FloatType{})
	fn := caller.NewFunction("scale_twice", []Param{{Name: "x", Ty: FloatType{}}}, FloatType{})
	b := NewBuilder(fn)
	x := b.Arg(0)
	once := b.Call("scale", []Value{x}, FloatType{})
	b.Ret(b.Call("scale", []Value{once}, FloatType{}))

	e := NewExecutionEngine()
	e.AddModule(caller)
	e.AddModule(callee)
	got, err := e.Call("scale_twice", float32(3))
	if err != nil {
		t.Fatal(err)
	}
	if got != float32(12) {
		t.Errorf("scale_twice(3) = %v, want 12", got)
	}
}

func TestEngineModuleScopedResolution(t *testing.T) {
	// Both modules define helper; each caller must bind to its own.
	mk := func(name string, ret float32) *Module {
		m := NewModule(name)
		h := m.NewFunction("helper", nil, FloatType{})
		hb := NewBuilder(h)
		hb.Ret(hb.ConstFloat(ret))
		fn := m.NewFunction(name+"_entry", nil, FloatType{})
		b := NewBuilder(fn)
		b.Ret(b.Call("helper", nil, FloatType{}))
		return m
	}
	e := NewExecutionEngine()
	e.AddModule(mk("a", 1))
	e.AddModule(mk("b", 2))
	got, err := e.Call("b_entry")
	if err != nil {
		t.Fatal(err)
	}
	if got != float32(2) {
		t.Errorf("b_entry() = %v, want 2 from its own helper", got)
	}
}

func TestEngineLocalsAndVectors(t *testing.T) {
	m := NewModule("vec")
	fn := m.NewFunction("sum3", []Param{{Name: "v", Ty: Float3Type{}}}, FloatType{})
	b := NewBuilder(fn)
	v := b.Arg(0)
	slot := b.Alloca(Float3Type{}, "v_local")
	b.Store(slot, v)
	x := b.Load(b.FieldPtr(slot, 0))
	y := b.Load(b.FieldPtr(slot, 1))
	z := b.Load(b.FieldPtr(slot, 2))
	b.Ret(b.Binary(OpAdd, b.Binary(OpAdd, x, y), z))

	e := NewExecutionEngine()
	e.AddModule(m)
	got, err := e.Call("sum3", [3]float32{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if got != float32(6) {
		t.Errorf("sum3 = %v, want 6", got)
	}
}

func TestEngineStructFields(t *testing.T) {
	st := StructType{Name: "Pair", Fields: []Field{
		{Name: "a", Type: FloatType{}},
		{Name: "b", Type: FloatType{}},
	}}
	m := NewModule("structs")
	fn := m.NewFunction("pair_sum", []Param{{Name: "x", Ty: FloatType{}}}, FloatType{})
	b := NewBuilder(fn)
	x := b.Arg(0)
	slot := b.Alloca(st, "p")
	b.Store(b.FieldPtr(slot, 0), x)
	b.Store(b.FieldPtr(slot, 1), b.ConstFloat(10))
	a := b.Load(b.FieldPtr(slot, 0))
	bb := b.Load(b.FieldPtr(slot, 1))
	b.Ret(b.Binary(OpAdd, a, bb))

	e := NewExecutionEngine()
	e.AddModule(m)
	got, err := e.Call("pair_sum", float32(5))
	if err != nil {
		t.Fatal(err)
	}
	if got != float32(15) {
		t.Errorf("pair_sum(5) = %v, want 15", got)
	}
}

func TestEngineClosureConstruction(t *testing.T) {
	vars := []closure.Var{{Name: "albedo", Type: closure.VarFloat3}}
	m := NewModule("closures")
	fn := m.NewFunction("make_lambert", []Param{
		{Name: "albedo", Ty: Float3Type{}},
	}, ClosureType{})
	b := NewBuilder(fn)
	leaf := b.MakeClosure(7, vars, []Value{b.Arg(0)})
	w := b.ConstFloat(0.5)
	b.Ret(b.ClosureMul(w, leaf))

	e := NewExecutionEngine()
	e.AddModule(m)
	got, err := e.Call("make_lambert", [3]float32{1, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	mul, ok := got.(closure.TreeNode)
	if !ok {
		t.Fatalf("result is %T, want a closure tree node", got)
	}
	mn, ok := mul.(*closure.MulNode)
	if !ok {
		t.Fatalf("root is %T, want *MulNode", mul)
	}
	if mn.Weight != 0.5 {
		t.Errorf("weight = %v, want 0.5", mn.Weight)
	}
	leafNode, ok := mn.Closure.(*closure.LeafNode)
	if !ok {
		t.Fatalf("child is %T, want *LeafNode", mn.Closure)
	}
	if leafNode.ID != 7 {
		t.Errorf("leaf identity = %d, want 7", leafNode.ID)
	}
	decoded, err := closure.DecodePayload(vars, leafNode.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if decoded[0] != [3]float32{1, 0, 0} {
		t.Errorf("albedo = %v, want {1 0 0}", decoded[0])
	}
}

type testGlobals map[string]any

func (g testGlobals) GlobalValue(name string) (any, bool) {
	v, ok := g[name]
	return v, ok
}

func TestEngineGlobalValue(t *testing.T) {
	m := NewModule("globals")
	fn := m.NewFunction("read_time", []Param{
		{Name: "result", Ty: FloatType{}, Output: true},
	}, VoidType{})
	fn.HasGlobals = true
	b := NewBuilder(fn)
	out := b.Arg(0)
	b.Store(out, b.GlobalValue("time", FloatType{}))
	b.RetVoid()

	e := NewExecutionEngine()
	e.AddModule(m)
	call, err := e.FunctionAddress("read_time")
	if err != nil {
		t.Fatal(err)
	}
	var result float32
	call(&result, testGlobals{"time": float32(1.5)})
	if result != 1.5 {
		t.Errorf("result = %v, want 1.5", result)
	}

	// Nil state resolves to the zero value.
	result = 99
	call(&result, nil)
	if result != 0 {
		t.Errorf("result with no state = %v, want 0", result)
	}
}

func TestEngineModuleGlobals(t *testing.T) {
	m := NewModule("modglobals")
	m.AddGlobal("counter", IntType{}, int32(10))
	fn := m.NewFunction("bump", nil, IntType{})
	b := NewBuilder(fn)
	g := b.GlobalRef("counter", IntType{})
	next := b.Binary(OpAdd, b.Load(g), b.ConstInt(1))
	b.Store(g, next)
	b.Ret(next)

	e := NewExecutionEngine()
	e.AddModule(m)
	for want := int32(11); want <= 13; want++ {
		got, err := e.Call("bump")
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("bump() = %v, want %d", got, want)
		}
	}
}

func TestCloneIndependence(t *testing.T) {
	m := buildScale()
	clone := m.Clone()
	clone.Functions[0].Instrs[1].Kind = ConstFloat{V: 100}
	if m.Functions[0].Instrs[1].Kind != (ConstFloat{V: 2}) {
		t.Error("mutating the clone changed the source module")
	}
}

func TestOptimizeConstantFolding(t *testing.T) {
	m := NewModule("fold")
	fn := m.NewFunction("f", nil, FloatType{})
	b := NewBuilder(fn)
	l := b.ConstFloat(3)
	r := b.ConstFloat(4)
	b.Ret(b.Binary(OpAdd, l, r))

	Optimize(m)
	ret := fn.Instrs[fn.Blocks[0].Vals[len(fn.Blocks[0].Vals)-1]].Kind.(Ret)
	folded, ok := fn.Instrs[ret.Val].Kind.(ConstFloat)
	if !ok || folded.V != 7 {
		t.Errorf("return operand is %v, want folded constant 7", fn.Instrs[ret.Val].Kind)
	}
}

func TestOptimizeIdentities(t *testing.T) {
	m := NewModule("ident")
	fn := m.NewFunction("f", []Param{{Name: "x", Ty: FloatType{}}}, FloatType{})
	b := NewBuilder(fn)
	x := b.Arg(0)
	zero := b.ConstFloat(0)
	one := b.ConstFloat(1)
	sum := b.Binary(OpAdd, x, zero)
	b.Ret(b.Binary(OpMul, sum, one))

	Optimize(m)
	ret := fn.Instrs[fn.Blocks[0].Vals[len(fn.Blocks[0].Vals)-1]].Kind.(Ret)
	if _, ok := fn.Instrs[ret.Val].Kind.(Arg); !ok {
		t.Errorf("return operand is %v, want the argument itself", fn.Instrs[ret.Val].Kind)
	}

	e := NewExecutionEngine()
	e.AddModule(m)
	got, err := e.Call("f", float32(9))
	if err != nil {
		t.Fatal(err)
	}
	if got != float32(9) {
		t.Errorf("f(9) = %v after optimization, want 9", got)
	}
}

func TestOptimizeCSE(t *testing.T) {
	m := NewModule("cse")
	fn := m.NewFunction("f", []Param{{Name: "x", Ty: FloatType{}}}, FloatType{})
	b := NewBuilder(fn)
	x := b.Arg(0)
	a := b.Binary(OpMul, x, x)
	c := b.Binary(OpMul, x, x)
	b.Ret(b.Binary(OpAdd, a, c))

	Optimize(m)
	count := 0
	for _, v := range fn.Blocks[0].Vals {
		if k, ok := fn.Instrs[v].Kind.(Binary); ok && k.Op == OpMul {
			count++
		}
	}
	if count != 1 {
		t.Errorf("%d multiplies survive, want 1", count)
	}

	e := NewExecutionEngine()
	e.AddModule(m)
	got, err := e.Call("f", float32(3))
	if err != nil {
		t.Fatal(err)
	}
	if got != float32(18) {
		t.Errorf("f(3) = %v after CSE, want 18", got)
	}
}

func TestSimplifyCFGRemovesUnreachable(t *testing.T) {
	m := NewModule("cfg")
	fn := m.NewFunction("f", nil, IntType{})
	b := NewBuilder(fn)
	dead := b.NewBlock("dead")
	b.Ret(b.ConstInt(1))
	b.SetInsertPoint(dead)
	b.Ret(b.ConstInt(2))

	Optimize(m)
	if len(fn.Blocks) != 1 {
		t.Errorf("%d blocks survive, want 1", len(fn.Blocks))
	}
}

func TestVerify(t *testing.T) {
	t.Run("valid module passes", func(t *testing.T) {
		if err := Verify(buildScale()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("missing terminator", func(t *testing.T) {
		m := NewModule("bad")
		fn := m.NewFunction("f", nil, VoidType{})
		b := NewBuilder(fn)
		b.ConstInt(1)
		if err := Verify(m); err == nil {
			t.Error("expected verification failure")
		}
	})

	t.Run("mismatched operand types", func(t *testing.T) {
		m := NewModule("bad")
		fn := m.NewFunction("f", nil, FloatType{})
		b := NewBuilder(fn)
		i := b.ConstInt(1)
		f := b.ConstFloat(1)
		b.Ret(b.Binary(OpAdd, i, f))
		if err := Verify(m); err == nil {
			t.Error("expected verification failure")
		}
	})

	t.Run("call to undeclared function", func(t *testing.T) {
		m := NewModule("bad")
		fn := m.NewFunction("f", nil, FloatType{})
		b := NewBuilder(fn)
		b.Ret(b.Call("nowhere", nil, FloatType{}))
		if err := Verify(m); err == nil {
			t.Error("expected verification failure")
		}
	})

	t.Run("return type mismatch", func(t *testing.T) {
		m := NewModule("bad")
		fn := m.NewFunction("f", nil, FloatType{})
		b := NewBuilder(fn)
		b.Ret(b.ConstInt(1))
		if err := Verify(m); err == nil {
			t.Error("expected verification failure")
		}
	})
}

func TestPrintListsFunctions(t *testing.T) {
	out := Print(buildScale())
	for _, want := range []string{"module scale", "func scale", "binary *", "ret"} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q:\n%s", want, out)
		}
	}
}
