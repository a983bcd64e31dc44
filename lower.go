package tsl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/tsl/codegen"
	"github.com/gogpu/tsl/syntax"
)

// lower translates the deposited declarations into a backend module.
// The shader entry is emitted under its mangled name so it stays unique
// across the modules linked into one engine; helper functions keep their
// source names, which cross-module scoping keeps private to the unit.
func (c *compiler) lower(name string, entry *syntax.FunctionDecl, mangled string) (*codegen.Module, error) {
	m := codegen.NewModule(name)

	m.Declare(closureAddFunc,
		[]codegen.Type{codegen.ClosureType{}, codegen.ClosureType{}}, codegen.ClosureType{})
	m.Declare(closureMulFunc,
		[]codegen.Type{codegen.FloatType{}, codegen.ClosureType{}}, codegen.ClosureType{})
	for cn := range c.closuresTouched {
		reg, ok := c.sys.registry.lookup(cn)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnregisteredClosure, cn)
		}
		params := make([]codegen.Type, len(reg.Vars))
		for i, v := range reg.Vars {
			params[i] = varBackendType(v.Type)
		}
		m.Declare(constructorName(cn), params, codegen.ClosureType{})
	}

	for _, g := range c.globals {
		gt, err := c.backendType(g.Type)
		if err != nil {
			return nil, err
		}
		init, err := c.constInit(g.Init, gt)
		if err != nil {
			return nil, err
		}
		m.AddGlobal(g.Name, gt, init)
	}

	for _, fn := range c.functions {
		fname := fn.Name
		if fn == entry {
			fname = mangled
		}
		if err := c.lowerFunction(m, fn, fname, fn == entry); err != nil {
			return nil, fmt.Errorf("%s: %v", fn.Name, err)
		}
	}
	return m, nil
}

// constInit evaluates a global initializer. Only literal initializers
// are allowed at module scope.
func (c *compiler) constInit(e syntax.Expr, ty codegen.Type) (any, error) {
	if e == nil {
		return nil, nil
	}
	lit, ok := e.(*syntax.Literal)
	if !ok {
		return nil, fmt.Errorf("global initializer must be a literal")
	}
	v, _, err := literalValue(lit)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// local binds a source name to the pointer holding its storage.
type local struct {
	slot codegen.Value
	ty   codegen.Type
}

// funcLowering carries the state of lowering one function body.
type funcLowering struct {
	c      *compiler
	m      *codegen.Module
	b      *codegen.Builder
	decl   *syntax.FunctionDecl
	ret    codegen.Type
	scopes []map[string]local
}

func (c *compiler) lowerFunction(m *codegen.Module, decl *syntax.FunctionDecl, name string, isEntry bool) error {
	ret, err := c.backendType(decl.ReturnType)
	if err != nil {
		return err
	}
	params := make([]codegen.Param, len(decl.Params))
	for i, p := range decl.Params {
		pt, err := c.backendType(p.Type)
		if err != nil {
			return err
		}
		params[i] = codegen.Param{Name: p.Name, Ty: pt, Output: p.Output}
	}
	fn := m.NewFunction(name, params, ret)
	if isEntry && c.usesGlobals {
		fn.HasGlobals = true
	}

	fl := &funcLowering{c: c, m: m, b: codegen.NewBuilder(fn), decl: decl, ret: ret}
	fl.pushScope()

	// Inputs are spilled to locals so bodies can assign to them.
	// Outputs stay as the caller's pointers.
	for i, p := range decl.Params {
		arg := fl.b.Arg(i)
		if p.Output {
			fl.bind(p.Name, local{slot: arg, ty: params[i].Ty})
			continue
		}
		slot := fl.b.Alloca(params[i].Ty, p.Name)
		fl.b.Store(slot, arg)
		fl.bind(p.Name, local{slot: slot, ty: params[i].Ty})
	}

	if err := fl.lowerBlock(decl.Body); err != nil {
		return err
	}
	if !fl.b.Terminated() {
		if _, ok := ret.(codegen.VoidType); !ok {
			return fmt.Errorf("missing return")
		}
		fl.b.RetVoid()
	}
	return nil
}

func (fl *funcLowering) pushScope() {
	fl.scopes = append(fl.scopes, make(map[string]local))
}

func (fl *funcLowering) popScope() {
	fl.scopes = fl.scopes[:len(fl.scopes)-1]
}

func (fl *funcLowering) bind(name string, l local) {
	fl.scopes[len(fl.scopes)-1][name] = l
}

func (fl *funcLowering) resolve(name string) (local, bool) {
	for i := len(fl.scopes) - 1; i >= 0; i-- {
		if l, ok := fl.scopes[i][name]; ok {
			return l, true
		}
	}
	return local{}, false
}

func (fl *funcLowering) lowerBlock(blk *syntax.BlockStmt) error {
	fl.pushScope()
	defer fl.popScope()
	for _, s := range blk.Statements {
		if fl.b.Terminated() {
			break
		}
		if err := fl.lowerStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (fl *funcLowering) lowerStmt(s syntax.Stmt) error {
	switch s := s.(type) {
	case *syntax.BlockStmt:
		return fl.lowerBlock(s)

	case *syntax.VarDecl:
		ty, err := fl.c.backendType(s.Type)
		if err != nil {
			return err
		}
		slot := fl.b.Alloca(ty, s.Name)
		if s.Init != nil {
			v, err := fl.lowerExpr(s.Init, ty)
			if err != nil {
				return err
			}
			if !codegen.Equal(fl.b.Fn.TypeOf(v), ty) {
				return fmt.Errorf("cannot initialize %s %s with %s", ty, s.Name, fl.b.Fn.TypeOf(v))
			}
			fl.b.Store(slot, v)
		}
		fl.bind(s.Name, local{slot: slot, ty: ty})
		return nil

	case *syntax.ReturnStmt:
		if s.Value == nil {
			if _, ok := fl.ret.(codegen.VoidType); !ok {
				return fmt.Errorf("bare return in function returning %s", fl.ret)
			}
			fl.b.RetVoid()
			return nil
		}
		v, err := fl.lowerExpr(s.Value, fl.ret)
		if err != nil {
			return err
		}
		fl.b.Ret(v)
		return nil

	case *syntax.IfStmt:
		return fl.lowerIf(s)

	case *syntax.AssignStmt:
		addr, ty, err := fl.lowerAddr(s.Left)
		if err != nil {
			return err
		}
		v, err := fl.lowerExpr(s.Right, ty)
		if err != nil {
			return err
		}
		if !codegen.Equal(fl.b.Fn.TypeOf(v), ty) {
			return fmt.Errorf("cannot assign %s to %s", fl.b.Fn.TypeOf(v), ty)
		}
		fl.b.Store(addr, v)
		return nil

	case *syntax.ExprStmt:
		_, err := fl.lowerExpr(s.Expr, nil)
		return err

	default:
		return fmt.Errorf("unsupported statement %T", s)
	}
}

func (fl *funcLowering) lowerIf(s *syntax.IfStmt) error {
	cond, err := fl.lowerExpr(s.Condition, codegen.BoolType{})
	if err != nil {
		return err
	}
	if !codegen.Equal(fl.b.Fn.TypeOf(cond), (codegen.BoolType{})) {
		return fmt.Errorf("if condition is %s, not bool", fl.b.Fn.TypeOf(cond))
	}
	// The branch targets are not all known yet, so the conditional
	// branch is emitted with placeholders and patched afterwards.
	head := fl.b.InsertPoint()
	fl.b.CondBr(cond, 0, 0)
	headVals := fl.b.Fn.Blocks[head].Vals
	branch := headVals[len(headVals)-1]

	thenBlk := fl.b.NewBlock("then")
	fl.b.SetInsertPoint(thenBlk)
	if err := fl.lowerBlock(s.Body); err != nil {
		return err
	}
	thenOpen := !fl.b.Terminated()
	thenEnd := fl.b.InsertPoint()

	elseBlk := -1
	elseOpen := false
	elseEnd := -1
	if s.Else != nil {
		elseBlk = fl.b.NewBlock("else")
		fl.b.SetInsertPoint(elseBlk)
		if err := fl.lowerStmt(s.Else); err != nil {
			return err
		}
		elseOpen = !fl.b.Terminated()
		elseEnd = fl.b.InsertPoint()
	}

	// A merge block exists only when some path can reach it.
	needCont := thenOpen || elseOpen || s.Else == nil
	cont := -1
	if needCont {
		cont = fl.b.NewBlock("endif")
	}
	elseTarget := cont
	if s.Else != nil {
		elseTarget = elseBlk
	}
	fl.b.Fn.Instrs[branch].Kind = codegen.CondBr{Cond: cond, Then: thenBlk, Else: elseTarget}

	if thenOpen {
		fl.b.SetInsertPoint(thenEnd)
		fl.b.Br(cont)
	}
	if elseOpen {
		fl.b.SetInsertPoint(elseEnd)
		fl.b.Br(cont)
	}
	if needCont {
		fl.b.SetInsertPoint(cont)
	} else {
		// Both branches returned; anything that follows is
		// unreachable and block lowering stops emitting.
		fl.b.SetInsertPoint(thenEnd)
	}
	return nil
}

// lowerAddr lowers an lvalue to the address of its storage.
func (fl *funcLowering) lowerAddr(e syntax.Expr) (codegen.Value, codegen.Type, error) {
	switch e := e.(type) {
	case *syntax.Ident:
		if l, ok := fl.resolve(e.Name); ok {
			return l.slot, l.ty, nil
		}
		if g, ok := fl.globalNamed(e.Name); ok {
			gt, err := fl.c.backendType(g.Type)
			if err != nil {
				return 0, nil, err
			}
			return fl.b.GlobalRef(e.Name, gt), gt, nil
		}
		return 0, nil, fmt.Errorf("undefined variable %s", e.Name)

	case *syntax.MemberExpr:
		base, baseTy, err := fl.lowerAddr(e.Expr)
		if err != nil {
			return 0, nil, err
		}
		idx, fieldTy, err := memberIndex(baseTy, e.Member)
		if err != nil {
			return 0, nil, err
		}
		return fl.b.FieldPtr(base, idx), fieldTy, nil

	default:
		return 0, nil, fmt.Errorf("expression is not assignable")
	}
}

func (fl *funcLowering) globalNamed(name string) (*syntax.VarDecl, bool) {
	for _, g := range fl.c.globals {
		if g.Name == name {
			return g, true
		}
	}
	return nil, false
}

// memberIndex resolves a member name against the base type.
func memberIndex(baseTy codegen.Type, member string) (int, codegen.Type, error) {
	switch bt := baseTy.(type) {
	case codegen.StructType:
		for i, f := range bt.Fields {
			if f.Name == member {
				return i, f.Type, nil
			}
		}
		return 0, nil, fmt.Errorf("struct %s has no member %s", bt.Name, member)
	case codegen.Float3Type, codegen.Float4Type:
		idx := strings.IndexByte("xyzw", member[0])
		if len(member) != 1 || idx < 0 || idx >= vectorLen(baseTy) {
			return 0, nil, fmt.Errorf("%s has no component %s", baseTy, member)
		}
		return idx, codegen.FloatType{}, nil
	default:
		return 0, nil, fmt.Errorf("%s has no members", baseTy)
	}
}

func vectorLen(t codegen.Type) int {
	if n := codegen.VectorSize(t); n > 0 {
		return n
	}
	return 0
}

// lowerExpr lowers an expression to a value. The hint, when non-nil,
// resolves constructs whose type the expression itself cannot pin down,
// such as global_value reads.
func (fl *funcLowering) lowerExpr(e syntax.Expr, hint codegen.Type) (codegen.Value, error) {
	switch e := e.(type) {
	case *syntax.Literal:
		v, ty, err := literalValue(e)
		if err != nil {
			return 0, err
		}
		switch ty.(type) {
		case codegen.IntType:
			return fl.b.ConstInt(v.(int32)), nil
		case codegen.FloatType:
			return fl.b.ConstFloat(v.(float32)), nil
		case codegen.DoubleType:
			return fl.b.ConstDouble(v.(float64)), nil
		default:
			return fl.b.ConstBool(v.(bool)), nil
		}

	case *syntax.Ident:
		addr, _, err := fl.lowerAddr(e)
		if err != nil {
			return 0, err
		}
		return fl.b.Load(addr), nil

	case *syntax.MemberExpr:
		base, err := fl.lowerExpr(e.Expr, nil)
		if err != nil {
			return 0, err
		}
		idx, _, err := memberIndex(fl.b.Fn.TypeOf(base), e.Member)
		if err != nil {
			return 0, err
		}
		return fl.b.Extract(base, idx), nil

	case *syntax.UnaryExpr:
		v, err := fl.lowerExpr(e.Operand, hint)
		if err != nil {
			return 0, err
		}
		op := codegen.OpNeg
		if e.Op == syntax.TokenBang {
			op = codegen.OpNot
		}
		return fl.b.Unary(op, v), nil

	case *syntax.BinaryExpr:
		return fl.lowerBinary(e)

	case *syntax.ConstructExpr:
		return fl.lowerConstruct(e)

	case *syntax.CallExpr:
		return fl.lowerCall(e)

	case *syntax.MakeClosureExpr:
		return fl.lowerMakeClosure(e)

	case *syntax.GlobalValueExpr:
		if hint == nil {
			return 0, fmt.Errorf("cannot infer the type of global_value<%s>; use it in a typed context", e.Name)
		}
		return fl.b.GlobalValue(e.Name, hint), nil

	default:
		return 0, fmt.Errorf("unsupported expression %T", e)
	}
}

func literalValue(lit *syntax.Literal) (any, codegen.Type, error) {
	switch lit.Kind {
	case syntax.TokenIntLiteral:
		n, err := strconv.ParseInt(lit.Value, 10, 32)
		if err != nil {
			return nil, nil, fmt.Errorf("bad int literal %q", lit.Value)
		}
		return int32(n), codegen.IntType{}, nil
	case syntax.TokenFloatLiteral:
		n, err := strconv.ParseFloat(strings.TrimSuffix(lit.Value, "f"), 32)
		if err != nil {
			return nil, nil, fmt.Errorf("bad float literal %q", lit.Value)
		}
		return float32(n), codegen.FloatType{}, nil
	case syntax.TokenDoubleLiteral:
		n, err := strconv.ParseFloat(strings.TrimSuffix(lit.Value, "d"), 64)
		if err != nil {
			return nil, nil, fmt.Errorf("bad double literal %q", lit.Value)
		}
		return n, codegen.DoubleType{}, nil
	case syntax.TokenTrue:
		return true, codegen.BoolType{}, nil
	case syntax.TokenFalse:
		return false, codegen.BoolType{}, nil
	default:
		return nil, nil, fmt.Errorf("bad literal kind %s", lit.Kind)
	}
}

var binOps = map[syntax.TokenKind]codegen.BinOp{
	syntax.TokenPlus:         codegen.OpAdd,
	syntax.TokenMinus:        codegen.OpSub,
	syntax.TokenStar:         codegen.OpMul,
	syntax.TokenSlash:        codegen.OpDiv,
	syntax.TokenPercent:      codegen.OpMod,
	syntax.TokenEqualEqual:   codegen.OpEq,
	syntax.TokenBangEqual:    codegen.OpNe,
	syntax.TokenLess:         codegen.OpLt,
	syntax.TokenLessEqual:    codegen.OpLe,
	syntax.TokenGreater:      codegen.OpGt,
	syntax.TokenGreaterEqual: codegen.OpGe,
	syntax.TokenAmpAmp:       codegen.OpAnd,
	syntax.TokenPipePipe:     codegen.OpOr,
}

func (fl *funcLowering) lowerBinary(e *syntax.BinaryExpr) (codegen.Value, error) {
	op, ok := binOps[e.Op]
	if !ok {
		return 0, fmt.Errorf("unsupported operator %s", e.Op)
	}
	l, err := fl.lowerExpr(e.Left, nil)
	if err != nil {
		return 0, err
	}
	r, err := fl.lowerExpr(e.Right, fl.b.Fn.TypeOf(l))
	if err != nil {
		return 0, err
	}
	lt, rt := fl.b.Fn.TypeOf(l), fl.b.Fn.TypeOf(r)

	// Closure arithmetic lowers to calls into the registry module.
	lc := codegen.Equal(lt, codegen.ClosureType{})
	rc := codegen.Equal(rt, codegen.ClosureType{})
	switch {
	case lc && rc && op == codegen.OpAdd:
		return fl.b.Call(closureAddFunc, []codegen.Value{l, r}, codegen.ClosureType{}), nil
	case lc && op == codegen.OpMul && codegen.Equal(rt, codegen.FloatType{}):
		return fl.b.Call(closureMulFunc, []codegen.Value{r, l}, codegen.ClosureType{}), nil
	case rc && op == codegen.OpMul && codegen.Equal(lt, codegen.FloatType{}):
		return fl.b.Call(closureMulFunc, []codegen.Value{l, r}, codegen.ClosureType{}), nil
	case lc || rc:
		return 0, fmt.Errorf("unsupported closure operation %s", e.Op)
	}

	// Scalar operands broadcast against vectors.
	if codegen.VectorSize(lt) > 0 && codegen.Equal(rt, codegen.FloatType{}) {
		r = fl.broadcast(r, lt)
		rt = lt
	} else if codegen.VectorSize(rt) > 0 && codegen.Equal(lt, codegen.FloatType{}) {
		l = fl.broadcast(l, rt)
		lt = rt
	}
	if !codegen.Equal(lt, rt) {
		return 0, fmt.Errorf("mismatched operands %s and %s for %s", lt, rt, e.Op)
	}
	return fl.b.Binary(op, l, r), nil
}

func (fl *funcLowering) broadcast(v codegen.Value, ty codegen.Type) codegen.Value {
	n := codegen.VectorSize(ty)
	elems := make([]codegen.Value, n)
	for i := range elems {
		elems[i] = v
	}
	return fl.b.Compose(ty, elems)
}

func (fl *funcLowering) lowerConstruct(e *syntax.ConstructExpr) (codegen.Value, error) {
	ty, err := fl.c.backendType(e.Type)
	if err != nil {
		return 0, err
	}
	n := codegen.VectorSize(ty)
	if n == 0 {
		return 0, fmt.Errorf("%s is not constructible", ty)
	}
	switch len(e.Args) {
	case 1:
		v, err := fl.lowerExpr(e.Args[0], codegen.FloatType{})
		if err != nil {
			return 0, err
		}
		return fl.broadcast(v, ty), nil
	case n:
		elems := make([]codegen.Value, n)
		for i, a := range e.Args {
			v, err := fl.lowerExpr(a, codegen.FloatType{})
			if err != nil {
				return 0, err
			}
			elems[i] = v
		}
		return fl.b.Compose(ty, elems), nil
	default:
		return 0, fmt.Errorf("%s constructed from %d arguments", ty, len(e.Args))
	}
}

func (fl *funcLowering) lowerCall(e *syntax.CallExpr) (codegen.Value, error) {
	var decl *syntax.FunctionDecl
	for _, fn := range fl.c.functions {
		if fn.Name == e.Func.Name && !fn.Shader {
			decl = fn
			break
		}
	}
	if decl == nil {
		return 0, fmt.Errorf("undefined function %s", e.Func.Name)
	}
	if len(e.Args) != len(decl.Params) {
		return 0, fmt.Errorf("%s called with %d arguments, want %d", decl.Name, len(e.Args), len(decl.Params))
	}
	args := make([]codegen.Value, len(e.Args))
	for i, a := range e.Args {
		p := decl.Params[i]
		pt, err := fl.c.backendType(p.Type)
		if err != nil {
			return 0, err
		}
		if p.Output {
			addr, aty, err := fl.lowerAddr(a)
			if err != nil {
				return 0, fmt.Errorf("out argument %s: %v", p.Name, err)
			}
			if !codegen.Equal(aty, pt) {
				return 0, fmt.Errorf("out argument %s is %s, want %s", p.Name, aty, pt)
			}
			args[i] = addr
			continue
		}
		v, err := fl.lowerExpr(a, pt)
		if err != nil {
			return 0, err
		}
		if !codegen.Equal(fl.b.Fn.TypeOf(v), pt) {
			return 0, fmt.Errorf("argument %d of %s is %s, want %s", i, decl.Name, fl.b.Fn.TypeOf(v), pt)
		}
		args[i] = v
	}
	ret, err := fl.c.backendType(decl.ReturnType)
	if err != nil {
		return 0, err
	}
	return fl.b.Call(decl.Name, args, ret), nil
}

func (fl *funcLowering) lowerMakeClosure(e *syntax.MakeClosureExpr) (codegen.Value, error) {
	reg, ok := fl.c.sys.registry.lookup(e.Closure)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnregisteredClosure, e.Closure)
	}
	if len(e.Args) != len(reg.Vars) {
		return 0, fmt.Errorf("closure %s takes %d arguments, got %d", e.Closure, len(reg.Vars), len(e.Args))
	}
	args := make([]codegen.Value, len(e.Args))
	for i, a := range e.Args {
		pt := varBackendType(reg.Vars[i].Type)
		v, err := fl.lowerExpr(a, pt)
		if err != nil {
			return 0, err
		}
		if !codegen.Equal(fl.b.Fn.TypeOf(v), pt) {
			return 0, fmt.Errorf("closure %s field %s is %s, want %s",
				e.Closure, reg.Vars[i].Name, fl.b.Fn.TypeOf(v), pt)
		}
		args[i] = v
	}
	return fl.b.Call(constructorName(e.Closure), args, codegen.ClosureType{}), nil
}
