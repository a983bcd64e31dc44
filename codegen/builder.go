package codegen

import "github.com/gogpu/tsl/closure"

// Builder appends instructions to a function, tracking the result type
// of every emitted value and the current insertion block.
type Builder struct {
	Fn    *Function
	block int
}

// NewBuilder returns a builder positioned on a fresh entry block.
func NewBuilder(fn *Function) *Builder {
	b := &Builder{Fn: fn}
	if len(fn.Blocks) == 0 {
		b.NewBlock("entry")
	}
	b.block = 0
	return b
}

// NewBlock appends an empty basic block and returns its index. The
// insertion point is unchanged.
func (b *Builder) NewBlock(name string) int {
	b.Fn.Blocks = append(b.Fn.Blocks, Block{Name: name})
	return len(b.Fn.Blocks) - 1
}

// SetInsertPoint moves the insertion point to the block at idx.
func (b *Builder) SetInsertPoint(idx int) {
	b.block = idx
}

// InsertPoint returns the index of the current insertion block.
func (b *Builder) InsertPoint() int {
	return b.block
}

// Terminated reports whether the current block already ends in a
// terminator.
func (b *Builder) Terminated() bool {
	vals := b.Fn.Blocks[b.block].Vals
	if len(vals) == 0 {
		return false
	}
	return IsTerminator(b.Fn.Instrs[vals[len(vals)-1]].Kind)
}

func (b *Builder) emit(k InstrKind, ty Type) Value {
	v := Value(len(b.Fn.Instrs))
	b.Fn.Instrs = append(b.Fn.Instrs, Instr{Kind: k})
	b.Fn.Types = append(b.Fn.Types, ty)
	blk := &b.Fn.Blocks[b.block]
	blk.Vals = append(blk.Vals, v)
	return v
}

func (b *Builder) ConstInt(v int32) Value {
	return b.emit(ConstInt{V: v}, IntType{})
}

func (b *Builder) ConstFloat(v float32) Value {
	return b.emit(ConstFloat{V: v}, FloatType{})
}

func (b *Builder) ConstDouble(v float64) Value {
	return b.emit(ConstDouble{V: v}, DoubleType{})
}

func (b *Builder) ConstBool(v bool) Value {
	return b.emit(ConstBool{V: v}, BoolType{})
}

func (b *Builder) Alloca(elem Type, name string) Value {
	return b.emit(Alloca{Elem: elem, Name: name}, PointerType{Elem: elem})
}

// Arg produces the value of the i-th parameter. Output parameters
// produce a pointer to the caller's storage.
func (b *Builder) Arg(i int) Value {
	p := b.Fn.Params[i]
	ty := p.Ty
	if p.Output {
		ty = PointerType{Elem: ty}
	}
	return b.emit(Arg{Index: i}, ty)
}

func (b *Builder) GlobalRef(name string, elem Type) Value {
	return b.emit(GlobalRef{Name: name}, PointerType{Elem: elem})
}

func (b *Builder) Load(ptr Value) Value {
	pt := b.Fn.TypeOf(ptr).(PointerType)
	return b.emit(Load{Ptr: ptr}, pt.Elem)
}

func (b *Builder) Store(ptr, val Value) Value {
	return b.emit(Store{Ptr: ptr, Val: val}, VoidType{})
}

// FieldPtr addresses a struct member or vector component behind a
// pointer.
func (b *Builder) FieldPtr(ptr Value, index int) Value {
	pt := b.Fn.TypeOf(ptr).(PointerType)
	var elem Type
	switch et := pt.Elem.(type) {
	case StructType:
		elem = et.Fields[index].Type
	case Float3Type, Float4Type:
		elem = FloatType{}
	default:
		elem = et
	}
	return b.emit(FieldPtr{Ptr: ptr, Index: index}, PointerType{Elem: elem})
}

func (b *Builder) Extract(agg Value, index int) Value {
	var elem Type
	switch at := b.Fn.TypeOf(agg).(type) {
	case StructType:
		elem = at.Fields[index].Type
	case Float3Type, Float4Type, MatrixType:
		elem = FloatType{}
	default:
		elem = at
	}
	return b.emit(Extract{Agg: agg, Index: index}, elem)
}

func (b *Builder) Compose(ty Type, elems []Value) Value {
	return b.emit(Compose{Ty: ty, Elems: elems}, ty)
}

func (b *Builder) Binary(op BinOp, l, r Value) Value {
	var ty Type
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpAnd, OpOr:
		ty = BoolType{}
	default:
		ty = b.Fn.TypeOf(l)
	}
	return b.emit(Binary{Op: op, L: l, R: r}, ty)
}

func (b *Builder) Unary(op UnOp, v Value) Value {
	return b.emit(Unary{Op: op, V: v}, b.Fn.TypeOf(v))
}

func (b *Builder) Call(callee string, args []Value, ret Type) Value {
	return b.emit(Call{Callee: callee, Args: args, Ret: ret}, ret)
}

func (b *Builder) MakeClosure(id closure.ID, vars []closure.Var, args []Value) Value {
	return b.emit(MakeClosure{ID: id, Vars: vars, Args: args}, ClosureType{})
}

func (b *Builder) ClosureAdd(l, r Value) Value {
	return b.emit(ClosureAdd{L: l, R: r}, ClosureType{})
}

func (b *Builder) ClosureMul(w, c Value) Value {
	return b.emit(ClosureMul{W: w, C: c}, ClosureType{})
}

func (b *Builder) GlobalValue(field string, ty Type) Value {
	return b.emit(GlobalValue{Field: field, Ty: ty}, ty)
}

func (b *Builder) Ret(v Value) {
	b.emit(Ret{Val: v, HasVal: true}, VoidType{})
}

func (b *Builder) RetVoid() {
	b.emit(Ret{}, VoidType{})
}

func (b *Builder) Br(target int) {
	b.emit(Br{Target: target}, VoidType{})
}

func (b *Builder) CondBr(cond Value, then, els int) {
	b.emit(CondBr{Cond: cond, Then: then, Else: els}, VoidType{})
}
