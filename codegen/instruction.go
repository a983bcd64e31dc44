package codegen

import (
	"github.com/gogpu/tsl/closure"
)

// Value is a handle to an instruction in a function's arena. The value an
// instruction produces is addressed by its handle.
type Value uint32

// Instr represents one instruction.
type Instr struct {
	Kind InstrKind
}

// InstrKind represents the different kinds of instructions.
type InstrKind interface {
	instrKind()
}

// ConstInt materializes an int constant.
type ConstInt struct {
	V int32
}

func (ConstInt) instrKind() {}

// ConstFloat materializes a float constant.
type ConstFloat struct {
	V float32
}

func (ConstFloat) instrKind() {}

// ConstDouble materializes a double constant.
type ConstDouble struct {
	V float64
}

func (ConstDouble) instrKind() {}

// ConstBool materializes a bool constant.
type ConstBool struct {
	V bool
}

func (ConstBool) instrKind() {}

// Alloca allocates local storage for one value of the element type and
// produces a pointer to it.
type Alloca struct {
	Elem Type
	Name string
}

func (Alloca) instrKind() {}

// Arg produces the value of the function argument at Index. Output
// arguments are pointers.
type Arg struct {
	Index int
}

func (Arg) instrKind() {}

// GlobalRef produces a pointer to a module-scope global variable.
type GlobalRef struct {
	Name string
}

func (GlobalRef) instrKind() {}

// Load reads the value behind a pointer.
type Load struct {
	Ptr Value
}

func (Load) instrKind() {}

// Store writes a value through a pointer.
type Store struct {
	Ptr Value
	Val Value
}

func (Store) instrKind() {}

// FieldPtr produces a pointer to a field of the aggregate behind Ptr:
// a struct member or a vector component.
type FieldPtr struct {
	Ptr   Value
	Index int
}

func (FieldPtr) instrKind() {}

// Extract reads a component out of an aggregate value.
type Extract struct {
	Agg   Value
	Index int
}

func (Extract) instrKind() {}

// Compose builds an aggregate value from element values.
type Compose struct {
	Ty    Type
	Elems []Value
}

func (Compose) instrKind() {}

// BinOp represents binary operations.
type BinOp uint8

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod

	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe

	OpAnd
	OpOr
)

// String returns the operator spelling.
func (op BinOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpAnd:
		return "&&"
	case OpOr:
		return "||"
	default:
		return "?"
	}
}

// Commutative reports whether operand order is irrelevant.
func (op BinOp) Commutative() bool {
	switch op {
	case OpAdd, OpMul, OpEq, OpNe, OpAnd, OpOr:
		return true
	default:
		return false
	}
}

// Binary applies a binary operator.
type Binary struct {
	Op BinOp
	L  Value
	R  Value
}

func (Binary) instrKind() {}

// UnOp represents unary operations.
type UnOp uint8

const (
	OpNeg UnOp = iota
	OpNot
)

// Unary applies a unary operator.
type Unary struct {
	Op UnOp
	V  Value
}

func (Unary) instrKind() {}

// Call invokes a function by name. The callee is resolved at link time,
// scoped to the calling module first.
type Call struct {
	Callee string
	Args   []Value
	Ret    Type
}

func (Call) instrKind() {}

// MakeClosure allocates a leaf closure node at execution time, encoding
// the argument values into the payload per the declared field layout.
// Only closure-registry constructor functions carry this instruction.
type MakeClosure struct {
	ID   closure.ID
	Vars []closure.Var
	Args []Value
}

func (MakeClosure) instrKind() {}

// ClosureAdd allocates a weighted-sum combinator node over two subtrees.
type ClosureAdd struct {
	L Value
	R Value
}

func (ClosureAdd) instrKind() {}

// ClosureMul allocates a product-with-scalar combinator node.
type ClosureMul struct {
	W Value
	C Value
}

func (ClosureMul) instrKind() {}

// GlobalValue reads a named field from the implicit trailing global-state
// argument.
type GlobalValue struct {
	Field string
	Ty    Type
}

func (GlobalValue) instrKind() {}

// Ret returns from the function.
type Ret struct {
	Val    Value
	HasVal bool
}

func (Ret) instrKind() {}

// Br branches unconditionally to the block at Target.
type Br struct {
	Target int
}

func (Br) instrKind() {}

// CondBr branches to Then when the condition holds, else to Else.
type CondBr struct {
	Cond Value
	Then int
	Else int
}

func (CondBr) instrKind() {}

// IsTerminator reports whether the instruction ends a basic block.
func IsTerminator(k InstrKind) bool {
	switch k.(type) {
	case Ret, Br, CondBr:
		return true
	default:
		return false
	}
}

// HasSideEffects reports whether the instruction may not be removed or
// deduplicated even when its value is unused.
func HasSideEffects(k InstrKind) bool {
	switch k.(type) {
	case Store, Call, Ret, Br, CondBr, MakeClosure, ClosureAdd, ClosureMul, Alloca:
		return true
	default:
		return false
	}
}
