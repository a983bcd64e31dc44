package syntax

// Module represents a TSL translation unit.
type Module struct {
	Structs    []*StructDecl
	Functions  []*FunctionDecl
	GlobalVars []*VarDecl
	Span       Span
}

func (m *Module) Pos() Span { return m.Span }

// Node is the base interface for all AST nodes.
type Node interface {
	Pos() Span
}

// Stmt is the interface for statements.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is the interface for expressions.
type Expr interface {
	Node
	exprNode()
}

// TypeKind enumerates the data types of the language.
type TypeKind uint8

const (
	TypeVoid TypeKind = iota
	TypeInt
	TypeFloat
	TypeDouble
	TypeBool
	TypeFloat3
	TypeFloat4
	TypeMatrix
	TypeClosure
	TypeStruct
)

// DataType describes a parsed type. StructName is set only for TypeStruct;
// the compiler's string interner gives it a stable identity across the
// parse.
type DataType struct {
	Kind       TypeKind
	StructName string
}

// String returns the source-language name of the type.
func (t DataType) String() string {
	switch t.Kind {
	case TypeVoid:
		return "void"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypeBool:
		return "bool"
	case TypeFloat3:
		return "float3"
	case TypeFloat4:
		return "float4"
	case TypeMatrix:
		return "matrix"
	case TypeClosure:
		return "closure"
	case TypeStruct:
		return t.StructName
	default:
		return "unknown"
	}
}

// StructDecl represents a struct declaration.
type StructDecl struct {
	Name    string
	Members []*StructMember
	Span    Span
}

func (s *StructDecl) Pos() Span { return s.Span }

// StructMember represents a struct member.
type StructMember struct {
	Name string
	Type DataType
	Span Span
}

// FunctionDecl represents a function declaration. A shader root function is
// marked by Shader; its parameters define the unit's native call signature.
type FunctionDecl struct {
	Name       string
	Shader     bool
	ReturnType DataType
	Params     []*Parameter
	Body       *BlockStmt
	Span       Span
}

func (f *FunctionDecl) Pos() Span { return f.Span }

// Parameter represents a function parameter. Output marks `out` qualified
// parameters, which are written back to the caller.
type Parameter struct {
	Name   string
	Type   DataType
	Output bool
	Span   Span
}

func (p *Parameter) Pos() Span { return p.Span }

// VarDecl represents a variable declaration, either module-scope (global
// parameter) or local.
type VarDecl struct {
	Name string
	Type DataType
	Init Expr
	Span Span
}

func (v *VarDecl) Pos() Span { return v.Span }
func (v *VarDecl) stmtNode() {}

// Statements

// BlockStmt represents a block statement.
type BlockStmt struct {
	Statements []Stmt
	Span       Span
}

func (b *BlockStmt) Pos() Span { return b.Span }
func (b *BlockStmt) stmtNode() {}

// ReturnStmt represents a return statement.
type ReturnStmt struct {
	Value Expr
	Span  Span
}

func (r *ReturnStmt) Pos() Span { return r.Span }
func (r *ReturnStmt) stmtNode() {}

// IfStmt represents an if statement.
type IfStmt struct {
	Condition Expr
	Body      *BlockStmt
	Else      Stmt // *BlockStmt or *IfStmt
	Span      Span
}

func (i *IfStmt) Pos() Span { return i.Span }
func (i *IfStmt) stmtNode() {}

// AssignStmt represents an assignment statement. Left is an *Ident or a
// *MemberExpr rooted at an *Ident.
type AssignStmt struct {
	Left  Expr
	Right Expr
	Span  Span
}

func (a *AssignStmt) Pos() Span { return a.Span }
func (a *AssignStmt) stmtNode() {}

// ExprStmt represents an expression statement.
type ExprStmt struct {
	Expr Expr
	Span Span
}

func (e *ExprStmt) Pos() Span { return e.Span }
func (e *ExprStmt) stmtNode() {}

// Expressions

// Ident represents an identifier.
type Ident struct {
	Name string
	Span Span
}

func (i *Ident) Pos() Span { return i.Span }
func (i *Ident) exprNode() {}

// Literal represents a literal value.
type Literal struct {
	Kind  TokenKind // IntLiteral, FloatLiteral, DoubleLiteral, True, False
	Value string
	Span  Span
}

func (l *Literal) Pos() Span { return l.Span }
func (l *Literal) exprNode() {}

// BinaryExpr represents a binary expression.
type BinaryExpr struct {
	Left  Expr
	Op    TokenKind
	Right Expr
	Span  Span
}

func (b *BinaryExpr) Pos() Span { return b.Span }
func (b *BinaryExpr) exprNode() {}

// UnaryExpr represents a unary expression.
type UnaryExpr struct {
	Op      TokenKind
	Operand Expr
	Span    Span
}

func (u *UnaryExpr) Pos() Span { return u.Span }
func (u *UnaryExpr) exprNode() {}

// CallExpr represents a function call.
type CallExpr struct {
	Func *Ident
	Args []Expr
	Span Span
}

func (c *CallExpr) Pos() Span { return c.Span }
func (c *CallExpr) exprNode() {}

// MemberExpr represents a member access expression: struct fields or the
// x/y/z/w components of a vector.
type MemberExpr struct {
	Expr   Expr
	Member string
	Span   Span
}

func (m *MemberExpr) Pos() Span { return m.Span }
func (m *MemberExpr) exprNode() {}

// ConstructExpr represents a vector constructor expression, float3(...) or
// float4(...).
type ConstructExpr struct {
	Type DataType
	Args []Expr
	Span Span
}

func (c *ConstructExpr) Pos() Span { return c.Span }
func (c *ConstructExpr) exprNode() {}

// MakeClosureExpr represents make_closure<name>(args...): construction of
// a leaf node of a registered closure type.
type MakeClosureExpr struct {
	Closure string
	Args    []Expr
	Span    Span
}

func (m *MakeClosureExpr) Pos() Span { return m.Span }
func (m *MakeClosureExpr) exprNode() {}

// GlobalValueExpr represents global_value<name>: a read from the implicit
// trailing global-state argument.
type GlobalValueExpr struct {
	Name string
	Span Span
}

func (g *GlobalValueExpr) Pos() Span { return g.Span }
func (g *GlobalValueExpr) exprNode() {}
