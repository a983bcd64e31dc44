// Package closure defines the closure tree data model shared between
// hand-written code and compiler-generated code.
//
// A shader that uses closures produces a closure tree at execution time.
// Tree nodes are a closed set of variants discriminated by the identity
// field: base, the two builtin combinators (weighted sum and scalar
// product), and leaves carrying a registered closure's payload. The byte
// layout of every variant is a fixed contract (see layout.go); code that
// reads a tree back through its encoded form must use exactly this layout.
package closure

// ID is the integer identity of a closure type.
//
// Zero is invalid. The two negative identities are reserved for the
// structural combinators every tree format supports regardless of which
// leaf types are registered. Registered closure types receive identities
// starting at FirstUserID, assigned monotonically and never reused within
// a process lifetime.
type ID int32

const (
	// InvalidID marks an unset closure identity.
	InvalidID ID = 0
	// AddID is the builtin weighted-sum combinator.
	AddID ID = -1
	// MulID is the builtin product-with-scalar combinator.
	MulID ID = -2

	// FirstUserID is the first identity handed out by a registry.
	FirstUserID ID = 1
)

// TreeNode is a node of a closure tree.
//
// The concrete variants form a closed set: BaseNode, AddNode, MulNode and
// LeafNode. Child pointers are owned by their parent node; the root is
// owned by whichever structure holds it, typically caller-provided output
// storage.
type TreeNode interface {
	// Identity returns the discriminating closure identity of the node.
	Identity() ID

	nodeKind()
}

// BaseNode carries an identity and nothing else.
type BaseNode struct {
	ID ID
}

func (n *BaseNode) Identity() ID { return n.ID }
func (*BaseNode) nodeKind()      {}

// AddNode sums two subtrees. Its identity is always AddID.
type AddNode struct {
	ID       ID
	Closure0 TreeNode
	Closure1 TreeNode
}

func (n *AddNode) Identity() ID { return n.ID }
func (*AddNode) nodeKind()      {}

// MulNode scales one subtree by a scalar weight. Its identity is always
// MulID.
type MulNode struct {
	ID      ID
	Weight  float32
	Closure TreeNode
}

func (n *MulNode) Identity() ID { return n.ID }
func (*MulNode) nodeKind()      {}

// LeafNode is an instance of a registered closure type. The payload holds
// the closure's fields laid out starting where the identity field ends,
// encoded per the field layout declared at registration time.
type LeafNode struct {
	ID      ID
	Payload []byte
}

func (n *LeafNode) Identity() ID { return n.ID }
func (*LeafNode) nodeKind()      {}

// Tree holds the root of a closure tree. The root may be nil.
type Tree struct {
	Root TreeNode
}

// NewAdd builds a weighted-sum node over two subtrees.
func NewAdd(c0, c1 TreeNode) *AddNode {
	return &AddNode{ID: AddID, Closure0: c0, Closure1: c1}
}

// NewMul builds a product-with-scalar node.
func NewMul(weight float32, c TreeNode) *MulNode {
	return &MulNode{ID: MulID, Weight: weight, Closure: c}
}
