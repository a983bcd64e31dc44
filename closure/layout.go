package closure

import (
	"encoding/binary"
	"fmt"
	"math"
)

// The encoded form of a closure tree is the one wire-format compatibility
// surface of this package. Every node starts with its 4-byte identity
// (little-endian two's complement). Child references are 8-byte offsets
// into the same buffer, matching the pointer size of a 64-bit target;
// offset zero encodes a nil child, so no node may start at offset zero and
// every buffer begins with an 8-byte header holding the root reference.
const (
	// IdentitySize is the size of the identity field every node starts with.
	IdentitySize = 4
	// RefSize is the size of an encoded child reference.
	RefSize = 8

	// BaseNodeSize is the encoded size of a BaseNode: identity only.
	BaseNodeSize = IdentitySize
	// AddNodeSize is the encoded size of an AddNode: identity, 4 bytes of
	// documented padding so the child references are 8-byte aligned, then
	// two child references.
	AddNodeSize = IdentitySize + 4 + 2*RefSize
	// MulNodeSize is the encoded size of a MulNode: identity, the float32
	// weight, then one child reference. The weight packs into the slot the
	// AddNode leaves as padding, so no implicit padding exists here.
	MulNodeSize = IdentitySize + 4 + RefSize

	headerSize = RefSize
)

// LeafNodeSize returns the encoded size of a leaf whose payload occupies
// payloadSize bytes: the identity followed immediately by the payload.
func LeafNodeSize(payloadSize int) int {
	return IdentitySize + payloadSize
}

// EncodeTree serializes a tree rooted at root into a single buffer using
// the fixed node layout. A nil root yields a buffer holding only the nil
// root reference.
func EncodeTree(root TreeNode) []byte {
	buf := make([]byte, headerSize)
	ref := encodeNode(&buf, root)
	binary.LittleEndian.PutUint64(buf[:RefSize], ref)
	return buf
}

func encodeNode(buf *[]byte, n TreeNode) uint64 {
	if n == nil {
		return 0
	}

	switch node := n.(type) {
	case *BaseNode:
		off := grow(buf, BaseNodeSize)
		putID(*buf, off, node.ID)
		return uint64(off)

	case *AddNode:
		// Children are encoded first; the parent records their offsets.
		c0 := encodeNode(buf, node.Closure0)
		c1 := encodeNode(buf, node.Closure1)
		off := grow(buf, AddNodeSize)
		putID(*buf, off, node.ID)
		binary.LittleEndian.PutUint64((*buf)[off+IdentitySize+4:], c0)
		binary.LittleEndian.PutUint64((*buf)[off+IdentitySize+4+RefSize:], c1)
		return uint64(off)

	case *MulNode:
		c := encodeNode(buf, node.Closure)
		off := grow(buf, MulNodeSize)
		putID(*buf, off, node.ID)
		binary.LittleEndian.PutUint32((*buf)[off+IdentitySize:], math.Float32bits(node.Weight))
		binary.LittleEndian.PutUint64((*buf)[off+IdentitySize+4:], c)
		return uint64(off)

	case *LeafNode:
		off := grow(buf, LeafNodeSize(len(node.Payload)))
		putID(*buf, off, node.ID)
		copy((*buf)[off+IdentitySize:], node.Payload)
		return uint64(off)

	default:
		panic(fmt.Sprintf("closure: unknown tree node %T", n))
	}
}

// DecodeTree reads a tree back from its encoded form. Leaf payload sizes
// are not self-describing, so the caller supplies a lookup from identity to
// declared payload size; the two combinators and base nodes need no entry.
func DecodeTree(buf []byte, payloadSize func(ID) (int, bool)) (TreeNode, error) {
	if len(buf) < headerSize {
		return nil, fmt.Errorf("closure: encoded tree too short (%d bytes)", len(buf))
	}
	d := &treeDecoder{buf: buf, payloadSize: payloadSize, visited: map[uint64]struct{}{}}
	root := binary.LittleEndian.Uint64(buf[:RefSize])
	return d.node(root)
}

// treeDecoder tracks the references already followed. The encoder never
// shares a node between parents, so a reference seen twice means a
// malformed buffer, not a diamond.
type treeDecoder struct {
	buf         []byte
	payloadSize func(ID) (int, bool)
	visited     map[uint64]struct{}
}

// span reports whether n bytes starting at off lie inside the buffer.
// Comparisons stay on the subtraction side so a huge off cannot wrap.
func (d *treeDecoder) span(off uint64, n int) bool {
	return off <= uint64(len(d.buf)) && uint64(n) <= uint64(len(d.buf))-off
}

func (d *treeDecoder) node(off uint64) (TreeNode, error) {
	if off == 0 {
		return nil, nil
	}
	if !d.span(off, IdentitySize) {
		return nil, fmt.Errorf("closure: node reference %d out of range", off)
	}
	if _, seen := d.visited[off]; seen {
		return nil, fmt.Errorf("closure: cyclic node reference %d", off)
	}
	d.visited[off] = struct{}{}

	buf := d.buf
	id := ID(int32(binary.LittleEndian.Uint32(buf[off:])))
	switch id {
	case AddID:
		if !d.span(off, AddNodeSize) {
			return nil, fmt.Errorf("closure: truncated add node at %d", off)
		}
		c0ref := binary.LittleEndian.Uint64(buf[off+IdentitySize+4:])
		c1ref := binary.LittleEndian.Uint64(buf[off+IdentitySize+4+RefSize:])
		c0, err := d.node(c0ref)
		if err != nil {
			return nil, err
		}
		c1, err := d.node(c1ref)
		if err != nil {
			return nil, err
		}
		return &AddNode{ID: id, Closure0: c0, Closure1: c1}, nil

	case MulID:
		if !d.span(off, MulNodeSize) {
			return nil, fmt.Errorf("closure: truncated mul node at %d", off)
		}
		weight := math.Float32frombits(binary.LittleEndian.Uint32(buf[off+IdentitySize:]))
		cref := binary.LittleEndian.Uint64(buf[off+IdentitySize+4:])
		c, err := d.node(cref)
		if err != nil {
			return nil, err
		}
		return &MulNode{ID: id, Weight: weight, Closure: c}, nil

	case InvalidID:
		return nil, fmt.Errorf("closure: invalid identity at offset %d", off)

	default:
		size, ok := d.payloadSize(id)
		if !ok {
			// Unknown identity with no payload information decodes as a
			// bare base node.
			return &BaseNode{ID: id}, nil
		}
		if !d.span(off, LeafNodeSize(size)) {
			return nil, fmt.Errorf("closure: truncated leaf node at %d", off)
		}
		payload := make([]byte, size)
		copy(payload, buf[off+IdentitySize:off+uint64(LeafNodeSize(size))])
		return &LeafNode{ID: id, Payload: payload}, nil
	}
}

func grow(buf *[]byte, n int) int {
	off := len(*buf)
	*buf = append(*buf, make([]byte, n)...)
	return off
}

func putID(buf []byte, off int, id ID) {
	binary.LittleEndian.PutUint32(buf[off:], uint32(int32(id)))
}
