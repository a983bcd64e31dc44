package tsl

import (
	"errors"

	"github.com/gogpu/tsl/syntax"
)

// ErrAlreadyTracked is returned when a node is handed to Track twice.
var ErrAlreadyTracked = errors.New("tsl: node already tracked")

// OwnershipTable records which syntax nodes belong to the compile in
// progress. Each compile opens a frame; every node the parse produces is
// tracked exactly once in the innermost frame, and closing the frame
// releases everything the compile did not explicitly transfer out.
//
// A table belongs to one context and is not safe for concurrent use.
type OwnershipTable struct {
	frames []map[syntax.Node]struct{}
}

// NewOwnershipTable returns an empty table with no open frames.
func NewOwnershipTable() *OwnershipTable {
	return &OwnershipTable{}
}

// PushFrame opens a new innermost frame and returns a release function
// that closes it. Frames close in LIFO order.
func (t *OwnershipTable) PushFrame() func() {
	t.frames = append(t.frames, make(map[syntax.Node]struct{}))
	depth := len(t.frames)
	return func() {
		if len(t.frames) != depth {
			panic("tsl: ownership frames released out of order")
		}
		t.frames = t.frames[:depth-1]
	}
}

// Depth returns the number of open frames.
func (t *OwnershipTable) Depth() int {
	return len(t.frames)
}

// Track records a node in the innermost frame. Tracking the same node a
// second time, in any frame, is an error.
func (t *OwnershipTable) Track(n syntax.Node) error {
	if n == nil {
		return nil
	}
	if len(t.frames) == 0 {
		panic("tsl: Track outside of an ownership frame")
	}
	for _, f := range t.frames {
		if _, ok := f[n]; ok {
			return ErrAlreadyTracked
		}
	}
	t.frames[len(t.frames)-1][n] = struct{}{}
	return nil
}

// Owned reports whether any open frame tracks the node, searching the
// innermost frame first.
func (t *OwnershipTable) Owned(n syntax.Node) bool {
	for i := len(t.frames) - 1; i >= 0; i-- {
		if _, ok := t.frames[i][n]; ok {
			return true
		}
	}
	return false
}

// Transfer removes the node from the frame tracking it, handing
// ownership to the caller. It reports whether the node was tracked.
func (t *OwnershipTable) Transfer(n syntax.Node) bool {
	for i := len(t.frames) - 1; i >= 0; i-- {
		if _, ok := t.frames[i][n]; ok {
			delete(t.frames[i], n)
			return true
		}
	}
	return false
}
