// Package kdtree is an alternating-axis binary tree over lat/lng records
// with k-nearest-neighbour search.
//
// A Tree is not safe for concurrent use. Callers that share one across
// goroutines must serialise every Insert, Remove and Update against each
// other and against KNearest.
package kdtree

type node struct {
	rec         Record
	axis        Axis
	left, right *node
}

// Tree holds records in a KD tree. The root splits on latitude and every
// level below alternates. There is no rebalancing: shape follows insertion
// order and deletions.
type Tree struct {
	root *node
	size int
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{}
}

// Len reports the number of nodes, available or not.
func (t *Tree) Len() int {
	return t.size
}

// Height reports the number of nodes on the longest root-to-leaf path.
func (t *Tree) Height() int {
	return height(t.root)
}

func height(n *node) int {
	if n == nil {
		return 0
	}
	return 1 + max(height(n.left), height(n.right))
}

// Insert adds r. Duplicate IDs are not detected; the caller owns uniqueness.
func (t *Tree) Insert(r Record) {
	t.root = insert(t.root, r, Lat)
	t.size++
}

func insert(n *node, r Record, axis Axis) *node {
	if n == nil {
		return &node{rec: r, axis: axis}
	}
	if r.Coord(n.axis) < n.rec.Coord(n.axis) {
		n.left = insert(n.left, r, n.axis.next())
	} else {
		n.right = insert(n.right, r, n.axis.next())
	}
	return n
}

// Remove deletes the node holding r.ID. r's coordinates must be the ones
// the record was inserted with; they pick the branch at every level. It
// reports whether a node was removed; an unknown ID is a no-op.
func (t *Tree) Remove(r Record) bool {
	var removed bool
	t.root = remove(t.root, r, &removed)
	if removed {
		t.size--
	}
	return removed
}

func remove(n *node, r Record, removed *bool) *node {
	if n == nil {
		return nil
	}
	if n.rec.ID != r.ID {
		if r.Coord(n.axis) < n.rec.Coord(n.axis) {
			n.left = remove(n.left, r, removed)
		} else {
			n.right = remove(n.right, r, removed)
		}
		return n
	}

	*removed = true
	if n.right == nil {
		return n.left
	}
	if n.left == nil {
		return n.right
	}
	// Promote the right subtree's minimum on this node's axis, then
	// delete it from below.
	succ := minOn(n.right, n.axis)
	n.rec = succ
	var ok bool
	n.right = remove(n.right, succ, &ok)
	return n
}

// minOn returns the record with the smallest coordinate on axis a in the
// subtree rooted at n. Below a node that splits on a only the left side can
// hold something smaller.
func minOn(n *node, a Axis) Record {
	best := n.rec
	if n.left != nil {
		if c := minOn(n.left, a); c.Coord(a) < best.Coord(a) {
			best = c
		}
	}
	if n.axis != a && n.right != nil {
		if c := minOn(n.right, a); c.Coord(a) < best.Coord(a) {
			best = c
		}
	}
	return best
}

// Update replaces old with updated by removing old and inserting updated.
// Moving a point in place could break the split ordering of its ancestors.
// If old is not in the tree nothing is inserted and Update returns false.
func (t *Tree) Update(old, updated Record) bool {
	if !t.Remove(old) {
		return false
	}
	t.Insert(updated)
	return true
}

// Walk calls fn for every record in pre-order with the node's depth and
// splitting axis. Returning false from fn stops the walk.
//
// A node keeps the axis it was created with. Until something is removed the
// axis is lat at even depths and lng at odd ones; a Remove that lifts a
// child into its parent's place moves that whole subtree up a level, so
// afterwards depth parity and axis can differ.
func (t *Tree) Walk(fn func(r Record, depth int, axis Axis) bool) {
	walk(t.root, 0, fn)
}

func walk(n *node, depth int, fn func(Record, int, Axis) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n.rec, depth, n.axis) {
		return false
	}
	return walk(n.left, depth+1, fn) && walk(n.right, depth+1, fn)
}
