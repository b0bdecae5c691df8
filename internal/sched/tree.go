package sched

import (
	"errors"
	"sync"

	"github.com/orizon-lang/cfsched/internal/task"
)

// ErrTreeFull is returned by Insert when the tree already holds NPROC
// tasks. Defensive: the task table shares the same capacity by
// construction, so a task not in the table cannot reach Insert
// (spec.md §4.5).
var ErrTreeFull = errors.New("sched: run queue at capacity")

// Tree is the CFS run queue: a red-black tree of *task.Task ordered by
// VRuntime, augmented with a cached minimum, a running node count, and a
// running total weight (spec.md §3, §4.1). It embeds no allocation of
// its own — nodes are the Task values owned by task.Table (SPEC_FULL.md
// §9) — and is guarded by its own mutex, the "tree lock" of spec.md §5.
type Tree struct {
	mu          sync.Mutex
	root        *task.Task
	min         *task.Task
	count       int
	totalWeight uint64
	nproc       int
}

// NewTree creates an empty run queue with the given capacity.
func NewTree(nproc int) *Tree {
	return &Tree{nproc: nproc}
}

// Count returns the number of tasks currently enqueued.
func (t *Tree) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// TotalWeight returns the sum of Weight over enqueued tasks.
func (t *Tree) TotalWeight() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalWeight
}

// MinVRuntime returns the leftmost (minimum-VRuntime) task, or nil if
// the tree is empty.
func (t *Tree) MinVRuntime() *task.Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.min
}

// Insert attaches tsk as a red leaf ordered by VRuntime (ties go right,
// preserving FIFO order among equal keys) and rebalances per the
// standard CLRS insert-fixup (spec.md §4.1). Returns ErrTreeFull if the
// tree is already at capacity.
func (t *Tree) Insert(tsk *task.Task) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.count >= t.nproc {
		return ErrTreeFull
	}

	tsk.SetLeft(nil)
	tsk.SetRight(nil)
	tsk.SetColor(task.Red)

	var parent *task.Task
	current := t.root
	for current != nil {
		parent = current
		if tsk.VRuntime < current.VRuntime {
			current = current.Left()
		} else {
			current = current.Right()
		}
	}
	tsk.SetParent(parent)

	switch {
	case parent == nil:
		t.root = tsk
	case tsk.VRuntime < parent.VRuntime:
		parent.SetLeft(tsk)
	default:
		parent.SetRight(tsk)
	}

	t.insertFixup(tsk)

	t.totalWeight += tsk.Weight
	t.count++
	t.min = leftmost(t.root)
	return nil
}

func (t *Tree) insertFixup(node *task.Task) {
	for node.Parent() != nil && node.Parent().Color() == task.Red {
		parent := node.Parent()
		grandparent := parent.Parent()

		if parent == grandparent.Left() {
			uncle := grandparent.Right()
			if uncle != nil && uncle.Color() == task.Red {
				parent.SetColor(task.Black)
				uncle.SetColor(task.Black)
				grandparent.SetColor(task.Red)
				node = grandparent
			} else {
				if node == parent.Right() {
					node = parent
					t.rotateLeft(node)
					parent = node.Parent()
				}
				parent.SetColor(task.Black)
				grandparent.SetColor(task.Red)
				t.rotateRight(grandparent)
			}
		} else {
			uncle := grandparent.Left()
			if uncle != nil && uncle.Color() == task.Red {
				parent.SetColor(task.Black)
				uncle.SetColor(task.Black)
				grandparent.SetColor(task.Red)
				node = grandparent
			} else {
				if node == parent.Left() {
					node = parent
					t.rotateRight(node)
					parent = node.Parent()
				}
				parent.SetColor(task.Black)
				grandparent.SetColor(task.Red)
				t.rotateLeft(grandparent)
			}
		}
	}
	if t.root != nil {
		t.root.SetColor(task.Black)
	}
}

func (t *Tree) rotateLeft(x *task.Task) {
	y := x.Right()
	x.SetRight(y.Left())
	if y.Left() != nil {
		y.Left().SetParent(x)
	}
	y.SetParent(x.Parent())
	switch {
	case x.Parent() == nil:
		t.root = y
	case x == x.Parent().Left():
		x.Parent().SetLeft(y)
	default:
		x.Parent().SetRight(y)
	}
	y.SetLeft(x)
	x.SetParent(y)
}

func (t *Tree) rotateRight(x *task.Task) {
	y := x.Left()
	x.SetLeft(y.Right())
	if y.Right() != nil {
		y.Right().SetParent(x)
	}
	y.SetParent(x.Parent())
	switch {
	case x.Parent() == nil:
		t.root = y
	case x == x.Parent().Right():
		x.Parent().SetRight(y)
	default:
		x.Parent().SetLeft(y)
	}
	y.SetRight(x)
	x.SetParent(y)
}

// transplant replaces the subtree rooted at u with the subtree rooted
// at v, as CLRS's RB-TRANSPLANT.
func (t *Tree) transplant(u, v *task.Task) {
	switch {
	case u.Parent() == nil:
		t.root = v
	case u == u.Parent().Left():
		u.Parent().SetLeft(v)
	default:
		u.Parent().SetRight(v)
	}
	if v != nil {
		v.SetParent(u.Parent())
	}
}

// Delete removes tsk from the tree. tsk must currently be enqueued.
// Standard CLRS deletion: if tsk has two children, the in-order
// successor is spliced into its position (spec.md §4.1).
func (t *Tree) Delete(tsk *task.Task) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delete(tsk)
	t.totalWeight -= tsk.Weight
	t.count--
	t.min = leftmost(t.root)
}

func (t *Tree) delete(node *task.Task) {
	originalColor := node.Color()
	var child, parent *task.Task

	switch {
	case node.Left() == nil:
		child = node.Right()
		parent = node.Parent()
		t.transplant(node, node.Right())
	case node.Right() == nil:
		child = node.Left()
		parent = node.Parent()
		t.transplant(node, node.Left())
	default:
		successor := leftmost(node.Right())
		originalColor = successor.Color()
		child = successor.Right()

		if successor.Parent() == node {
			// successor is node's immediate right child: it stays where
			// it is, so it remains the effective parent of child's slot.
			parent = successor
		} else {
			parent = successor.Parent()
			t.transplant(successor, successor.Right())
			successor.SetRight(node.Right())
			successor.Right().SetParent(successor)
		}

		t.transplant(node, successor)
		successor.SetLeft(node.Left())
		successor.Left().SetParent(successor)
		successor.SetColor(node.Color())
	}

	if originalColor == task.Red || (child != nil && child.Color() == task.Red) {
		if child != nil {
			child.SetColor(task.Black)
		}
		return
	}
	t.deleteFixup(child, parent)
}

func (t *Tree) deleteFixup(node, parent *task.Task) {
	for node != t.root && (node == nil || node.Color() == task.Black) {
		if parent == nil {
			break
		}
		if node == parent.Left() {
			sibling := parent.Right()
			if sibling == nil {
				node, parent = parent, parent.Parent()
				continue
			}
			if sibling.Color() == task.Red {
				sibling.SetColor(task.Black)
				parent.SetColor(task.Red)
				t.rotateLeft(parent)
				sibling = parent.Right()
			}
			if sibling == nil {
				node, parent = parent, parent.Parent()
				continue
			}
			if (sibling.Left() == nil || sibling.Left().Color() == task.Black) &&
				(sibling.Right() == nil || sibling.Right().Color() == task.Black) {
				sibling.SetColor(task.Red)
				node, parent = parent, parent.Parent()
			} else {
				if sibling.Right() == nil || sibling.Right().Color() == task.Black {
					if sibling.Left() != nil {
						sibling.Left().SetColor(task.Black)
					}
					sibling.SetColor(task.Red)
					t.rotateRight(sibling)
					sibling = parent.Right()
				}
				sibling.SetColor(parent.Color())
				parent.SetColor(task.Black)
				if sibling.Right() != nil {
					sibling.Right().SetColor(task.Black)
				}
				t.rotateLeft(parent)
				node = t.root
				parent = nil
			}
		} else {
			sibling := parent.Left()
			if sibling == nil {
				node, parent = parent, parent.Parent()
				continue
			}
			if sibling.Color() == task.Red {
				sibling.SetColor(task.Black)
				parent.SetColor(task.Red)
				t.rotateRight(parent)
				sibling = parent.Left()
			}
			if sibling == nil {
				node, parent = parent, parent.Parent()
				continue
			}
			if (sibling.Left() == nil || sibling.Left().Color() == task.Black) &&
				(sibling.Right() == nil || sibling.Right().Color() == task.Black) {
				sibling.SetColor(task.Red)
				node, parent = parent, parent.Parent()
			} else {
				if sibling.Left() == nil || sibling.Left().Color() == task.Black {
					if sibling.Right() != nil {
						sibling.Right().SetColor(task.Black)
					}
					sibling.SetColor(task.Red)
					t.rotateLeft(sibling)
					sibling = parent.Left()
				}
				sibling.SetColor(parent.Color())
				parent.SetColor(task.Black)
				if sibling.Left() != nil {
					sibling.Left().SetColor(task.Black)
				}
				t.rotateRight(parent)
				node = t.root
				parent = nil
			}
		}
	}
	if node != nil {
		node.SetColor(task.Black)
	}
}

// PopMin removes and returns the minimum-VRuntime task, or nil if the
// tree is empty. Equivalent to reading MinVRuntime then deleting it
// (spec.md §4.1).
func (t *Tree) PopMin() *task.Task {
	t.mu.Lock()
	min := t.min
	if min == nil {
		t.mu.Unlock()
		return nil
	}
	t.delete(min)
	t.totalWeight -= min.Weight
	t.count--
	t.min = leftmost(t.root)
	t.mu.Unlock()
	return min
}

// InOrder calls fn for every task in the tree in ascending-VRuntime
// order, used by the ps/procdump diagnostic (spec.md §6). fn must not
// mutate the tree.
func (t *Tree) InOrder(fn func(*task.Task)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var walk func(*task.Task)
	walk = func(n *task.Task) {
		if n == nil {
			return
		}
		walk(n.Left())
		fn(n)
		walk(n.Right())
	}
	walk(t.root)
}

func leftmost(n *task.Task) *task.Task {
	if n == nil {
		return nil
	}
	for n.Left() != nil {
		n = n.Left()
	}
	return n
}
