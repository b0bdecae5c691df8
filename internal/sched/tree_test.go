package sched

import (
	"math/rand"
	"testing"

	"github.com/orizon-lang/cfsched/internal/task"
)

func newTestTask(pid int32, vruntime, weight uint64) *task.Task {
	tk := &task.Task{PID: pid, State: task.Runnable, VRuntime: vruntime, Weight: weight}
	return tk
}

// checkInvariants walks tr.root and fails t if any red-black property is
// violated: root is black, no red node has a red child, and every
// root-to-nil path has the same black height.
func checkInvariants(t *testing.T, tr *Tree) {
	t.Helper()
	if tr.root == nil {
		return
	}
	if tr.root.Color() != task.Black {
		t.Fatalf("root is not black")
	}
	if tr.root.Parent() != nil {
		t.Fatalf("root has a non-nil parent")
	}

	var walk func(n *task.Task) (blackHeight int, count int, weight uint64)
	walk = func(n *task.Task) (int, int, uint64) {
		if n == nil {
			return 1, 0, 0
		}
		if n.Left() != nil && n.Left().Parent() != n {
			t.Fatalf("left child's parent pointer is wrong at pid %d", n.PID)
		}
		if n.Right() != nil && n.Right().Parent() != n {
			t.Fatalf("right child's parent pointer is wrong at pid %d", n.PID)
		}
		if n.Left() != nil && n.Left().VRuntime > n.VRuntime {
			t.Fatalf("BST order violated: left child vruntime %d > parent %d", n.Left().VRuntime, n.VRuntime)
		}
		if n.Right() != nil && n.Right().VRuntime < n.VRuntime {
			t.Fatalf("BST order violated: right child vruntime %d < parent %d", n.Right().VRuntime, n.VRuntime)
		}
		if n.Color() == task.Red {
			if n.Left() != nil && n.Left().Color() == task.Red {
				t.Fatalf("red node pid %d has red left child", n.PID)
			}
			if n.Right() != nil && n.Right().Color() == task.Red {
				t.Fatalf("red node pid %d has red right child", n.PID)
			}
		}
		lh, lc, lw := walk(n.Left())
		rh, rc, rw := walk(n.Right())
		if lh != rh {
			t.Fatalf("black height mismatch at pid %d: left %d right %d", n.PID, lh, rh)
		}
		bh := lh
		if n.Color() == task.Black {
			bh++
		}
		return bh, lc + rc + 1, lw + rw + n.Weight
	}
	_, count, weight := walk(tr.root)
	if count != tr.count {
		t.Fatalf("count mismatch: walked %d, cached %d", count, tr.count)
	}
	if weight != tr.totalWeight {
		t.Fatalf("totalWeight mismatch: walked %d, cached %d", weight, tr.totalWeight)
	}
	wantMin := leftmost(tr.root)
	if tr.min != wantMin {
		t.Fatalf("cached min is stale: cached pid %v, actual leftmost pid %v", pidOrNil(tr.min), pidOrNil(wantMin))
	}
}

func pidOrNil(t *task.Task) any {
	if t == nil {
		return nil
	}
	return t.PID
}

func TestTreeInsertMaintainsInvariants(t *testing.T) {
	tr := NewTree(200)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		tk := newTestTask(int32(i+1), uint64(rng.Intn(100000)), 1024)
		if err := tr.Insert(tk); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		checkInvariants(t, tr)
	}
	if tr.Count() != 200 {
		t.Fatalf("count = %d, want 200", tr.Count())
	}
}

func TestTreeInsertFullReturnsError(t *testing.T) {
	tr := NewTree(2)
	if err := tr.Insert(newTestTask(1, 1, 1024)); err != nil {
		t.Fatal(err)
	}
	if err := tr.Insert(newTestTask(2, 2, 1024)); err != nil {
		t.Fatal(err)
	}
	if err := tr.Insert(newTestTask(3, 3, 1024)); err != ErrTreeFull {
		t.Fatalf("Insert on full tree = %v, want ErrTreeFull", err)
	}
}

func TestTreeMinVRuntime(t *testing.T) {
	tr := NewTree(64)
	tasks := []*task.Task{
		newTestTask(1, 500, 1024),
		newTestTask(2, 100, 1024),
		newTestTask(3, 900, 1024),
		newTestTask(4, 50, 1024),
	}
	for _, tk := range tasks {
		if err := tr.Insert(tk); err != nil {
			t.Fatal(err)
		}
	}
	if min := tr.MinVRuntime(); min == nil || min.PID != 4 {
		t.Fatalf("MinVRuntime = %v, want pid 4", pidOrNil(min))
	}
}

func TestTreeDeleteMaintainsInvariantsRandomOrder(t *testing.T) {
	tr := NewTree(256)
	rng := rand.New(rand.NewSource(42))

	n := 256
	tasks := make([]*task.Task, n)
	for i := 0; i < n; i++ {
		tasks[i] = newTestTask(int32(i+1), uint64(rng.Intn(1_000_000)), 1024)
		if err := tr.Insert(tasks[i]); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	checkInvariants(t, tr)

	order := rng.Perm(n)
	for _, idx := range order {
		tr.Delete(tasks[idx])
		checkInvariants(t, tr)
	}
	if tr.Count() != 0 {
		t.Fatalf("count after deleting all = %d, want 0", tr.Count())
	}
	if tr.root != nil {
		t.Fatalf("root not nil after deleting all nodes")
	}
}

func TestTreePopMinOrdering(t *testing.T) {
	tr := NewTree(64)
	vruntimes := []uint64{30, 10, 50, 20, 40}
	for i, v := range vruntimes {
		if err := tr.Insert(newTestTask(int32(i+1), v, 1024)); err != nil {
			t.Fatal(err)
		}
	}

	var popped []uint64
	for {
		tk := tr.PopMin()
		if tk == nil {
			break
		}
		popped = append(popped, tk.VRuntime)
		checkInvariants(t, tr)
	}
	want := []uint64{10, 20, 30, 40, 50}
	if len(popped) != len(want) {
		t.Fatalf("popped %v, want %v", popped, want)
	}
	for i := range want {
		if popped[i] != want[i] {
			t.Fatalf("popped[%d] = %d, want %d", i, popped[i], want[i])
		}
	}
}

func TestTreePopMinFIFOAmongEqualVRuntime(t *testing.T) {
	// spec.md §8 property 8: equal-vruntime tasks pop in insertion order.
	tr := NewTree(64)
	tasks := make([]*task.Task, 5)
	for i := range tasks {
		tasks[i] = newTestTask(int32(i+1), 100, 1024)
		if err := tr.Insert(tasks[i]); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		checkInvariants(t, tr)
	}

	for i, want := range tasks {
		got := tr.PopMin()
		if got == nil || got.PID != want.PID {
			t.Fatalf("pop %d = pid %v, want pid %d (FIFO among ties)", i, pidOrNil(got), want.PID)
		}
		checkInvariants(t, tr)
	}
}

func TestTreeInOrderAscending(t *testing.T) {
	tr := NewTree(64)
	for _, v := range []uint64{7, 3, 9, 1, 5} {
		if err := tr.Insert(newTestTask(int32(v), v, 1024)); err != nil {
			t.Fatal(err)
		}
	}
	var seen []uint64
	tr.InOrder(func(tk *task.Task) {
		seen = append(seen, tk.VRuntime)
	})
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Fatalf("InOrder not ascending: %v", seen)
		}
	}
	if len(seen) != 5 {
		t.Fatalf("InOrder visited %d nodes, want 5", len(seen))
	}
}
