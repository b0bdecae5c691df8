package task

import "testing"

func TestTableAllocateAssignsIncreasingPIDs(t *testing.T) {
	tbl := NewTable(4)
	tbl.Lock()
	defer tbl.Unlock()

	a := tbl.Allocate()
	b := tbl.Allocate()
	if a == nil || b == nil {
		t.Fatal("expected two allocations to succeed")
	}
	if b.PID <= a.PID {
		t.Fatalf("second allocation pid %d not greater than first pid %d", b.PID, a.PID)
	}
	if a.State != Embryo || b.State != Embryo {
		t.Fatalf("freshly allocated tasks must be EMBRYO, got %v and %v", a.State, b.State)
	}
}

func TestTableAllocateFullReturnsNil(t *testing.T) {
	tbl := NewTable(2)
	tbl.Lock()
	defer tbl.Unlock()

	if tbl.Allocate() == nil {
		t.Fatal("expected first allocation to succeed")
	}
	if tbl.Allocate() == nil {
		t.Fatal("expected second allocation to succeed")
	}
	if tbl.Allocate() != nil {
		t.Fatal("expected third allocation on a 2-slot table to fail")
	}
}

func TestTableFreeRecyclesSlot(t *testing.T) {
	tbl := NewTable(1)
	tbl.Lock()

	a := tbl.Allocate()
	if a == nil {
		t.Fatal("expected allocation to succeed")
	}
	a.State = Zombie
	tbl.Free(a)
	if a.State != Unused {
		t.Fatalf("freed task state = %v, want UNUSED", a.State)
	}

	b := tbl.Allocate()
	if b == nil {
		t.Fatal("expected allocation after free to succeed")
	}
	tbl.Unlock()
}

func TestTableFindAndForEach(t *testing.T) {
	tbl := NewTable(4)
	tbl.Lock()
	a := tbl.Allocate()
	b := tbl.Allocate()
	tbl.Unlock()

	tbl.Lock()
	if got := tbl.Find(a.PID); got != a {
		t.Fatalf("Find(%d) did not return the allocated task", a.PID)
	}
	if got := tbl.Find(999); got != nil {
		t.Fatalf("Find(999) = %v, want nil", got)
	}
	count := 0
	tbl.ForEach(func(*Task) { count++ })
	if count != 2 {
		t.Fatalf("ForEach visited %d tasks, want 2", count)
	}
	tbl.Unlock()
	_ = b
}

func TestTaskResetLinksClearsTreeState(t *testing.T) {
	parent := &Task{PID: 1}
	child := &Task{PID: 2}
	child.SetParent(parent)
	child.SetColor(Black)
	child.resetLinks()
	if child.Parent() != nil || child.Left() != nil || child.Right() != nil {
		t.Fatal("resetLinks left a stale tree pointer")
	}
	if child.Color() != Red {
		t.Fatalf("resetLinks color = %v, want Red", child.Color())
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		Unused:   "UNUSED",
		Embryo:   "EMBRYO",
		Sleeping: "SLEEPING",
		Runnable: "RUNNABLE",
		Running:  "RUNNING",
		Zombie:   "ZOMBIE",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
