// Package task provides the CFS task descriptor and the fixed-capacity
// task table that owns task storage.
package task

import (
	"sync"
	"unsafe"
)

// State is the lifecycle state of a task.
type State uint8

const (
	Unused State = iota
	Embryo
	Sleeping
	Runnable
	Running
	Zombie
)

func (s State) String() string {
	switch s {
	case Unused:
		return "UNUSED"
	case Embryo:
		return "EMBRYO"
	case Sleeping:
		return "SLEEPING"
	case Runnable:
		return "RUNNABLE"
	case Running:
		return "RUNNING"
	case Zombie:
		return "ZOMBIE"
	default:
		return "UNKNOWN"
	}
}

// Color is the red-black tree node color embedded in a Task.
type Color bool

const (
	Black Color = false
	Red   Color = true
)

// NominalWeight is weight_table[20], the weight of a nice=0 task, used as
// the numerator in the vruntime advancement formula (spec.md §4.3).
const NominalWeight = 1024

// SleepTraceDepth bounds the number of caller PCs captured when a task
// blocks in Sleep, per the ps/procdump diagnostic (spec.md §6).
const SleepTraceDepth = 10

// Task is a single scheduled entity. Tree links are embedded directly
// (SPEC_FULL.md §3/§9): the task table is the arena, and a Task is never
// allocated separately from its tree node.
type Task struct {
	PID       int32
	ParentPID int32
	State     State
	Killed    bool
	Name      string

	Nice      int32
	Weight    uint64
	VRuntime  uint64
	CRuntime  uint64
	TRuntime  uint64
	Timeslice uint64

	// Channel is the wake-channel address this task is sleeping on, or nil.
	// Any Go pointer value may serve as a channel (SPEC_FULL.md §3, "not a
	// condition variable" — sleep/wake rendezvous by address).
	Channel unsafe.Pointer

	// SleepTrace holds up to SleepTraceDepth caller PCs captured at the
	// moment the task called Sleep, for the ps diagnostic's sleeper trace.
	SleepTrace    [SleepTraceDepth]uintptr
	SleepTraceLen int

	// Intrusive red-black tree links, owned by the tree lock (sched.Tree),
	// not the table lock. Mutated only while Insert/Delete holds that lock.
	left, right, parent *Task
	color                Color
}

// Left, Right, Parent and Color expose the tree links to the sched
// package without making them part of the table-lock-guarded surface;
// callers outside internal/sched must not use these.

func (t *Task) Left() *Task    { return t.left }
func (t *Task) Right() *Task   { return t.right }
func (t *Task) Parent() *Task  { return t.parent }
func (t *Task) Color() Color   { return t.color }

func (t *Task) SetLeft(n *Task)   { t.left = n }
func (t *Task) SetRight(n *Task)  { t.right = n }
func (t *Task) SetParent(n *Task) { t.parent = n }
func (t *Task) SetColor(c Color)  { t.color = c }

// resetLinks clears tree links and color ahead of a fresh insertion,
// mirroring allocate_task's "tree links null, color red" (spec.md §4.8).
func (t *Task) resetLinks() {
	t.left, t.right, t.parent = nil, nil, nil
	t.color = Red
}

// Table is the fixed-capacity pool of task slots guarded by the single
// table lock (spec.md §3), serializing lifecycle transitions and wakeup
// scans.
type Table struct {
	mu     sync.Mutex
	slots  []Task
	nproc  int
	nextPID int32
}

// NewTable allocates a Table with nproc fixed slots, all UNUSED.
func NewTable(nproc int) *Table {
	return &Table{
		slots:   make([]Task, nproc),
		nproc:   nproc,
		nextPID: 1,
	}
}

// Lock and Unlock expose the table lock so lifecycle hooks spanning
// multiple Table/Tree operations can hold it across the whole sequence,
// per the table-lock-then-tree-lock acquisition order (spec.md §3, §5).
func (t *Table) Lock()   { t.mu.Lock() }
func (t *Table) Unlock() { t.mu.Unlock() }

// NPROC returns the table's fixed capacity.
func (t *Table) NPROC() int { return t.nproc }

// Allocate finds an UNUSED slot, transitions it to EMBRYO, assigns a
// fresh pid, and zeroes scheduling fields (spec.md §4.8 allocate_task).
// Must be called with the table lock held.
func (t *Table) Allocate() *Task {
	for i := range t.slots {
		if t.slots[i].State == Unused {
			s := &t.slots[i]
			pid := t.nextPID
			t.nextPID++
			*s = Task{
				PID:   pid,
				State: Embryo,
			}
			s.resetLinks()
			return s
		}
	}
	return nil
}

// Free returns a task's slot to UNUSED, zeroing its pid, as wait()
// reclaims a reaped zombie (spec.md §4.8 wait).
// Must be called with the table lock held.
func (t *Table) Free(tk *Task) {
	tk.State = Unused
	tk.PID = 0
	tk.ParentPID = 0
	tk.Killed = false
	tk.Name = ""
	tk.Channel = nil
	tk.SleepTraceLen = 0
	tk.resetLinks()
}

// ForEach calls fn for every non-UNUSED slot, in table order. fn must not
// mutate table membership (allocate/free); it may mutate per-task fields.
// Must be called with the table lock held.
func (t *Table) ForEach(fn func(*Task)) {
	for i := range t.slots {
		if t.slots[i].State != Unused {
			fn(&t.slots[i])
		}
	}
}

// Find returns the task with the given pid, or nil. Must be called with
// the table lock held.
func (t *Table) Find(pid int32) *Task {
	for i := range t.slots {
		if t.slots[i].State != Unused && t.slots[i].PID == pid {
			return &t.slots[i]
		}
	}
	return nil
}

// Slots exposes the underlying slot slice, UNUSED slots included, for the
// ps/procdump diagnostic, which walks it in table order and skips the
// UNUSED ones itself.
// Must be called with the table lock held.
func (t *Table) Slots() []Task { return t.slots }
