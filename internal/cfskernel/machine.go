// Package cfskernel wires the red-black run queue (internal/sched) and
// the task table (internal/task) into a runnable scheduler: per-CPU
// dispatch loops and the task lifecycle hooks (fork/exit/wait/sleep/
// wake/kill/yield/nice) that mutate them, grounded on proc.c's
// scheduler()/fork()/exit()/wait()/sleep()/wakeup1()/kill()/yield()/nice()
// and generalized from the teacher's AdvancedScheduler dispatch loop
// (internal/runtime/kernel/scheduler.go).
package cfskernel

import (
	"fmt"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/orizon-lang/cfsched/internal/sched"
	"github.com/orizon-lang/cfsched/internal/task"
)

// Machine owns the task table, the run queue, and one goroutine per
// simulated CPU. It is the top-level object a host program constructs;
// nothing in internal/sched or internal/task knows a Machine exists.
type Machine struct {
	cfg     Config
	table   *task.Table
	tree    *sched.Tree
	collab  Collaborators
	log     *zap.Logger
	metrics *Metrics

	rtMu     sync.Mutex
	runtimes map[int32]*taskRuntime
}

// NewMachine constructs a Machine, allocates pid 1 (the init task) as the first
// table slot, and inserts it RUNNABLE so RunCPU has something to dispatch
// (proc.c's userinit()).
func NewMachine(cfg Config, collab Collaborators, log *zap.Logger, metrics *Metrics) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if collab == nil {
		collab = NullCollaborators{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	m := &Machine{
		cfg:      cfg,
		table:    task.NewTable(cfg.NPROC),
		tree:     sched.NewTree(cfg.NPROC),
		collab:   collab,
		log:      log,
		metrics:  metrics,
		runtimes: make(map[int32]*taskRuntime),
	}

	m.table.Lock()
	init := m.table.Allocate()
	if init == nil {
		m.table.Unlock()
		return nil, fmt.Errorf("cfskernel: NPROC=%d too small to allocate init", cfg.NPROC)
	}
	if init.PID != cfg.InitPID {
		m.table.Unlock()
		return nil, fmt.Errorf("cfskernel: first allocated pid %d does not match configured InitPID %d", init.PID, cfg.InitPID)
	}
	init.Name = "init"
	init.ParentPID = init.PID
	init.Nice = 0
	init.Weight = sched.WeightForNice(0)
	init.State = task.Runnable
	if err := m.tree.Insert(init); err != nil {
		m.table.Unlock()
		return nil, err
	}
	pid := init.PID
	m.table.Unlock()

	m.startWorkload(pid, reaperWorkload)

	return m, nil
}

// InitHandle returns a TaskHandle for the init task, usable as Fork's
// parent by a host program that has no task handle of its own.
func (m *Machine) InitHandle() *TaskHandle {
	return &TaskHandle{m: m, pid: m.cfg.InitPID}
}

// reaperWorkload is init's permanent job: reap every orphan reparented
// to it, exactly as proc.c's init calls wait() in an endless loop.
func reaperWorkload(h *TaskHandle) {
	for {
		if _, err := h.Wait(); err != nil {
			h.Tick(1)
		}
	}
}

// kpanic logs a fatal invariant violation and panics, mirroring proc.c's
// calls to panic() on scheduler-invariant violations (spec.md §7).
func (m *Machine) kpanic(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	m.log.Error("cfskernel: fatal scheduler invariant violation", zap.String("reason", msg))
	panic("cfskernel: " + msg)
}

func (m *Machine) runtimeFor(pid int32) *taskRuntime {
	m.rtMu.Lock()
	defer m.rtMu.Unlock()
	rt := m.runtimes[pid]
	if rt == nil {
		rt = newTaskRuntime()
		m.runtimes[pid] = rt
	}
	return rt
}

func (m *Machine) dropRuntime(pid int32) {
	m.rtMu.Lock()
	defer m.rtMu.Unlock()
	delete(m.runtimes, pid)
}

// wakeLocked scans the table for SLEEPING tasks waiting on channel and
// transitions each into the run queue, mirroring proc.c's wakeup1.
// Must be called with the table lock held.
func (m *Machine) wakeLocked(channel unsafe.Pointer) {
	m.table.ForEach(func(t *task.Task) {
		if t.State == task.Sleeping && t.Channel == channel {
			t.State = task.Runnable
			sched.AdvanceVRuntime(t)
			if err := m.tree.Insert(t); err != nil {
				m.kpanic("wake: %v", err)
			}
			if m.metrics != nil {
				m.metrics.wakes.Inc()
			}
		}
	})
}

// Wake wakes every SLEEPING task waiting on channel, mirroring proc.c's
// wakeup() (the lock-wrapped entry point around wakeup1).
func (m *Machine) Wake(channel unsafe.Pointer) {
	m.table.Lock()
	m.wakeLocked(channel)
	m.table.Unlock()
}

// Kill marks pid as killed and, if it is currently SLEEPING, wakes it so
// it observes Killed promptly (proc.c's kill()). Returns ErrUnknownPID if
// no such task exists.
func (m *Machine) Kill(pid int32) error {
	m.table.Lock()
	defer m.table.Unlock()
	t := m.table.Find(pid)
	if t == nil {
		return ErrUnknownPID
	}
	t.Killed = true
	if t.State == task.Sleeping {
		t.State = task.Runnable
		sched.AdvanceVRuntime(t)
		if err := m.tree.Insert(t); err != nil {
			m.kpanic("kill: %v", err)
		}
	}
	if m.metrics != nil {
		m.metrics.kills.Inc()
	}
	return nil
}

// Nice adjusts pid's niceness by delta, clamped to [-20, 19] exactly as
// proc.c's nice() clamps (saturating, not wrapping, at either bound), and
// recomputes Weight from the new value. A RUNNABLE task is taken out of
// the run queue and re-enqueued around the weight change so the tree's
// total weight stays equal to the sum of its members' weights.
func (m *Machine) Nice(pid int32, delta int32) error {
	m.table.Lock()
	defer m.table.Unlock()
	t := m.table.Find(pid)
	if t == nil {
		return ErrUnknownPID
	}
	next := t.Nice + delta
	if next > 19 {
		next = 19
	} else if next < -20 {
		next = -20
	}
	t.Nice = next
	if t.State != task.Runnable {
		t.Weight = sched.WeightForNice(next)
		return nil
	}
	m.tree.Delete(t)
	t.Weight = sched.WeightForNice(next)
	if err := m.tree.Insert(t); err != nil {
		m.kpanic("nice: %v", err)
	}
	return nil
}

// Table and Tree expose the underlying run queue and task table for
// diagnostics (internal/diag) and tests. Callers must take the
// appropriate lock before reading mutable fields.
func (m *Machine) Table() *task.Table { return m.table }
func (m *Machine) Tree() *sched.Tree  { return m.tree }
func (m *Machine) Config() Config     { return m.cfg }
