package cfskernel

import (
	"unsafe"

	"github.com/orizon-lang/cfsched/internal/sched"
	"github.com/orizon-lang/cfsched/internal/task"
)

// TaskHandle is the capability a running task's Workload uses to call
// back into the scheduler: proc.c's "curproc", but passed explicitly
// rather than read from a per-CPU global, since that is how Go code
// naturally threads this kind of context.
type TaskHandle struct {
	m   *Machine
	pid int32
}

// PID returns the handle's own task id.
func (h *TaskHandle) PID() int32 { return h.pid }

// startWorkload launches pid's driver goroutine. The goroutine blocks on
// its resume channel until a CPU actually dispatches it for the first
// time.
func (m *Machine) startWorkload(pid int32, wl Workload) {
	rt := m.runtimeFor(pid)
	h := &TaskHandle{m: m, pid: pid}
	go func() {
		<-rt.resume
		if wl != nil {
			wl(h)
		}
		h.Exit()
	}()
}

// Fork allocates a new task as a child of parent, copying its niceness,
// and enqueues it RUNNABLE (proc.c's fork()). wl is the child's
// Workload; it only begins executing once a CPU dispatches it. Returns
// ErrTableFull if no slot is free, or an error from the run queue if it
// is unexpectedly at capacity (the table and tree share NPROC, so this
// should not occur; fork unwinds the allocation if it does, per spec.md
// §4.8).
func (m *Machine) Fork(parent *TaskHandle, name string, wl Workload) (int32, error) {
	m.table.Lock()
	p := m.table.Find(parent.pid)
	if p == nil {
		m.table.Unlock()
		return -1, ErrUnknownPID
	}

	child := m.table.Allocate()
	if child == nil {
		m.table.Unlock()
		return -1, ErrTableFull
	}

	stack, err := m.collab.AllocateKernelStack(child.PID)
	if err != nil {
		m.table.Free(child)
		m.table.Unlock()
		return -1, err
	}

	child.ParentPID = p.PID
	child.Name = name
	child.Nice = p.Nice
	child.Weight = sched.WeightForNice(child.Nice)
	child.State = task.Runnable

	if err := m.tree.Insert(child); err != nil {
		m.table.Free(child)
		m.table.Unlock()
		return -1, err
	}
	pid := child.PID
	m.table.Unlock()

	rt := m.runtimeFor(pid)
	rt.stack = stack

	m.startWorkload(pid, wl)
	if m.metrics != nil {
		m.metrics.forks.Inc()
	}
	return pid, nil
}

// Exit transitions the calling task to ZOMBIE, reparents its children to
// init (waking init if any child is already a zombie), wakes its parent
// if the parent is waiting, and ends the task's driver goroutine
// (proc.c's exit()). The init task may never exit.
func (h *TaskHandle) Exit() {
	m := h.m
	m.table.Lock()
	cur := m.table.Find(h.pid)
	if cur == nil {
		m.table.Unlock()
		return
	}
	if cur.PID == m.cfg.InitPID {
		m.table.Unlock()
		m.kpanic("init task (pid %d) may not exit", cur.PID)
	}

	m.collab.CloseFiles(cur.PID)

	if parent := m.table.Find(cur.ParentPID); parent != nil {
		m.wakeLocked(unsafe.Pointer(parent))
	}

	initPID := m.cfg.InitPID
	m.table.ForEach(func(c *task.Task) {
		if c.ParentPID != cur.PID {
			return
		}
		c.ParentPID = initPID
		if c.State == task.Zombie {
			if initTask := m.table.Find(initPID); initTask != nil {
				m.wakeLocked(unsafe.Pointer(initTask))
			}
		}
	})

	cur.State = task.Zombie
	m.table.Unlock()

	if m.metrics != nil {
		m.metrics.exits.Inc()
	}

	rt := m.runtimeFor(h.pid)
	rt.yield <- runSignal{}
	// The driver goroutine returns here; RunCPU never resumes a ZOMBIE,
	// so this goroutine's resume channel is never read again.
}

// Wait blocks the calling task until one of its children becomes a
// zombie, reaps it, and returns its pid (proc.c's wait()). Returns
// ErrNoChildren if the caller has no children, or has been killed while
// waiting.
func (h *TaskHandle) Wait() (int32, error) {
	m := h.m
	m.table.Lock()
	for {
		haveKids := false
		var zombie *task.Task
		m.table.ForEach(func(c *task.Task) {
			if c.ParentPID != h.pid {
				return
			}
			haveKids = true
			if zombie == nil && c.State == task.Zombie {
				zombie = c
			}
		})

		if zombie != nil {
			pid := zombie.PID
			stack := m.runtimeFor(pid).stack
			m.collab.FreeKernelStack(pid, stack)
			m.dropRuntime(pid)
			m.table.Free(zombie)
			m.table.Unlock()
			return pid, nil
		}

		cur := m.table.Find(h.pid)
		if !haveKids || (cur != nil && cur.Killed) {
			m.table.Unlock()
			return -1, ErrNoChildren
		}

		m.table.Unlock()
		h.Sleep(unsafe.Pointer(cur))
		m.table.Lock()
	}
}

// Sleep blocks the calling task until something calls Wake (or Kill) on
// channel, storing a caller-pc trace for the ps diagnostic along the way
// (proc.c's sleep()).
func (h *TaskHandle) Sleep(channel unsafe.Pointer) {
	m := h.m
	m.table.Lock()
	cur := m.table.Find(h.pid)
	if cur == nil {
		m.table.Unlock()
		return
	}
	cur.Channel = channel
	cur.State = task.Sleeping
	cur.SleepTraceLen = captureTrace(cur.SleepTrace[:])
	m.table.Unlock()

	rt := m.runtimeFor(h.pid)
	rt.yield <- runSignal{}
	<-rt.resume

	m.table.Lock()
	if cur.State != task.Zombie {
		cur.Channel = nil
	}
	m.table.Unlock()
}

// Yield re-evaluates the preemption predicate (spec.md §4.6) and, if it
// says to preempt, advances the task's vruntime, re-enqueues it
// RUNNABLE, and gives up the CPU until redispatched (proc.c's yield()).
// If the predicate says not to preempt, Yield returns immediately
// without giving up the CPU.
func (h *TaskHandle) Yield() {
	m := h.m
	m.table.Lock()
	cur := m.table.Find(h.pid)
	if cur == nil {
		m.table.Unlock()
		return
	}
	treeMin := m.tree.MinVRuntime()
	if !sched.ShouldPreempt(cur, treeMin, m.cfg.MinGranularity) {
		m.table.Unlock()
		return
	}

	sched.AdvanceVRuntime(cur)
	cur.State = task.Runnable
	if err := m.tree.Insert(cur); err != nil {
		m.table.Unlock()
		m.kpanic("yield: %v", err)
	}
	m.table.Unlock()

	if m.metrics != nil {
		m.metrics.preemptions.Inc()
	}

	rt := m.runtimeFor(h.pid)
	rt.yield <- runSignal{}
	<-rt.resume
}

// Tick is the timer-tick collaborator hook (spec.md §6): it adds elapsed
// to the task's accumulated cruntime and then calls Yield, exactly as a
// real timer interrupt increments ticks and calls yield() at each tick.
func (h *TaskHandle) Tick(elapsed uint64) {
	m := h.m
	m.table.Lock()
	cur := m.table.Find(h.pid)
	if cur == nil {
		m.table.Unlock()
		return
	}
	cur.CRuntime += elapsed
	m.table.Unlock()
	h.Yield()
}

// Nice adjusts the calling task's own niceness, a convenience wrapper
// around Machine.Nice for workloads that only know their own pid.
func (h *TaskHandle) Nice(delta int32) error {
	return h.m.Nice(h.pid, delta)
}

// Killed reports whether the calling task has been marked killed, for a
// Workload to check voluntarily at a convenient point, mirroring
// proc.c's "if(proc->killed) exit()" checks sprinkled through trap
// return and sleep's wakeup path.
func (h *TaskHandle) Killed() bool {
	m := h.m
	m.table.Lock()
	defer m.table.Unlock()
	t := m.table.Find(h.pid)
	return t != nil && t.Killed
}
