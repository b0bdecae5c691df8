package cfskernel

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/orizon-lang/cfsched/internal/sched"
	"github.com/orizon-lang/cfsched/internal/task"
)

// idlePoll bounds how long RunCPU sleeps before re-checking the run
// queue when it finds nothing runnable, standing in for xv6's sti()
// followed by waiting for the next interrupt.
const idlePoll = time.Millisecond

// RunCPU runs one simulated CPU's scheduler loop until ctx is canceled,
// generalizing proc.c's scheduler(): pop the minimum-vruntime task,
// compute its period/timeslice, dispatch it, and account the context
// switch once it yields the CPU back. cpuID is used only for logging.
func (m *Machine) RunCPU(ctx context.Context, cpuID int) {
	log := m.log.With(zap.Int("cpu", cpuID))
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		m.table.Lock()
		t := m.tree.PopMin()
		if t == nil {
			m.table.Unlock()
			select {
			case <-ctx.Done():
				return
			case <-time.After(idlePoll):
			}
			continue
		}

		t.State = task.Running
		// getproc() (proc.c:368,466) calls rbpopMinimum, which decrements
		// tree->count inside rbdelete, and only then computes the period
		// from the already-decremented count — the dispatched task itself
		// is excluded. m.tree.PopMin above has already removed t, so
		// m.tree.Count() here is that same post-pop count.
		period := sched.Period(m.tree.Count(), m.cfg.SchedLatency, m.cfg.MinGranularity)
		t.Timeslice = sched.Timeslice(period, t.Weight, m.tree.TotalWeight())
		pid := t.PID
		name := t.Name
		m.table.Unlock()

		log.Debug("dispatch", zap.Int32("pid", pid), zap.String("name", name), zap.Uint64("timeslice", t.Timeslice))

		m.collab.SwitchAddressSpace(t)
		rt := m.runtimeFor(pid)
		rt.resume <- runSignal{}
		<-rt.yield
		m.collab.SwitchToKernelAddressSpace()

		if m.metrics != nil {
			m.metrics.contextSwitches.Inc()
		}

		m.table.Lock()
		if t.State == task.Running {
			m.table.Unlock()
			m.kpanic("pid %d relinquished the CPU without changing state", pid)
		}
		m.updateGaugesLocked()
		m.table.Unlock()
	}
}

// updateGaugesLocked refreshes the runnable/sleeping Prometheus gauges.
// Must be called with the table lock held.
func (m *Machine) updateGaugesLocked() {
	if m.metrics == nil {
		return
	}
	sleeping := 0
	m.table.ForEach(func(t *task.Task) {
		if t.State == task.Sleeping {
			sleeping++
		}
	})
	m.metrics.runnable.Set(float64(m.tree.Count()))
	m.metrics.sleeping.Set(float64(sleeping))
}
