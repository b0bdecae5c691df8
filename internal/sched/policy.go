package sched

import "github.com/orizon-lang/cfsched/internal/task"

// AdvanceVRuntime advances t's virtual runtime using the corrected,
// non-truncating formula (spec.md §4.3, §9 — the authoritative form,
// since the naive `(weight_table[20]/weight) * cruntime` truncates to
// zero for every high-priority task, i.e. weight > NominalWeight):
//
//	vruntime += weight_table[20] * cruntime / weight
//
// CRuntime is then zeroed and TRuntime incremented by the prior
// CRuntime.
func AdvanceVRuntime(t *task.Task) {
	t.VRuntime += task.NominalWeight * t.CRuntime / t.Weight
	t.TRuntime += t.CRuntime
	t.CRuntime = 0
}

// Period recomputes the tree's scheduling-latency target for the
// current number of runnable tasks (spec.md §4.4):
//
//	if count > schedLatency/minGranularity: period = count*minGranularity
//	else:                                   period = schedLatency
//
// schedLatency must be a multiple of minGranularity; callers are
// responsible for that constraint (enforced at config load time).
func Period(count int, schedLatency, minGranularity uint64) uint64 {
	if uint64(count) > schedLatency/minGranularity {
		return uint64(count) * minGranularity
	}
	return schedLatency
}

// Timeslice computes the per-dispatch maximum runtime for a task of the
// given weight, proportional to its share of the run queue (spec.md
// §4.4). totalWeightAfterPop is the tree's TotalWeight() after the task
// has already been popped, so the denominator used here is
// totalWeightAfterPop+weight — numerically the total weight immediately
// before the pop (DESIGN.md, Open Question 2).
func Timeslice(period, weight, totalWeightAfterPop uint64) uint64 {
	denom := totalWeightAfterPop + weight
	if denom == 0 {
		return period
	}
	return period * weight / denom
}

// ShouldPreempt implements the preemption predicate of spec.md §4.6.
// current must be non-nil (a CPU only ever asks this about its running
// task); treeMin may be nil if the run queue is empty.
func ShouldPreempt(current *task.Task, treeMin *task.Task, minGranularity uint64) bool {
	sliceExhausted := current.CRuntime >= current.Timeslice
	fairerWaiting := treeMin != nil && treeMin.State == task.Runnable && current.VRuntime > treeMin.VRuntime

	// Minimum granularity protection: once a task has run for a little
	// while but not yet minGranularity, it cannot be preempted for any
	// reason.
	if current.CRuntime > 0 && current.CRuntime < minGranularity {
		return false
	}

	// A task that has just been dispatched (CRuntime == 0) hasn't run
	// yet at all; fairness alone must not preempt it immediately, only
	// a zero timeslice can (which sliceExhausted already captures, since
	// 0 >= Timeslice iff Timeslice == 0).
	if current.CRuntime == 0 {
		return sliceExhausted
	}

	return sliceExhausted || fairerWaiting
}
