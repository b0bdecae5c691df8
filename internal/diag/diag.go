// Package diag renders the scheduler's live state in proc.c's
// procdump()/ps() format: one line per live task, followed by an
// in-order dump of the run queue.
package diag

import (
	"fmt"
	"io"

	"github.com/orizon-lang/cfsched/internal/sched"
	"github.com/orizon-lang/cfsched/internal/task"
)

// Dump writes a snapshot of tbl and tree to w. Unlike proc.c's procdump(),
// which deliberately skips ptable.lock around its per-process scan ("No
// lock to avoid wedging a stuck machine further"), Dump takes the table
// lock for the scan, since it is only ever called after every CPU loop
// has stopped (cfsctl's commands dump after canceling their CPUs). It
// takes the tree's own lock separately while walking the tree.
func Dump(w io.Writer, tbl *task.Table, tree *sched.Tree) {
	tbl.Lock()
	slots := tbl.Slots()
	for i := range slots {
		t := &slots[i]
		if t.State == task.Unused {
			continue
		}
		fmt.Fprintf(w, "%d %-8s %s nice=%d truntime=%d", t.PID, t.State, t.Name, t.Nice, t.TRuntime)
		switch t.State {
		case task.Runnable, task.Running:
			fmt.Fprintf(w, " [cruntime=%d vruntime=%d]", t.CRuntime, t.VRuntime)
		case task.Sleeping:
			for i := 0; i < t.SleepTraceLen; i++ {
				fmt.Fprintf(w, " %x", t.SleepTrace[i])
			}
		}
		fmt.Fprintln(w)
	}
	tbl.Unlock()

	fmt.Fprintln(w, "Tree:")
	tree.InOrder(func(t *task.Task) {
		fmt.Fprintf(w, "pid:%d vrun:%d name:%s\n", t.PID, t.VRuntime, t.Name)
	})
	fmt.Fprintln(w, "Tree done!")
}
