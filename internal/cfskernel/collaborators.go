package cfskernel

import "github.com/orizon-lang/cfsched/internal/task"

// Collaborators is the seam between the scheduler core and the parts of
// a real kernel this module deliberately does not model (address-space
// switching, kernel stacks, open file tables — spec.md §1 Non-goals).
// Machine calls these at the exact points xv6's scheduler/fork/exit call
// switchuvm/switchkvm/setupkvm/kfree/close, so a host can plug in real
// implementations without touching scheduling logic (SPEC_FULL.md §6).
type Collaborators interface {
	// SwitchAddressSpace is called once a task has been popped and is
	// about to run, mirroring switchuvm(p).
	SwitchAddressSpace(t *task.Task)

	// SwitchToKernelAddressSpace is called immediately after a task
	// yields the CPU back to the scheduler, mirroring switchkvm().
	SwitchToKernelAddressSpace()

	// AllocateKernelStack is called during Fork to reserve whatever a
	// real kernel would need for the new task's trap frame and kernel
	// stack, mirroring kalloc()+setupkvm() in allocproc.
	AllocateKernelStack(pid int32) (uintptr, error)

	// FreeKernelStack is called when a zombie is reaped in Wait,
	// mirroring kfree(p->kstack).
	FreeKernelStack(pid int32, stack uintptr)

	// CloseFiles is called during Exit, mirroring the close-all-open-fds
	// loop at the top of exit().
	CloseFiles(pid int32)
}

// NullCollaborators is a no-op Collaborators, sufficient for every test
// and simulation in this module since none of them touch real memory
// management or file descriptors.
type NullCollaborators struct{}

func (NullCollaborators) SwitchAddressSpace(*task.Task)   {}
func (NullCollaborators) SwitchToKernelAddressSpace()     {}
func (NullCollaborators) CloseFiles(int32)                {}

func (NullCollaborators) AllocateKernelStack(pid int32) (uintptr, error) {
	return uintptr(pid), nil
}

func (NullCollaborators) FreeKernelStack(int32, uintptr) {}
