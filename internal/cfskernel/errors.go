package cfskernel

import "errors"

// Sentinel errors surfaced by lifecycle hooks, matched with errors.Is.
var (
	// ErrTableFull is returned by Fork when every task slot is in use
	// (proc.c's fork() returning -1 when allocproc fails).
	ErrTableFull = errors.New("cfskernel: task table at capacity")

	// ErrNoChildren is returned by Wait when the calling task has no
	// children left to reap, or has been killed while waiting.
	ErrNoChildren = errors.New("cfskernel: no children to wait for")

	// ErrUnknownPID is returned by Kill and Nice when no task with the
	// given pid exists.
	ErrUnknownPID = errors.New("cfskernel: unknown pid")
)
