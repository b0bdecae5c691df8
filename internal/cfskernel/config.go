package cfskernel

import "fmt"

// Config carries the compile-time tunables of spec.md §6: NPROC (slot
// count), min_granularity, sched_latency, plus the bookkeeping this Go
// simulation needs that a real kernel gets from boot parameters (the
// init pid, and how many simulated CPUs to run). Mirrors the teacher's
// KernelConfig/DefaultKernelConfig pattern (internal/runtime/kernel/kernel.go),
// generalized from a monolithic OS config to just the scheduler's own
// tunables.
type Config struct {
	NPROC          int    `toml:"nproc"`
	MinGranularity uint64 `toml:"min_granularity"`
	SchedLatency   uint64 `toml:"sched_latency"`
	InitPID        int32  `toml:"init_pid"`
	NumCPU         int    `toml:"num_cpu"`
}

// DefaultConfig returns the tunables spec.md §4.4 calls "typical values"
// (min_granularity=40, sched_latency=320), a modest NPROC, a single
// simulated CPU, and InitPID=1 (pid 1 is always the first task a Machine
// allocates).
func DefaultConfig() Config {
	return Config{
		NPROC:          64,
		MinGranularity: 40,
		SchedLatency:   320,
		InitPID:        1,
		NumCPU:         1,
	}
}

// Validate checks the constraints spec.md §6 places on the tunables.
func (c Config) Validate() error {
	if c.NPROC <= 0 {
		return fmt.Errorf("cfskernel: NPROC must be positive, got %d", c.NPROC)
	}
	if c.MinGranularity == 0 {
		return fmt.Errorf("cfskernel: min_granularity must be positive")
	}
	if c.SchedLatency == 0 || c.SchedLatency%c.MinGranularity != 0 {
		return fmt.Errorf("cfskernel: sched_latency (%d) must be a positive multiple of min_granularity (%d)", c.SchedLatency, c.MinGranularity)
	}
	if c.NumCPU <= 0 {
		return fmt.Errorf("cfskernel: NumCPU must be positive, got %d", c.NumCPU)
	}
	return nil
}
