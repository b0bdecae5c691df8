package main

import (
	"github.com/BurntSushi/toml"

	"github.com/orizon-lang/cfsched/internal/cfskernel"
)

// TaskSpec describes one demo task a scenario forks off init.
type TaskSpec struct {
	Name  string `toml:"name"`
	Nice  int32  `toml:"nice"`
	Ticks int    `toml:"ticks"`
}

// Scenario is the TOML shape cfsctl loads: the scheduler's tunables plus
// an ordered list of demo tasks to fork and run to completion.
type Scenario struct {
	NPROC          int        `toml:"nproc"`
	MinGranularity uint64     `toml:"min_granularity"`
	SchedLatency   uint64     `toml:"sched_latency"`
	NumCPU         int        `toml:"num_cpu"`
	Tasks          []TaskSpec `toml:"tasks"`
}

// defaultScenario runs with cfskernel.DefaultConfig()'s tunables and two
// tasks of differing niceness, enough to show CFS's proportional split
// in the final ps dump.
func defaultScenario() Scenario {
	cfg := cfskernel.DefaultConfig()
	return Scenario{
		NPROC:          cfg.NPROC,
		MinGranularity: cfg.MinGranularity,
		SchedLatency:   cfg.SchedLatency,
		NumCPU:         cfg.NumCPU,
		Tasks: []TaskSpec{
			{Name: "worker-nice0", Nice: 0, Ticks: 200},
			{Name: "worker-nice10", Nice: 10, Ticks: 200},
		},
	}
}

// loadScenario reads path as TOML, or returns defaultScenario if path is
// empty.
func loadScenario(path string) (Scenario, error) {
	if path == "" {
		return defaultScenario(), nil
	}
	var sc Scenario
	if _, err := toml.DecodeFile(path, &sc); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

func (sc Scenario) config() cfskernel.Config {
	cfg := cfskernel.DefaultConfig()
	if sc.NPROC > 0 {
		cfg.NPROC = sc.NPROC
	}
	if sc.MinGranularity > 0 {
		cfg.MinGranularity = sc.MinGranularity
	}
	if sc.SchedLatency > 0 {
		cfg.SchedLatency = sc.SchedLatency
	}
	if sc.NumCPU > 0 {
		cfg.NumCPU = sc.NumCPU
	}
	return cfg
}
