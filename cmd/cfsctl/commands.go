package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/orizon-lang/cfsched/internal/cfskernel"
	"github.com/orizon-lang/cfsched/internal/diag"
)

func newMachine(cfg cfskernel.Config) (*cfskernel.Machine, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	metrics := cfskernel.NewMetrics(prometheus.NewRegistry())
	return cfskernel.NewMachine(cfg, cfskernel.NullCollaborators{}, logger, metrics)
}

// startCPUs launches cfg.NumCPU dispatch loops and returns a cancel func
// and a WaitGroup the caller should wait on after canceling.
func startCPUs(m *cfskernel.Machine, cfg cfskernel.Config) (context.CancelFunc, *sync.WaitGroup) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for i := 0; i < cfg.NumCPU; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			m.RunCPU(ctx, id)
		}(i)
	}
	return cancel, &wg
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a scenario to completion and print the final ps dump",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			sc, err := loadScenario(configPath)
			if err != nil {
				return err
			}
			return runScenario(cmd.OutOrStdout(), sc)
		},
	}
}

func runScenario(w io.Writer, sc Scenario) error {
	cfg := sc.config()
	m, err := newMachine(cfg)
	if err != nil {
		return err
	}
	cancel, cpus := startCPUs(m, cfg)

	var tasks sync.WaitGroup
	for _, spec := range sc.Tasks {
		spec := spec
		tasks.Add(1)
		_, err := m.Fork(m.InitHandle(), spec.Name, func(h *cfskernel.TaskHandle) {
			defer tasks.Done()
			if spec.Nice != 0 {
				_ = h.Nice(spec.Nice)
			}
			for i := 0; i < spec.Ticks; i++ {
				if h.Killed() {
					return
				}
				h.Tick(1)
			}
		})
		if err != nil {
			cancel()
			cpus.Wait()
			return fmt.Errorf("cfsctl: forking %q: %w", spec.Name, err)
		}
	}

	tasks.Wait()
	cancel()
	cpus.Wait()

	diag.Dump(w, m.Table(), m.Tree())
	return nil
}

func psCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ps",
		Short: "Print the scheduler state of a freshly booted machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			sc, err := loadScenario(configPath)
			if err != nil {
				return err
			}
			m, err := newMachine(sc.config())
			if err != nil {
				return err
			}
			diag.Dump(cmd.OutOrStdout(), m.Table(), m.Tree())
			return nil
		},
	}
}

func forkCmd() *cobra.Command {
	var name string
	var nice int32
	var ticks int
	cmd := &cobra.Command{
		Use:   "fork",
		Short: "Fork a single demo task off init, run it to completion, and dump the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			sc, err := loadScenario(configPath)
			if err != nil {
				return err
			}
			cfg := sc.config()
			m, err := newMachine(cfg)
			if err != nil {
				return err
			}
			cancel, cpus := startCPUs(m, cfg)

			var done sync.WaitGroup
			done.Add(1)
			pid, err := m.Fork(m.InitHandle(), name, func(h *cfskernel.TaskHandle) {
				defer done.Done()
				if nice != 0 {
					_ = h.Nice(nice)
				}
				for i := 0; i < ticks; i++ {
					h.Tick(1)
				}
			})
			if err != nil {
				cancel()
				cpus.Wait()
				return err
			}

			done.Wait()
			cancel()
			cpus.Wait()

			fmt.Fprintf(cmd.OutOrStdout(), "forked pid %d\n", pid)
			diag.Dump(cmd.OutOrStdout(), m.Table(), m.Tree())
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "demo-task", "name of the forked task")
	cmd.Flags().Int32Var(&nice, "nice", 0, "niceness delta to apply to the forked task")
	cmd.Flags().IntVar(&ticks, "ticks", 100, "number of timer ticks the task consumes before exiting")
	return cmd
}

func killCmd() *cobra.Command {
	var ticks int
	cmd := &cobra.Command{
		Use:   "kill",
		Short: "Fork a long-running demo task and kill it partway through",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			sc, err := loadScenario(configPath)
			if err != nil {
				return err
			}
			cfg := sc.config()
			m, err := newMachine(cfg)
			if err != nil {
				return err
			}
			cancel, cpus := startCPUs(m, cfg)

			var done sync.WaitGroup
			done.Add(1)
			pid, err := m.Fork(m.InitHandle(), "kill-target", func(h *cfskernel.TaskHandle) {
				defer done.Done()
				for i := 0; i < ticks && !h.Killed(); i++ {
					h.Tick(1)
				}
			})
			if err != nil {
				cancel()
				cpus.Wait()
				return err
			}

			if err := m.Kill(pid); err != nil {
				cancel()
				cpus.Wait()
				return err
			}

			done.Wait()
			cancel()
			cpus.Wait()

			fmt.Fprintf(cmd.OutOrStdout(), "killed pid %d\n", pid)
			diag.Dump(cmd.OutOrStdout(), m.Table(), m.Tree())
			return nil
		},
	}
	cmd.Flags().IntVar(&ticks, "ticks", 10000, "ticks the target would run absent the kill")
	return cmd
}

func niceCmd() *cobra.Command {
	var delta int32
	cmd := &cobra.Command{
		Use:   "nice",
		Short: "Fork a demo task and adjust its niceness mid-run",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			sc, err := loadScenario(configPath)
			if err != nil {
				return err
			}
			cfg := sc.config()
			m, err := newMachine(cfg)
			if err != nil {
				return err
			}
			cancel, cpus := startCPUs(m, cfg)

			var done sync.WaitGroup
			done.Add(1)
			_, err = m.Fork(m.InitHandle(), "nice-target", func(h *cfskernel.TaskHandle) {
				defer done.Done()
				for i := 0; i < 200; i++ {
					if i == 100 {
						_ = h.Nice(delta)
					}
					h.Tick(1)
				}
			})
			if err != nil {
				cancel()
				cpus.Wait()
				return err
			}

			done.Wait()
			cancel()
			cpus.Wait()

			diag.Dump(cmd.OutOrStdout(), m.Table(), m.Tree())
			return nil
		},
	}
	cmd.Flags().Int32Var(&delta, "delta", 5, "niceness delta to apply halfway through the run")
	return cmd
}
