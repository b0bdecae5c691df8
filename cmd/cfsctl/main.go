// Command cfsctl drives a single-process CFS simulation: build a
// Machine from a TOML config, run a scripted scenario of forks with
// their nice adjustments (or a one-shot fork, kill or nice
// demonstration) against it, and print a ps-style dump.
// Grounded on the teacher pack's cobra usage (tigerater-influxdbclone's
// cmd/influx tree).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cfsctl",
		Short: "Run and inspect a CFS scheduler simulation",
	}
	cmd.PersistentFlags().String("config", "", "path to a scenario TOML file")
	cmd.AddCommand(runCmd(), psCmd(), forkCmd(), killCmd(), niceCmd())
	return cmd
}
