package main

import (
	"fmt"
	"os"

	"github.com/aretw0/coupler/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "coupler",
	Short: "Coupler drives an external multiphysics solver in lockstep with a transport model",
	Long: `Coupler launches a solver that exposes a WebServerControl API, mirrors
material compositions and tally metadata to it at every timestep, and turns
each coupled solve into normalized reaction rates for a depletion schedule.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		code := cli.ExitCode(err)
		if code == cli.ExitInterrupted {
			fmt.Fprintln(os.Stderr, "Interrupted.")
		} else if code != 0 {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(code)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "coupler.yaml", "Configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level (debug, info, warn, error)")
}
