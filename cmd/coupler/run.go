package main

import (
	"os"

	"github.com/aretw0/coupler/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the configured depletion schedule",
	Long: `Starts the solver, performs one coupled step per timestep of the schedule
and stores every step record. The solver is always stopped on exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		logLevel, _ := cmd.Flags().GetString("log-level")
		emulate, _ := cmd.Flags().GetBool("emulate")
		delay, _ := cmd.Flags().GetDuration("emulate-delay")
		runID, _ := cmd.Flags().GetString("run-id")
		quiet, _ := cmd.Flags().GetBool("quiet")

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		return cli.Run(ctx, cli.RunOptions{
			ConfigPath:   configPath,
			LogLevel:     logLevel,
			RunID:        runID,
			Emulate:      emulate,
			EmulateDelay: delay,
			Quiet:        quiet,
			Out:          os.Stdout,
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("emulate", false, "Serve the control API in-process instead of launching the solver")
	runCmd.Flags().Duration("emulate-delay", 0, "Emulated duration of one solver timestep")
	runCmd.Flags().String("run-id", "", "Identifier of the stored run (default: random UUID)")
	runCmd.Flags().BoolP("quiet", "q", false, "Only print errors")
}
