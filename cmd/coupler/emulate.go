package main

import (
	"os"

	"github.com/aretw0/coupler/internal/cli"
	"github.com/spf13/cobra"
)

var emulateCmd = &cobra.Command{
	Use:   "emulate [-- solver arguments]",
	Short: "Serve a WebServerControl emulator",
	Long: `Serves the control API of a solver suspending at the beginning and end
of every timestep. Controllables are declared from the solver arguments
given after --, or from the configured model when none are given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		if !cmd.Flags().Changed("config") {
			if _, err := os.Stat(configPath); err != nil {
				configPath = ""
			}
		}
		logLevel, _ := cmd.Flags().GetString("log-level")
		host, _ := cmd.Flags().GetString("host")
		port, _ := cmd.Flags().GetInt("port")
		batches, _ := cmd.Flags().GetInt("batches")
		outDir, _ := cmd.Flags().GetString("output-dir")
		delay, _ := cmd.Flags().GetDuration("delay")

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		return cli.Emulate(ctx, cli.EmulateOptions{
			Args:       args,
			ConfigPath: configPath,
			Host:       host,
			Port:       port,
			Batches:    batches,
			OutputDir:  outDir,
			Delay:      delay,
			LogLevel:   logLevel,
			Out:        os.Stdout,
		})
	},
}

func init() {
	rootCmd.AddCommand(emulateCmd)

	emulateCmd.Flags().String("host", "127.0.0.1", "Interface to listen on")
	emulateCmd.Flags().IntP("port", "p", 0, "Port to listen on (default: the declared webserver port)")
	emulateCmd.Flags().Int("batches", 0, "Batch count naming the statepoint files")
	emulateCmd.Flags().String("output-dir", "", "Where statepoints are written (default: solver workdir)")
	emulateCmd.Flags().Duration("delay", 0, "Duration of one emulated timestep")
}
