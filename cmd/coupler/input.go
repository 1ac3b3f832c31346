package main

import (
	"os"

	"github.com/aretw0/coupler/internal/cli"
	"github.com/spf13/cobra"
)

var inputCmd = &cobra.Command{
	Use:   "input",
	Short: "Write the solver command and input files without running",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		return cli.WriteInput(cli.InputOptions{ConfigPath: configPath, Out: os.Stdout})
	},
}

func init() {
	rootCmd.AddCommand(inputCmd)
}
