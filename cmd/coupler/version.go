package main

import (
	"fmt"

	"github.com/aretw0/coupler"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of coupler",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("coupler version %s\n", coupler.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
