package main

import (
	"fmt"
	"os"

	"github.com/benvon/sage-coach/cmd/sagectl/commands"
	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "sagectl",
		Short: "Operator tool for the Sage coaching API",
		Long:  "CLI tool for inspecting session state, recording captures and managing settings",
	}

	rootCmd.AddCommand(commands.NewStateCmd())
	rootCmd.AddCommand(commands.NewCaptureCmd())
	rootCmd.AddCommand(commands.NewRatelimitCmd())
	rootCmd.AddCommand(commands.NewUserCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
