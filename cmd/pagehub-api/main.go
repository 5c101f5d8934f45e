package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pagehub-api",
	Short: "PageHub API - page role resolution and override propagation",
	Long:  `HTTP API that resolves effective page roles from space memberships and page-level overrides, with cascading block propagation over nested page trees.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
