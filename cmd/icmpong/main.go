// Package main provides the CLI entry point for ICMPong.
package main

import (
	"fmt"
	"os"

	"icmpong/internal/protocol"
)

var (
	// Version is set at build time
	Version = "dev"
)

func main() {
	rootCmd := playCmd()
	rootCmd.Version = fmt.Sprintf("%s (protocol v%d)", Version, protocol.Version)
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(journalCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
