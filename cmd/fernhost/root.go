package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fernlang/fernhost/host"
)

var rootCmd = &cobra.Command{
	Use:   "fernhost",
	Short: "Host runtime for compiled Fern programs",
	Long: `fernhost - Run compiled Fern programs.

A program is a wasm module built by the Fern compiler. The host supplies
its memory allocator and hosted effects: stdio lines, keyed storage,
HTTP GET against an allow list, environment access, and random seeding.
By default a program can print, read lines, and use storage under the
working directory; everything else needs explicit flags.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default: ./fernhost.toml)")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable compilation cache")
}

func parseMemoryLimit(s string) uint32 {
	switch strings.ToLower(s) {
	case "1mb":
		return host.MemoryLimit1MB
	case "16mb":
		return host.MemoryLimit16MB
	case "64mb":
		return host.MemoryLimit64MB
	case "256mb":
		return host.MemoryLimit256MB
	case "1gb":
		return host.MemoryLimit1GB
	default:
		return 0 // use default
	}
}
