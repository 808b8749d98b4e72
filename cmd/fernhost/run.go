package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fernlang/fernhost/host"
)

var runCmd = &cobra.Command{
	Use:   "run <program.wasm> [args...]",
	Short: "Run a compiled Fern program",
	Long: `Execute a compiled Fern program to completion.

Arguments after the program path are passed to it as its argument list.
The process exit code is the program's exit code: 0 for success, 1 for a
crash or leftover debug artifacts, explicit codes pass through.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runRun,
}

func init() {
	runCmd.Flags().Duration("timeout", 0, "Execution timeout (0 = none)")
	runCmd.Flags().String("storage-dir", "", "Directory behind the Storage effects")
	runCmd.Flags().StringSlice("allow-host", nil, "Allow Http.get to host (repeatable)")
	runCmd.Flags().Duration("http-timeout", 0, "Per-request timeout for Http.get")
	runCmd.Flags().Int64("http-max-body", 0, "Max HTTP response body size")
	runCmd.Flags().Bool("sandboxed", false, "In-memory storage and stubbed HTTP")
	runCmd.Flags().String("memory", "", "Memory limit: 1mb, 16mb, 64mb, 256mb, 1gb")
	runCmd.Flags().BoolP("interactive", "i", false, "Prompted line editing for Stdin.line")
	runCmd.Flags().BoolP("verbose", "v", false, "Structured debug logging to stderr")
	runCmd.Flags().Uint64("hash-seed", 0, "Fix the dictionary hash seed (reproducible dict images)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")
	noCache, _ := cmd.Root().PersistentFlags().GetBool("no-cache")

	cfg, err := loadConfig(configPath)
	if err != nil {
		fatal(err)
	}
	applyRunFlags(cmd, &cfg)

	prog, err := host.LoadFile(args[0])
	if err != nil {
		fatal(err)
	}

	var hostOpts []host.HostOption
	if !noCache {
		hostOpts = append(hostOpts, host.WithDiskCache())
	}
	if pages := parseMemoryLimit(cfg.Memory); pages > 0 {
		hostOpts = append(hostOpts, host.WithMemoryLimit(pages))
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			fatal(err)
		}
		defer log.Sync()
		hostOpts = append(hostOpts, host.WithLogger(log))
	}

	h, err := host.New(hostOpts...)
	if err != nil {
		fatal(err)
	}
	defer h.Close()

	runOpts := buildRunOpts(cmd, cfg)

	res := h.Run(context.Background(), prog, args[1:], runOpts...)
	if res.Err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", res.Err)
	}
	os.Exit(res.ExitCode)
}

// applyRunFlags lays explicitly-set flags over the file config.
func applyRunFlags(cmd *cobra.Command, cfg *config) {
	flags := cmd.Flags()
	if flags.Changed("storage-dir") {
		cfg.StorageDir, _ = flags.GetString("storage-dir")
	}
	if flags.Changed("allow-host") {
		cfg.AllowedHosts, _ = flags.GetStringSlice("allow-host")
	}
	if flags.Changed("timeout") {
		d, _ := flags.GetDuration("timeout")
		cfg.Timeout = duration(d)
	}
	if flags.Changed("http-timeout") {
		d, _ := flags.GetDuration("http-timeout")
		cfg.HTTPTimeout = duration(d)
	}
	if flags.Changed("http-max-body") {
		cfg.HTTPMaxBody, _ = flags.GetInt64("http-max-body")
	}
	if flags.Changed("memory") {
		cfg.Memory, _ = flags.GetString("memory")
	}
}

func buildRunOpts(cmd *cobra.Command, cfg config) []host.RunOption {
	var opts []host.RunOption

	if cfg.Timeout > 0 {
		opts = append(opts, host.WithTimeout(time.Duration(cfg.Timeout)))
	}
	if cfg.StorageDir != "" {
		opts = append(opts, host.WithStorageDir(cfg.StorageDir))
	}
	if len(cfg.AllowedHosts) > 0 {
		opts = append(opts, host.WithAllowedHosts(cfg.AllowedHosts))
	}
	if cfg.HTTPTimeout > 0 {
		opts = append(opts, host.WithHTTPTimeout(time.Duration(cfg.HTTPTimeout)))
	}
	if cfg.HTTPMaxBody > 0 {
		opts = append(opts, host.WithHTTPMaxBodySize(cfg.HTTPMaxBody))
	}
	if sandboxed, _ := cmd.Flags().GetBool("sandboxed"); sandboxed {
		opts = append(opts, host.WithSandbox())
	}
	if cmd.Flags().Changed("hash-seed") {
		seed, _ := cmd.Flags().GetUint64("hash-seed")
		opts = append(opts, host.WithHashSeed(seed))
	}

	if interactive, _ := cmd.Flags().GetBool("interactive"); interactive {
		rl, err := readline.New("> ")
		if err != nil {
			fatal(err)
		}
		opts = append(opts, host.WithLineReader(promptReader{rl: rl}))
	} else {
		opts = append(opts, host.WithStdin(os.Stdin))
	}

	return opts
}

// promptReader feeds Stdin.line from an editable prompt.
type promptReader struct {
	rl *readline.Instance
}

func (p promptReader) ReadLine() (string, error) {
	line, err := p.rl.Readline()
	if err == readline.ErrInterrupt {
		return "", io.EOF
	}
	return line, err
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
