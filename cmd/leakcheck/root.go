package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/nativeguard/bridge"
	"github.com/wippyai/nativeguard/guard"
	"github.com/wippyai/nativeguard/leak"
	"github.com/wippyai/nativeguard/msgctx"
	"github.com/wippyai/nativeguard/native"
	"github.com/wippyai/nativeguard/wasmhost"
)

var (
	// Global flags
	verbose   bool
	heapKind  string
	maxSites  int
	logStacks bool
)

var rootCmd = &cobra.Command{
	Use:   "leakcheck",
	Short: "Stress and inspect guarded native handles",
	Long: `leakcheck creates message contexts from many goroutines, optionally
drops them without closing, forces collection and reports how many contexts
were closed, lost or are still open per allocation site.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable development logging")
	rootCmd.PersistentFlags().StringVar(&heapKind, "heap", string(native.KindMmap), "Native heap: mmap, libc or go")
	rootCmd.PersistentFlags().IntVar(&maxSites, "max", leak.DefaultMax, "Number of allocation sites tracked")
	rootCmd.PersistentFlags().BoolVar(&logStacks, "stacks", false, "Key allocation sites by caller stack")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(cmd *cobra.Command, args []string) error {
	log := zap.NewNop()
	if verbose {
		var err error
		log, err = zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
	}
	guard.SetLogger(log.Named("guard"))
	bridge.SetLogger(log.Named("bridge"))
	leak.SetLogger(log.Named("leak"))
	msgctx.SetLogger(log.Named("msgctx"))
	wasmhost.SetLogger(log.Named("wasmhost"))
	return nil
}

// counterConfig reads NATIVEGUARD_LEAKCHECK_* and applies the flags on top.
// Tracking is always on unless --max is 0.
func counterConfig(cmd *cobra.Command) (leak.Config, error) {
	cfg, err := leak.ConfigFromEnv("leakcheck", "Context")
	if err != nil {
		return cfg, err
	}
	if cfg.Max == 0 || cmd.Flags().Changed("max") {
		cfg.Max = maxSites
	}
	if cmd.Flags().Changed("stacks") {
		cfg.LogStacks = logStacks
	}
	return cfg, nil
}
