package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wippyai/nativeguard/native"
)

var (
	runMode    string
	runThreads int
	runLoops   int
	runTimeout time.Duration
)

func init() {
	cmd := newRunCmd()
	cmd.Flags().StringVar(&runMode, "mode", string(modeLeak), "leak, close or dbl")
	cmd.Flags().IntVar(&runThreads, "threads", 100, "Concurrent goroutines")
	cmd.Flags().IntVar(&runLoops, "loops", 10000, "Iterations per goroutine")
	cmd.Flags().DurationVar(&runTimeout, "collect-timeout", 10*time.Second, "How long to wait for dropped contexts to be collected")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the context stress harness and print the leak report",
		Long: `The run command opens message contexts from many goroutines.

Modes:
  leak   contexts are dropped without Close and released by the collector
  close  contexts are closed once
  dbl    contexts are closed twice

Example:
  leakcheck run --mode leak --threads 100 --loops 10000
  leakcheck run --mode dbl --heap libc --stacks`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := parseMode(runMode)
			if err != nil {
				return err
			}
			cfg, err := counterConfig(cmd)
			if err != nil {
				return err
			}
			h, err := newHarness(native.Kind(heapKind), cfg)
			if err != nil {
				return err
			}
			defer h.close()

			start := time.Now()
			if err := h.run(cmd.Context(), m, runThreads, runLoops); err != nil {
				return err
			}
			elapsed := time.Since(start)
			h.collect(runTimeout)

			printReport(h, elapsed)
			if s := h.stats(); s.Failures > 0 {
				return fmt.Errorf("%d executions returned the wrong message", s.Failures)
			}
			return nil
		},
	}
}

func printReport(h *harness, elapsed time.Duration) {
	s := h.stats()
	fmt.Printf("%d iterations in %s (%d failures)\n", s.Iterations, elapsed.Round(time.Millisecond), s.Failures)
	fmt.Printf("heap: %d allocs, %d frees; arena: %d live handles\n", s.HeapAllocs, s.HeapFrees, s.Live)
	for _, line := range h.counter.Report() {
		fmt.Println(line)
	}
}

