package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wippyai/nativeguard/guard"
	"github.com/wippyai/nativeguard/native"
	"github.com/wippyai/nativeguard/wasmhost"
)

var (
	guestABI  string
	guestFile string
)

func init() {
	cmd := newGuestCmd()
	cmd.Flags().StringVar(&guestABI, "abi", "", "Required host ABI version constraint (e.g. ^0.1)")
	cmd.Flags().StringVarP(&guestFile, "file", "f", "", "Guest .wasm exporting run(i64) i32 (default: built-in demo)")
	rootCmd.AddCommand(cmd)
}

func newGuestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "guest",
		Short: "Pass a guarded message to a WebAssembly guest",
		Long: `The guest command allocates one message, hands its address to a guest's
run export and prints what the guest copied out through the host module.

Example:
  leakcheck guest
  leakcheck guest --abi "^0.1" -f reader.wasm`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := wasmhost.CheckABI(guestABI); err != nil {
				return err
			}

			guest := wasmhost.DemoGuest
			if guestFile != "" {
				var err error
				if guest, err = os.ReadFile(guestFile); err != nil {
					return fmt.Errorf("read guest: %w", err)
				}
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

			ctx := cmd.Context()
			wh, err := wasmhost.New(ctx, h.binding, nil)
			if err != nil {
				return err
			}
			defer wh.Close(ctx)

			idx, err := h.counter.Open(0)
			if err != nil {
				return err
			}
			addr, err := h.binding.Allocate(idx)
			if err != nil {
				return err
			}

			data, err := wh.RunGuest(ctx, guest, addr)
			if err != nil {
				return err
			}
			if i := bytes.IndexByte(data, 0); i >= 0 {
				data = data[:i]
			}
			fmt.Printf("%s: %q\n", addr, data)

			status := h.binding.ReleaseAddress(addr)
			h.counter.Close(idx)
			fmt.Printf("release: %d, second release: %d\n", status, h.binding.ReleaseAddress(addr))
			if status != guard.StatusOK {
				return fmt.Errorf("release returned %d", status)
			}
			return nil
		},
	}
}
