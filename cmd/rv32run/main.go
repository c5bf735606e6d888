// rv32run - CLI driver for the RV32IM+Zicond device core
//
// Command tree and flag-binding style grounded in the z80opt reference
// tool's cmd/z80opt/main.go: a cobra root command, one RunE per
// subcommand, os.Exit(1) on a top-level Execute() error.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/intuitionamiga/rv32core/internal/device"
	"github.com/intuitionamiga/rv32core/internal/host"
	"github.com/intuitionamiga/rv32core/internal/script"
)

// Conventional guest-toolchain memory layout (see SPEC_FULL.md §3).
const (
	defaultROMOrigin    = 0x0800_0000
	defaultROMSize      = 1024 * 1024
	defaultRAMOrigin    = 0x2000_0000
	defaultRAMSize      = 16 * 1024 * 1024
	defaultPeriphOrigin = 0x0100_0000
	defaultPeriphSize   = 0x28 + device.FramebufferBytes
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rv32run",
		Short: "Run bare-metal RV32IM+Zicond guest programs",
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newILPInfoCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		elfPath      string
		ilpPath      string
		ilpParallel  bool
		scriptPath   string
		maxSteps     int
		romSize      uint32
		romOrigin    uint32
		ramSize      uint32
		ramOrigin    uint32
		periphSize   uint32
		periphOrigin uint32
		quiet        bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load an ELF image and run it to completion or fault",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.New(os.Stderr, "rv32run: ", 0)
			if quiet {
				logger.SetOutput(io.Discard)
			}

			cfg := device.Config{
				ROMSize: romSize, ROMOrigin: romOrigin,
				RAMSize: ramSize, RAMOrigin: ramOrigin,
				PeriphSize: periphSize, PeriphOrigin: periphOrigin,
			}
			dev := device.New(cfg)
			defer dev.Teardown()

			if err := dev.LoadELF(elfPath); err != nil {
				return fmt.Errorf("load elf: %w", err)
			}
			if ilpPath != "" {
				if err := dev.LoadILP(ilpPath); err != nil {
					return fmt.Errorf("load ilp: %w", err)
				}
				dev.RunILPParallel(ilpParallel)
				logger.Printf("ilp schedule loaded from %s (parallel=%v)", ilpPath, ilpParallel)
			}

			serial := host.NewSerial(dev, periphOrigin)
			fb := host.NewFramebuffer(dev, periphOrigin)
			rtc := host.NewRTC(dev, periphOrigin)

			var hook *script.Hook
			if scriptPath != "" {
				h, err := script.Load(scriptPath, dev)
				if err != nil {
					return fmt.Errorf("load script: %w", err)
				}
				defer h.Close()
				hook = h
			}

			exitAddr, hasExit := dev.ExitAddr()

			var steps int
			for maxSteps <= 0 || steps < maxSteps {
				if hasExit && dev.PC() == exitAddr {
					break
				}
				if !dev.Step() {
					flushSerial(serial)
					return fmt.Errorf("step failed at pc=0x%x: %w", dev.PC(), dev.Err())
				}
				steps++

				serial.Poll()
				fb.Poll()
				rtc.Poll()

				if out := serial.DrainOutput(); out != "" {
					fmt.Print(out)
				}

				if hook != nil {
					stop, err := hook.Invoke()
					if err != nil {
						return err
					}
					if stop {
						break
					}
				}
			}

			logger.Printf("halted after %d steps, %d cycles, pc=0x%x", steps, dev.Cycles(), dev.PC())
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&elfPath, "elf", "", "path to the ELF32 RISC-V image to run (required)")
	flags.StringVar(&ilpPath, "ilp", "", "path to an optional ILP schedule file")
	flags.BoolVar(&ilpParallel, "ilp-parallel", false, "use the multi-threaded ILP realisation instead of sequential replay")
	flags.StringVar(&scriptPath, "script", "", "path to a Lua script invoked once per step")
	flags.IntVar(&maxSteps, "max-steps", 0, "stop after this many steps (0 = unbounded, subject to _exit detection)")
	flags.Uint32Var(&romSize, "rom-size", defaultROMSize, "ROM region size in bytes")
	flags.Uint32Var(&romOrigin, "rom-origin", defaultROMOrigin, "ROM region origin address")
	flags.Uint32Var(&ramSize, "ram-size", defaultRAMSize, "RAM region size in bytes")
	flags.Uint32Var(&ramOrigin, "ram-origin", defaultRAMOrigin, "RAM region origin address")
	flags.Uint32Var(&periphSize, "periph-size", defaultPeriphSize, "PERIPH region size in bytes")
	flags.Uint32Var(&periphOrigin, "periph-origin", defaultPeriphOrigin, "PERIPH region origin address")
	flags.BoolVarP(&quiet, "quiet", "q", false, "suppress diagnostic logging")
	cmd.MarkFlagRequired("elf")

	return cmd
}

func newILPInfoCmd() *cobra.Command {
	var ilpPath string
	cmd := &cobra.Command{
		Use:   "ilp-info",
		Short: "Print the header of an ILP schedule file",
		RunE: func(cmd *cobra.Command, args []string) error {
			nBlocks, nThreads, err := device.PeekILPHeader(ilpPath)
			if err != nil {
				return err
			}
			fmt.Printf("blocks=%d threads=%d\n", nBlocks, nThreads)
			return nil
		},
	}
	cmd.Flags().StringVar(&ilpPath, "ilp", "", "path to the ILP schedule file (required)")
	cmd.MarkFlagRequired("ilp")
	return cmd
}

func flushSerial(s *host.Serial) {
	if out := s.DrainOutput(); out != "" {
		fmt.Print(out)
	}
}
