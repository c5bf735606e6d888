// rv32term - interactive terminal front-end for the RV32IM+Zicond device core
//
// Raw-mode stdin handling (term.MakeRaw, non-blocking reads via
// syscall.SetNonblock, CR->LF and DEL->BS translation) grounded in
// terminal_host.go's TerminalHost. Clipboard paste into the guest's RX
// register is wired instead of the reference's editor-keymap handling.
package main

import (
	"flag"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.design/x/clipboard"
	"golang.org/x/term"

	"github.com/intuitionamiga/rv32core/internal/device"
	"github.com/intuitionamiga/rv32core/internal/host"
)

const (
	defaultROMOrigin    = 0x0800_0000
	defaultROMSize      = 1024 * 1024
	defaultRAMOrigin    = 0x2000_0000
	defaultRAMSize      = 16 * 1024 * 1024
	defaultPeriphOrigin = 0x0100_0000
	defaultPeriphSize   = 0x28 + device.FramebufferBytes
)

// stdinHost reads raw stdin and forwards bytes to the guest's serial RX
// register, restoring the terminal to its original state on Stop.
type stdinHost struct {
	serial *host.Serial

	fd           int
	nonblockSet  bool
	oldTermState *term.State

	stopCh  chan struct{}
	done    chan struct{}
	stopped sync.Once
}

func newStdinHost(serial *host.Serial) *stdinHost {
	return &stdinHost{serial: serial, stopCh: make(chan struct{}), done: make(chan struct{})}
}

func (h *stdinHost) Start() {
	h.fd = int(os.Stdin.Fd())

	oldState, err := term.MakeRaw(h.fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rv32term: failed to set raw mode: %v\n", err)
		close(h.done)
		return
	}
	h.oldTermState = oldState

	if err := syscall.SetNonblock(h.fd, true); err != nil {
		fmt.Fprintf(os.Stderr, "rv32term: failed to set nonblocking stdin: %v\n", err)
		_ = term.Restore(h.fd, h.oldTermState)
		h.oldTermState = nil
		close(h.done)
		return
	}
	h.nonblockSet = true

	go func() {
		defer close(h.done)
		buf := make([]byte, 1)
		var clipboardOnce sync.Once
		clipboardOK := false

		for {
			select {
			case <-h.stopCh:
				return
			default:
			}

			n, err := syscall.Read(h.fd, buf)
			if n > 0 {
				b := buf[0]
				if b == '\r' {
					b = '\n'
				}
				if b == 0x7F {
					b = 0x08
				}
				if b == 0x16 { // Ctrl+V: paste
					clipboardOnce.Do(func() { clipboardOK = clipboard.Init() == nil })
					if clipboardOK {
						for _, pb := range clipboard.Read(clipboard.FmtText) {
							h.serial.InjectRX(pb)
						}
					}
					continue
				}
				h.serial.InjectRX(b)
			}
			if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
				time.Sleep(5 * time.Millisecond)
				continue
			}
			if err != nil {
				return
			}
			if n == 0 {
				time.Sleep(5 * time.Millisecond)
			}
		}
	}()
}

func (h *stdinHost) Stop() {
	h.stopped.Do(func() { close(h.stopCh) })
	<-h.done
	if h.nonblockSet {
		_ = syscall.SetNonblock(h.fd, false)
		h.nonblockSet = false
	}
	if h.oldTermState != nil {
		_ = term.Restore(h.fd, h.oldTermState)
		h.oldTermState = nil
	}
}

func main() {
	elfPath := flag.String("elf", "", "path to the ELF32 RISC-V image to run (required)")
	ilpPath := flag.String("ilp", "", "path to an optional ILP schedule file")
	flag.Parse()

	if *elfPath == "" {
		fmt.Fprintln(os.Stderr, "rv32term: -elf is required")
		os.Exit(1)
	}

	cfg := device.Config{
		ROMSize: defaultROMSize, ROMOrigin: defaultROMOrigin,
		RAMSize: defaultRAMSize, RAMOrigin: defaultRAMOrigin,
		PeriphSize: defaultPeriphSize, PeriphOrigin: defaultPeriphOrigin,
	}
	dev := device.New(cfg)
	defer dev.Teardown()

	if err := dev.LoadELF(*elfPath); err != nil {
		fmt.Fprintf(os.Stderr, "rv32term: load elf: %v\n", err)
		os.Exit(1)
	}
	if *ilpPath != "" {
		if err := dev.LoadILP(*ilpPath); err != nil {
			fmt.Fprintf(os.Stderr, "rv32term: load ilp: %v\n", err)
			os.Exit(1)
		}
	}

	serial := host.NewSerial(dev, defaultPeriphOrigin)
	rtc := host.NewRTC(dev, defaultPeriphOrigin)
	fb := host.NewFramebuffer(dev, defaultPeriphOrigin)

	stdin := newStdinHost(serial)
	stdin.Start()
	defer stdin.Stop()

	exitAddr, hasExit := dev.ExitAddr()

	for {
		if hasExit && dev.PC() == exitAddr {
			break
		}
		if !dev.Step() {
			break
		}
		serial.Poll()
		rtc.Poll()
		fb.Poll()
		if out := serial.DrainOutput(); out != "" {
			fmt.Print(out)
		}
	}
}
