package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/kapitanov/chip8/internal/hal"
	"github.com/kapitanov/chip8/internal/hal/headless"
	"github.com/kapitanov/chip8/internal/hal/terminal"
	"github.com/kapitanov/chip8/internal/hal/window"
	"github.com/kapitanov/chip8/internal/statsview"
	"github.com/kapitanov/chip8/internal/vm"
	"github.com/spf13/cobra"
)

const (
	frontendWindow   = "window"
	frontendTerminal = "terminal"
	frontendHeadless = "headless"
)

type frontend interface {
	vm.HAL
	Shutdown()
}

func main() {
	cmd := newRootCommand()
	cmd.SetArgs(os.Args[1:])
	if err := cmd.Execute(); err != nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           fmt.Sprintf("%s PATH_TO_ROM_FILE", filepath.Base(os.Args[0])),
		Short:         "Run emulator",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	verbose := cmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose logging")
	hz := cmd.Flags().Int("hz", vm.DefaultClockHz, "instructions per second")
	display := cmd.Flags().String("display", vm.PolicyLinear.String(), "sprite edge handling: linear, clip or wrap")
	seed := cmd.Flags().Uint64("seed", 0, "random number generator seed, 0 picks one")
	frontendName := cmd.Flags().StringP("frontend", "f", frontendWindow, "frontend: window, terminal or headless")
	frames := cmd.Flags().Int("frames", 0, "stop after this many frames, 0 runs until quit")
	statsAddr := cmd.Flags().String("statsview", "", "serve runtime statistics on this address")
	cmd.Flags().Lookup("statsview").NoOptDefVal = statsview.DefaultAddress
	dumpState := cmd.Flags().String("dump-state", "", "write the machine state graph to this file on a fault")

	cmd.PersistentPreRun = func(_ *cobra.Command, _ []string) {
		loggerOpts := &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}
		if *verbose {
			loggerOpts.Level = slog.LevelDebug
		}

		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, loggerOpts)))
	}

	cmd.RunE = func(_ *cobra.Command, args []string) error {
		bs, err := loadROM(args[0])
		if err != nil {
			return err
		}

		policy, err := vm.ParseDisplayPolicy(*display)
		if err != nil {
			return err
		}

		if *hz <= 0 || *hz > vm.MaxClockHz {
			return fmt.Errorf("--hz must be in 1..%d, got %d", vm.MaxClockHz, *hz)
		}

		config := vm.DefaultConfig()
		config.ClockHz = *hz
		config.DisplayPolicy = policy
		config.Seed = *seed

		if *statsAddr != "" {
			statsview.Launch(*statsAddr)
		}

		var h frontend
		switch *frontendName {
		case frontendWindow:
			h, err = window.New(filepath.Base(args[0]))
		case frontendTerminal:
			h, err = terminal.New()
		case frontendHeadless:
			h = headless.New(*frames)
			config.Clock = headless.NewClock()
		default:
			err = fmt.Errorf("unknown frontend %q", *frontendName)
		}
		if err != nil {
			return fmt.Errorf("unable to initialize hal: %w", err)
		}
		defer h.Shutdown()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		machine := vm.New(bs, config)

		for {
			err = machine.Run(ctx, h)

			if errors.Is(err, hal.ErrReboot) {
				slog.Info("reboot")
				continue
			}

			if errors.Is(err, hal.ErrQuit) || errors.Is(err, context.Canceled) {
				if *frontendName == frontendHeadless {
					fmt.Print(machine.Display())
				}
				return nil
			}

			var fault *vm.Fault
			if errors.As(err, &fault) && *dumpState != "" {
				if dumpErr := writeState(machine, *dumpState); dumpErr != nil {
					slog.Error("unable to dump state", "err", dumpErr)
				}
			}

			return err
		}
	}

	disasm := &cobra.Command{
		Use:   "disasm PATH_TO_ROM_FILE",
		Short: "Disassemble program",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			bs, err := loadROM(args[0])
			if err != nil {
				return err
			}

			return vm.Disassemble(os.Stdout, bs)
		},
	}
	cmd.AddCommand(disasm)

	return cmd
}

func loadROM(path string) ([]byte, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to load file %q: %w", path, err)
	}
	return bs, nil
}

func writeState(machine *vm.VM, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	machine.DumpState(f)
	slog.Info("machine state written", "path", path)
	return nil
}
