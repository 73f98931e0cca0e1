// Package terminal runs the VM inside a text terminal. The screen is drawn
// with half-block characters, two pixel rows per line of text.
package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/kapitanov/chip8/internal/hal"
	"github.com/kapitanov/chip8/internal/vm"
	"github.com/pkg/term"
)

const (
	Device = "/dev/tty"

	// terminals report key presses only, so a key counts as held for a
	// while after its last press
	HoldDuration = 150 * time.Millisecond

	readTimeout = 50 * time.Millisecond
)

const (
	keyCtrlC     = 0x03
	keyBackspace = 0x08
	keyEscape    = 0x1b
	keyDelete    = 0x7f
)

type Terminal struct {
	tty    *term.Term
	out    *bufio.Writer
	input  chan byte
	closed atomic.Bool
	done   chan struct{}
	keys   heldKeys
}

func New() (*Terminal, error) {
	tty, err := term.Open(Device, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", Device, err)
	}

	if err = tty.SetReadTimeout(readTimeout); err != nil {
		_ = tty.Restore()
		_ = tty.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}
	slog.Debug("terminal: raw mode", "device", Device)

	t := &Terminal{
		tty:   tty,
		out:   bufio.NewWriter(os.Stdout),
		input: make(chan byte, 64),
		done:  make(chan struct{}),
		keys:  heldKeys{},
	}

	// clear screen, hide cursor
	_, _ = t.out.WriteString("\x1b[2J\x1b[?25l")
	if err = t.out.Flush(); err != nil {
		_ = tty.Restore()
		_ = tty.Close()
		return nil, fmt.Errorf("failed to write to terminal: %w", err)
	}

	go t.readLoop()
	return t, nil
}

func (t *Terminal) readLoop() {
	defer close(t.done)

	buf := make([]byte, 16)
	for !t.closed.Load() {
		n, err := t.tty.Read(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			slog.Debug("terminal: read failed", "err", err)
			return
		}

		for _, b := range buf[:n] {
			select {
			case t.input <- b:
			default:
				// the VM is not keeping up, drop the key
			}
		}
	}
}

func (t *Terminal) Shutdown() {
	if t.closed.Swap(true) {
		return
	}
	<-t.done

	// show cursor, move below the screen
	_, _ = t.out.WriteString(fmt.Sprintf("\x1b[?25h\x1b[%d;1H\r\n", vm.ScreenHeight/2+1))
	if err := t.out.Flush(); err != nil {
		slog.Error("failed to write to terminal", "err", err)
	}

	if err := t.tty.Restore(); err != nil {
		slog.Error("failed to restore terminal", "err", err)
	}

	if err := t.tty.Close(); err != nil {
		slog.Error("failed to close terminal", "err", err)
	}
}

func (t *Terminal) ReadInput(keyDown func(vm.Key), keyUp func(vm.Key)) error {
	now := time.Now()

	for {
		select {
		case b := <-t.input:
			if err := t.keys.feed(b, now, keyDown); err != nil {
				return err
			}
		default:
			t.keys.expire(now, keyUp)
			return nil
		}
	}
}

func (t *Terminal) Draw(gfx []uint8) error {
	if err := render(t.out, gfx); err != nil {
		return fmt.Errorf("failed to draw: %w", err)
	}
	return nil
}

// heldKeys tracks when each keypad key was last pressed.
type heldKeys map[vm.Key]time.Time

func (h heldKeys) feed(b byte, now time.Time, keyDown func(vm.Key)) error {
	switch b {
	case keyCtrlC, keyEscape:
		slog.Debug("terminal: exit requested")
		return hal.ErrQuit
	case keyBackspace, keyDelete:
		return hal.ErrReboot
	}

	key, ok := hal.KeyForRune(rune(b))
	if !ok {
		return nil
	}

	if _, held := h[key]; !held {
		keyDown(key)
	}
	h[key] = now
	return nil
}

func (h heldKeys) expire(now time.Time, keyUp func(vm.Key)) {
	for key, at := range h {
		if now.Sub(at) >= HoldDuration {
			delete(h, key)
			keyUp(key)
		}
	}
}

var halfBlocks = [4]string{" ", "▀", "▄", "█"}

// render writes the frame starting from the top left corner of the
// terminal.
func render(w *bufio.Writer, gfx []uint8) error {
	_, _ = w.WriteString("\x1b[H")

	for y := 0; y < vm.ScreenHeight; y += 2 {
		top := gfx[y*vm.ScreenWidth : (y+1)*vm.ScreenWidth]
		bottom := gfx[(y+1)*vm.ScreenWidth : (y+2)*vm.ScreenWidth]

		for x := 0; x < vm.ScreenWidth; x++ {
			i := 0
			if top[x] != 0 {
				i |= 1
			}
			if bottom[x] != 0 {
				i |= 2
			}
			_, _ = w.WriteString(halfBlocks[i])
		}
		_, _ = w.WriteString("\r\n")
	}

	return w.Flush()
}
