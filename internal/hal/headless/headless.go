// Package headless is a frontend without a screen or keyboard. It records
// frames, replays scripted key presses and stops after a number of frames,
// which makes it suitable for tests and batch runs.
package headless

import (
	"log/slog"
	"time"

	"github.com/kapitanov/chip8/internal/hal"
	"github.com/kapitanov/chip8/internal/vm"
)

type press struct {
	key      vm.Key
	down, up int
}

// HAL counts a frame for every input poll. The VM polls once per timer tick,
// so frames advance at the timer rate.
type HAL struct {
	// MaxFrames ends the run with hal.ErrQuit once reached. Zero runs
	// forever.
	MaxFrames int

	frames  int
	draws   int
	frame   []uint8
	presses []press
}

func New(maxFrames int) *HAL {
	return &HAL{MaxFrames: maxFrames}
}

// Press holds key down from frame down until frame up.
func (h *HAL) Press(key vm.Key, down, up int) {
	h.presses = append(h.presses, press{key: key, down: down, up: up})
}

func (h *HAL) ReadInput(keyDown func(vm.Key), keyUp func(vm.Key)) error {
	h.frames++
	if h.MaxFrames > 0 && h.frames > h.MaxFrames {
		slog.Debug("headless: frame limit reached", "frames", h.MaxFrames)
		return hal.ErrQuit
	}

	for _, p := range h.presses {
		switch h.frames {
		case p.down:
			keyDown(p.key)
		case p.up:
			keyUp(p.key)
		}
	}
	return nil
}

func (h *HAL) Draw(gfx []uint8) error {
	h.draws++
	h.frame = append(h.frame[:0], gfx...)
	return nil
}

// Frames is the number of frames run so far.
func (h *HAL) Frames() int { return h.frames }

// Draws is the number of frames that were presented.
func (h *HAL) Draws() int { return h.draws }

// Frame is the last presented frame, nil before the first one.
func (h *HAL) Frame() []uint8 { return h.frame }

func (h *HAL) Shutdown() {
	slog.Debug("headless: done", "frames", h.frames, "draws", h.draws)
}

// Clock is a vm.Clock that advances instantly when slept on, so a headless
// run goes as fast as the host allows while keeping VM timing intact.
type Clock struct {
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Unix(0, 0)}
}

func (c *Clock) Now() time.Time { return c.now }

func (c *Clock) Sleep(d time.Duration) { c.now = c.now.Add(d) }
