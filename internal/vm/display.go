package vm

import (
	"fmt"
	"strings"
)

const (
	ScreenWidth  = 64
	ScreenHeight = 32
)

// DisplayPolicy decides where sprite bits that fall past the right or
// bottom edge of the screen end up.
type DisplayPolicy int

const (
	// PolicyLinear addresses the frame buffer as a flat array: bits past the
	// right edge land on the leading pixels of the next row, bits past the
	// end of the buffer are dropped.
	PolicyLinear DisplayPolicy = iota
	// PolicyClip drops every bit outside the screen.
	PolicyClip
	// PolicyWrap wraps columns and rows around the opposite edge.
	PolicyWrap
)

var policyNames = map[DisplayPolicy]string{
	PolicyLinear: "linear",
	PolicyClip:   "clip",
	PolicyWrap:   "wrap",
}

func (p DisplayPolicy) String() string {
	if s, ok := policyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("DisplayPolicy(%d)", int(p))
}

// ParseDisplayPolicy accepts the names printed by DisplayPolicy.String.
func ParseDisplayPolicy(s string) (DisplayPolicy, error) {
	for p, name := range policyNames {
		if strings.EqualFold(s, name) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown display policy %q (want linear, clip or wrap)", s)
}

// Display is the 64x32 monochrome frame buffer, one byte (0 or 1) per pixel,
// row-major.
type Display struct {
	pixels [ScreenWidth * ScreenHeight]uint8
	policy DisplayPolicy
	dirty  bool
}

func NewDisplay(policy DisplayPolicy) *Display {
	return &Display{policy: policy, dirty: true}
}

// Clear turns every pixel off.
func (d *Display) Clear() {
	for i := range d.pixels {
		d.pixels[i] = 0
	}
	d.dirty = true
}

// Blit XORs an 8-pixel wide sprite onto the buffer with its top-left corner
// at (x, y). It reports whether any lit pixel was turned off.
func (d *Display) Blit(sprite []uint8, x, y int) bool {
	collision := false

	for r, row := range sprite {
		for bit := 0; bit < 8; bit++ {
			if row&(0x80>>bit) == 0 {
				continue
			}

			i, ok := d.addr(x+bit, y+r)
			if !ok {
				continue
			}

			if d.pixels[i] != 0 {
				collision = true
			}
			d.pixels[i] ^= 1
		}
	}

	d.dirty = true
	return collision
}

func (d *Display) addr(x, y int) (int, bool) {
	switch d.policy {
	case PolicyClip:
		if x >= ScreenWidth || y >= ScreenHeight {
			return 0, false
		}
	case PolicyWrap:
		x %= ScreenWidth
		y %= ScreenHeight
	}

	i := y*ScreenWidth + x
	return i, i < len(d.pixels)
}

// Pixel returns the pixel at (x, y), or 0 when (x, y) is off the screen.
func (d *Display) Pixel(x, y int) uint8 {
	if x < 0 || x >= ScreenWidth || y < 0 || y >= ScreenHeight {
		return 0
	}
	return d.pixels[y*ScreenWidth+x]
}

// Pixels exposes the frame buffer. The slice aliases the display and is only
// valid until the next instruction executes.
func (d *Display) Pixels() []uint8 {
	return d.pixels[:]
}

// Dirty reports whether the buffer changed since the last MarkPresented.
func (d *Display) Dirty() bool {
	return d.dirty
}

func (d *Display) MarkPresented() {
	d.dirty = false
}

// String renders the buffer as text, one line per row. Handy in logs and
// test failures.
func (d *Display) String() string {
	var sb strings.Builder
	for y := 0; y < ScreenHeight; y++ {
		for x := 0; x < ScreenWidth; x++ {
			if d.Pixel(x, y) != 0 {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
