package vm

import (
	"fmt"
	"strconv"
)

// Fields holds the variable parts of an opcode. Only the fields named by the
// instruction's pattern carry meaningful values; the rest are zero.
type Fields struct {
	KK  uint8  // 8-bit immediate
	X   uint8  // first register index
	Y   uint8  // second register index
	N   uint8  // 4-bit immediate
	NNN uint16 // 12-bit address
}

type field struct {
	mask  uint16
	shift uint
}

func (f field) extract(opcode uint16) uint16 {
	return (opcode & f.mask) >> f.shift
}

// Pattern is a compiled 4-digit opcode template such as "8xy4" or "Annn".
// An opcode matches the pattern iff opcode&Mask == Value.
type Pattern struct {
	Text  string
	Mask  uint16
	Value uint16

	kk, x, y, n, nnn field
}

// CompilePattern turns a symbolic template into a matcher and field
// extractors. Fixed digits are hex (case-insensitive), variable digits are
// "kk", "x", "y", "n" or "nnn" runs.
func CompilePattern(text string) (Pattern, error) {
	if len(text) != 4 {
		return Pattern{}, fmt.Errorf("pattern %q: want 4 digits, got %d", text, len(text))
	}

	p := Pattern{Text: text}
	seen := map[byte]bool{}

	for i := 0; i < 4; {
		c := text[i]
		shift := uint(3-i) * 4

		if !isMarker(c) {
			d, err := strconv.ParseUint(text[i:i+1], 16, 4)
			if err != nil {
				return Pattern{}, fmt.Errorf("pattern %q: bad digit %q at %d", text, c, i)
			}
			p.Mask |= 0xF << shift
			p.Value |= uint16(d) << shift
			i++
			continue
		}

		width := 1
		for i+width < 4 && text[i+width] == c {
			width++
		}

		if seen[c] {
			return Pattern{}, fmt.Errorf("pattern %q: field %q repeated at %d", text, c, i)
		}
		seen[c] = true

		f := field{
			mask:  uint16(1<<(width*4)-1) << (uint(4-i-width) * 4),
			shift: uint(4-i-width) * 4,
		}

		switch {
		case c == 'k' && width == 2:
			p.kk = f
		case c == 'x' && width == 1:
			p.x = f
		case c == 'y' && width == 1:
			p.y = f
		case c == 'n' && width == 1:
			p.n = f
		case c == 'n' && width == 3:
			p.nnn = f
		default:
			return Pattern{}, fmt.Errorf("pattern %q: invalid field %q at %d", text, text[i:i+width], i)
		}

		i += width
	}

	return p, nil
}

// MustCompilePattern is like CompilePattern but panics on malformed input.
// It is meant for the fixed instruction table.
func MustCompilePattern(text string) Pattern {
	p, err := CompilePattern(text)
	if err != nil {
		panic(err)
	}
	return p
}

func isMarker(c byte) bool {
	switch c {
	case 'k', 'x', 'y', 'n':
		return true
	}
	return false
}

// Matches reports whether opcode falls into the pattern's opcode space.
func (p Pattern) Matches(opcode uint16) bool {
	return opcode&p.Mask == p.Value
}

// Fields extracts the pattern's variable fields from opcode.
func (p Pattern) Fields(opcode uint16) Fields {
	return Fields{
		KK:  uint8(p.kk.extract(opcode)),
		X:   uint8(p.x.extract(opcode)),
		Y:   uint8(p.y.extract(opcode)),
		N:   uint8(p.n.extract(opcode)),
		NNN: p.nnn.extract(opcode),
	}
}
