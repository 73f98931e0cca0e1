package vm

import (
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

type point struct{ x, y int }

func litPixels(d *Display) []point {
	var lit []point
	for y := 0; y < ScreenHeight; y++ {
		for x := 0; x < ScreenWidth; x++ {
			if d.Pixel(x, y) != 0 {
				lit = append(lit, point{x, y})
			}
		}
	}
	return lit
}

func TestDisplay_BlitCollision(t *testing.T) {
	d := NewDisplay(PolicyLinear)
	sprite := []uint8{0xF0, 0x90}

	assert.False(t, d.Blit(sprite, 10, 5))
	assert.Equal(t, 6, len(litPixels(d)))

	// an overlapping sprite that only lights new pixels is no collision
	assert.False(t, d.Blit([]uint8{0x0F}, 10, 5))

	// drawing the original again erases it
	assert.True(t, d.Blit(sprite, 10, 5))
	assert.Equal(t, []point{{14, 5}, {15, 5}, {16, 5}, {17, 5}}, litPixels(d))
}

func TestDisplay_Clear(t *testing.T) {
	d := NewDisplay(PolicyLinear)
	d.Blit([]uint8{0xFF}, 0, 0)
	d.MarkPresented()

	d.Clear()
	assert.True(t, d.Dirty())
	assert.Equal(t, 0, len(litPixels(d)))
}

func TestDisplay_EdgePolicies(t *testing.T) {
	tests := []struct {
		name   string
		policy DisplayPolicy
		x, y   int
		sprite []uint8
		want   []point
	}{
		{
			name:   "linear spills into next row",
			policy: PolicyLinear,
			x:      62, y: 0,
			sprite: []uint8{0xF0},
			want:   []point{{62, 0}, {63, 0}, {0, 1}, {1, 1}},
		},
		{
			name:   "linear drops past end of buffer",
			policy: PolicyLinear,
			x:      0, y: 31,
			sprite: []uint8{0x80, 0x80},
			want:   []point{{0, 31}},
		},
		{
			name:   "clip drops columns",
			policy: PolicyClip,
			x:      62, y: 0,
			sprite: []uint8{0xF0},
			want:   []point{{62, 0}, {63, 0}},
		},
		{
			name:   "clip drops rows",
			policy: PolicyClip,
			x:      0, y: 31,
			sprite: []uint8{0x80, 0x80},
			want:   []point{{0, 31}},
		},
		{
			name:   "wrap columns",
			policy: PolicyWrap,
			x:      62, y: 0,
			sprite: []uint8{0xF0},
			want:   []point{{0, 0}, {1, 0}, {62, 0}, {63, 0}},
		},
		{
			name:   "wrap rows",
			policy: PolicyWrap,
			x:      0, y: 31,
			sprite: []uint8{0x80, 0x80},
			want:   []point{{0, 0}, {0, 31}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDisplay(tt.policy)
			assert.False(t, d.Blit(tt.sprite, tt.x, tt.y))
			assert.Equal(t, tt.want, litPixels(d))
		})
	}
}

func TestParseDisplayPolicy(t *testing.T) {
	for _, p := range []DisplayPolicy{PolicyLinear, PolicyClip, PolicyWrap} {
		parsed, err := ParseDisplayPolicy(p.String())
		assert.NoError(t, err)
		assert.Equal(t, p, parsed)
	}

	_, err := ParseDisplayPolicy("mirror")
	assert.True(t, err != nil)
}

func TestDisplay_PixelOffScreen(t *testing.T) {
	d := NewDisplay(PolicyLinear)
	d.Blit([]uint8{0xFF}, 0, 0)

	for _, p := range []point{{-1, 0}, {ScreenWidth, 0}, {0, -1}, {0, ScreenHeight}} {
		assert.Equal(t, uint8(0), d.Pixel(p.x, p.y))
	}
	assert.Equal(t, uint8(1), d.Pixel(0, 0))
}
