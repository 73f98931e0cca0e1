package vm

import (
	"errors"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

// newTestVM loads the given opcodes at ProgramStart.
func newTestVM(t *testing.T, opcodes ...uint16) *VM {
	t.Helper()

	program := make([]byte, 0, len(opcodes)*2)
	for _, op := range opcodes {
		program = append(program, byte(op>>8), byte(op))
	}

	return New(program, Config{Seed: 1, Clock: newFakeClock()})
}

// steps executes n instructions and fails the test on any error.
func steps(t *testing.T, vm *VM, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		assert.NoError(t, vm.Step())
	}
}

func reg(vm *VM, i uint8) uint8 {
	return vm.machine.Register(i)
}

func TestDecode_CanonicalTable(t *testing.T) {
	tests := []struct {
		opcode  uint16
		pattern string
	}{
		{0x00E0, "00E0"},
		{0x00EE, "00EE"},
		{0x0123, "0nnn"},
		{0x1234, "1nnn"},
		{0x2345, "2nnn"},
		{0x3456, "3xkk"},
		{0x4567, "4xkk"},
		{0x5670, "5xy0"},
		{0x6789, "6xkk"},
		{0x789A, "7xkk"},
		{0x89A0, "8xy0"},
		{0x89A1, "8xy1"},
		{0x89A2, "8xy2"},
		{0x89A3, "8xy3"},
		{0x89A4, "8xy4"},
		{0x89A5, "8xy5"},
		{0x89A6, "8xy6"},
		{0x89A7, "8xy7"},
		{0x89AE, "8xyE"},
		{0x9AB0, "9xy0"},
		{0xABCD, "Annn"},
		{0xBCDE, "Bnnn"},
		{0xCDEF, "Cxkk"},
		{0xDEF1, "Dxyn"},
		{0xE19E, "Ex9E"},
		{0xE2A1, "ExA1"},
		{0xF307, "Fx07"},
		{0xF40A, "Fx0A"},
		{0xF515, "Fx15"},
		{0xF618, "Fx18"},
		{0xF71E, "Fx1E"},
		{0xF829, "Fx29"},
		{0xF933, "Fx33"},
		{0xFA55, "Fx55"},
		{0xFB65, "Fx65"},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			instr, ok := baseInstructions.decode(tt.opcode)
			assert.True(t, ok)
			assert.Equal(t, tt.pattern, instr.Text)

			// the bucket lookup agrees with a scan of the whole table
			var matches []string
			for _, candidate := range baseInstructions.all {
				if candidate.Matches(tt.opcode) {
					matches = append(matches, candidate.Text)
				}
			}
			assert.Equal(t, tt.pattern, matches[0])

			// 00E0 and 00EE overlap 0nnn, everything else is unique
			if tt.opcode&0xF000 != 0 {
				assert.Equal(t, 1, len(matches))
			}
		})
	}
}

func TestDecode_Unknown(t *testing.T) {
	for _, opcode := range []uint16{0x5001, 0x800F, 0x8008, 0x9001, 0xE000, 0xE09F, 0xF000, 0xF0FF, 0xFFFF} {
		_, ok := baseInstructions.decode(opcode)
		assert.False(t, ok)
	}
}

func TestInstruction_Disassemble(t *testing.T) {
	tests := []struct {
		opcode uint16
		want   string
	}{
		{0x00E0, "cls"},
		{0x1234, "jmp 0x234"},
		{0x3A10, "skeq va, 16"},
		{0x8124, "add v1, v2"},
		{0x8306, "shr v3"},
		{0xD125, "sprite v1, v2, 5"},
		{0xF555, "str v0-v5"},
		{0x5001, "data"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, baseInstructions.disassemble(tt.opcode))
	}
}

func TestExec_Arithmetic(t *testing.T) {
	tests := []struct {
		name    string
		x, y    uint8
		opcode  uint16
		want    uint8
		wantVF  uint8
		checkVF bool
	}{
		{"add immediate wraps", 0xFF, 0, 0x7002, 0x01, 0, true},
		{"add with carry", 0xFF, 0x02, 0x8014, 0x01, 1, true},
		{"add without carry", 0x10, 0x20, 0x8014, 0x30, 0, true},
		{"sub with borrow", 0x05, 0x0A, 0x8015, 0xFB, 0, true},
		{"sub without borrow", 0x0A, 0x05, 0x8015, 0x05, 1, true},
		{"sub equal", 0x07, 0x07, 0x8015, 0x00, 1, true},
		{"rsb without borrow", 0x05, 0x0A, 0x8017, 0x05, 1, true},
		{"rsb with borrow", 0x0A, 0x05, 0x8017, 0xFB, 0, true},
		{"shr odd", 0x05, 0, 0x8016, 0x02, 1, true},
		{"shr even", 0x04, 0, 0x8016, 0x02, 0, true},
		{"shl high bit", 0x81, 0, 0x801E, 0x02, 1, true},
		{"shl low", 0x41, 0, 0x801E, 0x82, 0, true},
		{"or", 0x0C, 0x0A, 0x8011, 0x0E, 0, false},
		{"and", 0x0C, 0x0A, 0x8012, 0x08, 0, false},
		{"xor", 0x0C, 0x0A, 0x8013, 0x06, 0, false},
		{"mov", 0x0C, 0x0A, 0x8010, 0x0A, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := newTestVM(t, tt.opcode)
			vm.machine.SetRegister(0, tt.x)
			vm.machine.SetRegister(1, tt.y)

			steps(t, vm, 1)
			assert.Equal(t, tt.want, reg(vm, 0))
			if tt.checkVF {
				assert.Equal(t, tt.wantVF, reg(vm, FlagRegister))
			}
			assert.Equal(t, ProgramStart+2, vm.machine.PC())
		})
	}
}

func TestExec_FlagWinsOverVF(t *testing.T) {
	// VF = 0xFF; V1 = 0x01; VF += V1 -> the carry overwrites the sum
	vm := newTestVM(t, 0x6FFF, 0x6101, 0x8F14)
	steps(t, vm, 3)
	assert.Equal(t, uint8(1), reg(vm, FlagRegister))

	// VF = 0x02; VF >>= 1 -> VF holds the shifted out bit
	vm = newTestVM(t, 0x6F02, 0x8F06)
	steps(t, vm, 2)
	assert.Equal(t, uint8(0), reg(vm, FlagRegister))
}

func TestExec_Skips(t *testing.T) {
	tests := []struct {
		name   string
		opcode uint16
		skip   bool
	}{
		{"skeq imm taken", 0x3005, true},
		{"skeq imm not taken", 0x3006, false},
		{"skne imm taken", 0x4006, true},
		{"skne imm not taken", 0x4005, false},
		{"skeq reg taken", 0x5010, true},
		{"skeq reg not taken", 0x5020, false},
		{"skne reg taken", 0x9020, true},
		{"skne reg not taken", 0x9010, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// V0 = V1 = 5, V2 = 6
			vm := newTestVM(t, 0x6005, 0x6105, 0x6206, tt.opcode)
			steps(t, vm, 4)

			want := ProgramStart + 8
			if tt.skip {
				want += 2
			}
			assert.Equal(t, want, vm.machine.PC())
		})
	}
}

func TestExec_JumpCallReturn(t *testing.T) {
	vm := newTestVM(t,
		0x2206, // 0x200: jsr 0x206
		0x6101, // 0x202: V1 = 1
		0x1208, // 0x204: jmp 0x208
		0x6007, // 0x206: V0 = 7
		0x00EE, // 0x208: rts
	)

	steps(t, vm, 1)
	assert.Equal(t, uint16(0x206), vm.machine.PC())
	assert.Equal(t, 1, vm.machine.Depth())

	steps(t, vm, 2)
	assert.Equal(t, uint16(0x202), vm.machine.PC())
	assert.Equal(t, uint8(7), reg(vm, 0))
	assert.Equal(t, 0, vm.machine.Depth())

	steps(t, vm, 2)
	assert.Equal(t, uint16(0x208), vm.machine.PC())
	assert.Equal(t, uint8(1), reg(vm, 1))
}

func TestExec_JumpIndexed(t *testing.T) {
	vm := newTestVM(t, 0x6004, 0xB300)
	steps(t, vm, 2)
	assert.Equal(t, uint16(0x304), vm.machine.PC())
}

func TestExec_JumpToSelfIdles(t *testing.T) {
	vm := newTestVM(t, 0x6001, 0x1202, 0x6002)
	steps(t, vm, 2)
	assert.Equal(t, stateIdle, vm.state)
	assert.Equal(t, uint16(0x202), vm.machine.PC())

	// further steps do nothing
	steps(t, vm, 5)
	assert.Equal(t, uint8(1), reg(vm, 0))
}

func TestExec_SysIsIgnored(t *testing.T) {
	vm := newTestVM(t, 0x0123, 0x6001)
	steps(t, vm, 2)
	assert.Equal(t, uint8(1), reg(vm, 0))
}

func TestExec_StackOverflow(t *testing.T) {
	vm := newTestVM(t, 0x2200) // calls itself forever

	steps(t, vm, StackSize)

	err := vm.Step()
	assert.True(t, errors.Is(err, ErrStackOverflow))

	var fault *Fault
	assert.True(t, errors.As(err, &fault))
	assert.Equal(t, uint16(0x200), fault.Address)
	assert.Equal(t, uint16(0x2200), fault.Opcode)

	// the machine stays faulted
	assert.True(t, errors.Is(vm.Step(), ErrStackOverflow))
}

func TestExec_StackUnderflow(t *testing.T) {
	vm := newTestVM(t, 0x00EE)

	err := vm.Step()
	assert.True(t, errors.Is(err, ErrStackUnderflow))
	assert.Equal(t, stateFaulted, vm.state)
}

func TestExec_Index(t *testing.T) {
	vm := newTestVM(t, 0xA300, 0x6010, 0xF01E)
	steps(t, vm, 3)
	assert.Equal(t, uint16(0x310), vm.machine.Index())

	vm = newTestVM(t, 0x600A, 0xF029)
	steps(t, vm, 2)
	assert.Equal(t, uint16(0xA*FontGlyphSize), vm.machine.Index())
}

func TestExec_BCD(t *testing.T) {
	vm := newTestVM(t, 0x60EA, 0xA300, 0xF033) // V0 = 234
	steps(t, vm, 3)

	mem, err := vm.machine.Slice(0x300, 3)
	assert.NoError(t, err)
	assert.Equal(t, []uint8{2, 3, 4}, mem)
	assert.Equal(t, uint16(0x300), vm.machine.Index())
}

func TestExec_StoreLoadRegisters(t *testing.T) {
	vm := newTestVM(t,
		0x6011, 0x6122, 0x6233, 0x6344,
		0xA300,
		0xF255, // store V0..V2
		0x6000, 0x6100, 0x6200,
		0xF165, // load V0..V1
	)
	steps(t, vm, 10)

	mem, err := vm.machine.Slice(0x300, 4)
	assert.NoError(t, err)
	assert.Equal(t, []uint8{0x11, 0x22, 0x33, 0x00}, mem)

	assert.Equal(t, uint8(0x11), reg(vm, 0))
	assert.Equal(t, uint8(0x22), reg(vm, 1))
	assert.Equal(t, uint8(0x00), reg(vm, 2))
	assert.Equal(t, uint8(0x44), reg(vm, 3))
	assert.Equal(t, uint16(0x300), vm.machine.Index())
}

func TestExec_OutOfBoundsIsFatal(t *testing.T) {
	tests := []struct {
		name   string
		opcode uint16
	}{
		{"store", 0xF255},
		{"load", 0xF265},
		{"bcd", 0xF033},
		{"sprite", 0xD013},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := newTestVM(t, 0x6107, 0xAFFE, tt.opcode)
			steps(t, vm, 2)

			err := vm.Step()
			assert.True(t, errors.Is(err, ErrOutOfBounds))

			var fault *Fault
			assert.True(t, errors.As(err, &fault))
			assert.Equal(t, uint16(0x204), fault.Address)

			// nothing was written before the check failed
			mem, _ := vm.machine.Slice(0xFFE, 2)
			assert.Equal(t, []uint8{0, 0}, mem)
			assert.Equal(t, uint8(7), reg(vm, 1))
			assert.Equal(t, 0, len(litPixels(vm.display)))
		})
	}
}

func TestExec_SpriteCollision(t *testing.T) {
	vm := newTestVM(t,
		0x6003, 0x6104, // V0 = 3, V1 = 4
		0xA000,         // I = glyph 0
		0xD015,         // draw onto blank screen
		0xD015,         // draw again, erasing it
	)

	steps(t, vm, 4)
	assert.Equal(t, uint8(0), reg(vm, FlagRegister))
	assert.Equal(t, uint8(1), vm.display.Pixel(3, 4))
	assert.Equal(t, 14, len(litPixels(vm.display)))

	steps(t, vm, 1)
	assert.Equal(t, uint8(1), reg(vm, FlagRegister))
	assert.Equal(t, 0, len(litPixels(vm.display)))
}

func TestExec_SpriteOriginWraps(t *testing.T) {
	// V0 = 64 + 3, V1 = 32 + 4
	vm := newTestVM(t, 0x6043, 0x6124, 0xA000, 0xD011)
	steps(t, vm, 4)
	assert.Equal(t, uint8(1), vm.display.Pixel(3, 4))
}

func TestExec_Clear(t *testing.T) {
	vm := newTestVM(t, 0xA000, 0xD005, 0x00E0)
	steps(t, vm, 3)
	assert.Equal(t, 0, len(litPixels(vm.display)))
}

func TestExec_Timers(t *testing.T) {
	vm := newTestVM(t, 0x6033, 0xF015, 0x6144, 0xF118, 0xF207)
	steps(t, vm, 5)

	assert.Equal(t, uint8(0x33), vm.machine.DelayTimer())
	assert.Equal(t, uint8(0x44), vm.machine.SoundTimer())
	assert.Equal(t, uint8(0x33), reg(vm, 2))
	assert.True(t, vm.SoundActive())
}

func TestExec_Random(t *testing.T) {
	vm := newTestVM(t, 0xC000, 0xC10F)
	steps(t, vm, 2)
	assert.Equal(t, uint8(0), reg(vm, 0))
	assert.Equal(t, uint8(0), reg(vm, 1)&0xF0)

	// same seed, same sequence
	a := newTestVM(t, 0xC0FF, 0xC1FF)
	b := newTestVM(t, 0xC0FF, 0xC1FF)
	steps(t, a, 2)
	steps(t, b, 2)
	assert.Equal(t, reg(a, 0), reg(b, 0))
	assert.Equal(t, reg(a, 1), reg(b, 1))
}

func TestExec_RandomRepeatsAfterReset(t *testing.T) {
	vm := newTestVM(t, 0xC0FF, 0xC1FF)
	steps(t, vm, 2)
	first := []uint8{reg(vm, 0), reg(vm, 1)}

	vm.Reset()
	steps(t, vm, 2)
	assert.Equal(t, first, []uint8{reg(vm, 0), reg(vm, 1)})
}

func TestExec_KeySkips(t *testing.T) {
	vm := newTestVM(t, 0x600B, 0xE09E, 0x6101, 0xE0A1, 0x6201)
	vm.keyDown(KeyB)
	steps(t, vm, 4)
	assert.Equal(t, uint8(0), reg(vm, 1)) // skipped, key is down
	assert.Equal(t, uint8(1), reg(vm, 2))
	assert.Equal(t, uint16(0x20A), vm.machine.PC())

	vm = newTestVM(t, 0x600B, 0xE09E, 0x6101, 0xE0A1, 0x6201)
	steps(t, vm, 4)
	assert.Equal(t, uint8(1), reg(vm, 1))
	assert.Equal(t, uint16(0x20A), vm.machine.PC())

	// keys outside 0..F are never pressed
	vm = newTestVM(t, 0x6020, 0xE09E)
	steps(t, vm, 2)
	assert.Equal(t, uint16(0x204), vm.machine.PC())
}

func TestExec_AwaitKey(t *testing.T) {
	vm := newTestVM(t, 0xF30A, 0x6001)

	steps(t, vm, 1)
	assert.Equal(t, stateAwaitingKey, vm.state)
	assert.Equal(t, uint16(0x202), vm.machine.PC())

	// suspended: stepping does not fetch
	steps(t, vm, 3)
	assert.Equal(t, uint8(0), reg(vm, 0))

	vm.keyUp(Key5) // releases are not presses
	assert.Equal(t, stateAwaitingKey, vm.state)

	vm.keyDown(Key5)
	assert.Equal(t, stateRunning, vm.state)
	assert.Equal(t, uint8(5), reg(vm, 3))

	steps(t, vm, 1)
	assert.Equal(t, uint8(1), reg(vm, 0))
}
