package vm

import (
	"fmt"
)

type instruction struct {
	Pattern

	// Name renders the instruction as assembly for traces and disassembly.
	Name func(f Fields) string

	// Execute applies the instruction. The loop advances PC by
	// InstructionSize afterwards, so control flow targets are stored as
	// target-InstructionSize.
	Execute func(vm *VM, f Fields) error
}

// Disassemble renders opcode, which must match the instruction, as assembly.
func (instr *instruction) Disassemble(opcode uint16) string {
	return instr.Name(instr.Fields(opcode))
}

// instructionSet is an ordered list of instructions where the first match
// wins. Lookups only scan the instructions that can match the opcode's top
// nibble, which keeps the order intact.
type instructionSet struct {
	all     []*instruction
	buckets [16][]*instruction
}

func newInstructionSet(instrs ...*instruction) *instructionSet {
	s := &instructionSet{all: instrs}
	for top := uint16(0); top < 16; top++ {
		for _, instr := range instrs {
			if (top<<12)&instr.Mask == instr.Value&0xF000 {
				s.buckets[top] = append(s.buckets[top], instr)
			}
		}
	}
	return s
}

func (s *instructionSet) decode(opcode uint16) (*instruction, bool) {
	for _, instr := range s.buckets[opcode>>12] {
		if instr.Matches(opcode) {
			return instr, true
		}
	}
	return nil, false
}

func define(pattern string, name func(f Fields) string, execute func(vm *VM, f Fields) error) *instruction {
	return &instruction{
		Pattern: MustCompilePattern(pattern),
		Name:    name,
		Execute: execute,
	}
}

func plain(mnemonic string) func(Fields) string {
	return func(Fields) string { return mnemonic }
}

func withAddr(mnemonic string) func(Fields) string {
	return func(f Fields) string { return fmt.Sprintf("%s 0x%03x", mnemonic, f.NNN) }
}

func withReg(mnemonic string) func(Fields) string {
	return func(f Fields) string { return fmt.Sprintf("%s v%x", mnemonic, f.X) }
}

func withRegImm(mnemonic string) func(Fields) string {
	return func(f Fields) string { return fmt.Sprintf("%s v%x, %d", mnemonic, f.X, f.KK) }
}

func withRegReg(mnemonic string) func(Fields) string {
	return func(f Fields) string { return fmt.Sprintf("%s v%x, v%x", mnemonic, f.X, f.Y) }
}

func withRange(mnemonic string) func(Fields) string {
	return func(f Fields) string { return fmt.Sprintf("%s v0-v%x", mnemonic, f.X) }
}

// skipIf skips the next instruction when cond holds.
func (vm *VM) skipIf(cond bool) {
	if cond {
		vm.machine.AdvancePC()
	}
}

// setWithFlag writes Vx and then VF, so that the flag wins when x is 0xF.
func (vm *VM) setWithFlag(x, v uint8, flag bool) {
	vm.machine.SetRegister(x, v)
	vm.machine.SetRegister(FlagRegister, boolToUint8(flag))
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// baseInstructions is the CHIP-8 instruction table. 00E0 and 00EE must come
// before 0nnn, which would otherwise swallow them.
var baseInstructions = newInstructionSet(
	// 00E0	cls	Clear the screen
	define("00E0", plain("cls"), func(vm *VM, _ Fields) error {
		vm.display.Clear()
		return nil
	}),

	// 00EE	rts	return from subroutine call
	define("00EE", plain("rts"), func(vm *VM, _ Fields) error {
		addr, err := vm.machine.Pop()
		if err != nil {
			return err
		}
		vm.machine.SetPC(addr)
		return nil
	}),

	// 0xxx	sys xxx	machine code routine, ignored
	define("0nnn", withAddr("sys"), func(vm *VM, _ Fields) error {
		return nil
	}),

	// 1xxx	jmp xxx	jump to address xxx
	define("1nnn", withAddr("jmp"), func(vm *VM, f Fields) error {
		if f.NNN == vm.machine.PC() {
			vm.idle()
		}
		vm.machine.SetPC(f.NNN - InstructionSize)
		return nil
	}),

	// 2xxx	jsr xxx	jump to subroutine at address xxx
	define("2nnn", withAddr("jsr"), func(vm *VM, f Fields) error {
		if err := vm.machine.Push(vm.machine.PC()); err != nil {
			return err
		}
		vm.machine.SetPC(f.NNN - InstructionSize)
		return nil
	}),

	// 3rxx	skeq vr,xx	skip if register r = constant
	define("3xkk", withRegImm("skeq"), func(vm *VM, f Fields) error {
		vm.skipIf(vm.machine.Register(f.X) == f.KK)
		return nil
	}),

	// 4rxx	skne vr,xx	skip if register r <> constant
	define("4xkk", withRegImm("skne"), func(vm *VM, f Fields) error {
		vm.skipIf(vm.machine.Register(f.X) != f.KK)
		return nil
	}),

	// 5ry0	skeq vr,vy	skip if register r = register y
	define("5xy0", withRegReg("skeq"), func(vm *VM, f Fields) error {
		vm.skipIf(vm.machine.Register(f.X) == vm.machine.Register(f.Y))
		return nil
	}),

	// 6rxx	mov vr,xx	move constant to register r
	define("6xkk", withRegImm("mov"), func(vm *VM, f Fields) error {
		vm.machine.SetRegister(f.X, f.KK)
		return nil
	}),

	// 7rxx	add vr,xx	add constant to register r, no carry generated
	define("7xkk", withRegImm("add"), func(vm *VM, f Fields) error {
		vm.machine.SetRegister(f.X, vm.machine.Register(f.X)+f.KK)
		return nil
	}),

	// 8ry0	mov vr,vy	move register vy into vr
	define("8xy0", withRegReg("mov"), func(vm *VM, f Fields) error {
		vm.machine.SetRegister(f.X, vm.machine.Register(f.Y))
		return nil
	}),

	// 8ry1	or vr,vy	or register vy into register vr
	define("8xy1", withRegReg("or"), func(vm *VM, f Fields) error {
		vm.machine.SetRegister(f.X, vm.machine.Register(f.X)|vm.machine.Register(f.Y))
		return nil
	}),

	// 8ry2	and vr,vy	and register vy into register vr
	define("8xy2", withRegReg("and"), func(vm *VM, f Fields) error {
		vm.machine.SetRegister(f.X, vm.machine.Register(f.X)&vm.machine.Register(f.Y))
		return nil
	}),

	// 8ry3	xor vr,vy	exclusive or register vy into register vr
	define("8xy3", withRegReg("xor"), func(vm *VM, f Fields) error {
		vm.machine.SetRegister(f.X, vm.machine.Register(f.X)^vm.machine.Register(f.Y))
		return nil
	}),

	// 8ry4	add vr,vy	add register vy to vr, carry in vf
	define("8xy4", withRegReg("add"), func(vm *VM, f Fields) error {
		sum := uint16(vm.machine.Register(f.X)) + uint16(vm.machine.Register(f.Y))
		vm.setWithFlag(f.X, uint8(sum), sum > 0xFF)
		return nil
	}),

	// 8ry5	sub vr,vy	subtract register vy from vr, vf is 0 on borrow
	define("8xy5", withRegReg("sub"), func(vm *VM, f Fields) error {
		x, y := vm.machine.Register(f.X), vm.machine.Register(f.Y)
		vm.setWithFlag(f.X, x-y, x >= y)
		return nil
	}),

	// 8r06	shr vr	shift register vr right, bit 0 goes into vf
	define("8xy6", withReg("shr"), func(vm *VM, f Fields) error {
		x := vm.machine.Register(f.X)
		vm.setWithFlag(f.X, x>>1, x&0x1 != 0)
		return nil
	}),

	// 8ry7	rsb vr,vy	subtract register vr from register vy, result in vr, vf is 0 on borrow
	define("8xy7", withRegReg("rsb"), func(vm *VM, f Fields) error {
		x, y := vm.machine.Register(f.X), vm.machine.Register(f.Y)
		vm.setWithFlag(f.X, y-x, y >= x)
		return nil
	}),

	// 8r0e	shl vr	shift register vr left, bit 7 goes into vf
	define("8xyE", withReg("shl"), func(vm *VM, f Fields) error {
		x := vm.machine.Register(f.X)
		vm.setWithFlag(f.X, x<<1, x>>7 != 0)
		return nil
	}),

	// 9ry0	skne vr,vy	skip if register r <> register y
	define("9xy0", withRegReg("skne"), func(vm *VM, f Fields) error {
		vm.skipIf(vm.machine.Register(f.X) != vm.machine.Register(f.Y))
		return nil
	}),

	// axxx	mvi xxx	load index register with constant xxx
	define("Annn", withAddr("mvi"), func(vm *VM, f Fields) error {
		vm.machine.SetIndex(f.NNN)
		return nil
	}),

	// bxxx	jmi xxx	jump to address xxx+register v0
	define("Bnnn", withAddr("jmi"), func(vm *VM, f Fields) error {
		vm.machine.SetPC(f.NNN + uint16(vm.machine.Register(0)) - InstructionSize)
		return nil
	}),

	// crxx	rand vr,xx	vr = random byte masked with xx
	define("Cxkk", withRegImm("rand"), func(vm *VM, f Fields) error {
		vm.machine.SetRegister(f.X, uint8(vm.rng.IntN(256))&f.KK)
		return nil
	}),

	// drys	sprite vr,vy,s	draw sprite at screen location vr,vy height s
	// Sprites are read from I onwards, 8 bits wide, drawn with xor.
	// vf is 1 when a lit pixel was cleared, 0 otherwise.
	define("Dxyn", func(f Fields) string {
		return fmt.Sprintf("sprite v%x, v%x, %d", f.X, f.Y, f.N)
	}, func(vm *VM, f Fields) error {
		sprite, err := vm.machine.Slice(vm.machine.Index(), int(f.N))
		if err != nil {
			return err
		}

		x := int(vm.machine.Register(f.X)) % ScreenWidth
		y := int(vm.machine.Register(f.Y)) % ScreenHeight

		collision := vm.display.Blit(sprite, x, y)
		vm.machine.SetRegister(FlagRegister, boolToUint8(collision))
		return nil
	}),

	// ek9e	skpr k	skip if key (register rk) pressed
	define("Ex9E", withReg("skpr"), func(vm *VM, f Fields) error {
		vm.skipIf(vm.keypad.pressed(vm.machine.Register(f.X)))
		return nil
	}),

	// eka1	skup k	skip if key (register rk) not pressed
	define("ExA1", withReg("skup"), func(vm *VM, f Fields) error {
		vm.skipIf(!vm.keypad.pressed(vm.machine.Register(f.X)))
		return nil
	}),

	// fr07	gdelay vr	get delay timer into vr
	define("Fx07", withReg("gdelay"), func(vm *VM, f Fields) error {
		vm.machine.SetRegister(f.X, vm.machine.DelayTimer())
		return nil
	}),

	// fr0a	key vr	wait for keypress, put key in register vr
	define("Fx0A", withReg("key"), func(vm *VM, f Fields) error {
		vm.awaitKey(f.X)
		return nil
	}),

	// fr15	sdelay vr	set the delay timer to vr
	define("Fx15", withReg("sdelay"), func(vm *VM, f Fields) error {
		vm.machine.SetDelayTimer(vm.machine.Register(f.X))
		return nil
	}),

	// fr18	ssound vr	set the sound timer to vr
	define("Fx18", withReg("ssound"), func(vm *VM, f Fields) error {
		vm.machine.SetSoundTimer(vm.machine.Register(f.X))
		return nil
	}),

	// fr1e	adi vr	add register vr to the index register
	define("Fx1E", withReg("adi"), func(vm *VM, f Fields) error {
		vm.machine.SetIndex(vm.machine.Index() + uint16(vm.machine.Register(f.X)))
		return nil
	}),

	// fr29	font vr	point I to the sprite for hexadecimal character in vr
	define("Fx29", withReg("font"), func(vm *VM, f Fields) error {
		vm.machine.SetIndex(FontStart + uint16(vm.machine.Register(f.X))*FontGlyphSize)
		return nil
	}),

	// fr33	bcd vr	store the bcd representation of register vr at I, I+1, I+2
	define("Fx33", withReg("bcd"), func(vm *VM, f Fields) error {
		mem, err := vm.machine.Slice(vm.machine.Index(), 3)
		if err != nil {
			return err
		}

		x := vm.machine.Register(f.X)
		mem[0] = x / 100
		mem[1] = (x / 10) % 10
		mem[2] = x % 10
		return nil
	}),

	// fr55	str v0-vr	store registers v0-vr at location I onwards, I is unchanged
	define("Fx55", withRange("str"), func(vm *VM, f Fields) error {
		mem, err := vm.machine.Slice(vm.machine.Index(), int(f.X)+1)
		if err != nil {
			return err
		}

		for i := range mem {
			mem[i] = vm.machine.Register(uint8(i))
		}
		return nil
	}),

	// fr65	ldr v0-vr	load registers v0-vr from location I onwards, I is unchanged
	define("Fx65", withRange("ldr"), func(vm *VM, f Fields) error {
		mem, err := vm.machine.Slice(vm.machine.Index(), int(f.X)+1)
		if err != nil {
			return err
		}

		for i, b := range mem {
			vm.machine.SetRegister(uint8(i), b)
		}
		return nil
	}),
)
