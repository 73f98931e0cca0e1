package vm

const (
	MemorySize    = 4096
	StackSize     = 16
	RegisterCount = 16

	ProgramStart    = uint16(0x200)
	InstructionSize = 2

	// FlagRegister is VF, the carry/borrow/collision output of arithmetic,
	// shift and draw instructions.
	FlagRegister = 0xF
)

// Machine is the passive state of the CPU: memory, registers, call stack
// and timers. It holds no instruction semantics.
type Machine struct {
	memory    [MemorySize]uint8    // Memory (4k)
	registers [RegisterCount]uint8 // V registers (V0-VF)

	stack [StackSize]uint16 // Stack
	sp    int               // Stack pointer

	pc    uint16 // Program counter
	index uint16 // Index register

	delayTimer uint8 // Delay timer
	soundTimer uint8 // Sound timer
}

// Reset zeroes the whole machine and places the font at the bottom of
// memory. The program counter points at ProgramStart.
func (m *Machine) Reset() {
	*m = Machine{}
	copy(m.memory[FontStart:], chip8Font)
	m.pc = ProgramStart
}

// Load copies program into memory at ProgramStart and returns the number of
// bytes that fit.
func (m *Machine) Load(program []byte) int {
	return copy(m.memory[ProgramStart:], program)
}

// Fetch returns the big-endian opcode at the program counter.
func (m *Machine) Fetch() (uint16, error) {
	bs, err := m.Slice(m.pc, InstructionSize)
	if err != nil {
		return 0, err
	}
	return uint16(bs[0])<<8 | uint16(bs[1]), nil
}

// Read returns the byte at addr.
func (m *Machine) Read(addr uint16) (uint8, error) {
	if int(addr) >= MemorySize {
		return 0, &BoundsError{Target: addr, Size: 1}
	}
	return m.memory[addr], nil
}

// Write stores v at addr.
func (m *Machine) Write(addr uint16, v uint8) error {
	if int(addr) >= MemorySize {
		return &BoundsError{Target: addr, Size: 1}
	}
	m.memory[addr] = v
	return nil
}

// Slice returns the n bytes of memory starting at addr. The returned slice
// aliases machine memory. Validating a whole range up front lets callers
// fail before they mutate anything.
func (m *Machine) Slice(addr uint16, n int) ([]uint8, error) {
	if n < 0 || int(addr)+n > MemorySize {
		return nil, &BoundsError{Target: addr, Size: n}
	}
	return m.memory[int(addr) : int(addr)+n], nil
}

// Register returns Vi. i must be in 0..15.
func (m *Machine) Register(i uint8) uint8 {
	return m.registers[i]
}

// SetRegister sets Vi. i must be in 0..15.
func (m *Machine) SetRegister(i uint8, v uint8) {
	m.registers[i] = v
}

func (m *Machine) Index() uint16 {
	return m.index
}

func (m *Machine) SetIndex(addr uint16) {
	m.index = addr
}

func (m *Machine) PC() uint16 {
	return m.pc
}

func (m *Machine) SetPC(addr uint16) {
	m.pc = addr
}

// AdvancePC moves the program counter to the next instruction.
func (m *Machine) AdvancePC() {
	m.pc += InstructionSize
}

// Push saves a return address on the call stack.
func (m *Machine) Push(addr uint16) error {
	if m.sp >= StackSize {
		return ErrStackOverflow
	}
	m.stack[m.sp] = addr
	m.sp++
	return nil
}

// Pop removes and returns the most recent return address.
func (m *Machine) Pop() (uint16, error) {
	if m.sp <= 0 {
		return 0, ErrStackUnderflow
	}
	m.sp--
	return m.stack[m.sp], nil
}

// Depth is the number of return addresses on the stack.
func (m *Machine) Depth() int {
	return m.sp
}

func (m *Machine) DelayTimer() uint8 {
	return m.delayTimer
}

func (m *Machine) SetDelayTimer(v uint8) {
	m.delayTimer = v
}

func (m *Machine) SoundTimer() uint8 {
	return m.soundTimer
}

func (m *Machine) SetSoundTimer(v uint8) {
	m.soundTimer = v
}

// TickTimers decrements both timers by one, stopping at zero.
func (m *Machine) TickTimers() {
	if m.delayTimer > 0 {
		m.delayTimer--
	}
	if m.soundTimer > 0 {
		m.soundTimer--
	}
}
