package vm

import (
	"fmt"
	"io"

	"github.com/bradleyjkemp/memviz"
)

// Snapshot is a plain copy of the machine's registers, stack and the memory
// around the program counter, meant for post-mortem inspection.
type Snapshot struct {
	State      string
	Fault      string
	PC         string
	Index      string
	Registers  [RegisterCount]uint8
	Stack      []string
	DelayTimer uint8
	SoundTimer uint8
	Code       []string
}

// snapshotWindow is how many opcodes around PC end up in Snapshot.Code.
const snapshotWindow = 8

func (vm *VM) Snapshot() Snapshot {
	m := &vm.machine

	s := Snapshot{
		State:      vm.state.String(),
		PC:         fmt.Sprintf("0x%04x", m.pc),
		Index:      fmt.Sprintf("0x%04x", m.index),
		Registers:  m.registers,
		DelayTimer: m.delayTimer,
		SoundTimer: m.soundTimer,
	}
	if vm.fault != nil {
		s.Fault = vm.fault.Error()
	}

	for i := 0; i < m.sp; i++ {
		s.Stack = append(s.Stack, fmt.Sprintf("0x%04x", m.stack[i]))
	}

	from := int(m.pc) - snapshotWindow
	if from < 0 {
		from = 0
	}
	from &^= 1
	for addr := from; addr < int(m.pc)+snapshotWindow && addr+1 < MemorySize; addr += InstructionSize {
		opcode := uint16(m.memory[addr])<<8 | uint16(m.memory[addr+1])
		s.Code = append(s.Code, fmt.Sprintf("0x%04x: %04x %s", addr, opcode, vm.set.disassemble(opcode)))
	}

	return s
}

// DumpState writes the machine snapshot to w as a Graphviz graph.
func (vm *VM) DumpState(w io.Writer) {
	s := vm.Snapshot()
	memviz.Map(w, &s)
}
