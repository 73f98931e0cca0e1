package vm

import (
	"fmt"
	"io"
)

func (s *instructionSet) disassemble(opcode uint16) string {
	instr, ok := s.decode(opcode)
	if !ok {
		return "data"
	}
	return instr.Disassemble(opcode)
}

// Disassemble lists program word by word as it would be laid out in memory.
// Words that decode to no instruction are listed as data.
func Disassemble(w io.Writer, program []byte) error {
	for off := 0; off+1 < len(program); off += InstructionSize {
		addr := int(ProgramStart) + off
		opcode := uint16(program[off])<<8 | uint16(program[off+1])

		pattern := "----"
		if instr, ok := baseInstructions.decode(opcode); ok {
			pattern = instr.Text
		}

		_, err := fmt.Fprintf(w, "0x%04x  %04x  %s  %s\n", addr, opcode, pattern, baseInstructions.disassemble(opcode))
		if err != nil {
			return err
		}
	}

	if len(program)%2 != 0 {
		_, err := fmt.Fprintf(w, "0x%04x  %02x\n", int(ProgramStart)+len(program)-1, program[len(program)-1])
		return err
	}
	return nil
}
