package vm

import (
	"errors"
	"fmt"
)

var (
	ErrDecode         = errors.New("unknown opcode")
	ErrStackOverflow  = errors.New("stack overflow")
	ErrStackUnderflow = errors.New("stack underflow")
	ErrOutOfBounds    = errors.New("memory access out of bounds")
)

// BoundsError describes a memory access of Size bytes at Target that does
// not fit into memory.
type BoundsError struct {
	Target uint16
	Size   int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("%v: %d byte(s) at 0x%04X", ErrOutOfBounds, e.Size, e.Target)
}

func (e *BoundsError) Is(target error) bool {
	return target == ErrOutOfBounds
}

// Fault is a fatal condition raised by the instruction at Address. Once a
// fault is raised the machine does not execute any further instructions.
type Fault struct {
	Address uint16
	Opcode  uint16
	Err     error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("opcode 0x%04X at 0x%04X: %v", f.Opcode, f.Address, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}
