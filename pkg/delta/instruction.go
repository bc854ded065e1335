package delta

import (
	"github.com/pkg/errors"
)

// Instruction is a single element of a delta instruction stream. It is a
// tagged value: if Data is non-empty, the instruction is a literal and
// directs the applier to append Data to the output; otherwise it is a copy
// and directs the applier to append Length bytes read from the existing
// destination at Offset. An ordered sequence of instructions fully and
// losslessly describes how to transform the old destination into content
// equal to the source.
type Instruction struct {
	// Data is the literal data for a literal instruction. It must be empty
	// for copy instructions.
	Data []byte
	// Offset is the destination byte offset for a copy instruction.
	Offset uint64
	// Length is the number of destination bytes for a copy instruction.
	Length uint32
}

// IsCopy indicates whether or not the instruction is a copy instruction.
func (i *Instruction) IsCopy() bool {
	return len(i.Data) == 0
}

// EnsureValid verifies that instruction invariants are respected.
func (i *Instruction) EnsureValid() error {
	// A nil instruction is not valid.
	if i == nil {
		return errors.New("nil instruction")
	}

	// Ensure that the instruction parameters are valid.
	if len(i.Data) > 0 {
		if i.Offset != 0 {
			return errors.New("literal instruction with non-0 offset")
		} else if i.Length != 0 {
			return errors.New("literal instruction with non-0 length")
		}
	} else if i.Length == 0 {
		return errors.New("copy instruction with 0 length")
	}

	// Success.
	return nil
}

// Copy creates a deep copy of an instruction.
func (i *Instruction) Copy() *Instruction {
	// Make a copy of the instruction's data buffer if necessary.
	var data []byte
	if len(i.Data) > 0 {
		data = make([]byte, len(i.Data))
		copy(data, i.Data)
	}

	// Create the copy.
	return &Instruction{
		Data:   data,
		Offset: i.Offset,
		Length: i.Length,
	}
}

// InstructionEmitter receives a single delta instruction. Instruction objects
// and their data buffers are re-used between calls to the emitter, so the
// emitter should not return until it has either processed the instruction or
// copied it for later processing.
type InstructionEmitter func(*Instruction) error
