package delta

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// Apply applies a single instruction against a base (the original, unmodified
// destination) to reconstitute part of the source into the staging writer.
// The staging writer must never be the live destination - copy instructions
// read the original destination bytes throughout reconstruction, so writes
// must accumulate elsewhere until the caller atomically publishes them. For
// performance reasons, this method does not validate that the provided
// instruction satisfies expected invariants. It is the responsibility of the
// caller to verify instructions received from untrusted locations by calling
// their EnsureValid method.
func (e *Engine) Apply(staging io.Writer, base io.ReaderAt, instruction *Instruction) error {
	// Handle the instruction based on type.
	if len(instruction.Data) > 0 {
		// Write literal data directly to the staging target.
		if _, err := staging.Write(instruction.Data); err != nil {
			return errors.Wrap(err, "unable to write literal data")
		}
	} else {
		// Read the instructed range from the base. ReadAt guarantees an error
		// if fewer than the requested number of bytes are read, so a
		// destination that has shrunk since signature generation surfaces
		// here rather than producing short output. ReaderAt implementations
		// are permitted to return io.EOF alongside a complete read of the
		// final bytes, so that combination is treated as success.
		buffer := e.applyBufferWithSize(uint64(instruction.Length))
		n, err := base.ReadAt(buffer, int64(instruction.Offset))
		if err == io.EOF && n == len(buffer) {
			err = nil
		}
		if err != nil {
			return errors.Wrap(err, "unable to read block data")
		} else if _, err = staging.Write(buffer); err != nil {
			return errors.Wrap(err, "unable to write block data")
		}
	}

	// Success.
	return nil
}

// ApplyPlan applies a complete instruction stream, in order, against a base
// to reconstitute the source into the staging writer. The same caveats apply
// as for Apply.
func (e *Engine) ApplyPlan(staging io.Writer, base io.ReaderAt, plan []*Instruction) error {
	for _, instruction := range plan {
		if err := e.Apply(staging, base, instruction); err != nil {
			return err
		}
	}
	return nil
}

// ApplyBytes applies a complete instruction stream against a base byte slice
// to reconstitute the source byte slice.
func (e *Engine) ApplyBytes(base []byte, plan []*Instruction) ([]byte, error) {
	// Wrap up the base bytes in a reader.
	baseReader := bytes.NewReader(base)

	// Create an output buffer.
	output := bytes.NewBuffer(nil)

	// Perform application.
	if err := e.ApplyPlan(output, baseReader, plan); err != nil {
		return nil, err
	}

	// Success.
	return output.Bytes(), nil
}
