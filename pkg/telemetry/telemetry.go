// Package telemetry provides fire-and-forget emission of per-operation
// statistics and coarse phase markers. Recorders must never affect transfer
// correctness: their methods return nothing, and implementations swallow any
// sink failures internally.
package telemetry

import (
	"github.com/ferry-io/ferry/pkg/delta"
)

// Phase identifies a coarse phase of a delta operation.
type Phase string

const (
	// PhaseSignature is the signature generation phase.
	PhaseSignature Phase = "signature"
	// PhaseScan is the rolling scan phase.
	PhaseScan Phase = "scan"
	// PhaseReconstruct is the reconstruction phase.
	PhaseReconstruct Phase = "reconstruct"
)

// Recorder receives operation lifecycle notifications. Operations are
// identified by collision-resistant identifiers assigned by the transfer
// layer. Implementations must be safe for concurrent use.
type Recorder interface {
	// OperationBegan indicates that a per-file operation has started.
	OperationBegan(operation, source, destination string)
	// PhaseBegan indicates that an operation has entered a phase.
	PhaseBegan(operation string, phase Phase)
	// PhaseEnded indicates that an operation has left a phase.
	PhaseEnded(operation string, phase Phase)
	// OperationEnded indicates that a per-file operation has completed, with
	// its statistics (which may be nil for whole-file transfers) and any
	// terminal error.
	OperationEnded(operation string, stats *delta.Stats, err error)
}

// Nop is a Recorder that discards all notifications. A nil Nop is valid.
type Nop struct{}

// OperationBegan implements Recorder.OperationBegan.
func (*Nop) OperationBegan(operation, source, destination string) {}

// PhaseBegan implements Recorder.PhaseBegan.
func (*Nop) PhaseBegan(operation string, phase Phase) {}

// PhaseEnded implements Recorder.PhaseEnded.
func (*Nop) PhaseEnded(operation string, phase Phase) {}

// OperationEnded implements Recorder.OperationEnded.
func (*Nop) OperationEnded(operation string, stats *delta.Stats, err error) {}
