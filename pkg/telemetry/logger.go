package telemetry

import (
	"github.com/ferry-io/ferry/pkg/delta"
	"github.com/ferry-io/ferry/pkg/logging"
)

// LogRecorder is a Recorder that writes debug-level log lines. It relies on
// the logger's nil-safety, so a zero value is usable.
type LogRecorder struct {
	// Logger is the logger to write to.
	Logger *logging.Logger
}

// OperationBegan implements Recorder.OperationBegan.
func (r *LogRecorder) OperationBegan(operation, source, destination string) {
	r.Logger.Debugf("[%s] operation began: %s -> %s", operation, source, destination)
}

// PhaseBegan implements Recorder.PhaseBegan.
func (r *LogRecorder) PhaseBegan(operation string, phase Phase) {
	r.Logger.Debugf("[%s] %s phase began", operation, phase)
}

// PhaseEnded implements Recorder.PhaseEnded.
func (r *LogRecorder) PhaseEnded(operation string, phase Phase) {
	r.Logger.Debugf("[%s] %s phase ended", operation, phase)
}

// OperationEnded implements Recorder.OperationEnded.
func (r *LogRecorder) OperationEnded(operation string, stats *delta.Stats, err error) {
	if err != nil {
		r.Logger.Debugf("[%s] operation failed: %v", operation, err)
		return
	}
	if stats != nil {
		r.Logger.Debugf(
			"[%s] operation ended: %d blocks matched, %d bytes reused, %d bytes literal, savings ratio %.3f",
			operation, stats.BlocksMatched, stats.BytesMatched, stats.BytesLiteral, stats.SavingsRatio,
		)
	} else {
		r.Logger.Debugf("[%s] operation ended", operation)
	}
}
