package influxdb

import (
	"path/filepath"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/nativehost/internal/process"
)

// Measurement names.
const (
	MeasurementRuns   = "process_runs"
	MeasurementStarts = "process_starts"
)

// Build outcomes used as the "outcome" tag.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeSignaled = "signaled"
	OutcomeKilled   = "killed"
	OutcomeUnknown  = "unknown"
)

// ProcessStarted implements process.Observer.
func (c *Client) ProcessStarted(info process.Info) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(startPoint(info))
}

// ProcessExited implements process.Observer.
func (c *Client) ProcessExited(run process.Run) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(runPoint(run))
}

func startPoint(info process.Info) *write.Point {
	return write.NewPoint(MeasurementStarts,
		map[string]string{"project": projectName(info.WorkDir)},
		map[string]any{"count": 1},
		info.StartedAt,
	)
}

// runPoint renders a finished build. The project directory name is the only
// tag besides the outcome to keep series cardinality low.
func runPoint(run process.Run) *write.Point {
	fields := map[string]any{
		"duration_ms":  float64(run.Duration().Microseconds()) / 1000,
		"stdout_bytes": run.StdoutBytes,
		"stderr_bytes": run.StderrBytes,
		"killed":       run.Killed,
	}
	if run.Code != nil {
		fields["exit_code"] = *run.Code
	}
	if run.Signal != nil {
		fields["signal"] = *run.Signal
	}

	return write.NewPoint(MeasurementRuns,
		map[string]string{
			"project": projectName(run.WorkDir),
			"outcome": Outcome(run),
		},
		fields,
		run.ExitedAt,
	)
}

// Outcome classifies a finished build.
func Outcome(run process.Run) string {
	switch {
	case run.Killed:
		return OutcomeKilled
	case run.Signal != nil:
		return OutcomeSignaled
	case run.Code == nil:
		return OutcomeUnknown
	case *run.Code == 0:
		return OutcomeSuccess
	default:
		return OutcomeFailure
	}
}

func projectName(workDir string) string {
	if workDir == "" {
		return "unknown"
	}
	return filepath.Base(filepath.Clean(workDir))
}
