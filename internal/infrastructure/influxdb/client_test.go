package influxdb

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/nativehost/internal/infrastructure/config"
	"github.com/nerrad567/nativehost/internal/process"
)

func intPtr(v int) *int { return &v }

func testRun() process.Run {
	start := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	return process.Run{
		Info: process.Info{
			PID:       "4242",
			WorkDir:   "/home/dev/projects/scaffold-demo/",
			Wrapper:   "/home/dev/projects/scaffold-demo/gradlew",
			Args:      []string{"build"},
			StartedAt: start,
		},
		ExitedAt:    start.Add(1500 * time.Millisecond),
		Code:        intPtr(0),
		StdoutBytes: 2048,
		StderrBytes: 12,
	}
}

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("dials a closed port")
	}
	_, err := Connect(config.InfluxDBConfig{Enabled: true, URL: "http://127.0.0.1:1"})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		name string
		run  process.Run
		want string
	}{
		{"zero exit", process.Run{Code: intPtr(0)}, OutcomeSuccess},
		{"non-zero exit", process.Run{Code: intPtr(1)}, OutcomeFailure},
		{"signal", process.Run{Signal: intPtr(9)}, OutcomeSignaled},
		{"killed wins over signal", process.Run{Signal: intPtr(15), Killed: true}, OutcomeKilled},
		{"nothing reported", process.Run{}, OutcomeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Outcome(tt.run); got != tt.want {
				t.Errorf("Outcome() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRunPoint(t *testing.T) {
	run := testRun()
	line := write.PointToLineProtocol(runPoint(run), time.Nanosecond)

	for _, want := range []string{
		"process_runs,",
		"outcome=success",
		"project=scaffold-demo",
		"duration_ms=1500",
		"exit_code=0i",
		"stdout_bytes=2048i",
		"stderr_bytes=12i",
		"killed=false",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line protocol %q missing %q", line, want)
		}
	}
	if strings.Contains(line, "signal=") {
		t.Errorf("line protocol %q should not carry a signal field", line)
	}
}

func TestStartPoint(t *testing.T) {
	line := write.PointToLineProtocol(startPoint(testRun().Info), time.Nanosecond)
	if !strings.HasPrefix(line, "process_starts,project=scaffold-demo count=1i") {
		t.Errorf("line protocol = %q", line)
	}
}

func TestProjectName(t *testing.T) {
	tests := map[string]string{
		"":                 "unknown",
		"/work/app":        "app",
		"/work/app/":       "app",
		"relative/project": "project",
	}
	for in, want := range tests {
		if got := projectName(in); got != want {
			t.Errorf("projectName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDisconnectedClient(t *testing.T) {
	c := &Client{}

	// Observer hooks must be safe before Connect succeeded.
	c.ProcessStarted(testRun().Info)
	c.ProcessExited(testRun())
	c.Flush()

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
