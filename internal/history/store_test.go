package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/nativehost/internal/process"
)

func openTestStore(t *testing.T, retention time.Duration) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{
		Path:        filepath.Join(t.TempDir(), "history.db"),
		WALMode:     true,
		BusyTimeout: 5,
		Retention:   retention,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() }) //nolint:errcheck // Test cleanup
	return s
}

func intPtr(v int) *int { return &v }

func testInfo(pid string, started time.Time) process.Info {
	return process.Info{
		PID:       process.ID(pid),
		WorkDir:   "/work/" + pid,
		Wrapper:   "/work/" + pid + "/gradlew",
		Args:      []string{"build", "--info"},
		JavaHome:  "/opt/jdk-21",
		StartedAt: started,
	}
}

func TestStore_StartThenExit(t *testing.T) {
	s := openTestStore(t, 0)
	ctx := context.Background()
	start := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	info := testInfo("100", start)
	s.ProcessStarted(info)

	recs, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("Recent() len = %d, want 1", len(recs))
	}
	if !recs[0].Running() {
		t.Error("Running() = false before exit, want true")
	}

	s.ProcessExited(process.Run{
		Info:        info,
		ExitedAt:    start.Add(3 * time.Second),
		Code:        intPtr(2),
		Killed:      true,
		StdoutBytes: 120,
		StderrBytes: 7,
	})

	recs, err = s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("Recent() len = %d, want 1 (exit updates the row)", len(recs))
	}
	got := recs[0]
	if got.Running() {
		t.Error("Running() = true after exit, want false")
	}
	if got.PID != "100" || got.WorkDir != "/work/100" || got.JavaHome != "/opt/jdk-21" {
		t.Errorf("record = %+v", got)
	}
	if len(got.Args) != 2 || got.Args[0] != "build" || got.Args[1] != "--info" {
		t.Errorf("Args = %v, want [build --info]", got.Args)
	}
	if !got.StartedAt.Equal(start) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, start)
	}
	if got.ExitedAt == nil || !got.ExitedAt.Equal(start.Add(3*time.Second)) {
		t.Errorf("ExitedAt = %v, want %v", got.ExitedAt, start.Add(3*time.Second))
	}
	if got.Code == nil || *got.Code != 2 {
		t.Errorf("Code = %v, want 2", got.Code)
	}
	if got.Signal != nil {
		t.Errorf("Signal = %v, want nil", *got.Signal)
	}
	if !got.Killed {
		t.Error("Killed = false, want true")
	}
	if got.StdoutBytes != 120 || got.StderrBytes != 7 {
		t.Errorf("bytes = %d/%d, want 120/7", got.StdoutBytes, got.StderrBytes)
	}
	if got.ID == "" {
		t.Error("ID is empty")
	}
}

func TestStore_ExitWithoutStart(t *testing.T) {
	s := openTestStore(t, 0)
	start := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	s.ProcessExited(process.Run{
		Info:     testInfo("200", start),
		ExitedAt: start.Add(time.Second),
		Signal:   intPtr(15),
	})

	recs, err := s.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("Recent() len = %d, want 1", len(recs))
	}
	if recs[0].Signal == nil || *recs[0].Signal != 15 {
		t.Errorf("Signal = %v, want 15", recs[0].Signal)
	}
	if recs[0].Code != nil {
		t.Errorf("Code = %v, want nil", *recs[0].Code)
	}
}

func TestStore_RecentOrderAndLimit(t *testing.T) {
	s := openTestStore(t, 0)
	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	for i, pid := range []string{"1", "2", "3"} {
		s.ProcessStarted(testInfo(pid, base.Add(time.Duration(i)*time.Minute)))
	}

	recs, err := s.Recent(context.Background(), 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Recent() len = %d, want 2", len(recs))
	}
	if recs[0].PID != "3" || recs[1].PID != "2" {
		t.Errorf("Recent() pids = %s,%s, want 3,2", recs[0].PID, recs[1].PID)
	}
}

func TestStore_PidReuse(t *testing.T) {
	s := openTestStore(t, 0)
	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	first := testInfo("42", base)
	s.ProcessStarted(first)
	s.ProcessExited(process.Run{Info: first, ExitedAt: base.Add(time.Second), Code: intPtr(0)})

	second := testInfo("42", base.Add(time.Minute))
	s.ProcessStarted(second)

	recs, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Recent() len = %d, want 2", len(recs))
	}
	if !recs[0].Running() || recs[1].Running() {
		t.Errorf("running flags = %v,%v, want true,false", recs[0].Running(), recs[1].Running())
	}
}

func TestStore_Prune(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		retention time.Duration
		wantGone  int64
		wantLeft  int
	}{
		{"disabled retention keeps everything", 0, 0, 3},
		{"one day retention drops the old finished run", 24 * time.Hour, 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestStore(t, tt.retention)

			old := testInfo("1", now.Add(-72*time.Hour))
			s.ProcessStarted(old)
			s.ProcessExited(process.Run{Info: old, ExitedAt: now.Add(-71 * time.Hour), Code: intPtr(0)})

			recent := testInfo("2", now.Add(-time.Hour))
			s.ProcessStarted(recent)
			s.ProcessExited(process.Run{Info: recent, ExitedAt: now.Add(-59 * time.Minute), Code: intPtr(0)})

			// Still running: never pruned regardless of age.
			s.ProcessStarted(testInfo("3", now.Add(-96*time.Hour)))

			gone, err := s.Prune(context.Background(), now)
			if err != nil {
				t.Fatalf("Prune() error = %v", err)
			}
			if gone != tt.wantGone {
				t.Errorf("Prune() = %d, want %d", gone, tt.wantGone)
			}
			recs, err := s.Recent(context.Background(), 10)
			if err != nil {
				t.Fatalf("Recent() error = %v", err)
			}
			if len(recs) != tt.wantLeft {
				t.Errorf("remaining = %d, want %d", len(recs), tt.wantLeft)
			}
		})
	}
}

func TestStore_HealthCheck(t *testing.T) {
	s := openTestStore(t, 0)
	if err := s.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(context.Background(), Config{}); err == nil {
		t.Error("Open() error = nil, want error for empty path")
	}
}
