// Package history records every build run in SQLite.
//
// Store implements process.Observer: a row is inserted when a build starts
// and completed when its exit event has been relayed. Old completed runs are
// pruned according to the configured retention.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/nativehost/internal/infrastructure/database"
	"github.com/nerrad567/nativehost/internal/process"
	"github.com/nerrad567/nativehost/migrations"
)

// writeTimeout bounds each observer write; hooks have no caller context.
const writeTimeout = 5 * time.Second

// DefaultLimit is used by Recent when limit is not positive.
const DefaultLimit = 50

// timeLayout keeps lexical and chronological order identical.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrDisabled is returned by callers that need a store when history is
// turned off in configuration.
var ErrDisabled = errors.New("history: run history is disabled")

// Record is one stored run.
type Record struct {
	ID          string     `json:"id"`
	PID         string     `json:"pid"`
	WorkDir     string     `json:"work_dir"`
	Wrapper     string     `json:"wrapper"`
	Args        []string   `json:"args"`
	JavaHome    string     `json:"java_home,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	ExitedAt    *time.Time `json:"exited_at,omitempty"`
	Code        *int       `json:"code,omitempty"`
	Signal      *int       `json:"signal,omitempty"`
	Killed      bool       `json:"killed"`
	StdoutBytes int64      `json:"stdout_bytes"`
	StderrBytes int64      `json:"stderr_bytes"`
}

// Running reports whether the run has no recorded exit.
func (r Record) Running() bool {
	return r.ExitedAt == nil
}

// Config contains history store settings.
type Config struct {
	Path        string
	WALMode     bool
	BusyTimeout int
	Retention   time.Duration
}

// Logger defines the logging interface for the store.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Store persists runs.
type Store struct {
	db        *database.DB
	retention time.Duration
	logger    Logger

	mu   sync.Mutex
	open map[process.ID]string // pid → row id of the run in progress
}

// Open opens (or creates) the history database and applies migrations.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, err
	}
	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("migrating history database: %w", err)
	}
	return New(db, cfg.Retention), nil
}

// New wraps an already-migrated database.
func New(db *database.DB, retention time.Duration) *Store {
	return &Store{
		db:        db,
		retention: retention,
		logger:    noopLogger{},
		open:      make(map[process.ID]string),
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// HealthCheck verifies the database answers.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.HealthCheck(ctx)
}

// ProcessStarted implements process.Observer.
func (s *Store) ProcessStarted(info process.Info) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	id := uuid.New().String()
	if err := s.insert(ctx, id, info); err != nil {
		s.logger.Warn("failed to record run start", "pid", info.PID, "error", err)
		return
	}
	s.mu.Lock()
	s.open[info.PID] = id
	s.mu.Unlock()
}

// ProcessExited implements process.Observer.
func (s *Store) ProcessExited(run process.Run) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	s.mu.Lock()
	id, ok := s.open[run.PID]
	delete(s.open, run.PID)
	s.mu.Unlock()

	if !ok {
		// The start was never recorded; store the whole run now.
		id = uuid.New().String()
		if err := s.insert(ctx, id, run.Info); err != nil {
			s.logger.Warn("failed to record run", "pid", run.PID, "error", err)
			return
		}
	}
	if err := s.complete(ctx, id, run); err != nil {
		s.logger.Warn("failed to record run exit", "pid", run.PID, "error", err)
	}
}

func (s *Store) insert(ctx context.Context, id string, info process.Info) error {
	args, err := json.Marshal(nonNil(info.Args))
	if err != nil {
		return fmt.Errorf("encoding args: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO process_runs (id, pid, work_dir, wrapper, args, java_home, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, string(info.PID), info.WorkDir, info.Wrapper, string(args), info.JavaHome,
		info.StartedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

func (s *Store) complete(ctx context.Context, id string, run process.Run) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE process_runs
		SET exited_at = ?, exit_code = ?, exit_signal = ?, killed = ?, stdout_bytes = ?, stderr_bytes = ?
		WHERE id = ?`,
		run.ExitedAt.UTC().Format(timeLayout),
		nullableInt(run.Code), nullableInt(run.Signal), run.Killed,
		run.StdoutBytes, run.StderrBytes, id,
	)
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pid, work_dir, wrapper, args, java_home, started_at, exited_at,
		       exit_code, exit_signal, killed, stdout_bytes, stderr_bytes
		FROM process_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return records, nil
}

// Prune deletes completed runs that exited before now minus the retention.
// It is a no-op when retention is not positive.
func (s *Store) Prune(ctx context.Context, now time.Time) (int64, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	cutoff := now.Add(-s.retention).UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM process_runs WHERE exited_at IS NOT NULL AND exited_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning runs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var (
		rec       Record
		args      string
		startedAt string
		exitedAt  sql.NullString
		code, sig sql.NullInt64
		killed    bool
	)
	err := sc.Scan(&rec.ID, &rec.PID, &rec.WorkDir, &rec.Wrapper, &args, &rec.JavaHome,
		&startedAt, &exitedAt, &code, &sig, &killed, &rec.StdoutBytes, &rec.StderrBytes)
	if err != nil {
		return Record{}, fmt.Errorf("scanning run: %w", err)
	}
	rec.Killed = killed

	if err := json.Unmarshal([]byte(args), &rec.Args); err != nil {
		return Record{}, fmt.Errorf("decoding args of run %s: %w", rec.ID, err)
	}
	if rec.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return Record{}, fmt.Errorf("parsing started_at of run %s: %w", rec.ID, err)
	}
	if exitedAt.Valid {
		t, err := time.Parse(timeLayout, exitedAt.String)
		if err != nil {
			return Record{}, fmt.Errorf("parsing exited_at of run %s: %w", rec.ID, err)
		}
		rec.ExitedAt = &t
	}
	rec.Code = intFromNull(code)
	rec.Signal = intFromNull(sig)
	return rec, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func intFromNull(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
