// Package store persists backtest runs to SQLite so runs on the same series can be revisited.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	backtest "github.com/aouyang1/go-backtest"
	"github.com/aouyang1/go-backtest/backend"
	"github.com/aouyang1/go-backtest/score"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DefaultMaxRuns is the number of runs kept when no cap is configured
const DefaultMaxRuns = 1000

var (
	ErrNotFound  = errors.New("run not found")
	ErrNoResults = errors.New("no results to save")
	ErrEmptyName = errors.New("series name is required")
)

// Run is a persisted backtest
type Run struct {
	ID        string        `json:"id"`
	Series    string        `json:"series"`
	CreatedAt time.Time     `json:"created_at"`
	TrainLen  int           `json:"train_len"`
	TestLen   int           `json:"test_len"`
	TrainEnd  time.Time     `json:"train_end"`
	Models    []ModelResult `json:"models"`
}

// ModelResult is the outcome of a single back-end within a run. Error is empty when the back-end
// produced a scored forecast.
type ModelResult struct {
	Name        string            `json:"name"`
	Scores      score.Scores      `json:"scores"`
	FitDuration time.Duration     `json:"fit_duration"`
	Error       string            `json:"error,omitempty"`
	Forecast    *backend.Forecast `json:"forecast,omitempty"`
}

// NewRun flattens the results of a backtest of the named series
func NewRun(series string, res *backtest.Results) (*Run, error) {
	if series == "" {
		return nil, ErrEmptyName
	}
	if res == nil || res.Split == nil || res.Table == nil {
		return nil, ErrNoResults
	}

	durations := make(map[string]time.Duration, len(res.Runs))
	for _, r := range res.Runs {
		durations[r.Name] = r.FitDuration
	}

	run := &Run{
		Series:   series,
		TrainLen: res.Split.Train.Len(),
		TestLen:  res.Split.Test.Len(),
		TrainEnd: res.Split.Train.EndTime(),
		Models:   make([]ModelResult, 0, len(res.Table.Entries)),
	}
	for _, e := range res.Table.Entries {
		m := ModelResult{
			Name:        e.Name,
			Scores:      e.Scores,
			FitDuration: durations[e.Name],
			Forecast:    e.Forecast,
		}
		if e.Err != nil {
			m.Error = e.Err.Error()
		}
		run.Models = append(run.Models, m)
	}
	return run, nil
}

// Store wraps a SQLite database of runs
type Store struct {
	db      *sql.DB
	maxRuns int
}

// New opens or creates the SQLite database at dbPath. An empty dbPath defaults to
// $TMPDIR/go-backtest/runs.db and a non-positive maxRuns to DefaultMaxRuns.
func New(maxRuns int, dbPath string) (*Store, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "go-backtest", "runs.db")
	}
	if maxRuns <= 0 {
		maxRuns = DefaultMaxRuns
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("unable to create data directory, %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("unable to open database, %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to set WAL mode, %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to enable foreign keys, %w", err)
	}
	s := &Store{db: db, maxRuns: maxRuns}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to create tables, %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			series      TEXT NOT NULL,
			train_len   INTEGER NOT NULL,
			test_len    INTEGER NOT NULL,
			train_end   INTEGER NOT NULL,
			created_at  INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS run_models (
			run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position     INTEGER NOT NULL,
			name         TEXT NOT NULL,
			mae          REAL NOT NULL,
			mse          REAL NOT NULL,
			rmse         REAL NOT NULL,
			mape         REAL NOT NULL,
			accuracy     REAL NOT NULL,
			fit_duration INTEGER NOT NULL,
			error        TEXT NOT NULL DEFAULT '',
			forecast     TEXT,
			PRIMARY KEY (run_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_series ON runs(series)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun inserts the run, assigning an id and creation time when unset, and drops the oldest
// runs past the configured cap
func (s *Store) SaveRun(run *Run) error {
	if run == nil {
		return ErrNoResults
	}
	if run.Series == "" {
		return ErrEmptyName
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("unable to begin transaction, %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`
		INSERT INTO runs (id, series, train_len, test_len, train_end, created_at)
		VALUES (?,?,?,?,?,?)`,
		run.ID, run.Series, run.TrainLen, run.TestLen,
		run.TrainEnd.UnixNano(), run.CreatedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("unable to insert run, %w", err)
	}

	for i, m := range run.Models {
		var forecastJSON sql.NullString
		if m.Forecast != nil {
			b, err := json.Marshal(m.Forecast)
			if err != nil {
				return fmt.Errorf("unable to marshal forecast of %s, %w", m.Name, err)
			}
			forecastJSON = sql.NullString{String: string(b), Valid: true}
		}
		if _, err := tx.Exec(`
			INSERT INTO run_models
				(run_id, position, name, mae, mse, rmse, mape, accuracy, fit_duration, error, forecast)
			VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
			run.ID, i, m.Name,
			m.Scores.MAE, m.Scores.MSE, m.Scores.RMSE, m.Scores.MAPE, m.Scores.Accuracy,
			int64(m.FitDuration), m.Error, forecastJSON,
		); err != nil {
			return fmt.Errorf("unable to insert model %s, %w", m.Name, err)
		}
	}

	if _, err := tx.Exec(`
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY created_at DESC LIMIT ?
		)`, s.maxRuns); err != nil {
		return fmt.Errorf("unable to enforce run cap, %w", err)
	}

	return tx.Commit()
}

const runCols = `id, series, train_len, test_len, train_end, created_at`

func scanRun(scan func(dest ...any) error) (*Run, error) {
	var run Run
	var trainEnd, createdAt int64
	if err := scan(&run.ID, &run.Series, &run.TrainLen, &run.TestLen, &trainEnd, &createdAt); err != nil {
		return nil, err
	}
	run.TrainEnd = time.Unix(0, trainEnd).UTC()
	run.CreatedAt = time.Unix(0, createdAt).UTC()
	return &run, nil
}

func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runCols+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s, %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to get run, %w", err)
	}
	if err := s.loadModels(run); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs first, optionally restricted to a series. A
// non-positive limit returns every run.
func (s *Store) ListRuns(series string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT `+runCols+` FROM runs
		WHERE ? = '' OR series = ?
		ORDER BY created_at DESC LIMIT ?`, series, series, limit)
	if err != nil {
		return nil, fmt.Errorf("unable to query runs, %w", err)
	}
	runs := []*Run{}
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("unable to scan run, %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("unable to iterate runs, %w", err)
	}
	rows.Close()

	// models are loaded after the cursor is closed since the pool holds a single connection
	for _, run := range runs {
		if err := s.loadModels(run); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *Store) loadModels(run *Run) error {
	rows, err := s.db.Query(`
		SELECT name, mae, mse, rmse, mape, accuracy, fit_duration, error, forecast
		FROM run_models WHERE run_id = ? ORDER BY position`, run.ID)
	if err != nil {
		return fmt.Errorf("unable to query models of run %s, %w", run.ID, err)
	}
	defer rows.Close()

	run.Models = []ModelResult{}
	for rows.Next() {
		var m ModelResult
		var fitDuration int64
		var forecastJSON sql.NullString
		if err := rows.Scan(
			&m.Name, &m.Scores.MAE, &m.Scores.MSE, &m.Scores.RMSE, &m.Scores.MAPE, &m.Scores.Accuracy,
			&fitDuration, &m.Error, &forecastJSON,
		); err != nil {
			return fmt.Errorf("unable to scan model, %w", err)
		}
		m.FitDuration = time.Duration(fitDuration)
		if forecastJSON.Valid {
			var fc backend.Forecast
			if err := json.Unmarshal([]byte(forecastJSON.String), &fc); err != nil {
				return fmt.Errorf("unable to unmarshal forecast of %s, %w", m.Name, err)
			}
			m.Forecast = &fc
		}
		run.Models = append(run.Models, m)
	}
	return rows.Err()
}

// DeleteRun removes a run and its models
func (s *Store) DeleteRun(id string) error {
	res, err := s.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("unable to delete run, %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%s, %w", id, ErrNotFound)
	}
	return nil
}
