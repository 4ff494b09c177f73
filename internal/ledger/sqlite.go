package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// SQLiteStore persists entries in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the ledger database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("ledger path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func (s *SQLiteStore) Create(ctx context.Context, e Entry) (Entry, error) {
	e = prepare(e)
	params, err := json.Marshal(e.Parameters)
	if err != nil {
		return Entry{}, fmt.Errorf("encode parameters: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO calibration_cases (
	id, scenario_id, label, iteration, project_path, parameters,
	state, error, residual_norm, created_at, started_at, ended_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		e.ID, e.ScenarioID, e.Label, e.Iteration, e.ProjectPath, string(params),
		e.State, e.Error, e.ResidualNorm, millis(e.CreatedAt), millis(e.StartedAt), millis(e.EndedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return Entry{}, fmt.Errorf("%w: %s", ErrEntryExists, e.ID)
		}
		return Entry{}, fmt.Errorf("create ledger entry: %w", err)
	}
	return e, nil
}

func (s *SQLiteStore) SetState(ctx context.Context, id, state, errMsg string) (Entry, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	transition(&e, state, errMsg)
	_, err = s.db.ExecContext(ctx, `
UPDATE calibration_cases SET state = ?, error = ?, started_at = ?, ended_at = ? WHERE id = ?
`, e.State, e.Error, millis(e.StartedAt), millis(e.EndedAt), id)
	if err != nil {
		return Entry{}, fmt.Errorf("update ledger entry %s: %w", id, err)
	}
	return e, nil
}

func (s *SQLiteStore) SetResidual(ctx context.Context, id string, norm float64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE calibration_cases SET residual_norm = ? WHERE id = ?`, norm, id)
	if err != nil {
		return fmt.Errorf("update ledger entry %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	return nil
}

const selectEntry = `
SELECT id, scenario_id, label, iteration, project_path, parameters,
	state, error, residual_norm, created_at, started_at, ended_at
FROM calibration_cases`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e                         Entry
		params                    string
		created, started, stopped int64
	)
	if err := row.Scan(&e.ID, &e.ScenarioID, &e.Label, &e.Iteration, &e.ProjectPath, &params,
		&e.State, &e.Error, &e.ResidualNorm, &created, &started, &stopped); err != nil {
		return Entry{}, err
	}
	if err := json.Unmarshal([]byte(params), &e.Parameters); err != nil {
		return Entry{}, fmt.Errorf("decode parameters of %s: %w", e.ID, err)
	}
	e.CreatedAt, e.StartedAt, e.EndedAt = fromMillis(created), fromMillis(started), fromMillis(stopped)
	return e, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Entry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, selectEntry+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get ledger entry %s: %w", id, err)
	}
	return e, nil
}

func (s *SQLiteStore) List(ctx context.Context, scenarioID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, selectEntry+` WHERE scenario_id = ? ORDER BY iteration, created_at, rowid`, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("list ledger entries: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return out, nil
}
