package scenario

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/viewshed/internal/timeutil"
)

var (
	// ErrNotFound is returned when no scenario has the requested ID.
	ErrNotFound = errors.New("scenario not found")
	// ErrInvalidScenario is returned for an empty name or request payload.
	ErrInvalidScenario = errors.New("invalid scenario")
)

// Scenario is a named, stored viewshed request.
type Scenario struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	CreatedAt time.Time       `json:"createdAt"`
	Request   json.RawMessage `json:"request"`
}

// Store provides persistence for scenarios.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// Open opens (creating if needed) the sqlite database at path and brings
// its schema up to date. A nil clock uses the wall clock.
func Open(path string, clock timeutil.Clock) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open scenario db: %w", err)
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	s := NewStore(db, clock)
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an already-migrated database handle.
func NewStore(db *sql.DB, clock timeutil.Clock) *Store {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Store{db: db, clock: clock}
}

// DB exposes the underlying handle for admin tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func newID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// Save stores a new scenario and returns it with its assigned ID and
// creation time.
func (s *Store) Save(ctx context.Context, name string, request json.RawMessage) (*Scenario, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidScenario)
	}
	if len(request) == 0 || !json.Valid(request) {
		return nil, fmt.Errorf("%w: request must be valid JSON", ErrInvalidScenario)
	}

	sc := &Scenario{
		ID:        newID(),
		Name:      name,
		CreatedAt: s.clock.Now().UTC(),
		Request:   append(json.RawMessage(nil), request...),
	}

	err := retryOnBusy(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO scenarios (scenario_id, name, created_at, request_json)
			VALUES (?, ?, ?, ?)`,
			sc.ID, sc.Name, sc.CreatedAt.UnixNano(), string(sc.Request),
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert scenario: %w", err)
	}
	return sc, nil
}

// List returns all scenarios, newest first.
func (s *Store) List(ctx context.Context) ([]*Scenario, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scenario_id, name, created_at, request_json
		FROM scenarios
		ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query scenarios: %w", err)
	}
	defer rows.Close()

	scenarios := []*Scenario{}
	for rows.Next() {
		sc, err := scanScenario(rows)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, rows.Err()
}

// Get returns a single scenario by ID.
func (s *Store) Get(ctx context.Context, id string) (*Scenario, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT scenario_id, name, created_at, request_json
		FROM scenarios
		WHERE scenario_id = ?`, id)
	sc, err := scanScenario(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	return sc, nil
}

// Delete removes a scenario and reports whether it existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	var affected int64
	err := retryOnBusy(func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM scenarios WHERE scenario_id = ?`, id)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("delete scenario: %w", err)
	}
	return affected > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanScenario(row scanner) (*Scenario, error) {
	var (
		sc        Scenario
		createdNs int64
		request   string
	)
	if err := row.Scan(&sc.ID, &sc.Name, &createdNs, &request); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan scenario: %w", err)
	}
	sc.CreatedAt = time.Unix(0, createdNs).UTC()
	sc.Request = json.RawMessage(request)
	return &sc, nil
}
