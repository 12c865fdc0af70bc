// Package history keeps an append-only sqlite log of loop state
// transitions and temperature samples, for the status API and
// post-incident digging.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/poolhouse/poolhouse-controller/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS transitions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	loop TEXT NOT NULL,
	from_state TEXT NOT NULL,
	to_state TEXT NOT NULL,
	temp REAL,
	temp_valid INTEGER NOT NULL,
	at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS samples (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	loop TEXT NOT NULL,
	temp REAL NOT NULL,
	at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transitions_at ON transitions(at);
CREATE INDEX IF NOT EXISTS idx_samples_at ON samples(at);
`

// Open opens (or creates) the history database and applies the schema.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply history schema: %w", err)
	}
	return db, nil
}

type Transition struct {
	Loop      model.LoopID    `json:"loop"`
	FromState model.LoopState `json:"from"`
	ToState   model.LoopState `json:"to"`
	Temp      float64         `json:"temp"`
	TempValid bool            `json:"temp_valid"`
	At        time.Time       `json:"at"`
}

func RecordTransition(db *sql.DB, t Transition) error {
	_, err := db.Exec(
		`INSERT INTO transitions (loop, from_state, to_state, temp, temp_valid, at) VALUES (?, ?, ?, ?, ?, ?)`,
		string(t.Loop), string(t.FromState), string(t.ToState), t.Temp, t.TempValid, t.At.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to record transition: %w", err)
	}
	return nil
}

func RecordSample(db *sql.DB, loop model.LoopID, temp float64, at time.Time) error {
	_, err := db.Exec(
		`INSERT INTO samples (loop, temp, at) VALUES (?, ?, ?)`,
		string(loop), temp, at.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to record sample: %w", err)
	}
	return nil
}

// RecentTransitions returns the newest transitions first.
func RecentTransitions(db *sql.DB, limit int) ([]Transition, error) {
	rows, err := db.Query(
		`SELECT loop, from_state, to_state, temp, temp_valid, at FROM transitions ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var t Transition
		var loop, from, to, at string
		if err := rows.Scan(&loop, &from, &to, &t.Temp, &t.TempValid, &at); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		t.Loop = model.LoopID(loop)
		t.FromState = model.LoopState(from)
		t.ToState = model.LoopState(to)
		t.At, _ = time.Parse(time.RFC3339, at)
		out = append(out, t)
	}
	return out, rows.Err()
}
