// Package session persists per-document UI state between runs: the
// viewport transform and the last committed node positions. It backs the
// viewport manager's Store interface with SQLite.
package session

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure Go SQLite driver

	"atlas/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS viewport (
	document_id TEXT PRIMARY KEY,
	x           REAL NOT NULL,
	y           REAL NOT NULL,
	scale       REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS node_positions (
	document_id TEXT NOT NULL,
	node_id     TEXT NOT NULL,
	x           REAL NOT NULL,
	y           REAL NOT NULL,
	PRIMARY KEY (document_id, node_id)
);
`

// Store is a SQLite-backed session store scoped to one document id. It
// satisfies the viewport manager's persistence interface.
type Store struct {
	db    *sql.DB
	docID string
}

// Open opens (creating if needed) the session database at path, scoped to
// the given document id.
func Open(path, documentID string) (*Store, error) {
	if documentID == "" {
		return nil, errors.New("session: empty document id")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("session: create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("session: open %s: %w", path, err)
	}
	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("session: set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: init schema: %w", err)
	}

	return &Store{db: db, docID: documentID}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadTransform returns the stored viewport transform for the document,
// and whether one exists.
func (s *Store) LoadTransform() (core.Transform, bool, error) {
	var t core.Transform
	err := s.db.QueryRow(
		"SELECT x, y, scale FROM viewport WHERE document_id = ?", s.docID,
	).Scan(&t.X, &t.Y, &t.Scale)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transform{}, false, nil
	}
	if err != nil {
		return core.Transform{}, false, fmt.Errorf("session: load transform: %w", err)
	}
	return t, true, nil
}

// SaveTransform upserts the viewport transform for the document.
func (s *Store) SaveTransform(t core.Transform) error {
	_, err := s.db.Exec(`
		INSERT INTO viewport (document_id, x, y, scale) VALUES (?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET x = excluded.x, y = excluded.y, scale = excluded.scale
	`, s.docID, t.X, t.Y, t.Scale)
	if err != nil {
		return fmt.Errorf("session: save transform: %w", err)
	}
	return nil
}

// SaveNodePosition upserts the committed canvas position of one node.
func (s *Store) SaveNodePosition(nodeID string, pos core.Point) error {
	_, err := s.db.Exec(`
		INSERT INTO node_positions (document_id, node_id, x, y) VALUES (?, ?, ?, ?)
		ON CONFLICT(document_id, node_id) DO UPDATE SET x = excluded.x, y = excluded.y
	`, s.docID, nodeID, pos.X, pos.Y)
	if err != nil {
		return fmt.Errorf("session: save node position: %w", err)
	}
	return nil
}

// NodePositions returns every stored node position for the document.
func (s *Store) NodePositions() (map[string]core.Point, error) {
	rows, err := s.db.Query(
		"SELECT node_id, x, y FROM node_positions WHERE document_id = ?", s.docID,
	)
	if err != nil {
		return nil, fmt.Errorf("session: load node positions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]core.Point)
	for rows.Next() {
		var id string
		var p core.Point
		if err := rows.Scan(&id, &p.X, &p.Y); err != nil {
			return nil, fmt.Errorf("session: scan node position: %w", err)
		}
		out[id] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: iterate node positions: %w", err)
	}
	return out, nil
}

// ForgetNode drops the stored position of a deleted node.
func (s *Store) ForgetNode(nodeID string) error {
	_, err := s.db.Exec(
		"DELETE FROM node_positions WHERE document_id = ? AND node_id = ?", s.docID, nodeID,
	)
	if err != nil {
		return fmt.Errorf("session: forget node: %w", err)
	}
	return nil
}
