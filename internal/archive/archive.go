// Package archive keeps succeeded detections in a local SQLite database so a
// result can be reopened after the form has moved on.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kartoza/exoplanet-portal/internal/flow"
	"github.com/kartoza/exoplanet-portal/internal/logging"
	"github.com/kartoza/exoplanet-portal/internal/schema"
)

// FileName is the database file created inside the data directory
const FileName = "detections.db"

// DefaultListLimit caps List when the caller passes a non-positive limit
const DefaultListLimit = 50

// timeLayout is fixed width so created_at sorts as text in time order
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned by Get for an unknown id
var ErrNotFound = errors.New("detection not found")

const createTable = `CREATE TABLE IF NOT EXISTS detections (
	id           TEXT PRIMARY KEY,
	variant      TEXT NOT NULL,
	label        TEXT NOT NULL,
	confidence   REAL NOT NULL,
	is_exoplanet INTEGER NOT NULL,
	eyes_link    TEXT NOT NULL DEFAULT '',
	payload      TEXT NOT NULL,
	created_at   TEXT NOT NULL
)`

const createIndex = `CREATE INDEX IF NOT EXISTS detections_created_at ON detections (created_at DESC)`

// Summary is one row of the archive listing
type Summary struct {
	ID          string         `json:"id"`
	Variant     schema.Variant `json:"variant"`
	Label       string         `json:"label"`
	Confidence  float64        `json:"confidence"`
	IsExoplanet bool           `json:"isExoplanet"`
	EyesLink    string         `json:"eyesLink,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// Detection is a stored result with the full view it was recorded from
type Detection struct {
	Summary
	View flow.View `json:"view"`
}

// Store is a SQLite-backed archive. It implements flow.Recorder.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// Open creates the database at path if needed and ensures the schema exists
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	// A single writer avoids SQLITE_BUSY between concurrent sessions.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{createTable, createIndex} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialise archive: %w", err)
		}
	}

	s := &Store{
		db:     db,
		path:   path,
		logger: logging.New("archive"),
		now:    time.Now,
	}
	s.logger.Info("archive opened", "path", path)
	return s, nil
}

// Path returns the database file location
func (s *Store) Path() string {
	return s.path
}

// Record stores a succeeded view and returns its new id
func (s *Store) Record(ctx context.Context, v flow.View) (string, error) {
	if v.State != flow.StateSucceeded || v.Detection == nil {
		return "", fmt.Errorf("only succeeded detections can be archived (state %s)", v.State)
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode detection: %w", err)
	}

	id := uuid.New().String()
	created := s.now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO detections (id, variant, label, confidence, is_exoplanet, eyes_link, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, string(v.Variant), v.Detection.Label, v.Detection.Confidence,
		v.Detection.IsExoplanet, v.EyesLink, string(payload),
		created.Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert detection: %w", err)
	}

	s.logger.Debug("detection archived", "id", id, "variant", v.Variant, "label", v.Detection.Label)
	return id, nil
}

// Get returns the detection with the given id, or ErrNotFound
func (s *Store) Get(ctx context.Context, id string) (*Detection, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, variant, label, confidence, is_exoplanet, eyes_link, created_at, payload
		 FROM detections WHERE id = ?`, id)

	var (
		d       Detection
		payload string
	)
	if err := scanSummary(row, &d.Summary, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read detection %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(payload), &d.View); err != nil {
		return nil, fmt.Errorf("failed to decode detection %s: %w", id, err)
	}
	d.View.DetectionID = d.ID
	return &d, nil
}

// List returns up to limit detections, newest first
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, variant, label, confidence, is_exoplanet, eyes_link, created_at
		 FROM detections ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list detections: %w", err)
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var sum Summary
		if err := scanSummary(rows, &sum); err != nil {
			return nil, fmt.Errorf("failed to read detection row: %w", err)
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner, sum *Summary, extra ...any) error {
	var (
		variant string
		created string
	)
	dest := append([]any{&sum.ID, &variant, &sum.Label, &sum.Confidence, &sum.IsExoplanet, &sum.EyesLink, &created}, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	sum.Variant = schema.Variant(variant)
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return fmt.Errorf("bad created_at %q: %w", created, err)
	}
	sum.CreatedAt = t
	return nil
}
