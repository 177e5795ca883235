package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/linechat-server/internal/store"
)

// Store is a sqlite-backed report store.
type Store struct {
	db *sql.DB
}

var _ store.ReportStore = (*Store)(nil)

// New opens (creating if needed) the database at path and ensures the schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.setup(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) setup() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS reports (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		reporter   TEXT NOT NULL,
		reported   TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// SaveReport records that reporter filed a report against reported.
func (s *Store) SaveReport(ctx context.Context, reporter, reported string) error {
	const query = `INSERT INTO reports (reporter, reported) VALUES (?, ?)`
	if _, err := s.db.ExecContext(ctx, query, reporter, reported); err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// ListReports returns all reports, oldest first.
func (s *Store) ListReports(ctx context.Context) ([]*store.Report, error) {
	const query = `SELECT id, reporter, reported, created_at FROM reports ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var reports []*store.Report
	for rows.Next() {
		r := &store.Report{}
		if err := rows.Scan(&r.ID, &r.Reporter, &r.Reported, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return reports, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
