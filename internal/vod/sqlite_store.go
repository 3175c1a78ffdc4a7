package vod

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const lessonsSchema = `
CREATE TABLE IF NOT EXISTS lessons (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	video_url  TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMP NOT NULL
);`

// SQLiteStore is a Store backed by a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if necessary) the database at path and
// ensures the lessons table exists.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Single writer; the sqlite driver serializes anyway, this keeps pool
	// churn down for a mostly-idle table.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(lessonsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure lessons schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// GetLesson implements Store.GetLesson.
func (s *SQLiteStore) GetLesson(ctx context.Context, id string) (*Lesson, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, video_url, updated_at FROM lessons WHERE id = ?`, id)

	var l Lesson
	if err := row.Scan(&l.ID, &l.Title, &l.VideoURL, &l.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query lesson %s: %w", id, err)
	}
	return &l, nil
}

// UpdateLessonVideoURL implements Store.UpdateLessonVideoURL.
func (s *SQLiteStore) UpdateLessonVideoURL(ctx context.Context, id, manifestPath string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lessons (id, video_url, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			video_url = excluded.video_url,
			updated_at = excluded.updated_at`,
		id, manifestPath, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update lesson %s video url: %w", id, err)
	}
	return nil
}
