package database

import (
	"database/sql"
	"errors"
	"time"
)

// TimeLayout is the timestamp format stored in TEXT columns, matching
// SQLite's datetime('now').
const TimeLayout = "2006-01-02 15:04:05"

// InsertReport archives a report body generated at the given time.
func (db *DB) InsertReport(generatedAt time.Time, postCount int, body string) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO reports (generated_at, post_count, body) VALUES (?, ?, ?)`,
		generatedAt.UTC().Format(TimeLayout), postCount, body,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetReport returns the archived report with the given id, or nil.
func (db *DB) GetReport(id int64) (*Report, error) {
	row := db.conn.QueryRow(
		"SELECT id, generated_at, post_count, body FROM reports WHERE id = ?", id,
	)

	var r Report
	if err := row.Scan(&r.ID, &r.GeneratedAt, &r.PostCount, &r.Body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// ListReports returns archived reports newest first, without bodies.
// A limit <= 0 returns all of them.
func (db *DB) ListReports(limit int) ([]Report, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.Query(
		"SELECT id, generated_at, post_count FROM reports ORDER BY generated_at DESC, id DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		var r Report
		if err := rows.Scan(&r.ID, &r.GeneratedAt, &r.PostCount); err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// GetStats returns aggregate archive statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest any
	}{
		{"SELECT COUNT(*) FROM reports", &s.Reports},
		{"SELECT COUNT(*) FROM uploads", &s.Uploads},
		{"SELECT COALESCE(SUM(post_count), 0) FROM uploads", &s.PostsIngested},
		{"SELECT COALESCE(MAX(uploaded_at), '') FROM uploads", &s.LastUpload},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	return s, nil
}
