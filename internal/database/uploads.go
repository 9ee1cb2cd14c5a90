package database

// InsertUpload records a successful ingestion.
func (db *DB) InsertUpload(filename, format string, postCount, fallbackTypes int) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO uploads (filename, format, post_count, fallback_types) VALUES (?, ?, ?, ?)`,
		filename, format, postCount, fallbackTypes,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ListUploads returns recorded uploads newest first. A limit <= 0 returns
// all of them.
func (db *DB) ListUploads(limit int) ([]Upload, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.Query(
		`SELECT id, filename, format, post_count, fallback_types, uploaded_at
		FROM uploads ORDER BY uploaded_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uploads []Upload
	for rows.Next() {
		var u Upload
		if err := rows.Scan(&u.ID, &u.Filename, &u.Format, &u.PostCount, &u.FallbackTypes, &u.UploadedAt); err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}
