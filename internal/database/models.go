package database

// Report is an archived text report.
type Report struct {
	ID          int64
	GeneratedAt string
	PostCount   int
	Body        string
}

// Upload records one successful ingestion.
type Upload struct {
	ID            int64
	Filename      string
	Format        string
	PostCount     int
	FallbackTypes int
	UploadedAt    string
}

// Stats contains aggregate archive statistics.
type Stats struct {
	Reports       int
	Uploads       int
	PostsIngested int
	LastUpload    string
}
