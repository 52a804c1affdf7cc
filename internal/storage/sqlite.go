package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Storage indexes downloaded images so later runs can reuse them
type Storage struct {
	db *sql.DB
}

// NewStorage creates a new Storage instance, opening/creating the DB and initializing schema
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storage := &Storage{db: db}

	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// initSchema creates tables if they don't exist
func (s *Storage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS images (
		item_id INTEGER PRIMARY KEY,
		source_url TEXT NOT NULL,
		local_path TEXT NOT NULL,
		bytes INTEGER DEFAULT 0,
		fetched_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// UpsertImage records a downloaded image, replacing any earlier record for the item
func (s *Storage) UpsertImage(rec ImageRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO images (item_id, source_url, local_path, bytes, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			source_url = EXCLUDED.source_url,
			local_path = EXCLUDED.local_path,
			bytes = EXCLUDED.bytes,
			fetched_at = EXCLUDED.fetched_at
	`, int(rec.ItemID), rec.SourceURL, rec.LocalPath, rec.Bytes, rec.FetchedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert image: %w", err)
	}
	return nil
}

// GetImage retrieves the image record of an item, returns nil if not found
func (s *Storage) GetImage(id ItemID) (*ImageRecord, error) {
	var rec ImageRecord
	var itemID int
	err := s.db.QueryRow(`
		SELECT item_id, source_url, local_path, bytes, fetched_at
		FROM images
		WHERE item_id = ?
	`, int(id)).Scan(&itemID, &rec.SourceURL, &rec.LocalPath, &rec.Bytes, &rec.FetchedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}

	rec.ItemID = ItemID(itemID)
	return &rec, nil
}

// CountImages returns the number of indexed images
func (s *Storage) CountImages() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM images").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return n, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}
