package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection with thread-safe access.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// New creates and initializes a new SQLite database connection.
func New(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// NewFromConn wraps an existing connection without migrating it.
func NewFromConn(conn *sql.DB) *DB {
	return &DB{conn: conn}
}

// migrate creates the necessary tables if they don't exist.
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS face_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id TEXT NOT NULL DEFAULT '',
		timestamp REAL NOT NULL,
		camera_id INTEGER NOT NULL,
		camera_name TEXT NOT NULL,
		face_name TEXT NOT NULL,
		age INTEGER,
		gender TEXT,
		confidence REAL NOT NULL,
		screenshot_path TEXT
	);

	CREATE TABLE IF NOT EXISTS known_faces (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		embedding BLOB NOT NULL,
		image_path TEXT NOT NULL,
		created_at REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_face_logs_timestamp ON face_logs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_face_logs_camera ON face_logs(camera_id);
	CREATE INDEX IF NOT EXISTS idx_face_logs_face ON face_logs(face_name);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection for use by repositories.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Lock acquires a write lock.
func (db *DB) Lock() {
	db.mu.Lock()
}

// Unlock releases the write lock.
func (db *DB) Unlock() {
	db.mu.Unlock()
}

// RLock acquires a read lock.
func (db *DB) RLock() {
	db.mu.RLock()
}

// RUnlock releases the read lock.
func (db *DB) RUnlock() {
	db.mu.RUnlock()
}
