package credentials

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const timeFormat = time.RFC3339Nano

const schema = `
CREATE TABLE IF NOT EXISTS provider_credentials (
	id TEXT PRIMARY KEY,
	provider_type TEXT NOT NULL,
	name TEXT NOT NULL,
	oauth_token TEXT NOT NULL DEFAULT '',
	oauth_refresh_token TEXT NOT NULL DEFAULT '',
	oauth_expires_at TEXT NOT NULL DEFAULT '',
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_provider_credentials_type
	ON provider_credentials (provider_type);
`

// Open opens the credentials database and bootstraps its schema. An empty
// path opens an in-memory database.
func Open(path string) (*sql.DB, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening credentials database: %w", err)
	}
	// Serialized writes keep per-record updates atomic without explicit
	// transactions around single statements.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring credentials database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating credentials schema: %w", err)
	}
	return db, nil
}

// SQLiteStore implements the Store interface over a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed credential store.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Get returns the record for a provider id, or nil when absent.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, provider_type, name, oauth_token, oauth_refresh_token,
			oauth_expires_at, metadata, created_at, updated_at
		FROM provider_credentials WHERE id = ?`, id)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting credential: %w", err)
	}
	return record, nil
}

// List returns all credential records.
func (s *SQLiteStore) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, provider_type, name, oauth_token, oauth_refresh_token,
			oauth_expires_at, metadata, created_at, updated_at
		FROM provider_credentials ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("listing credentials: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning credential: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing credentials: %w", err)
	}
	return records, nil
}

// FindByAccount returns the record matching a provider type and vendor
// account id, or nil.
func (s *SQLiteStore) FindByAccount(ctx context.Context, providerType, accountID string) (*Record, error) {
	if accountID == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, provider_type, name, oauth_token, oauth_refresh_token,
			oauth_expires_at, metadata, created_at, updated_at
		FROM provider_credentials
		WHERE provider_type = ? AND json_extract(metadata, '$.account_id') = ?
		LIMIT 1`, providerType, accountID)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding credential by account: %w", err)
	}
	return record, nil
}

// Create inserts a new record, assigning ID and timestamps.
func (s *SQLiteStore) Create(ctx context.Context, record *Record) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	if record.Metadata == nil {
		record.Metadata = map[string]any{}
	}

	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling credential metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO provider_credentials
			(id, provider_type, name, oauth_token, oauth_refresh_token,
			oauth_expires_at, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Type, record.Name, record.AccessToken, record.RefreshToken,
		formatTime(record.ExpiresAt), string(metadata),
		now.Format(timeFormat), now.Format(timeFormat))
	if err != nil {
		return fmt.Errorf("creating credential: %w", err)
	}
	return nil
}

// UpdateTokens applies a partial token update in a single statement so a
// concurrent reader never sees a half-updated row.
func (s *SQLiteStore) UpdateTokens(ctx context.Context, id string, update TokenUpdate) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE provider_credentials SET
			oauth_token = ?,
			oauth_refresh_token = CASE WHEN ? = '' THEN oauth_refresh_token ELSE ? END,
			oauth_expires_at = ?,
			updated_at = ?
		WHERE id = ?`,
		update.AccessToken, update.RefreshToken, update.RefreshToken,
		formatTime(update.ExpiresAt), time.Now().UTC().Format(timeFormat), id)
	if err != nil {
		return fmt.Errorf("updating credential tokens: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating credential tokens: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CheckHealth verifies database connectivity.
func (s *SQLiteStore) CheckHealth(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("credentials database health check failed: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var record Record
	var expiresAt, metadata, createdAt, updatedAt string
	if err := row.Scan(&record.ID, &record.Type, &record.Name, &record.AccessToken,
		&record.RefreshToken, &expiresAt, &metadata, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if record.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	if record.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if record.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(metadata), &record.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling credential metadata: %w", err)
	}
	return &record, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeFormat, s)
}
