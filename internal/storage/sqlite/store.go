// Package sqlite persists chat log documents in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/chatgate-dev/chatgate/internal/chatlog"
)

// Store is a SQLite implementation of chatlog.Sink.
type Store struct {
	db *sqlx.DB
}

var _ chatlog.Sink = (*Store)(nil)

// New opens (or creates) the database at dbPath and initializes the schema.
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS chat_records (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			request_id TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_records_request ON chat_records(request_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_records_type ON chat_records(type)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute statement: %w", err)
		}
	}
	return nil
}

// PutDocument stores one document. Re-writing an existing document id
// replaces its body, which makes retried writes idempotent.
func (s *Store) PutDocument(ctx context.Context, doc chatlog.Document) error {
	query := `INSERT INTO chat_records (id, type, request_id, body, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET body = excluded.body, created_at = excluded.created_at`

	_, err := s.db.ExecContext(ctx, query,
		doc.ID, doc.Type, doc.RequestID, string(doc.Body), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to store chat record: %w", err)
	}
	return nil
}

type recordRow struct {
	ID        string    `db:"id"`
	Type      string    `db:"type"`
	RequestID string    `db:"request_id"`
	Body      string    `db:"body"`
	CreatedAt time.Time `db:"created_at"`
}

// GetDocument retrieves one document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (*chatlog.Document, error) {
	var row recordRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, type, request_id, body, created_at FROM chat_records WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chat record %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load chat record: %w", err)
	}

	doc := row.toDocument()
	return &doc, nil
}

// ListByRequestID returns every document persisted for a request, oldest
// first, so request and response records can be correlated.
func (s *Store) ListByRequestID(ctx context.Context, requestID string) ([]chatlog.Document, error) {
	var rows []recordRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, type, request_id, body, created_at FROM chat_records
		 WHERE request_id = ? ORDER BY created_at, id`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat records: %w", err)
	}

	docs := make([]chatlog.Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, row.toDocument())
	}
	return docs, nil
}

func (r recordRow) toDocument() chatlog.Document {
	return chatlog.Document{
		ID:        r.ID,
		Type:      r.Type,
		RequestID: r.RequestID,
		Body:      []byte(r.Body),
	}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
