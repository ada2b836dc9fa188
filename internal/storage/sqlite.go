package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/transmatch/internal/models"
)

// ErrNoMatchNotStored is returned when a no_match verdict reaches InsertMatch.
var ErrNoMatchNotStored = errors.New("no_match verdicts are never stored")

// SQLiteStorage implements Store using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		fingerprint TEXT NOT NULL,
		corpus_side TEXT NOT NULL CHECK (corpus_side IN ('target', 'source')),
		display_name TEXT NOT NULL,
		path TEXT NOT NULL,
		extracted_text TEXT NOT NULL DEFAULT '',
		page_count INTEGER NOT NULL DEFAULT 0,
		low_text INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		error TEXT NOT NULL DEFAULT '',
		index_json TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (fingerprint, corpus_side)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_side ON documents(corpus_side, status);

	CREATE TABLE IF NOT EXISTS candidates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		article_ref TEXT NOT NULL,
		document_ref TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL DEFAULT 0,
		raw_response TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS matches (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL DEFAULT '',
		article_ref TEXT NOT NULL,
		article_title TEXT NOT NULL DEFAULT '',
		document_ref TEXT NOT NULL,
		document_name TEXT NOT NULL DEFAULT '',
		match_type TEXT NOT NULL CHECK (match_type != 'no_match'),
		confidence REAL NOT NULL,
		evidence TEXT NOT NULL,
		citation TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_matches_created_at ON matches(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

const documentColumns = `fingerprint, corpus_side, display_name, path, extracted_text, page_count,
	low_text, status, error, index_json, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	var index sql.NullString
	if err := row.Scan(&doc.Fingerprint, &doc.Side, &doc.DisplayName, &doc.Path, &doc.Text, &doc.PageCount,
		&doc.LowText, &doc.Status, &doc.Error, &index, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	if index.Valid && index.String != "" {
		doc.Index = json.RawMessage(index.String)
	}
	return &doc, nil
}

// LookupDocument returns the document for (fingerprint, side), or nil when absent.
func (s *SQLiteStorage) LookupDocument(ctx context.Context, fingerprint string, side models.CorpusSide) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE fingerprint = ? AND corpus_side = ?`,
		fingerprint, side,
	)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup document %s: %w", fingerprint, err)
	}
	return doc, nil
}

// UpsertDocument stores an extracted document. A row that is already extracted
// is left untouched, so text is written at most once per (fingerprint, side).
func (s *SQLiteStorage) UpsertDocument(ctx context.Context, doc *models.Document) error {
	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	if doc.Status == "" {
		doc.Status = models.StatusExtracted
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (fingerprint, corpus_side, display_name, path, extracted_text, page_count,
			low_text, status, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, '', ?, ?)
		 ON CONFLICT (fingerprint, corpus_side) DO UPDATE SET
			display_name = excluded.display_name,
			path = excluded.path,
			extracted_text = excluded.extracted_text,
			page_count = excluded.page_count,
			low_text = excluded.low_text,
			status = excluded.status,
			error = '',
			updated_at = excluded.updated_at
		 WHERE documents.status != 'extracted'`,
		doc.Fingerprint, doc.Side, doc.DisplayName, doc.Path, doc.Text, doc.PageCount,
		doc.LowText, doc.Status, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.Fingerprint, err)
	}
	return nil
}

// MarkDocumentError records a failed extraction unless the document is already extracted.
func (s *SQLiteStorage) MarkDocumentError(ctx context.Context, doc *models.Document, cause string) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (fingerprint, corpus_side, display_name, path, status, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 'error', ?, ?, ?)
		 ON CONFLICT (fingerprint, corpus_side) DO UPDATE SET
			status = 'error',
			error = excluded.error,
			updated_at = excluded.updated_at
		 WHERE documents.status != 'extracted'`,
		doc.Fingerprint, doc.Side, doc.DisplayName, doc.Path, cause, now, now,
	)
	if err != nil {
		return fmt.Errorf("mark document error %s: %w", doc.Fingerprint, err)
	}
	return nil
}

// SetDocumentIndex attaches the structured index produced for a document.
func (s *SQLiteStorage) SetDocumentIndex(ctx context.Context, fingerprint string, side models.CorpusSide, index json.RawMessage) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET index_json = ?, updated_at = ? WHERE fingerprint = ? AND corpus_side = ?`,
		string(index), time.Now(), fingerprint, side,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", fingerprint)
	}
	return nil
}

// ListDocuments returns every document of a corpus side in insertion order.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, side models.CorpusSide) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE corpus_side = ? ORDER BY rowid`, side,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// CountDocuments returns the number of extracted documents for side, or for both sides when side is empty.
func (s *SQLiteStorage) CountDocuments(ctx context.Context, side models.CorpusSide) (int64, error) {
	var n int64
	var err error
	if side == "" {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM documents WHERE status = 'extracted'`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM documents WHERE status = 'extracted' AND corpus_side = ?`, side).Scan(&n)
	}
	return n, err
}

// ClearCandidates removes every candidate row.
func (s *SQLiteStorage) ClearCandidates(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM candidates`)
	return err
}

// InsertCandidate appends a candidate row and sets its ID.
func (s *SQLiteStorage) InsertCandidate(ctx context.Context, rec *models.CandidateRecord) error {
	rec.CreatedAt = time.Now()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO candidates (run_id, article_ref, document_ref, reason, confidence, raw_response, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.ArticleRef, rec.DocumentRef, rec.Reason, rec.Confidence, rec.RawResponse, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert candidate: %w", err)
	}
	rec.ID, _ = result.LastInsertId()
	return nil
}

// ListCandidates returns candidates with confidence >= minConfidence, most confident first.
func (s *SQLiteStorage) ListCandidates(ctx context.Context, minConfidence float64) ([]*models.CandidateRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, article_ref, document_ref, reason, confidence, raw_response, created_at
		 FROM candidates WHERE confidence >= ? ORDER BY confidence DESC, id`, minConfidence,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.CandidateRecord
	for rows.Next() {
		var rec models.CandidateRecord
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.ArticleRef, &rec.DocumentRef, &rec.Reason,
			&rec.Confidence, &rec.RawResponse, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// InsertMatch stores a verified match. no_match verdicts are rejected.
func (s *SQLiteStorage) InsertMatch(ctx context.Context, m *models.Match) error {
	if m.MatchType == models.MatchNone {
		return ErrNoMatchNotStored
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	evidence, err := json.Marshal(m.Evidence)
	if err != nil {
		return fmt.Errorf("failed to marshal evidence: %w", err)
	}
	var citation sql.NullString
	if m.Citation != nil {
		b, err := json.Marshal(m.Citation)
		if err != nil {
			return fmt.Errorf("failed to marshal citation: %w", err)
		}
		citation = sql.NullString{String: string(b), Valid: true}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO matches (id, run_id, article_ref, article_title, document_ref, document_name,
			match_type, confidence, evidence, citation, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.RunID, m.ArticleRef, m.ArticleTitle, m.DocumentRef, m.DocumentName,
		m.MatchType, m.Confidence, string(evidence), citation, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) queryMatches(ctx context.Context, where string) ([]*models.Match, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, article_ref, article_title, document_ref, document_name,
			match_type, confidence, evidence, citation, created_at
		 FROM matches `+where+` ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Match
	for rows.Next() {
		var m models.Match
		var evidence string
		var citation sql.NullString
		if err := rows.Scan(&m.ID, &m.RunID, &m.ArticleRef, &m.ArticleTitle, &m.DocumentRef, &m.DocumentName,
			&m.MatchType, &m.Confidence, &evidence, &citation, &m.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(evidence), &m.Evidence); err != nil {
			return nil, fmt.Errorf("failed to unmarshal evidence for match %s: %w", m.ID, err)
		}
		if citation.Valid && citation.String != "" {
			var c models.Citation
			if err := json.Unmarshal([]byte(citation.String), &c); err != nil {
				return nil, fmt.Errorf("failed to unmarshal citation for match %s: %w", m.ID, err)
			}
			m.Citation = &c
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// ListMatches returns every stored match, oldest first.
func (s *SQLiteStorage) ListMatches(ctx context.Context) ([]*models.Match, error) {
	return s.queryMatches(ctx, "")
}

// ListMatchesWithoutCitation returns the matches still waiting for enrichment.
func (s *SQLiteStorage) ListMatchesWithoutCitation(ctx context.Context) ([]*models.Match, error) {
	return s.queryMatches(ctx, "WHERE citation IS NULL")
}

// SetMatchCitation attaches citation data to a match. It is the only update a match receives.
func (s *SQLiteStorage) SetMatchCitation(ctx context.Context, id string, c *models.Citation) error {
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal citation: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `UPDATE matches SET citation = ? WHERE id = ?`, string(b), id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("match not found: %s", id)
	}
	return nil
}

// ClearMatches removes every stored match.
func (s *SQLiteStorage) ClearMatches(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM matches`)
	return err
}

// CountMatches returns the number of stored matches.
func (s *SQLiteStorage) CountMatches(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
