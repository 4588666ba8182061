package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/studydesk/studydesk/internal/domain"
)

// Postgres stores vectors in a pgvector column so shared deployments
// can later move scoring into the database. Ranking still happens in
// the retrieval engine; the schema just keeps that door open.
type Postgres struct {
	pool *pgxpool.Pool
	dim  int
}

var _ Store = (*Postgres)(nil)

// NewPostgres connects, verifies the server is reachable, and creates
// the schema (including the vector extension) if missing.
func NewPostgres(ctx context.Context, dsn string, dim int) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	p := &Postgres{pool: pool, dim: dim}
	if err := p.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return p, nil
}

func (p *Postgres) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS documents (
			id           TEXT PRIMARY KEY,
			file_name    TEXT NOT NULL,
			stored_path  TEXT NOT NULL DEFAULT '',
			content_hash TEXT NOT NULL DEFAULT '',
			media_type   TEXT NOT NULL,
			category     TEXT NOT NULL,
			course_code  TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL,
			raw_text     TEXT NOT NULL DEFAULT '',
			cleaned_text TEXT NOT NULL DEFAULT '',
			confidence   TEXT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id          TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			ordinal     INTEGER NOT NULL,
			content     TEXT NOT NULL,
			embedding   vector(%d),
			created_at  TIMESTAMPTZ NOT NULL,
			UNIQUE (document_id, ordinal)
		)`, p.dim),
		`CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_course ON documents(course_code)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON chunks
			USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) SaveDocument(ctx context.Context, doc *domain.Document) error {
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err := p.pool.Exec(ctx, `
		INSERT INTO documents (id, file_name, stored_path, content_hash, media_type, category,
			course_code, status, raw_text, cleaned_text, confidence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, doc.ID, doc.FileName, doc.StoredPath, doc.ContentHash, string(doc.MediaType), string(doc.Category),
		doc.CourseCode, string(doc.Status), doc.RawText, doc.CleanedText, string(doc.Confidence),
		doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

func (p *Postgres) UpdateDocument(ctx context.Context, doc *domain.Document) error {
	doc.UpdatedAt = time.Now().UTC()

	tag, err := p.pool.Exec(ctx, `
		UPDATE documents SET file_name = $1, stored_path = $2, content_hash = $3, media_type = $4,
			category = $5, course_code = $6, status = $7, raw_text = $8, cleaned_text = $9,
			confidence = $10, updated_at = $11
		WHERE id = $12
	`, doc.FileName, doc.StoredPath, doc.ContentHash, string(doc.MediaType), string(doc.Category),
		doc.CourseCode, string(doc.Status), doc.RawText, doc.CleanedText, string(doc.Confidence),
		doc.UpdatedAt, doc.ID)
	if err != nil {
		return fmt.Errorf("updating document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (p *Postgres) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, file_name, stored_path, content_hash, media_type, category,
			course_code, status, raw_text, cleaned_text, confidence, created_at, updated_at
		FROM documents WHERE id = $1
	`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	return doc, nil
}

func (p *Postgres) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, file_name, stored_path, content_hash, media_type, category,
			course_code, status, raw_text, cleaned_text, confidence, created_at, updated_at
		FROM documents
		ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

func (p *Postgres) DeleteDocument(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, "DELETE FROM documents WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (p *Postgres) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	if err := validateDimensions(chunks, p.dim); err != nil {
		return err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)", documentID).Scan(&exists); err != nil {
		return fmt.Errorf("checking document: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}

	if _, err := tx.Exec(ctx, "DELETE FROM chunks WHERE document_id = $1", documentID); err != nil {
		return fmt.Errorf("deleting old chunks: %w", err)
	}

	for _, ch := range chunks {
		createdAt := ch.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		var embedding any
		if ch.Vector != nil {
			embedding = pgvector.NewVector(ch.Vector)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO chunks (id, document_id, ordinal, content, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, ch.ID, documentID, ch.Ordinal, ch.Content, embedding, createdAt); err != nil {
			return fmt.Errorf("inserting chunk %d: %w", ch.Ordinal, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (p *Postgres) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, document_id, ordinal, content, embedding::text, created_at
		FROM chunks WHERE document_id = $1
		ORDER BY ordinal
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var ch domain.Chunk
		var embedding *string
		if err := rows.Scan(&ch.ID, &ch.DocumentID, &ch.Ordinal, &ch.Content, &embedding, &ch.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		ch.Vector, err = parseVectorText(embedding)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

func (p *Postgres) ListCandidates(ctx context.Context, courseCode string, vectorOnly bool) ([]Candidate, error) {
	query := `
		SELECT c.id, c.document_id, c.ordinal, c.content, c.embedding::text, c.created_at,
			d.course_code, d.confidence
		FROM chunks c
		JOIN documents d ON d.id = c.document_id`

	var conds []string
	var args []any
	if courseCode != "" {
		args = append(args, courseCode)
		conds = append(conds, fmt.Sprintf("d.course_code = $%d", len(args)))
	}
	if vectorOnly {
		conds = append(conds, "c.embedding IS NOT NULL")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY c.document_id, c.ordinal"

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying candidates: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var cand Candidate
		var embedding *string
		var confidence string
		if err := rows.Scan(&cand.Chunk.ID, &cand.Chunk.DocumentID, &cand.Chunk.Ordinal,
			&cand.Chunk.Content, &embedding, &cand.Chunk.CreatedAt,
			&cand.CourseCode, &confidence); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		cand.Chunk.Vector, err = parseVectorText(embedding)
		if err != nil {
			return nil, err
		}
		cand.Confidence = domain.Confidence(confidence)
		out = append(out, cand)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating candidates: %w", err)
	}
	return out, nil
}

func (p *Postgres) CountDocuments(ctx context.Context) (int, error) {
	var count int
	if err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM documents").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}

func (p *Postgres) ChunkCounts(ctx context.Context) (map[string]int, error) {
	rows, err := p.pool.Query(ctx, "SELECT document_id, COUNT(*) FROM chunks GROUP BY document_id")
	if err != nil {
		return nil, fmt.Errorf("counting chunks: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scanning chunk count: %w", err)
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunk counts: %w", err)
	}
	return counts, nil
}

// parseVectorText decodes pgvector's text form. Scanning through ::text
// keeps NULL handling trivial: a nil pointer is a chunk with no vector.
func parseVectorText(s *string) ([]float32, error) {
	if s == nil {
		return nil, nil
	}
	var vec pgvector.Vector
	if err := vec.Parse(*s); err != nil {
		return nil, fmt.Errorf("parsing vector: %w", err)
	}
	return vec.Slice(), nil
}
