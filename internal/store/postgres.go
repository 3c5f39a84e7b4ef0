package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/auricle-ai/auricle/pkg/provider/embeddings"
	"github.com/auricle-ai/auricle/pkg/types"
)

// Postgres is the PostgreSQL-backed Store. Utterances and answered questions
// go into plain tables; resume chunks carry a pgvector embedding column for
// cosine-distance retrieval. All methods are safe for concurrent use.
type Postgres struct {
	pool     *pgxpool.Pool
	embedder embeddings.Provider
}

// Compile-time interface check.
var _ Store = (*Postgres)(nil)

const ddlSession = `
CREATE TABLE IF NOT EXISTS utterances (
    id          BIGSERIAL    PRIMARY KEY,
    speaker     TEXT         NOT NULL,
    text        TEXT         NOT NULL,
    confidence  REAL         NOT NULL DEFAULT 0,
    timestamp   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_utterances_timestamp
    ON utterances (timestamp);

CREATE TABLE IF NOT EXISTS exchanges (
    id          BIGSERIAL    PRIMARY KEY,
    question    TEXT         NOT NULL,
    answer      TEXT         NOT NULL,
    timestamp   TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

// ddlResume returns the resume-chunk DDL with the embedding dimension
// substituted. The dimension is baked into the column type at schema
// creation time; changing it later requires a manual migration.
func ddlResume(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS resume_chunks (
    id          TEXT         PRIMARY KEY,
    content     TEXT         NOT NULL,
    embedding   vector(%d),
    timestamp   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_resume_chunks_embedding
    ON resume_chunks USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// NewPostgres connects to the database at dsn, registers pgvector types on
// every connection, and runs Migrate. embeddingDimensions must match the
// output dimension of the embedder.
func NewPostgres(ctx context.Context, dsn string, embedder embeddings.Provider, embeddingDimensions int) (*Postgres, error) {
	if embedder == nil {
		return nil, fmt.Errorf("postgres store: embedder is required")
	}
	if embeddingDimensions <= 0 {
		return nil, fmt.Errorf("postgres store: embedding dimensions must be positive, got %d", embeddingDimensions)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Postgres{pool: pool, embedder: embedder}, nil
}

// Migrate creates all required tables, indexes and the pgvector extension.
// It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	for _, ddl := range []string{ddlSession, ddlResume(embeddingDimensions)} {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("apply ddl: %w", err)
		}
	}
	return nil
}

// AppendUtterance implements [Store].
func (p *Postgres) AppendUtterance(ctx context.Context, ev types.TranscriptEvent) error {
	const q = `
		INSERT INTO utterances (speaker, text, confidence, timestamp)
		VALUES ($1, $2, $3, $4)`
	if _, err := p.pool.Exec(ctx, q, ev.Speaker.String(), ev.Text, ev.Confidence, ev.Timestamp); err != nil {
		return fmt.Errorf("postgres store: append utterance: %w", err)
	}
	return nil
}

// AppendExchange implements [Store].
func (p *Postgres) AppendExchange(ctx context.Context, question, answer string) error {
	const q = `
		INSERT INTO exchanges (question, answer)
		VALUES ($1, $2)`
	if _, err := p.pool.Exec(ctx, q, question, answer); err != nil {
		return fmt.Errorf("postgres store: append exchange: %w", err)
	}
	return nil
}

// IndexResumeChunk implements [Store]. An existing chunk with the same id is
// completely replaced.
func (p *Postgres) IndexResumeChunk(ctx context.Context, id, content string) error {
	vec, err := p.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("postgres store: embed resume chunk: %w", err)
	}

	const q = `
		INSERT INTO resume_chunks (id, content, embedding, timestamp)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET
		    content   = EXCLUDED.content,
		    embedding = EXCLUDED.embedding,
		    timestamp = EXCLUDED.timestamp`
	if _, err := p.pool.Exec(ctx, q, id, content, pgvector.NewVector(vec)); err != nil {
		return fmt.Errorf("postgres store: index resume chunk: %w", err)
	}
	return nil
}

// ResumeContext implements [Store]. The question is embedded and the topK
// closest chunks by cosine distance are returned, most similar first.
func (p *Postgres) ResumeContext(ctx context.Context, question string, topK int) ([]string, error) {
	if topK <= 0 {
		return nil, nil
	}

	vec, err := p.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("postgres store: embed question: %w", err)
	}

	const q = `
		SELECT content, embedding <=> $1 AS distance
		FROM   resume_chunks
		ORDER  BY distance
		LIMIT  $2`
	rows, err := p.pool.Query(ctx, q, pgvector.NewVector(vec), topK)
	if err != nil {
		return nil, fmt.Errorf("postgres store: resume context: %w", err)
	}

	contents, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var (
			content  string
			distance float64
		)
		if err := row.Scan(&content, &distance); err != nil {
			return "", err
		}
		return content, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan rows: %w", err)
	}
	return contents, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
