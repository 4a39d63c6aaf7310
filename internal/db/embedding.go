package db

import (
	"context"

	"github.com/pgvector/pgvector-go"
)

// EnsureEmbeddingSchema creates the embeddings table used by the optional
// summary-embedding maintenance endpoint. Separate from EnsureSchema since
// nothing in the core workflow depends on it.
func (db *Postgres) EnsureEmbeddingSchema(ctx context.Context) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()
	_, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS embeddings (
			id BIGSERIAL PRIMARY KEY,
			incident_id TEXT NOT NULL,
			incident_summary TEXT NOT NULL,
			embedding vector(768) NOT NULL,
			model TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func embeddingInsertQuery() string {
	return `
		INSERT INTO embeddings (incident_id, incident_summary, embedding, model)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
}

func (db *Postgres) InsertEmbedding(ctx context.Context, incidentID, summary, model string, vector []float32) (int64, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var id int64
	query := embeddingInsertQuery()
	err := db.Pool.QueryRow(ctx, query, incidentID, summary, pgvector.NewVector(vector), model).Scan(&id)
	return id, err
}
