package core

import (
	"context"
	"fmt"
)

// schemaStatements create the storage tables on first boot. Statements
// are idempotent so EnsureSchema can run on every startup.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS batches (
		id          uuid PRIMARY KEY,
		name        text NOT NULL,
		header      text[] NOT NULL,
		dropped     int NOT NULL DEFAULT 0,
		uploaded_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		batch_id  uuid NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
		record_id text NOT NULL,
		position  int NOT NULL,
		author    text NOT NULL DEFAULT '',
		body      text NOT NULL,
		record    jsonb NOT NULL,
		PRIMARY KEY (batch_id, record_id)
	)`,
	`CREATE TABLE IF NOT EXISTS generations (
		batch_id     uuid NOT NULL,
		record_id    text NOT NULL,
		status       text NOT NULL,
		audio_path   text NOT NULL DEFAULT '',
		error        text NOT NULL DEFAULT '',
		generated_at timestamptz,
		PRIMARY KEY (batch_id, record_id),
		FOREIGN KEY (batch_id, record_id)
			REFERENCES posts(batch_id, record_id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_batch_position
		ON posts(batch_id, position)`,
	`CREATE INDEX IF NOT EXISTS idx_batches_uploaded_at
		ON batches(uploaded_at)`,
}

// EnsureSchema creates the application tables if they do not exist.
func (s *Service) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
