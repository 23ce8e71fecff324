package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/voxsheet/voxsheet/internal/tabular"
)

// PreviewDecode decodes a blob without persisting anything, so the UI can
// show what an upload would produce.
func (s *Service) PreviewDecode(blob string) ([]tabular.Record, int) {
	rows := tabular.SplitRows(blob)
	records := tabular.Decode(blob, s.Schema())

	dropped := 0
	if len(rows) > 1 {
		dropped = len(rows) - 1 - len(records)
	}
	return records, dropped
}

// CreateBatch decodes a blob and persists the batch with its records.
// Returns ErrNoRecords when the decode yields nothing usable; the caller
// should present that as a user-facing message, not a server fault.
func (s *Service) CreateBatch(ctx context.Context, name, blob string) (*Batch, error) {
	records, dropped := s.PreviewDecode(blob)
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	header := headerOf(blob, s.Schema())
	batch := &Batch{
		ID:         uuid.New().String(),
		Name:       name,
		Header:     header,
		UploadedAt: time.Now().UTC(),
		Records:    len(records),
		Dropped:    dropped,
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if committed

	_, err = tx.Exec(ctx,
		`INSERT INTO batches (id, name, header, dropped, uploaded_at) VALUES ($1, $2, $3, $4, $5)`,
		batch.ID, batch.Name, batch.Header, batch.Dropped, batch.UploadedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert batch: %w", err)
	}

	pgBatch := &pgx.Batch{}
	schema := s.Schema()
	for _, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("marshal record %s: %w", rec.ID, err)
		}
		pgBatch.Queue(
			`INSERT INTO posts (batch_id, record_id, position, author, body, record)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			batch.ID, rec.ID, rec.Index, authorOf(rec, schema), rec.Body(schema), payload,
		)
	}
	if err := tx.SendBatch(ctx, pgBatch).Close(); err != nil {
		return nil, fmt.Errorf("insert posts: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}

	slog.Info("batch created",
		"batch_id", batch.ID,
		"name", batch.Name,
		"records", batch.Records,
		"dropped", batch.Dropped,
	)
	return batch, nil
}

// ListBatches returns all batches, newest first.
func (s *Service) ListBatches(ctx context.Context) ([]Batch, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT b.id, b.name, b.header, b.dropped, b.uploaded_at,
		       count(p.record_id),
		       count(g.record_id) FILTER (WHERE g.status = 'done')
		FROM batches b
		LEFT JOIN posts p ON p.batch_id = b.id
		LEFT JOIN generations g ON g.batch_id = p.batch_id AND g.record_id = p.record_id
		GROUP BY b.id
		ORDER BY b.uploaded_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		var b Batch
		var records, generated int64
		if err := rows.Scan(&b.ID, &b.Name, &b.Header, &b.Dropped, &b.UploadedAt, &records, &generated); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		b.Records = int(records)
		b.Generated = int(generated)
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// GetBatch returns a batch with all of its posts in original row order.
func (s *Service) GetBatch(ctx context.Context, batchID string) (*BatchDetail, error) {
	var detail BatchDetail
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, header, dropped, uploaded_at FROM batches WHERE id = $1`,
		batchID,
	).Scan(&detail.ID, &detail.Name, &detail.Header, &detail.Dropped, &detail.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT p.record, g.status, g.audio_path, g.error
		FROM posts p
		LEFT JOIN generations g ON g.batch_id = p.batch_id AND g.record_id = p.record_id
		WHERE p.batch_id = $1
		ORDER BY p.position`, batchID)
	if err != nil {
		return nil, fmt.Errorf("get batch posts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload []byte
		var status, audioPath, genErr *string
		if err := rows.Scan(&payload, &status, &audioPath, &genErr); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}

		var post Post
		if err := json.Unmarshal(payload, &post.Record); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		post.Status = GenPending
		if status != nil {
			post.Status = GenStatus(*status)
		}
		if audioPath != nil {
			post.AudioPath = *audioPath
		}
		if genErr != nil {
			post.GenError = *genErr
		}
		if post.Status == GenDone {
			detail.Generated++
		}
		detail.Posts = append(detail.Posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	detail.Records = len(detail.Posts)
	return &detail, nil
}

// DeleteBatch removes a batch, its records, and any generated audio.
func (s *Service) DeleteBatch(ctx context.Context, batchID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM batches WHERE id = $1`, batchID)
	if err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBatchNotFound
	}

	if err := s.store.RemoveBatch(batchID); err != nil {
		slog.Warn("failed to remove batch audio", "batch_id", batchID, "error", err)
	}
	return nil
}

// StartRetentionSweeper periodically deletes batches older than the
// configured TTL, along with their audio. Blocks until ctx is cancelled;
// run it in a goroutine.
func (s *Service) StartRetentionSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Retention.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sweepExpired(ctx); err != nil {
				slog.Error("retention sweep failed", "error", err)
			}
		}
	}
}

// sweepExpired removes batches whose uploaded_at exceeds the TTL.
func (s *Service) sweepExpired(ctx context.Context) error {
	cutoff := time.Now().Add(-s.cfg.Retention.BatchTTL)

	rows, err := s.pool.Query(ctx,
		`SELECT id FROM batches WHERE uploaded_at < $1`, cutoff)
	if err != nil {
		return err
	}
	var expired []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		expired = append(expired, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range expired {
		if err := s.DeleteBatch(ctx, id); err != nil && !errors.Is(err, ErrBatchNotFound) {
			return err
		}
	}
	if len(expired) > 0 {
		slog.Info("retention sweep removed batches", "count", len(expired))
	}
	return nil
}

// headerOf extracts the trimmed header names from a blob.
func headerOf(blob string, schema tabular.Schema) []string {
	rows := tabular.SplitRows(blob)
	if len(rows) == 0 {
		return nil
	}
	delim := byte(',')
	if schema.Delimiter != 0 {
		delim = schema.Delimiter
	}
	header := tabular.SplitFields(rows[0], delim)
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return header
}

// authorOf returns the record's author field value under the schema.
func authorOf(rec tabular.Record, schema tabular.Schema) string {
	for name, v := range rec.Fields {
		if strings.EqualFold(name, schema.Author) {
			return v
		}
	}
	return ""
}
