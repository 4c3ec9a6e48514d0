package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/pders01/trace/internal/embeddings"
	"github.com/pders01/trace/internal/models"
)

// Insert adds records. A record whose id already exists is replaced.
func (s *Store) Insert(ctx context.Context, records []models.IndexRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin insert: %w", ErrIndexUnavailable, err)
	}
	defer tx.Rollback()

	if err := s.insertTx(ctx, tx, records); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceSource swaps every record of sourceID for records in one
// transaction, so a changed source is never half-indexed.
func (s *Store) ReplaceSource(ctx context.Context, sourceID string, records []models.IndexRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin replace: %w", ErrIndexUnavailable, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE source_id = ?`, sourceID); err != nil {
		return fmt.Errorf("replace source %s: %w", sourceID, err)
	}
	for _, r := range records {
		if r.SourceID != sourceID {
			return fmt.Errorf("replace source %s: record %s belongs to %s", sourceID, r.ID, r.SourceID)
		}
	}
	if err := s.insertTx(ctx, tx, records); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace source %s: %w", sourceID, err)
	}
	return nil
}

func (s *Store) insertTx(ctx context.Context, tx *sql.Tx, records []models.IndexRecord) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (id, source_id, chunk_index, text, embedding, dimensions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_id = excluded.source_id,
			chunk_index = excluded.chunk_index,
			text = excluded.text,
			embedding = excluded.embedding,
			dimensions = excluded.dimensions,
			created_at = excluded.created_at
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := s.now().Unix()
	for _, r := range records {
		blob, err := embeddings.Encode(r.Embedding)
		if err != nil {
			return fmt.Errorf("record %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.SourceID, r.ChunkIndex, r.Text, blob, len(r.Embedding), now); err != nil {
			return fmt.Errorf("insert record %s: %w", r.ID, err)
		}
	}
	return nil
}

// DeleteBySource removes every record derived from sourceID and returns how
// many were removed
func (s *Store) DeleteBySource(ctx context.Context, sourceID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE source_id = ?`, sourceID)
	if err != nil {
		return 0, fmt.Errorf("delete source %s: %w", sourceID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete source %s: %w", sourceID, err)
	}
	return int(n), nil
}

// Query returns the k records most similar to vec, best first. Ties are
// broken by record id so results are deterministic.
func (s *Store) Query(ctx context.Context, vec []float64, k int) ([]models.ScoredRecord, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_id, chunk_index, text, embedding
		FROM records
		WHERE dimensions = ?
	`, len(vec))
	if err != nil {
		return nil, fmt.Errorf("%w: query records: %w", ErrIndexUnavailable, err)
	}
	defer rows.Close()

	byID := make(map[string]models.IndexRecord)
	var candidates []embeddings.Candidate
	for rows.Next() {
		var r models.IndexRecord
		var blob []byte
		if err := rows.Scan(&r.ID, &r.SourceID, &r.ChunkIndex, &r.Text, &blob); err != nil {
			return nil, fmt.Errorf("%w: scan record: %w", ErrIndexUnavailable, err)
		}
		r.Embedding, err = embeddings.Decode(blob)
		if err != nil {
			// Skip corrupted rows rather than failing the whole query
			continue
		}
		byID[r.ID] = r
		candidates = append(candidates, embeddings.Candidate{Key: r.ID, Vector: r.Embedding})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate records: %w", ErrIndexUnavailable, err)
	}

	matches := embeddings.TopK(vec, candidates, k)
	out := make([]models.ScoredRecord, 0, len(matches))
	for _, m := range matches {
		out = append(out, models.ScoredRecord{IndexRecord: byID[m.Key], Score: m.Score})
	}
	return out, nil
}

// Sources lists the distinct source ids present in the store, sorted
func (s *Store) Sources(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT source_id FROM records ORDER BY source_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list sources: %w", ErrIndexUnavailable, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan source: %w", ErrIndexUnavailable, err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Stats summarizes the store contents
func (s *Store) Stats(ctx context.Context) (models.IndexStats, error) {
	stats := models.IndexStats{BySource: make(map[string]int)}

	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, COUNT(*), MAX(dimensions)
		FROM records
		GROUP BY source_id
	`)
	if err != nil {
		return stats, fmt.Errorf("%w: stats: %w", ErrIndexUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			source string
			count  int
			dims   int
		)
		if err := rows.Scan(&source, &count, &dims); err != nil {
			return stats, fmt.Errorf("%w: scan stats: %w", ErrIndexUnavailable, err)
		}
		stats.BySource[source] = count
		stats.Records += count
		if dims > stats.Dimensions {
			stats.Dimensions = dims
		}
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("%w: stats: %w", ErrIndexUnavailable, err)
	}
	stats.Sources = len(stats.BySource)
	return stats, nil
}

// SourceIDs returns the keys of BySource in sorted order
func SourceIDs(stats models.IndexStats) []string {
	ids := make([]string, 0, len(stats.BySource))
	for id := range stats.BySource {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
