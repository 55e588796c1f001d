package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/chronocat/chronocat/internal/apperr"
	"github.com/chronocat/chronocat/internal/stats"
)

// QueryCandidateChunks executes a compiled C6 query and returns every
// surviving chunk. The empty-In case never reaches it: Compile returns
// ErrEmptyCandidateSet and the caller skips the round trip.
func (r *Repository) QueryCandidateChunks(ctx context.Context, tag string, query string, args []any) ([]ChunkCandidate, error) {
	log.Trace().Str("tag", tag).Str("query", query).Interface("args", args).Msg("compiled candidate chunk query")

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap("catalog.QueryCandidateChunks", tag, fmt.Errorf("%w: %v", apperr.ErrRepository, err))
	}
	defer rows.Close()

	var out []ChunkCandidate
	for rows.Next() {
		var c ChunkCandidate
		if err := rows.Scan(&c.ChunkID, &c.TopicID, &c.DataFile, &c.SizeBytes, &c.RowCount); err != nil {
			return nil, apperr.Wrap("catalog.QueryCandidateChunks", tag, fmt.Errorf("%w: %v", apperr.ErrRepository, err))
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	log.Debug().Str("tag", tag).Int("candidates", len(out)).Msg("candidate chunks retained")
	return out, nil
}

// TopicStats is the byte/row aggregate over a topic's committed chunks,
// the §4.7 batch-size policy's S/N inputs. Grounded on the original
// catalog's topic_get_stats: a single SUM over chunk_t, zero-valued for a
// topic with no chunks yet.
type TopicStats struct {
	TotalSizeBytes int64
	TotalRowCount  int64
}

// TopicStats aggregates size_bytes/row_count across every chunk committed
// under topicID, for use by callers inferring a read batch size (§4.7).
func (r *Repository) TopicStats(ctx context.Context, topicID int64) (TopicStats, error) {
	const q = `SELECT COALESCE(SUM(size_bytes), 0), COALESCE(SUM(row_count), 0)
	           FROM chunk_t WHERE topic_id = $1`
	var s TopicStats
	if err := r.pool.QueryRow(ctx, q, topicID).Scan(&s.TotalSizeBytes, &s.TotalRowCount); err != nil {
		return TopicStats{}, apperr.Wrap("catalog.TopicStats", "", fmt.Errorf("%w: %v", apperr.ErrRepository, err))
	}
	log.Debug().Int64("topic_id", topicID).Int64("total_size_bytes", s.TotalSizeBytes).Int64("total_row_count", s.TotalRowCount).Msg("topic stats aggregated")
	return s, nil
}

// PushAllStats resolves each statistic's column identity and issues at
// most two batched inserts — one for numeric stats, one for literal, each
// sent only when it has rows — within the caller's transaction (§4.9).
// Unsupported-kind entries are skipped.
func PushAllStats(ctx context.Context, tx pgx.Tx, chunkID int64, ontologyTag string, columnStats stats.ColumnsStats) error {
	type numericRow struct {
		columnID                   int64
		min, max                   float64
		hasNull, hasNaN            bool
	}
	type literalRow struct {
		columnID        int64
		min, max        string
		hasNull         bool
	}

	var numericRows []numericRow
	var literalRows []literalRow

	for columnName, s := range columnStats {
		if s.IsUnsupported() {
			continue
		}
		column, err := ColumnGetOrCreate(ctx, tx, columnName, ontologyTag)
		if err != nil {
			return err
		}
		if num, ok := s.Numeric(); ok {
			numericRows = append(numericRows, numericRow{column.ID, num.Min, num.Max, num.HasNull, num.HasNaN})
			continue
		}
		if txt, ok := s.Text(); ok {
			literalRows = append(literalRows, literalRow{column.ID, txt.Min, txt.Max, txt.HasNull})
		}
	}

	if len(numericRows) > 0 {
		batch := &pgx.Batch{}
		const q = `INSERT INTO column_chunk_numeric_t (column_id, chunk_id, min_value, max_value, has_null, has_nan)
		           VALUES ($1, $2, $3, $4, $5, $6)`
		for _, row := range numericRows {
			batch.Queue(q, row.columnID, chunkID, row.min, row.max, row.hasNull, row.hasNaN)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return apperr.Wrap("catalog.PushAllStats", "numeric", fmt.Errorf("%w: %v", apperr.ErrRepository, err))
		}
	}

	if len(literalRows) > 0 {
		batch := &pgx.Batch{}
		const q = `INSERT INTO column_chunk_literal_t (column_id, chunk_id, min_value, max_value, has_null)
		           VALUES ($1, $2, $3, $4, $5)`
		for _, row := range literalRows {
			batch.Queue(q, row.columnID, chunkID, row.min, row.max, row.hasNull)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return apperr.Wrap("catalog.PushAllStats", "literal", fmt.Errorf("%w: %v", apperr.ErrRepository, err))
		}
	}

	return nil
}
