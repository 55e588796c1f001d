package catalog

import (
	"context"
	"fmt"

	"github.com/chronocat/chronocat/internal/apperr"
)

// migrationDDL creates the six essential tables of §6's catalog schema.
// Deliberately idempotent (IF NOT EXISTS) to match the teacher's Migrate
// style of being safe to call on every startup.
const migrationDDL = `
CREATE TABLE IF NOT EXISTS sequence_t (
  sequence_id          BIGSERIAL PRIMARY KEY,
  sequence_uuid        UUID NOT NULL UNIQUE,
  locator_name         TEXT NOT NULL UNIQUE,
  locked               BOOLEAN NOT NULL DEFAULT FALSE,
  creation_unix_tstamp BIGINT NOT NULL,
  user_metadata        JSONB
);

CREATE TABLE IF NOT EXISTS topic_t (
  topic_id             BIGSERIAL PRIMARY KEY,
  topic_uuid           UUID NOT NULL UNIQUE,
  locator_name         TEXT NOT NULL UNIQUE,
  sequence_id          BIGINT NOT NULL REFERENCES sequence_t(sequence_id),
  ontology_tag         TEXT NOT NULL,
  serialization_format TEXT NOT NULL,
  locked               BOOLEAN NOT NULL DEFAULT FALSE,
  user_metadata        JSONB,
  creation_unix_tstamp BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS topic_t_sequence_id_idx ON topic_t (sequence_id);

CREATE TABLE IF NOT EXISTS chunk_t (
  chunk_id   BIGSERIAL PRIMARY KEY,
  chunk_uuid UUID NOT NULL UNIQUE,
  topic_id   BIGINT NOT NULL REFERENCES topic_t(topic_id),
  data_file  TEXT NOT NULL UNIQUE,
  size_bytes BIGINT NOT NULL,
  row_count  BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS chunk_t_topic_id_idx ON chunk_t (topic_id);

CREATE TABLE IF NOT EXISTS column_t (
  column_id    BIGSERIAL PRIMARY KEY,
  column_name  TEXT NOT NULL,
  ontology_tag TEXT NOT NULL,
  UNIQUE (column_name, ontology_tag)
);

CREATE TABLE IF NOT EXISTS column_chunk_numeric_t (
  column_id BIGINT NOT NULL REFERENCES column_t(column_id),
  chunk_id  BIGINT NOT NULL REFERENCES chunk_t(chunk_id),
  min_value DOUBLE PRECISION NOT NULL,
  max_value DOUBLE PRECISION NOT NULL,
  has_null  BOOLEAN NOT NULL,
  has_nan   BOOLEAN NOT NULL,
  PRIMARY KEY (column_id, chunk_id)
);

CREATE TABLE IF NOT EXISTS column_chunk_literal_t (
  column_id BIGINT NOT NULL REFERENCES column_t(column_id),
  chunk_id  BIGINT NOT NULL REFERENCES chunk_t(chunk_id),
  min_value TEXT NOT NULL,
  max_value TEXT NOT NULL,
  has_null  BOOLEAN NOT NULL,
  PRIMARY KEY (column_id, chunk_id)
);
`

// Migrate applies the catalog schema. Safe to call repeatedly.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, migrationDDL); err != nil {
		return apperr.Wrap("catalog.Migrate", "", fmt.Errorf("%w: %v", apperr.ErrRepository, err))
	}
	return nil
}
