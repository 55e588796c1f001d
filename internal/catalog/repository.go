// Package catalog implements the relational catalog: schema migrations,
// resource lifecycle (sequence/topic/chunk/column CRUD) and the query
// builder (C6) that compiles ontology-tag expression groups into candidate
// chunk queries.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/chronocat/chronocat/internal/apperr"
	"github.com/chronocat/chronocat/pkg/models"
)

// Repository owns every metadata row backing the catalog (§3's "relational
// store owns all metadata rows").
type Repository struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, apperr.Wrap("catalog.New", "", fmt.Errorf("%w: %v", apperr.ErrRepository, err))
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() { r.pool.Close() }

// CreateSequence inserts an unlocked sequence and returns the id/uuid pair
// the caller must present to FinalizeSequence or AbortSequence.
func (r *Repository) CreateSequence(ctx context.Context, name string, creationUnix int64, userMetadata []byte) (models.ResourceID, error) {
	id := uuid.New()
	const q = `INSERT INTO sequence_t (sequence_uuid, locator_name, locked, creation_unix_tstamp, user_metadata)
	           VALUES ($1, $2, FALSE, $3, $4) RETURNING sequence_id`
	var seqID int64
	if err := r.pool.QueryRow(ctx, q, id, name, creationUnix, userMetadata).Scan(&seqID); err != nil {
		return models.ResourceID{}, apperr.Wrap("catalog.CreateSequence", name, fmt.Errorf("%w: %v", apperr.ErrRepository, err))
	}
	return models.ResourceID{ID: seqID, UUID: id.String()}, nil
}

func (r *Repository) SequenceByName(ctx context.Context, name string) (models.Sequence, error) {
	const q = `SELECT sequence_id, sequence_uuid, locator_name, locked, creation_unix_tstamp, user_metadata
	           FROM sequence_t WHERE locator_name = $1`
	var s models.Sequence
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, q, name).Scan(&s.ID, &id, &s.LocatorName, &s.Locked, &s.CreationUnix, &s.UserMetadata)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Sequence{}, apperr.Wrap("catalog.SequenceByName", name, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Sequence{}, apperr.Wrap("catalog.SequenceByName", name, fmt.Errorf("%w: %v", apperr.ErrRepository, err))
	}
	s.UUID = id.String()
	return s, nil
}

// VerifyKey matches a resource's uuid against a caller-supplied key,
// surfacing BadKey on mismatch — the finalize/abort authorization check
// every locatable resource uses.
func VerifyKey(resourceUUID, key string) error {
	if resourceUUID != key {
		return apperr.ErrBadKey
	}
	return nil
}

// FinalizeSequence locks a sequence once its caller presents the uuid
// handed back at creation.
func (r *Repository) FinalizeSequence(ctx context.Context, name, key string) error {
	seq, err := r.SequenceByName(ctx, name)
	if err != nil {
		return err
	}
	if err := VerifyKey(seq.UUID, key); err != nil {
		return apperr.Wrap("catalog.FinalizeSequence", name, err)
	}
	const q = `UPDATE sequence_t SET locked = TRUE WHERE sequence_id = $1`
	if _, err := r.pool.Exec(ctx, q, seq.ID); err != nil {
		return apperr.Wrap("catalog.FinalizeSequence", name, fmt.Errorf("%w: %v", apperr.ErrRepository, err))
	}
	log.Debug().Str("sequence", name).Int64("sequence_id", seq.ID).Msg("sequence locked")
	return nil
}

// AbortSequence deletes an unlocked sequence once its caller presents the
// uuid handed back at creation.
func (r *Repository) AbortSequence(ctx context.Context, name, key string) error {
	seq, err := r.SequenceByName(ctx, name)
	if err != nil {
		return err
	}
	if seq.Locked {
		return apperr.Wrap("catalog.AbortSequence", name, apperr.ErrSequenceLocked)
	}
	if err := VerifyKey(seq.UUID, key); err != nil {
		return apperr.Wrap("catalog.AbortSequence", name, err)
	}
	const q = `DELETE FROM sequence_t WHERE sequence_id = $1`
	if _, err := r.pool.Exec(ctx, q, seq.ID); err != nil {
		return apperr.Wrap("catalog.AbortSequence", name, fmt.Errorf("%w: %v", apperr.ErrRepository, err))
	}
	return nil
}

// DeleteSequence removes an unlocked sequence outright (no key required).
func (r *Repository) DeleteSequence(ctx context.Context, name string) error {
	seq, err := r.SequenceByName(ctx, name)
	if err != nil {
		return err
	}
	if seq.Locked {
		return apperr.Wrap("catalog.DeleteSequence", name, apperr.ErrSequenceLocked)
	}
	const q = `DELETE FROM sequence_t WHERE sequence_id = $1`
	if _, err := r.pool.Exec(ctx, q, seq.ID); err != nil {
		return apperr.Wrap("catalog.DeleteSequence", name, fmt.Errorf("%w: %v", apperr.ErrRepository, err))
	}
	return nil
}

// CreateTopic inserts an unlocked topic under sequenceName. The topic's
// locator must be rooted at the sequence's own locator (§3, §6); the
// caller must present the owning sequence's key, and the sequence must be
// unlocked.
func (r *Repository) CreateTopic(ctx context.Context, sequenceName, topicName, sequenceKey, ontologyTag, serializationFormat string, creationUnix int64, userMetadata []byte) (models.ResourceID, error) {
	if !strings.HasPrefix(topicName, sequenceName+"/") {
		return models.ResourceID{}, apperr.Wrap("catalog.CreateTopic", topicName, apperr.ErrUnauthorized)
	}
	seq, err := r.SequenceByName(ctx, sequenceName)
	if err != nil {
		return models.ResourceID{}, err
	}
	if err := VerifyKey(seq.UUID, sequenceKey); err != nil {
		return models.ResourceID{}, apperr.Wrap("catalog.CreateTopic", topicName, err)
	}
	if seq.Locked {
		return models.ResourceID{}, apperr.Wrap("catalog.CreateTopic", topicName, apperr.ErrSequenceLocked)
	}

	id := uuid.New()
	const q = `INSERT INTO topic_t (topic_uuid, locator_name, sequence_id, ontology_tag, serialization_format, locked, user_metadata, creation_unix_tstamp)
	           VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7) RETURNING topic_id`
	var topicID int64
	if err := r.pool.QueryRow(ctx, q, id, topicName, seq.ID, ontologyTag, serializationFormat, userMetadata, creationUnix).Scan(&topicID); err != nil {
		return models.ResourceID{}, apperr.Wrap("catalog.CreateTopic", topicName, fmt.Errorf("%w: %v", apperr.ErrRepository, err))
	}
	return models.ResourceID{ID: topicID, UUID: id.String()}, nil
}

func (r *Repository) TopicByName(ctx context.Context, name string) (models.Topic, error) {
	const q = `SELECT topic_id, topic_uuid, locator_name, sequence_id, ontology_tag, serialization_format, locked, user_metadata, creation_unix_tstamp
	           FROM topic_t WHERE locator_name = $1`
	var t models.Topic
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, q, name).Scan(&t.ID, &id, &t.LocatorName, &t.SequenceID, &t.OntologyTag, &t.SerializationFormat, &t.Locked, &t.UserMetadata, &t.CreationUnix)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Topic{}, apperr.Wrap("catalog.TopicByName", name, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Topic{}, apperr.Wrap("catalog.TopicByName", name, fmt.Errorf("%w: %v", apperr.ErrRepository, err))
	}
	t.UUID = id.String()
	return t, nil
}

// FinalizeTopic locks a topic; writes against a locked topic fail
// (TopicLocked), and finalizing an already-locked topic is itself rejected
// with TopicLocked rather than silently succeeding.
func (r *Repository) FinalizeTopic(ctx context.Context, name, key string) error {
	topic, err := r.TopicByName(ctx, name)
	if err != nil {
		return err
	}
	if topic.Locked {
		return apperr.Wrap("catalog.FinalizeTopic", name, apperr.ErrTopicLocked)
	}
	if err := VerifyKey(topic.UUID, key); err != nil {
		return apperr.Wrap("catalog.FinalizeTopic", name, err)
	}
	const q = `UPDATE topic_t SET locked = TRUE WHERE topic_id = $1`
	if _, err := r.pool.Exec(ctx, q, topic.ID); err != nil {
		return apperr.Wrap("catalog.FinalizeTopic", name, fmt.Errorf("%w: %v", apperr.ErrRepository, err))
	}
	log.Debug().Str("topic", name).Int64("topic_id", topic.ID).Msg("topic locked")
	return nil
}

// RequireTopicUnlocked guards any mutation — chunk writes chief among
// them — that only an in-progress (unlocked) topic may accept.
func (r *Repository) RequireTopicUnlocked(topic models.Topic) error {
	if topic.Locked {
		return apperr.ErrTopicLocked
	}
	return nil
}

// RequireTopicLocked guards operations that only make sense once a topic's
// chunk set is final, such as reporting stable aggregate statistics.
func (r *Repository) RequireTopicLocked(topic models.Topic) error {
	if !topic.Locked {
		return apperr.ErrTopicUnlocked
	}
	return nil
}

// CreateChunk inserts a chunk row within an existing transaction (§4.9's
// write coordinator opens the transaction; this is one statement in it).
func CreateChunk(ctx context.Context, tx pgx.Tx, topicID int64, dataFile string, sizeBytes, rowCount int64) (models.Chunk, error) {
	id := uuid.New()
	const q = `INSERT INTO chunk_t (chunk_uuid, topic_id, data_file, size_bytes, row_count)
	           VALUES ($1, $2, $3, $4, $5) RETURNING chunk_id`
	var chunkID int64
	if err := tx.QueryRow(ctx, q, id, topicID, dataFile, sizeBytes, rowCount).Scan(&chunkID); err != nil {
		return models.Chunk{}, apperr.Wrap("catalog.CreateChunk", dataFile, fmt.Errorf("%w: %v", apperr.ErrRepository, err))
	}
	return models.Chunk{ID: chunkID, UUID: id.String(), TopicID: topicID, DataFile: dataFile, SizeBytes: sizeBytes, RowCount: rowCount}, nil
}

// ColumnGetOrCreate interns a (columnName, ontologyTag) identity.
func ColumnGetOrCreate(ctx context.Context, tx pgx.Tx, columnName, ontologyTag string) (models.Column, error) {
	const upsert = `INSERT INTO column_t (column_name, ontology_tag) VALUES ($1, $2)
	                ON CONFLICT (column_name, ontology_tag) DO UPDATE SET column_name = EXCLUDED.column_name
	                RETURNING column_id`
	var id int64
	if err := tx.QueryRow(ctx, upsert, columnName, ontologyTag).Scan(&id); err != nil {
		return models.Column{}, apperr.Wrap("catalog.ColumnGetOrCreate", columnName, fmt.Errorf("%w: %v", apperr.ErrRepository, err))
	}
	return models.Column{ID: id, ColumnName: columnName, OntologyTag: ontologyTag}, nil
}

// BeginTx opens a catalog transaction owned by exactly one caller (§5).
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Wrap("catalog.BeginTx", "", fmt.Errorf("%w: %v", apperr.ErrRepository, err))
	}
	return tx, nil
}

// TopicsByID pre-fetches topic rows in one batched lookup, avoiding the
// per-candidate-chunk N+1 query pattern §4.8 step 3b forbids.
func (r *Repository) TopicsByID(ctx context.Context, ids []int64) (map[int64]models.Topic, error) {
	out := make(map[int64]models.Topic, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	const q = `SELECT topic_id, topic_uuid, locator_name, sequence_id, ontology_tag, serialization_format, locked, user_metadata, creation_unix_tstamp
	           FROM topic_t WHERE topic_id = ANY($1)`
	rows, err := r.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, apperr.Wrap("catalog.TopicsByID", "", fmt.Errorf("%w: %v", apperr.ErrRepository, err))
	}
	defer rows.Close()
	for rows.Next() {
		var t models.Topic
		var id uuid.UUID
		if err := rows.Scan(&t.ID, &id, &t.LocatorName, &t.SequenceID, &t.OntologyTag, &t.SerializationFormat, &t.Locked, &t.UserMetadata, &t.CreationUnix); err != nil {
			return nil, apperr.Wrap("catalog.TopicsByID", "", fmt.Errorf("%w: %v", apperr.ErrRepository, err))
		}
		t.UUID = id.String()
		out[t.ID] = t
	}
	return out, rows.Err()
}

// SequencesByID pre-fetches sequence rows the same way TopicsByID does.
func (r *Repository) SequencesByID(ctx context.Context, ids []int64) (map[int64]models.Sequence, error) {
	out := make(map[int64]models.Sequence, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	const q = `SELECT sequence_id, sequence_uuid, locator_name, locked, creation_unix_tstamp, user_metadata
	           FROM sequence_t WHERE sequence_id = ANY($1)`
	rows, err := r.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, apperr.Wrap("catalog.SequencesByID", "", fmt.Errorf("%w: %v", apperr.ErrRepository, err))
	}
	defer rows.Close()
	for rows.Next() {
		var s models.Sequence
		var id uuid.UUID
		if err := rows.Scan(&s.ID, &id, &s.LocatorName, &s.Locked, &s.CreationUnix, &s.UserMetadata); err != nil {
			return nil, apperr.Wrap("catalog.SequencesByID", "", fmt.Errorf("%w: %v", apperr.ErrRepository, err))
		}
		s.UUID = id.String()
		out[s.ID] = s
	}
	return out, rows.Err()
}
