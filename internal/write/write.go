// Package write implements the write coordinator (C9): the transactional
// seal step that commits a freshly encoded chunk's bytes and statistics to
// the catalog, or rolls back and leaves the file for garbage collection.
package write

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/chronocat/chronocat/internal/apperr"
	"github.com/chronocat/chronocat/internal/catalog"
	"github.com/chronocat/chronocat/internal/objectstore"
	"github.com/chronocat/chronocat/internal/stats"
	"github.com/chronocat/chronocat/pkg/models"
)

// Coordinator seals chunks: Seal puts the encoded bytes in the object store
// and then commits the catalog-side rows.
type Coordinator struct {
	repo  *catalog.Repository
	store objectstore.Store
}

func NewCoordinator(repo *catalog.Repository, store objectstore.Store) *Coordinator {
	return &Coordinator{repo: repo, store: store}
}

// Seal writes the chunk's data file to the object store, then opens a
// catalog transaction, inserts the chunk row, resolves/creates column
// identities and issues the batched stats inserts, and commits. Any
// failure rolls back the transaction; the already-written data file is
// left in place for garbage collection, never referenced by a committed
// row (§4.9).
func (c *Coordinator) Seal(ctx context.Context, topic models.Topic, dataFile string, data []byte, rowCount int64, columnStats stats.ColumnsStats) (models.Chunk, error) {
	if err := c.repo.RequireTopicUnlocked(topic); err != nil {
		return models.Chunk{}, apperr.Wrap("write.Seal", dataFile, err)
	}

	if err := c.store.Put(dataFile, data); err != nil {
		return models.Chunk{}, err
	}

	tx, err := c.repo.BeginTx(ctx)
	if err != nil {
		return models.Chunk{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }() // no-op once committed

	chunk, err := catalog.CreateChunk(ctx, tx, topic.ID, dataFile, int64(len(data)), rowCount)
	if err != nil {
		return models.Chunk{}, err
	}

	if err := catalog.PushAllStats(ctx, tx, chunk.ID, topic.OntologyTag, columnStats); err != nil {
		return models.Chunk{}, err
	}

	if err := commit(ctx, tx); err != nil {
		return models.Chunk{}, apperr.Wrap("write.Seal", dataFile, fmt.Errorf("%w: %v", apperr.ErrRepository, err))
	}

	return chunk, nil
}

func commit(ctx context.Context, tx pgx.Tx) error {
	return tx.Commit(ctx)
}
