// Command writer demonstrates the end-to-end chunk write pipeline: build a
// record batch against a schema, encode it with the chunk writer (C4),
// hand the bytes and statistics to the write coordinator (C9), which puts
// them in the object store and commits the catalog transaction.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/chronocat/chronocat/internal/catalog"
	"github.com/chronocat/chronocat/internal/chunkio"
	"github.com/chronocat/chronocat/internal/config"
	"github.com/chronocat/chronocat/internal/format"
	"github.com/chronocat/chronocat/internal/objectstore"
	"github.com/chronocat/chronocat/internal/value"
	"github.com/chronocat/chronocat/internal/write"
	"github.com/chronocat/chronocat/pkg/models"
)

func main() {
	fs := pflag.NewFlagSet("chronocat-writer", pflag.ExitOnError)
	sequenceName := fs.String("sequence", "/demo", "Sequence locator to write under")
	topicSuffix := fs.String("topic", "imu", "Topic name relative to the sequence")
	rows := fs.Int("rows", 100, "Number of synthetic IMU rows to encode")

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("invalid log level %q: %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	ctx := context.Background()

	repo, err := catalog.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to catalog: %v", err)
	}
	defer repo.Close()

	if err := repo.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate catalog: %v", err)
	}

	store := objectstore.NewLocalStore(cfg.ObjectStoreRoot)

	topicName := *sequenceName + "/" + *topicSuffix

	seq, err := ensureSequence(ctx, repo, *sequenceName, logger)
	if err != nil {
		log.Fatalf("failed to ensure sequence: %v", err)
	}

	topic, err := ensureTopic(ctx, repo, seq, topicName, logger)
	if err != nil {
		log.Fatalf("failed to ensure topic: %v", err)
	}

	schema := imuSchema()
	batch := syntheticIMUBatch(schema, *rows)

	w, err := chunkio.TryNew(schema, format.Default)
	if err != nil {
		log.Fatalf("failed to create chunk writer: %v", err)
	}
	if err := w.Write(batch); err != nil {
		log.Fatalf("failed to write batch: %v", err)
	}
	data, columnStats, err := w.Finalize()
	if err != nil {
		log.Fatalf("failed to finalize chunk: %v", err)
	}

	dataFile := fmt.Sprintf("%s/%d.parquet", topicName, time.Now().UnixNano())

	coord := write.NewCoordinator(repo, store)
	chunk, err := coord.Seal(ctx, topic, dataFile, data, int64(*rows), columnStats)
	if err != nil {
		log.Fatalf("failed to seal chunk: %v", err)
	}

	logger.Info().
		Str("topic", topicName).
		Int64("chunk_id", chunk.ID).
		Int64("size_bytes", chunk.SizeBytes).
		Int64("row_count", chunk.RowCount).
		Str("url", store.URL(dataFile)).
		Msg("chunk sealed")
}

func ensureSequence(ctx context.Context, repo *catalog.Repository, name string, logger zerolog.Logger) (models.Sequence, error) {
	seq, err := repo.SequenceByName(ctx, name)
	if err == nil {
		return seq, nil
	}
	id, err := repo.CreateSequence(ctx, name, time.Now().Unix(), nil)
	if err != nil {
		return models.Sequence{}, err
	}
	logger.Info().Str("sequence", name).Str("uuid", id.UUID).Msg("sequence created")
	return repo.SequenceByName(ctx, name)
}

func ensureTopic(ctx context.Context, repo *catalog.Repository, seq models.Sequence, name string, logger zerolog.Logger) (models.Topic, error) {
	topic, err := repo.TopicByName(ctx, name)
	if err == nil {
		return topic, nil
	}
	id, err := repo.CreateTopic(ctx, seq.LocatorName, name, seq.UUID, "imu", format.Default.String(), time.Now().Unix(), nil)
	if err != nil {
		return models.Topic{}, err
	}
	logger.Info().Str("topic", name).Str("uuid", id.UUID).Msg("topic created")
	return repo.TopicByName(ctx, name)
}

// imuSchema declares a timestamp column plus a nested acceleration struct,
// exercising both the writer's fast path (timestamp) and its slow path
// (acceleration.x/y/z).
func imuSchema() chunkio.Schema {
	return chunkio.Schema{
		Fields: []chunkio.Field{
			{Name: "timestamp", Type: chunkio.TypeInt64},
			{Name: "acceleration", Type: chunkio.TypeStruct, Children: []chunkio.Field{
				{Name: "x", Type: chunkio.TypeFloat64},
				{Name: "y", Type: chunkio.TypeFloat64},
				{Name: "z", Type: chunkio.TypeFloat64},
			}},
		},
	}
}

func syntheticIMUBatch(schema chunkio.Schema, rows int) chunkio.RecordBatch {
	rng := rand.New(rand.NewSource(1))
	ts := make([]value.Value, rows)
	tsValid := make([]bool, rows)
	x := make([]value.Value, rows)
	y := make([]value.Value, rows)
	z := make([]value.Value, rows)
	valid := make([]bool, rows)

	base := time.Now().UnixMilli()
	for i := 0; i < rows; i++ {
		ts[i] = value.Timestamp(base + int64(i))
		tsValid[i] = true
		x[i] = value.Float(rng.NormFloat64())
		y[i] = value.Float(rng.NormFloat64())
		z[i] = value.Float(rng.NormFloat64() + 9.8)
		valid[i] = true
	}

	return chunkio.RecordBatch{
		Schema:  schema,
		NumRows: rows,
		Columns: map[string]*chunkio.Column{
			"timestamp": {Type: chunkio.TypeInt64, Values: ts, Valid: tsValid},
			"acceleration": {Type: chunkio.TypeStruct, Children: map[string]*chunkio.Column{
				"x": {Type: chunkio.TypeFloat64, Values: x, Valid: valid},
				"y": {Type: chunkio.TypeFloat64, Values: y, Valid: valid},
				"z": {Type: chunkio.TypeFloat64, Values: z, Valid: valid},
			}},
		},
	}
}
