// Package query implements the query orchestrator (C8): topic
// pre-scoping, the ontology-tag split, concurrent per-group fan-out
// through the catalog query builder and the timeseries gateway, and the
// final intersect/union merge across groups.
package query

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/chronocat/chronocat/internal/apperr"
	"github.com/chronocat/chronocat/internal/catalog"
	"github.com/chronocat/chronocat/internal/chunkio"
	"github.com/chronocat/chronocat/internal/filter"
	"github.com/chronocat/chronocat/internal/format"
	"github.com/chronocat/chronocat/internal/objectstore"
	"github.com/chronocat/chronocat/internal/value"
	"github.com/chronocat/chronocat/pkg/models"
)

// SchemaResolver supplies the chunk schema a topic's chunks were encoded
// with, so the gateway knows how to decode them. The orchestrator has no
// opinion on how schemas are tracked; callers own that mapping.
type SchemaResolver func(topic models.Topic) chunkio.Schema

// Orchestrator runs the two-stage query described in §4.8.
type Orchestrator struct {
	repo                     *catalog.Repository
	store                    objectstore.Store
	builder                  *catalog.ChunkQueryBuilder
	resolveSchema            SchemaResolver
	maxConcurrency           int64
	targetMessageSizeInBytes int64
}

func NewOrchestrator(repo *catalog.Repository, store objectstore.Store, resolveSchema SchemaResolver, maxConcurrency, targetMessageSizeInBytes int64) *Orchestrator {
	return &Orchestrator{
		repo:                     repo,
		store:                    store,
		builder:                  catalog.NewChunkQueryBuilder(),
		resolveSchema:            resolveSchema,
		maxConcurrency:           maxConcurrency,
		targetMessageSizeInBytes: targetMessageSizeInBytes,
	}
}

// Run executes a Filter and returns the sequences (with their qualifying
// topics) that satisfy it.
func (o *Orchestrator) Run(ctx context.Context, f filter.Filter) (models.SequenceTopicGroups, error) {
	scoped, err := o.preScopeTopics(ctx, f)
	if err != nil {
		return nil, err
	}

	if f.Ontology == nil || f.Ontology.Len() == 0 {
		log.Debug().Msg("empty ontology filter, projecting allow-list directly")
		return o.projectAllowList(ctx, scoped)
	}

	groups := f.Ontology.IntoExprGroup().SplitByOntologyTag()
	log.Debug().Int("groups", len(groups)).Msg("ontology filter split by tag")
	perGroup := make([]models.SequenceTopicGroups, len(groups))

	sem := semaphore.NewWeighted(o.maxConcurrency)
	eg, egCtx := errgroup.WithContext(ctx)

	for i, g := range groups {
		i, g := i, g
		eg.Go(func() error {
			if err := sem.Acquire(egCtx, 1); err != nil {
				return apperr.Wrap("query.Run", "", fmt.Errorf("%w: %v", apperr.ErrConcurrency, err))
			}
			defer sem.Release(1)

			result, err := o.runGroup(egCtx, g, scoped)
			if err != nil {
				return err
			}
			perGroup[i] = result
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return mergeGroups(perGroup), nil
}

// preScopeTopics returns the allowed topic-id set for Run. A nil slice
// means "any topic". It does not resolve SequenceFilter/TopicFilter
// against the catalog: it returns nil for every Filter, so Sequence and
// Topic constraints are not applied by the orchestrator.
func (o *Orchestrator) preScopeTopics(ctx context.Context, f filter.Filter) ([]int64, error) {
	if f.Sequence.IsEmpty() && f.Topic.IsEmpty() {
		return nil, nil
	}
	// Sequence/topic attribute filtering (by name, creation, tag, format)
	// is not performed here, and Filter carries no topic-id list.
	return nil, nil
}

// runGroup executes §4.8 step 3 for one ontology-tag group: compile,
// query the catalog, pre-fetch topics, confirm each candidate chunk at
// the row level, project to sequences.
func (o *Orchestrator) runGroup(ctx context.Context, g filter.ExprGroup[value.Value], topicAllowList []int64) (models.SequenceTopicGroups, error) {
	tag := g.Exprs[0].Field.Tag()

	query, args, err := o.builder.Compile(tag, g, topicAllowList)
	if err == catalog.ErrEmptyCandidateSet {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	candidates, err := o.repo.QueryCandidateChunks(ctx, tag, query, args)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("tag", tag).Int("candidates", len(candidates)).Msg("running group against candidate chunks")
	if len(candidates) == 0 {
		return nil, nil
	}

	topicIDs := make([]int64, 0, len(candidates))
	seen := map[int64]bool{}
	for _, c := range candidates {
		if !seen[c.TopicID] {
			seen[c.TopicID] = true
			topicIDs = append(topicIDs, c.TopicID)
		}
	}
	topics, err := o.repo.TopicsByID(ctx, topicIDs)
	if err != nil {
		return nil, err
	}

	qualifyingTopics := map[int64]bool{}
	topicBatchSize := map[int64]int{}
	for _, c := range candidates {
		topic, ok := topics[c.TopicID]
		if !ok {
			continue
		}
		data, err := o.store.Open(c.DataFile)
		if err != nil {
			return nil, err
		}
		schema := o.resolveSchema(topic)

		batchSize, ok := topicBatchSize[c.TopicID]
		if !ok {
			batchSize = o.inferTopicBatchSize(ctx, c.TopicID)
			topicBatchSize[c.TopicID] = batchSize
		}

		reader, err := chunkio.Open(schema, format.Default, [][]byte{data}, batchSize)
		if err != nil {
			return nil, err
		}
		if reader.Exists(g) {
			qualifyingTopics[c.TopicID] = true
		}
	}
	log.Debug().Str("tag", tag).Int("qualifying_topics", len(qualifyingTopics)).Msg("row-level filter resolved")

	sequenceIDs := make([]int64, 0)
	seenSeq := map[int64]bool{}
	bySequence := map[int64][]models.Topic{}
	for topicID := range qualifyingTopics {
		topic := topics[topicID]
		if !seenSeq[topic.SequenceID] {
			seenSeq[topic.SequenceID] = true
			sequenceIDs = append(sequenceIDs, topic.SequenceID)
		}
		bySequence[topic.SequenceID] = append(bySequence[topic.SequenceID], topic)
	}
	sequences, err := o.repo.SequencesByID(ctx, sequenceIDs)
	if err != nil {
		return nil, err
	}

	out := make(models.SequenceTopicGroups, 0, len(bySequence))
	for seqID, topicList := range bySequence {
		out = append(out, models.SequenceTopicGroup{Sequence: sequences[seqID], Topics: topicList})
	}
	return out, nil
}

// inferTopicBatchSize applies §4.7's batch-size policy using the topic's
// real byte/row totals (catalog.Repository.TopicStats) rather than a
// per-chunk guess: the statistic is a whole-topic aggregate, matching what
// the original engine computes it from. Falls back to the engine default
// (0) if the lookup fails or the topic has no committed chunks yet.
func (o *Orchestrator) inferTopicBatchSize(ctx context.Context, topicID int64) int {
	stats, err := o.repo.TopicStats(ctx, topicID)
	if err != nil {
		log.Debug().Err(err).Int64("topic_id", topicID).Msg("topic stats lookup failed, using engine default batch size")
		return 0
	}
	size := chunkio.InferBatchSize(o.targetMessageSizeInBytes, stats.TotalRowCount, stats.TotalSizeBytes)
	log.Trace().Int64("topic_id", topicID).Int64("batch_size", size).Msg("inferred read batch size")
	return int(size)
}

// projectAllowList handles the no-ontology-filter shortcut (§4.8 step 4):
// return T* grouped by sequence directly, skipping per-group work. An
// empty or nil allow-list ("any topic") yields nil: it does not list
// every topic in the catalog.
func (o *Orchestrator) projectAllowList(ctx context.Context, topicAllowList []int64) (models.SequenceTopicGroups, error) {
	if len(topicAllowList) == 0 {
		return nil, nil
	}
	topics, err := o.repo.TopicsByID(ctx, topicAllowList)
	if err != nil {
		return nil, err
	}
	bySequence := map[int64][]models.Topic{}
	var sequenceIDs []int64
	seen := map[int64]bool{}
	for _, topic := range topics {
		if !seen[topic.SequenceID] {
			seen[topic.SequenceID] = true
			sequenceIDs = append(sequenceIDs, topic.SequenceID)
		}
		bySequence[topic.SequenceID] = append(bySequence[topic.SequenceID], topic)
	}
	sequences, err := o.repo.SequencesByID(ctx, sequenceIDs)
	if err != nil {
		return nil, err
	}
	out := make(models.SequenceTopicGroups, 0, len(bySequence))
	for seqID, topicList := range bySequence {
		out = append(out, models.SequenceTopicGroup{Sequence: sequences[seqID], Topics: topicList})
	}
	return out, nil
}

// mergeGroups implements §4.8 step 4's merge: intersect on sequences
// (a sequence must satisfy every group), union on topics within each
// surviving sequence.
func mergeGroups(perGroup []models.SequenceTopicGroups) models.SequenceTopicGroups {
	if len(perGroup) == 0 {
		return nil
	}

	sequenceCount := map[int64]int{}
	sequenceRow := map[int64]models.Sequence{}
	topicsBySequence := map[int64]map[int64]models.Topic{}

	for _, group := range perGroup {
		present := map[int64]bool{}
		for _, stg := range group {
			seqID := stg.Sequence.ID
			if !present[seqID] {
				present[seqID] = true
				sequenceCount[seqID]++
				sequenceRow[seqID] = stg.Sequence
			}
			if topicsBySequence[seqID] == nil {
				topicsBySequence[seqID] = map[int64]models.Topic{}
			}
			for _, t := range stg.Topics {
				topicsBySequence[seqID][t.ID] = t
			}
		}
	}

	var out models.SequenceTopicGroups
	for seqID, count := range sequenceCount {
		if count != len(perGroup) {
			continue
		}
		topics := make([]models.Topic, 0, len(topicsBySequence[seqID]))
		for _, t := range topicsBySequence[seqID] {
			topics = append(topics, t)
		}
		out = append(out, models.SequenceTopicGroup{Sequence: sequenceRow[seqID], Topics: topics})
	}
	return out
}
