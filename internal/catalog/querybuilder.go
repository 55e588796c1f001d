package catalog

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/chronocat/chronocat/internal/apperr"
	"github.com/chronocat/chronocat/internal/filter"
	"github.com/chronocat/chronocat/internal/value"
)

// ChunkCandidate is one row of C6's output: a chunk whose recorded stats do
// not rule out a match, paired with enough identity to open it via C7.
type ChunkCandidate struct {
	ChunkID   int64
	TopicID   int64
	DataFile  string
	SizeBytes int64
	RowCount  int64
}

// ErrEmptyCandidateSet signals the empty-In short-circuit (§4.6 edge
// case): the caller must not issue the query at all.
var ErrEmptyCandidateSet = fmt.Errorf("catalog: In([]) yields an empty candidate set")

// ChunkQueryBuilder compiles a per-ontology-tag expression group into a
// parameterized SQL query over chunk_t joined against the stats tables
// (C6). Stateless; safe for concurrent use.
type ChunkQueryBuilder struct{}

func NewChunkQueryBuilder() *ChunkQueryBuilder { return &ChunkQueryBuilder{} }

// Compile returns the query text and bound argument list for the given
// ontology tag, expression group and optional topic id allow-list. Returns
// ErrEmptyCandidateSet when any In(...) predicate is empty, and
// *apperr.UnsupportedOperationError when an operator is not supported by
// its operand's variant (§4.1).
func (b *ChunkQueryBuilder) Compile(tag string, group filter.ExprGroup[value.Value], topicAllowList []int64) (string, []any, error) {
	args := []any{tag}
	argN := 2

	var joins []string
	var wheres []string

	for i, expr := range group.Exprs {
		op := expr.Op

		if op.Kind() == value.OpIn && len(op.Set()) == 0 {
			return "", nil, ErrEmptyCandidateSet
		}
		if !op.IsSupportedOp() {
			return "", nil, &apperr.UnsupportedOperationError{
				Variant:  operandKind(op).String(),
				Operator: op.Kind().String(),
			}
		}

		// Ex/Nex/Match retain every chunk unconditionally (§4.6): no stats
		// join can ever narrow them without risking unsound exclusion.
		if op.Kind() == value.OpEx || op.Kind() == value.OpNex || op.Kind() == value.OpMatch {
			continue
		}

		numeric := operandKind(op) != value.KindText
		table := "column_chunk_literal_t"
		if numeric {
			table = "column_chunk_numeric_t"
		}
		colAlias := fmt.Sprintf("col%d", i)
		statsAlias := fmt.Sprintf("s%d", i)

		joins = append(joins, fmt.Sprintf(
			"JOIN column_t %s ON %s.column_name = $%d AND %s.ontology_tag = $1",
			colAlias, colAlias, argN, colAlias,
		))
		args = append(args, expr.Field.Remainder())
		argN++

		joins = append(joins, fmt.Sprintf(
			"JOIN %s %s ON %s.column_id = %s.column_id AND %s.chunk_id = chunk_t.chunk_id",
			table, statsAlias, statsAlias, colAlias, statsAlias,
		))

		clause, clauseArgs, nextArgN := retainClause(statsAlias, op, argN)
		argN = nextArgN
		if clause != "" {
			wheres = append(wheres, clause)
			args = append(args, clauseArgs...)
		}
	}

	var q strings.Builder
	q.WriteString("SELECT chunk_t.chunk_id, chunk_t.topic_id, chunk_t.data_file, chunk_t.size_bytes, chunk_t.row_count ")
	q.WriteString("FROM chunk_t JOIN topic_t ON topic_t.topic_id = chunk_t.topic_id ")
	for _, j := range joins {
		q.WriteString(j)
		q.WriteString(" ")
	}
	q.WriteString("WHERE topic_t.ontology_tag = $1")
	for _, w := range wheres {
		q.WriteString(" AND ")
		q.WriteString(w)
	}
	if len(topicAllowList) > 0 {
		q.WriteString(fmt.Sprintf(" AND chunk_t.topic_id = ANY($%d)", argN))
		args = append(args, topicAllowList)
		argN++
	}

	compiled := q.String()
	log.Trace().Str("tag", tag).Int("exprs", len(group.Exprs)).Str("sql", compiled).Msg("compiled chunk query builder output")
	return compiled, args, nil
}

// operandKind reports the Kind driving numeric-vs-literal table selection
// for an Op, per its first meaningful operand.
func operandKind(op value.Op[value.Value]) value.Kind {
	switch op.Kind() {
	case value.OpBetween:
		return op.Range().Min.Kind()
	case value.OpIn:
		if len(op.Set()) > 0 {
			return op.Set()[0].Kind()
		}
		return value.KindInteger
	case value.OpEx, value.OpNex:
		return value.KindInteger
	default:
		return op.Operand().Kind()
	}
}

// retainClause produces the SQL fragment implementing §4.6's per-operator
// retain-iff rule, plus the values it binds and the next free arg index.
// Booleans are bound as {0.0, 1.0} (handled by valueArg) to fit the
// numeric stats schema.
func retainClause(alias string, op value.Op[value.Value], argN int) (string, []any, int) {
	switch op.Kind() {
	case value.OpEq:
		v := valueArg(op.Operand())
		return fmt.Sprintf("%s.min_value <= $%d AND %s.max_value >= $%d", alias, argN, alias, argN), []any{v}, argN + 1
	case value.OpNeq:
		v := valueArg(op.Operand())
		return fmt.Sprintf("NOT (%s.min_value = $%d AND %s.max_value = $%d)", alias, argN, alias, argN), []any{v}, argN + 1
	case value.OpLeq:
		v := valueArg(op.Operand())
		return fmt.Sprintf("%s.min_value <= $%d", alias, argN), []any{v}, argN + 1
	case value.OpGeq:
		v := valueArg(op.Operand())
		return fmt.Sprintf("%s.max_value >= $%d", alias, argN), []any{v}, argN + 1
	case value.OpLt:
		v := valueArg(op.Operand())
		return fmt.Sprintf("%s.min_value < $%d", alias, argN), []any{v}, argN + 1
	case value.OpGt:
		v := valueArg(op.Operand())
		return fmt.Sprintf("%s.max_value > $%d", alias, argN), []any{v}, argN + 1
	case value.OpBetween:
		rng := op.Range()
		a, bnd := valueArg(rng.Min), valueArg(rng.Max)
		clause := fmt.Sprintf("%s.max_value >= $%d AND %s.min_value <= $%d", alias, argN, alias, argN+1)
		return clause, []any{a, bnd}, argN + 2
	case value.OpIn:
		var parts []string
		var args []any
		n := argN
		for _, item := range op.Set() {
			parts = append(parts, fmt.Sprintf("(%s.min_value <= $%d AND %s.max_value >= $%d)", alias, n, alias, n))
			args = append(args, valueArg(item))
			n++
		}
		return "(" + strings.Join(parts, " OR ") + ")", args, n
	default:
		return "", nil, argN
	}
}

func valueArg(v value.Value) any {
	if v.Kind() == value.KindText {
		return v.TextValue()
	}
	f, _ := v.AsFloat64()
	return f
}
