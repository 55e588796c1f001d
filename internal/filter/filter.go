// Package filter implements the filter model (C2): per-domain filters over
// sequences, topics and ontology data, plus the ontology-tag partitioning
// that the query orchestrator (C8) fans concurrent work out over.
package filter

import (
	"github.com/chronocat/chronocat/internal/ontology"
	"github.com/chronocat/chronocat/internal/value"
)

// Expr binds an ontology field to a predicate over it — a single constraint
// such as "temperature > 25.0".
type Expr[T value.Capable] struct {
	Field ontology.Field
	Op    value.Op[T]
}

func NewExpr[T value.Capable](field ontology.Field, op value.Op[T]) Expr[T] {
	return Expr[T]{Field: field, Op: op}
}

// ExprGroup is an ordered set of expressions. OntologyFilter flattens into
// one before splitting by tag.
type ExprGroup[T value.Capable] struct {
	Exprs []Expr[T]
}

func NewExprGroup[T value.Capable](exprs ...Expr[T]) ExprGroup[T] {
	return ExprGroup[T]{Exprs: exprs}
}

// SplitByOntologyTag partitions the group by each expression's ontology
// tag: every chunk encodes exactly one ontology model, so predicates across
// different tags can never be satisfied by a single chunk (§4.2). The
// result is a partition (spec invariant 4): every expression appears in
// exactly one returned group, and concatenating the groups reconstructs the
// original multiset. Groups are returned in the order each tag first
// appears in g.Exprs.
func (g ExprGroup[T]) SplitByOntologyTag() []ExprGroup[T] {
	byTag := make(map[string][]Expr[T])
	var order []string
	for _, e := range g.Exprs {
		tag := e.Field.Tag()
		if _, ok := byTag[tag]; !ok {
			order = append(order, tag)
		}
		byTag[tag] = append(byTag[tag], e)
	}
	groups := make([]ExprGroup[T], 0, len(order))
	for _, tag := range order {
		groups = append(groups, ExprGroup[T]{Exprs: byTag[tag]})
	}
	return groups
}

// OntologyFilter maps ontology fields to predicates over Value. Absent
// domain in a Filter means no constraint.
type OntologyFilter struct {
	m map[ontology.Field]value.Op[value.Value]
}

func NewOntologyFilter() *OntologyFilter {
	return &OntologyFilter{m: make(map[ontology.Field]value.Op[value.Value])}
}

func (f *OntologyFilter) Set(field ontology.Field, op value.Op[value.Value]) {
	f.m[field] = op
}

func (f *OntologyFilter) Get(field ontology.Field) (value.Op[value.Value], bool) {
	op, ok := f.m[field]
	return op, ok
}

func (f *OntologyFilter) Len() int { return len(f.m) }

// IntoExprGroup flattens the filter's map into a single unpartitioned group.
func (f *OntologyFilter) IntoExprGroup() ExprGroup[value.Value] {
	exprs := make([]Expr[value.Value], 0, len(f.m))
	for field, op := range f.m {
		exprs = append(exprs, Expr[value.Value]{Field: field, Op: op})
	}
	return ExprGroup[value.Value]{Exprs: exprs}
}

// SequenceFilter constrains sequences by name, creation time and
// user-supplied metadata. Nil fields impose no constraint.
type SequenceFilter struct {
	Name         *value.Op[value.Value]
	Creation     *value.Op[value.Value]
	UserMetadata *OntologyFilter
}

func (f *SequenceFilter) IsEmpty() bool {
	return f == nil || (f.Name == nil && f.Creation == nil && f.UserMetadata == nil)
}

// TopicFilter constrains topics by name, creation, ontology_tag,
// serialization_format and user-supplied metadata.
type TopicFilter struct {
	Name                 *value.Op[value.Value]
	Creation             *value.Op[value.Value]
	OntologyTag          *value.Op[value.Value]
	SerializationFormat  *value.Op[value.Value]
	UserMetadata         *OntologyFilter
}

func (f *TopicFilter) IsEmpty() bool {
	return f == nil || (f.Name == nil && f.Creation == nil && f.OntologyTag == nil &&
		f.SerializationFormat == nil && f.UserMetadata == nil)
}

// Filter is the root query object: all three domains are optional.
type Filter struct {
	Sequence *SequenceFilter
	Topic    *TopicFilter
	Ontology *OntologyFilter
}

func (f Filter) IsEmpty() bool {
	return f.Sequence.IsEmpty() && f.Topic.IsEmpty() && (f.Ontology == nil || f.Ontology.Len() == 0)
}
