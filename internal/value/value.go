// Package value implements the small, closed scalar algebra (C1) that the
// filter and catalog packages build predicates over: a tagged Value variant,
// a capability table describing which operator classes each variant
// supports, and the generic Op/Range predicate types themselves.
package value

import (
	"fmt"

	"github.com/chronocat/chronocat/internal/apperr"
)

// Kind tags a Value's underlying variant.
type Kind int

const (
	KindInteger Kind = iota
	KindFloat
	KindText
	KindBoolean
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// Value is a heterogeneous scalar: exactly one of Integer, Float, Text or
// Boolean is meaningful, selected by Kind. Timestamp has no distinct variant
// — it is an Integer carrying millisecond epoch semantics (§3).
type Value struct {
	kind    Kind
	integer int64
	float   float64
	text    string
	boolean bool
}

func Integer(v int64) Value   { return Value{kind: KindInteger, integer: v} }
func Timestamp(ms int64) Value { return Value{kind: KindInteger, integer: ms} }
func Float(v float64) Value   { return Value{kind: KindFloat, float: v} }
func Text(v string) Value     { return Value{kind: KindText, text: v} }
func Boolean(v bool) Value    { return Value{kind: KindBoolean, boolean: v} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IntegerValue() int64  { return v.integer }
func (v Value) FloatValue() float64  { return v.float }
func (v Value) TextValue() string    { return v.text }
func (v Value) BooleanValue() bool   { return v.boolean }

// AsFloat64 folds any numeric-capable variant to float64, the representation
// the catalog stats tables use. Boolean folds to {0.0, 1.0} per §4.6.
func (v Value) AsFloat64() (float64, bool) {
	switch v.kind {
	case KindInteger:
		return float64(v.integer), true
	case KindFloat:
		return v.float, true
	case KindBoolean:
		if v.boolean {
			return 1.0, true
		}
		return 0.0, true
	default:
		return 0, false
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindInteger:
		return fmt.Sprintf("%d", v.integer)
	case KindFloat:
		return fmt.Sprintf("%g", v.float)
	case KindText:
		return v.text
	case KindBoolean:
		return fmt.Sprintf("%t", v.boolean)
	default:
		return ""
	}
}

// capability is the per-variant operator-class support row from §4.1.
type capability struct {
	eq    bool
	order bool
	in    bool
	match bool
}

// capabilities implements spec.md §4.1's table exactly. Integer and Text
// support In; Boolean does not — see Open Question decision 1 in DESIGN.md,
// which departs from original_source's Value::support_in (true only for
// Boolean) in favor of the table, the table's own per-type impls agree with
// this reading.
var capabilities = map[Kind]capability{
	KindInteger: {eq: true, order: true, in: true, match: false},
	KindFloat:   {eq: true, order: true, in: false, match: false},
	KindText:    {eq: true, order: false, in: true, match: true},
	KindBoolean: {eq: true, order: false, in: false, match: false},
}

func (v Value) supportEq() bool    { return capabilities[v.kind].eq }
func (v Value) supportOrder() bool { return capabilities[v.kind].order }
func (v Value) supportIn() bool    { return capabilities[v.kind].in }
func (v Value) supportMatch() bool { return capabilities[v.kind].match }

// Capable constrains the generic Op[T]/Range[T] machinery to the types that
// carry a capability row: Value itself, or a statically-typed scalar
// wrapper that a caller already knows the kind of.
type Capable interface {
	supportEq() bool
	supportOrder() bool
	supportIn() bool
	supportMatch() bool
}

var (
	_ Capable = Value{}
)

// OpKind tags an Op's comparison class.
type OpKind int

const (
	OpEq OpKind = iota
	OpNeq
	OpLeq
	OpGeq
	OpLt
	OpGt
	OpEx
	OpNex
	OpBetween
	OpIn
	OpMatch
)

func (k OpKind) String() string {
	switch k {
	case OpEq:
		return "Eq"
	case OpNeq:
		return "Neq"
	case OpLeq:
		return "Leq"
	case OpGeq:
		return "Geq"
	case OpLt:
		return "Lt"
	case OpGt:
		return "Gt"
	case OpEx:
		return "Ex"
	case OpNex:
		return "Nex"
	case OpBetween:
		return "Between"
	case OpIn:
		return "In"
	case OpMatch:
		return "Match"
	default:
		return "Unknown"
	}
}

// Range is an inclusive [Min, Max] bound used by Op.Between. Construct it
// via NewRange, which enforces Min <= Max (spec invariant 5).
type Range[T Capable] struct {
	Min T
	Max T
}

func NewRange[T Capable](min, max T) (Range[T], error) {
	if !lessOrEqual(min, max) {
		return Range[T]{}, apperr.ErrEmptyRange
	}
	return Range[T]{Min: min, Max: max}, nil
}

// lessOrEqual compares two Capable operands. Value is the only concrete
// Capable type in this package; ordering is defined per-kind.
func lessOrEqual(a, b Capable) bool {
	av, aok := a.(Value)
	bv, bok := b.(Value)
	if !aok || !bok {
		return true
	}
	switch av.kind {
	case KindInteger:
		return av.integer <= bv.integer
	case KindFloat:
		return av.float <= bv.float
	case KindText:
		return av.text <= bv.text
	case KindBoolean:
		return !av.boolean || bv.boolean
	default:
		return true
	}
}

// Op is a predicate over a value domain: one of {Eq, Neq, Leq, Geq, Lt, Gt,
// Ex, Nex, Between, In, Match}. Zero value is meaningless; construct via the
// package-level constructors.
type Op[T Capable] struct {
	kind    OpKind
	operand T
	rng     Range[T]
	set     []T
}

func Eq[T Capable](v T) Op[T]      { return Op[T]{kind: OpEq, operand: v} }
func Neq[T Capable](v T) Op[T]     { return Op[T]{kind: OpNeq, operand: v} }
func Leq[T Capable](v T) Op[T]     { return Op[T]{kind: OpLeq, operand: v} }
func Geq[T Capable](v T) Op[T]     { return Op[T]{kind: OpGeq, operand: v} }
func Lt[T Capable](v T) Op[T]      { return Op[T]{kind: OpLt, operand: v} }
func Gt[T Capable](v T) Op[T]      { return Op[T]{kind: OpGt, operand: v} }
func Match[T Capable](v T) Op[T]   { return Op[T]{kind: OpMatch, operand: v} }

func Ex[T Capable]() Op[T]  { var zero T; return Op[T]{kind: OpEx, operand: zero} }
func Nex[T Capable]() Op[T] { var zero T; return Op[T]{kind: OpNex, operand: zero} }

func Between[T Capable](min, max T) (Op[T], error) {
	rng, err := NewRange(min, max)
	if err != nil {
		return Op[T]{}, err
	}
	return Op[T]{kind: OpBetween, rng: rng}, nil
}

// In constructs a set-membership predicate. An empty set is accepted at
// construction (validation happens at filter-compile time, per §4.1) but is
// handled specially by the catalog query builder (§4.6 edge case).
func In[T Capable](items []T) Op[T] {
	return Op[T]{kind: OpIn, set: items}
}

func (o Op[T]) Kind() OpKind    { return o.kind }
func (o Op[T]) Operand() T      { return o.operand }
func (o Op[T]) Range() Range[T] { return o.rng }
func (o Op[T]) Set() []T        { return o.set }

// IsSupportedOp reports whether the operator class is supported by its
// operand's variant, per §4.1. Construction never fails; this must be
// queried before compiling the predicate (filter-compile time).
func (o Op[T]) IsSupportedOp() bool {
	switch o.kind {
	case OpEq, OpNeq:
		return o.operand.supportEq()
	case OpLeq, OpGeq, OpLt, OpGt:
		return o.operand.supportOrder()
	case OpEx, OpNex:
		return true
	case OpBetween:
		return o.rng.Min.supportOrder()
	case OpIn:
		if len(o.set) == 0 {
			// No operand to consult; treat In([]) as supported — the
			// catalog query builder special-cases the empty set before
			// ever reaching a capability check.
			return true
		}
		return o.set[0].supportIn()
	case OpMatch:
		return o.operand.supportMatch()
	default:
		return false
	}
}
