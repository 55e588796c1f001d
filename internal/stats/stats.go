// Package stats implements the column statistics model (C3): numeric and
// textual per-column accumulators with associative, commutative merge
// semantics, used both by the chunk writer's fast/slow aggregation paths
// and by the catalog's stored per-chunk min/max/null rows.
package stats

import "math"

const (
	numericMinPlaceholder = math.MaxFloat64
	numericMaxPlaceholder = -math.MaxFloat64
	textPlaceholder       = ""
)

// NumericStats accumulates min/max/null/NaN presence for one column across
// one or more record batches. The zero value is not valid; use NewNumeric.
type NumericStats struct {
	Min     float64
	Max     float64
	HasNull bool
	HasNaN  bool
}

func NewNumeric() NumericStats {
	return NumericStats{Min: numericMinPlaceholder, Max: numericMaxPlaceholder}
}

// Eval folds a single observation. A nil val is a null. NaN sets HasNaN and
// is excluded from the min/max comparison — min/max only ever reflect real
// numeric observations.
func (s *NumericStats) Eval(val *float64) {
	if val == nil {
		s.HasNull = true
		return
	}
	v := *val
	if math.IsNaN(v) {
		s.HasNaN = true
		return
	}
	if v < s.Min {
		s.Min = v
	}
	if v > s.Max {
		s.Max = v
	}
}

// Merge folds pre-aggregated partial stats — cheaper than re-evaluating
// every value when the columnar encoder already carries page statistics
// (§4.4's fast path). min/max are pointers because a page with only
// null/NaN values carries no meaningful bound to fold in.
func (s *NumericStats) Merge(min, max *float64, hasNull, hasNaN bool) {
	if min != nil && *min < s.Min {
		s.Min = *min
	}
	if max != nil && *max > s.Max {
		s.Max = *max
	}
	s.HasNull = s.HasNull || hasNull
	s.HasNaN = s.HasNaN || hasNaN
}

// Observed reports whether at least one non-null, non-NaN value was folded
// in — i.e. whether Min/Max hold a real range rather than the sentinel
// "no observations" placeholders.
func (s NumericStats) Observed() bool {
	return s.Min <= s.Max
}

// TextStats accumulates lexicographic min/max/null presence for one text
// column. The empty string is both the initial and "never set" sentinel;
// the first real observation always replaces it.
type TextStats struct {
	Min     string
	Max     string
	HasNull bool
}

func NewText() TextStats {
	return TextStats{Min: textPlaceholder, Max: textPlaceholder}
}

func (s *TextStats) Eval(val *string) {
	if val == nil {
		s.HasNull = true
		return
	}
	v := *val
	if s.Min == textPlaceholder || v < s.Min {
		s.Min = v
	}
	if s.Max == textPlaceholder || v > s.Max {
		s.Max = v
	}
}

// Merge folds pre-aggregated partial text stats, following the same
// never-set sentinel convention as Eval.
func (s *TextStats) Merge(min, max *string, hasNull bool) {
	if min != nil && (s.Min == textPlaceholder || *min < s.Min) {
		s.Min = *min
	}
	if max != nil && (s.Max == textPlaceholder || *max > s.Max) {
		s.Max = *max
	}
	s.HasNull = s.HasNull || hasNull
}

// Kind tags which concrete accumulator (if any) a Stats value holds.
type Kind int

const (
	KindNumeric Kind = iota
	KindText
	KindUnsupported
)

// Stats is the per-column result the writer emits: either a numeric or text
// accumulator, or Unsupported for columns whose data type the writer does
// not profile (nested structs without flattened accessors, binary blobs).
// Downstream consumers must skip — never index — unsupported columns.
type Stats struct {
	kind    Kind
	numeric NumericStats
	text    TextStats
}

func FromNumeric(n NumericStats) Stats { return Stats{kind: KindNumeric, numeric: n} }
func FromText(t TextStats) Stats       { return Stats{kind: KindText, text: t} }
func Unsupported() Stats               { return Stats{kind: KindUnsupported} }

func (s Stats) Kind() Kind                 { return s.kind }
func (s Stats) IsUnsupported() bool        { return s.kind == KindUnsupported }
func (s Stats) Numeric() (NumericStats, bool) {
	return s.numeric, s.kind == KindNumeric
}
func (s Stats) Text() (TextStats, bool) {
	return s.text, s.kind == KindText
}

// ColumnsStats maps column name to its accumulated Stats, the shape the
// writer's Finalize returns and the write coordinator (C9) iterates.
type ColumnsStats map[string]Stats
