package stats

import (
	"math"
	"testing"
)

func ptr(f float64) *float64 { return &f }

// TestNumericStatsNaNHandling mirrors scenario S4: a column containing
// [1.0, NaN, 3.0, null] yields min=1.0, max=3.0, has_nan=true, has_null=true.
func TestNumericStatsNaNHandling(t *testing.T) {
	s := NewNumeric()
	s.Eval(ptr(1.0))
	s.Eval(ptr(math.NaN()))
	s.Eval(ptr(3.0))
	s.Eval(nil)

	if s.Min != 1.0 {
		t.Errorf("Min = %v, want 1.0", s.Min)
	}
	if s.Max != 3.0 {
		t.Errorf("Max = %v, want 3.0", s.Max)
	}
	if !s.HasNaN {
		t.Error("HasNaN should be true")
	}
	if !s.HasNull {
		t.Error("HasNull should be true")
	}
}

func TestNumericStatsEmptyStreamSentinel(t *testing.T) {
	s := NewNumeric()
	if s.Observed() {
		t.Error("a stream with no observations must not report Observed()")
	}
	if s.Min != numericMinPlaceholder || s.Max != numericMaxPlaceholder {
		t.Error("sentinels must remain untouched for an empty stream")
	}
}

func TestNumericStatsMergeAssociativeCommutative(t *testing.T) {
	a := NewNumeric()
	a.Eval(ptr(5.0))
	a.Eval(ptr(1.0))

	b := NewNumeric()
	b.Eval(ptr(10.0))
	b.Eval(nil)

	c := NewNumeric()
	c.Eval(ptr(-2.0))

	// (a merge b) merge c
	ab := a
	ab.Merge(&b.Min, &b.Max, b.HasNull, b.HasNaN)
	abc := ab
	abc.Merge(&c.Min, &c.Max, c.HasNull, c.HasNaN)

	// a merge (b merge c), i.e. regrouped
	bc := b
	bc.Merge(&c.Min, &c.Max, c.HasNull, c.HasNaN)
	a2 := a
	a2.Merge(&bc.Min, &bc.Max, bc.HasNull, bc.HasNaN)

	if abc.Min != a2.Min || abc.Max != a2.Max || abc.HasNull != a2.HasNull {
		t.Errorf("merge not associative: %+v vs %+v", abc, a2)
	}

	// (c merge b) merge a, i.e. commuted order
	cba := c
	cba.Merge(&b.Min, &b.Max, b.HasNull, b.HasNaN)
	cba.Merge(&a.Min, &a.Max, a.HasNull, a.HasNaN)
	if abc.Min != cba.Min || abc.Max != cba.Max || abc.HasNull != cba.HasNull {
		t.Errorf("merge not commutative: %+v vs %+v", abc, cba)
	}
	if abc.Min != -2.0 || abc.Max != 10.0 || !abc.HasNull {
		t.Errorf("unexpected merged stats: %+v", abc)
	}
}

func strp(s string) *string { return &s }

func TestTextStatsSentinelReplacedOnFirstObservation(t *testing.T) {
	s := NewText()
	s.Eval(strp("imu_rear"))
	if s.Min != "imu_rear" || s.Max != "imu_rear" {
		t.Errorf("first observation should replace sentinel, got %+v", s)
	}
	s.Eval(strp("imu_front"))
	if s.Min != "imu_front" {
		t.Errorf("Min should update lexicographically, got %q", s.Min)
	}
	if s.Max != "imu_rear" {
		t.Errorf("Max should remain %q, got %q", "imu_rear", s.Max)
	}
}

func TestTextStatsMergeAssociative(t *testing.T) {
	a := NewText()
	a.Eval(strp("b"))
	b := NewText()
	b.Eval(strp("a"))
	c := NewText()
	c.Eval(strp("z"))

	ab := a
	ab.Merge(&b.Min, &b.Max, b.HasNull)
	abc := ab
	abc.Merge(&c.Min, &c.Max, c.HasNull)

	if abc.Min != "a" || abc.Max != "z" {
		t.Errorf("unexpected merged text stats: %+v", abc)
	}

	bc := b
	bc.Merge(&c.Min, &c.Max, c.HasNull)
	a2 := a
	a2.Merge(&bc.Min, &bc.Max, bc.HasNull)
	if a2.Min != abc.Min || a2.Max != abc.Max {
		t.Errorf("text merge not associative: %+v vs %+v", abc, a2)
	}
}

func TestStatsUnsupportedVariant(t *testing.T) {
	s := Unsupported()
	if !s.IsUnsupported() {
		t.Error("Unsupported() should report IsUnsupported() true")
	}
	if _, ok := s.Numeric(); ok {
		t.Error("Unsupported stats should not yield a numeric accumulator")
	}
}
