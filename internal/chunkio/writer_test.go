package chunkio

import (
	"math"
	"testing"

	"github.com/chronocat/chronocat/internal/apperr"
	"github.com/chronocat/chronocat/internal/format"
	"github.com/chronocat/chronocat/internal/value"
)

func boolSlice(n int, v bool) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestWriterRejectsSchemaMismatch(t *testing.T) {
	schema := Schema{Fields: []Field{{Name: "timestamp", Type: TypeInt64}}}
	w, err := TryNew(schema, format.Default)
	if err != nil {
		t.Fatalf("TryNew: %v", err)
	}

	other := RecordBatch{
		Schema:  Schema{Fields: []Field{{Name: "reading", Type: TypeFloat64}}},
		NumRows: 1,
		Columns: map[string]*Column{
			"reading": {Type: TypeFloat64, Values: []value.Value{value.Float(1.0)}, Valid: []bool{true}},
		},
	}

	err = w.Write(other)
	if err == nil {
		t.Fatal("expected SchemaMismatch error")
	}
	var mismatch *apperr.SchemaMismatchError
	if !asSchemaMismatch(err, &mismatch) {
		t.Errorf("expected *apperr.SchemaMismatchError, got %T: %v", err, err)
	}
}

func asSchemaMismatch(err error, target **apperr.SchemaMismatchError) bool {
	if m, ok := err.(*apperr.SchemaMismatchError); ok {
		*target = m
		return true
	}
	return false
}

func TestWriterFinalizeConsumesWriter(t *testing.T) {
	schema := Schema{Fields: []Field{{Name: "timestamp", Type: TypeInt64}}}
	w, err := TryNew(schema, format.Default)
	if err != nil {
		t.Fatalf("TryNew: %v", err)
	}
	if _, _, err := w.Finalize(); err != nil {
		t.Fatalf("first Finalize: %v", err)
	}
	if _, _, err := w.Finalize(); err == nil {
		t.Error("second Finalize should fail: writer already consumed")
	}
	if err := w.Write(RecordBatch{Schema: schema, NumRows: 0, Columns: map[string]*Column{}}); err == nil {
		t.Error("Write after Finalize should fail")
	}
}

// TestWriterNestedStructSlowPath exercises the slow statistics path, which
// runs entirely during Write and does not depend on encoder page statistics.
func TestWriterNestedStructSlowPath(t *testing.T) {
	schema := Schema{Fields: []Field{
		{Name: "timestamp", Type: TypeInt64},
		{Name: "position", Type: TypeStruct, Children: []Field{
			{Name: "x", Type: TypeFloat64},
			{Name: "y", Type: TypeFloat64},
		}},
	}}
	w, err := TryNew(schema, format.Default)
	if err != nil {
		t.Fatalf("TryNew: %v", err)
	}

	batch := RecordBatch{
		Schema:  schema,
		NumRows: 3,
		Columns: map[string]*Column{
			"timestamp": {
				Type:   TypeInt64,
				Values: []value.Value{value.Integer(1), value.Integer(2), value.Integer(3)},
				Valid:  boolSlice(3, true),
			},
			"position": {
				Type: TypeStruct,
				Children: map[string]*Column{
					"x": {
						Type:   TypeFloat64,
						Values: []value.Value{value.Float(1.5), value.Float(-2.0), value.Float(0.0)},
						Valid:  []bool{true, true, false},
					},
					"y": {
						Type:   TypeFloat64,
						Values: []value.Value{value.Float(10.0), value.Float(20.0), value.Float(30.0)},
						Valid:  boolSlice(3, true),
					},
				},
			},
		},
	}

	if err := w.Write(batch); err != nil {
		t.Fatalf("Write: %v", err)
	}
	_, columnStats, err := w.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	xStats, ok := columnStats["position.x"].Numeric()
	if !ok {
		t.Fatal("expected numeric stats for position.x")
	}
	if xStats.Min != -2.0 || xStats.Max != 1.5 {
		t.Errorf("position.x stats = %+v, want min -2.0 max 1.5", xStats)
	}
	if !xStats.HasNull {
		t.Error("position.x should report HasNull: one row was invalid")
	}

	yStats, ok := columnStats["position.y"].Numeric()
	if !ok {
		t.Fatal("expected numeric stats for position.y")
	}
	if yStats.Min != 10.0 || yStats.Max != 30.0 || yStats.HasNull {
		t.Errorf("position.y stats = %+v, want min 10 max 30 no nulls", yStats)
	}
}

// TestWriterNaNScanOnTopLevelFloat mirrors scenario S4's has_nan requirement
// for a top-level float column, exercised independently of parquet page
// statistics (which carry no NaN flag).
func TestWriterNaNScanOnTopLevelFloat(t *testing.T) {
	schema := Schema{Fields: []Field{
		{Name: "timestamp", Type: TypeInt64},
		{Name: "reading", Type: TypeFloat64},
	}}
	w, err := TryNew(schema, format.Default)
	if err != nil {
		t.Fatalf("TryNew: %v", err)
	}

	nan := value.Float(math.NaN())
	batch := RecordBatch{
		Schema:  schema,
		NumRows: 3,
		Columns: map[string]*Column{
			"timestamp": {Type: TypeInt64, Values: []value.Value{value.Integer(1), value.Integer(2), value.Integer(3)}, Valid: boolSlice(3, true)},
			"reading": {
				Type:   TypeFloat64,
				Values: []value.Value{value.Float(1.0), nan, value.Float(3.0)},
				Valid:  boolSlice(3, true),
			},
		},
	}
	if err := w.Write(batch); err != nil {
		t.Fatalf("Write: %v", err)
	}
	_, columnStats, err := w.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	readingStats, ok := columnStats["reading"].Numeric()
	if !ok {
		t.Fatal("expected numeric stats for reading")
	}
	if !readingStats.HasNaN {
		t.Error("reading column should report HasNaN true")
	}
}

func TestWriterUnsupportedColumnStats(t *testing.T) {
	schema := Schema{Fields: []Field{
		{Name: "timestamp", Type: TypeInt64},
		{Name: "blob", Type: TypeUnsupported},
	}}
	w, err := TryNew(schema, format.Default)
	if err != nil {
		t.Fatalf("TryNew: %v", err)
	}
	_, columnStats, err := w.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !columnStats["blob"].IsUnsupported() {
		t.Error("blob column should report unsupported stats")
	}
}
