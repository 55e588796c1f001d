package chunkio

import (
	"testing"

	"github.com/chronocat/chronocat/internal/filter"
	"github.com/chronocat/chronocat/internal/format"
	"github.com/chronocat/chronocat/internal/ontology"
	"github.com/chronocat/chronocat/internal/value"
)

// TestWriterGatewayRoundTrip mirrors scenario S1: a batch encoded by the
// chunk writer (C4) must come back out of the timeseries gateway (C7) with
// the same values, in timestamp order, and survive a row-level filter that
// only some of its rows satisfy. This is the only test exercising the
// Writer.Finalize -> DecodeBatch/Open -> Filter/Stream seam end to end;
// writer_test.go and gateway_test.go each test their half in isolation.
func TestWriterGatewayRoundTrip(t *testing.T) {
	schema := Schema{Fields: []Field{
		{Name: "timestamp", Type: TypeInt64},
		{Name: "acceleration", Type: TypeStruct, Children: []Field{
			{Name: "x", Type: TypeFloat64},
			{Name: "y", Type: TypeFloat64},
		}},
	}}

	// Deliberately out of timestamp order, to exercise Open's sort.
	batch := RecordBatch{
		Schema:  schema,
		NumRows: 3,
		Columns: map[string]*Column{
			"timestamp": {
				Type:   TypeInt64,
				Values: []value.Value{value.Integer(30), value.Integer(10), value.Integer(20)},
				Valid:  []bool{true, true, true},
			},
			"acceleration": {
				Type: TypeStruct,
				Children: map[string]*Column{
					"x": {
						Type:   TypeFloat64,
						Values: []value.Value{value.Float(3.0), value.Float(1.0), value.Float(2.0)},
						Valid:  []bool{true, true, true},
					},
					"y": {
						Type:   TypeFloat64,
						Values: []value.Value{value.Float(30.0), value.Float(10.0), value.Float(20.0)},
						Valid:  []bool{true, true, true},
					},
				},
			},
		},
	}

	w, err := TryNew(schema, format.Default)
	if err != nil {
		t.Fatalf("TryNew: %v", err)
	}
	if err := w.Write(batch); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, columnStats, err := w.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	xStats, ok := columnStats["acceleration.x"].Numeric()
	if !ok {
		t.Fatal("expected numeric stats for acceleration.x")
	}
	if xStats.Min != 1.0 || xStats.Max != 3.0 {
		t.Errorf("acceleration.x stats = %+v, want min 1.0 max 3.0", xStats)
	}

	decoded, err := DecodeBatch(schema, data)
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	if decoded.NumRows != 3 {
		t.Fatalf("DecodeBatch NumRows = %d, want 3", decoded.NumRows)
	}

	reader, err := Open(schema, format.Default, [][]byte{data}, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	field, err := ontology.New("imu.acceleration.x")
	if err != nil {
		t.Fatalf("ontology.New: %v", err)
	}
	group := filter.NewExprGroup(filter.NewExpr(field, value.Gt(value.Float(1.5))))

	result := reader.Filter(group)
	if result.Count() != 2 {
		t.Fatalf("Filter(x>1.5).Count() = %d, want 2", result.Count())
	}
	if !result.HasRows() {
		t.Error("HasRows() should report true once Filter has kept rows")
	}
	if !reader.Exists(group) {
		t.Error("Exists(x>1.5) should report true")
	}

	none := filter.NewExprGroup(filter.NewExpr(field, value.Gt(value.Float(100.0))))
	if reader.Exists(none) {
		t.Error("Exists(x>100) should report false: no row satisfies it")
	}

	streamed := result.Stream()
	if len(streamed) != 1 {
		t.Fatalf("Stream() = %d batches, want 1", len(streamed))
	}
	out := streamed[0]
	if out.NumRows != 2 {
		t.Fatalf("streamed NumRows = %d, want 2", out.NumRows)
	}
	ts := out.Columns["timestamp"].Values
	if ts[0].IntegerValue() != 20 || ts[1].IntegerValue() != 30 {
		t.Errorf("streamed rows out of timestamp order: %+v", ts)
	}
}
