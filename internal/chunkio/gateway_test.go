package chunkio

import (
	"testing"

	"github.com/chronocat/chronocat/internal/filter"
	"github.com/chronocat/chronocat/internal/ontology"
	"github.com/chronocat/chronocat/internal/value"
)

// TestInferBatchSize mirrors scenario S6: size_bytes=1,000,000,
// row_count=10,000, target=64KB yields floor(64*1024*10000/1000000) = 655.
func TestInferBatchSize(t *testing.T) {
	got := InferBatchSize(64*1024, 10_000, 1_000_000)
	if got != 655 {
		t.Errorf("InferBatchSize = %d, want 655", got)
	}
}

func TestInferBatchSizeDefersOnZeroInputs(t *testing.T) {
	if got := InferBatchSize(64*1024, 0, 1_000_000); got != 0 {
		t.Errorf("zero row_count should defer to engine default, got %d", got)
	}
	if got := InferBatchSize(64*1024, 10_000, 0); got != 0 {
		t.Errorf("zero size_bytes should defer to engine default, got %d", got)
	}
}

func TestLikePatternTranslation(t *testing.T) {
	re := likePattern("imu_%")
	if !re.MatchString("imu_front") {
		t.Error("imu_% should match imu_front")
	}
	if re.MatchString("other") {
		t.Error("imu_% should not match other")
	}
}

func TestRowMatchesConjunctionAndBetween(t *testing.T) {
	field, err := ontology.New("imu.acceleration.x")
	if err != nil {
		t.Fatalf("ontology.New: %v", err)
	}
	rng, err := value.Between(value.Float(0.0), value.Float(10.0))
	if err != nil {
		t.Fatalf("Between: %v", err)
	}
	group := filter.NewExprGroup(filter.NewExpr(field, rng))

	schema := Schema{Fields: []Field{
		{Name: "acceleration", Type: TypeStruct, Children: []Field{{Name: "x", Type: TypeFloat64}}},
	}}
	batch := RecordBatch{
		Schema:  schema,
		NumRows: 3,
		Columns: map[string]*Column{
			"acceleration": {Type: TypeStruct, Children: map[string]*Column{
				"x": {Type: TypeFloat64, Values: []value.Value{value.Float(5.0), value.Float(20.0), value.Float(-1.0)}, Valid: []bool{true, true, true}},
			}},
		},
	}

	r1 := rowRef{batch: &batch, index: 0}
	r2 := rowRef{batch: &batch, index: 1}
	r3 := rowRef{batch: &batch, index: 2}

	if !rowMatches(r1, group) {
		t.Error("row 0 (x=5.0) should satisfy Between(0,10)")
	}
	if rowMatches(r2, group) {
		t.Error("row 1 (x=20.0) should not satisfy Between(0,10)")
	}
	if rowMatches(r3, group) {
		t.Error("row 2 (x=-1.0) should not satisfy Between(0,10)")
	}
}

func TestExNexAreNoOps(t *testing.T) {
	field, err := ontology.New("imu.acceleration")
	if err != nil {
		t.Fatalf("ontology.New: %v", err)
	}
	group := filter.NewExprGroup(filter.NewExpr(field, value.Ex[value.Value]()))

	schema := Schema{Fields: []Field{{Name: "imu", Type: TypeStruct, Children: []Field{{Name: "acceleration", Type: TypeFloat64}}}}}
	batch := RecordBatch{
		Schema:  schema,
		NumRows: 1,
		Columns: map[string]*Column{
			"imu": {Type: TypeStruct, Children: map[string]*Column{
				"acceleration": {Type: TypeFloat64, Values: []value.Value{value.Float(1.0)}, Valid: []bool{false}},
			}},
		},
	}
	ref := rowRef{batch: &batch, index: 0}
	if !rowMatches(ref, group) {
		t.Error("Ex should never exclude a row, even when the field is null")
	}
	nexGroup := filter.NewExprGroup(filter.NewExpr(field, value.Nex[value.Value]()))
	if !rowMatches(ref, nexGroup) {
		t.Error("Nex should never exclude a row, even when the field is null")
	}
}
