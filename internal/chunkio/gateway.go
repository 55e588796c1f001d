package chunkio

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/chronocat/chronocat/internal/apperr"
	"github.com/chronocat/chronocat/internal/filter"
	"github.com/chronocat/chronocat/internal/format"
	"github.com/chronocat/chronocat/internal/value"
)

// DecodeBatch reads one encoded chunk back into a RecordBatch. It is the
// inverse of Writer.Write/Finalize, used by the gateway (C7) to reopen
// files the writer (C4) produced.
func DecodeBatch(schema Schema, data []byte) (RecordBatch, error) {
	pf, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return RecordBatch{}, apperr.Wrap("chunkio.DecodeBatch", "", fmt.Errorf("%w: %v", apperr.ErrRead, err))
	}
	pschema := buildParquetSchema(schema)
	columnPaths := pschema.Columns()
	typeIndex := leafTypeIndex(schema)

	reader := parquet.NewReader(pf, pschema)
	defer reader.Close()

	numRows := int(pf.NumRows())
	rows := make([]parquet.Row, numRows)
	n, err := reader.ReadRows(rows)
	if err != nil && err != io.EOF {
		return RecordBatch{}, apperr.Wrap("chunkio.DecodeBatch", "", fmt.Errorf("%w: %v", apperr.ErrRead, err))
	}
	rows = rows[:n]

	batch := newEmptyBatch(schema, n)
	for rowIdx, row := range rows {
		for _, cell := range row {
			idx := cell.Column()
			if idx < 0 || idx >= len(columnPaths) {
				continue
			}
			path := columnPaths[idx]
			typ, ok := typeIndex[strings.Join(path, ".")]
			if !ok {
				continue
			}
			setCell(batch, path, rowIdx, typ, cell)
		}
	}
	return batch, nil
}

func leafTypeIndex(schema Schema) map[string]FieldType {
	idx := map[string]FieldType{}
	for _, lp := range schema.leafPaths() {
		idx[lp.name()] = lp.typ
	}
	return idx
}

func newEmptyBatch(schema Schema, numRows int) RecordBatch {
	cols := make(map[string]*Column, len(schema.Fields))
	for _, f := range schema.Fields {
		cols[f.Name] = allocColumn(f, numRows)
	}
	return RecordBatch{Schema: schema, NumRows: numRows, Columns: cols}
}

func allocColumn(f Field, numRows int) *Column {
	if f.Type == TypeStruct {
		children := make(map[string]*Column, len(f.Children))
		for _, c := range f.Children {
			children[c.Name] = allocColumn(c, numRows)
		}
		return &Column{Type: f.Type, Children: children}
	}
	return &Column{
		Type:   f.Type,
		Values: make([]value.Value, numRows),
		Valid:  make([]bool, numRows),
	}
}

func setCell(batch RecordBatch, path []string, rowIdx int, typ FieldType, cell parquet.Value) {
	col := batch.columnAt(path)
	if col == nil || rowIdx >= len(col.Valid) {
		return
	}
	if cell.IsNull() {
		return
	}
	col.Valid[rowIdx] = true
	switch typ {
	case TypeInt64:
		col.Values[rowIdx] = value.Integer(cell.Int64())
	case TypeFloat64:
		col.Values[rowIdx] = value.Float(cell.Double())
	case TypeText:
		col.Values[rowIdx] = value.Text(cell.String())
	case TypeBoolean:
		col.Values[rowIdx] = value.Boolean(cell.Boolean())
	}
}

// Reader is the timeseries gateway (C7): a thin wrapper that decodes a set
// of chunk files sharing one schema, orders them by timestamp, and exposes
// row-level filtering, streaming and aggregate probes.
type Reader struct {
	schema Schema
	strat  format.Format
	rows   []rowRef
}

type rowRef struct {
	batch *RecordBatch
	index int
}

// Open decodes every file and materializes the `SELECT * FROM data ORDER
// BY timestamp` logical plan §4.7 describes. batchSize is accepted for
// parity with the engine's session configuration contract but has no
// observable effect here: decoding happens eagerly, row ordering is all
// that the contract requires of callers.
func Open(schema Schema, strat format.Format, files [][]byte, batchSize int) (*Reader, error) {
	var refs []rowRef
	batches := make([]*RecordBatch, 0, len(files))
	for _, data := range files {
		batch, err := DecodeBatch(schema, data)
		if err != nil {
			return nil, err
		}
		batches = append(batches, &batch)
	}
	for _, b := range batches {
		for i := 0; i < b.NumRows; i++ {
			refs = append(refs, rowRef{batch: b, index: i})
		}
	}

	tsCol := format.TimestampColumn
	sort.SliceStable(refs, func(i, j int) bool {
		return timestampOf(refs[i], tsCol) < timestampOf(refs[j], tsCol)
	})

	return &Reader{schema: schema, strat: strat, rows: refs}, nil
}

func timestampOf(r rowRef, column string) int64 {
	col, ok := r.batch.Columns[column]
	if !ok || r.index >= len(col.Values) {
		return 0
	}
	return col.Values[r.index].IntegerValue()
}

// InferBatchSize implements the batch-size policy of §4.7: requested batch
// size is floor(target*rows/sizeBytes), clamped positive. Either input
// being zero defers to the engine default (reported as 0).
func InferBatchSize(targetBytes, rows, sizeBytes int64) int64 {
	if rows == 0 || sizeBytes == 0 {
		return 0
	}
	size := (targetBytes * rows) / sizeBytes
	if size < 1 {
		return 1
	}
	return size
}

// Result is a filtered, ordered view over a Reader's rows.
type Result struct {
	schema Schema
	rows   []rowRef
}

// Filter pushes a compound predicate (§4.7): every expression in the group
// must hold (conjunction). Between is inclusive on both ends, In is
// unnegated membership, Match is a LIKE pattern, Ex/Nex are no-ops that
// never exclude a row.
func (r *Reader) Filter(group filter.ExprGroup[value.Value]) *Result {
	var kept []rowRef
	for _, ref := range r.rows {
		if rowMatches(ref, group) {
			kept = append(kept, ref)
		}
	}
	return &Result{schema: r.schema, rows: kept}
}

// Exists probes for at least one matching row without materializing the
// match set — the LIMIT-1-before-count discipline §4.7 requires of a
// has-rows check. Callers that only need existence should use this instead
// of Filter(...).HasRows(), which keeps every matching row.
func (r *Reader) Exists(group filter.ExprGroup[value.Value]) bool {
	for _, ref := range r.rows {
		if rowMatches(ref, group) {
			return true
		}
	}
	return false
}

func rowMatches(ref rowRef, group filter.ExprGroup[value.Value]) bool {
	for _, expr := range group.Exprs {
		if !exprMatches(ref, expr) {
			return false
		}
	}
	return true
}

func exprMatches(ref rowRef, expr filter.Expr[value.Value]) bool {
	switch expr.Op.Kind() {
	case value.OpEx, value.OpNex:
		return true
	}

	path := expr.Field.Path()
	if len(path) == 0 {
		return false
	}
	col := ref.batch.columnAt(path)
	if col == nil || ref.index >= len(col.Valid) || !col.Valid[ref.index] {
		return false
	}
	v := col.Values[ref.index]
	return evalOp(expr.Op, v)
}

func evalOp(op value.Op[value.Value], v value.Value) bool {
	switch op.Kind() {
	case value.OpEq:
		return compareEqual(v, op.Operand())
	case value.OpNeq:
		return !compareEqual(v, op.Operand())
	case value.OpLeq:
		return compareOrder(v, op.Operand()) <= 0
	case value.OpGeq:
		return compareOrder(v, op.Operand()) >= 0
	case value.OpLt:
		return compareOrder(v, op.Operand()) < 0
	case value.OpGt:
		return compareOrder(v, op.Operand()) > 0
	case value.OpBetween:
		rng := op.Range()
		return compareOrder(v, rng.Min) >= 0 && compareOrder(v, rng.Max) <= 0
	case value.OpIn:
		for _, item := range op.Set() {
			if compareEqual(v, item) {
				return true
			}
		}
		return false
	case value.OpMatch:
		return likePattern(op.Operand().TextValue()).MatchString(v.TextValue())
	default:
		return false
	}
}

func compareEqual(a, b value.Value) bool {
	if a.Kind() == value.KindText || b.Kind() == value.KindText {
		return a.TextValue() == b.TextValue()
	}
	af, _ := a.AsFloat64()
	bf, _ := b.AsFloat64()
	return af == bf
}

func compareOrder(a, b value.Value) int {
	if a.Kind() == value.KindText || b.Kind() == value.KindText {
		sa, sb := a.TextValue(), b.TextValue()
		switch {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		default:
			return 0
		}
	}
	af, _ := a.AsFloat64()
	bf, _ := b.AsFloat64()
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	default:
		return 0
	}
}

// likePattern translates a SQL LIKE pattern ('%' any run, '_' any char)
// into an anchored regular expression.
func likePattern(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

// Stream yields matching rows in timestamp order as a single RecordBatch
// holding every kept row, whatever the number of source files; all rows
// have already been materialized. It returns nil when no row was kept.
func (r *Result) Stream() []RecordBatch {
	if len(r.rows) == 0 {
		return nil
	}
	return []RecordBatch{projectRows(r.schema, r.rows)}
}

func projectRows(schema Schema, refs []rowRef) RecordBatch {
	out := newEmptyBatch(schema, len(refs))
	for i, ref := range refs {
		copyRow(schema.Fields, ref.batch.Columns, out.Columns, ref.index, i)
	}
	return out
}

func copyRow(fields []Field, src, dst map[string]*Column, srcIdx, dstIdx int) {
	for _, f := range fields {
		s, sok := src[f.Name]
		d, dok := dst[f.Name]
		if !sok || !dok {
			continue
		}
		if f.Type == TypeStruct {
			copyRow(f.Children, s.Children, d.Children, srcIdx, dstIdx)
			continue
		}
		if srcIdx < len(s.Valid) && s.Valid[srcIdx] {
			d.Valid[dstIdx] = true
			d.Values[dstIdx] = s.Values[srcIdx]
		}
	}
}

// Count returns the number of matching rows.
func (r *Result) Count() int { return len(r.rows) }

// HasRows reports whether this already-filtered Result kept any row. It
// does not itself short-circuit a scan — Result is the product of Filter,
// which has already materialized every match. Callers that only need
// existence, not the match set, should call Reader.Exists instead.
func (r *Result) HasRows() bool { return len(r.rows) > 0 }
