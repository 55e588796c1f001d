package chunkio

import (
	"bytes"
	"fmt"
	"math"

	"github.com/parquet-go/parquet-go"

	"github.com/chronocat/chronocat/internal/apperr"
	"github.com/chronocat/chronocat/internal/format"
	"github.com/chronocat/chronocat/internal/stats"
)

func buildNode(f Field) parquet.Node {
	switch f.Type {
	case TypeInt64:
		return parquet.Leaf(parquet.Int64Type)
	case TypeFloat64:
		return parquet.Leaf(parquet.DoubleType)
	case TypeText:
		return parquet.String()
	case TypeBoolean:
		return parquet.Leaf(parquet.BooleanType)
	case TypeStruct:
		group := parquet.Group{}
		for _, c := range f.Children {
			group[c.Name] = buildNode(c)
		}
		return group
	default:
		return parquet.Leaf(parquet.ByteArrayType)
	}
}

func buildParquetSchema(s Schema) *parquet.Schema {
	group := parquet.Group{}
	for _, f := range s.Fields {
		group[f.Name] = buildNode(f)
	}
	return parquet.NewSchema("chunk", group)
}

// columnAccumulator tracks a single leaf column's statistics across every
// Write call, following one of two paths (§4.4): top-level scalar columns
// fold page statistics the encoder already computed (fast path, at
// Finalize); columns nested under a struct fall back to per-value
// evaluation during Write (slow path).
type columnAccumulator struct {
	path     []string
	topLevel bool
	kind     FieldType
	numeric  stats.NumericStats
	text     stats.TextStats
	unsupported bool
}

func (a *columnAccumulator) toStats() stats.Stats {
	if a.unsupported {
		return stats.Unsupported()
	}
	if a.kind == TypeText {
		return stats.FromText(a.text)
	}
	return stats.FromNumeric(a.numeric)
}

// Writer is the chunk writer (C4): a schema-bound, single-use columnar
// encoder. Construct with TryNew, append batches with Write, and consume it
// with Finalize. Any operation after Finalize fails.
type Writer struct {
	schema Schema
	strat  format.Format
	pschema *parquet.Schema
	buf     *bytes.Buffer
	pw      *parquet.Writer
	rows    int64
	accs    map[string]*columnAccumulator
	done    bool
}

// TryNew allocates an in-memory columnar writer configured by the given
// format strategy (§4.4).
func TryNew(schema Schema, strat format.Format) (*Writer, error) {
	pschema := buildParquetSchema(schema)
	buf := &bytes.Buffer{}
	opts := append([]parquet.WriterOption{pschema}, strat.WriterOptions()...)
	pw := parquet.NewWriter(buf, opts...)

	w := &Writer{schema: schema, strat: strat, pschema: pschema, buf: buf, pw: pw, accs: map[string]*columnAccumulator{}}
	for _, lp := range schema.leafPaths() {
		acc := &columnAccumulator{path: lp.path, topLevel: lp.topLevel, kind: lp.typ}
		switch lp.typ {
		case TypeInt64, TypeFloat64, TypeBoolean:
			acc.numeric = stats.NewNumeric()
		case TypeText:
			acc.text = stats.NewText()
		default:
			acc.unsupported = true
		}
		w.accs[lp.name()] = acc
	}
	return w, nil
}

// Write appends a record batch. The batch schema must equal the declared
// schema field-for-field, including nested struct layout; otherwise it
// fails with SchemaMismatch and nothing is appended.
func (w *Writer) Write(batch RecordBatch) error {
	if w.done {
		return apperr.Wrap("chunkio.Writer.Write", "", fmt.Errorf("writer already finalized"))
	}
	if !batch.MatchesSchema(w.schema) {
		return &apperr.SchemaMismatchError{Detail: "record batch does not match the writer's declared schema"}
	}

	for i := 0; i < batch.NumRows; i++ {
		row := rowAsMap(w.schema, batch, i)
		if err := w.pw.Write(row); err != nil {
			return apperr.Wrap("chunkio.Writer.Write", "", fmt.Errorf("%w: %v", apperr.ErrWrite, err))
		}
	}

	w.foldSlowPath(batch)
	w.rows += int64(batch.NumRows)
	return nil
}

// Finalize flushes the footer and returns the encoded bytes plus per-column
// statistics aggregated across every Write call. The writer is consumed.
func (w *Writer) Finalize() ([]byte, stats.ColumnsStats, error) {
	if w.done {
		return nil, nil, fmt.Errorf("chunkio: writer already finalized")
	}
	w.done = true

	if err := w.pw.Close(); err != nil {
		return nil, nil, apperr.Wrap("chunkio.Writer.Finalize", "", fmt.Errorf("%w: %v", apperr.ErrWrite, err))
	}

	data := w.buf.Bytes()
	if err := w.foldFastPath(data); err != nil {
		return nil, nil, apperr.Wrap("chunkio.Writer.Finalize", "", fmt.Errorf("%w: %v", apperr.ErrWrite, err))
	}

	out := make(stats.ColumnsStats, len(w.accs))
	for name, acc := range w.accs {
		out[name] = acc.toStats()
	}
	return data, out, nil
}

// foldSlowPath evaluates nested (struct-child) columns per value, since
// their encoder-level page statistics are not folded at Finalize;
// unsupported columns are skipped. It also scans top-level float columns for NaN, which parquet
// page statistics never report (the format has no explicit NaN flag).
func (w *Writer) foldSlowPath(batch RecordBatch) {
	for _, acc := range w.accs {
		if acc.unsupported {
			continue
		}
		if acc.topLevel {
			if acc.kind == TypeFloat64 {
				w.scanForNaN(batch, acc)
			}
			continue
		}
		col := batch.columnAt(acc.path)
		if col == nil {
			continue
		}
		for i := 0; i < batch.NumRows; i++ {
			evalOne(acc, col, i)
		}
	}
}

func (w *Writer) scanForNaN(batch RecordBatch, acc *columnAccumulator) {
	col := batch.columnAt(acc.path)
	if col == nil {
		return
	}
	for i := 0; i < batch.NumRows; i++ {
		if !col.Valid[i] {
			continue
		}
		if f := col.Values[i].FloatValue(); math.IsNaN(f) {
			acc.numeric.HasNaN = true
		}
	}
}

func evalOne(acc *columnAccumulator, col *Column, i int) {
	if !col.Valid[i] {
		if acc.kind == TypeText {
			acc.text.Eval(nil)
		} else {
			acc.numeric.Eval(nil)
		}
		return
	}
	v := col.Values[i]
	if acc.kind == TypeText {
		s := v.TextValue()
		acc.text.Eval(&s)
		return
	}
	f, _ := v.AsFloat64()
	acc.numeric.Eval(&f)
}

// foldFastPath reopens the just-written buffer and folds each top-level
// scalar column's page statistics, the throughput-preferred path §4.4
// requires whenever the encoder already produced them.
func (w *Writer) foldFastPath(data []byte) error {
	pf, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return err
	}
	columnPaths := w.pschema.Columns()

	for _, rg := range pf.RowGroups() {
		chunks := rg.ColumnChunks()
		for idx, path := range columnPaths {
			if len(path) != 1 {
				continue // nested columns are folded on the slow path
			}
			acc, ok := w.accs[path[0]]
			if !ok || acc.unsupported || !acc.topLevel {
				continue
			}
			if idx >= len(chunks) {
				continue
			}
			st, err := chunks[idx].Statistics()
			if err != nil {
				continue
			}
			nullCount := st.NullCount() > 0
			if acc.kind == TypeText {
				var minP, maxP *string
				if st.HasMinMax() {
					min, max := st.Min().String(), st.Max().String()
					minP, maxP = &min, &max
				}
				acc.text.Merge(minP, maxP, nullCount)
				continue
			}
			var minP, maxP *float64
			if st.HasMinMax() {
				min, max := valueToFloat(acc.kind, st.Min()), valueToFloat(acc.kind, st.Max())
				minP, maxP = &min, &max
			}
			acc.numeric.Merge(minP, maxP, nullCount, acc.numeric.HasNaN)
		}
	}
	return nil
}

func valueToFloat(kind FieldType, v parquet.Value) float64 {
	switch kind {
	case TypeInt64:
		return float64(v.Int64())
	case TypeBoolean:
		if v.Boolean() {
			return 1.0
		}
		return 0.0
	default:
		return v.Double()
	}
}

// rowAsMap flattens one row of a batch into the nested map shape the
// parquet writer's dynamic group schema expects: one entry per declared
// field, struct fields becoming nested maps.
func rowAsMap(schema Schema, batch RecordBatch, i int) map[string]any {
	m := make(map[string]any, len(schema.Fields))
	for _, f := range schema.Fields {
		m[f.Name] = fieldValue(f, batch.Columns[f.Name], i)
	}
	return m
}

func fieldValue(f Field, col *Column, i int) any {
	if f.Type == TypeStruct {
		m := make(map[string]any, len(f.Children))
		for _, c := range f.Children {
			m[c.Name] = fieldValue(c, col.Children[c.Name], i)
		}
		return m
	}
	if col == nil || !col.Valid[i] {
		return nil
	}
	v := col.Values[i]
	switch f.Type {
	case TypeInt64:
		return v.IntegerValue()
	case TypeFloat64:
		return v.FloatValue()
	case TypeText:
		return v.TextValue()
	case TypeBoolean:
		return v.BooleanValue()
	default:
		return nil
	}
}
