package chunkio

import "github.com/chronocat/chronocat/internal/value"

// Column holds one field's data for a batch, column-major. For TypeStruct
// columns, Values/Valid are unused and Children holds the struct's own
// columns, one per declared child, each with the same row count.
type Column struct {
	Type     FieldType
	Values   []value.Value
	Valid    []bool // Valid[i] == false means row i is null
	Children map[string]*Column
}

// RecordBatch is an in-memory, column-major batch of rows conforming to a
// Schema. NumRows is authoritative; every top-level Column (and,
// recursively, every struct child) must carry exactly NumRows entries.
type RecordBatch struct {
	Schema  Schema
	NumRows int
	Columns map[string]*Column
}

// MatchesSchema checks field-for-field, including nested struct layout,
// that this batch was built against exactly the given schema (§4.4).
func (b RecordBatch) MatchesSchema(s Schema) bool {
	if !b.Schema.Equal(s) {
		return false
	}
	for _, f := range s.Fields {
		col, ok := b.Columns[f.Name]
		if !ok {
			return false
		}
		if !columnMatchesField(col, f, b.NumRows) {
			return false
		}
	}
	return true
}

func columnMatchesField(col *Column, f Field, numRows int) bool {
	if col.Type != f.Type {
		return false
	}
	if f.Type == TypeStruct {
		for _, c := range f.Children {
			child, ok := col.Children[c.Name]
			if !ok || !columnMatchesField(child, c, numRows) {
				return false
			}
		}
		return true
	}
	return len(col.Values) == numRows && len(col.Valid) == numRows
}

// columnAt walks a leaf path given as segments ([]string{"position", "x"})
// down into a batch's nested struct columns.
func (b RecordBatch) columnAt(path []string) *Column {
	col, ok := b.Columns[path[0]]
	if !ok {
		return nil
	}
	for _, seg := range path[1:] {
		if col.Children == nil {
			return nil
		}
		col, ok = col.Children[seg]
		if !ok {
			return nil
		}
	}
	return col
}
