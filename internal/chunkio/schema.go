// Package chunkio implements the chunk writer (C4) and timeseries gateway
// (C7): the schema-aware columnar encoder that turns a record batch into a
// single self-contained file plus per-column statistics, and the reader
// that scans a set of such files applying row-level predicates.
package chunkio

// FieldType enumerates the scalar and struct field kinds a chunk schema may
// declare. Struct fields nest further Fields (§3's "nested struct columns",
// e.g. position:{x,y,z}).
type FieldType int

const (
	TypeInt64 FieldType = iota
	TypeFloat64
	TypeText
	TypeBoolean
	TypeStruct
	// TypeUnsupported marks a column the writer accepts but does not
	// profile statistically (binary blobs, or any nested shape deeper
	// than the writer's flattening supports). Never indexed (§4.3).
	TypeUnsupported
)

func (t FieldType) String() string {
	switch t {
	case TypeInt64:
		return "int64"
	case TypeFloat64:
		return "float64"
	case TypeText:
		return "text"
	case TypeBoolean:
		return "boolean"
	case TypeStruct:
		return "struct"
	default:
		return "unsupported"
	}
}

// Field is one column declaration. Children is populated only when Type is
// TypeStruct, and describes the struct's own fields in order.
type Field struct {
	Name     string
	Type     FieldType
	Children []Field
}

// Schema is the ordered field-for-field layout a Writer is bound to; a
// Write call whose batch disagrees with it (name, type, or nested layout)
// fails with SchemaMismatch (§4.4).
type Schema struct {
	Fields []Field
}

// Equal reports whether two schemas declare the same fields, types and
// nested layout, in the same order — the exact comparison §4.4 requires.
func (s Schema) Equal(o Schema) bool {
	if len(s.Fields) != len(o.Fields) {
		return false
	}
	for i := range s.Fields {
		if !s.Fields[i].equal(o.Fields[i]) {
			return false
		}
	}
	return true
}

func (f Field) equal(o Field) bool {
	if f.Name != o.Name || f.Type != o.Type {
		return false
	}
	if len(f.Children) != len(o.Children) {
		return false
	}
	for i := range f.Children {
		if !f.Children[i].equal(o.Children[i]) {
			return false
		}
	}
	return true
}

// leafPaths returns every scalar (non-struct) field's dotted path, in
// schema order, along with whether it is top-level (depth 1, eligible for
// the writer's fast statistics path) or nested under a struct (depth > 1,
// confined to the slow path per §4.4).
func (s Schema) leafPaths() []leafPath {
	var out []leafPath
	for _, f := range s.Fields {
		collectLeafPaths(f, nil, &out)
	}
	return out
}

type leafPath struct {
	path     []string // e.g. ["position", "x"]
	typ      FieldType
	topLevel bool
}

func (l leafPath) name() string {
	name := l.path[0]
	for _, p := range l.path[1:] {
		name += "." + p
	}
	return name
}

func collectLeafPaths(f Field, prefix []string, out *[]leafPath) {
	path := append(append([]string{}, prefix...), f.Name)
	switch f.Type {
	case TypeStruct:
		for _, c := range f.Children {
			collectLeafPaths(c, path, out)
		}
	case TypeUnsupported:
		*out = append(*out, leafPath{path: path, typ: f.Type, topLevel: len(path) == 1})
	default:
		*out = append(*out, leafPath{path: path, typ: f.Type, topLevel: len(path) == 1})
	}
}
