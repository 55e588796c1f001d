// Package ontology implements the dotted-path field names used throughout
// the catalog and the filter algebra: "tag.sub1.sub2..." where the segment
// before the first dot names the ontology tag a chunk encodes, and the
// remainder is a field-accessor path into that tag's struct columns.
package ontology

import (
	"strings"

	"github.com/chronocat/chronocat/internal/apperr"
)

// Field is a validated "tag.sub1.sub2..." path. It is a plain string type
// rather than a struct so that it works as a map key by value and needs no
// accessor indirection the way a borrowed-string wrapper would in a
// language without Go's value-type map keys.
type Field string

// New validates a raw path and returns it as a Field. The path must contain
// at least one dot; the segment before the first dot becomes the tag.
func New(raw string) (Field, error) {
	if i := strings.IndexByte(raw, '.'); i <= 0 || i == len(raw)-1 {
		return "", &apperr.BadFieldError{Path: raw}
	}
	return Field(raw), nil
}

// Tag returns the ontology tag: the substring before the first dot.
func (f Field) Tag() string {
	s := string(f)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return s
}

// Remainder returns the field-accessor path after the tag, i.e. the
// dotted chain applied via struct-field descent.
func (f Field) Remainder() string {
	s := string(f)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return ""
}

// Path splits the remainder on '.' for chained struct-field descent.
func (f Field) Path() []string {
	rem := f.Remainder()
	if rem == "" {
		return nil
	}
	return strings.Split(rem, ".")
}

func (f Field) String() string { return string(f) }
