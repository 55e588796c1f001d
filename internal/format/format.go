// Package format implements the format strategy (C5): the per-format
// encoding policy (compression, dictionary, bloom filter, page statistics)
// that the chunk writer configures its columnar encoder with.
package format

import (
	"fmt"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// TimestampColumn is the process-wide constant name of the timestamp
// column every chunk schema carries (§4.5, §6).
const TimestampColumn = "timestamp"

// Format selects an encoding policy. Three formats ship, matching §4.5's
// table exactly.
type Format int

const (
	Default Format = iota
	Ragged
	Image
)

// String round-trips with FromString for every defined Format (spec
// invariant 7).
func (f Format) String() string {
	switch f {
	case Default:
		return "default"
	case Ragged:
		return "ragged"
	case Image:
		return "image"
	default:
		return "unknown"
	}
}

// FromString parses a format name. Unknown strings fail.
func FromString(s string) (Format, error) {
	switch s {
	case "default":
		return Default, nil
	case "ragged":
		return Ragged, nil
	case "image":
		return Image, nil
	default:
		return 0, fmt.Errorf("format: unknown format %q", s)
	}
}

// WriterOptions returns the parquet writer options implementing this
// format's encoding policy. Every format uses storage format version 2.0
// (DataPageVersion 2); Ragged and Image additionally set ZSTD compression,
// enable page statistics and add a bloom filter on the timestamp column,
// the core's only mechanism for sub-file range pruning during reads (§4.5).
// The compression and page-statistics options apply at the file level, so
// they cover every column, the timestamp column included. The chunk writer
// (internal/chunkio) folds statistics for every top-level column whatever
// the format.
func (f Format) WriterOptions() []parquet.WriterOption {
	base := []parquet.WriterOption{
		parquet.DataPageVersion(2),
	}

	switch f {
	case Default:
		return base

	case Ragged:
		return append(base,
			parquet.Compression(&zstd.Codec{Level: zstd.Level(5)}),
			parquet.DataPageStatistics(true),
			parquet.BloomFilters(parquet.SplitBlockFilter(10, TimestampColumn)),
		)

	case Image:
		return append(base,
			parquet.Compression(&zstd.Codec{Level: zstd.Level(22)}),
			parquet.DataPageStatistics(true),
			parquet.BloomFilters(parquet.SplitBlockFilter(10, TimestampColumn)),
		)

	default:
		return base
	}
}

// DictionaryDisabled reports whether this format's policy forbids
// dictionary encoding (Ragged/Image, per §4.5's "no dict" column).
func (f Format) DictionaryDisabled() bool {
	return f == Ragged || f == Image
}

// BodyStatisticsDisabled reports whether this format's policy suppresses
// whole-body (non-timestamp) column statistics (Ragged/Image's "no body
// stats" column). Neither WriterOptions nor the chunk writer consults it.
func (f Format) BodyStatisticsDisabled() bool {
	return f == Ragged || f == Image
}

// TimestampUncompressed reports whether the timestamp column must be
// written uncompressed regardless of body compression (Ragged/Image).
// WriterOptions does not act on it: its file-wide codec compresses the
// timestamp column along with the body.
func (f Format) TimestampUncompressed() bool {
	return f == Ragged || f == Image
}
