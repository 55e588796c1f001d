// Command server exposes the query orchestrator (C8) over HTTP: a single
// ontology-field predicate is parsed off the query string, compiled and
// fanned out through the catalog and the timeseries gateway, and the
// surviving sequences/topics are returned as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/spf13/pflag"

	"github.com/chronocat/chronocat/internal/catalog"
	"github.com/chronocat/chronocat/internal/chunkio"
	"github.com/chronocat/chronocat/internal/config"
	"github.com/chronocat/chronocat/internal/filter"
	"github.com/chronocat/chronocat/internal/objectstore"
	"github.com/chronocat/chronocat/internal/ontology"
	"github.com/chronocat/chronocat/internal/query"
	"github.com/chronocat/chronocat/internal/value"
	"github.com/chronocat/chronocat/pkg/models"
)

// schemaRegistry maps an ontology tag to the chunk schema its chunks were
// encoded with. The core has no opinion on how schemas are tracked; a real
// deployment would persist this alongside the topic row. The demo server
// keeps a fixed in-memory table instead.
var schemaRegistry = map[string]chunkio.Schema{
	"imu": {
		Fields: []chunkio.Field{
			{Name: "timestamp", Type: chunkio.TypeInt64},
			{Name: "acceleration", Type: chunkio.TypeStruct, Children: []chunkio.Field{
				{Name: "x", Type: chunkio.TypeFloat64},
				{Name: "y", Type: chunkio.TypeFloat64},
				{Name: "z", Type: chunkio.TypeFloat64},
			}},
		},
	},
}

func resolveSchema(topic models.Topic) chunkio.Schema {
	return schemaRegistry[topic.OntologyTag]
}

func main() {
	fs := pflag.NewFlagSet("chronocat-server", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("invalid log level %q: %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	logger.Info().Str("log_level", cfg.LogLevel).Int("port", cfg.Port).Msg("starting chronocat query server")

	ctx := context.Background()

	repo, err := catalog.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to catalog: %v", err)
	}
	defer repo.Close()

	if err := repo.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate catalog: %v", err)
	}

	store := objectstore.NewLocalStore(cfg.ObjectStoreRoot)
	orch := query.NewOrchestrator(repo, store, resolveSchema, cfg.MaxConcurrentChunkQueries, cfg.TargetMessageSizeInBytes)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	mux.HandleFunc("/query", queryHandler(orch))

	handler := hlog.NewHandler(logger)(
		hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
			logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
		})(mux),
	)

	addr := fmt.Sprintf(":%d", cfg.Port)
	s := &http.Server{Addr: addr, Handler: handler}
	logger.Info().Str("addr", s.Addr).Msg("query server listening")
	log.Fatal(s.ListenAndServe())
}

// queryHandler parses a single ontology-field predicate off the query
// string: field (dotted path, e.g. imu.acceleration.x), op (eq, neq, lt,
// gt, leq, geq, match) and value. A missing field parameter runs an empty
// filter, which the orchestrator answers with no sequences (JSON null).
func queryHandler(orch *query.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		f, err := parseFilter(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		groups, err := orch.Run(ctx, f)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(groups); err != nil {
			http.Error(w, "failed to encode response", http.StatusInternalServerError)
		}
	}
}

func parseFilter(r *http.Request) (filter.Filter, error) {
	fieldParam := r.URL.Query().Get("field")
	if fieldParam == "" {
		return filter.Filter{}, nil
	}

	field, err := ontology.New(fieldParam)
	if err != nil {
		return filter.Filter{}, fmt.Errorf("invalid field: %w", err)
	}

	op, err := parseOp(r.URL.Query().Get("op"), r.URL.Query().Get("value"))
	if err != nil {
		return filter.Filter{}, err
	}

	of := filter.NewOntologyFilter()
	of.Set(field, op)
	return filter.Filter{Ontology: of}, nil
}

func parseOp(opName, raw string) (value.Op[value.Value], error) {
	v := parseValue(raw)
	switch opName {
	case "eq", "":
		return value.Eq(v), nil
	case "neq":
		return value.Neq(v), nil
	case "lt":
		return value.Lt(v), nil
	case "gt":
		return value.Gt(v), nil
	case "leq":
		return value.Leq(v), nil
	case "geq":
		return value.Geq(v), nil
	case "match":
		return value.Match(v), nil
	default:
		return value.Op[value.Value]{}, fmt.Errorf("unsupported op %q", opName)
	}
}

func parseValue(raw string) value.Value {
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return value.Float(f)
	}
	return value.Text(raw)
}
