package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"llamabind/internal/common/fsutil"
	"llamabind/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.Model
	Status() types.StatusResponse
	Ready() bool
	Embeddings(ctx context.Context, req types.EmbeddingsRequest) (types.EmbeddingsResponse, error)
	SaveState(ctx context.Context, req types.StateRequest) (types.StateResponse, error)
	LoadState(ctx context.Context, req types.StateRequest) (types.StateResponse, error)
	Predict(ctx context.Context, req types.PredictRequest) error
	Unload(modelID string) error
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, types.ModelsResponse{Models: svc.ListModels()})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Status())
	})

	r.Post("/models/{id}/unload", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		start := time.Now()
		if err := svc.Unload(id); err != nil {
			status := writeServiceError(w, err)
			finishOp(r, "unload", status, start, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		finishOp(r, "unload", http.StatusNoContent, start, nil)
	})

	r.Post("/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req types.EmbeddingsRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Input) == "" && len(req.Tokens) == 0 {
			writeJSONError(w, http.StatusBadRequest, "input or tokens is required")
			return
		}
		if req.Dimensions < 0 {
			writeJSONError(w, http.StatusBadRequest, "dimensions must not be negative")
			return
		}
		serveOp(w, r, "embeddings", func(ctx context.Context) (any, error) {
			return svc.Embeddings(ctx, req)
		})
	})

	r.Post("/state/save", stateHandler("state_save", svc.SaveState))
	r.Post("/state/load", stateHandler("state_load", svc.LoadState))

	r.Post("/predict", func(w http.ResponseWriter, r *http.Request) {
		var req types.PredictRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		serveOp(w, r, "predict", func(ctx context.Context) (any, error) {
			return nil, svc.Predict(ctx, req)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

// stateHandler confines the request path to stateDir before handing the
// request to fn. Responses echo the path as the client sent it.
func stateHandler(op string, fn func(context.Context, types.StateRequest) (types.StateResponse, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.StateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		rel := strings.TrimSpace(req.Path)
		if rel == "" {
			writeJSONError(w, http.StatusBadRequest, "path is required")
			return
		}
		if stateDir == "" {
			writeJSONError(w, http.StatusForbidden, "state endpoints are disabled: no state_dir configured")
			return
		}
		full, err := resolveStatePath(rel)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Path = full
		serveOp(w, r, op, func(ctx context.Context) (any, error) {
			resp, err := fn(ctx, req)
			if err != nil {
				return nil, err
			}
			resp.Path = rel
			return resp, nil
		})
	}
}

// resolveStatePath maps a client path into stateDir. Absolute paths, home
// references and anything climbing out with ".." are refused.
func resolveStatePath(rel string) (string, error) {
	if strings.HasPrefix(rel, "~") || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("path must be relative to the state directory: %q", rel)
	}
	return fsutil.ResolvePath(rel, stateDir)
}

// decodeJSON enforces the JSON content type and body limit and decodes into v.
// It writes the error response and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// oversized bodies also land here; report them as plain bad requests
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// serveOp runs fn under opContext and writes its result or mapped error.
func serveOp(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context) (any, error)) {
	start := time.Now()
	ctx, cancel := opContext(r)
	defer cancel()
	out, err := fn(ctx)
	if err != nil {
		if abandoned(r) {
			finishOp(r, op, 499, start, err)
			return
		}
		status := writeServiceError(w, err)
		finishOp(r, op, status, start, err)
		return
	}
	writeJSON(w, out)
	finishOp(r, op, http.StatusOK, start, nil)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}
