package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/askdb/askdb/internal/auth"
	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/query"
	"github.com/askdb/askdb/internal/schema"
)

type ReadinessCheck func(ctx context.Context) error

// SchemaProvider is satisfied by *schema.Cache.
type SchemaProvider interface {
	Get(ctx context.Context) (schema.Schema, string, error)
	Invalidate()
}

// Translator is satisfied by *nl2sql.Generator.
type Translator interface {
	GenerateQuery(ctx context.Context, req nl2sql.Request) (nl2sql.Result, error)
	EndConversation(id string) error
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Schema            SchemaProvider
	Translator        Translator
	Executor          query.Executor
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	rowLimit := cfg.Database.RowLimit
	routes := map[string]http.Handler{
		"GET /v1/schema": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handleSchema(deps, w, r)
		}),
		"POST /v1/query/translate": auth.RequireScope(auth.ScopeTranslate, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handleTranslate(deps, w, r)
		})),
		"DELETE /v1/conversations/{id}": auth.RequireScope(auth.ScopeTranslate, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handleEndConversation(deps, w, r)
		})),
		"POST /v1/query": auth.RequireScope(auth.ScopeExecute, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.HTTP.ExecuteEnabled {
				writeError(r.Context(), w, http.StatusNotImplemented, "EXECUTE_DISABLED", "query execution is disabled on this server", false, nil)
				return
			}
			handleQuery(deps, rowLimit, w, r)
		})),
	}

	protected := http.NewServeMux()
	for pattern, handler := range routes {
		protected.Handle(pattern, handler)
	}

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	for pattern := range routes {
		mux.Handle(pattern, protectedHandler)
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

// PingDatabase reports the target database as ready when it answers a ping.
func PingDatabase(pinger interface {
	PingContext(ctx context.Context) error
}) ReadinessCheck {
	return func(ctx context.Context) error {
		return pinger.PingContext(ctx)
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
