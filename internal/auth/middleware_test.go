package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStaticAPIKeyValidatorParsing(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:analyst:translate|execute, k2:dashboard")
	if err != nil {
		t.Fatalf("NewStaticAPIKeyValidator() error = %v", err)
	}
	identity, ok := validator.Validate(context.Background(), "k1")
	if !ok {
		t.Fatal("expected key to be valid")
	}
	if identity.Principal != "analyst" {
		t.Fatalf("Principal = %q", identity.Principal)
	}
	if !identity.HasScope(ScopeExecute) {
		t.Fatal("expected execute scope")
	}

	dashboard, ok := validator.Validate(context.Background(), "k2")
	if !ok || !dashboard.HasScope(ScopeTranslate) || dashboard.HasScope(ScopeExecute) {
		t.Fatalf("k2 identity = %+v", dashboard)
	}
	if validator.Len() != 2 {
		t.Fatalf("Len() = %d", validator.Len())
	}
}

func TestStaticAPIKeyValidatorRejectsBadSpec(t *testing.T) {
	for _, spec := range []string{"invalid", "k1:", "k1:p:admin", "k1:p,k1:q", "k1:p:"} {
		if _, err := NewStaticAPIKeyValidator(spec); err == nil {
			t.Fatalf("NewStaticAPIKeyValidator(%q) expected parse error", spec)
		}
	}
}

func TestMiddlewareRequiresKey(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:analyst")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}

	mw := Middleware(slog.New(slog.NewJSONHandler(io.Discard, nil)), validator)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/schema", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestMiddlewareInjectsIdentityFromBearer(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:analyst")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}

	mw := Middleware(nil, validator)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatal("expected identity in context")
		}
		if identity.Principal != "analyst" {
			t.Fatalf("Principal = %q", identity.Principal)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/schema", nil)
	req.Header.Set("Authorization", "Bearer k1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestRequireScope(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	handler := RequireScope(ScopeExecute, ok)

	req := httptest.NewRequest(http.MethodPost, "/v1/query", nil)
	req = req.WithContext(WithIdentity(req.Context(), Identity{Principal: "p", Scopes: []string{ScopeTranslate}}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/query", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status without identity = %d", rr.Code)
	}
}

func TestBearerSchemeIsCaseInsensitive(t *testing.T) {
	for _, header := range []string{"bearer k1", "BEARER  k1", "Bearer k1"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/schema", nil)
		req.Header.Set("Authorization", header)
		if got := extractAPIKey(req); got != "k1" {
			t.Fatalf("extractAPIKey(%q) = %q", header, got)
		}
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/schema", nil)
	req.Header.Set("Authorization", "Basic azE6")
	if got := extractAPIKey(req); got != "" {
		t.Fatalf("extractAPIKey(Basic) = %q", got)
	}
}

func TestAuthErrorUsesAPIEnvelope(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:analyst")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}
	handler := Middleware(nil, validator)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/schema", nil)
	req.Header.Set("X-API-Key", "wrong")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	for _, key := range []string{"error_code", "message", "retryable", "context", "trace_id"} {
		if _, ok := body[key]; !ok {
			t.Fatalf("body missing %q: %v", key, body)
		}
	}
	if body["error_code"] != "UNAUTHORIZED" {
		t.Fatalf("error_code = %v", body["error_code"])
	}
}
