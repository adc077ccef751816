package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/askdb/askdb/internal/nl2sql"
)

type translateRequest struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversation_id"`
}

type translateResponse struct {
	SQL            string `json:"sql"`
	ConversationID string `json:"conversation_id"`
	Provider       string `json:"provider"`
	Model          string `json:"model"`
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema source is not configured", false, nil)
		return
	}
	if r.URL.Query().Get("refresh") == "true" {
		deps.Schema.Invalidate()
	}
	loaded, text, err := deps.Schema.Get(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_FETCH_FAILED", "failed to load database schema", true, map[string]any{"details": err.Error()})
		return
	}

	tables := make([]string, 0, len(loaded.Tables))
	for _, table := range loaded.Tables {
		tables = append(tables, table.Name)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"dialect": loaded.Dialect,
		"version": loaded.Version,
		"tables":  tables,
		"schema":  text,
	})
}

func handleTranslate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Translator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSLATE_NOT_CONFIGURED", "query translation is not configured", false, nil)
		return
	}
	if deps.Schema == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema source is not configured", false, nil)
		return
	}

	var req translateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid translation request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	_, schemaText, err := deps.Schema.Get(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_FETCH_FAILED", "failed to load database schema", true, map[string]any{"details": err.Error()})
		return
	}

	result, err := deps.Translator.GenerateQuery(r.Context(), nl2sql.Request{
		Question:       req.Question,
		Schema:         schemaText,
		ConversationID: strings.TrimSpace(req.ConversationID),
	})
	if err != nil {
		writeGenerationError(w, r, err, result.ConversationID)
		return
	}

	writeJSON(w, http.StatusOK, translateResponse{
		SQL:            result.SQL,
		ConversationID: result.ConversationID,
		Provider:       result.Provider,
		Model:          result.Model,
	})
}

func handleEndConversation(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Translator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSLATE_NOT_CONFIGURED", "query translation is not configured", false, nil)
		return
	}
	id := r.PathValue("id")
	if err := deps.Translator.EndConversation(id); err != nil {
		writeGenerationError(w, r, err, id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeGenerationError(w http.ResponseWriter, r *http.Request, err error, conversationID string) {
	extra := map[string]any{"details": err.Error()}
	if conversationID != "" {
		extra["conversation_id"] = conversationID
	}

	var tagged *nl2sql.Error
	if !errors.As(err, &tagged) {
		writeError(r.Context(), w, http.StatusInternalServerError, "TRANSLATE_FAILED", "failed to translate question", true, extra)
		return
	}
	extra["provider"] = tagged.Provider
	switch tagged.Kind {
	case nl2sql.KindConfiguration:
		writeError(r.Context(), w, http.StatusInternalServerError, "CONFIGURATION_ERROR", "text generation backend is misconfigured", false, extra)
	case nl2sql.KindTransport:
		writeError(r.Context(), w, http.StatusBadGateway, "TRANSPORT_ERROR", "text generation backend could not be reached", true, extra)
	case nl2sql.KindResponseFormat:
		writeError(r.Context(), w, http.StatusBadGateway, "RESPONSE_FORMAT_ERROR", "text generation backend returned an unusable response", true, extra)
	case nl2sql.KindNotFound:
		writeError(r.Context(), w, http.StatusNotFound, "CONVERSATION_NOT_FOUND", "conversation was not found", false, extra)
	default:
		writeError(r.Context(), w, http.StatusInternalServerError, "TRANSLATE_FAILED", "failed to translate question", true, extra)
	}
}
