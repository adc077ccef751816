package nl2sql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/askdb/askdb/internal/conversation"
	"github.com/askdb/askdb/internal/prompt"
)

const usersSchema = "-- Table: Users\nCREATE TABLE Users (\n    id int,\n    name varchar(64)\n);"

type capturedChat struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

type chatServer struct {
	mu       sync.Mutex
	requests []capturedChat
	reply    func(w http.ResponseWriter)
}

func (s *chatServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/chat/completions" {
		http.NotFound(w, r)
		return
	}
	var req capturedChat
	_ = json.NewDecoder(r.Body).Decode(&req)
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	s.reply(w)
}

func replyContent(content string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "deepseek-chat",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}
}

func newDeepSeek(t *testing.T, srv *httptest.Server) *OpenAICompatible {
	t.Helper()
	backend, err := NewOpenAICompatible(OpenAIConfig{
		Provider:   "DeepSeek",
		BaseURL:    srv.URL + "/v1",
		APIKey:     "sk-test",
		Model:      "deepseek-chat",
		RequireKey: true,
	})
	if err != nil {
		t.Fatalf("NewOpenAICompatible() error = %v", err)
	}
	return backend
}

func TestStripMarkdownSQL(t *testing.T) {
	cases := map[string]string{
		"```sql\nSELECT 1;\n```":         "SELECT 1;",
		"  SELECT 1;  ":                  "SELECT 1;",
		"```\nSELECT 2;\n```":            "SELECT 2;",
		"Here:\n```SQL\nSELECT 3;\n```":  "Here:\n\nSELECT 3;",
		"```sql\nSELECT 4;\n``` ```sql ": "SELECT 4;",
	}
	for input, want := range cases {
		if got := StripMarkdownSQL(input); got != want {
			t.Fatalf("StripMarkdownSQL(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestGenerateQueryCarriesHistoryIntoSecondPrompt(t *testing.T) {
	chat := &chatServer{reply: replyContent("```sql\n-- count users\nSELECT COUNT(*) FROM Users;\n```")}
	srv := httptest.NewServer(chat)
	defer srv.Close()

	gen := NewGenerator(newDeepSeek(t, srv), conversation.NewStore(), 0, nil)
	first, err := gen.GenerateQuery(context.Background(), Request{Question: "How many users are there?", Schema: usersSchema})
	if err != nil {
		t.Fatalf("GenerateQuery() error = %v", err)
	}
	if first.SQL != "-- count users\nSELECT COUNT(*) FROM Users;" {
		t.Fatalf("GenerateQuery() SQL = %q", first.SQL)
	}
	if first.ConversationID == "" || first.Provider != "DeepSeek" || first.Model != "deepseek-chat" {
		t.Fatalf("GenerateQuery() result = %+v", first)
	}
	if prompt.HasHistory(first.Prompt) {
		t.Fatal("first prompt should not carry history")
	}

	second, err := gen.GenerateQuery(context.Background(), Request{
		Question:       "Only the ones named Bob?",
		Schema:         usersSchema,
		ConversationID: first.ConversationID,
	})
	if err != nil {
		t.Fatalf("GenerateQuery() error = %v", err)
	}
	if second.ConversationID != first.ConversationID {
		t.Fatalf("conversation id changed: %q -> %q", first.ConversationID, second.ConversationID)
	}

	if len(chat.requests) != 2 {
		t.Fatalf("requests = %d", len(chat.requests))
	}
	req := chat.requests[1]
	if req.Model != "deepseek-chat" || len(req.Messages) != 2 {
		t.Fatalf("request = %+v", req)
	}
	if req.Messages[0].Role != "system" || req.Messages[0].Content != SystemInstruction {
		t.Fatalf("system message = %+v", req.Messages[0])
	}
	user := req.Messages[1].Content
	if !prompt.HasHistory(user) ||
		!strings.Contains(user, "How many users are there?") ||
		!strings.Contains(user, "-- count users\nSELECT COUNT(*) FROM Users;") ||
		!strings.Contains(user, "Only the ones named Bob?") {
		t.Fatalf("second prompt missing history:\n%s", user)
	}
}

func TestGenerateQueryTransportFailure(t *testing.T) {
	srv := httptest.NewServer(&chatServer{reply: func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream down","type":"server_error"}}`))
	}})
	defer srv.Close()

	store := conversation.NewStore()
	gen := NewGenerator(newDeepSeek(t, srv), store, 0, nil)
	result, err := gen.GenerateQuery(context.Background(), Request{Question: "q", Schema: usersSchema})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("GenerateQuery() error = %v, want transport", err)
	}
	if _, history := store.StartOrContinue(result.ConversationID); len(history) != 0 {
		t.Fatalf("failed turn was recorded: %+v", history)
	}

	text := gen.GenerateText(context.Background(), "q", usersSchema, "")
	if !strings.HasPrefix(text, "Error communicating with DeepSeek API: ") {
		t.Fatalf("GenerateText() = %q", text)
	}
}

func TestGenerateQueryEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(&chatServer{reply: func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	}})
	defer srv.Close()

	gen := NewGenerator(newDeepSeek(t, srv), nil, 0, nil)
	_, err := gen.GenerateQuery(context.Background(), Request{Question: "q", Schema: usersSchema})
	if !errors.Is(err, ErrResponseFormat) {
		t.Fatalf("GenerateQuery() error = %v, want response format", err)
	}
	if text := gen.GenerateText(context.Background(), "q", usersSchema, ""); !strings.HasPrefix(text, "Error parsing DeepSeek API response: ") {
		t.Fatalf("GenerateText() = %q", text)
	}
}

func TestGenerateQueryUndecodableBody(t *testing.T) {
	srv := httptest.NewServer(&chatServer{reply: func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`not json`))
	}})
	defer srv.Close()

	gen := NewGenerator(newDeepSeek(t, srv), nil, 0, nil)
	if _, err := gen.GenerateQuery(context.Background(), Request{Question: "q"}); !errors.Is(err, ErrResponseFormat) {
		t.Fatalf("GenerateQuery() error = %v, want response format", err)
	}
}

func TestGenerateQueryEmptySQLIsResponseFormatError(t *testing.T) {
	chat := &chatServer{reply: replyContent("```sql\n```")}
	srv := httptest.NewServer(chat)
	defer srv.Close()

	gen := NewGenerator(newDeepSeek(t, srv), nil, 0, nil)
	if _, err := gen.GenerateQuery(context.Background(), Request{Question: "q"}); !errors.Is(err, ErrResponseFormat) {
		t.Fatalf("GenerateQuery() error = %v, want response format", err)
	}
}

func TestLMStudioDoesNotRequireKey(t *testing.T) {
	chat := &chatServer{reply: replyContent("SELECT 1;")}
	srv := httptest.NewServer(chat)
	defer srv.Close()

	backend, err := NewOpenAICompatible(OpenAIConfig{Provider: "LM Studio", BaseURL: srv.URL + "/v1", Model: "lm-chat"})
	if err != nil {
		t.Fatalf("NewOpenAICompatible() error = %v", err)
	}
	got, err := backend.Complete(context.Background(), SystemInstruction, "p")
	if err != nil || got != "SELECT 1;" {
		t.Fatalf("Complete() = %q, %v", got, err)
	}
}
