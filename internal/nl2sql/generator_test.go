package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/conversation"
)

type blockingBackend struct{}

func (blockingBackend) Name() string  { return "LM Studio" }
func (blockingBackend) Model() string { return "lm-chat" }

func (blockingBackend) Complete(ctx context.Context, _, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestNewBackendRequiresKey(t *testing.T) {
	for _, provider := range []string{config.ProviderOpenAI, config.ProviderDeepSeek, config.ProviderGemini} {
		_, err := NewBackend(context.Background(), config.AIConfig{
			Provider: provider,
			BaseURL:  "http://127.0.0.1:1/v1",
			Model:    "m",
		})
		if !errors.Is(err, ErrConfiguration) {
			t.Fatalf("NewBackend(%s) error = %v, want configuration error", provider, err)
		}
		var tagged *Error
		if !errors.As(err, &tagged) || tagged.Provider != ProviderName(provider) {
			t.Fatalf("NewBackend(%s) error = %#v", provider, err)
		}
	}
}

func TestNewBackendUnknownProvider(t *testing.T) {
	if _, err := NewBackend(context.Background(), config.AIConfig{Provider: "bard"}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("NewBackend() error = %v", err)
	}
}

func TestNewBackendLMStudio(t *testing.T) {
	backend, err := NewBackend(context.Background(), config.AIConfig{
		Provider: config.ProviderLMStudio,
		BaseURL:  "http://localhost:1234/v1",
		Model:    "lm-chat",
		Timeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	if backend.Name() != "LM Studio" || backend.Model() != "lm-chat" {
		t.Fatalf("backend = %s/%s", backend.Name(), backend.Model())
	}
}

func TestEndConversation(t *testing.T) {
	store := conversation.NewStore()
	gen := NewGenerator(blockingBackend{}, store, 0, nil)
	store.Append("c1", "q", "SELECT 1;")

	if err := gen.EndConversation("c1"); err != nil {
		t.Fatalf("EndConversation() error = %v", err)
	}
	err := gen.EndConversation("c1")
	if !errors.Is(err, conversation.ErrNotFound) {
		t.Fatalf("EndConversation() error = %v, want not found", err)
	}
	var tagged *Error
	if !errors.As(err, &tagged) || tagged.Kind != KindNotFound {
		t.Fatalf("EndConversation() error = %#v", err)
	}
}

func TestGenerateQueryAppliesTimeout(t *testing.T) {
	gen := NewGenerator(blockingBackend{}, nil, 20*time.Millisecond, nil)

	_, err := gen.GenerateQuery(context.Background(), Request{Question: "q"})
	if !errors.Is(err, ErrTransport) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("GenerateQuery() error = %v", err)
	}
}

// gatedBackend holds its first call until release is closed.
type gatedBackend struct {
	mu      sync.Mutex
	prompts []string
	entered chan struct{}
	release chan struct{}
}

func newGatedBackend() *gatedBackend {
	return &gatedBackend{entered: make(chan struct{}, 2), release: make(chan struct{})}
}

func (*gatedBackend) Name() string  { return "DeepSeek" }
func (*gatedBackend) Model() string { return "deepseek-chat" }

func (b *gatedBackend) Complete(ctx context.Context, _, prompt string) (string, error) {
	b.mu.Lock()
	b.prompts = append(b.prompts, prompt)
	n := len(b.prompts)
	b.mu.Unlock()

	b.entered <- struct{}{}
	if n == 1 {
		select {
		case <-b.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return fmt.Sprintf("SELECT %d;", n), nil
}

func TestGenerateQuerySerializesOneConversation(t *testing.T) {
	backend := newGatedBackend()
	store := conversation.NewStore()
	gen := NewGenerator(backend, store, 0, nil)

	firstErr := make(chan error, 1)
	go func() {
		_, err := gen.GenerateQuery(context.Background(), Request{Question: "first question", Schema: "s", ConversationID: "c"})
		firstErr <- err
	}()
	<-backend.entered

	secondErr := make(chan error, 1)
	go func() {
		_, err := gen.GenerateQuery(context.Background(), Request{Question: "second question", Schema: "s", ConversationID: "c"})
		secondErr <- err
	}()

	select {
	case <-backend.entered:
		t.Fatal("second question reached the backend while the first was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(backend.release)
	if err := <-firstErr; err != nil {
		t.Fatalf("first GenerateQuery() error = %v", err)
	}
	if err := <-secondErr; err != nil {
		t.Fatalf("second GenerateQuery() error = %v", err)
	}

	if !strings.Contains(backend.prompts[1], "first question") {
		t.Fatalf("second prompt missing first turn: %q", backend.prompts[1])
	}
	_, history := store.StartOrContinue("c")
	if len(history) != 2 || history[0].Question != "first question" || history[0].Answer != "SELECT 1;" ||
		history[1].Question != "second question" || history[1].Answer != "SELECT 2;" {
		t.Fatalf("history = %+v", history)
	}
}

func TestGenerateQueryOnDifferentConversationsRunsConcurrently(t *testing.T) {
	backend := newGatedBackend()
	gen := NewGenerator(backend, nil, 0, nil)

	go func() {
		_, _ = gen.GenerateQuery(context.Background(), Request{Question: "q1", ConversationID: "a"})
	}()
	<-backend.entered

	result, err := gen.GenerateQuery(context.Background(), Request{Question: "q2", ConversationID: "b"})
	if err != nil {
		t.Fatalf("GenerateQuery() error = %v", err)
	}
	if result.SQL != "SELECT 2;" {
		t.Fatalf("GenerateQuery().SQL = %q", result.SQL)
	}
	close(backend.release)
}

func TestGenerateTextWithoutIDLeavesNoConversation(t *testing.T) {
	store := conversation.NewStore()
	gen := NewGenerator(&scriptedReply{reply: "SELECT 1;"}, store, 0, nil)

	if got := gen.GenerateText(context.Background(), "q", "s", ""); got != "SELECT 1;" {
		t.Fatalf("GenerateText() = %q", got)
	}
	if store.Len() != 0 {
		t.Fatalf("store.Len() = %d, want 0", store.Len())
	}

	if got := gen.GenerateText(context.Background(), "q", "s", "kept"); got != "SELECT 1;" {
		t.Fatalf("GenerateText(kept) = %q", got)
	}
	if store.Len() != 1 {
		t.Fatalf("store.Len() = %d, want 1", store.Len())
	}
}

type scriptedReply struct {
	reply string
}

func (scriptedReply) Name() string  { return "OpenAI" }
func (scriptedReply) Model() string { return "gpt-4o-mini" }

func (r *scriptedReply) Complete(context.Context, string, string) (string, error) {
	return r.reply, nil
}
