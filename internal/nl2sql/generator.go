package nl2sql

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/askdb/askdb/internal/conversation"
	"github.com/askdb/askdb/internal/prompt"
)

// Generator turns questions into SQL through one Backend, threading the
// conversation history of the shared store into every prompt.
type Generator struct {
	backend Backend
	store   *conversation.Store
	timeout time.Duration
	logger  *slog.Logger
}

func NewGenerator(backend Backend, store *conversation.Store, timeout time.Duration, logger *slog.Logger) *Generator {
	if store == nil {
		store = conversation.NewStore()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Generator{backend: backend, store: store, timeout: timeout, logger: logger}
}

func (g *Generator) Provider() string { return g.backend.Name() }
func (g *Generator) Model() string    { return g.backend.Model() }

// GenerateQuery renders the prompt for req, asks the backend for a query and
// records the normalized answer in the conversation. Nothing is recorded when
// the backend fails.
func (g *Generator) GenerateQuery(ctx context.Context, req Request) (Result, error) {
	// A known id is held from reading its history until the answer is
	// appended, so concurrent questions on one conversation see each other in
	// the order they are asked. A fresh id is not shared with anyone yet.
	if req.ConversationID != "" {
		unlock, err := g.store.Lock(ctx, req.ConversationID)
		if err != nil {
			return Result{ConversationID: req.ConversationID, Provider: g.backend.Name(), Model: g.backend.Model()},
				transportError(g.backend.Name(), err)
		}
		defer unlock()
	}

	id, history := g.store.StartOrContinue(req.ConversationID)
	rendered := prompt.Build(req.Schema, req.Question, history)
	result := Result{
		ConversationID: id,
		Provider:       g.backend.Name(),
		Model:          g.backend.Model(),
		Prompt:         rendered,
	}

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := g.backend.Complete(callCtx, SystemInstruction, rendered)
	if err == nil {
		result.SQL = StripMarkdownSQL(raw)
		if result.SQL == "" {
			err = responseFormatError(result.Provider, errors.New("model returned empty SQL"))
		}
	} else {
		var tagged *Error
		if !asError(err, &tagged) {
			err = transportError(result.Provider, err)
		}
	}
	observeGeneration(result.Provider, err, time.Since(start))
	if err != nil {
		g.logger.WarnContext(ctx, "sql generation failed",
			slog.String("provider", result.Provider),
			slog.String("conversation_id", id),
			slog.Any("error", err),
		)
		return result, err
	}

	g.store.Append(id, req.Question, result.SQL)
	g.logger.DebugContext(ctx, "sql generated",
		slog.String("provider", result.Provider),
		slog.String("conversation_id", id),
		slog.Int("history_turns", len(history)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// EndConversation waits for an in-flight generation on id before removing
// it, so a late answer cannot bring the conversation back.
func (g *Generator) EndConversation(id string) error {
	unlock, err := g.store.Lock(context.Background(), id)
	if err != nil {
		return err
	}
	defer unlock()
	if err := g.store.End(id); err != nil {
		return &Error{Kind: KindNotFound, Provider: g.backend.Name(), Err: err}
	}
	return nil
}

// GenerateText is the single-channel form of GenerateQuery: failures are
// returned as descriptive text naming the provider instead of an error.
func (g *Generator) GenerateText(ctx context.Context, question, schema, conversationID string) string {
	result, err := g.GenerateQuery(ctx, Request{Question: question, Schema: schema, ConversationID: conversationID})
	if conversationID == "" {
		// The id was never surfaced, so nobody can continue it.
		_ = g.store.End(result.ConversationID)
	}
	if err != nil {
		return err.Error()
	}
	return result.SQL
}

func asError(err error, target **Error) bool {
	return errors.As(err, target)
}
