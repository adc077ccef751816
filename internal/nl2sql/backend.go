package nl2sql

import "context"

// SystemInstruction is sent with every generation request.
const SystemInstruction = "You are a database admin. Generate SQL queries strictly adhering to the schema provided."

// Backend is one text-generation provider. Complete sends a single
// system/user exchange and returns the raw reply text.
type Backend interface {
	Name() string
	Model() string
	Complete(ctx context.Context, system, prompt string) (string, error)
}

type Request struct {
	Question       string `json:"question"`
	Schema         string `json:"schema"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type Result struct {
	SQL            string `json:"sql"`
	ConversationID string `json:"conversation_id"`
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	Prompt         string `json:"-"`
}
