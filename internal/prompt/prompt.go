// Package prompt renders the instruction text sent to a text-generation
// backend for one natural-language question.
package prompt

import "strings"

// Turn is one completed exchange: the user's question and the query that was
// generated for it.
type Turn struct {
	Question string
	Answer   string
}

const policy = `**IMPORTANT and CRITICAL INSTRUCTION**: Generate a valid SQL query with comments to answer the question based **EXCLUSIVELY** on the provided database schema.
Your SQL query **MUST ONLY** use tables and columns that are **explicitly defined** in the provided schema.
**ABSOLUTELY DO NOT** use any tables or columns that are **NOT** present in the schema.
Ensure that all information is retrieved from the **correct tables** as defined in the schema. Use JOINs and aggregations only when the schema justifies them.
It is **ABSOLUTELY CRITICAL** to pay meticulous attention to the schema and column names.
**Column names are case-sensitive**. Your generated SQL query **MUST ALSO BE case-sensitive** and accurately reflect the schema's case.
If the question cannot be answered from the schema, reply with a single SQL comment explaining why.
Return **ONLY** the raw SQL query, without any markdown wrappers, as plain text.`

// HistoryFraming introduces the previous turns of a conversation.
const HistoryFraming = "This prompt includes history from previous turns of this conversation. Use it to resolve references in the current question."

// Build renders the prompt. The history section is omitted when history is
// empty.
func Build(schema, question string, history []Turn) string {
	var b strings.Builder
	b.WriteString(policy)
	b.WriteString("\n\nDatabase Schema:\n")
	b.WriteString(schema)
	b.WriteString("\n\n")

	if len(history) > 0 {
		b.WriteString(HistoryFraming)
		b.WriteString("\n\n")
		for _, turn := range history {
			b.WriteString("Question:\n")
			b.WriteString(turn.Question)
			b.WriteString("\nSQL Query:\n")
			b.WriteString(turn.Answer)
			b.WriteString("\n\n")
		}
	}

	b.WriteString("Question:\n")
	b.WriteString(question)
	b.WriteString("\n\nSQL Query:\n")
	return b.String()
}

// HasHistory reports whether a rendered prompt carries a history section.
func HasHistory(rendered string) bool {
	return strings.Contains(rendered, HistoryFraming)
}
