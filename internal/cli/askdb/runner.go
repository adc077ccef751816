// Package askdb is the interactive command line front end: it turns questions
// into SQL and, once confirmed, runs the SQL against the target database.
package askdb

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/query"
	"github.com/askdb/askdb/internal/schema"
)

const questionPrompt = "Ask me anything about the database (or type 'exit' to quit): "

type SchemaProvider interface {
	Get(ctx context.Context) (schema.Schema, string, error)
}

type Translator interface {
	GenerateQuery(ctx context.Context, req nl2sql.Request) (nl2sql.Result, error)
	EndConversation(id string) error
}

// Services are the collaborators a session talks to.
type Services struct {
	Translator Translator
	Schema     SchemaProvider
	Executor   query.Executor
}

type Options struct {
	Translator Translator
	Schema     SchemaProvider
	Executor   query.Executor
	// Connect, when set, supplies the services once the arguments are valid,
	// so usage errors never need a database or credentials. The returned
	// func releases what it opened.
	Connect  func(ctx context.Context) (Services, func(), error)
	RowLimit int
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
}

// Run executes one askdb invocation and returns its exit code: 0 on success,
// 1 on runtime failure, 2 on usage errors.
func Run(ctx context.Context, args []string, opts Options) int {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	stdin := opts.Stdin
	if stdin == nil {
		stdin = strings.NewReader("")
	}

	fs := flag.NewFlagSet("askdb", flag.ContinueOnError)
	fs.SetOutput(stderr)

	debug := fs.Bool("debug", false, "print the database schema before the first question")
	yes := fs.Bool("yes", false, "run generated queries without asking for confirmation")
	noExec := fs.Bool("no-exec", false, "never run generated queries")
	rowLimit := fs.Int("row-limit", opts.RowLimit, "maximum rows printed per query (0 = unlimited)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *rowLimit < 0 {
		_, _ = fmt.Fprintln(stderr, "row-limit must be >= 0")
		return 2
	}

	command := "repl"
	if fs.NArg() > 0 {
		command = strings.TrimSpace(fs.Arg(0))
	}
	var question string
	switch command {
	case "repl", "schema":
		if fs.NArg() > 1 {
			writeUsage(stderr)
			return 2
		}
	case "ask":
		question = strings.TrimSpace(strings.Join(fs.Args()[1:], " "))
		if question == "" {
			_, _ = fmt.Fprintln(stderr, "ask requires a question")
			writeUsage(stderr)
			return 2
		}
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}

	if opts.Connect != nil {
		services, release, err := opts.Connect(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "failed to initialize: %v\n", err)
			return 1
		}
		if release != nil {
			defer release()
		}
		opts.Translator, opts.Schema, opts.Executor = services.Translator, services.Schema, services.Executor
	}

	if opts.Schema == nil {
		_, _ = fmt.Fprintln(stderr, "schema source is not configured")
		return 1
	}
	_, schemaText, err := opts.Schema.Get(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error reading database schema: %v\n", err)
		return 1
	}
	if command == "schema" {
		_, _ = fmt.Fprint(stdout, schemaText)
		return 0
	}
	if *debug {
		_, _ = fmt.Fprintln(stdout, "\nDatabase Schema (Debug Mode):")
		_, _ = fmt.Fprintln(stdout, schemaText)
	}
	if opts.Translator == nil {
		_, _ = fmt.Fprintln(stderr, "query translation is not configured")
		return 1
	}

	s := &session{
		opts:       opts,
		schemaText: schemaText,
		stdin:      stdin,
		stdout:     stdout,
		stderr:     stderr,
		rowLimit:   *rowLimit,
		autoRun:    *yes,
		noExec:     *noExec || opts.Executor == nil,
	}
	if command == "ask" {
		// A one-shot question never prompts, so it only runs with -yes.
		s.noExec = s.noExec || !*yes
		return s.ask(ctx, question)
	}
	return s.repl(ctx)
}

type session struct {
	opts           Options
	schemaText     string
	stdin          io.Reader
	in             *lineReader
	stdout         io.Writer
	stderr         io.Writer
	rowLimit       int
	autoRun        bool
	noExec         bool
	conversationID string
}

func (s *session) ask(ctx context.Context, question string) int {
	defer s.endConversation()
	sqlText, ok := s.generate(ctx, question)
	if !ok {
		return 1
	}
	if s.noExec {
		return 0
	}
	if !s.execute(ctx, sqlText) {
		return 1
	}
	return 0
}

func (s *session) repl(ctx context.Context) int {
	s.in = newLineReader(s.stdin)
	defer s.in.close()
	defer s.endConversation()
	for {
		_, _ = fmt.Fprint(s.stdout, questionPrompt)
		line, err := s.in.next(ctx)
		if err != nil {
			return s.inputDone(err)
		}
		question := strings.TrimSpace(line)
		switch strings.ToLower(question) {
		case "":
			continue
		case "exit":
			return 0
		case "reset":
			s.endConversation()
			_, _ = fmt.Fprintln(s.stdout, "Conversation reset.")
			continue
		}

		sqlText, ok := s.generate(ctx, question)
		if !ok {
			continue
		}

		run, err := s.confirm(ctx)
		if err != nil {
			return s.inputDone(err)
		}
		if !run {
			_, _ = fmt.Fprintln(s.stdout, "Query not executed.")
			continue
		}
		s.execute(ctx, sqlText)
	}
}

// inputDone maps the end of interactive input to an exit code. End of input
// and an interrupt end the session normally.
func (s *session) inputDone(err error) int {
	switch {
	case errors.Is(err, io.EOF):
		return 0
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		_, _ = fmt.Fprintln(s.stdout)
		return 0
	}
	_, _ = fmt.Fprintf(s.stderr, "reading input: %v\n", err)
	return 1
}

func (s *session) generate(ctx context.Context, question string) (string, bool) {
	result, err := s.opts.Translator.GenerateQuery(ctx, nl2sql.Request{
		Question:       question,
		Schema:         s.schemaText,
		ConversationID: s.conversationID,
	})
	if result.ConversationID != "" {
		s.conversationID = result.ConversationID
	}
	if err != nil {
		_, _ = fmt.Fprintln(s.stderr, err.Error())
		return "", false
	}
	_, _ = fmt.Fprintln(s.stdout, "\nGenerated SQL Query:")
	_, _ = fmt.Fprintln(s.stdout, result.SQL)
	return result.SQL, true
}

func (s *session) confirm(ctx context.Context) (bool, error) {
	switch {
	case s.noExec:
		return false, nil
	case s.autoRun:
		return true, nil
	}
	return askYesNo(ctx, s.in, s.stdout, "Run this query?", true)
}

func (s *session) execute(ctx context.Context, sqlText string) bool {
	result, err := s.opts.Executor.Execute(ctx, query.Request{SQL: sqlText, RowLimit: s.rowLimit})
	if err != nil {
		_, _ = fmt.Fprintf(s.stderr, "Error executing query: %v\n", err)
		return false
	}
	printResult(s.stdout, result)
	return true
}

func (s *session) endConversation() {
	if s.conversationID == "" {
		return
	}
	_ = s.opts.Translator.EndConversation(s.conversationID)
	s.conversationID = ""
}

// askYesNo re-asks until the answer is yes, y, no or n. An empty answer picks
// the default. io.EOF is returned when input ends before an answer.
func askYesNo(ctx context.Context, in *lineReader, out io.Writer, question string, defaultYes bool) (bool, error) {
	options := "([Y]/n)"
	if !defaultYes {
		options = "([n]/y)"
	}
	for {
		_, _ = fmt.Fprintf(out, "%s %s: ", question, options)
		line, err := in.next(ctx)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "":
			return defaultYes, nil
		case "yes", "y":
			return true, nil
		case "no", "n":
			return false, nil
		}
		_, _ = fmt.Fprintln(out, "Please answer 'yes' or 'no'.")
	}
}

// lineReader reads stdin on its own goroutine so a blocked read never delays
// reacting to a cancelled context.
type lineReader struct {
	lines chan string
	done  chan struct{}
	err   error
}

func newLineReader(r io.Reader) *lineReader {
	lr := &lineReader{lines: make(chan string), done: make(chan struct{})}
	go func() {
		defer close(lr.lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lr.lines <- scanner.Text():
			case <-lr.done:
				return
			}
		}
		lr.err = scanner.Err()
	}()
	return lr
}

// next returns the next input line, io.EOF at the end of input, the read
// error, or ctx.Err() when ctx is done first.
func (lr *lineReader) next(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-lr.lines:
		if !ok {
			if lr.err != nil {
				return "", lr.err
			}
			return "", io.EOF
		}
		return line, nil
	}
}

func (lr *lineReader) close() {
	close(lr.done)
}

func printResult(w io.Writer, result query.Result) {
	_, _ = fmt.Fprintln(w, "\nQuery Results:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(result.Columns) > 0 {
		_, _ = fmt.Fprintln(tw, strings.Join(result.Columns, "\t"))
	}
	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, value := range row {
			cells[i] = formatValue(value)
		}
		_, _ = fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()

	summary := fmt.Sprintf("%d row(s) in %s", len(result.Rows), result.Duration.Round(time.Millisecond))
	if result.Truncated {
		summary += ", output truncated"
	}
	_, _ = fmt.Fprintln(w, summary)
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: askdb [flags] [command]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  repl              interactive session (default)")
	_, _ = fmt.Fprintln(w, "  ask <question>    generate SQL for one question, run it with -yes")
	_, _ = fmt.Fprintln(w, "  schema            print the database schema")
}
