// Package sqlingo is the interactive client: it collects a connection
// profile, registers it with the backend and then turns questions into SQL.
package sqlingo

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sqlingo/sqlingo/internal/backend"
	"github.com/sqlingo/sqlingo/internal/session"
)

type Options struct {
	BaseURL       string
	RegisterPath  string
	TranslatePath string
	APIKey        string
	Timeout       time.Duration
	Profile       session.ConnectionProfile
	CopiedFlagTTL time.Duration
	HistoryFile   string
	HTTPClient    *http.Client
	Clipboard     session.Clipboard
	Logger        *slog.Logger
	Stdin         io.Reader
	Stdout        io.Writer
	Stderr        io.Writer
	// NewLineReader overrides terminal detection.
	NewLineReader func(in io.Reader, out io.Writer, historyFile string) (LineReader, error)
}

var fieldLabels = map[session.Field]string{
	session.FieldUserID:   "User ID",
	session.FieldEngine:   "Database type (mysql/postgresql/sqlite)",
	session.FieldHost:     "Host",
	session.FieldUsername: "Username",
	session.FieldPassword: "Password",
	session.FieldDatabase: "Database",
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	stdin := defaults.Stdin
	if stdin == nil {
		stdin = strings.NewReader("")
	}

	profile := defaults.Profile
	if profile.Host == "" {
		profile.Host = session.DefaultHost
	}
	if profile.Engine == "" {
		profile.Engine = session.EngineMySQL
	}

	fs := flag.NewFlagSet("sqlingo", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8000"), "translation backend base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key sent as X-API-Key")
	timeout := fs.Duration("timeout", defaults.Timeout, "per-request timeout, 0 waits indefinitely")
	historyFile := fs.String("history-file", defaults.HistoryFile, "readline history file")
	userID := fs.String("user-id", profile.UserID, "initial user id")
	host := fs.String("host", profile.Host, "initial database host")
	username := fs.String("username", profile.Username, "initial database username")
	database := fs.String("database", profile.Database, "initial database name")
	engineName := fs.String("engine", string(profile.Engine), "initial database type: mysql, postgresql or sqlite")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected argument %q\n\n", fs.Arg(0))
		writeUsage(stderr)
		return 2
	}
	engine, err := session.ParseEngine(*engineName)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 2
	}
	profile.UserID = strings.TrimSpace(*userID)
	profile.Host = strings.TrimSpace(*host)
	profile.Username = strings.TrimSpace(*username)
	profile.Database = strings.TrimSpace(*database)
	profile.Engine = engine

	client, err := backend.New(backend.Config{
		BaseURL:       *baseURL,
		RegisterPath:  defaults.RegisterPath,
		TranslatePath: defaults.TranslatePath,
		APIKey:        strings.TrimSpace(*apiKey),
		Timeout:       *timeout,
		HTTPClient:    defaults.HTTPClient,
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "invalid backend configuration: %v\n", err)
		return 2
	}

	controller, err := session.New(session.Options{
		Registrar:     client,
		Translator:    client,
		Clipboard:     defaults.Clipboard,
		Profile:       profile,
		CopiedFlagTTL: defaults.CopiedFlagTTL,
		Logger:        defaults.Logger,
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "init session: %v\n", err)
		return 1
	}

	newReader := defaults.NewLineReader
	if newReader == nil {
		newReader = NewLineReader
	}
	reader, err := newReader(stdin, stdout, *historyFile)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "init input: %v\n", err)
		return 1
	}
	defer func() { _ = reader.Close() }()

	r := &repl{
		controller:   controller,
		reader:       reader,
		stdout:       stdout,
		stderr:       stderr,
		hasClipboard: defaults.Clipboard != nil,
	}
	return r.run(ctx)
}

type repl struct {
	controller   *session.Controller
	reader       LineReader
	stdout       io.Writer
	stderr       io.Writer
	hasClipboard bool
}

func (r *repl) run(ctx context.Context) int {
	_, _ = fmt.Fprintln(r.stdout, "SQLingo: natural language to SQL")
	done, code := r.connect(ctx)
	if done {
		return code
	}
	return r.ask(ctx)
}

// connect loops over the form until the backend accepts the profile. It
// reports done when input ended before that.
func (r *repl) connect(ctx context.Context) (bool, int) {
	for {
		for _, field := range session.Fields {
			if done, code := r.promptField(field); done {
				return true, code
			}
		}

		_, _ = fmt.Fprintln(r.stdout, "Connecting...")
		err := r.controller.Submit(ctx)
		if err == nil {
			break
		}
		r.printError(err)
		if ctx.Err() != nil {
			return true, 1
		}
	}

	profile := r.controller.Snapshot().Profile
	_, _ = fmt.Fprintf(r.stdout, "Connected as %s to %s database %q at %s\n",
		profile.UserID, profile.Engine, profile.Database, profile.Host)
	_, _ = fmt.Fprintln(r.stdout, `Type a question, or \help for commands.`)
	return false, 0
}

func (r *repl) promptField(field session.Field) (bool, int) {
	for {
		current, _ := r.controller.Connection().Profile().Get(field)
		label := fieldLabels[field]
		var (
			line string
			err  error
		)
		if field == session.FieldPassword {
			prompt := label + ": "
			if current != "" {
				prompt = label + " [******]: "
			}
			line, err = r.reader.ReadPassword(prompt)
		} else {
			prompt := label + ": "
			if current != "" {
				prompt = fmt.Sprintf("%s [%s]: ", label, current)
			}
			line, err = r.reader.ReadLine(prompt)
		}
		if done, code := endOfInput(err, r.stderr); done {
			return true, code
		}

		value := strings.TrimSpace(line)
		if field == session.FieldPassword {
			value = line
		}
		if value == "" {
			return false, 0
		}
		if err := r.controller.UpdateField(field, value); err != nil {
			r.printError(err)
			continue
		}
		return false, 0
	}
}

func (r *repl) ask(ctx context.Context) int {
	for {
		line, err := r.reader.ReadLine("sqlingo> ")
		if errors.Is(err, ErrInterrupted) {
			continue
		}
		if done, code := endOfInput(err, r.stderr); done {
			return code
		}

		input := strings.TrimSpace(line)
		switch input {
		case `\q`, `\quit`:
			return 0
		case `\help`:
			writeHelp(r.stdout)
		case `\status`:
			r.writeStatus()
		case `\copy`:
			r.copyResult()
		default:
			if err := r.controller.Convert(ctx, input); err != nil {
				r.printError(err)
				continue
			}
			_, _ = fmt.Fprintln(r.stdout, r.controller.Snapshot().Exchange.SQL)
		}
	}
}

func (r *repl) writeStatus() {
	snapshot := r.controller.Snapshot()
	profile := snapshot.Profile
	_, _ = fmt.Fprintf(r.stdout, "connection: %s (%s@%s/%s, %s)\n",
		snapshot.Connection.Phase, profile.Username, profile.Host, profile.Database, profile.Engine)
	exchange := snapshot.Exchange
	_, _ = fmt.Fprintf(r.stdout, "last query: %s\n", exchange.Status)
	if exchange.Question != "" {
		_, _ = fmt.Fprintf(r.stdout, "question: %s\n", exchange.Question)
	}
	if exchange.SQL != "" {
		suffix := ""
		if exchange.Stale() {
			suffix = " (stale)"
		}
		_, _ = fmt.Fprintf(r.stdout, "sql%s: %s\n", suffix, exchange.SQL)
	}
	if exchange.Reason != "" {
		_, _ = fmt.Fprintf(r.stdout, "error: %s\n", exchange.Reason)
	}
	if snapshot.Copied {
		_, _ = fmt.Fprintln(r.stdout, "copied: yes")
	}
}

func (r *repl) printError(err error) {
	var sessionErr *session.Error
	if errors.As(err, &sessionErr) {
		_, _ = fmt.Fprintln(r.stderr, sessionErr.Message)
		return
	}
	_, _ = fmt.Fprintln(r.stderr, err)
}

// endOfInput maps a read error onto the exit decision.
func endOfInput(err error, stderr io.Writer) (bool, int) {
	switch {
	case err == nil:
		return false, 0
	case errors.Is(err, io.EOF), errors.Is(err, ErrInterrupted):
		return true, 0
	default:
		_, _ = fmt.Fprintf(stderr, "read input: %v\n", err)
		return true, 1
	}
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: sqlingo [flags]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Starts an interactive session. Run with -h for the flag list.")
}

func (r *repl) copyResult() {
	switch {
	case !r.hasClipboard:
		_, _ = fmt.Fprintln(r.stderr, "Clipboard unavailable")
	case r.controller.CopyResult():
		_, _ = fmt.Fprintln(r.stdout, "Copied!")
	case r.controller.Snapshot().Exchange.Status == session.Succeeded:
		_, _ = fmt.Fprintln(r.stderr, "Copy failed")
	default:
		_, _ = fmt.Fprintln(r.stdout, "Nothing to copy")
	}
}

func writeHelp(w io.Writer) {
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, `  \copy     copy the last generated SQL to the clipboard`)
	_, _ = fmt.Fprintln(w, `  \status   show connection and last query state`)
	_, _ = fmt.Fprintln(w, `  \help     show this help`)
	_, _ = fmt.Fprintln(w, `  \quit     exit (also \q)`)
	_, _ = fmt.Fprintln(w, "anything else is sent as a question")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}
