package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/manash/splendid/internal/auth"
	"github.com/manash/splendid/internal/compare"
	"github.com/manash/splendid/internal/display"
	"github.com/manash/splendid/internal/history"
	"github.com/manash/splendid/internal/media"
	"github.com/manash/splendid/internal/session"
	"github.com/manash/splendid/internal/studio"
)

// Preview sizes for the comparison composite, in pixels and terminal cells.
const (
	compareWidth   = 768
	compareHeight  = 512
	compareColumns = 60

	// compareImageID keeps redraws of the comparison in one terminal image.
	compareImageID uint32 = 1
)

type REPL struct {
	in        io.Reader
	out       io.Writer
	err       io.Writer
	studio    *studio.Studio
	auth      *auth.Context
	displayer *display.Displayer
	saver     *media.Saver
	journal   *session.Journal
	maxUpload int64
	logger    *log.Logger
	commands  map[string]Command
	compare   *compare.Widget
	running   bool
}

type Config struct {
	In        io.Reader
	Out       io.Writer
	Err       io.Writer
	Studio    *studio.Studio
	Auth      *auth.Context
	Displayer *display.Displayer
	Saver     *media.Saver
	Journal   *session.Journal
	MaxUpload int64
	Logger    *log.Logger
}

func New(cfg *Config) *REPL {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	saver := cfg.Saver
	if saver == nil {
		saver = media.NewSaver(nil, "")
	}
	r := &REPL{
		in:        cfg.In,
		out:       cfg.Out,
		err:       cfg.Err,
		studio:    cfg.Studio,
		auth:      cfg.Auth,
		displayer: cfg.Displayer,
		saver:     saver,
		journal:   cfg.Journal,
		maxUpload: cfg.MaxUpload,
		logger:    logger.With("component", "repl"),
		commands:  make(map[string]Command),
	}
	r.registerCommands()
	return r
}

func (r *REPL) Run(ctx context.Context) error {
	r.running = true
	r.printWelcome()

	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for r.running {
		r.printPrompt()
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if err := r.execute(ctx, line); err != nil {
			fmt.Fprintf(r.err, "Error: %v\n", err)
		}
		r.flushNotices()
	}

	r.closeCompare()
	return scanner.Err()
}

func (r *REPL) execute(ctx context.Context, line string) error {
	parts := parseCommand(line)
	if len(parts) == 0 {
		return nil
	}

	cmdName := strings.ToLower(parts[0])
	args := parts[1:]

	cmd, ok := r.commands[cmdName]
	if !ok {
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmdName)
	}

	return cmd.Execute(ctx, r, args)
}

func (r *REPL) Stop() {
	r.running = false
}

// flushNotices prints queued studio notices. Blocking notices are framed so
// they stand out from regular output.
func (r *REPL) flushNotices() {
	for _, n := range r.studio.Notices() {
		switch {
		case n.Blocking:
			fmt.Fprintf(r.err, "!! %s\n", n.Message)
		case n.Level == studio.LevelInfo:
			fmt.Fprintln(r.out, n.Message)
		case n.Level == studio.LevelWarning:
			fmt.Fprintf(r.err, "Warning: %s\n", n.Message)
		default:
			fmt.Fprintf(r.err, "Error: %s\n", n.Message)
		}
	}
}

func (r *REPL) printWelcome() {
	fmt.Fprintln(r.out, "splendid studio")
	fmt.Fprintln(r.out, "Type 'tools' to list tools, 'use <tool>' to start, 'help' for all commands.")
	fmt.Fprintln(r.out)
}

func (r *REPL) printPrompt() {
	snap := r.studio.Snapshot()
	switch {
	case snap.Tool == nil:
		fmt.Fprint(r.out, "splendid> ")
	case snap.Pending:
		fmt.Fprintf(r.out, "splendid [%s] (generating)> ", snap.Tool.Slug)
	case r.compare != nil:
		fmt.Fprintf(r.out, "splendid [%s] (compare)> ", snap.Tool.Slug)
	default:
		fmt.Fprintf(r.out, "splendid [%s]> ", snap.Tool.Slug)
	}
}

// preview shows refs inline when a displayer is configured.
func (r *REPL) preview(ctx context.Context, refs []string) {
	if r.displayer == nil || len(refs) == 0 {
		return
	}
	if err := r.displayer.ShowAll(ctx, refs); err != nil {
		fmt.Fprintf(r.err, "Warning: failed to display: %v\n", err)
	}
}

func (r *REPL) renderer() *history.Renderer {
	var p history.Previewer
	if r.displayer != nil {
		p = r.displayer
	}
	return history.NewRenderer(r.out, p, r.logger)
}

func (r *REPL) closeCompare() {
	if r.compare != nil {
		r.compare.Unmount()
		r.compare = nil
		if r.displayer != nil {
			r.displayer.Clear(compareImageID)
		}
	}
}

func parseCommand(line string) []string {
	var parts []string
	var current strings.Builder
	inQuotes := false
	quoteChar := rune(0)

	for _, ch := range line {
		switch {
		case ch == '"' || ch == '\'':
			if inQuotes && ch == quoteChar {
				inQuotes = false
				quoteChar = 0
			} else if !inQuotes {
				inQuotes = true
				quoteChar = ch
			} else {
				current.WriteRune(ch)
			}
		case ch == ' ' && !inQuotes:
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(ch)
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	return parts
}
