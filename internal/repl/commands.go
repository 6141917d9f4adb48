package repl

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/manash/splendid/internal/auth"
	"github.com/manash/splendid/internal/compare"
	"github.com/manash/splendid/internal/credits"
	"github.com/manash/splendid/internal/history"
	"github.com/manash/splendid/internal/media"
	"github.com/manash/splendid/internal/security"
	"github.com/manash/splendid/internal/session"
	"github.com/manash/splendid/internal/studio"
	"github.com/manash/splendid/pkg/models"
)

type Command interface {
	Name() string
	Aliases() []string
	Description() string
	Usage() string
	Execute(ctx context.Context, r *REPL, args []string) error
}

func allCommands() []Command {
	return []Command{
		&ToolsCommand{},
		&UseCommand{},
		&PromptCommand{},
		&SetCommand{},
		&AttachCommand{},
		&DetachCommand{},
		&QuoteCommand{},
		&GenerateCommand{},
		&HistoryCommand{},
		&ShowCommand{},
		&SaveCommand{},
		&CompareCommand{},
		&SlideCommand{},
		&FullscreenCommand{},
		&DownloadCommand{},
		&NewCommand{},
		&LoginCommand{},
		&LogoutCommand{},
		&WhoamiCommand{},
		&CreditsCommand{},
		&JournalCommand{},
		&HelpCommand{},
		&QuitCommand{},
	}
}

func (r *REPL) registerCommands() {
	for _, cmd := range allCommands() {
		r.commands[cmd.Name()] = cmd
		for _, alias := range cmd.Aliases() {
			r.commands[alias] = cmd
		}
	}
}

func (r *REPL) activeTool() (*models.Tool, error) {
	tool := r.studio.Tool()
	if tool == nil {
		return nil, fmt.Errorf("no tool selected - use 'use <tool>' first")
	}
	return tool, nil
}

// ToolsCommand lists the catalog
type ToolsCommand struct{}

func (c *ToolsCommand) Name() string        { return "tools" }
func (c *ToolsCommand) Aliases() []string   { return []string{"ls"} }
func (c *ToolsCommand) Description() string { return "List available tools" }
func (c *ToolsCommand) Usage() string       { return "tools [image|video|edit|assist]" }

func (c *ToolsCommand) Execute(_ context.Context, r *REPL, args []string) error {
	catalog := r.studio.Catalog()
	tools := catalog.List()
	if len(args) > 0 {
		cat := models.Category(strings.ToLower(args[0]))
		if !cat.IsValid() {
			return fmt.Errorf("unknown category: %s", args[0])
		}
		tools = catalog.ListByCategory(cat)
	}

	active := r.studio.Tool()
	for _, t := range tools {
		marker := "  "
		if active != nil && active.ID == t.ID {
			marker = "> "
		}
		badges := ""
		if t.IsNew {
			badges += " [new]"
		}
		if t.IsTop {
			badges += " [top]"
		}
		fmt.Fprintf(r.out, "%s%-16s %-7s %s%s\n", marker, t.Slug, t.Category, t.Name, badges)
	}
	return nil
}

// UseCommand selects the active tool
type UseCommand struct{}

func (c *UseCommand) Name() string        { return "use" }
func (c *UseCommand) Aliases() []string   { return []string{"tool", "t"} }
func (c *UseCommand) Description() string { return "Select a tool and open its session" }
func (c *UseCommand) Usage() string       { return "use <slug|name|id>" }

func (c *UseCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: %s", c.Usage())
	}

	r.closeCompare()
	tool, err := r.studio.SelectTool(ctx, strings.Join(args, " "))
	if err != nil {
		if errors.Is(err, models.ErrSessionCreation) {
			return nil
		}
		return err
	}

	snap := r.studio.Snapshot()
	fmt.Fprintf(r.out, "Using %s (%s)\n", tool.Name, tool.Slug)
	fmt.Fprintf(r.out, "  %s\n", tool.Description)
	if len(snap.Messages) > 0 {
		fmt.Fprintln(r.out)
		r.renderer().Render(ctx, history.Entries(snap.Messages))
	}
	return nil
}

// PromptCommand sets the prompt for the next generation
type PromptCommand struct{}

func (c *PromptCommand) Name() string        { return "prompt" }
func (c *PromptCommand) Aliases() []string   { return []string{"p"} }
func (c *PromptCommand) Description() string { return "Set or show the prompt" }
func (c *PromptCommand) Usage() string       { return "prompt [text]" }

func (c *PromptCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		prompt := r.studio.Snapshot().Prompt
		if prompt == "" {
			fmt.Fprintln(r.out, "No prompt set")
		} else {
			fmt.Fprintf(r.out, "Prompt: %s\n", prompt)
		}
		return nil
	}
	r.studio.SetPrompt(strings.Join(args, " "))
	return nil
}

// SetCommand sets tool options
type SetCommand struct{}

func (c *SetCommand) Name() string        { return "set" }
func (c *SetCommand) Aliases() []string   { return []string{"opt"} }
func (c *SetCommand) Description() string { return "Set a tool option, reset it, or list options" }
func (c *SetCommand) Usage() string       { return "set [option [value]]" }

func (c *SetCommand) Execute(_ context.Context, r *REPL, args []string) error {
	tool, err := r.activeTool()
	if err != nil {
		return err
	}

	switch len(args) {
	case 0:
		return c.list(r, tool)
	case 1:
		if err := r.studio.SetOption(args[0], ""); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "%s reset to default\n", args[0])
		return nil
	default:
		value := strings.Join(args[1:], " ")
		if err := r.studio.SetOption(args[0], value); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "%s = %s\n", args[0], value)
		return nil
	}
}

func (c *SetCommand) list(r *REPL, tool *models.Tool) error {
	d, ok := r.studio.Registry().Get(tool.Kind)
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrUnknownTool, tool.Kind)
	}

	snap := r.studio.Snapshot()
	if len(d.Options) == 0 {
		fmt.Fprintf(r.out, "%s has no options\n", tool.Name)
	}
	for _, o := range d.Options {
		current := o.Default
		if v, ok := snap.Options[o.Name]; ok {
			current = v + " *"
		}
		fmt.Fprintf(r.out, "  %-18s %-28s %s\n", o.Name, o.Choices(), current)
	}
	for _, s := range d.Slots {
		state := "empty"
		if m, ok := snap.Media[s.Name]; ok {
			state = m.Name
		}
		req := ""
		if s.Required {
			req = " (required)"
		}
		fmt.Fprintf(r.out, "  @%-17s %-28s %s\n", s.Name, string(s.Media)+req, state)
	}
	return nil
}

// AttachCommand attaches a local file to an upload slot
type AttachCommand struct{}

func (c *AttachCommand) Name() string        { return "attach" }
func (c *AttachCommand) Aliases() []string   { return []string{"a", "upload"} }
func (c *AttachCommand) Description() string { return "Attach an image or video to the request" }
func (c *AttachCommand) Usage() string       { return "attach [slot] <path>" }

func (c *AttachCommand) Execute(_ context.Context, r *REPL, args []string) error {
	var slot, path string
	switch len(args) {
	case 1:
		path = args[0]
	case 2:
		slot, path = args[0], args[1]
	default:
		return fmt.Errorf("usage: %s", c.Usage())
	}
	if _, err := r.activeTool(); err != nil {
		return err
	}

	m, err := media.Load(path, r.maxUpload)
	if err != nil {
		return err
	}
	name, err := r.studio.Attach(slot, m)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Attached %s (%s, %s) as %s\n", m.Name, m.MIME, humanize.Bytes(uint64(m.Size)), name)
	return nil
}

// DetachCommand removes pending attachments
type DetachCommand struct{}

func (c *DetachCommand) Name() string        { return "detach" }
func (c *DetachCommand) Aliases() []string   { return []string{"rm"} }
func (c *DetachCommand) Description() string { return "Remove an attachment, or all of them" }
func (c *DetachCommand) Usage() string       { return "detach [slot]" }

func (c *DetachCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		r.studio.Detach("")
		fmt.Fprintln(r.out, "Cleared all attachments")
		return nil
	}
	r.studio.Detach(args[0])
	fmt.Fprintf(r.out, "Detached %s\n", args[0])
	return nil
}

// QuoteCommand estimates the credit cost
type QuoteCommand struct{}

func (c *QuoteCommand) Name() string        { return "quote" }
func (c *QuoteCommand) Aliases() []string   { return []string{"$", "cost"} }
func (c *QuoteCommand) Description() string { return "Estimate the credits the next generation costs" }
func (c *QuoteCommand) Usage() string       { return "quote" }

func (c *QuoteCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	q, err := r.studio.Quote()
	if err != nil {
		return err
	}
	if q.Credits == 0 {
		fmt.Fprintln(r.out, "Estimated cost: free")
		return nil
	}
	fmt.Fprintf(r.out, "Estimated cost: %s (about €%.2f)\n", q, credits.ToEuro(q.Credits))
	return nil
}

// GenerateCommand submits the composed request
type GenerateCommand struct{}

func (c *GenerateCommand) Name() string        { return "generate" }
func (c *GenerateCommand) Aliases() []string   { return []string{"gen", "g", "submit"} }
func (c *GenerateCommand) Description() string { return "Submit the request, optionally setting the prompt first" }
func (c *GenerateCommand) Usage() string       { return "generate [prompt]" }

func (c *GenerateCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	tool, err := r.activeTool()
	if err != nil {
		return err
	}
	if len(args) > 0 {
		r.studio.SetPrompt(strings.Join(args, " "))
	}

	fmt.Fprintf(r.out, "Generating with %s...\n", tool.Name)
	out, err := r.studio.Submit(ctx)
	switch {
	case errors.Is(err, studio.ErrStaleResult):
		fmt.Fprintln(r.out, "Result discarded: the session changed while generating")
		return nil
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrGeneration):
		// already reported as a notice
		return nil
	case err != nil:
		return err
	}

	if text := strings.TrimSpace(out.Result.ResponseText); text != "" {
		fmt.Fprintln(r.out, text)
	}
	outputs := out.Result.Outputs()
	r.preview(ctx, outputs)
	if out.Quote.Credits > 0 {
		fmt.Fprintf(r.out, "Cost: %s\n", out.Quote)
	}
	if out.Remaining != nil {
		fmt.Fprintf(r.out, "Credits remaining: %.1f\n", *out.Remaining)
	}
	return nil
}

// HistoryCommand renders the session history
type HistoryCommand struct{}

func (c *HistoryCommand) Name() string        { return "history" }
func (c *HistoryCommand) Aliases() []string   { return []string{"h", "hist"} }
func (c *HistoryCommand) Description() string { return "Show the session history" }
func (c *HistoryCommand) Usage() string       { return "history [reload]" }

func (c *HistoryCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if _, err := r.activeTool(); err != nil {
		return err
	}

	msgs := r.studio.Snapshot().Messages
	if len(args) > 0 && args[0] == "reload" {
		reloaded, err := r.studio.Reload(ctx)
		if err != nil && !errors.Is(err, models.ErrHistoryLoad) {
			return err
		}
		msgs = reloaded
	}

	r.renderer().Render(ctx, history.Entries(msgs))
	return nil
}

// messageOutputs returns the outputs of message n (1-based) or, when n is
// zero, of the latest assistant message carrying media.
func (r *REPL) messageOutputs(n int) ([]string, error) {
	msgs := r.studio.Snapshot().Messages
	if n > 0 {
		if n > len(msgs) {
			return nil, fmt.Errorf("no message #%d (history has %d)", n, len(msgs))
		}
		m := msgs[n-1]
		return append(append([]string(nil), m.ImageURLs...), m.VideoURLs...), nil
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role == models.RoleAssistant && m.HasMedia() {
			return append(append([]string(nil), m.ImageURLs...), m.VideoURLs...), nil
		}
	}
	return nil, fmt.Errorf("no outputs yet")
}

func parseIndex(args []string) (int, []string, error) {
	if len(args) == 0 {
		return 0, args, nil
	}
	n, err := strconv.Atoi(strings.TrimPrefix(args[0], "#"))
	if err != nil {
		return 0, args, nil
	}
	if n < 1 {
		return 0, nil, fmt.Errorf("message numbers start at 1")
	}
	return n, args[1:], nil
}

// ShowCommand previews outputs inline
type ShowCommand struct{}

func (c *ShowCommand) Name() string        { return "show" }
func (c *ShowCommand) Aliases() []string   { return []string{"display", "view"} }
func (c *ShowCommand) Description() string { return "Display the latest outputs or those of message n" }
func (c *ShowCommand) Usage() string       { return "show [n]" }

func (c *ShowCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if r.displayer == nil {
		return fmt.Errorf("inline preview is disabled")
	}
	n, _, err := parseIndex(args)
	if err != nil {
		return err
	}
	refs, err := r.messageOutputs(n)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return fmt.Errorf("message #%d has no media", n)
	}
	return r.displayer.ShowAll(ctx, refs)
}

// SaveCommand downloads outputs to disk
type SaveCommand struct{}

func (c *SaveCommand) Name() string        { return "save" }
func (c *SaveCommand) Aliases() []string   { return []string{"s"} }
func (c *SaveCommand) Description() string { return "Save the latest outputs, or those of message n" }
func (c *SaveCommand) Usage() string       { return "save [n] [filename]" }

func (c *SaveCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	tool, err := r.activeTool()
	if err != nil {
		return err
	}
	n, rest, err := parseIndex(args)
	if err != nil {
		return err
	}
	refs, err := r.messageOutputs(n)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return fmt.Errorf("message #%d has no media", n)
	}

	if len(rest) > 0 {
		if err := security.ValidateSavePath(rest[0]); err != nil {
			return fmt.Errorf("invalid save path: %w", err)
		}
		path, err := r.saver.Save(ctx, refs[0], rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Saved: %s\n", path)
		return nil
	}

	paths, err := r.saver.SaveAll(ctx, tool.Slug, refs)
	for _, p := range paths {
		fmt.Fprintf(r.out, "Saved: %s\n", p)
	}
	return err
}

// CompareCommand opens the before/after view for a history entry
type CompareCommand struct{}

func (c *CompareCommand) Name() string        { return "compare" }
func (c *CompareCommand) Aliases() []string   { return []string{"cmp"} }
func (c *CompareCommand) Description() string { return "Compare an output with its input image" }
func (c *CompareCommand) Usage() string       { return "compare [n|close]" }

func (c *CompareCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		if r.compare == nil {
			return fmt.Errorf("usage: %s", c.Usage())
		}
		return r.renderCompare()
	}
	if args[0] == "close" {
		r.closeCompare()
		fmt.Fprintln(r.out, "Comparison closed")
		return nil
	}

	n, _, err := parseIndex(args)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	cmp, ok := history.Pair(r.studio.Snapshot().Messages, n-1)
	if !ok {
		return fmt.Errorf("message #%d has no before/after pair", n)
	}

	r.closeCompare()
	tool, _ := r.activeTool()
	w := compare.New(compare.Config{
		BeforeURL:  cmp.BeforeURL,
		AfterURL:   cmp.AfterURL,
		Bounds:     compare.Bounds{Left: 0, Width: 100},
		OnDownload: r.downloader(tool),
	})
	w.Preload(ctx, compare.FetchLoader{Fetcher: r.saver.Fetcher()})

	waitCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	fmt.Fprintln(r.out, "Loading images...")
	if err := w.WaitReady(waitCtx); err != nil {
		w.Unmount()
		return fmt.Errorf("comparison did not load: %w", err)
	}

	st := w.State()
	if st.BeforeErr != nil {
		fmt.Fprintf(r.err, "Warning: before image unavailable: %v\n", st.BeforeErr)
	}
	if st.AfterErr != nil {
		fmt.Fprintf(r.err, "Warning: after image unavailable: %v\n", st.AfterErr)
	}

	r.compare = w
	fmt.Fprintf(r.out, "Comparing #%d. Use 'slide <0-100>' to move the divider.\n", n)
	return r.renderCompare()
}

// downloader saves the after image with a fresh context since downloads
// happen after the compare command itself returned.
func (r *REPL) downloader(tool *models.Tool) func(string) error {
	slug := "compare"
	if tool != nil {
		slug = tool.Slug
	}
	return func(ref string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		paths, err := r.saver.SaveAll(ctx, slug, []string{ref})
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Saved: %s\n", paths[0])
		return nil
	}
}

func (r *REPL) renderCompare() error {
	st := r.compare.State()
	mode := ""
	if st.Fullscreen {
		mode = " [fullscreen]"
	}
	fmt.Fprintf(r.out, "before | after at %.0f%%%s\n", st.Split, mode)

	if r.displayer == nil {
		return nil
	}
	width, height, cols := compareWidth, compareHeight, compareColumns
	if st.Fullscreen {
		width, height, cols = compareWidth*2, compareHeight*2, 0
	}
	r.displayer.SetColumns(cols)
	defer r.displayer.SetColumns(0)
	return r.displayer.ShowFrame(compareImageID, r.compare.Composite(width, height))
}

// SlideCommand drags the comparison divider
type SlideCommand struct{}

func (c *SlideCommand) Name() string        { return "slide" }
func (c *SlideCommand) Aliases() []string   { return []string{"drag"} }
func (c *SlideCommand) Description() string { return "Drag the comparison divider through one or more positions" }
func (c *SlideCommand) Usage() string       { return "slide <percent> [percent...]" }

func (c *SlideCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if r.compare == nil {
		return fmt.Errorf("no comparison open - use 'compare <n>' first")
	}
	if len(args) == 0 {
		return fmt.Errorf("usage: %s", c.Usage())
	}

	points := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(strings.TrimSuffix(a, "%"), 64)
		if err != nil {
			return fmt.Errorf("invalid position %q", a)
		}
		points[i] = v
	}

	r.compare.PointerDown(points[0])
	for _, x := range points[1:] {
		r.compare.PointerMove(x)
	}
	r.compare.PointerUp()
	return r.renderCompare()
}

// FullscreenCommand toggles the comparison view size
type FullscreenCommand struct{}

func (c *FullscreenCommand) Name() string        { return "fullscreen" }
func (c *FullscreenCommand) Aliases() []string   { return []string{"fs"} }
func (c *FullscreenCommand) Description() string { return "Toggle the full size comparison view" }
func (c *FullscreenCommand) Usage() string       { return "fullscreen" }

func (c *FullscreenCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	if r.compare == nil {
		return fmt.Errorf("no comparison open - use 'compare <n>' first")
	}
	r.compare.ToggleFullscreen()
	return r.renderCompare()
}

// DownloadCommand saves the compared output
type DownloadCommand struct{}

func (c *DownloadCommand) Name() string        { return "download" }
func (c *DownloadCommand) Aliases() []string   { return []string{"dl"} }
func (c *DownloadCommand) Description() string { return "Download the after image of the open comparison" }
func (c *DownloadCommand) Usage() string       { return "download" }

func (c *DownloadCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	if r.compare == nil {
		return fmt.Errorf("no comparison open - use 'compare <n>' first")
	}
	return r.compare.Download()
}

// NewCommand starts a fresh session for the active tool
type NewCommand struct{}

func (c *NewCommand) Name() string        { return "new" }
func (c *NewCommand) Aliases() []string   { return []string{"reset"} }
func (c *NewCommand) Description() string { return "Start a new session for the current tool" }
func (c *NewCommand) Usage() string       { return "new" }

func (c *NewCommand) Execute(ctx context.Context, r *REPL, _ []string) error {
	tool, err := r.activeTool()
	if err != nil {
		return err
	}
	r.closeCompare()
	if err := r.studio.NewSession(ctx); err != nil {
		if errors.Is(err, models.ErrSessionCreation) {
			return nil
		}
		return err
	}
	fmt.Fprintf(r.out, "Started a new %s session\n", tool.Name)
	return nil
}

func (r *REPL) requireAuth() error {
	if r.auth == nil {
		return fmt.Errorf("accounts are not configured")
	}
	return nil
}

// LoginCommand exchanges an identity credential for a session token
type LoginCommand struct{}

func (c *LoginCommand) Name() string        { return "login" }
func (c *LoginCommand) Aliases() []string   { return nil }
func (c *LoginCommand) Description() string { return "Log in with a Google identity credential" }
func (c *LoginCommand) Usage() string       { return "login <credential>" }

func (c *LoginCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if err := r.requireAuth(); err != nil {
		return err
	}
	if len(args) == 0 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	user, err := r.auth.Login(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Logged in as %s (%.1f credits)\n", user.DisplayName(), user.Credits)
	return nil
}

// LogoutCommand clears the stored token
type LogoutCommand struct{}

func (c *LogoutCommand) Name() string        { return "logout" }
func (c *LogoutCommand) Aliases() []string   { return nil }
func (c *LogoutCommand) Description() string { return "Log out and forget the stored token" }
func (c *LogoutCommand) Usage() string       { return "logout" }

func (c *LogoutCommand) Execute(ctx context.Context, r *REPL, _ []string) error {
	if err := r.requireAuth(); err != nil {
		return err
	}
	r.auth.Logout(ctx)
	fmt.Fprintln(r.out, "Logged out")
	return nil
}

// WhoamiCommand shows the current account
type WhoamiCommand struct{}

func (c *WhoamiCommand) Name() string        { return "whoami" }
func (c *WhoamiCommand) Aliases() []string   { return []string{"me"} }
func (c *WhoamiCommand) Description() string { return "Show the logged in account" }
func (c *WhoamiCommand) Usage() string       { return "whoami" }

func (c *WhoamiCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	if err := r.requireAuth(); err != nil {
		return err
	}
	user := r.auth.User()
	if user == nil {
		fmt.Fprintln(r.out, "Not logged in")
		return nil
	}
	plan := user.Plan
	if plan == "" {
		plan = "free"
	}
	fmt.Fprintf(r.out, "%s <%s>\n", user.DisplayName(), user.Email)
	fmt.Fprintf(r.out, "  Plan: %s\n", plan)
	fmt.Fprintf(r.out, "  Credits: %.1f (used %.1f)\n", user.Credits, user.CreditsUsed)
	if d := auth.Gate(user); !d.Allowed {
		fmt.Fprintf(r.out, "  %s See %s\n", d.Message(), d.Redirect)
	}
	return nil
}

// CreditsCommand refreshes the credit balance
type CreditsCommand struct{}

func (c *CreditsCommand) Name() string        { return "credits" }
func (c *CreditsCommand) Aliases() []string   { return []string{"balance"} }
func (c *CreditsCommand) Description() string { return "Show the credit balance" }
func (c *CreditsCommand) Usage() string       { return "credits" }

func (c *CreditsCommand) Execute(ctx context.Context, r *REPL, _ []string) error {
	if err := r.requireAuth(); err != nil {
		return err
	}
	balance, err := r.auth.RefreshCredits(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Credits: %.1f (about €%.2f)\n", balance, credits.ToEuro(balance))
	return nil
}

// JournalCommand shows locally recorded generations and spend
type JournalCommand struct{}

func (c *JournalCommand) Name() string        { return "journal" }
func (c *JournalCommand) Aliases() []string   { return []string{"j"} }
func (c *JournalCommand) Description() string { return "Show recent generations and credits spent" }
func (c *JournalCommand) Usage() string       { return "journal [today|tools]" }

func (c *JournalCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if r.journal == nil {
		return fmt.Errorf("journal is disabled")
	}

	sub := ""
	if len(args) > 0 {
		sub = strings.ToLower(args[0])
	}
	switch sub {
	case "":
		return c.recent(ctx, r)
	case "today":
		summary, err := r.journal.Today(ctx)
		if err != nil {
			return err
		}
		if summary.EntryCount == 0 {
			fmt.Fprintln(r.out, "No credits spent today.")
			return nil
		}
		fmt.Fprintf(r.out, "Today: %.1f credits over %d generation(s)\n", summary.TotalCredits, summary.EntryCount)
		return nil
	case "tools":
		summaries, err := r.journal.ByTool(ctx)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Fprintln(r.out, "No credits spent yet.")
			return nil
		}
		for _, s := range summaries {
			fmt.Fprintf(r.out, "  %-16s %4d  %8.1f\n", s.ToolSlug, s.Count, s.TotalCredits)
		}
		return nil
	default:
		return fmt.Errorf("unknown journal command: %s\nUsage: %s", sub, c.Usage())
	}
}

func (c *JournalCommand) recent(ctx context.Context, r *REPL) error {
	exchanges, err := r.journal.Recent(ctx, 10)
	if err != nil {
		return err
	}
	if len(exchanges) == 0 {
		fmt.Fprintln(r.out, "No generations recorded yet.")
		return nil
	}
	for _, ex := range exchanges {
		fmt.Fprintf(r.out, "  %s  %-16s %-9s %q\n",
			session.FormatTimestamp(ex.Timestamp), ex.ToolSlug, ex.Status, truncate(ex.Prompt, 40))
	}
	return nil
}

// HelpCommand shows available commands
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Aliases() []string   { return []string{"?"} }
func (c *HelpCommand) Description() string { return "Show available commands" }
func (c *HelpCommand) Usage() string       { return "help" }

func (c *HelpCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	fmt.Fprintln(r.out, "Available commands:")
	fmt.Fprintln(r.out)

	for _, cmd := range allCommands() {
		aliases := ""
		if len(cmd.Aliases()) > 0 {
			aliases = fmt.Sprintf(" (%s)", strings.Join(cmd.Aliases(), ", "))
		}
		fmt.Fprintf(r.out, "  %-24s%s\n", cmd.Name()+aliases, cmd.Description())
		fmt.Fprintf(r.out, "  %-24sUsage: %s\n", "", cmd.Usage())
	}

	return nil
}

// QuitCommand exits the REPL
type QuitCommand struct{}

func (c *QuitCommand) Name() string        { return "quit" }
func (c *QuitCommand) Aliases() []string   { return []string{"exit", "q"} }
func (c *QuitCommand) Description() string { return "Exit the studio" }
func (c *QuitCommand) Usage() string       { return "quit" }

func (c *QuitCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	fmt.Fprintln(r.out, "Goodbye!")
	r.Stop()
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
