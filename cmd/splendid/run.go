package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/manash/splendid/internal/batch"
	"github.com/manash/splendid/internal/credits"
	"github.com/manash/splendid/internal/display"
	"github.com/manash/splendid/internal/history"
	"github.com/manash/splendid/internal/media"
	"github.com/manash/splendid/internal/repl"
	"github.com/manash/splendid/internal/session"
	"github.com/manash/splendid/internal/studio"
)

func (e *env) studio(app *App, journal *session.Journal) (*studio.Studio, error) {
	return studio.New(studio.Config{
		Catalog:   app.Catalog,
		Registry:  app.Registry,
		Sessions:  session.NewClient(e.client, nil, e.logger),
		Generator: e.client,
		History:   history.NewLoader(e.client, e.logger),
		Saver:     e.client,
		Account:   e.auth,
		Journal:   journal,
		Logger:    e.logger,
	})
}

func newStudioCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "studio",
		Aliases: []string{"repl", "i"},
		Short:   "Start the interactive studio",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStudio(app)
		},
	}
}

func runStudio(app *App) error {
	ctx, cancel := signalContext()
	defer cancel()

	e, err := app.setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requirePremium(ctx, app.Err); err != nil {
		return err
	}
	journal, err := e.journal(app)
	if err != nil {
		return err
	}
	st, err := e.studio(app, journal)
	if err != nil {
		return err
	}

	saver := e.saver(e.cfg.Output.Dir)
	var displayer *display.Displayer
	if e.cfg.Output.Preview && app.IsTerminal() {
		displayer = display.New(app.Out, saver.Fetcher())
	}

	r := repl.New(&repl.Config{
		In:        app.In,
		Out:       app.Out,
		Err:       app.Err,
		Studio:    st,
		Auth:      e.auth,
		Displayer: displayer,
		Saver:     saver,
		Journal:   journal,
		MaxUpload: e.cfg.MaxUploadBytes(),
		Logger:    e.logger,
	})
	return r.Run(ctx)
}

func newGenerateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "generate <tool> [prompt]",
		Aliases: []string{"gen"},
		Short:   "Run one generation and save its outputs",
		Long: `Run one generation with a tool and save the outputs.

Options are set with --set name=value and attachments with
--attach [slot=]path. Run 'splendid studio' and 'set' to list a tool's
options and upload slots.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(app, args)
		},
	}
	cmd.Flags().StringArrayVarP(&flagOptions, "set", "s", nil, "tool option as name=value (repeatable)")
	cmd.Flags().StringArrayVarP(&flagAttach, "attach", "a", nil, "attachment as [slot=]path (repeatable)")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "output directory (default from config)")
	cmd.Flags().BoolVar(&flagShow, "show", false, "display outputs inline (Kitty graphics terminals)")
	return cmd
}

func printNotices(app *App, st *studio.Studio) {
	for _, n := range st.Notices() {
		switch n.Level {
		case studio.LevelInfo:
			fmt.Fprintln(app.Out, n.Message)
		case studio.LevelWarning:
			fmt.Fprintf(app.Err, "Warning: %s\n", n.Message)
		default:
			fmt.Fprintf(app.Err, "Error: %s\n", n.Message)
		}
	}
}

// splitAttachment reads "slot=path"; a bare path targets the default slot.
func splitAttachment(arg string) (slot, path string) {
	if k, v, ok := strings.Cut(arg, "="); ok && k != "" && !strings.ContainsAny(k, `/\.`) {
		return k, v
	}
	return "", arg
}

func runGenerate(app *App, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	e, err := app.setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requirePremium(ctx, app.Err); err != nil {
		return err
	}
	journal, err := e.journal(app)
	if err != nil {
		return err
	}
	st, err := e.studio(app, journal)
	if err != nil {
		return err
	}
	defer printNotices(app, st)

	tool, err := st.SelectTool(ctx, args[0])
	if err != nil {
		return err
	}
	st.SetPrompt(strings.Join(args[1:], " "))

	for _, o := range flagOptions {
		name, value, ok := strings.Cut(o, "=")
		if !ok {
			return fmt.Errorf("invalid option %q: expected name=value", o)
		}
		if err := st.SetOption(strings.TrimSpace(name), strings.TrimSpace(value)); err != nil {
			return err
		}
	}
	for _, a := range flagAttach {
		slot, path := splitAttachment(a)
		m, err := media.Load(path, e.cfg.MaxUploadBytes())
		if err != nil {
			return err
		}
		if _, err := st.Attach(slot, m); err != nil {
			return err
		}
	}

	quote, err := st.Quote()
	if err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Generating with %s (%s)...\n", tool.Name, quote)

	out, err := st.Submit(ctx)
	if err != nil {
		return err
	}

	if text := strings.TrimSpace(out.Result.ResponseText); text != "" {
		fmt.Fprintln(app.Out, text)
	}

	dir := flagOutput
	if dir == "" {
		dir = e.cfg.Output.Dir
	}
	saver := e.saver(dir)
	paths, err := saver.SaveAll(ctx, tool.Slug, out.Result.Outputs())
	for _, p := range paths {
		fmt.Fprintf(app.Out, "Saved: %s\n", p)
	}
	if err != nil {
		return err
	}

	if flagShow && app.IsTerminal() && len(paths) > 0 {
		if err := display.New(app.Out, saver.Fetcher()).ShowAll(ctx, out.Result.Outputs()); err != nil {
			fmt.Fprintf(app.Err, "Warning: failed to display: %v\n", err)
		}
	}
	if out.Remaining != nil {
		fmt.Fprintf(app.Out, "Credits remaining: %.1f\n", *out.Remaining)
	}
	return nil
}

func newBatchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Run generations from a .txt or .json file",
		Long: `Run many generations from a file.

Text files hold one prompt per line; '#' starts a comment and a line
'@<tool> prompt' picks a tool for that line. JSON files hold an array of
{"tool", "prompt", "options", "media"} objects.

Items for one tool share a session and run in order; --parallel runs
different tools side by side.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(app, args[0])
		},
	}
	cmd.Flags().StringVarP(&flagTool, "tool", "t", "", "tool for items that do not name one")
	cmd.Flags().IntVarP(&flagParallel, "parallel", "p", 0, "tools processed concurrently (default from config)")
	cmd.Flags().BoolVar(&flagStop, "stop-on-error", false, "stop at the first failed item")
	cmd.Flags().IntVar(&flagDelay, "delay", 0, "delay between items of one tool in milliseconds")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "output directory (default from config)")
	return cmd
}

func runBatch(app *App, path string) error {
	ctx, cancel := signalContext()
	defer cancel()

	items, err := batch.ParseFile(path)
	if err != nil {
		return err
	}

	e, err := app.setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requirePremium(ctx, app.Err); err != nil {
		return err
	}
	journal, err := e.journal(app)
	if err != nil {
		return err
	}

	p := batch.NewProcessor(batch.Config{
		Catalog:   app.Catalog,
		Registry:  app.Registry,
		Sessions:  session.NewClient(e.client, nil, e.logger),
		Generator: e.client,
		Saver:     e.saver(""),
		Token:     e.auth.Token(),
		Journal:   journal,
		Logger:    e.logger,
		Out:       app.Out,
		Err:       app.Err,
	})

	opts := &batch.Options{
		OutputDir:      flagOutput,
		DefaultTool:    flagTool,
		Parallel:       flagParallel,
		StopOnError:    flagStop,
		DelayMs:        flagDelay,
		MaxUploadBytes: e.cfg.MaxUploadBytes(),
	}
	if opts.OutputDir == "" {
		opts.OutputDir = e.cfg.Output.Dir
	}
	if opts.Parallel <= 0 {
		opts.Parallel = e.cfg.Batch.Parallel
	}

	results, err := p.Process(ctx, items, opts)
	p.PrintSummary(results)
	if err != nil {
		return err
	}
	if batch.Failed(results) {
		return errors.New("some batch items failed")
	}
	return nil
}

func newJournalCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal [recent|today|tools]",
		Short: "Show locally recorded generations and credits spent",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(app, args)
		},
	}
	cmd.Flags().IntVarP(&flagLimit, "limit", "n", 20, "maximum generations to list")
	cmd.Flags().StringVarP(&flagTool, "tool", "t", "", "only list this tool")
	return cmd
}

func runJournal(app *App, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	e, err := app.setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	journal, err := e.journal(app)
	if err != nil {
		return err
	}

	sub := "recent"
	if len(args) > 0 {
		sub = strings.ToLower(args[0])
	}

	switch sub {
	case "recent":
		var exchanges []*session.Exchange
		if flagTool != "" {
			tool, ok := app.Catalog.Find(flagTool)
			if !ok {
				return fmt.Errorf("unknown tool %q", flagTool)
			}
			exchanges, err = journal.ForTool(ctx, tool.Slug, flagLimit)
		} else {
			exchanges, err = journal.Recent(ctx, flagLimit)
		}
		if err != nil {
			return err
		}
		if len(exchanges) == 0 {
			fmt.Fprintln(app.Out, "No generations recorded yet.")
			return nil
		}
		for _, ex := range exchanges {
			fmt.Fprintf(app.Out, "%s  %-16s %-9s %q\n",
				session.FormatTimestamp(ex.Timestamp), ex.ToolSlug, ex.Status, truncate(ex.Prompt, 40))
			if ex.Error != "" {
				fmt.Fprintf(app.Out, "    error: %s\n", truncate(ex.Error, 80))
			}
		}
	case "today":
		summary, err := journal.Today(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(app.Out, "Today's spend: %.1f credits (€%.2f) over %d generation(s)\n",
			summary.TotalCredits, credits.ToEuro(summary.TotalCredits), summary.EntryCount)
	case "tools":
		summaries, err := journal.ByTool(ctx)
		if err != nil {
			return err
		}
		total, err := journal.Total(ctx)
		if err != nil {
			return err
		}
		for _, s := range summaries {
			fmt.Fprintf(app.Out, "  %-16s %4d  %8.1f\n", s.ToolSlug, s.Count, s.TotalCredits)
		}
		fmt.Fprintf(app.Out, "Total spend: %.1f credits (€%.2f)\n", total.TotalCredits, credits.ToEuro(total.TotalCredits))
	default:
		return fmt.Errorf("unknown journal command %q: must be recent, today or tools", sub)
	}
	return nil
}
