package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/manash/splendid/internal/api"
	"github.com/manash/splendid/internal/auth"
	"github.com/manash/splendid/internal/credits"
)

func newLoginCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "login [credential]",
		Short: "Log in with a Google identity credential",
		Long: `Exchange a Google identity credential for a backend session token.
Without an argument the credential is read from the terminal without echo.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(app, args)
		},
	}
}

func runLogin(app *App, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	e, err := app.setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	var credential string
	if len(args) > 0 {
		credential = args[0]
	} else {
		credential, err = app.ReadCredential()
		if err != nil {
			return err
		}
	}

	user, err := e.auth.Login(ctx, credential)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	fmt.Fprintf(app.Out, "Logged in as %s\n", user.DisplayName())
	if d := auth.Gate(user); !d.Allowed {
		fmt.Fprintln(app.Out, d.Message())
	}
	return nil
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(app)
		},
	}
}

func runLogout(app *App) error {
	ctx, cancel := signalContext()
	defer cancel()

	e, err := app.setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	// Verify loads the token so the backend hears about the logout too.
	if _, err := e.auth.Verify(ctx); err != nil {
		e.logger.Debug("verify before logout failed", "err", err)
	}
	e.auth.Logout(ctx)
	fmt.Fprintln(app.Out, "Logged out")
	return nil
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWhoami(app)
		},
	}
}

func runWhoami(app *App) error {
	ctx, cancel := signalContext()
	defer cancel()

	e, err := app.setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	user, err := e.auth.Verify(ctx)
	if err != nil {
		return err
	}
	if user == nil {
		fmt.Fprintln(app.Out, "Not logged in")
		return nil
	}

	plan := user.Plan
	if plan == "" {
		plan = "free"
	}
	fmt.Fprintf(app.Out, "%s <%s>\n", user.DisplayName(), user.Email)
	fmt.Fprintf(app.Out, "  Plan:    %s\n", plan)
	fmt.Fprintf(app.Out, "  Credits: %.1f (used %.1f)\n", user.Credits, user.CreditsUsed)
	fmt.Fprintf(app.Out, "  Token:   %s\n", auth.MaskToken(e.auth.Token()))
	if d := auth.Gate(user); !d.Allowed {
		fmt.Fprintf(app.Out, "  %s\n", d.Message())
	}
	return nil
}

func newCreditsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credits",
		Short: "Show the credit balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCredits(app)
		},
	}
	cmd.Flags().BoolVar(&flagPrices, "prices", false, "also show what the starting balance buys")
	return cmd
}

func runCredits(app *App) error {
	ctx, cancel := signalContext()
	defer cancel()

	e, err := app.setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if _, err := e.auth.Verify(ctx); err != nil {
		return err
	}
	balance, err := e.auth.RefreshCredits(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Credits: %.1f (about €%.2f)\n", balance, credits.ToEuro(balance))

	if flagPrices {
		fmt.Fprintf(app.Out, "\nThe starting %d credits (€%.0f) buy about:\n", credits.InitialCredits, credits.InitialValue)
		for _, ex := range credits.UsageExamples() {
			fmt.Fprintf(app.Out, "  %4d %-22s %s\n", ex.Count, ex.Unit, ex.Model)
		}
	}
	return nil
}

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage the account generation history",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved generations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(app)
		},
	}
	listCmd.Flags().StringVarP(&flagTool, "tool", "t", "", "only show this tool")
	listCmd.Flags().IntVarP(&flagLimit, "limit", "n", 20, "maximum entries to show (0 for all)")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryDelete(app, args[0])
		},
	}

	cmd.AddCommand(listCmd, deleteCmd)
	return cmd
}

// loggedIn verifies the stored token and fails when there is none.
func (e *env) loggedIn(ctx context.Context) error {
	user, err := e.auth.Verify(ctx)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: run 'splendid login' first", auth.ErrNotAuthenticated)
	}
	return nil
}

// requirePremium refuses missing and free accounts before any studio work
// starts, pointing the user at the pricing page.
func (e *env) requirePremium(ctx context.Context, w io.Writer) error {
	user, err := e.auth.Verify(ctx)
	if err != nil {
		return fmt.Errorf("could not verify login: %w", err)
	}
	d := auth.Gate(user)
	if d.Allowed {
		return nil
	}
	e.logger.Info("studio access denied", "reason", d.Reason)
	fmt.Fprintln(w, d.Message())
	fmt.Fprintf(w, "See the plans at %s on the web gateway, then run 'splendid login'.\n", d.Redirect)
	return fmt.Errorf("%w: %s", auth.ErrPremiumRequired, d.Reason)
}

func runHistoryList(app *App) error {
	ctx, cancel := signalContext()
	defer cancel()

	e, err := app.setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.loggedIn(ctx); err != nil {
		return err
	}

	var entries []api.HistoryEntry
	if flagTool != "" {
		tool, ok := app.Catalog.Find(flagTool)
		if !ok {
			return fmt.Errorf("unknown tool %q: available tools: %v", flagTool, app.Catalog.Slugs())
		}
		entries, err = e.client.ToolHistory(ctx, e.auth.Token(), tool.ID)
	} else {
		entries, err = e.client.AllHistory(ctx, e.auth.Token())
	}
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	if len(entries) == 0 {
		fmt.Fprintln(app.Out, "No saved generations.")
		return nil
	}
	if flagLimit > 0 && len(entries) > flagLimit {
		entries = entries[:flagLimit]
	}

	for _, h := range entries {
		when := "unknown time"
		if !h.CreatedAt.IsZero() {
			when = humanize.Time(h.CreatedAt.Time)
		}
		name := h.ToolName
		if id, err := strconv.Atoi(h.ToolID); err == nil {
			if tool, ok := app.Catalog.Get(id); ok {
				name = tool.Slug
			}
		}
		fmt.Fprintf(app.Out, "%s  %-16s %-14s %s\n", h.ID, name, when, truncate(h.Prompt, 50))
		if h.Result != "" {
			fmt.Fprintf(app.Out, "    %s\n", truncate(h.Result, 80))
		}
	}
	return nil
}

func runHistoryDelete(app *App, id string) error {
	ctx, cancel := signalContext()
	defer cancel()

	e, err := app.setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.loggedIn(ctx); err != nil {
		return err
	}

	if err := e.client.DeleteHistory(ctx, e.auth.Token(), id); err != nil {
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}
	fmt.Fprintf(app.Out, "Deleted %s\n", id)
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
