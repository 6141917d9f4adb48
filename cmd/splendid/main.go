package main

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/manash/splendid/internal/api"
	"github.com/manash/splendid/internal/auth"
	"github.com/manash/splendid/internal/compare"
	"github.com/manash/splendid/internal/config"
	"github.com/manash/splendid/internal/display"
	"github.com/manash/splendid/internal/media"
	"github.com/manash/splendid/internal/request"
	"github.com/manash/splendid/internal/security"
	"github.com/manash/splendid/internal/session"
	"github.com/manash/splendid/internal/telemetry"
	"github.com/manash/splendid/internal/web"
	"github.com/manash/splendid/pkg/models"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	flagConfig  string
	flagBackend string
	flagVerbose bool

	flagOptions    []string
	flagAttach     []string
	flagOutput     string
	flagShow       bool
	flagTool       string
	flagParallel   int
	flagStop       bool
	flagDelay      int
	flagSplit      float64
	flagWidth      int
	flagHeight     int
	flagCompareOut string
	flagLimit      int
	flagAddr       string
	flagPrices     bool
)

type App struct {
	Out            io.Writer
	Err            io.Writer
	In             io.Reader
	Catalog        *models.Catalog
	Registry       *request.Registry
	LoadConfig     func(path string) (*config.Config, error)
	NewTokenStore  func() (auth.TokenStore, error)
	JournalPath    func() (string, error)
	ReadCredential func() (string, error)
	IsTerminal     func() bool
}

func DefaultApp() *App {
	return &App{
		Out:        os.Stdout,
		Err:        os.Stderr,
		In:         os.Stdin,
		Catalog:    models.DefaultCatalog(),
		Registry:   request.DefaultRegistry(),
		LoadConfig: config.Load,
		NewTokenStore: func() (auth.TokenStore, error) {
			return auth.NewFileTokenStore()
		},
		JournalPath: session.DefaultDBPath,
		ReadCredential: func() (string, error) {
			return auth.ReadCredential(os.Stdin, os.Stderr)
		},
		IsTerminal: func() bool {
			return term.IsTerminal(int(os.Stdout.Fd())) && display.IsTerminalSupported()
		},
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	app := DefaultApp()
	rootCmd := newRootCmd(app)
	return rootCmd.Execute()
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "splendid",
		Short: "Studio client for the Splendid AI tools backend",
		Long: `splendid drives the Splendid AI tools backend from the terminal.

Every tool gets its own backend session; generations, history and
before/after comparisons happen in the interactive studio or through
one-shot commands.

Examples:
  splendid studio
  splendid generate grok "a lighthouse at dusk"
  splendid generate image-upscaler --attach photo.jpg --set scale_factor=4
  splendid batch prompts.txt --tool nanobanana --parallel 2
  splendid compare before.png after.png --split 30`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default is the platform config dir)")
	cmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "backend URL (overrides config and SPLENDID_BACKEND_URL)")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(
		newStudioCmd(app),
		newGenerateCmd(app),
		newToolsCmd(app),
		newLoginCmd(app),
		newLogoutCmd(app),
		newWhoamiCmd(app),
		newCreditsCmd(app),
		newHistoryCmd(app),
		newBatchCmd(app),
		newCompareCmd(app),
		newJournalCmd(app),
		newServeCmd(app),
	)
	return cmd
}

// env holds what every backend-facing command needs.
type env struct {
	cfg      *config.Config
	logger   *log.Logger
	client   *api.Client
	auth     *auth.Context
	closers  []func() error
	shutdown telemetry.Shutdown
}

func (app *App) setup(ctx context.Context) (*env, error) {
	cfg, err := app.LoadConfig(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagBackend != "" {
		cfg.Backend.URL = flagBackend
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if flagVerbose {
		cfg.Log.Level = "debug"
	}

	logger, logCloser, err := telemetry.NewLogger(cfg.Log, app.Err)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, logger: logger, closers: []func() error{logCloser.Close}}

	e.shutdown, err = telemetry.Setup(ctx, cfg.Telemetry, logger)
	if err != nil {
		e.Close()
		return nil, err
	}

	e.client, err = api.New(&api.Config{
		BaseURL:    cfg.Backend.URL,
		TimeoutSec: cfg.Backend.TimeoutSec,
		Verbose:    flagVerbose,
		Logger:     logger,
	})
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	// Outputs the backend serves itself are trusted like the provider CDNs.
	if u, err := url.Parse(cfg.Backend.URL); err == nil {
		security.AllowHost(u.Hostname())
	}

	store, err := app.NewTokenStore()
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}
	e.auth = auth.NewContext(e.client, store, logger)
	return e, nil
}

func (e *env) Close() error {
	var errs []error
	if e.shutdown != nil {
		errs = append(errs, e.shutdown(context.Background()))
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	return errors.Join(errs...)
}

// journal opens the local exchange journal; it is closed with the env.
func (e *env) journal(app *App) (*session.Journal, error) {
	path := e.cfg.Journal.Path
	if path == "" {
		p, err := app.JournalPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	store, err := session.NewStoreWithPath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	e.closers = append(e.closers, store.Close)
	return session.NewJournal(store), nil
}

func (e *env) saver(dir string) *media.Saver {
	return media.NewSaver(media.NewFetcher(e.cfg.Output.StrictURLs), dir)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newToolsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tools [image|video|edit|assist]",
		Short: "List the tool catalog",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTools(app, args)
		},
	}
}

func runTools(app *App, args []string) error {
	tools := app.Catalog.List()
	if len(args) > 0 {
		cat := models.Category(strings.ToLower(args[0]))
		if !cat.IsValid() {
			return fmt.Errorf("unknown category %q: must be one of %v", args[0], models.ValidCategories())
		}
		tools = app.Catalog.ListByCategory(cat)
	}

	for _, t := range tools {
		badges := ""
		if t.IsNew {
			badges += " [new]"
		}
		if t.IsTop {
			badges += " [top]"
		}
		fmt.Fprintf(app.Out, "%-3d %-16s %-7s %s%s\n", t.ID, t.Slug, t.Category, t.Name, badges)
		fmt.Fprintf(app.Out, "    %s\n", t.Description)
	}
	return nil
}

func newCompareCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <before> <after>",
		Short: "Render a before/after split image",
		Long: `Render a before/after split of two images. Each side may be a local
file, a data URL or an http(s) URL. The before image shows left of the
divider, the after image right of it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(app, args)
		},
	}
	cmd.Flags().Float64Var(&flagSplit, "split", compare.InitialSplit, "divider position in percent")
	cmd.Flags().IntVar(&flagWidth, "width", 1024, "output width in pixels")
	cmd.Flags().IntVar(&flagHeight, "height", 768, "output height in pixels")
	cmd.Flags().StringVarP(&flagCompareOut, "output", "o", "compare.png", "output PNG file")
	return cmd
}

// imageRef turns a local path into a data URL; URLs pass through.
func imageRef(ref string) (string, error) {
	if models.IsDataURL(ref) || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}
	m, err := media.Load(ref, 0)
	if err != nil {
		return "", err
	}
	if m.Type() != models.MediaImage {
		return "", fmt.Errorf("%s is not an image (%s)", ref, m.MIME)
	}
	return m.DataURL, nil
}

func runCompare(app *App, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	if flagWidth <= 0 || flagHeight <= 0 {
		return fmt.Errorf("invalid size %dx%d", flagWidth, flagHeight)
	}
	if err := security.ValidateSavePath(flagCompareOut); err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}

	e, err := app.setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.requirePremium(ctx, app.Err); err != nil {
		return err
	}

	before, err := imageRef(args[0])
	if err != nil {
		return err
	}
	after, err := imageRef(args[1])
	if err != nil {
		return err
	}

	w := compare.New(compare.Config{BeforeURL: before, AfterURL: after})
	defer w.Unmount()
	w.Preload(ctx, compare.FetchLoader{Fetcher: media.NewFetcher(false)})
	if err := w.WaitReady(ctx); err != nil {
		return err
	}
	st := w.State()
	if st.BeforeErr != nil || st.AfterErr != nil {
		return fmt.Errorf("failed to load images: %w", errors.Join(st.BeforeErr, st.AfterErr))
	}

	w.SetSplit(flagSplit)
	img := w.Composite(flagWidth, flagHeight)

	if dir := filepath.Dir(flagCompareOut); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	f, err := os.Create(flagCompareOut)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode comparison: %w", err)
	}

	fmt.Fprintf(app.Out, "Saved: %s (split %.0f%%)\n", flagCompareOut, w.Split())
	return nil
}

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the studio web gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(app)
		},
	}
	cmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (default from config)")
	return cmd
}

func runServe(app *App) error {
	ctx, cancel := signalContext()
	defer cancel()

	e, err := app.setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	secret := e.cfg.Web.SessionSecret
	if secret == "" {
		secret = os.Getenv("SPLENDID_SESSION_SECRET")
	}

	srv, err := web.New(web.Config{
		Backend:       e.client,
		Catalog:       app.Catalog,
		Secret:        secret,
		SecureCookies: e.cfg.Web.SecureCookies,
		Payment:       web.Script{Name: "paypal", URL: e.cfg.Web.PaymentScriptURL, Container: "paypal-button-container"},
		Identity:      web.Script{Name: "google", URL: e.cfg.Web.IdentityScriptURL, Container: "google-signin-button"},
		Logger:        e.logger,
	})
	if err != nil {
		return err
	}
	srv.LoadScripts(ctx)

	addr := flagAddr
	if addr == "" {
		addr = e.cfg.Web.Addr
	}
	fmt.Fprintf(app.Out, "Serving the studio gateway on %s\n", addr)
	return srv.Run(ctx, addr)
}
