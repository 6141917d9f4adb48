package batch

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/manash/splendid/internal/api"
	"github.com/manash/splendid/internal/credits"
	"github.com/manash/splendid/internal/media"
	"github.com/manash/splendid/internal/request"
	"github.com/manash/splendid/internal/security"
	"github.com/manash/splendid/internal/session"
	"github.com/manash/splendid/pkg/models"
)

type Result struct {
	Index    int
	Tool     string
	Prompt   string
	Paths    []string
	Credits  float64
	Error    error
	Duration time.Duration
}

type Options struct {
	OutputDir      string
	DefaultTool    string
	Parallel       int
	StopOnError    bool
	DelayMs        int
	MaxUploadBytes int64
}

type Sessions interface {
	Ensure(ctx context.Context, tool *models.Tool) (string, error)
}

type Generator interface {
	Generate(ctx context.Context, token string, req *request.Request) (*api.GenerateResult, error)
}

type Saver interface {
	Save(ctx context.Context, ref, path string) (string, error)
}

type Config struct {
	Catalog   *models.Catalog
	Registry  *request.Registry
	Sessions  Sessions
	Generator Generator
	Saver     Saver
	Token     string
	Journal   *session.Journal
	Logger    *log.Logger
	Out       io.Writer
	Err       io.Writer
}

// Processor runs queued generations. Items for the same tool share one
// session and run one after another; different tools may run in parallel.
type Processor struct {
	cfg    Config
	logger *log.Logger
	outMu  sync.Mutex
}

func NewProcessor(cfg Config) *Processor {
	if cfg.Catalog == nil {
		cfg.Catalog = models.DefaultCatalog()
	}
	if cfg.Registry == nil {
		cfg.Registry = request.DefaultRegistry()
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	if cfg.Err == nil {
		cfg.Err = cfg.Out
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Processor{cfg: cfg, logger: logger.With("component", "batch")}
}

func (p *Processor) printf(format string, args ...any) {
	p.outMu.Lock()
	fmt.Fprintf(p.cfg.Out, format, args...)
	p.outMu.Unlock()
}

func (p *Processor) errorf(format string, args ...any) {
	p.outMu.Lock()
	fmt.Fprintf(p.cfg.Err, format, args...)
	p.outMu.Unlock()
}

type job struct {
	pos  int
	item Item
	tool *models.Tool
}

// Process runs every item and returns results in input order.
func (p *Processor) Process(ctx context.Context, items []Item, opts *Options) ([]Result, error) {
	results := make([]Result, len(items))
	groups, order := p.group(items, opts, results)

	if opts.Parallel <= 1 || len(order) <= 1 {
		return results, p.processSequential(ctx, groups, order, opts, results)
	}
	return results, p.processParallel(ctx, groups, order, opts, results)
}

// group resolves each item's tool and buckets items per tool, keeping the
// order in which tools first appear. Items naming an unknown tool are
// failed in place.
func (p *Processor) group(items []Item, opts *Options, results []Result) (map[int][]job, []int) {
	groups := make(map[int][]job)
	var order []int

	for i, item := range items {
		ref := item.Tool
		if ref == "" {
			ref = opts.DefaultTool
		}
		tool, ok := p.cfg.Catalog.Find(ref)
		if !ok {
			results[i] = Result{
				Index:  item.Index,
				Tool:   ref,
				Prompt: item.Prompt,
				Error:  fmt.Errorf("%w: %q", models.ErrUnknownTool, ref),
			}
			p.errorf("[%d] Error: %v\n", item.Index, results[i].Error)
			continue
		}
		if _, seen := groups[tool.ID]; !seen {
			order = append(order, tool.ID)
		}
		groups[tool.ID] = append(groups[tool.ID], job{pos: i, item: item, tool: tool})
	}
	return groups, order
}

func countJobs(groups map[int][]job) int {
	n := 0
	for _, g := range groups {
		n += len(g)
	}
	return n
}

func (p *Processor) processSequential(ctx context.Context, groups map[int][]job, order []int, opts *Options, results []Result) error {
	total := countJobs(groups)
	done := 0

	for _, id := range order {
		for i, j := range groups[id] {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			done++
			result := p.processItem(ctx, j, opts, done, total)
			results[j.pos] = result

			if result.Error != nil && opts.StopOnError {
				return fmt.Errorf("stopped at item %d: %w", j.item.Index, result.Error)
			}

			if opts.DelayMs > 0 && i < len(groups[id])-1 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Duration(opts.DelayMs) * time.Millisecond):
				}
			}
		}
	}

	return nil
}

func (p *Processor) processParallel(ctx context.Context, groups map[int][]job, order []int, opts *Options, results []Result) error {
	total := countJobs(groups)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan []job, len(order))
	for _, id := range order {
		queue <- groups[id]
	}
	close(queue)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	done := 0

	workers := min(opts.Parallel, len(order))

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for group := range queue {
				for i, j := range group {
					if ctx.Err() != nil {
						return
					}

					mu.Lock()
					done++
					current := done
					mu.Unlock()

					result := p.processItem(ctx, j, opts, current, total)

					mu.Lock()
					results[j.pos] = result
					if result.Error != nil && opts.StopOnError && firstErr == nil {
						firstErr = result.Error
						cancel()
					}
					mu.Unlock()

					if opts.DelayMs > 0 && i < len(group)-1 {
						select {
						case <-ctx.Done():
							return
						case <-time.After(time.Duration(opts.DelayMs) * time.Millisecond):
						}
					}
				}
			}
		}()
	}

	wg.Wait()

	if firstErr != nil {
		return fmt.Errorf("batch stopped due to error: %w", firstErr)
	}
	return ctx.Err()
}

func (p *Processor) processItem(ctx context.Context, j job, opts *Options, current, total int) Result {
	start := time.Now()
	item, tool := j.item, j.tool
	result := Result{
		Index:  item.Index,
		Tool:   tool.Slug,
		Prompt: item.Prompt,
	}

	fail := func(err error) Result {
		result.Error = err
		result.Duration = time.Since(start)
		p.errorf("       Error: %v\n", err)
		return result
	}

	p.printf("[%d/%d] %s: %q\n", current, total, tool.Slug, truncate(item.Prompt, 50))

	in := &request.Input{
		Prompt:  item.Prompt,
		Options: item.Options,
		Media:   make(map[string]*models.UploadedMedia, len(item.Media)),
	}
	for slot, path := range item.Media {
		m, err := media.Load(path, opts.MaxUploadBytes)
		if err != nil {
			return fail(fmt.Errorf("attachment %s: %w", slot, err))
		}
		in.Media[slot] = m
	}

	// Validate before opening a session so bad items never reach the backend.
	validated, err := p.cfg.Registry.Validate(tool, in)
	if err != nil {
		return fail(fmt.Errorf("validation failed: %w", err))
	}

	sid, err := p.cfg.Sessions.Ensure(ctx, tool)
	if err != nil {
		return fail(err)
	}
	in.SessionID = sid

	req, err := p.cfg.Registry.Build(tool, in)
	if err != nil {
		return fail(fmt.Errorf("validation failed: %w", err))
	}

	var quote credits.Quote
	if d, ok := p.cfg.Registry.Get(tool.Kind); ok {
		quote = credits.Estimate(d, validated, in.Media)
	}

	res, err := p.cfg.Generator.Generate(ctx, p.cfg.Token, req)
	if err != nil {
		p.record(ctx, tool, sid, item, nil, err, start)
		return fail(err)
	}

	outputs := res.Outputs()
	p.record(ctx, tool, sid, item, outputs, nil, start)
	result.Credits = quote.Credits

	for i, ref := range outputs {
		path, err := security.OutputPath(opts.OutputDir, generateFilename(item.Index, tool.Slug, item.Prompt, i))
		if err != nil {
			return fail(fmt.Errorf("save failed: %w", err))
		}
		saved, err := p.cfg.Saver.Save(ctx, ref, path)
		if err != nil {
			return fail(fmt.Errorf("save failed: %w", err))
		}
		result.Paths = append(result.Paths, saved)
	}
	result.Duration = time.Since(start)

	switch {
	case len(result.Paths) == 0 && res.ResponseText != "":
		p.printf("       Reply: %s\n", truncate(res.ResponseText, 70))
	case len(result.Paths) == 0:
		p.printf("       No outputs\n")
	default:
		p.printf("       Saved: %s (%s)\n", strings.Join(result.Paths, ", "), quote)
	}

	return result
}

func (p *Processor) record(ctx context.Context, tool *models.Tool, sid string, item Item, outputs []string, genErr error, start time.Time) {
	if p.cfg.Journal == nil {
		return
	}
	ex := &session.Exchange{
		ToolID:    tool.ID,
		ToolSlug:  tool.Slug,
		SessionID: sid,
		Prompt:    item.Prompt,
		Outputs:   outputs,
		Status:    session.StatusSucceeded,
		Metadata:  session.ExchangeMetadata{DurationMs: time.Since(start).Milliseconds()},
	}
	if genErr != nil {
		ex.Status = session.StatusFailed
		ex.Error = genErr.Error()
	}
	if err := p.cfg.Journal.Record(ctx, ex); err != nil {
		p.logger.Warn("journal write failed", "err", err)
	}
}

// generateFilename is extension-less; the saver appends one from the
// downloaded content.
func generateFilename(index int, slug, prompt string, output int) string {
	name := fmt.Sprintf("%03d-%s-%s", index, slug, sanitizePrompt(prompt))
	if output > 0 {
		name += fmt.Sprintf("-%d", output+1)
	}
	return name
}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s-]`)

	windowsReservedNames = map[string]bool{
		"con": true, "prn": true, "aux": true, "nul": true,
		"com1": true, "com2": true, "com3": true, "com4": true,
		"com5": true, "com6": true, "com7": true, "com8": true, "com9": true,
		"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true,
		"lpt5": true, "lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
	}
)

func sanitizePrompt(prompt string) string {
	sanitized := unsafeChars.ReplaceAllString(prompt, "")
	sanitized = strings.ToLower(sanitized)
	sanitized = strings.Join(strings.Fields(sanitized), "-")
	sanitized = strings.TrimLeft(sanitized, "-")

	if len(sanitized) > 40 {
		sanitized = sanitized[:40]
	}
	sanitized = strings.TrimSuffix(sanitized, "-")

	if sanitized == "" {
		sanitized = "output"
	}

	if windowsReservedNames[sanitized] {
		sanitized = sanitized + "-out"
	}

	return sanitized
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func (p *Processor) PrintSummary(results []Result) {
	var successful, failed, files int
	var totalCredits float64
	var failures []Result

	for _, r := range results {
		if r.Error != nil {
			failed++
			failures = append(failures, r)
		} else {
			successful++
			files += len(r.Paths)
			totalCredits += r.Credits
		}
	}

	out := p.cfg.Out
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Summary:")
	fmt.Fprintf(out, "  Successful: %d/%d items (%d files)\n", successful, len(results), files)
	if failed > 0 {
		fmt.Fprintf(out, "  Failed: %d (see errors below)\n", failed)
	}
	fmt.Fprintf(out, "  Estimated credits: %.1f (€%.2f)\n", totalCredits, credits.ToEuro(totalCredits))

	if len(failures) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Errors:")
		for _, e := range failures {
			fmt.Fprintf(out, "  [%d] %s %q: %v\n", e.Index, e.Tool, truncate(e.Prompt, 40), e.Error)
		}
	}
}

// Failed reports whether any result carries an error.
func Failed(results []Result) bool {
	for _, r := range results {
		if r.Error != nil {
			return true
		}
	}
	return false
}
