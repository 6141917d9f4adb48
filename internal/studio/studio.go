package studio

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/manash/splendid/internal/api"
	"github.com/manash/splendid/internal/credits"
	"github.com/manash/splendid/internal/request"
	"github.com/manash/splendid/internal/session"
	"github.com/manash/splendid/pkg/models"
)

var (
	ErrNoTool            = errors.New("no tool selected")
	ErrGenerationPending = errors.New("a generation is already in progress for this session")
	ErrStaleResult       = errors.New("result belongs to a session that is no longer active")
)

type Sessions interface {
	Ensure(ctx context.Context, tool *models.Tool) (string, error)
	Create(ctx context.Context, tool *models.Tool) (string, error)
}

type Generator interface {
	Generate(ctx context.Context, token string, req *request.Request) (*api.GenerateResult, error)
}

type HistoryLoader interface {
	Load(ctx context.Context, tool *models.Tool, sessionID string) ([]models.Message, error)
}

// HistorySaver records results in the account-wide generation history.
type HistorySaver interface {
	SaveHistory(ctx context.Context, token string, entry *api.HistoryEntry) (string, error)
}

// Account supplies the bearer token and charges credits.
type Account interface {
	Token() string
	DeductCredits(ctx context.Context, q credits.Quote) (*api.DeductResponse, error)
}

type Config struct {
	Catalog   *models.Catalog
	Registry  *request.Registry
	Sessions  Sessions
	Generator Generator
	History   HistoryLoader

	// Optional collaborators.
	Saver    HistorySaver
	Account  Account
	Journal  *session.Journal
	Logger   *log.Logger
	OnNotice func(Notice)
}

// Tag identifies the tool and session a generation was issued for.
type Tag struct {
	ID        string
	ToolID    int
	SessionID string
}

// Outcome describes a completed generation.
type Outcome struct {
	Tag       Tag
	Result    *api.GenerateResult
	Messages  []models.Message
	Quote     credits.Quote
	Remaining *float64
}

// Snapshot is a read-only copy of the studio state.
type Snapshot struct {
	Tool      *models.Tool
	SessionID string
	Prompt    string
	Options   map[string]string
	Media     map[string]*models.UploadedMedia
	Messages  []models.Message
	Loading   bool
	Pending   bool
}

// Studio drives one interactive session: pick a tool, compose a request,
// submit it and reload the history. It is safe for concurrent use; the lock
// is never held across network calls.
type Studio struct {
	cfg     Config
	logger  *log.Logger
	notices *noticeLog

	mu        sync.Mutex
	tool      *models.Tool
	sessionID string
	prompt    string
	promptRev int
	options   map[string]string
	media     map[string]*models.UploadedMedia
	messages  []models.Message
	loading   bool
	pending   map[string]Tag
}

func New(cfg Config) (*Studio, error) {
	if cfg.Catalog == nil {
		cfg.Catalog = models.DefaultCatalog()
	}
	if cfg.Registry == nil {
		cfg.Registry = request.DefaultRegistry()
	}
	if cfg.Sessions == nil || cfg.Generator == nil || cfg.History == nil {
		return nil, errors.New("studio requires sessions, generator and history")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Studio{
		cfg:      cfg,
		logger:   logger.With("component", "studio"),
		notices:  &noticeLog{sink: cfg.OnNotice},
		options:  make(map[string]string),
		media:    make(map[string]*models.UploadedMedia),
		messages: []models.Message{},
		pending:  make(map[string]Tag),
	}, nil
}

func (s *Studio) Catalog() *models.Catalog {
	return s.cfg.Catalog
}

func (s *Studio) Registry() *request.Registry {
	return s.cfg.Registry
}

func (s *Studio) Notices() []Notice {
	return s.notices.drain()
}

func (s *Studio) notify(level Level, blocking bool, format string, args ...any) {
	s.notices.add(Notice{Level: level, Blocking: blocking, Message: fmt.Sprintf(format, args...)})
}

func (s *Studio) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Tool:      s.tool,
		SessionID: s.sessionID,
		Prompt:    s.prompt,
		Options:   maps.Clone(s.options),
		Media:     maps.Clone(s.media),
		Messages:  append([]models.Message(nil), s.messages...),
		Loading:   s.loading,
	}
	_, snap.Pending = s.pending[s.sessionID]
	return snap
}

func (s *Studio) Tool() *models.Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tool
}

// SelectTool activates a tool, reusing its session for this process or
// creating one, then loads its history. Compose state is reset since
// options and attachments are tool specific.
func (s *Studio) SelectTool(ctx context.Context, ref string) (*models.Tool, error) {
	tool, ok := s.cfg.Catalog.Find(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownTool, ref)
	}

	s.mu.Lock()
	s.tool = tool
	s.sessionID = ""
	s.messages = []models.Message{}
	s.prompt = ""
	s.promptRev++
	clear(s.options)
	clear(s.media)
	s.loading = true
	s.mu.Unlock()

	return tool, s.openSession(ctx, tool, s.cfg.Sessions.Ensure)
}

// NewSession replaces the active tool's session with a fresh, empty one.
func (s *Studio) NewSession(ctx context.Context) error {
	tool := s.Tool()
	if tool == nil {
		return ErrNoTool
	}
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()
	return s.openSession(ctx, tool, s.cfg.Sessions.Create)
}

func (s *Studio) openSession(ctx context.Context, tool *models.Tool, open func(context.Context, *models.Tool) (string, error)) error {
	sid, err := open(ctx, tool)
	if err != nil {
		s.mu.Lock()
		if s.isActiveTool(tool) {
			s.loading = false
		}
		s.mu.Unlock()
		s.notify(LevelError, true, "Could not start a %s session: %v", tool.Name, err)
		return err
	}

	msgs, herr := s.cfg.History.Load(ctx, tool, sid)

	s.mu.Lock()
	if !s.isActiveTool(tool) {
		s.mu.Unlock()
		s.logger.Debug("discarding session for inactive tool", "tool", tool.Slug, "session", sid)
		return ErrStaleResult
	}
	s.sessionID = sid
	s.messages = msgs
	s.loading = false
	s.mu.Unlock()

	if herr != nil {
		s.notify(LevelWarning, false, "History for %s is unavailable: %v", tool.Name, herr)
	}
	s.logger.Info("tool selected", "tool", tool.Slug, "session", sid, "messages", len(msgs))
	return nil
}

func (s *Studio) isActiveTool(tool *models.Tool) bool {
	return s.tool != nil && s.tool.ID == tool.ID
}

func (s *Studio) isActive(tag Tag) bool {
	return s.tool != nil && s.tool.ID == tag.ToolID && s.sessionID == tag.SessionID
}

func (s *Studio) SetPrompt(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompt = prompt
	s.promptRev++
}

func (s *Studio) descriptor() (*models.Tool, *request.Descriptor, error) {
	if s.tool == nil {
		return nil, nil, ErrNoTool
	}
	d, ok := s.cfg.Registry.Get(s.tool.Kind)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", models.ErrUnknownTool, s.tool.Kind)
	}
	return s.tool, d, nil
}

// SetOption stores a raw option value after checking it against the tool's
// option schema. An empty value resets the option to its default.
func (s *Studio) SetOption(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, d, err := s.descriptor()
	if err != nil {
		return err
	}
	spec, ok := d.Option(name)
	if !ok {
		return models.NewValidationError(d.Kind, name, "unknown option")
	}
	if value == "" {
		delete(s.options, name)
		return nil
	}
	if _, err := spec.Coerce(value); err != nil {
		return models.NewValidationError(d.Kind, name, err.Error())
	}
	s.options[name] = value
	return nil
}

// Attach puts media into an upload slot, replacing any pending attachment
// there. An empty slot name selects the tool's first slot.
func (s *Studio) Attach(slot string, m *models.UploadedMedia) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, d, err := s.descriptor()
	if err != nil {
		return "", err
	}

	var sl *request.Slot
	var ok bool
	if slot == "" {
		sl, ok = d.DefaultSlot()
	} else {
		sl, ok = d.Slot(slot)
	}
	if !ok {
		name := slot
		if name == "" {
			name = "media"
		}
		if !d.AcceptsMedia() {
			return "", models.NewValidationError(d.Kind, name, "tool takes no attachments")
		}
		return "", models.NewValidationError(d.Kind, name, "tool does not accept this attachment")
	}
	if m.Type() != sl.Media {
		return "", models.NewValidationError(d.Kind, sl.Field, fmt.Sprintf("expected %s, got %s", sl.Media, m.MIME))
	}
	s.media[sl.Name] = m
	return sl.Name, nil
}

func (s *Studio) Detach(slot string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot == "" {
		clear(s.media)
		return
	}
	if _, d, err := s.descriptor(); err == nil {
		if sl, ok := d.Slot(slot); ok {
			slot = sl.Name
		}
	}
	delete(s.media, slot)
}

func (s *Studio) input() *request.Input {
	return &request.Input{
		SessionID: s.sessionID,
		Prompt:    s.prompt,
		Options:   maps.Clone(s.options),
		Media:     maps.Clone(s.media),
	}
}

// Quote estimates the credit cost of the current request.
func (s *Studio) Quote() (credits.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tool, d, err := s.descriptor()
	if err != nil {
		return credits.Quote{}, err
	}
	in := s.input()
	opts, err := s.cfg.Registry.Validate(tool, in)
	if err != nil {
		return credits.Quote{}, err
	}
	return credits.Estimate(d, opts, in.Media), nil
}

// Submit validates and sends the current request, then reloads history.
// The prompt and attachments are cleared only after both succeed; on
// failure they stay in place and a blocking notice is raised. A result for
// a session that is no longer active is discarded with ErrStaleResult.
func (s *Studio) Submit(ctx context.Context) (*Outcome, error) {
	s.mu.Lock()
	tool, d, err := s.descriptor()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.sessionID == "" {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s has no session yet", models.ErrSessionCreation, tool.Slug)
	}
	if _, busy := s.pending[s.sessionID]; busy {
		s.mu.Unlock()
		return nil, ErrGenerationPending
	}

	in := s.input()
	req, err := s.cfg.Registry.Build(tool, in)
	if err != nil {
		s.mu.Unlock()
		s.notify(LevelWarning, false, "%v", err)
		return nil, err
	}
	opts, _ := s.cfg.Registry.Validate(tool, in)
	quote := credits.Estimate(d, opts, in.Media)

	tag := Tag{ID: uuid.New().String(), ToolID: tool.ID, SessionID: s.sessionID}
	s.pending[tag.SessionID] = tag
	prompt, promptRev := s.prompt, s.promptRev
	s.mu.Unlock()

	ex := &session.Exchange{
		ToolID:    tool.ID,
		ToolSlug:  tool.Slug,
		SessionID: tag.SessionID,
		Prompt:    strings.TrimSpace(prompt),
		Metadata: session.ExchangeMetadata{
			Options:     opts,
			Attachments: attachmentNames(in.Media),
			Credits:     quote.Credits,
			Variant:     quote.Variant,
		},
	}

	s.logger.Info("generating", "tool", tool.Slug, "session", tag.SessionID, "tag", tag.ID)
	started := time.Now()
	res, err := s.cfg.Generator.Generate(ctx, s.token(), req)
	ex.Metadata.DurationMs = time.Since(started).Milliseconds()

	if err != nil {
		s.mu.Lock()
		delete(s.pending, tag.SessionID)
		active := s.isActive(tag)
		s.mu.Unlock()

		ex.Error = err.Error()
		if !active {
			s.record(ctx, ex, session.StatusDiscarded)
			return nil, ErrStaleResult
		}
		s.record(ctx, ex, session.StatusFailed)
		s.notify(LevelError, true, "%s generation failed: %v", tool.Name, err)
		return nil, err
	}

	msgs, herr := s.cfg.History.Load(ctx, tool, tag.SessionID)

	s.mu.Lock()
	delete(s.pending, tag.SessionID)
	if !s.isActive(tag) {
		s.mu.Unlock()
		ex.Outputs = res.Outputs()
		s.record(ctx, ex, session.StatusDiscarded)
		s.logger.Debug("discarding stale result", "tool", tool.Slug, "tag", tag.ID)
		return nil, ErrStaleResult
	}
	if herr == nil {
		s.messages = msgs
	}
	s.clearSubmitted(promptRev, in.Media)
	msgs = append([]models.Message(nil), s.messages...)
	s.mu.Unlock()

	if herr != nil {
		s.notify(LevelWarning, false, "Generation finished but history could not be reloaded: %v", herr)
	}

	out := &Outcome{Tag: tag, Result: res, Messages: msgs, Quote: quote}
	ex.Outputs = res.Outputs()
	s.record(ctx, ex, session.StatusSucceeded)
	s.charge(ctx, ex, out)
	s.saveHistory(ctx, tool, ex, res)

	s.notify(LevelInfo, false, "%s finished with %d output(s)", tool.Name, len(ex.Outputs))
	return out, nil
}

// clearSubmitted drops the prompt and attachments a finished submission
// sent. Input composed while it was in flight stays. Callers hold s.mu.
func (s *Studio) clearSubmitted(promptRev int, sent map[string]*models.UploadedMedia) {
	if s.promptRev == promptRev {
		s.prompt = ""
	}
	for slot, m := range sent {
		if s.media[slot] == m {
			delete(s.media, slot)
		}
	}
}

// Pending reports whether the active session has a generation in flight.
func (s *Studio) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[s.sessionID]
	return ok
}

// Reload refreshes the active session's history.
func (s *Studio) Reload(ctx context.Context) ([]models.Message, error) {
	s.mu.Lock()
	tool, sid := s.tool, s.sessionID
	s.mu.Unlock()
	if tool == nil {
		return nil, ErrNoTool
	}

	msgs, err := s.cfg.History.Load(ctx, tool, sid)
	if err != nil {
		s.notify(LevelWarning, false, "History for %s is unavailable: %v", tool.Name, err)
		return msgs, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tool == nil || s.tool.ID != tool.ID || s.sessionID != sid {
		return nil, ErrStaleResult
	}
	s.messages = msgs
	return append([]models.Message(nil), msgs...), nil
}

func (s *Studio) token() string {
	if s.cfg.Account == nil {
		return ""
	}
	return s.cfg.Account.Token()
}

func (s *Studio) record(ctx context.Context, ex *session.Exchange, status session.Status) {
	if s.cfg.Journal == nil {
		return
	}
	ex.Status = status
	if err := s.cfg.Journal.Record(ctx, ex); err != nil {
		s.logger.Warn("journal write failed", "err", err)
	}
}

func (s *Studio) charge(ctx context.Context, ex *session.Exchange, out *Outcome) {
	if s.cfg.Account == nil || s.cfg.Account.Token() == "" || out.Quote.Credits == 0 {
		return
	}
	res, err := s.cfg.Account.DeductCredits(ctx, out.Quote)
	if err != nil {
		if errors.Is(err, api.ErrInsufficientCredits) {
			s.notify(LevelWarning, false, "Insufficient credits to cover %s", out.Quote)
		} else {
			s.logger.Warn("credit deduction failed", "err", err)
		}
		return
	}
	remaining := res.CreditsRemaining
	out.Remaining = &remaining
	if s.cfg.Journal != nil {
		if err := s.cfg.Journal.Charge(ctx, ex, out.Quote.ModelKey, res.CreditsDeducted, out.Quote.Units); err != nil {
			s.logger.Warn("journal charge failed", "err", err)
		}
	}
}

func (s *Studio) saveHistory(ctx context.Context, tool *models.Tool, ex *session.Exchange, res *api.GenerateResult) {
	token := s.token()
	if s.cfg.Saver == nil || token == "" {
		return
	}
	result := res.ResponseText
	if len(ex.Outputs) > 0 {
		result = ex.Outputs[0]
	}
	entry := &api.HistoryEntry{
		ToolID:   strconv.Itoa(tool.ID),
		ToolName: tool.Name,
		Prompt:   ex.Prompt,
		Result:   result,
		Metadata: map[string]any{
			"session_id": ex.SessionID,
			"message_id": res.MessageID,
			"outputs":    ex.Outputs,
			"options":    ex.Metadata.Options,
		},
	}
	if _, err := s.cfg.Saver.SaveHistory(ctx, token, entry); err != nil {
		s.logger.Warn("history save failed", "err", err)
	}
}

func attachmentNames(media map[string]*models.UploadedMedia) []string {
	names := make([]string, 0, len(media))
	for slot, m := range media {
		names = append(names, slot+":"+m.Name)
	}
	sort.Strings(names)
	return names
}
