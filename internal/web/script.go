package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gabriel-vasile/mimetype"
)

const maxScriptBytes = 4 << 20

var (
	ErrScriptUnavailable = errors.New("script unavailable")
	ErrScriptURLRequired = errors.New("script URL is required")
)

// Script is a third-party SDK the gateway pages embed, such as the payment
// button or the identity provider's login button.
type Script struct {
	Name      string
	URL       string
	Container string
}

// Loader resolves a script and calls exactly one of ready or fail.
type Loader interface {
	Load(ctx context.Context, s Script, ready func(), fail func(error))
}

type attempt struct {
	done chan struct{}
	err  error
}

func (a *attempt) failed() bool {
	select {
	case <-a.done:
		return a.err != nil
	default:
		return false
	}
}

// ScriptLoader fetches each script URL at most once while it keeps
// succeeding. Concurrent loads of the same URL share one fetch; a failed
// fetch is retried by the next Load.
type ScriptLoader struct {
	client *http.Client
	logger *log.Logger

	mu       sync.Mutex
	attempts map[string]*attempt
}

func NewScriptLoader(client *http.Client, logger *log.Logger) *ScriptLoader {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ScriptLoader{
		client:   client,
		logger:   logger.With("component", "scripts"),
		attempts: make(map[string]*attempt),
	}
}

// Load blocks until the script resolves or ctx ends. A caller giving up does
// not cancel the shared fetch.
func (l *ScriptLoader) Load(ctx context.Context, s Script, ready func(), fail func(error)) {
	if s.URL == "" {
		fail(fmt.Errorf("%w: %s", ErrScriptURLRequired, s.Name))
		return
	}

	l.mu.Lock()
	a, ok := l.attempts[s.URL]
	if !ok || a.failed() {
		a = &attempt{done: make(chan struct{})}
		l.attempts[s.URL] = a
		go l.fetch(s, a)
	}
	l.mu.Unlock()

	select {
	case <-a.done:
		if a.err != nil {
			fail(a.err)
			return
		}
		ready()
	case <-ctx.Done():
		fail(ctx.Err())
	}
}

func (l *ScriptLoader) fetch(s Script, a *attempt) {
	defer close(a.done)
	size, err := l.get(s.URL)
	if err != nil {
		a.err = fmt.Errorf("%w: %s: %w", ErrScriptUnavailable, s.Name, err)
		l.logger.Warn("script failed to load", "script", s.Name, "err", err)
		return
	}
	l.logger.Debug("script loaded", "script", s.Name, "bytes", size)
}

func (l *ScriptLoader) get(url string) (int, error) {
	resp, err := l.client.Get(url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxScriptBytes))
	if err != nil {
		return 0, err
	}
	if len(body) == 0 {
		return 0, errors.New("empty response")
	}
	// Captive portals and CDN error pages answer 200 with HTML.
	if mime := mimetype.Detect(body); mime.Is("text/html") {
		return 0, errors.New("received an HTML page instead of a script")
	}
	return len(body), nil
}

// ScriptStatus records the outcome of loading each page script.
type ScriptStatus struct {
	mu     sync.RWMutex
	errors map[string]error
	loaded map[string]bool
}

func NewScriptStatus() *ScriptStatus {
	return &ScriptStatus{errors: make(map[string]error), loaded: make(map[string]bool)}
}

func (st *ScriptStatus) Ready(name string) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.loaded[name]
}

func (st *ScriptStatus) Err(name string) error {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.errors[name]
}

// Track returns callbacks for Loader.Load that record the result for name.
func (st *ScriptStatus) Track(name string) (ready func(), fail func(error)) {
	ready = func() {
		st.mu.Lock()
		defer st.mu.Unlock()
		st.loaded[name] = true
		delete(st.errors, name)
	}
	fail = func(err error) {
		st.mu.Lock()
		defer st.mu.Unlock()
		st.loaded[name] = false
		st.errors[name] = err
	}
	return ready, fail
}
