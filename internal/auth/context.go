package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/manash/splendid/internal/api"
	"github.com/manash/splendid/internal/credits"
	"github.com/manash/splendid/pkg/models"
)

var ErrNotAuthenticated = errors.New("not logged in")

// Backend is the subset of the API client the auth context talks to.
type Backend interface {
	GoogleLogin(ctx context.Context, credential string) (*api.LoginResponse, error)
	Verify(ctx context.Context, token string) (*models.AuthUser, error)
	Logout(ctx context.Context, token string) error
	Credits(ctx context.Context, token string) (*api.CreditsResponse, error)
	DeductCredits(ctx context.Context, token string, d api.DeductRequest) (*api.DeductResponse, error)
}

// Context tracks the current user and its bearer token.
type Context struct {
	backend Backend
	store   TokenStore
	logger  *log.Logger

	mu    sync.RWMutex
	user  *models.AuthUser
	token string
}

func NewContext(backend Backend, store TokenStore, logger *log.Logger) *Context {
	if logger == nil {
		logger = log.Default()
	}
	return &Context{
		backend: backend,
		store:   store,
		logger:  logger.With("component", "auth"),
	}
}

// User returns a copy of the current user, or nil when logged out.
func (c *Context) User() *models.AuthUser {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

func (c *Context) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Context) IsAuthenticated() bool {
	return c.User() != nil
}

// Verify validates the stored token. With no stored token it returns nil
// without touching the network. A rejected token is deleted; a transport
// failure keeps it and returns an error.
func (c *Context) Verify(ctx context.Context) (*models.AuthUser, error) {
	token, err := c.store.Token()
	if err != nil {
		c.logger.Warn("token store unreadable", "err", err)
		token = ""
	}
	if token == "" {
		c.setUser(nil, "")
		return nil, nil
	}

	user, err := c.backend.Verify(ctx, token)
	if err != nil {
		if rejected(err) {
			c.logger.Info("stored token rejected, clearing", "err", err)
			c.clearStored()
			c.setUser(nil, "")
			return nil, nil
		}
		return nil, fmt.Errorf("%w: verify: %w", models.ErrAuth, err)
	}

	c.setUser(user, token)
	c.logger.Debug("token verified", "user", user.Email)
	return c.User(), nil
}

// Login exchanges an identity credential for a backend token. The token is
// persisted only on success.
func (c *Context) Login(ctx context.Context, credential string) (*models.AuthUser, error) {
	if credential == "" {
		return nil, &models.AuthError{Message: "empty credential"}
	}

	res, err := c.backend.GoogleLogin(ctx, credential)
	if err != nil {
		var serr *api.StatusError
		if errors.As(err, &serr) {
			return nil, &models.AuthError{Status: serr.Code, Message: serr.Message}
		}
		return nil, &models.AuthError{Message: err.Error()}
	}
	if !res.Success || res.Token == "" || res.User == nil {
		return nil, &models.AuthError{Message: "backend did not issue a token"}
	}

	if err := c.store.SetToken(res.Token); err != nil {
		return nil, fmt.Errorf("%w: failed to persist token: %w", models.ErrAuth, err)
	}
	c.setUser(res.User, res.Token)
	c.logger.Info("logged in", "user", res.User.Email)
	return c.User(), nil
}

// Logout clears the user and the durable token unconditionally. The backend
// is told on a best-effort basis.
func (c *Context) Logout(ctx context.Context) {
	token := c.Token()
	c.setUser(nil, "")
	c.clearStored()

	if token == "" || c.backend == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.backend.Logout(ctx, token); err != nil {
		c.logger.Debug("backend logout failed", "err", err)
	}
}

func (c *Context) RefreshCredits(ctx context.Context) (float64, error) {
	token := c.Token()
	if token == "" {
		return 0, ErrNotAuthenticated
	}
	res, err := c.backend.Credits(ctx, token)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch credits: %w", err)
	}

	c.mu.Lock()
	if c.user != nil {
		c.user.Credits = res.Credits
		c.user.CreditsUsed = res.CreditsUsed
	}
	c.mu.Unlock()
	return res.Credits, nil
}

// DeductCredits charges a quote against the user's balance. Free quotes are
// not sent.
func (c *Context) DeductCredits(ctx context.Context, q credits.Quote) (*api.DeductResponse, error) {
	token := c.Token()
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	if q.Credits == 0 {
		return &api.DeductResponse{CreditsRemaining: c.balance()}, nil
	}

	res, err := c.backend.DeductCredits(ctx, token, api.DeductRequest{
		ModelKey:   q.ModelKey,
		Units:      q.Units,
		Variant:    q.Variant,
		Megapixels: q.Megapixels,
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.user != nil {
		c.user.Credits = res.CreditsRemaining
		c.user.CreditsUsed += res.CreditsDeducted
	}
	c.mu.Unlock()
	return res, nil
}

func (c *Context) balance() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return 0
	}
	return c.user.Credits
}

func (c *Context) setUser(user *models.AuthUser, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = user
	c.token = token
}

func (c *Context) clearStored() {
	if err := c.store.ClearToken(); err != nil {
		c.logger.Error("failed to clear stored token", "err", err)
	}
}

func rejected(err error) bool {
	return errors.Is(err, api.ErrUnauthorized) || errors.Is(err, api.ErrNotFound)
}
