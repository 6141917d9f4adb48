package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/manash/splendid/internal/auth"
	"github.com/manash/splendid/pkg/models"
)

const (
	sessionName = "splendid"
	authKey     = "auth"
	userKey     = "user"
	sessionDays = 7
)

var ErrSecretRequired = errors.New("session secret is required")

type Config struct {
	Backend       auth.Backend
	Catalog       *models.Catalog
	Secret        string
	SecureCookies bool
	Scripts       Loader
	Payment       Script
	Identity      Script
	Logger        *log.Logger
}

// Server is the studio web gateway.
type Server struct {
	cfg     Config
	engine  *gin.Engine
	scripts *ScriptStatus
	logger  *log.Logger
}

func New(cfg Config) (*Server, error) {
	if cfg.Secret == "" {
		return nil, ErrSecretRequired
	}
	if cfg.Backend == nil {
		return nil, errors.New("web gateway requires a backend")
	}
	if cfg.Catalog == nil {
		cfg.Catalog = models.DefaultCatalog()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Scripts == nil {
		cfg.Scripts = NewScriptLoader(nil, logger)
	}

	s := &Server{
		cfg:     cfg,
		scripts: NewScriptStatus(),
		logger:  logger.With("component", "web"),
	}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))
	r.SetHTMLTemplate(parseTemplates())

	store := cookie.NewStore([]byte(s.cfg.Secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * sessionDays,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store), s.authContext())

	r.GET("/healthz", s.handleHealth)
	r.GET("/api/catalog", s.handleCatalog)
	r.GET("/pricing", s.handlePricing)
	r.POST("/login", s.handleLogin)
	r.POST("/logout", s.handleLogout)

	protected := r.Group("/")
	protected.Use(s.requirePremium())
	{
		protected.GET("/studio", s.handleStudio)
	}
	return r
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Scripts() *ScriptStatus {
	return s.scripts
}

// LoadScripts resolves the payment and identity SDKs. Pages fall back to an
// unavailable notice for any script that failed.
func (s *Server) LoadScripts(ctx context.Context) {
	for _, sc := range []Script{s.cfg.Payment, s.cfg.Identity} {
		if sc.Name == "" {
			continue
		}
		ready, fail := s.scripts.Track(sc.Name)
		s.cfg.Scripts.Load(ctx, sc, ready, fail)
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web gateway stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func requestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"ip", c.ClientIP())
	}
}

// authContext gives each request an auth.Context backed by its session
// cookie.
func (s *Server) authContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		store := &sessionTokenStore{session: sessions.Default(c)}
		c.Set(authKey, auth.NewContext(s.cfg.Backend, store, s.logger))
		c.Next()
	}
}

func authFrom(c *gin.Context) *auth.Context {
	return c.MustGet(authKey).(*auth.Context)
}

// requirePremium redirects anyone without a premium plan to the pricing
// page, logged in or not.
func (s *Server) requirePremium() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := authFrom(c).Verify(c.Request.Context())
		if err != nil {
			s.logger.Error("verify failed", "path", c.Request.URL.Path, "err", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"detail": "could not verify your session, try again"})
			return
		}

		d := auth.Gate(user)
		if !d.Allowed {
			s.logger.Info("studio access denied", "reason", d.Reason, "ip", c.ClientIP())
			c.Redirect(http.StatusFound, d.Redirect+"?reason="+string(d.Reason))
			c.Abort()
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}
