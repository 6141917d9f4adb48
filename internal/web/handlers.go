package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/manash/splendid/internal/auth"
	"github.com/manash/splendid/pkg/models"
)

type toolView struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
	IsNew       bool   `json:"isNew"`
	IsTop       bool   `json:"isTop"`
}

func newToolView(t *models.Tool) toolView {
	return toolView{
		ID:          t.ID,
		Name:        t.Name,
		Slug:        t.Slug,
		Category:    t.Category.String(),
		Description: t.Description,
		Image:       t.Image,
		IsNew:       t.IsNew,
		IsTop:       t.IsTop,
	}
}

type toolGroup struct {
	Category models.Category
	Tools    []*models.Tool
}

type page struct {
	Title         string
	Message       string
	User          *models.AuthUser
	Groups        []toolGroup
	Payment       Script
	PaymentReady  bool
	Identity      Script
	IdentityReady bool
}

func (s *Server) page(title string) page {
	return page{
		Title:         title,
		Payment:       s.cfg.Payment,
		PaymentReady:  s.scripts.Ready(s.cfg.Payment.Name),
		Identity:      s.cfg.Identity,
		IdentityReady: s.scripts.Ready(s.cfg.Identity.Name),
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleCatalog(c *gin.Context) {
	tools := s.cfg.Catalog.List()
	if raw := c.Query("category"); raw != "" {
		cat := models.Category(strings.ToLower(raw))
		if !cat.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "unknown category: " + raw})
			return
		}
		tools = s.cfg.Catalog.ListByCategory(cat)
	}

	views := make([]toolView, 0, len(tools))
	for _, t := range tools {
		views = append(views, newToolView(t))
	}
	c.JSON(http.StatusOK, gin.H{"tools": views})
}

func (s *Server) handlePricing(c *gin.Context) {
	p := s.page("Pricing")
	p.Message = auth.Decision{Reason: auth.Reason(c.Query("reason"))}.Message()

	// Showing who is signed in is best effort; a backend outage still
	// renders the page.
	user, err := authFrom(c).Verify(c.Request.Context())
	if err != nil {
		s.logger.Warn("verify failed on pricing page", "err", err)
	}
	p.User = user
	c.HTML(http.StatusOK, "pricing.html", p)
}

type loginRequest struct {
	Credential string `json:"credential" form:"credential"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil || strings.TrimSpace(req.Credential) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "credential is required"})
		return
	}

	user, err := authFrom(c).Login(c.Request.Context(), strings.TrimSpace(req.Credential))
	if err != nil {
		var aerr *models.AuthError
		if errors.As(err, &aerr) {
			s.logger.Info("login rejected", "status", aerr.Status, "ip", c.ClientIP())
			c.JSON(http.StatusUnauthorized, gin.H{"detail": aerr.Message})
			return
		}
		s.logger.Error("login failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "login failed"})
		return
	}

	s.logger.Info("login", "user", user.Email, "premium", user.IsPremium())
	c.Redirect(http.StatusSeeOther, "/studio")
}

func (s *Server) handleLogout(c *gin.Context) {
	a := authFrom(c)
	if _, err := a.Verify(c.Request.Context()); err != nil {
		s.logger.Debug("verify before logout failed", "err", err)
	}
	a.Logout(c.Request.Context())
	c.Redirect(http.StatusSeeOther, auth.PricingPath)
}

func (s *Server) handleStudio(c *gin.Context) {
	p := s.page("Studio")
	p.User = c.MustGet(userKey).(*models.AuthUser)
	for _, cat := range models.ValidCategories() {
		if tools := s.cfg.Catalog.ListByCategory(cat); len(tools) > 0 {
			p.Groups = append(p.Groups, toolGroup{Category: cat, Tools: tools})
		}
	}
	c.HTML(http.StatusOK, "studio.html", p)
}
