package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/manash/splendid/internal/api"
	"github.com/manash/splendid/internal/credits"
	"github.com/manash/splendid/pkg/models"
)

type fakeBackend struct {
	verifyCalls int
	verifyErr   error
	loginErr    error
	logoutCalls int
	deducted    []api.DeductRequest
	credits     float64
}

func (f *fakeBackend) GoogleLogin(ctx context.Context, credential string) (*api.LoginResponse, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &api.LoginResponse{
		Success: true,
		Token:   "jwt-" + credential,
		User:    &models.AuthUser{ID: "u1", Email: "ada@example.com", Plan: models.PlanPremium, Credits: 500},
	}, nil
}

func (f *fakeBackend) Verify(ctx context.Context, token string) (*models.AuthUser, error) {
	f.verifyCalls++
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return &models.AuthUser{ID: "u1", Email: "ada@example.com", Credits: 480}, nil
}

func (f *fakeBackend) Logout(ctx context.Context, token string) error {
	f.logoutCalls++
	return errors.New("backend down")
}

func (f *fakeBackend) Credits(ctx context.Context, token string) (*api.CreditsResponse, error) {
	return &api.CreditsResponse{Credits: f.credits, CreditsUsed: 500 - f.credits}, nil
}

func (f *fakeBackend) DeductCredits(ctx context.Context, token string, d api.DeductRequest) (*api.DeductResponse, error) {
	f.deducted = append(f.deducted, d)
	return &api.DeductResponse{CreditsDeducted: 10, CreditsRemaining: 490}, nil
}

func newTestContext(backend Backend, store TokenStore) *Context {
	return NewContext(backend, store, log.New(io.Discard))
}

func TestContext_VerifyNoToken(t *testing.T) {
	backend := &fakeBackend{}
	c := newTestContext(backend, NewMemoryTokenStore(""))

	user, err := c.Verify(context.Background())
	if user != nil || err != nil {
		t.Errorf("Verify() = %v, %v, want nil, nil", user, err)
	}
	if backend.verifyCalls != 0 {
		t.Error("Verify() without token must not call the backend")
	}
}

func TestContext_VerifyValid(t *testing.T) {
	c := newTestContext(&fakeBackend{}, NewMemoryTokenStore("jwt"))

	user, err := c.Verify(context.Background())
	if err != nil || user == nil || user.Credits != 480 {
		t.Fatalf("Verify() = %+v, %v", user, err)
	}
	if c.Token() != "jwt" || !c.IsAuthenticated() {
		t.Error("Verify() should install user and token")
	}
}

func TestContext_VerifyRejected(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound} {
		store := NewMemoryTokenStore("expired")
		c := newTestContext(&fakeBackend{verifyErr: &api.StatusError{Code: code}}, store)

		user, err := c.Verify(context.Background())
		if user != nil || err != nil {
			t.Errorf("Verify(%d) = %v, %v, want nil, nil", code, user, err)
		}
		if tok, _ := store.Token(); tok != "" {
			t.Errorf("Verify(%d) left token %q", code, tok)
		}
	}
}

func TestContext_VerifyTransportFailureKeepsToken(t *testing.T) {
	store := NewMemoryTokenStore("jwt")
	c := newTestContext(&fakeBackend{verifyErr: errors.New("dial tcp: connection refused")}, store)

	user, err := c.Verify(context.Background())
	if user != nil || !errors.Is(err, models.ErrAuth) {
		t.Fatalf("Verify() = %v, %v, want ErrAuth", user, err)
	}
	if tok, _ := store.Token(); tok != "jwt" {
		t.Error("transport failure must keep the stored token")
	}
}

func TestContext_Login(t *testing.T) {
	store := NewMemoryTokenStore("")
	c := newTestContext(&fakeBackend{}, store)

	user, err := c.Login(context.Background(), "cred")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if !user.IsPremium() {
		t.Error("Login() user should be premium")
	}
	if tok, _ := store.Token(); tok != "jwt-cred" {
		t.Errorf("stored token = %q", tok)
	}
}

func TestContext_LoginFailure(t *testing.T) {
	store := NewMemoryTokenStore("")
	c := newTestContext(&fakeBackend{loginErr: &api.StatusError{Code: 401, Message: "Token Google invalide"}}, store)

	_, err := c.Login(context.Background(), "bad")
	var aerr *models.AuthError
	if !errors.As(err, &aerr) || aerr.Status != 401 || aerr.Message != "Token Google invalide" {
		t.Fatalf("Login() error = %v", err)
	}
	if !errors.Is(err, models.ErrAuth) {
		t.Error("AuthError should wrap ErrAuth")
	}
	if tok, _ := store.Token(); tok != "" {
		t.Error("failed login must not persist a token")
	}

	if _, err := c.Login(context.Background(), ""); !errors.As(err, &aerr) {
		t.Errorf("Login(\"\") error = %v", err)
	}
}

func TestContext_LogoutThenVerify(t *testing.T) {
	backend := &fakeBackend{}
	store := NewMemoryTokenStore("")
	c := newTestContext(backend, store)
	ctx := context.Background()

	if _, err := c.Login(ctx, "cred"); err != nil {
		t.Fatal(err)
	}
	c.Logout(ctx)

	if c.User() != nil || c.Token() != "" {
		t.Error("Logout() left user state")
	}
	if tok, _ := store.Token(); tok != "" {
		t.Error("Logout() left durable token")
	}
	if backend.logoutCalls != 1 {
		t.Errorf("backend logout calls = %d", backend.logoutCalls)
	}

	user, err := c.Verify(ctx)
	if user != nil || err != nil {
		t.Errorf("Verify() after logout = %v, %v", user, err)
	}
	if backend.verifyCalls != 0 {
		t.Error("Verify() after logout must not call the backend")
	}
}

func TestContext_Credits(t *testing.T) {
	backend := &fakeBackend{credits: 321}
	c := newTestContext(backend, NewMemoryTokenStore(""))
	ctx := context.Background()

	if _, err := c.RefreshCredits(ctx); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("RefreshCredits() logged out error = %v", err)
	}

	c.Login(ctx, "cred")
	got, err := c.RefreshCredits(ctx)
	if err != nil || got != 321 || c.User().Credits != 321 {
		t.Errorf("RefreshCredits() = %v, %v", got, err)
	}

	if _, err := c.DeductCredits(ctx, credits.Quote{ModelKey: "chatgpt"}); err != nil {
		t.Fatalf("DeductCredits(free) error = %v", err)
	}
	if len(backend.deducted) != 0 {
		t.Error("free quote should not be sent")
	}

	res, err := c.DeductCredits(ctx, credits.Quote{ModelKey: "kling_ai_v2_1", Units: 5, Variant: "pro", Credits: 10})
	if err != nil {
		t.Fatalf("DeductCredits() error = %v", err)
	}
	if res.CreditsRemaining != 490 || c.User().Credits != 490 {
		t.Errorf("DeductCredits() = %+v, user credits %v", res, c.User().Credits)
	}
	if d := backend.deducted[0]; d.ModelKey != "kling_ai_v2_1" || d.Units != 5 || d.Variant != "pro" {
		t.Errorf("deduct request = %+v", d)
	}
}

func TestGate(t *testing.T) {
	tests := []struct {
		name   string
		user   *models.AuthUser
		allow  bool
		reason Reason
	}{
		{"anonymous", nil, false, ReasonUnauthenticated},
		{"free trial", &models.AuthUser{Plan: models.PlanFreeTrial}, false, ReasonNotPremium},
		{"premium plan", &models.AuthUser{Plan: models.PlanPremium}, true, ReasonNone},
		{"premium flag", &models.AuthUser{Premium: true}, true, ReasonNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Gate(tt.user)
			if d.Allowed != tt.allow || d.Reason != tt.reason {
				t.Errorf("Gate() = %+v", d)
			}
			if !d.Allowed && d.Redirect != PricingPath {
				t.Errorf("denied redirect = %q, want %q", d.Redirect, PricingPath)
			}
			if d.Allowed != (d.Message() == "") {
				t.Errorf("Message() = %q", d.Message())
			}
		})
	}
}

func TestReadLine(t *testing.T) {
	got, err := readLine(strings.NewReader("  abc.def  \n"))
	if err != nil || got != "abc.def" {
		t.Errorf("readLine() = %q, %v", got, err)
	}
}
