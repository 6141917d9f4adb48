package web

import (
	"fmt"

	"github.com/gin-contrib/sessions"

	"github.com/manash/splendid/internal/auth"
)

// sessionTokenStore keeps the bearer token in the signed session cookie so
// the gateway can reuse auth.Context unchanged.
type sessionTokenStore struct {
	session sessions.Session
}

var _ auth.TokenStore = (*sessionTokenStore)(nil)

func (s *sessionTokenStore) Token() (string, error) {
	v := s.session.Get(auth.TokenKey)
	if v == nil {
		return "", nil
	}
	token, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("session token has type %T", v)
	}
	return token, nil
}

func (s *sessionTokenStore) SetToken(token string) error {
	s.session.Set(auth.TokenKey, token)
	return s.session.Save()
}

func (s *sessionTokenStore) ClearToken() error {
	s.session.Delete(auth.TokenKey)
	s.session.Options(sessions.Options{Path: "/", MaxAge: -1})
	return s.session.Save()
}
