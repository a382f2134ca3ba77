package httpx

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AngelCh415/campaign-dash/internal/config"
	"github.com/AngelCh415/campaign-dash/internal/session"
)

// CredentialChecker accepts or rejects a login.
type CredentialChecker interface {
	Check(ctx context.Context, user, secret string) bool
}

// StaticChecker accepts exactly one user/secret pair.
type StaticChecker struct {
	User   string
	Secret string
}

// NewStaticChecker returns nil when DASH_USER or DASH_SECRET is unset, which
// leaves the dashboard open.
func NewStaticChecker(cfg config.Config) CredentialChecker {
	if config.Require(
		config.Setting{Name: "DASH_USER", Value: cfg.DashUser},
		config.Setting{Name: "DASH_SECRET", Value: cfg.DashSecret},
	) != nil {
		return nil
	}
	return StaticChecker{User: cfg.DashUser, Secret: cfg.DashSecret}
}

func (c StaticChecker) Check(_ context.Context, user, secret string) bool {
	u := subtle.ConstantTimeCompare([]byte(user), []byte(c.User))
	s := subtle.ConstantTimeCompare([]byte(secret), []byte(c.Secret))
	return u&s == 1
}

const (
	sessionCookie = "dash_session"
	tokenPrefix   = "token:"
)

var errUnauthorized = errors.New("unauthorized")

type auth struct {
	checker  CredentialChecker
	sessions session.Store
	ttl      time.Duration
}

func (a auth) enabled() bool { return a.checker != nil }

func (a auth) login(ctx context.Context, user, secret string) (string, time.Time, error) {
	if !a.enabled() {
		return "", time.Time{}, fmt.Errorf("login: %w", config.ErrNotConfigured)
	}
	if !a.checker.Check(ctx, user, secret) {
		return "", time.Time{}, errUnauthorized
	}
	tok := uuid.NewString()
	if err := a.sessions.Set(ctx, tokenPrefix+tok, user, a.ttl); err != nil {
		return "", time.Time{}, err
	}
	return tok, time.Now().Add(a.ttl).UTC(), nil
}

func (a auth) logout(ctx context.Context, tok string) error {
	if tok == "" {
		return nil
	}
	return a.sessions.Clear(ctx, tokenPrefix+tok)
}

// require rejects requests without a live session token when credentials are
// configured.
func (a auth) require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.enabled() {
			next.ServeHTTP(w, r)
			return
		}
		tok := tokenFrom(r)
		if tok == "" {
			writeError(w, r, errUnauthorized)
			return
		}
		if _, err := a.sessions.Get(r.Context(), tokenPrefix+tok); err != nil {
			if errors.Is(err, session.ErrNotFound) {
				err = errUnauthorized
			}
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return ""
}
