// Package sessions issues and verifies the signed cookies that identify an
// anonymous visitor and carry the pending OAuth state.
package sessions

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/go-strava-broker/internal/config"
)

const (
	SessionCookieName = "strava_session"
	StateCookieName   = "strava_oauth_state"

	sessionAudience = "session"
	stateAudience   = "oauth_state"

	sessionIDBytes = 32
)

type Option func(*Identity)

// WithNowTime overrides the clock used for cookie expiry.
func WithNowTime(now func() time.Time) Option {
	return func(i *Identity) {
		i.now = now
	}
}

// Identity mints and verifies session and state cookies.
type Identity struct {
	session         *hmacSigner
	state           *hmacSigner
	secure          bool
	sessionLifetime time.Duration
	stateLifetime   time.Duration
	now             func() time.Time
}

func NewIdentity(cfg config.SecurityConfig, opts ...Option) (*Identity, error) {
	if cfg.GetSessionSecret() == "" {
		return nil, fmt.Errorf("session secret is empty")
	}
	session, err := newHMACSigner(cfg.GetSessionSecret(), sessionAudience)
	if err != nil {
		return nil, err
	}
	state, err := newHMACSigner(cfg.GetSessionSecret(), stateAudience)
	if err != nil {
		return nil, err
	}

	i := &Identity{
		session:         session,
		state:           state,
		secure:          cfg.GetCookieSecure(),
		sessionLifetime: cfg.GetSessionLifetime(),
		stateLifetime:   cfg.GetStateLifetime(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// SessionID returns the verified session id carried by r, if any.
func (i *Identity) SessionID(r *http.Request) (string, bool) {
	return i.read(r, SessionCookieName, i.session)
}

// EnsureSession returns the caller's session id, minting a new one when the
// request carries no valid session cookie. The returned cookie must be set on
// the response so the session lifetime slides forward.
func (i *Identity) EnsureSession(r *http.Request) (string, *http.Cookie, error) {
	id, ok := i.SessionID(r)
	if !ok {
		var err error
		if id, err = NewSessionID(); err != nil {
			return "", nil, err
		}
	}
	cookie, err := i.SessionCookie(id)
	if err != nil {
		return "", nil, err
	}
	return id, cookie, nil
}

// SessionCookie signs id into a fresh session cookie.
func (i *Identity) SessionCookie(id string) (*http.Cookie, error) {
	return i.cookie(SessionCookieName, id, i.session, i.sessionLifetime)
}

func (i *Identity) IssueStateCookie(state string) (*http.Cookie, error) {
	return i.cookie(StateCookieName, state, i.state, i.stateLifetime)
}

func (i *Identity) StateFromCookie(r *http.Request) (string, bool) {
	return i.read(r, StateCookieName, i.state)
}

// ClearStateCookie expires the state cookie in the browser.
func (i *Identity) ClearStateCookie() *http.Cookie {
	return &http.Cookie{
		Name:     StateCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   i.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	}
}

func (i *Identity) cookie(name, value string, signer *hmacSigner, lifetime time.Duration) (*http.Cookie, error) {
	now := i.now()
	signed, err := signer.Sign(value, now, lifetime)
	if err != nil {
		return nil, err
	}
	return &http.Cookie{
		Name:     name,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		Secure:   i.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(lifetime / time.Second),
		Expires:  now.Add(lifetime),
	}, nil
}

func (i *Identity) read(r *http.Request, name string, signer *hmacSigner) (string, bool) {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	value, err := signer.Verify(c.Value, i.now())
	if err != nil {
		return "", false
	}
	return value, true
}

// NewSessionID returns 256 random bits, hex encoded.
func NewSessionID() (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
