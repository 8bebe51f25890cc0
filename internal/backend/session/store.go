// Package session binds an authenticated user to a browser cookie. Two
// implementations: a stateless signed-token cookie (default) and a
// Redis-backed server-side store.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// ErrNoSession is returned when the request carries no valid session.
var ErrNoSession = errors.New("no valid session")

const CookieName = "session"

// Store issues, resolves, and destroys sessions.
type Store interface {
	// Issue creates a session for the user and sets the session cookie.
	Issue(ctx echo.Context, userID int64) error
	// UserID resolves the request's session to a user id, or ErrNoSession.
	UserID(ctx echo.Context) (int64, error)
	// Clear destroys the request's session and expires the cookie.
	Clear(ctx echo.Context) error
}

// Config selects and parameterizes the session store.
type Config struct {
	Store        string        // "cookie" (default) or "redis"
	SecretKey    []byte        // signing key for the cookie store
	Validity     time.Duration // session lifetime
	RedisAddress string
}

func NewStore(config Config) (Store, error) {
	switch config.Store {
	case "", "cookie":
		return NewCookieStore(config.SecretKey, config.Validity), nil
	case "redis":
		return NewRedisStore(config.RedisAddress, config.Validity), nil
	default:
		return nil, fmt.Errorf("unsupported session store: %s", config.Store)
	}
}

func newSessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func requestCookie(ctx echo.Context) (string, error) {
	cookie, err := ctx.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", ErrNoSession
	}
	return cookie.Value, nil
}
