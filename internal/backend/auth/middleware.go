package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/jo-hoe/sketchclass/internal/backend/database"
	"github.com/jo-hoe/sketchclass/internal/backend/session"
)

const userContextKey = "auth.user"

// Middleware gates routes behind a valid session and, where required, the
// teacher flag. API routes get JSON status responses; page routes get
// redirects.
type Middleware struct {
	sessions        session.Store
	databaseService database.DatabaseService
}

func NewMiddleware(sessions session.Store, databaseService database.DatabaseService) *Middleware {
	return &Middleware{
		sessions:        sessions,
		databaseService: databaseService,
	}
}

// RequireLogin resolves the session to a user and stores it in the request
// context. Unauthenticated requests are denied.
func (m *Middleware) RequireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		user, err := m.ResolveUser(ctx)
		if err != nil {
			return m.denyUnauthenticated(ctx)
		}
		ctx.Set(userContextKey, user)
		return next(ctx)
	}
}

// RequireTeacher denies requests whose authenticated user is not a teacher.
// Must run after RequireLogin.
func (m *Middleware) RequireTeacher(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		user := CurrentUser(ctx)
		if user == nil {
			return m.denyUnauthenticated(ctx)
		}
		if !user.IsTeacher {
			slog.Warn("teacher gate rejected request",
				"path", ctx.Path(), "user_id", user.ID)
			if isAPIRequest(ctx) {
				return ctx.JSON(http.StatusForbidden, map[string]string{"error": "Teacher access required"})
			}
			return ctx.Redirect(http.StatusFound, "/dashboard")
		}
		return next(ctx)
	}
}

// ResolveUser loads the session's user without enforcing anything. Handlers
// that behave differently for logged-in users (login, register) use this
// directly.
func (m *Middleware) ResolveUser(ctx echo.Context) (*database.User, error) {
	userID, err := m.sessions.UserID(ctx)
	if err != nil {
		return nil, err
	}
	user, err := m.databaseService.GetUserByID(ctx.Request().Context(), userID)
	if err != nil {
		return nil, session.ErrNoSession
	}
	return user, nil
}

// CurrentUser returns the user set by RequireLogin, or nil.
func CurrentUser(ctx echo.Context) *database.User {
	user, _ := ctx.Get(userContextKey).(*database.User)
	return user
}

func (m *Middleware) denyUnauthenticated(ctx echo.Context) error {
	if isAPIRequest(ctx) {
		return ctx.JSON(http.StatusUnauthorized, map[string]string{"error": "Login required"})
	}
	return ctx.Redirect(http.StatusFound, "/login")
}

func isAPIRequest(ctx echo.Context) bool {
	return strings.HasPrefix(ctx.Request().URL.Path, "/api/")
}
