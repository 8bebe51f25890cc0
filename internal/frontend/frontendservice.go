package frontend

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/jo-hoe/sketchclass/internal/backend/auth"
	"github.com/jo-hoe/sketchclass/internal/backend/database"
	"github.com/jo-hoe/sketchclass/internal/core"
)

type FrontendService struct {
	coreService *core.CoreService
	middleware  *auth.Middleware
}

func NewFrontendService(coreService *core.CoreService, middleware *auth.Middleware) *FrontendService {
	return &FrontendService{
		coreService: coreService,
		middleware:  middleware,
	}
}

func (service *FrontendService) SetRoutes(e *echo.Echo) {
	e.Renderer = newRenderer()

	e.GET("/", service.rootRedirectHandler)
	e.GET("/login", service.loginPageHandler)
	e.POST("/login", service.loginSubmitHandler)
	e.GET("/logout", service.logoutHandler, service.middleware.RequireLogin)
	e.GET("/register", service.registerPageHandler)
	e.POST("/register", service.registerSubmitHandler)
	e.GET("/dashboard", service.dashboardHandler, service.middleware.RequireLogin)
	e.GET("/teacher", service.teacherPanelHandler, service.middleware.RequireLogin, service.middleware.RequireTeacher)
	e.GET("/teacher/user/:id", service.teacherUserViewHandler, service.middleware.RequireLogin, service.middleware.RequireTeacher)
}

type loginPage struct {
	UserCount int64
	Error     string
}

type registerPage struct {
	FirstUser bool
	Error     string
}

type dashboardPage struct {
	User *database.User
}

type teacherPage struct {
	User   *database.User
	Roster []*database.UserSummary
}

type teacherUserPage struct {
	User          *database.User
	Student       *database.User
	Conversations []*database.Conversation
}

// rootRedirectHandler sends authenticated users to the dashboard and
// everyone else to the login page.
func (service *FrontendService) rootRedirectHandler(ctx echo.Context) error {
	if _, err := service.middleware.ResolveUser(ctx); err == nil {
		return ctx.Redirect(http.StatusFound, "/dashboard")
	}
	return ctx.Redirect(http.StatusFound, "/login")
}

func (service *FrontendService) loginPageHandler(ctx echo.Context) error {
	if _, err := service.middleware.ResolveUser(ctx); err == nil {
		return ctx.Redirect(http.StatusFound, "/dashboard")
	}
	return service.renderLogin(ctx, "")
}

func (service *FrontendService) loginSubmitHandler(ctx echo.Context) error {
	username := ctx.FormValue("username")
	password := ctx.FormValue("password")

	user, err := service.coreService.Authenticate(ctx.Request().Context(), username, password)
	if err != nil {
		if errors.Is(err, core.ErrInvalidCredentials) {
			return service.renderLogin(ctx, "Invalid username or password.")
		}
		slog.Error("loginSubmitHandler: authentication failed",
			"status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Login failed")
	}

	if err := service.coreService.Sessions().Issue(ctx, user.ID); err != nil {
		slog.Error("loginSubmitHandler: failed to issue session",
			"status", http.StatusInternalServerError, "user_id", user.ID, "error", err)
		return ctx.String(http.StatusInternalServerError, "Login failed")
	}
	return ctx.Redirect(http.StatusFound, "/dashboard")
}

func (service *FrontendService) logoutHandler(ctx echo.Context) error {
	if err := service.coreService.Sessions().Clear(ctx); err != nil {
		slog.Error("logoutHandler: failed to clear session", "error", err)
	}
	return ctx.Redirect(http.StatusFound, "/login")
}

func (service *FrontendService) registerPageHandler(ctx echo.Context) error {
	firstUser, err := service.isFirstUser(ctx)
	if err != nil {
		return ctx.String(http.StatusInternalServerError, "Failed to load registration page")
	}
	if !firstUser {
		actor, resolveErr := service.middleware.ResolveUser(ctx)
		if resolveErr != nil || !actor.IsTeacher {
			return ctx.Redirect(http.StatusFound, "/login")
		}
	}
	return ctx.Render(http.StatusOK, "register.html", registerPage{FirstUser: firstUser})
}

func (service *FrontendService) registerSubmitHandler(ctx echo.Context) error {
	firstUser, err := service.isFirstUser(ctx)
	if err != nil {
		return ctx.String(http.StatusInternalServerError, "Registration failed")
	}

	// nil actor is fine for the first user; the policy check happens in the service
	actor, _ := service.middleware.ResolveUser(ctx)

	username := ctx.FormValue("username")
	password := ctx.FormValue("password")
	isTeacher := ctx.FormValue("is_teacher") == "on"

	_, err = service.coreService.RegisterUser(ctx.Request().Context(), actor, username, password, isTeacher)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrMissingCredentials):
			return ctx.Render(http.StatusBadRequest, "register.html",
				registerPage{FirstUser: firstUser, Error: "Username and password are required."})
		case errors.Is(err, database.ErrDuplicateUsername):
			return ctx.Render(http.StatusConflict, "register.html",
				registerPage{FirstUser: firstUser, Error: "Username already exists. Choose another one."})
		case errors.Is(err, core.ErrForbidden):
			return ctx.Redirect(http.StatusFound, "/login")
		default:
			slog.Error("registerSubmitHandler: failed to register user",
				"status", http.StatusInternalServerError, "error", err)
			return ctx.String(http.StatusInternalServerError, "Registration failed")
		}
	}

	if firstUser {
		return ctx.Redirect(http.StatusFound, "/login")
	}
	return ctx.Redirect(http.StatusFound, "/teacher")
}

func (service *FrontendService) dashboardHandler(ctx echo.Context) error {
	return ctx.Render(http.StatusOK, "dashboard.html", dashboardPage{User: auth.CurrentUser(ctx)})
}

func (service *FrontendService) teacherPanelHandler(ctx echo.Context) error {
	roster, err := service.coreService.Roster(ctx.Request().Context())
	if err != nil {
		slog.Error("teacherPanelHandler: failed to load roster",
			"status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to load roster")
	}
	service.setNoCache(ctx)
	return ctx.Render(http.StatusOK, "teacher.html", teacherPage{
		User:   auth.CurrentUser(ctx),
		Roster: roster,
	})
}

func (service *FrontendService) teacherUserViewHandler(ctx echo.Context) error {
	userID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		return ctx.Redirect(http.StatusFound, "/teacher")
	}

	student, conversations, err := service.coreService.StudentView(ctx.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ctx.Redirect(http.StatusFound, "/teacher")
		}
		slog.Error("teacherUserViewHandler: failed to load student view",
			"status", http.StatusInternalServerError, "user_id", userID, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to load student view")
	}

	service.setNoCache(ctx)
	return ctx.Render(http.StatusOK, "teacher_user.html", teacherUserPage{
		User:          auth.CurrentUser(ctx),
		Student:       student,
		Conversations: conversations,
	})
}

func (service *FrontendService) renderLogin(ctx echo.Context, errorMessage string) error {
	count, err := service.coreService.UserCount(ctx.Request().Context())
	if err != nil {
		slog.Error("renderLogin: failed to count users", "error", err)
	}
	status := http.StatusOK
	if errorMessage != "" {
		status = http.StatusUnauthorized
	}
	return ctx.Render(status, "login.html", loginPage{UserCount: count, Error: errorMessage})
}

func (service *FrontendService) isFirstUser(ctx echo.Context) (bool, error) {
	count, err := service.coreService.UserCount(ctx.Request().Context())
	if err != nil {
		slog.Error("failed to count users", "error", err)
		return false, err
	}
	return count == 0, nil
}

func (service *FrontendService) setNoCache(ctx echo.Context) {
	ctx.Response().Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	ctx.Response().Header().Set("Pragma", "no-cache")
	ctx.Response().Header().Set("Expires", "0")
}
