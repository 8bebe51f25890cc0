package backend

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jo-hoe/sketchclass/internal/backend/auth"
	"github.com/jo-hoe/sketchclass/internal/backend/database"
	"github.com/jo-hoe/sketchclass/internal/backend/dataurl"
	"github.com/jo-hoe/sketchclass/internal/backend/genimage"
	"github.com/jo-hoe/sketchclass/internal/core"
)

// APIService exposes the JSON endpoints consumed by the sketch pad client.
type APIService struct {
	coreService *core.CoreService
	middleware  *auth.Middleware
}

func NewAPIService(coreService *core.CoreService, middleware *auth.Middleware) *APIService {
	return &APIService{
		coreService: coreService,
		middleware:  middleware,
	}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	api := e.Group("/api", s.middleware.RequireLogin)
	api.POST("/initial", s.initialHandler)
	api.POST("/continue", s.continueHandler)
	api.GET("/my_history", s.myHistoryHandler)
}

type conversationResponse struct {
	ID                int64  `json:"id"`
	Prompt            string `json:"prompt"`
	InputImage        string `json:"inputImage"`
	OutputImage       string `json:"outputImage"`
	ModelResponseText string `json:"modelResponseText"`
	CreatedAt         string `json:"createdAt"`
}

type continueRequest struct {
	Prompt    string `json:"prompt" validate:"required"`
	LastImage string `json:"lastImage" validate:"required"`
}

func (s *APIService) initialHandler(ctx echo.Context) error {
	user := auth.CurrentUser(ctx)

	file, err := ctx.FormFile("sketch")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Missing sketch file"})
	}
	prompt := ctx.FormValue("prompt")

	src, err := file.Open()
	if err != nil {
		slog.Error("initialHandler: failed to open uploaded sketch",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to open uploaded file"})
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			slog.Error("initialHandler: failed to close uploaded file reader", "error", cerr, "filename", file.Filename)
		}
	}()

	sketchData, err := io.ReadAll(src)
	if err != nil {
		slog.Error("initialHandler: failed to read uploaded sketch",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to read uploaded file"})
	}
	sketchMime := file.Header.Get("Content-Type")

	conversation, err := s.coreService.StartConversation(ctx.Request().Context(), user, prompt, sketchData, sketchMime)
	if err != nil {
		return s.conversationError(ctx, "initialHandler", err)
	}
	return ctx.JSON(http.StatusOK, toConversationResponse(conversation))
}

func (s *APIService) continueHandler(ctx echo.Context) error {
	user := auth.CurrentUser(ctx)

	var request continueRequest
	if err := ctx.Bind(&request); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := ctx.Validate(&request); err != nil {
		return err
	}

	conversation, err := s.coreService.ContinueConversation(ctx.Request().Context(), user, request.Prompt, request.LastImage)
	if err != nil {
		return s.conversationError(ctx, "continueHandler", err)
	}
	return ctx.JSON(http.StatusOK, toConversationResponse(conversation))
}

func (s *APIService) myHistoryHandler(ctx echo.Context) error {
	user := auth.CurrentUser(ctx)

	history, err := s.coreService.History(ctx.Request().Context(), user)
	if err != nil {
		slog.Error("myHistoryHandler: failed to load history",
			"status", http.StatusInternalServerError, "user_id", user.ID, "error", err)
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load history"})
	}

	responses := make([]conversationResponse, 0, len(history))
	for _, conversation := range history {
		responses = append(responses, toConversationResponse(conversation))
	}
	return ctx.JSON(http.StatusOK, responses)
}

// conversationError translates service errors into HTTP status codes; no raw
// store error reaches the client.
func (s *APIService) conversationError(ctx echo.Context, handler string, err error) error {
	switch {
	case errors.Is(err, core.ErrMissingPrompt),
		errors.Is(err, core.ErrMissingSketch),
		errors.Is(err, core.ErrMissingPriorImage):
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, dataurl.ErrMalformedDataURL):
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid lastImage data URL"})
	case errors.Is(err, genimage.ErrTransformFailed):
		return ctx.JSON(http.StatusBadGateway, map[string]string{"error": "Image generation backend unavailable"})
	default:
		slog.Error(handler+": request failed",
			"status", http.StatusInternalServerError, "error", err)
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
}

func toConversationResponse(conversation *database.Conversation) conversationResponse {
	return conversationResponse{
		ID:                conversation.ID,
		Prompt:            conversation.Prompt,
		InputImage:        conversation.InputImage,
		OutputImage:       conversation.OutputImage,
		ModelResponseText: conversation.ModelResponseText,
		CreatedAt:         conversation.CreatedAt,
	}
}
