package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jo-hoe/sketchclass/internal/backend/auth"
	"github.com/jo-hoe/sketchclass/internal/backend/database"
	"github.com/jo-hoe/sketchclass/internal/backend/dataurl"
	"github.com/jo-hoe/sketchclass/internal/backend/genimage"
	"github.com/jo-hoe/sketchclass/internal/backend/session"
	"github.com/jo-hoe/sketchclass/internal/backend/sketch"
)

const fallbackSketchMime = "image/png"

// CoreService is the application context constructed once at startup and
// passed into every request handler. It owns the store, the session store,
// and the image transformer; handlers never touch globals.
type CoreService struct {
	config          *ServiceConfig
	databaseService database.DatabaseService
	transformer     genimage.Transformer
	sessions        session.Store
}

func NewCoreService(config *ServiceConfig) *CoreService {
	databaseService, err := getDatabaseService(config)
	if err != nil {
		slog.Error("failed to initialize database service", "error", err)
		panic(err)
	}

	sessions, err := session.NewStore(session.Config{
		Store:        config.Session.Store,
		SecretKey:    []byte(config.Auth.SecretKey),
		Validity:     time.Duration(config.Auth.SessionValidityMinutes) * time.Minute,
		RedisAddress: config.Session.RedisAddress,
	})
	if err != nil {
		slog.Error("failed to initialize session store", "error", err)
		panic(err)
	}

	transformer := getTransformer(config)
	slog.Info("image transformer initialized", "backend", transformer.Name())

	return &CoreService{
		config:          config,
		databaseService: databaseService,
		transformer:     transformer,
		sessions:        sessions,
	}
}

func (service *CoreService) Database() database.DatabaseService {
	return service.databaseService
}

func (service *CoreService) Sessions() session.Store {
	return service.sessions
}

func (service *CoreService) Close() error {
	return service.databaseService.Close()
}

// RegisterUser applies the registration policy: while no users exist, anyone
// may register and the created account is forced to teacher; afterwards only
// an authenticated teacher may register, and the requested role is honored.
func (service *CoreService) RegisterUser(ctx context.Context, actor *database.User, username, password string, isTeacher bool) (*database.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	count, err := service.databaseService.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if count == 0 {
		isTeacher = true // first user is always teacher
	} else if actor == nil || !actor.IsTeacher {
		return nil, ErrForbidden
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// No duplicate pre-check; the store's UNIQUE constraint is the sole
	// source of truth and concurrent inserts race safely on it.
	user, err := service.databaseService.CreateUser(ctx, username, passwordHash, isTeacher)
	if err != nil {
		return nil, err
	}
	slog.Info("user registered", "user_id", user.ID, "is_teacher", user.IsTeacher)
	return user, nil
}

// Authenticate verifies a username/password pair. Unknown usernames still
// burn a hash verification so timing does not reveal account existence.
func (service *CoreService) Authenticate(ctx context.Context, username, password string) (*database.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := service.databaseService.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			auth.BurnPasswordCheck(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// StartConversation runs a fresh sketch through the transformer and persists
// the turn. Nothing is persisted if the transform fails.
func (service *CoreService) StartConversation(ctx context.Context, user *database.User, prompt string, sketchData []byte, sketchMime string) (*database.Conversation, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrMissingPrompt
	}
	if len(sketchData) == 0 {
		return nil, ErrMissingSketch
	}

	// Browsers send the real mime type; curl and form builders often send
	// application/octet-stream, which is as good as no type at all.
	if sketchMime == "" || sketchMime == "application/octet-stream" {
		sketchMime = sketch.DetectMime(sketchData, fallbackSketchMime)
	}
	normalized, normalizedMime, err := sketch.Normalize(sketchData, sketchMime)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize sketch: %w", err)
	}

	inputImage := dataurl.Encode(normalized, normalizedMime)
	return service.runTransform(ctx, user, prompt, normalized, normalizedMime, inputImage)
}

// ContinueConversation reuses a prior output image, supplied by the client
// as a data URL, as the next turn's input. The stored input image is the
// incoming data URL verbatim, never re-encoded.
func (service *CoreService) ContinueConversation(ctx context.Context, user *database.User, prompt, lastImage string) (*database.Conversation, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrMissingPrompt
	}
	if lastImage == "" {
		return nil, ErrMissingPriorImage
	}

	imageData, mimeType, err := dataurl.Decode(lastImage)
	if err != nil {
		return nil, err
	}
	return service.runTransform(ctx, user, prompt, imageData, mimeType, lastImage)
}

func (service *CoreService) runTransform(ctx context.Context, user *database.User, prompt string, imageData []byte, mimeType, inputImage string) (*database.Conversation, error) {
	result, err := service.transformer.Transform(ctx, imageData, mimeType, prompt)
	if err != nil {
		slog.Error("image transform failed",
			"backend", service.transformer.Name(), "user_id", user.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", genimage.ErrTransformFailed, err)
	}

	conversation := &database.Conversation{
		UserID:            user.ID,
		Prompt:            prompt,
		InputImage:        inputImage,
		OutputImage:       dataurl.Encode(result.Image, result.MimeType),
		ModelResponseText: result.Text,
		CreatedAt:         time.Now().UTC().Format(time.RFC3339),
	}
	return service.databaseService.CreateConversation(ctx, conversation)
}

// History returns the user's own conversations, ascending by creation time.
func (service *CoreService) History(ctx context.Context, user *database.User) ([]*database.Conversation, error) {
	return service.databaseService.GetConversationsByUser(ctx, user.ID)
}

// Roster returns every user with their conversation count, teachers first,
// then alphabetical.
func (service *CoreService) Roster(ctx context.Context) ([]*database.UserSummary, error) {
	return service.databaseService.GetUserSummaries(ctx)
}

// StudentView returns one user and their conversations, or
// database.ErrNotFound for an unknown id.
func (service *CoreService) StudentView(ctx context.Context, userID int64) (*database.User, []*database.Conversation, error) {
	user, err := service.databaseService.GetUserByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	conversations, err := service.databaseService.GetConversationsByUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return user, conversations, nil
}

func (service *CoreService) UserCount(ctx context.Context) (int64, error) {
	return service.databaseService.CountUsers(ctx)
}

func getDatabaseService(config *ServiceConfig) (database.DatabaseService, error) {
	databaseService, err := database.NewDatabase(config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("database initialized successfully", "type", config.Database.Type)
	return databaseService, nil
}

func getTransformer(config *ServiceConfig) genimage.Transformer {
	if config.Model.APIKey == "" {
		return genimage.NewStubTransformer()
	}
	return genimage.NewGeminiTransformer(genimage.GeminiConfig{
		APIKey:  config.Model.APIKey,
		Model:   config.Model.Name,
		BaseURL: config.Model.BaseURL,
	})
}
