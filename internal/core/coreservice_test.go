package core

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jo-hoe/sketchclass/internal/backend/database"
	"github.com/jo-hoe/sketchclass/internal/backend/dataurl"
)

func newTestService(t *testing.T) *CoreService {
	t.Helper()

	config := &ServiceConfig{}
	applyDefaults(config)
	config.Database.ConnectionString = ":memory:"

	service := NewCoreService(config)
	t.Cleanup(func() { _ = service.Close() })
	return service
}

func registerTeacher(t *testing.T, service *CoreService) *database.User {
	t.Helper()
	teacher, err := service.RegisterUser(context.Background(), nil, "alice", "password", false)
	require.NoError(t, err)
	return teacher
}

func TestRegisterUser_FirstUserForcedTeacher(t *testing.T) {
	service := newTestService(t)

	// Explicitly request a non-teacher role; the first user must still be a teacher
	user, err := service.RegisterUser(context.Background(), nil, "alice", "password", false)
	require.NoError(t, err)
	assert.True(t, user.IsTeacher)
}

func TestRegisterUser_RequiresTeacherOnceUsersExist(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	teacher := registerTeacher(t, service)

	// Unauthenticated caller
	_, err := service.RegisterUser(ctx, nil, "eve", "password", false)
	assert.ErrorIs(t, err, ErrForbidden)

	// Student caller
	student, err := service.RegisterUser(ctx, teacher, "bob", "password", false)
	require.NoError(t, err)
	assert.False(t, student.IsTeacher)

	_, err = service.RegisterUser(ctx, student, "eve", "password", false)
	assert.ErrorIs(t, err, ErrForbidden)

	// No row was created by the rejected attempts
	count, err := service.UserCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestRegisterUser_HonorsRequestedRole(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	teacher := registerTeacher(t, service)

	secondTeacher, err := service.RegisterUser(ctx, teacher, "carol", "password", true)
	require.NoError(t, err)
	assert.True(t, secondTeacher.IsTeacher)
}

func TestRegisterUser_DuplicateUsername(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	teacher := registerTeacher(t, service)

	_, err := service.RegisterUser(ctx, teacher, "alice", "other", false)
	assert.ErrorIs(t, err, database.ErrDuplicateUsername)
}

func TestRegisterUser_ConcurrentDuplicates(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	teacher := registerTeacher(t, service)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.RegisterUser(ctx, teacher, "bob", "password", false)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, database.ErrDuplicateUsername)
		}
	}
	assert.Equal(t, 1, successes)
}

func TestRegisterUser_MissingFields(t *testing.T) {
	service := newTestService(t)

	_, err := service.RegisterUser(context.Background(), nil, "  ", "password", false)
	assert.ErrorIs(t, err, ErrMissingCredentials)
	_, err = service.RegisterUser(context.Background(), nil, "alice", "", false)
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestAuthenticate(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	registerTeacher(t, service)

	user, err := service.Authenticate(ctx, "alice", "password")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	// Plaintext is never stored
	assert.NotEqual(t, "password", user.PasswordHash)

	_, err = service.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown user yields the same error as a wrong password
	_, err = service.Authenticate(ctx, "mallory", "password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestStartConversation_StubEcho(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	teacher := registerTeacher(t, service)

	sketchBytes := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x01}
	conversation, err := service.StartConversation(ctx, teacher, "draw a cat", sketchBytes, "image/png")
	require.NoError(t, err)

	wantDataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(sketchBytes)
	assert.Equal(t, wantDataURL, conversation.InputImage)
	assert.Equal(t, wantDataURL, conversation.OutputImage)
	assert.Equal(t, "(Stub) Model response for prompt: draw a cat", conversation.ModelResponseText)
	assert.NotZero(t, conversation.ID)
	assert.NotEmpty(t, conversation.CreatedAt)
}

func TestStartConversation_Validation(t *testing.T) {
	service := newTestService(t)
	teacher := registerTeacher(t, service)
	ctx := context.Background()

	_, err := service.StartConversation(ctx, teacher, "   ", []byte{0x01}, "image/png")
	assert.ErrorIs(t, err, ErrMissingPrompt)

	_, err = service.StartConversation(ctx, teacher, "draw", nil, "image/png")
	assert.ErrorIs(t, err, ErrMissingSketch)
}

func TestContinueConversation_RoundTrip(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	teacher := registerTeacher(t, service)

	sketchBytes := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	first, err := service.StartConversation(ctx, teacher, "draw a cat", sketchBytes, "image/png")
	require.NoError(t, err)

	second, err := service.ContinueConversation(ctx, teacher, "make it bigger", first.OutputImage)
	require.NoError(t, err)

	// The prior output is stored verbatim as the new input
	assert.Equal(t, first.OutputImage, second.InputImage)

	// No re-encoding corruption across the chain
	decoded, mimeType, err := dataurl.Decode(second.OutputImage)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)
	assert.Equal(t, sketchBytes, decoded)
}

func TestContinueConversation_Validation(t *testing.T) {
	service := newTestService(t)
	teacher := registerTeacher(t, service)
	ctx := context.Background()

	_, err := service.ContinueConversation(ctx, teacher, "", "data:image/png;base64,AA==")
	assert.ErrorIs(t, err, ErrMissingPrompt)

	_, err = service.ContinueConversation(ctx, teacher, "prompt", "")
	assert.ErrorIs(t, err, ErrMissingPriorImage)

	malformed := []string{
		"image/png;base64,AA==",
		"data:image/png;base64",
		"data:image/png,AA==",
		"data:image/png;base64,!!bad!!",
	}
	for _, lastImage := range malformed {
		_, err = service.ContinueConversation(ctx, teacher, "prompt", lastImage)
		assert.ErrorIs(t, err, dataurl.ErrMalformedDataURL, "input %q", lastImage)
	}
}

func TestHistory_IsolatedPerUser(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	teacher := registerTeacher(t, service)
	student, err := service.RegisterUser(ctx, teacher, "bob", "password", false)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := service.StartConversation(ctx, student, fmt.Sprintf("prompt %d", i), []byte{byte(i + 1)}, "image/png")
		require.NoError(t, err)
	}
	_, err = service.StartConversation(ctx, teacher, "teacher prompt", []byte{0xFF}, "image/png")
	require.NoError(t, err)

	history, err := service.History(ctx, student)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, conversation := range history {
		assert.Equal(t, student.ID, conversation.UserID)
		assert.Equal(t, fmt.Sprintf("prompt %d", i), conversation.Prompt)
	}
}

func TestRosterAndStudentView(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	teacher := registerTeacher(t, service)
	student, err := service.RegisterUser(ctx, teacher, "bob", "password", false)
	require.NoError(t, err)

	_, err = service.StartConversation(ctx, student, "draw a cat", []byte{0x01}, "image/png")
	require.NoError(t, err)

	roster, err := service.Roster(ctx)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, "alice", roster[0].User.Username)
	assert.Equal(t, "bob", roster[1].User.Username)
	assert.EqualValues(t, 1, roster[1].ConversationCount)

	viewedUser, conversations, err := service.StudentView(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, student.ID, viewedUser.ID)
	require.Len(t, conversations, 1)
	assert.Equal(t, student.ID, conversations[0].UserID)

	_, _, err = service.StudentView(ctx, 9999)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestStartConversation_TrimsPrompt(t *testing.T) {
	service := newTestService(t)
	teacher := registerTeacher(t, service)

	conversation, err := service.StartConversation(context.Background(), teacher, "  draw a cat  ", []byte{0x01}, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "draw a cat", conversation.Prompt)
	assert.True(t, strings.HasSuffix(conversation.ModelResponseText, "draw a cat"))
}
