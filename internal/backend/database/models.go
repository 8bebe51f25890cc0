package database

import "errors"

var (
	// ErrDuplicateUsername is returned when the UNIQUE constraint on
	// users.username rejects an insert.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
)

type User struct {
	ID           int64  `db:"id"`
	Username     string `db:"username"`
	PasswordHash string `db:"password_hash"`
	IsTeacher    bool   `db:"is_teacher"`
}

// Conversation is one prompt/image/response turn. Rows are append-only and
// self-contained; a follow-up turn reuses the previous output image as its
// input but carries no reference to the previous row.
type Conversation struct {
	ID                int64  `db:"id"`
	UserID            int64  `db:"user_id"`
	Prompt            string `db:"prompt"`
	InputImage        string `db:"input_image"`  // data URL
	OutputImage       string `db:"output_image"` // data URL
	ModelResponseText string `db:"model_response_text"`
	CreatedAt         string `db:"created_at"` // RFC 3339, UTC
}

// UserSummary is one roster row for the teacher panel.
type UserSummary struct {
	User              User
	ConversationCount int64
}
