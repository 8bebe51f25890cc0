package database

import (
	"context"
	"database/sql"
)

type DatabaseService interface {
	CreateDatabase() (*sql.DB, error)
	DoesDatabaseExist() bool
	Close() error

	// CreateUser inserts a new user row. Username uniqueness is enforced by
	// the store's UNIQUE constraint, not by a prior read, so concurrent
	// registrations of the same name yield exactly one success and one
	// ErrDuplicateUsername.
	CreateUser(ctx context.Context, username, passwordHash string, isTeacher bool) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	CountUsers(ctx context.Context) (int64, error)

	CreateConversation(ctx context.Context, conversation *Conversation) (*Conversation, error)
	// GetConversationsByUser returns the user's conversations ascending by
	// creation time.
	GetConversationsByUser(ctx context.Context, userID int64) ([]*Conversation, error)
	// GetUserSummaries returns all users with their conversation counts,
	// teachers first, then alphabetical by username.
	GetUserSummaries(ctx context.Context) ([]*UserSummary, error)
}
