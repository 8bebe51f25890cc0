package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jo-hoe/sketchclass/internal/backend/database/migrations"
	"github.com/pressly/goose/v3"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type SQLiteDatabase struct {
	db               *sql.DB
	connectionString string
}

func NewSQLiteDatabase(connectionString string) (DatabaseService, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}
	// SQLite supports a single writer; a single pooled connection also keeps
	// in-memory databases on one connection instead of one per pool slot.
	db.SetMaxOpenConns(1)

	return &SQLiteDatabase{
		db:               db,
		connectionString: connectionString,
	}, nil
}

// CreateDatabase applies the embedded goose migrations (idempotent).
func (s *SQLiteDatabase) CreateDatabase() (*sql.DB, error) {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return nil, err
	}
	if err := goose.Up(s.db, "."); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s.db, nil
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDatabase) DoesDatabaseExist() bool {
	// In SQLite, the database file is created when you connect to it.
	// So we can assume it exists if we can successfully ping the database.
	err := s.db.Ping()
	return err == nil
}

func (s *SQLiteDatabase) CreateUser(ctx context.Context, username, passwordHash string, isTeacher bool) (*User, error) {
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, is_teacher) VALUES (?, ?, ?)",
		username, passwordHash, boolToInt(isTeacher))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateUsername
		}
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		IsTeacher:    isTeacher,
	}, nil
}

func (s *SQLiteDatabase) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, username, password_hash, is_teacher FROM users WHERE username = ?", username)
	return scanUser(row)
}

func (s *SQLiteDatabase) GetUserByID(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, username, password_hash, is_teacher FROM users WHERE id = ?", id)
	return scanUser(row)
}

func (s *SQLiteDatabase) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *SQLiteDatabase) CreateConversation(ctx context.Context, conversation *Conversation) (*Conversation, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations
		 (user_id, prompt, input_image, output_image, model_response_text, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		conversation.UserID,
		conversation.Prompt,
		conversation.InputImage,
		conversation.OutputImage,
		conversation.ModelResponseText,
		conversation.CreatedAt)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	conversation.ID = id
	return conversation, nil
}

func (s *SQLiteDatabase) GetConversationsByUser(ctx context.Context, userID int64) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, prompt, input_image, output_image, model_response_text, created_at
		 FROM conversations
		 WHERE user_id = ?
		 ORDER BY datetime(created_at) ASC, id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close() // Explicitly ignore error as we're already returning an error from the function
	}()

	var conversations []*Conversation
	for rows.Next() {
		var conversation Conversation
		if err := rows.Scan(
			&conversation.ID,
			&conversation.UserID,
			&conversation.Prompt,
			&conversation.InputImage,
			&conversation.OutputImage,
			&conversation.ModelResponseText,
			&conversation.CreatedAt); err != nil {
			return nil, err
		}
		conversations = append(conversations, &conversation)
	}
	return conversations, rows.Err()
}

func (s *SQLiteDatabase) GetUserSummaries(ctx context.Context) ([]*UserSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id, u.username, u.is_teacher, COUNT(c.id) AS convo_count
		 FROM users u
		 LEFT JOIN conversations c ON u.id = c.user_id
		 GROUP BY u.id, u.username, u.is_teacher
		 ORDER BY u.is_teacher DESC, u.username ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var summaries []*UserSummary
	for rows.Next() {
		var summary UserSummary
		var isTeacher int
		if err := rows.Scan(&summary.User.ID, &summary.User.Username, &isTeacher, &summary.ConversationCount); err != nil {
			return nil, err
		}
		summary.User.IsTeacher = isTeacher != 0
		summaries = append(summaries, &summary)
	}
	return summaries, rows.Err()
}

func scanUser(row *sql.Row) (*User, error) {
	var user User
	var isTeacher int
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &isTeacher); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	user.IsTeacher = isTeacher != 0
	return &user, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
