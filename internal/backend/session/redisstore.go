package session

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/labstack/echo/v4"
)

const redisKeyPrefix = "session:"

// RedisStore keeps sessions server-side keyed by an opaque cookie id, so a
// logout invalidates the session immediately for every copy of the cookie.
type RedisStore struct {
	client   *redis.Client
	validity time.Duration
}

func NewRedisStore(address string, validity time.Duration) *RedisStore {
	client := redis.NewClient(&redis.Options{Addr: address})
	return &RedisStore{client: client, validity: validity}
}

func (s *RedisStore) Issue(ctx echo.Context, userID int64) error {
	sessionID := uuid.NewString()
	err := s.client.Set(ctx.Request().Context(), redisKeyPrefix+sessionID,
		strconv.FormatInt(userID, 10), s.validity).Err()
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	ctx.SetCookie(newSessionCookie(sessionID, int(s.validity.Seconds())))
	return nil
}

func (s *RedisStore) UserID(ctx echo.Context) (int64, error) {
	sessionID, err := requestCookie(ctx)
	if err != nil {
		return 0, err
	}
	value, err := s.client.Get(ctx.Request().Context(), redisKeyPrefix+sessionID).Result()
	if err != nil {
		return 0, ErrNoSession
	}
	userID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, ErrNoSession
	}
	return userID, nil
}

func (s *RedisStore) Clear(ctx echo.Context) error {
	if sessionID, err := requestCookie(ctx); err == nil {
		if err := s.client.Del(ctx.Request().Context(), redisKeyPrefix+sessionID).Err(); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
	}
	ctx.SetCookie(newSessionCookie("", -1))
	return nil
}
