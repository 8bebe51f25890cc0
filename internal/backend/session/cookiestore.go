package session

import (
	"time"

	"github.com/labstack/echo/v4"
)

// CookieStore keeps the whole session in a signed token inside the cookie;
// nothing is stored server-side. Logout works by expiring the cookie.
type CookieStore struct {
	secretKey []byte
	validity  time.Duration
}

func NewCookieStore(secretKey []byte, validity time.Duration) *CookieStore {
	return &CookieStore{secretKey: secretKey, validity: validity}
}

func (s *CookieStore) Issue(ctx echo.Context, userID int64) error {
	token, err := GenerateToken(userID, s.secretKey, s.validity)
	if err != nil {
		return err
	}
	ctx.SetCookie(newSessionCookie(token, int(s.validity.Seconds())))
	return nil
}

func (s *CookieStore) UserID(ctx echo.Context) (int64, error) {
	token, err := requestCookie(ctx)
	if err != nil {
		return 0, err
	}
	userID, err := GetUserIDFromToken(token, s.secretKey)
	if err != nil {
		return 0, ErrNoSession
	}
	return userID, nil
}

func (s *CookieStore) Clear(ctx echo.Context) error {
	ctx.SetCookie(newSessionCookie("", -1))
	return nil
}
