package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"harbor-server/internal/config"
	"harbor-server/internal/db"
	"harbor-server/internal/user"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrSessionExpired = errors.New("invalid or expired session")
)

// Session is the server-side record backing a bearer token. A token
// is only accepted while its session row exists and has not expired.
type Session struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"index"`
	Token     string `gorm:"uniqueIndex"`
	ExpiresAt time.Time
	LastUsed  time.Time
	CreatedAt time.Time
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

func signToken(userID string, expiresAt time.Time) (string, error) {
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.Conf.JWTSecret))
}

func parseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(config.Conf.JWTSecret), nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// CreateSession issues a signed token and persists the session row it
// is validated against.
func CreateSession(userID string) (*Session, error) {
	expiresAt := time.Now().Add(config.SessionTTL())

	token, err := signToken(userID, expiresAt)
	if err != nil {
		return nil, err
	}

	session := &Session{
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
		LastUsed:  time.Now(),
	}
	if err := db.DB.Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

// ValidateToken checks the signature, loads the backing session,
// rejects expired sessions, refreshes last_used and returns the
// session's user.
func ValidateToken(tokenString string) (*user.User, error) {
	if _, err := parseToken(tokenString); err != nil {
		return nil, err
	}

	var session Session
	if err := db.DB.First(&session, "token = ?", tokenString).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}

	if time.Now().After(session.ExpiresAt) {
		return nil, ErrSessionExpired
	}

	if err := db.DB.Model(&session).Update("last_used", time.Now()).Error; err != nil {
		return nil, err
	}

	u, err := user.GetByID(session.UserID)
	if err != nil {
		return nil, ErrSessionExpired
	}
	return u, nil
}

// DeleteSession revokes one token.
func DeleteSession(tokenString string) error {
	return db.DB.Where("token = ?", tokenString).Delete(&Session{}).Error
}
