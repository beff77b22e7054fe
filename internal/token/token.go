package token

import (
	"errors"
	"fmt"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"quickcommerce/internal/model"
	"time"
)

var (
	ErrRefreshToken = errors.New("refresh token not valid")
	ErrAccessToken  = errors.New("access token not valid")
	ErrMalformed    = errors.New("token is malformed")
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

type Generate interface {
	GenerateAccessToken(user model.User) (string, error)
	GenerateRefreshToken(user model.User) (string, error)
	VerifyRefreshToken(tokenString string) (jwt.MapClaims, error)
	VerifyAccessToken(tokenString string) (jwt.MapClaims, error)
}

// JWTManager mints and checks the HS256 tokens handed out by the mock API.
type JWTManager struct {
	secret          []byte
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	now             func() time.Time
}

func NewJWTManager(secret string, accessTTL, refreshTTL time.Duration) *JWTManager {
	return &JWTManager{
		secret:          []byte(secret),
		accessTokenTTL:  accessTTL,
		refreshTokenTTL: refreshTTL,
		now:             time.Now,
	}
}

func (m *JWTManager) GenerateAccessToken(u model.User) (string, error) {
	return m.sign(u, typeAccess, m.accessTokenTTL)
}

func (m *JWTManager) GenerateRefreshToken(u model.User) (string, error) {
	return m.sign(u, typeRefresh, m.refreshTokenTTL)
}

func (m *JWTManager) sign(u model.User, typ string, ttl time.Duration) (string, error) {
	now := m.now()
	claims := jwt.MapClaims{
		"sub":   string(u.ID),
		"email": u.Email,
		"name":  u.Name,
		"typ":   typ,
		"jti":   uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	if u.Role != "" {
		claims["role"] = u.Role
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *JWTManager) VerifyRefreshToken(tokenString string) (jwt.MapClaims, error) {
	claims, err := m.verify(tokenString, typeRefresh)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRefreshToken, err)
	}
	return claims, nil
}

func (m *JWTManager) VerifyAccessToken(tokenString string) (jwt.MapClaims, error) {
	claims, err := m.verify(tokenString, typeAccess)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAccessToken, err)
	}
	return claims, nil
}

func (m *JWTManager) verify(tokenString, typ string) (jwt.MapClaims, error) {
	if tokenString == "" {
		return nil, errors.New("token is empty")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if got, _ := claims["typ"].(string); got != typ {
		return nil, fmt.Errorf("unexpected token type %q", got)
	}
	return claims, nil
}

// UserFromClaims rebuilds the user a token was minted for.
func UserFromClaims(claims jwt.MapClaims) model.User {
	str := func(key string) string {
		s, _ := claims[key].(string)
		return s
	}
	return model.User{
		ID:    model.UserID(str("sub")),
		Email: str("email"),
		Name:  str("name"),
		Role:  str("role"),
	}
}

// Info is what a client can learn from a token without the signing key.
type Info struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

func (i Info) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// Inspect reads the claims of tokenString without verifying the signature.
// Only use the result for display.
func Inspect(tokenString string) (*Info, error) {
	const op = "token.Inspect"

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrMalformed, err)
	}

	info := &Info{}
	info.Subject, _ = claims.GetSubject()
	info.Email, _ = claims["email"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		info.IssuedAt = iat.Time
	}
	return info, nil
}
