package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles allowed to trigger notification runs.
const (
	RoleAdmin     = "admin"
	RoleScheduler = "scheduler"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims identifies the caller of a protected endpoint.
type Claims struct {
	Name string `json:"name,omitempty"`
	Role string `json:"role"` // Role is checked by the RBAC middleware
	jwt.RegisteredClaims
}

// GenerateJWT signs an HS256 token for subject with role, valid for duration.
func GenerateJWT(key []byte, subject, name, role string, duration time.Duration) (string, error) {
	if len(key) == 0 {
		return "", errors.New("jwt key is empty")
	}
	now := time.Now()
	claims := &Claims{
		Name: name,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// ParseJWT validates signature and expiry and returns the claims.
func ParseJWT(key []byte, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return key, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if !token.Valid || claims.Role == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
