// Package auth validates the identity tokens issued by the account
// service. Login/registration flows live outside this subsystem; only
// token verification crosses the boundary.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"rentchat/errors"
)

// CustomClaims defines the data stored inside the JWT.
type CustomClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"` // tenant or owner
	jwt.RegisteredClaims
}

type TokenManager struct {
	key []byte
	ttl time.Duration
}

func NewTokenManager(secret string, ttl time.Duration) TokenManager {
	return TokenManager{key: []byte(secret), ttl: ttl}
}

// GenerateToken creates a signed JWT for a user. Used by tests and the
// demo client; production tokens come from the account service sharing
// the same secret.
func (m TokenManager) GenerateToken(userID, role string) (string, error) {
	claims := &CustomClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "rentchat",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.key)
}

// ValidateToken parses and validates signature and expiration.
func (m TokenManager) ValidateToken(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return m.key, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*CustomClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}

// ValidateIdentity checks that the token belongs to the declared user.
func (m TokenManager) ValidateIdentity(tokenString, userID string) (*CustomClaims, error) {
	claims, err := m.ValidateToken(tokenString)
	if err != nil {
		return nil, errors.ErrInvalidToken
	}
	if claims.UserID != userID {
		return nil, errors.ErrInvalidIdentity
	}
	return claims, nil
}
