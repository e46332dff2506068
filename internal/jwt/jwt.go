package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KretovDmitry/ordermart/internal/models/client"
	"github.com/golang-jwt/jwt/v4"
)

// ErrEmptySecret is returned when a token would be signed or checked
// with an empty key.
var ErrEmptySecret = errors.New("empty signing key")

// Claims carried by a session token.
type Claims struct {
	jwt.RegisteredClaims
	ClientID client.ID `json:"client_id"`
}

// BuildString creates a JWT string for the given client ID and token expiration time.
func BuildString(clientID client.ID, secret string, tokenExp time.Duration) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}

	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenExp)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		ClientID: clientID,
	})

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("Bearer %s", tokenString), nil
}

// GetClientID extracts the client ID from a JWT token.
func GetClientID(tokenString, secret string) (client.ID, error) {
	if secret == "" {
		return 0, ErrEmptySecret
	}

	claims := new(Claims)

	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			// Verify that the token method is HS256
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf(
					"unexpected signing method: %v", token.Header["alg"],
				)
			}

			return []byte(secret), nil
		})
	if err != nil {
		return 0, fmt.Errorf("error parsing token: %w", err)
	}

	if !token.Valid {
		return 0, errors.New("invalid token")
	}

	return claims.ClientID, nil
}
