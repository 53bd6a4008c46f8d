package auth

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims represents the claims in a control-API token.
type JWTClaims struct {
	Client string `json:"client"`
	jwt.RegisteredClaims
}

// SecretFromEnv loads the signing secret for control-API tokens.
func SecretFromEnv() ([]byte, error) {
	secret := os.Getenv("CONTROL_API_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("CONTROL_API_SECRET environment variable is required")
	}
	return []byte(secret), nil
}

// GenerateClientToken generates a bearer token for a control-API client.
func GenerateClientToken(secret []byte, client string) (string, error) {
	claims := &JWTClaims{
		Client: client,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(7 * 24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken validates a bearer token and returns the claims.
func ValidateToken(secret []byte, tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrInvalidKey
}
