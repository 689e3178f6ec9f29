package util

import (
	"errors"
	"fmt"

	"github.com/dgrijalva/jwt-go"
)

// Claims is the JWT claims structure carried by authenticated requests.
type Claims struct {
	Email string `json:"email"`
	jwt.StandardClaims
}

// ValidateJWT verifies an HS256 bearer token against the shared secret and
// returns its claims.
func ValidateJWT(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to validate token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
