package server

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// formTokenTTL bounds how long a handed-out form link stays valid.
const formTokenTTL = 30 * time.Minute

// signFormToken issues a short-lived HS256 token binding a form link to one
// owner, so a shared link cannot submit tasks as someone else.
func signFormToken(secret, userID string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(formTokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign form token: %w", err)
	}
	return token, nil
}

// verifyFormToken validates a form token and returns the owner it was issued
// for.
func verifyFormToken(secret, token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return "", fmt.Errorf("verify form token: %w", err)
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("form token missing subject")
	}
	return claims.Subject, nil
}
