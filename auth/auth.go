// Package auth issues and verifies the signed tokens that carry a player
// identity to the realtime gateway.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/dgrijalva/jwt-go"
)

// DefaultTTL is how long an issued token stays valid.
const DefaultTTL = 72 * time.Hour

var (
	ErrNoSecret      = errors.New("token secret is not configured")
	ErrInvalidToken  = errors.New("invalid token")
	ErrMissingPlayer = errors.New("token has no player")
)

// Claims is the token payload.
type Claims struct {
	Player string `json:"player"`
	jwt.StandardClaims
}

// Signer issues and parses HS256 tokens with one shared secret.
type Signer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewSigner returns a signer for secret. A ttl of zero means DefaultTTL.
func NewSigner(secret string, ttl time.Duration) (*Signer, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Signer{key: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue returns a token naming player and its expiry.
func (s *Signer) Issue(player string) (string, time.Time, error) {
	if player == "" {
		return "", time.Time{}, ErrMissingPlayer
	}
	issued := s.now()
	expires := issued.Add(s.ttl)

	claims := &Claims{
		Player: player,
		StandardClaims: jwt.StandardClaims{
			Subject:   player,
			IssuedAt:  issued.Unix(),
			ExpiresAt: expires.Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expires, nil
}

// Parse verifies tokenString and returns the player it names.
func (s *Signer) Parse(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.key, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Player == "" {
		return "", ErrMissingPlayer
	}
	return claims.Player, nil
}

// TokenFromRequest reads a token from the token query parameter or a
// bearer Authorization header. Browsers cannot set headers on a websocket
// upgrade, hence the query parameter.
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
