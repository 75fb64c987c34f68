package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Tokens issues and verifies per-connection player tokens. A token proves
// nothing beyond "this connection was issued player X in room Y"; it exists
// so a reconnecting client can reclaim its seat within the grace window.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &Tokens{secret: []byte(secret), ttl: ttl}
}

// GeneratePlayerToken signs a player/room claim pair.
func (t *Tokens) GeneratePlayerToken(playerID, roomID string) (string, error) {
	now := time.Now().Unix()
	claims := jwt.MapClaims{
		"player_id": playerID,
		"room_id":   roomID,
		"exp":       time.Now().Add(t.ttl).Unix(),
		"iat":       now,
		"nbf":       now,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// ParsePlayerToken verifies a token and returns its player and room ids.
func (t *Tokens) ParsePlayerToken(tokenString string) (playerID, roomID string, err error) {
	token, err := jwt.Parse(tokenString, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	})

	if err != nil || !token.Valid {
		return "", "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", errors.New("invalid claims")
	}

	now := time.Now().Unix()
	if exp, ok := claims["exp"].(float64); ok && int64(exp) < now {
		return "", "", errors.New("token expired")
	}
	if nbf, ok := claims["nbf"].(float64); ok && int64(nbf) > now {
		return "", "", errors.New("token not valid yet")
	}

	playerID, ok = claims["player_id"].(string)
	if !ok || playerID == "" {
		return "", "", errors.New("player_id not found")
	}
	roomID, ok = claims["room_id"].(string)
	if !ok || roomID == "" {
		return "", "", errors.New("room_id not found")
	}

	return playerID, roomID, nil
}
