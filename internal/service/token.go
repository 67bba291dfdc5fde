package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Роль и аудитория токена потока событий.
const (
	StreamRole     = "authority"
	StreamAudience = "safetrip-stream"
)

// StreamToken короткоживущий токен для подключения к /ws и /events.
type StreamToken struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// StreamClaims клеймы токена потока.
type StreamClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager отвечает за выпуск и проверку JWT.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager создаёт менеджер токенов.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue выпускает токен потока для субъекта (имени сессии властей).
func (m *TokenManager) Issue(subject string) (*StreamToken, error) {
	now := m.now()
	claims := StreamClaims{
		Role: StreamRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			Audience:  jwt.ClaimStrings{StreamAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("token: не удалось подписать токен: %w", err)
	}
	return &StreamToken{Token: signed, ExpiresIn: int64(m.ttl.Seconds())}, nil
}

// Parse проверяет подпись, срок и аудиторию токена потока.
func (m *TokenManager) Parse(token string) (*StreamClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &StreamClaims{}, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(StreamAudience),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*StreamClaims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Role != StreamRole {
		return nil, errors.New("token: неверная роль")
	}
	return claims, nil
}
