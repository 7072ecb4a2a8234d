package service

import (
	"time"

	"findash/pkg/jwt"
)

type JWTManager struct {
	SecretKey string
	TTL       time.Duration
}

func NewJWTManager(secret string) *JWTManager {
	return &JWTManager{
		SecretKey: secret,
		TTL:       30 * 24 * time.Hour, // 30 days
	}
}

// Generate signs a token whose subject is the guest username.
func (j *JWTManager) Generate(username string) (string, error) {
	return jwt.GenerateToken(j.SecretKey, username, j.TTL)
}
