// Package services — AuthService: JWT access token doğrulama.
//
// Token'ları bu servis BASMAZ — kullanıcı/oturum yönetimi ayrı bir identity
// servisinin sorumluluğudur. Buradaki tek iş, paylaşılan HMAC secret ile
// gelen token'ın imzasını ve süresini doğrulayıp claims'i çıkarmaktır.
package services

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ecemk/konvo/models"
	"github.com/ecemk/konvo/pkg"
)

// AuthService, token doğrulama interface'i.
// middleware.Auth ve ws.Handler bu interface'in alt kümelerini kullanır.
type AuthService interface {
	// ValidateAccessToken, JWT access token'ı doğrular ve claims'i döner.
	ValidateAccessToken(tokenString string) (*models.TokenClaims, error)
}

// authService, AuthService interface'inin implementasyonu.
type authService struct {
	jwtSecret []byte
}

// NewAuthService, constructor.
func NewAuthService(jwtSecret string) AuthService {
	return &authService{jwtSecret: []byte(jwtSecret)}
}

// ValidateAccessToken, JWT access token'ı doğrular ve claims'i döner.
func (s *authService) ValidateAccessToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("%w: invalid token", pkg.ErrUnauthorized)
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", pkg.ErrUnauthorized)
	}

	return claims, nil
}
