package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims, JWT access token'ın payload'ı.
//
// Token'lar identity servisi tarafından basılır; bu servis sadece doğrular.
// models paketinde tanımlanır çünkü birden fazla katman (services, ws,
// middleware) kullanır — circular dependency'yi önler.
type TokenClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}
