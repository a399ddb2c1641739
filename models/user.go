// Package models, uygulamanın domain modellerini tanımlar.
//
// Kullanıcı ve oturum yönetimi bu servisin DIŞINDA yaşar (identity servisi);
// buradaki User modeli signaling ve bildirim katmanının ihtiyaç duyduğu
// read-only görünümdür.
package models

import "time"

// UserStatus, kullanıcının çevrimiçi durumunu temsil eder.
type UserStatus string

const (
	UserStatusOnline  UserStatus = "online"
	UserStatusOffline UserStatus = "offline"
)

// User, bir kullanıcıyı temsil eder.
type User struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	DisplayName *string    `json:"display_name"` // nullable
	AvatarURL   *string    `json:"avatar_url"`
	Email       string     `json:"-"` // bildirim email'leri için — API response'a DAHİL ETME
	Status      UserStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}
