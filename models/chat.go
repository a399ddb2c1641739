// Package models — Chat domain modeli.
//
// Chat, bir aramanın "evrenini" belirler: aramaya kimlerin davet edileceği
// ve reject threshold'u chat üyeliğinden türetilir. Üyelik yönetimi (ekleme,
// çıkarma, yetki) bu servisin dışındadır — burada sadece read-only lookup
// için modellenir.
package models

import "time"

// ChatKind, sohbetin türü. 1:1, grup veya kanal thread'i olabilir.
type ChatKind string

const (
	ChatKindDirect  ChatKind = "direct"
	ChatKindGroup   ChatKind = "group"
	ChatKindChannel ChatKind = "channel"
)

// Chat, bir sohbeti temsil eder.
type Chat struct {
	ID        string    `json:"id"`
	Kind      ChatKind  `json:"kind"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMember, bir sohbetin üyesi.
type ChatMember struct {
	ChatID   string    `json:"chat_id"`
	UserID   string    `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}
