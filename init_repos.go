// Package main — Repository katmanı başlatma.
//
// initRepositories, tüm repository implementasyonlarını oluşturur.
// Her repository aynı *sql.DB bağlantısını alır ve interface döner.
package main

import (
	"database/sql"

	"github.com/ecemk/konvo/repository"
)

// Repositories, tüm repository instance'larını tutan container struct.
// Tek struct kullanmak fonksiyon imzalarını temiz tutar ve yeni repository
// eklendiğinde sadece struct + initRepositories güncellenir.
type Repositories struct {
	User repository.UserRepository
	Chat repository.ChatRepository
	Call repository.CallRepository
}

// initRepositories, veritabanı bağlantısından tüm repository'leri oluşturur.
// Go'nun sql.DB'si thread-safe connection pool'dur, paylaşılması güvenlidir.
func initRepositories(conn *sql.DB) *Repositories {
	return &Repositories{
		User: repository.NewSQLiteUserRepository(conn),
		Chat: repository.NewSQLiteChatRepository(conn),
		Call: repository.NewSQLiteCallRepository(conn),
	}
}
