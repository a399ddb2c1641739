// Package main — WebSocket Hub callback wire-up.
//
// registerHubCallbacks, Hub'ın coordinator ve presence callback'lerini ayarlar.
//
// Bu callback'ler neden burada (main package'da)?
// Hub ws paketinde yaşıyor, ama iş mantığı service katmanında.
// Hub'ın service'lere bağımlı olmasını istemiyoruz (Dependency Inversion).
// main package wire-up noktasıdır — tüm katmanları birbirine bağlar.
//
// Presence callback'leri Hub.Run() goroutine'inden ayrı goroutine'de çalışır
// (addClient/removeClient içinde `go callback()` ile çağrılır),
// böylece Hub'ın mutex Lock'u ile BroadcastToAll'ın RLock'u çakışmaz.
package main

import (
	"github.com/ecemk/konvo/ws"
)

// registerHubCallbacks, Hub'ı service katmanına bağlar.
func registerHubCallbacks(hub *ws.Hub, svcs *Services) {
	// Call coordinator: client'lar call event'lerini ReadPump'tan senkron
	// olarak bu servise teslim eder.
	hub.SetCallCoordinator(svcs.Call)

	hub.SetPresenceCallbacks(
		func(userID string) {
			svcs.Presence.HandleConnect(userID)
		},
		func(userID string) {
			svcs.Presence.HandleDisconnect(userID)

			// Kullanıcı tamamen koptu — devam eden aramalarından çıkarılır,
			// karşı taraflar call:ended ile haberdar edilir.
			svcs.Call.HandleDisconnect(userID)
		},
	)
}
