// Package main — HTTP route registration.
//
// initRoutes, tüm API endpoint'lerini mux'a bağlar.
// Signaling WS üzerinden akar; REST tarafı read-only arama geçmişi sunar.
package main

import (
	"fmt"
	"net/http"

	"github.com/ecemk/konvo/middleware"
	"github.com/ecemk/konvo/services"
)

// initRoutes, middleware chain'i kurar ve endpoint'leri mux'a bağlar.
func initRoutes(
	mux *http.ServeMux,
	h *Handlers,
	authService services.AuthService,
	repos *Repositories,
) {
	authMw := middleware.NewAuthMiddleware(authService, repos.User)

	auth := func(handler http.HandlerFunc) http.Handler {
		return authMw.Require(http.HandlerFunc(handler))
	}

	// Health check — public
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","service":"konvo"}`)
	})

	// Call history
	mux.Handle("GET /api/calls", auth(h.Call.ListForUser))
	mux.Handle("GET /api/chats/{chatId}/calls", auth(h.Call.ListForChat))

	// WebSocket — token query parameter ile authenticate edilir.
	//
	// Neden auth middleware kullanmıyoruz?
	// WebSocket upgrade sırasında tarayıcılar custom HTTP header gönderemez.
	// JWT token URL query parameter olarak gönderilir:
	//   ws://server/ws?token=JWT_TOKEN
	// WS handler kendi içinde token doğrulaması yapar.
	mux.HandleFunc("GET /ws", h.WS.HandleConnection)
}
