// Package handlers — CallHandler: arama geçmişi HTTP endpoint'leri.
//
// Thin handler prensibi: Parse → Service → Response.
// Signaling'in kendisi WS üzerinden akar; REST tarafı sadece read-only
// geçmiş sorguları sunar.
//
// Route'lar (init_routes.go'da bağlanır):
//
//	GET /api/calls                 → ListForUser (kullanıcının arama geçmişi)
//	GET /api/chats/{chatId}/calls  → ListForChat (sohbetin arama geçmişi)
package handlers

import (
	"net/http"
	"strconv"

	"github.com/ecemk/konvo/models"
	"github.com/ecemk/konvo/pkg"
	"github.com/ecemk/konvo/services"
)

// CallHandler, arama geçmişi endpoint'lerini yöneten struct.
type CallHandler struct {
	callService services.CallService
}

// NewCallHandler, constructor.
func NewCallHandler(callService services.CallService) *CallHandler {
	return &CallHandler{callService: callService}
}

// ListForUser godoc
// GET /api/calls?limit=50
// Kullanıcının katıldığı aramaları yeniden eskiye döner.
func (h *CallHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	calls, err := h.callService.ListForUser(r.Context(), user.ID, parseLimit(r))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, calls)
}

// ListForChat godoc
// GET /api/chats/{chatId}/calls?limit=50
// Sohbetteki aramaları döner. Sadece sohbet üyeleri erişebilir —
// üyelik kontrolü service katmanında yapılır.
func (h *CallHandler) ListForChat(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	chatID := r.PathValue("chatId")
	if chatID == "" {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "chat id required")
		return
	}

	calls, err := h.callService.ListForChat(r.Context(), chatID, user.ID, parseLimit(r))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, calls)
}

// parseLimit, ?limit= query parameter'ını okur (yoksa 0 → service default'u).
func parseLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return limit
}
