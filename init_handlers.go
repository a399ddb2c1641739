// Package main — Handler katmanı başlatma.
package main

import (
	"github.com/ecemk/konvo/handlers"
	"github.com/ecemk/konvo/ws"
)

// Handlers, tüm HTTP handler instance'larını tutan container struct.
type Handlers struct {
	Call *handlers.CallHandler
	WS   *ws.Handler
}

// initHandlers, servislerden handler'ları oluşturur.
func initHandlers(svcs *Services, hub *ws.Hub) *Handlers {
	return &Handlers{
		Call: handlers.NewCallHandler(svcs.Call),
		WS:   ws.NewHandler(hub, svcs.Auth),
	}
}
