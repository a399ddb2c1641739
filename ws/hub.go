package ws

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"

	"github.com/ecemk/konvo/pkg/ratelimit"
)

// EventPublisher, service katmanının WebSocket event'leri broadcast etmek için
// kullandığı interface.
//
// Dependency Inversion: Service'ler Hub'ın concrete struct'ına değil,
// bu interface'e bağımlıdır. Böylece:
// 1. Service test edilirken fake EventPublisher kullanılabilir
// 2. Hub implementasyonu değişse bile service kodu etkilenmez
type EventPublisher interface {
	BroadcastToAll(event Event)
	BroadcastToUser(userID string, event Event)
	GetOnlineUserIDs() []string
	IsUserOnline(userID string) bool
}

// Hub, tüm WebSocket bağlantılarını yöneten merkezi yapıdır (Observer pattern).
//
// Hub.Run() goroutine'i register/unregister channel'larından `select` ile okur:
// - register channel'dan yeni client gelirse → clients map'e ekle
// - unregister channel'dan client gelirse → map'ten çıkar
type Hub struct {
	// clients: userID → Client set (bir kullanıcının birden fazla tab'ı olabilir).
	// Go'da set yoktur, map[*Client]bool kullanılır — bool değeri her zaman true.
	clients map[string]map[*Client]bool

	// mu: clients map'ini koruyan read-write mutex.
	// Online listesi gibi okuma ağırlıklı erişimlerde RLock yeterlidir.
	mu sync.RWMutex

	// register/unregister: Client giriş/çıkış sinyalleri.
	register   chan *Client
	unregister chan *Client

	// seq: Her outbound event'e verilen artan sayaç.
	seq atomic.Int64

	// coordinator: call event'lerini işleyen service (init_callbacks.go'da
	// SetCallCoordinator ile bağlanır). Client handler'ları senkron çağırır —
	// aynı call'a ait event'ler geliş sırasıyla mutex kuyruğuna girer.
	coordinator CallCoordinator

	// onUserOnline / onUserOffline: Presence callback'leri.
	// onUserOnline kullanıcının İLK bağlantısında, onUserOffline SON
	// bağlantısı koptuğunda tetiklenir (çoklu tab guard'ı).
	onUserOnline  func(userID string)
	onUserOffline func(userID string)

	// limiter: kullanıcı bazlı signaling flood koruması. nil ise limit yok.
	limiter *ratelimit.SignalRateLimiter
}

// NewHub, yeni bir Hub oluşturur.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// SetCallCoordinator, call event'lerini işleyecek service'i bağlar.
// Circular dependency önleme: ws → services import edemez, bu yüzden
// coordinator main.go'daki wire-up sırasında enjekte edilir.
func (h *Hub) SetCallCoordinator(c CallCoordinator) {
	h.coordinator = c
}

// SetPresenceCallbacks, kullanıcı online/offline geçişlerinde çağrılacak
// callback'leri bağlar (init_callbacks.go).
func (h *Hub) SetPresenceCallbacks(onOnline, onOffline func(userID string)) {
	h.onUserOnline = onOnline
	h.onUserOffline = onOffline
}

// SetSignalLimiter, call event'leri için flood korumasını bağlar.
// Limiter bağlanmazsa event'ler limitsiz işlenir.
func (h *Hub) SetSignalLimiter(l *ratelimit.SignalRateLimiter) {
	h.limiter = l
}

// Run, Hub'ın ana event loop'udur. main.go'da `go hub.Run()` ile başlatılır.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// addClient, yeni bir client'ı Hub'a ekler.
// Kullanıcının ilk bağlantısıysa presence callback'i tetiklenir.
func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	firstConnection := false
	if _, ok := h.clients[client.userID]; !ok {
		h.clients[client.userID] = make(map[*Client]bool)
		firstConnection = true
	}
	h.clients[client.userID][client] = true
	total := len(h.clients[client.userID])
	h.mu.Unlock()

	log.Printf("[ws] client connected: user=%s (total connections for user: %d)",
		client.userID, total)

	// Callback go func() ile çağrılır — Hub mutex'i ile deadlock önlenir.
	if firstConnection && h.onUserOnline != nil {
		go h.onUserOnline(client.userID)
	}
}

// removeClient, bir client'ı Hub'dan çıkarır ve send channel'ını kapatır.
// Kullanıcının son bağlantısıysa presence callback'i tetiklenir.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	fullyDisconnected := false
	if clients, ok := h.clients[client.userID]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			client.closeSend()

			if len(clients) == 0 {
				delete(h.clients, client.userID)
				fullyDisconnected = true
			}
		}
	}
	h.mu.Unlock()

	if fullyDisconnected {
		log.Printf("[ws] user fully disconnected: %s", client.userID)
		if h.limiter != nil {
			h.limiter.Reset(client.userID)
		}
		if h.onUserOffline != nil {
			go h.onUserOffline(client.userID)
		}
	}
}

// BroadcastToAll, tüm bağlı client'lara event gönderir.
func (h *Hub) BroadcastToAll(event Event) {
	event.Seq = h.seq.Add(1)

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal broadcast event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, clients := range h.clients {
		for client := range clients {
			select {
			case client.send <- data:
			default:
				// Buffer dolu — bu client yavaş, kapat
				go func(c *Client) { h.unregister <- c }(client)
			}
		}
	}
}

// BroadcastToUser, belirli bir kullanıcının tüm bağlantılarına event gönderir.
func (h *Hub) BroadcastToUser(userID string, event Event) {
	event.Seq = h.seq.Add(1)

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal user event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.clients[userID]; ok {
		for client := range clients {
			select {
			case client.send <- data:
			default:
				go func(c *Client) { h.unregister <- c }(client)
			}
		}
	}
}

// GetOnlineUserIDs, bağlı olan tüm kullanıcı ID'lerini döner.
func (h *Hub) GetOnlineUserIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.clients))
	for userID := range h.clients {
		ids = append(ids, userID)
	}
	return ids
}

// IsUserOnline, kullanıcının en az bir açık bağlantısı olup olmadığını döner.
func (h *Hub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.clients[userID]
	return ok
}

// Shutdown, tüm client bağlantılarını kapatır (graceful shutdown).
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			client.closeSend()
		}
	}
	h.clients = make(map[string]map[*Client]bool)
	log.Println("[ws] hub shut down, all connections closed")
}
