package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ecemk/konvo/models"
	"github.com/ecemk/konvo/pkg"
)

// WebSocket bağlantı sabitleri
const (
	// writeWait: Bir mesajı yazmak için maksimum bekleme süresi.
	writeWait = 10 * time.Second

	// pongWait: Client'ın heartbeat göndermesi için beklenen maksimum süre.
	// 3 heartbeat kaçırma = 30s × 3 = 90s.
	pongWait = 90 * time.Second

	// maxMessageSize: Client'ın gönderebileceği maksimum mesaj boyutu (byte).
	// SDP blob'ları birkaç KB olabilir — mesaj limiti buna göre geniş tutulur.
	maxMessageSize = 32768

	// sendBufferSize: Her client'ın send channel'ının buffer boyutu.
	sendBufferSize = 256
)

// CallCoordinator, client'dan gelen call event'lerini işleyen service
// interface'i.
//
// Neden services.CallService yerine kendi interface'imizi tanımlıyoruz?
// Circular dependency'yi önlemek için: services paketi ws.EventPublisher'ı
// kullanıyor (fan-out için); ws paketi services'ı import etseydi döngü
// oluşurdu. main.go'da callService bu interface'i implicit olarak karşılar.
//
// Her metot mutasyonu call id üzerinden serialize eder ve initiator'a ack'te
// dönülecek session projection'ını döner. Handler'lar bu çağrıları ReadPump
// goroutine'inde SENKRON yapar — aynı bağlantıdan gelen event'ler böylece
// geliş sırasıyla mutex kuyruğuna girer (submission order garantisi).
type CallCoordinator interface {
	Create(ctx context.Context, chatID, callerID string) (models.CallSummary, error)
	Join(ctx context.Context, callID, userID string) (models.CallSummary, error)
	Offer(ctx context.Context, callID, senderID, receiverID string, offer json.RawMessage) (models.CallSummary, error)
	Answer(ctx context.Context, callID, senderID, receiverID string, answer json.RawMessage) (models.CallSummary, error)
	AddCandidate(ctx context.Context, callID, senderID, receiverID string, candidate json.RawMessage) (models.CallSummary, error)
	Reject(ctx context.Context, callID, userID string) (models.CallSummary, error)
	End(ctx context.Context, callID, userID string) (models.CallSummary, error)
}

// Client, tek bir WebSocket bağlantısını temsil eder.
//
// Her bağlantı için iki goroutine çalışır:
// - ReadPump: Client'dan gelen mesajları okur → işler
// - WritePump: send channel'dan gelen mesajları client'a yazar
//
// gorilla/websocket aynı anda sadece bir okuma ve bir yazma destekler;
// iki ayrı goroutine ile okuma ve yazma birbirini bloklamaz.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string

	// send, client'a gönderilecek mesajların buffer'landığı channel.
	// Hub `client.send <- data` yazar, WritePump okur.
	send chan []byte
	mu   sync.Mutex // conn.WriteMessage çağrılarını korur

	// sendMu + closed: send channel'ının kapanışını sendEvent ile serialize
	// eder. Hub shutdown sırasında ReadPump hâlâ bir event işliyor olabilir —
	// kapalı channel'a send panic'lerdi; bunun yerine ack sessizce düşer.
	sendMu sync.Mutex
	closed bool
}

// closeSend, send channel'ını tam bir kez kapatır (Hub tarafından çağrılır).
// Sonraki sendEvent çağrıları no-op olur.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// ReadPump, WebSocket bağlantısından gelen mesajları okur ve işler.
// Bağlantı kapanana kadar döngüde kalır; kapandığında Hub'dan çıkış yapar.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	// SetReadDeadline: Bu süre içinde mesaj gelmezse Read hata verir.
	// Her heartbeat geldiğinde deadline yenilenir.
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("[ws] failed to set read deadline for user %s: %v", c.userID, err)
		return
	}

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] unexpected close for user %s: %v", c.userID, err)
			}
			return
		}

		var event Event
		if err := json.Unmarshal(rawMessage, &event); err != nil {
			log.Printf("[ws] invalid message from user %s: %v", c.userID, err)
			continue
		}

		c.handleEvent(event)
	}
}

// handleEvent, client'dan gelen event'leri türüne göre işler.
//
// Call event'leri SENKRON işlenir (goroutine yok): aynı bağlantıdan art arda
// gelen offer + ice event'leri coordinator'a geliş sırasıyla teslim edilir.
func (c *Client) handleEvent(event Event) {
	switch event.Op {
	case OpHeartbeat:
		// Heartbeat geldi — deadline'ı yenile ve ack gönder.
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("[ws] failed to set read deadline for user %s: %v", c.userID, err)
			return
		}
		c.sendEvent(Event{Op: OpHeartbeatAck})

	case OpCallCreate, OpCallJoin, OpCallOffer, OpCallAnswer, OpCallIce, OpCallReject, OpCallEnd:
		if c.hub.coordinator == nil {
			log.Printf("[ws] call event %s received but no coordinator is wired", event.Op)
			return
		}
		// Flood koruması: limit aşıldığında event coordinator'a hiç
		// ulaşmaz, client'a rate_limited ack'i döner.
		if c.hub.limiter != nil && !c.hub.limiter.Allow(c.userID) {
			c.ackError(event, "rate_limited", "too many signaling events, slow down")
			return
		}
		c.handleCallEvent(event)

	default:
		log.Printf("[ws] unknown op from user %s: %s", c.userID, event.Op)
	}
}

// handleCallEvent, call event'lerini ilgili handler'a yönlendirir.
func (c *Client) handleCallEvent(event Event) {
	switch event.Op {
	case OpCallCreate:
		c.handleCallCreate(event)
	case OpCallJoin:
		c.handleCallJoin(event)
	case OpCallOffer:
		c.handleCallOffer(event)
	case OpCallAnswer:
		c.handleCallAnswer(event)
	case OpCallIce:
		c.handleCallIce(event)
	case OpCallReject:
		c.handleCallReject(event)
	case OpCallEnd:
		c.handleCallEnd(event)
	}
}

// ─── Call Event Handlers ───
//
// Ortak akış: payload decode → alan validasyonu (mutex'e girmeden, shared
// state gerektirmez) → coordinator çağrısı → ack. Hata durumunda initiator'a
// hem error ack'i hem de error event'i gönderilir; hata asla transport'a
// fırlatılmaz.

// handleCallCreate, call:create event'ini işler.
func (c *Client) handleCallCreate(event Event) {
	var data CallCreateData
	if !c.decodeData(event, &data) {
		return
	}

	if data.ChatID == "" {
		c.ackError(event, "validation", "missing field: chat_id")
		return
	}

	summary, err := c.hub.coordinator.Create(context.Background(), data.ChatID, c.userID)
	if err != nil {
		c.ackError(event, pkg.Code(err), err.Error())
		return
	}
	c.ackOK(event, summary)
}

// handleCallJoin, call:join event'ini işler.
func (c *Client) handleCallJoin(event Event) {
	var data CallJoinData
	if !c.decodeData(event, &data) {
		return
	}

	if data.CallID == "" {
		c.ackError(event, "validation", "missing field: call_id")
		return
	}

	summary, err := c.hub.coordinator.Join(context.Background(), data.CallID, c.userID)
	if err != nil {
		c.ackError(event, pkg.Code(err), err.Error())
		return
	}
	c.ackOK(event, summary)
}

// handleCallOffer, call:offer event'ini işler.
func (c *Client) handleCallOffer(event Event) {
	var data CallOfferData
	if !c.decodeData(event, &data) {
		return
	}

	if msg := c.validateSignal(data.CallID, data.ReceiverID, data.Offer, "offer"); msg != "" {
		c.ackError(event, "validation", msg)
		return
	}

	summary, err := c.hub.coordinator.Offer(context.Background(), data.CallID, c.userID, data.ReceiverID, data.Offer)
	if err != nil {
		c.ackError(event, pkg.Code(err), err.Error())
		return
	}
	c.ackOK(event, summary)
}

// handleCallAnswer, call:answer event'ini işler.
func (c *Client) handleCallAnswer(event Event) {
	var data CallAnswerData
	if !c.decodeData(event, &data) {
		return
	}

	if msg := c.validateSignal(data.CallID, data.ReceiverID, data.Answer, "answer"); msg != "" {
		c.ackError(event, "validation", msg)
		return
	}

	summary, err := c.hub.coordinator.Answer(context.Background(), data.CallID, c.userID, data.ReceiverID, data.Answer)
	if err != nil {
		c.ackError(event, pkg.Code(err), err.Error())
		return
	}
	c.ackOK(event, summary)
}

// handleCallIce, call:ice event'ini işler.
func (c *Client) handleCallIce(event Event) {
	var data CallIceData
	if !c.decodeData(event, &data) {
		return
	}

	if msg := c.validateSignal(data.CallID, data.ReceiverID, data.Candidate, "candidate"); msg != "" {
		c.ackError(event, "validation", msg)
		return
	}

	summary, err := c.hub.coordinator.AddCandidate(context.Background(), data.CallID, c.userID, data.ReceiverID, data.Candidate)
	if err != nil {
		c.ackError(event, pkg.Code(err), err.Error())
		return
	}
	c.ackOK(event, summary)
}

// handleCallReject, call:reject event'ini işler.
func (c *Client) handleCallReject(event Event) {
	var data CallRejectData
	if !c.decodeData(event, &data) {
		return
	}

	if data.CallID == "" {
		c.ackError(event, "validation", "missing field: call_id")
		return
	}

	summary, err := c.hub.coordinator.Reject(context.Background(), data.CallID, c.userID)
	if err != nil {
		c.ackError(event, pkg.Code(err), err.Error())
		return
	}
	c.ackOK(event, summary)
}

// handleCallEnd, call:end event'ini işler.
func (c *Client) handleCallEnd(event Event) {
	var data CallEndData
	if !c.decodeData(event, &data) {
		return
	}

	if data.CallID == "" {
		c.ackError(event, "validation", "missing field: call_id")
		return
	}

	summary, err := c.hub.coordinator.End(context.Background(), data.CallID, c.userID)
	if err != nil {
		c.ackError(event, pkg.Code(err), err.Error())
		return
	}
	c.ackOK(event, summary)
}

// validateSignal, offer/answer/ice event'lerinin ortak alan kontrolü.
// Boş string dönerse geçerli; değilse hata mesajı döner.
//
// Self-signaling (sender == receiver) protokol hatasıdır — engine-level
// hatalardan ayrı, mutex'e girmeden reddedilir.
func (c *Client) validateSignal(callID, receiverID string, blob json.RawMessage, blobField string) string {
	if callID == "" {
		return "missing field: call_id"
	}
	if receiverID == "" {
		return "missing field: receiver_id"
	}
	if len(blob) == 0 {
		return "missing field: " + blobField
	}
	if receiverID == c.userID {
		return "cannot signal yourself"
	}
	return ""
}

// decodeData, event.Data'yı hedef struct'a parse eder.
//
// json.Marshal + json.Unmarshal neden?
// event.Data tipi `any` (interface{}), doğrudan cast edemeyiz.
// JSON'a çevirip tekrar parse etmek en güvenli yöntem.
func (c *Client) decodeData(event Event, target any) bool {
	dataBytes, err := json.Marshal(event.Data)
	if err != nil {
		c.ackError(event, "validation", "invalid payload")
		return false
	}
	if err := json.Unmarshal(dataBytes, target); err != nil {
		c.ackError(event, "validation", "invalid payload")
		return false
	}
	return true
}

// ackOK, başarılı bir call işlemini nonce-korelasyonlu ack ile yanıtlar.
func (c *Client) ackOK(request Event, summary models.CallSummary) {
	c.sendEvent(Event{
		Op:    OpAck,
		Nonce: request.Nonce,
		Data:  AckData{Status: "ok", Call: summary},
	})
}

// ackError, başarısız bir call işlemini hem ack hem error event'i ile
// initiator'a bildirir.
func (c *Client) ackError(request Event, code, message string) {
	log.Printf("[ws] %s failed for user %s: %s (%s)", request.Op, c.userID, message, code)

	c.sendEvent(Event{
		Op:    OpAck,
		Nonce: request.Nonce,
		Data:  AckData{Status: "error", Code: code, Message: message},
	})
	c.sendEvent(Event{
		Op:   OpError,
		Data: ErrorData{Code: code, Message: message},
	})
}

// sendEvent, client'a tek bir event gönderir.
// Channel kapatılmışsa (shutdown/unregister yarışı) event sessizce düşer.
func (c *Client) sendEvent(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal event for user %s: %v", c.userID, err)
		return
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- data:
		// Başarıyla buffer'a eklendi
	default:
		// Buffer dolu — client muhtemelen donmuş, bağlantıyı kapat
		log.Printf("[ws] send buffer full for user %s, dropping connection", c.userID)
		c.hub.unregister <- c
	}
}

// WritePump, send channel'dan gelen mesajları WebSocket bağlantısına yazar.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for {
		message, ok := <-c.send
		if !ok {
			// Channel kapatıldı — Hub client'ı çıkardı
			c.writeMessage(websocket.CloseMessage, nil)
			return
		}

		if err := c.writeMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// writeMessage, WebSocket'e mesaj yazar (mutex ile korunur).
// gorilla/websocket conn'a aynı anda birden fazla yazma yasaktır.
func (c *Client) writeMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}
