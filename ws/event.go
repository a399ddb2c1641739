// Package ws, WebSocket bağlantı yönetimi ve gerçek zamanlı signaling
// event dağıtımını sağlar.
//
// Mimari:
// - Hub: Tüm bağlantıları yöneten merkezi yapı (Observer pattern)
// - Client: Her WebSocket bağlantısını temsil eder
// - Event: Client-server arası iletilen mesaj formatı
//
// Signaling akışı:
// 1. Client bir call event'i gönderir (call:create, call:offer, ...)
// 2. Client handler alanları validate eder (mutex'e girmeden önce)
// 3. CallCoordinator (service katmanı) transition'ı uygular ve karşı
//    taraflara fan-out yapar
// 4. Client, initiator'a nonce-korelasyonlu ack döner
package ws

import "encoding/json"

// Event, WebSocket üzerinden iletilen bir mesajı temsil eder.
//
// Op (operation): Event türü — "call:offer", "heartbeat" vb.
// Data: Event'e özgü payload.
// Seq (sequence number): Her outbound event'e verilen artan sayı.
//   Frontend eksik event tespit etmek için seq'i takip eder.
// Nonce: Client'ın ürettiği korelasyon ID'si. Client bir call event'i
//   gönderirken nonce ekler; server'ın ack'i aynı nonce'u taşır —
//   böylece client hangi isteğin sonuçlandığını eşleştirebilir.
type Event struct {
	Op    string `json:"op"`
	Data  any    `json:"d,omitempty"`
	Seq   int64  `json:"seq,omitempty"`
	Nonce string `json:"nonce,omitempty"`
}

// ────────────────────────────────────────────
// Operation sabitleri
// ────────────────────────────────────────────

// Client → Server operasyonları
const (
	OpHeartbeat = "heartbeat" // Client her 30sn'de gönderir — "hâlâ bağlıyım" sinyali

	OpCallCreate = "call:create" // Yeni arama başlat
	OpCallJoin   = "call:join"   // Devam eden aramaya katıl
	OpCallOffer  = "call:offer"  // SDP offer gönder
	OpCallAnswer = "call:answer" // SDP answer gönder
	OpCallIce    = "call:ice"    // ICE candidate gönder
	OpCallReject = "call:reject" // Gelen aramayı reddet
	OpCallEnd    = "call:end"    // Aramadan ayrıl / aramayı bitir
)

// Server → Client operasyonları
const (
	OpReady        = "ready"          // Bağlantı kurulduğunda ilk gönderilen
	OpHeartbeatAck = "heartbeat_ack"  // Heartbeat'e yanıt — "seni duydum"
	OpAck          = "ack"            // Call event'lerine nonce-korelasyonlu yanıt
	OpError        = "error"          // İşlem hatası bildirimi (initiator'a)
	OpPresence     = "presence_update" // Bir kullanıcının online durumu değişti

	OpCallIncoming       = "call:incoming"       // Sohbette yeni arama başladı
	OpCallOfferReceived  = "call:offerReceived"  // Sana bir SDP offer geldi
	OpCallAnswerReceived = "call:answerReceived" // Offer'ına SDP answer geldi
	OpCallIceReceived    = "call:iceReceived"    // Sana bir ICE candidate geldi
	OpCallEnded          = "call:ended"          // Arama sonlandı (ended/rejected/missed)
)

// ─── Client → Server payload'ları ───
//
// SDP ve ICE blob'ları json.RawMessage olarak taşınır — server içeriğine
// bakmaz, olduğu gibi relay eder.

// CallCreateData, call:create event'inin payload'ı.
type CallCreateData struct {
	ChatID string `json:"chat_id"`
}

// CallJoinData, call:join event'inin payload'ı.
type CallJoinData struct {
	CallID string `json:"call_id"`
}

// CallOfferData, call:offer event'inin payload'ı.
type CallOfferData struct {
	CallID     string          `json:"call_id"`
	ReceiverID string          `json:"receiver_id"`
	Offer      json.RawMessage `json:"offer"`
}

// CallAnswerData, call:answer event'inin payload'ı.
type CallAnswerData struct {
	CallID     string          `json:"call_id"`
	ReceiverID string          `json:"receiver_id"`
	Answer     json.RawMessage `json:"answer"`
}

// CallIceData, call:ice event'inin payload'ı.
type CallIceData struct {
	CallID     string          `json:"call_id"`
	ReceiverID string          `json:"receiver_id"`
	Candidate  json.RawMessage `json:"candidate"`
}

// CallRejectData, call:reject event'inin payload'ı.
type CallRejectData struct {
	CallID string `json:"call_id"`
}

// CallEndData, call:end event'inin payload'ı.
type CallEndData struct {
	CallID string `json:"call_id"`
}

// ─── Server → Client payload'ları ───

// AckData, ack event'inin payload'ı. Her call event'ine karşılık
// initiator'a gönderilir; Event.Nonce isteğin nonce'unu echo eder.
//
// Status "ok" ise Call session'ın routing-relevant projection'ını taşır.
// Status "error" ise Code makine-okunur classification, Message ise
// insan-okunur açıklamadır. Client retry kararını Code ile verir
// (ör. "no_matching_offer" → offer gelince yeniden gönder).
type AckData struct {
	Status  string `json:"status"` // "ok" | "error"
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Call    any    `json:"call,omitempty"`
}

// ErrorData, error event'inin payload'ı.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CallIncomingData, call:incoming event'inin payload'ı.
// Aramanın başladığı sohbetin tüm üyelerine (caller hariç) gönderilir.
type CallIncomingData struct {
	Call any `json:"call"`
}

// CallOfferReceivedData, call:offerReceived event'inin payload'ı.
// Sadece offer'ın alıcısına gönderilir — diğer çiftlerin link'leri sızmaz.
type CallOfferReceivedData struct {
	CallID   string          `json:"call_id"`
	SenderID string          `json:"sender_id"`
	Offer    json.RawMessage `json:"offer"`
}

// CallAnswerReceivedData, call:answerReceived event'inin payload'ı.
type CallAnswerReceivedData struct {
	CallID   string          `json:"call_id"`
	SenderID string          `json:"sender_id"`
	Answer   json.RawMessage `json:"answer"`
}

// CallIceReceivedData, call:iceReceived event'inin payload'ı.
// Kuyruk flush'ında her candidate ayrı bir event olarak, kuyruk sırasıyla
// gönderilir.
type CallIceReceivedData struct {
	CallID    string          `json:"call_id"`
	SenderID  string          `json:"sender_id"`
	Candidate json.RawMessage `json:"candidate"`
}

// CallEndedData, call:ended event'inin payload'ı.
// Reason: "ended", "rejected" veya "missed".
type CallEndedData struct {
	Call   any    `json:"call"`
	Reason string `json:"reason"`
}

// ReadyData, bağlantı kurulduğunda client'a gönderilen ilk event'in payload'ı.
// Frontend online kullanıcıları Set'e atar (presence indicator için).
type ReadyData struct {
	OnlineUserIDs []string `json:"online_user_ids"`
}

// PresenceData, bir kullanıcının online durumu değiştiğinde broadcast
// edilen payload.
type PresenceData struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
}
