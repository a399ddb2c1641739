// Package models — Call domain modeli.
//
// CallSession, bir sohbet (chat) üzerindeki tek bir aramanın tüm signaling
// durumunu taşır: katılımcılar, durum ve her katılımcı çifti arasındaki
// yönlü negotiation kaydı (PeerLink).
//
// Medya (ses/video) bu sunucudan GEÇMEZ — sadece SDP offer/answer ve ICE
// candidate metadata'sı relay edilir; sunucu bu blob'ların içeriğine bakmaz
// (json.RawMessage olarak opak taşınır).
//
// State machine:
//
//	ongoing → rejected  (davet edilen herkes reddetti)
//	ongoing → missed    (ring timeout doldu, kimse katılmadı)
//	ongoing → ended     (katılımcı sayısı ≤ 1'e düştü)
//
// rejected / missed / ended terminal'dir — session bu noktadan sonra
// immutable'dır ve arama geçmişi için saklanır, silinmez.
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// CallStatus, aramanın yaşam döngüsü durumunu temsil eden typed constant.
type CallStatus string

const (
	CallStatusOngoing  CallStatus = "ongoing"
	CallStatusRejected CallStatus = "rejected"
	CallStatusMissed   CallStatus = "missed"
	CallStatusEnded    CallStatus = "ended"
)

// CallParticipant, aramaya katılmış bir kullanıcı.
// Sıra önemlidir: Participants[0] her zaman aramayı başlatan kişidir (caller).
type CallParticipant struct {
	UserID   string    `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// PeerKey, yönlü bir PeerLink'in canonical anahtarı: "offererID|answererID".
// Dinamik iç içe map (links[sender][receiver]) yerine tek seviyeli,
// sabit formatlı composite key kullanılır.
type PeerKey string

const peerKeySep = "|"

// NewPeerKey, offerer → answerer yönü için key üretir.
func NewPeerKey(offererID, answererID string) PeerKey {
	return PeerKey(offererID + peerKeySep + answererID)
}

// Split, key'i (offererID, answererID) çiftine ayırır.
func (k PeerKey) Split() (offererID, answererID string) {
	offererID, answererID, _ = strings.Cut(string(k), peerKeySep)
	return offererID, answererID
}

// PeerLink, iki katılımcı arasındaki YÖNLÜ negotiation kaydı.
// (A,B) link'inde A offerer, B answerer'dır. Glare kuralı gereği bir çiftin
// aynı anda en fazla bir yönünde offer bulunabilir.
//
// Candidate kuyrukları, answer gelene kadar biriktirilir; flush edildikten
// sonra temizlenir — bir kuyruk asla iki kez teslim edilmez.
type PeerLink struct {
	Offer              json.RawMessage   `json:"offer,omitempty"`
	OffererCandidates  []json.RawMessage `json:"offerer_candidates,omitempty"`
	Answer             json.RawMessage   `json:"answer,omitempty"`
	AnswererCandidates []json.RawMessage `json:"answerer_candidates,omitempty"`
}

// Complete, link'te hem offer hem answer bulunup bulunmadığını döner.
// Candidate flush bu koşula bağlıdır.
func (l *PeerLink) Complete() bool {
	return len(l.Offer) > 0 && len(l.Answer) > 0
}

// CallSession, bir aramanın kalıcı kaydı (SQLite'ta tek satır).
// Tüm mutasyonlar call id üzerinden keymutex ile serialize edilir —
// struct'ın kendisi concurrency koruması içermez.
type CallSession struct {
	ID           string                `json:"id"`
	ChatID       string                `json:"chat_id"`
	Participants []CallParticipant     `json:"participants"`
	Status       CallStatus            `json:"status"`
	StartedAt    time.Time             `json:"started_at"`
	EndedAt      *time.Time            `json:"ended_at"`
	RejectedBy   []string              `json:"rejected_by"`
	PeerLinks    map[PeerKey]*PeerLink `json:"peer_links"`
}

// CallerID, aramayı başlatan kullanıcıyı döner (Participants[0] konvansiyonu).
// Caller end ile ayrılmışsa boş string döner.
func (c *CallSession) CallerID() string {
	if len(c.Participants) == 0 {
		return ""
	}
	return c.Participants[0].UserID
}

// IsParticipant, kullanıcının katılımcı listesinde olup olmadığını döner.
func (c *CallSession) IsParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// AddParticipant, kullanıcıyı katılımcı listesinin sonuna ekler.
// Zaten listedeyse no-op (idempotent). Eklendiyse true döner.
func (c *CallSession) AddParticipant(userID string, joinedAt time.Time) bool {
	if c.IsParticipant(userID) {
		return false
	}
	c.Participants = append(c.Participants, CallParticipant{UserID: userID, JoinedAt: joinedAt})
	return true
}

// RemoveParticipant, kullanıcıyı katılımcı listesinden çıkarır.
// Listedeyse true döner.
func (c *CallSession) RemoveParticipant(userID string) bool {
	for i, p := range c.Participants {
		if p.UserID == userID {
			c.Participants = append(c.Participants[:i], c.Participants[i+1:]...)
			return true
		}
	}
	return false
}

// HasRejected, kullanıcının aramayı açıkça reddedip reddetmediğini döner.
func (c *CallSession) HasRejected(userID string) bool {
	for _, id := range c.RejectedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// AddRejection, kullanıcıyı rejectedBy set'ine ekler.
// Aynı kullanıcının ikinci reject'i sayaca etki etmez (idempotent).
func (c *CallSession) AddRejection(userID string) bool {
	if c.HasRejected(userID) {
		return false
	}
	c.RejectedBy = append(c.RejectedBy, userID)
	return true
}

// Link, offerer → answerer yönündeki PeerLink'i döner (yoksa nil).
func (c *CallSession) Link(offererID, answererID string) *PeerLink {
	return c.PeerLinks[NewPeerKey(offererID, answererID)]
}

// EnsureLink, offerer → answerer yönündeki link'i döner, yoksa boş oluşturur.
func (c *CallSession) EnsureLink(offererID, answererID string) *PeerLink {
	if c.PeerLinks == nil {
		c.PeerLinks = make(map[PeerKey]*PeerLink)
	}
	key := NewPeerKey(offererID, answererID)
	link, ok := c.PeerLinks[key]
	if !ok {
		link = &PeerLink{}
		c.PeerLinks[key] = link
	}
	return link
}

// IsTerminal, session'ın immutable hale gelip gelmediğini döner.
func (c *CallSession) IsTerminal() bool {
	return c.Status == CallStatusRejected || c.Status == CallStatusMissed || c.Status == CallStatusEnded
}

// Duration, arama süresini döner. EndedAt set değilse nil.
func (c *CallSession) Duration() *time.Duration {
	if c.EndedAt == nil {
		return nil
	}
	d := c.EndedAt.Sub(c.StartedAt)
	return &d
}

// CallSummary, ack ve arama geçmişi yanıtlarında kullanılan projection.
// PeerLinks map'i bilinçli olarak dışarıda bırakılır — bir katılımcıya
// diğer çiftlerin SDP/ICE verisi sızdırılmaz.
type CallSummary struct {
	ID              string            `json:"id"`
	ChatID          string            `json:"chat_id"`
	CallerID        string            `json:"caller_id"`
	Status          CallStatus        `json:"status"`
	Participants    []CallParticipant `json:"participants"`
	StartedAt       time.Time         `json:"started_at"`
	EndedAt         *time.Time        `json:"ended_at"`
	DurationSeconds *float64          `json:"duration_seconds,omitempty"`
}

// Summary, session'dan routing-relevant projection üretir.
func (c *CallSession) Summary() CallSummary {
	s := CallSummary{
		ID:           c.ID,
		ChatID:       c.ChatID,
		CallerID:     c.CallerID(),
		Status:       c.Status,
		Participants: c.Participants,
		StartedAt:    c.StartedAt,
		EndedAt:      c.EndedAt,
	}
	if d := c.Duration(); d != nil {
		secs := d.Seconds()
		s.DurationSeconds = &secs
	}
	return s
}
