// Package services — CallService: arama signaling iş mantığı.
//
// Sunucu bir signaling relay'idir: SDP offer/answer ve ICE candidate
// blob'larını doğru katılımcıya iletir, medya akmaz. Tek paylaşılan mutable
// kaynak CallSession'dır (SQLite'ta tek satır) ve transaction desteği
// varsayılmaz — bu yüzden her mutasyon load-mutate-save dizisi olarak
// call id üzerinden keymutex ile serialize edilir.
//
// Sıralama garantisi: aynı call id'ye ait işlemler submission sırasıyla
// teker teker çalışır; farklı call'lar birbirinden bağımsız ilerler.
// Art arda gelen iki ICE event'i veya offer + eşzamanlı reject, session
// satırı üzerinde asla read-modify-write yarışına girmez.
//
// Glare önleme: bir (A,B) çiftinin aynı anda en fazla BİR yönünde offer
// bulunabilir. (B,A) yönünde offer varken A'nın yeni (A,B) offer'ı
// ErrGlareConflict ile reddedilir — A mevcut offer'ı cevaplamalıdır.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ecemk/konvo/models"
	"github.com/ecemk/konvo/pkg"
	"github.com/ecemk/konvo/pkg/keymutex"
	"github.com/ecemk/konvo/repository"
	"github.com/ecemk/konvo/ws"
)

// ChatMembership, sohbet üyeliği sorguları için minimal interface.
// repository.ChatRepository bu interface'i duck typing ile otomatik karşılar.
// Reject eşiği buradan gelir — participants listesinden türetilmez.
type ChatMembership interface {
	IsParticipant(ctx context.Context, chatID, userID string) (bool, error)
	CountParticipants(ctx context.Context, chatID string) (int, error)
	ListParticipantIDs(ctx context.Context, chatID string) ([]string, error)
}

// CallService, arama signaling operasyonları için iş mantığı interface'i.
// ws.CallCoordinator'ı karşılar; ayrıca REST tarafına arama geçmişi sunar.
type CallService interface {
	// Create, sohbette yeni bir arama başlatır ve üyelere haber verir.
	Create(ctx context.Context, chatID, callerID string) (models.CallSummary, error)

	// Join, kullanıcıyı devam eden aramaya katılımcı olarak ekler (idempotent).
	Join(ctx context.Context, callID, userID string) (models.CallSummary, error)

	// Offer, sender → receiver yönünde SDP offer kaydeder ve relay eder.
	// Ters yönde offer varsa ErrGlareConflict döner.
	Offer(ctx context.Context, callID, senderID, receiverID string, offer json.RawMessage) (models.CallSummary, error)

	// Answer, receiver → sender yönündeki offer'a SDP answer kaydeder.
	// Ters yönlü offer yoksa ErrOfferNotFound döner.
	Answer(ctx context.Context, callID, senderID, receiverID string, answer json.RawMessage) (models.CallSummary, error)

	// AddCandidate, ICE candidate'ı ilgili link'in kuyruğuna ekler.
	// Link hem offer hem answer içeriyorsa kuyruklar flush edilir.
	AddCandidate(ctx context.Context, callID, senderID, receiverID string, candidate json.RawMessage) (models.CallSummary, error)

	// Reject, kullanıcının reddini kaydeder; tüm davetliler reddettiyse
	// arama "rejected" durumuna geçer.
	Reject(ctx context.Context, callID, userID string) (models.CallSummary, error)

	// End, kullanıcıyı aramadan çıkarır; kalan katılımcı ≤ 1 ise arama biter.
	End(ctx context.Context, callID, userID string) (models.CallSummary, error)

	// HandleDisconnect, kullanıcının son WS bağlantısı koptuğunda çağrılır.
	// İçinde olduğu tüm devam eden aramalardan normal end akışıyla çıkarılır.
	HandleDisconnect(userID string)

	// ListForUser, kullanıcının arama geçmişini döner.
	ListForUser(ctx context.Context, userID string, limit int) ([]models.CallSummary, error)

	// ListForChat, sohbetin arama geçmişini döner (sadece sohbet üyelerine).
	ListForChat(ctx context.Context, chatID, userID string, limit int) ([]models.CallSummary, error)
}

// callService, CallService'in private implementasyonu.
type callService struct {
	calls      repository.CallRepository
	membership ChatMembership
	hub        ws.EventPublisher
	notifier   CallNotifier

	// locks: call id başına mutasyon serializasyonu. Process-local —
	// bir aramanın tüm event'leri aynı process'e gelir (tek process varsayımı).
	locks *keymutex.KeyMutex

	// ringTimeout: kimse katılmazsa aramanın "missed" sayılacağı süre.
	ringTimeout time.Duration
}

// NewCallService, constructor. Tüm dependency'ler injection ile alınır.
func NewCallService(
	calls repository.CallRepository,
	membership ChatMembership,
	hub ws.EventPublisher,
	notifier CallNotifier,
	ringTimeout time.Duration,
) CallService {
	return &callService{
		calls:       calls,
		membership:  membership,
		hub:         hub,
		notifier:    notifier,
		locks:       keymutex.New(),
		ringTimeout: ringTimeout,
	}
}

// Create, sohbette yeni bir arama başlatır.
func (s *callService) Create(ctx context.Context, chatID, callerID string) (models.CallSummary, error) {
	// Caller sohbetin üyesi mi? Session state gerektirmediği için mutex dışında.
	isMember, err := s.membership.IsParticipant(ctx, chatID, callerID)
	if err != nil {
		return models.CallSummary{}, err
	}
	if !isMember {
		return models.CallSummary{}, fmt.Errorf("%w: not a chat participant", pkg.ErrForbidden)
	}

	now := time.Now().UTC()
	call := &models.CallSession{
		ID:           uuid.New().String(),
		ChatID:       chatID,
		Participants: []models.CallParticipant{{UserID: callerID, JoinedAt: now}},
		Status:       models.CallStatusOngoing,
		StartedAt:    now,
		RejectedBy:   []string{},
		PeerLinks:    make(map[models.PeerKey]*models.PeerLink),
	}

	var summary models.CallSummary
	err = s.locks.RunExclusive(call.ID, func() error {
		if err := s.calls.Create(ctx, call); err != nil {
			return err
		}
		summary = call.Summary()
		return nil
	})
	if err != nil {
		return models.CallSummary{}, err
	}

	log.Printf("[call] created: call=%s chat=%s caller=%s", call.ID, chatID, callerID)

	// Davetliler: caller dışındaki tüm sohbet üyeleri.
	memberIDs, err := s.membership.ListParticipantIDs(ctx, chatID)
	if err != nil {
		log.Printf("[call] failed to list chat members for call %s: %v", call.ID, err)
		memberIDs = nil
	}
	for _, id := range memberIDs {
		if id == callerID {
			continue
		}
		s.hub.BroadcastToUser(id, ws.Event{
			Op:   ws.OpCallIncoming,
			Data: ws.CallIncomingData{Call: summary},
		})
	}

	// Offline davetlilere email — best effort, signaling akışını bloklamaz.
	go s.notifier.NotifyIncomingCall(context.Background(), chatID, call.ID, callerID, memberIDs)

	// Ring timer: süre dolana kadar kimse katılmadıysa arama "missed" olur.
	callID := call.ID
	time.AfterFunc(s.ringTimeout, func() {
		s.markMissed(callID)
	})

	return summary, nil
}

// Join, kullanıcıyı aramaya katılımcı olarak ekler.
func (s *callService) Join(ctx context.Context, callID, userID string) (models.CallSummary, error) {
	var summary models.CallSummary
	err := s.locks.RunExclusive(callID, func() error {
		call, err := s.calls.GetByID(ctx, callID)
		if err != nil {
			return err
		}
		if call.IsTerminal() {
			return fmt.Errorf("%w: call is no longer active", pkg.ErrBadRequest)
		}
		if err := s.requireChatMember(ctx, call.ChatID, userID); err != nil {
			return err
		}

		if call.AddParticipant(userID, time.Now().UTC()) {
			if err := s.calls.Save(ctx, call); err != nil {
				return err
			}
			log.Printf("[call] joined: call=%s user=%s", callID, userID)
		}
		summary = call.Summary()
		return nil
	})
	if err != nil {
		return models.CallSummary{}, err
	}
	return summary, nil
}

// Offer, sender → receiver yönünde SDP offer kaydeder.
func (s *callService) Offer(ctx context.Context, callID, senderID, receiverID string, offer json.RawMessage) (models.CallSummary, error) {
	var summary models.CallSummary
	var relay bool

	err := s.locks.RunExclusive(callID, func() error {
		call, err := s.calls.GetByID(ctx, callID)
		if err != nil {
			return err
		}
		if call.IsTerminal() {
			return fmt.Errorf("%w: call is no longer active", pkg.ErrBadRequest)
		}
		if err := s.requireChatMember(ctx, call.ChatID, senderID); err != nil {
			return err
		}
		if err := s.requireChatMember(ctx, call.ChatID, receiverID); err != nil {
			return err
		}

		// Glare kontrolü: ters yönde offer varken yeni offer açılamaz.
		if reverse := call.Link(receiverID, senderID); reverse != nil && len(reverse.Offer) > 0 {
			return fmt.Errorf("%w: answer the existing offer from %s instead", pkg.ErrGlareConflict, receiverID)
		}

		link := call.EnsureLink(senderID, receiverID)
		link.Offer = offer

		// Implicit join: offer gönderen katılımcı sayılır.
		call.AddParticipant(senderID, time.Now().UTC())

		if err := s.calls.Save(ctx, call); err != nil {
			return err
		}

		// Reddetmiş kullanıcıya offer iletilmez (delivery suppress).
		relay = !call.HasRejected(receiverID)
		summary = call.Summary()
		return nil
	})
	if err != nil {
		return models.CallSummary{}, err
	}

	if relay {
		s.hub.BroadcastToUser(receiverID, ws.Event{
			Op:   ws.OpCallOfferReceived,
			Data: ws.CallOfferReceivedData{CallID: callID, SenderID: senderID, Offer: offer},
		})
	}

	log.Printf("[call] offer: call=%s %s → %s (relayed=%t)", callID, senderID, receiverID, relay)
	return summary, nil
}

// Answer, receiver → sender yönündeki offer'a SDP answer kaydeder.
func (s *callService) Answer(ctx context.Context, callID, senderID, receiverID string, answer json.RawMessage) (models.CallSummary, error) {
	var summary models.CallSummary

	err := s.locks.RunExclusive(callID, func() error {
		call, err := s.calls.GetByID(ctx, callID)
		if err != nil {
			return err
		}
		if call.IsTerminal() {
			return fmt.Errorf("%w: call is no longer active", pkg.ErrBadRequest)
		}
		if err := s.requireChatMember(ctx, call.ChatID, senderID); err != nil {
			return err
		}

		// Answer, ters yöndeki (receiver → sender) offer'a karşılık gelmeli.
		link := call.Link(receiverID, senderID)
		if link == nil || len(link.Offer) == 0 {
			return fmt.Errorf("%w: no offer from %s to answer", pkg.ErrOfferNotFound, receiverID)
		}
		link.Answer = answer

		call.AddParticipant(senderID, time.Now().UTC())

		if err := s.calls.Save(ctx, call); err != nil {
			return err
		}
		summary = call.Summary()
		return nil
	})
	if err != nil {
		return models.CallSummary{}, err
	}

	// Kuyruk flush'ı burada TETİKLENMEZ — flush AddCandidate'ta, link'in
	// her iki yarısı da mevcutken yapılır. Böylece teslimat anı deterministik
	// kalır ve bir kuyruk asla iki kez teslim edilmez.
	s.hub.BroadcastToUser(receiverID, ws.Event{
		Op:   ws.OpCallAnswerReceived,
		Data: ws.CallAnswerReceivedData{CallID: callID, SenderID: senderID, Answer: answer},
	})

	log.Printf("[call] answer: call=%s %s → %s", callID, senderID, receiverID)
	return summary, nil
}

// AddCandidate, ICE candidate'ı yönüne göre kuyruğa ekler; link tamamlanmışsa
// birikmiş kuyrukları karşı taraflara flush eder.
func (s *callService) AddCandidate(ctx context.Context, callID, senderID, receiverID string, candidate json.RawMessage) (models.CallSummary, error) {
	var summary models.CallSummary
	var flush bool
	var offererID, answererID string
	var toAnswerer, toOfferer []json.RawMessage

	err := s.locks.RunExclusive(callID, func() error {
		call, err := s.calls.GetByID(ctx, callID)
		if err != nil {
			return err
		}
		if call.IsTerminal() {
			return fmt.Errorf("%w: call is no longer active", pkg.ErrBadRequest)
		}
		if err := s.requireChatMember(ctx, call.ChatID, senderID); err != nil {
			return err
		}

		// Yön tespiti: link offer ile oluşturulduğu için varlığı offer'ı ima eder.
		var link *models.PeerLink
		if l := call.Link(senderID, receiverID); l != nil {
			// Sender bu link'in offerer'ı.
			link = l
			offererID, answererID = senderID, receiverID
			link.OffererCandidates = append(link.OffererCandidates, candidate)
		} else if l := call.Link(receiverID, senderID); l != nil {
			// Sender bu link'in answerer'ı.
			link = l
			offererID, answererID = receiverID, senderID
			link.AnswererCandidates = append(link.AnswererCandidates, candidate)
		} else {
			// Client offer kurulduktan sonra yeniden gönderebilir — retriable.
			return fmt.Errorf("%w: no peer link between %s and %s", pkg.ErrNoMatchingOffer, senderID, receiverID)
		}

		// Flush koşulu: link'in her iki yarısı da mevcut. Kuyruklar persist
		// EDİLMEDEN önce temizlenir — flush edilmiş candidate bir daha teslim
		// edilmez.
		if link.Complete() {
			flush = true
			toAnswerer = link.OffererCandidates
			toOfferer = link.AnswererCandidates
			link.OffererCandidates = nil
			link.AnswererCandidates = nil
		}

		if err := s.calls.Save(ctx, call); err != nil {
			return err
		}
		summary = call.Summary()
		return nil
	})
	if err != nil {
		return models.CallSummary{}, err
	}

	if flush {
		for _, cand := range toAnswerer {
			s.hub.BroadcastToUser(answererID, ws.Event{
				Op:   ws.OpCallIceReceived,
				Data: ws.CallIceReceivedData{CallID: callID, SenderID: offererID, Candidate: cand},
			})
		}
		for _, cand := range toOfferer {
			s.hub.BroadcastToUser(offererID, ws.Event{
				Op:   ws.OpCallIceReceived,
				Data: ws.CallIceReceivedData{CallID: callID, SenderID: answererID, Candidate: cand},
			})
		}
		log.Printf("[call] ice flushed: call=%s pair=%s|%s (to_answerer=%d, to_offerer=%d)",
			callID, offererID, answererID, len(toAnswerer), len(toOfferer))
	}

	return summary, nil
}

// Reject, kullanıcının reddini kaydeder.
func (s *callService) Reject(ctx context.Context, callID, userID string) (models.CallSummary, error) {
	var summary models.CallSummary
	var becameRejected bool
	var callerID string

	err := s.locks.RunExclusive(callID, func() error {
		call, err := s.calls.GetByID(ctx, callID)
		if err != nil {
			return err
		}
		if call.IsTerminal() {
			// Terminal session immutable — reddi yok say, mevcut durumu dön.
			summary = call.Summary()
			return nil
		}
		if err := s.requireChatMember(ctx, call.ChatID, userID); err != nil {
			return err
		}

		// İkinci reject eşiğe etki etmez (idempotent).
		if call.AddRejection(userID) {
			// Eşik: caller dışındaki TÜM sohbet üyeleri reddetmiş olmalı.
			// Sayı chat üyeliğinden gelir, participants listesinden değil.
			total, err := s.membership.CountParticipants(ctx, call.ChatID)
			if err != nil {
				return err
			}
			if len(call.RejectedBy) >= total-1 {
				call.Status = models.CallStatusRejected
				becameRejected = true
				callerID = call.CallerID()
			}

			if err := s.calls.Save(ctx, call); err != nil {
				return err
			}
		}
		summary = call.Summary()
		return nil
	})
	if err != nil {
		return models.CallSummary{}, err
	}

	if becameRejected {
		log.Printf("[call] rejected by all invitees: call=%s", callID)
		if callerID != "" {
			s.hub.BroadcastToUser(callerID, ws.Event{
				Op:   ws.OpCallEnded,
				Data: ws.CallEndedData{Call: summary, Reason: "rejected"},
			})
		}
	}

	return summary, nil
}

// End, kullanıcıyı aramadan çıkarır.
func (s *callService) End(ctx context.Context, callID, userID string) (models.CallSummary, error) {
	var summary models.CallSummary
	var becameEnded bool
	var chatID string

	err := s.locks.RunExclusive(callID, func() error {
		call, err := s.calls.GetByID(ctx, callID)
		if err != nil {
			return err
		}
		if call.IsTerminal() {
			// Zaten bitmiş — idempotent, mevcut durumu dön.
			summary = call.Summary()
			return nil
		}

		if !call.RemoveParticipant(userID) {
			return fmt.Errorf("%w: not in this call", pkg.ErrBadRequest)
		}

		// Tek kişi (veya kimse) kaldıysa arama biter. EndedAt yalnızca
		// burada ve missed geçişinde set edilir — tam bir kez.
		if len(call.Participants) <= 1 {
			call.Status = models.CallStatusEnded
			now := time.Now().UTC()
			call.EndedAt = &now
			becameEnded = true
			chatID = call.ChatID
		}

		if err := s.calls.Save(ctx, call); err != nil {
			return err
		}
		summary = call.Summary()
		return nil
	})
	if err != nil {
		return models.CallSummary{}, err
	}

	if becameEnded {
		log.Printf("[call] ended: call=%s (last leave by %s)", callID, userID)
		s.broadcastEnded(ctx, chatID, summary, "ended")
	} else {
		log.Printf("[call] participant left: call=%s user=%s", callID, userID)
	}

	return summary, nil
}

// HandleDisconnect, kullanıcının son bağlantısı koptuğunda devam eden tüm
// aramalarından çıkarır. Hata akışı kesmez — her arama bağımsız denenir.
func (s *callService) HandleDisconnect(userID string) {
	ctx := context.Background()

	calls, err := s.calls.ListOngoingByParticipant(ctx, userID)
	if err != nil {
		log.Printf("[call] disconnect cleanup failed for user %s: %v", userID, err)
		return
	}

	for _, call := range calls {
		if _, err := s.End(ctx, call.ID, userID); err != nil {
			log.Printf("[call] disconnect cleanup: failed to end call %s for user %s: %v", call.ID, userID, err)
		}
	}

	if len(calls) > 0 {
		log.Printf("[call] disconnect cleanup: user=%s removed from %d call(s)", userID, len(calls))
	}
}

// ListForUser, kullanıcının arama geçmişini döner.
func (s *callService) ListForUser(ctx context.Context, userID string, limit int) ([]models.CallSummary, error) {
	calls, err := s.calls.ListForUser(ctx, userID, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	return summarize(calls), nil
}

// ListForChat, sohbetin arama geçmişini döner. Sadece sohbet üyeleri görebilir.
func (s *callService) ListForChat(ctx context.Context, chatID, userID string, limit int) ([]models.CallSummary, error) {
	if err := s.requireChatMember(ctx, chatID, userID); err != nil {
		return nil, err
	}

	calls, err := s.calls.ListForChat(ctx, chatID, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	return summarize(calls), nil
}

// markMissed, ring timer dolduğunda çağrılır. Arama hâlâ "ongoing" ve
// caller'dan başka katılımcı yoksa "missed" durumuna geçirir.
func (s *callService) markMissed(callID string) {
	ctx := context.Background()

	var summary models.CallSummary
	var missed bool
	var chatID, callerID string

	err := s.locks.RunExclusive(callID, func() error {
		call, err := s.calls.GetByID(ctx, callID)
		if err != nil {
			return err
		}
		if call.Status != models.CallStatusOngoing || len(call.Participants) > 1 {
			return nil // Birisi katılmış veya arama zaten sonuçlanmış.
		}

		call.Status = models.CallStatusMissed
		now := time.Now().UTC()
		call.EndedAt = &now

		if err := s.calls.Save(ctx, call); err != nil {
			return err
		}

		missed = true
		chatID = call.ChatID
		callerID = call.CallerID()
		summary = call.Summary()
		return nil
	})
	if err != nil {
		log.Printf("[call] ring timeout check failed for call %s: %v", callID, err)
		return
	}
	if !missed {
		return
	}

	log.Printf("[call] missed: call=%s (ring timeout)", callID)
	s.broadcastEnded(ctx, chatID, summary, "missed")

	memberIDs, err := s.membership.ListParticipantIDs(ctx, chatID)
	if err != nil {
		log.Printf("[call] failed to list chat members for missed call %s: %v", callID, err)
		return
	}
	go s.notifier.NotifyMissedCall(context.Background(), chatID, callID, callerID, memberIDs)
}

// broadcastEnded, call:ended event'ini sohbetin tüm üyelerine gönderir.
func (s *callService) broadcastEnded(ctx context.Context, chatID string, summary models.CallSummary, reason string) {
	memberIDs, err := s.membership.ListParticipantIDs(ctx, chatID)
	if err != nil {
		log.Printf("[call] failed to list chat members for chat %s: %v", chatID, err)
		return
	}

	event := ws.Event{
		Op:   ws.OpCallEnded,
		Data: ws.CallEndedData{Call: summary, Reason: reason},
	}
	for _, id := range memberIDs {
		s.hub.BroadcastToUser(id, event)
	}
}

// requireChatMember, kullanıcının sohbet üyesi olduğunu doğrular.
func (s *callService) requireChatMember(ctx context.Context, chatID, userID string) error {
	isMember, err := s.membership.IsParticipant(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return fmt.Errorf("%w: %s is not a chat participant", pkg.ErrForbidden, userID)
	}
	return nil
}

// normalizeLimit, geçmiş sorguları için makul bir limit uygular.
func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 50
	}
	return limit
}

// summarize, session listesini projection listesine çevirir.
func summarize(calls []*models.CallSession) []models.CallSummary {
	summaries := make([]models.CallSummary, 0, len(calls))
	for _, call := range calls {
		summaries = append(summaries, call.Summary())
	}
	return summaries
}
