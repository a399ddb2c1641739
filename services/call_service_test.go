package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ecemk/konvo/models"
	"github.com/ecemk/konvo/pkg"
	"github.com/ecemk/konvo/ws"
)

// ─── Fakes ───

// fakeCallRepo, in-memory CallRepository. Session'lar JSON roundtrip ile
// clone'lanır — service'in elindeki pointer store'u etkilemesin diye
// (gerçek DB davranışını taklit eder).
type fakeCallRepo struct {
	mu    sync.Mutex
	calls map[string]*models.CallSession
}

func newFakeCallRepo() *fakeCallRepo {
	return &fakeCallRepo{calls: make(map[string]*models.CallSession)}
}

func cloneCall(call *models.CallSession) *models.CallSession {
	data, _ := json.Marshal(call)
	var clone models.CallSession
	_ = json.Unmarshal(data, &clone)
	return &clone
}

func (r *fakeCallRepo) Create(_ context.Context, call *models.CallSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[call.ID] = cloneCall(call)
	return nil
}

func (r *fakeCallRepo) GetByID(_ context.Context, id string) (*models.CallSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	call, ok := r.calls[id]
	if !ok {
		return nil, pkg.ErrNotFound
	}
	return cloneCall(call), nil
}

func (r *fakeCallRepo) Save(_ context.Context, call *models.CallSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.calls[call.ID]; !ok {
		return pkg.ErrNotFound
	}
	r.calls[call.ID] = cloneCall(call)
	return nil
}

func (r *fakeCallRepo) ListForUser(_ context.Context, userID string, limit int) ([]*models.CallSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.CallSession
	for _, call := range r.calls {
		if call.IsParticipant(userID) && len(out) < limit {
			out = append(out, cloneCall(call))
		}
	}
	return out, nil
}

func (r *fakeCallRepo) ListForChat(_ context.Context, chatID string, limit int) ([]*models.CallSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.CallSession
	for _, call := range r.calls {
		if call.ChatID == chatID && len(out) < limit {
			out = append(out, cloneCall(call))
		}
	}
	return out, nil
}

func (r *fakeCallRepo) ListOngoingByParticipant(_ context.Context, userID string) ([]*models.CallSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.CallSession
	for _, call := range r.calls {
		if call.Status == models.CallStatusOngoing && call.IsParticipant(userID) {
			out = append(out, cloneCall(call))
		}
	}
	return out, nil
}

// fakeMembership, sabit chat üyeliği.
type fakeMembership struct {
	chats map[string][]string // chatID → üye ID'leri
}

func (m *fakeMembership) IsParticipant(_ context.Context, chatID, userID string) (bool, error) {
	for _, id := range m.chats[chatID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *fakeMembership) CountParticipants(_ context.Context, chatID string) (int, error) {
	return len(m.chats[chatID]), nil
}

func (m *fakeMembership) ListParticipantIDs(_ context.Context, chatID string) ([]string, error) {
	return m.chats[chatID], nil
}

// sentEvent, fakePublisher'ın kaydettiği tek bir gönderim.
type sentEvent struct {
	userID string
	event  ws.Event
}

// fakePublisher, gönderilen event'leri kaydeden EventPublisher.
type fakePublisher struct {
	mu     sync.Mutex
	events []sentEvent
}

func (p *fakePublisher) BroadcastToAll(event ws.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, sentEvent{userID: "*", event: event})
}

func (p *fakePublisher) BroadcastToUser(userID string, event ws.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, sentEvent{userID: userID, event: event})
}

func (p *fakePublisher) GetOnlineUserIDs() []string { return nil }

func (p *fakePublisher) IsUserOnline(string) bool { return false }

// eventsFor, bir kullanıcıya gönderilen belirli op'taki event'leri döner.
func (p *fakePublisher) eventsFor(userID, op string) []ws.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []ws.Event
	for _, sent := range p.events {
		if sent.userID == userID && sent.event.Op == op {
			out = append(out, sent.event)
		}
	}
	return out
}

// fakeNotifier, no-op CallNotifier.
type fakeNotifier struct{}

func (fakeNotifier) NotifyIncomingCall(context.Context, string, string, string, []string) {}
func (fakeNotifier) NotifyMissedCall(context.Context, string, string, string, []string)   {}

// newTestService, üç kişilik bir chat ("room") ile service kurar.
// Ring timeout uzun tutulur — missed testi kendi timeout'unu verir.
func newTestService(ringTimeout time.Duration) (CallService, *fakeCallRepo, *fakePublisher) {
	repo := newFakeCallRepo()
	membership := &fakeMembership{chats: map[string][]string{
		"room": {"alice", "bob", "carol"},
	}}
	hub := &fakePublisher{}
	svc := NewCallService(repo, membership, hub, fakeNotifier{}, ringTimeout)
	return svc, repo, hub
}

func rawSDP(kind string) json.RawMessage {
	return json.RawMessage(`{"type":"` + kind + `","sdp":"v=0"}`)
}

// ─── Tests ───

func TestCreateRequiresChatMembership(t *testing.T) {
	svc, _, _ := newTestService(time.Hour)

	_, err := svc.Create(context.Background(), "room", "mallory")
	if !errors.Is(err, pkg.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-member, got %v", err)
	}
}

func TestCreateNotifiesOtherMembers(t *testing.T) {
	svc, _, hub := newTestService(time.Hour)
	ctx := context.Background()

	summary, err := svc.Create(ctx, "room", "alice")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if summary.Status != models.CallStatusOngoing {
		t.Errorf("expected ongoing status, got %s", summary.Status)
	}
	if summary.CallerID != "alice" {
		t.Errorf("expected caller alice, got %s", summary.CallerID)
	}

	if got := len(hub.eventsFor("bob", ws.OpCallIncoming)); got != 1 {
		t.Errorf("expected 1 incoming event for bob, got %d", got)
	}
	if got := len(hub.eventsFor("carol", ws.OpCallIncoming)); got != 1 {
		t.Errorf("expected 1 incoming event for carol, got %d", got)
	}
	if got := len(hub.eventsFor("alice", ws.OpCallIncoming)); got != 0 {
		t.Errorf("caller must not receive incoming event, got %d", got)
	}
}

// Tam yaşam döngüsü: create → offer → answer → ice (flush) → end.
func TestCallLifecycle(t *testing.T) {
	svc, repo, hub := newTestService(time.Hour)
	ctx := context.Background()

	summary, err := svc.Create(ctx, "room", "alice")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	callID := summary.ID

	// Bob offer gönderir → implicit join + relay.
	summary, err = svc.Offer(ctx, callID, "bob", "alice", rawSDP("offer"))
	if err != nil {
		t.Fatalf("offer failed: %v", err)
	}
	if len(summary.Participants) != 2 {
		t.Errorf("expected 2 participants after offer, got %d", len(summary.Participants))
	}
	if got := len(hub.eventsFor("alice", ws.OpCallOfferReceived)); got != 1 {
		t.Fatalf("expected 1 offer relay to alice, got %d", got)
	}

	// Alice cevaplar → relay, ama flush henüz yok.
	if _, err := svc.Answer(ctx, callID, "alice", "bob", rawSDP("answer")); err != nil {
		t.Fatalf("answer failed: %v", err)
	}
	if got := len(hub.eventsFor("bob", ws.OpCallAnswerReceived)); got != 1 {
		t.Fatalf("expected 1 answer relay to bob, got %d", got)
	}
	if got := len(hub.eventsFor("alice", ws.OpCallIceReceived)); got != 0 {
		t.Errorf("no candidates should flow before any are queued, got %d", got)
	}

	// Bob (offerer) candidate gönderir → link complete → anında flush.
	if _, err := svc.AddCandidate(ctx, callID, "bob", "alice", json.RawMessage(`{"candidate":"c1"}`)); err != nil {
		t.Fatalf("add candidate failed: %v", err)
	}
	if got := len(hub.eventsFor("alice", ws.OpCallIceReceived)); got != 1 {
		t.Errorf("expected 1 candidate delivered to alice, got %d", got)
	}

	// Alice ayrılır → 1 kişi kalır → arama biter.
	summary, err = svc.End(ctx, callID, "alice")
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if summary.Status != models.CallStatusEnded {
		t.Errorf("expected ended status, got %s", summary.Status)
	}
	if summary.EndedAt == nil {
		t.Error("ended call must have EndedAt set")
	}
	if summary.DurationSeconds == nil {
		t.Error("ended call must have duration")
	}

	stored, err := repo.GetByID(ctx, callID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Status != models.CallStatusEnded {
		t.Errorf("persisted status = %s, want ended", stored.Status)
	}
}

// Glare: (B,A) yönünde offer varken A'nın (A,B) offer'ı reddedilir.
func TestOfferGlareConflict(t *testing.T) {
	svc, _, _ := newTestService(time.Hour)
	ctx := context.Background()

	summary, err := svc.Create(ctx, "room", "alice")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	callID := summary.ID

	if _, err := svc.Offer(ctx, callID, "bob", "alice", rawSDP("offer")); err != nil {
		t.Fatalf("first offer failed: %v", err)
	}

	_, err = svc.Offer(ctx, callID, "alice", "bob", rawSDP("offer"))
	if !errors.Is(err, pkg.ErrGlareConflict) {
		t.Fatalf("expected ErrGlareConflict, got %v", err)
	}

	// Ters çift etkilenmez: alice → carol offer'ı serbesttir.
	if _, err := svc.Offer(ctx, callID, "alice", "carol", rawSDP("offer")); err != nil {
		t.Errorf("unrelated pair offer should succeed: %v", err)
	}
}

func TestAnswerWithoutOffer(t *testing.T) {
	svc, _, _ := newTestService(time.Hour)
	ctx := context.Background()

	summary, err := svc.Create(ctx, "room", "alice")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_, err = svc.Answer(ctx, summary.ID, "bob", "alice", rawSDP("answer"))
	if !errors.Is(err, pkg.ErrOfferNotFound) {
		t.Fatalf("expected ErrOfferNotFound, got %v", err)
	}
}

func TestCandidateWithoutLink(t *testing.T) {
	svc, _, _ := newTestService(time.Hour)
	ctx := context.Background()

	summary, err := svc.Create(ctx, "room", "alice")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_, err = svc.AddCandidate(ctx, summary.ID, "bob", "alice", json.RawMessage(`{"candidate":"c"}`))
	if !errors.Is(err, pkg.ErrNoMatchingOffer) {
		t.Fatalf("expected ErrNoMatchingOffer, got %v", err)
	}
}

// Kuyruk davranışı: answer'dan önceki candidate'lar birikir, flush TEK sefer
// olur ve flush sonrası kuyruklar persist edilmiş session'da boştur.
func TestCandidateQueueFlushedOnce(t *testing.T) {
	svc, repo, hub := newTestService(time.Hour)
	ctx := context.Background()

	summary, err := svc.Create(ctx, "room", "alice")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	callID := summary.ID

	if _, err := svc.Offer(ctx, callID, "bob", "alice", rawSDP("offer")); err != nil {
		t.Fatalf("offer failed: %v", err)
	}

	// Answer yokken candidate'lar kuyruğa girer — henüz teslimat yok.
	for _, c := range []string{"c1", "c2"} {
		if _, err := svc.AddCandidate(ctx, callID, "bob", "alice", json.RawMessage(`{"candidate":"`+c+`"}`)); err != nil {
			t.Fatalf("queue candidate failed: %v", err)
		}
	}
	if got := len(hub.eventsFor("alice", ws.OpCallIceReceived)); got != 0 {
		t.Fatalf("candidates must be queued before answer, got %d deliveries", got)
	}

	if _, err := svc.Answer(ctx, callID, "alice", "bob", rawSDP("answer")); err != nil {
		t.Fatalf("answer failed: %v", err)
	}
	// Flush answer'da değil, bir sonraki candidate'ta tetiklenir.
	if got := len(hub.eventsFor("alice", ws.OpCallIceReceived)); got != 0 {
		t.Fatalf("answer alone must not flush, got %d deliveries", got)
	}

	// Alice (answerer) candidate gönderir → link complete → flush:
	// bob'un 2 kuyruk candidate'ı alice'e, alice'inki bob'a gider.
	if _, err := svc.AddCandidate(ctx, callID, "alice", "bob", json.RawMessage(`{"candidate":"a1"}`)); err != nil {
		t.Fatalf("flush candidate failed: %v", err)
	}
	if got := len(hub.eventsFor("alice", ws.OpCallIceReceived)); got != 2 {
		t.Errorf("expected 2 queued candidates delivered to alice, got %d", got)
	}
	if got := len(hub.eventsFor("bob", ws.OpCallIceReceived)); got != 1 {
		t.Errorf("expected 1 candidate delivered to bob, got %d", got)
	}

	// Flush edilen kuyruklar persist edilmiş halde boş olmalı.
	stored, err := repo.GetByID(ctx, callID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	link := stored.Link("bob", "alice")
	if link == nil {
		t.Fatal("peer link missing after flush")
	}
	if len(link.OffererCandidates) != 0 || len(link.AnswererCandidates) != 0 {
		t.Errorf("queues must be empty after flush: offerer=%d answerer=%d",
			len(link.OffererCandidates), len(link.AnswererCandidates))
	}

	// Sonraki candidate'lar tek tek, anında teslim edilir — eski kuyruk
	// bir daha akmamalı.
	if _, err := svc.AddCandidate(ctx, callID, "bob", "alice", json.RawMessage(`{"candidate":"c3"}`)); err != nil {
		t.Fatalf("post-flush candidate failed: %v", err)
	}
	if got := len(hub.eventsFor("alice", ws.OpCallIceReceived)); got != 3 {
		t.Errorf("expected exactly 3 total deliveries to alice, got %d", got)
	}
	if got := len(hub.eventsFor("bob", ws.OpCallIceReceived)); got != 1 {
		t.Errorf("bob's deliveries must not grow from a re-flush, got %d", got)
	}
}

// Reject eşiği chat üyeliğinden gelir: caller dışındaki herkes reddedince
// arama rejected olur. EndedAt set edilmez — arama hiç kurulmadı.
func TestRejectThreshold(t *testing.T) {
	svc, repo, hub := newTestService(time.Hour)
	ctx := context.Background()

	summary, err := svc.Create(ctx, "room", "alice")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	callID := summary.ID

	summary, err = svc.Reject(ctx, callID, "bob")
	if err != nil {
		t.Fatalf("first reject failed: %v", err)
	}
	if summary.Status != models.CallStatusOngoing {
		t.Errorf("one of two invitees rejected, status should stay ongoing, got %s", summary.Status)
	}

	// Aynı kullanıcının ikinci reject'i eşiğe etki etmez.
	if _, err := svc.Reject(ctx, callID, "bob"); err != nil {
		t.Fatalf("repeated reject failed: %v", err)
	}
	stored, _ := repo.GetByID(ctx, callID)
	if len(stored.RejectedBy) != 1 {
		t.Errorf("duplicate reject must not grow the set, got %d entries", len(stored.RejectedBy))
	}

	summary, err = svc.Reject(ctx, callID, "carol")
	if err != nil {
		t.Fatalf("second reject failed: %v", err)
	}
	if summary.Status != models.CallStatusRejected {
		t.Errorf("all invitees rejected, expected rejected status, got %s", summary.Status)
	}
	if summary.EndedAt != nil {
		t.Error("rejected call must not have EndedAt — it never connected")
	}

	// Caller'a rejected bildirimi gider.
	events := hub.eventsFor("alice", ws.OpCallEnded)
	if len(events) != 1 {
		t.Fatalf("expected 1 ended event for caller, got %d", len(events))
	}
	if data, ok := events[0].Data.(ws.CallEndedData); !ok || data.Reason != "rejected" {
		t.Errorf("expected reason=rejected, got %+v", events[0].Data)
	}
}

// Reddetmiş kullanıcıya offer iletilmez ama state yine kaydedilir.
func TestOfferToRejectedUserSuppressed(t *testing.T) {
	svc, repo, hub := newTestService(time.Hour)
	ctx := context.Background()

	summary, err := svc.Create(ctx, "room", "alice")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	callID := summary.ID

	if _, err := svc.Reject(ctx, callID, "bob"); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	if _, err := svc.Offer(ctx, callID, "alice", "bob", rawSDP("offer")); err != nil {
		t.Fatalf("offer failed: %v", err)
	}
	if got := len(hub.eventsFor("bob", ws.OpCallOfferReceived)); got != 0 {
		t.Errorf("offer to rejected user must not be relayed, got %d", got)
	}

	stored, _ := repo.GetByID(ctx, callID)
	if link := stored.Link("alice", "bob"); link == nil || len(link.Offer) == 0 {
		t.Error("offer must still be recorded in the session")
	}
}

// Terminal session immutable'dır: signal → bad_request, reject/end → no-op.
func TestTerminalCallBehavior(t *testing.T) {
	svc, _, _ := newTestService(time.Hour)
	ctx := context.Background()

	summary, err := svc.Create(ctx, "room", "alice")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	callID := summary.ID

	// Tek katılımcı ayrılınca arama biter.
	summary, err = svc.End(ctx, callID, "alice")
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if summary.Status != models.CallStatusEnded {
		t.Fatalf("expected ended, got %s", summary.Status)
	}
	firstEndedAt := summary.EndedAt

	// Signaling artık reddedilir.
	if _, err := svc.Offer(ctx, callID, "bob", "alice", rawSDP("offer")); !errors.Is(err, pkg.ErrBadRequest) {
		t.Errorf("offer on terminal call: expected ErrBadRequest, got %v", err)
	}
	if _, err := svc.Join(ctx, callID, "bob"); !errors.Is(err, pkg.ErrBadRequest) {
		t.Errorf("join on terminal call: expected ErrBadRequest, got %v", err)
	}

	// Reject ve End idempotent no-op — mevcut durumu döner, EndedAt değişmez.
	summary, err = svc.Reject(ctx, callID, "bob")
	if err != nil {
		t.Errorf("reject on terminal call must be a no-op, got %v", err)
	}
	if summary.Status != models.CallStatusEnded {
		t.Errorf("terminal status must not change, got %s", summary.Status)
	}

	summary, err = svc.End(ctx, callID, "alice")
	if err != nil {
		t.Errorf("repeated end must be a no-op, got %v", err)
	}
	if summary.EndedAt == nil || !summary.EndedAt.Equal(*firstEndedAt) {
		t.Error("EndedAt must be set exactly once")
	}
}

// Ring timeout: kimse katılmazsa arama missed olur ve üyeler haberdar edilir.
func TestRingTimeoutMarksMissed(t *testing.T) {
	svc, repo, hub := newTestService(30 * time.Millisecond)
	ctx := context.Background()

	summary, err := svc.Create(ctx, "room", "alice")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	callID := summary.ID

	// Timer asenkron — durumu poll'la.
	deadline := time.Now().Add(2 * time.Second)
	for {
		stored, err := repo.GetByID(ctx, callID)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if stored.Status == models.CallStatusMissed {
			if stored.EndedAt == nil {
				t.Error("missed call must have EndedAt set")
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("call never became missed, status=%s", stored.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Tüm chat üyelerine call:ended(missed) gider.
	deadline = time.Now().Add(time.Second)
	for {
		events := hub.eventsFor("bob", ws.OpCallEnded)
		if len(events) > 0 {
			if data, ok := events[0].Data.(ws.CallEndedData); !ok || data.Reason != "missed" {
				t.Errorf("expected reason=missed, got %+v", events[0].Data)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("missed notification never delivered")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Birisi katıldıysa ring timeout aramayı missed yapmaz.
func TestRingTimeoutSkippedWhenJoined(t *testing.T) {
	svc, repo, _ := newTestService(30 * time.Millisecond)
	ctx := context.Background()

	summary, err := svc.Create(ctx, "room", "alice")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.Join(ctx, summary.ID, "bob"); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	stored, err := repo.GetByID(ctx, summary.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Status != models.CallStatusOngoing {
		t.Errorf("joined call must stay ongoing past the ring timeout, got %s", stored.Status)
	}
}

// Bağlantı kopunca kullanıcı devam eden aramalarından çıkarılır.
func TestHandleDisconnectEndsCalls(t *testing.T) {
	svc, repo, _ := newTestService(time.Hour)
	ctx := context.Background()

	summary, err := svc.Create(ctx, "room", "alice")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.Join(ctx, summary.ID, "bob"); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	svc.HandleDisconnect("bob")

	stored, err := repo.GetByID(ctx, summary.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.IsParticipant("bob") {
		t.Error("disconnected user must be removed from the call")
	}
	if stored.Status != models.CallStatusEnded {
		t.Errorf("call with one remaining participant must end, got %s", stored.Status)
	}
}

// Eşzamanlı candidate'lar kaybolmaz — keymutex mutasyonları serialize eder.
func TestConcurrentCandidatesSerialized(t *testing.T) {
	svc, repo, hub := newTestService(time.Hour)
	ctx := context.Background()

	summary, err := svc.Create(ctx, "room", "alice")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	callID := summary.ID

	if _, err := svc.Offer(ctx, callID, "bob", "alice", rawSDP("offer")); err != nil {
		t.Fatalf("offer failed: %v", err)
	}
	if _, err := svc.Answer(ctx, callID, "alice", "bob", rawSDP("answer")); err != nil {
		t.Fatalf("answer failed: %v", err)
	}

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.AddCandidate(ctx, callID, "bob", "alice", json.RawMessage(`{"candidate":"x"}`)); err != nil {
				t.Errorf("concurrent candidate failed: %v", err)
			}
		}()
	}
	wg.Wait()

	// Link complete olduğundan her candidate anında flush edilir — hepsi
	// tam bir kez teslim edilmeli.
	if got := len(hub.eventsFor("alice", ws.OpCallIceReceived)); got != n {
		t.Errorf("expected %d deliveries to alice, got %d", n, got)
	}

	stored, _ := repo.GetByID(ctx, callID)
	link := stored.Link("bob", "alice")
	if link == nil || len(link.OffererCandidates) != 0 {
		t.Error("no candidates should remain queued after flushes")
	}
}

// Eşzamanlı offer(A→B) + reject(B): her iki mutasyon da kaybolmadan
// persist edilir — mutex hangi sırada işlerse işlesin sonuç aynıdır.
func TestConcurrentOfferAndReject(t *testing.T) {
	svc, repo, _ := newTestService(time.Hour)
	ctx := context.Background()

	summary, err := svc.Create(ctx, "room", "alice")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	callID := summary.ID

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, err := svc.Offer(ctx, callID, "bob", "carol", rawSDP("offer")); err != nil {
			t.Errorf("concurrent offer failed: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if _, err := svc.Reject(ctx, callID, "carol"); err != nil {
			t.Errorf("concurrent reject failed: %v", err)
		}
	}()
	wg.Wait()

	stored, err := repo.GetByID(ctx, callID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	// Offer kaydı: reject önce işlendiyse relay bastırılır ama state yazılır.
	if link := stored.Link("bob", "carol"); link == nil || len(link.Offer) == 0 {
		t.Error("offer must be recorded regardless of interleaving")
	}
	if !stored.HasRejected("carol") {
		t.Error("rejection must be recorded regardless of interleaving")
	}
	// Tek reddeden carol — eşik dolmadı, arama devam eder.
	if stored.Status != models.CallStatusOngoing {
		t.Errorf("one rejection must not terminate the call, got %s", stored.Status)
	}
}

func TestListForChatRequiresMembership(t *testing.T) {
	svc, _, _ := newTestService(time.Hour)

	_, err := svc.ListForChat(context.Background(), "room", "mallory", 10)
	if !errors.Is(err, pkg.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
