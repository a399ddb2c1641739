// Package keymutex, key başına FIFO sıralı çalışan bir async mutex sağlar.
//
// Neden var?
// Arama (call) kaydı tek bir SQLite satırında load-mutate-save ile güncellenir
// ve aynı aramaya ait event'ler (offer + reject, iki ICE candidate, vb.)
// mantıksal olarak eşzamanlı gelebilir. Multi-statement transaction'a
// sığmayan read-modify-write dizilerinin interleave olmaması için tüm
// mutasyonlar call id üzerinden serialize edilir.
//
// Garanti:
//   - Aynı key için task'lar submit sırasıyla, teker teker çalışır (FIFO).
//   - Farklı key'ler birbirinden bağımsız, eşzamanlı çalışır.
//   - Bir task'ın error dönmesi sonraki task'ları etkilemez — zincir her
//     durumda ilerler.
//
// Garanti DEĞİL:
//   - Process restart'ında state korunmaz (tamamen in-memory).
//   - Cross-process serialization — bir aramanın event'leri tek process'e
//     gelmeli (sticky routing). Dağıtık deployment için distributed lock
//     veya store seviyesinde optimistic versioning gerekir.
package keymutex

import "sync"

// KeyMutex, key → bekleme zinciri kuyruğu tutan registry.
// Global değil, instance — testler bağımsız registry'ler kurabilir.
type KeyMutex struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
}

// New, boş bir KeyMutex oluşturur.
func New() *KeyMutex {
	return &KeyMutex{
		tails: make(map[string]chan struct{}),
	}
}

// RunExclusive, fn'i verilen key için exclusive olarak çalıştırır ve fn'in
// error'unu aynen döner.
//
// Çalışma şekli: her çağrı kendine bir "done" kanalı yaratır ve registry'de
// key'in kuyruk sonuna (tail) yazar. Önceki tail varsa onun kapanmasını
// bekler — böylece sıra, registry lock'unun alınma sırasıyla birebir aynıdır.
// fn bitince (error veya panic fark etmez) kendi kanalı kapanır ve sıradaki
// task devam eder.
//
// Entry temizliği: task bittiğinde tail hâlâ kendisiyse map'ten silinir —
// kullanılmayan key'ler memory'de birikmez.
func (m *KeyMutex) RunExclusive(key string, fn func() error) error {
	done := make(chan struct{})

	m.mu.Lock()
	prev := m.tails[key]
	m.tails[key] = done
	m.mu.Unlock()

	if prev != nil {
		<-prev
	}

	defer func() {
		close(done)

		m.mu.Lock()
		if m.tails[key] == done {
			delete(m.tails, key)
		}
		m.mu.Unlock()
	}()

	return fn()
}

// Pending, verilen key için kuyrukta veya çalışmakta task olup olmadığını
// döner. Sadece gözlemleme amaçlı (test ve debug).
func (m *KeyMutex) Pending(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tails[key]
	return ok
}
