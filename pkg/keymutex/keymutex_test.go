package keymutex

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// Aynı key'e gönderilen task'lar submit sırasıyla, teker teker çalışmalı.
func TestRunExclusive_SerializesSameKey(t *testing.T) {
	m := New()

	var mu sync.Mutex
	var order []int
	running := 0
	maxRunning := 0

	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < 20; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			<-start
			// Submit sırasını deterministik yapmak için task'lar sırayla
			// kuyruğa girecek şekilde küçük bir gecikme ile başlatılır.
			time.Sleep(time.Duration(i) * 2 * time.Millisecond)
			_ = m.RunExclusive("call-1", func() error {
				mu.Lock()
				running++
				if running > maxRunning {
					maxRunning = running
				}
				order = append(order, i)
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
		}()
	}

	close(start)
	wg.Wait()

	if maxRunning != 1 {
		t.Fatalf("expected at most 1 task in flight, saw %d", maxRunning)
	}
	if len(order) != 20 {
		t.Fatalf("expected 20 tasks to run, got %d", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("tasks ran out of submission order: %v", order)
		}
	}
}

// Farklı key'ler birbirini bloklamamalı.
func TestRunExclusive_IndependentKeys(t *testing.T) {
	m := New()

	blockerStarted := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = m.RunExclusive("call-a", func() error {
			close(blockerStarted)
			<-release
			return nil
		})
	}()

	<-blockerStarted

	done := make(chan struct{})
	go func() {
		_ = m.RunExclusive("call-b", func() error { return nil })
		close(done)
	}()

	select {
	case <-done:
		// call-b, call-a'yı beklemedi
	case <-time.After(time.Second):
		t.Fatal("task for independent key was blocked")
	}

	close(release)
}

// Bir task'ın error dönmesi zinciri zehirlememeli — sonraki task çalışmalı
// ve kendi sonucunu almalı.
func TestRunExclusive_ErrorDoesNotPoisonChain(t *testing.T) {
	m := New()
	boom := errors.New("boom")

	if err := m.RunExclusive("call-1", func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	ran := false
	if err := m.RunExclusive("call-1", func() error { ran = true; return nil }); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !ran {
		t.Fatal("subsequent task did not run after a failed task")
	}
}

// Task bittikten sonra entry map'ten silinmeli (memory bound).
func TestRunExclusive_PrunesSettledEntries(t *testing.T) {
	m := New()

	_ = m.RunExclusive("call-1", func() error { return nil })

	if m.Pending("call-1") {
		t.Fatal("settled entry was not pruned")
	}
}
