package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

type fakeDeduper struct {
	mu      sync.Mutex
	seen    map[string]bool
	removed []string
	addErr  error
}

func newFakeDeduper() *fakeDeduper {
	return &fakeDeduper{seen: make(map[string]bool)}
}

func (f *fakeDeduper) Add(ctx context.Context, userID, key string) (bool, error) {
	results, err := f.AddMany(ctx, userID, []string{key})
	if err != nil {
		return false, err
	}
	return results[0], nil
}

func (f *fakeDeduper) Remove(ctx context.Context, userID, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.seen, userID+":"+key)
	f.removed = append(f.removed, key)
	return nil
}

func (f *fakeDeduper) AddMany(ctx context.Context, userID string, keys []string) ([]bool, error) {
	if f.addErr != nil {
		return nil, f.addErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]bool, len(keys))
	for i, k := range keys {
		full := userID + ":" + k
		if !f.seen[full] {
			f.seen[full] = true
			results[i] = true
		}
	}
	return results, nil
}

func (f *fakeDeduper) Removed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.removed))
	copy(out, f.removed)
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("condition not met within timeout")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNotifyDeliversAsync(t *testing.T) {
	store := &mockStore{}
	deduper := newFakeDeduper()
	initNotifier(store, deduper, log.New())
	t.Cleanup(shutdownNotifier)

	notify(context.Background(), "user",
		[]string{"share:b1:luis@example.com"},
		[]domain.Notification{{Recipient: "luis@example.com", Title: "Tablero compartido"}},
		[]domain.Event{newEvent(domain.EntityBoard, "b1", domain.EventBoardShared, nil)})

	waitFor(t, time.Second, func() bool {
		return len(store.Appended()) == 1 && len(store.Events()) == 1
	})

	notes := store.Appended()
	if notes[0].Recipient != "luis@example.com" {
		t.Fatalf("unexpected recipient: %q", notes[0].Recipient)
	}
	events := store.Events()
	if events[0].Type != domain.EventBoardShared {
		t.Fatalf("unexpected event type: %q", events[0].Type)
	}
}

func TestNotifyDropsDuplicateKeys(t *testing.T) {
	store := &mockStore{}
	deduper := newFakeDeduper()
	initNotifier(store, deduper, log.New())
	t.Cleanup(shutdownNotifier)

	note := domain.Notification{Recipient: "luis@example.com", Title: "Tablero compartido"}
	notify(context.Background(), "user", []string{"share:b1:luis@example.com"}, []domain.Notification{note}, nil)
	notify(context.Background(), "user", []string{"share:b1:luis@example.com"}, []domain.Notification{note}, nil)

	waitFor(t, time.Second, func() bool {
		return len(store.Appended()) >= 1
	})
	time.Sleep(50 * time.Millisecond)

	if got := len(store.Appended()); got != 1 {
		t.Fatalf("expected duplicate notification to be dropped, got %d deliveries", got)
	}
}

func TestDeliverJobRollsBackKeysOnFailure(t *testing.T) {
	store := &mockStore{appendErr: errors.New("table unavailable")}
	deduper := newFakeDeduper()
	initNotifier(store, deduper, log.New())
	t.Cleanup(shutdownNotifier)

	if _, err := deduper.Add(context.Background(), "user", "share:b1:luis@example.com"); err != nil {
		t.Fatalf("seed key: %v", err)
	}

	job := notifyJob{
		userID: "user",
		notes:  []domain.Notification{{Recipient: "luis@example.com"}},
		added:  []string{"share:b1:luis@example.com"},
	}
	if err := deliverJob(job); err == nil {
		t.Fatal("expected delivery error")
	}

	removed := deduper.Removed()
	if len(removed) != 1 || removed[0] != "share:b1:luis@example.com" {
		t.Fatalf("expected key rollback, got %v", removed)
	}
}

func TestNotifyInlineFallbackWhenNotInitialized(t *testing.T) {
	// Without init, notify must be a no-op rather than a panic.
	shutdownNotifier()
	notify(context.Background(), "user", nil,
		[]domain.Notification{{Recipient: "luis@example.com"}}, nil)
}

func TestTryEnqueueNotifyClosedChannel(t *testing.T) {
	store := &mockStore{}
	initNotifier(store, newFakeDeduper(), log.New())
	ch := jobs
	shutdownNotifier()

	// The channel captured before shutdown is closed; sends must not panic.
	if ok, closed := trySendNonBlocking(ch, notifyJob{}); ok || !closed {
		t.Fatalf("expected closed channel detection, got ok=%v closed=%v", ok, closed)
	}
}
