package storage

import (
	"context"
	"testing"
	"time"

	"taskboard-api/domain"
)

func TestAppendAndListNotificationsNewestFirst(t *testing.T) {
	s := newTestStorage()
	ctx := context.Background()

	older := domain.Notification{
		Recipient: "ana@example.com",
		Title:     "Solicitud de amistad",
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	newer := domain.Notification{
		Recipient: "ana@example.com",
		Title:     "Tablero compartido",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.AppendNotifications(ctx, []domain.Notification{older, newer}); err != nil {
		t.Fatalf("append: %v", err)
	}

	notes, err := s.ListNotifications(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(notes))
	}
	if notes[0].Title != "Tablero compartido" || notes[1].Title != "Solicitud de amistad" {
		t.Fatalf("expected newest first, got %+v", notes)
	}
	for _, n := range notes {
		if n.ID == "" {
			t.Fatalf("ID must be minted on append: %+v", n)
		}
		if n.Read {
			t.Fatalf("new notifications must be unread: %+v", n)
		}
	}
}

func TestAppendNotificationsScopedToRecipient(t *testing.T) {
	s := newTestStorage()
	ctx := context.Background()

	if err := s.AppendNotifications(ctx, []domain.Notification{
		{Recipient: "ana@example.com", Title: "para Ana"},
		{Recipient: "luis@example.com", Title: "para Luis"},
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	notes, err := s.ListNotifications(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(notes) != 1 || notes[0].Title != "para Ana" {
		t.Fatalf("listing must be scoped to the recipient: %+v", notes)
	}
}

func TestAppendNotificationsIdempotentOnExistingID(t *testing.T) {
	s := newTestStorage()
	ctx := context.Background()

	note := domain.Notification{
		ID:        "fixed-id",
		Recipient: "ana@example.com",
		Title:     "Tablero compartido",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.AppendNotifications(ctx, []domain.Notification{note}); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if err := s.AppendNotifications(ctx, []domain.Notification{note}); err != nil {
		t.Fatalf("second append must tolerate the existing row: %v", err)
	}

	notes, err := s.ListNotifications(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("expected a single entry, got %d", len(notes))
	}
}

func TestMarkNotificationRead(t *testing.T) {
	s := newTestStorage()
	ctx := context.Background()

	if err := s.AppendNotifications(ctx, []domain.Notification{
		{Recipient: "ana@example.com", Title: "Tablero compartido"},
	}); err != nil {
		t.Fatalf("append: %v", err)
	}
	notes, err := s.ListNotifications(ctx, "ana@example.com")
	if err != nil || len(notes) != 1 {
		t.Fatalf("list: %v (%d)", err, len(notes))
	}

	if err := s.MarkNotificationRead(ctx, "ana@example.com", notes[0].ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	// Marking again must succeed without another write.
	if err := s.MarkNotificationRead(ctx, "ana@example.com", notes[0].ID); err != nil {
		t.Fatalf("second mark read: %v", err)
	}

	after, err := s.ListNotifications(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("list after: %v", err)
	}
	if !after[0].Read {
		t.Fatalf("expected read flag set: %+v", after[0])
	}
}

func TestMarkNotificationReadMissing(t *testing.T) {
	s := newTestStorage()

	err := s.MarkNotificationRead(context.Background(), "ana@example.com", "nope")
	if _, ok := err.(NotFoundError); !ok {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestNotificationIDOrdersNewestFirst(t *testing.T) {
	earlier := notificationID(time.Now().UTC().Add(-time.Minute))
	later := notificationID(time.Now().UTC())
	if later >= earlier {
		t.Fatalf("later creation must sort before earlier: %q vs %q", later, earlier)
	}
}
