package storage

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/google/uuid"

	"taskboard-api/domain"
)

// notificationID builds a row key that sorts newest-first within the
// recipient's partition: table rows come back in ascending key order, so
// the creation time is inverted. A short random suffix keeps same-tick
// appends distinct.
func notificationID(createdAt time.Time) string {
	return fmt.Sprintf("%020d-%s", math.MaxInt64-createdAt.UnixNano(), uuid.NewString()[:8])
}

// AppendNotifications appends entries to each recipient's log. IDs are
// minted here when absent so the append is the single writer of the key.
func (s *Storage) AppendNotifications(ctx context.Context, notes []domain.Notification) error {
	for i := range notes {
		note := &notes[i]
		if note.CreatedAt.IsZero() {
			note.CreatedAt = time.Now().UTC()
		}
		if note.ID == "" {
			note.ID = notificationID(note.CreatedAt)
		}
		payload, err := encodeEntity(note.Recipient, note.ID, note)
		if err != nil {
			return err
		}
		if _, err := s.notifications.AddEntity(ctx, payload, nil); err != nil {
			if isStatus(err, 409) {
				continue
			}
			return err
		}
	}
	return nil
}

// ListNotifications returns the recipient's full log, newest first.
func (s *Storage) ListNotifications(ctx context.Context, email string) ([]domain.Notification, error) {
	filter := "PartitionKey eq '" + escapeFilterValue(email) + "'"
	pager := s.notifications.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	notes := []domain.Notification{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var note domain.Notification
			if err := decodeEntity(e, &note); err != nil {
				return nil, err
			}
			notes = append(notes, note)
		}
	}
	return notes, nil
}

// MarkNotificationRead flips the read flag. Marking an already-read entry
// succeeds without a write.
func (s *Storage) MarkNotificationRead(ctx context.Context, email, id string) error {
	resp, err := s.notifications.GetEntity(ctx, email, id, nil)
	if err != nil {
		if isStatus(err, 404) {
			return NotFoundError{Message: msgRequestNotFound}
		}
		return err
	}
	var note domain.Notification
	if err := decodeEntity(resp.Value, &note); err != nil {
		return err
	}
	if note.Read {
		return nil
	}
	note.Read = true
	payload, err := encodeEntity(email, id, note)
	if err != nil {
		return err
	}
	etag := resp.ETag
	_, err = s.notifications.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{
		IfMatch:    &etag,
		UpdateMode: aztables.UpdateModeReplace,
	})
	return err
}
