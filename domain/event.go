package domain

import "github.com/bytedance/sonic"

// Event entity types published to the downstream feed.
const (
	EntityBoard  = "board"
	EntityFriend = "friend"
)

// Event types.
const (
	EventBoardCreated   = "board-created"
	EventBoardDeleted   = "board-deleted"
	EventBoardShared    = "board-shared"
	EventListsReplaced  = "lists-replaced"
	EventFriendRequest  = "friend-request-sent"
	EventFriendAccepted = "friend-request-accepted"
)

// Event describes a domain mutation for downstream consumers. ID doubles as
// the idempotency key when the event is published to the feed queue.
type Event struct {
	ID         string                 `json:"id"`
	EntityType string                 `json:"entityType"`
	EntityID   string                 `json:"entityId"`
	Type       string                 `json:"type"`
	Data       sonic.NoCopyRawMessage `json:"data,omitempty"`
	Timestamp  int64                  `json:"timestamp"`
}

// EventEnvelope wraps an event with the user who performed it.
type EventEnvelope struct {
	UserID string `json:"userId"`
	Event  Event  `json:"event"`
}
