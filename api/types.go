package api

import (
	"context"

	"taskboard-api/domain"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	EnsureUser(ctx context.Context, identity domain.Identity) (domain.User, error)
	FetchUser(ctx context.Context, userID string) (domain.User, error)
	FetchUserByEmail(ctx context.Context, email string) (domain.User, error)
	FetchWorkspace(ctx context.Context, userID string) (domain.Workspace, []domain.BoardSummary, error)

	CreateBoard(ctx context.Context, userID, title, description string) (domain.Board, error)
	FetchBoard(ctx context.Context, boardID string) (domain.Board, error)
	UpdateBoard(ctx context.Context, boardID string, title, description *string) (domain.Board, error)
	DeleteBoard(ctx context.Context, boardID string) error
	ReplaceLists(ctx context.Context, boardID string, lists []domain.List, baseVersion int64) (domain.Board, error)

	ShareBoard(ctx context.Context, ownerID, boardID, granteeEmail string, role domain.Role) (domain.ShareResult, error)
	SharedBoardsForUser(ctx context.Context, userID string) ([]domain.SharedBoard, error)
	SharedBoardsBetween(ctx context.Context, emailA, emailB string) ([]domain.Board, error)

	CreateFriendRequest(ctx context.Context, fromEmail, toEmail string) error
	AcceptFriendRequest(ctx context.Context, toEmail, fromEmail string) error
	ListFriendRequests(ctx context.Context, toEmail string) ([]domain.FriendRequest, error)
	RemoveFriend(ctx context.Context, selfEmail, otherEmail string) error
	ListFriends(ctx context.Context, email string) ([]domain.Profile, error)

	AppendNotifications(ctx context.Context, notes []domain.Notification) error
	ListNotifications(ctx context.Context, email string) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, email, id string) error

	EnqueueEvents(ctx context.Context, userID string, events []domain.Event) error
}

// NotFoundError marks errors mapped to HTTP 404: missing boards, users and
// requests, and owner-only operations attempted by someone else.
type NotFoundError interface {
	error
	NotFound()
}

// ConflictError marks errors mapped to HTTP 400: duplicate grants and
// duplicate pending friend requests.
type ConflictError interface {
	error
	Conflict()
}

// StaleVersionError marks errors mapped to HTTP 409: a lists replace whose
// base version no longer matches the persisted board.
type StaleVersionError interface {
	error
	StaleVersion()
}

// Authenticator is implemented by types able to extract the verified caller
// from the Authorization header.
type Authenticator interface {
	IdentityFromAuthHeader(string) (domain.Identity, error)
}

// Deduper prevents duplicate notification delivery across handler retries.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when downstream delivery fails.
	Remove(ctx context.Context, userID, key string) error
	// AddMany records the keys in one round trip, reporting which were new.
	AddMany(ctx context.Context, userID string, keys []string) ([]bool, error)
}
