package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"taskboard-api/domain"
)

type backend interface {
	FetchBoard(ctx context.Context, boardID string) (domain.Board, error)
	ListNotifications(ctx context.Context, email string) ([]domain.Notification, error)
	ReplaceLists(ctx context.Context, boardID string, lists []domain.List, baseVersion int64) (domain.Board, error)
	UpdateBoard(ctx context.Context, boardID string, title, description *string) (domain.Board, error)
	DeleteBoard(ctx context.Context, boardID string) error
	ShareBoard(ctx context.Context, ownerID, boardID, granteeEmail string, role domain.Role) (domain.ShareResult, error)
	AppendNotifications(ctx context.Context, notes []domain.Notification) error
	MarkNotificationRead(ctx context.Context, email, id string) error
}

// Cache wraps a Storage instance with Redis-backed caching for board reads
// and notification listings. Mutations pass through and evict.
type Cache struct {
	*Storage
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Storage wrapper using the provided Redis client
// and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}

	c := &Cache{
		base:  base,
		redis: client,
		ttl:   ttl,
	}
	if s, ok := base.(*Storage); ok {
		c.Storage = s
	}
	return c
}

func (c *Cache) FetchBoard(ctx context.Context, boardID string) (domain.Board, error) {
	if board, ok := c.loadBoardFromCache(ctx, boardID); ok {
		return board, nil
	}

	board, err := c.base.FetchBoard(ctx, boardID)
	if err != nil {
		return domain.Board{}, err
	}

	c.storeBoard(ctx, board)
	return board, nil
}

func (c *Cache) ListNotifications(ctx context.Context, email string) ([]domain.Notification, error) {
	if notes, ok := c.loadNotificationsFromCache(ctx, email); ok {
		return notes, nil
	}

	notes, err := c.base.ListNotifications(ctx, email)
	if err != nil {
		return nil, err
	}

	c.storeNotifications(ctx, email, notes)
	return notes, nil
}

func (c *Cache) ReplaceLists(ctx context.Context, boardID string, lists []domain.List, baseVersion int64) (domain.Board, error) {
	board, err := c.base.ReplaceLists(ctx, boardID, lists, baseVersion)
	if err != nil {
		return domain.Board{}, err
	}
	c.evictBoard(ctx, boardID)
	return board, nil
}

func (c *Cache) UpdateBoard(ctx context.Context, boardID string, title, description *string) (domain.Board, error) {
	board, err := c.base.UpdateBoard(ctx, boardID, title, description)
	if err != nil {
		return domain.Board{}, err
	}
	c.evictBoard(ctx, boardID)
	return board, nil
}

func (c *Cache) DeleteBoard(ctx context.Context, boardID string) error {
	if err := c.base.DeleteBoard(ctx, boardID); err != nil {
		return err
	}
	c.evictBoard(ctx, boardID)
	return nil
}

func (c *Cache) ShareBoard(ctx context.Context, ownerID, boardID, granteeEmail string, role domain.Role) (domain.ShareResult, error) {
	res, err := c.base.ShareBoard(ctx, ownerID, boardID, granteeEmail, role)
	if err != nil {
		return domain.ShareResult{}, err
	}
	c.evictBoard(ctx, boardID)
	return res, nil
}

func (c *Cache) AppendNotifications(ctx context.Context, notes []domain.Notification) error {
	if err := c.base.AppendNotifications(ctx, notes); err != nil {
		return err
	}
	for _, note := range notes {
		c.evictNotifications(ctx, note.Recipient)
	}
	return nil
}

func (c *Cache) MarkNotificationRead(ctx context.Context, email, id string) error {
	if err := c.base.MarkNotificationRead(ctx, email, id); err != nil {
		return err
	}
	c.evictNotifications(ctx, email)
	return nil
}

func (c *Cache) loadBoardFromCache(ctx context.Context, boardID string) (domain.Board, bool) {
	if c.redis == nil {
		return domain.Board{}, false
	}
	data, err := c.redis.Get(ctx, boardCacheKey(boardID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, boardCacheKey(boardID)).Err()
		}
		return domain.Board{}, false
	}
	var board domain.Board
	if err := json.Unmarshal(data, &board); err != nil {
		_ = c.redis.Del(ctx, boardCacheKey(boardID)).Err()
		return domain.Board{}, false
	}
	return board, true
}

func (c *Cache) loadNotificationsFromCache(ctx context.Context, email string) ([]domain.Notification, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, notificationsCacheKey(email)).Bytes()
	if err != nil {
		if err != redis.Nil {
			_ = c.redis.Del(ctx, notificationsCacheKey(email)).Err()
		}
		return nil, false
	}
	var notes []domain.Notification
	if err := json.Unmarshal(data, &notes); err != nil {
		_ = c.redis.Del(ctx, notificationsCacheKey(email)).Err()
		return nil, false
	}
	return notes, true
}

func (c *Cache) storeBoard(ctx context.Context, board domain.Board) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(board)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, boardCacheKey(board.ID), data, c.ttl).Err()
}

func (c *Cache) storeNotifications(ctx context.Context, email string, notes []domain.Notification) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(notes)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, notificationsCacheKey(email), data, c.ttl).Err()
}

func (c *Cache) evictBoard(ctx context.Context, boardID string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, boardCacheKey(boardID)).Result()
}

func (c *Cache) evictNotifications(ctx context.Context, email string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, notificationsCacheKey(email)).Result()
}

func boardCacheKey(boardID string) string {
	return "board:" + boardID
}

func notificationsCacheKey(email string) string {
	return "notifications:" + email
}
