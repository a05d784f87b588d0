package storage

import (
	"context"
	"sort"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"taskboard-api/domain"
)

func friendRequestPartition(toEmail string) string {
	return friendReqPrefix + toEmail
}

// CreateFriendRequest records a pending request from one email to another.
// The (to, from) entity key enforces at most one pending request per pair:
// an existing pending row is a conflict, while an accepted row from an
// earlier round is overwritten so the pair can reconnect.
func (s *Storage) CreateFriendRequest(ctx context.Context, fromEmail, toEmail string) error {
	if _, err := s.FetchUserByEmail(ctx, toEmail); err != nil {
		return err
	}

	req := domain.FriendRequest{
		From:      fromEmail,
		To:        toEmail,
		Status:    domain.FriendRequestPending,
		CreatedAt: time.Now().UTC(),
	}
	payload, err := encodeEntity(friendRequestPartition(toEmail), fromEmail, req)
	if err != nil {
		return err
	}
	_, err = s.users.AddEntity(ctx, payload, nil)
	if err == nil {
		return nil
	}
	if !isStatus(err, 409) {
		return err
	}

	existing, _, gerr := s.getFriendRequest(ctx, toEmail, fromEmail)
	if gerr != nil {
		return gerr
	}
	if existing.Status == domain.FriendRequestPending {
		return ConflictError{Message: msgDuplicateFriend}
	}
	_, err = s.users.UpsertEntity(ctx, payload, nil)
	return err
}

func (s *Storage) getFriendRequest(ctx context.Context, toEmail, fromEmail string) (domain.FriendRequest, aztables.GetEntityResponse, error) {
	resp, err := s.users.GetEntity(ctx, friendRequestPartition(toEmail), fromEmail, nil)
	if err != nil {
		if isStatus(err, 404) {
			return domain.FriendRequest{}, resp, NotFoundError{Message: msgRequestNotFound}
		}
		return domain.FriendRequest{}, resp, err
	}
	var req domain.FriendRequest
	if err := decodeEntity(resp.Value, &req); err != nil {
		return domain.FriendRequest{}, resp, err
	}
	return req, resp, nil
}

// AcceptFriendRequest flips a pending request to accepted and adds each
// email to the other's friend set. The set inserts are idempotent, so a
// retry after a partial failure converges.
func (s *Storage) AcceptFriendRequest(ctx context.Context, toEmail, fromEmail string) error {
	req, resp, err := s.getFriendRequest(ctx, toEmail, fromEmail)
	if err != nil {
		return err
	}
	if req.Status != domain.FriendRequestPending {
		return NotFoundError{Message: msgRequestNotFound}
	}

	req.Status = domain.FriendRequestAccepted
	payload, err := encodeEntity(friendRequestPartition(toEmail), fromEmail, req)
	if err != nil {
		return err
	}
	etag := resp.ETag
	if _, err := s.users.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{
		IfMatch:    &etag,
		UpdateMode: aztables.UpdateModeReplace,
	}); err != nil {
		return err
	}

	if err := s.addFriendByEmail(ctx, toEmail, fromEmail); err != nil {
		return err
	}
	return s.addFriendByEmail(ctx, fromEmail, toEmail)
}

func (s *Storage) addFriendByEmail(ctx context.Context, selfEmail, friendEmail string) error {
	user, err := s.FetchUserByEmail(ctx, selfEmail)
	if err != nil {
		return err
	}
	if user.HasFriend(friendEmail) {
		return nil
	}
	user.AddFriend(friendEmail)
	return s.putUser(ctx, user)
}

func (s *Storage) removeFriendByEmail(ctx context.Context, selfEmail, friendEmail string) error {
	user, err := s.FetchUserByEmail(ctx, selfEmail)
	if err != nil {
		if _, ok := err.(NotFoundError); ok {
			return nil
		}
		return err
	}
	if !user.HasFriend(friendEmail) {
		return nil
	}
	user.RemoveFriend(friendEmail)
	return s.putUser(ctx, user)
}

// ListFriendRequests returns the pending requests addressed to toEmail,
// oldest first. Accepted rows stay in the partition but are filtered out.
func (s *Storage) ListFriendRequests(ctx context.Context, toEmail string) ([]domain.FriendRequest, error) {
	filter := "PartitionKey eq '" + escapeFilterValue(friendRequestPartition(toEmail)) + "'"
	pager := s.users.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	requests := []domain.FriendRequest{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var req domain.FriendRequest
			if err := decodeEntity(e, &req); err != nil {
				return nil, err
			}
			if req.Status != domain.FriendRequestPending {
				continue
			}
			requests = append(requests, req)
		}
	}
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].CreatedAt.Before(requests[j].CreatedAt)
	})
	return requests, nil
}

// RemoveFriend drops the friendship from both sides. Removing an absent
// friendship is treated as already satisfied.
func (s *Storage) RemoveFriend(ctx context.Context, selfEmail, otherEmail string) error {
	if err := s.removeFriendByEmail(ctx, selfEmail, otherEmail); err != nil {
		return err
	}
	return s.removeFriendByEmail(ctx, otherEmail, selfEmail)
}

// ListFriends resolves the user's friend set to public profiles. Friends
// whose account disappeared are listed by email alone.
func (s *Storage) ListFriends(ctx context.Context, email string) ([]domain.Profile, error) {
	user, err := s.FetchUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Profile, 0, len(user.Friends))
	for _, friendEmail := range user.Friends {
		friend, err := s.FetchUserByEmail(ctx, friendEmail)
		if err != nil {
			if _, ok := err.(NotFoundError); ok {
				out = append(out, domain.Profile{Email: friendEmail})
				continue
			}
			return nil, err
		}
		out = append(out, friend.Profile())
	}
	return out, nil
}
