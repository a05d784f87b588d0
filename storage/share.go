package storage

import (
	"context"
	"errors"
	"time"

	"taskboard-api/domain"
)

// ShareBoard grants granteeEmail a role-scoped membership on the board.
// Only the board owner may share; non-owner members are rejected the same
// way as a missing board. The grant is two-sided: board.members and the
// grantee's sharedBoards must change together, so the board-side write goes
// first and a grantee-side failure compensates by removing the member again.
func (s *Storage) ShareBoard(ctx context.Context, ownerID, boardID, granteeEmail string, role domain.Role) (domain.ShareResult, error) {
	board, boardETag, err := s.getBoard(ctx, boardID)
	if err != nil {
		return domain.ShareResult{}, err
	}
	if board.Owner != ownerID {
		return domain.ShareResult{}, NotFoundError{Message: msgBoardNotFound}
	}

	grantee, err := s.FetchUserByEmail(ctx, granteeEmail)
	if err != nil {
		return domain.ShareResult{}, err
	}
	if grantee.ID == ownerID {
		return domain.ShareResult{}, ConflictError{Message: msgAlreadyShared}
	}
	if _, member := board.MemberRole(grantee.ID); member {
		return domain.ShareResult{}, ConflictError{Message: msgAlreadyShared}
	}

	board.Members = append(board.Members, domain.Member{
		User:     grantee.ID,
		Role:     role,
		JoinedAt: time.Now().UTC(),
	})
	if err := s.updateBoardEntity(ctx, board, boardETag); err != nil {
		if isStatus(err, 412) {
			return domain.ShareResult{}, StaleVersionError{Message: msgStaleVersion}
		}
		return domain.ShareResult{}, err
	}

	// Grantee-side mirror. Re-read to get a fresh ETag for the update.
	granteeDoc, granteeETag, err := s.getUser(ctx, grantee.ID)
	if err == nil {
		if !granteeDoc.HasGrant(boardID) {
			granteeDoc.SharedBoards = append(granteeDoc.SharedBoards, domain.BoardGrant{Board: boardID, Role: role})
			err = s.updateUser(ctx, granteeDoc, granteeETag)
		}
	}
	if err != nil {
		return domain.ShareResult{}, errors.Join(err, s.unshareMember(ctx, boardID, grantee.ID))
	}

	return domain.ShareResult{Board: board, Grantee: grantee.Profile()}, nil
}

// unshareMember compensates a half-applied share by removing the member
// entry that was just added.
func (s *Storage) unshareMember(ctx context.Context, boardID, userID string) error {
	board, etag, err := s.getBoard(ctx, boardID)
	if err != nil {
		return err
	}
	kept := board.Members[:0]
	for _, m := range board.Members {
		if m.User != userID {
			kept = append(kept, m)
		}
	}
	board.Members = kept
	return s.updateBoardEntity(ctx, board, etag)
}

// SharedBoardsForUser lists every grant the user holds, denormalized with
// the board summary and the owner's public profile. Grants pointing at
// deleted boards are skipped.
func (s *Storage) SharedBoardsForUser(ctx context.Context, userID string) ([]domain.SharedBoard, error) {
	user, _, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SharedBoard, 0, len(user.SharedBoards))
	for _, grant := range user.SharedBoards {
		board, _, err := s.getBoard(ctx, grant.Board)
		if err != nil {
			if _, ok := err.(NotFoundError); ok {
				continue
			}
			return nil, err
		}
		owner := domain.Profile{ID: board.Owner}
		if ownerDoc, _, err := s.getUser(ctx, board.Owner); err == nil {
			owner = ownerDoc.Profile()
		}
		out = append(out, domain.SharedBoard{
			Board: board.Summary(),
			Role:  grant.Role,
			Owner: owner,
		})
	}
	return out, nil
}

// SharedBoardsBetween computes the boards both users can access, as owner or
// member. The intersection is sorted so the result does not depend on
// argument order or map iteration.
func (s *Storage) SharedBoardsBetween(ctx context.Context, emailA, emailB string) ([]domain.Board, error) {
	userA, err := s.FetchUserByEmail(ctx, emailA)
	if err != nil {
		return nil, err
	}
	userB, err := s.FetchUserByEmail(ctx, emailB)
	if err != nil {
		return nil, err
	}

	ids := domain.IntersectBoardIDs(userA.AccessibleBoardIDs(), userB.AccessibleBoardIDs())
	boards := make([]domain.Board, 0, len(ids))
	for _, id := range ids {
		board, _, err := s.getBoard(ctx, id)
		if err != nil {
			if _, ok := err.(NotFoundError); ok {
				continue
			}
			return nil, err
		}
		boards = append(boards, board)
	}
	return boards, nil
}
