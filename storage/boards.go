package storage

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/google/uuid"

	"taskboard-api/domain"
)

func (s *Storage) getBoard(ctx context.Context, boardID string) (domain.Board, azcore.ETag, error) {
	resp, err := s.boards.GetEntity(ctx, boardPartition, boardID, nil)
	if err != nil {
		if isStatus(err, 404) {
			return domain.Board{}, "", NotFoundError{Message: msgBoardNotFound}
		}
		return domain.Board{}, "", err
	}
	var board domain.Board
	if err := decodeEntity(resp.Value, &board); err != nil {
		return domain.Board{}, "", err
	}
	return board, resp.ETag, nil
}

func (s *Storage) updateBoardEntity(ctx context.Context, board domain.Board, etag azcore.ETag) error {
	payload, err := encodeEntity(boardPartition, board.ID, board)
	if err != nil {
		return err
	}
	_, err = s.boards.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{
		IfMatch:    &etag,
		UpdateMode: aztables.UpdateModeReplace,
	})
	return err
}

// FetchBoard retrieves a board document including its embedded lists.
// Access control is the caller's concern; the document carries the owner and
// member grants needed to decide it.
func (s *Storage) FetchBoard(ctx context.Context, boardID string) (domain.Board, error) {
	board, _, err := s.getBoard(ctx, boardID)
	return board, err
}

// CreateBoard creates a board in the user's default workspace and attaches
// it to both the workspace and the owner's board list.
func (s *Storage) CreateBoard(ctx context.Context, userID, title, description string) (domain.Board, error) {
	user, userETag, err := s.getUser(ctx, userID)
	if err != nil {
		return domain.Board{}, err
	}
	if user.DefaultWorkspace == "" {
		ws, err := s.createWorkspace(ctx, &user)
		if err != nil {
			return domain.Board{}, err
		}
		user.DefaultWorkspace = ws.ID
	}

	now := time.Now().UTC()
	board := domain.Board{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Workspace:   user.DefaultWorkspace,
		Owner:       userID,
		Lists:       []domain.List{},
		Members:     []domain.Member{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	payload, err := encodeEntity(boardPartition, board.ID, board)
	if err != nil {
		return domain.Board{}, err
	}
	if _, err := s.boards.AddEntity(ctx, payload, nil); err != nil {
		return domain.Board{}, err
	}

	if err := s.attachBoardToWorkspace(ctx, user.DefaultWorkspace, board.ID); err != nil {
		return domain.Board{}, err
	}

	user.Boards = append(user.Boards, board.ID)
	if err := s.updateUser(ctx, user, userETag); err != nil {
		return domain.Board{}, err
	}
	return board, nil
}

func (s *Storage) attachBoardToWorkspace(ctx context.Context, workspaceID, boardID string) error {
	resp, err := s.boards.GetEntity(ctx, workspacePartition, workspaceID, nil)
	if err != nil {
		return err
	}
	var ws domain.Workspace
	if err := decodeEntity(resp.Value, &ws); err != nil {
		return err
	}
	ws.Boards = append(ws.Boards, boardID)
	payload, err := encodeEntity(workspacePartition, ws.ID, ws)
	if err != nil {
		return err
	}
	etag := resp.ETag
	_, err = s.boards.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{
		IfMatch:    &etag,
		UpdateMode: aztables.UpdateModeReplace,
	})
	return err
}

func (s *Storage) detachBoardFromWorkspace(ctx context.Context, workspaceID, boardID string) error {
	resp, err := s.boards.GetEntity(ctx, workspacePartition, workspaceID, nil)
	if err != nil {
		if isStatus(err, 404) {
			return nil
		}
		return err
	}
	var ws domain.Workspace
	if err := decodeEntity(resp.Value, &ws); err != nil {
		return err
	}
	kept := ws.Boards[:0]
	for _, id := range ws.Boards {
		if id != boardID {
			kept = append(kept, id)
		}
	}
	ws.Boards = kept
	payload, err := encodeEntity(workspacePartition, ws.ID, ws)
	if err != nil {
		return err
	}
	etag := resp.ETag
	_, err = s.boards.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{
		IfMatch:    &etag,
		UpdateMode: aztables.UpdateModeReplace,
	})
	return err
}

// UpdateBoard patches title and description. Ownership is checked by the
// handler before calling.
func (s *Storage) UpdateBoard(ctx context.Context, boardID string, title, description *string) (domain.Board, error) {
	board, etag, err := s.getBoard(ctx, boardID)
	if err != nil {
		return domain.Board{}, err
	}
	if title != nil {
		board.Title = *title
	}
	if description != nil {
		board.Description = *description
	}
	board.UpdatedAt = time.Now().UTC()
	if err := s.updateBoardEntity(ctx, board, etag); err != nil {
		if isStatus(err, 412) {
			return domain.Board{}, StaleVersionError{Message: msgStaleVersion}
		}
		return domain.Board{}, err
	}
	return board, nil
}

// DeleteBoard removes the board document and detaches it from the workspace
// and the owner's board list. Cleanup failures after the document is gone
// are tolerated so retries converge.
func (s *Storage) DeleteBoard(ctx context.Context, boardID string) error {
	board, _, err := s.getBoard(ctx, boardID)
	if err != nil {
		return err
	}
	if _, err := s.boards.DeleteEntity(ctx, boardPartition, boardID, nil); err != nil && !isStatus(err, 404) {
		return err
	}
	if err := s.detachBoardFromWorkspace(ctx, board.Workspace, boardID); err != nil {
		return err
	}

	user, userETag, err := s.getUser(ctx, board.Owner)
	if err != nil {
		if _, ok := err.(NotFoundError); ok {
			return nil
		}
		return err
	}
	kept := user.Boards[:0]
	for _, id := range user.Boards {
		if id != boardID {
			kept = append(kept, id)
		}
	}
	user.Boards = kept
	return s.updateUser(ctx, user, userETag)
}

// ReplaceLists overwrites the board's entire list structure in a single
// entity update. Client-generated list and task IDs round-trip unchanged.
// When baseVersion is non-zero it must match the persisted version; the
// entity ETag closes the race between read and write, and the version is
// incremented on success.
func (s *Storage) ReplaceLists(ctx context.Context, boardID string, lists []domain.List, baseVersion int64) (domain.Board, error) {
	board, etag, err := s.getBoard(ctx, boardID)
	if err != nil {
		return domain.Board{}, err
	}
	if baseVersion != 0 && baseVersion != board.Version {
		return domain.Board{}, StaleVersionError{Message: msgStaleVersion}
	}
	board.Lists = domain.NormalizeLists(lists)
	board.Version++
	board.UpdatedAt = time.Now().UTC()
	if err := s.updateBoardEntity(ctx, board, etag); err != nil {
		if isStatus(err, 412) {
			return domain.Board{}, StaleVersionError{Message: msgStaleVersion}
		}
		return domain.Board{}, err
	}
	return board, nil
}
