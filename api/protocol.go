package api

import "taskboard-api/domain"

const (
	boardBodyMaxSize  = 64 * 1024  // 64 KiB
	listsBodyMaxSize  = 512 * 1024 // 512 KiB, boards embed their full lists
	friendBodyMaxSize = 4 * 1024
)

// POST /api/boards request body.
type createBoardRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// PUT /api/boards/:id request body. Absent fields are left untouched.
type updateBoardRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// PUT /api/boards/:id/lists request body. A zero version skips the
// concurrency check and keeps last-write-wins semantics.
type putListsRequest struct {
	Lists   []domain.List `json:"lists"`
	Version int64         `json:"version"`
}

// POST /api/boards/share request body.
type shareRequest struct {
	BoardID    string `json:"boardId"`
	Email      string `json:"email"`
	Permission string `json:"permission"`
}

// POST /api/friends/request request body. To is the recipient's email.
type friendRequestBody struct {
	To string `json:"to"`
}

// POST /api/friends/accept request body. From is the original sender's email.
type friendAcceptBody struct {
	From string `json:"from"`
}

// GET /api/workspace response body.
type workspaceResponse struct {
	Workspace domain.Workspace      `json:"workspace"`
	Boards    []domain.BoardSummary `json:"boards"`
}

// GET /api/boards/shared response body.
type sharedBoardsResponse struct {
	Boards []domain.SharedBoard `json:"boards"`
}

// GET /api/friends/:email/shared-boards response body.
type mutualBoardsResponse struct {
	SharedBoards []domain.Board `json:"sharedBoards"`
}

// GET /api/friends/requests response body.
type friendRequestsResponse struct {
	Requests []domain.FriendRequest `json:"requests"`
}

// GET /api/friends response body.
type friendsResponse struct {
	Friends []domain.Profile `json:"friends"`
}

// GET /api/notifications response body.
type notificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type errorResponse struct {
	Message string `json:"message"`
}
