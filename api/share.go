package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"taskboard-api/domain"
)

func postShare(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, err := callerIdentity(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req shareRequest
		if err := decodeBody(c, boardBodyMaxSize, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: msgInvalidBody})
		}
		if req.BoardID == "" || !domain.ValidEmail(req.Email) {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: msgInvalidEmail})
		}
		role := domain.RoleViewer
		if req.Permission != "" {
			role = domain.Role(req.Permission)
			if !domain.ValidRole(role) {
				return c.JSON(http.StatusBadRequest, errorResponse{Message: msgInvalidRole})
			}
		}

		ctx := c.Request().Context()
		res, err := store.ShareBoard(ctx, identity.UserID, req.BoardID, req.Email, role)
		if err != nil {
			return writeStorageError(c, err)
		}

		sharer := displayName(ctx, store, identity)
		notify(ctx, identity.UserID,
			[]string{"share:" + res.Board.ID + ":" + res.Grantee.Email},
			[]domain.Notification{{
				Recipient: res.Grantee.Email,
				Title:     "Tablero compartido",
				Message:   fmt.Sprintf("%s compartió el tablero %q contigo", sharer, res.Board.Title),
				Link:      "/boards/" + res.Board.ID,
			}},
			[]domain.Event{
				newEvent(domain.EntityBoard, res.Board.ID, domain.EventBoardShared, struct {
					Email string      `json:"email"`
					Role  domain.Role `json:"role"`
				}{Email: res.Grantee.Email, Role: role}),
			})

		return c.JSON(http.StatusOK, res)
	}
}

func getSharedBoards(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, err := callerIdentity(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		boards, err := store.SharedBoardsForUser(c.Request().Context(), identity.UserID)
		if err != nil {
			return writeStorageError(c, err)
		}
		if boards == nil {
			boards = []domain.SharedBoard{}
		}
		return c.JSON(http.StatusOK, sharedBoardsResponse{Boards: boards})
	}
}

// displayName picks the friendliest available name for the caller, used in
// notification messages shown to other users.
func displayName(ctx context.Context, store Storage, identity domain.Identity) string {
	if identity.Name != "" {
		return identity.Name
	}
	user, err := store.FetchUser(ctx, identity.UserID)
	if err == nil && user.Name != "" {
		return user.Name
	}
	if identity.Email != "" {
		return identity.Email
	}
	if err == nil && user.Email != "" {
		return user.Email
	}
	return "Alguien"
}
