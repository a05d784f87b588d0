package api

import (
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

func postBoard(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, err := callerIdentity(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req createBoardRequest
		if err := decodeBody(c, boardBodyMaxSize, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: msgInvalidBody})
		}
		req.Title = strings.TrimSpace(req.Title)
		if req.Title == "" {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: msgTitleRequired})
		}
		if utf8.RuneCountInString(req.Title) > maxBoardTitleLen {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: msgTitleTooLong})
		}
		req.Description = strings.TrimSpace(req.Description)
		if utf8.RuneCountInString(req.Description) > maxBoardDescriptionLen {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: msgDescriptionTooLong})
		}

		ctx := c.Request().Context()
		board, err := store.CreateBoard(ctx, identity.UserID, req.Title, req.Description)
		if err != nil {
			return writeStorageError(c, err)
		}

		notify(ctx, identity.UserID, nil, nil, []domain.Event{
			newEvent(domain.EntityBoard, board.ID, domain.EventBoardCreated, board.Summary()),
		})
		return c.JSON(http.StatusCreated, board)
	}
}

func getBoard(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newBoardRequestMetrics(ctx, logger)
		if spanCtx != nil {
			req := c.Request().WithContext(spanCtx)
			c.SetRequest(req)
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		identity, authErr := callerIdentity(c, auth)
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		fetchStart := time.Now()
		board, fetchErr := store.FetchBoard(ctx, c.Param("id"))
		metrics.ObserveStorage(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			err = writeStorageError(c, fetchErr)
			return err
		}
		if !board.CanView(identity.UserID) {
			// Non-members cannot distinguish a hidden board from a missing one.
			metrics.SetErrorStage("access")
			err = c.JSON(http.StatusNotFound, errorResponse{Message: msgBoardNotFound})
			return err
		}
		if board.Lists == nil {
			// Boards created before list persistence carry no lists; serve
			// the canonical columns without writing them back.
			board.Lists = domain.DefaultLists()
		}
		metrics.SetListsReturned(len(board.Lists))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, board)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func putBoard(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, err := callerIdentity(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req updateBoardRequest
		if err := decodeBody(c, boardBodyMaxSize, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: msgInvalidBody})
		}
		if req.Title != nil {
			trimmed := strings.TrimSpace(*req.Title)
			if trimmed == "" {
				return c.JSON(http.StatusBadRequest, errorResponse{Message: msgTitleRequired})
			}
			if utf8.RuneCountInString(trimmed) > maxBoardTitleLen {
				return c.JSON(http.StatusBadRequest, errorResponse{Message: msgTitleTooLong})
			}
			req.Title = &trimmed
		}
		if req.Description != nil && utf8.RuneCountInString(*req.Description) > maxBoardDescriptionLen {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: msgDescriptionTooLong})
		}

		ctx := c.Request().Context()
		boardID := c.Param("id")
		board, err := store.FetchBoard(ctx, boardID)
		if err != nil {
			return writeStorageError(c, err)
		}
		if !board.CanView(identity.UserID) {
			return c.JSON(http.StatusNotFound, errorResponse{Message: msgBoardNotFound})
		}
		if !board.CanManage(identity.UserID) {
			return c.JSON(http.StatusForbidden, errorResponse{Message: msgNoEditPermission})
		}

		updated, err := store.UpdateBoard(ctx, boardID, req.Title, req.Description)
		if err != nil {
			return writeStorageError(c, err)
		}
		return c.JSON(http.StatusOK, updated)
	}
}

func deleteBoard(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, err := callerIdentity(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		ctx := c.Request().Context()
		boardID := c.Param("id")
		board, err := store.FetchBoard(ctx, boardID)
		if err != nil {
			return writeStorageError(c, err)
		}
		// Deletion is owner-only; everyone else sees the board as missing.
		if board.Owner != identity.UserID {
			return c.JSON(http.StatusNotFound, errorResponse{Message: msgBoardNotFound})
		}

		if err := store.DeleteBoard(ctx, boardID); err != nil {
			return writeStorageError(c, err)
		}

		notify(ctx, identity.UserID, nil, nil, []domain.Event{
			newEvent(domain.EntityBoard, boardID, domain.EventBoardDeleted, nil),
		})
		return c.JSON(http.StatusOK, successResponse{Success: true})
	}
}

func putLists(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, err := callerIdentity(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req putListsRequest
		if err := decodeBody(c, listsBodyMaxSize, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: msgInvalidBody})
		}

		ctx := c.Request().Context()
		boardID := c.Param("id")
		board, err := store.FetchBoard(ctx, boardID)
		if err != nil {
			return writeStorageError(c, err)
		}
		if !board.CanView(identity.UserID) {
			return c.JSON(http.StatusNotFound, errorResponse{Message: msgBoardNotFound})
		}
		if !board.CanEditLists(identity.UserID) {
			return c.JSON(http.StatusForbidden, errorResponse{Message: msgNoEditPermission})
		}

		updated, err := store.ReplaceLists(ctx, boardID, req.Lists, req.Version)
		if err != nil {
			return writeStorageError(c, err)
		}

		notify(ctx, identity.UserID, nil, nil, []domain.Event{
			newEvent(domain.EntityBoard, boardID, domain.EventListsReplaced, struct {
				Version int64 `json:"version"`
				Lists   int   `json:"lists"`
			}{Version: updated.Version, Lists: len(updated.Lists)}),
		})
		return c.JSON(http.StatusOK, updated)
	}
}
