package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"taskboard-api/domain"
)

func postFriendRequest(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, err := callerIdentity(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req friendRequestBody
		if err := decodeBody(c, friendBodyMaxSize, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: msgInvalidBody})
		}
		if !domain.ValidEmail(req.To) {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: msgInvalidEmail})
		}

		ctx := c.Request().Context()
		from, err := callerEmail(ctx, store, identity)
		if err != nil {
			return writeStorageError(c, err)
		}
		if from == req.To {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: msgSelfFriend})
		}

		if err := store.CreateFriendRequest(ctx, from, req.To); err != nil {
			return writeStorageError(c, err)
		}

		sender := displayName(ctx, store, identity)
		notify(ctx, identity.UserID,
			[]string{"friend-request:" + from + ":" + req.To},
			[]domain.Notification{{
				Recipient: req.To,
				Title:     "Solicitud de amistad",
				Message:   fmt.Sprintf("%s te envió una solicitud de amistad", sender),
				Link:      "/friends",
			}},
			[]domain.Event{
				newEvent(domain.EntityFriend, req.To, domain.EventFriendRequest, nil),
			})

		return c.JSON(http.StatusOK, successResponse{Success: true})
	}
}

func postFriendAccept(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, err := callerIdentity(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req friendAcceptBody
		if err := decodeBody(c, friendBodyMaxSize, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: msgInvalidBody})
		}
		if !domain.ValidEmail(req.From) {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: msgInvalidEmail})
		}

		ctx := c.Request().Context()
		to, err := callerEmail(ctx, store, identity)
		if err != nil {
			return writeStorageError(c, err)
		}

		if err := store.AcceptFriendRequest(ctx, to, req.From); err != nil {
			return writeStorageError(c, err)
		}

		accepter := displayName(ctx, store, identity)
		notify(ctx, identity.UserID,
			[]string{"friend-accepted:" + req.From + ":" + to},
			[]domain.Notification{{
				Recipient: req.From,
				Title:     "Solicitud aceptada",
				Message:   fmt.Sprintf("%s aceptó tu solicitud de amistad", accepter),
				Link:      "/friends",
			}},
			[]domain.Event{
				newEvent(domain.EntityFriend, req.From, domain.EventFriendAccepted, nil),
			})

		return c.JSON(http.StatusOK, successResponse{Success: true})
	}
}

func getFriendRequests(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, err := callerIdentity(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		ctx := c.Request().Context()
		to, err := callerEmail(ctx, store, identity)
		if err != nil {
			return writeStorageError(c, err)
		}
		requests, err := store.ListFriendRequests(ctx, to)
		if err != nil {
			return writeStorageError(c, err)
		}
		if requests == nil {
			requests = []domain.FriendRequest{}
		}
		return c.JSON(http.StatusOK, friendRequestsResponse{Requests: requests})
	}
}

func getFriends(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, err := callerIdentity(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		ctx := c.Request().Context()
		email, err := callerEmail(ctx, store, identity)
		if err != nil {
			return writeStorageError(c, err)
		}
		friends, err := store.ListFriends(ctx, email)
		if err != nil {
			return writeStorageError(c, err)
		}
		if friends == nil {
			friends = []domain.Profile{}
		}
		return c.JSON(http.StatusOK, friendsResponse{Friends: friends})
	}
}

func deleteFriend(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, err := callerIdentity(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		other := c.Param("email")
		if !domain.ValidEmail(other) {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: msgInvalidEmail})
		}

		ctx := c.Request().Context()
		self, err := callerEmail(ctx, store, identity)
		if err != nil {
			return writeStorageError(c, err)
		}
		if err := store.RemoveFriend(ctx, self, other); err != nil {
			return writeStorageError(c, err)
		}
		return c.JSON(http.StatusOK, successResponse{Success: true})
	}
}

func getFriendSharedBoards(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, err := callerIdentity(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		other := c.Param("email")
		if !domain.ValidEmail(other) {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: msgInvalidEmail})
		}

		ctx := c.Request().Context()
		user, err := store.FetchUser(ctx, identity.UserID)
		if err != nil {
			return writeStorageError(c, err)
		}
		if !user.HasFriend(other) {
			return c.JSON(http.StatusNotFound, errorResponse{Message: msgUserNotFound})
		}

		boards, err := store.SharedBoardsBetween(ctx, user.Email, other)
		if err != nil {
			return writeStorageError(c, err)
		}
		if boards == nil {
			boards = []domain.Board{}
		}
		return c.JSON(http.StatusOK, mutualBoardsResponse{SharedBoards: boards})
	}
}
