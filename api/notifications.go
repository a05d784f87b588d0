package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"taskboard-api/domain"
)

func getNotifications(store Storage, auth Authenticator) echo.HandlerFunc {
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
		notes, err := store.ListNotifications(ctx, email)
		if err != nil {
			return writeStorageError(c, err)
		}
		if notes == nil {
			notes = []domain.Notification{}
		}
		return c.JSON(http.StatusOK, notificationsResponse{Notifications: notes})
	}
}

func putNotificationRead(store Storage, auth Authenticator) echo.HandlerFunc {
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
		if err := store.MarkNotificationRead(ctx, email, c.Param("id")); err != nil {
			return writeStorageError(c, err)
		}
		return c.JSON(http.StatusOK, successResponse{Success: true})
	}
}
