package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// User-facing messages produced at the HTTP layer. Storage errors carry
// their own.
const (
	msgInternalError      = "Error interno del servidor"
	msgInvalidBody        = "Solicitud inválida"
	msgTitleRequired      = "El título es obligatorio"
	msgTitleTooLong       = "El título no puede exceder los 100 caracteres"
	msgDescriptionTooLong = "La descripción no puede exceder los 500 caracteres"
	msgInvalidEmail       = "Correo electrónico inválido"
	msgInvalidRole        = "Permiso inválido"
	msgSelfFriend         = "No puedes enviarte una solicitud de amistad a ti mismo"
	msgSelfShare          = "No puedes compartir un tablero contigo mismo"
	msgNoEditPermission   = "No tienes permiso para editar este tablero"
	msgBoardNotFound      = "Tablero no encontrado"
	msgUserNotFound       = "Usuario no encontrado"
)

// Board text limits, matching the persisted document constraints.
const (
	maxBoardTitleLen       = 100
	maxBoardDescriptionLen = 500
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, auth Authenticator, deduper Deduper, logger *log.Logger) {
	e.POST("/api/users", postUser(store, auth))
	e.GET("/api/workspace", getWorkspace(store, auth))

	e.POST("/api/boards", postBoard(store, auth))
	e.GET("/api/boards/:id", getBoard(store, auth, logger))
	e.PUT("/api/boards/:id", putBoard(store, auth))
	e.DELETE("/api/boards/:id", deleteBoard(store, auth))
	e.PUT("/api/boards/:id/lists", putLists(store, auth))

	e.POST("/api/boards/share", postShare(store, auth))
	e.GET("/api/boards/shared", getSharedBoards(store, auth))

	e.POST("/api/friends/request", postFriendRequest(store, auth))
	e.POST("/api/friends/accept", postFriendAccept(store, auth))
	e.GET("/api/friends", getFriends(store, auth))
	e.GET("/api/friends/requests", getFriendRequests(store, auth))
	e.DELETE("/api/friends/:email", deleteFriend(store, auth))
	e.GET("/api/friends/:email/shared-boards", getFriendSharedBoards(store, auth))

	e.GET("/api/notifications", getNotifications(store, auth))
	e.PUT("/api/notifications/:id/read", putNotificationRead(store, auth))

	e.GET("/healthz", healthz(store))

	initNotifier(store, deduper, logger)
}

func healthz(_ Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func callerIdentity(c echo.Context, auth Authenticator) (domain.Identity, error) {
	return auth.IdentityFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
}

// callerEmail resolves the caller's email, falling back to the stored
// profile when the token carries no email claim.
func callerEmail(ctx context.Context, store Storage, identity domain.Identity) (string, error) {
	if identity.Email != "" {
		return identity.Email, nil
	}
	user, err := store.FetchUser(ctx, identity.UserID)
	if err != nil {
		return "", err
	}
	return user.Email, nil
}

func decodeBody(c echo.Context, maxSize int64, dst any) error {
	lr := io.LimitReader(c.Request().Body, maxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeStorageError maps storage errors to their HTTP responses. Unknown
// errors are logged and masked behind a generic message.
func writeStorageError(c echo.Context, err error) error {
	var nf NotFoundError
	if errors.As(err, &nf) {
		return c.JSON(http.StatusNotFound, errorResponse{Message: nf.Error()})
	}
	var cf ConflictError
	if errors.As(err, &cf) {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: cf.Error()})
	}
	var sv StaleVersionError
	if errors.As(err, &sv) {
		return c.JSON(http.StatusConflict, errorResponse{Message: sv.Error()})
	}
	c.Logger().Error(err)
	return c.JSON(http.StatusInternalServerError, errorResponse{Message: msgInternalError})
}

func newEvent(entityType, entityID, eventType string, payload any) domain.Event {
	ev := domain.Event{
		ID:         uuid.NewString(),
		EntityType: entityType,
		EntityID:   entityID,
		Type:       eventType,
		Timestamp:  nextTimestamp(),
	}
	if payload != nil {
		if data, err := sonic.Marshal(payload); err == nil {
			ev.Data = data
		}
	}
	return ev
}

func postUser(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, err := callerIdentity(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		user, err := store.EnsureUser(c.Request().Context(), identity)
		if err != nil {
			return writeStorageError(c, err)
		}
		return c.JSON(http.StatusOK, user)
	}
}

func getWorkspace(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, err := callerIdentity(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		ctx := c.Request().Context()

		ws, boards, err := store.FetchWorkspace(ctx, identity.UserID)
		if err != nil {
			var nf NotFoundError
			if !errors.As(err, &nf) {
				return writeStorageError(c, err)
			}
			// First access provisions the profile and workspace lazily.
			if _, err := store.EnsureUser(ctx, identity); err != nil {
				return writeStorageError(c, err)
			}
			ws, boards, err = store.FetchWorkspace(ctx, identity.UserID)
			if err != nil {
				return writeStorageError(c, err)
			}
		}
		if boards == nil {
			boards = []domain.BoardSummary{}
		}
		return c.JSON(http.StatusOK, workspaceResponse{Workspace: ws, Boards: boards})
	}
}
