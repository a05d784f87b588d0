package storage

import (
	"errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

// NotFoundError is returned when a board, user or request does not exist, or
// when an owner-only operation is attempted by someone else. The message is
// user-facing.
type NotFoundError struct {
	Message string
}

func (e NotFoundError) Error() string { return e.Message }

// NotFound marks the error for HTTP 404 mapping.
func (e NotFoundError) NotFound() {}

// ConflictError is returned for duplicate grants and duplicate pending friend
// requests.
type ConflictError struct {
	Message string
}

func (e ConflictError) Error() string { return e.Message }

// Conflict marks the error for HTTP 400 mapping.
func (e ConflictError) Conflict() {}

// StaleVersionError is returned when a lists replace carries an out-of-date
// base version, or when the underlying entity changed between read and write.
// The client is expected to re-fetch the board and retry.
type StaleVersionError struct {
	Message string
}

func (e StaleVersionError) Error() string { return e.Message }

// StaleVersion marks the error for HTTP 409 mapping.
func (e StaleVersionError) StaleVersion() {}

func isStatus(err error, code int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == code
}

// User-facing messages. All client-visible text is Spanish.
const (
	msgBoardNotFound   = "Tablero no encontrado"
	msgUserNotFound    = "Usuario no encontrado"
	msgRequestNotFound = "Solicitud no encontrada"
	msgAlreadyShared   = "Ya compartiste este tablero con este usuario"
	msgDuplicateFriend = "Ya existe una solicitud de amistad pendiente"
	msgStaleVersion    = "El tablero fue modificado por otra persona"
)
