package engine

import (
	"errors"
	"log/slog"

	"github.com/roach88/storesync/internal/model"
)

// ErrClosed is returned by operations on a closed engine.
var ErrClosed = errors.New("engine closed")

// notRegistered builds the VALIDATION error for remote-only operations
// attempted by a guest.
func notRegistered(op string) error {
	return model.NewValidationError(op, model.ErrNotRegistered)
}

// logTaskError logs a failed background remote operation. Background
// failures never surface to callers; local state stays as it is.
func logTaskError(op, userID string, err error) {
	code := model.CodeRemoteWrite
	var me *model.Error
	if errors.As(err, &me) {
		code = me.Code
	}
	slog.Warn("remote task failed",
		"op", op,
		"user", userID,
		"code", string(code),
		"error", err,
	)
}

// errMissionsNotLoaded is wrapped when a claim arrives before the
// identity's mission rows were read from the remote store.
var errMissionsNotLoaded = errors.New("mission progress not loaded")

// errOffline is wrapped when a remote-only operation has no remote
// collaborator configured.
var errOffline = errors.New("remote store not configured")
