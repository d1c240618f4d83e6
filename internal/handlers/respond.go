package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"harbor-server/internal/channel"
	"harbor-server/internal/validation"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeFieldErrors(w http.ResponseWriter, errs []validation.FieldError) {
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error":  "validation failed",
		"fields": errs,
	})
}

// storeError maps the channel store's sentinel errors onto HTTP
// statuses and user-facing copy. Anything unrecognized is surfaced
// verbatim as a 500.
func storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, channel.ErrChannelNotFound):
		writeError(w, http.StatusNotFound, "Channel not found")
	case errors.Is(err, channel.ErrMemberNotFound):
		writeError(w, http.StatusNotFound, "Member not found")
	case errors.Is(err, channel.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, channel.ErrAlreadyMember):
		writeError(w, http.StatusConflict, "Already a member of this channel")
	case errors.Is(err, channel.ErrNotMember):
		writeError(w, http.StatusBadRequest, "User is not a member of this channel")
	case errors.Is(err, channel.ErrNotOwner):
		writeError(w, http.StatusForbidden, "Only the channel owner may do this")
	case errors.Is(err, channel.ErrOwnerImmutable):
		writeError(w, http.StatusBadRequest, "Ownership can only change via transfer")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
