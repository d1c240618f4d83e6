package handlers

import (
	"encoding/json"
	"net/http"

	"harbor-server/internal/channel"
	"harbor-server/internal/middleware"
	"harbor-server/internal/realtime"
	"harbor-server/internal/validation"
)

// canReadChannel reports whether the user may see the channel at all:
// members always, everyone else only when the channel is public.
func canReadChannel(ch *channel.Channel, userID string) bool {
	if !ch.IsPrivate {
		return true
	}
	_, err := channel.GetMember(ch.ID, userID)
	return err == nil
}

// requireManager loads the channel and checks the caller holds the
// owner or admin role in it.
func requireManager(w http.ResponseWriter, channelID, userID string) (*channel.Channel, bool) {
	ch, err := channel.GetChannelByID(channelID)
	if err != nil {
		storeError(w, err)
		return nil, false
	}

	m, err := channel.GetMember(channelID, userID)
	if err != nil || (m.Role != channel.RoleOwner && m.Role != channel.RoleAdmin) {
		writeError(w, http.StatusForbidden, "Owner or admin role required")
		return nil, false
	}
	return ch, true
}

func ListChannelsHandler(w http.ResponseWriter, r *http.Request) {
	channels, err := channel.ListChannels()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch channels")
		return
	}

	userID := middleware.GetUserID(r)
	visible := make([]channel.Channel, 0, len(channels))
	for _, ch := range channels {
		if canReadChannel(&ch, userID) {
			visible = append(visible, ch)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"channels": visible})
}

func GetChannelHandler(w http.ResponseWriter, r *http.Request) {
	channelID := r.URL.Query().Get("channel_id")
	if channelID == "" {
		writeError(w, http.StatusBadRequest, "Channel ID is required")
		return
	}

	ch, err := channel.GetChannelByID(channelID)
	if err != nil {
		storeError(w, err)
		return
	}

	if !canReadChannel(ch, middleware.GetUserID(r)) {
		// A hidden private channel is indistinguishable from a missing one.
		writeError(w, http.StatusNotFound, "Channel not found")
		return
	}

	writeJSON(w, http.StatusOK, ch)
}

func CreateChannelHandler(w http.ResponseWriter, r *http.Request) {
	var in validation.ChannelInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := in.Validate(); len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}

	ch, err := channel.CreateChannel(in.Name, in.Description, in.IsPrivate, middleware.GetUserID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create channel")
		return
	}

	if !ch.IsPrivate {
		go realtime.GlobalHub.Broadcast("channel_created", ch)
	}

	writeJSON(w, http.StatusCreated, ch)
}

func UpdateChannelHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChannelID   string  `json:"channel_id"`
		Name        *string `json:"name,omitempty"`
		Description *string `json:"description,omitempty"`
		IsPrivate   *bool   `json:"is_private,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ChannelID == "" {
		writeError(w, http.StatusBadRequest, "Channel ID is required")
		return
	}

	var errs []validation.FieldError
	if req.Name != nil {
		in := validation.ChannelInput{Name: *req.Name}
		errs = append(errs, in.Validate()...)
	}
	if req.Description != nil && len(*req.Description) > 500 {
		errs = append(errs, validation.FieldError{Field: "description", Message: "description must be at most 500 characters"})
	}
	if len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}

	if _, ok := requireManager(w, req.ChannelID, middleware.GetUserID(r)); !ok {
		return
	}

	ch, err := channel.UpdateChannel(req.ChannelID, channel.ChannelUpdate{
		Name:        req.Name,
		Description: req.Description,
		IsPrivate:   req.IsPrivate,
	})
	if err != nil {
		storeError(w, err)
		return
	}

	go realtime.GlobalHub.Broadcast("channel_updated", ch)

	writeJSON(w, http.StatusOK, ch)
}

func DeleteChannelHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChannelID string `json:"channel_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ChannelID == "" {
		writeError(w, http.StatusBadRequest, "Channel ID is required")
		return
	}

	if _, ok := requireManager(w, req.ChannelID, middleware.GetUserID(r)); !ok {
		return
	}

	if err := channel.DeleteChannel(req.ChannelID); err != nil {
		storeError(w, err)
		return
	}

	go realtime.GlobalHub.Broadcast("channel_deleted", map[string]string{
		"channel_id": req.ChannelID,
	})

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Channel deleted successfully",
	})
}
