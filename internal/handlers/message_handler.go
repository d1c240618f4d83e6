package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"harbor-server/internal/channel"
	"harbor-server/internal/config"
	"harbor-server/internal/middleware"
	"harbor-server/internal/realtime"
	"harbor-server/internal/user"
)

func GetChannelMessagesHandler(w http.ResponseWriter, r *http.Request) {
	channelID := r.URL.Query().Get("channel_id")
	if channelID == "" {
		writeError(w, http.StatusBadRequest, "Channel ID is required")
		return
	}

	userID := middleware.GetUserID(r)

	if _, err := channel.GetChannelByID(channelID); err != nil {
		storeError(w, err)
		return
	}

	// Message history is member-only regardless of channel visibility.
	if _, err := channel.GetMember(channelID, userID); err != nil {
		writeError(w, http.StatusForbidden, "Membership required to read messages")
		return
	}

	messages, err := channel.GetChannelMessages(channelID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch messages")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

func SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChannelID string `json:"channel_id"`
		Content   string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ChannelID == "" {
		writeError(w, http.StatusBadRequest, "Channel ID is required")
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeError(w, http.StatusBadRequest, "Message content is required")
		return
	}
	if max := config.Conf.MaxMessageLength; max > 0 && len(content) > max {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Message exceeds %d characters", max))
		return
	}

	userID := middleware.GetUserID(r)
	if _, err := channel.GetMember(req.ChannelID, userID); err != nil {
		writeError(w, http.StatusForbidden, "Membership required to send messages")
		return
	}

	msg, err := channel.SendMessage(req.ChannelID, userID, content)
	if err != nil {
		storeError(w, err)
		return
	}

	profile, err := user.ProfileOf(userID)
	if err != nil {
		profile = user.UnknownProfile(userID)
	}

	realtime.GlobalHub.PublishMessageInsert(realtime.MessageEvent{
		ID:        msg.ID,
		ChannelID: msg.ChannelID,
		UserID:    msg.UserID,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
		User:      profile,
	})

	writeJSON(w, http.StatusCreated, msg)
}
