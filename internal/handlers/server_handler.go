package handlers

import (
	"net/http"

	"harbor-server/internal/channel"
	"harbor-server/internal/config"
	"harbor-server/internal/db"
	"harbor-server/internal/realtime"
	"harbor-server/internal/user"
)

// GetServerMetadataHandler returns the public instance description,
// suitable for unauthenticated discovery.
func GetServerMetadataHandler(w http.ResponseWriter, r *http.Request) {
	var userCount, channelCount int64
	db.DB.Model(&user.User{}).Count(&userCount)
	db.DB.Model(&channel.Channel{}).Where("is_private = ?", false).Count(&channelCount)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":            config.Conf.Name,
		"description":     config.Conf.Description,
		"user_count":      userCount,
		"channel_count":   channelCount,
		"online_users":    realtime.GlobalHub.ConnectedClients(),
		"max_message_len": config.Conf.MaxMessageLength,
	})
}
