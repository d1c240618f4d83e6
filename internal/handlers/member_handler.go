package handlers

import (
	"encoding/json"
	"net/http"

	"harbor-server/internal/channel"
	"harbor-server/internal/middleware"
	"harbor-server/internal/realtime"
)

// requireOwner loads the channel and checks the caller holds the owner
// role. Role grants and ownership transfer are owner-only operations.
func requireOwner(w http.ResponseWriter, channelID, userID string) (*channel.Channel, bool) {
	ch, err := channel.GetChannelByID(channelID)
	if err != nil {
		storeError(w, err)
		return nil, false
	}
	if ch.OwnerID != userID {
		writeError(w, http.StatusForbidden, "Only the channel owner may do this")
		return nil, false
	}
	return ch, true
}

func GetChannelMembersHandler(w http.ResponseWriter, r *http.Request) {
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
		writeError(w, http.StatusNotFound, "Channel not found")
		return
	}

	members, err := channel.GetChannelMembers(channelID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch members")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"members": members})
}

func JoinChannelHandler(w http.ResponseWriter, r *http.Request) {
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

	ch, err := channel.GetChannelByID(req.ChannelID)
	if err != nil {
		storeError(w, err)
		return
	}

	userID := middleware.GetUserID(r)

	// Private channels admit members by invite only.
	if ch.IsPrivate {
		if _, err := channel.GetMember(ch.ID, userID); err != nil {
			writeError(w, http.StatusNotFound, "Channel not found")
			return
		}
		writeError(w, http.StatusConflict, "Already a member of this channel")
		return
	}

	m, err := channel.JoinChannel(req.ChannelID, userID)
	if err != nil {
		storeError(w, err)
		return
	}

	go realtime.GlobalHub.Broadcast("member_joined", map[string]string{
		"channel_id": req.ChannelID,
		"user_id":    userID,
	})

	writeJSON(w, http.StatusCreated, m)
}

func LeaveChannelHandler(w http.ResponseWriter, r *http.Request) {
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

	userID := middleware.GetUserID(r)
	if err := channel.LeaveChannel(req.ChannelID, userID); err != nil {
		storeError(w, err)
		return
	}

	realtime.GlobalHub.DropChannelFilter(userID, req.ChannelID)
	go realtime.GlobalHub.Broadcast("member_left", map[string]string{
		"channel_id": req.ChannelID,
		"user_id":    userID,
	})

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Left channel",
	})
}

func RemoveMemberHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChannelID string `json:"channel_id"`
		MemberID  string `json:"member_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ChannelID == "" || req.MemberID == "" {
		writeError(w, http.StatusBadRequest, "Channel ID and member ID are required")
		return
	}

	userID := middleware.GetUserID(r)
	ch, ok := requireManager(w, req.ChannelID, userID)
	if !ok {
		return
	}

	target, err := channel.GetMemberByID(req.MemberID)
	if err != nil {
		storeError(w, err)
		return
	}
	if target.ChannelID != req.ChannelID {
		writeError(w, http.StatusNotFound, "Member not found")
		return
	}

	// Removing an admin is reserved for the owner.
	if target.Role == channel.RoleAdmin && ch.OwnerID != userID {
		writeError(w, http.StatusForbidden, "Only the channel owner may remove an admin")
		return
	}

	if err := channel.RemoveMember(req.MemberID); err != nil {
		storeError(w, err)
		return
	}

	realtime.GlobalHub.DropChannelFilter(target.UserID, req.ChannelID)
	go realtime.GlobalHub.Broadcast("member_left", map[string]string{
		"channel_id": req.ChannelID,
		"user_id":    target.UserID,
	})

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Member removed",
	})
}

func InviteMemberHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChannelID string `json:"channel_id"`
		Username  string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ChannelID == "" || req.Username == "" {
		writeError(w, http.StatusBadRequest, "Channel ID and username are required")
		return
	}

	if _, ok := requireManager(w, req.ChannelID, middleware.GetUserID(r)); !ok {
		return
	}

	m, err := channel.InviteUserByUsername(req.ChannelID, req.Username)
	if err != nil {
		storeError(w, err)
		return
	}

	go realtime.GlobalHub.SendToUser(m.UserID, "channel_invite", map[string]string{
		"channel_id": req.ChannelID,
	})

	writeJSON(w, http.StatusCreated, m)
}

func UpdateMemberRoleHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChannelID string       `json:"channel_id"`
		MemberID  string       `json:"member_id"`
		Role      channel.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ChannelID == "" || req.MemberID == "" {
		writeError(w, http.StatusBadRequest, "Channel ID and member ID are required")
		return
	}
	if req.Role != channel.RoleAdmin && req.Role != channel.RoleMember {
		writeError(w, http.StatusBadRequest, "Role must be admin or member")
		return
	}

	if _, ok := requireOwner(w, req.ChannelID, middleware.GetUserID(r)); !ok {
		return
	}

	target, err := channel.GetMemberByID(req.MemberID)
	if err != nil {
		storeError(w, err)
		return
	}
	if target.ChannelID != req.ChannelID {
		writeError(w, http.StatusNotFound, "Member not found")
		return
	}

	m, err := channel.UpdateMemberRole(req.MemberID, req.Role)
	if err != nil {
		storeError(w, err)
		return
	}

	go realtime.GlobalHub.Broadcast("member_role_updated", m)

	writeJSON(w, http.StatusOK, m)
}

func TransferOwnershipHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChannelID  string `json:"channel_id"`
		NewOwnerID string `json:"new_owner_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ChannelID == "" || req.NewOwnerID == "" {
		writeError(w, http.StatusBadRequest, "Channel ID and new owner ID are required")
		return
	}

	userID := middleware.GetUserID(r)
	if err := channel.TransferOwnership(req.ChannelID, req.NewOwnerID, userID); err != nil {
		storeError(w, err)
		return
	}

	go realtime.GlobalHub.Broadcast("ownership_transferred", map[string]string{
		"channel_id":   req.ChannelID,
		"new_owner_id": req.NewOwnerID,
	})

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Ownership transferred",
	})
}
