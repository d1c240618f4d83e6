package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"harbor-server/internal/auth"
	"harbor-server/internal/channel"
	"harbor-server/internal/config"
	"harbor-server/internal/db"
	"harbor-server/internal/middleware"
	"harbor-server/internal/user"
)

// setupTestServer boots a fresh database and an httptest server with
// the real route table minus rate limiting.
func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	if err := db.Init(filepath.Join(t.TempDir(), "api.db")); err != nil {
		t.Fatalf("db init: %v", err)
	}
	err := db.DB.AutoMigrate(
		&user.User{},
		&auth.Session{},
		&channel.Channel{},
		&channel.Member{},
		&channel.Message{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	config.Conf.JWTSecret = "test-secret"
	config.Conf.SessionTTLDays = 1
	config.Conf.MaxMessageLength = 100

	mux := http.NewServeMux()
	mux.HandleFunc("/health", HealthHandler)
	mux.HandleFunc("/server", GetServerMetadataHandler)
	mux.HandleFunc("/api/auth/register", RegisterHandler)
	mux.HandleFunc("/api/auth/login", LoginHandler)
	mux.HandleFunc("/api/auth/oauth", OAuthHandler)
	mux.HandleFunc("/api/auth/logout", middleware.RequireAuth(LogoutHandler))
	mux.HandleFunc("/api/users/me", middleware.RequireAuth(MeHandler))
	mux.HandleFunc("/api/users/get", middleware.RequireAuth(GetUserHandler))
	mux.HandleFunc("/api/users/display-name", middleware.RequireAuth(UpdateDisplayNameHandler))
	mux.HandleFunc("/channels", middleware.RequireAuth(ListChannelsHandler))
	mux.HandleFunc("/channels/get", middleware.RequireAuth(GetChannelHandler))
	mux.HandleFunc("/channels/create", middleware.RequireAuth(CreateChannelHandler))
	mux.HandleFunc("/channels/update", middleware.RequireAuth(UpdateChannelHandler))
	mux.HandleFunc("/channels/delete", middleware.RequireAuth(DeleteChannelHandler))
	mux.HandleFunc("/channels/members", middleware.RequireAuth(GetChannelMembersHandler))
	mux.HandleFunc("/channels/join", middleware.RequireAuth(JoinChannelHandler))
	mux.HandleFunc("/channels/leave", middleware.RequireAuth(LeaveChannelHandler))
	mux.HandleFunc("/channels/invite", middleware.RequireAuth(InviteMemberHandler))
	mux.HandleFunc("/channels/members/remove", middleware.RequireAuth(RemoveMemberHandler))
	mux.HandleFunc("/channels/members/role", middleware.RequireAuth(UpdateMemberRoleHandler))
	mux.HandleFunc("/channels/transfer", middleware.RequireAuth(TransferOwnershipHandler))
	mux.HandleFunc("/messages", middleware.RequireAuth(GetChannelMessagesHandler))
	mux.HandleFunc("/messages/send", middleware.RequireAuth(SendMessageHandler))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func doReq(t *testing.T, baseURL, token, method, path string, body interface{}) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, baseURL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func registerUser(t *testing.T, baseURL, username string) (token, userID string) {
	t.Helper()

	resp := doReq(t, baseURL, "", http.MethodPost, "/api/auth/register", map[string]string{
		"email":    username + "@example.com",
		"username": username,
		"password": "Sup3rSecret",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register %s status = %d", username, resp.StatusCode)
	}

	var payload authResponse
	decodeJSON(t, resp, &payload)
	if payload.Tokens.AccessToken == "" || payload.User.ID == "" {
		t.Fatalf("register %s returned incomplete payload: %+v", username, payload)
	}
	return payload.Tokens.AccessToken, payload.User.ID
}

func createChannel(t *testing.T, baseURL, token, name string, private bool) string {
	t.Helper()

	resp := doReq(t, baseURL, token, http.MethodPost, "/channels/create", map[string]interface{}{
		"name":       name,
		"is_private": private,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create channel status = %d", resp.StatusCode)
	}
	var ch channel.Channel
	decodeJSON(t, resp, &ch)
	if ch.ID == "" {
		t.Fatalf("expected channel id")
	}
	return ch.ID
}

func memberID(t *testing.T, baseURL, token, channelID, userID string) string {
	t.Helper()

	resp := doReq(t, baseURL, token, http.MethodGet, "/channels/members?channel_id="+channelID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list members status = %d", resp.StatusCode)
	}
	var payload struct {
		Members []channel.MemberInfo `json:"members"`
	}
	decodeJSON(t, resp, &payload)
	for _, m := range payload.Members {
		if m.UserID == userID {
			return m.Member.ID
		}
	}
	t.Fatalf("user %s not in member list", userID)
	return ""
}

func TestRegisterLoginFlow(t *testing.T) {
	server := setupTestServer(t)

	token, _ := registerUser(t, server.URL, "alice")

	// Same email or username is rejected.
	dup := doReq(t, server.URL, "", http.MethodPost, "/api/auth/register", map[string]string{
		"email":    "alice@example.com",
		"username": "alice",
		"password": "Sup3rSecret",
	})
	if dup.StatusCode != http.StatusBadRequest {
		t.Fatalf("duplicate register status = %d", dup.StatusCode)
	}
	_ = dup.Body.Close()

	login := doReq(t, server.URL, "", http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "Sup3rSecret",
	})
	if login.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", login.StatusCode)
	}
	var payload authResponse
	decodeJSON(t, login, &payload)
	if payload.User.Username != "alice" {
		t.Fatalf("login user = %q", payload.User.Username)
	}

	bad := doReq(t, server.URL, "", http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "WrongPassword1",
	})
	if bad.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d", bad.StatusCode)
	}
	_ = bad.Body.Close()

	me := doReq(t, server.URL, token, http.MethodGet, "/api/users/me", nil)
	if me.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d", me.StatusCode)
	}
	var meUser authUser
	decodeJSON(t, me, &meUser)
	if meUser.DisplayName != "alice" {
		t.Fatalf("display name should default to username, got %q", meUser.DisplayName)
	}
}

func TestRegisterValidation(t *testing.T) {
	server := setupTestServer(t)

	resp := doReq(t, server.URL, "", http.MethodPost, "/api/auth/register", map[string]string{
		"email":    "not-an-email",
		"username": "x",
		"password": "weak",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var payload struct {
		Fields []struct {
			Field string `json:"field"`
		} `json:"fields"`
	}
	decodeJSON(t, resp, &payload)
	if len(payload.Fields) < 3 {
		t.Fatalf("expected errors on email, username and password, got %+v", payload.Fields)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	server := setupTestServer(t)
	token, _ := registerUser(t, server.URL, "alice")

	out := doReq(t, server.URL, token, http.MethodPost, "/api/auth/logout", nil)
	if out.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d", out.StatusCode)
	}
	_ = out.Body.Close()

	me := doReq(t, server.URL, token, http.MethodGet, "/api/users/me", nil)
	if me.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me after logout status = %d", me.StatusCode)
	}
	_ = me.Body.Close()
}

func TestChannelLifecycle(t *testing.T) {
	server := setupTestServer(t)
	token, userID := registerUser(t, server.URL, "alice")

	channelID := createChannel(t, server.URL, token, "general", false)

	// The creator is the sole, owner-role member.
	resp := doReq(t, server.URL, token, http.MethodGet, "/channels/members?channel_id="+channelID, nil)
	var members struct {
		Members []channel.MemberInfo `json:"members"`
	}
	decodeJSON(t, resp, &members)
	if len(members.Members) != 1 || members.Members[0].Role != channel.RoleOwner || members.Members[0].UserID != userID {
		t.Fatalf("unexpected member list: %+v", members.Members)
	}

	update := doReq(t, server.URL, token, http.MethodPost, "/channels/update", map[string]string{
		"channel_id":  channelID,
		"description": "the town square",
	})
	if update.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", update.StatusCode)
	}
	var updated channel.Channel
	decodeJSON(t, update, &updated)
	if updated.Description != "the town square" || updated.Name != "general" {
		t.Fatalf("partial update went wrong: %+v", updated)
	}

	del := doReq(t, server.URL, token, http.MethodPost, "/channels/delete", map[string]string{
		"channel_id": channelID,
	})
	if del.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", del.StatusCode)
	}
	_ = del.Body.Close()

	gone := doReq(t, server.URL, token, http.MethodGet, "/channels/get?channel_id="+channelID, nil)
	if gone.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", gone.StatusCode)
	}
	_ = gone.Body.Close()
}

func TestChannelRoleEnforcement(t *testing.T) {
	server := setupTestServer(t)
	ownerToken, _ := registerUser(t, server.URL, "alice")
	memberToken, memberUserID := registerUser(t, server.URL, "bob")

	channelID := createChannel(t, server.URL, ownerToken, "general", false)

	join := doReq(t, server.URL, memberToken, http.MethodPost, "/channels/join", map[string]string{
		"channel_id": channelID,
	})
	if join.StatusCode != http.StatusCreated {
		t.Fatalf("join status = %d", join.StatusCode)
	}
	_ = join.Body.Close()

	// A plain member cannot touch channel settings.
	denied := doReq(t, server.URL, memberToken, http.MethodPost, "/channels/update", map[string]string{
		"channel_id": channelID,
		"name":       "hijacked",
	})
	if denied.StatusCode != http.StatusForbidden {
		t.Fatalf("member update status = %d", denied.StatusCode)
	}
	_ = denied.Body.Close()

	// Promotion is owner-only; the member cannot self-promote.
	bobMemberID := memberID(t, server.URL, ownerToken, channelID, memberUserID)
	selfPromote := doReq(t, server.URL, memberToken, http.MethodPost, "/channels/members/role", map[string]string{
		"channel_id": channelID,
		"member_id":  bobMemberID,
		"role":       "admin",
	})
	if selfPromote.StatusCode != http.StatusForbidden {
		t.Fatalf("self promote status = %d", selfPromote.StatusCode)
	}
	_ = selfPromote.Body.Close()

	promote := doReq(t, server.URL, ownerToken, http.MethodPost, "/channels/members/role", map[string]string{
		"channel_id": channelID,
		"member_id":  bobMemberID,
		"role":       "admin",
	})
	if promote.StatusCode != http.StatusOK {
		t.Fatalf("promote status = %d", promote.StatusCode)
	}
	var promoted channel.Member
	decodeJSON(t, promote, &promoted)
	if promoted.Role != channel.RoleAdmin {
		t.Fatalf("role after promote = %q", promoted.Role)
	}

	// Admins manage channel settings.
	update := doReq(t, server.URL, memberToken, http.MethodPost, "/channels/update", map[string]string{
		"channel_id": channelID,
		"name":       "renamed",
	})
	if update.StatusCode != http.StatusOK {
		t.Fatalf("admin update status = %d", update.StatusCode)
	}
	_ = update.Body.Close()

	// But only the owner hands out roles.
	carolToken, carolID := registerUser(t, server.URL, "carol")
	joinCarol := doReq(t, server.URL, carolToken, http.MethodPost, "/channels/join", map[string]string{
		"channel_id": channelID,
	})
	if joinCarol.StatusCode != http.StatusCreated {
		t.Fatalf("carol join status = %d", joinCarol.StatusCode)
	}
	_ = joinCarol.Body.Close()

	carolMemberID := memberID(t, server.URL, ownerToken, channelID, carolID)
	adminGrant := doReq(t, server.URL, memberToken, http.MethodPost, "/channels/members/role", map[string]string{
		"channel_id": channelID,
		"member_id":  carolMemberID,
		"role":       "admin",
	})
	if adminGrant.StatusCode != http.StatusForbidden {
		t.Fatalf("admin granting role status = %d", adminGrant.StatusCode)
	}
	_ = adminGrant.Body.Close()
}

func TestRemoveMemberRules(t *testing.T) {
	server := setupTestServer(t)
	ownerToken, ownerID := registerUser(t, server.URL, "alice")
	adminToken, adminUserID := registerUser(t, server.URL, "bob")
	_, carolID := registerUser(t, server.URL, "carol")

	channelID := createChannel(t, server.URL, ownerToken, "general", false)
	join := doReq(t, server.URL, adminToken, http.MethodPost, "/channels/join", map[string]string{"channel_id": channelID})
	if join.StatusCode != http.StatusCreated {
		t.Fatalf("join status = %d", join.StatusCode)
	}
	_ = join.Body.Close()
	invite := doReq(t, server.URL, ownerToken, http.MethodPost, "/channels/invite", map[string]string{
		"channel_id": channelID,
		"username":   "carol",
	})
	if invite.StatusCode != http.StatusCreated {
		t.Fatalf("invite status = %d", invite.StatusCode)
	}
	_ = invite.Body.Close()

	bobMemberID := memberID(t, server.URL, ownerToken, channelID, adminUserID)
	promote := doReq(t, server.URL, ownerToken, http.MethodPost, "/channels/members/role", map[string]string{
		"channel_id": channelID,
		"member_id":  bobMemberID,
		"role":       "admin",
	})
	if promote.StatusCode != http.StatusOK {
		t.Fatalf("promote status = %d", promote.StatusCode)
	}
	_ = promote.Body.Close()

	// An admin can remove a plain member.
	carolMemberID := memberID(t, server.URL, ownerToken, channelID, carolID)
	remove := doReq(t, server.URL, adminToken, http.MethodPost, "/channels/members/remove", map[string]string{
		"channel_id": channelID,
		"member_id":  carolMemberID,
	})
	if remove.StatusCode != http.StatusOK {
		t.Fatalf("remove member status = %d", remove.StatusCode)
	}
	_ = remove.Body.Close()

	// An admin cannot remove the owner.
	ownerMemberID := memberID(t, server.URL, ownerToken, channelID, ownerID)
	removeOwner := doReq(t, server.URL, adminToken, http.MethodPost, "/channels/members/remove", map[string]string{
		"channel_id": channelID,
		"member_id":  ownerMemberID,
	})
	if removeOwner.StatusCode != http.StatusBadRequest {
		t.Fatalf("remove owner status = %d", removeOwner.StatusCode)
	}
	_ = removeOwner.Body.Close()
}

func TestPrivateChannelVisibility(t *testing.T) {
	server := setupTestServer(t)
	ownerToken, _ := registerUser(t, server.URL, "alice")
	outsiderToken, _ := registerUser(t, server.URL, "bob")

	channelID := createChannel(t, server.URL, ownerToken, "secret", true)

	// Hidden from listing.
	list := doReq(t, server.URL, outsiderToken, http.MethodGet, "/channels", nil)
	var listing struct {
		Channels []channel.Channel `json:"channels"`
	}
	decodeJSON(t, list, &listing)
	for _, ch := range listing.Channels {
		if ch.ID == channelID {
			t.Fatalf("private channel leaked into listing")
		}
	}

	// Indistinguishable from a missing channel.
	get := doReq(t, server.URL, outsiderToken, http.MethodGet, "/channels/get?channel_id="+channelID, nil)
	if get.StatusCode != http.StatusNotFound {
		t.Fatalf("outsider get status = %d", get.StatusCode)
	}
	_ = get.Body.Close()

	join := doReq(t, server.URL, outsiderToken, http.MethodPost, "/channels/join", map[string]string{
		"channel_id": channelID,
	})
	if join.StatusCode != http.StatusNotFound {
		t.Fatalf("outsider join status = %d", join.StatusCode)
	}
	_ = join.Body.Close()

	// An invite opens it up.
	invite := doReq(t, server.URL, ownerToken, http.MethodPost, "/channels/invite", map[string]string{
		"channel_id": channelID,
		"username":   "bob",
	})
	if invite.StatusCode != http.StatusCreated {
		t.Fatalf("invite status = %d", invite.StatusCode)
	}
	_ = invite.Body.Close()

	get = doReq(t, server.URL, outsiderToken, http.MethodGet, "/channels/get?channel_id="+channelID, nil)
	if get.StatusCode != http.StatusOK {
		t.Fatalf("member get status = %d", get.StatusCode)
	}
	_ = get.Body.Close()
}

func TestMessagePolicy(t *testing.T) {
	server := setupTestServer(t)
	ownerToken, _ := registerUser(t, server.URL, "alice")
	outsiderToken, _ := registerUser(t, server.URL, "bob")

	channelID := createChannel(t, server.URL, ownerToken, "general", false)

	// Reading and writing both require membership, even on a public channel.
	read := doReq(t, server.URL, outsiderToken, http.MethodGet, "/messages?channel_id="+channelID, nil)
	if read.StatusCode != http.StatusForbidden {
		t.Fatalf("outsider read status = %d", read.StatusCode)
	}
	_ = read.Body.Close()

	send := doReq(t, server.URL, outsiderToken, http.MethodPost, "/messages/send", map[string]string{
		"channel_id": channelID,
		"content":    "hi",
	})
	if send.StatusCode != http.StatusForbidden {
		t.Fatalf("outsider send status = %d", send.StatusCode)
	}
	_ = send.Body.Close()

	send = doReq(t, server.URL, ownerToken, http.MethodPost, "/messages/send", map[string]string{
		"channel_id": channelID,
		"content":    "hello world",
	})
	if send.StatusCode != http.StatusCreated {
		t.Fatalf("member send status = %d", send.StatusCode)
	}
	var sent channel.Message
	decodeJSON(t, send, &sent)
	if sent.ID == "" || sent.Content != "hello world" {
		t.Fatalf("unexpected message row: %+v", sent)
	}

	// Whitespace-only and oversize content are rejected.
	blank := doReq(t, server.URL, ownerToken, http.MethodPost, "/messages/send", map[string]string{
		"channel_id": channelID,
		"content":    "   ",
	})
	if blank.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank send status = %d", blank.StatusCode)
	}
	_ = blank.Body.Close()

	long := doReq(t, server.URL, ownerToken, http.MethodPost, "/messages/send", map[string]string{
		"channel_id": channelID,
		"content":    fmt.Sprintf("%0101d", 0),
	})
	if long.StatusCode != http.StatusBadRequest {
		t.Fatalf("oversize send status = %d", long.StatusCode)
	}
	_ = long.Body.Close()

	list := doReq(t, server.URL, ownerToken, http.MethodGet, "/messages?channel_id="+channelID, nil)
	if list.StatusCode != http.StatusOK {
		t.Fatalf("member read status = %d", list.StatusCode)
	}
	var payload struct {
		Messages []channel.MessageInfo `json:"messages"`
	}
	decodeJSON(t, list, &payload)
	if len(payload.Messages) != 1 || payload.Messages[0].User.Username != "alice" {
		t.Fatalf("unexpected messages: %+v", payload.Messages)
	}
}

func TestTransferOwnershipEndpoint(t *testing.T) {
	server := setupTestServer(t)
	ownerToken, _ := registerUser(t, server.URL, "alice")
	nextToken, nextID := registerUser(t, server.URL, "bob")

	channelID := createChannel(t, server.URL, ownerToken, "general", false)
	join := doReq(t, server.URL, nextToken, http.MethodPost, "/channels/join", map[string]string{
		"channel_id": channelID,
	})
	if join.StatusCode != http.StatusCreated {
		t.Fatalf("join status = %d", join.StatusCode)
	}
	_ = join.Body.Close()

	// A non-owner cannot transfer, even to themselves.
	denied := doReq(t, server.URL, nextToken, http.MethodPost, "/channels/transfer", map[string]string{
		"channel_id":   channelID,
		"new_owner_id": nextID,
	})
	if denied.StatusCode != http.StatusForbidden {
		t.Fatalf("non-owner transfer status = %d", denied.StatusCode)
	}
	_ = denied.Body.Close()

	transfer := doReq(t, server.URL, ownerToken, http.MethodPost, "/channels/transfer", map[string]string{
		"channel_id":   channelID,
		"new_owner_id": nextID,
	})
	if transfer.StatusCode != http.StatusOK {
		t.Fatalf("transfer status = %d", transfer.StatusCode)
	}
	_ = transfer.Body.Close()

	get := doReq(t, server.URL, nextToken, http.MethodGet, "/channels/get?channel_id="+channelID, nil)
	var ch channel.Channel
	decodeJSON(t, get, &ch)
	if ch.OwnerID != nextID {
		t.Fatalf("owner after transfer = %q", ch.OwnerID)
	}

	// The old owner can leave now.
	leave := doReq(t, server.URL, ownerToken, http.MethodPost, "/channels/leave", map[string]string{
		"channel_id": channelID,
	})
	if leave.StatusCode != http.StatusOK {
		t.Fatalf("leave after transfer status = %d", leave.StatusCode)
	}
	_ = leave.Body.Close()
}

func TestOAuthNotImplemented(t *testing.T) {
	server := setupTestServer(t)

	resp := doReq(t, server.URL, "", http.MethodPost, "/api/auth/oauth", map[string]string{
		"provider":    "GITHUB",
		"code":        "abc",
		"redirectUri": "https://app.example.com/cb",
	})
	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("oauth status = %d", resp.StatusCode)
	}
	_ = resp.Body.Close()
}

func TestUserProfileEndpoints(t *testing.T) {
	server := setupTestServer(t)
	token, userID := registerUser(t, server.URL, "alice")
	otherToken, _ := registerUser(t, server.URL, "bob")

	rename := doReq(t, server.URL, token, http.MethodPost, "/api/users/display-name", map[string]string{
		"displayName": "Alice in Chains",
	})
	if rename.StatusCode != http.StatusOK {
		t.Fatalf("rename status = %d", rename.StatusCode)
	}
	var renamed authUser
	decodeJSON(t, rename, &renamed)
	if renamed.DisplayName != "Alice in Chains" {
		t.Fatalf("display name = %q", renamed.DisplayName)
	}

	blank := doReq(t, server.URL, token, http.MethodPost, "/api/users/display-name", map[string]string{
		"displayName": "   ",
	})
	if blank.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank rename status = %d", blank.StatusCode)
	}
	_ = blank.Body.Close()

	// Other users see the public projection, by id or username.
	byID := doReq(t, server.URL, otherToken, http.MethodGet, "/api/users/get?user_id="+userID, nil)
	if byID.StatusCode != http.StatusOK {
		t.Fatalf("get by id status = %d", byID.StatusCode)
	}
	var profile user.Profile
	decodeJSON(t, byID, &profile)
	if profile.Username != "alice" {
		t.Fatalf("profile username = %q", profile.Username)
	}

	missing := doReq(t, server.URL, otherToken, http.MethodGet, "/api/users/get?username=nobody", nil)
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("missing user status = %d", missing.StatusCode)
	}
	_ = missing.Body.Close()
}

func TestHealthAndServerMetadata(t *testing.T) {
	server := setupTestServer(t)
	config.Conf.Name = "Harbor Test"

	health := doReq(t, server.URL, "", http.MethodGet, "/health", nil)
	if health.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", health.StatusCode)
	}
	var status map[string]string
	decodeJSON(t, health, &status)
	if status["status"] != "ok" {
		t.Fatalf("health payload = %v", status)
	}

	meta := doReq(t, server.URL, "", http.MethodGet, "/server", nil)
	if meta.StatusCode != http.StatusOK {
		t.Fatalf("server metadata status = %d", meta.StatusCode)
	}
	var payload struct {
		Name string `json:"name"`
	}
	decodeJSON(t, meta, &payload)
	if payload.Name != "Harbor Test" {
		t.Fatalf("server name = %q", payload.Name)
	}
}
