package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"harbor-server/internal/auth"
	"harbor-server/internal/config"
	"harbor-server/internal/logger"
	"harbor-server/internal/middleware"
	"harbor-server/internal/user"
	"harbor-server/internal/util"
)

// MeHandler returns the authenticated user's own record.
func MeHandler(w http.ResponseWriter, r *http.Request) {
	u := middleware.GetUser(r)
	if u == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, toAuthUser(u))
}

// GetUserHandler returns the public profile projection for a user by
// id or username.
func GetUserHandler(w http.ResponseWriter, r *http.Request) {
	var (
		u   *user.User
		err error
	)
	switch {
	case r.URL.Query().Get("user_id") != "":
		u, err = user.GetByID(r.URL.Query().Get("user_id"))
	case r.URL.Query().Get("username") != "":
		u, err = user.GetByUsername(r.URL.Query().Get("username"))
	default:
		writeError(w, http.StatusBadRequest, "User ID or username is required")
		return
	}

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to fetch user")
		return
	}

	profile, err := user.ProfileOf(u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch user")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// UpdateDisplayNameHandler changes the caller's display name.
func UpdateDisplayNameHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName string `json:"displayName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	name := strings.TrimSpace(req.DisplayName)
	if name == "" || len(name) > 50 {
		writeError(w, http.StatusBadRequest, "Display name must be 1-50 characters")
		return
	}

	u := middleware.GetUser(r)
	u.DisplayName = name
	if err := user.Save(u); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update display name")
		return
	}

	writeJSON(w, http.StatusOK, toAuthUser(u))
}

// UploadAvatarHandler accepts a multipart image upload, normalizes it
// through the avatar pipeline and records the stored filename.
func UploadAvatarHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	maxSize := config.Conf.MaxAvatarSize
	if err := r.ParseMultipartForm(maxSize); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse form")
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	if header.Size > maxSize {
		writeError(w, http.StatusBadRequest, "File too large")
		return
	}
	if !isValidImageType(header.Header.Get("Content-Type")) {
		writeError(w, http.StatusBadRequest, "Only PNG, JPG, JPEG, GIF, and WebP images are allowed")
		return
	}

	u := middleware.GetUser(r)
	filename, err := util.ProcessAvatar(file, u.ID)
	if err != nil {
		logger.Errorf("avatar processing failed for user %s: %v", u.ID, err)
		writeError(w, http.StatusBadRequest, "Could not process image")
		return
	}

	u.AvatarPath = filename
	if err := user.Save(u); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save avatar")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"avatar": util.GetFullURL(r, "uploads/avatars/"+filename),
	})
}

// LogoutHandler revokes the session behind the presented token.
func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "Missing or invalid token")
		return
	}

	if err := auth.DeleteSession(token); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to log out")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func isValidImageType(contentType string) bool {
	validTypes := []string{
		"image/png",
		"image/jpg",
		"image/jpeg",
		"image/gif",
		"image/webp",
	}
	for _, validType := range validTypes {
		if strings.EqualFold(contentType, validType) {
			return true
		}
	}
	return false
}
