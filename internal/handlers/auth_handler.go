package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"harbor-server/internal/auth"
	"harbor-server/internal/logger"
	"harbor-server/internal/user"
	"harbor-server/internal/validation"
)

type authTokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type authUser struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	Username    string  `json:"username"`
	DisplayName string  `json:"displayName"`
	Avatar      *string `json:"avatar"`
}

type authResponse struct {
	Tokens authTokens `json:"tokens"`
	User   authUser   `json:"user"`
}

func toAuthUser(u *user.User) authUser {
	out := authUser{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		DisplayName: u.DisplayName,
	}
	if u.AvatarPath != "" {
		path := "/uploads/avatars/" + u.AvatarPath
		out.Avatar = &path
	}
	return out
}

func sessionResponse(w http.ResponseWriter, u *user.User) {
	session, err := auth.CreateSession(u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Tokens: authTokens{
			AccessToken:  session.Token,
			RefreshToken: session.Token,
		},
		User: toAuthUser(u),
	})
}

func RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var in validation.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := in.Validate(); len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}

	exists, err := user.ExistsByEmailOrUsername(in.Email, in.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check existing users")
		return
	}
	if exists {
		writeError(w, http.StatusBadRequest, "Email or username already exists")
		return
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	displayName := in.DisplayName
	if displayName == "" {
		displayName = in.Username
	}

	u := &user.User{
		Email:        in.Email,
		Username:     in.Username,
		DisplayName:  displayName,
		PasswordHash: hash,
	}
	if err := user.Create(u); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	logger.Infof("registered user %s (%s)", u.Username, u.ID)
	sessionResponse(w, u)
}

func LoginHandler(w http.ResponseWriter, r *http.Request) {
	var in validation.LoginInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := in.Validate(); len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}

	u, err := user.GetByEmail(in.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	if !auth.ComparePassword(in.Password, u.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	sessionResponse(w, u)
}

// OAuthHandler validates the request shape but provider exchange is
// not implemented.
func OAuthHandler(w http.ResponseWriter, r *http.Request) {
	var in validation.OAuthInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := in.Validate(); len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}

	writeError(w, http.StatusNotImplemented, "OAuth login not implemented")
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
