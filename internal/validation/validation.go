// Package validation holds the declarative form schemas: each Validate
// function takes the raw input record and returns either a typed record
// or the full list of field errors.
package validation

import (
	"regexp"
	"strings"
	"unicode"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var (
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

type RegisterInput struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

func hasPasswordComplexity(password string) bool {
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

func (in *RegisterInput) Validate() []FieldError {
	var errs []FieldError

	if in.Email == "" {
		errs = append(errs, FieldError{"email", "email is required"})
	} else if !emailRe.MatchString(in.Email) {
		errs = append(errs, FieldError{"email", "invalid email address"})
	}

	switch {
	case len(in.Username) < 3 || len(in.Username) > 20:
		errs = append(errs, FieldError{"username", "username must be 3-20 characters"})
	case !usernameRe.MatchString(in.Username):
		errs = append(errs, FieldError{"username", "username may only contain letters, digits, _ and -"})
	}

	switch {
	case len(in.Password) < 8:
		errs = append(errs, FieldError{"password", "password must be at least 8 characters"})
	case len(in.Password) > 32:
		errs = append(errs, FieldError{"password", "password must be at most 32 characters"})
	case !hasPasswordComplexity(in.Password):
		errs = append(errs, FieldError{"password", "password must contain an uppercase letter, a lowercase letter and a digit"})
	}

	if len(in.DisplayName) > 50 {
		errs = append(errs, FieldError{"displayName", "display name must be at most 50 characters"})
	}

	return errs
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in *LoginInput) Validate() []FieldError {
	var errs []FieldError

	if in.Email == "" {
		errs = append(errs, FieldError{"email", "email is required"})
	} else if !emailRe.MatchString(in.Email) {
		errs = append(errs, FieldError{"email", "invalid email address"})
	}

	if in.Password == "" {
		errs = append(errs, FieldError{"password", "password is required"})
	}

	return errs
}

type OAuthInput struct {
	Provider    string `json:"provider"`
	Code        string `json:"code"`
	RedirectURI string `json:"redirectUri"`
}

func (in *OAuthInput) Validate() []FieldError {
	var errs []FieldError

	switch in.Provider {
	case "GOOGLE", "GITHUB", "DISCORD":
	default:
		errs = append(errs, FieldError{"provider", "unsupported provider"})
	}
	if in.Code == "" {
		errs = append(errs, FieldError{"code", "code is required"})
	}
	if !strings.HasPrefix(in.RedirectURI, "http://") && !strings.HasPrefix(in.RedirectURI, "https://") {
		errs = append(errs, FieldError{"redirectUri", "redirect URI must be a URL"})
	}

	return errs
}

type ChannelInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"is_private"`
}

func (in *ChannelInput) Validate() []FieldError {
	var errs []FieldError

	if strings.TrimSpace(in.Name) == "" {
		errs = append(errs, FieldError{"name", "channel name is required"})
	} else if len(in.Name) > 50 {
		errs = append(errs, FieldError{"name", "channel name must be at most 50 characters"})
	}

	if len(in.Description) > 500 {
		errs = append(errs, FieldError{"description", "description must be at most 500 characters"})
	}

	return errs
}
