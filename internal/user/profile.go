package user

import "harbor-server/internal/db"

// Profile is the projection of a user attached to members and
// messages at read time. It is never stored alongside them.
type Profile struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	AvatarURL *string `json:"avatar_url"`
}

// UnknownProfile is the placeholder used when a user row cannot be
// resolved. Callers degrade to it instead of failing the whole read.
func UnknownProfile(id string) Profile {
	return Profile{ID: id, Username: "unknown", AvatarURL: nil}
}

// ResolveProfiles fetches the profile projection for a set of user
// IDs in one query. Missing IDs are simply absent from the result.
func ResolveProfiles(ids []string) (map[string]Profile, error) {
	profiles := make(map[string]Profile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}

	var users []User
	if err := db.DB.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}

	for _, u := range users {
		p := Profile{ID: u.ID, Username: u.Username}
		if u.AvatarPath != "" {
			path := "/uploads/avatars/" + u.AvatarPath
			p.AvatarURL = &path
		}
		profiles[u.ID] = p
	}
	return profiles, nil
}

// ProfileOf resolves a single user's projection.
func ProfileOf(id string) (Profile, error) {
	resolved, err := ResolveProfiles([]string{id})
	if err != nil {
		return Profile{}, err
	}
	p, ok := resolved[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}
