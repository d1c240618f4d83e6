package client

import "harbor-server/internal/user"

// AuthorState tags the resolution status of a message's author
// projection so merge logic stays total: a pushed event starts Pending
// (or Resolved for the viewer's own messages) and is patched in place,
// never regressed.
type AuthorState int

const (
	AuthorUnknown AuthorState = iota
	AuthorPending
	AuthorResolved
)

type Author struct {
	State   AuthorState
	Profile user.Profile
}

func ResolvedAuthor(p user.Profile) Author {
	return Author{State: AuthorResolved, Profile: p}
}

func PendingAuthor(userID string) Author {
	return Author{State: AuthorPending, Profile: user.Profile{ID: userID}}
}

func UnknownAuthor(userID string) Author {
	return Author{State: AuthorUnknown, Profile: user.UnknownProfile(userID)}
}
