// Package models defines client-side data models used by the cardgpt CLI.
package models

// Identity is the authenticated-or-not state of the current user.
type Identity struct {
	UserID        string `json:"user_id,omitempty"`
	Username      string `json:"username,omitempty"`
	Email         string `json:"email,omitempty"`
	Authenticated bool   `json:"authenticated"`
}

// Anonymous is the identity of a user nobody vouched for.
func Anonymous() Identity {
	return Identity{}
}

// Profile is the server's "who am I" answer.
type Profile struct {
	ID        CardID `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

// Identity converts a confirmed profile into an authenticated Identity.
func (p Profile) Identity() Identity {
	return Identity{
		UserID:        p.ID.String(),
		Username:      p.Username,
		Email:         p.Email,
		Authenticated: true,
	}
}
