package domain

// Session is the authentication state shared by every surface of the client:
// the bearer credential and the user it belongs to.
type Session struct {
	AccessToken string `json:"accessToken,omitempty"`
	User        *User  `json:"user,omitempty"`
}

// Authenticated reports whether a user is signed in.
func (s Session) Authenticated() bool {
	return s.User != nil
}
