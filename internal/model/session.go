package model

// Session is the authenticated identity and bearer token held by the client.
// The zero value is the logged-out session. Identity is display-only: every
// authorization decision is made by the server.
type Session struct {
	Token    string `json:"token,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
}

// NewSession builds a session, collapsing to the logged-out session unless
// token, user id and username are all present.
func NewSession(token, userID, username string) Session {
	if token == "" || userID == "" || username == "" {
		return Session{}
	}
	return Session{Token: token, UserID: userID, Username: username}
}

// Authenticated reports whether a token is held.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// SameIdentity reports whether both sessions belong to the same user.
func (s Session) SameIdentity(other Session) bool {
	return s.UserID == other.UserID
}

// Credentials are sent to the login and signup endpoints.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
