package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

// Role is the integer role tag carried on a user profile.
type Role int

const (
	// RoleAdmin is the only elevated role; every other value is a standard user.
	RoleAdmin Role = 1
	// RoleUser is the role assigned when an identity source carries none.
	RoleUser Role = 2
)

// User is the profile returned by the login backend. JSON names follow the
// backend contract so the profile can be stored and re-read verbatim.
type User struct {
	ID    int    `json:"id"`
	Name  string `json:"nombre"`
	Email string `json:"email"`
	Role  Role   `json:"rol"`
}

// IsAdmin reports whether the user carries the administrator role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// Credentials are the transient inputs of a login attempt. They are never stored.
type Credentials struct {
	Email    string
	Password string
}

// String redacts the password so credentials can never leak through logging.
func (c Credentials) String() string { return "Credentials{Email:" + c.Email + ", Password:<redacted>}" }

// AuthResult is produced by a credential gateway and consumed once to populate a Session.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	User         User
}

// Session is the authentication state held for one browsing context.
// Token and User are either both present or both absent.
type Session struct {
	Token        string
	RefreshToken string
	User         *User
}

// SessionFrom builds the session recorded by a successful login.
func SessionFrom(res AuthResult) Session {
	u := res.User
	return Session{Token: res.AccessToken, RefreshToken: res.RefreshToken, User: &u}
}

// Authenticated reports whether both the token and the profile are present.
func (s Session) Authenticated() bool { return s.Token != "" && s.User != nil }

// IsAdmin reports whether the session belongs to an administrator.
func (s Session) IsAdmin() bool { return s.Authenticated() && s.User.IsAdmin() }

// EventKind identifies a session mutation.
type EventKind string

const (
	// EventWritten is emitted after a successful write.
	EventWritten EventKind = "written"
	// EventCleared is emitted after a clear, including clears of absent sessions.
	EventCleared EventKind = "cleared"
	// EventReplaced is emitted when login reissued the session under a new
	// ID. Subscribers must resolve their session ID again.
	EventReplaced EventKind = "replaced"
)

// SessionEvent notifies subscribers that a session changed.
type SessionEvent struct {
	SessionID string    `json:"session_id"`
	Kind      EventKind `json:"kind"`
}
