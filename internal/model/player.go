package model

// Username is the natural key of a player
type Username string

// Identity is an authenticated player as issued by the auth service.
// The core only references identities, it never creates them.
type Identity struct {
	UserID   int64
	Username Username
}

// String returns the username
func (i Identity) String() string {
	return string(i.Username)
}

// IsZero reports whether the identity is unset
func (i Identity) IsZero() bool {
	return i.Username == ""
}
