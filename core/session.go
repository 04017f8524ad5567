package core

import "github.com/pkg/errors"

var ErrSessionExpired = errors.New("your session has expired, please log in again")

// Session is the authenticated operator on whose behalf records are created.
type Session struct {
	ActorID     string
	Username    string
	Email       string
	Credentials string // forwarded to the remote API as-is
}

func (s Session) Valid() error {
	if CleanString(s.ActorID) == "" {
		return ErrSessionExpired
	}
	return nil
}
