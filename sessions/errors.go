package sessions

import "errors"

var (
	ErrIncompleteSession = errors.New("session requires both access and refresh tokens")
	ErrNoSession         = errors.New("no session to apply refresh result to")
)
