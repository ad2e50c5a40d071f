package session

import (
	"context"
	"crypto/subtle"
	"strings"
)

// GuestUser names sessions opened with an anonymous access code
const GuestUser = "guest"

// Authenticator checks a credential and names the user behind it
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (user string, err error)
}

// AccessCodes accepts a fixed list of codes. An entry "name:code" logs in
// as name; a bare "code" logs in as GuestUser.
type AccessCodes struct {
	entries []accessCode
}

type accessCode struct {
	user string
	code []byte
}

// NewAccessCodes parses entries as read from AUTH_ACCESS_CODES
func NewAccessCodes(entries []string) *AccessCodes {
	a := &AccessCodes{}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		user, code := GuestUser, e
		if i := strings.IndexByte(e, ':'); i > 0 && i < len(e)-1 {
			user, code = e[:i], e[i+1:]
		}
		a.entries = append(a.entries, accessCode{user: user, code: []byte(code)})
	}
	return a
}

// Len returns the number of configured codes
func (a *AccessCodes) Len() int { return len(a.entries) }

// Authenticate compares credential against every code in constant time
func (a *AccessCodes) Authenticate(ctx context.Context, credential string) (string, error) {
	given := []byte(strings.TrimSpace(credential))
	if len(given) == 0 {
		return "", ErrUnauthorized
	}

	user := ""
	for _, e := range a.entries {
		if subtle.ConstantTimeCompare(given, e.code) == 1 && user == "" {
			user = e.user
		}
	}
	if user == "" {
		return "", ErrUnauthorized
	}
	return user, nil
}
