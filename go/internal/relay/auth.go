package relay

import (
	"crypto/subtle"
	"errors"
)

// ErrBadPassword is returned when a login password is not on the runner list.
var ErrBadPassword = errors.New("password not accepted")

// NoNextPassword is announced to the last runner on the list.
const NoNextPassword = "none"

// Authenticator checks a login password and names the password that rotates
// in after it.
type Authenticator interface {
	Check(password string) (next string, err error)
}

// PasswordList accepts any password on an ordered runner list.
type PasswordList struct {
	passwords []string
}

// NewPasswordList copies passwords in runner order.
func NewPasswordList(passwords []string) *PasswordList {
	return &PasswordList{passwords: append([]string(nil), passwords...)}
}

// Check returns the password after the given one, or NoNextPassword for the
// last runner.
func (p *PasswordList) Check(password string) (string, error) {
	for i, candidate := range p.passwords {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(password)) != 1 {
			continue
		}
		if i+1 < len(p.passwords) {
			return p.passwords[i+1], nil
		}
		return NoNextPassword, nil
	}
	return "", ErrBadPassword
}
