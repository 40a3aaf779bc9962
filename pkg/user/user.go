package user

import (
	"errors"
	"strings"
)

// User is the signed-in person. Username is the only thing the ledger and report
// packages care about: it partitions every file they touch.
type User struct {
	Username string
}

var ErrInvalidUsername = errors.New("invalid username")

// ValidateUsername rejects names that cannot safely be used as a directory name.
func ValidateUsername(username string) error {
	if strings.TrimSpace(username) == "" || username == "." || username == ".." ||
		strings.ContainsAny(username, `/\`) || strings.ContainsRune(username, 0) {
		return ErrInvalidUsername
	}
	return nil
}
