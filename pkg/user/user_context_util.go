package user

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

type contextKey string

const UserKey contextKey = "user"

var ErrNoUser = errors.New("user not found")

// CurrentUsername retrieves the current user's name from the context. Returns ErrNoUser if no user is present
// and ErrInvalidUsername if the name cannot be used as a partition key.
func CurrentUsername(ctx context.Context) (string, error) {
	u, err := CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	if err := ValidateUsername(u.Username); err != nil {
		return "", fmt.Errorf("%w: %q", err, u.Username)
	}
	return u.Username, nil
}

func CurrentUser(ctx context.Context) (User, error) {
	u, ok := ctx.Value(UserKey).(User)
	if !ok {
		log.Trace("user not found in context")
		return User{}, ErrNoUser
	}
	return u, nil
}

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, UserKey, u)
}
