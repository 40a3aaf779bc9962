package test_utils

import (
	"context"

	"github.com/pocketledger/pocketledger/pkg/user"
)

const TestUsername = "test_user"

// UserContext returns a background context signed in as username.
func UserContext(username string) context.Context {
	return user.WithUser(context.Background(), user.User{Username: username})
}

// TestUserContext returns a context signed in as TestUsername.
func TestUserContext() context.Context {
	return UserContext(TestUsername)
}
