package app

import (
	"context"
	"errors"

	"github.com/pocketledger/pocketledger/pkg/auth"
	"github.com/pocketledger/pocketledger/pkg/profile"
	"github.com/pocketledger/pocketledger/pkg/user"
	log "github.com/sirupsen/logrus"
)

// loginScreen loops until the user has signed up or logged in and returns a context
// carrying that user.
func (a *Application) loginScreen(ctx context.Context) (context.Context, error) {
	a.println("This is the login window.")
	for {
		action, err := a.prompt("1-Sign up\n2-Login\n3-Forgot password\n")
		if err != nil {
			return nil, err
		}

		var u user.User
		switch action {
		case "1":
			u, err = a.signUp(ctx)
		case "2":
			u, err = a.login(ctx)
		case "3":
			err = a.forgotPassword(ctx)
			continue
		default:
			a.println("Please enter correct action.")
			continue
		}
		if errors.Is(err, errRetry) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return a.startSession(ctx, u)
	}
}

// errRetry sends the user back to the login screen.
var errRetry = errors.New("retry")

func (a *Application) signUp(ctx context.Context) (user.User, error) {
	username, err := a.chooseUsername()
	if err != nil {
		return user.User{}, err
	}
	password, err := a.choosePassword()
	if err != nil {
		return user.User{}, err
	}

	u, err := a.deps.AuthService.SignUp(ctx, username, password)
	switch {
	case errors.Is(err, auth.ErrUsernameTaken):
		a.println("Username not available.")
		return user.User{}, errRetry
	case errors.Is(err, user.ErrInvalidUsername):
		a.println("Username cannot be used, pick another one.")
		return user.User{}, errRetry
	case err != nil:
		log.Errorf("Sign up failed: %v", err)
		a.println("Sign up failed.")
		return user.User{}, errRetry
	}

	a.printf("Your new username is: %s\n", u.Username)
	a.printf("Your new password is: %s\n", password)
	a.println("Please remember your username and password. It is one-time view only.")
	a.println("Sign up successful.")
	return u, nil
}

func (a *Application) login(ctx context.Context) (user.User, error) {
	username, err := a.prompt("Enter your username: ")
	if err != nil {
		return user.User{}, err
	}
	password, err := a.prompt("Enter your password: ")
	if err != nil {
		return user.User{}, err
	}

	u, err := a.deps.AuthService.Login(ctx, username, password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		a.println("Username or password doesn't match.")
		return user.User{}, errRetry
	}
	if err != nil {
		log.Errorf("Login failed: %v", err)
		a.println("Login failed.")
		return user.User{}, errRetry
	}
	a.println("Login successful.")
	return u, nil
}

func (a *Application) forgotPassword(ctx context.Context) error {
	username, err := a.prompt("Enter your username: ")
	if err != nil {
		return err
	}
	password, err := a.choosePassword()
	if err != nil {
		return err
	}

	err = a.deps.AuthService.ResetPassword(ctx, username, password)
	switch {
	case errors.Is(err, auth.ErrUserNotRegistered):
		a.println("User not registered.")
	case err != nil:
		log.Errorf("Password reset failed: %v", err)
		a.println("Password reset failed.")
	default:
		a.println("Password updated successfully.")
		a.printf("Your new password is: %s\n", password)
		a.println("Please login to continue.")
	}
	return nil
}

func (a *Application) chooseUsername() (string, error) {
	for {
		choice, err := a.prompt("1-Random username\n2-Type in username\n")
		if err != nil {
			return "", err
		}
		switch choice {
		case "1":
			return auth.GenerateUsername(), nil
		case "2":
			return a.prompt("Enter your username: ")
		default:
			a.println("Please enter correct action.")
		}
	}
}

// choosePassword asks until the user picks a random password or types a strong one.
func (a *Application) choosePassword() (string, error) {
	for {
		choice, err := a.prompt("1-Random password\n2-Type in password\n")
		if err != nil {
			return "", err
		}
		switch choice {
		case "1":
			return auth.GeneratePassword(), nil
		case "2":
			password, err := a.prompt("Enter your password: ")
			if err != nil {
				return "", err
			}
			if err := auth.CheckStrength(password); err != nil {
				a.printf("%v.\n", err)
				continue
			}
			return password, nil
		default:
			a.println("Please enter correct action.")
		}
	}
}

// startSession makes sure the user's directory exists and updates the login streak.
func (a *Application) startSession(ctx context.Context, u user.User) (context.Context, error) {
	if err := a.deps.Layout.EnsureUserDir(u.Username); err != nil {
		return nil, err
	}
	ctx = user.WithUser(ctx, u)

	p, change, err := a.deps.ProfileService.RecordLogin(ctx)
	if err != nil {
		log.Errorf("Failed to update login streak: %v", err)
		return ctx, nil
	}
	switch change {
	case profile.StreakKept:
		a.printf("Welcome back! Your current streak is %d.\n", p.Streak)
	case profile.StreakIncreased:
		a.printf("Streak increased! Your current streak is %d.\n", p.Streak)
	case profile.StreakReset:
		a.println("Streak reset. Welcome back! Your current streak is 1.")
	default:
		a.println("Welcome! Starting your streak.")
	}
	return ctx, nil
}
