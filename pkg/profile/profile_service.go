package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pocketledger/pocketledger/internal/docstore"
	"github.com/pocketledger/pocketledger/internal/utils"
	"github.com/pocketledger/pocketledger/pkg/user"
	log "github.com/sirupsen/logrus"
)

var ErrNoProfile = errors.New("no profile recorded")

type Service interface {
	RecordLogin(ctx context.Context) (Profile, StreakChange, error)
	Get(ctx context.Context) (Profile, error)
}

type ServiceImpl struct {
	store  *docstore.Store
	path   string
	clock  utils.Clock
	logger log.FieldLogger
}

func NewServiceImpl(store *docstore.Store, layout docstore.Layout, clock utils.Clock, logger log.FieldLogger) *ServiceImpl {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &ServiceImpl{store: store, path: layout.ProfilePath(), clock: clock, logger: logger}
}

// RecordLogin updates the login streak of the current user: a second login on the
// same day keeps it, a login on the following day extends it and anything else
// starts over at 1. An unreadable profile also starts a new streak.
func (s *ServiceImpl) RecordLogin(ctx context.Context) (Profile, StreakChange, error) {
	username, err := user.CurrentUsername(ctx)
	if err != nil {
		return Profile{}, StreakStarted, fmt.Errorf("failed to get current user: %w", err)
	}
	logger := s.logger.WithField("user", username)
	today := truncateToDay(s.clock.Now())

	streak, change := 1, StreakStarted
	previous, err := s.load(ctx)
	switch {
	case err != nil:
		logger.Infof("No user data found. Initializing new user profile: %v", err)
	case previous.Username != username:
		logger.Infof("Profile belonged to %s. Initializing new user profile.", previous.Username)
	default:
		last, parseErr := time.ParseInLocation(DateLayout, previous.LoginDate, today.Location())
		if parseErr != nil {
			logger.Warnf("Unreadable last login date %q: %v", previous.LoginDate, parseErr)
			break
		}
		streak = max(previous.Streak, 1)
		switch {
		case last.Equal(today):
			change = StreakKept
		case last.AddDate(0, 0, 1).Equal(today):
			streak++
			change = StreakIncreased
		default:
			streak = 1
			change = StreakReset
		}
	}

	current := Profile{Username: username, LoginDate: today.Format(DateLayout), Streak: streak}
	if err := s.store.Save(ctx, s.path, current); err != nil {
		return Profile{}, change, fmt.Errorf("failed to save profile: %w", err)
	}
	logger.Infof("%s logged in successfully.", username)
	return current, change, nil
}

func (s *ServiceImpl) Get(ctx context.Context) (Profile, error) {
	username, err := user.CurrentUsername(ctx)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to get current user: %w", err)
	}
	p, err := s.load(ctx)
	if errors.Is(err, docstore.ErrNotFound) || (err == nil && p.Username != username) {
		return Profile{}, ErrNoProfile
	}
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (s *ServiceImpl) load(ctx context.Context) (Profile, error) {
	var p Profile
	if err := s.store.Load(ctx, s.path, &p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
