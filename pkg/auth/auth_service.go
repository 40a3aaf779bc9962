package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pocketledger/pocketledger/internal/docstore"
	"github.com/pocketledger/pocketledger/pkg/user"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrWeakPassword       = errors.New("password is too weak")
	ErrUsernameTaken      = errors.New("username not available")
	ErrUserNotRegistered  = errors.New("user not registered")
)

type Service interface {
	SignUp(ctx context.Context, username, password string) (user.User, error)
	Login(ctx context.Context, username, password string) (user.User, error)
	ResetPassword(ctx context.Context, username, password string) error
}

type ServiceImpl struct {
	store  *docstore.Store
	path   string
	cost   int
	mu     sync.Mutex
	logger log.FieldLogger
}

func NewServiceImpl(store *docstore.Store, layout docstore.Layout, logger log.FieldLogger) *ServiceImpl {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &ServiceImpl{
		store:  store,
		path:   layout.CredentialsPath(),
		cost:   bcrypt.DefaultCost,
		logger: logger,
	}
}

// WithCost sets the bcrypt cost used for new hashes.
func (s *ServiceImpl) WithCost(cost int) *ServiceImpl {
	s.cost = cost
	return s
}

func (s *ServiceImpl) SignUp(ctx context.Context, username, password string) (user.User, error) {
	username = strings.TrimSpace(username)
	if err := user.ValidateUsername(username); err != nil {
		return user.User{}, err
	}
	if err := CheckStrength(password); err != nil {
		return user.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load(ctx)
	if err != nil {
		return user.User{}, err
	}
	if _, taken := all[username]; taken {
		return user.User{}, fmt.Errorf("%w: %s", ErrUsernameTaken, username)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return user.User{}, fmt.Errorf("failed to hash password: %w", err)
	}
	all[username] = Credentials{PasswordHash: string(hash)}
	if err := s.store.Save(ctx, s.path, all); err != nil {
		return user.User{}, fmt.Errorf("failed to save credentials: %w", err)
	}
	s.logger.WithField("user", username).Info("Sign up successful")
	return user.User{Username: username}, nil
}

func (s *ServiceImpl) Login(ctx context.Context, username, password string) (user.User, error) {
	username = strings.TrimSpace(username)

	s.mu.Lock()
	all, err := s.load(ctx)
	s.mu.Unlock()
	if err != nil {
		return user.User{}, err
	}

	credentials, ok := all[username]
	if !ok {
		s.logger.WithField("user", username).Warn("User not registered")
		return user.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(credentials.PasswordHash), []byte(password)); err != nil {
		s.logger.WithField("user", username).Warn("Password doesn't match")
		return user.User{}, ErrInvalidCredentials
	}
	s.logger.WithField("user", username).Info("Login successful")
	return user.User{Username: username}, nil
}

// ResetPassword replaces the password of an existing account.
func (s *ServiceImpl) ResetPassword(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if err := CheckStrength(password); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := all[username]; !ok {
		return fmt.Errorf("%w: %s", ErrUserNotRegistered, username)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	all[username] = Credentials{PasswordHash: string(hash)}
	if err := s.store.Save(ctx, s.path, all); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	s.logger.WithField("user", username).Info("Password updated successfully")
	return nil
}

// load reads every account. A missing file means nobody signed up yet; a damaged one
// is reported rather than replaced so existing accounts are not lost.
func (s *ServiceImpl) load(ctx context.Context) (accounts, error) {
	all := accounts{}
	err := s.store.Load(ctx, s.path, &all)
	if errors.Is(err, docstore.ErrNotFound) {
		return accounts{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	return all, nil
}
