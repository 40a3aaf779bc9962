package setup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pocketledger/pocketledger/internal/docstore"
	"github.com/pocketledger/pocketledger/pkg/exchange"
	"github.com/pocketledger/pocketledger/pkg/user"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var (
	ErrNotConfigured   = errors.New("budget has not been set up")
	ErrInvalidAmount   = errors.New("amount must not be negative")
	ErrInvalidCurrency = errors.New("currency must be a three letter code")
)

type Service interface {
	ConvertIncome(ctx context.Context, income decimal.Decimal, incomeCurrency, defaultCurrency string) (decimal.Decimal, error)
	SetBudget(ctx context.Context, budget, convertedIncome decimal.Decimal, defaultCurrency string) error
	Load(ctx context.Context) (Document, error)
}

type ServiceImpl struct {
	store  *docstore.Store
	layout docstore.Layout
	rates  exchange.Client
	logger log.FieldLogger
}

func NewServiceImpl(store *docstore.Store, layout docstore.Layout, rates exchange.Client, logger log.FieldLogger) *ServiceImpl {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &ServiceImpl{store: store, layout: layout, rates: rates, logger: logger}
}

// ConvertIncome converts income from incomeCurrency into defaultCurrency at the latest rate.
func (s *ServiceImpl) ConvertIncome(ctx context.Context, income decimal.Decimal, incomeCurrency, defaultCurrency string) (decimal.Decimal, error) {
	if income.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	from, err := normalizeCurrency(incomeCurrency)
	if err != nil {
		return decimal.Zero, err
	}
	to, err := normalizeCurrency(defaultCurrency)
	if err != nil {
		return decimal.Zero, err
	}
	if from == to {
		return income, nil
	}

	rate, err := s.rates.Rate(ctx, from, to)
	if err != nil {
		s.logger.Errorf("Conversion failed: %v", err)
		return decimal.Zero, fmt.Errorf("failed to convert income from %s to %s: %w", from, to, err)
	}
	converted := income.Mul(rate.Value)
	s.logger.Infof("Income converted to %s: %s", to, converted)
	return converted, nil
}

func (s *ServiceImpl) SetBudget(ctx context.Context, budget, convertedIncome decimal.Decimal, defaultCurrency string) error {
	username, err := user.CurrentUsername(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	if budget.IsNegative() || convertedIncome.IsNegative() {
		return ErrInvalidAmount
	}
	currency, err := normalizeCurrency(defaultCurrency)
	if err != nil {
		return err
	}

	doc := Document{Budget: budget, Income: convertedIncome, DefaultCurrency: currency}
	if err := s.store.Save(ctx, s.layout.SetupPath(username), doc); err != nil {
		s.logger.WithField("user", username).Errorf("Failed to save setup: %v", err)
		return fmt.Errorf("failed to save setup: %w", err)
	}
	s.logger.WithField("user", username).Infof("Budget set to %s %s, income %s", budget, currency, convertedIncome)
	return nil
}

// Load returns the current user's setup. A missing or empty setup.json is ErrNotConfigured.
func (s *ServiceImpl) Load(ctx context.Context) (Document, error) {
	username, err := user.CurrentUsername(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("failed to get current user: %w", err)
	}

	var raw map[string]json.RawMessage
	err = s.store.Load(ctx, s.layout.SetupPath(username), &raw)
	if errors.Is(err, docstore.ErrNotFound) {
		return Document{}, ErrNotConfigured
	}
	if err != nil {
		return Document{}, fmt.Errorf("failed to read setup: %w", err)
	}
	if len(raw) == 0 {
		return Document{}, ErrNotConfigured
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return Document{}, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: setup: %v", docstore.ErrMalformed, err)
	}
	return doc, nil
}

func normalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
		}
	}
	return code, nil
}
