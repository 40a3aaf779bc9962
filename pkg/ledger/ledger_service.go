package ledger

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/pocketledger/pocketledger/internal/docstore"
	"github.com/pocketledger/pocketledger/internal/event_bus"
	"github.com/pocketledger/pocketledger/internal/utils"
	"github.com/pocketledger/pocketledger/pkg/setup"
	"github.com/pocketledger/pocketledger/pkg/user"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var (
	ErrLedgerNotFound       = errors.New("no expenses file found")
	ErrExpenseNotFound      = errors.New("expense not found")
	ErrReservedName         = errors.New("expense name is reserved")
	ErrInvalidExpense       = errors.New("invalid expense")
	ErrNoSetup              = errors.New("budget has not been set up")
	ErrBudgetNotInitialized = errors.New("budget has not been initialized for this ledger")
)

// SetupReader gives read-only access to the user's budget setup.
type SetupReader interface {
	Load(ctx context.Context) (setup.Document, error)
}

type Service interface {
	AddExpense(ctx context.Context, expense Expense) error
	LoadExpense(ctx context.Context, name string) (ExpenseRecord, error)
	DeleteExpense(ctx context.Context, name string) error
	UpdateExpense(ctx context.Context, name string, update ExpenseUpdate) error
	ListExpenses(ctx context.Context) iter.Seq[string]
	Expenses(ctx context.Context) ([]Expense, error)
	CheckBudget(ctx context.Context) (decimal.Decimal, error)
	ResetBudget(ctx context.Context) error
}

// ServiceImpl keeps the ledger in expenses.json. Mutations are read-modify-write
// cycles under the user's lock; reads take no lock and may observe a ledger that
// is being rewritten.
type ServiceImpl struct {
	store       *docstore.Store
	layout      docstore.Layout
	setup       SetupReader
	locks       *utils.KeyedMutex
	bus         *event_bus.EventBus
	clock       utils.Clock
	logger      log.FieldLogger
	settleDelay time.Duration
}

func NewServiceImpl(
	store *docstore.Store,
	layout docstore.Layout,
	setupReader SetupReader,
	locks *utils.KeyedMutex,
	bus *event_bus.EventBus,
	logger log.FieldLogger,
) *ServiceImpl {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &ServiceImpl{
		store:  store,
		layout: layout,
		setup:  setupReader,
		locks:  locks,
		bus:    bus,
		clock:  utils.SystemClock{},
		logger: logger,
	}
}

// WithSettleDelay makes the ledger pause after a budget reset before reading the ledger back.
func (s *ServiceImpl) WithSettleDelay(d time.Duration) *ServiceImpl {
	s.settleDelay = d
	return s
}

func (s *ServiceImpl) WithClock(clock utils.Clock) *ServiceImpl {
	s.clock = clock
	return s
}

func (s *ServiceImpl) AddExpense(ctx context.Context, expense Expense) error {
	username, err := user.CurrentUsername(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	logger := s.logger.WithField("user", username)
	if err := s.normalize(&expense); err != nil {
		logger.Errorf("Failed to save expense: %v", err)
		return err
	}

	unlock := s.locks.Lock(username)
	defer unlock()

	doc, err := s.readLedger(ctx, username)
	if errors.Is(err, docstore.ErrNotFound) {
		doc, err = NewDocument(), nil
	}
	if err != nil {
		logger.Errorf("Failed to save expense: %v", err)
		return err
	}
	doc, err = s.ensureCurrentBudget(ctx, username, doc)
	if err != nil {
		logger.Errorf("Failed to save expense: %v", err)
		return err
	}

	current := doc.BudgetInfo.CurrentBudget
	if previous, ok := doc.Expenses[expense.Name]; ok {
		logger.Warnf("Expense %s already exists, replacing it", expense.Name)
		current = current.Add(previous.Amount)
	}
	doc.BudgetInfo.CurrentBudget = current.Sub(expense.Amount)
	doc.Expenses[expense.Name] = expense.ExpenseRecord

	if err := s.writeLedger(ctx, username, doc); err != nil {
		logger.Errorf("Failed to save expense: %v", err)
		return err
	}
	logger.WithField("expense", expense.Name).Infof("Expense saved and budget updated: %+v", expense.ExpenseRecord)

	s.publish(ctx, event_bus.ExpenseAddedEvent, event_bus.ExpenseChanged{
		Username:      username,
		Name:          expense.Name,
		Amount:        expense.Amount,
		CurrentBudget: doc.BudgetInfo.CurrentBudget,
	})
	s.publishBudgetExceeded(ctx, username, doc.BudgetInfo)
	return nil
}

func (s *ServiceImpl) LoadExpense(ctx context.Context, name string) (ExpenseRecord, error) {
	username, err := user.CurrentUsername(ctx)
	if err != nil {
		return ExpenseRecord{}, fmt.Errorf("failed to get current user: %w", err)
	}
	logger := s.logger.WithField("user", username)

	doc, err := s.readLedger(ctx, username)
	if errors.Is(err, docstore.ErrNotFound) {
		logger.Warn("No expenses file found.")
		return ExpenseRecord{}, ErrLedgerNotFound
	}
	if err != nil {
		logger.Errorf("Failed to load expense: %v", err)
		return ExpenseRecord{}, err
	}

	record, ok := doc.Expenses[name]
	if !ok {
		logger.Warnf("No expense found with name: %s", name)
		return ExpenseRecord{}, fmt.Errorf("%w: %s", ErrExpenseNotFound, name)
	}
	logger.Infof("Expense loaded: %+v", record)
	return record, nil
}

func (s *ServiceImpl) DeleteExpense(ctx context.Context, name string) error {
	username, err := user.CurrentUsername(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	logger := s.logger.WithField("user", username)
	if name == BudgetInfoKey {
		logger.Warnf("No expense found with name: %s", name)
		return fmt.Errorf("%w: %s", ErrReservedName, name)
	}

	unlock := s.locks.Lock(username)
	defer unlock()

	doc, err := s.readLedger(ctx, username)
	if errors.Is(err, docstore.ErrNotFound) {
		logger.Warn("No expenses file found.")
		return ErrLedgerNotFound
	}
	if err != nil {
		logger.Errorf("Failed to delete expense: %v", err)
		return err
	}
	if _, ok := doc.Expenses[name]; !ok {
		logger.Warnf("No expense found with name: %s", name)
		return fmt.Errorf("%w: %s", ErrExpenseNotFound, name)
	}
	doc, err = s.ensureCurrentBudget(ctx, username, doc)
	if err != nil {
		logger.Errorf("Failed to delete expense: %v", err)
		return err
	}

	deleted := doc.Expenses[name]
	doc.BudgetInfo.CurrentBudget = doc.BudgetInfo.CurrentBudget.Add(deleted.Amount)
	delete(doc.Expenses, name)

	if err := s.writeLedger(ctx, username, doc); err != nil {
		logger.Errorf("Failed to delete expense: %v", err)
		return err
	}
	logger.WithField("expense", name).Info("Expense deleted")

	s.publish(ctx, event_bus.ExpenseDeletedEvent, event_bus.ExpenseChanged{
		Username:      username,
		Name:          name,
		Amount:        deleted.Amount,
		CurrentBudget: doc.BudgetInfo.CurrentBudget,
	})
	return nil
}

func (s *ServiceImpl) UpdateExpense(ctx context.Context, name string, update ExpenseUpdate) error {
	username, err := user.CurrentUsername(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	logger := s.logger.WithField("user", username)
	if name == BudgetInfoKey {
		logger.Warnf("No expense found with name: %s", name)
		return fmt.Errorf("%w: %s", ErrReservedName, name)
	}
	if err := validateUpdate(update); err != nil {
		logger.Errorf("Failed to update expense: %v", err)
		return err
	}

	unlock := s.locks.Lock(username)
	defer unlock()

	doc, err := s.readLedger(ctx, username)
	if errors.Is(err, docstore.ErrNotFound) {
		logger.Error("Failed to read expenses file")
		return ErrLedgerNotFound
	}
	if err != nil {
		logger.Errorf("Failed to update expense: %v", err)
		return err
	}
	if _, ok := doc.Expenses[name]; !ok {
		logger.Warnf("No expense found with name: %s", name)
		return fmt.Errorf("%w: %s", ErrExpenseNotFound, name)
	}
	if update.IsEmpty() {
		logger.Infof("Nothing to update for expense %s", name)
		return nil
	}
	doc, err = s.ensureCurrentBudget(ctx, username, doc)
	if err != nil {
		logger.Errorf("Failed to update expense: %v", err)
		return err
	}

	record := doc.Expenses[name]
	if update.Amount != nil {
		doc.BudgetInfo.CurrentBudget = doc.BudgetInfo.CurrentBudget.Add(record.Amount).Sub(*update.Amount)
		record.Amount = *update.Amount
	}
	if update.Category != nil {
		record.Category = *update.Category
	}
	if update.Date != nil {
		record.Date = *update.Date
	}
	if update.Description != nil {
		record.Description = *update.Description
	}
	doc.Expenses[name] = record

	if err := s.writeLedger(ctx, username, doc); err != nil {
		logger.Errorf("Failed to save updated expenses: %v", err)
		return err
	}
	logger.WithField("expense", name).Infof("Expense updated: %+v", record)

	s.publish(ctx, event_bus.ExpenseUpdatedEvent, event_bus.ExpenseChanged{
		Username:      username,
		Name:          name,
		Amount:        record.Amount,
		CurrentBudget: doc.BudgetInfo.CurrentBudget,
	})
	s.publishBudgetExceeded(ctx, username, doc.BudgetInfo)
	return nil
}

// ListExpenses yields expense names in lexical order. Every iteration reads the
// ledger again, so the sequence can be ranged over repeatedly.
func (s *ServiceImpl) ListExpenses(ctx context.Context) iter.Seq[string] {
	return func(yield func(string) bool) {
		username, err := user.CurrentUsername(ctx)
		if err != nil {
			s.logger.Errorf("Failed to list expenses: %v", err)
			return
		}
		doc, err := s.readLedger(ctx, username)
		if errors.Is(err, docstore.ErrNotFound) {
			s.logger.WithField("user", username).Warn("No expenses file found.")
			return
		}
		if err != nil {
			s.logger.WithField("user", username).Errorf("Failed to list expenses: %v", err)
			return
		}
		for _, name := range doc.Names() {
			if !yield(name) {
				return
			}
		}
	}
}

// Expenses returns every expense of the ledger ordered by name.
func (s *ServiceImpl) Expenses(ctx context.Context) ([]Expense, error) {
	username, err := user.CurrentUsername(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	doc, err := s.readLedger(ctx, username)
	if errors.Is(err, docstore.ErrNotFound) {
		s.logger.WithField("user", username).Warn("No expenses file found.")
		return []Expense{}, nil
	}
	if err != nil {
		return nil, err
	}
	expenses := make([]Expense, 0, len(doc.Expenses))
	for _, name := range doc.Names() {
		expenses = append(expenses, Expense{Name: name, ExpenseRecord: doc.Expenses[name]})
	}
	return expenses, nil
}

// CheckBudget returns the remaining budget of the month. Overspending is reported
// through the log and the event bus, it is not an error.
func (s *ServiceImpl) CheckBudget(ctx context.Context) (decimal.Decimal, error) {
	username, err := user.CurrentUsername(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get current user: %w", err)
	}
	logger := s.logger.WithField("user", username)

	doc, err := s.readLedger(ctx, username)
	if errors.Is(err, docstore.ErrNotFound) {
		logger.Warn("No expenses file found.")
		return decimal.Zero, ErrLedgerNotFound
	}
	if err != nil {
		logger.Errorf("Failed to check budget: %v", err)
		return decimal.Zero, err
	}
	if doc.BudgetInfo == nil {
		logger.Warn("Budget has not been initialized yet.")
		return decimal.Zero, ErrBudgetNotInitialized
	}

	state := doc.BudgetInfo
	total := doc.Total()
	healthy := true
	if state.CurrentBudget.IsNegative() {
		healthy = false
		logger.Warnf("Budget exceeded by %s!", state.CurrentBudget.Neg())
		s.publishBudgetExceeded(ctx, username, state)
	}
	if total.GreaterThan(state.Income) {
		healthy = false
		logger.WithField("severity", "critical").Error("Total expenses exceed the income!")
		s.publish(ctx, event_bus.IncomeExceededEvent, event_bus.IncomeExceeded{
			Username:      username,
			TotalExpenses: total,
			Income:        state.Income,
		})
	}
	if healthy {
		logger.Infof("Remaining budget: %s", state.CurrentBudget)
	}
	return state.CurrentBudget, nil
}

// ResetBudget starts a fresh month from the setup when the ledger's budget belongs
// to another month or does not exist yet. Within the same month it changes nothing.
func (s *ServiceImpl) ResetBudget(ctx context.Context) error {
	username, err := user.CurrentUsername(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}

	unlock := s.locks.Lock(username)
	defer unlock()

	doc, err := s.readLedger(ctx, username)
	if errors.Is(err, docstore.ErrNotFound) {
		doc, err = NewDocument(), nil
	}
	if err != nil {
		s.logger.WithField("user", username).Errorf("Failed to set budget: %v", err)
		return err
	}
	_, err = s.resetIfStale(ctx, username, doc)
	return err
}

// ensureCurrentBudget makes sure doc carries the budget of the current month. When a
// reset was needed the ledger is read back from disk and the fresh copy returned.
func (s *ServiceImpl) ensureCurrentBudget(ctx context.Context, username string, doc Document) (Document, error) {
	reset, err := s.resetIfStale(ctx, username, doc)
	if err != nil {
		return Document{}, err
	}
	if !reset {
		return doc, nil
	}

	if s.settleDelay > 0 {
		time.Sleep(s.settleDelay)
	}
	doc, err = s.readLedger(ctx, username)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read expenses file after budget reset: %w", err)
	}
	if doc.BudgetInfo == nil {
		return Document{}, fmt.Errorf("failed to read expenses file after budget reset: %w", ErrBudgetNotInitialized)
	}
	return doc, nil
}

func (s *ServiceImpl) resetIfStale(ctx context.Context, username string, doc Document) (bool, error) {
	month := utils.MonthKey(s.clock.Now())
	if doc.BudgetInfo != nil && doc.BudgetInfo.Month == month {
		return false, nil
	}
	logger := s.logger.WithField("user", username)

	cfg, err := s.setup.Load(ctx)
	if errors.Is(err, setup.ErrNotConfigured) {
		logger.Warn("Failed to set budget: budget has not been set up")
		return false, ErrNoSetup
	}
	if err != nil {
		logger.Errorf("Failed to set budget: %v", err)
		return false, fmt.Errorf("failed to read setup: %w", err)
	}

	doc.BudgetInfo = &BudgetState{
		Month:         month,
		InitialBudget: cfg.Budget,
		CurrentBudget: cfg.Budget,
		Income:        cfg.Income,
	}
	if doc.Expenses == nil {
		doc.Expenses = map[string]ExpenseRecord{}
	}
	if err := s.writeLedger(ctx, username, doc); err != nil {
		logger.Errorf("Failed to set budget: %v", err)
		return false, err
	}
	logger.Infof("Monthly budget reset to: %s", cfg.Budget)

	s.publish(ctx, event_bus.BudgetResetEvent, event_bus.BudgetReset{
		Username:      username,
		Month:         month,
		InitialBudget: cfg.Budget,
		Income:        cfg.Income,
	})
	return true, nil
}

func (s *ServiceImpl) readLedger(ctx context.Context, username string) (Document, error) {
	var doc Document
	if err := s.store.Load(ctx, s.layout.ExpensesPath(username), &doc); err != nil {
		return Document{}, err
	}
	if doc.Expenses == nil {
		doc.Expenses = map[string]ExpenseRecord{}
	}
	return doc, nil
}

func (s *ServiceImpl) writeLedger(ctx context.Context, username string, doc Document) error {
	if err := s.store.Save(ctx, s.layout.ExpensesPath(username), doc); err != nil {
		return fmt.Errorf("failed to write expenses file: %w", err)
	}
	return nil
}

func (s *ServiceImpl) normalize(expense *Expense) error {
	expense.Name = strings.TrimSpace(expense.Name)
	if expense.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidExpense)
	}
	if expense.Name == BudgetInfoKey {
		return fmt.Errorf("%w: %s", ErrReservedName, expense.Name)
	}
	if expense.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", ErrInvalidExpense)
	}
	if expense.Date == "" {
		expense.Date = s.clock.Now().Format(DateLayout)
	}
	if _, err := time.Parse(DateLayout, expense.Date); err != nil {
		return fmt.Errorf("%w: date %q is not DD-MM-YYYY", ErrInvalidExpense, expense.Date)
	}
	return nil
}

func validateUpdate(update ExpenseUpdate) error {
	if update.Amount != nil && update.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", ErrInvalidExpense)
	}
	if update.Date != nil {
		if _, err := time.Parse(DateLayout, *update.Date); err != nil {
			return fmt.Errorf("%w: date %q is not DD-MM-YYYY", ErrInvalidExpense, *update.Date)
		}
	}
	return nil
}

func (s *ServiceImpl) publishBudgetExceeded(ctx context.Context, username string, state *BudgetState) {
	if state == nil || !state.CurrentBudget.IsNegative() {
		return
	}
	s.publish(ctx, event_bus.BudgetExceededEvent, event_bus.BudgetExceeded{
		Username:      username,
		CurrentBudget: state.CurrentBudget,
	})
}

// publish notifies subscribers. Subscriber failures are logged and never undo a mutation.
func (s *ServiceImpl) publish(ctx context.Context, eventType event_bus.EventType, data any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(event_bus.NewEvent(ctx, eventType, data)); err != nil {
		s.logger.Warnf("Failed to publish %s: %v", eventType, err)
	}
}
