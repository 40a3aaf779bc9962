package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/pocketledger/pocketledger/internal/docstore"
	"github.com/pocketledger/pocketledger/internal/event_bus"
	"github.com/pocketledger/pocketledger/internal/utils"
	"github.com/pocketledger/pocketledger/pkg/ledger"
	"github.com/pocketledger/pocketledger/pkg/setup"
	"github.com/pocketledger/pocketledger/pkg/user"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type Generator interface {
	Brief(ctx context.Context, period string, category *string) (*Result, error)
	Detailed(ctx context.Context, period string, category *string, persist bool) (*Result, error)
}

// GeneratorImpl derives reports straight from the user's files. It does not take
// the ledger lock: a report may see a ledger that is being rewritten.
type GeneratorImpl struct {
	store  *docstore.Store
	layout docstore.Layout
	setup  ledger.SetupReader
	bus    *event_bus.EventBus
	clock  utils.Clock
	logger log.FieldLogger
}

func NewGeneratorImpl(
	store *docstore.Store,
	layout docstore.Layout,
	setupReader ledger.SetupReader,
	bus *event_bus.EventBus,
	clock utils.Clock,
	logger log.FieldLogger,
) *GeneratorImpl {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &GeneratorImpl{store: store, layout: layout, setup: setupReader, bus: bus, clock: clock, logger: logger}
}

func (g *GeneratorImpl) Brief(ctx context.Context, period string, category *string) (*Result, error) {
	result, _, err := g.generate(ctx, period, category)
	if err != nil {
		return nil, err
	}
	g.logger.Infof("Report generated for %s period.", period)
	return result, nil
}

// Detailed is Brief plus the raw budget state of the ledger. With persist set the
// report is also written to detailed_report_<period>.json; a failed write returns
// the report together with ErrNotPersisted.
func (g *GeneratorImpl) Detailed(ctx context.Context, period string, category *string, persist bool) (*Result, error) {
	result, doc, err := g.generate(ctx, period, category)
	if err != nil {
		return nil, err
	}
	result.BudgetInfo = doc.BudgetInfo
	g.logger.Infof("Detailed report generated for %s period.", period)

	if !persist {
		return result, nil
	}
	if err := Persist(ctx, g.store, g.layout, g.bus, period, result, g.logger); err != nil {
		g.logger.Errorf("Failed to save detailed report: %v", err)
		return result, fmt.Errorf("%w: %v", ErrNotPersisted, err)
	}
	return result, nil
}

func (g *GeneratorImpl) generate(ctx context.Context, period string, category *string) (*Result, ledger.Document, error) {
	username, err := user.CurrentUsername(ctx)
	if err != nil {
		return nil, ledger.Document{}, fmt.Errorf("failed to get current user: %w", err)
	}
	logger := g.logger.WithField("user", username)

	p, err := ParsePeriod(period)
	if err != nil {
		logger.Error("Invalid time period specified.")
		return nil, ledger.Document{}, err
	}

	var doc ledger.Document
	err = g.store.Load(ctx, g.layout.ExpensesPath(username), &doc)
	if errors.Is(err, docstore.ErrNotFound) || (err == nil && doc.IsEmpty()) {
		logger.Warn("No expenses data found.")
		return nil, ledger.Document{}, ErrNoExpenses
	}
	if err != nil {
		logger.Errorf("Error generating report: %v", err)
		return nil, ledger.Document{}, err
	}

	cfg, err := g.setup.Load(ctx)
	if errors.Is(err, setup.ErrNotConfigured) {
		logger.Warn("No setup data found.")
		return nil, ledger.Document{}, ErrNoSetup
	}
	if err != nil {
		logger.Errorf("Error generating report: %v", err)
		return nil, ledger.Document{}, err
	}

	now := g.clock.Now()
	start, end := p.Bounds(now)
	included := make(map[string]ledger.ExpenseRecord)
	total := decimal.Zero
	for name, record := range doc.Expenses {
		date, err := record.ParsedDate(now.Location())
		if err != nil {
			logger.Warnf("Skipping expense %s with unreadable date %q", name, record.Date)
			continue
		}
		if date.Before(start) || date.After(end) {
			continue
		}
		if category != nil && record.Category != *category {
			continue
		}
		included[name] = record
		total = total.Add(record.Amount)
	}

	return &Result{
		TimePeriod:      period,
		Category:        category,
		TotalExpense:    total,
		RemainingBudget: cfg.Budget.Sub(total),
		Expenses:        included,
	}, doc, nil
}

// Persist writes a detailed report to the user's detailed_report_<period>.json.
func Persist(ctx context.Context, store *docstore.Store, layout docstore.Layout, bus *event_bus.EventBus, period string, result *Result, logger log.FieldLogger) error {
	username, err := user.CurrentUsername(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	path := layout.DetailedReportPath(username, period)
	if err := store.Save(ctx, path, result); err != nil {
		return err
	}
	if bus != nil {
		err := bus.Publish(event_bus.NewEvent(ctx, event_bus.ReportSavedEvent, event_bus.ReportSaved{
			Username: username,
			Period:   period,
			Path:     path,
		}))
		if err != nil && logger != nil {
			logger.Warnf("Failed to publish %s: %v", event_bus.ReportSavedEvent, err)
		}
	}
	return nil
}
