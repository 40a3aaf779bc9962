package app

import (
	"github.com/pocketledger/pocketledger/internal/config"
	"github.com/pocketledger/pocketledger/internal/docstore"
	"github.com/pocketledger/pocketledger/internal/event_bus"
	"github.com/pocketledger/pocketledger/internal/utils"
	"github.com/pocketledger/pocketledger/pkg/auth"
	"github.com/pocketledger/pocketledger/pkg/exchange"
	"github.com/pocketledger/pocketledger/pkg/ledger"
	"github.com/pocketledger/pocketledger/pkg/profile"
	"github.com/pocketledger/pocketledger/pkg/report"
	"github.com/pocketledger/pocketledger/pkg/setup"
	log "github.com/sirupsen/logrus"
)

// Dependencies holds all services of the application.
type Dependencies struct {
	Clock    utils.Clock
	Store    *docstore.Store
	Layout   docstore.Layout
	Locks    *utils.KeyedMutex
	EventBus *event_bus.EventBus

	ExchangeClient exchange.Client
	SetupService   setup.Service

	LedgerService ledger.Service

	ReportGenerators   report.GeneratorFactory
	ReportOrchestrator *report.Orchestrator

	AuthService    auth.Service
	ProfileService profile.Service
}

// BuildDependencies initializes and wires all application services.
func BuildDependencies(cfg config.Application, logger log.FieldLogger) *Dependencies {
	if logger == nil {
		logger = log.StandardLogger()
	}
	deps := &Dependencies{}

	deps.Clock = utils.SystemClock{}
	deps.Store = docstore.New(cfg.Store.Timeout, logger)
	deps.Layout = docstore.NewLayout(cfg.DataDir)
	deps.Locks = utils.NewKeyedMutex()
	deps.EventBus = event_bus.NewEventBus(logger)

	deps.ExchangeClient = exchange.NewClient(cfg.Exchange.BaseURL, cfg.Exchange.APIKey, cfg.Exchange.Timeout, logger)
	deps.SetupService = setup.NewServiceImpl(deps.Store, deps.Layout, deps.ExchangeClient, logger)

	deps.LedgerService = ledger.NewServiceImpl(deps.Store, deps.Layout, deps.SetupService, deps.Locks, deps.EventBus, logger).
		WithClock(deps.Clock).
		WithSettleDelay(cfg.Ledger.SettleDelay)

	deps.ReportGenerators = func() report.Generator {
		return report.NewGeneratorImpl(deps.Store, deps.Layout, deps.SetupService, deps.EventBus, deps.Clock, logger)
	}
	deps.ReportOrchestrator = report.NewOrchestrator(deps.ReportGenerators, deps.Store, deps.Layout, deps.EventBus, cfg.Report.JoinTimeout, logger)

	deps.AuthService = auth.NewServiceImpl(deps.Store, deps.Layout, logger)
	deps.ProfileService = profile.NewServiceImpl(deps.Store, deps.Layout, deps.Clock, logger)

	return deps
}
