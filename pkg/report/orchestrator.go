package report

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pocketledger/pocketledger/internal/docstore"
	"github.com/pocketledger/pocketledger/internal/event_bus"
	log "github.com/sirupsen/logrus"
)

const DefaultJoinTimeout = 10 * time.Second

type Kind string

const (
	KindBrief    Kind = "brief"
	KindDetailed Kind = "detailed"
)

// Reports holds what the workers delivered. A kind with a nil report means the
// worker ran and produced nothing; a missing kind means it timed out or crashed.
type Reports map[Kind]*Result

// Message is what a report worker sends back to the orchestrator.
type Message struct {
	RunID  uuid.UUID
	Kind   Kind
	Result *Result
	Err    error
}

// GeneratorFactory builds a fresh generator for each worker so workers share no state.
type GeneratorFactory func() Generator

type Orchestrator struct {
	newGenerator GeneratorFactory
	store        *docstore.Store
	layout       docstore.Layout
	bus          *event_bus.EventBus
	joinTimeout  time.Duration
	logger       log.FieldLogger
}

func NewOrchestrator(
	newGenerator GeneratorFactory,
	store *docstore.Store,
	layout docstore.Layout,
	bus *event_bus.EventBus,
	joinTimeout time.Duration,
	logger log.FieldLogger,
) *Orchestrator {
	if joinTimeout <= 0 {
		joinTimeout = DefaultJoinTimeout
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Orchestrator{
		newGenerator: newGenerator,
		store:        store,
		layout:       layout,
		bus:          bus,
		joinTimeout:  joinTimeout,
		logger:       logger,
	}
}

// GenerateReports runs the brief and the detailed report side by side, waits for
// each worker at most the join timeout and returns whatever arrived. A detailed
// report that arrived is saved to disk. It never fails as a whole.
func (o *Orchestrator) GenerateReports(ctx context.Context, period string, category *string) Reports {
	runID := uuid.New()
	logger := o.logger.WithField("run", runID.String())
	kinds := []Kind{KindBrief, KindDetailed}

	messages := make(chan Message, len(kinds))
	done := make(map[Kind]chan struct{}, len(kinds))
	for _, kind := range kinds {
		done[kind] = make(chan struct{})
		go o.work(ctx, runID, kind, period, category, messages, done[kind])
	}

	for _, kind := range kinds {
		timer := time.NewTimer(o.joinTimeout)
		select {
		case <-done[kind]:
		case <-timer.C:
			logger.Warnf("Report worker %s did not finish within %s", kind, o.joinTimeout)
		case <-ctx.Done():
			logger.Warnf("Stopped waiting for report worker %s: %v", kind, ctx.Err())
		}
		timer.Stop()
	}

	reports := make(Reports, len(kinds))
drain:
	for {
		select {
		case msg := <-messages:
			if msg.RunID != runID {
				continue
			}
			if msg.Err != nil {
				logger.Warnf("Report worker %s failed: %v", msg.Kind, msg.Err)
			}
			reports[msg.Kind] = msg.Result
		default:
			break drain
		}
	}

	if detailed := reports[KindDetailed]; detailed != nil {
		if err := Persist(ctx, o.store, o.layout, o.bus, period, detailed, o.logger); err != nil {
			logger.Errorf("Failed to save detailed report: %v", err)
		}
	}
	return reports
}

func (o *Orchestrator) work(ctx context.Context, runID uuid.UUID, kind Kind, period string, category *string, out chan<- Message, done chan<- struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			o.logger.WithField("run", runID.String()).Errorf("Report worker %s crashed: %v", kind, r)
		}
	}()

	generator := o.newGenerator()
	var (
		result *Result
		err    error
	)
	switch kind {
	case KindBrief:
		result, err = generator.Brief(ctx, period, category)
	case KindDetailed:
		result, err = generator.Detailed(ctx, period, category, false)
	}
	out <- Message{RunID: runID, Kind: kind, Result: result, Err: err}
}
