package app

import (
	"github.com/pocketledger/pocketledger/internal/event_bus"
)

// subscribeAlerts prints budget warnings as soon as the ledger publishes them.
func (a *Application) subscribeAlerts() {
	event_bus.SubscribeTyped(a.deps.EventBus, event_bus.BudgetExceededEvent, func(e event_bus.EventT[event_bus.BudgetExceeded]) error {
		a.printf("Alert: budget exceeded by %s.\n", e.Data.CurrentBudget.Neg())
		return nil
	})
	event_bus.SubscribeTyped(a.deps.EventBus, event_bus.IncomeExceededEvent, func(e event_bus.EventT[event_bus.IncomeExceeded]) error {
		a.printf("Critical: expenses of %s exceed your income of %s.\n", e.Data.TotalExpenses, e.Data.Income)
		return nil
	})
	event_bus.SubscribeTyped(a.deps.EventBus, event_bus.BudgetResetEvent, func(e event_bus.EventT[event_bus.BudgetReset]) error {
		a.printf("Budget for %s set to %s.\n", e.Data.Month, e.Data.InitialBudget)
		return nil
	})
	event_bus.SubscribeTyped(a.deps.EventBus, event_bus.ReportSavedEvent, func(e event_bus.EventT[event_bus.ReportSaved]) error {
		a.printf("Detailed report saved to %s.\n", e.Data.Path)
		return nil
	})
}
