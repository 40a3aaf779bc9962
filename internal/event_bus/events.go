package event_bus

import "github.com/shopspring/decimal"

const (
	ExpenseAddedEvent   EventType = "ledger.expense_added"
	ExpenseUpdatedEvent EventType = "ledger.expense_updated"
	ExpenseDeletedEvent EventType = "ledger.expense_deleted"
	BudgetResetEvent    EventType = "ledger.budget_reset"
	BudgetExceededEvent EventType = "ledger.budget_exceeded"
	IncomeExceededEvent EventType = "ledger.income_exceeded"
	ReportSavedEvent    EventType = "report.saved"
)

type ExpenseChanged struct {
	Username      string
	Name          string
	Amount        decimal.Decimal
	CurrentBudget decimal.Decimal
}

type BudgetReset struct {
	Username      string
	Month         string
	InitialBudget decimal.Decimal
	Income        decimal.Decimal
}

// BudgetExceeded is published whenever the remaining budget of the month drops below zero.
type BudgetExceeded struct {
	Username      string
	CurrentBudget decimal.Decimal
}

type IncomeExceeded struct {
	Username      string
	TotalExpenses decimal.Decimal
	Income        decimal.Decimal
}

type ReportSaved struct {
	Username string
	Period   string
	Path     string
}
