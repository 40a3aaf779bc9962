package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pocketledger/pocketledger/pkg/ledger"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPeriod = errors.New("invalid time period specified")
	ErrNoExpenses    = errors.New("no expenses data found")
	ErrNoSetup       = errors.New("no setup data found")
	// ErrNotPersisted accompanies a valid detailed report that could not be written to disk.
	ErrNotPersisted = errors.New("detailed report was not saved")
)

// Period is the lookback window of a report, ending now.
type Period string

const (
	Day   Period = "d"
	Week  Period = "w"
	Month Period = "m"
	Year  Period = "y"
)

func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case Day, Week, Month, Year:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
}

func (p Period) Window() time.Duration {
	switch p {
	case Day:
		return 24 * time.Hour
	case Week:
		return 7 * 24 * time.Hour
	case Month:
		return 30 * 24 * time.Hour
	case Year:
		return 365 * 24 * time.Hour
	}
	return 0
}

// Bounds returns the inclusive [start, end] window ending at now.
func (p Period) Bounds(now time.Time) (time.Time, time.Time) {
	return now.Add(-p.Window()), now
}

// Result is a spending report. BudgetInfo is only set on detailed reports.
type Result struct {
	TimePeriod      string                          `json:"time_period"`
	Category        *string                         `json:"category"`
	TotalExpense    decimal.Decimal                 `json:"total_expense"`
	RemainingBudget decimal.Decimal                 `json:"remaining_budget"`
	Expenses        map[string]ledger.ExpenseRecord `json:"expenses"`
	BudgetInfo      *ledger.BudgetState             `json:"budget_info,omitempty"`
}
