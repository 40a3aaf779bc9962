package ledger

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// BudgetInfoKey is the reserved ledger key holding the monthly budget state.
// Every other key of the ledger document is an expense name.
const BudgetInfoKey = "budget_info"

// DateLayout is the on-disk format of expense dates (DD-MM-YYYY).
const DateLayout = "02-01-2006"

type ExpenseRecord struct {
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
}

// ParsedDate returns the expense date at midnight in loc.
func (r ExpenseRecord) ParsedDate(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, r.Date, loc)
}

type Expense struct {
	Name string
	ExpenseRecord
}

// ExpenseUpdate lists the fields to change; nil fields are left as they are.
type ExpenseUpdate struct {
	Amount      *decimal.Decimal
	Category    *string
	Date        *string
	Description *string
}

func (u ExpenseUpdate) IsEmpty() bool {
	return u.Amount == nil && u.Category == nil && u.Date == nil && u.Description == nil
}

// BudgetState tracks the budget of one calendar month.
// CurrentBudget = InitialBudget - sum of the amounts recorded since the month started.
type BudgetState struct {
	Month         string          `json:"month"`
	InitialBudget decimal.Decimal `json:"initial_budget"`
	CurrentBudget decimal.Decimal `json:"current_budget"`
	Income        decimal.Decimal `json:"income"`
}

// Document is the whole expenses.json of one user. On disk it is a single JSON
// object: expense names map to records and BudgetInfoKey maps to the BudgetState.
type Document struct {
	BudgetInfo *BudgetState
	Expenses   map[string]ExpenseRecord
}

func NewDocument() Document {
	return Document{Expenses: map[string]ExpenseRecord{}}
}

func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Expenses)+1)
	for name, record := range d.Expenses {
		out[name] = record
	}
	if d.BudgetInfo != nil {
		out[BudgetInfoKey] = d.BudgetInfo
	}
	return json.Marshal(out)
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.BudgetInfo = nil
	d.Expenses = make(map[string]ExpenseRecord, len(raw))
	for name, value := range raw {
		if name == BudgetInfoKey {
			var state BudgetState
			if err := json.Unmarshal(value, &state); err != nil {
				return fmt.Errorf("budget info: %w", err)
			}
			d.BudgetInfo = &state
			continue
		}
		var record ExpenseRecord
		if err := json.Unmarshal(value, &record); err != nil {
			return fmt.Errorf("expense %q: %w", name, err)
		}
		d.Expenses[name] = record
	}
	return nil
}

// IsEmpty reports whether the document holds neither expenses nor budget state.
func (d Document) IsEmpty() bool {
	return d.BudgetInfo == nil && len(d.Expenses) == 0
}

// Names returns the expense names in lexical order.
func (d Document) Names() []string {
	names := make([]string, 0, len(d.Expenses))
	for name := range d.Expenses {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d Document) Total() decimal.Decimal {
	total := decimal.Zero
	for _, record := range d.Expenses {
		total = total.Add(record.Amount)
	}
	return total
}
