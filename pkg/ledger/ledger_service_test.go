package ledger

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/pocketledger/pocketledger/internal/docstore"
	"github.com/pocketledger/pocketledger/internal/event_bus"
	"github.com/pocketledger/pocketledger/internal/utils"
	"github.com/pocketledger/pocketledger/pkg/setup"
	"github.com/pocketledger/pocketledger/pkg/user"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	service *ServiceImpl
	setup   *setup.StubReader
	clock   *utils.MockClock
	layout  docstore.Layout
	bus     *event_bus.EventBus
}

func setupLedger(t *testing.T) (*fixture, context.Context) {
	t.Helper()
	layout := docstore.NewLayout(t.TempDir())
	setupReader := setup.NewStubReader()
	setupReader.Set(decimal.NewFromInt(100), decimal.NewFromInt(500))
	clock := &utils.MockClock{FixedNow: time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)}
	bus := event_bus.NewEventBus(nil)

	service := &ServiceImpl{
		store:  docstore.New(2*time.Second, nil),
		layout: layout,
		setup:  setupReader,
		locks:  utils.NewKeyedMutex(),
		bus:    bus,
		clock:  clock,
		logger: log.StandardLogger(),
	}
	ctx := user.WithUser(context.Background(), user.User{Username: "test_user"})
	return &fixture{service: service, setup: setupReader, clock: clock, layout: layout, bus: bus}, ctx
}

func expense(name string, amount int64, category, date string) Expense {
	return Expense{
		Name: name,
		ExpenseRecord: ExpenseRecord{
			Amount:   decimal.NewFromInt(amount),
			Category: category,
			Date:     date,
		},
	}
}

func amount(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func requireBudget(t *testing.T, f *fixture, ctx context.Context, want int64) {
	t.Helper()
	current, err := f.service.CheckBudget(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(want).Equal(current), "current budget: want %d, got %s", want, current)
}

func TestAddAndDeleteExpense(t *testing.T) {
	f, ctx := setupLedger(t)

	err := f.service.AddExpense(ctx, expense("Coffee", 5, "Food", "01-06-2025"))
	require.NoError(t, err)
	requireBudget(t, f, ctx, 95)

	err = f.service.DeleteExpense(ctx, "Coffee")
	require.NoError(t, err)
	requireBudget(t, f, ctx, 100)

	_, err = f.service.LoadExpense(ctx, "Coffee")
	assert.ErrorIs(t, err, ErrExpenseNotFound)
}

func TestAddExpense_CreatesLedger(t *testing.T) {
	f, ctx := setupLedger(t)

	require.NoError(t, f.service.AddExpense(ctx, expense("Coffee", 5, "Food", "01-06-2025")))

	raw, err := os.ReadFile(f.layout.ExpensesPath("test_user"))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"Coffee": {"amount": 5, "category": "Food", "date": "01-06-2025", "description": ""},
		"budget_info": {"month": "2025-06", "initial_budget": 100, "current_budget": 95, "income": 500}
	}`, string(raw))
}

func TestAddExpense_WithoutSetup(t *testing.T) {
	f, ctx := setupLedger(t)
	f.setup = setup.NewStubReader()
	f.service.setup = f.setup

	err := f.service.AddExpense(ctx, expense("Coffee", 5, "Food", "01-06-2025"))

	assert.ErrorIs(t, err, ErrNoSetup)
	_, statErr := os.Stat(f.layout.ExpensesPath("test_user"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestAddExpense_Validation(t *testing.T) {
	f, ctx := setupLedger(t)

	tests := []struct {
		name    string
		expense Expense
		wantErr error
	}{
		{"empty name", expense("  ", 5, "Food", "01-06-2025"), ErrInvalidExpense},
		{"reserved name", expense(BudgetInfoKey, 5, "Food", "01-06-2025"), ErrReservedName},
		{"negative amount", expense("Coffee", -5, "Food", "01-06-2025"), ErrInvalidExpense},
		{"iso date", expense("Coffee", 5, "Food", "2025-06-01"), ErrInvalidExpense},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.service.AddExpense(ctx, tt.expense)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAddExpense_DefaultsDateToToday(t *testing.T) {
	f, ctx := setupLedger(t)

	require.NoError(t, f.service.AddExpense(ctx, expense("Coffee", 5, "Food", "")))

	record, err := f.service.LoadExpense(ctx, "Coffee")
	require.NoError(t, err)
	assert.Equal(t, "15-06-2025", record.Date)
}

func TestAddExpense_ReplacesExistingName(t *testing.T) {
	f, ctx := setupLedger(t)

	require.NoError(t, f.service.AddExpense(ctx, expense("Coffee", 5, "Food", "01-06-2025")))
	require.NoError(t, f.service.AddExpense(ctx, expense("Coffee", 8, "Food", "02-06-2025")))

	requireBudget(t, f, ctx, 92)
	record, err := f.service.LoadExpense(ctx, "Coffee")
	require.NoError(t, err)
	assert.Equal(t, "02-06-2025", record.Date)
}

func TestBudgetConservation(t *testing.T) {
	f, ctx := setupLedger(t)

	steps := []struct {
		name string
		run  func() error
	}{
		{"add rent", func() error { return f.service.AddExpense(ctx, expense("Rent", 40, "Home", "01-06-2025")) }},
		{"add lunch", func() error { return f.service.AddExpense(ctx, expense("Lunch", 12, "Food", "02-06-2025")) }},
		{"add taxi", func() error { return f.service.AddExpense(ctx, expense("Taxi", 7, "Travel", "03-06-2025")) }},
		{"raise lunch", func() error { return f.service.UpdateExpense(ctx, "Lunch", ExpenseUpdate{Amount: amount(20)}) }},
		{"delete taxi", func() error { return f.service.DeleteExpense(ctx, "Taxi") }},
		{"recategorize rent", func() error {
			category := "Housing"
			return f.service.UpdateExpense(ctx, "Rent", ExpenseUpdate{Category: &category})
		}},
		{"overspend", func() error { return f.service.AddExpense(ctx, expense("Laptop", 90, "Tech", "04-06-2025")) }},
		{"delete missing", func() error { _ = f.service.DeleteExpense(ctx, "Ghost"); return nil }},
	}

	for _, step := range steps {
		require.NoError(t, step.run(), step.name)

		expenses, err := f.service.Expenses(ctx)
		require.NoError(t, err)
		sum := decimal.Zero
		for _, e := range expenses {
			sum = sum.Add(e.Amount)
		}
		current, err := f.service.CheckBudget(ctx)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(100).Sub(sum).Equal(current), "after %s: current budget %s, expenses %s", step.name, current, sum)
	}
}

func TestUpdateExpense(t *testing.T) {
	f, ctx := setupLedger(t)
	require.NoError(t, f.service.AddExpense(ctx, expense("Test Expense", 10, "Test", "01-06-2025")))

	t.Run("amount rebalances the budget", func(t *testing.T) {
		require.NoError(t, f.service.UpdateExpense(ctx, "Test Expense", ExpenseUpdate{Amount: amount(15)}))

		record, err := f.service.LoadExpense(ctx, "Test Expense")
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(15).Equal(record.Amount))
		requireBudget(t, f, ctx, 85)
	})

	t.Run("other fields leave the budget alone", func(t *testing.T) {
		description := "groceries"
		date := "05-06-2025"
		require.NoError(t, f.service.UpdateExpense(ctx, "Test Expense", ExpenseUpdate{Description: &description, Date: &date}))

		record, err := f.service.LoadExpense(ctx, "Test Expense")
		require.NoError(t, err)
		assert.Equal(t, "groceries", record.Description)
		assert.Equal(t, "05-06-2025", record.Date)
		assert.Equal(t, "Test", record.Category)
		requireBudget(t, f, ctx, 85)
	})

	t.Run("unknown expense", func(t *testing.T) {
		err := f.service.UpdateExpense(ctx, "Ghost", ExpenseUpdate{Amount: amount(1)})
		assert.ErrorIs(t, err, ErrExpenseNotFound)
		requireBudget(t, f, ctx, 85)
	})

	t.Run("reserved name", func(t *testing.T) {
		err := f.service.UpdateExpense(ctx, BudgetInfoKey, ExpenseUpdate{Amount: amount(1)})
		assert.ErrorIs(t, err, ErrReservedName)
	})

	t.Run("invalid date", func(t *testing.T) {
		date := "June 5th"
		err := f.service.UpdateExpense(ctx, "Test Expense", ExpenseUpdate{Date: &date})
		assert.ErrorIs(t, err, ErrInvalidExpense)
	})
}

func TestUpdateExpense_NoLedger(t *testing.T) {
	f, ctx := setupLedger(t)

	err := f.service.UpdateExpense(ctx, "Coffee", ExpenseUpdate{Amount: amount(1)})

	assert.ErrorIs(t, err, ErrLedgerNotFound)
}

func TestDeleteExpense_LeavesLedgerUntouched(t *testing.T) {
	f, ctx := setupLedger(t)
	require.NoError(t, f.service.AddExpense(ctx, expense("Coffee", 5, "Food", "01-06-2025")))
	before, err := os.ReadFile(f.layout.ExpensesPath("test_user"))
	require.NoError(t, err)

	for _, name := range []string{"Ghost", BudgetInfoKey} {
		t.Run(name, func(t *testing.T) {
			err := f.service.DeleteExpense(ctx, name)
			assert.Error(t, err)

			after, err := os.ReadFile(f.layout.ExpensesPath("test_user"))
			require.NoError(t, err)
			assert.Equal(t, string(before), string(after))
			requireBudget(t, f, ctx, 95)
		})
	}

	assert.ErrorIs(t, f.service.DeleteExpense(ctx, "Ghost"), ErrExpenseNotFound)
	assert.ErrorIs(t, f.service.DeleteExpense(ctx, BudgetInfoKey), ErrReservedName)
}

func TestDeleteExpense_NoLedger(t *testing.T) {
	f, ctx := setupLedger(t)

	assert.ErrorIs(t, f.service.DeleteExpense(ctx, "Coffee"), ErrLedgerNotFound)
}

func TestLoadExpense(t *testing.T) {
	f, ctx := setupLedger(t)

	_, err := f.service.LoadExpense(ctx, "Coffee")
	assert.ErrorIs(t, err, ErrLedgerNotFound)

	require.NoError(t, f.service.AddExpense(ctx, expense("Coffee", 5, "Food", "01-06-2025")))

	record, err := f.service.LoadExpense(ctx, "Coffee")
	require.NoError(t, err)
	assert.Equal(t, "Food", record.Category)

	_, err = f.service.LoadExpense(ctx, BudgetInfoKey)
	assert.ErrorIs(t, err, ErrExpenseNotFound)
}

func TestListExpenses(t *testing.T) {
	f, ctx := setupLedger(t)
	names := f.service.ListExpenses(ctx)

	assert.Empty(t, slices.Collect(names))

	require.NoError(t, f.service.AddExpense(ctx, expense("Lunch", 12, "Food", "02-06-2025")))
	require.NoError(t, f.service.AddExpense(ctx, expense("Coffee", 5, "Food", "01-06-2025")))
	assert.Equal(t, []string{"Coffee", "Lunch"}, slices.Collect(names))

	require.NoError(t, f.service.AddExpense(ctx, expense("Taxi", 7, "Travel", "03-06-2025")))
	assert.Equal(t, []string{"Coffee", "Lunch", "Taxi"}, slices.Collect(names))

	var first []string
	for name := range names {
		first = append(first, name)
		break
	}
	assert.Equal(t, []string{"Coffee"}, first)
}

func TestListExpenses_MalformedLedger(t *testing.T) {
	f, ctx := setupLedger(t)
	require.NoError(t, f.layout.EnsureUserDir("test_user"))
	require.NoError(t, os.WriteFile(f.layout.ExpensesPath("test_user"), []byte(`{"Coffee": `), 0o644))

	assert.Empty(t, slices.Collect(f.service.ListExpenses(ctx)))
}

func TestAddExpense_MalformedLedgerIsNotOverwritten(t *testing.T) {
	f, ctx := setupLedger(t)
	require.NoError(t, f.layout.EnsureUserDir("test_user"))
	require.NoError(t, os.WriteFile(f.layout.ExpensesPath("test_user"), []byte(`{"Coffee": `), 0o644))

	err := f.service.AddExpense(ctx, expense("Lunch", 12, "Food", "02-06-2025"))

	assert.ErrorIs(t, err, docstore.ErrMalformed)
	raw, readErr := os.ReadFile(f.layout.ExpensesPath("test_user"))
	require.NoError(t, readErr)
	assert.Equal(t, `{"Coffee": `, string(raw))
}

func TestCheckBudget(t *testing.T) {
	t.Run("no ledger", func(t *testing.T) {
		f, ctx := setupLedger(t)
		current, err := f.service.CheckBudget(ctx)
		assert.ErrorIs(t, err, ErrLedgerNotFound)
		assert.True(t, current.IsZero())
	})

	t.Run("budget exceeded", func(t *testing.T) {
		f, ctx := setupLedger(t)
		var exceeded []event_bus.BudgetExceeded
		event_bus.SubscribeTyped(f.bus, event_bus.BudgetExceededEvent, func(e event_bus.EventT[event_bus.BudgetExceeded]) error {
			exceeded = append(exceeded, e.Data)
			return nil
		})
		require.NoError(t, f.service.AddExpense(ctx, expense("Laptop", 130, "Tech", "01-06-2025")))

		current, err := f.service.CheckBudget(ctx)

		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(-30).Equal(current))
		require.Len(t, exceeded, 2) // one from the add, one from the check
		assert.Equal(t, "test_user", exceeded[1].Username)
		assert.True(t, decimal.NewFromInt(-30).Equal(exceeded[1].CurrentBudget))
	})

	t.Run("expenses exceed income", func(t *testing.T) {
		f, ctx := setupLedger(t)
		f.setup.Set(decimal.NewFromInt(1000), decimal.NewFromInt(50))
		var incomeAlerts []event_bus.IncomeExceeded
		event_bus.SubscribeTyped(f.bus, event_bus.IncomeExceededEvent, func(e event_bus.EventT[event_bus.IncomeExceeded]) error {
			incomeAlerts = append(incomeAlerts, e.Data)
			return nil
		})
		require.NoError(t, f.service.AddExpense(ctx, expense("Rent", 80, "Home", "01-06-2025")))

		current, err := f.service.CheckBudget(ctx)

		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(920).Equal(current))
		require.Len(t, incomeAlerts, 1)
		assert.True(t, decimal.NewFromInt(80).Equal(incomeAlerts[0].TotalExpenses))
	})
}

func TestResetBudget_Idempotent(t *testing.T) {
	f, ctx := setupLedger(t)
	var resets int
	f.bus.Subscribe(event_bus.BudgetResetEvent, func(event_bus.Event) error {
		resets++
		return nil
	})

	require.NoError(t, f.service.ResetBudget(ctx))
	first, err := os.ReadFile(f.layout.ExpensesPath("test_user"))
	require.NoError(t, err)

	f.setup.Set(decimal.NewFromInt(999), decimal.NewFromInt(999))
	require.NoError(t, f.service.ResetBudget(ctx))
	second, err := os.ReadFile(f.layout.ExpensesPath("test_user"))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Equal(t, 1, resets)
	requireBudget(t, f, ctx, 100)
}

func TestMonthRollover(t *testing.T) {
	f, ctx := setupLedger(t)
	require.NoError(t, f.service.AddExpense(ctx, expense("Rent", 40, "Home", "01-06-2025")))
	requireBudget(t, f, ctx, 60)

	f.clock.SetNow(time.Date(2025, time.July, 1, 9, 0, 0, 0, time.UTC))
	f.setup.Set(decimal.NewFromInt(200), decimal.NewFromInt(600))
	require.NoError(t, f.service.AddExpense(ctx, expense("July rent", 50, "Home", "01-07-2025")))

	var doc Document
	require.NoError(t, f.service.store.Load(ctx, f.layout.ExpensesPath("test_user"), &doc))
	require.NotNil(t, doc.BudgetInfo)
	assert.Equal(t, "2025-07", doc.BudgetInfo.Month)
	assert.True(t, decimal.NewFromInt(200).Equal(doc.BudgetInfo.InitialBudget))
	assert.True(t, decimal.NewFromInt(150).Equal(doc.BudgetInfo.CurrentBudget))
	assert.True(t, decimal.NewFromInt(600).Equal(doc.BudgetInfo.Income))
	assert.Contains(t, doc.Expenses, "Rent")
}

func TestConcurrentAdds(t *testing.T) {
	f, ctx := setupLedger(t)
	f.setup.Set(decimal.NewFromInt(10000), decimal.NewFromInt(50000))
	const workers = 20

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.service.AddExpense(ctx, expense(fmt.Sprintf("Expense_%02d", i), int64(i+1), "Test", "01-06-2025")))
		}()
	}
	wg.Wait()

	assert.Len(t, slices.Collect(f.service.ListExpenses(ctx)), workers)
	requireBudget(t, f, ctx, 10000-workers*(workers+1)/2)
}

func TestLedgersArePartitionedByUser(t *testing.T) {
	f, aliceCtx := setupLedger(t)
	bobCtx := user.WithUser(context.Background(), user.User{Username: "bob"})

	require.NoError(t, f.service.AddExpense(aliceCtx, expense("Coffee", 5, "Food", "01-06-2025")))
	require.NoError(t, f.service.AddExpense(bobCtx, expense("Tea", 3, "Food", "01-06-2025")))

	assert.Equal(t, []string{"Coffee"}, slices.Collect(f.service.ListExpenses(aliceCtx)))
	assert.Equal(t, []string{"Tea"}, slices.Collect(f.service.ListExpenses(bobCtx)))
	requireBudget(t, f, bobCtx, 97)
}

func TestOperationsRequireUser(t *testing.T) {
	f, _ := setupLedger(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.service.AddExpense(ctx, expense("Coffee", 5, "Food", "01-06-2025")), user.ErrNoUser)
	assert.ErrorIs(t, f.service.DeleteExpense(ctx, "Coffee"), user.ErrNoUser)
	_, err := f.service.CheckBudget(ctx)
	assert.ErrorIs(t, err, user.ErrNoUser)
	assert.Empty(t, slices.Collect(f.service.ListExpenses(ctx)))
}

func TestDeleteExpense_AfterMonthRolloverCreditsNewMonth(t *testing.T) {
	f, ctx := setupLedger(t)
	require.NoError(t, f.service.AddExpense(ctx, expense("Rent", 40, "Home", "01-06-2025")))
	requireBudget(t, f, ctx, 60)

	f.clock.SetNow(time.Date(2025, time.July, 2, 9, 0, 0, 0, time.UTC))
	f.setup.Set(decimal.NewFromInt(200), decimal.NewFromInt(600))
	require.NoError(t, f.service.DeleteExpense(ctx, "Rent"))

	var doc Document
	require.NoError(t, f.service.store.Load(ctx, f.layout.ExpensesPath("test_user"), &doc))
	require.NotNil(t, doc.BudgetInfo)
	assert.Equal(t, "2025-07", doc.BudgetInfo.Month)
	assert.True(t, decimal.NewFromInt(200).Equal(doc.BudgetInfo.InitialBudget))
	assert.True(t, decimal.NewFromInt(240).Equal(doc.BudgetInfo.CurrentBudget))
	assert.NotContains(t, doc.Expenses, "Rent")
}
