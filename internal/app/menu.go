package app

import (
	"context"
	"errors"
	"io"
	"slices"

	"github.com/pocketledger/pocketledger/pkg/ledger"
	"github.com/pocketledger/pocketledger/pkg/profile"
	"github.com/pocketledger/pocketledger/pkg/report"
	"github.com/pocketledger/pocketledger/pkg/setup"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const mainMenu = `----Expense Tracker----
1.Setup
2.Add expense
3.View expense
4.Update expense
5.Delete expense
6.List expenses
7.Check budget
8.Generate report
9.View user profile
10.Exit
`

func (a *Application) mainMenu(ctx context.Context) error {
	actions := map[string]func(context.Context) error{
		"1": a.setupBudget,
		"2": a.addExpense,
		"3": a.viewExpense,
		"4": a.updateExpense,
		"5": a.deleteExpense,
		"6": a.listExpenses,
		"7": a.checkBudget,
		"8": a.generateReports,
		"9": a.viewProfile,
	}
	for {
		choice, err := a.prompt(mainMenu)
		if err != nil {
			return err
		}
		if choice == "10" {
			a.println("Goodbye.")
			return nil
		}
		action, ok := actions[choice]
		if !ok {
			a.println("Please enter correct action.")
			continue
		}
		if err := action(ctx); err != nil {
			if errors.Is(err, io.EOF) {
				return err
			}
			a.reportFailure(err)
		}
	}
}

// reportFailure tells the user what went wrong without leaving the menu.
func (a *Application) reportFailure(err error) {
	switch {
	case errors.Is(err, ledger.ErrExpenseNotFound):
		a.println("Expense not found.")
	case errors.Is(err, ledger.ErrReservedName):
		a.println("That name is reserved, pick another one.")
	case errors.Is(err, ledger.ErrInvalidExpense):
		a.printf("Invalid expense: %v\n", err)
	case errors.Is(err, ledger.ErrLedgerNotFound):
		a.println("No expenses recorded yet.")
	case errors.Is(err, ledger.ErrBudgetNotInitialized):
		a.println("Budget has not been initialized yet.")
	case errors.Is(err, ledger.ErrNoSetup), errors.Is(err, setup.ErrNotConfigured):
		a.println("Please complete the setup first.")
	case errors.Is(err, setup.ErrInvalidAmount), errors.Is(err, setup.ErrInvalidCurrency):
		a.printf("Invalid input: %v\n", err)
	case errors.Is(err, errInvalidNumber):
		a.println("Invalid input. Please enter a numeric value.")
	case errors.Is(err, profile.ErrNoProfile):
		a.println("No profile recorded yet.")
	default:
		log.Errorf("Operation failed: %v", err)
		a.println("Something went wrong, see the log for details.")
	}
}

var errInvalidNumber = errors.New("not a number")

func (a *Application) promptAmount(label string) (decimal.Decimal, error) {
	raw, err := a.prompt(label)
	if err != nil {
		return decimal.Zero, err
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errInvalidNumber
	}
	return amount, nil
}

func (a *Application) setupBudget(ctx context.Context) error {
	budget, err := a.promptAmount("Enter your budget: ")
	if err != nil {
		return err
	}
	income, err := a.promptAmount("Enter your income: ")
	if err != nil {
		return err
	}
	defaultCurrency, err := a.prompt("Enter your default currency (e.g., " + a.cfg.Currency.Default + "): ")
	if err != nil {
		return err
	}
	if defaultCurrency == "" {
		defaultCurrency = a.cfg.Currency.Default
	}
	incomeCurrency, err := a.prompt("Enter your income currency (e.g., USD): ")
	if err != nil {
		return err
	}
	if incomeCurrency == "" {
		incomeCurrency = defaultCurrency
	}

	converted, err := a.deps.SetupService.ConvertIncome(ctx, income, incomeCurrency, defaultCurrency)
	if err != nil {
		if errors.Is(err, setup.ErrInvalidAmount) || errors.Is(err, setup.ErrInvalidCurrency) {
			return err
		}
		log.Errorf("Income conversion failed: %v", err)
		a.println("Setup failed due to conversion error.")
		return nil
	}
	if err := a.deps.SetupService.SetBudget(ctx, budget, converted, defaultCurrency); err != nil {
		return err
	}
	a.println("Setup completed successfully.")
	return nil
}

func (a *Application) addExpense(ctx context.Context) error {
	name, err := a.prompt("Expense name: ")
	if err != nil {
		return err
	}
	amount, err := a.promptAmount("Amount: ")
	if err != nil {
		return err
	}
	category, err := a.prompt("Category: ")
	if err != nil {
		return err
	}
	date, err := a.prompt("Date (DD-MM-YYYY, empty for today): ")
	if err != nil {
		return err
	}
	description, err := a.prompt("Description: ")
	if err != nil {
		return err
	}

	expense := ledger.Expense{
		Name: name,
		ExpenseRecord: ledger.ExpenseRecord{
			Amount:      amount,
			Category:    category,
			Date:        date,
			Description: description,
		},
	}
	if err := a.deps.LedgerService.AddExpense(ctx, expense); err != nil {
		return err
	}
	a.printf("Expense %q added.\n", name)
	return nil
}

func (a *Application) viewExpense(ctx context.Context) error {
	name, err := a.prompt("Expense name: ")
	if err != nil {
		return err
	}
	record, err := a.deps.LedgerService.LoadExpense(ctx, name)
	if err != nil {
		return err
	}
	a.printExpense(name, record)
	return nil
}

// updateExpense asks for every field; an empty answer keeps the current value.
func (a *Application) updateExpense(ctx context.Context) error {
	name, err := a.prompt("Expense name: ")
	if err != nil {
		return err
	}
	a.println("Leave a field empty to keep its value.")

	var update ledger.ExpenseUpdate
	raw, err := a.prompt("Amount: ")
	if err != nil {
		return err
	}
	if raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return errInvalidNumber
		}
		update.Amount = &amount
	}
	for _, field := range []struct {
		label string
		dst   **string
	}{
		{"Category: ", &update.Category},
		{"Date (DD-MM-YYYY): ", &update.Date},
		{"Description: ", &update.Description},
	} {
		value, err := a.prompt(field.label)
		if err != nil {
			return err
		}
		if value != "" {
			*field.dst = &value
		}
	}

	if update.IsEmpty() {
		a.println("Nothing to update.")
		return nil
	}
	if err := a.deps.LedgerService.UpdateExpense(ctx, name, update); err != nil {
		return err
	}
	a.printf("Expense %q updated.\n", name)
	return nil
}

func (a *Application) deleteExpense(ctx context.Context) error {
	name, err := a.prompt("Expense name: ")
	if err != nil {
		return err
	}
	if err := a.deps.LedgerService.DeleteExpense(ctx, name); err != nil {
		return err
	}
	a.printf("Expense %q deleted.\n", name)
	return nil
}

func (a *Application) listExpenses(ctx context.Context) error {
	names := slices.Collect(a.deps.LedgerService.ListExpenses(ctx))
	if len(names) == 0 {
		a.println("No expenses recorded yet.")
		return nil
	}
	a.println("Expenses:")
	for _, name := range names {
		a.printf("- %s\n", name)
	}
	return nil
}

func (a *Application) checkBudget(ctx context.Context) error {
	remaining, err := a.deps.LedgerService.CheckBudget(ctx)
	if err != nil {
		return err
	}
	a.printf("Remaining budget: %s\n", remaining)
	return nil
}

func (a *Application) generateReports(ctx context.Context) error {
	period, err := a.prompt("Time period (d/w/m/y): ")
	if err != nil {
		return err
	}
	if _, err := report.ParsePeriod(period); err != nil {
		a.println("Invalid time period. Use d, w, m or y.")
		return nil
	}
	rawCategory, err := a.prompt("Category (empty for all): ")
	if err != nil {
		return err
	}
	var category *string
	if rawCategory != "" {
		category = &rawCategory
	}

	reports := a.deps.ReportOrchestrator.GenerateReports(ctx, period, category)
	for _, kind := range []report.Kind{report.KindBrief, report.KindDetailed} {
		result, ok := reports[kind]
		switch {
		case !ok:
			a.printf("The %s report did not finish in time.\n", kind)
		case result == nil:
			a.printf("No %s report: no expenses or setup found.\n", kind)
		default:
			a.printReport(kind, result)
		}
	}
	return nil
}

func (a *Application) viewProfile(ctx context.Context) error {
	p, err := a.deps.ProfileService.Get(ctx)
	if err != nil {
		return err
	}
	a.printf("Username: %s\nLast login: %s\nStreak: %d\n", p.Username, p.LoginDate, p.Streak)
	return nil
}

func (a *Application) printExpense(name string, record ledger.ExpenseRecord) {
	a.printf("%s: %s, %s, %s", name, record.Amount, record.Category, record.Date)
	if record.Description != "" {
		a.printf(", %s", record.Description)
	}
	a.println()
}

func (a *Application) printReport(kind report.Kind, result *report.Result) {
	a.printf("---- %s report (%s) ----\n", kind, result.TimePeriod)
	if result.Category != nil {
		a.printf("Category: %s\n", *result.Category)
	}
	a.printf("Total expense: %s\n", result.TotalExpense)
	a.printf("Remaining budget: %s\n", result.RemainingBudget)
	names := make([]string, 0, len(result.Expenses))
	for name := range result.Expenses {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		a.printExpense(name, result.Expenses[name])
	}
	if result.BudgetInfo != nil {
		a.printf("Budget of %s: %s of %s left, income %s\n",
			result.BudgetInfo.Month, result.BudgetInfo.CurrentBudget, result.BudgetInfo.InitialBudget, result.BudgetInfo.Income)
	}
}
