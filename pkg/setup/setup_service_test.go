package setup

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/pocketledger/pocketledger/internal/docstore"
	"github.com/pocketledger/pocketledger/pkg/exchange"
	"github.com/pocketledger/pocketledger/pkg/user"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*ServiceImpl, *exchange.StubClient, docstore.Layout, context.Context) {
	t.Helper()
	layout := docstore.NewLayout(t.TempDir())
	rates := exchange.NewStubClient()
	service := NewServiceImpl(docstore.New(time.Second, nil), layout, rates, nil)
	ctx := user.WithUser(context.Background(), user.User{Username: "test_user"})
	return service, rates, layout, ctx
}

func TestConvertIncome(t *testing.T) {
	service, rates, _, ctx := setup(t)
	rates.SetRate("USD", "PKR", decimal.NewFromInt(280))

	converted, err := service.ConvertIncome(ctx, decimal.NewFromInt(500), "usd", "PKR")

	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(140000).Equal(converted))
}

func TestConvertIncome_SameCurrencySkipsLookup(t *testing.T) {
	service, rates, _, ctx := setup(t)

	converted, err := service.ConvertIncome(ctx, decimal.NewFromInt(500), "PKR", "pkr")

	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(500).Equal(converted))
	assert.Equal(t, 0, rates.Calls)
}

func TestConvertIncome_Failures(t *testing.T) {
	service, _, _, ctx := setup(t)

	_, err := service.ConvertIncome(ctx, decimal.NewFromInt(500), "USD", "PKR")
	assert.ErrorIs(t, err, exchange.ErrRateNotFound)

	_, err = service.ConvertIncome(ctx, decimal.NewFromInt(500), "DOLLARS", "PKR")
	assert.ErrorIs(t, err, ErrInvalidCurrency)

	_, err = service.ConvertIncome(ctx, decimal.NewFromInt(-1), "USD", "PKR")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestSetBudgetAndLoad(t *testing.T) {
	service, _, layout, ctx := setup(t)

	err := service.SetBudget(ctx, decimal.NewFromInt(10000), decimal.NewFromInt(140000), "pkr")
	require.NoError(t, err)

	doc, err := service.Load(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10000).Equal(doc.Budget))
	assert.True(t, decimal.NewFromInt(140000).Equal(doc.Income))
	assert.Equal(t, "PKR", doc.DefaultCurrency)

	raw, err := os.ReadFile(layout.SetupPath("test_user"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"budget": 10000, "income": 140000, "default_currency": "PKR"}`, string(raw))
}

func TestLoad_NotConfigured(t *testing.T) {
	service, _, layout, ctx := setup(t)

	_, err := service.Load(ctx)
	assert.ErrorIs(t, err, ErrNotConfigured)

	require.NoError(t, layout.EnsureUserDir("test_user"))
	require.NoError(t, os.WriteFile(layout.SetupPath("test_user"), []byte(`{}`), 0o644))
	_, err = service.Load(ctx)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSetBudget_RequiresUser(t *testing.T) {
	service, _, _, _ := setup(t)

	err := service.SetBudget(context.Background(), decimal.NewFromInt(1), decimal.NewFromInt(1), "PKR")

	assert.ErrorIs(t, err, user.ErrNoUser)
}
