package setup

import "github.com/shopspring/decimal"

// Document is the budget configuration of one user, kept in setup.json.
// Income is already converted to DefaultCurrency.
type Document struct {
	Budget          decimal.Decimal `json:"budget"`
	Income          decimal.Decimal `json:"income"`
	DefaultCurrency string          `json:"default_currency"`
}
