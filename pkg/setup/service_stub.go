package setup

import (
	"context"

	"github.com/shopspring/decimal"
)

// StubReader serves a fixed setup document, or ErrNotConfigured when none was set.
type StubReader struct {
	doc *Document
	err error
}

func NewStubReader() *StubReader {
	return &StubReader{}
}

func (s *StubReader) Set(budget, income decimal.Decimal) {
	s.doc = &Document{Budget: budget, Income: income, DefaultCurrency: "PKR"}
}

func (s *StubReader) Fail(err error) {
	s.err = err
}

func (s *StubReader) Load(ctx context.Context) (Document, error) {
	if s.err != nil {
		return Document{}, s.err
	}
	if s.doc == nil {
		return Document{}, ErrNotConfigured
	}
	return *s.doc, nil
}
