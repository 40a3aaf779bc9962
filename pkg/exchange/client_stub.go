package exchange

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// StubClient serves rates from memory. Keys are "BASE/TARGET".
type StubClient struct {
	rates map[string]decimal.Decimal
	Calls int
}

func NewStubClient() *StubClient {
	return &StubClient{rates: map[string]decimal.Decimal{}}
}

func (s *StubClient) SetRate(base, target string, value decimal.Decimal) {
	s.rates[strings.ToUpper(base)+"/"+strings.ToUpper(target)] = value
}

func (s *StubClient) Rate(ctx context.Context, base, target string) (Rate, error) {
	s.Calls++
	base, target = strings.ToUpper(base), strings.ToUpper(target)
	value, ok := s.rates[base+"/"+target]
	if !ok {
		return Rate{}, fmt.Errorf("%w: %s -> %s", ErrRateNotFound, base, target)
	}
	return Rate{Base: base, Target: target, Value: value, Result: "success"}, nil
}
