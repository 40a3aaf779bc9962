package report

import (
	"context"
	"sync"
)

// StubGenerator lets tests decide how each report kind behaves: return a result,
// fail, block until released or panic.
type StubGenerator struct {
	mu      sync.Mutex
	results map[Kind]*Result
	errs    map[Kind]error
	block   map[Kind]chan struct{}
	panics  map[Kind]bool
}

func NewStubGenerator() *StubGenerator {
	return &StubGenerator{
		results: map[Kind]*Result{},
		errs:    map[Kind]error{},
		block:   map[Kind]chan struct{}{},
		panics:  map[Kind]bool{},
	}
}

func (s *StubGenerator) Return(kind Kind, result *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[kind] = result
}

func (s *StubGenerator) Fail(kind Kind, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[kind] = err
}

func (s *StubGenerator) Panic(kind Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panics[kind] = true
}

// Block makes kind hang until the returned function is called.
func (s *StubGenerator) Block(kind Kind) (release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.block[kind] = ch
	return func() { close(ch) }
}

func (s *StubGenerator) Brief(ctx context.Context, period string, category *string) (*Result, error) {
	return s.run(KindBrief)
}

func (s *StubGenerator) Detailed(ctx context.Context, period string, category *string, persist bool) (*Result, error) {
	return s.run(KindDetailed)
}

func (s *StubGenerator) run(kind Kind) (*Result, error) {
	s.mu.Lock()
	block, result, err, crash := s.block[kind], s.results[kind], s.errs[kind], s.panics[kind]
	s.mu.Unlock()

	if block != nil {
		<-block
	}
	if crash {
		panic("report worker crashed: " + string(kind))
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
