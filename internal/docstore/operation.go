package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var ErrInProgress = errors.New("document operation still running")

// Operation is the handle of a single background save or load. It completes exactly once.
type Operation struct {
	path string
	once sync.Once
	done chan struct{}
	data []byte
	err  error
}

func newOperation(path string) *Operation {
	return &Operation{path: path, done: make(chan struct{})}
}

func (o *Operation) finish(data []byte, err error) {
	o.once.Do(func() {
		o.data = data
		o.err = err
		close(o.done)
	})
}

func (o *Operation) Path() string {
	return o.path
}

// Done is closed when the operation has finished, successfully or not.
func (o *Operation) Done() <-chan struct{} {
	return o.done
}

func (o *Operation) Running() bool {
	select {
	case <-o.done:
		return false
	default:
		return true
	}
}

// Err reports the outcome of a finished operation, or ErrInProgress.
func (o *Operation) Err() error {
	if o.Running() {
		return ErrInProgress
	}
	return o.err
}

// Wait blocks until the operation finishes or ctx ends. A deadline is reported as
// ErrTimeout, an explicit cancellation as the context error. In both cases the
// operation keeps running and can be waited on again.
func (o *Operation) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrTimeout, o.path)
		}
		return fmt.Errorf("waiting for %s: %w", o.path, ctx.Err())
	}
}

// Decode unmarshals the document read by a finished load operation.
func (o *Operation) Decode(dst any) error {
	if err := o.Err(); err != nil {
		return err
	}
	if err := json.Unmarshal(o.data, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, o.path, err)
	}
	return nil
}
