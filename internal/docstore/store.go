package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrMalformed = errors.New("document is malformed")
	// ErrTimeout means the caller stopped waiting. The background operation may still be
	// running; check Operation.Running to tell the two apart.
	ErrTimeout = errors.New("document operation did not complete in time")
)

const DefaultTimeout = 5 * time.Second

func init() {
	// money values are written as JSON numbers, the way the documents have always looked on disk
	decimal.MarshalJSONWithoutQuotes = true
}

// Store saves and loads whole JSON documents. File access happens on a separate
// goroutine and the caller waits for it for at most the configured timeout.
type Store struct {
	timeout time.Duration
	logger  log.FieldLogger
}

func New(timeout time.Duration, logger log.FieldLogger) *Store {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Store{timeout: timeout, logger: logger}
}

func (s *Store) Timeout() time.Duration {
	return s.timeout
}

// SaveAsync serializes doc immediately and writes it in the background. The target
// file is fully overwritten; parent directories are created when missing.
func (s *Store) SaveAsync(path string, doc any) *Operation {
	op := newOperation(path)
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		err = fmt.Errorf("failed to encode document for %s: %w", path, err)
		s.logger.Errorf("Error saving data to %s: %v", path, err)
		op.finish(nil, err)
		return op
	}

	go func() {
		var err error
		defer func() { op.finish(nil, err) }()

		if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			err = fmt.Errorf("failed to create directory for %s: %w", path, err)
			s.logger.Errorf("Error saving data to %s: %v", path, err)
			return
		}
		if err = os.WriteFile(path, data, 0o644); err != nil {
			err = fmt.Errorf("failed to write %s: %w", path, err)
			s.logger.Errorf("Error saving data to %s: %v", path, err)
			return
		}
		s.logger.Infof("Data saved to %s", path)
	}()
	return op
}

// LoadAsync reads and validates the document at path in the background.
func (s *Store) LoadAsync(path string) *Operation {
	op := newOperation(path)

	go func() {
		var (
			data []byte
			err  error
		)
		defer func() { op.finish(data, err) }()

		data, err = os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %s", ErrNotFound, path)
			s.logger.Debugf("No document at %s", path)
			return
		}
		if err != nil {
			err = fmt.Errorf("failed to read %s: %w", path, err)
			s.logger.Errorf("Error reading data from %s: %v", path, err)
			return
		}
		if !json.Valid(data) {
			data = nil
			err = fmt.Errorf("%w: %s", ErrMalformed, path)
			s.logger.Errorf("Error reading data from %s: %v", path, err)
			return
		}
		s.logger.Debugf("Data read from %s", path)
	}()
	return op
}

// Save writes doc to path and waits for the write to finish, the context to end or
// the store timeout, whichever comes first.
func (s *Store) Save(ctx context.Context, path string, doc any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.SaveAsync(path, doc).Wait(ctx)
}

// Load reads the document at path into dst. Missing files yield ErrNotFound and
// unparseable ones ErrMalformed; dst is left untouched in both cases.
func (s *Store) Load(ctx context.Context, path string, dst any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	op := s.LoadAsync(path)
	if err := op.Wait(ctx); err != nil {
		return err
	}
	return op.Decode(dst)
}

func (s *Store) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
