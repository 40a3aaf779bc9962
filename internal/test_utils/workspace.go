package test_utils

import (
	"testing"
	"time"

	"github.com/pocketledger/pocketledger/internal/docstore"
)

// NewWorkspace returns a store and a layout rooted in a fresh temporary directory
// that is removed when the test ends.
func NewWorkspace(t *testing.T) (*docstore.Store, docstore.Layout) {
	t.Helper()
	return docstore.New(2*time.Second, nil), docstore.NewLayout(t.TempDir())
}
