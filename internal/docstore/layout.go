package docstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	expensesFile    = "expenses.json"
	setupFile       = "setup.json"
	credentialsFile = "login_details.json"
	profileFile     = "user_details.json"
)

// Layout maps a username to the files kept for that user. Every user gets a
// directory of their own under BaseDir; account-wide files live in BaseDir itself.
type Layout struct {
	BaseDir string
}

func NewLayout(baseDir string) Layout {
	return Layout{BaseDir: baseDir}
}

func (l Layout) UserDir(username string) string {
	return filepath.Join(l.BaseDir, username)
}

func (l Layout) ExpensesPath(username string) string {
	return filepath.Join(l.UserDir(username), expensesFile)
}

func (l Layout) SetupPath(username string) string {
	return filepath.Join(l.UserDir(username), setupFile)
}

func (l Layout) DetailedReportPath(username, period string) string {
	return filepath.Join(l.UserDir(username), "detailed_report_"+strings.ToLower(period)+".json")
}

func (l Layout) CredentialsPath() string {
	return filepath.Join(l.BaseDir, credentialsFile)
}

func (l Layout) ProfilePath() string {
	return filepath.Join(l.BaseDir, profileFile)
}

// EnsureUserDir creates the user's directory when it does not exist yet.
func (l Layout) EnsureUserDir(username string) error {
	if err := os.MkdirAll(l.UserDir(username), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for user %s: %w", username, err)
	}
	return nil
}
