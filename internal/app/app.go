package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pocketledger/pocketledger/internal/config"
	log "github.com/sirupsen/logrus"
)

// Application wires configuration and services to the interactive menu.
type Application struct {
	cfg  config.Application
	deps *Dependencies
	in   *bufio.Scanner
	out  io.Writer
}

// NewApplication constructs the full console application, ready to Run().
func NewApplication() (*Application, error) {
	cfg, err := config.Load("./config/application.yaml")
	if err != nil {
		return nil, err
	}
	if err := configureLogFile(cfg.Log); err != nil {
		return nil, err
	}

	deps := BuildDependencies(cfg, log.StandardLogger())
	return New(cfg, deps, os.Stdin, os.Stdout), nil
}

// New builds an application that reads commands from in and writes to out.
func New(cfg config.Application, deps *Dependencies, in io.Reader, out io.Writer) *Application {
	a := &Application{cfg: cfg, deps: deps, in: bufio.NewScanner(in), out: out}
	a.subscribeAlerts()
	return a
}

// Run shows the login screen and then the main menu until the user exits or the
// input ends.
func (a *Application) Run() error {
	ctx := context.Background()

	ctx, err := a.loginScreen(ctx)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}

	err = a.mainMenu(ctx)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (a *Application) prompt(label string) (string, error) {
	fmt.Fprint(a.out, label)
	if !a.in.Scan() {
		if err := a.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(a.in.Text()), nil
}

func (a *Application) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *Application) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func configureLogFile(cfg config.Log) error {
	if cfg.File == "" {
		return nil
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", cfg.File, err)
	}
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return nil
}
