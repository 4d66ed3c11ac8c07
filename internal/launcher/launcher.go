// Package launcher starts an external translator executable against the
// simulator and derives its command-line options from configuration.
package launcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

var (
	ErrPathRequired = errors.New("launcher: translator path required")
	ErrNotStarted   = errors.New("launcher: translator not started")
)

// TranslatorConfig describes the driver process under test.
type TranslatorConfig struct {
	Path           string
	ConfigFile     string
	ListenPort     int
	MiddlewareHost string
	MiddlewarePort int
	Extra          []string
}

func (c TranslatorConfig) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return ErrPathRequired
	}
	return nil
}

// Args derives the translator command line from the configuration.
func (c TranslatorConfig) Args() []string {
	var args []string
	if c.ConfigFile != "" {
		args = append(args, "--config", c.ConfigFile)
	}
	if c.ListenPort != 0 {
		args = append(args, "--listen-port", strconv.Itoa(c.ListenPort))
	}
	if c.MiddlewareHost != "" && c.MiddlewarePort != 0 {
		args = append(args, "--middleware", net.JoinHostPort(c.MiddlewareHost, strconv.Itoa(c.MiddlewarePort)))
	}
	return append(args, c.Extra...)
}

// Launcher runs one translator process with captured output.
type Launcher struct {
	cfg    TranslatorConfig
	logger zerolog.Logger

	cmd    *exec.Cmd
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func New(cfg TranslatorConfig, logger zerolog.Logger) (*Launcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Launcher{cfg: cfg, logger: logger}, nil
}

func (l *Launcher) Start(ctx context.Context) error {
	args := l.cfg.Args()
	l.cmd = exec.CommandContext(ctx, l.cfg.Path, args...)
	l.cmd.Stdout = &l.stdout
	l.cmd.Stderr = &l.stderr
	if err := l.cmd.Start(); err != nil {
		return fmt.Errorf("launcher: start %s: %w", l.cfg.Path, err)
	}
	l.logger.Info().
		Str("path", l.cfg.Path).
		Strs("args", args).
		Int("pid", l.cmd.Process.Pid).
		Msg("translator started")
	return nil
}

// Wait blocks until the translator exits and returns its normalized
// exit code.
func (l *Launcher) Wait() (int32, error) {
	if l.cmd == nil {
		return 0, ErrNotStarted
	}
	err := l.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return int32(exitErr.ExitCode()), err
	}
	exitCode := int32(1)
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		exitCode = 127
	}
	return exitCode, err
}

func (l *Launcher) Stop() error {
	if l.cmd == nil || l.cmd.Process == nil {
		return ErrNotStarted
	}
	l.logger.Info().Int("pid", l.cmd.Process.Pid).Msg("translator stopping")
	return l.cmd.Process.Kill()
}

func (l *Launcher) Stdout() []byte {
	return l.stdout.Bytes()
}

func (l *Launcher) Stderr() []byte {
	return l.stderr.Bytes()
}
