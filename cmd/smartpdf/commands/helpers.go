package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/spherical/smartpdf/cmd/smartpdf/ui"
	"github.com/spherical/smartpdf/internal/config"
	"github.com/spherical/smartpdf/internal/domain"
	"github.com/spherical/smartpdf/internal/observability"
	"github.com/spherical/smartpdf/pkg/converter"
)

// ExitCodeUsage is returned for configuration and usage errors.
const ExitCodeUsage = 2

// ExitError carries the process exit code. A nil Err means the failure has
// already been reported.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func usageError(format string, args ...interface{}) error {
	return &ExitError{Code: ExitCodeUsage, Err: fmt.Errorf(format, args...)}
}

// ExitCode maps an error returned by Execute to a process exit code.
// Anything that is not an ExitError is a usage error.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCodeUsage
}

// applyEnvPairs exports --env KEY=VAL pairs, warning about keys the config
// loader does not read.
func applyEnvPairs(pairs []string, warnUnknown bool) error {
	for _, pair := range pairs {
		key, val, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return usageError("invalid --env value %q, expected KEY=VAL", pair)
		}
		if warnUnknown && !config.IsKnownEnvKey(key) {
			ui.Warning("unknown environment key %s (known keys use the %s prefix)", key, config.EnvPrefix)
		}
		if err := os.Setenv(key, val); err != nil {
			return usageError("set %s: %v", key, err)
		}
	}
	return nil
}

// loadConfig builds the configuration from .env, --env, the config file and
// the persistent logging flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	if err := applyEnvPairs(envPairs, !noWarnUnknownEnv); err != nil {
		return nil, err
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, &ExitError{Code: ExitCodeUsage, Err: err}
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("log-json") {
		cfg.LogJSON = logJSON
	}
	if flags.Changed("log-file") {
		cfg.LogFile = logFile
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *observability.Logger {
	return observability.NewLogger(observability.LogConfig{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat(),
		File:        cfg.LogFile,
		NoColor:     noColor,
		ServiceName: "smartpdf",
	})
}

// newClient validates cfg and builds the library client. Config and
// validation failures are usage errors.
func newClient(ctx context.Context, cfg *config.Config, opts ...converter.Option) (*converter.Client, error) {
	client, err := converter.NewClient(ctx, cfg, opts...)
	if err == nil {
		return client, nil
	}
	if domain.IsType(err, domain.ErrorTypeConfig) || domain.IsType(err, domain.ErrorTypeValidation) {
		return nil, &ExitError{Code: ExitCodeUsage, Err: err}
	}
	return nil, &ExitError{Code: int(domain.StatusUnhandled), Err: err}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(logger *observability.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Warn().Str("signal", sig.String()).Msg("received signal, cancelling remaining documents")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
