// Package cli implements registrationsctl, a command line client that manages
// registrations held by a resource server through the REST repository.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/architeacher/u2f-registrations/internal/adapters/repos/rest"
	"github.com/architeacher/u2f-registrations/internal/config"
	"github.com/architeacher/u2f-registrations/internal/domain/model"
	"github.com/architeacher/u2f-registrations/internal/ports"
	"github.com/architeacher/u2f-registrations/pkg/clock"
	"github.com/architeacher/u2f-registrations/pkg/logger"
	"github.com/spf13/cobra"
)

const (
	defaultResourceURL = "http://localhost:8088/resource"
	resourceURLEnv     = "REGISTRATIONS_RESOURCE_URL"

	outputTable = "table"
	outputJSON  = "json"
)

type (
	globalOptions struct {
		url         string
		timeout     time.Duration
		expireAfter time.Duration
		logLevel    string
		output      string
	}

	// RepositoryFactory builds the repository a command talks to.
	RepositoryFactory func(opts RepositoryOptions) (ports.DeviceRepository, error)

	RepositoryOptions struct {
		URL         string
		Timeout     time.Duration
		ExpireAfter time.Duration
		Logger      logger.Logger
	}
)

// NewRESTRepository is the default factory used by the binary.
func NewRESTRepository(opts RepositoryOptions) (ports.DeviceRepository, error) {
	repo, err := rest.NewRepository(
		rest.Config{BaseURL: opts.URL, Timeout: opts.Timeout},
		clock.System(),
		model.NewExpirationPolicy(opts.ExpireAfter),
		opts.Logger,
	)
	if err != nil {
		return nil, err
	}

	return repo, nil
}

// NewRootCommand assembles registrationsctl writing results to out and diagnostics to errOut.
func NewRootCommand(out, errOut io.Writer, factory RepositoryFactory) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "registrationsctl",
		Short:         "Manage security-key registrations stored in a resource server",
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.url, "url", envOr(resourceURLEnv, defaultResourceURL), "resource base URL")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "per-request timeout, 0 disables it")
	flags.DurationVar(&opts.expireAfter, "expire-after", 30*24*time.Hour, "hide registrations older than this, 0 disables expiry")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "diagnostic log level")
	flags.StringVarP(&opts.output, "output", "o", outputTable, "output format: table or json")

	connect := func() (ports.DeviceRepository, error) {
		if opts.output != outputTable && opts.output != outputJSON {
			return nil, fmt.Errorf("unknown output format %q", opts.output)
		}

		if opts.expireAfter < 0 {
			return nil, fmt.Errorf("--expire-after must be non-negative, got %s", opts.expireAfter)
		}

		return factory(RepositoryOptions{
			URL:         opts.url,
			Timeout:     opts.timeout,
			ExpireAfter: opts.expireAfter,
			Logger:      logger.NewWithWriter(opts.logLevel, "console", errOut),
		})
	}

	root.AddCommand(
		newListCommand(opts, connect),
		newShowCommand(opts, connect),
		newRegisterCommand(opts, connect),
		newActivatedCommand(connect),
		newRemoveCommand(connect),
		newPurgeCommand(connect),
		newClearCommand(connect),
	)

	return root
}

// Execute runs registrationsctl against the REST repository.
func Execute(ctx context.Context) error {
	return NewRootCommand(os.Stdout, os.Stderr, NewRESTRepository).ExecuteContext(ctx)
}

func versionString() string {
	if config.ServiceVersion == "" {
		return "dev"
	}

	if config.CommitSHA == "" {
		return config.ServiceVersion
	}

	return config.ServiceVersion + " (" + config.CommitSHA + ")"
}

func envOr(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}

	return fallback
}
