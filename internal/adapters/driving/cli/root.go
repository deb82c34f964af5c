// Package cli provides the imgsearch command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driven"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driving"
	"github.com/custodia-labs/imgsearch/internal/logger"
)

// version is set at build time.
var version = "dev"

// Services holds the ports one command invocation works with.
// Fields a command does not need may be nil.
type Services struct {
	Ingest driving.IngestService
	Query  driving.QueryService
	Runs   driving.RunHistory
	Watch  driving.WatchService
	Viewer driven.ImageViewer

	// Close releases models, connections and files. May be nil.
	Close func() error
}

// ServiceOptions carries per-invocation choices that are not settings.
type ServiceOptions struct {
	// DumpPath receives a copy of every bulk payload when set.
	DumpPath string

	// Debounce is the quiet period of watch mode. 0 keeps the default.
	Debounce time.Duration

	// Out receives printed hit paths.
	Out io.Writer
}

// ServiceFactory builds services for the effective settings.
type ServiceFactory func(ctx context.Context, settings domain.Settings, opts ServiceOptions) (*Services, error)

// SettingsFactory builds the settings service for a config directory.
// An empty directory selects the default location.
type SettingsFactory func(configDir string) (driving.SettingsService, error)

var (
	settingsService driving.SettingsService
	settingsFactory SettingsFactory
	serviceFactory  ServiceFactory

	// isTerminal and readPassword are swapped in tests.
	isTerminal   = func(fd int) bool { return term.IsTerminal(fd) }
	readPassword = term.ReadPassword
)

var (
	verbose   bool
	configDir string
)

var rootCmd = &cobra.Command{
	Use:   "imgsearch",
	Short: "Index images by embedding and find similar ones",
	Long: `imgsearch turns a directory of images into vector embeddings, loads them
into a k-NN search index together with EXIF capture date and GPS location,
and finds the stored images most similar to a query image.

Settings come from ~/.imgsearch/config.toml, IMGSEARCH_* environment
variables (optionally from a .env file) and command flags, in increasing
order of precedence.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initRoot,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print pipeline details to stderr")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "directory holding config.toml (default ~/.imgsearch)")
	rootCmd.PersistentFlags().String("backend", "", "search backend: opensearch, sqlite or memory")
	rootCmd.PersistentFlags().String("index", "", "index name")
}

// rootOverrides maps persistent flags to setting keys.
var rootOverrides = map[string]string{
	"backend": "search.backend",
	"index":   "search.index_name",
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetSettingsFactory sets how the settings service is built once flags are parsed.
func SetSettingsFactory(f SettingsFactory) {
	settingsFactory = f
}

// SetServiceFactory sets how command services are built.
func SetServiceFactory(f ServiceFactory) {
	serviceFactory = f
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func initRoot(_ *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if settingsService != nil || settingsFactory == nil {
		return nil
	}
	svc, err := settingsFactory(configDir)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	settingsService = svc
	return nil
}

// effectiveSettings layers flag overrides on the stored settings and validates the result.
func effectiveSettings(cmd *cobra.Command, overrides map[string]string) (*domain.Settings, error) {
	if settingsService == nil {
		return nil, errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	var errs []error
	apply := func(flags *pflag.FlagSet, table map[string]string) {
		for name, key := range table {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := settingsService.Apply(settings, key, f.Value.String()); err != nil {
				errs = append(errs, fmt.Errorf("--%s: %w", name, err))
			}
		}
	}
	apply(cmd.Flags(), rootOverrides)
	apply(cmd.Flags(), overrides)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// buildServices resolves credentials and calls the service factory.
func buildServices(cmd *cobra.Command, settings *domain.Settings, opts ServiceOptions) (*Services, error) {
	if serviceFactory == nil {
		return nil, errors.New("services not configured")
	}
	if err := promptPassword(cmd, settings); err != nil {
		return nil, err
	}
	if opts.Out == nil {
		opts.Out = cmd.OutOrStdout()
	}

	svcs, err := serviceFactory(cmd.Context(), *settings, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise services: %w", err)
	}
	return svcs, nil
}

// promptPassword asks for the search password when a remote backend
// has none configured and stdin is a terminal.
func promptPassword(cmd *cobra.Command, settings *domain.Settings) error {
	if !settings.Search.Backend.IsRemote() || settings.Search.Password != "" {
		return nil
	}
	fd := int(os.Stdin.Fd())
	if !isTerminal(fd) {
		return nil
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Password for %s@%s: ", settings.Search.Username, settings.Search.Address())
	password, err := readPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	settings.Search.Password = strings.TrimSpace(string(password))
	return nil
}

func closeServices(cmd *cobra.Command, svcs *Services) {
	if svcs == nil || svcs.Close == nil {
		return
	}
	if err := svcs.Close(); err != nil {
		logger.Warn("close: %v", err)
		cmd.PrintErrf("warning: %v\n", err)
	}
}
