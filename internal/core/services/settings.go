package services

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driven"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// EnvPrefix prefixes environment overrides, e.g. IMGSEARCH_SEARCH_HOST.
const EnvPrefix = "IMGSEARCH_"

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keySearchBackend  = "search.backend"
	keySearchScheme   = "search.scheme"
	keySearchHost     = "search.host"
	keySearchPort     = "search.port"
	keySearchUsername = "search.username"
	keySearchPassword = "search.password"
	keySearchInsecure = "search.insecure_skip_verify"
	keySearchCompress = "search.compress"
	keySearchIndex    = "search.index_name"
	keySearchSchema   = "search.schema_path"
	keySearchReuse    = "search.reuse_index"
	keyIngestChunk    = "ingest.chunk_size"
	keyIngestMax      = "ingest.max_images"
	keyIngestRoot     = "ingest.images_root"
	keyIngestPattern  = "ingest.pattern"
	keyIngestWorkers  = "ingest.workers"
	keyIngestContinue = "ingest.continue_on_error"
	keyModelName      = "model.name"
	keyModelBaseURL   = "model.base_url"
	keyModelTimeout   = "model.timeout_seconds"
	keyModelRPS       = "model.requests_per_second"
	keyModelMaxEdge   = "model.max_edge"
	keyQueryK         = "query.k"
	keyQueryDir       = "query.dir"
	keyQueryViewer    = "query.viewer"
	keyDataDir        = "data.dir"
)

const (
	secretPlaceholder = "********"
	errUnknownSetting = "unknown setting %q"
)

// setting binds a config key to a field of domain.Settings.
type setting struct {
	key    string
	secret bool
	get    func(*domain.Settings) string
	set    func(*domain.Settings, string) error
	// typed converts a raw value to what the config file stores.
	typed func(string) (any, error)
}

func stringSetting(key string, field func(*domain.Settings) *string) setting {
	return setting{
		key: key,
		get: func(s *domain.Settings) string { return *field(s) },
		set: func(s *domain.Settings, v string) error {
			*field(s) = v
			return nil
		},
		typed: func(v string) (any, error) { return v, nil },
	}
}

func intSetting(key string, field func(*domain.Settings) *int) setting {
	return setting{
		key: key,
		get: func(s *domain.Settings) string { return strconv.Itoa(*field(s)) },
		set: func(s *domain.Settings, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%w: %s expects an integer, got %q", domain.ErrInvalidInput, key, v)
			}
			*field(s) = n
			return nil
		},
		typed: func(v string) (any, error) {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("%w: %s expects an integer, got %q", domain.ErrInvalidInput, key, v)
			}
			return n, nil
		},
	}
}

func boolSetting(key string, field func(*domain.Settings) *bool) setting {
	parse := func(v string) (bool, error) {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("%w: %s expects true or false, got %q", domain.ErrInvalidInput, key, v)
		}
		return b, nil
	}
	return setting{
		key: key,
		get: func(s *domain.Settings) string { return strconv.FormatBool(*field(s)) },
		set: func(s *domain.Settings, v string) error {
			b, err := parse(v)
			if err != nil {
				return err
			}
			*field(s) = b
			return nil
		},
		typed: func(v string) (any, error) { return parse(v) },
	}
}

// settingsTable lists every recognised key in display order.
var settingsTable = []setting{
	{
		key: keySearchBackend,
		get: func(s *domain.Settings) string { return s.Search.Backend.String() },
		set: func(s *domain.Settings, v string) error {
			b := domain.Backend(strings.ToLower(strings.TrimSpace(v)))
			if !b.IsValid() {
				return fmt.Errorf("%w: unknown backend %q", domain.ErrInvalidInput, v)
			}
			s.Search.Backend = b
			return nil
		},
		typed: func(v string) (any, error) { return strings.ToLower(strings.TrimSpace(v)), nil },
	},
	stringSetting(keySearchScheme, func(s *domain.Settings) *string { return &s.Search.Scheme }),
	stringSetting(keySearchHost, func(s *domain.Settings) *string { return &s.Search.Host }),
	intSetting(keySearchPort, func(s *domain.Settings) *int { return &s.Search.Port }),
	stringSetting(keySearchUsername, func(s *domain.Settings) *string { return &s.Search.Username }),
	func() setting {
		st := stringSetting(keySearchPassword, func(s *domain.Settings) *string { return &s.Search.Password })
		st.secret = true
		return st
	}(),
	boolSetting(keySearchInsecure, func(s *domain.Settings) *bool { return &s.Search.InsecureSkipVerify }),
	boolSetting(keySearchCompress, func(s *domain.Settings) *bool { return &s.Search.Compress }),
	stringSetting(keySearchIndex, func(s *domain.Settings) *string { return &s.Search.IndexName }),
	stringSetting(keySearchSchema, func(s *domain.Settings) *string { return &s.Search.SchemaPath }),
	boolSetting(keySearchReuse, func(s *domain.Settings) *bool { return &s.Search.ReuseIndex }),
	intSetting(keyIngestChunk, func(s *domain.Settings) *int { return &s.Ingest.ChunkSize }),
	intSetting(keyIngestMax, func(s *domain.Settings) *int { return &s.Ingest.MaxImages }),
	stringSetting(keyIngestRoot, func(s *domain.Settings) *string { return &s.Ingest.ImagesRoot }),
	stringSetting(keyIngestPattern, func(s *domain.Settings) *string { return &s.Ingest.Pattern }),
	intSetting(keyIngestWorkers, func(s *domain.Settings) *int { return &s.Ingest.Workers }),
	boolSetting(keyIngestContinue, func(s *domain.Settings) *bool { return &s.Ingest.ContinueOnError }),
	stringSetting(keyModelName, func(s *domain.Settings) *string { return &s.Model.Name }),
	stringSetting(keyModelBaseURL, func(s *domain.Settings) *string { return &s.Model.BaseURL }),
	{
		key: keyModelTimeout,
		get: func(s *domain.Settings) string { return strconv.Itoa(int(s.Model.Timeout / time.Second)) },
		set: func(s *domain.Settings, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil || n <= 0 {
				return fmt.Errorf("%w: %s expects a positive number of seconds, got %q", domain.ErrInvalidInput, keyModelTimeout, v)
			}
			s.Model.Timeout = time.Duration(n) * time.Second
			return nil
		},
		typed: func(v string) (any, error) {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("%w: %s expects a positive number of seconds, got %q", domain.ErrInvalidInput, keyModelTimeout, v)
			}
			return n, nil
		},
	},
	{
		key: keyModelRPS,
		get: func(s *domain.Settings) string { return strconv.FormatFloat(s.Model.RequestsPerSecond, 'g', -1, 64) },
		set: func(s *domain.Settings, v string) error {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return fmt.Errorf("%w: %s expects a number, got %q", domain.ErrInvalidInput, keyModelRPS, v)
			}
			s.Model.RequestsPerSecond = f
			return nil
		},
		typed: func(v string) (any, error) {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s expects a number, got %q", domain.ErrInvalidInput, keyModelRPS, v)
			}
			return f, nil
		},
	},
	intSetting(keyModelMaxEdge, func(s *domain.Settings) *int { return &s.Model.MaxEdge }),
	intSetting(keyQueryK, func(s *domain.Settings) *int { return &s.Query.K }),
	stringSetting(keyQueryDir, func(s *domain.Settings) *string { return &s.Query.Dir }),
	{
		key: keyQueryViewer,
		get: func(s *domain.Settings) string { return string(s.Query.Viewer) },
		set: func(s *domain.Settings, v string) error {
			mode := domain.ViewerMode(strings.ToLower(strings.TrimSpace(v)))
			if !mode.IsValid() {
				return fmt.Errorf("%w: unknown viewer %q", domain.ErrInvalidInput, v)
			}
			s.Query.Viewer = mode
			return nil
		},
		typed: func(v string) (any, error) { return strings.ToLower(strings.TrimSpace(v)), nil },
	},
	stringSetting(keyDataDir, func(s *domain.Settings) *string { return &s.DataDir }),
}

func lookupSetting(key string) (setting, bool) {
	for _, st := range settingsTable {
		if st.key == key {
			return st, true
		}
	}
	return setting{}, false
}

// EnvName returns the environment variable overriding key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// SettingsService manages application settings.
// Effective settings are layered: defaults, config file, environment.
type SettingsService struct {
	configStore driven.ConfigStore
	dotenv      map[string]string
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		dotenv:      map[string]string{},
		lookupEnv:   os.LookupEnv,
	}
}

// LoadDotEnv reads KEY=VALUE pairs from the given .env files.
// Missing files are skipped. Process environment takes precedence.
func (s *SettingsService) LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		values, err := godotenv.Read(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		for k, v := range values {
			if _, ok := s.dotenv[k]; !ok {
				s.dotenv[k] = v
			}
		}
	}
	return nil
}

// Get retrieves the effective settings.
// Invalid values in the config file or environment are reported, not ignored.
func (s *SettingsService) Get() (*domain.Settings, error) {
	settings := domain.DefaultSettings()

	var errs []error
	for _, st := range settingsTable {
		if raw, ok := s.configStore.Get(st.key); ok {
			if err := st.set(&settings, fmt.Sprint(raw)); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", s.configStore.Path(), err))
			}
		}
		if raw, ok := s.env(EnvName(st.key)); ok {
			if err := st.set(&settings, raw); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", EnvName(st.key), err))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return &settings, nil
}

// Set validates value and persists it under key.
func (s *SettingsService) Set(key, value string) error {
	st, ok := lookupSetting(key)
	if !ok {
		return fmt.Errorf("%w: "+errUnknownSetting, domain.ErrInvalidInput, key)
	}

	candidate := domain.DefaultSettings()
	if err := st.set(&candidate, value); err != nil {
		return err
	}
	if err := candidate.Validate(); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}

	typed, err := st.typed(value)
	if err != nil {
		return err
	}
	if err := s.configStore.Set(key, typed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Apply sets key in settings without persisting it.
func (s *SettingsService) Apply(settings *domain.Settings, key, value string) error {
	st, ok := lookupSetting(key)
	if !ok {
		return fmt.Errorf("%w: "+errUnknownSetting, domain.ErrInvalidInput, key)
	}
	return st.set(settings, value)
}

// Value returns the display form of key in settings. Secrets are masked.
func (s *SettingsService) Value(settings *domain.Settings, key string) (string, error) {
	st, ok := lookupSetting(key)
	if !ok {
		return "", fmt.Errorf("%w: "+errUnknownSetting, domain.ErrInvalidInput, key)
	}
	v := st.get(settings)
	if st.secret && v != "" {
		return secretPlaceholder, nil
	}
	return v, nil
}

// Keys lists the recognised configuration keys in display order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingsTable))
	for _, st := range settingsTable {
		keys = append(keys, st.key)
	}
	return keys
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.Settings {
	return domain.DefaultSettings()
}

// Path returns the configuration file path.
func (s *SettingsService) Path() string {
	return s.configStore.Path()
}

func (s *SettingsService) env(name string) (string, bool) {
	if v, ok := s.lookupEnv(name); ok {
		return v, true
	}
	v, ok := s.dotenv[name]
	return v, ok
}
