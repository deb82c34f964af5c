package driving

import "github.com/custodia-labs/imgsearch/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves the effective settings: defaults, config file, environment.
	Get() (*domain.Settings, error)

	// Set persists a single key to the config file.
	Set(key, value string) error

	// Apply sets key in settings without persisting it.
	Apply(settings *domain.Settings, key, value string) error

	// Value returns the display form of key in settings. Secrets are masked.
	Value(settings *domain.Settings, key string) (string, error)

	// Keys lists the recognised configuration keys in display order.
	Keys() []string

	// GetDefaults returns default settings.
	GetDefaults() domain.Settings

	// Path returns the configuration file path.
	Path() string
}
