package config

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIURL      = "http://localhost:3000/api/admin"
	DefaultTimeout     = 30 * time.Second
	DefaultStoragePath = "restoffice.db"
	DefaultCategoryKey = "show"
)

// Config holds all application configuration
type Config struct {
	API          APIConfig     `toml:"api" yaml:"api"`
	Storage      StorageConfig `toml:"storage" yaml:"storage"`
	Auth         *AuthConfig   `toml:"auth" yaml:"auth"`
	Resources    []Resource    `toml:"resources" yaml:"resources"`
	DebugEnabled bool          `toml:"debug" yaml:"debug"`
}

// APIConfig describes the backend the adapter talks to
type APIConfig struct {
	URL          string   `toml:"url" yaml:"url"`
	Timeout      Duration `toml:"timeout" yaml:"timeout"`
	DeleteMethod string   `toml:"delete_method" yaml:"delete_method"`
}

// StorageConfig describes where ambient values such as the current category live
type StorageConfig struct {
	Path        string `toml:"path" yaml:"path"`
	CategoryKey string `toml:"category_key" yaml:"category_key"`
}

// AuthConfig holds credentials sent to the backend.
// BasicAuthUser and BasicAuthPass take precedence over BearerToken.
type AuthConfig struct {
	BasicAuthUser string `toml:"basic_auth_user" yaml:"basic_auth_user"`
	BasicAuthPass string `toml:"basic_auth_pass" yaml:"basic_auth_pass"`
	BearerToken   string `toml:"bearer_token" yaml:"bearer_token"`
}

// Resource registers a backend collection under a name.
// Commands addressing an unlisted name fall back to a writable resource whose path is the name.
type Resource struct {
	Name        string     `toml:"name" yaml:"name"`
	Path        string     `toml:"path" yaml:"path"`
	DisplayName string     `toml:"display_name" yaml:"display_name"`
	PluralName  string     `toml:"plural_name" yaml:"plural_name"`
	ReadOnly    bool       `toml:"read_only" yaml:"read_only"`
	Hidden      bool       `toml:"hidden" yaml:"hidden"`
	DefaultSort SortConfig `toml:"default_sort" yaml:"default_sort"`
}

// SortConfig is the sort applied to list requests that do not ask for one
type SortConfig struct {
	Field string `toml:"field" yaml:"field"`
	Order string `toml:"order" yaml:"order"`
}

// HasBasicAuth reports whether Basic credentials are configured
func (a *AuthConfig) HasBasicAuth() bool {
	return a != nil && a.BasicAuthUser != ""
}

// Duration is a time.Duration written as "30s" in config files
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}

// Default returns the configuration used when nothing else is set
func Default() *Config {
	return &Config{
		API: APIConfig{
			URL:          DefaultAPIURL,
			Timeout:      Duration{DefaultTimeout},
			DeleteMethod: http.MethodGet,
		},
		Storage: StorageConfig{
			Path:        DefaultStoragePath,
			CategoryKey: DefaultCategoryKey,
		},
		Auth: &AuthConfig{},
	}
}

// LoadConfig builds the configuration from defaults, the optional file at path
// (.toml, .yaml or .yml) and environment variables, in that order.
// .env file is automatically loaded via autoload import
func LoadConfig(path string) (*Config, error) {
	config := Default()

	if path != "" {
		if err := config.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) loadFile(path string) error {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(content, c); err != nil {
			var derr *toml.DecodeError
			if errors.As(err, &derr) {
				row, col := derr.Position()
				return fmt.Errorf("failed to parse config file at line %d, column %d: %w", row, col, err)
			}
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, c); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q", ext)
	}

	if c.Auth == nil {
		c.Auth = &AuthConfig{}
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.API.URL = getEnvWithDefault("RESTOFFICE_API_URL", c.API.URL)
	c.API.DeleteMethod = getEnvWithDefault("RESTOFFICE_DELETE_METHOD", c.API.DeleteMethod)
	c.Storage.Path = getEnvWithDefault("RESTOFFICE_STORAGE_PATH", c.Storage.Path)
	c.Storage.CategoryKey = getEnvWithDefault("RESTOFFICE_CATEGORY_KEY", c.Storage.CategoryKey)

	c.Auth.BasicAuthUser = getEnvWithDefault("RESTOFFICE_BASIC_AUTH_USER", c.Auth.BasicAuthUser)
	c.Auth.BasicAuthPass = getEnvWithDefault("RESTOFFICE_BASIC_AUTH_PASS", c.Auth.BasicAuthPass)
	c.Auth.BearerToken = getEnvWithDefault("RESTOFFICE_BEARER_TOKEN", c.Auth.BearerToken)

	if value := strings.TrimSpace(os.Getenv("RESTOFFICE_TIMEOUT")); value != "" {
		if err := c.API.Timeout.UnmarshalText([]byte(value)); err != nil {
			return fmt.Errorf("RESTOFFICE_TIMEOUT: %w", err)
		}
	}

	c.DebugEnabled = getBoolEnvWithDefault("DEBUG", c.DebugEnabled)
	return nil
}

// Validate checks the configuration and normalizes the delete method
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.URL)
	if err != nil {
		return fmt.Errorf("invalid API URL %q: %w", c.API.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid API URL %q: scheme must be http or https", c.API.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid API URL %q: missing host", c.API.URL)
	}

	if c.API.Timeout.Duration <= 0 {
		return fmt.Errorf("invalid timeout %s: must be positive", c.API.Timeout.Duration)
	}

	method := strings.ToUpper(strings.TrimSpace(c.API.DeleteMethod))
	if method == "" {
		method = http.MethodGet
	}
	if method != http.MethodGet && method != http.MethodDelete {
		return fmt.Errorf("invalid delete method %q: must be GET or DELETE", c.API.DeleteMethod)
	}
	c.API.DeleteMethod = method

	if c.Storage.CategoryKey == "" {
		c.Storage.CategoryKey = DefaultCategoryKey
	}

	seen := make(map[string]bool, len(c.Resources))
	for i := range c.Resources {
		r := &c.Resources[i]
		if r.Name == "" {
			return fmt.Errorf("resource %d: missing name", i+1)
		}
		if seen[r.Name] {
			return fmt.Errorf("resource %q: registered twice", r.Name)
		}
		seen[r.Name] = true

		order := strings.ToUpper(strings.TrimSpace(r.DefaultSort.Order))
		if order == "" {
			order = "ASC"
		}
		if order != "ASC" && order != "DESC" {
			return fmt.Errorf("resource %q: invalid sort order %q: must be ASC or DESC", r.Name, r.DefaultSort.Order)
		}
		if r.DefaultSort.Field != "" {
			r.DefaultSort.Order = order
		}
	}
	return nil
}

// getEnvWithDefault gets an environment variable with a default fallback
func getEnvWithDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnvWithDefault gets a boolean environment variable with a default fallback
func getBoolEnvWithDefault(key string, defaultValue bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
