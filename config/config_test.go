package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"RESTOFFICE_API_URL",
	"RESTOFFICE_TIMEOUT",
	"RESTOFFICE_STORAGE_PATH",
	"RESTOFFICE_CATEGORY_KEY",
	"RESTOFFICE_DELETE_METHOD",
	"RESTOFFICE_BASIC_AUTH_USER",
	"RESTOFFICE_BASIC_AUTH_PASS",
	"RESTOFFICE_BEARER_TOKEN",
	"DEBUG",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIURL, cfg.API.URL)
	assert.Equal(t, DefaultTimeout, cfg.API.Timeout.Duration)
	assert.Equal(t, "GET", cfg.API.DeleteMethod)
	assert.Equal(t, DefaultStoragePath, cfg.Storage.Path)
	assert.Equal(t, "show", cfg.Storage.CategoryKey)
	assert.False(t, cfg.Auth.HasBasicAuth())
	assert.False(t, cfg.DebugEnabled)
}

func TestLoadConfigTOML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "restoffice.toml", `
debug = true

[api]
url = "https://shop.example.com/api/admin"
timeout = "5s"
delete_method = "delete"

[storage]
path = "/tmp/state.db"
category_key = "view"

[auth]
bearer_token = "t0ken"

[[resources]]
name = "ProductItem"
read_only = true
default_sort = { field = "name", order = "desc" }

[[resources]]
name = "orders"
hidden = true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://shop.example.com/api/admin", cfg.API.URL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout.Duration)
	assert.Equal(t, "DELETE", cfg.API.DeleteMethod)
	assert.Equal(t, "/tmp/state.db", cfg.Storage.Path)
	assert.Equal(t, "view", cfg.Storage.CategoryKey)
	assert.Equal(t, "t0ken", cfg.Auth.BearerToken)
	assert.True(t, cfg.DebugEnabled)

	require.Len(t, cfg.Resources, 2)
	assert.Equal(t, Resource{
		Name:        "ProductItem",
		ReadOnly:    true,
		DefaultSort: SortConfig{Field: "name", Order: "DESC"},
	}, cfg.Resources[0])
	assert.Equal(t, Resource{Name: "orders", Hidden: true}, cfg.Resources[1])
}

func TestLoadConfigYAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "restoffice.yaml", `
api:
  url: http://127.0.0.1:8080/admin
  timeout: 1m30s
auth:
  basic_auth_user: admin
  basic_auth_pass: secret
resources:
  - name: products
    path: shop-products
    display_name: Catalogue
    default_sort:
      field: price
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8080/admin", cfg.API.URL)
	assert.Equal(t, 90*time.Second, cfg.API.Timeout.Duration)
	assert.Equal(t, "GET", cfg.API.DeleteMethod)
	assert.Equal(t, DefaultStoragePath, cfg.Storage.Path)
	assert.True(t, cfg.Auth.HasBasicAuth())
	assert.Equal(t, "secret", cfg.Auth.BasicAuthPass)

	require.Len(t, cfg.Resources, 1)
	assert.Equal(t, "shop-products", cfg.Resources[0].Path)
	assert.Equal(t, "Catalogue", cfg.Resources[0].DisplayName)
	assert.Equal(t, SortConfig{Field: "price", Order: "ASC"}, cfg.Resources[0].DefaultSort)
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "restoffice.yml", "api:\n  url: http://file.example.com\n")

	t.Setenv("RESTOFFICE_API_URL", "http://env.example.com/api")
	t.Setenv("RESTOFFICE_TIMEOUT", "250ms")
	t.Setenv("RESTOFFICE_DELETE_METHOD", "DELETE")
	t.Setenv("RESTOFFICE_CATEGORY_KEY", "current")
	t.Setenv("RESTOFFICE_BASIC_AUTH_USER", "ops")
	t.Setenv("DEBUG", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://env.example.com/api", cfg.API.URL)
	assert.Equal(t, 250*time.Millisecond, cfg.API.Timeout.Duration)
	assert.Equal(t, "DELETE", cfg.API.DeleteMethod)
	assert.Equal(t, "current", cfg.Storage.CategoryKey)
	assert.Equal(t, "ops", cfg.Auth.BasicAuthUser)
	assert.True(t, cfg.DebugEnabled)
}

func TestInvalidBoolEnvKeepsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEBUG", "sometimes")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.False(t, cfg.DebugEnabled)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		file func(t *testing.T) string
		env  map[string]string
	}{
		{
			name: "missing file",
			file: func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.toml") },
		},
		{
			name: "unsupported extension",
			file: func(t *testing.T) string { return writeFile(t, "config.json", "{}") },
		},
		{
			name: "broken toml",
			file: func(t *testing.T) string { return writeFile(t, "config.toml", "[api\nurl=") },
		},
		{
			name: "bad duration in file",
			file: func(t *testing.T) string { return writeFile(t, "config.yaml", "api:\n  timeout: soon\n") },
		},
		{
			name: "bad timeout env",
			env:  map[string]string{"RESTOFFICE_TIMEOUT": "forever"},
		},
		{
			name: "non-positive timeout",
			env:  map[string]string{"RESTOFFICE_TIMEOUT": "0s"},
		},
		{
			name: "relative URL",
			env:  map[string]string{"RESTOFFICE_API_URL": "/api/admin"},
		},
		{
			name: "unsupported scheme",
			env:  map[string]string{"RESTOFFICE_API_URL": "ftp://example.com"},
		},
		{
			name: "resource without name",
			file: func(t *testing.T) string { return writeFile(t, "config.yaml", "resources:\n  - path: x\n") },
		},
		{
			name: "duplicate resource",
			file: func(t *testing.T) string {
				return writeFile(t, "config.yaml", "resources:\n  - name: a\n  - name: a\n")
			},
		},
		{
			name: "bad resource sort order",
			file: func(t *testing.T) string {
				return writeFile(t, "config.toml", "[[resources]]\nname = \"a\"\ndefault_sort = { field = \"id\", order = \"up\" }\n")
			},
		},
		{
			name: "unsupported delete method",
			env:  map[string]string{"RESTOFFICE_DELETE_METHOD": "POST"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != nil {
				path = tt.file(t)
			}

			cfg, err := LoadConfig(path)
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}
