// Command restoffice drives the admin REST API from the command line and can
// serve an in-memory fake of it for local development.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/preslavrachev/restoffice/adapters/rest"
	"github.com/preslavrachev/restoffice/config"
	"github.com/preslavrachev/restoffice/core"
	"github.com/preslavrachev/restoffice/middleware"
	"github.com/preslavrachev/restoffice/middleware/auth"
	"github.com/preslavrachev/restoffice/storage"
)

func main() {
	a := &app{out: os.Stdout}
	err := a.command().Execute()
	if cerr := a.close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		os.Exit(1)
	}
}

// app carries the state shared by every subcommand
type app struct {
	configPath string
	apiURL     string
	debug      bool

	out   io.Writer
	cfg   *config.Config
	log   *zap.Logger
	store storage.Store
	rest  *rest.Adapter
}

// command builds the root command; close must be called once it has executed
func (a *app) command() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "restoffice",
		Short: "Admin REST API client",
		Long: `restoffice calls the admin REST API the same way the admin UI does.

Every command prints the operation result as indented JSON.

Environment Variables:
  RESTOFFICE_API_URL          Backend base URL (default: http://localhost:3000/api/admin)
  RESTOFFICE_TIMEOUT          Request timeout (default: 30s)
  RESTOFFICE_STORAGE_PATH     SQLite file holding the current category (default: restoffice.db)
  RESTOFFICE_DELETE_METHOD    GET or DELETE (default: GET)
  DEBUG                       Log every request`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	rootCmd.SetOut(a.out)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Config file (.toml, .yaml)")
	flags.StringVar(&a.apiURL, "api-url", "", "Backend base URL, overrides the config")
	flags.BoolVar(&a.debug, "debug", false, "Log every request")

	rootCmd.AddCommand(
		newListCmd(a),
		newGetCmd(a),
		newGetManyCmd(a),
		newRefsCmd(a),
		newCreateCmd(a),
		newUpdateCmd(a),
		newUpdateManyCmd(a),
		newDeleteCmd(a),
		newDeleteManyCmd(a),
		newCategoryCmd(a),
		newResourcesCmd(a),
		newMockCmd(a),
	)

	return rootCmd
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.apiURL != "" {
		cfg.API.URL = a.apiURL
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if a.debug {
		cfg.DebugEnabled = true
	}
	a.cfg = cfg

	if cfg.DebugEnabled {
		if a.log, err = zap.NewDevelopment(); err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
	} else {
		a.log = zap.NewNop()
	}
	return nil
}

// connect opens the category store and builds the REST adapter
func (a *app) connect() error {
	if a.rest != nil {
		return nil
	}

	store, err := storage.OpenSQLite(a.cfg.Storage.Path)
	if err != nil {
		return err
	}
	a.store = store

	mws := []middleware.Middleware{middleware.RequestID()}
	switch {
	case a.cfg.Auth.HasBasicAuth():
		mws = append(mws, auth.BasicAuth(a.cfg.Auth.BasicAuthUser, a.cfg.Auth.BasicAuthPass))
	case a.cfg.Auth.BearerToken != "":
		mws = append(mws, auth.BearerToken(a.cfg.Auth.BearerToken))
	}

	a.rest = rest.New(a.cfg.API.URL,
		rest.WithHTTPClient(&http.Client{
			Timeout:   a.cfg.API.Timeout.Duration,
			Transport: middleware.Chain(nil, mws...),
		}),
		rest.WithCategorySource(a.categories()),
		rest.WithLogger(rest.NewRequestLogger(a.log, a.cfg.DebugEnabled)),
		rest.WithDeleteMethod(a.cfg.API.DeleteMethod),
	)
	return nil
}

func (a *app) categories() *rest.StoreCategory {
	return &rest.StoreCategory{Store: a.store, Key: a.cfg.Storage.CategoryKey}
}

// backOffice registers the configured resources in front of provider
func (a *app) backOffice(provider core.DataProvider) *core.BackOffice {
	bo := core.New(provider)
	for _, rc := range a.cfg.Resources {
		rb := bo.RegisterResource(rc.Name).
			ReadOnly(rc.ReadOnly).
			Hidden(rc.Hidden)
		if rc.Path != "" {
			rb.WithPath(rc.Path)
		}
		if rc.DisplayName != "" {
			rb.WithName(rc.DisplayName)
		}
		if rc.PluralName != "" {
			rb.WithPluralName(rc.PluralName)
		}
		if rc.DefaultSort.Field != "" {
			rb.WithDefaultSort(rc.DefaultSort.Field, core.SortOrder(rc.DefaultSort.Order))
		}
	}
	return bo
}

// provider returns a validating provider that knows the resource.
// Names missing from the config are registered with their defaults.
func (a *app) provider(resource string) (core.DataProvider, error) {
	if err := a.connect(); err != nil {
		return nil, err
	}
	bo := a.backOffice(a.rest)
	if _, ok := bo.GetResource(resource); !ok {
		bo.RegisterResource(resource)
	}
	return bo.Provider(), nil
}

func (a *app) close() error {
	if a.log != nil {
		_ = a.log.Sync()
	}
	if a.store != nil {
		err := a.store.Close()
		a.store, a.rest = nil, nil
		return err
	}
	return nil
}

// run executes one provider call against resource and prints its result
func (a *app) run(cmd *cobra.Command, resource string, call func(ctx context.Context, p core.DataProvider) (any, error)) error {
	p, err := a.provider(resource)
	if err != nil {
		return err
	}
	result, err := call(cmd.Context(), p)
	if err != nil {
		return err
	}
	return a.print(result)
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseID keeps integer ids numeric so they encode as JSON numbers
func parseID(s string) any {
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return json.Number(s)
	}
	return s
}

func parseIDs(args []string) []any {
	ids := make([]any, len(args))
	for i, arg := range args {
		ids[i] = parseID(arg)
	}
	return ids
}

// parseRecord decodes a JSON object flag value; empty input is a nil record
func parseRecord(flag, raw string) (core.Record, error) {
	if raw == "" {
		return nil, nil
	}
	var rec core.Record
	if err := decodeJSON(raw, &rec); err != nil {
		return nil, fmt.Errorf("--%s must be a JSON object: %w", flag, err)
	}
	return rec, nil
}

func parseFilter(raw string) (core.Filter, error) {
	if raw == "" {
		return nil, nil
	}
	var filter core.Filter
	if err := decodeJSON(raw, &filter); err != nil {
		return nil, fmt.Errorf("--filter must be a JSON object: %w", err)
	}
	return filter, nil
}

func decodeJSON(raw string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	return dec.Decode(v)
}
