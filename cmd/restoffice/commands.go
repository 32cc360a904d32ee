package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/preslavrachev/restoffice/core"
	"github.com/preslavrachev/restoffice/middleware/auth"
	"github.com/preslavrachev/restoffice/mockapi"
)

// listFlags are shared by list and refs
type listFlags struct {
	page    int
	perPage int
	sort    string
	order   string
	filter  string
}

func (f *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.page, "page", 1, "Page number, starting at 1")
	cmd.Flags().IntVar(&f.perPage, "per-page", core.NewPagination().PerPage, "Records per page")
	cmd.Flags().StringVar(&f.sort, "sort", "", "Field to sort by")
	cmd.Flags().StringVar(&f.order, "order", "ASC", "Sort order: ASC or DESC")
	cmd.Flags().StringVar(&f.filter, "filter", "", `Filter as a JSON object, e.g. {"q":"shoe"}`)
}

func (f *listFlags) parse() (core.Pagination, core.Sort, core.Filter, error) {
	pagination := core.Pagination{Page: f.page, PerPage: f.perPage}

	var sort core.Sort
	if f.sort != "" {
		order, ok := core.ParseSortOrder(f.order)
		if !ok {
			return pagination, sort, nil, fmt.Errorf("--order must be ASC or DESC, got %q", f.order)
		}
		sort = core.Sort{Field: f.sort, Order: order}
	}

	filter, err := parseFilter(f.filter)
	return pagination, sort, filter, err
}

func newListCmd(a *app) *cobra.Command {
	var flags listFlags
	cmd := &cobra.Command{
		Use:   "list <resource>",
		Short: "List one page of records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pagination, sort, filter, err := flags.parse()
			if err != nil {
				return err
			}
			return a.run(cmd, args[0], func(ctx context.Context, p core.DataProvider) (any, error) {
				return p.GetList(ctx, args[0], core.GetListParams{
					Pagination: pagination,
					Sort:       sort,
					Filter:     filter,
				})
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "get <resource> <id>",
		Short: "Fetch a single record",
		Long: `Fetch a single record.

Without --category the current category (see "restoffice category") scopes the lookup.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, args[0], func(ctx context.Context, p core.DataProvider) (any, error) {
				return p.GetOne(ctx, args[0], core.GetOneParams{ID: parseID(args[1]), Category: category})
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Category scoping the lookup")
	return cmd
}

func newGetManyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get-many <resource> <id>...",
		Short: "Fetch several records by id",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, args[0], func(ctx context.Context, p core.DataProvider) (any, error) {
				return p.GetMany(ctx, args[0], core.GetManyParams{IDs: parseIDs(args[1:])})
			})
		},
	}
}

func newRefsCmd(a *app) *cobra.Command {
	var (
		flags  listFlags
		target string
		id     string
	)
	cmd := &cobra.Command{
		Use:   "refs <resource>",
		Short: "List records referencing another record",
		Example: `  restoffice refs comments --target post_id --id 7
  restoffice refs comments --target post_id --id 7 --sort created_at --order DESC`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pagination, sort, filter, err := flags.parse()
			if err != nil {
				return err
			}
			return a.run(cmd, args[0], func(ctx context.Context, p core.DataProvider) (any, error) {
				return p.GetManyReference(ctx, args[0], core.GetManyReferenceParams{
					Target:     target,
					ID:         parseID(id),
					Pagination: pagination,
					Sort:       sort,
					Filter:     filter,
				})
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&target, "target", "", "Field holding the reference")
	cmd.Flags().StringVar(&id, "id", "", "Id of the referenced record")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newCreateCmd(a *app) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "create <resource>",
		Short: "Create a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := parseRecord("data", data)
			if err != nil {
				return err
			}
			return a.run(cmd, args[0], func(ctx context.Context, p core.DataProvider) (any, error) {
				return p.Create(ctx, args[0], core.CreateParams{Data: rec})
			})
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "Record as a JSON object")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func newUpdateCmd(a *app) *cobra.Command {
	var data, previous string
	cmd := &cobra.Command{
		Use:   "update <resource> <id>",
		Short: "Replace a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := parseRecord("data", data)
			if err != nil {
				return err
			}
			prev, err := parseRecord("previous", previous)
			if err != nil {
				return err
			}
			return a.run(cmd, args[0], func(ctx context.Context, p core.DataProvider) (any, error) {
				return p.Update(ctx, args[0], core.UpdateParams{ID: parseID(args[1]), Data: rec, PreviousData: prev})
			})
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "Record as a JSON object")
	cmd.Flags().StringVar(&previous, "previous", "", "Previous record as a JSON object")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func newUpdateManyCmd(a *app) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "update-many <resource> <id>...",
		Short: "Apply the same changes to several records",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := parseRecord("data", data)
			if err != nil {
				return err
			}
			return a.run(cmd, args[0], func(ctx context.Context, p core.DataProvider) (any, error) {
				return p.UpdateMany(ctx, args[0], core.UpdateManyParams{IDs: parseIDs(args[1:]), Data: rec})
			})
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "Changes as a JSON object")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "delete <resource> <id>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := parseID(args[1])
			previous := core.Record{"id": id}
			if category != "" {
				previous["category"] = category
			}
			return a.run(cmd, args[0], func(ctx context.Context, p core.DataProvider) (any, error) {
				return p.Delete(ctx, args[0], core.DeleteParams{ID: id, PreviousData: previous})
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Category of the record")
	return cmd
}

func newDeleteManyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-many <resource> <id>...",
		Short: "Delete several records",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, args[0], func(ctx context.Context, p core.DataProvider) (any, error) {
				return p.DeleteMany(ctx, args[0], core.DeleteManyParams{IDs: parseIDs(args[1:])})
			})
		},
	}
}

func newCategoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Show or change the current category",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the current category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(); err != nil {
				return err
			}
			category, err := a.categories().Category(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(category)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget the current category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(); err != nil {
				return err
			}
			if err := a.categories().ClearCategory(cmd.Context()); err != nil {
				return err
			}
			return a.print("")
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <category>",
		Short: "Change the current category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(); err != nil {
				return err
			}
			if err := a.categories().SetCategory(cmd.Context(), args[0]); err != nil {
				return err
			}
			return a.print(args[0])
		},
	})

	return cmd
}

func newResourcesCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "resources",
		Short: "List the configured resources",
		Long: `List the resources registered in the config file, in registration order.

Hidden resources are left out unless --all is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			metas := []core.ResourceMeta{}
			for _, resource := range a.backOffice(nil).GetResources() {
				if resource.Hidden && !all {
					continue
				}
				metas = append(metas, resource.GetMeta())
			}
			return a.print(metas)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include hidden resources")
	return cmd
}

func newMockCmd(a *app) *cobra.Command {
	var (
		addr     string
		basePath string
		seedFile string
	)
	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Serve an in-memory admin API",
		Long: `Serve an in-memory fake of the admin API for local development.

When RESTOFFICE_BASIC_AUTH_USER is set, requests must carry those Basic credentials.
The seed file is a JSON object mapping resource names to arrays of records.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []mockapi.Option{
				mockapi.WithBasePath(basePath),
				mockapi.WithLogger(a.log.Named("mock")),
			}
			if a.cfg.Auth.HasBasicAuth() {
				user := auth.NewBasicAuthUser(a.cfg.Auth.BasicAuthUser, a.cfg.Auth.BasicAuthPass, []string{"admin"})
				opts = append(opts, mockapi.WithBasicAuth(map[string]auth.BasicAuthUser{user.Username: user}))
			}
			backend := mockapi.New(opts...)

			if seedFile != "" {
				if err := seed(backend, seedFile); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a.log, addr, backend.Handler())
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", ":3000", "Address to listen on")
	cmd.Flags().StringVar(&basePath, "base-path", mockapi.DefaultBasePath, "Path the API is mounted under")
	cmd.Flags().StringVar(&seedFile, "seed", "", "JSON file with initial records")
	return cmd
}

func seed(backend *mockapi.Server, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}
	var collections map[string][]core.Record
	if err := decodeJSON(string(raw), &collections); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}
	for resource, records := range collections {
		backend.Seed(resource, records...)
	}
	return nil
}

// serve runs handler on addr until ctx is done, then shuts down gracefully
func serve(ctx context.Context, log *zap.Logger, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("mock admin API listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
