package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/preslavrachev/restoffice/core"
	"github.com/preslavrachev/restoffice/mockapi"
	"github.com/preslavrachev/restoffice/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

// newMockAdapter wires an adapter to a fresh in-memory backend
func newMockAdapter(t *testing.T, opts ...Option) (*Adapter, *mockapi.Server) {
	t.Helper()
	backend := mockapi.New()
	ts := httptest.NewServer(backend.Handler())
	t.Cleanup(ts.Close)

	opts = append([]Option{WithHTTPClient(ts.Client())}, opts...)
	return New(ts.URL+mockapi.DefaultBasePath, opts...), backend
}

// newStubAdapter wires an adapter to a single handler
func newStubAdapter(t *testing.T, handler http.HandlerFunc, opts ...Option) *Adapter {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	opts = append([]Option{WithHTTPClient(ts.Client())}, opts...)
	return New(ts.URL, opts...)
}

func seedProducts(backend *mockapi.Server) {
	backend.Seed("products",
		core.Record{"id": 1, "name": "Banana", "category": "fruit"},
		core.Record{"id": 2, "name": "Apple", "category": "fruit"},
		core.Record{"id": 3, "name": "Carrot", "category": "veg"},
	)
}

func TestGetList(t *testing.T) {
	adapter, backend := newMockAdapter(t)
	for i := 1; i <= 42; i++ {
		backend.Seed("posts", core.Record{"id": i, "title": fmt.Sprintf("Post %d", i)})
	}

	result, err := adapter.GetList(context.Background(), "posts", core.GetListParams{
		Pagination: core.Pagination{Page: 2, PerPage: 10},
		Sort:       core.Sort{Field: "id", Order: core.SortAsc},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(42), result.Total)
	require.Len(t, result.Data, 10)
	assert.Equal(t, json.Number("11"), result.Data[0].ID())
	assert.Equal(t, "Post 20", result.Data[9]["title"])

	req := backend.LastRequest()
	require.NotNil(t, req)
	assert.Equal(t, "/api/admin/posts/list", req.Path)
	assert.Equal(t, "[10,19]", req.Query.Get("range"))
	assert.Equal(t, `["id","ASC"]`, req.Query.Get("sort"))
	assert.Equal(t, "{}", req.Query.Get("filter"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
}

func TestGetListUnsetSort(t *testing.T) {
	adapter, backend := newMockAdapter(t)
	seedProducts(backend)

	result, err := adapter.GetList(context.Background(), "products", core.GetListParams{
		Pagination: core.Pagination{Page: 1, PerPage: 25},
		Filter:     core.Filter{"category": "fruit"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Total)

	req := backend.LastRequest()
	assert.Equal(t, "[null,null]", req.Query.Get("sort"))
	assert.Equal(t, "[0,24]", req.Query.Get("range"))
	assert.Equal(t, `{"category":"fruit"}`, req.Query.Get("filter"))
}

func TestGetListMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing count", `{"items":[]}`},
		{"missing items", `{"count":3}`},
		{"items not an array", `{"items":{},"count":1}`},
		{"count not a number", `{"items":[],"count":true}`},
		{"not json", `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := newStubAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			})
			_, err := adapter.GetList(context.Background(), "posts", core.GetListParams{
				Pagination: core.Pagination{Page: 1, PerPage: 10},
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestGetListCustomResponseFields(t *testing.T) {
	adapter := newStubAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":{"rows":[{"id":"a"}],"total":"7"}}`)
	}, WithResponseFields(ResponseFields{ListItems: "result.rows", ListTotal: "result.total"}))

	result, err := adapter.GetList(context.Background(), "posts", core.GetListParams{
		Pagination: core.Pagination{Page: 1, PerPage: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.Total)
	if diff := cmp.Diff([]core.Record{{"id": "a"}}, result.Data); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestGetOneCategory(t *testing.T) {
	store := storage.NewMemoryStore()
	source := NewStoreCategory(store)

	adapter, backend := newMockAdapter(t, WithCategorySource(source))
	seedProducts(backend)
	ctx := context.Background()

	t.Run("no category stored", func(t *testing.T) {
		result, err := adapter.GetOne(ctx, "products", core.GetOneParams{ID: 3})
		require.NoError(t, err)
		assert.Equal(t, "Carrot", result.Data["name"])

		req := backend.LastRequest()
		assert.Equal(t, "/api/admin/products/one", req.Path)
		assert.Equal(t, "3", req.Query.Get("id"))
		assert.Contains(t, req.Query, "category")
		assert.Equal(t, "", req.Query.Get("category"))
	})

	t.Run("stored category", func(t *testing.T) {
		require.NoError(t, source.SetCategory(ctx, "fruit"))

		result, err := adapter.GetOne(ctx, "products", core.GetOneParams{ID: 2})
		require.NoError(t, err)
		assert.Equal(t, "Apple", result.Data["name"])
		assert.Equal(t, "fruit", backend.LastRequest().Query.Get("category"))
	})

	t.Run("explicit category wins", func(t *testing.T) {
		_, err := adapter.GetOne(ctx, "products", core.GetOneParams{ID: 2, Category: "veg"})
		assert.ErrorIs(t, err, ErrHTTPStatus)
		assert.Equal(t, "veg", backend.LastRequest().Query.Get("category"))
	})

	t.Run("undecodable stored category", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, DefaultCategoryKey, "{not json"))
		requests := len(backend.Requests())

		_, err := adapter.GetOne(ctx, "products", core.GetOneParams{ID: 2})
		require.Error(t, err)
		assert.Len(t, backend.Requests(), requests)
	})
}

func TestGetOneMissingItem(t *testing.T) {
	adapter := newStubAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"item":{"id":1}}`)
	})

	_, err := adapter.GetOne(context.Background(), "products", core.GetOneParams{ID: 1})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestGetMany(t *testing.T) {
	adapter, backend := newMockAdapter(t)
	seedProducts(backend)

	result, err := adapter.GetMany(context.Background(), "products", core.GetManyParams{IDs: []any{1, 3}})
	require.NoError(t, err)

	want := []core.Record{
		{"id": json.Number("1"), "name": "Banana", "category": "fruit"},
		{"id": json.Number("3"), "name": "Carrot", "category": "veg"},
	}
	if diff := cmp.Diff(want, result.Data); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}

	req := backend.LastRequest()
	assert.Equal(t, "/api/admin/products", req.Path)
	assert.Equal(t, `{"ids":[1,3]}`, req.Query.Get("filter"))
}

func TestGetManyReference(t *testing.T) {
	adapter, backend := newMockAdapter(t)
	backend.Seed("comments",
		core.Record{"id": 1, "post_id": 7, "body": "first"},
		core.Record{"id": 2, "post_id": 8, "body": "other"},
		core.Record{"id": 3, "post_id": 7, "body": "second"},
		core.Record{"id": 4, "post_id": 7, "body": "third"},
	)

	result, err := adapter.GetManyReference(context.Background(), "comments", core.GetManyReferenceParams{
		Target:     "post_id",
		ID:         7,
		Pagination: core.Pagination{Page: 1, PerPage: 2},
		Sort:       core.Sort{Field: "id", Order: core.SortDesc},
		Filter:     core.Filter{"q": "x"},
	})
	// the mock has no "q" field, so nothing matches
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Total)
	assert.Empty(t, result.Data)

	result, err = adapter.GetManyReference(context.Background(), "comments", core.GetManyReferenceParams{
		Target:     "post_id",
		ID:         7,
		Pagination: core.Pagination{Page: 1, PerPage: 2},
		Sort:       core.Sort{Field: "id", Order: core.SortDesc},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Total)
	require.Len(t, result.Data, 2)
	assert.Equal(t, "third", result.Data[0]["body"])
	assert.Equal(t, "second", result.Data[1]["body"])

	req := backend.LastRequest()
	assert.Equal(t, "/api/admin/comments", req.Path)
	assert.Equal(t, `{"post_id":7}`, req.Query.Get("filter"))
	assert.Equal(t, "[0,1]", req.Query.Get("range"))
	assert.Equal(t, `["id","DESC"]`, req.Query.Get("sort"))
}

func TestGetManyReferenceContentRange(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		total   int64
		wantErr error
	}{
		{"standard", "comments 0-24/319", 319, nil},
		{"unknown range", "comments */12", 12, nil},
		{"missing", "", 0, ErrMissingContentRange},
		{"not a number", "comments 0-24/*", 0, ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := newStubAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.header != "" {
					w.Header().Set("Content-Range", tt.header)
				}
				fmt.Fprint(w, `[{"id":1}]`)
			})

			result, err := adapter.GetManyReference(context.Background(), "comments", core.GetManyReferenceParams{
				Target:     "post_id",
				ID:         1,
				Pagination: core.Pagination{Page: 1, PerPage: 25},
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ErrMalformedResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.total, result.Total)
			assert.Len(t, result.Data, 1)
		})
	}
}

func TestCreateSendsDataVerbatim(t *testing.T) {
	adapter, backend := newMockAdapter(t)
	seedProducts(backend)

	data := core.Record{"name": "Pear & Co", "price": json.Number("1.50")}
	result, err := adapter.Create(context.Background(), "products", core.CreateParams{Data: data})
	require.NoError(t, err)
	created, ok := core.AsRecord(result.Data)
	require.True(t, ok)
	assert.Equal(t, json.Number("4"), created.ID())

	req := backend.LastRequest()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/admin/products", req.Path)
	assert.Equal(t, `{"name":"Pear & Co","price":1.50}`, string(req.Body))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
}

func TestUpdate(t *testing.T) {
	adapter, backend := newMockAdapter(t)
	seedProducts(backend)

	result, err := adapter.Update(context.Background(), "products", core.UpdateParams{
		ID:           3,
		Data:         core.Record{"name": "Parsnip"},
		PreviousData: core.Record{"id": 3, "name": "Carrot"},
	})
	require.NoError(t, err)

	want := core.Record{"id": json.Number("3"), "name": "Parsnip"}
	if diff := cmp.Diff(want, result.Data); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}

	req := backend.LastRequest()
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/api/admin/products/3", req.Path)
	assert.Equal(t, `{"name":"Parsnip"}`, string(req.Body))
}

func TestUpdateMany(t *testing.T) {
	adapter, backend := newMockAdapter(t)
	seedProducts(backend)

	result, err := adapter.UpdateMany(context.Background(), "products", core.UpdateManyParams{
		IDs:  []any{1, 2},
		Data: core.Record{"category": "tropical"},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{json.Number("1"), json.Number("2")}, result.Data)

	req := backend.LastRequest()
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/api/admin/products", req.Path)
	assert.Equal(t, `{"id":[1,2]}`, req.Query.Get("filter"))
	assert.Equal(t, `{"category":"tropical"}`, string(req.Body))

	for _, rec := range backend.Records("products")[:2] {
		assert.Equal(t, "tropical", rec["category"])
	}
}

func TestWritesAcceptAnyJSONBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		want any
	}{
		{"count", `1`, json.Number("1")},
		{"string", `"deleted"`, "deleted"},
		{"array", `[{"id":1}]`, []any{map[string]any{"id": json.Number("1")}}},
		{"bool", `true`, true},
		{"object", `{"updated":2}`, core.Record{"updated": json.Number("2")}},
		{"null", `null`, nil},
		{"empty", ``, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := newStubAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			})
			ctx := context.Background()

			created, err := adapter.Create(ctx, "products", core.CreateParams{Data: core.Record{}})
			require.NoError(t, err)
			assert.Equal(t, tt.want, created.Data)

			updated, err := adapter.Update(ctx, "products", core.UpdateParams{ID: 1, Data: core.Record{}})
			require.NoError(t, err)
			assert.Equal(t, tt.want, updated.Data)

			many, err := adapter.UpdateMany(ctx, "products", core.UpdateManyParams{IDs: []any{1}})
			require.NoError(t, err)
			assert.Equal(t, tt.want, many.Data)

			deleted, err := adapter.Delete(ctx, "products", core.DeleteParams{PreviousData: core.Record{"id": 1}})
			require.NoError(t, err)
			assert.Equal(t, tt.want, deleted.Data)
		})
	}
}

func TestWritesRejectInvalidJSON(t *testing.T) {
	adapter := newStubAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":`)
	})

	_, err := adapter.Delete(context.Background(), "products", core.DeleteParams{PreviousData: core.Record{"id": 1}})
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = adapter.Create(context.Background(), "products", core.CreateParams{Data: core.Record{}})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestDeleteForwardsPreviousData(t *testing.T) {
	adapter, backend := newMockAdapter(t)
	seedProducts(backend)

	result, err := adapter.Delete(context.Background(), "products", core.DeleteParams{
		ID:           99,
		PreviousData: core.Record{"id": 1, "category": "fruit", "name": "Banana"},
	})
	require.NoError(t, err)
	deleted, ok := core.AsRecord(result.Data)
	require.True(t, ok)
	assert.Equal(t, "Banana", deleted["name"])
	assert.Len(t, backend.Records("products"), 2)

	req := backend.LastRequest()
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/api/admin/products/delete", req.Path)
	assert.Equal(t, "1", req.Query.Get("id"))
	assert.Equal(t, "fruit", req.Query.Get("category"))
	assert.Len(t, req.Query, 2)
}

func TestDeleteWithoutPreviousData(t *testing.T) {
	adapter, backend := newMockAdapter(t)
	seedProducts(backend)

	_, err := adapter.Delete(context.Background(), "products", core.DeleteParams{ID: 1})

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Len(t, backend.Records("products"), 3)

	req := backend.LastRequest()
	assert.Equal(t, "/api/admin/products/delete", req.Path)
	assert.Contains(t, req.Query, "id")
	assert.Contains(t, req.Query, "category")
	assert.Equal(t, "", req.Query.Get("id"))
	assert.Equal(t, "", req.Query.Get("category"))
}

func TestDeleteManyReturnsEmpty(t *testing.T) {
	adapter, backend := newMockAdapter(t)
	seedProducts(backend)

	result, err := adapter.DeleteMany(context.Background(), "products", core.DeleteManyParams{IDs: []any{1, 2}})
	require.NoError(t, err)
	assert.NotNil(t, result.Data)
	assert.Empty(t, result.Data)
	assert.Len(t, backend.Records("products"), 1)

	req := backend.LastRequest()
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/api/admin/products/delete-many", req.Path)
	assert.Equal(t, "[1,2]", req.Query.Get("ids"))
}

func TestDeleteMethodDelete(t *testing.T) {
	adapter, backend := newMockAdapter(t, WithDeleteMethod("delete"))
	seedProducts(backend)
	ctx := context.Background()

	result, err := adapter.Delete(ctx, "products", core.DeleteParams{
		PreviousData: core.Record{"id": 1, "category": "fruit"},
	})
	require.NoError(t, err)
	deleted, ok := core.AsRecord(result.Data)
	require.True(t, ok)
	assert.Equal(t, "Banana", deleted["name"])

	req := backend.LastRequest()
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, "/api/admin/products/1", req.Path)
	assert.Equal(t, "fruit", req.Query.Get("category"))

	_, err = adapter.Delete(ctx, "products", core.DeleteParams{ID: 3})
	require.NoError(t, err)
	req = backend.LastRequest()
	assert.Equal(t, "/api/admin/products/3", req.Path)
	assert.Empty(t, req.Query)

	many, err := adapter.DeleteMany(ctx, "products", core.DeleteManyParams{IDs: []any{2}})
	require.NoError(t, err)
	assert.Empty(t, many.Data)
	assert.Empty(t, backend.Records("products"))

	req = backend.LastRequest()
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, "/api/admin/products", req.Path)
	assert.Equal(t, `{"id":[2]}`, req.Query.Get("filter"))
}

func TestHTTPErrorPropagates(t *testing.T) {
	adapter := newStubAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database on fire", http.StatusInternalServerError)
	})

	_, err := adapter.Create(context.Background(), "products", core.CreateParams{Data: core.Record{}})

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.ErrorIs(t, err, ErrHTTPStatus)
	assert.NotErrorIs(t, err, ErrTransport)
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	assert.Equal(t, http.MethodPost, httpErr.Method)
	assert.Contains(t, string(httpErr.Body), "database on fire")
	assert.Contains(t, err.Error(), "create products")
}

func TestTransportErrors(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	client := ts.Client()
	baseURL := ts.URL
	ts.Close()

	adapter := New(baseURL, WithHTTPClient(client))
	_, err := adapter.GetMany(context.Background(), "products", core.GetManyParams{IDs: []any{1}})
	assert.ErrorIs(t, err, ErrTransport)
	assert.NotErrorIs(t, err, ErrHTTPStatus)

	live, _ := newMockAdapter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = live.GetOne(ctx, "products", core.GetOneParams{ID: 1})
	assert.ErrorIs(t, err, ErrTransport)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDefaultClientSetsRequestID(t *testing.T) {
	backend := mockapi.New()
	seedProducts(backend)
	ts := httptest.NewServer(backend.Handler())
	t.Cleanup(ts.Close)

	adapter := New(ts.URL + mockapi.DefaultBasePath)
	_, err := adapter.GetOne(context.Background(), "products", core.GetOneParams{ID: 1})
	require.NoError(t, err)

	assert.NotEmpty(t, backend.LastRequest().Header.Get("X-Request-ID"))
}

func TestResourceIsPathEscaped(t *testing.T) {
	adapter, backend := newMockAdapter(t)

	_, err := adapter.Create(context.Background(), "order items", core.CreateParams{Data: core.Record{"qty": 1}})
	require.NoError(t, err)
	assert.Equal(t, "/api/admin/order items", backend.LastRequest().Path)
	assert.Len(t, backend.Records("order items"), 1)
}

func TestRegistryProvider(t *testing.T) {
	adapter, backend := newMockAdapter(t)
	seedProducts(backend)

	bo := core.New(adapter)
	bo.RegisterResource("Product").WithDefaultSort("name", core.SortAsc)

	result, err := bo.Provider().GetList(context.Background(), "Product", core.GetListParams{
		Pagination: core.NewPagination(),
	})
	require.NoError(t, err)
	require.Len(t, result.Data, 3)
	assert.Equal(t, "Apple", result.Data[0]["name"])

	req := backend.LastRequest()
	assert.Equal(t, "/api/admin/products/list", req.Path)
	assert.Equal(t, `["name","ASC"]`, req.Query.Get("sort"))
}
