// Package rest implements core.DataProvider against the admin REST API.
//
// Every operation builds one URL, issues one HTTP request and reshapes the JSON
// response into the result the admin layer expects. There are no retries and no
// caching; failures propagate to the caller unchanged.
package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/preslavrachev/restoffice/core"
	"github.com/preslavrachev/restoffice/middleware"
)

const (
	// DefaultBaseURL is the admin API the backend serves by default
	DefaultBaseURL = "http://localhost:3000/api/admin"

	// DefaultTimeout bounds a single request when no client is supplied
	DefaultTimeout = 30 * time.Second
)

var _ core.DataProvider = (*Adapter)(nil)

// Adapter implements the core.DataProvider interface over HTTP
type Adapter struct {
	baseURL      string
	client       *http.Client
	categories   CategorySource
	logger       *RequestLogger
	fields       ResponseFields
	deleteMethod string
}

// Option configures an Adapter
type Option func(*Adapter)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(a *Adapter) {
		a.client = client
	}
}

// WithCategorySource sets where GetOne reads the ambient category from
func WithCategorySource(source CategorySource) Option {
	return func(a *Adapter) {
		a.categories = source
	}
}

// WithLogger sets the request logger
func WithLogger(logger *RequestLogger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithResponseFields overrides where results are read from in response bodies
func WithResponseFields(fields ResponseFields) Option {
	return func(a *Adapter) {
		a.fields = fields.withDefaults()
	}
}

// WithDeleteMethod selects the verb for Delete and DeleteMany.
// http.MethodGet targets the /delete and /delete-many endpoints;
// http.MethodDelete uses DELETE /{resource}/{id} and DELETE /{resource}?filter=.
func WithDeleteMethod(method string) Option {
	return func(a *Adapter) {
		if strings.EqualFold(method, http.MethodDelete) {
			a.deleteMethod = http.MethodDelete
		} else {
			a.deleteMethod = http.MethodGet
		}
	}
}

// New creates a new REST adapter for the API rooted at baseURL
func New(baseURL string, opts ...Option) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	a := &Adapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: middleware.Chain(nil, middleware.RequestID()),
		},
		categories:   StaticCategory(""),
		logger:       NewRequestLogger(nil, false),
		fields:       DefaultResponseFields,
		deleteMethod: http.MethodGet,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// SetDebugEnabled enables or disables request debug logging
func (a *Adapter) SetDebugEnabled(enabled bool) {
	a.logger.SetEnabled(enabled)
}

// endpoint joins the base URL, the resource and optional path segments, then appends the query
func (a *Adapter) endpoint(resource string, query url.Values, segments ...string) string {
	var b strings.Builder
	b.WriteString(a.baseURL)
	b.WriteByte('/')
	b.WriteString(url.PathEscape(resource))
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	if len(query) > 0 {
		b.WriteByte('?')
		b.WriteString(query.Encode())
	}
	return b.String()
}

// GetList retrieves one page of records: GET /{resource}/list?sort&range&filter
func (a *Adapter) GetList(ctx context.Context, resource string, params core.GetListParams) (*core.GetListResult, error) {
	query, err := newEnvelope(params.Pagination, params.Sort, params.Filter).Values()
	if err != nil {
		return nil, err
	}

	resp, err := a.do(ctx, http.MethodGet, a.endpoint(resource, query, "list"), nil)
	if err != nil {
		return nil, fmt.Errorf("getList %s: %w", resource, err)
	}
	a.logger.LogBody("getList", resource, resp.Body)

	items, err := extractRecords(resp.Body, a.fields.ListItems)
	if err != nil {
		return nil, fmt.Errorf("getList %s: %w", resource, err)
	}
	// The total is the backend's count of all matches, not the page length
	total, err := extractTotal(resp.Body, a.fields.ListTotal)
	if err != nil {
		return nil, fmt.Errorf("getList %s: %w", resource, err)
	}

	return &core.GetListResult{Data: items, Total: total}, nil
}

// GetOne retrieves a single record: GET /{resource}/one?id&category
func (a *Adapter) GetOne(ctx context.Context, resource string, params core.GetOneParams) (*core.GetOneResult, error) {
	category := params.Category
	if category == "" {
		var err error
		category, err = a.categories.Category(ctx)
		if err != nil {
			return nil, fmt.Errorf("getOne %s: %w", resource, err)
		}
	}

	query := url.Values{}
	query.Set("id", core.FormatID(params.ID))
	query.Set("category", category)

	resp, err := a.do(ctx, http.MethodGet, a.endpoint(resource, query, "one"), nil)
	if err != nil {
		return nil, fmt.Errorf("getOne %s: %w", resource, err)
	}

	record, err := extractRecord(resp.Body, a.fields.OneItem)
	if err != nil {
		return nil, fmt.Errorf("getOne %s: %w", resource, err)
	}

	return &core.GetOneResult{Data: record}, nil
}

// GetMany retrieves records by id: GET /{resource}?filter={"ids":[...]}
func (a *Adapter) GetMany(ctx context.Context, resource string, params core.GetManyParams) (*core.GetManyResult, error) {
	query, err := filterValues(core.Filter{"ids": params.IDs})
	if err != nil {
		return nil, err
	}

	resp, err := a.do(ctx, http.MethodGet, a.endpoint(resource, query), nil)
	if err != nil {
		return nil, fmt.Errorf("getMany %s: %w", resource, err)
	}

	records, err := decodeRecords(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("getMany %s: %w", resource, err)
	}

	return &core.GetManyResult{Data: records}, nil
}

// GetManyReference lists records referencing a parent:
// GET /{resource}?sort&range&filter with filter[target] = id.
// The total is read from the Content-Range response header.
func (a *Adapter) GetManyReference(ctx context.Context, resource string, params core.GetManyReferenceParams) (*core.GetManyReferenceResult, error) {
	filter := params.Filter.With(params.Target, params.ID)
	query, err := newEnvelope(params.Pagination, params.Sort, filter).Values()
	if err != nil {
		return nil, err
	}

	resp, err := a.do(ctx, http.MethodGet, a.endpoint(resource, query), nil)
	if err != nil {
		return nil, fmt.Errorf("getManyReference %s: %w", resource, err)
	}

	records, err := decodeRecords(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("getManyReference %s: %w", resource, err)
	}

	total, err := parseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return nil, fmt.Errorf("getManyReference %s: %w", resource, err)
	}

	return &core.GetManyReferenceResult{Data: records, Total: total}, nil
}

// Create posts a new record: POST /{resource}
func (a *Adapter) Create(ctx context.Context, resource string, params core.CreateParams) (*core.CreateResult, error) {
	resp, err := a.do(ctx, http.MethodPost, a.endpoint(resource, nil), params.Data)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", resource, err)
	}

	data, err := decodeValue(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", resource, err)
	}

	return &core.CreateResult{Data: data}, nil
}

// Update replaces a record: PUT /{resource}/{id}
func (a *Adapter) Update(ctx context.Context, resource string, params core.UpdateParams) (*core.UpdateResult, error) {
	rawURL := a.endpoint(resource, nil, core.FormatID(params.ID))
	resp, err := a.do(ctx, http.MethodPut, rawURL, params.Data)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", resource, err)
	}

	data, err := decodeValue(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", resource, err)
	}

	return &core.UpdateResult{Data: data}, nil
}

// UpdateMany applies one payload to several records in a single request:
// PUT /{resource}?filter={"id":[...]}
func (a *Adapter) UpdateMany(ctx context.Context, resource string, params core.UpdateManyParams) (*core.UpdateManyResult, error) {
	query, err := filterValues(core.Filter{"id": params.IDs})
	if err != nil {
		return nil, err
	}

	resp, err := a.do(ctx, http.MethodPut, a.endpoint(resource, query), params.Data)
	if err != nil {
		return nil, fmt.Errorf("updateMany %s: %w", resource, err)
	}

	data, err := decodeValue(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("updateMany %s: %w", resource, err)
	}

	return &core.UpdateManyResult{Data: data}, nil
}

// Delete removes the record described by params.PreviousData.
// With the default GET verb: GET /{resource}/delete?id&category.
func (a *Adapter) Delete(ctx context.Context, resource string, params core.DeleteParams) (*core.DeleteResult, error) {
	id := core.FormatID(params.PreviousData.ID())
	category := core.FormatID(params.PreviousData["category"])

	var rawURL string
	if a.deleteMethod == http.MethodDelete {
		if id == "" {
			id = core.FormatID(params.ID)
		}
		var query url.Values
		if category != "" {
			query = url.Values{"category": {category}}
		}
		rawURL = a.endpoint(resource, query, id)
	} else {
		query := url.Values{}
		query.Set("id", id)
		query.Set("category", category)
		rawURL = a.endpoint(resource, query, "delete")
	}

	resp, err := a.do(ctx, a.deleteMethod, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("delete %s: %w", resource, err)
	}

	data, err := decodeValue(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("delete %s: %w", resource, err)
	}

	return &core.DeleteResult{Data: data}, nil
}

// DeleteMany removes several records in one request. The response body is
// discarded and the result is always empty.
// With the default GET verb: GET /{resource}/delete-many?ids=[...].
func (a *Adapter) DeleteMany(ctx context.Context, resource string, params core.DeleteManyParams) (*core.DeleteManyResult, error) {
	var rawURL string
	if a.deleteMethod == http.MethodDelete {
		query, err := filterValues(core.Filter{"id": params.IDs})
		if err != nil {
			return nil, err
		}
		rawURL = a.endpoint(resource, query)
	} else {
		ids, err := marshalJSON(params.IDs)
		if err != nil {
			return nil, fmt.Errorf("failed to encode ids: %w", err)
		}
		rawURL = a.endpoint(resource, url.Values{"ids": {ids}}, "delete-many")
	}

	if _, err := a.do(ctx, a.deleteMethod, rawURL, nil); err != nil {
		return nil, fmt.Errorf("deleteMany %s: %w", resource, err)
	}

	return &core.DeleteManyResult{Data: []any{}}, nil
}
