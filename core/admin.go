package core

import (
	"context"
	"fmt"
	"sync"
)

// BackOffice represents the main admin instance: a resource registry in front of a DataProvider
type BackOffice struct {
	provider      DataProvider
	mu            sync.RWMutex
	resources     map[string]*Resource
	resourceOrder []string // Track registration order for consistent display
}

// New creates a new BackOffice instance backed by the given provider
func New(provider DataProvider) *BackOffice {
	return &BackOffice{
		provider:      provider,
		resources:     make(map[string]*Resource),
		resourceOrder: make([]string, 0),
	}
}

// RegisterResource registers a resource by name. Names may be Go-style
// ("ProductItem") or already be the backend key ("products").
func (bo *BackOffice) RegisterResource(name string) *ResourceBuilder {
	if name == "" {
		panic("RegisterResource expects a non-empty name")
	}

	resource := &Resource{
		Name:        name,
		DisplayName: generateDisplayName(name),
		PluralName:  generatePluralName(name),
		Path:        generatePath(name),
	}

	bo.mu.Lock()
	if _, exists := bo.resources[name]; !exists {
		bo.resourceOrder = append(bo.resourceOrder, name)
	}
	bo.resources[name] = resource
	bo.mu.Unlock()

	return &ResourceBuilder{resource: resource}
}

// GetResource retrieves a registered resource by name
func (bo *BackOffice) GetResource(name string) (*Resource, bool) {
	bo.mu.RLock()
	defer bo.mu.RUnlock()
	resource, exists := bo.resources[name]
	return resource, exists
}

// GetResources returns all registered resources in registration order
func (bo *BackOffice) GetResources() []*Resource {
	bo.mu.RLock()
	defer bo.mu.RUnlock()
	ordered := make([]*Resource, 0, len(bo.resourceOrder))
	for _, name := range bo.resourceOrder {
		if resource, exists := bo.resources[name]; exists {
			ordered = append(ordered, resource)
		}
	}
	return ordered
}

// Provider returns a DataProvider addressed by registered resource names.
// It validates params, applies default sorting and enforces read-only resources
// before delegating to the underlying provider.
func (bo *BackOffice) Provider() DataProvider {
	return &registryProvider{bo: bo}
}

// ResourceBuilder provides fluent API for resource configuration
type ResourceBuilder struct {
	resource *Resource
}

// WithName sets a custom display name for the resource
func (rb *ResourceBuilder) WithName(name string) *ResourceBuilder {
	rb.resource.DisplayName = name
	return rb
}

// WithPluralName sets a custom plural name for the resource
func (rb *ResourceBuilder) WithPluralName(name string) *ResourceBuilder {
	rb.resource.PluralName = name
	return rb
}

// WithPath overrides the backend URL key
func (rb *ResourceBuilder) WithPath(path string) *ResourceBuilder {
	rb.resource.Path = path
	return rb
}

// Hidden sets whether the resource should be hidden from listings
func (rb *ResourceBuilder) Hidden(hidden bool) *ResourceBuilder {
	rb.resource.Hidden = hidden
	return rb
}

// ReadOnly sets whether the resource should be read-only
func (rb *ResourceBuilder) ReadOnly(readOnly bool) *ResourceBuilder {
	rb.resource.ReadOnly = readOnly
	return rb
}

// WithDefaultSort sets the default sorting for the resource
func (rb *ResourceBuilder) WithDefaultSort(field string, order SortOrder) *ResourceBuilder {
	rb.resource.DefaultSort = Sort{Field: field, Order: order}
	return rb
}

// Resource returns the configured resource
func (rb *ResourceBuilder) Resource() *Resource {
	return rb.resource
}

type registryProvider struct {
	bo *BackOffice
}

func (p *registryProvider) lookup(name string, write bool) (*Resource, error) {
	resource, ok := p.bo.GetResource(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResource, name)
	}
	if write && resource.ReadOnly {
		return nil, fmt.Errorf("%w: %q", ErrReadOnly, name)
	}
	return resource, nil
}

func (p *registryProvider) GetList(ctx context.Context, name string, params GetListParams) (*GetListResult, error) {
	resource, err := p.lookup(name, false)
	if err != nil {
		return nil, err
	}
	params.Sort = resource.applySort(params.Sort)
	if err := Validate("getList", params); err != nil {
		return nil, err
	}
	return p.bo.provider.GetList(ctx, resource.Path, params)
}

func (p *registryProvider) GetOne(ctx context.Context, name string, params GetOneParams) (*GetOneResult, error) {
	resource, err := p.lookup(name, false)
	if err != nil {
		return nil, err
	}
	if err := Validate("getOne", params); err != nil {
		return nil, err
	}
	return p.bo.provider.GetOne(ctx, resource.Path, params)
}

func (p *registryProvider) GetMany(ctx context.Context, name string, params GetManyParams) (*GetManyResult, error) {
	resource, err := p.lookup(name, false)
	if err != nil {
		return nil, err
	}
	if err := Validate("getMany", params); err != nil {
		return nil, err
	}
	return p.bo.provider.GetMany(ctx, resource.Path, params)
}

func (p *registryProvider) GetManyReference(ctx context.Context, name string, params GetManyReferenceParams) (*GetManyReferenceResult, error) {
	resource, err := p.lookup(name, false)
	if err != nil {
		return nil, err
	}
	params.Sort = resource.applySort(params.Sort)
	if err := Validate("getManyReference", params); err != nil {
		return nil, err
	}
	return p.bo.provider.GetManyReference(ctx, resource.Path, params)
}

func (p *registryProvider) Create(ctx context.Context, name string, params CreateParams) (*CreateResult, error) {
	resource, err := p.lookup(name, true)
	if err != nil {
		return nil, err
	}
	return p.bo.provider.Create(ctx, resource.Path, params)
}

func (p *registryProvider) Update(ctx context.Context, name string, params UpdateParams) (*UpdateResult, error) {
	resource, err := p.lookup(name, true)
	if err != nil {
		return nil, err
	}
	if err := Validate("update", params); err != nil {
		return nil, err
	}
	return p.bo.provider.Update(ctx, resource.Path, params)
}

func (p *registryProvider) UpdateMany(ctx context.Context, name string, params UpdateManyParams) (*UpdateManyResult, error) {
	resource, err := p.lookup(name, true)
	if err != nil {
		return nil, err
	}
	if err := Validate("updateMany", params); err != nil {
		return nil, err
	}
	return p.bo.provider.UpdateMany(ctx, resource.Path, params)
}

func (p *registryProvider) Delete(ctx context.Context, name string, params DeleteParams) (*DeleteResult, error) {
	resource, err := p.lookup(name, true)
	if err != nil {
		return nil, err
	}
	return p.bo.provider.Delete(ctx, resource.Path, params)
}

func (p *registryProvider) DeleteMany(ctx context.Context, name string, params DeleteManyParams) (*DeleteManyResult, error) {
	resource, err := p.lookup(name, true)
	if err != nil {
		return nil, err
	}
	if err := Validate("deleteMany", params); err != nil {
		return nil, err
	}
	return p.bo.provider.DeleteMany(ctx, resource.Path, params)
}
