package core

import "context"

// Record is a backend entity. Its shape is defined by the backend; the only
// field the admin layer relies on is "id".
type Record map[string]any

// ID returns the record identifier, or nil if the record has none
func (r Record) ID() any {
	if r == nil {
		return nil
	}
	return r["id"]
}

// DataProvider defines the data-binding contract between the admin layer and a backend
type DataProvider interface {
	GetList(ctx context.Context, resource string, params GetListParams) (*GetListResult, error)
	GetOne(ctx context.Context, resource string, params GetOneParams) (*GetOneResult, error)
	GetMany(ctx context.Context, resource string, params GetManyParams) (*GetManyResult, error)
	GetManyReference(ctx context.Context, resource string, params GetManyReferenceParams) (*GetManyReferenceResult, error)
	Create(ctx context.Context, resource string, params CreateParams) (*CreateResult, error)
	Update(ctx context.Context, resource string, params UpdateParams) (*UpdateResult, error)
	UpdateMany(ctx context.Context, resource string, params UpdateManyParams) (*UpdateManyResult, error)
	Delete(ctx context.Context, resource string, params DeleteParams) (*DeleteResult, error)
	DeleteMany(ctx context.Context, resource string, params DeleteManyParams) (*DeleteManyResult, error)
}

// GetListParams describes a paginated, sorted and filtered list request
type GetListParams struct {
	Pagination Pagination `json:"pagination"`
	Sort       Sort       `json:"sort"`
	Filter     Filter     `json:"filter"`
}

// GetListResult holds one page of records and the total number of matches
type GetListResult struct {
	Data  []Record `json:"data"`
	Total int64    `json:"total"`
}

// GetOneParams identifies a single record.
// Category scopes the lookup; when empty the provider may fall back to an ambient value.
type GetOneParams struct {
	ID       any    `json:"id"`
	Category string `json:"category,omitempty"`
}

type GetOneResult struct {
	Data Record `json:"data"`
}

type GetManyParams struct {
	IDs []any `json:"ids" validate:"required,min=1"`
}

type GetManyResult struct {
	Data []Record `json:"data"`
}

// GetManyReferenceParams lists records whose Target field references ID
type GetManyReferenceParams struct {
	Target     string     `json:"target" validate:"required"`
	ID         any        `json:"id"`
	Pagination Pagination `json:"pagination"`
	Sort       Sort       `json:"sort"`
	Filter     Filter     `json:"filter"`
}

type GetManyReferenceResult struct {
	Data  []Record `json:"data"`
	Total int64    `json:"total"`
}

// CreateParams carries the payload of a new record. The backend assigns the id.
type CreateParams struct {
	Data Record `json:"data"`
}

// CreateResult holds the decoded response body. A JSON object decodes as a
// Record; any other JSON value is kept as decoded.
type CreateResult struct {
	Data any `json:"data"`
}

type UpdateParams struct {
	ID           any    `json:"id"`
	Data         Record `json:"data"`
	PreviousData Record `json:"previousData,omitempty"`
}

type UpdateResult struct {
	Data any `json:"data"`
}

type UpdateManyParams struct {
	IDs  []any  `json:"ids" validate:"required,min=1"`
	Data Record `json:"data"`
}

// UpdateManyResult holds whatever the backend returned: usually updated ids or records
type UpdateManyResult struct {
	Data any `json:"data"`
}

// DeleteParams identifies the record to delete through PreviousData.
// A missing PreviousData is allowed and results in an unscoped request.
type DeleteParams struct {
	ID           any    `json:"id,omitempty"`
	PreviousData Record `json:"previousData,omitempty"`
}

type DeleteResult struct {
	Data any `json:"data"`
}

type DeleteManyParams struct {
	IDs []any `json:"ids" validate:"required,min=1"`
}

type DeleteManyResult struct {
	Data []any `json:"data"`
}

// AsRecord returns v as a Record when it holds a JSON object
func AsRecord(v any) (Record, bool) {
	switch rec := v.(type) {
	case Record:
		return rec, rec != nil
	case map[string]any:
		return Record(rec), rec != nil
	}
	return nil, false
}
