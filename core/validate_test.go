package core

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		params    any
		wantField string
	}{
		{
			name:      "page must be at least one",
			params:    GetListParams{Pagination: Pagination{Page: 0, PerPage: 10}},
			wantField: "pagination.page",
		},
		{
			name:      "perPage must be positive",
			params:    GetListParams{Pagination: Pagination{Page: 1, PerPage: 0}},
			wantField: "pagination.perPage",
		},
		{
			name:      "sort order must be ASC or DESC",
			params:    GetListParams{Pagination: NewPagination(), Sort: Sort{Field: "name", Order: "up"}},
			wantField: "sort.order",
		},
		{
			name:      "getOne requires id",
			params:    GetOneParams{},
			wantField: "id",
		},
		{
			name:      "getMany requires ids",
			params:    GetManyParams{IDs: []any{}},
			wantField: "ids",
		},
		{
			name:      "reference requires target",
			params:    GetManyReferenceParams{ID: 1, Pagination: NewPagination()},
			wantField: "target",
		},
		{
			name:      "reference requires id",
			params:    GetManyReferenceParams{Target: "postId", Pagination: NewPagination()},
			wantField: "id",
		},
		{
			name:      "update requires id",
			params:    UpdateParams{Data: Record{"name": "x"}},
			wantField: "id",
		},
		{
			name:      "deleteMany requires ids",
			params:    DeleteManyParams{},
			wantField: "ids",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate("op", tt.params)
			if !errors.Is(err, ErrInvalidParams) {
				t.Fatalf("expected ErrInvalidParams, got %v", err)
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}

			found := false
			for _, f := range verr.Fields {
				if f.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected field %q in %v", tt.wantField, verr.Fields)
			}
			if !strings.HasPrefix(err.Error(), "op:") {
				t.Errorf("error should name the operation, got %q", err.Error())
			}
		})
	}
}

func TestValidate_AcceptsValidParams(t *testing.T) {
	valid := []any{
		GetListParams{Pagination: Pagination{Page: 2, PerPage: 10}, Sort: Sort{Field: "name", Order: SortAsc}},
		GetListParams{Pagination: Pagination{Page: 1, PerPage: 5}},
		GetOneParams{ID: "abc"},
		GetManyParams{IDs: []any{1, 2}},
		GetManyReferenceParams{Target: "postId", ID: 9, Pagination: NewPagination()},
		CreateParams{Data: Record{"name": "x"}},
		UpdateParams{ID: 0, Data: Record{}},
		UpdateManyParams{IDs: []any{"a"}, Data: Record{"active": false}},
		DeleteParams{},
		DeleteManyParams{IDs: []any{3}},
	}

	for _, params := range valid {
		if err := Validate("op", params); err != nil {
			t.Errorf("Validate(%T) returned %v", params, err)
		}
	}
}
