package rest

import (
	"fmt"
	"net/url"

	"github.com/preslavrachev/restoffice/core"
)

// envelope is the {sort, range, filter} triple list endpoints accept.
// Each field is JSON-encoded into its own query parameter.
type envelope struct {
	Sort   []any
	Range  [2]int
	Filter core.Filter
}

func newEnvelope(pagination core.Pagination, sort core.Sort, filter core.Filter) envelope {
	start, end := pagination.Range()
	return envelope{
		Sort:   sortPair(sort),
		Range:  [2]int{start, end},
		Filter: filter.OrEmpty(),
	}
}

// sortPair renders [field, order]; an unset sort encodes as [null,null]
func sortPair(sort core.Sort) []any {
	if sort.IsZero() {
		return []any{nil, nil}
	}
	order := sort.Order
	if order == "" {
		order = core.SortAsc
	}
	return []any{sort.Field, string(order)}
}

// Values encodes the envelope as sort, range and filter query parameters
func (e envelope) Values() (url.Values, error) {
	sort, err := marshalJSON(e.Sort)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sort: %w", err)
	}
	rng, err := marshalJSON(e.Range)
	if err != nil {
		return nil, fmt.Errorf("failed to encode range: %w", err)
	}
	filter, err := marshalJSON(e.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to encode filter: %w", err)
	}

	values := url.Values{}
	values.Set("sort", sort)
	values.Set("range", rng)
	values.Set("filter", filter)
	return values, nil
}

// filterValues encodes a single JSON filter parameter, e.g. filter={"ids":[1,2]}
func filterValues(filter core.Filter) (url.Values, error) {
	encoded, err := marshalJSON(filter.OrEmpty())
	if err != nil {
		return nil, fmt.Errorf("failed to encode filter: %w", err)
	}
	return url.Values{"filter": {encoded}}, nil
}
