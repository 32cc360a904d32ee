package rest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/preslavrachev/restoffice/core"
	"github.com/tidwall/gjson"
)

// ResponseFields names where operation results live in response bodies.
// Values are gjson paths, so nested fields such as "result.items" work too.
type ResponseFields struct {
	ListItems string // GetList records
	ListTotal string // GetList total count
	OneItem   string // GetOne record
}

// DefaultResponseFields matches the admin API: {items, count} lists and {productItem} lookups
var DefaultResponseFields = ResponseFields{
	ListItems: "items",
	ListTotal: "count",
	OneItem:   "productItem",
}

func (f ResponseFields) withDefaults() ResponseFields {
	if f.ListItems == "" {
		f.ListItems = DefaultResponseFields.ListItems
	}
	if f.ListTotal == "" {
		f.ListTotal = DefaultResponseFields.ListTotal
	}
	if f.OneItem == "" {
		f.OneItem = DefaultResponseFields.OneItem
	}
	return f
}

// lookup returns the raw JSON at path, failing when the body is not JSON or the path is absent
func lookup(body []byte, path string) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%w: body is not valid JSON", ErrMalformedResponse)
	}
	res := gjson.GetBytes(body, path)
	if !res.Exists() {
		return gjson.Result{}, fmt.Errorf("%w: missing field %q", ErrMalformedResponse, path)
	}
	return res, nil
}

func extractRecords(body []byte, path string) ([]core.Record, error) {
	res, err := lookup(body, path)
	if err != nil {
		return nil, err
	}
	if !res.IsArray() {
		return nil, fmt.Errorf("%w: field %q is not an array", ErrMalformedResponse, path)
	}
	return decodeRecords([]byte(res.Raw))
}

func extractRecord(body []byte, path string) (core.Record, error) {
	res, err := lookup(body, path)
	if err != nil {
		return nil, err
	}
	return decodeRecord([]byte(res.Raw))
}

func extractTotal(body []byte, path string) (int64, error) {
	res, err := lookup(body, path)
	if err != nil {
		return 0, err
	}
	var text string
	switch res.Type {
	case gjson.Number:
		text = res.Raw
	case gjson.String:
		text = strings.TrimSpace(res.Str)
	default:
		return 0, fmt.Errorf("%w: field %q is not a number", ErrMalformedResponse, path)
	}
	total, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: field %q is not an integer", ErrMalformedResponse, path)
	}
	return total, nil
}

// decodeRecords decodes a bare JSON array of records; null decodes as an empty list
func decodeRecords(raw []byte) ([]core.Record, error) {
	var records []core.Record
	if err := decodeJSON(raw, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []core.Record{}
	}
	return records, nil
}

// decodeRecord decodes a JSON object; an empty body or null decodes as nil
func decodeRecord(raw []byte) (core.Record, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}
	var record core.Record
	if err := decodeJSON(raw, &record); err != nil {
		return nil, err
	}
	return record, nil
}

// decodeValue decodes any JSON body. Objects decode as core.Record; an empty body decodes as nil.
func decodeValue(raw []byte) (any, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}
	var v any
	if err := decodeJSON(raw, &v); err != nil {
		return nil, err
	}
	if obj, ok := v.(map[string]any); ok {
		return core.Record(obj), nil
	}
	return v, nil
}

// parseContentRange reads the total from a header such as "posts 0-24/319":
// the integer after the last "/".
func parseContentRange(header string) (int64, error) {
	if header == "" {
		return 0, ErrMissingContentRange
	}
	i := strings.LastIndex(header, "/")
	total, err := strconv.ParseInt(strings.TrimSpace(header[i+1:]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid Content-Range %q", ErrMalformedResponse, header)
	}
	return total, nil
}
