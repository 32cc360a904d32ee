package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/preslavrachev/restoffice/storage"
)

// DefaultCategoryKey is the storage key holding the currently viewed category
const DefaultCategoryKey = "show"

// CategorySource supplies the ambient category used to scope single-record lookups
type CategorySource interface {
	Category(ctx context.Context) (string, error)
}

// StaticCategory is a fixed category
type StaticCategory string

func (c StaticCategory) Category(ctx context.Context) (string, error) {
	return string(c), nil
}

// StoreCategory reads the category from a key-value store, where it is kept JSON-encoded
type StoreCategory struct {
	Store storage.Store
	Key   string
}

// NewStoreCategory reads the category from store under DefaultCategoryKey
func NewStoreCategory(store storage.Store) *StoreCategory {
	return &StoreCategory{Store: store, Key: DefaultCategoryKey}
}

// Category returns the stored category, or "" when none is stored
func (s *StoreCategory) Category(ctx context.Context) (string, error) {
	raw, ok, err := s.Store.Get(ctx, s.key())
	if err != nil {
		return "", fmt.Errorf("failed to read category: %w", err)
	}
	if !ok {
		return "", nil
	}
	return DecodeCategory(raw)
}

// SetCategory stores category JSON-encoded under the source key
func (s *StoreCategory) SetCategory(ctx context.Context, category string) error {
	if err := s.Store.Set(ctx, s.key(), EncodeCategory(category)); err != nil {
		return fmt.Errorf("failed to write category: %w", err)
	}
	return nil
}

// ClearCategory removes the stored category so lookups go unscoped
func (s *StoreCategory) ClearCategory(ctx context.Context) error {
	if err := s.Store.Delete(ctx, s.key()); err != nil {
		return fmt.Errorf("failed to clear category: %w", err)
	}
	return nil
}

func (s *StoreCategory) key() string {
	if s.Key == "" {
		return DefaultCategoryKey
	}
	return s.Key
}

// DecodeCategory decodes a stored category value.
// Strings decode to their contents, numbers and booleans to their literal text, null to "".
func DecodeCategory(raw string) (string, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("invalid category value %q: %w", raw, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return "", fmt.Errorf("invalid category value %q: trailing data", raw)
	}

	switch c := v.(type) {
	case nil:
		return "", nil
	case string:
		return c, nil
	case json.Number:
		return c.String(), nil
	case bool:
		return strconv.FormatBool(c), nil
	}
	return "", fmt.Errorf("invalid category value %q: not a scalar", raw)
}

// EncodeCategory is the inverse of DecodeCategory for string categories
func EncodeCategory(category string) string {
	encoded, _ := json.Marshal(category)
	return string(encoded)
}
