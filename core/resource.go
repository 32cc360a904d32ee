package core

import (
	"strings"

	"github.com/iancoleman/strcase"
)

// Resource represents a registered backend collection with its metadata
type Resource struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	PluralName  string `json:"plural_name"`
	Path        string `json:"path"` // URL key used by the backend, e.g. "products"
	Hidden      bool   `json:"hidden"`
	ReadOnly    bool   `json:"read_only"`
	DefaultSort Sort   `json:"default_sort"`
}

// ResourceMeta contains basic metadata for listings
type ResourceMeta struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	PluralName  string `json:"plural_name"`
	Path        string `json:"path"`
	Hidden      bool   `json:"hidden"`
	ReadOnly    bool   `json:"read_only"`
	DefaultSort Sort   `json:"default_sort"`
}

// GetMeta returns basic metadata with the sort list requests fall back to
func (r *Resource) GetMeta() ResourceMeta {
	return ResourceMeta{
		Name:        r.Name,
		DisplayName: r.DisplayName,
		PluralName:  r.PluralName,
		Path:        r.Path,
		Hidden:      r.Hidden,
		ReadOnly:    r.ReadOnly,
		DefaultSort: r.GetEffectiveDefaultSort(),
	}
}

// GetEffectiveDefaultSort returns the configured default sort, falling back to id ascending
func (r *Resource) GetEffectiveDefaultSort() Sort {
	if !r.DefaultSort.IsZero() {
		sort := r.DefaultSort
		if !sort.Order.IsValid() {
			sort.Order = SortAsc
		}
		return sort
	}
	return Sort{Field: "id", Order: SortAsc}
}

// applySort fills in the default sort when the caller did not request one
func (r *Resource) applySort(sort Sort) Sort {
	if !sort.IsZero() {
		if sort.Order == "" {
			sort.Order = SortAsc
		}
		return sort
	}
	return r.GetEffectiveDefaultSort()
}

// Helper functions for generating names

func generateDisplayName(name string) string {
	// "ProductItem" / "product_item" -> "Product Item"
	words := strings.Fields(strcase.ToDelimited(name, ' '))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func generatePluralName(name string) string {
	if isURLKey(name) {
		return generateDisplayName(name)
	}
	return pluralize(generateDisplayName(name))
}

func generatePath(name string) string {
	if isURLKey(name) {
		return name
	}
	return pluralize(strcase.ToKebab(name))
}

// isURLKey reports whether name already is a backend key such as "products"
func isURLKey(name string) bool {
	return name == strings.ToLower(name) && !strings.Contains(name, " ")
}

// Basic pluralization - can be enhanced later
func pluralize(word string) string {
	if strings.HasSuffix(word, "y") && !strings.HasSuffix(word, "ay") &&
		!strings.HasSuffix(word, "ey") && !strings.HasSuffix(word, "oy") {
		return strings.TrimSuffix(word, "y") + "ies"
	}
	if strings.HasSuffix(word, "s") || strings.HasSuffix(word, "x") ||
		strings.HasSuffix(word, "z") || strings.HasSuffix(word, "ch") ||
		strings.HasSuffix(word, "sh") {
		return word + "es"
	}
	return word + "s"
}
