package rest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preslavrachev/restoffice/storage"
)

func TestDecodeCategory(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{`"shoes"`, "shoes", false},
		{`""`, "", false},
		{`null`, "", false},
		{`12`, "12", false},
		{`1.50`, "1.50", false},
		{`true`, "true", false},
		{`shoes`, "", true},
		{`{"id":1}`, "", true},
		{`[1]`, "", true},
		{``, "", true},
		{`"fruit" junk`, "", true},
		{`"fruit"}`, "", true},
		{`"fruit" "veg"`, "", true},
		{"\"fruit\"\n", "fruit", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := DecodeCategory(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeCategoryRoundTrip(t *testing.T) {
	for _, category := range []string{"", "shoes", `quote"d`, "<tag>"} {
		got, err := DecodeCategory(EncodeCategory(category))
		require.NoError(t, err)
		assert.Equal(t, category, got)
	}
}

func TestStoreCategory(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	source := NewStoreCategory(store)

	got, err := source.Category(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", got)

	require.NoError(t, source.SetCategory(ctx, "shoes"))
	raw, ok, err := store.Get(ctx, DefaultCategoryKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `"shoes"`, raw)

	got, err = source.Category(ctx)
	require.NoError(t, err)
	assert.Equal(t, "shoes", got)

	require.NoError(t, source.ClearCategory(ctx))
	_, ok, err = store.Get(ctx, DefaultCategoryKey)
	require.NoError(t, err)
	assert.False(t, ok)
	got, err = source.Category(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", got)
	require.NoError(t, source.SetCategory(ctx, "shoes"))

	custom := &StoreCategory{Store: store, Key: "view"}
	got, err = custom.Category(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", got)

	require.NoError(t, store.Close())
	_, err = source.Category(ctx)
	assert.ErrorIs(t, err, storage.ErrClosed)
}

func TestStaticCategory(t *testing.T) {
	got, err := StaticCategory("hats").Category(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hats", got)
}
