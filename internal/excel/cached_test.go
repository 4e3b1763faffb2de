package excel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printwerk/labelpress/internal/cache"
)

func TestCachedLoaderParsesOnce(t *testing.T) {
	path := writeWorkbook(t,
		[]string{"Artikelnummer", "Bezeichnung", "Preis"},
		[][]any{
			{"SW-100", "Schraube", "1,20"},
			{"SW-101", "Mutter", "0,80"},
		})

	c := cache.NewMemoryCache()
	defer c.Close()
	load := NewCachedLoader(c)

	first, err := load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, first[0].ArticleNumber, second[0].ArticleNumber)
	assert.Equal(t, first[1].Price, second[1].Price)
}

func TestCachedLoaderNilCacheFallsThrough(t *testing.T) {
	path := writeWorkbook(t,
		[]string{"Artikelnummer"},
		[][]any{{"SW-100"}})

	load := NewCachedLoader(nil)
	articles, err := load(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, articles, 1)
}

func TestCachedLoaderMissingFile(t *testing.T) {
	c := cache.NewMemoryCache()
	defer c.Close()
	load := NewCachedLoader(c)

	_, err := load(context.Background(), "/does/not/exist.xlsx")
	assert.Error(t, err)
}
