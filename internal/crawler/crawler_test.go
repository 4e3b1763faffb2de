package crawler

import (
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/printwerk/labelpress/internal/domain"
)

func TestProductKey(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{
			name:     "Slug from last segment",
			url:      "https://shop.example.com/detail/Schrauben-M8-verzinkt",
			expected: "schrauben-m8-verzinkt",
		},
		{
			name:     "Extension stripped",
			url:      "https://shop.example.com/products/widget-42.html",
			expected: "widget-42",
		},
		{
			name:     "Trailing slash falls back to previous segment",
			url:      "https://shop.example.com/products/widget-42/",
			expected: "widget-42",
		},
		{
			name:     "Query ignored",
			url:      "https://shop.example.com/detail/abc?c=17",
			expected: "abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ProductKey(tt.url))
		})
	}
}

func TestProductKeyStableFallback(t *testing.T) {
	// No usable slug: key must still be non-empty and deterministic
	k1 := ProductKey("https://shop.example.com/")
	k2 := ProductKey("https://shop.example.com/")
	assert.NotEmpty(t, k1)
	assert.Equal(t, k1, k2)
}

func TestProductKeyMatchesScreenshotFolderKey(t *testing.T) {
	key := ProductKey("https://shop.example.com/detail/Widget-42")
	shot := domain.Screenshot{
		ImagePath: "crawls/" + uuid.New().String() + "/" + key + "/full.png",
	}
	assert.Equal(t, key, shot.FolderKey())
}

func TestResolveLink(t *testing.T) {
	base, _ := url.Parse("https://shop.example.com/catalog/page-2")

	tests := []struct {
		name     string
		href     string
		expected string
	}{
		{
			name:     "Relative path",
			href:     "/detail/widget",
			expected: "https://shop.example.com/detail/widget",
		},
		{
			name:     "Absolute URL",
			href:     "https://other.example.com/p/1",
			expected: "https://other.example.com/p/1",
		},
		{
			name:     "Fragment stripped",
			href:     "/detail/widget#reviews",
			expected: "https://shop.example.com/detail/widget",
		},
		{
			name:     "Javascript link rejected",
			href:     "javascript:void(0)",
			expected: "",
		},
		{
			name:     "Mailto rejected",
			href:     "mailto:shop@example.com",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, resolveLink(base, tt.href))
		})
	}
}

func TestGetJobUnknownID(t *testing.T) {
	c := New(nil, nil)

	_, err := c.GetJob(uuid.New())
	assert.ErrorIs(t, err, domain.ErrJobNotFound)

	_, err = c.Wait(uuid.New())
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestStartCrawlRejectsBadURL(t *testing.T) {
	c := New(nil, nil)

	_, err := c.StartCrawl(t.Context(), "not a url", domain.CrawlConfig{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
