package discover

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathMatcher_Defaults(t *testing.T) {
	m := NewPathMatcher(nil, nil)

	assert.Contains(t, m.IncludePatterns(), "/products/*")
	assert.Contains(t, m.IncludePatterns(), "/collections/*")
	assert.Contains(t, m.ExcludePatterns(), "/cart*")
	assert.Contains(t, m.ExcludePatterns(), "/blog/*")
}

func TestPathMatcher_Excluded(t *testing.T) {
	m := NewPathMatcher(nil, nil)

	tests := []struct {
		name     string
		url      string
		excluded bool
	}{
		{"product page", "https://drift.example/products/kenya-aa", false},
		{"cart", "https://drift.example/cart", true},
		{"checkout step", "https://drift.example/checkout/step-1", true},
		{"blog post", "https://drift.example/blog/2024/new-harvest", true},
		{"static page", "https://drift.example/pages/about", true},
		{"policies", "https://drift.example/policies/refund-policy", true},
		{"mixed case path", "https://drift.example/Blog/News", true},
		{"pagination page param", "https://drift.example/collections/all?page=2", true},
		{"pagination short param", "https://drift.example/collections/all?p=3", true},
		{"sort param", "https://drift.example/collections/all?sort=price-asc", true},
		{"variant param allowed", "https://drift.example/products/kenya-aa?variant=41231", false},
		{"unparseable url", "https://drift.example/%zz", true},
		{"homepage", "https://drift.example/", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.excluded, m.Excluded(tt.url))
		})
	}
}

func TestPathMatcher_Included(t *testing.T) {
	m := NewPathMatcher(nil, nil)

	tests := []struct {
		name     string
		url      string
		included bool
	}{
		{"product", "https://drift.example/products/kenya-aa", true},
		{"singular product", "https://drift.example/product/house-blend", true},
		{"collection", "https://drift.example/collections/coffee", true},
		{"nested collection", "https://drift.example/collections/coffee/filter", true},
		{"shop", "https://drift.example/shop/beans", true},
		{"about", "https://drift.example/about", false},
		{"homepage", "https://drift.example/", false},
		{"unparseable url", "https://drift.example/%zz", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.included, m.Included(tt.url))
		})
	}
}

func TestPathMatcher_CustomPatterns(t *testing.T) {
	m := NewPathMatcher([]string{"/store/*"}, []string{"/wishlist*"})

	assert.True(t, m.Included("https://beanbar.example/store/kaapi-royale"))
	assert.False(t, m.Included("https://beanbar.example/products/kaapi-royale"),
		"custom include patterns replace the defaults")
	assert.True(t, m.Excluded("https://beanbar.example/wishlist"))
	assert.False(t, m.Excluded("https://beanbar.example/cart"),
		"custom exclude patterns replace the defaults")
}
