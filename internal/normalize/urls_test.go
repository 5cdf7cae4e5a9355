package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips www", "https://www.bluetokai.com/products/attikan", "https://bluetokai.com/products/attikan"},
		{"lowercases host", "https://BlueTokai.COM/Products", "https://bluetokai.com/Products"},
		{"drops query", "https://bluetokai.com/products/attikan?variant=42", "https://bluetokai.com/products/attikan"},
		{"drops trailing slash", "https://bluetokai.com/products/", "https://bluetokai.com/products"},
		{"adds scheme", "bluetokai.com/shop", "https://bluetokai.com/shop"},
		{"bare host", "https://bluetokai.com/", "https://bluetokai.com"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, URL(tt.in))
		})
	}
}

func TestURL_SameKeyForEquivalentForms(t *testing.T) {
	t.Parallel()

	a := URL("https://www.bluetokai.com/products/attikan/?utm_source=x")
	b := URL("https://bluetokai.com/products/attikan")
	assert.Equal(t, a, b)
}

func TestDomain(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "bluetokai.com", Domain("https://www.bluetokai.com/shop"))
	assert.Equal(t, "bluetokai.com", Domain("bluetokai.com"))
	assert.Empty(t, Domain(""))
}

func TestAbsoluteURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		href string
		base string
		want string
	}{
		{"absolute passes through", "https://cdn.shop/a.jpg", "https://x.com", "https://cdn.shop/a.jpg"},
		{"root relative", "/products/attikan", "https://bluetokai.com/shop", "https://bluetokai.com/products/attikan"},
		{"protocol relative", "//cdn.shop/a.jpg", "https://x.com", "https://cdn.shop/a.jpg"},
		{"relative join", "attikan", "https://bluetokai.com/products/", "https://bluetokai.com/products/attikan"},
		{"empty", "", "https://x.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, AbsoluteURL(tt.href, tt.base))
		})
	}
}

func TestSameHost(t *testing.T) {
	t.Parallel()

	assert.True(t, SameHost("https://www.bluetokai.com/a", "https://bluetokai.com/b"))
	assert.False(t, SameHost("https://bluetokai.com", "https://cdn.shopify.com"))
	assert.False(t, SameHost("", ""))
}
