//go:build !integration

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/beanatlas/coffee-cli/internal/model"
)

func TestRoasterForPublish_FromSite(t *testing.T) {
	site := model.Site{
		RoasterID: "roaster-drift",
		Name:      "Drift Coffee",
		URL:       "https://driftcoffee.example",
	}

	r := roasterForPublish(site, nil, "shopify")
	assert.Equal(t, "roaster-drift", r.ID)
	assert.Equal(t, "Drift Coffee", r.Name)
	assert.Equal(t, "drift-coffee", r.Slug)
	assert.Equal(t, "https://driftcoffee.example", r.WebsiteURL)
	assert.Equal(t, "shopify", r.Platform)
	assert.True(t, r.IsActive)
}

func TestRoasterForPublish_FallsBackToProducts(t *testing.T) {
	products := []*model.Product{{
		RoasterID: "northbeans.example",
		SourceURL: "https://northbeans.example/products/blend",
	}}

	r := roasterForPublish(model.Site{}, products, "")
	assert.Equal(t, "northbeans.example", r.ID)
	assert.Equal(t, "northbeans.example", r.Name, "name falls back to the roaster ID")
	assert.Equal(t, "https://northbeans.example/products/blend", r.WebsiteURL)
	assert.Empty(t, r.Platform)
}

func TestRoasterForPublish_DomainFallback(t *testing.T) {
	r := roasterForPublish(model.Site{URL: "https://www.driftcoffee.example/shop"}, nil, "")
	assert.Equal(t, "driftcoffee.example", r.ID)
}
