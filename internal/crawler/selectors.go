package crawler

import (
	"fmt"

	"github.com/playwright-community/playwright-go"

	"github.com/printwerk/labelpress/internal/domain"
)

// Probe is one selector candidate in an ordered fallback chain
type Probe struct {
	Name     string
	Selector string
}

// Chain is an ordered list of selector probes for one page element.
// Probes are tried in priority order; the first one that resolves to a
// visible element wins and no further candidates are attempted.
type Chain struct {
	Field  string
	Probes []Probe
}

// Resolve evaluates the chain against a page
func (c Chain) Resolve(page playwright.Page) (playwright.ElementHandle, *Probe, error) {
	for i := range c.Probes {
		probe := &c.Probes[i]

		el, err := page.QuerySelector(probe.Selector)
		if err != nil || el == nil {
			continue
		}

		visible, err := el.IsVisible()
		if err != nil || !visible {
			continue
		}

		return el, probe, nil
	}
	return nil, nil, fmt.Errorf("%w: no selector matched for %s", domain.ErrExtraction, c.Field)
}

// defaultChains covers the shop layouts seen in the field. Shopware
// selectors first, generic schema.org fallbacks last.
func defaultChains() map[string]Chain {
	return map[string]Chain{
		domain.CropPrice: {
			Field: domain.CropPrice,
			Probes: []Probe{
				{Name: "shopware-detail-price", Selector: ".product-detail-price"},
				{Name: "price-box", Selector: ".price-box"},
				{Name: "product-price", Selector: ".product-price"},
				{Name: "itemprop-price", Selector: "[itemprop='price']"},
				{Name: "generic-price", Selector: ".price"},
			},
		},
		domain.CropArticleNumber: {
			Field: domain.CropArticleNumber,
			Probes: []Probe{
				{Name: "shopware-ordernumber", Selector: ".product-detail-ordernumber-container"},
				{Name: "article-number", Selector: ".article-number"},
				{Name: "artikelnummer", Selector: ".artikelnummer"},
				{Name: "itemprop-sku", Selector: "[itemprop='sku']"},
				{Name: "generic-sku", Selector: ".sku"},
			},
		},
		domain.CropDescription: {
			Field: domain.CropDescription,
			Probes: []Probe{
				{Name: "shopware-description", Selector: ".product-detail-description"},
				{Name: "product-description", Selector: ".product-description"},
				{Name: "itemprop-description", Selector: "[itemprop='description']"},
				{Name: "generic-description", Selector: ".description"},
			},
		},
	}
}

// Product-link candidates, tried in order until one yields links
var defaultLinkSelectors = []string{
	"a.product-item-link",
	".product-box a.product-name",
	".product-item a[href]",
	".product a[href]",
	"a[href*='/detail/']",
	"a[href*='/product']",
}

// Next-page candidates for pagination
var defaultNextSelectors = []string{
	"a[rel='next']",
	".pagination-next a",
	"li.page-item.page-next a",
	"li.next a",
	"a.next",
}
