package feeds

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// HTMLText scans every text node of a page and emits those that look like
// URLs. The page address may change per run, so it is computed on Collect.
type HTMLText struct {
	name string
	url  func() string
	base *colly.Collector
}

// NewHTMLText creates a text-node scanning source.
func NewHTMLText(name string, pageURL func() string, base *colly.Collector) *HTMLText {
	return &HTMLText{name: name, url: pageURL, base: base}
}

// Name implements Source.
func (h *HTMLText) Name() string { return h.name }

// Collect implements Source.
func (h *HTMLText) Collect(ctx context.Context, emit func(string)) error {
	c := h.base.Clone()
	c.OnHTML("html", func(e *colly.HTMLElement) {
		e.DOM.Find("*").Contents().Each(func(_ int, s *goquery.Selection) {
			if goquery.NodeName(s) != "#text" {
				return
			}
			text := strings.TrimSpace(s.Text())
			if strings.HasPrefix(text, "http") {
				emit(text)
			}
		})
	})
	return visit(ctx, c, h.name, h.url())
}

// HTMLAttr emits an attribute of every element matching a selector.
type HTMLAttr struct {
	name     string
	url      string
	base     *colly.Collector
	selector string
	attr     string
}

// NewHTMLAttr creates a selector-driven HTML source.
func NewHTMLAttr(name, pageURL string, base *colly.Collector, selector, attr string) *HTMLAttr {
	return &HTMLAttr{name: name, url: pageURL, base: base, selector: selector, attr: attr}
}

// Name implements Source.
func (h *HTMLAttr) Name() string { return h.name }

// Collect implements Source.
func (h *HTMLAttr) Collect(ctx context.Context, emit func(string)) error {
	c := h.base.Clone()
	c.OnHTML(h.selector, func(e *colly.HTMLElement) {
		if v := strings.TrimSpace(e.Attr(h.attr)); v != "" {
			emit(v)
		}
	})
	return visit(ctx, c, h.name, h.url)
}
