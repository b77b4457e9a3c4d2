package feeds

import (
	"context"
	"strings"

	"github.com/gocolly/colly/v2"
)

// RSS reads the items of an RSS feed, taking one URL from each.
type RSS struct {
	name    string
	url     string
	base    *colly.Collector
	extract func(e *colly.XMLElement) string
}

// NewRSS creates an RSS source. extract pulls the URL out of one <item>.
func NewRSS(name, feedURL string, base *colly.Collector, extract func(e *colly.XMLElement) string) *RSS {
	return &RSS{name: name, url: feedURL, base: base, extract: extract}
}

// Name implements Source.
func (r *RSS) Name() string { return r.name }

// Collect implements Source.
func (r *RSS) Collect(ctx context.Context, emit func(string)) error {
	c := r.base.Clone()
	c.OnXML("//item", func(e *colly.XMLElement) {
		if u := r.extract(e); u != "" {
			emit(u)
		}
	})
	return visit(ctx, c, r.name, r.url)
}

// DescriptionURL extracts the URL from the description of a
// MalwareDomainList-style item, e.g. "URL: example.com/bad.exe, IP Address: ...".
// The URL is the second token; when that is "-" the fifth token is used.
func DescriptionURL(e *colly.XMLElement) string {
	return urlFromDescription(e.ChildText("description"))
}

func urlFromDescription(desc string) string {
	fields := strings.Fields(desc)
	if len(fields) < 2 {
		return ""
	}
	candidate := strings.TrimRight(fields[1], ",")
	if candidate == "-" {
		if len(fields) < 5 {
			return ""
		}
		candidate = strings.TrimRight(fields[4], ",")
	}
	return candidate
}

func itemTitle(e *colly.XMLElement) string {
	return strings.TrimSpace(e.ChildText("title"))
}
