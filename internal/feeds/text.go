package feeds

import (
	"context"
	"strings"

	"github.com/gocolly/colly/v2"
)

// Text reads a plain-text list with one candidate per line.
type Text struct {
	name   string
	url    string
	base   *colly.Collector
	accept func(line string) bool
}

// NewText creates a line-oriented source. Lines are trimmed before accept
// sees them.
func NewText(name, feedURL string, base *colly.Collector, accept func(line string) bool) *Text {
	return &Text{name: name, url: feedURL, base: base, accept: accept}
}

// Name implements Source.
func (t *Text) Name() string { return t.name }

// Collect implements Source.
func (t *Text) Collect(ctx context.Context, emit func(string)) error {
	c := t.base.Clone()
	c.OnResponse(func(r *colly.Response) {
		for _, line := range strings.Split(string(r.Body), "\n") {
			line = strings.TrimSpace(line)
			if line != "" && t.accept(line) {
				emit(line)
			}
		}
	})
	return visit(ctx, c, t.name, t.url)
}

func httpLine(line string) bool {
	return strings.HasPrefix(line, "http")
}

func uncommentedLine(line string) bool {
	return !strings.HasPrefix(line, "#")
}
