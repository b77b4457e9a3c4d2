// Package feeds collects candidate malware URLs from public threat-intel
// feeds. Each Source fetches one feed and emits the raw URLs it finds; the
// admission gate takes care of normalization and duplicates.
package feeds

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	collyfetcher "github.com/JakeFAU/maltrieve/internal/fetcher/colly"
)

// Source is one URL feed.
type Source interface {
	Name() string
	// Collect fetches the feed and calls emit for every candidate URL.
	Collect(ctx context.Context, emit func(raw string)) error
}

// Options configures how feeds are fetched.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	Proxy     *url.URL
	// Now dates the Sacour list; defaults to time.Now.
	Now func() time.Time
}

// Feed names accepted by Select.
const (
	NameMalwareDomainList = "mdl"
	NameMalc0de           = "malc0de"
	NameMalwareBlackList  = "malwareblacklist"
	NameVXVault           = "vxvault"
	NameSacour            = "sacour"
	NameURLQuery          = "urlquery"
	NameCleanMX           = "cleanmx"
	NameJoxean            = "joxean"
)

// Feed endpoints.
const (
	MalwareDomainListURL = "http://www.malwaredomainlist.com/hostslist/mdl.xml"
	Malc0deURL           = "http://malc0de.com/rss"
	MalwareBlackListURL  = "http://www.malwareblacklist.com/mbl.xml"
	VXVaultURL           = "http://vxvault.siri-urz.net/URL_List.php"
	SacourURLFormat      = "http://www.sacour.cn/list/%d-%d/%d%d%d.htm"
	URLQueryURL          = "http://urlquery.net/"
	CleanMXURL           = "http://support.clean-mx.de/clean-mx/rss?scope=viruses&limit=0%2C64"
	JoxeanURL            = "http://malwareurls.joxeankoret.com/normal.txt"
)

// All returns every built-in feed in harvest order.
func All(opts Options) []Source {
	base := newCollector(opts)
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return []Source{
		NewRSS(NameMalwareDomainList, MalwareDomainListURL, base, DescriptionURL),
		NewRSS(NameMalc0de, Malc0deURL, base, DescriptionURL),
		NewRSS(NameMalwareBlackList, MalwareBlackListURL, base, DescriptionURL),
		NewText(NameVXVault, VXVaultURL, base, httpLine),
		NewHTMLText(NameSacour, func() string { return SacourURL(now()) }, base),
		NewHTMLAttr(NameURLQuery, URLQueryURL, base, "table.test a[title]", "title"),
		NewRSS(NameCleanMX, CleanMXURL, base, itemTitle),
		NewText(NameJoxean, JoxeanURL, base, uncommentedLine),
	}
}

// Select returns the built-in feeds named in names, in harvest order. No names
// selects every feed.
func Select(opts Options, names []string) ([]Source, error) {
	all := All(opts)
	if len(names) == 0 {
		return all, nil
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[strings.ToLower(strings.TrimSpace(n))] = true
	}
	var out []Source
	for _, s := range all {
		if wanted[s.Name()] {
			out = append(out, s)
			delete(wanted, s.Name())
		}
	}
	for n := range wanted {
		return nil, fmt.Errorf("unknown feed %q", n)
	}
	return out, nil
}

// SacourURL returns the Sacour list for the day of t.
func SacourURL(t time.Time) string {
	y, m, d := t.Year(), int(t.Month()), t.Day()
	return fmt.Sprintf(SacourURLFormat, y, m, y, m, d)
}

func newCollector(opts Options) *colly.Collector {
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(collyfetcher.NewTransport(opts.Proxy))
	c.IgnoreRobotsTxt = true
	c.AllowURLRevisit = true
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c.SetRequestTimeout(timeout)
	if opts.UserAgent != "" {
		c.UserAgent = opts.UserAgent
	}
	return c
}

func visit(ctx context.Context, c *colly.Collector, name, feedURL string) error {
	if err := collyfetcher.VisitContext(ctx, c, feedURL); err != nil {
		return fmt.Errorf("feed %s: %w", name, err)
	}
	return nil
}
