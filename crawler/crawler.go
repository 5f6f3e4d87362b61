// Package crawler implements the bounded breadth-first crawl used to discover
// exercise video links on a target site.
//
// The crawl is intentionally single-threaded with one fetch in flight at a
// time: the politeness delay between fetches bounds load on third-party hosts
// and keeps the visited set consistent without locking.
package crawler

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultMaxDepth  = 2
	defaultMaxPages  = 50
	defaultDelay     = 500 * time.Millisecond
	defaultUserAgent = "TranquilaeMediaBot/1.0 (+https://tranquilae.com/bots)"

	maxBodyBytes = 2 << 20
)

// Options bound a crawl run. Zero values fall back to defaults.
type Options struct {
	MaxDepth int
	MaxPages int
	Delay    time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = defaultMaxDepth
	}

	if o.MaxPages <= 0 {
		o.MaxPages = defaultMaxPages
	}

	if o.Delay <= 0 {
		o.Delay = defaultDelay
	}

	return o
}

// Page is a crawled page that yielded at least one recognizable video link.
type Page struct {
	URL    string
	Title  string
	Name   string
	Videos []string
}

// Report summarizes a crawl run.
type Report struct {
	PagesVisited int
	Pages        []Page
}

// Crawler fetches pages sequentially and extracts same-domain links and
// canonical video URLs.
type Crawler struct {
	client    *http.Client
	logger    *log.Logger
	userAgent string

	// sleep is replaceable in tests to avoid real politeness delays.
	sleep func(ctx context.Context, d time.Duration)
}

func New(client *http.Client, logger *log.Logger) *Crawler {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}

	if logger == nil {
		logger = log.Default()
	}

	return &Crawler{
		client:    client,
		logger:    logger,
		userAgent: defaultUserAgent,
		sleep:     sleepCtx,
	}
}

type queueItem struct {
	url   string
	depth int
}

// Run performs the breadth-first crawl over the seed URLs. Fetch failures are
// skipped without aborting the crawl; the politeness delay applies after
// every attempt, including failures.
func (c *Crawler) Run(ctx context.Context, seeds []string, opts Options) (*Report, error) {
	opts = opts.withDefaults()

	allowedHosts := make(map[string]struct{})

	var queue []queueItem

	for _, seed := range seeds {
		u, err := url.Parse(strings.TrimSpace(seed))
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, fmt.Errorf("invalid seed url: %q", seed)
		}

		allowedHosts[u.Host] = struct{}{}
		queue = append(queue, queueItem{url: u.String(), depth: 0})
	}

	visited := make(map[string]struct{})
	report := &Report{}

	for len(queue) > 0 {
		if len(visited) >= opts.MaxPages {
			break
		}

		if err := ctx.Err(); err != nil {
			return report, err
		}

		item := queue[0]
		queue = queue[1:]

		if _, ok := visited[item.url]; ok {
			continue
		}

		visited[item.url] = struct{}{}

		page, links, err := c.fetch(ctx, item.url)

		c.sleep(ctx, opts.Delay)

		if err != nil {
			c.logger.Printf("crawl: skipping %s: %v", item.url, err)

			continue
		}

		if len(page.Videos) > 0 {
			page.Name = DeriveName(page.Title, page.URL)
			report.Pages = append(report.Pages, *page)
		}

		if item.depth < opts.MaxDepth {
			for _, link := range links {
				u, err := url.Parse(link)
				if err != nil {
					continue
				}

				if _, ok := allowedHosts[u.Host]; !ok {
					continue
				}

				if _, ok := visited[u.String()]; ok {
					continue
				}

				queue = append(queue, queueItem{url: u.String(), depth: item.depth + 1})
			}
		}
	}

	report.PagesVisited = len(visited)

	return report, nil
}

// fetch downloads one page and extracts its title, same-page hyperlinks
// (absolute, fragment-stripped) and canonical video URLs.
func (c *Crawler) fetch(ctx context.Context, pageURL string) (*Page, []string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, err
	}

	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, nil, err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, nil, err
	}

	page := &Page{
		URL:    pageURL,
		Title:  strings.TrimSpace(doc.Find("title").First().Text()),
		Videos: ExtractVideoURLs(string(body)),
	}

	var links []string

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}

		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}

		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}

		abs.Fragment = ""
		links = append(links, abs.String())
	})

	return page, links, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
