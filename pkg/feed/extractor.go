package feed

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/markusmobius/go-trafilatura"
	"github.com/mmcdole/gofeed"

	"github.com/akarasev/feedsmith/pkg/config"
)

// Extractor discovers feed entries in content that is not itself a feed
type Extractor interface {
	Extract(ctx context.Context, srcURL string, body []byte) ([]*gofeed.Item, error)
}

// LinkExtractor locates embedded feed structures in arbitrary markup: it
// first tries to parse the content as a feed directly (feeds are often served
// as text/html), then looks for advertised feed links in the page head and
// follows the first one. Optionally it falls back to a page text excerpt.
type LinkExtractor struct {
	fetcher    Fetcher
	parser     *gofeed.Parser
	extraction config.ExtractionConfig
}

// NewLinkExtractor creates an extractor that follows discovered feed links
// using the given fetcher
func NewLinkExtractor(fetcher Fetcher, extraction config.ExtractionConfig) *LinkExtractor {
	return &LinkExtractor{
		fetcher:    fetcher,
		parser:     gofeed.NewParser(),
		extraction: extraction,
	}
}

// feedLinkSelectors identify advertised feeds in page markup, checked in order
var feedLinkSelectors = []string{
	`link[rel="alternate"][type="application/rss+xml"]`,
	`link[rel="alternate"][type="application/atom+xml"]`,
	`link[rel="alternate"][type="application/xml"]`,
	`link[rel="alternate"][type="text/xml"]`,
}

// common feed path suffixes used as a last-resort anchor scan
var feedPathSuffixes = []string{"/feed", "/rss", "/atom", "feed.xml", "rss.xml", "atom.xml", "index.xml"}

// Extract returns feed items discovered in the given page content. The order
// of attempts: direct feed parse, advertised link discovery, optional page
// excerpt synthesis. Returns an error when nothing usable was found.
func (e *LinkExtractor) Extract(ctx context.Context, srcURL string, body []byte) ([]*gofeed.Item, error) {
	// some feeds are mislabeled or oddly framed, try parsing as-is first
	if feed, err := e.parser.Parse(bytes.NewReader(body)); err == nil && len(feed.Items) > 0 {
		return feed.Items, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse page %s: %w", srcURL, err)
	}

	if feedURL := discoverFeedURL(doc, srcURL); feedURL != "" {
		items, err := e.fetchFeed(ctx, feedURL)
		if err == nil && len(items) > 0 {
			return items, nil
		}
	}

	if e.extraction.Enabled {
		if item := e.excerptItem(srcURL, body, doc); item != nil {
			return []*gofeed.Item{item}, nil
		}
	}

	return nil, fmt.Errorf("no feed discovered in %s", srcURL)
}

// fetchFeed retrieves and parses a discovered feed URL
func (e *LinkExtractor) fetchFeed(ctx context.Context, feedURL string) ([]*gofeed.Item, error) {
	body, err := e.fetcher.Fetch(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch discovered feed %s: %w", feedURL, err)
	}

	feed, err := e.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse discovered feed %s: %w", feedURL, err)
	}

	return feed.Items, nil
}

// excerptItem synthesizes a single entry from the page's main text
func (e *LinkExtractor) excerptItem(srcURL string, body []byte, doc *goquery.Document) *gofeed.Item {
	parsedURL, err := url.Parse(srcURL)
	if err != nil {
		return nil
	}

	result, err := trafilatura.Extract(bytes.NewReader(body), trafilatura.Options{
		EnableFallback:  true,
		ExcludeComments: true,
		Deduplicate:     true,
		OriginalURL:     parsedURL,
	})
	if err != nil || result == nil {
		return nil
	}

	text := strings.TrimSpace(result.ContentText)
	if len(text) < e.extraction.MinTextLength {
		return nil
	}
	if len(text) > e.extraction.ExcerptLength {
		text = text[:e.extraction.ExcerptLength] + "..."
	}

	title := strings.TrimSpace(result.Metadata.Title)
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	return &gofeed.Item{
		Title:       title,
		Link:        srcURL,
		Description: text,
	}
}

// discoverFeedURL finds the first advertised feed link in the page, resolved
// against the page URL
func discoverFeedURL(doc *goquery.Document, srcURL string) string {
	base, err := url.Parse(srcURL)
	if err != nil {
		return ""
	}

	for _, sel := range feedLinkSelectors {
		href, ok := doc.Find(sel).First().Attr("href")
		if ok && strings.TrimSpace(href) != "" {
			return resolveRef(base, href)
		}
	}

	// last resort - anchors pointing at common feed paths
	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}
		lower := strings.ToLower(strings.TrimRight(href, "/"))
		for _, suffix := range feedPathSuffixes {
			if strings.HasSuffix(lower, suffix) {
				found = resolveRef(base, href)
				return false
			}
		}
		return true
	})

	return found
}

// resolveRef resolves a possibly relative href against the page URL
func resolveRef(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
