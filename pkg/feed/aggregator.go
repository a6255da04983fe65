package feed

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/akarasev/feedsmith/pkg/config"
)

// defaults applied when source data is absent
const (
	noTitle       = "No Title"
	noDescription = "No description"
)

// Entry is one normalized unit of content destined for the output feed.
// Immutable once constructed, every field is non-empty except Published
// which may be zero when the source carried no usable timestamp.
type Entry struct {
	Title       string
	Link        string
	Description string
	Creator     string
	GUID        string
	Published   time.Time
}

// Document is the complete aggregation result before serialization
type Document struct {
	Title       string
	Link        string
	Description string
	Language    string
	Generated   time.Time
	Entries     []Entry
}

// Aggregator drives per-source extraction and merges the results into one
// document. Sources are processed strictly in order, one after another, and a
// failing source never aborts the batch.
type Aggregator struct {
	fetcher   Fetcher
	extractor Extractor
	classify  func([]byte) ContentKind
	parser    *gofeed.Parser
	sanitizer *bluemonday.Policy
	cfg       config.AggregateConfig
}

// NewAggregator creates an aggregator with the default content classifier
func NewAggregator(fetcher Fetcher, extractor Extractor, cfg config.AggregateConfig) *Aggregator {
	return &Aggregator{
		fetcher:   fetcher,
		extractor: extractor,
		classify:  Classify,
		parser:    gofeed.NewParser(),
		sanitizer: bluemonday.StrictPolicy(),
		cfg:       cfg,
	}
}

// Aggregate fetches every source in order, extracts entries per the content
// kind and assembles one document. Per-source failures are logged and
// skipped. Returns an error only for an empty source list - with no first
// source there is nothing to anchor even the fallback entry to.
func (a *Aggregator) Aggregate(ctx context.Context, sources []string, title string) (*Document, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources provided")
	}

	now := time.Now()
	doc := &Document{
		Title:       title,
		Link:        sources[0],
		Description: fmt.Sprintf("Aggregated feed from %d sources", len(sources)),
		Language:    a.cfg.Language,
		Generated:   now,
	}
	if doc.Title == "" {
		doc.Title = a.cfg.DefaultTitle
	}

	for _, src := range sources {
		entries := a.processSource(ctx, src, now)
		doc.Entries = append(doc.Entries, entries...)
	}

	// the document always carries at least one entry, a wholly failing
	// batch yields a single placeholder anchored to the first source
	if len(doc.Entries) == 0 {
		doc.Entries = append(doc.Entries, a.placeholderEntry(sources[0], title, now))
	}

	return doc, nil
}

// processSource fetches and extracts entries for a single source, returns nil
// on any failure
func (a *Aggregator) processSource(ctx context.Context, src string, now time.Time) []Entry {
	body, err := a.fetcher.Fetch(ctx, src)
	if err != nil {
		log.Printf("[WARN] fetch %s failed: %v", src, err)
		return nil
	}

	var items []*gofeed.Item
	switch kind := a.classify(body); kind {
	case KindStructuredFeed:
		feed, err := a.parser.Parse(bytes.NewReader(body))
		if err != nil {
			log.Printf("[WARN] parse feed %s failed: %v", src, err)
			return nil
		}
		// structured feeds are copied in full, count and order preserved
		items = feed.Items
	default:
		discovered, err := a.extractor.Extract(ctx, src, body)
		if err != nil {
			log.Printf("[WARN] extract from %s failed: %v", src, err)
			return nil
		}
		// heuristic extraction is bounded per source
		if len(discovered) > a.cfg.PageEntryCap {
			discovered = discovered[:a.cfg.PageEntryCap]
		}
		items = discovered
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, a.normalizeItem(src, item, now))
	}

	log.Printf("[DEBUG] source %s yielded %d entries", src, len(entries))
	return entries
}

// normalizeItem converts a parsed feed item into an entry with all defaults
// applied
func (a *Aggregator) normalizeItem(src string, item *gofeed.Item, now time.Time) Entry {
	entry := Entry{
		Title:       strings.TrimSpace(item.Title),
		Link:        strings.TrimSpace(item.Link),
		Description: a.plainText(item.Description),
		Creator:     a.cfg.Creator,
		GUID:        uuid.NewString(),
		Published:   now,
	}

	if entry.Title == "" {
		entry.Title = noTitle
	}
	if entry.Link == "" {
		entry.Link = src
	}
	if entry.Description == "" {
		entry.Description = a.plainText(item.Content)
	}
	if entry.Description == "" {
		entry.Description = noDescription
	}

	// published time falls back to updated, then to generation time
	if item.PublishedParsed != nil {
		entry.Published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		entry.Published = *item.UpdatedParsed
	}

	return entry
}

// placeholderEntry synthesizes the single fallback entry for a batch that
// produced nothing
func (a *Aggregator) placeholderEntry(src, title string, now time.Time) Entry {
	if title == "" {
		title = fmt.Sprintf("Feed from %s", src)
	}
	return Entry{
		Title:       title,
		Link:        src,
		Description: fmt.Sprintf("No items found for feed: %s", src),
		Creator:     a.cfg.Creator,
		GUID:        uuid.NewString(),
		Published:   now,
	}
}

// plainText strips markup from extracted text, the XML marshaller handles
// escaping on output
func (a *Aggregator) plainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(a.sanitizer.Sanitize(s)))
}
