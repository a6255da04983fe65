package feed

import (
	"encoding/xml"
	"fmt"
	"time"
)

// dcNamespace is the Dublin Core namespace used for item attribution
const dcNamespace = "http://purl.org/dc/elements/1.1/"

// RenderRSS serializes a document to a well-formed RSS 2.0 XML string.
// Malformed characters in extracted text are escaped by the marshaller, a
// single bad source can't corrupt sibling entries.
func RenderRSS(doc *Document) (string, error) {
	rssItems := make([]*RSSItem, 0, len(doc.Entries))
	for _, entry := range doc.Entries {
		rssItems = append(rssItems, convertToRSSItem(entry, doc.Generated))
	}

	rss := &RSS{
		Version: "2.0",
		DC:      dcNamespace,
		Channel: &RSSChannel{
			Title:         doc.Title,
			Link:          doc.Link,
			Description:   doc.Description,
			Language:      doc.Language,
			PubDate:       doc.Generated.Format(time.RFC1123Z),
			LastBuildDate: doc.Generated.Format(time.RFC1123Z),
			Items:         rssItems,
		},
	}

	output, err := xml.MarshalIndent(rss, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal RSS: %w", err)
	}

	// add XML declaration
	return xml.Header + string(output), nil
}

// convertToRSSItem converts a normalized entry to an RSS item
func convertToRSSItem(entry Entry, generated time.Time) *RSSItem {
	pubDate := entry.Published
	if pubDate.IsZero() {
		pubDate = generated
	}

	return &RSSItem{
		Title:       entry.Title,
		Link:        entry.Link,
		Description: entry.Description,
		PubDate:     pubDate.Format(time.RFC1123Z),
		Creator:     entry.Creator,
		GUID:        entry.GUID,
	}
}
