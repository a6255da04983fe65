package feed

import (
	"encoding/xml"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderRSS(t *testing.T) {
	generated := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	doc := &Document{
		Title:       "Aggregated",
		Link:        "https://a.example/feed.xml",
		Description: "Aggregated feed from 2 sources",
		Language:    "en-us",
		Generated:   generated,
		Entries: []Entry{
			{
				Title:       "Entry One",
				Link:        "https://a.example/1",
				Description: "first entry",
				Creator:     "system",
				GUID:        "guid-1",
				Published:   generated.Add(-time.Hour),
			},
			{
				Title:       "Entry Two",
				Link:        "https://a.example/2",
				Description: "second entry",
				Creator:     "system",
				GUID:        "guid-2",
			},
		},
	}

	t.Run("structure", func(t *testing.T) {
		rss, err := RenderRSS(doc)
		require.NoError(t, err)

		assert.Contains(t, rss, `<?xml version="1.0" encoding="UTF-8"?>`)
		assert.Contains(t, rss, `<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">`)
		assert.Contains(t, rss, `<title>Aggregated</title>`)
		assert.Contains(t, rss, `<link>https://a.example/feed.xml</link>`)
		assert.Contains(t, rss, `<description>Aggregated feed from 2 sources</description>`)
		assert.Contains(t, rss, `<language>en-us</language>`)
		assert.Contains(t, rss, `<pubDate>Mon, 01 Jan 2024 12:00:00 +0000</pubDate>`)

		assert.Contains(t, rss, `<title>Entry One</title>`)
		assert.Contains(t, rss, `<guid>guid-1</guid>`)
		assert.Contains(t, rss, `<dc:creator>system</dc:creator>`)
		assert.Contains(t, rss, `<pubDate>Mon, 01 Jan 2024 11:00:00 +0000</pubDate>`)

		// proper nesting
		assert.Regexp(t, `(?s)<rss[^>]*>.*<channel>.*</channel>.*</rss>`, rss)
	})

	t.Run("zero published falls back to generation time", func(t *testing.T) {
		rss, err := RenderRSS(doc)
		require.NoError(t, err)

		// second entry carries the document generation time
		assert.Contains(t, rss, `<guid>guid-2</guid>`)
		var parsed RSS
		require.NoError(t, xml.Unmarshal([]byte(rss), &parsed))
		require.Len(t, parsed.Channel.Items, 2)
		assert.Equal(t, "Mon, 01 Jan 2024 12:00:00 +0000", parsed.Channel.Items[1].PubDate)
	})

	t.Run("special characters escaped", func(t *testing.T) {
		bad := &Document{
			Title:     "Feeds & <Friends>",
			Link:      "https://a.example",
			Generated: generated,
			Entries: []Entry{
				{
					Title:       "Broken & <Entry>",
					Link:        "https://a.example/1",
					Description: `contains <script>alert("x")</script> & ampersands`,
					Creator:     "system",
					GUID:        "g1",
					Published:   generated,
				},
				{
					Title:       "Clean Sibling",
					Link:        "https://a.example/2",
					Description: "untouched",
					Creator:     "system",
					GUID:        "g2",
					Published:   generated,
				},
			},
		}

		rss, err := RenderRSS(bad)
		require.NoError(t, err)

		assert.Contains(t, rss, "Feeds &amp; &lt;Friends&gt;")
		assert.Contains(t, rss, "Broken &amp; &lt;Entry&gt;")
		assert.Contains(t, rss, "&lt;script&gt;")

		// the bad source doesn't corrupt the sibling entry
		assert.Contains(t, rss, "<title>Clean Sibling</title>")
		assert.Contains(t, rss, "<description>untouched</description>")

		var parsed RSS
		require.NoError(t, xml.Unmarshal([]byte(rss), &parsed))
		assert.Len(t, parsed.Channel.Items, 2)
	})

	t.Run("no items still well-formed", func(t *testing.T) {
		empty := &Document{Title: "Empty", Link: "https://a.example", Generated: generated}
		rss, err := RenderRSS(empty)
		require.NoError(t, err)
		assert.Contains(t, rss, `<channel>`)
		assert.NotContains(t, rss, `<item>`)
	})
}
