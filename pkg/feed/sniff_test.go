package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		body string
		want ContentKind
	}{
		{"xml prolog", `<?xml version="1.0" encoding="UTF-8"?><foo/>`, KindStructuredFeed},
		{"rss root tag", `<rss version="2.0"><channel></channel></rss>`, KindStructuredFeed},
		{"atom feed tag", `<feed xmlns="http://www.w3.org/2005/Atom"></feed>`, KindStructuredFeed},
		{"channel element", `<some><channel></channel></some>`, KindStructuredFeed},
		{"uppercase markers", `<RSS VERSION="2.0"><CHANNEL/></RSS>`, KindStructuredFeed},
		{"html page", `<!DOCTYPE html><html><body>hello</body></html>`, KindOther},
		{"plain text", "just some words", KindOther},
		{"empty", "", KindOther},
		{"feed word without tag", "my feed reader is great", KindOther},
		{"rss substring in script counts", `<html><script>var s = "<rss ";</script></html>`, KindStructuredFeed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify([]byte(tt.body)))
		})
	}

	t.Run("binary garbage classifies as other", func(t *testing.T) {
		assert.Equal(t, KindOther, Classify([]byte{0xff, 0xfe, 0x00, 0x01, 0x02}))
	})

	t.Run("binary prefix with feed markers still matches", func(t *testing.T) {
		body := append([]byte{0xff, 0xfe}, []byte(`<rss version="2.0">`)...)
		assert.Equal(t, KindStructuredFeed, Classify(body))
	})
}

func TestContentKind_String(t *testing.T) {
	assert.Equal(t, "structured feed", KindStructuredFeed.String())
	assert.Equal(t, "other", KindOther.String())
}
