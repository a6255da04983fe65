package feed

import (
	"regexp"
	"strings"
)

// ContentKind is the result of sniffing fetched bytes
type ContentKind int

// content kinds
const (
	KindOther ContentKind = iota
	KindStructuredFeed
)

// String returns a human-readable kind name
func (k ContentKind) String() string {
	if k == KindStructuredFeed {
		return "structured feed"
	}
	return "other"
}

// feedSignature matches the structural markers of RSS/Atom documents: an XML
// prolog, an rss or feed root tag, or a channel element. Lexical check, not a
// validating parse - a page with "<rss" inside a script block matches too.
var feedSignature = regexp.MustCompile(`(?i)(<\?xml|<rss[\s>]|<feed[\s>]|<channel[\s>])`)

// Classify inspects raw fetched bytes and reports whether they look like a
// syndication feed document. Pure function, never fails: garbled or binary
// content simply fails to match and classifies as KindOther.
func Classify(body []byte) ContentKind {
	// lossy decode so binary-tagged content can't break the match
	text := strings.ToValidUTF8(string(body), " ")
	if feedSignature.MatchString(text) {
		return KindStructuredFeed
	}
	return KindOther
}
