// Package extract turns raw portal HTML into the normalized plain text that
// gets hashed and indexed.
package extract

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// dispositiveMarkers open the operative part of a norm. When the norm body
// cannot be isolated structurally, text from the first marker onward is used.
var dispositiveMarkers = []string{"DELIBERA", "RESOLVE", "Art. 1º", "Art. 1o", "Art. 1"}

var (
	spaceRuns   = regexp.MustCompile(`[ \t]+`)
	newlineRuns = regexp.MustCompile(`\n{3,}`)
)

// Extractor implements crawl.Extractor for the legislature portal's pages.
// It prefers the dedicated norm-text span; failing that it falls back to the
// page <main> stripped of navigation chrome and share widgets. It returns ""
// when no substantive content is found, which the engine reads as "does not
// exist".
type Extractor struct{}

// New returns a portal page extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract implements crawl.Extractor.
func (e *Extractor) Extract(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	// Laws and decrees render their text inside a dedicated span.
	if span := doc.Find("span.js_interpretarLinks.textNorma").First(); span.Length() > 0 {
		if text := clean(nodeText(span)); len(text) > 50 {
			return text
		}
	}

	main := doc.Find("main").First()
	if main.Length() == 0 {
		return ""
	}
	main.Find("nav, header, footer, script, style, button, aside").Remove()
	main.Find("div").Each(func(_ int, div *goquery.Selection) {
		if strings.Contains(strings.ToLower(div.Text()), "compartilhar") {
			div.Remove()
		}
	})

	text := clean(nodeText(main))
	for _, marker := range dispositiveMarkers {
		if _, rest, found := strings.Cut(text, marker); found {
			return clean(marker + "\n" + rest)
		}
	}
	if len(text) > 100 {
		return text
	}
	return ""
}

// nodeText renders the selection's text with newlines between elements,
// mirroring a line-per-node rendering so hashes stay stable across runs.
func nodeText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, node := range sel.Nodes {
		writeText(&b, node)
	}
	return b.String()
}

func writeText(b *strings.Builder, node *html.Node) {
	if node.Type == html.TextNode {
		if trimmed := strings.TrimSpace(node.Data); trimmed != "" {
			b.WriteString(trimmed)
			b.WriteString("\n")
		}
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		writeText(b, child)
	}
}

// clean collapses space runs and squeezes blank-line runs, the same
// normalization applied before content hashing everywhere.
func clean(text string) string {
	text = spaceRuns.ReplaceAllString(text, " ")
	text = newlineRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
