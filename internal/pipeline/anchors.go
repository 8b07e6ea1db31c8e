package pipeline

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// maxAnchorsPerPage caps how many anchors are offered to the classifier for
// one page. Listing pages beyond this are almost always nav-heavy portals.
const maxAnchorsPerPage = 200

// maxContextChars bounds the surrounding text captured per anchor.
const maxContextChars = 240

// pageAnchor is one candidate link lifted from a rendered listing page.
type pageAnchor struct {
	URL     string
	Text    string
	Context string
}

// extractAnchors parses the rendered HTML and returns every plausible anchor
// with its visible text and a slice of surrounding context. Relative hrefs are
// resolved against the page URL.
func extractAnchors(html, pageURL string) ([]pageAnchor, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: parse listing html")
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: parse page url %s", pageURL)
	}

	var anchors []pageAnchor
	seen := make(map[string]bool)

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "tel:") {
			return true
		}

		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		abs := base.ResolveReference(ref).String()

		text := collapseSpace(s.Text())
		key := abs + "|" + text
		if seen[key] {
			return true
		}
		seen[key] = true

		anchors = append(anchors, pageAnchor{
			URL:     abs,
			Text:    text,
			Context: anchorContext(s),
		})
		return len(anchors) < maxAnchorsPerPage
	})

	return anchors, nil
}

// anchorContext returns the text of the anchor's nearest block-ish ancestor,
// which usually carries the job card (location, deadline, programme name).
func anchorContext(s *goquery.Selection) string {
	for parent := s.Parent(); parent.Length() > 0; parent = parent.Parent() {
		if !isBlockContainer(goquery.NodeName(parent)) {
			continue
		}
		text := collapseSpace(parent.Text())
		if len(text) > len(collapseSpace(s.Text())) {
			if len(text) > maxContextChars {
				text = text[:maxContextChars]
			}
			return text
		}
	}
	return ""
}

func isBlockContainer(name string) bool {
	switch name {
	case "li", "td", "tr", "article", "section", "div":
		return true
	}
	return false
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// visibleText strips markup, scripts, and styles from a rendered page and
// returns the collapsed visible text. Falls back to the raw input when the
// HTML cannot be parsed.
func visibleText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return collapseSpace(html)
	}
	doc.Find("script, style, noscript, svg, iframe").Remove()
	return collapseSpace(doc.Text())
}
