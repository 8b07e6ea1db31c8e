package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// paginationContainers are scoped first so that a "next" link inside a
// pagination widget beats a coincidental match elsewhere on the page.
var paginationContainers = []string{
	"nav",
	".pagination",
	".pager",
	".paginator",
	"ul.page-numbers",
	"[role=navigation]",
}

// loadMoreTexts are matched case-insensitively against button/link text for
// infinite-scroll style listings.
var loadMoreTexts = []string{
	"load more",
	"show more",
	"view more",
	"more jobs",
	"more results",
}

// findNextControl locates the control that advances the listing to the next
// page and returns a selector that can be clicked in the live session.
// Discovery order: caller-supplied hint selectors, next-controls scoped to a
// pagination container, document-wide rel=next and ARIA labels, load-more
// buttons by text, and finally the numbered link for currentPage+1.
func findNextControl(doc *goquery.Document, hints []string, currentPage int) (string, bool) {
	for _, sel := range hints {
		if s := doc.Find(sel).First(); s.Length() > 0 && isClickable(s) {
			return sel, true
		}
	}

	for _, container := range paginationContainers {
		var found string
		doc.Find(container).EachWithBreak(func(_ int, c *goquery.Selection) bool {
			if s := nextWithin(c); s != nil {
				found = buildClickSelector(s)
				return false
			}
			return true
		})
		if found != "" {
			return found, true
		}
	}

	if s := nextWithin(doc.Selection); s != nil {
		return buildClickSelector(s), true
	}

	if s := loadMoreControl(doc); s != nil {
		return buildClickSelector(s), true
	}

	if s := numberedPageLink(doc, currentPage+1); s != nil {
		return buildClickSelector(s), true
	}

	return "", false
}

// nextWithin returns the first clickable next-style control inside scope.
func nextWithin(scope *goquery.Selection) *goquery.Selection {
	var found *goquery.Selection
	scope.Find("a, button").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !looksLikeNext(s) || !isClickable(s) {
			return true
		}
		found = s
		return false
	})
	return found
}

func looksLikeNext(s *goquery.Selection) bool {
	if rel, _ := s.Attr("rel"); strings.EqualFold(rel, "next") {
		return true
	}
	if label, _ := s.Attr("aria-label"); strings.Contains(strings.ToLower(label), "next") {
		return true
	}
	if class, _ := s.Attr("class"); containsToken(class, "next") {
		return true
	}
	text := strings.ToLower(collapseSpace(s.Text()))
	return text == "next" || text == "next page" || text == "›" || text == "»"
}

func loadMoreControl(doc *goquery.Document) *goquery.Selection {
	var found *goquery.Selection
	doc.Find("button, a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.ToLower(collapseSpace(s.Text()))
		for _, want := range loadMoreTexts {
			if strings.Contains(text, want) && isClickable(s) {
				found = s
				return false
			}
		}
		return true
	})
	return found
}

// numberedPageLink finds the link whose visible text is exactly the wanted
// page number. Used when a listing has no next arrow, only numbered pages.
// currentPage is re-derived from the DOM when the page marks it, so a listing
// that starts on a deep page still advances correctly.
func numberedPageLink(doc *goquery.Document, wantPage int) *goquery.Selection {
	if cur, ok := currentPageFromDOM(doc); ok {
		wantPage = cur + 1
	}
	want := strconv.Itoa(wantPage)

	var found *goquery.Selection
	doc.Find("a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if collapseSpace(s.Text()) == want && isClickable(s) {
			found = s
			return false
		}
		return true
	})
	if found == nil {
		zap.L().Debug("paginate: no numbered link", zap.Int("want_page", wantPage))
	}
	return found
}

// currentPageFromDOM reads the highlighted page number from the pagination
// widget, via aria-current=page or an active class.
func currentPageFromDOM(doc *goquery.Document) (int, bool) {
	var cur int
	var ok bool
	doc.Find("[aria-current=page], .active, .current").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if n, err := strconv.Atoi(collapseSpace(s.Text())); err == nil {
			cur, ok = n, true
			return false
		}
		return true
	})
	return cur, ok
}

// isClickable rejects controls that are hidden or disabled in the static
// snapshot. Inline styles are the only visibility signal available without a
// layout engine; the rendering service re-checks at click time.
func isClickable(s *goquery.Selection) bool {
	if _, disabled := s.Attr("disabled"); disabled {
		return false
	}
	if v, _ := s.Attr("aria-disabled"); strings.EqualFold(v, "true") {
		return false
	}
	if _, hidden := s.Attr("hidden"); hidden {
		return false
	}
	if v, _ := s.Attr("aria-hidden"); strings.EqualFold(v, "true") {
		return false
	}
	if class, _ := s.Attr("class"); containsToken(class, "disabled") {
		return false
	}
	style, _ := s.Attr("style")
	style = strings.ReplaceAll(strings.ToLower(style), " ", "")
	if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
		return false
	}
	return true
}

func containsToken(classAttr, token string) bool {
	for _, c := range strings.Fields(strings.ToLower(classAttr)) {
		if c == token {
			return true
		}
	}
	return false
}

// buildClickSelector produces a CSS path the rendering service can resolve to
// the same element: an id when available, otherwise a tag:nth-child chain up
// to the nearest id-bearing ancestor or body.
func buildClickSelector(s *goquery.Selection) string {
	if id, ok := s.Attr("id"); ok && id != "" {
		return "#" + id
	}

	var parts []string
	for cur := s; cur.Length() > 0; cur = cur.Parent() {
		name := goquery.NodeName(cur)
		if name == "body" || name == "html" || strings.HasPrefix(name, "#") {
			break
		}
		if id, ok := cur.Attr("id"); ok && id != "" {
			parts = append([]string{"#" + id}, parts...)
			return strings.Join(parts, " > ")
		}
		parts = append([]string{fmt.Sprintf("%s:nth-child(%d)", name, domIndex(cur))}, parts...)
	}
	return strings.Join(parts, " > ")
}

// domIndex is the 1-based position of the element among its element siblings.
func domIndex(s *goquery.Selection) int {
	idx := 1
	for prev := s.Prev(); prev.Length() > 0; prev = prev.Prev() {
		idx++
	}
	return idx
}
