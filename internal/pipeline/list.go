package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/careers-cli/internal/identity"
	"github.com/sells-group/careers-cli/internal/model"
	"github.com/sells-group/careers-cli/internal/resolve"
	"github.com/sells-group/careers-cli/pkg/anthropic"
	"github.com/sells-group/careers-cli/pkg/browser"
)

const classifyLinksSystemPrompt = `You identify links to individual job postings on a careers listing page. You are given a numbered list of anchors (link text, surrounding card text, URL). Return a JSON array with one entry per anchor that points to a single job posting: [{"index": <anchor number>, "title": "<job title>", "confidence": <0.0-1.0>}]. Exclude navigation, filters, category pages, social links, and generic "apply" portals. Use the card text to recover the full title when the link text is truncated. Return [] if none qualify.`

const classifyLinksUserPrompt = `Listing page: %s

Anchors:
%s`

// classifiedLink is one anchor the model judged to be a job posting.
type classifiedLink struct {
	URL        string
	Title      string
	Confidence float64
}

// listResult carries the list phase's output into the detail phase.
type listResult struct {
	candidates []model.CandidateLink
	titleURLs  []model.TitleURL
	pages      int
	found      int
	skipped    int
}

// runListPhase walks the paginated listing, classifies anchors on each page,
// and resolves every surviving job link against the role index. Candidates
// are deduplicated by normalized URL across the whole run.
func (r *run) runListPhase(ctx context.Context) (*listResult, error) {
	sess, err := r.browser.NewSession(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: open listing session")
	}
	defer func() {
		if cerr := sess.Close(context.WithoutCancel(ctx)); cerr != nil {
			zap.L().Warn("pipeline: close listing session", zap.Error(cerr))
		}
	}()

	if err := sess.Navigate(ctx, r.req.ListingURL); err != nil {
		return nil, eris.Wrap(err, "pipeline: navigate listing")
	}
	r.pageLoads.Add(1)

	res := &listResult{}
	seen := make(map[string]bool)
	maxPages := r.scrCfg.MaxPages
	if r.req.Hints != nil && r.req.Hints.MaxPages > 0 {
		maxPages = r.req.Hints.MaxPages
	}

	for page := 1; ; page++ {
		r.settle(ctx, sess)
		res.pages = page

		html, err := sess.Content(ctx)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: read listing page %d", page)
		}

		links, err := r.classifyPage(ctx, html)
		if err != nil {
			return nil, err
		}

		for _, link := range links {
			normURL := identity.NormalizeURL(link.URL)
			if seen[normURL] {
				continue
			}
			seen[normURL] = true
			res.found++
			res.titleURLs = append(res.titleURLs, model.TitleURL{Title: link.Title, URL: link.URL})

			decision := resolve.Resolve(link.URL, link.Title, r.idx)
			if decision.Action == model.ActionSkip {
				res.skipped++
				continue
			}
			res.candidates = append(res.candidates, model.CandidateLink{
				URL:            link.URL,
				Title:          link.Title,
				Confidence:     link.Confidence,
				Action:         decision.Action,
				ExistingRoleID: decision.ExistingRoleID,
				URLChanged:     decision.URLChanged,
			})

			if r.scrCfg.MaxRoles > 0 && len(res.candidates) >= r.scrCfg.MaxRoles {
				zap.L().Info("pipeline: role cap reached",
					zap.Int("max_roles", r.scrCfg.MaxRoles),
					zap.Int("pages_visited", page),
				)
				return res, nil
			}
		}

		if page >= maxPages {
			zap.L().Info("pipeline: page cap reached", zap.Int("max_pages", maxPages))
			break
		}
		if !r.gotoNextPage(ctx, sess, html, page) {
			break
		}
		r.pageLoads.Add(1)
	}

	return res, nil
}

// classifyPage extracts anchors from one rendered page and asks the model
// which of them are job postings.
func (r *run) classifyPage(ctx context.Context, html string) ([]classifiedLink, error) {
	anchors, err := extractAnchors(html, r.req.ListingURL)
	if err != nil {
		return nil, err
	}
	if len(anchors) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	for i, a := range anchors {
		fmt.Fprintf(&sb, "%d. text: %q card: %q url: %s\n", i, a.Text, a.Context, a.URL)
	}

	resp, err := r.callLLM(ctx, "classify", anthropic.MessageRequest{
		Model:     r.aiCfg.ClassifyModel,
		MaxTokens: 4096,
		System:    anthropic.BuildCachedSystemBlocks(classifyLinksSystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(classifyLinksUserPrompt, r.req.ListingURL, sb.String())},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: classify links")
	}

	return parseLinkClassification(extractText(resp), anchors), nil
}

// parseLinkClassification maps the model's index-based answer back onto the
// extracted anchors. Out-of-range indexes and unparseable output degrade to
// an empty result rather than failing the page.
func parseLinkClassification(text string, anchors []pageAnchor) []classifiedLink {
	var raw []struct {
		Index      int     `json:"index"`
		Title      string  `json:"title"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(text)), &raw); err != nil {
		zap.L().Warn("pipeline: unparseable link classification", zap.Error(err))
		return nil
	}

	var links []classifiedLink
	for _, item := range raw {
		if item.Index < 0 || item.Index >= len(anchors) {
			continue
		}
		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = anchors[item.Index].Text
		}
		links = append(links, classifiedLink{
			URL:        anchors[item.Index].URL,
			Title:      title,
			Confidence: item.Confidence,
		})
	}
	return links
}

// settle waits for the page to quiesce and scrolls to the bottom so lazily
// loaded cards render. Wait failures are advisory: a page that never goes
// network-idle is still scraped from whatever rendered.
func (r *run) settle(ctx context.Context, sess browser.Session) {
	idleTimeout := time.Duration(r.scrCfg.NetworkIdleTimeoutSecs) * time.Second
	if err := sess.Wait(ctx, browser.WaitNetworkIdle, idleTimeout); err != nil {
		zap.L().Warn("pipeline: network idle wait failed, falling back to dom ready", zap.Error(err))
		domTimeout := time.Duration(r.scrCfg.DOMReadyTimeoutSecs) * time.Second
		if err := sess.Wait(ctx, browser.WaitDOMReady, domTimeout); err != nil {
			zap.L().Warn("pipeline: dom ready wait failed, scraping as-is", zap.Error(err))
		}
	}

	r.scrollToBottom(ctx, sess)
}

// scrollToBottom scrolls in bounded steps until the page height is stable for
// two consecutive reads, then returns to the top so pagination controls and
// sticky headers are back in their resting state.
func (r *run) scrollToBottom(ctx context.Context, sess browser.Session) {
	settleDelay := time.Duration(r.scrCfg.SettleDelayMs) * time.Millisecond
	lastHeight, stable := -1, 0

	for i := 0; i < r.scrCfg.MaxScrolls; i++ {
		height, err := sess.PageHeight(ctx)
		if err != nil {
			zap.L().Warn("pipeline: read page height", zap.Error(err))
			return
		}
		if height == lastHeight {
			stable++
			if stable >= 2 {
				break
			}
		} else {
			stable = 0
		}
		lastHeight = height

		if err := sess.ScrollTo(ctx, height); err != nil {
			zap.L().Warn("pipeline: scroll", zap.Error(err))
			return
		}
		select {
		case <-time.After(settleDelay):
		case <-ctx.Done():
			return
		}
	}

	if err := sess.ScrollTo(ctx, 0); err != nil {
		zap.L().Warn("pipeline: scroll to top", zap.Error(err))
	}
}

// gotoNextPage finds and clicks the next-page control. Returns false when the
// listing has no further pages or the control rejected the click.
func (r *run) gotoNextPage(ctx context.Context, sess browser.Session, html string, currentPage int) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		zap.L().Warn("pipeline: reparse for pagination", zap.Error(err))
		return false
	}

	var hints []string
	if r.req.Hints != nil {
		hints = r.req.Hints.NextSelectors
	}

	selector, ok := findNextControl(doc, hints, currentPage)
	if !ok {
		zap.L().Debug("pipeline: no next-page control", zap.Int("page", currentPage))
		return false
	}

	if err := sess.Click(ctx, selector); err != nil {
		zap.L().Info("pipeline: next-page click rejected, ending pagination",
			zap.String("selector", selector),
			zap.Error(err),
		)
		return false
	}
	return true
}
