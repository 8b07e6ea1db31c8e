package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/careers-cli/internal/config"
	"github.com/sells-group/careers-cli/internal/cost"
	"github.com/sells-group/careers-cli/internal/model"
)

func testScraperConfig() config.ScraperConfig {
	return config.ScraperConfig{
		MaxPages:               3,
		MaxRoles:               50,
		MaxScrolls:             5,
		NetworkIdleTimeoutSecs: 1,
		DOMReadyTimeoutSecs:    1,
		SettleDelayMs:          1,
		Concurrency:            2,
		RunHistoryLimit:        50,
	}
}

func TestExtractAnchors(t *testing.T) {
	html := `<html><body>
		<ul>
			<li><a href="/jobs/summer">Summer Analyst</a> London · Apply by 30 Nov</li>
			<li><a href="https://other.com/role">External Role</a></li>
		</ul>
		<a href="#top">Back to top</a>
		<a href="javascript:void(0)">Menu</a>
		<a href="mailto:jobs@acme.com">Email us</a>
	</body></html>`

	anchors, err := extractAnchors(html, "https://acme.com/careers")
	require.NoError(t, err)
	require.Len(t, anchors, 2)

	assert.Equal(t, "https://acme.com/jobs/summer", anchors[0].URL)
	assert.Equal(t, "Summer Analyst", anchors[0].Text)
	assert.Contains(t, anchors[0].Context, "Apply by 30 Nov")
	assert.Equal(t, "https://other.com/role", anchors[1].URL)
}

func TestExtractAnchors_DeduplicatesIdenticalLinks(t *testing.T) {
	html := `<div>
		<a href="/jobs/a">Role A</a>
		<a href="/jobs/a">Role A</a>
		<a href="/jobs/a">Apply now</a>
	</div>`

	anchors, err := extractAnchors(html, "https://acme.com/careers")
	require.NoError(t, err)
	// Same href with different text survives; exact repeats collapse.
	assert.Len(t, anchors, 2)
}

func TestParseLinkClassification(t *testing.T) {
	anchors := []pageAnchor{
		{URL: "https://acme.com/jobs/a", Text: "Role A"},
		{URL: "https://acme.com/jobs/b", Text: "Role B"},
	}

	links := parseLinkClassification(`[
		{"index": 0, "title": "Role A (Full)", "confidence": 0.95},
		{"index": 1, "title": "", "confidence": 0.8},
		{"index": 7, "title": "Ghost", "confidence": 0.9}
	]`, anchors)

	require.Len(t, links, 2)
	assert.Equal(t, "Role A (Full)", links[0].Title)
	// Empty title falls back to the anchor text; out-of-range index dropped.
	assert.Equal(t, "Role B", links[1].Title)
	assert.Equal(t, 0.8, links[1].Confidence)
}

func TestParseLinkClassification_Garbage(t *testing.T) {
	links := parseLinkClassification("the page has no jobs on it", []pageAnchor{{URL: "u", Text: "t"}})
	assert.Nil(t, links)
}

func TestCleanJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `[{"a":1}]`, cleanJSON("Here you go:\n[{\"a\":1}]\nHope that helps."))
	assert.Equal(t, `{"a":1}`, cleanJSON(`prefix {"a":1} suffix`))
}

func TestScrollToBottom_StopsWhenHeightStable(t *testing.T) {
	sess := &mockSession{heights: []int{1000, 2000, 2000, 2000}}
	r := &run{
		Pipeline: &Pipeline{scrCfg: testScraperConfig()},
		tracker:  cost.NewTracker(),
	}

	r.scrollToBottom(context.Background(), sess)

	// Scrolls until two consecutive equal heights, then returns to the top.
	require.NotEmpty(t, sess.scrolled)
	assert.Equal(t, 0, sess.scrolled[len(sess.scrolled)-1])
	assert.LessOrEqual(t, len(sess.scrolled), 5)
}

func TestRunListPhase_DedupAndResolve(t *testing.T) {
	listing := `<html><body><ul>
		<li><a href="/jobs/summer">2026 Summer Analyst</a> London</li>
		<li><a href="/jobs/insight">Spring Insight Week</a> Remote</li>
		<li><a href="/about">About us</a></li>
	</ul></body></html>`

	open := true
	st := newMockStore()
	st.roles = []model.ExistingRole{{
		ID:            1,
		NormalizedURL: "https://acme.com/jobs/summer",
		CanonicalName: "summer analyst",
		IsOpen:        &open,
		Title:         "Summer Analyst",
	}}

	sess := &mockSession{pagesByURL: map[string]string{
		"https://acme.com/careers": listing,
	}}
	ai := &mockAnthropicClient{responses: map[string][]string{
		"m-classify": {`[
			{"index": 0, "title": "2026 Summer Analyst", "confidence": 0.95},
			{"index": 1, "title": "Spring Insight Week", "confidence": 0.9}
		]`},
	}}

	p := &Pipeline{
		store:   st,
		browser: &mockBrowser{session: sess},
		ai:      ai,
		aiCfg:   config.AnthropicConfig{ClassifyModel: "m-classify"},
		scrCfg:  testScraperConfig(),
		calc:    cost.NewCalculator(cost.DefaultRates()),
	}
	r := &run{
		Pipeline: p,
		req:      RunRequest{FirmID: 7, ListingURL: "https://acme.com/careers"},
		rec:      &model.ScrapeRun{ID: "run-test"},
		tracker:  cost.NewTracker(),
	}
	r.idx = buildIndex(t, st)

	res, err := r.runListPhase(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.found)
	assert.Equal(t, 1, res.skipped) // already tracked and open
	require.Len(t, res.candidates, 1)
	assert.Equal(t, model.ActionNewRole, res.candidates[0].Action)
	assert.Equal(t, "https://acme.com/jobs/insight", res.candidates[0].URL)
	assert.Equal(t, 1, res.pages)
}

func TestRunListPhase_Pagination(t *testing.T) {
	page1 := `<html><body>
		<ul><li><a href="/jobs/a">Role A</a></li></ul>
		<nav><a id="next-page" rel="next" href="?page=2">Next</a></nav>
	</body></html>`
	page2 := `<html><body>
		<ul>
			<li><a href="/jobs/a">Role A</a></li>
			<li><a href="/jobs/b">Role B</a></li>
		</ul>
	</body></html>`

	st := newMockStore()
	sess := &mockSession{
		pagesByURL: map[string]string{"https://acme.com/careers": page1},
		clickHTML:  map[string]string{"#next-page": page2},
	}
	ai := &mockAnthropicClient{responses: map[string][]string{
		"m-classify": {
			`[{"index": 0, "title": "Role A", "confidence": 0.9}]`,
			`[{"index": 0, "title": "Role A", "confidence": 0.9}, {"index": 1, "title": "Role B", "confidence": 0.9}]`,
		},
	}}

	p := &Pipeline{
		store:   st,
		browser: &mockBrowser{session: sess},
		ai:      ai,
		aiCfg:   config.AnthropicConfig{ClassifyModel: "m-classify"},
		scrCfg:  testScraperConfig(),
		calc:    cost.NewCalculator(cost.DefaultRates()),
	}
	r := &run{
		Pipeline: p,
		req:      RunRequest{FirmID: 7, ListingURL: "https://acme.com/careers"},
		rec:      &model.ScrapeRun{ID: "run-test"},
		tracker:  cost.NewTracker(),
	}
	r.idx = buildIndex(t, st)

	res, err := r.runListPhase(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.pages)
	// Role A appears on both pages but is counted once.
	assert.Equal(t, 2, res.found)
	assert.Len(t, res.candidates, 2)
	assert.Contains(t, sess.clicked, "#next-page")
}
