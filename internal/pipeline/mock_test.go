package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/sells-group/careers-cli/internal/db"
	"github.com/sells-group/careers-cli/internal/model"
	"github.com/sells-group/careers-cli/internal/store"
	"github.com/sells-group/careers-cli/pkg/anthropic"
	"github.com/sells-group/careers-cli/pkg/browser"
)

// mockStore implements store.Store for testing.
type mockStore struct {
	mu sync.Mutex

	roles     []model.ExistingRole
	dismissed []model.DismissedRef
	programs  []model.Program

	rolesErr error

	savedProgramDrafts []model.ProgramDraft
	savedRoleDrafts    []model.RoleDraft
	completedRuns      map[string]*model.RunMetrics
	failedRuns         map[string]string
	prunedListings     []string

	nextDraftID int64
}

func newMockStore() *mockStore {
	return &mockStore{
		completedRuns: make(map[string]*model.RunMetrics),
		failedRuns:    make(map[string]string),
	}
}

var _ store.Store = (*mockStore)(nil)

func (m *mockStore) ListFirmRoles(_ context.Context, _ int64) ([]model.ExistingRole, error) {
	return m.roles, m.rolesErr
}

func (m *mockStore) ListDismissed(_ context.Context, _ int64) ([]model.DismissedRef, error) {
	return m.dismissed, nil
}

func (m *mockStore) ListFirmPrograms(_ context.Context, _ int64) ([]model.Program, error) {
	return m.programs, nil
}

func (m *mockStore) SaveProgramDraft(_ context.Context, draft *model.ProgramDraft) (*model.ProgramDraft, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.savedProgramDrafts {
		if d.NormalizedName == draft.NormalizedName && d.ProgramType == draft.ProgramType {
			return &d, false, nil
		}
	}
	m.nextDraftID++
	saved := *draft
	saved.ID = m.nextDraftID
	saved.Status = model.DraftStatusPending
	m.savedProgramDrafts = append(m.savedProgramDrafts, saved)
	return &saved, true, nil
}

func (m *mockStore) SaveRoleDraft(_ context.Context, draft *model.RoleDraft) (*model.RoleDraft, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.savedRoleDrafts {
		if d.NormalizedURL == draft.NormalizedURL {
			return &d, false, nil
		}
	}
	m.nextDraftID++
	saved := *draft
	saved.ID = m.nextDraftID
	saved.Status = model.DraftStatusPending
	m.savedRoleDrafts = append(m.savedRoleDrafts, saved)
	return &saved, true, nil
}

func (m *mockStore) GetProgramDraft(_ context.Context, id int64) (*model.ProgramDraft, error) {
	for _, d := range m.savedProgramDrafts {
		if d.ID == id {
			return &d, nil
		}
	}
	return nil, nil
}

func (m *mockStore) ListPendingProgramDrafts(_ context.Context, _ int64) ([]model.ProgramDraft, error) {
	return m.savedProgramDrafts, nil
}

func (m *mockStore) ListPendingRoleDrafts(_ context.Context, _ int64) ([]model.RoleDraft, error) {
	return m.savedRoleDrafts, nil
}

func (m *mockStore) CreateRun(_ context.Context, firmID int64, listingURL string) (*model.ScrapeRun, error) {
	return &model.ScrapeRun{
		ID:         "run-test",
		FirmID:     firmID,
		ListingURL: listingURL,
		Status:     model.RunStatusRunning,
		StartedAt:  time.Now().UTC(),
	}, nil
}

func (m *mockStore) CompleteRun(_ context.Context, runID string, metrics *model.RunMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completedRuns[runID] = metrics
	return nil
}

func (m *mockStore) FailRun(_ context.Context, runID string, errMsg string, _ *model.RunMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failedRuns[runID] = errMsg
	return nil
}

func (m *mockStore) GetRun(_ context.Context, _ string) (*model.ScrapeRun, error) {
	return nil, nil
}

func (m *mockStore) ListRuns(_ context.Context, _ store.RunFilter) ([]model.ScrapeRun, error) {
	return nil, nil
}

func (m *mockStore) PruneRunHistory(_ context.Context, listingURL string, _ int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prunedListings = append(m.prunedListings, listingURL)
	return 0, nil
}

func (m *mockStore) Pool() db.Pool { return nil }

func (m *mockStore) Migrate(_ context.Context) error { return nil }

func (m *mockStore) Close() error { return nil }

// mockBrowser hands every caller the same scripted session.
type mockBrowser struct {
	session *mockSession
	err     error
}

func (m *mockBrowser) NewSession(_ context.Context) (browser.Session, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.session, nil
}

// mockSession serves canned HTML per URL and scripted click outcomes.
type mockSession struct {
	mu sync.Mutex

	pagesByURL map[string]string // navigate target → html
	clickHTML  map[string]string // selector → html after click
	heights    []int             // PageHeight responses, last repeats

	current   string
	navigated []string
	clicked   []string
	scrolled  []int
	heightIdx int
	waitErr   error
}

func (m *mockSession) Navigate(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.navigated = append(m.navigated, url)
	m.current = m.pagesByURL[url]
	return nil
}

func (m *mockSession) Wait(_ context.Context, _ browser.WaitCondition, _ time.Duration) error {
	return m.waitErr
}

func (m *mockSession) Content(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, nil
}

func (m *mockSession) PageHeight(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.heights) == 0 {
		return 1000, nil
	}
	h := m.heights[m.heightIdx]
	if m.heightIdx < len(m.heights)-1 {
		m.heightIdx++
	}
	return h, nil
}

func (m *mockSession) ScrollTo(_ context.Context, y int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scrolled = append(m.scrolled, y)
	return nil
}

func (m *mockSession) Click(_ context.Context, selector string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clicked = append(m.clicked, selector)
	if html, ok := m.clickHTML[selector]; ok {
		m.current = html
		return nil
	}
	return browser.ErrNoSuchElement
}

func (m *mockSession) Close(_ context.Context) error { return nil }

// mockAnthropicClient implements anthropic.Client, dispatching canned text
// responses by model name. Each model has a queue; the last entry repeats.
type mockAnthropicClient struct {
	mu        sync.Mutex
	responses map[string][]string
	indexes   map[string]int
	calls     []anthropic.MessageRequest
	err       error
}

func (m *mockAnthropicClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	if m.err != nil {
		return nil, m.err
	}
	if m.indexes == nil {
		m.indexes = make(map[string]int)
	}

	queue := m.responses[req.Model]
	if len(queue) == 0 {
		return &anthropic.MessageResponse{}, nil
	}
	idx := m.indexes[req.Model]
	if idx >= len(queue) {
		idx = len(queue) - 1
	}
	m.indexes[req.Model] = idx + 1

	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: queue[idx]}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}, nil
}
