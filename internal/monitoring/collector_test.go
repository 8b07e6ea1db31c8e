package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/careers-cli/internal/db"
	"github.com/sells-group/careers-cli/internal/model"
	"github.com/sells-group/careers-cli/internal/store"
)

// mockStore implements store.Store for testing.
type mockStore struct {
	runs    []model.ScrapeRun
	listErr error
}

func (m *mockStore) ListRuns(_ context.Context, filter store.RunFilter) ([]model.ScrapeRun, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var filtered []model.ScrapeRun
	for _, r := range m.runs {
		if !filter.StartedAfter.IsZero() && r.StartedAt.Before(filter.StartedAfter) {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered, nil
}

// Unused store methods — satisfy the interface.
func (m *mockStore) ListFirmRoles(context.Context, int64) ([]model.ExistingRole, error) {
	return nil, nil
}
func (m *mockStore) ListDismissed(context.Context, int64) ([]model.DismissedRef, error) {
	return nil, nil
}
func (m *mockStore) ListFirmPrograms(context.Context, int64) ([]model.Program, error) {
	return nil, nil
}
func (m *mockStore) SaveProgramDraft(context.Context, *model.ProgramDraft) (*model.ProgramDraft, bool, error) {
	return nil, false, nil
}
func (m *mockStore) SaveRoleDraft(context.Context, *model.RoleDraft) (*model.RoleDraft, bool, error) {
	return nil, false, nil
}
func (m *mockStore) GetProgramDraft(context.Context, int64) (*model.ProgramDraft, error) {
	return nil, nil
}
func (m *mockStore) ListPendingProgramDrafts(context.Context, int64) ([]model.ProgramDraft, error) {
	return nil, nil
}
func (m *mockStore) ListPendingRoleDrafts(context.Context, int64) ([]model.RoleDraft, error) {
	return nil, nil
}
func (m *mockStore) CreateRun(context.Context, int64, string) (*model.ScrapeRun, error) {
	return nil, nil
}
func (m *mockStore) CompleteRun(context.Context, string, *model.RunMetrics) error     { return nil }
func (m *mockStore) FailRun(context.Context, string, string, *model.RunMetrics) error { return nil }
func (m *mockStore) GetRun(context.Context, string) (*model.ScrapeRun, error)         { return nil, nil }
func (m *mockStore) PruneRunHistory(context.Context, string, int) (int, error)        { return 0, nil }
func (m *mockStore) Pool() db.Pool                                                    { return nil }
func (m *mockStore) Migrate(context.Context) error                                    { return nil }
func (m *mockStore) Close() error                                                     { return nil }

func TestCollector_Collect(t *testing.T) {
	now := time.Now().UTC()
	st := &mockStore{
		runs: []model.ScrapeRun{
			{
				Status:    model.RunStatusCompleted,
				StartedAt: now.Add(-1 * time.Hour),
				Metrics: &model.RunMetrics{
					RolesFound:      10,
					RolesNew:        2,
					RolesFailed:     1,
					TotalTokensUsed: 4000,
					TotalCostUSD:    0.8,
				},
			},
			{
				Status:    model.RunStatusFailed,
				StartedAt: now.Add(-2 * time.Hour),
			},
			{
				Status:    model.RunStatusQueued,
				StartedAt: now.Add(-10 * time.Minute),
			},
			{
				// Outside the lookback window, must not count.
				Status:    model.RunStatusFailed,
				StartedAt: now.Add(-48 * time.Hour),
				Metrics:   &model.RunMetrics{TotalCostUSD: 99},
			},
		},
	}

	snap, err := NewCollector(st).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 3, snap.RunsTotal)
	assert.Equal(t, 1, snap.RunsCompleted)
	assert.Equal(t, 1, snap.RunsFailed)
	assert.Equal(t, 1, snap.RunsQueued)
	assert.InDelta(t, 0.5, snap.FailRate, 1e-9)
	assert.InDelta(t, 0.8, snap.CostUSD, 1e-9)
	assert.Equal(t, 10, snap.RolesFound)
	assert.Equal(t, 2, snap.RolesNew)
	assert.Equal(t, 1, snap.RolesFailed)
	assert.Equal(t, 4000/3, snap.AvgTokens)
	assert.Equal(t, 24, snap.LookbackHours)
}

func TestCollector_Collect_Empty(t *testing.T) {
	snap, err := NewCollector(&mockStore{}).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Zero(t, snap.RunsTotal)
	assert.Zero(t, snap.FailRate)
	assert.Zero(t, snap.AvgTokens)
}

func TestCollector_Collect_ListError(t *testing.T) {
	st := &mockStore{listErr: assert.AnError}
	_, err := NewCollector(st).Collect(context.Background(), 24)
	assert.Error(t, err)
}
