package resolve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/careers-cli/internal/model"
	"github.com/sells-group/careers-cli/internal/roleindex"
)

type stubReader struct {
	roles     []model.ExistingRole
	dismissed []model.DismissedRef
}

func (s *stubReader) ListFirmRoles(_ context.Context, _ int64) ([]model.ExistingRole, error) {
	return s.roles, nil
}

func (s *stubReader) ListDismissed(_ context.Context, _ int64) ([]model.DismissedRef, error) {
	return s.dismissed, nil
}

func boolPtr(b bool) *bool { return &b }

func buildIndex(t *testing.T, roles []model.ExistingRole, dismissed []model.DismissedRef) *roleindex.Index {
	t.Helper()
	return roleindex.Build(context.Background(), &stubReader{roles: roles, dismissed: dismissed}, 1)
}

func TestResolve_DismissedBeatsEverything(t *testing.T) {
	// The same URL also matches an existing open role; dismissal must win.
	idx := buildIndex(t,
		[]model.ExistingRole{
			{ID: 1, URL: "https://acme.com/jobs/1", Title: "Summer Analyst", IsOpen: boolPtr(true)},
		},
		[]model.DismissedRef{
			{NormalizedURL: "https://acme.com/jobs/1"},
		},
	)

	res := Resolve("https://acme.com/jobs/1?utm=x", "Summer Analyst", idx)
	assert.Equal(t, model.ActionSkip, res.Action)
	assert.Nil(t, res.ExistingRoleID)
}

func TestResolve_DismissedByCanonicalName(t *testing.T) {
	idx := buildIndex(t, nil, []model.DismissedRef{
		{CanonicalName: "summer analyst london"},
	})

	res := Resolve("https://acme.com/jobs/new", "2026 Summer Analyst - London", idx)
	assert.Equal(t, model.ActionSkip, res.Action)
}

func TestResolve_URLMatchOpen(t *testing.T) {
	idx := buildIndex(t, []model.ExistingRole{
		{ID: 4, URL: "https://acme.com/jobs/4", Title: "Quant Intern", IsOpen: boolPtr(true)},
	}, nil)

	res := Resolve("https://acme.com/jobs/4?session=abc#apply", "Quant Intern", idx)
	assert.Equal(t, model.ActionSkip, res.Action)
	require.NotNil(t, res.ExistingRoleID)
	assert.Equal(t, int64(4), *res.ExistingRoleID)
}

func TestResolve_URLMatchClosed(t *testing.T) {
	idx := buildIndex(t, []model.ExistingRole{
		{ID: 4, URL: "https://acme.com/jobs/4", Title: "Quant Intern", IsOpen: boolPtr(false)},
	}, nil)

	res := Resolve("https://acme.com/jobs/4", "Quant Intern", idx)
	assert.Equal(t, model.ActionReopening, res.Action)
	assert.False(t, res.URLChanged)
	require.NotNil(t, res.ExistingRoleID)
	assert.Equal(t, int64(4), *res.ExistingRoleID)
}

func TestResolve_URLMatchUnknownOpenness(t *testing.T) {
	idx := buildIndex(t, []model.ExistingRole{
		{ID: 4, URL: "https://acme.com/jobs/4", Title: "Quant Intern", IsOpen: nil},
	}, nil)

	res := Resolve("https://acme.com/jobs/4", "Quant Intern", idx)
	assert.Equal(t, model.ActionURLChanged, res.Action)
	assert.False(t, res.URLChanged)
}

func TestResolve_NameMatchClosed(t *testing.T) {
	idx := buildIndex(t, []model.ExistingRole{
		{ID: 8, URL: "https://acme.com/jobs/old-path", Title: "2025 Summer Analyst", IsOpen: boolPtr(false)},
	}, nil)

	res := Resolve("https://acme.com/jobs/new-path", "2026 Summer Analyst", idx)
	assert.Equal(t, model.ActionReopening, res.Action)
	assert.True(t, res.URLChanged)
	require.NotNil(t, res.ExistingRoleID)
	assert.Equal(t, int64(8), *res.ExistingRoleID)
}

func TestResolve_NameMatchOpenOrUnknown(t *testing.T) {
	for name, isOpen := range map[string]*bool{"open": boolPtr(true), "unknown": nil} {
		t.Run(name, func(t *testing.T) {
			idx := buildIndex(t, []model.ExistingRole{
				{ID: 8, URL: "https://acme.com/jobs/old-path", Title: "Summer Analyst", IsOpen: isOpen},
			}, nil)

			res := Resolve("https://acme.com/jobs/new-path", "Summer Analyst", idx)
			assert.Equal(t, model.ActionURLChanged, res.Action)
			assert.True(t, res.URLChanged)
		})
	}
}

func TestResolve_URLMatchBeatsNameMatch(t *testing.T) {
	// URL matches role 1 (open → SKIP); name matches role 2 (closed →
	// REOPENING). The URL branch must win.
	idx := buildIndex(t, []model.ExistingRole{
		{ID: 1, URL: "https://acme.com/jobs/1", Title: "Different Title", IsOpen: boolPtr(true)},
		{ID: 2, URL: "https://acme.com/jobs/2", Title: "Summer Analyst", IsOpen: boolPtr(false)},
	}, nil)

	res := Resolve("https://acme.com/jobs/1", "Summer Analyst", idx)
	assert.Equal(t, model.ActionSkip, res.Action)
}

func TestResolve_NoMatch(t *testing.T) {
	idx := buildIndex(t, nil, nil)

	res := Resolve("https://acme.com/jobs/brand-new", "Tech Spring Week", idx)
	assert.Equal(t, model.ActionNewRole, res.Action)
	assert.Nil(t, res.ExistingRoleID)
	assert.False(t, res.URLChanged)
}

// A legacy role with unknown openness and no stored URL is only reachable via
// the name branch, so its unknown openness is never reflected in a decision:
// it resolves to URL_CHANGED here, never to a SKIP. Inherited behavior.
func TestResolve_LegacyUnknownOpennessWithoutURL(t *testing.T) {
	idx := buildIndex(t, []model.ExistingRole{
		{ID: 3, URL: "", Title: "Graduate Scheme", IsOpen: nil},
	}, nil)

	res := Resolve("https://acme.com/jobs/grad", "Graduate Scheme", idx)
	assert.Equal(t, model.ActionURLChanged, res.Action)
	assert.True(t, res.URLChanged)
	require.NotNil(t, res.ExistingRoleID)
	assert.Equal(t, int64(3), *res.ExistingRoleID)
}
