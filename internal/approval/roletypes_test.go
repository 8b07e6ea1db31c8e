package approval

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return mock
}

func TestRoleTypeCache_CachesLookups(t *testing.T) {
	mock := newMockPool(t)
	cache := NewRoleTypeCache()

	mock.ExpectQuery(`SELECT id FROM role_types WHERE name = \$1`).
		WithArgs("Summer Analyst").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))

	id, err := cache.GetOrCreate(context.Background(), mock, "Summer Analyst")
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)

	// Second lookup is served from the cache, no query expected.
	id, err = cache.GetOrCreate(context.Background(), mock, "Summer Analyst")
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleTypeCache_CreatesOnFirstSight(t *testing.T) {
	mock := newMockPool(t)
	cache := NewRoleTypeCache()

	mock.ExpectQuery(`SELECT id FROM role_types WHERE name = \$1`).
		WithArgs("Off-Cycle Intern").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO role_types`).
		WithArgs("Off-Cycle Intern").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(9)))

	id, err := cache.GetOrCreate(context.Background(), mock, "Off-Cycle Intern")
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleTypeCache_Invalidate(t *testing.T) {
	mock := newMockPool(t)
	cache := NewRoleTypeCache()

	mock.ExpectQuery(`SELECT id FROM role_types WHERE name = \$1`).
		WithArgs("Summer Analyst").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectQuery(`SELECT id FROM role_types WHERE name = \$1`).
		WithArgs("Summer Analyst").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(4)))

	_, err := cache.GetOrCreate(context.Background(), mock, "Summer Analyst")
	require.NoError(t, err)

	cache.Invalidate()

	// Merged out of band: the fresh lookup sees the surviving row.
	id, err := cache.GetOrCreate(context.Background(), mock, "Summer Analyst")
	require.NoError(t, err)
	assert.Equal(t, int64(4), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}
