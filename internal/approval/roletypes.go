package approval

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/careers-cli/internal/db"
)

// RoleTypeCache memoizes role-type name lookups. The catalog is tiny and
// append-only in practice, but reviewers can merge entries out of band, so
// the cache is explicitly invalidatable rather than trusted forever.
type RoleTypeCache struct {
	mu     sync.Mutex
	byName map[string]int64
}

// NewRoleTypeCache creates an empty cache.
func NewRoleTypeCache() *RoleTypeCache {
	return &RoleTypeCache{byName: make(map[string]int64)}
}

// GetOrCreate returns the id for a role-type name, creating the catalog row
// on first sight. The querier is whatever the caller is running in, usually
// an open transaction.
func (c *RoleTypeCache) GetOrCreate(ctx context.Context, q db.Pool, name string) (int64, error) {
	c.mu.Lock()
	if id, ok := c.byName[name]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	var id int64
	err := q.QueryRow(ctx, `SELECT id FROM role_types WHERE name = $1`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		err = q.QueryRow(ctx,
			`INSERT INTO role_types (name) VALUES ($1)
			 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			 RETURNING id`,
			name,
		).Scan(&id)
	}
	if err != nil {
		return 0, eris.Wrapf(err, "approval: role type %q", name)
	}

	c.mu.Lock()
	c.byName[name] = id
	c.mu.Unlock()
	return id, nil
}

// Invalidate drops all cached entries. Call after merging or renaming role
// types outside the engine.
func (c *RoleTypeCache) Invalidate() {
	c.mu.Lock()
	c.byName = make(map[string]int64)
	c.mu.Unlock()
}
