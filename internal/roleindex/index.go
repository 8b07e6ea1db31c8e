// Package roleindex builds the per-run, read-only snapshot of a firm's known
// roles and dismissed candidates, indexed by normalized URL and by canonical
// name. The snapshot is immutable after Build and safe to share across
// concurrent detail workers.
package roleindex

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/careers-cli/internal/identity"
	"github.com/sells-group/careers-cli/internal/model"
)

// Reader is the subset of the store the index is built from.
type Reader interface {
	ListFirmRoles(ctx context.Context, firmID int64) ([]model.ExistingRole, error)
	ListDismissed(ctx context.Context, firmID int64) ([]model.DismissedRef, error)
}

// Index holds the lookup structures for one firm. Zero-value lookups return
// no matches, so a degraded index behaves as "nothing known".
type Index struct {
	byURL         map[string]*model.ExistingRole
	byName        map[string]*model.ExistingRole
	dismissedURL  map[string]struct{}
	dismissedName map[string]struct{}

	// Degraded is set when a backing read failed and the corresponding set
	// is empty. Discovery proceeds; callers surface it in logs and metrics.
	Degraded bool
}

// Build reads the firm's roles and dismissed drafts once and indexes them.
// Read failures degrade to empty sets rather than failing the run: a broken
// existing-role check must not block discovery, only make it over-eager.
func Build(ctx context.Context, r Reader, firmID int64) *Index {
	idx := &Index{
		byURL:         make(map[string]*model.ExistingRole),
		byName:        make(map[string]*model.ExistingRole),
		dismissedURL:  make(map[string]struct{}),
		dismissedName: make(map[string]struct{}),
	}

	roles, err := r.ListFirmRoles(ctx, firmID)
	if err != nil {
		zap.L().Warn("roleindex: listing firm roles failed, continuing with empty index",
			zap.Int64("firm_id", firmID),
			zap.Error(err),
		)
		idx.Degraded = true
	}
	for i := range roles {
		role := &roles[i]
		if role.NormalizedURL == "" && role.URL != "" {
			role.NormalizedURL = identity.NormalizeURL(role.URL)
		}
		if role.CanonicalName == "" {
			role.CanonicalName = identity.CanonicalName(role.Title)
		}
		// Legacy rows without a URL are reachable by canonical name only.
		if role.NormalizedURL != "" {
			if _, dup := idx.byURL[role.NormalizedURL]; !dup {
				idx.byURL[role.NormalizedURL] = role
			}
		}
		if role.CanonicalName != "" {
			if _, dup := idx.byName[role.CanonicalName]; !dup {
				idx.byName[role.CanonicalName] = role
			}
		}
	}

	dismissed, err := r.ListDismissed(ctx, firmID)
	if err != nil {
		zap.L().Warn("roleindex: listing dismissed drafts failed, continuing with empty set",
			zap.Int64("firm_id", firmID),
			zap.Error(err),
		)
		idx.Degraded = true
	}
	for _, d := range dismissed {
		if d.NormalizedURL != "" {
			idx.dismissedURL[d.NormalizedURL] = struct{}{}
		}
		if d.CanonicalName != "" {
			idx.dismissedName[d.CanonicalName] = struct{}{}
		}
	}

	return idx
}

// RoleByURL returns the existing role indexed under a normalized URL.
func (idx *Index) RoleByURL(normalizedURL string) (*model.ExistingRole, bool) {
	r, ok := idx.byURL[normalizedURL]
	return r, ok
}

// RoleByName returns the existing role indexed under a canonical name.
func (idx *Index) RoleByName(canonicalName string) (*model.ExistingRole, bool) {
	r, ok := idx.byName[canonicalName]
	return r, ok
}

// Dismissed reports whether either identity key belongs to a previously
// rejected candidate.
func (idx *Index) Dismissed(normalizedURL, canonicalName string) bool {
	if normalizedURL != "" {
		if _, ok := idx.dismissedURL[normalizedURL]; ok {
			return true
		}
	}
	if canonicalName != "" {
		if _, ok := idx.dismissedName[canonicalName]; ok {
			return true
		}
	}
	return false
}

// Size returns the number of URL-indexed and name-indexed roles.
func (idx *Index) Size() (byURL, byName int) {
	return len(idx.byURL), len(idx.byName)
}
