// Package resolve implements the action state machine: given one discovered
// link and the firm's role index, decide whether the link is new, unchanged,
// moved, or a reopening.
package resolve

import (
	"github.com/sells-group/careers-cli/internal/identity"
	"github.com/sells-group/careers-cli/internal/model"
	"github.com/sells-group/careers-cli/internal/roleindex"
)

// Resolution is the resolver's decision for one candidate link.
type Resolution struct {
	Action         model.Action
	ExistingRoleID *int64
	URLChanged     bool
}

// Resolve classifies one (url, title) candidate against the index.
//
// Decision order, first match wins:
//  1. dismissed by URL or name      → SKIP (rejection is sticky, beats everything)
//  2. URL matches an existing role  → open: SKIP; closed: REOPENING;
//     unknown openness: URL_CHANGED (forces re-extraction)
//  3. name matches an existing role → closed: REOPENING (url_changed);
//     otherwise: URL_CHANGED
//  4. no match                      → NEW_ROLE
//
// The ordering is intentional: dismissal beats existence, URL match beats
// name-only match, and within a URL match open beats closed beats unknown.
// A role with unknown openness and no stored URL can only be reached through
// the name branch, so it never resolves to a decision that reflects unknown
// openness; that asymmetry is deliberate and pinned by tests.
func Resolve(rawURL, title string, idx *roleindex.Index) Resolution {
	normURL := identity.NormalizeURL(rawURL)
	canonName := identity.CanonicalName(title)

	if idx.Dismissed(normURL, canonName) {
		return Resolution{Action: model.ActionSkip}
	}

	if role, ok := idx.RoleByURL(normURL); ok {
		switch {
		case role.IsOpen != nil && *role.IsOpen:
			return Resolution{Action: model.ActionSkip, ExistingRoleID: &role.ID}
		case role.IsOpen != nil && !*role.IsOpen:
			return Resolution{Action: model.ActionReopening, ExistingRoleID: &role.ID}
		default:
			return Resolution{Action: model.ActionURLChanged, ExistingRoleID: &role.ID}
		}
	}

	if role, ok := idx.RoleByName(canonName); ok {
		if role.IsOpen != nil && !*role.IsOpen {
			return Resolution{Action: model.ActionReopening, ExistingRoleID: &role.ID, URLChanged: true}
		}
		return Resolution{Action: model.ActionURLChanged, ExistingRoleID: &role.ID, URLChanged: true}
	}

	return Resolution{Action: model.ActionNewRole}
}
