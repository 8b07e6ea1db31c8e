package model

// Action classifies what a discovered link means relative to the firm's known
// roles. Produced by the resolver, carried on role drafts, and consumed by the
// approval engine.
type Action string

const (
	// ActionSkip: dismissed, or already tracked and open. Never persisted.
	ActionSkip Action = "SKIP"
	// ActionNewRole: no existing role matches by URL or canonical name.
	ActionNewRole Action = "NEW_ROLE"
	// ActionURLChanged: an existing role matches but its stored state is
	// stale or its URL moved; re-extraction establishes truth.
	ActionURLChanged Action = "URL_CHANGED"
	// ActionReopening: an existing closed role is posted again.
	ActionReopening Action = "REOPENING"
)

// CandidateLink is one classified job link from the list phase. Ephemeral:
// it exists only for the duration of a run and becomes a role draft only when
// Action != SKIP.
type CandidateLink struct {
	URL            string  `json:"url"`
	Title          string  `json:"title"`
	Confidence     float64 `json:"confidence"`
	Action         Action  `json:"action"`
	ExistingRoleID *int64  `json:"existing_role_id,omitempty"`
	URLChanged     bool    `json:"url_changed"`
}

// TitleURL is one title/url pair seen on a listing page, kept for
// programme-name pattern inference during the suggestion call.
type TitleURL struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}
