package model

import (
	"encoding/json"
	"time"
)

// DraftStatus is the review lifecycle of a discovery draft.
type DraftStatus string

const (
	DraftStatusPending   DraftStatus = "pending"
	DraftStatusApproved  DraftStatus = "approved"
	DraftStatusDismissed DraftStatus = "dismissed"
)

// ProgramDraft is a pending proposal to create (or link a role into) a
// programme. At most one pending draft exists per (firm, normalized name,
// programme type); the store enforces that with a partial unique index.
type ProgramDraft struct {
	ID                int64       `json:"id" db:"id"`
	FirmID            int64       `json:"firm_id" db:"firm_id"`
	RunID             string      `json:"run_id" db:"run_id"`
	Name              string      `json:"name" db:"name"`
	NormalizedName    string      `json:"normalized_name" db:"normalized_name"`
	ProgramType       ProgramType `json:"program_type" db:"program_type"`
	ExistingProgramID *int64      `json:"existing_program_id,omitempty" db:"existing_program_id"`
	Confidence        float64     `json:"confidence" db:"confidence"`
	Rationale         string      `json:"rationale,omitempty" db:"rationale"`
	Status            DraftStatus `json:"status" db:"status"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`
	DecidedAt         *time.Time  `json:"decided_at,omitempty" db:"decided_at"`
}

// RoleDraft is a pending proposal to insert or update one role. Data carries
// the structured extraction result verbatim for the reviewer.
type RoleDraft struct {
	ID             int64           `json:"id" db:"id"`
	FirmID         int64           `json:"firm_id" db:"firm_id"`
	RunID          string          `json:"run_id" db:"run_id"`
	ProgramDraftID *int64          `json:"program_draft_id,omitempty" db:"program_draft_id"`
	ExistingRoleID *int64          `json:"existing_role_id,omitempty" db:"existing_role_id"`
	Action         Action          `json:"action" db:"action"`
	Title          string          `json:"title" db:"title"`
	URL            string          `json:"url" db:"url"`
	NormalizedURL  string          `json:"normalized_url" db:"normalized_url"`
	CanonicalName  string          `json:"canonical_name" db:"canonical_name"`
	URLChanged     bool            `json:"url_changed" db:"url_changed"`
	Data           json.RawMessage `json:"data,omitempty" db:"data"`
	Status         DraftStatus     `json:"status" db:"status"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	DecidedAt      *time.Time      `json:"decided_at,omitempty" db:"decided_at"`
}
