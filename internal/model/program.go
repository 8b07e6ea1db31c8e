// Package model defines the domain types shared across the discovery pipeline.
package model

import "time"

// Source identifies where a canonical record originated. The approval engine's
// replacement policy keys off this: legacy rows are deleted once scraped data
// supersedes them, manual rows are never deleted, scraper rows are diffed.
type Source string

const (
	SourceScraper Source = "scraper"
	SourceManual  Source = "manual"
	SourceLegacy  Source = "legacy"
)

// ProgramType is a coarse bucket for recruiting intakes.
type ProgramType string

const (
	ProgramTypeInternship ProgramType = "internship"
	ProgramTypeGraduate   ProgramType = "graduate"
	ProgramTypeInsight    ProgramType = "insight"
	ProgramTypeOther      ProgramType = "other"
)

// Program is a named recruiting intake grouping one or more roles.
type Program struct {
	ID             int64       `json:"id" db:"id"`
	FirmID         int64       `json:"firm_id" db:"firm_id"`
	Name           string      `json:"name" db:"name"`
	NormalizedName string      `json:"normalized_name" db:"normalized_name"`
	ProgramType    ProgramType `json:"program_type" db:"program_type"`
	Source         Source      `json:"source" db:"source"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`
}

// RoleType is an entry in the global role catalog ("Summer Analyst",
// "Off-Cycle Intern"). Program roles reference it by id.
type RoleType struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// ExistingRole is the read-only snapshot of one previously known role used by
// the action resolver. IsOpen is three-valued: nil means openness was never
// established. Legacy rows may lack a URL, in which case they are matchable by
// canonical name only and Title is synthesized from program/role-type names.
type ExistingRole struct {
	ID            int64  `json:"id" db:"id"`
	ProgramID     int64  `json:"program_id" db:"program_id"`
	RoleTypeID    int64  `json:"role_type_id" db:"role_type_id"`
	URL           string `json:"url" db:"url"`
	NormalizedURL string `json:"normalized_url" db:"normalized_url"`
	CanonicalName string `json:"canonical_name" db:"canonical_name"`
	IsOpen        *bool  `json:"is_open" db:"is_open"`
	Title         string `json:"title" db:"title"`
	Source        Source `json:"source" db:"source"`
}

// DismissedRef is the identity of a previously rejected discovery. Human
// rejection is sticky: a candidate matching either key is never re-proposed.
type DismissedRef struct {
	NormalizedURL string `json:"normalized_url" db:"normalized_url"`
	CanonicalName string `json:"canonical_name" db:"canonical_name"`
}
