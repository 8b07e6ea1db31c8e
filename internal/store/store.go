package store

import (
	"context"
	"time"

	"github.com/sells-group/careers-cli/internal/db"
	"github.com/sells-group/careers-cli/internal/model"
)

// RunFilter specifies criteria for listing scrape runs.
type RunFilter struct {
	FirmID       int64           `json:"firm_id,omitempty"`
	ListingURL   string          `json:"listing_url,omitempty"`
	Status       model.RunStatus `json:"status,omitempty"`
	StartedAfter time.Time       `json:"started_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the discovery pipeline.
type Store interface {
	// Role index inputs
	ListFirmRoles(ctx context.Context, firmID int64) ([]model.ExistingRole, error)
	ListDismissed(ctx context.Context, firmID int64) ([]model.DismissedRef, error)
	ListFirmPrograms(ctx context.Context, firmID int64) ([]model.Program, error)

	// Drafts. Save* are find-or-create: when an equivalent pending draft
	// already exists the stored one is returned and created is false.
	SaveProgramDraft(ctx context.Context, draft *model.ProgramDraft) (*model.ProgramDraft, bool, error)
	SaveRoleDraft(ctx context.Context, draft *model.RoleDraft) (*model.RoleDraft, bool, error)
	GetProgramDraft(ctx context.Context, id int64) (*model.ProgramDraft, error)
	ListPendingProgramDrafts(ctx context.Context, firmID int64) ([]model.ProgramDraft, error)
	ListPendingRoleDrafts(ctx context.Context, firmID int64) ([]model.RoleDraft, error)

	// Runs
	CreateRun(ctx context.Context, firmID int64, listingURL string) (*model.ScrapeRun, error)
	CompleteRun(ctx context.Context, runID string, metrics *model.RunMetrics) error
	FailRun(ctx context.Context, runID string, errMsg string, metrics *model.RunMetrics) error
	GetRun(ctx context.Context, runID string) (*model.ScrapeRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.ScrapeRun, error)
	PruneRunHistory(ctx context.Context, listingURL string, keep int) (int, error)

	// Lifecycle
	Pool() db.Pool
	Migrate(ctx context.Context) error
	Close() error
}
