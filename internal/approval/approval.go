// Package approval turns reviewed discovery drafts into canonical programme
// and role rows. All mutations run in one transaction per decision so a
// half-applied approval can never be observed.
package approval

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/careers-cli/internal/db"
	"github.com/sells-group/careers-cli/internal/model"
)

// ErrNotPending is returned when the targeted draft was already decided.
var ErrNotPending = errors.New("approval: draft is not pending")

// Engine applies review decisions.
type Engine struct {
	pool      db.Pool
	roleTypes *RoleTypeCache
}

// NewEngine creates an Engine on the given pool.
func NewEngine(pool db.Pool) *Engine {
	return &Engine{pool: pool, roleTypes: NewRoleTypeCache()}
}

// RoleTypes exposes the cache for out-of-band invalidation.
func (e *Engine) RoleTypes() *RoleTypeCache {
	return e.roleTypes
}

// Result summarizes what one approval changed.
type Result struct {
	ProgramID     int64 `json:"program_id"`
	RolesInserted int   `json:"roles_inserted"`
	RolesUpdated  int   `json:"roles_updated"`
	LegacyRemoved int   `json:"legacy_removed"`
}

// ApproveProgramDraft materializes a programme draft and every pending role
// draft attached to it. The replacement policy is source-based: once scraped
// roles land in a programme its legacy-imported rows are deleted, manually
// entered rows are never touched, and existing scraper rows are updated in
// place through their own role drafts.
func (e *Engine) ApproveProgramDraft(ctx context.Context, draftID int64) (*Result, error) {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "approval: begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	draft, err := lockProgramDraft(ctx, tx, draftID)
	if err != nil {
		return nil, err
	}

	programID, err := e.ensureProgram(ctx, tx, draft)
	if err != nil {
		return nil, err
	}

	roleDrafts, err := pendingRoleDrafts(ctx, tx, draftID)
	if err != nil {
		return nil, err
	}

	res := &Result{ProgramID: programID}
	var inserts [][]any
	for _, rd := range roleDrafts {
		if rd.Action == model.ActionNewRole {
			row, err := e.newRoleRow(ctx, tx, &rd, programID)
			if err != nil {
				return nil, err
			}
			inserts = append(inserts, row)
			continue
		}
		if err := applyRoleUpdate(ctx, tx, &rd); err != nil {
			return nil, err
		}
		res.RolesUpdated++
	}

	if len(inserts) > 0 {
		n, err := db.CopyFrom(ctx, tx, "program_roles", []string{
			"firm_id", "program_id", "role_type_id", "title", "url",
			"normalized_url", "canonical_name", "is_open", "source",
		}, inserts)
		if err != nil {
			return nil, err
		}
		res.RolesInserted = int(n)
	}

	// Scraped truth supersedes the legacy import for this programme.
	tag, err := tx.Exec(ctx,
		`DELETE FROM program_roles WHERE program_id = $1 AND source = 'legacy'`,
		programID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "approval: remove legacy roles")
	}
	res.LegacyRemoved = int(tag.RowsAffected())

	now := time.Now().UTC()
	if err := decideDraft(ctx, tx, "program_drafts", draftID, model.DraftStatusApproved, now); err != nil {
		return nil, err
	}
	for _, rd := range roleDrafts {
		if err := decideDraft(ctx, tx, "role_drafts", rd.ID, model.DraftStatusApproved, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "approval: commit")
	}

	zap.L().Info("approval: programme draft approved",
		zap.Int64("draft_id", draftID),
		zap.Int64("program_id", programID),
		zap.Int("inserted", res.RolesInserted),
		zap.Int("updated", res.RolesUpdated),
		zap.Int("legacy_removed", res.LegacyRemoved),
	)
	return res, nil
}

// ApproveRoleDraft applies a standalone role draft, one that updates an
// existing role rather than creating a programme.
func (e *Engine) ApproveRoleDraft(ctx context.Context, draftID int64) error {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "approval: begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rd, err := lockRoleDraft(ctx, tx, draftID)
	if err != nil {
		return err
	}
	if rd.ExistingRoleID == nil {
		return eris.Errorf("approval: role draft %d creates a new role, approve its programme draft instead", draftID)
	}

	if err := applyRoleUpdate(ctx, tx, rd); err != nil {
		return err
	}
	if err := decideDraft(ctx, tx, "role_drafts", draftID, model.DraftStatusApproved, time.Now().UTC()); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "approval: commit")
	}

	zap.L().Info("approval: role draft approved",
		zap.Int64("draft_id", draftID),
		zap.Int64("role_id", *rd.ExistingRoleID),
		zap.String("action", string(rd.Action)),
	)
	return nil
}

// DismissProgramDraft rejects a programme draft and every pending role draft
// attached to it. Dismissal is permanent: the identities involved are never
// proposed again.
func (e *Engine) DismissProgramDraft(ctx context.Context, draftID int64) error {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "approval: begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := lockProgramDraft(ctx, tx, draftID); err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := decideDraft(ctx, tx, "program_drafts", draftID, model.DraftStatusDismissed, now); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE role_drafts SET status = 'dismissed', decided_at = $1
		 WHERE program_draft_id = $2 AND status = 'pending'`,
		now, draftID,
	); err != nil {
		return eris.Wrap(err, "approval: dismiss attached role drafts")
	}

	return eris.Wrap(tx.Commit(ctx), "approval: commit")
}

// DismissRoleDraft rejects one role draft.
func (e *Engine) DismissRoleDraft(ctx context.Context, draftID int64) error {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "approval: begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := lockRoleDraft(ctx, tx, draftID); err != nil {
		return err
	}
	if err := decideDraft(ctx, tx, "role_drafts", draftID, model.DraftStatusDismissed, time.Now().UTC()); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "approval: commit")
}

// ensureProgram resolves the canonical programme for a draft: the linked
// existing programme when the suggestion matched, otherwise find-or-create by
// the programme's identity key.
func (e *Engine) ensureProgram(ctx context.Context, tx pgx.Tx, draft *model.ProgramDraft) (int64, error) {
	if draft.ExistingProgramID != nil {
		return *draft.ExistingProgramID, nil
	}

	var id int64
	err := tx.QueryRow(ctx,
		`INSERT INTO programs (firm_id, name, normalized_name, program_type, source)
		 VALUES ($1, $2, $3, $4, 'scraper')
		 ON CONFLICT (firm_id, normalized_name, program_type)
		 DO UPDATE SET updated_at = now()
		 RETURNING id`,
		draft.FirmID, draft.Name, draft.NormalizedName, string(draft.ProgramType),
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "approval: ensure program %q", draft.Name)
	}
	return id, nil
}

// newRoleRow builds the COPY row for a new role, resolving its role type
// through the cache.
func (e *Engine) newRoleRow(ctx context.Context, tx pgx.Tx, rd *model.RoleDraft, programID int64) ([]any, error) {
	roleTypeID, err := e.roleTypes.GetOrCreate(ctx, tx, rd.Title)
	if err != nil {
		return nil, err
	}
	return []any{
		rd.FirmID, programID, roleTypeID, rd.Title, rd.URL,
		rd.NormalizedURL, rd.CanonicalName, extractedIsOpen(rd.Data), "scraper",
	}, nil
}

// applyRoleUpdate brings an existing role in line with its draft. Reopening
// forces the role open and clears its close marker; a URL change otherwise
// carries whatever openness the extraction established.
func applyRoleUpdate(ctx context.Context, tx pgx.Tx, rd *model.RoleDraft) error {
	var tag pgconn.CommandTag
	var err error
	if rd.Action == model.ActionReopening {
		tag, err = tx.Exec(ctx,
			`UPDATE program_roles
			 SET title = $1, url = $2, normalized_url = $3, canonical_name = $4,
			     is_open = true, closed_at = NULL, updated_at = now()
			 WHERE id = $5`,
			rd.Title, rd.URL, rd.NormalizedURL, rd.CanonicalName, *rd.ExistingRoleID,
		)
	} else {
		tag, err = tx.Exec(ctx,
			`UPDATE program_roles
			 SET title = $1, url = $2, normalized_url = $3, canonical_name = $4,
			     is_open = $5, updated_at = now()
			 WHERE id = $6`,
			rd.Title, rd.URL, rd.NormalizedURL, rd.CanonicalName, extractedIsOpen(rd.Data), *rd.ExistingRoleID,
		)
	}
	if err != nil {
		return eris.Wrapf(err, "approval: update role %d", *rd.ExistingRoleID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("approval: role %d gone", *rd.ExistingRoleID)
	}
	return nil
}

// extractedIsOpen pulls the three-valued openness out of the draft's stored
// extraction record.
func extractedIsOpen(data json.RawMessage) *bool {
	if len(data) == 0 {
		return nil
	}
	var extracted model.ExtractedRole
	if err := json.Unmarshal(data, &extracted); err != nil {
		return nil
	}
	return extracted.IsOpen
}

func lockProgramDraft(ctx context.Context, tx pgx.Tx, draftID int64) (*model.ProgramDraft, error) {
	var d model.ProgramDraft
	err := tx.QueryRow(ctx,
		`SELECT id, firm_id, run_id, name, normalized_name, program_type, existing_program_id, status
		 FROM program_drafts WHERE id = $1 FOR UPDATE`,
		draftID,
	).Scan(&d.ID, &d.FirmID, &d.RunID, &d.Name, &d.NormalizedName, &d.ProgramType,
		&d.ExistingProgramID, &d.Status)
	if err != nil {
		return nil, eris.Wrapf(err, "approval: load program draft %d", draftID)
	}
	if d.Status != model.DraftStatusPending {
		return nil, ErrNotPending
	}
	return &d, nil
}

func lockRoleDraft(ctx context.Context, tx pgx.Tx, draftID int64) (*model.RoleDraft, error) {
	var d model.RoleDraft
	err := tx.QueryRow(ctx,
		`SELECT id, firm_id, run_id, program_draft_id, existing_role_id, action, title, url,
		        normalized_url, canonical_name, url_changed, data, status
		 FROM role_drafts WHERE id = $1 FOR UPDATE`,
		draftID,
	).Scan(&d.ID, &d.FirmID, &d.RunID, &d.ProgramDraftID, &d.ExistingRoleID, &d.Action,
		&d.Title, &d.URL, &d.NormalizedURL, &d.CanonicalName, &d.URLChanged, &d.Data, &d.Status)
	if err != nil {
		return nil, eris.Wrapf(err, "approval: load role draft %d", draftID)
	}
	if d.Status != model.DraftStatusPending {
		return nil, ErrNotPending
	}
	return &d, nil
}

func pendingRoleDrafts(ctx context.Context, tx pgx.Tx, programDraftID int64) ([]model.RoleDraft, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, firm_id, run_id, program_draft_id, existing_role_id, action, title, url,
		        normalized_url, canonical_name, url_changed, data, status
		 FROM role_drafts
		 WHERE program_draft_id = $1 AND status = 'pending'
		 ORDER BY id`,
		programDraftID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "approval: list attached role drafts")
	}
	defer rows.Close()

	var drafts []model.RoleDraft
	for rows.Next() {
		var d model.RoleDraft
		if err := rows.Scan(&d.ID, &d.FirmID, &d.RunID, &d.ProgramDraftID, &d.ExistingRoleID, &d.Action,
			&d.Title, &d.URL, &d.NormalizedURL, &d.CanonicalName, &d.URLChanged, &d.Data, &d.Status); err != nil {
			return nil, eris.Wrap(err, "approval: scan role draft")
		}
		drafts = append(drafts, d)
	}
	return drafts, eris.Wrap(rows.Err(), "approval: iterate role drafts")
}

func decideDraft(ctx context.Context, tx pgx.Tx, table string, id int64, status model.DraftStatus, at time.Time) error {
	var sql string
	switch table {
	case "program_drafts":
		sql = `UPDATE program_drafts SET status = $1, decided_at = $2 WHERE id = $3`
	case "role_drafts":
		sql = `UPDATE role_drafts SET status = $1, decided_at = $2 WHERE id = $3`
	default:
		return eris.Errorf("approval: unknown draft table %s", table)
	}
	if _, err := tx.Exec(ctx, sql, string(status), at, id); err != nil {
		return eris.Wrapf(err, "approval: decide %s %d", table, id)
	}
	return nil
}
