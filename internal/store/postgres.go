package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/careers-cli/internal/db"
	"github.com/sells-group/careers-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgresFromPool wraps an existing pool. The caller keeps ownership of
// the pool's lifecycle; Close on the returned store is a no-op.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":   `INSERT INTO scrape_runs (id, firm_id, listing_url, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
	"complete_run": `UPDATE scrape_runs SET status = $1, metrics = $2, completed_at = $3 WHERE id = $4`,
	"get_run":      `SELECT id, firm_id, listing_url, status, metrics, error, started_at, completed_at FROM scrape_runs WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (the approval engine runs its own transactions).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS role_types (
	id   BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS programs (
	id              BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	firm_id         BIGINT NOT NULL,
	name            TEXT NOT NULL,
	normalized_name TEXT NOT NULL,
	program_type    TEXT NOT NULL,
	source          TEXT NOT NULL DEFAULT 'scraper',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_programs_firm_name_type
	ON programs(firm_id, normalized_name, program_type);

CREATE TABLE IF NOT EXISTS program_roles (
	id             BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	firm_id        BIGINT NOT NULL,
	program_id     BIGINT NOT NULL REFERENCES programs(id) ON DELETE CASCADE,
	role_type_id   BIGINT NOT NULL REFERENCES role_types(id),
	title          TEXT NOT NULL DEFAULT '',
	url            TEXT NOT NULL DEFAULT '',
	normalized_url TEXT NOT NULL DEFAULT '',
	canonical_name TEXT NOT NULL,
	is_open        BOOLEAN,
	source         TEXT NOT NULL DEFAULT 'scraper',
	closed_at      TIMESTAMPTZ,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_program_roles_firm ON program_roles(firm_id);
CREATE INDEX IF NOT EXISTS idx_program_roles_program ON program_roles(program_id);

CREATE TABLE IF NOT EXISTS program_drafts (
	id                  BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	firm_id             BIGINT NOT NULL,
	run_id              TEXT NOT NULL,
	name                TEXT NOT NULL,
	normalized_name     TEXT NOT NULL,
	program_type        TEXT NOT NULL,
	existing_program_id BIGINT REFERENCES programs(id),
	confidence          DOUBLE PRECISION NOT NULL DEFAULT 0,
	rationale           TEXT NOT NULL DEFAULT '',
	status              TEXT NOT NULL DEFAULT 'pending',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	decided_at          TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_program_drafts_pending
	ON program_drafts(firm_id, normalized_name, program_type)
	WHERE status = 'pending';

CREATE TABLE IF NOT EXISTS role_drafts (
	id               BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	firm_id          BIGINT NOT NULL,
	run_id           TEXT NOT NULL,
	program_draft_id BIGINT REFERENCES program_drafts(id),
	existing_role_id BIGINT REFERENCES program_roles(id),
	action           TEXT NOT NULL,
	title            TEXT NOT NULL,
	url              TEXT NOT NULL DEFAULT '',
	normalized_url   TEXT NOT NULL DEFAULT '',
	canonical_name   TEXT NOT NULL,
	url_changed      BOOLEAN NOT NULL DEFAULT false,
	data             JSONB,
	status           TEXT NOT NULL DEFAULT 'pending',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	decided_at       TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_role_drafts_pending_role
	ON role_drafts(firm_id, existing_role_id)
	WHERE status = 'pending' AND existing_role_id IS NOT NULL;

CREATE UNIQUE INDEX IF NOT EXISTS uq_role_drafts_pending_url
	ON role_drafts(firm_id, normalized_url)
	WHERE status = 'pending' AND existing_role_id IS NULL AND normalized_url <> '';

CREATE INDEX IF NOT EXISTS idx_role_drafts_firm_status ON role_drafts(firm_id, status);
CREATE INDEX IF NOT EXISTS idx_role_drafts_program_draft ON role_drafts(program_draft_id);

CREATE TABLE IF NOT EXISTS scrape_runs (
	id           TEXT PRIMARY KEY,
	firm_id      BIGINT NOT NULL,
	listing_url  TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	metrics      JSONB,
	error        TEXT NOT NULL DEFAULT '',
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_scrape_runs_listing ON scrape_runs(listing_url, started_at DESC);
CREATE INDEX IF NOT EXISTS idx_scrape_runs_firm ON scrape_runs(firm_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// ListFirmRoles returns every known role for a firm as resolver input. Rows
// without a stored title (legacy imports) have one synthesized from the
// programme and role-type names so the reviewer always sees something legible.
func (s *PostgresStore) ListFirmRoles(ctx context.Context, firmID int64) ([]model.ExistingRole, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.id, r.program_id, r.role_type_id, r.url, r.normalized_url,
		        r.canonical_name, r.is_open,
		        COALESCE(NULLIF(r.title, ''), p.name || ' ' || rt.name),
		        r.source
		 FROM program_roles r
		 JOIN programs p ON p.id = r.program_id
		 JOIN role_types rt ON rt.id = r.role_type_id
		 WHERE r.firm_id = $1
		 ORDER BY r.id`,
		firmID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list roles for firm %d", firmID)
	}
	defer rows.Close()

	var roles []model.ExistingRole
	for rows.Next() {
		var r model.ExistingRole
		if err := rows.Scan(&r.ID, &r.ProgramID, &r.RoleTypeID, &r.URL, &r.NormalizedURL,
			&r.CanonicalName, &r.IsOpen, &r.Title, &r.Source); err != nil {
			return nil, eris.Wrap(err, "postgres: scan role")
		}
		roles = append(roles, r)
	}
	return roles, eris.Wrap(rows.Err(), "postgres: list roles iterate")
}

// ListFirmPrograms returns the firm's programmes for the suggestion step.
func (s *PostgresStore) ListFirmPrograms(ctx context.Context, firmID int64) ([]model.Program, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, firm_id, name, normalized_name, program_type, source, created_at, updated_at
		 FROM programs
		 WHERE firm_id = $1
		 ORDER BY name`,
		firmID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list programs for firm %d", firmID)
	}
	defer rows.Close()

	var programs []model.Program
	for rows.Next() {
		var p model.Program
		if err := rows.Scan(&p.ID, &p.FirmID, &p.Name, &p.NormalizedName, &p.ProgramType,
			&p.Source, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan program")
		}
		programs = append(programs, p)
	}
	return programs, eris.Wrap(rows.Err(), "postgres: list programs iterate")
}

// ListDismissed returns the identity keys of every role draft a reviewer has
// rejected for this firm. Dismissals are permanent.
func (s *PostgresStore) ListDismissed(ctx context.Context, firmID int64) ([]model.DismissedRef, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT normalized_url, canonical_name
		 FROM role_drafts
		 WHERE firm_id = $1 AND status = 'dismissed'`,
		firmID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list dismissed for firm %d", firmID)
	}
	defer rows.Close()

	var refs []model.DismissedRef
	for rows.Next() {
		var d model.DismissedRef
		if err := rows.Scan(&d.NormalizedURL, &d.CanonicalName); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dismissed ref")
		}
		refs = append(refs, d)
	}
	return refs, eris.Wrap(rows.Err(), "postgres: list dismissed iterate")
}

// SaveProgramDraft creates a pending programme draft unless an equivalent one
// is already pending, in which case the stored draft is returned unchanged.
// The partial unique index makes the insert race-safe across concurrent runs.
func (s *PostgresStore) SaveProgramDraft(ctx context.Context, draft *model.ProgramDraft) (*model.ProgramDraft, bool, error) {
	saved := *draft
	saved.Status = model.DraftStatusPending

	err := s.pool.QueryRow(ctx,
		`INSERT INTO program_drafts
		 (firm_id, run_id, name, normalized_name, program_type, existing_program_id, confidence, rationale, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending')
		 ON CONFLICT (firm_id, normalized_name, program_type) WHERE status = 'pending' DO NOTHING
		 RETURNING id, created_at`,
		draft.FirmID, draft.RunID, draft.Name, draft.NormalizedName, string(draft.ProgramType),
		draft.ExistingProgramID, draft.Confidence, draft.Rationale,
	).Scan(&saved.ID, &saved.CreatedAt)
	if err == nil {
		return &saved, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, eris.Wrap(err, "postgres: insert program draft")
	}

	// Insert lost to an existing pending draft; return the winner.
	existing, err := s.findPendingProgramDraft(ctx, draft.FirmID, draft.NormalizedName, draft.ProgramType)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *PostgresStore) findPendingProgramDraft(ctx context.Context, firmID int64, normalizedName string, programType model.ProgramType) (*model.ProgramDraft, error) {
	var d model.ProgramDraft
	err := s.pool.QueryRow(ctx,
		`SELECT id, firm_id, run_id, name, normalized_name, program_type, existing_program_id,
		        confidence, rationale, status, created_at, decided_at
		 FROM program_drafts
		 WHERE firm_id = $1 AND normalized_name = $2 AND program_type = $3 AND status = 'pending'`,
		firmID, normalizedName, string(programType),
	).Scan(&d.ID, &d.FirmID, &d.RunID, &d.Name, &d.NormalizedName, &d.ProgramType,
		&d.ExistingProgramID, &d.Confidence, &d.Rationale, &d.Status, &d.CreatedAt, &d.DecidedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find pending program draft")
	}
	return &d, nil
}

// SaveRoleDraft creates a pending role draft unless one already targets the
// same existing role or the same normalized URL. ON CONFLICT without a target
// covers both partial unique indexes.
func (s *PostgresStore) SaveRoleDraft(ctx context.Context, draft *model.RoleDraft) (*model.RoleDraft, bool, error) {
	saved := *draft
	saved.Status = model.DraftStatusPending

	err := s.pool.QueryRow(ctx,
		`INSERT INTO role_drafts
		 (firm_id, run_id, program_draft_id, existing_role_id, action, title, url,
		  normalized_url, canonical_name, url_changed, data, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'pending')
		 ON CONFLICT DO NOTHING
		 RETURNING id, created_at`,
		draft.FirmID, draft.RunID, draft.ProgramDraftID, draft.ExistingRoleID,
		string(draft.Action), draft.Title, draft.URL, draft.NormalizedURL,
		draft.CanonicalName, draft.URLChanged, draft.Data,
	).Scan(&saved.ID, &saved.CreatedAt)
	if err == nil {
		return &saved, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, eris.Wrap(err, "postgres: insert role draft")
	}

	existing, err := s.findPendingRoleDraft(ctx, draft)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *PostgresStore) findPendingRoleDraft(ctx context.Context, draft *model.RoleDraft) (*model.RoleDraft, error) {
	query := `SELECT id, firm_id, run_id, program_draft_id, existing_role_id, action, title, url,
	                 normalized_url, canonical_name, url_changed, data, status, created_at, decided_at
	          FROM role_drafts
	          WHERE firm_id = $1 AND status = 'pending' AND `
	var arg any
	if draft.ExistingRoleID != nil {
		query += `existing_role_id = $2`
		arg = *draft.ExistingRoleID
	} else {
		query += `existing_role_id IS NULL AND normalized_url = $2`
		arg = draft.NormalizedURL
	}

	var d model.RoleDraft
	err := s.pool.QueryRow(ctx, query, draft.FirmID, arg).Scan(
		&d.ID, &d.FirmID, &d.RunID, &d.ProgramDraftID, &d.ExistingRoleID, &d.Action,
		&d.Title, &d.URL, &d.NormalizedURL, &d.CanonicalName, &d.URLChanged,
		&d.Data, &d.Status, &d.CreatedAt, &d.DecidedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find pending role draft")
	}
	return &d, nil
}

func (s *PostgresStore) GetProgramDraft(ctx context.Context, id int64) (*model.ProgramDraft, error) {
	var d model.ProgramDraft
	err := s.pool.QueryRow(ctx,
		`SELECT id, firm_id, run_id, name, normalized_name, program_type, existing_program_id,
		        confidence, rationale, status, created_at, decided_at
		 FROM program_drafts WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.FirmID, &d.RunID, &d.Name, &d.NormalizedName, &d.ProgramType,
		&d.ExistingProgramID, &d.Confidence, &d.Rationale, &d.Status, &d.CreatedAt, &d.DecidedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get program draft %d", id)
	}
	return &d, nil
}

func (s *PostgresStore) ListPendingProgramDrafts(ctx context.Context, firmID int64) ([]model.ProgramDraft, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, firm_id, run_id, name, normalized_name, program_type, existing_program_id,
		        confidence, rationale, status, created_at, decided_at
		 FROM program_drafts
		 WHERE firm_id = $1 AND status = 'pending'
		 ORDER BY created_at`,
		firmID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pending program drafts")
	}
	defer rows.Close()

	var drafts []model.ProgramDraft
	for rows.Next() {
		var d model.ProgramDraft
		if err := rows.Scan(&d.ID, &d.FirmID, &d.RunID, &d.Name, &d.NormalizedName, &d.ProgramType,
			&d.ExistingProgramID, &d.Confidence, &d.Rationale, &d.Status, &d.CreatedAt, &d.DecidedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan program draft")
		}
		drafts = append(drafts, d)
	}
	return drafts, eris.Wrap(rows.Err(), "postgres: list pending program drafts iterate")
}

func (s *PostgresStore) ListPendingRoleDrafts(ctx context.Context, firmID int64) ([]model.RoleDraft, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, firm_id, run_id, program_draft_id, existing_role_id, action, title, url,
		        normalized_url, canonical_name, url_changed, data, status, created_at, decided_at
		 FROM role_drafts
		 WHERE firm_id = $1 AND status = 'pending'
		 ORDER BY created_at`,
		firmID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pending role drafts")
	}
	defer rows.Close()

	var drafts []model.RoleDraft
	for rows.Next() {
		var d model.RoleDraft
		if err := rows.Scan(&d.ID, &d.FirmID, &d.RunID, &d.ProgramDraftID, &d.ExistingRoleID, &d.Action,
			&d.Title, &d.URL, &d.NormalizedURL, &d.CanonicalName, &d.URLChanged,
			&d.Data, &d.Status, &d.CreatedAt, &d.DecidedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan role draft")
		}
		drafts = append(drafts, d)
	}
	return drafts, eris.Wrap(rows.Err(), "postgres: list pending role drafts iterate")
}

func (s *PostgresStore) CreateRun(ctx context.Context, firmID int64, listingURL string) (*model.ScrapeRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO scrape_runs (id, firm_id, listing_url, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		id, firmID, listingURL, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.ScrapeRun{
		ID:         id,
		FirmID:     firmID,
		ListingURL: listingURL,
		Status:     model.RunStatusRunning,
		StartedAt:  now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, metrics *model.RunMetrics) error {
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal metrics")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE scrape_runs SET status = $1, metrics = $2, completed_at = $3 WHERE id = $4`,
		string(model.RunStatusCompleted), metricsJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, errMsg string, metrics *model.RunMetrics) error {
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal metrics")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE scrape_runs SET status = $1, metrics = $2, error = $3, completed_at = $4 WHERE id = $5`,
		string(model.RunStatusFailed), metricsJSON, errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.ScrapeRun, error) {
	var r model.ScrapeRun
	var metricsJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, firm_id, listing_url, status, metrics, error, started_at, completed_at FROM scrape_runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.FirmID, &r.ListingURL, &r.Status, &metricsJSON, &r.Error, &r.StartedAt, &r.CompletedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	if len(metricsJSON) > 0 {
		r.Metrics = &model.RunMetrics{}
		if err := json.Unmarshal(metricsJSON, r.Metrics); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal metrics")
		}
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ScrapeRun, error) {
	query := `SELECT id, firm_id, listing_url, status, metrics, error, started_at, completed_at FROM scrape_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.FirmID != 0 {
		query += fmt.Sprintf(` AND firm_id = $%d`, argIdx)
		args = append(args, filter.FirmID)
		argIdx++
	}
	if filter.ListingURL != "" {
		query += fmt.Sprintf(` AND listing_url = $%d`, argIdx)
		args = append(args, filter.ListingURL)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if !filter.StartedAfter.IsZero() {
		query += fmt.Sprintf(` AND started_at >= $%d`, argIdx)
		args = append(args, filter.StartedAfter)
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.ScrapeRun
	for rows.Next() {
		var r model.ScrapeRun
		var metricsJSON []byte
		if err := rows.Scan(&r.ID, &r.FirmID, &r.ListingURL, &r.Status, &metricsJSON, &r.Error, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if len(metricsJSON) > 0 {
			r.Metrics = &model.RunMetrics{}
			if err := json.Unmarshal(metricsJSON, r.Metrics); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal metrics")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// PruneRunHistory deletes all but the newest keep runs for a listing URL and
// returns the number removed.
func (s *PostgresStore) PruneRunHistory(ctx context.Context, listingURL string, keep int) (int, error) {
	if keep <= 0 {
		keep = 50
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM scrape_runs
		 WHERE listing_url = $1 AND id NOT IN (
		   SELECT id FROM scrape_runs WHERE listing_url = $1
		   ORDER BY started_at DESC LIMIT $2
		 )`,
		listingURL, keep,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: prune run history")
	}
	return int(tag.RowsAffected()), nil
}
