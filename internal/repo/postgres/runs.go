package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/afrojuju1/hyperlocal/internal/domain"
	"github.com/afrojuju1/hyperlocal/internal/repo"
)

const insertRunQuery = `INSERT INTO creative_runs (
	run_id,
	campaign_id,
	status,
	brief,
	brand_style,
	model_versions,
	error,
	created_at,
	updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

const selectRunQuery = `SELECT run_id, campaign_id, status, brief, brand_style, model_versions, error, created_at, updated_at
	FROM creative_runs
	WHERE run_id = $1`

const updateRunStyleQuery = `UPDATE creative_runs
	SET brand_style = $1, updated_at = now()
	WHERE run_id = $2`

const updateRunStatusQuery = `UPDATE creative_runs
	SET status = $1, error = $2, updated_at = now()
	WHERE run_id = $3 AND status = 'RUNNING'`

type RunStore struct {
	db DB
}

func NewRunStore(db DB) *RunStore {
	if db == nil {
		return nil
	}
	return &RunStore{db: db}
}

func (s *RunStore) CreateRun(ctx context.Context, run domain.RunRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store not initialized")
	}
	if err := run.Validate(); err != nil {
		return err
	}
	briefJSON, err := encodeSnapshot(run.Brief)
	if err != nil {
		return fmt.Errorf("encode brief: %w", err)
	}
	styleJSON, err := encodeSnapshot(run.BrandStyle)
	if err != nil {
		return fmt.Errorf("encode brand style: %w", err)
	}
	versions := run.ModelVersions
	if versions == nil {
		versions = map[string]string{}
	}
	versionsJSON, err := encodeSnapshot(versions)
	if err != nil {
		return fmt.Errorf("encode model versions: %w", err)
	}
	createdAt := normalizeTime(run.CreatedAt)
	_, err = s.db.ExecContext(
		ctx,
		insertRunQuery,
		strings.TrimSpace(run.ID),
		nullIfEmpty(run.CampaignID),
		string(run.Status),
		briefJSON,
		styleJSON,
		versionsJSON,
		nullIfEmpty(run.Error),
		createdAt,
		normalizeTime(run.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *RunStore) GetRun(ctx context.Context, id string) (domain.RunRecord, error) {
	if s == nil || s.db == nil {
		return domain.RunRecord{}, fmt.Errorf("run store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.RunRecord{}, fmt.Errorf("run id is required")
	}
	row := s.db.QueryRowContext(ctx, selectRunQuery, id)
	return scanRun(row.Scan)
}

func (s *RunStore) ListRuns(ctx context.Context, filter repo.RunFilter) ([]domain.RunRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("run store not initialized")
	}
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if strings.TrimSpace(filter.CampaignID) != "" {
		args = append(args, strings.TrimSpace(filter.CampaignID))
		clauses = append(clauses, fmt.Sprintf("campaign_id = $%d", len(args)))
	}
	if strings.TrimSpace(string(filter.Status)) != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT run_id, campaign_id, status, brief, brand_style, model_versions, error, created_at, updated_at
		FROM creative_runs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]domain.RunRecord, 0)
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func (s *RunStore) UpdateRunStyle(ctx context.Context, id string, style domain.BrandStyle) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("run id is required")
	}
	styleJSON, err := encodeSnapshot(style)
	if err != nil {
		return fmt.Errorf("encode brand style: %w", err)
	}
	res, err := s.db.ExecContext(ctx, updateRunStyleQuery, styleJSON, id)
	if err != nil {
		return fmt.Errorf("update run style: %w", err)
	}
	return requireRowAffected(res, "update run style")
}

// UpdateRunStatus moves a run to a terminal state. The predicate on the
// current status makes re-entering a terminal run impossible; such an
// attempt reports ErrNotFound.
func (s *RunStore) UpdateRunStatus(ctx context.Context, id string, status domain.RunStatus, message string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("run id is required")
	}
	if !domain.RunStatusRunning.CanTransitionTo(status) {
		return fmt.Errorf("illegal run status transition to %q", status)
	}
	res, err := s.db.ExecContext(ctx, updateRunStatusQuery, string(status), nullIfEmpty(message), id)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	return requireRowAffected(res, "update run status")
}

func requireRowAffected(res sql.Result, op string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func scanRun(scan func(dest ...any) error) (domain.RunRecord, error) {
	var run domain.RunRecord
	var campaignID sql.NullString
	var errMsg sql.NullString
	var briefJSON, styleJSON, versionsJSON []byte
	var status string
	if err := scan(&run.ID, &campaignID, &status, &briefJSON, &styleJSON, &versionsJSON,
		&errMsg, &run.CreatedAt, &run.UpdatedAt); err != nil {
		return domain.RunRecord{}, handleNotFound(err)
	}
	run.Status = domain.RunStatus(status)
	if campaignID.Valid {
		run.CampaignID = campaignID.String
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	if err := decodeSnapshot(briefJSON, &run.Brief); err != nil {
		return domain.RunRecord{}, fmt.Errorf("decode brief: %w", err)
	}
	if err := decodeSnapshot(styleJSON, &run.BrandStyle); err != nil {
		return domain.RunRecord{}, fmt.Errorf("decode brand style: %w", err)
	}
	if err := decodeSnapshot(versionsJSON, &run.ModelVersions); err != nil {
		return domain.RunRecord{}, fmt.Errorf("decode model versions: %w", err)
	}
	return run, nil
}
