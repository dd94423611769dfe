package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/afrojuju1/hyperlocal/internal/domain"
)

const insertVariantQuery = `INSERT INTO creative_variants (
	variant_id,
	run_id,
	variant_index,
	copy,
	prompt_text,
	negative_prompt,
	image_url,
	qc_passed,
	qc_text,
	qc_score,
	created_at,
	updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

const selectVariantQuery = `SELECT variant_id, run_id, variant_index, copy, prompt_text, negative_prompt,
	image_url, qc_passed, qc_text, qc_score, created_at, updated_at
	FROM creative_variants
	WHERE variant_id = $1`

const listVariantsByRunQuery = `SELECT variant_id, run_id, variant_index, copy, prompt_text, negative_prompt,
	image_url, qc_passed, qc_text, qc_score, created_at, updated_at
	FROM creative_variants
	WHERE run_id = $1
	ORDER BY variant_index ASC`

const updateVariantImageQuery = `UPDATE creative_variants
	SET image_url = $1, updated_at = now()
	WHERE variant_id = $2`

const updateVariantQCQuery = `UPDATE creative_variants
	SET qc_passed = $1, qc_text = $2, qc_score = $3, updated_at = now()
	WHERE variant_id = $4`

type VariantStore struct {
	db DB
}

func NewVariantStore(db DB) *VariantStore {
	if db == nil {
		return nil
	}
	return &VariantStore{db: db}
}

func (s *VariantStore) CreateVariant(ctx context.Context, variant domain.VariantRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("variant store not initialized")
	}
	if err := variant.Validate(); err != nil {
		return err
	}
	copyJSON, err := encodeSnapshot(variant.Copy)
	if err != nil {
		return fmt.Errorf("encode copy: %w", err)
	}
	var score sql.NullFloat64
	if variant.QCScore != nil {
		score = sql.NullFloat64{Float64: *variant.QCScore, Valid: true}
	}
	_, err = s.db.ExecContext(
		ctx,
		insertVariantQuery,
		strings.TrimSpace(variant.ID),
		strings.TrimSpace(variant.RunID),
		variant.Index,
		copyJSON,
		variant.PromptText,
		variant.NegativePrompt,
		nullIfEmpty(variant.ImageURL),
		variant.QCPassed,
		nullIfEmpty(variant.QCText),
		score,
		normalizeTime(variant.CreatedAt),
		normalizeTime(variant.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert variant: %w", err)
	}
	return nil
}

func (s *VariantStore) GetVariant(ctx context.Context, id string) (domain.VariantRecord, error) {
	if s == nil || s.db == nil {
		return domain.VariantRecord{}, fmt.Errorf("variant store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.VariantRecord{}, fmt.Errorf("variant id is required")
	}
	row := s.db.QueryRowContext(ctx, selectVariantQuery, id)
	return scanVariant(row.Scan)
}

func (s *VariantStore) ListVariants(ctx context.Context, runID string) ([]domain.VariantRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("variant store not initialized")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	rows, err := s.db.QueryContext(ctx, listVariantsByRunQuery, runID)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	variants := make([]domain.VariantRecord, 0)
	for rows.Next() {
		variant, err := scanVariant(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		variants = append(variants, variant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	return variants, nil
}

func (s *VariantStore) UpdateVariantImage(ctx context.Context, id, imageURL string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("variant store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("variant id is required")
	}
	res, err := s.db.ExecContext(ctx, updateVariantImageQuery, nullIfEmpty(imageURL), id)
	if err != nil {
		return fmt.Errorf("update variant image: %w", err)
	}
	return requireRowAffected(res, "update variant image")
}

func (s *VariantStore) UpdateVariantQC(ctx context.Context, id string, passed bool, text string, score *float64) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("variant store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("variant id is required")
	}
	var qcScore sql.NullFloat64
	if score != nil {
		qcScore = sql.NullFloat64{Float64: *score, Valid: true}
	}
	res, err := s.db.ExecContext(ctx, updateVariantQCQuery, passed, nullIfEmpty(text), qcScore, id)
	if err != nil {
		return fmt.Errorf("update variant qc: %w", err)
	}
	return requireRowAffected(res, "update variant qc")
}

func scanVariant(scan func(dest ...any) error) (domain.VariantRecord, error) {
	var variant domain.VariantRecord
	var copyJSON []byte
	var imageURL, qcText sql.NullString
	var score sql.NullFloat64
	if err := scan(&variant.ID, &variant.RunID, &variant.Index, &copyJSON, &variant.PromptText,
		&variant.NegativePrompt, &imageURL, &variant.QCPassed, &qcText, &score,
		&variant.CreatedAt, &variant.UpdatedAt); err != nil {
		return domain.VariantRecord{}, handleNotFound(err)
	}
	if imageURL.Valid {
		variant.ImageURL = imageURL.String
	}
	if qcText.Valid {
		variant.QCText = qcText.String
	}
	if score.Valid {
		value := score.Float64
		variant.QCScore = &value
	}
	if err := decodeSnapshot(copyJSON, &variant.Copy); err != nil {
		return domain.VariantRecord{}, fmt.Errorf("decode copy: %w", err)
	}
	return variant, nil
}
