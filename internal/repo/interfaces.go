package repo

import (
	"context"
	"errors"

	"github.com/afrojuju1/hyperlocal/internal/domain"
)

// ErrNotFound is returned when a run or variant does not exist, or when a
// status update targets a run that already reached a terminal state.
var ErrNotFound = errors.New("not found")

type RunFilter struct {
	CampaignID string
	Status     domain.RunStatus
	Limit      int
}

// RunRepository manages creative run records. Status moves forward only:
// RUNNING to COMPLETE or FAILED, never back.
type RunRepository interface {
	CreateRun(ctx context.Context, run domain.RunRecord) error
	GetRun(ctx context.Context, id string) (domain.RunRecord, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]domain.RunRecord, error)
	UpdateRunStyle(ctx context.Context, id string, style domain.BrandStyle) error
	UpdateRunStatus(ctx context.Context, id string, status domain.RunStatus, message string) error
}

// VariantRepository manages per-run variant records. After creation a
// variant is patched at most twice: image URL, then QC outcome.
type VariantRepository interface {
	CreateVariant(ctx context.Context, variant domain.VariantRecord) error
	GetVariant(ctx context.Context, id string) (domain.VariantRecord, error)
	ListVariants(ctx context.Context, runID string) ([]domain.VariantRecord, error)
	UpdateVariantImage(ctx context.Context, id, imageURL string) error
	UpdateVariantQC(ctx context.Context, id string, passed bool, text string, score *float64) error
}
