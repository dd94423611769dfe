package postgres

import (
	"context"

	"github.com/afrojuju1/hyperlocal/internal/domain"
)

// Gateway bundles the run and variant stores behind the persistence surface
// the pipeline drives. Each method is one atomic statement.
type Gateway struct {
	runs     *RunStore
	variants *VariantStore
}

func NewGateway(db DB) *Gateway {
	if db == nil {
		return nil
	}
	return &Gateway{
		runs:     NewRunStore(db),
		variants: NewVariantStore(db),
	}
}

func (g *Gateway) CreateRun(ctx context.Context, run domain.RunRecord) error {
	return g.runs.CreateRun(ctx, run)
}

func (g *Gateway) UpdateRunStyle(ctx context.Context, runID string, style domain.BrandStyle) error {
	return g.runs.UpdateRunStyle(ctx, runID, style)
}

func (g *Gateway) UpdateRunStatus(ctx context.Context, runID string, status domain.RunStatus, message string) error {
	return g.runs.UpdateRunStatus(ctx, runID, status, message)
}

func (g *Gateway) CreateVariant(ctx context.Context, variant domain.VariantRecord) error {
	return g.variants.CreateVariant(ctx, variant)
}

func (g *Gateway) UpdateVariantImage(ctx context.Context, variantID, imageURL string) error {
	return g.variants.UpdateVariantImage(ctx, variantID, imageURL)
}

func (g *Gateway) UpdateVariantQC(ctx context.Context, variantID string, passed bool, text string, score *float64) error {
	return g.variants.UpdateVariantQC(ctx, variantID, passed, text, score)
}
