package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/1v1expert/AnalogPro/internal/domain"
)

// FilterPipeline narrows a target manufacturer's products in one category
// down to the analog of a classified product.
//
// Stages run strictly in order and only ever narrow the candidate set:
//   - HARD: exact match on every present HARD attribute, and mutual absence
//     for every HARD attribute the source lacks. An empty set is a miss.
//   - SOFT, then RECALCULATION: per attribute, keep the candidates sharing
//     the fixed value or holding the selected numeric value. A step that
//     would empty the set is skipped; a step leaving one candidate ends
//     the pipeline.
//
// The winner is the survivor with the lowest product id.
type FilterPipeline struct {
	store  domain.AttributeStore
	logger zerolog.Logger
}

// NewFilterPipeline creates a pipeline reading from store
func NewFilterPipeline(store domain.AttributeStore, logger zerolog.Logger) *FilterPipeline {
	return &FilterPipeline{store: store, logger: logger}
}

// Run searches categoryID for the analog of profile among manufacturerID's products
func (p *FilterPipeline) Run(
	ctx context.Context,
	profile *domain.ProductProfile,
	categoryID, manufacturerID int64,
	opts domain.SearchOptions,
) (*domain.PipelineResult, error) {
	start := time.Now()

	candidates, err := p.store.FindProducts(ctx, categoryID, manufacturerID, true)
	if err != nil {
		return nil, err
	}
	result := &domain.PipelineResult{CategoryID: categoryID, Initial: len(candidates)}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: manufacturer %d has no products in category %d",
			domain.ErrAnalogNotFound, manufacturerID, categoryID)
	}

	candidates, err = p.hardStage(ctx, profile, candidates, opts)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidate of manufacturer %d passed HARD attributes in category %d",
			domain.ErrAnalogNotFound, manufacturerID, categoryID)
	}
	result.HardStage = append([]int64(nil), candidates...)

	for _, stage := range []domain.AttributeType{domain.AttributeSoft, domain.AttributeRecalculation} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var done bool
		candidates, done, err = p.narrow(ctx, profile.Present[stage], candidates, opts)
		if err != nil {
			return nil, err
		}
		if done {
			result.ShortCircuited = true
			break
		}
	}

	result.Candidates = candidates
	result.WinnerID = lowestID(candidates)
	result.Elapsed = time.Since(start)

	p.logger.Debug().
		Int64("product_id", profile.ProductID).
		Int64("category_id", categoryID).
		Int64("manufacturer_id", manufacturerID).
		Int("initial", result.Initial).
		Int("hard_stage", len(result.HardStage)).
		Int("survivors", len(candidates)).
		Int64("winner_id", result.WinnerID).
		Bool("short_circuited", result.ShortCircuited).
		Dur("elapsed", result.Elapsed).
		Msg("pipeline finished")

	return result, nil
}

func (p *FilterPipeline) hardStage(
	ctx context.Context,
	profile *domain.ProductProfile,
	candidates []int64,
	opts domain.SearchOptions,
) ([]int64, error) {
	var err error
	for _, row := range profile.Present[domain.AttributeHard] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		method, manual := opts.Methods[row.Attribute.ID]
		if !row.Attribute.IsFixed && manual {
			candidates, err = p.selectByMethod(ctx, row, candidates, method)
		} else {
			candidates, err = p.store.FilterAttributeValues(ctx, row.Attribute.ID, sourceValue(row, opts), candidates)
		}
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			return nil, nil
		}
	}

	for _, attr := range profile.Absent[domain.AttributeHard] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		held, err := p.store.ListAttributeValues(ctx, attr.ID, candidates)
		if err != nil {
			return nil, err
		}
		if len(held) == 0 {
			continue
		}
		holders := make(map[int64]bool, len(held))
		for _, v := range held {
			holders[v.ProductID] = true
		}
		kept := make([]int64, 0, len(candidates))
		for _, id := range candidates {
			if !holders[id] {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			return nil, nil
		}
		candidates = kept
	}
	return candidates, nil
}

// narrow applies one SOFT or RECALCULATION stage. done reports that a single
// candidate is left and the pipeline should stop.
func (p *FilterPipeline) narrow(
	ctx context.Context,
	rows []domain.AttributeValueRow,
	candidates []int64,
	opts domain.SearchOptions,
) ([]int64, bool, error) {
	for _, row := range rows {
		if len(candidates) == 1 {
			return candidates, true, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		var (
			next []int64
			err  error
		)
		if row.Attribute.IsFixed {
			next, err = p.store.FilterAttributeValues(ctx, row.Attribute.ID, sourceValue(row, opts), candidates)
		} else {
			next, err = p.selectByMethod(ctx, row, candidates, opts.Methods[row.Attribute.ID])
		}
		if err != nil {
			return nil, false, err
		}
		if len(next) == 0 {
			continue
		}
		candidates = next
		if len(candidates) == 1 {
			return candidates, true, nil
		}
	}
	return candidates, false, nil
}

// selectByMethod keeps the candidates holding the value chosen by method
// among the candidates' values of a continuous attribute
func (p *FilterPipeline) selectByMethod(
	ctx context.Context,
	row domain.AttributeValueRow,
	candidates []int64,
	method domain.SelectionMethod,
) ([]int64, error) {
	values, err := p.store.ListAttributeValues(ctx, row.Attribute.ID, candidates)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}

	target, err := selectValue(values, *row.Value.Numeric, method)
	if err != nil {
		return nil, err
	}

	kept := make([]int64, 0, len(values))
	for _, v := range values {
		if *v.Value.Numeric == target {
			kept = append(kept, v.ProductID)
		}
	}
	return kept, nil
}

// selectValue picks the target among values listed in candidate order.
// Ties go to the value met first.
func selectValue(values []domain.AttributeValue, source float64, method domain.SelectionMethod) (float64, error) {
	switch method {
	case domain.MethodNearest, domain.MethodMin, domain.MethodMax, "":
	default:
		return 0, fmt.Errorf("%w: unknown selection method %q", domain.ErrInvalidRequest, method)
	}

	var (
		best  float64
		found bool
	)
	for _, v := range values {
		if v.Value.Numeric == nil {
			return 0, fmt.Errorf("%w: product %d holds a non-numeric value for continuous attribute %d",
				domain.ErrDataIntegrity, v.ProductID, v.AttributeID)
		}
		n := *v.Value.Numeric
		if !found {
			best, found = n, true
			continue
		}
		switch method {
		case domain.MethodMin:
			if n < best {
				best = n
			}
		case domain.MethodMax:
			if n > best {
				best = n
			}
		default:
			if math.Abs(n-source) < math.Abs(best-source) {
				best = n
			}
		}
	}
	return best, nil
}

// sourceValue is the value the source holds, with a manual fixed override applied
func sourceValue(row domain.AttributeValueRow, opts domain.SearchOptions) domain.Value {
	if override, ok := opts.FixedOverrides[row.Attribute.ID]; ok && row.Attribute.IsFixed {
		return domain.FixedRef(override)
	}
	return row.Value
}

func lowestID(ids []int64) int64 {
	if len(ids) == 0 {
		return 0
	}
	lowest := ids[0]
	for _, id := range ids[1:] {
		if id < lowest {
			lowest = id
		}
	}
	return lowest
}
