package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/1v1expert/AnalogPro/internal/domain"
)

// Observer receives measurements of resolutions and batch runs
type Observer interface {
	ObserveResolution(outcome string, elapsed time.Duration)
	ObservePipeline(result *domain.PipelineResult)
	ObserveHealthCheck(report *domain.HealthCheckReport)
}

type nopObserver struct{}

func (nopObserver) ObserveResolution(string, time.Duration)      {}
func (nopObserver) ObservePipeline(*domain.PipelineResult)       {}
func (nopObserver) ObserveHealthCheck(*domain.HealthCheckReport) {}

// Resolution outcomes reported to the Observer
const (
	OutcomeSelf     = "self"
	OutcomeCache    = "cache"
	OutcomeSearch   = "search"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// AnalogService resolves the analog of a product within a target
// manufacturer's catalog and keeps the result on the product.
type AnalogService struct {
	store      domain.AttributeStore
	classifier *Classifier
	pipeline   *FilterPipeline
	observer   Observer
	logger     zerolog.Logger
	locks      *keyedMutex
	now        func() time.Time
}

// NewAnalogService creates a resolver. A nil observer discards measurements.
func NewAnalogService(store domain.AttributeStore, observer Observer, logger zerolog.Logger) *AnalogService {
	if observer == nil {
		observer = nopObserver{}
	}
	return &AnalogService{
		store:      store,
		classifier: NewClassifier(store),
		pipeline:   NewFilterPipeline(store, logger),
		observer:   observer,
		logger:     logger,
		locks:      newKeyedMutex(),
		now:        time.Now,
	}
}

// Resolve returns the analog of productID made by manufacturerID.
// Flow: same manufacturer -> cached entry -> pipeline -> alternative categories -> persist
func (s *AnalogService) Resolve(ctx context.Context, productID, manufacturerID int64, actor string) (*domain.Resolution, error) {
	start := time.Now()
	res, err := s.resolve(ctx, productID, manufacturerID, actor)
	s.observer.ObserveResolution(outcomeOf(res, err), time.Since(start))
	return res, err
}

func (s *AnalogService) resolve(ctx context.Context, productID, manufacturerID int64, actor string) (*domain.Resolution, error) {
	unlock := s.locks.Lock(productID)
	defer unlock()

	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	if product.ManufacturerID == manufacturerID {
		return &domain.Resolution{Product: product, Analog: product, Source: domain.SourceSelf}, nil
	}

	if _, err := s.store.GetManufacturer(ctx, manufacturerID); err != nil {
		return nil, err
	}

	if entry, ok := product.CachedAnalog(manufacturerID); ok {
		analog, err := s.store.GetProduct(ctx, entry.AnalogID)
		switch {
		case err == nil:
			return &domain.Resolution{Product: product, Analog: analog, Source: domain.SourceCache, Entry: &entry}, nil
		case errors.Is(err, domain.ErrProductNotFound):
			s.logger.Warn().
				Int64("product_id", productID).
				Int64("manufacturer_id", manufacturerID).
				Int64("analog_id", entry.AnalogID).
				Msg("cached analog no longer exists, recomputing")
		default:
			return nil, err
		}
	}

	result, err := s.search(ctx, product, manufacturerID, domain.SearchOptions{})
	if err != nil {
		return nil, err
	}

	entry := domain.AnalogCacheEntry{
		ManufacturerID: manufacturerID,
		AnalogID:       result.WinnerID,
		AuditIDs:       result.HardStage,
		CategoryID:     result.CategoryID,
		ComputedAt:     s.now().UTC(),
		ComputedBy:     actor,
	}
	if err := s.store.SaveCachedAnalog(ctx, productID, entry); err != nil {
		return nil, fmt.Errorf("failed to store analog of product %d: %w", productID, err)
	}

	analog, err := s.store.GetProduct(ctx, result.WinnerID)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("product_id", productID).
		Int64("manufacturer_id", manufacturerID).
		Int64("analog_id", analog.ID).
		Int64("category_id", result.CategoryID).
		Str("actor", actor).
		Msg("analog resolved")

	return &domain.Resolution{
		Product: product,
		Analog:  analog,
		Source:  domain.SourceSearch,
		Entry:   &entry,
		Result:  result,
	}, nil
}

// Search runs the manual variant with per-attribute selection methods and
// fixed value overrides. The analog cache is neither read nor written.
func (s *AnalogService) Search(ctx context.Context, productID, manufacturerID int64, opts domain.SearchOptions) (*domain.Resolution, error) {
	for attrID, method := range opts.Methods {
		if _, err := domain.ParseSelectionMethod(string(method)); err != nil {
			return nil, fmt.Errorf("attribute %d: %w", attrID, err)
		}
	}

	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.ManufacturerID == manufacturerID {
		return &domain.Resolution{Product: product, Analog: product, Source: domain.SourceSelf}, nil
	}
	if _, err := s.store.GetManufacturer(ctx, manufacturerID); err != nil {
		return nil, err
	}

	result, err := s.search(ctx, product, manufacturerID, opts)
	if err != nil {
		return nil, err
	}
	analog, err := s.store.GetProduct(ctx, result.WinnerID)
	if err != nil {
		return nil, err
	}
	return &domain.Resolution{Product: product, Analog: analog, Source: domain.SourceSearch, Result: result}, nil
}

// search runs the pipeline in the product's category, then in each
// alternative category in store order until one succeeds
func (s *AnalogService) search(ctx context.Context, product *domain.Product, manufacturerID int64, opts domain.SearchOptions) (*domain.PipelineResult, error) {
	profile, err := s.classifier.Classify(ctx, product)
	if err != nil {
		return nil, err
	}

	result, err := s.pipeline.Run(ctx, profile, product.CategoryID, manufacturerID, opts)
	if err == nil {
		s.observer.ObservePipeline(result)
		return result, nil
	}
	if !errors.Is(err, domain.ErrAnalogNotFound) {
		return nil, err
	}

	alternatives, err := s.store.GetAlternativeCategories(ctx, product.CategoryID)
	if err != nil {
		return nil, err
	}
	for _, categoryID := range alternatives {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := s.pipeline.Run(ctx, profile, categoryID, manufacturerID, opts)
		if err == nil {
			s.logger.Debug().
				Int64("product_id", product.ID).
				Int64("category_id", product.CategoryID).
				Int64("alternative_id", categoryID).
				Msg("analog found in alternative category")
			s.observer.ObservePipeline(result)
			return result, nil
		}
		if !errors.Is(err, domain.ErrAnalogNotFound) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: product %d by manufacturer %d (%d alternative categories tried)",
		domain.ErrAnalogNotFound, product.ID, manufacturerID, len(alternatives))
}

// FindProduct looks a product up by article, optionally within one manufacturer
func (s *AnalogService) FindProduct(ctx context.Context, article string, manufacturerID int64) (*domain.Product, error) {
	article = strings.TrimSpace(article)
	if article == "" {
		return nil, fmt.Errorf("%w: empty article", domain.ErrInvalidRequest)
	}

	ids, err := s.store.FindProductsByArticle(ctx, article, manufacturerID)
	if err != nil {
		return nil, err
	}
	switch len(ids) {
	case 0:
		return nil, fmt.Errorf("%w: article %q", domain.ErrProductNotFound, article)
	case 1:
		return s.store.GetProduct(ctx, ids[0])
	default:
		return nil, fmt.Errorf("%w: %d products with article %q", domain.ErrAmbiguousMatch, len(ids), article)
	}
}

// CachedAnalogs lists the product's cache entries ordered by manufacturer id
func (s *AnalogService) CachedAnalogs(ctx context.Context, productID int64) ([]domain.AnalogCacheEntry, error) {
	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.AnalogCacheEntry, 0, len(product.Analogs))
	for _, entry := range product.Analogs {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ManufacturerID < entries[j].ManufacturerID })
	return entries, nil
}

func outcomeOf(res *domain.Resolution, err error) string {
	switch {
	case err == nil:
		return string(res.Source)
	case errors.Is(err, domain.ErrAnalogNotFound):
		return OutcomeNotFound
	default:
		return OutcomeError
	}
}
