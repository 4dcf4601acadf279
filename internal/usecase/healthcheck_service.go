package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/1v1expert/AnalogPro/internal/domain"
)

// AnalogResolver resolves one product against one manufacturer
type AnalogResolver interface {
	Resolve(ctx context.Context, productID, manufacturerID int64, actor string) (*domain.Resolution, error)
}

// HealthCheckConfig holds worker pool and throttling settings
type HealthCheckConfig struct {
	Workers int
	Rate    float64 // resolutions per second, 0 disables throttling
	Burst   int
}

// HealthCheckService resolves every product of one manufacturer against
// every other trusted manufacturer and reports the outcome per pair
type HealthCheckService struct {
	store    domain.AttributeStore
	resolver AnalogResolver
	limiter  *rate.Limiter
	workers  int
	observer Observer
	logger   zerolog.Logger
}

// NewHealthCheckService creates a batch driver over resolver
func NewHealthCheckService(
	store domain.AttributeStore,
	resolver AnalogResolver,
	observer Observer,
	logger zerolog.Logger,
	config HealthCheckConfig,
) *HealthCheckService {
	workers := config.Workers
	if workers <= 0 {
		workers = 4
	}

	limit := rate.Inf
	burst := config.Burst
	if config.Rate > 0 {
		limit = rate.Limit(config.Rate)
		if burst <= 0 {
			burst = 1
		}
	}

	if observer == nil {
		observer = nopObserver{}
	}

	return &HealthCheckService{
		store:    store,
		resolver: resolver,
		limiter:  rate.NewLimiter(limit, burst),
		workers:  workers,
		observer: observer,
		logger:   logger,
	}
}

// Run executes one batch. Pair failures are recorded in their rows; only
// context cancellation aborts the run.
func (s *HealthCheckService) Run(ctx context.Context, req domain.HealthCheckRequest) (*domain.HealthCheckReport, error) {
	if req.Offset < 0 || req.Limit < 0 {
		return nil, fmt.Errorf("%w: offset and limit must not be negative", domain.ErrInvalidRequest)
	}
	if _, err := s.store.GetManufacturer(ctx, req.ManufacturerID); err != nil {
		return nil, err
	}

	products, err := s.store.ListProductsByManufacturer(ctx, req.ManufacturerID)
	if err != nil {
		return nil, err
	}
	products = window(products, req.Offset, req.Limit)

	trusted, err := s.store.ListManufacturers(ctx, true)
	if err != nil {
		return nil, err
	}
	targets := make([]int64, 0, len(trusted))
	for _, m := range trusted {
		if m.ID != req.ManufacturerID {
			targets = append(targets, m.ID)
		}
	}

	report := &domain.HealthCheckReport{
		RunID:          uuid.New().String(),
		ManufacturerID: req.ManufacturerID,
		StartedAt:      time.Now().UTC(),
		Products:       len(products),
		Targets:        len(targets),
		Rows:           make([]domain.HealthCheckRow, len(products)*len(targets)),
	}
	log := s.logger.With().Str("run_id", report.RunID).Int64("manufacturer_id", req.ManufacturerID).Logger()
	log.Info().Int("products", len(products)).Int("targets", len(targets)).Msg("health check started")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

schedule:
	for i, productID := range products {
		for j, targetID := range targets {
			if gctx.Err() != nil {
				break schedule
			}
			idx := i*len(targets) + j
			g.Go(func() error {
				if err := s.limiter.Wait(gctx); err != nil {
					return err
				}
				row, err := s.check(gctx, log, productID, targetID, req.Actor)
				if err != nil {
					return err
				}
				report.Rows[idx] = row
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("health check %s aborted: %w", report.RunID, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("health check %s aborted: %w", report.RunID, err)
	}

	for _, row := range report.Rows {
		switch row.Status {
		case domain.PairFound:
			report.Found++
		case domain.PairNotFound:
			report.NotFound++
		default:
			report.Failed++
		}
	}
	report.FinishedAt = time.Now().UTC()

	log.Info().
		Int("found", report.Found).
		Int("not_found", report.NotFound).
		Int("failed", report.Failed).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("health check finished")
	s.observer.ObserveHealthCheck(report)

	return report, nil
}

// check resolves one pair. An error is returned only when the run must stop.
func (s *HealthCheckService) check(ctx context.Context, log zerolog.Logger, productID, targetID int64, actor string) (domain.HealthCheckRow, error) {
	row := domain.HealthCheckRow{ProductID: productID, TargetManufacturerID: targetID}

	res, err := s.resolver.Resolve(ctx, productID, targetID, actor)
	switch {
	case err == nil:
		row.Status = domain.PairFound
		row.AnalogID = res.Analog.ID
		row.Source = res.Source
		if res.Entry != nil {
			row.CategoryID = res.Entry.CategoryID
			row.AuditIDs = res.Entry.AuditIDs
		}
	case ctx.Err() != nil:
		return row, ctx.Err()
	case errors.Is(err, domain.ErrAnalogNotFound):
		row.Status = domain.PairNotFound
		row.Error = err.Error()
	default:
		row.Status = domain.PairFailed
		row.Error = err.Error()
		log.Warn().Err(err).Int64("product_id", productID).Int64("target_id", targetID).Msg("pair failed")
	}
	return row, nil
}

func window(ids []int64, offset, limit int) []int64 {
	if offset >= len(ids) {
		return nil
	}
	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	return ids
}
