package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1v1expert/AnalogPro/internal/domain"
)

const (
	mfrThird     int64 = 3
	mfrUntrusted int64 = 4
)

// fakeCatalog builds a source catalog where every regular product has an
// exact twin at each trusted target, plus products that cannot be matched
func fakeCatalog(t *testing.T, regular int) *MockAttributeStore {
	t.Helper()
	gofakeit.Seed(42)

	store := newCatalog()
	store.addCategory(catElbow, attrAngle, attrDiameter)
	store.addManufacturer(mfrThird, true)
	store.addManufacturer(mfrUntrusted, false)

	next := int64(1000)
	for i := 0; i < regular; i++ {
		angle := angle45
		if gofakeit.Bool() {
			angle = angle90
		}
		values := map[int64]domain.Value{
			attrAngle:    domain.FixedRef(angle),
			attrDiameter: domain.Numeric(float64(gofakeit.Number(20, 400))),
		}
		for _, mfr := range []int64{mfrSrc, mfrDst, mfrThird, mfrUntrusted} {
			next++
			store.addProduct(next, mfr, catElbow, values)
			store.products[next].Article = gofakeit.Numerify("EL-######")
			store.products[next].Title = fmt.Sprintf("%s elbow", gofakeit.Company())
		}
	}

	// no target offers this angle
	next++
	store.addProduct(next, mfrSrc, catElbow, map[int64]domain.Value{attrAngle: domain.FixedRef(777)})
	// broken source data
	next++
	store.addProduct(next, mfrSrc, catElbow, map[int64]domain.Value{attrAngle: domain.Numeric(90)})
	return store
}

func newHealthCheck(store *MockAttributeStore, resolver AnalogResolver, observer Observer, cfg HealthCheckConfig) *HealthCheckService {
	if resolver == nil {
		resolver = newService(store, nil)
	}
	return NewHealthCheckService(store, resolver, observer, zerolog.Nop(), cfg)
}

func TestHealthCheck_Run(t *testing.T) {
	store := fakeCatalog(t, 10)
	observer := &MockObserver{}
	svc := newHealthCheck(store, nil, observer, HealthCheckConfig{Workers: 4, Rate: 1000, Burst: 10})

	report, err := svc.Run(context.Background(), domain.HealthCheckRequest{ManufacturerID: mfrSrc, Actor: "healthcheck"})
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 12, report.Products)
	assert.Equal(t, 2, report.Targets, "untrusted manufacturers and the source are skipped")
	assert.Len(t, report.Rows, 24)
	assert.Equal(t, 20, report.Found)
	assert.Equal(t, 2, report.NotFound)
	assert.Equal(t, 2, report.Failed)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
	assert.Equal(t, 1, observer.reports)

	for _, row := range report.Rows {
		switch row.Status {
		case domain.PairFound:
			assert.NotZero(t, row.AnalogID)
			assert.NotEmpty(t, row.AuditIDs)
			assert.Equal(t, catElbow, row.CategoryID)
			analog := store.products[row.AnalogID]
			assert.Equal(t, row.TargetManufacturerID, analog.ManufacturerID)
		case domain.PairFailed:
			assert.Contains(t, row.Error, domain.ErrDataIntegrity.Error())
		case domain.PairNotFound:
			assert.Contains(t, row.Error, domain.ErrAnalogNotFound.Error())
		default:
			t.Errorf("row %+v has no status", row)
		}
	}

	// a second run is served from the analog cache
	writes := store.count("SaveCachedAnalog")
	again, err := svc.Run(context.Background(), domain.HealthCheckRequest{ManufacturerID: mfrSrc, Actor: "healthcheck"})
	require.NoError(t, err)
	assert.Equal(t, 20, again.Found)
	assert.Equal(t, writes, store.count("SaveCachedAnalog"))
	for _, row := range again.Rows {
		if row.Status == domain.PairFound {
			assert.Equal(t, domain.SourceCache, row.Source)
		}
	}
}

func TestHealthCheck_Window(t *testing.T) {
	tests := []struct {
		name         string
		offset       int
		limit        int
		wantProducts int
	}{
		{"everything", 0, 0, 12},
		{"first page", 0, 5, 5},
		{"last page", 10, 5, 2},
		{"past the end", 50, 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := fakeCatalog(t, 10)
			svc := newHealthCheck(store, nil, nil, HealthCheckConfig{})

			report, err := svc.Run(context.Background(), domain.HealthCheckRequest{
				ManufacturerID: mfrSrc, Offset: tt.offset, Limit: tt.limit,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantProducts, report.Products)
			assert.Len(t, report.Rows, tt.wantProducts*2)
		})
	}
}

func TestHealthCheck_InvalidRequest(t *testing.T) {
	store := fakeCatalog(t, 1)
	svc := newHealthCheck(store, nil, nil, HealthCheckConfig{})

	_, err := svc.Run(context.Background(), domain.HealthCheckRequest{ManufacturerID: mfrSrc, Offset: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = svc.Run(context.Background(), domain.HealthCheckRequest{ManufacturerID: 404})
	assert.ErrorIs(t, err, domain.ErrManufacturerNotFound)
}

// resolverFunc adapts a function to AnalogResolver
type resolverFunc func(ctx context.Context, productID, manufacturerID int64, actor string) (*domain.Resolution, error)

func (f resolverFunc) Resolve(ctx context.Context, productID, manufacturerID int64, actor string) (*domain.Resolution, error) {
	return f(ctx, productID, manufacturerID, actor)
}

func TestHealthCheck_PairErrorsDoNotAbort(t *testing.T) {
	store := fakeCatalog(t, 3)
	boom := errors.New("store unavailable")
	var mu sync.Mutex
	calls := 0
	resolver := resolverFunc(func(ctx context.Context, productID, manufacturerID int64, actor string) (*domain.Resolution, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		if manufacturerID == mfrThird {
			return nil, boom
		}
		p := store.products[productID]
		return &domain.Resolution{Product: p, Analog: p, Source: domain.SourceSearch}, nil
	})
	svc := newHealthCheck(store, resolver, nil, HealthCheckConfig{Workers: 2})

	report, err := svc.Run(context.Background(), domain.HealthCheckRequest{ManufacturerID: mfrSrc})
	require.NoError(t, err)
	assert.Equal(t, 10, calls)
	assert.Equal(t, 5, report.Found)
	assert.Equal(t, 5, report.Failed)
}

func TestHealthCheck_CancellationAborts(t *testing.T) {
	store := fakeCatalog(t, 5)
	ctx, cancel := context.WithCancel(context.Background())
	resolver := resolverFunc(func(ctx context.Context, productID, manufacturerID int64, actor string) (*domain.Resolution, error) {
		cancel()
		return nil, ctx.Err()
	})
	svc := newHealthCheck(store, resolver, nil, HealthCheckConfig{Workers: 1})

	_, err := svc.Run(ctx, domain.HealthCheckRequest{ManufacturerID: mfrSrc})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWindow(t *testing.T) {
	ids := []int64{1, 2, 3, 4}
	if got := window(ids, 1, 2); len(got) != 2 || got[0] != 2 {
		t.Errorf("window(1, 2) = %v, want [2 3]", got)
	}
	if got := window(ids, 4, 0); len(got) != 0 {
		t.Errorf("window(4, 0) = %v, want empty", got)
	}
}
