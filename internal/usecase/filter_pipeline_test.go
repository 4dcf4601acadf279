package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1v1expert/AnalogPro/internal/domain"
)

func runPipeline(t *testing.T, store *MockAttributeStore, productID int64, opts domain.SearchOptions) (*domain.PipelineResult, error) {
	t.Helper()
	ctx := context.Background()
	product, err := store.GetProduct(ctx, productID)
	require.NoError(t, err)
	profile, err := NewClassifier(store).Classify(ctx, product)
	require.NoError(t, err)
	return NewFilterPipeline(store, zerolog.Nop()).Run(ctx, profile, product.CategoryID, mfrDst, opts)
}

func TestFilterPipeline_HardFixedMatch(t *testing.T) {
	store := newCatalog()
	store.addProduct(1, mfrSrc, catElbow, map[int64]domain.Value{attrAngle: domain.FixedRef(angle90)})
	store.addProduct(21, mfrDst, catElbow, map[int64]domain.Value{attrAngle: domain.FixedRef(angle45)})
	store.addProduct(22, mfrDst, catElbow, map[int64]domain.Value{attrAngle: domain.FixedRef(angle90)})
	store.addProduct(23, mfrDst, catElbow, map[int64]domain.Value{})

	result, err := runPipeline(t, store, 1, domain.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Initial)
	assert.Equal(t, []int64{22}, result.HardStage)
	assert.Equal(t, int64(22), result.WinnerID)
}

func TestFilterPipeline_HardAbsence(t *testing.T) {
	store := newCatalog()
	// source has no coating
	store.addProduct(1, mfrSrc, catElbow, map[int64]domain.Value{attrAngle: domain.FixedRef(angle90)})
	store.addProduct(21, mfrDst, catElbow, map[int64]domain.Value{
		attrAngle:   domain.FixedRef(angle90),
		attrCoating: domain.FixedRef(zinc),
	})
	store.addProduct(22, mfrDst, catElbow, map[int64]domain.Value{attrAngle: domain.FixedRef(angle90)})

	result, err := runPipeline(t, store, 1, domain.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int64{22}, result.HardStage)

	// every candidate holds the attribute the source lacks
	store.values[22][attrCoating] = domain.FixedRef(zinc)
	_, err = runPipeline(t, store, 1, domain.SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrAnalogNotFound)
}

func TestFilterPipeline_EmptyHardStage(t *testing.T) {
	tests := []struct {
		name       string
		candidates map[int64]map[int64]domain.Value
	}{
		{
			name:       "no products of the manufacturer",
			candidates: nil,
		},
		{
			name: "no candidate matches",
			candidates: map[int64]map[int64]domain.Value{
				21: {attrAngle: domain.FixedRef(angle45)},
				22: {},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newCatalog()
			store.addProduct(1, mfrSrc, catElbow, map[int64]domain.Value{attrAngle: domain.FixedRef(angle90)})
			for id, values := range tt.candidates {
				store.addProduct(id, mfrDst, catElbow, values)
			}

			_, err := runPipeline(t, store, 1, domain.SearchOptions{})
			assert.ErrorIs(t, err, domain.ErrAnalogNotFound)
		})
	}
}

func TestFilterPipeline_NearestValue(t *testing.T) {
	store := newCatalog()
	store.addProduct(1, mfrSrc, catElbow, map[int64]domain.Value{attrDiameter: domain.Numeric(11)})
	store.addProduct(21, mfrDst, catElbow, map[int64]domain.Value{attrDiameter: domain.Numeric(12)})
	store.addProduct(22, mfrDst, catElbow, map[int64]domain.Value{attrDiameter: domain.Numeric(10)})
	store.addProduct(23, mfrDst, catElbow, map[int64]domain.Value{attrDiameter: domain.Numeric(20)})

	// 12 and 10 are equidistant from 11; the value met first in product id order wins
	result, err := runPipeline(t, store, 1, domain.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int64{21}, result.Candidates)
	assert.Equal(t, int64(21), result.WinnerID)
	assert.True(t, result.ShortCircuited)

	store.values[22][attrDiameter] = domain.Numeric(11.5)
	result, err = runPipeline(t, store, 1, domain.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(22), result.WinnerID)
}

func TestFilterPipeline_SoftFixedShortCircuit(t *testing.T) {
	store := newCatalog()
	store.addCategory(catElbow, attrColor, attrLength)
	store.addProduct(1, mfrSrc, catElbow, map[int64]domain.Value{
		attrColor:  domain.FixedRef(red),
		attrLength: domain.Numeric(50),
	})
	store.addProduct(21, mfrDst, catElbow, map[int64]domain.Value{attrColor: domain.FixedRef(blue), attrLength: domain.Numeric(50)})
	store.addProduct(22, mfrDst, catElbow, map[int64]domain.Value{attrColor: domain.FixedRef(red), attrLength: domain.Numeric(10)})
	store.addProduct(23, mfrDst, catElbow, map[int64]domain.Value{attrColor: domain.FixedRef(blue), attrLength: domain.Numeric(50)})

	result, err := runPipeline(t, store, 1, domain.SearchOptions{})
	require.NoError(t, err)
	assert.True(t, result.ShortCircuited)
	assert.Equal(t, int64(22), result.WinnerID)
	// the RECALCULATION length attribute was never evaluated
	assert.Equal(t, 0, store.count("ListAttributeValues"))
}

func TestFilterPipeline_SkipsEmptyingStep(t *testing.T) {
	store := newCatalog()
	store.addProduct(1, mfrSrc, catElbow, map[int64]domain.Value{
		attrColor:  domain.FixedRef(red),
		attrLength: domain.Numeric(50),
	})
	store.addProduct(21, mfrDst, catElbow, map[int64]domain.Value{attrColor: domain.FixedRef(blue), attrLength: domain.Numeric(10)})
	store.addProduct(22, mfrDst, catElbow, map[int64]domain.Value{attrColor: domain.FixedRef(blue), attrLength: domain.Numeric(45)})

	result, err := runPipeline(t, store, 1, domain.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(22), result.WinnerID)
}

func TestFilterPipeline_WinnerIsLowestSurvivor(t *testing.T) {
	store := newCatalog()
	store.addProduct(1, mfrSrc, catElbow, map[int64]domain.Value{attrAngle: domain.FixedRef(angle90)})
	store.addProduct(25, mfrDst, catElbow, map[int64]domain.Value{attrAngle: domain.FixedRef(angle90)})
	store.addProduct(24, mfrDst, catElbow, map[int64]domain.Value{attrAngle: domain.FixedRef(angle90)})

	result, err := runPipeline(t, store, 1, domain.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int64{24, 25}, result.Candidates)
	assert.Equal(t, int64(24), result.WinnerID)
	assert.False(t, result.ShortCircuited)
}

func TestFilterPipeline_ManualOptions(t *testing.T) {
	newStore := func() *MockAttributeStore {
		store := newCatalog()
		store.addCategory(catElbow, attrAngle, attrDiameter, attrPressure)
		store.addProduct(1, mfrSrc, catElbow, map[int64]domain.Value{
			attrAngle:    domain.FixedRef(angle90),
			attrDiameter: domain.Numeric(110),
			attrPressure: domain.Numeric(16),
		})
		store.addProduct(21, mfrDst, catElbow, map[int64]domain.Value{
			attrAngle: domain.FixedRef(angle45), attrDiameter: domain.Numeric(100), attrPressure: domain.Numeric(10),
		})
		store.addProduct(22, mfrDst, catElbow, map[int64]domain.Value{
			attrAngle: domain.FixedRef(angle90), attrDiameter: domain.Numeric(120), attrPressure: domain.Numeric(16),
		})
		store.addProduct(23, mfrDst, catElbow, map[int64]domain.Value{
			attrAngle: domain.FixedRef(angle90), attrDiameter: domain.Numeric(130), attrPressure: domain.Numeric(25),
		})
		return store
	}

	tests := []struct {
		name    string
		opts    domain.SearchOptions
		want    int64
		wantErr error
	}{
		{
			name: "automated search uses exact HARD numbers",
			opts: domain.SearchOptions{},
			want: 22,
		},
		{
			name: "fixed override replaces the source value",
			opts: domain.SearchOptions{
				FixedOverrides: map[int64]int64{attrAngle: angle45},
				Methods:        map[int64]domain.SelectionMethod{attrPressure: domain.MethodMin},
			},
			want: 21,
		},
		{
			name: "max method on continuous HARD attribute",
			opts: domain.SearchOptions{Methods: map[int64]domain.SelectionMethod{attrPressure: domain.MethodMax}},
			want: 23,
		},
		{
			name: "min method on SOFT attribute",
			opts: domain.SearchOptions{Methods: map[int64]domain.SelectionMethod{
				attrPressure: domain.MethodMin,
				attrDiameter: domain.MethodMin,
			}},
			want: 22,
		},
		{
			name:    "override without candidates",
			opts:    domain.SearchOptions{FixedOverrides: map[int64]int64{attrAngle: 999}},
			wantErr: domain.ErrAnalogNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := runPipeline(t, newStore(), 1, tt.opts)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.WinnerID)
		})
	}
}

func TestFilterPipeline_ContextCancelled(t *testing.T) {
	store := newCatalog()
	store.addProduct(1, mfrSrc, catElbow, map[int64]domain.Value{attrAngle: domain.FixedRef(angle90)})
	store.addProduct(21, mfrDst, catElbow, map[int64]domain.Value{attrAngle: domain.FixedRef(angle90)})

	product, err := store.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	profile, err := NewClassifier(store).Classify(context.Background(), product)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewFilterPipeline(store, zerolog.Nop()).Run(ctx, profile, catElbow, mfrDst, domain.SearchOptions{})
	assert.True(t, errors.Is(err, context.Canceled), "error = %v", err)
}

func TestFilterPipeline_StoreError(t *testing.T) {
	store := newCatalog()
	store.addProduct(1, mfrSrc, catElbow, map[int64]domain.Value{attrAngle: domain.FixedRef(angle90)})
	store.addProduct(21, mfrDst, catElbow, map[int64]domain.Value{attrAngle: domain.FixedRef(angle90)})
	boom := errors.New("disk on fire")
	store.errors["FilterAttributeValues"] = boom

	_, err := runPipeline(t, store, 1, domain.SearchOptions{})
	assert.ErrorIs(t, err, boom)
}

func TestSelectValue(t *testing.T) {
	values := func(nums ...float64) []domain.AttributeValue {
		out := make([]domain.AttributeValue, len(nums))
		for i, n := range nums {
			out[i] = domain.AttributeValue{ProductID: int64(i + 1), Value: domain.Numeric(n)}
		}
		return out
	}

	tests := []struct {
		name    string
		values  []domain.AttributeValue
		source  float64
		method  domain.SelectionMethod
		want    float64
		wantErr error
	}{
		{"nearest", values(10, 12, 20), 11.5, domain.MethodNearest, 12, nil},
		{"nearest tie keeps first", values(12, 10, 20), 11, domain.MethodNearest, 12, nil},
		{"empty method is nearest", values(10, 20), 19, "", 20, nil},
		{"min", values(10, 12, 5), 11, domain.MethodMin, 5, nil},
		{"max", values(10, 12, 5), 11, domain.MethodMax, 12, nil},
		{"unknown method", values(1), 1, "median", 0, domain.ErrInvalidRequest},
		{"non-numeric value", []domain.AttributeValue{{Value: domain.FixedRef(1)}}, 1, domain.MethodNearest, 0, domain.ErrDataIntegrity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectValue(tt.values, tt.source, tt.method)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("selectValue() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("selectValue() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("selectValue() = %v, want %v", got, tt.want)
			}
		})
	}
}
