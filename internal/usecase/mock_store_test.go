package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/1v1expert/AnalogPro/internal/domain"
)

// MockAttributeStore is an in-memory domain.AttributeStore that counts calls
type MockAttributeStore struct {
	mu sync.Mutex

	products      map[int64]*domain.Product
	manufacturers map[int64]domain.Manufacturer
	attributes    map[int64]domain.Attribute
	categories    map[int64][]int64
	alternatives  map[int64][]int64
	values        map[int64]map[int64]domain.Value

	calls  map[string]int
	errors map[string]error
}

func NewMockAttributeStore() *MockAttributeStore {
	return &MockAttributeStore{
		products:      make(map[int64]*domain.Product),
		manufacturers: make(map[int64]domain.Manufacturer),
		attributes:    make(map[int64]domain.Attribute),
		categories:    make(map[int64][]int64),
		alternatives:  make(map[int64][]int64),
		values:        make(map[int64]map[int64]domain.Value),
		calls:         make(map[string]int),
		errors:        make(map[string]error),
	}
}

func (m *MockAttributeStore) addManufacturer(id int64, trusted bool) {
	m.manufacturers[id] = domain.Manufacturer{ID: id, Title: fmt.Sprintf("Manufacturer %d", id), Trusted: trusted}
}

func (m *MockAttributeStore) addAttribute(id int64, title string, t domain.AttributeType, fixed bool) {
	m.attributes[id] = domain.Attribute{ID: id, Title: title, Type: t, IsFixed: fixed}
}

func (m *MockAttributeStore) addCategory(id int64, attrIDs ...int64) {
	m.categories[id] = attrIDs
}

func (m *MockAttributeStore) addAlternative(original, alternative int64) {
	m.alternatives[original] = append(m.alternatives[original], alternative)
}

func (m *MockAttributeStore) addProduct(id, manufacturerID, categoryID int64, values map[int64]domain.Value) {
	m.products[id] = &domain.Product{
		ID:             id,
		Title:          fmt.Sprintf("Product %d", id),
		Article:        fmt.Sprintf("ART-%d", id),
		ManufacturerID: manufacturerID,
		CategoryID:     categoryID,
	}
	m.values[id] = values
}

func (m *MockAttributeStore) count(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// record must be called with the lock held
func (m *MockAttributeStore) record(method string) error {
	m.calls[method]++
	return m.errors[method]
}

func (m *MockAttributeStore) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetProduct"); err != nil {
		return nil, err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", domain.ErrProductNotFound, id)
	}
	out := *p
	if p.Analogs != nil {
		out.Analogs = make(map[int64]domain.AnalogCacheEntry, len(p.Analogs))
		for k, v := range p.Analogs {
			out.Analogs[k] = v
		}
	}
	return &out, nil
}

func (m *MockAttributeStore) FindProducts(ctx context.Context, categoryID, manufacturerID int64, excludeIrrelevant bool) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("FindProducts"); err != nil {
		return nil, err
	}
	var ids []int64
	for id, p := range m.products {
		if p.CategoryID == categoryID && p.ManufacturerID == manufacturerID && !(excludeIrrelevant && p.Irrelevant) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *MockAttributeStore) FindProductsByArticle(ctx context.Context, article string, manufacturerID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("FindProductsByArticle"); err != nil {
		return nil, err
	}
	var ids []int64
	for id, p := range m.products {
		if p.Article == article && (manufacturerID == 0 || p.ManufacturerID == manufacturerID) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *MockAttributeStore) ListProductsByManufacturer(ctx context.Context, manufacturerID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ListProductsByManufacturer"); err != nil {
		return nil, err
	}
	var ids []int64
	for id, p := range m.products {
		if p.ManufacturerID == manufacturerID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *MockAttributeStore) GetManufacturer(ctx context.Context, id int64) (*domain.Manufacturer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetManufacturer"); err != nil {
		return nil, err
	}
	mf, ok := m.manufacturers[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", domain.ErrManufacturerNotFound, id)
	}
	return &mf, nil
}

func (m *MockAttributeStore) ListManufacturers(ctx context.Context, trustedOnly bool) ([]domain.Manufacturer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ListManufacturers"); err != nil {
		return nil, err
	}
	var out []domain.Manufacturer
	for _, mf := range m.manufacturers {
		if !trustedOnly || mf.Trusted {
			out = append(out, mf)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockAttributeStore) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetCategory"); err != nil {
		return nil, err
	}
	attrs, ok := m.categories[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", domain.ErrCategoryNotFound, id)
	}
	return &domain.Category{ID: id, Title: fmt.Sprintf("Category %d", id), AttributeIDs: attrs}, nil
}

func (m *MockAttributeStore) GetCategoryAttributes(ctx context.Context, categoryID int64) ([]domain.Attribute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetCategoryAttributes"); err != nil {
		return nil, err
	}
	ids, ok := m.categories[categoryID]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", domain.ErrCategoryNotFound, categoryID)
	}
	out := make([]domain.Attribute, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.attributes[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockAttributeStore) GetAlternativeCategories(ctx context.Context, categoryID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetAlternativeCategories"); err != nil {
		return nil, err
	}
	return append([]int64(nil), m.alternatives[categoryID]...), nil
}

func (m *MockAttributeStore) GetAttributeValues(ctx context.Context, productID int64) ([]domain.AttributeValueRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetAttributeValues"); err != nil {
		return nil, err
	}
	if _, ok := m.products[productID]; !ok {
		return nil, fmt.Errorf("%w: id %d", domain.ErrProductNotFound, productID)
	}
	var rows []domain.AttributeValueRow
	for attrID, v := range m.values[productID] {
		a, ok := m.attributes[attrID]
		if !ok {
			return nil, fmt.Errorf("%w: id %d", domain.ErrAttributeNotFound, attrID)
		}
		rows = append(rows, domain.AttributeValueRow{Attribute: a, Value: v})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Attribute.ID < rows[j].Attribute.ID })
	return rows, nil
}

func (m *MockAttributeStore) FilterAttributeValues(ctx context.Context, attributeID int64, value domain.Value, within []int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("FilterAttributeValues"); err != nil {
		return nil, err
	}
	var out []int64
	for _, id := range within {
		if v, ok := m.values[id][attributeID]; ok && v.Equal(value) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *MockAttributeStore) ListAttributeValues(ctx context.Context, attributeID int64, within []int64) ([]domain.AttributeValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ListAttributeValues"); err != nil {
		return nil, err
	}
	var out []domain.AttributeValue
	for _, id := range within {
		if v, ok := m.values[id][attributeID]; ok {
			out = append(out, domain.AttributeValue{ProductID: id, AttributeID: attributeID, Value: v})
		}
	}
	return out, nil
}

func (m *MockAttributeStore) SaveCachedAnalog(ctx context.Context, productID int64, entry domain.AnalogCacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("SaveCachedAnalog"); err != nil {
		return err
	}
	p, ok := m.products[productID]
	if !ok {
		return fmt.Errorf("%w: id %d", domain.ErrProductNotFound, productID)
	}
	if p.Analogs == nil {
		p.Analogs = make(map[int64]domain.AnalogCacheEntry)
	}
	p.Analogs[entry.ManufacturerID] = entry
	return nil
}
