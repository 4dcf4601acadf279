package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/1v1expert/AnalogPro/internal/domain"
)

// MemoryStore is a thread-safe in-memory catalog
type MemoryStore struct {
	mu sync.RWMutex

	seq           map[string]int64
	manufacturers map[int64]domain.Manufacturer
	categories    map[int64]domain.Category
	attributes    map[int64]domain.Attribute
	fixedValues   map[int64]domain.FixedValue
	alternatives  []domain.AlternativeCategory
	products      map[int64]domain.Product
	values        map[int64]map[int64]domain.AttributeValue // product id -> attribute id -> value
}

// NewMemoryStore creates an empty in-memory catalog
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		seq:           make(map[string]int64),
		manufacturers: make(map[int64]domain.Manufacturer),
		categories:    make(map[int64]domain.Category),
		attributes:    make(map[int64]domain.Attribute),
		fixedValues:   make(map[int64]domain.FixedValue),
		products:      make(map[int64]domain.Product),
		values:        make(map[int64]map[int64]domain.AttributeValue),
	}
}

// nextID must be called with the write lock held
func (s *MemoryStore) nextID(table string, given int64) int64 {
	if given > 0 {
		if given > s.seq[table] {
			s.seq[table] = given
		}
		return given
	}
	s.seq[table]++
	return s.seq[table]
}

// GetProduct returns a copy of the product including its analog cache
func (s *MemoryStore) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", domain.ErrProductNotFound, id)
	}
	return copyProduct(p), nil
}

// FindProducts returns the products of a manufacturer in a category
func (s *MemoryStore) FindProducts(ctx context.Context, categoryID, manufacturerID int64, excludeIrrelevant bool) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for id, p := range s.products {
		if p.CategoryID != categoryID || p.ManufacturerID != manufacturerID {
			continue
		}
		if excludeIrrelevant && p.Irrelevant {
			continue
		}
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids, nil
}

// FindProductsByArticle looks products up by article, optionally within one manufacturer
func (s *MemoryStore) FindProductsByArticle(ctx context.Context, article string, manufacturerID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	article = strings.TrimSpace(article)
	var ids []int64
	for id, p := range s.products {
		if p.Article != article {
			continue
		}
		if manufacturerID != 0 && p.ManufacturerID != manufacturerID {
			continue
		}
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids, nil
}

// ListProductsByManufacturer returns every product of a manufacturer
func (s *MemoryStore) ListProductsByManufacturer(ctx context.Context, manufacturerID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for id, p := range s.products {
		if p.ManufacturerID == manufacturerID {
			ids = append(ids, id)
		}
	}
	sortIDs(ids)
	return ids, nil
}

// GetManufacturer returns a manufacturer by id
func (s *MemoryStore) GetManufacturer(ctx context.Context, id int64) (*domain.Manufacturer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.manufacturers[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", domain.ErrManufacturerNotFound, id)
	}
	return &m, nil
}

// ListManufacturers returns manufacturers ordered by id
func (s *MemoryStore) ListManufacturers(ctx context.Context, trustedOnly bool) ([]domain.Manufacturer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Manufacturer, 0, len(s.manufacturers))
	for _, m := range s.manufacturers {
		if trustedOnly && !m.Trusted {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetCategory returns a category by id
func (s *MemoryStore) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", domain.ErrCategoryNotFound, id)
	}
	c.AttributeIDs = append([]int64(nil), c.AttributeIDs...)
	return &c, nil
}

// GetCategoryAttributes returns the attributes a category defines, ordered by id
func (s *MemoryStore) GetCategoryAttributes(ctx context.Context, categoryID int64) ([]domain.Attribute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[categoryID]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", domain.ErrCategoryNotFound, categoryID)
	}
	attrs := make([]domain.Attribute, 0, len(c.AttributeIDs))
	for _, attrID := range c.AttributeIDs {
		a, ok := s.attributes[attrID]
		if !ok {
			return nil, fmt.Errorf("%w: id %d in category %d", domain.ErrAttributeNotFound, attrID, categoryID)
		}
		attrs = append(attrs, a)
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].ID < attrs[j].ID })
	return attrs, nil
}

// GetAlternativeCategories returns alternatives in registration order
func (s *MemoryStore) GetAlternativeCategories(ctx context.Context, categoryID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for _, alt := range s.alternatives {
		if alt.OriginalID == categoryID {
			ids = append(ids, alt.AlternativeID)
		}
	}
	return ids, nil
}

// GetAttributeValues returns the product's values joined with attributes, ordered by attribute id
func (s *MemoryStore) GetAttributeValues(ctx context.Context, productID int64) ([]domain.AttributeValueRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.products[productID]; !ok {
		return nil, fmt.Errorf("%w: id %d", domain.ErrProductNotFound, productID)
	}

	rows := make([]domain.AttributeValueRow, 0, len(s.values[productID]))
	for attrID, v := range s.values[productID] {
		a, ok := s.attributes[attrID]
		if !ok {
			return nil, fmt.Errorf("%w: id %d on product %d", domain.ErrAttributeNotFound, attrID, productID)
		}
		row := domain.AttributeValueRow{Attribute: a, Value: v.Value}
		if v.Value.FixedValueID != nil {
			row.FixedTitle = s.fixedValues[*v.Value.FixedValueID].Title
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Attribute.ID < rows[j].Attribute.ID })
	return rows, nil
}

// FilterAttributeValues keeps the products within the set that hold exactly value
func (s *MemoryStore) FilterAttributeValues(ctx context.Context, attributeID int64, value domain.Value, within []int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]int64, 0, len(within))
	for _, id := range within {
		v, ok := s.values[id][attributeID]
		if ok && v.Value.Equal(value) {
			out = append(out, id)
		}
	}
	return out, nil
}

// ListAttributeValues returns the values of one attribute held by products within the set
func (s *MemoryStore) ListAttributeValues(ctx context.Context, attributeID int64, within []int64) ([]domain.AttributeValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AttributeValue, 0, len(within))
	for _, id := range within {
		if v, ok := s.values[id][attributeID]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// SaveCachedAnalog replaces the product's cache entry for the entry's manufacturer
func (s *MemoryStore) SaveCachedAnalog(ctx context.Context, productID int64, entry domain.AnalogCacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return fmt.Errorf("%w: id %d", domain.ErrProductNotFound, productID)
	}
	if p.Analogs == nil {
		p.Analogs = make(map[int64]domain.AnalogCacheEntry)
	}
	entry.AuditIDs = append([]int64(nil), entry.AuditIDs...)
	p.Analogs[entry.ManufacturerID] = entry
	s.products[productID] = p
	return nil
}

// SaveManufacturer inserts or replaces a manufacturer
func (s *MemoryStore) SaveManufacturer(ctx context.Context, m domain.Manufacturer) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = s.nextID("manufacturers", m.ID)
	s.manufacturers[m.ID] = m
	return m.ID, nil
}

// SaveCategory inserts or replaces a category
func (s *MemoryStore) SaveCategory(ctx context.Context, c domain.Category) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ParentID != 0 {
		if _, ok := s.categories[c.ParentID]; !ok {
			return 0, fmt.Errorf("%w: parent id %d", domain.ErrCategoryNotFound, c.ParentID)
		}
	}
	c.ID = s.nextID("categories", c.ID)
	c.AttributeIDs = append([]int64(nil), c.AttributeIDs...)
	s.categories[c.ID] = c
	return c.ID, nil
}

// SaveAttribute inserts or replaces an attribute
func (s *MemoryStore) SaveAttribute(ctx context.Context, a domain.Attribute) (int64, error) {
	if !a.Type.Valid() {
		return 0, fmt.Errorf("%w: unknown attribute type %q", domain.ErrInvalidRequest, a.Type)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a.ID = s.nextID("attributes", a.ID)
	s.attributes[a.ID] = a
	return a.ID, nil
}

// SaveFixedValue inserts or replaces an enumerated value
func (s *MemoryStore) SaveFixedValue(ctx context.Context, v domain.FixedValue) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attributes[v.AttributeID]
	if !ok {
		return 0, fmt.Errorf("%w: id %d", domain.ErrAttributeNotFound, v.AttributeID)
	}
	if !a.IsFixed {
		return 0, fmt.Errorf("%w: attribute %d is continuous", domain.ErrDataIntegrity, a.ID)
	}
	v.ID = s.nextID("fixed_values", v.ID)
	s.fixedValues[v.ID] = v
	return v.ID, nil
}

// SaveAlternativeCategory registers an alternative category
func (s *MemoryStore) SaveAlternativeCategory(ctx context.Context, alt domain.AlternativeCategory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range []int64{alt.OriginalID, alt.AlternativeID} {
		if _, ok := s.categories[id]; !ok {
			return fmt.Errorf("%w: id %d", domain.ErrCategoryNotFound, id)
		}
	}
	for _, existing := range s.alternatives {
		if existing == alt {
			return nil
		}
	}
	s.alternatives = append(s.alternatives, alt)
	return nil
}

// SaveProduct inserts or replaces a product together with its attribute values
func (s *MemoryStore) SaveProduct(ctx context.Context, p domain.Product, values []domain.AttributeValue) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.manufacturers[p.ManufacturerID]; !ok {
		return 0, fmt.Errorf("%w: id %d", domain.ErrManufacturerNotFound, p.ManufacturerID)
	}
	if _, ok := s.categories[p.CategoryID]; !ok {
		return 0, fmt.Errorf("%w: id %d", domain.ErrCategoryNotFound, p.CategoryID)
	}

	byAttr := make(map[int64]domain.AttributeValue, len(values))
	for _, v := range values {
		a, ok := s.attributes[v.AttributeID]
		if !ok {
			return 0, fmt.Errorf("%w: id %d", domain.ErrAttributeNotFound, v.AttributeID)
		}
		if err := v.Value.CheckKind(a); err != nil {
			return 0, err
		}
		if v.Value.FixedValueID != nil {
			fv, ok := s.fixedValues[*v.Value.FixedValueID]
			if !ok || fv.AttributeID != a.ID {
				return 0, fmt.Errorf("%w: fixed value %d does not belong to attribute %d",
					domain.ErrDataIntegrity, *v.Value.FixedValueID, a.ID)
			}
		}
		byAttr[v.AttributeID] = v
	}

	p.ID = s.nextID("products", p.ID)
	if existing, ok := s.products[p.ID]; ok && p.Analogs == nil {
		p.Analogs = existing.Analogs
	}
	for attrID, v := range byAttr {
		v.ProductID = p.ID
		v.ID = s.nextID("attribute_values", v.ID)
		byAttr[attrID] = v
	}
	s.products[p.ID] = *copyProduct(p)
	s.values[p.ID] = byAttr
	return p.ID, nil
}

// FindManufacturerByTitle matches a title case-insensitively, falling back to a unique substring match
func (s *MemoryStore) FindManufacturerByTitle(ctx context.Context, title string) (*domain.Manufacturer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]domain.Manufacturer, 0, len(s.manufacturers))
	for _, m := range s.manufacturers {
		all = append(all, m)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return pickManufacturer(all, title)
}

// FindCategoryByTitle finds a category by its title and its parent's title.
// An empty parent title matches root categories only.
func (s *MemoryStore) FindCategoryByTitle(ctx context.Context, parentTitle, title string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]titledCategory, 0, len(s.categories))
	for _, c := range s.categories {
		tc := titledCategory{Category: c}
		if parent, ok := s.categories[c.ParentID]; ok {
			tc.ParentTitle = parent.Title
		}
		all = append(all, tc)
	}
	return pickCategory(all, parentTitle, title)
}

// FindAttribute finds an attribute of a category by type and title
func (s *MemoryStore) FindAttribute(ctx context.Context, categoryID int64, attrType domain.AttributeType, title string) (*domain.Attribute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[categoryID]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", domain.ErrCategoryNotFound, categoryID)
	}
	attrs := make([]domain.Attribute, 0, len(c.AttributeIDs))
	for _, attrID := range c.AttributeIDs {
		if a, ok := s.attributes[attrID]; ok {
			attrs = append(attrs, a)
		}
	}
	return pickAttribute(attrs, categoryID, attrType, title)
}

// FindFixedValue finds an enumerated value of an attribute by title
func (s *MemoryStore) FindFixedValue(ctx context.Context, attributeID int64, title string) (*domain.FixedValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.fixedValues {
		if v.AttributeID == attributeID && v.Title == strings.TrimSpace(title) {
			found := v
			return &found, nil
		}
	}
	return nil, fmt.Errorf("%w: fixed value %q of attribute %d", domain.ErrAttributeNotFound, title, attributeID)
}

func copyProduct(p domain.Product) *domain.Product {
	out := p
	if p.Analogs != nil {
		out.Analogs = make(map[int64]domain.AnalogCacheEntry, len(p.Analogs))
		for k, v := range p.Analogs {
			v.AuditIDs = append([]int64(nil), v.AuditIDs...)
			out.Analogs[k] = v
		}
	}
	return &out
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
