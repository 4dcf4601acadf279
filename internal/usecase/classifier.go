package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/1v1expert/AnalogPro/internal/domain"
)

// Classifier groups a product's attributes by type
type Classifier struct {
	store domain.AttributeStore
}

// NewClassifier creates a classifier reading from store
func NewClassifier(store domain.AttributeStore) *Classifier {
	return &Classifier{store: store}
}

// Classify returns the product's present values and the category attributes
// it has no value for, both grouped by attribute type. Within a type fixed
// attributes come before continuous ones, otherwise ordered by attribute id.
func (c *Classifier) Classify(ctx context.Context, product *domain.Product) (*domain.ProductProfile, error) {
	if product == nil {
		return nil, domain.ErrInvalidRequest
	}

	categoryAttrs, err := c.store.GetCategoryAttributes(ctx, product.CategoryID)
	if err != nil {
		return nil, err
	}
	rows, err := c.store.GetAttributeValues(ctx, product.ID)
	if err != nil {
		return nil, err
	}

	profile := &domain.ProductProfile{
		ProductID:  product.ID,
		CategoryID: product.CategoryID,
		Present:    make(map[domain.AttributeType][]domain.AttributeValueRow),
		Absent:     make(map[domain.AttributeType][]domain.Attribute),
	}

	present := make(map[int64]bool, len(rows))
	for _, row := range rows {
		if !row.Attribute.Type.Valid() {
			return nil, fmt.Errorf("%w: attribute %d has unknown type %q",
				domain.ErrAttributeNotFound, row.Attribute.ID, row.Attribute.Type)
		}
		if err := row.Value.CheckKind(row.Attribute); err != nil {
			return nil, fmt.Errorf("product %d: %w", product.ID, err)
		}
		present[row.Attribute.ID] = true
		profile.Present[row.Attribute.Type] = append(profile.Present[row.Attribute.Type], row)
	}

	for _, attr := range categoryAttrs {
		if present[attr.ID] {
			continue
		}
		if !attr.Type.Valid() {
			return nil, fmt.Errorf("%w: attribute %d has unknown type %q", domain.ErrAttributeNotFound, attr.ID, attr.Type)
		}
		profile.Absent[attr.Type] = append(profile.Absent[attr.Type], attr)
	}

	for _, group := range profile.Present {
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Attribute.IsFixed != group[j].Attribute.IsFixed {
				return group[i].Attribute.IsFixed
			}
			return group[i].Attribute.ID < group[j].Attribute.ID
		})
	}
	for _, group := range profile.Absent {
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })
	}

	return profile, nil
}
