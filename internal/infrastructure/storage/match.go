package storage

import (
	"fmt"
	"strings"

	"github.com/1v1expert/AnalogPro/internal/domain"
)

// pickManufacturer matches a title case-insensitively, falling back to a
// unique substring match
func pickManufacturer(all []domain.Manufacturer, title string) (*domain.Manufacturer, error) {
	title = strings.TrimSpace(title)
	var partial []domain.Manufacturer
	for _, m := range all {
		if strings.EqualFold(m.Title, title) {
			found := m
			return &found, nil
		}
		if title != "" && strings.Contains(strings.ToLower(m.Title), strings.ToLower(title)) {
			partial = append(partial, m)
		}
	}
	switch len(partial) {
	case 0:
		return nil, fmt.Errorf("%w: %q", domain.ErrManufacturerNotFound, title)
	case 1:
		return &partial[0], nil
	default:
		return nil, fmt.Errorf("%w: %d manufacturers match %q", domain.ErrAmbiguousMatch, len(partial), title)
	}
}

// titledCategory is a category together with its parent's title
type titledCategory struct {
	domain.Category
	ParentTitle string
}

// pickCategory finds a category by title and parent title; an empty parent
// title matches root categories only
func pickCategory(all []titledCategory, parentTitle, title string) (*domain.Category, error) {
	parentTitle = strings.TrimSpace(parentTitle)
	title = strings.TrimSpace(title)

	var found []domain.Category
	for _, c := range all {
		if !strings.EqualFold(c.Title, title) {
			continue
		}
		if parentTitle == "" {
			if c.ParentID == 0 {
				found = append(found, c.Category)
			}
			continue
		}
		if c.ParentID != 0 && strings.EqualFold(c.ParentTitle, parentTitle) {
			found = append(found, c.Category)
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %q -> %q", domain.ErrCategoryNotFound, parentTitle, title)
	case 1:
		return &found[0], nil
	default:
		return nil, fmt.Errorf("%w: %d categories named %q under %q", domain.ErrAmbiguousMatch, len(found), title, parentTitle)
	}
}

// pickAttribute finds an attribute by type and title among a category's attributes
func pickAttribute(attrs []domain.Attribute, categoryID int64, attrType domain.AttributeType, title string) (*domain.Attribute, error) {
	title = strings.TrimSpace(title)
	var found []domain.Attribute
	for _, a := range attrs {
		if a.Type == attrType && strings.EqualFold(a.Title, title) {
			found = append(found, a)
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s %q in category %d", domain.ErrAttributeNotFound, attrType, title, categoryID)
	case 1:
		return &found[0], nil
	default:
		return nil, fmt.Errorf("%w: %d attributes %s %q", domain.ErrAmbiguousMatch, len(found), attrType, title)
	}
}
