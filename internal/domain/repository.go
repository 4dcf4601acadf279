package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// AttributeStore is the read side of the catalog plus the analog cache write.
// Product id lists are ordered by ascending id; alternative categories keep
// their registration order.
type AttributeStore interface {
	GetProduct(ctx context.Context, id int64) (*Product, error)
	FindProducts(ctx context.Context, categoryID, manufacturerID int64, excludeIrrelevant bool) ([]int64, error)
	FindProductsByArticle(ctx context.Context, article string, manufacturerID int64) ([]int64, error)
	ListProductsByManufacturer(ctx context.Context, manufacturerID int64) ([]int64, error)

	GetManufacturer(ctx context.Context, id int64) (*Manufacturer, error)
	ListManufacturers(ctx context.Context, trustedOnly bool) ([]Manufacturer, error)

	GetCategory(ctx context.Context, id int64) (*Category, error)
	GetCategoryAttributes(ctx context.Context, categoryID int64) ([]Attribute, error)
	GetAlternativeCategories(ctx context.Context, categoryID int64) ([]int64, error)

	// GetAttributeValues returns the product's values joined with their attributes
	GetAttributeValues(ctx context.Context, productID int64) ([]AttributeValueRow, error)
	// FilterAttributeValues returns the products within the set holding exactly value
	FilterAttributeValues(ctx context.Context, attributeID int64, value Value, within []int64) ([]int64, error)
	// ListAttributeValues returns the values of attributeID held by products within the set
	ListAttributeValues(ctx context.Context, attributeID int64, within []int64) ([]AttributeValue, error)

	SaveCachedAnalog(ctx context.Context, productID int64, entry AnalogCacheEntry) error
}

// CatalogWriter populates the catalog. Save methods assign an id when the
// given one is zero and return the stored id.
type CatalogWriter interface {
	SaveManufacturer(ctx context.Context, m Manufacturer) (int64, error)
	SaveCategory(ctx context.Context, c Category) (int64, error)
	SaveAttribute(ctx context.Context, a Attribute) (int64, error)
	SaveFixedValue(ctx context.Context, v FixedValue) (int64, error)
	SaveAlternativeCategory(ctx context.Context, alt AlternativeCategory) error
	SaveProduct(ctx context.Context, p Product, values []AttributeValue) (int64, error)

	FindManufacturerByTitle(ctx context.Context, title string) (*Manufacturer, error)
	FindCategoryByTitle(ctx context.Context, parentTitle, title string) (*Category, error)
	FindAttribute(ctx context.Context, categoryID int64, attrType AttributeType, title string) (*Attribute, error)
	FindFixedValue(ctx context.Context, attributeID int64, title string) (*FixedValue, error)
}

// Catalog is a store that can be both read and populated
type Catalog interface {
	AttributeStore
	CatalogWriter
}
