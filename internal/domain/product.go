package domain

import (
	"fmt"
	"strings"
	"time"
)

// AttributeType governs how strictly an attribute is matched during analog search
type AttributeType string

const (
	AttributeHard          AttributeType = "hrd" // must match exactly or be mutually absent
	AttributeSoft          AttributeType = "sft" // best-effort narrowing
	AttributeRelation      AttributeType = "rlt"
	AttributeRecalculation AttributeType = "rcl" // final numeric tie-break
	AttributePrice         AttributeType = "prc"
)

// AttributeTypes lists every attribute type in matching order
var AttributeTypes = []AttributeType{
	AttributeHard,
	AttributeSoft,
	AttributeRelation,
	AttributeRecalculation,
	AttributePrice,
}

var attributeTypeAliases = map[string]AttributeType{
	"hrd": AttributeHard, "hard": AttributeHard, "жесткий": AttributeHard, "жёсткий": AttributeHard,
	"sft": AttributeSoft, "soft": AttributeSoft, "мягкий": AttributeSoft,
	"rlt": AttributeRelation, "relation": AttributeRelation, "связь": AttributeRelation,
	"rcl": AttributeRecalculation, "recalculation": AttributeRecalculation, "пересчет": AttributeRecalculation, "пересчёт": AttributeRecalculation,
	"prc": AttributePrice, "price": AttributePrice, "цена": AttributePrice,
}

// ParseAttributeType accepts a type code or its long name (case-insensitive)
func ParseAttributeType(s string) (AttributeType, error) {
	t, ok := attributeTypeAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: unknown attribute type %q", ErrAttributeNotFound, s)
	}
	return t, nil
}

// Valid reports whether t is one of the known attribute types
func (t AttributeType) Valid() bool {
	for _, known := range AttributeTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Manufacturer represents a catalog vendor
type Manufacturer struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	ShortTitle string `json:"shortTitle,omitempty"`
	Trusted    bool   `json:"trusted"` // scopes health-check batches
}

// Category represents a product class with the attributes it defines
type Category struct {
	ID           int64   `json:"id"`
	ParentID     int64   `json:"parentId,omitempty"` // 0 for a root category
	Title        string  `json:"title"`
	ShortTitle   string  `json:"shortTitle,omitempty"`
	AttributeIDs []int64 `json:"attributeIds"`
}

// Attribute describes one characteristic a category may define
type Attribute struct {
	ID       int64         `json:"id"`
	Title    string        `json:"title"`
	Type     AttributeType `json:"type"`
	Unit     string        `json:"unit,omitempty"`
	Priority int           `json:"priority"`
	IsFixed  bool          `json:"isFixed"`
}

// FixedValue is an enumerated value of a fixed-kind attribute
type FixedValue struct {
	ID          int64  `json:"id"`
	AttributeID int64  `json:"attributeId"`
	Title       string `json:"title"`
}

// Value is either a FixedValue reference or a number, never both
type Value struct {
	FixedValueID *int64   `json:"fixedValueId,omitempty"`
	Numeric      *float64 `json:"numeric,omitempty"`
}

// FixedRef builds a Value referencing a FixedValue
func FixedRef(id int64) Value {
	return Value{FixedValueID: &id}
}

// Numeric builds a continuous Value
func Numeric(v float64) Value {
	return Value{Numeric: &v}
}

// IsFixed reports whether the value references a FixedValue
func (v Value) IsFixed() bool {
	return v.FixedValueID != nil
}

// Equal compares two values exactly
func (v Value) Equal(other Value) bool {
	switch {
	case v.FixedValueID != nil && other.FixedValueID != nil:
		return *v.FixedValueID == *other.FixedValueID
	case v.Numeric != nil && other.Numeric != nil:
		return *v.Numeric == *other.Numeric
	default:
		return false
	}
}

// CheckKind verifies that exactly one field is populated and that it
// agrees with the attribute kind.
func (v Value) CheckKind(attr Attribute) error {
	if (v.FixedValueID == nil) == (v.Numeric == nil) {
		return fmt.Errorf("%w: attribute %d must hold exactly one of fixed value or number", ErrDataIntegrity, attr.ID)
	}
	if v.IsFixed() != attr.IsFixed {
		return fmt.Errorf("%w: attribute %d (%s) is_fixed=%v but value is_fixed=%v",
			ErrDataIntegrity, attr.ID, attr.Title, attr.IsFixed, v.IsFixed())
	}
	return nil
}

func (v Value) String() string {
	switch {
	case v.FixedValueID != nil:
		return fmt.Sprintf("fixed:%d", *v.FixedValueID)
	case v.Numeric != nil:
		return fmt.Sprintf("%g", *v.Numeric)
	default:
		return "<empty>"
	}
}

// AttributeValue binds one product to one attribute value
type AttributeValue struct {
	ID          int64 `json:"id"`
	ProductID   int64 `json:"productId"`
	AttributeID int64 `json:"attributeId"`
	Value       Value `json:"value"`
}

// AttributeValueRow is an AttributeValue joined with its attribute
type AttributeValueRow struct {
	Attribute  Attribute `json:"attribute"`
	Value      Value     `json:"value"`
	FixedTitle string    `json:"fixedTitle,omitempty"`
}

// AlternativeCategory maps a category to one to retry the search under
type AlternativeCategory struct {
	OriginalID    int64 `json:"originalId"`
	AlternativeID int64 `json:"alternativeId"`
}

// AnalogCacheEntry is the persisted result of one resolution
type AnalogCacheEntry struct {
	ManufacturerID int64     `json:"manufacturerId"`
	AnalogID       int64     `json:"analogId"`
	AuditIDs       []int64   `json:"auditIds"` // candidates that survived the HARD stage
	CategoryID     int64     `json:"categoryId"`
	ComputedAt     time.Time `json:"computedAt"`
	ComputedBy     string    `json:"computedBy"`
}

// Product is a catalog item of one manufacturer in one category
type Product struct {
	ID                int64                      `json:"id"`
	Title             string                     `json:"title"`
	Article           string                     `json:"article"`
	AdditionalArticle string                     `json:"additionalArticle,omitempty"`
	Series            string                     `json:"series,omitempty"`
	ManufacturerID    int64                      `json:"manufacturerId"`
	CategoryID        int64                      `json:"categoryId"`
	Irrelevant        bool                       `json:"irrelevant"`
	Analogs           map[int64]AnalogCacheEntry `json:"analogs,omitempty"`
}

// CachedAnalog returns the cache entry for a manufacturer if present
func (p *Product) CachedAnalog(manufacturerID int64) (AnalogCacheEntry, bool) {
	if p == nil || p.Analogs == nil {
		return AnalogCacheEntry{}, false
	}
	entry, ok := p.Analogs[manufacturerID]
	return entry, ok
}
