package domain

import (
	"fmt"
	"time"
)

// SelectionMethod picks the target value of a continuous attribute among candidates
type SelectionMethod string

const (
	MethodNearest SelectionMethod = "nearest" // default
	MethodMin     SelectionMethod = "min"
	MethodMax     SelectionMethod = "max"
)

// ParseSelectionMethod validates a method name; empty means nearest
func ParseSelectionMethod(s string) (SelectionMethod, error) {
	switch SelectionMethod(s) {
	case "", MethodNearest:
		return MethodNearest, nil
	case MethodMin, MethodMax:
		return SelectionMethod(s), nil
	default:
		return "", fmt.Errorf("%w: unknown selection method %q", ErrInvalidRequest, s)
	}
}

// ProductProfile groups a product's attributes by type.
// Present holds the product's own values, Absent the category attributes it lacks.
type ProductProfile struct {
	ProductID  int64                                 `json:"productId"`
	CategoryID int64                                 `json:"categoryId"`
	Present    map[AttributeType][]AttributeValueRow `json:"present"`
	Absent     map[AttributeType][]Attribute         `json:"absent"`
}

// SearchOptions tune the manual search variant. The zero value is the
// automated search.
type SearchOptions struct {
	// Methods selects the value picker per continuous attribute
	Methods map[int64]SelectionMethod `json:"methods,omitempty"`
	// FixedOverrides replaces the source's FixedValue per fixed attribute
	FixedOverrides map[int64]int64 `json:"fixedOverrides,omitempty"`
}

// Manual reports whether any manual tuning is set
func (o SearchOptions) Manual() bool {
	return len(o.Methods) > 0 || len(o.FixedOverrides) > 0
}

// PipelineResult is the outcome of one run of the candidate filter pipeline
type PipelineResult struct {
	CategoryID     int64         `json:"categoryId"`
	Initial        int           `json:"initial"`   // candidates before the HARD stage
	HardStage      []int64       `json:"hardStage"` // survivors of the HARD stage
	Candidates     []int64       `json:"candidates"`
	WinnerID       int64         `json:"winnerId"`
	ShortCircuited bool          `json:"shortCircuited"`
	Elapsed        time.Duration `json:"elapsed"`
}

// ResolutionSource tells where a resolved analog came from
type ResolutionSource string

const (
	SourceSelf   ResolutionSource = "self"
	SourceCache  ResolutionSource = "cache"
	SourceSearch ResolutionSource = "search"
)

// Resolution is the answer of the analog resolver
type Resolution struct {
	Product *Product          `json:"product"`
	Analog  *Product          `json:"analog"`
	Source  ResolutionSource  `json:"source"`
	Entry   *AnalogCacheEntry `json:"entry,omitempty"`
	Result  *PipelineResult   `json:"result,omitempty"`
}
