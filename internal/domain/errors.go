package domain

import "errors"

var (
	// ErrAnalogNotFound is returned when no candidate survives the HARD stage
	// in the product's category or any of its alternatives
	ErrAnalogNotFound = errors.New("analog not found")

	// ErrProductNotFound is returned when a product id or article is unknown
	ErrProductNotFound = errors.New("product not found")

	// ErrManufacturerNotFound is returned when a manufacturer is unknown
	ErrManufacturerNotFound = errors.New("manufacturer not found")

	// ErrCategoryNotFound is returned when a referenced category is missing
	ErrCategoryNotFound = errors.New("category not found")

	// ErrAttributeNotFound is returned when a referenced attribute is missing
	ErrAttributeNotFound = errors.New("attribute not found")

	// ErrAmbiguousMatch is returned when an identity key expected to be unique
	// matches several products
	ErrAmbiguousMatch = errors.New("ambiguous match")

	// ErrDataIntegrity is returned when stored values contradict their attribute
	ErrDataIntegrity = errors.New("data integrity violation")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)

// IsDataError reports whether err signals store inconsistency rather than
// an expected miss
func IsDataError(err error) bool {
	return errors.Is(err, ErrCategoryNotFound) ||
		errors.Is(err, ErrAttributeNotFound) ||
		errors.Is(err, ErrDataIntegrity) ||
		errors.Is(err, ErrAmbiguousMatch)
}
