package catalog

import "errors"

// Sentinel errors for catalog operations.
var (
	// ErrInvalidCatalog indicates the device model file is not valid JSON
	// or does not have the expected top-level shape.
	ErrInvalidCatalog = errors.New("invalid device model catalog")

	// ErrInvalidManifest indicates the INDI driver manifest could not be
	// parsed as XML.
	ErrInvalidManifest = errors.New("invalid driver manifest")

	// ErrModelNotFound indicates a lookup for a model name the catalog
	// does not contain.
	ErrModelNotFound = errors.New("device model not found")
)
