package registry

import "errors"

// Error kinds returned by the registry. Callers test with errors.Is; the API
// layer maps each kind to a status code.
var (
	// ErrSchemaNotFound is returned when no schema metadata or version
	// exists for the requested name, key, or id.
	ErrSchemaNotFound = errors.New("schema not found")

	// ErrInvalidSchema is returned when a schema text fails its dialect's
	// validation.
	ErrInvalidSchema = errors.New("invalid schema")

	// ErrIncompatibleSchema is returned when a candidate version fails the
	// compatibility gate against the latest stored version.
	ErrIncompatibleSchema = errors.New("incompatible schema")

	// ErrSerDesNotFound is returned when no serdes record exists for the
	// requested id.
	ErrSerDesNotFound = errors.New("serdes not found")

	// ErrConfiguration is returned for requests naming an unknown dialect
	// or an invalid compatibility policy.
	ErrConfiguration = errors.New("configuration error")
)
