package registry

import "errors"

var (
	// ErrNoPublishedVersion indicates the registry lists the app but no
	// version has been published.
	ErrNoPublishedVersion = errors.New("mini app has no published version")

	// ErrMiniAppNotFound indicates the requested app id is unknown to the
	// registry.
	ErrMiniAppNotFound = errors.New("mini app not found")

	// ErrInvalidResponse indicates the response body did not match the
	// expected shape.
	ErrInvalidResponse = errors.New("invalid registry response")
)
