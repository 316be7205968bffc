package binder

import "errors"

// Common binding errors
var (
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrMissingContentType   = errors.New("missing content type")
	ErrInvalidJSON          = errors.New("invalid JSON")
	ErrInvalidForm          = errors.New("invalid form data")
	ErrInvalidQuery         = errors.New("invalid query parameter")

	// ErrBinderNotApplicable tells the caller to skip the binder and try the
	// next one, e.g. a JSON binder seeing a form post.
	ErrBinderNotApplicable = errors.New("binder not applicable to request")
)
