package content

import "errors"

var (
	ErrUnknownContentType = errors.New("unknown content type")
	ErrOversizeContent    = errors.New("content exceeds maximum size")
	ErrInvalidContent     = errors.New("invalid content")
	ErrSchemeValidation   = errors.New("scheme validation failed")
)
