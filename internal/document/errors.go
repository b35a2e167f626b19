package document

import "errors"

var (
	// ErrUnknownDocument indicates an edit addressed to a document the
	// editor does not hold.
	ErrUnknownDocument = errors.New("unknown document")

	// ErrInvalidRange indicates a range outside the document.
	ErrInvalidRange = errors.New("invalid range")
)
