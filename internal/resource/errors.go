package resource

import "errors"

var (
	// ErrInvalidPageSize is returned when a page size outside the allowed set is requested.
	ErrInvalidPageSize = errors.New("page size not allowed")

	// ErrMissingDocumentID is returned when a write or delete targets a record
	// that has no document reference.
	ErrMissingDocumentID = errors.New("record has no documentId")
)
