package models

// Record is a backend entity. RecordID is the display identifier used for
// reads; RecordDocumentID is the stable reference used for update and delete.
type Record interface {
	RecordID() int
	RecordDocumentID() string
}

// PageMeta mirrors the backend's meta.pagination block
type PageMeta struct {
	Page      int `json:"page"`
	PageSize  int `json:"pageSize"`
	PageCount int `json:"pageCount"`
	Total     int `json:"total"`
}

// Page is one page of records in server order
type Page[T any] struct {
	Items []T
	Meta  PageMeta
}

// Entity carries the two identifiers every backend record has.
type Entity struct {
	ID         int    `json:"id,omitempty"`
	DocumentID string `json:"documentId,omitempty"`
}

// RecordID implements Record.
func (e Entity) RecordID() int { return e.ID }

// RecordDocumentID implements Record.
func (e Entity) RecordDocumentID() string { return e.DocumentID }
