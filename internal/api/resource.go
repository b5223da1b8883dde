package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"posdash/pkg/models"
)

// Resource paths
const (
	PathCategories       = "/api/categories"
	PathProducts         = "/api/products"
	PathSales            = "/api/sales"
	PathSaleTransactions = "/api/sale-transactions"
)

type listEnvelope[T any] struct {
	Data []T `json:"data"`
	Meta struct {
		Pagination models.PageMeta `json:"pagination"`
	} `json:"meta"`
}

type itemEnvelope[T any] struct {
	Data *T `json:"data"`
}

type payloadEnvelope struct {
	Data any `json:"data"`
}

// Resource is one backend collection of T. Reads are addressed by query,
// writes and deletes by documentId.
type Resource[T any] struct {
	client *Client
	path   string
}

// NewResource binds a collection path such as PathProducts.
func NewResource[T any](client *Client, path string) *Resource[T] {
	return &Resource[T]{client: client, path: path}
}

// Path returns the collection path.
func (r *Resource[T]) Path() string { return r.path }

// List fetches one page.
func (r *Resource[T]) List(ctx context.Context, params url.Values) (*models.Page[T], error) {
	var envelope listEnvelope[T]
	err := r.client.send(ctx, request{method: http.MethodGet, path: r.path, query: params}, &envelope)
	if err != nil {
		return nil, err
	}

	items := envelope.Data
	if items == nil {
		items = []T{}
	}
	return &models.Page[T]{Items: items, Meta: envelope.Meta.Pagination}, nil
}

// Get fetches one record by documentId.
func (r *Resource[T]) Get(ctx context.Context, documentID string, params url.Values) (*T, error) {
	var envelope itemEnvelope[T]
	err := r.client.send(ctx, request{method: http.MethodGet, path: r.itemPath(documentID), query: params}, &envelope)
	if err != nil {
		return nil, err
	}
	if envelope.Data == nil {
		return nil, &Error{Op: "GET " + r.itemPath(documentID), Status: http.StatusNotFound, Err: ErrNotFound}
	}
	return envelope.Data, nil
}

// Create posts {"data": payload} and returns the stored record.
func (r *Resource[T]) Create(ctx context.Context, payload any) (*T, error) {
	var envelope itemEnvelope[T]
	err := r.client.send(ctx, request{method: http.MethodPost, path: r.path, body: payloadEnvelope{Data: payload}}, &envelope)
	if err != nil {
		return nil, err
	}
	return envelope.Data, nil
}

// Update puts {"data": payload} to the record with documentID.
func (r *Resource[T]) Update(ctx context.Context, documentID string, payload any) (*T, error) {
	var envelope itemEnvelope[T]
	err := r.client.send(ctx, request{method: http.MethodPut, path: r.itemPath(documentID), body: payloadEnvelope{Data: payload}}, &envelope)
	if err != nil {
		return nil, err
	}
	return envelope.Data, nil
}

// Delete removes the record with documentID.
func (r *Resource[T]) Delete(ctx context.Context, documentID string) error {
	return r.client.send(ctx, request{method: http.MethodDelete, path: r.itemPath(documentID)}, nil)
}

func (r *Resource[T]) itemPath(documentID string) string {
	return r.path + "/" + url.PathEscape(strings.TrimSpace(documentID))
}
