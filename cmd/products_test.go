package cmd

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"posdash/internal/notify"
	"posdash/internal/resource"
	"posdash/internal/sheets"
	"posdash/pkg/models"
)

type productBackend struct {
	byBarcode map[string]models.Product
	lookups   []url.Values
	created   []any
	updated   []string
	createErr error
}

func (b *productBackend) List(_ context.Context, params url.Values) (*models.Page[models.Product], error) {
	b.lookups = append(b.lookups, params)
	page := &models.Page[models.Product]{}
	if p, ok := b.byBarcode[params.Get("filters[barcode][$eq]")]; ok {
		page.Items = append(page.Items, p)
	}
	return page, nil
}

func (b *productBackend) Create(_ context.Context, payload any) (*models.Product, error) {
	if b.createErr != nil {
		return nil, b.createErr
	}
	b.created = append(b.created, payload)
	return &models.Product{Entity: models.Entity{ID: 100 + len(b.created), DocumentID: "new"}}, nil
}

func (b *productBackend) Update(_ context.Context, documentID string, payload any) (*models.Product, error) {
	b.updated = append(b.updated, documentID)
	return &models.Product{Entity: models.Entity{ID: 1, DocumentID: documentID}}, nil
}

func (b *productBackend) Delete(context.Context, string) error { return nil }

func TestImportProductsMatchesBarcode(t *testing.T) {
	b := &productBackend{byBarcode: map[string]models.Product{
		"4006": {Entity: models.Entity{ID: 7, DocumentID: "prod-cola"}, Name: "Cola", Barcode: "4006"},
	}}
	rec := &notify.Recorder{}
	ctl := resource.New[models.Product](b, productDef.config, rec)

	rows := []sheets.ProductRow{
		{Row: 2, Name: "Cola", Price: 1.6, Barcode: "4006"},
		{Row: 3, Name: "Chips", Price: 2.25, Barcode: "5001", CategoryID: 2},
		{Row: 4, Name: "Gum", Price: 0.8},
	}
	got := importProducts(context.Background(), b, ctl, rec, rows)

	if got != (importResult{created: 2, updated: 1}) {
		t.Errorf("result = %+v, want 2 created, 1 updated", got)
	}
	if len(b.updated) != 1 || b.updated[0] != "prod-cola" {
		t.Errorf("updated = %v, want [prod-cola]", b.updated)
	}
	// Rows without a barcode are created without a lookup.
	if len(b.lookups) != 2 {
		t.Fatalf("barcode lookups = %d, want 2", len(b.lookups))
	}
	if got := b.lookups[0].Get("pagination[pageSize]"); got != "1" {
		t.Errorf("lookup page size = %q, want 1", got)
	}
	if _, ok := b.lookups[0]["filters[barcode][$containsi]"]; ok {
		t.Errorf("barcode lookup must match exactly: %v", b.lookups[0])
	}
	chips := b.created[0].(map[string]any)
	if chips["category"] != 2 || chips["name"] != "Chips" {
		t.Errorf("chips payload = %v", chips)
	}
}

func TestImportProductsCountsFailures(t *testing.T) {
	b := &productBackend{createErr: errors.New("boom")}
	rec := &notify.Recorder{}
	ctl := resource.New[models.Product](b, productDef.config, rec)

	rows := []sheets.ProductRow{{Row: 2, Name: "A", Price: 1}, {Row: 3, Name: "B", Price: 2}}
	got := importProducts(context.Background(), b, ctl, rec, rows)

	if got.failed != 2 || got.created != 0 {
		t.Errorf("result = %+v, want 2 failed", got)
	}
	if n := rec.Count(notify.LevelError); n != 2 {
		t.Errorf("error notices = %d, want one per failed row", n)
	}
}
