package cmd

import (
	"fmt"

	"posdash/internal/api"
	"posdash/internal/query"
	"posdash/internal/resource"
	"posdash/pkg/models"
)

// resourceDef describes one resource page: list behavior, table columns and
// how a record is named in prompts.
type resourceDef[T models.Record] struct {
	config   resource.Config
	path     string
	columns  []column[T]
	describe func(T) string
}

var categoryDef = resourceDef[models.Category]{
	config: resource.Config{
		Name:  "categories",
		Label: "Category",
		Fields: []query.Field{
			{Key: "name"},
			{Key: "description"},
		},
	},
	path: api.PathCategories,
	columns: []column[models.Category]{
		{"ID", func(c models.Category) string { return fmt.Sprint(c.ID) }},
		{"NAME", func(c models.Category) string { return c.Name }},
		{"DESCRIPTION", func(c models.Category) string { return c.Description }},
		{"DOCUMENT ID", func(c models.Category) string { return c.DocumentID }},
	},
	describe: func(c models.Category) string { return fmt.Sprintf("%q", c.Name) },
}

var productDef = resourceDef[models.Product]{
	config: resource.Config{
		Name:  "products",
		Label: "Product",
		Fields: []query.Field{
			{Key: "name"},
			{Key: "category", Backend: "category][name"},
			{Key: "barcode"},
		},
		Populate: []string{"category", "image"},
	},
	path: api.PathProducts,
	columns: []column[models.Product]{
		{"ID", func(p models.Product) string { return fmt.Sprint(p.ID) }},
		{"NAME", func(p models.Product) string { return p.Name }},
		{"CATEGORY", func(p models.Product) string { return p.CategoryName() }},
		{"PRICE", func(p models.Product) string { return money(p.Price) }},
		{"STOCK", func(p models.Product) string { return fmt.Sprint(p.Stock) }},
		{"BARCODE", func(p models.Product) string { return p.Barcode }},
		{"DOCUMENT ID", func(p models.Product) string { return p.DocumentID }},
	},
	describe: func(p models.Product) string { return fmt.Sprintf("%q", p.Name) },
}

var saleDef = resourceDef[models.Sale]{
	config: resource.Config{
		Name:  "sales",
		Label: "Sale",
		Fields: []query.Field{
			{Key: "invoice_number"},
			{Key: "customer_name"},
			{Key: "customer_email"},
			{Key: "customer_phone"},
			{Key: "date", Kind: query.Date},
		},
	},
	path: api.PathSales,
	columns: []column[models.Sale]{
		{"INVOICE", func(s models.Sale) string { return s.InvoiceNumber }},
		{"DATE", func(s models.Sale) string { return formatSaleDate(s) }},
		{"CUSTOMER", func(s models.Sale) string { return s.CustomerName }},
		{"EMAIL", func(s models.Sale) string { return s.CustomerEmail }},
		{"PHONE", func(s models.Sale) string { return s.CustomerPhone }},
		{"TOTAL", func(s models.Sale) string { return money(s.Total) }},
		{"DOCUMENT ID", func(s models.Sale) string { return s.DocumentID }},
	},
	describe: func(s models.Sale) string { return "invoice " + s.InvoiceNumber },
}

func formatSaleDate(s models.Sale) string {
	if s.Date.IsZero() {
		return ""
	}
	return s.Date.Local().Format("2006-01-02 15:04")
}
