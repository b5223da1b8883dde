package models

import "time"

// Category groups products
type Category struct {
	Entity
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Media is an uploaded file as returned by the upload endpoint
type Media struct {
	ID   int    `json:"id"`
	Name string `json:"name,omitempty"`
	URL  string `json:"url"`
}

type Product struct {
	Entity
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	Barcode     string    `json:"barcode"`
	Category    *Category `json:"category,omitempty"`
	Image       *Media    `json:"image,omitempty"`
}

// CategoryName returns the populated category name or "" when not populated.
func (p Product) CategoryName() string {
	if p.Category == nil {
		return ""
	}
	return p.Category.Name
}

// SaleLine is one product entry of a stored sale
type SaleLine struct {
	ID       int      `json:"id,omitempty"`
	Product  *Product `json:"product,omitempty"`
	Price    float64  `json:"price"`
	Quantity int      `json:"quantity"`
}

// Sale is a submitted invoice
type Sale struct {
	Entity
	InvoiceNumber  string     `json:"invoice_number"`
	Date           time.Time  `json:"date"`
	CustomerName   string     `json:"customer_name"`
	CustomerEmail  string     `json:"customer_email"`
	CustomerPhone  string     `json:"customer_phone,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	Subtotal       float64    `json:"subtotal"`
	DiscountAmount float64    `json:"discount_amount"`
	TaxAmount      float64    `json:"tax_amount"`
	Total          float64    `json:"total"`
	Products       []SaleLine `json:"products,omitempty"`
}

// User is the signed-in account
type User struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// DisplayName prefers the full name and falls back to the username.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}
