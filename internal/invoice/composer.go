// Package invoice composes a sale transaction: a draft header, a line item
// collection with derived totals, a debounced product lookup, and the guarded
// submission to the backend.
package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"posdash/internal/api"
	"posdash/internal/confirm"
	"posdash/internal/logger"
	"posdash/internal/notify"
	"posdash/pkg/models"
)

// HeaderField names an editable draft header field.
type HeaderField string

const (
	FieldInvoiceNumber HeaderField = "invoice_number"
	FieldDate          HeaderField = "date"
	FieldCustomerName  HeaderField = "customer_name"
	FieldCustomerEmail HeaderField = "customer_email"
	FieldCustomerPhone HeaderField = "customer_phone"
	FieldNotes         HeaderField = "notes"
)

// HeaderFields lists the header fields in form order.
var HeaderFields = []HeaderField{
	FieldInvoiceNumber, FieldDate, FieldCustomerName,
	FieldCustomerEmail, FieldCustomerPhone, FieldNotes,
}

// Date input layouts, read in local time.
var dateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Header is the invoice data entered by hand.
type Header struct {
	InvoiceNumber string
	Date          time.Time
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Notes         string
}

// SaleCreator creates sale transactions.
type SaleCreator interface {
	Create(ctx context.Context, payload any) (*models.Sale, error)
}

// PayloadLine is one submitted product line.
type PayloadLine struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// SalePayload is the body of a sale transaction create call.
type SalePayload struct {
	InvoiceNumber  string        `json:"invoice_number"`
	Date           time.Time     `json:"date"`
	CustomerName   string        `json:"customer_name"`
	CustomerEmail  string        `json:"customer_email"`
	CustomerPhone  string        `json:"customer_phone"`
	Notes          string        `json:"notes"`
	Products       []PayloadLine `json:"products"`
	Subtotal       float64       `json:"subtotal"`
	DiscountAmount float64       `json:"discount_amount"`
	TaxAmount      float64       `json:"tax_amount"`
	Total          float64       `json:"total"`
}

// Draft is a read-only snapshot of the composer for rendering.
type Draft struct {
	Header      Header
	Items       []LineItem
	Totals      Totals
	Submitting  bool
	Lookup      LookupState
	SearchText  string
	Suggestions []Candidate
}

// ComposerOption configures a Composer.
type ComposerOption func(*composerOptions)

type composerOptions struct {
	now    func() time.Time
	lookup []LookupOption
}

// WithClock sets the source of the default invoice date.
func WithClock(now func() time.Time) ComposerOption {
	return func(o *composerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLookupOptions configures the embedded product lookup.
func WithLookupOptions(opts ...LookupOption) ComposerOption {
	return func(o *composerOptions) {
		o.lookup = append(o.lookup, opts...)
	}
}

// Composer owns one invoice draft session. The draft is discarded after a
// successful submit.
type Composer struct {
	sales    SaleCreator
	notifier notify.Notifier
	now      func() time.Time
	log      zerolog.Logger

	lines      *Lines
	lookup     *Lookup
	submitting confirm.InFlight

	mu     sync.Mutex
	header Header
}

// NewComposer creates an empty draft dated now.
func NewComposer(sales SaleCreator, searcher Searcher, notifier notify.Notifier, opts ...ComposerOption) *Composer {
	o := composerOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if notifier == nil {
		notifier = notify.Discard{}
	}

	c := &Composer{
		sales:    sales,
		notifier: notifier,
		now:      o.now,
		log:      logger.WithComponent("invoice-composer"),
		header:   Header{Date: o.now()},
	}
	c.lines = NewLines(notifier, nil)
	c.lookup = NewLookup(searcher, notifier, o.lookup...)
	return c
}

// SetHeader assigns one header field from user input.
func (c *Composer) SetHeader(field HeaderField, value string) error {
	value = strings.TrimSpace(value)

	c.mu.Lock()
	defer c.mu.Unlock()

	switch field {
	case FieldInvoiceNumber:
		c.header.InvoiceNumber = value
	case FieldDate:
		date, err := parseDate(value)
		if err != nil {
			c.notifier.Warn(fmt.Sprintf("Invalid date %q, use YYYY-MM-DD or YYYY-MM-DDTHH:MM", value))
			return NewValidationError(string(field), value, "invalid date")
		}
		c.header.Date = date
	case FieldCustomerName:
		c.header.CustomerName = value
	case FieldCustomerEmail:
		c.header.CustomerEmail = value
	case FieldCustomerPhone:
		c.header.CustomerPhone = value
	case FieldNotes:
		c.header.Notes = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return nil
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

// Header returns the current header.
func (c *Composer) Header() Header {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.header
}

// Search feeds query text to the product lookup.
func (c *Composer) Search(ctx context.Context, text string) {
	c.lookup.Type(ctx, text)
}

// Suggestions returns the most recently applied lookup results. While a
// newer search is pending they still belong to the previous text; check
// LookupState before acting on them.
func (c *Composer) Suggestions() []Candidate {
	return c.lookup.Results()
}

// Select adds candidate as a new line and clears the search, whether or not
// the product was already on the draft.
func (c *Composer) Select(candidate Candidate) error {
	defer c.lookup.Clear()
	return c.lines.Add(candidate)
}

// UpdateLine edits quantity or price of the line at index.
func (c *Composer) UpdateLine(index int, field Field, value string) error {
	return c.lines.Update(index, field, value)
}

// RemoveLine removes the line at index.
func (c *Composer) RemoveLine(index int) error {
	return c.lines.Remove(index)
}

// Lines returns the line items in order.
func (c *Composer) Lines() []LineItem {
	return c.lines.Items()
}

// Totals computes the totals for the current lines.
func (c *Composer) Totals() Totals {
	return ComputeTotals(c.lines.Items())
}

// LookupState returns the phase of the product lookup.
func (c *Composer) LookupState() LookupState {
	return c.lookup.State()
}

// Submitting reports whether a submission is in flight.
func (c *Composer) Submitting() bool {
	return c.submitting.Busy()
}

// Snapshot returns the whole draft for rendering.
func (c *Composer) Snapshot() Draft {
	items := c.lines.Items()
	c.mu.Lock()
	d := Draft{Header: c.header, Items: items}
	c.mu.Unlock()

	d.Totals = ComputeTotals(items)

	d.Submitting = c.submitting.Busy()
	d.Lookup = c.lookup.State()
	d.SearchText = c.lookup.Text()
	d.Suggestions = c.lookup.Results()
	return d
}

// Validate checks the draft without contacting the backend.
func (c *Composer) Validate() error {
	h := c.Header()
	switch {
	case h.InvoiceNumber == "":
		return NewValidationError(string(FieldInvoiceNumber), h.InvoiceNumber, "Invoice number is required")
	case h.CustomerName == "":
		return NewValidationError(string(FieldCustomerName), h.CustomerName, "Customer name is required")
	case h.CustomerEmail == "":
		return NewValidationError(string(FieldCustomerEmail), h.CustomerEmail, "Customer email is required")
	case h.Date.IsZero():
		return NewValidationError(string(FieldDate), h.Date, "Date is required")
	case c.lines.Len() == 0:
		return ErrEmptyInvoice
	}
	return nil
}

// Payload assembles the create body from the header, lines and totals.
// The submitted tax is the displayed tax.
func (c *Composer) Payload() SalePayload {
	items := c.lines.Items()
	totals := ComputeTotals(items)
	h := c.Header()

	products := make([]PayloadLine, 0, len(items))
	for _, li := range items {
		products = append(products, PayloadLine{
			ProductID: li.ProductID,
			Quantity:  li.Quantity,
			Price:     li.Price,
		})
	}

	return SalePayload{
		InvoiceNumber:  h.InvoiceNumber,
		Date:           h.Date,
		CustomerName:   h.CustomerName,
		CustomerEmail:  h.CustomerEmail,
		CustomerPhone:  h.CustomerPhone,
		Notes:          h.Notes,
		Products:       products,
		Subtotal:       totals.Subtotal.InexactFloat64(),
		DiscountAmount: totals.Discount.InexactFloat64(),
		TaxAmount:      totals.Tax.InexactFloat64(),
		Total:          totals.Total.InexactFloat64(),
	}
}

// Submit validates the draft and creates the sale transaction. The submitting
// flag is held for the duration of the call and a second Submit while it is
// set fails with confirm.ErrInFlight. On success the draft is reset.
func (c *Composer) Submit(ctx context.Context) (*models.Sale, error) {
	var sale *models.Sale
	err := c.submitting.Run(ctx, func(ctx context.Context) error {
		if err := c.Validate(); err != nil {
			c.notifier.Error(validationMessage(err))
			return &SubmitError{Op: "Validate", Err: err, InvoiceNumber: c.Header().InvoiceNumber}
		}

		payload := c.Payload()
		c.log.Info().
			Str("invoice_number", payload.InvoiceNumber).
			Int("lines", len(payload.Products)).
			Float64("total", payload.Total).
			Msg("Submitting invoice")

		created, err := c.sales.Create(ctx, payload)
		if err == nil && (created == nil || created.ID == 0) {
			err = ErrMissingID
		}
		if err != nil {
			c.log.Error().Err(err).Str("invoice_number", payload.InvoiceNumber).Msg("Invoice submission failed")
			msg := api.FormatError(err, "Failed to create sale transaction")
			if errors.Is(err, ErrMissingID) {
				msg = "Failed to create sale transaction"
			}
			c.notifier.Error("Error submitting invoice: " + msg)
			return &SubmitError{Op: "CreateSale", Err: err, InvoiceNumber: payload.InvoiceNumber}
		}

		c.log.Info().
			Int("id", created.ID).
			Str("document_id", created.DocumentID).
			Msg("Invoice created")
		c.notifier.Success("Invoice created successfully")
		sale = created
		return nil
	})
	if err != nil {
		if errors.Is(err, confirm.ErrInFlight) {
			c.notifier.Warn("Invoice submission already in progress")
		}
		return nil, err
	}

	c.Reset()
	return sale, nil
}

// Reset discards the draft and starts a new one dated now.
func (c *Composer) Reset() {
	c.lookup.Clear()
	c.lines.Reset()
	c.mu.Lock()
	c.header = Header{Date: c.now()}
	c.mu.Unlock()
}

func validationMessage(err error) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case errors.Is(err, ErrEmptyInvoice):
		return "Please add at least one product to the invoice"
	default:
		return err.Error()
	}
}
