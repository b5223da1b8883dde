package invoice

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"posdash/internal/logger"
	"posdash/internal/notify"
)

// Field names a line item value that can be edited.
type Field string

const (
	FieldQuantity Field = "quantity"
	FieldPrice    Field = "price"
)

// Candidate is a product offered by the lookup, reduced to what a line needs.
type Candidate struct {
	ProductID string
	Name      string
	Price     float64
	Stock     int
}

// LineItem is one product on the draft. Name and Stock are snapshots taken
// when the line was added; Stock is advisory and never caps Quantity.
type LineItem struct {
	ProductID string
	Name      string
	Quantity  int
	Price     float64
	Stock     int
}

// Amount returns quantity times price.
func (li LineItem) Amount() float64 {
	return finite(float64(li.Quantity)) * finite(li.Price)
}

// Lines is the ordered line item collection of one draft. A product appears
// at most once.
type Lines struct {
	mu       sync.Mutex
	items    []LineItem
	notifier notify.Notifier
	onChange func(items []LineItem)
	log      zerolog.Logger
}

// NewLines creates an empty collection. onChange runs after every successful
// mutation with a copy of the items.
func NewLines(notifier notify.Notifier, onChange func(items []LineItem)) *Lines {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Lines{
		notifier: notifier,
		onChange: onChange,
		log:      logger.WithComponent("invoice-lines"),
	}
}

// Add appends candidate with quantity 1 at its current catalog price.
func (l *Lines) Add(c Candidate) error {
	l.mu.Lock()
	if slices.ContainsFunc(l.items, func(li LineItem) bool { return li.ProductID == c.ProductID }) {
		l.mu.Unlock()
		l.log.Debug().Str("product_id", c.ProductID).Msg("Duplicate line rejected")
		l.notifier.Warn("Product already added to invoice")
		return fmt.Errorf("%w: %s", ErrDuplicateItem, c.ProductID)
	}

	l.items = append(l.items, LineItem{
		ProductID: c.ProductID,
		Name:      c.Name,
		Quantity:  1,
		Price:     max(finite(c.Price), 0),
		Stock:     c.Stock,
	})
	items := l.snapshot()
	l.mu.Unlock()

	l.log.Debug().Str("product_id", c.ProductID).Int("lines", len(items)).Msg("Line added")
	l.changed(items)
	return nil
}

// Update sets quantity or price of the line at index from user input.
// Malformed input counts as 0; quantity is then raised to at least 1 and
// price to at least 0. A quantity must be a whole number no larger than
// MaxQuantity.
func (l *Lines) Update(index int, field Field, value string) error {
	n, ok := parseNumber(value)
	if ok && field == FieldQuantity && !validQuantity(n) {
		n, ok = 0, false
	}

	l.mu.Lock()
	if index < 0 || index >= len(l.items) {
		l.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}

	switch field {
	case FieldQuantity:
		l.items[index].Quantity = int(max(n, 1))
	case FieldPrice:
		l.items[index].Price = max(n, 0)
	default:
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	items := l.snapshot()
	l.mu.Unlock()

	if !ok {
		l.notifier.Warn(fmt.Sprintf("Invalid %s %q, using %s", field, value, fallbackValue(field)))
	}
	l.changed(items)
	return nil
}

// Remove deletes the line at index; later lines move down by one.
func (l *Lines) Remove(index int) error {
	l.mu.Lock()
	if index < 0 || index >= len(l.items) {
		l.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	l.items = slices.Delete(l.items, index, index+1)
	items := l.snapshot()
	l.mu.Unlock()

	l.changed(items)
	return nil
}

// Reset empties the collection.
func (l *Lines) Reset() {
	l.mu.Lock()
	l.items = nil
	l.mu.Unlock()
	l.changed([]LineItem{})
}

// Items returns a copy of the lines in order.
func (l *Lines) Items() []LineItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot()
}

// Len returns the number of lines.
func (l *Lines) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

func (l *Lines) snapshot() []LineItem {
	out := make([]LineItem, len(l.items))
	copy(out, l.items)
	return out
}

func (l *Lines) changed(items []LineItem) {
	if l.onChange != nil {
		l.onChange(items)
	}
}

// parseNumber reads user input; anything that is not a finite number is 0.
func parseNumber(value string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// MaxQuantity is the largest quantity a line accepts.
const MaxQuantity = math.MaxInt32

func validQuantity(n float64) bool {
	return n == math.Trunc(n) && n <= MaxQuantity
}

func fallbackValue(field Field) string {
	if field == FieldQuantity {
		return "1"
	}
	return "0"
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
