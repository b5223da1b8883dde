// Package resource implements the paginated, filterable list controller
// shared by every resource page (categories, products, sales).
//
// The controller owns filters, the page request and the last page result for
// one resource. Every state change triggers a refetch; only the response to
// the most recently issued fetch is applied. Writes never patch the list
// locally: after a successful delete the list is refetched from the backend.
package resource

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"posdash/internal/api"
	"posdash/internal/confirm"
	"posdash/internal/logger"
	"posdash/internal/notify"
	"posdash/internal/query"
	"posdash/pkg/models"
)

// DefaultPageSize is the page size a controller starts with.
const DefaultPageSize = 10

// DefaultPageSizes is the allowed page size set.
var DefaultPageSizes = []int{5, 10, 20}

// Backend is the slice of the backend API a controller needs.
type Backend[T any] interface {
	List(ctx context.Context, params url.Values) (*models.Page[T], error)
	Create(ctx context.Context, payload any) (*T, error)
	Update(ctx context.Context, documentID string, payload any) (*T, error)
	Delete(ctx context.Context, documentID string) error
}

// Config describes one resource page.
type Config struct {
	// Name is the backend collection name, e.g. "products".
	Name string
	// Label is the singular used in notices, e.g. "Product".
	Label string

	Fields   []query.Field
	Populate []string

	PageSize  int
	PageSizes []int

	// Location is the zone date filters are read in; nil means time.Local.
	Location *time.Location
}

// State is a read-only snapshot for rendering.
type State[T any] struct {
	Filters       query.FilterSet
	Page          query.PageRequest
	Meta          models.PageMeta
	Items         []T
	Loaded        bool
	Saving        bool
	PendingDelete *T
}

// Controller manages list state for one resource
type Controller[T models.Record] struct {
	cfg      Config
	backend  Backend[T]
	notifier notify.Notifier
	log      zerolog.Logger

	mu         sync.Mutex
	filters    query.FilterSet
	page       query.PageRequest
	result     models.Page[T]
	loaded     bool
	generation uint64

	deletes confirm.Gate[T]
	saving  confirm.InFlight
}

// New creates a controller. Nothing is fetched until Refetch (or any setter) runs.
func New[T models.Record](backend Backend[T], cfg Config, notifier notify.Notifier) *Controller[T] {
	if len(cfg.PageSizes) == 0 {
		cfg.PageSizes = DefaultPageSizes
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = DefaultPageSize
	}
	if !slices.Contains(cfg.PageSizes, cfg.PageSize) {
		cfg.PageSize = cfg.PageSizes[0]
	}
	if cfg.Label == "" {
		cfg.Label = "Record"
	}
	if notifier == nil {
		notifier = notify.Discard{}
	}

	return &Controller[T]{
		cfg:      cfg,
		backend:  backend,
		notifier: notifier,
		log:      logger.WithResource("list", cfg.Name),
		filters:  query.FilterSet{},
		page:     query.PageRequest{Page: 1, PageSize: cfg.PageSize},
		result:   models.Page[T]{Items: []T{}},
	}
}

// SetFilter merges one filter value, returns to page 1 and refetches.
func (c *Controller[T]) SetFilter(ctx context.Context, key, value string) error {
	c.mu.Lock()
	c.filters[key] = value
	c.page.Page = 1
	c.mu.Unlock()

	return c.Refetch(ctx)
}

// SetFilters merges several filter values at once, returns to page 1 and
// refetches a single time.
func (c *Controller[T]) SetFilters(ctx context.Context, values query.FilterSet) error {
	c.mu.Lock()
	for key, value := range values {
		c.filters[key] = value
	}
	c.page.Page = 1
	c.mu.Unlock()

	return c.Refetch(ctx)
}

// SetPageSize changes the page size, returns to page 1 and refetches.
func (c *Controller[T]) SetPageSize(ctx context.Context, n int) error {
	if !slices.Contains(c.cfg.PageSizes, n) {
		c.notifier.Warn(fmt.Sprintf("Rows per page must be one of %v", c.cfg.PageSizes))
		return fmt.Errorf("%w: %d", ErrInvalidPageSize, n)
	}

	c.mu.Lock()
	c.page.PageSize = n
	c.page.Page = 1
	c.mu.Unlock()

	return c.Refetch(ctx)
}

// SetPage moves to page n, clamped to [1, pageCount], and refetches.
func (c *Controller[T]) SetPage(ctx context.Context, n int) error {
	c.mu.Lock()
	c.page.Page = clampPage(n, c.result.Meta.PageCount)
	c.mu.Unlock()

	return c.Refetch(ctx)
}

// Refetch loads the current page. On failure the previous result is kept and
// one error notice is emitted. A response overtaken by a newer Refetch is
// dropped without notice.
func (c *Controller[T]) Refetch(ctx context.Context) error {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	params := query.Build(c.filters, c.page, query.Options{
		Fields:   c.cfg.Fields,
		Populate: c.cfg.Populate,
		Location: c.cfg.Location,
	})
	c.mu.Unlock()

	c.log.Debug().
		Uint64("generation", gen).
		Str("query", params.Encode()).
		Msg("Fetching page")

	page, err := c.backend.List(ctx, params)

	c.mu.Lock()
	if gen != c.generation {
		latest := c.generation
		c.mu.Unlock()
		c.log.Debug().
			Uint64("generation", gen).
			Uint64("latest", latest).
			Msg("Discarding stale page")
		return nil
	}
	if err != nil {
		c.mu.Unlock()
		c.log.Error().Err(err).Msg("Failed to fetch page")
		c.notifier.Error(api.FormatError(err, "Failed to load "+c.cfg.Name))
		return fmt.Errorf("fetch %s: %w", c.cfg.Name, err)
	}

	items := make([]T, len(page.Items))
	copy(items, page.Items)
	c.result = models.Page[T]{Items: items, Meta: page.Meta}
	c.loaded = true
	c.mu.Unlock()

	c.log.Debug().
		Int("items", len(items)).
		Int("page", page.Meta.Page).
		Int("page_count", page.Meta.PageCount).
		Int("total", page.Meta.Total).
		Msg("Page applied")

	return nil
}

// Upsert updates record (keyed by its documentId) when it has an id,
// otherwise creates a new record from values. onSaved runs after a
// successful write; callers use it to close the edit surface and refetch.
// The save flag is held for the duration of the call.
func (c *Controller[T]) Upsert(ctx context.Context, record *T, values any, onSaved func(saved *T)) (*T, error) {
	var saved *T
	err := c.saving.Run(ctx, func(ctx context.Context) error {
		var (
			out  *T
			err  error
			verb string
		)
		if record != nil && (*record).RecordID() != 0 {
			documentID := (*record).RecordDocumentID()
			if documentID == "" {
				c.notifier.Error(fmt.Sprintf("%s cannot be updated: missing document reference", c.cfg.Label))
				return ErrMissingDocumentID
			}
			verb = "updated"
			out, err = c.backend.Update(ctx, documentID, values)
		} else {
			verb = "created"
			out, err = c.backend.Create(ctx, values)
		}
		if err != nil {
			c.log.Error().Err(err).Str("action", verb).Msg("Save failed")
			c.notifier.Error(api.FormatError(err, "Failed to save "+c.cfg.Label))
			return err
		}

		c.log.Info().Str("action", verb).Msg("Record saved")
		c.notifier.Success(fmt.Sprintf("%s %s successfully", c.cfg.Label, verb))
		saved = out
		return nil
	})
	if err != nil {
		if errors.Is(err, confirm.ErrInFlight) {
			c.notifier.Warn("Save already in progress")
		}
		return nil, err
	}

	if onSaved != nil {
		onSaved(saved)
	}
	return saved, nil
}

// RequestDelete records record as the delete target and waits for ConfirmDelete.
func (c *Controller[T]) RequestDelete(record T) {
	c.deletes.Request(record)
}

// PendingDelete returns the record awaiting confirmation.
func (c *Controller[T]) PendingDelete() (T, bool) {
	return c.deletes.Pending()
}

// CancelDelete drops the pending delete.
func (c *Controller[T]) CancelDelete() {
	c.deletes.Cancel()
}

// ConfirmDelete deletes the pending record and resynchronizes the list.
func (c *Controller[T]) ConfirmDelete(ctx context.Context) error {
	return c.deletes.Confirm(ctx, c.remove)
}

func (c *Controller[T]) remove(ctx context.Context, record T) error {
	documentID := record.RecordDocumentID()
	if documentID == "" {
		c.notifier.Error(fmt.Sprintf("Failed to delete %s: missing document reference", c.cfg.Label))
		return ErrMissingDocumentID
	}

	if err := c.backend.Delete(ctx, documentID); err != nil {
		c.log.Error().Err(err).Str("document_id", documentID).Msg("Delete failed")
		c.notifier.Error(api.FormatError(err, "Failed to delete "+c.cfg.Label))
		return err
	}

	c.log.Info().Str("document_id", documentID).Msg("Record deleted")
	c.notifier.Success(c.cfg.Label + " deleted successfully")

	if err := c.Refetch(ctx); err != nil {
		return err
	}

	// Deleting the last row of the last page leaves us past the end.
	c.mu.Lock()
	beyond := c.page.Page > max(c.result.Meta.PageCount, 1)
	c.mu.Unlock()
	if beyond {
		return c.Last(ctx)
	}
	return nil
}

// State returns a snapshot of the controller for rendering.
func (c *Controller[T]) State() State[T] {
	c.mu.Lock()
	items := make([]T, len(c.result.Items))
	copy(items, c.result.Items)
	st := State[T]{
		Filters: c.filters.Clone(),
		Page:    c.page,
		Meta:    c.result.Meta,
		Items:   items,
		Loaded:  c.loaded,
	}
	c.mu.Unlock()

	st.Saving = c.saving.Busy()
	if target, ok := c.deletes.Pending(); ok {
		st.PendingDelete = &target
	}
	return st
}

// PageSizes returns the allowed page sizes.
func (c *Controller[T]) PageSizes() []int {
	return slices.Clone(c.cfg.PageSizes)
}

// Config returns the resource description.
func (c *Controller[T]) Config() Config {
	return c.cfg
}

func clampPage(n, pageCount int) int {
	return min(max(n, 1), max(pageCount, 1))
}
