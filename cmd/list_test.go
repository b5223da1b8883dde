package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"posdash/internal/api"
	"posdash/internal/notify"
	"posdash/internal/resource"
	"posdash/internal/session"
	"posdash/pkg/models"
)

// categoryBackend is an in-memory category collection with name filtering
// and paging.
type categoryBackend struct {
	mu        sync.Mutex
	records   []models.Category
	listCalls []url.Values
	deletes   []string
}

func newCategoryBackend(n int) *categoryBackend {
	b := &categoryBackend{}
	for i := 1; i <= n; i++ {
		b.records = append(b.records, models.Category{
			Entity: models.Entity{ID: i, DocumentID: fmt.Sprintf("cat-%d", i)},
			Name:   fmt.Sprintf("Category %02d", i),
		})
	}
	return b
}

func (b *categoryBackend) List(_ context.Context, params url.Values) (*models.Page[models.Category], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listCalls = append(b.listCalls, params)

	needle := strings.ToLower(params.Get("filters[name][$containsi]"))
	var matched []models.Category
	for _, r := range b.records {
		if strings.Contains(strings.ToLower(r.Name), needle) {
			matched = append(matched, r)
		}
	}

	page, _ := strconv.Atoi(params.Get("pagination[page]"))
	size, _ := strconv.Atoi(params.Get("pagination[pageSize]"))
	start := min((page-1)*size, len(matched))
	end := min(start+size, len(matched))
	return &models.Page[models.Category]{
		Items: slices.Clone(matched[start:end]),
		Meta: models.PageMeta{
			Page:      page,
			PageSize:  size,
			PageCount: (len(matched) + size - 1) / size,
			Total:     len(matched),
		},
	}, nil
}

func (b *categoryBackend) Create(_ context.Context, payload any) (*models.Category, error) {
	return nil, errors.New("not implemented")
}

func (b *categoryBackend) Update(_ context.Context, documentID string, payload any) (*models.Category, error) {
	return nil, errors.New("not implemented")
}

func (b *categoryBackend) Delete(_ context.Context, documentID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes = append(b.deletes, documentID)
	b.records = slices.DeleteFunc(b.records, func(c models.Category) bool {
		return c.DocumentID == documentID
	})
	return nil
}

func (b *categoryBackend) lastList() url.Values {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listCalls[len(b.listCalls)-1]
}

func (b *categoryBackend) listCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listCalls)
}

// browseSession opens the browser over b after the initial fetch.
func browseSession(t *testing.T, b *categoryBackend, pageSize int) (*driver, *browseModel[models.Category], *notify.Recorder) {
	t.Helper()

	rec := &notify.Recorder{}
	cfg := categoryDef.config
	cfg.PageSize = pageSize
	ctl := resource.New[models.Category](b, cfg, rec)

	ctx := context.Background()
	if err := ctl.Refetch(ctx); err != nil {
		t.Fatalf("Refetch() error = %v", err)
	}

	m := newBrowseModel(ctx, ctl, categoryDef, rec)
	return newDriver(t, m), m, rec
}

// settle presses keys one by one, waiting for each fetch to land.
func settle(d *driver, m *browseModel[models.Category], keys ...string) {
	d.t.Helper()
	for _, k := range keys {
		d.press(k)
		d.await("page load", func() bool { return !m.busy() })
	}
}

func TestBrowseNavigatesPages(t *testing.T) {
	b := newCategoryBackend(12)
	d, m, _ := browseSession(t, b, 5)

	settle(d, m, "n", "n", "n")

	out := d.view()
	if !strings.Contains(out, "Page 3 of 3") {
		t.Errorf("view does not reach page 3:\n%s", out)
	}
	if !strings.Contains(out, "Showing 11 to 12 of 12 records") {
		t.Errorf("view missing last page summary:\n%s", out)
	}
	// Initial fetch plus two moves; "n" on the last page does not fetch.
	if got := b.listCount(); got != 3 {
		t.Errorf("list calls = %d, want 3", got)
	}

	settle(d, m, "g")
	if got := b.lastList().Get("pagination[page]"); got != "1" {
		t.Errorf("page after first = %q, want 1", got)
	}

	d.press("q")
	d.awaitQuit()
}

func TestBrowseFilterResetsToFirstPage(t *testing.T) {
	b := newCategoryBackend(12)
	d, m, _ := browseSession(t, b, 5)

	settle(d, m, "n")
	d.press("/")
	d.typeText("category 1")
	settle(d, m, "enter")

	last := b.lastList()
	if got := last.Get("filters[name][$containsi]"); got != "category 1" {
		t.Errorf("name filter = %q, want %q", got, "category 1")
	}
	if got := last.Get("pagination[page]"); got != "1" {
		t.Errorf("page = %q, want 1", got)
	}
	if !strings.Contains(d.view(), `Filters: name="category 1"`) {
		t.Errorf("view missing filter line:\n%s", d.view())
	}

	// Reopening the form shows the active value; clearing it lists everything.
	d.press("/")
	if got := m.filters[0].Value(); got != "category 1" {
		t.Fatalf("filter form value = %q", got)
	}
	d.press("ctrl+u")
	settle(d, m, "enter")
	if got := b.lastList().Get("filters[name][$containsi]"); got != "" {
		t.Errorf("name filter after clearing = %q", got)
	}
}

func TestBrowseDeleteAsksFirst(t *testing.T) {
	b := newCategoryBackend(3)
	d, m, rec := browseSession(t, b, 10)

	d.press("down", "d")
	if !strings.Contains(d.view(), `Delete category "Category 02"? [y/N]`) {
		t.Errorf("view missing confirmation question:\n%s", d.view())
	}
	d.press("n")
	if len(b.deletes) != 0 {
		t.Fatalf("deleted %v after answering no", b.deletes)
	}
	if !strings.Contains(d.view(), "Canceled") {
		t.Errorf("view missing cancel message:\n%s", d.view())
	}
	if len(rec.Notices()) != 0 {
		t.Errorf("notices = %v, want none", rec.Notices())
	}

	d.press("d")
	settle(d, m, "y")
	if !slices.Equal(b.deletes, []string{"cat-2"}) {
		t.Fatalf("deletes = %v, want [cat-2]", b.deletes)
	}
	if !strings.Contains(d.view(), "Showing 1 to 2 of 2 records") {
		t.Errorf("list not refetched after delete:\n%s", d.view())
	}
	if n, ok := rec.Last(); !ok || n.Level != notify.LevelSuccess {
		t.Errorf("last notice = %+v, want a success", n)
	}
	if !strings.Contains(d.view(), "Category deleted successfully") {
		t.Errorf("view missing delete notice:\n%s", d.view())
	}
}

func TestBrowseCursorFollowsPage(t *testing.T) {
	b := newCategoryBackend(12)
	d, m, _ := browseSession(t, b, 5)

	d.press("up")
	if m.cursor != 0 {
		t.Fatalf("cursor = %d after up on first row", m.cursor)
	}
	d.press("down", "down", "down", "down", "down", "down")
	if m.cursor != 4 {
		t.Fatalf("cursor = %d, want 4 (last row)", m.cursor)
	}

	// The last page has two rows; the cursor moves onto the last of them.
	settle(d, m, "G")
	if m.cursor != 1 {
		t.Fatalf("cursor = %d on last page, want 1", m.cursor)
	}
	d.press("d")
	if !strings.Contains(d.view(), `Delete category "Category 12"? [y/N]`) {
		t.Errorf("view:\n%s", d.view())
	}
	d.press("esc")
	if len(b.deletes) != 0 {
		t.Errorf("deletes = %v, want none", b.deletes)
	}
}

func TestBrowseCyclesPageSize(t *testing.T) {
	b := newCategoryBackend(12)
	d, m, _ := browseSession(t, b, 5)

	settle(d, m, "n", "s")
	last := b.lastList()
	if last.Get("pagination[pageSize]") != "10" || last.Get("pagination[page]") != "1" {
		t.Errorf("params after size change = %v", last)
	}
	if !strings.Contains(d.view(), "10 rows per page") {
		t.Errorf("view:\n%s", d.view())
	}
}

func TestBrowseEmptyListIgnoresDelete(t *testing.T) {
	b := newCategoryBackend(0)
	d, _, _ := browseSession(t, b, 10)

	d.press("d")
	if strings.Contains(d.view(), "[y/N]") {
		t.Errorf("delete offered on an empty list:\n%s", d.view())
	}
	if !strings.Contains(d.view(), "No rows") {
		t.Errorf("view:\n%s", d.view())
	}
}

func TestFlagName(t *testing.T) {
	if got := flagName("invoice_number"); got != "invoice-number" {
		t.Errorf("flagName() = %q", got)
	}
}

func TestReadListOptions(t *testing.T) {
	newCmd := func() *cobra.Command {
		cmd := &cobra.Command{Use: "list"}
		addListFlags(cmd, saleDef.config.Fields)
		return cmd
	}

	cmd := newCmd()
	cmd.Flags().Set("customer-name", "lima")
	cmd.Flags().Set("date", "2026-10-18")
	cmd.Flags().Set("page-size", "20")
	opts, err := readListOptions(cmd, saleDef.config.Fields)
	if err != nil {
		t.Fatalf("readListOptions() error = %v", err)
	}
	if opts.filters["customer_name"] != "lima" || opts.filters["date"] != "2026-10-18" {
		t.Errorf("filters = %v", opts.filters)
	}
	if opts.pageSize != 20 || opts.page != 1 {
		t.Errorf("page = %d, pageSize = %d", opts.page, opts.pageSize)
	}

	cmd = newCmd()
	cmd.Flags().Set("page-size", "7")
	if _, err := readListOptions(cmd, saleDef.config.Fields); !errors.Is(err, resource.ErrInvalidPageSize) {
		t.Errorf("page size 7: error = %v, want ErrInvalidPageSize", err)
	}
}

func TestChangedValuesOnlyIncludesSetFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "save"}
	cmd.Flags().String("name", "", "")
	cmd.Flags().String("barcode", "", "")
	cmd.Flags().Float64("price", 0, "")
	cmd.Flags().Int("category-id", 0, "")

	cmd.Flags().Set("name", "  Cola ")
	cmd.Flags().Set("price", "1.5")
	cmd.Flags().Set("category-id", "3")

	values, err := changedValues(cmd, map[string]string{
		"name":        "name",
		"barcode":     "barcode",
		"price":       "price",
		"category-id": "category",
	})
	if err != nil {
		t.Fatalf("changedValues() error = %v", err)
	}

	want := map[string]any{"name": "Cola", "price": 1.5, "category": 3}
	if len(values) != len(want) {
		t.Fatalf("values = %v, want %v", values, want)
	}
	for k, v := range want {
		if values[k] != v {
			t.Errorf("values[%q] = %v (%T), want %v", k, values[k], values[k], v)
		}
	}
}

func TestValidateProductValues(t *testing.T) {
	tests := []struct {
		name     string
		values   map[string]any
		creating bool
		wantErr  bool
	}{
		{"create complete", map[string]any{"name": "Cola", "price": 1.5}, true, false},
		{"create without price", map[string]any{"name": "Cola"}, true, true},
		{"update price only", map[string]any{"price": 2.0}, false, false},
		{"negative price", map[string]any{"price": -1.0}, false, true},
		{"negative stock", map[string]any{"stock": -3}, false, true},
		{"empty name", map[string]any{"name": ""}, false, true},
		{"zero category", map[string]any{"category": 0}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateProductValues(tt.values, tt.creating)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateProductValues() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHandleAPIErrorMessages(t *testing.T) {
	log := zerolog.Nop()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not signed in", session.ErrNotSignedIn, "not signed in. Run 'posdash login' first"},
		{"not found", &api.Error{Status: 404, Err: api.ErrNotFound}, "record not found"},
		{"timeout", fmt.Errorf("list: %w", context.DeadlineExceeded), "request timed out. Try increasing POSDASH_API_TIMEOUT"},
		{"backend message", &api.Error{Status: 400, Message: "name must be unique", Err: api.ErrBadRequest}, "name must be unique"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := handleAPIError(tt.err, log).Error(); got != tt.want {
				t.Errorf("handleAPIError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReportedErrorKeepsCause(t *testing.T) {
	err := reported(api.ErrNotFound)
	if !errors.Is(err, api.ErrNotFound) {
		t.Errorf("reported error does not unwrap to its cause")
	}
	if reported(nil) != nil {
		t.Errorf("reported(nil) != nil")
	}
}
