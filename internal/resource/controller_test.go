package resource

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"posdash/internal/notify"
	"posdash/internal/query"
	"posdash/pkg/models"
)

type item struct {
	models.Entity
	Name string
}

// fakeBackend pages and filters an in-memory collection the way the real
// backend does.
type fakeBackend struct {
	mu        sync.Mutex
	records   []item
	listCalls []url.Values
	deletes   []string
	creates   []any
	updates   []string

	listErr   error
	deleteErr error
	createErr error

	// beforeList runs (without the lock) before call n (1-based) is answered.
	beforeList func(n int)
}

func newFakeBackend(n int) *fakeBackend {
	b := &fakeBackend{}
	for i := 1; i <= n; i++ {
		b.records = append(b.records, item{
			Entity: models.Entity{ID: i, DocumentID: fmt.Sprintf("doc-%d", i)},
			Name:   fmt.Sprintf("item %02d", i),
		})
	}
	return b
}

func (b *fakeBackend) List(_ context.Context, params url.Values) (*models.Page[item], error) {
	b.mu.Lock()
	b.listCalls = append(b.listCalls, params)
	n := len(b.listCalls)
	hook := b.beforeList
	b.mu.Unlock()

	if hook != nil {
		hook(n)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}

	needle := strings.ToLower(params.Get("filters[name][$containsi]"))
	var matched []item
	for _, r := range b.records {
		if strings.Contains(strings.ToLower(r.Name), needle) {
			matched = append(matched, r)
		}
	}

	page, _ := strconv.Atoi(params.Get("pagination[page]"))
	size, _ := strconv.Atoi(params.Get("pagination[pageSize]"))
	pageCount := (len(matched) + size - 1) / size
	start := min((page-1)*size, len(matched))
	end := min(start+size, len(matched))

	items := make([]item, end-start)
	copy(items, matched[start:end])
	return &models.Page[item]{
		Items: items,
		Meta:  models.PageMeta{Page: page, PageSize: size, PageCount: pageCount, Total: len(matched)},
	}, nil
}

func (b *fakeBackend) Create(_ context.Context, payload any) (*item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.creates = append(b.creates, payload)
	if b.createErr != nil {
		return nil, b.createErr
	}
	created := item{Entity: models.Entity{ID: 999, DocumentID: "doc-new"}}
	return &created, nil
}

func (b *fakeBackend) Update(_ context.Context, documentID string, payload any) (*item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updates = append(b.updates, documentID)
	return &item{Entity: models.Entity{ID: 1, DocumentID: documentID}}, nil
}

func (b *fakeBackend) Delete(_ context.Context, documentID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes = append(b.deletes, documentID)
	if b.deleteErr != nil {
		return b.deleteErr
	}
	for i, r := range b.records {
		if r.DocumentID == documentID {
			b.records = append(b.records[:i], b.records[i+1:]...)
			break
		}
	}
	return nil
}

func (b *fakeBackend) listCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listCalls)
}

func (b *fakeBackend) deleteCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.deletes)
}

func newTestController(b *fakeBackend) (*Controller[item], *notify.Recorder) {
	rec := &notify.Recorder{}
	c := New[item](b, Config{
		Name:   "items",
		Label:  "Item",
		Fields: []query.Field{{Key: "name"}},
	}, rec)
	return c, rec
}

func mustRefetch(t *testing.T, c *Controller[item]) {
	t.Helper()
	if err := c.Refetch(context.Background()); err != nil {
		t.Fatalf("refetch: %v", err)
	}
}

func TestRefetchAppliesPage(t *testing.T) {
	b := newFakeBackend(23)
	c, _ := newTestController(b)
	mustRefetch(t, c)

	st := c.State()
	if len(st.Items) != 10 || st.Meta.PageCount != 3 || st.Meta.Total != 23 {
		t.Fatalf("unexpected state %+v", st.Meta)
	}
	if st.Items[0].Name != "item 01" {
		t.Fatalf("server order not preserved: %v", st.Items[0])
	}
}

func TestFilterChangeResetsPage(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(45)
	c, _ := newTestController(b)
	mustRefetch(t, c)

	if err := c.SetPage(ctx, 3); err != nil {
		t.Fatal(err)
	}
	if c.State().Page.Page != 3 {
		t.Fatalf("expected page 3, got %d", c.State().Page.Page)
	}

	if err := c.SetFilter(ctx, "name", "item 1"); err != nil {
		t.Fatal(err)
	}
	st := c.State()
	if st.Page.Page != 1 {
		t.Fatalf("filter change must reset page, got %d", st.Page.Page)
	}
	if st.Meta.Total != 10 {
		t.Fatalf("expected 10 matches for 'item 1', got %d", st.Meta.Total)
	}
}

func TestPageSizeChangeResetsPage(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(45)
	c, _ := newTestController(b)
	mustRefetch(t, c)
	c.SetPage(ctx, 4)

	if err := c.SetPageSize(ctx, 20); err != nil {
		t.Fatal(err)
	}
	st := c.State()
	if st.Page.Page != 1 || st.Page.PageSize != 20 || st.Meta.PageCount != 3 {
		t.Fatalf("unexpected state after page size change: %+v %+v", st.Page, st.Meta)
	}
}

func TestInvalidPageSizeIsRejectedWithoutFetch(t *testing.T) {
	b := newFakeBackend(5)
	c, rec := newTestController(b)
	mustRefetch(t, c)
	before := b.listCount()

	err := c.SetPageSize(context.Background(), 7)
	if !errors.Is(err, ErrInvalidPageSize) {
		t.Fatalf("expected ErrInvalidPageSize, got %v", err)
	}
	if b.listCount() != before {
		t.Fatal("invalid page size must not fetch")
	}
	if c.State().Page.PageSize != DefaultPageSize {
		t.Fatal("page size must be unchanged")
	}
	if rec.Count(notify.LevelWarning) != 1 {
		t.Fatal("expected one warning")
	}
}

func TestSetPageClamps(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(25)
	c, _ := newTestController(b)
	mustRefetch(t, c)

	c.SetPage(ctx, 99)
	if got := c.State().Page.Page; got != 3 {
		t.Fatalf("expected clamp to 3, got %d", got)
	}
	c.SetPage(ctx, -4)
	if got := c.State().Page.Page; got != 1 {
		t.Fatalf("expected clamp to 1, got %d", got)
	}
}

func TestNavigationIsNoOpAtBoundaries(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(25)
	c, _ := newTestController(b)
	mustRefetch(t, c)

	calls := b.listCount()
	c.Prev(ctx)
	c.First(ctx)
	if b.listCount() != calls || c.State().Page.Page != 1 {
		t.Fatal("prev/first at page 1 must be a no-op")
	}

	c.Last(ctx)
	if c.State().Page.Page != 3 {
		t.Fatalf("expected last page 3, got %d", c.State().Page.Page)
	}
	calls = b.listCount()
	c.Next(ctx)
	c.Last(ctx)
	if b.listCount() != calls || c.State().Page.Page != 3 {
		t.Fatal("next/last at last page must be a no-op")
	}
	if c.CanNext() || !c.CanPrev() {
		t.Fatal("unexpected navigation flags on last page")
	}

	c.Prev(ctx)
	if c.State().Page.Page != 2 {
		t.Fatalf("expected page 2, got %d", c.State().Page.Page)
	}
}

func TestNavigationOnEmptyResult(t *testing.T) {
	b := newFakeBackend(0)
	c, _ := newTestController(b)
	mustRefetch(t, c)

	if c.CanNext() || c.CanPrev() {
		t.Fatal("no navigation possible on an empty result")
	}
	rows, pos := c.Summary()
	if rows != "No rows" || pos != "Page 1 of 0" {
		t.Fatalf("unexpected summary %q %q", rows, pos)
	}
}

func TestRefetchIsIdempotent(t *testing.T) {
	b := newFakeBackend(12)
	c, _ := newTestController(b)
	mustRefetch(t, c)
	first := c.State()
	mustRefetch(t, c)
	second := c.State()

	if fmt.Sprint(first.Items) != fmt.Sprint(second.Items) || first.Meta != second.Meta {
		t.Fatal("refetch with unchanged state must yield the same page")
	}
}

func TestRefetchFailureKeepsPriorState(t *testing.T) {
	b := newFakeBackend(12)
	c, rec := newTestController(b)
	mustRefetch(t, c)
	before := c.State()

	b.mu.Lock()
	b.listErr = errors.New("connection refused")
	b.mu.Unlock()

	if err := c.Refetch(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	after := c.State()
	if fmt.Sprint(before.Items) != fmt.Sprint(after.Items) || before.Meta != after.Meta {
		t.Fatal("failed fetch must not touch the list")
	}
	if rec.Count(notify.LevelError) != 1 {
		t.Fatalf("expected exactly one error notice, got %d", rec.Count(notify.LevelError))
	}
	if last, _ := rec.Last(); last.Message != "connection refused" {
		t.Fatalf("unexpected notice %q", last.Message)
	}
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(30)
	c, rec := newTestController(b)

	entered := make(chan struct{})
	release := make(chan struct{})
	b.beforeList = func(n int) {
		if n == 1 {
			close(entered)
			<-release
		}
	}

	done := make(chan error)
	go func() { done <- c.SetFilter(ctx, "name", "item 0") }()
	<-entered

	if err := c.SetFilter(ctx, "name", "item 2"); err != nil {
		t.Fatal(err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("stale completion must not fail: %v", err)
	}

	st := c.State()
	if st.Meta.Total != 10 {
		t.Fatalf("expected newest result (10 matches), got %d", st.Meta.Total)
	}
	for _, it := range st.Items {
		if !strings.HasPrefix(it.Name, "item 2") {
			t.Fatalf("stale item applied: %v", it.Name)
		}
	}
	if len(rec.Notices()) != 0 {
		t.Fatal("stale responses must not notify")
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(3)
	c, _ := newTestController(b)
	mustRefetch(t, c)

	target := c.State().Items[1]
	c.RequestDelete(target)
	if b.deleteCount() != 0 {
		t.Fatal("requesting a delete must not call the backend")
	}
	if st := c.State(); st.PendingDelete == nil || st.PendingDelete.DocumentID != "doc-2" {
		t.Fatal("expected doc-2 pending")
	}

	c.CancelDelete()
	if b.deleteCount() != 0 {
		t.Fatal("cancel must not delete")
	}
	if err := c.ConfirmDelete(ctx); err == nil {
		t.Fatal("confirming after cancel must fail")
	}
	if b.deleteCount() != 0 {
		t.Fatal("delete count must remain 0 without confirmation")
	}

	c.RequestDelete(target)
	calls := b.listCount()
	if err := c.ConfirmDelete(ctx); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if b.deleteCount() != 1 {
		t.Fatalf("expected one delete call, got %d", b.deleteCount())
	}
	if b.listCount() != calls+1 {
		t.Fatal("delete must trigger a refetch")
	}
	if got := len(c.State().Items); got != 2 {
		t.Fatalf("expected 2 items after resync, got %d", got)
	}
}

func TestDeleteFailureLeavesListUnchanged(t *testing.T) {
	b := newFakeBackend(3)
	c, rec := newTestController(b)
	mustRefetch(t, c)
	b.deleteErr = errors.New("forbidden")
	calls := b.listCount()

	c.RequestDelete(c.State().Items[0])
	if err := c.ConfirmDelete(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if b.listCount() != calls {
		t.Fatal("failed delete must not refetch")
	}
	if len(c.State().Items) != 3 {
		t.Fatal("failed delete must not change the list")
	}
	if rec.Count(notify.LevelError) != 1 {
		t.Fatal("expected one error notice")
	}
}

func TestDeleteWithoutDocumentIDIsRejected(t *testing.T) {
	b := newFakeBackend(1)
	c, _ := newTestController(b)

	c.RequestDelete(item{Entity: models.Entity{ID: 5}})
	err := c.ConfirmDelete(context.Background())
	if !errors.Is(err, ErrMissingDocumentID) {
		t.Fatalf("expected ErrMissingDocumentID, got %v", err)
	}
	if b.deleteCount() != 0 {
		t.Fatal("backend must not be called")
	}
}

func TestDeletingLastRowOfLastPageMovesBack(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(11)
	c, _ := newTestController(b)
	mustRefetch(t, c)
	c.Last(ctx)

	c.RequestDelete(c.State().Items[0])
	if err := c.ConfirmDelete(ctx); err != nil {
		t.Fatal(err)
	}
	st := c.State()
	if st.Page.Page != 1 || len(st.Items) != 10 {
		t.Fatalf("expected to land on page 1 with 10 items, got page %d with %d", st.Page.Page, len(st.Items))
	}
}

func TestUpsertCreatesOrUpdates(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(2)
	c, rec := newTestController(b)

	var saved []*item
	onSaved := func(s *item) { saved = append(saved, s) }

	if _, err := c.Upsert(ctx, nil, map[string]string{"name": "new"}, onSaved); err != nil {
		t.Fatal(err)
	}
	existing := item{Entity: models.Entity{ID: 2, DocumentID: "doc-2"}}
	if _, err := c.Upsert(ctx, &existing, map[string]string{"name": "renamed"}, onSaved); err != nil {
		t.Fatal(err)
	}

	if len(b.creates) != 1 || len(b.updates) != 1 || b.updates[0] != "doc-2" {
		t.Fatalf("unexpected calls creates=%d updates=%v", len(b.creates), b.updates)
	}
	if len(saved) != 2 {
		t.Fatal("callback must run after each successful save")
	}
	if rec.Count(notify.LevelSuccess) != 2 {
		t.Fatal("expected two success notices")
	}
	if c.State().Saving {
		t.Fatal("save flag must be released")
	}
}

func TestUpsertFailureSkipsCallback(t *testing.T) {
	b := newFakeBackend(0)
	b.createErr = errors.New("name must be unique")
	c, rec := newTestController(b)

	called := false
	_, err := c.Upsert(context.Background(), nil, map[string]string{}, func(*item) { called = true })
	if err == nil || called {
		t.Fatal("failed save must return an error and skip the callback")
	}
	if c.State().Saving {
		t.Fatal("save flag must be released after failure")
	}
	if last, _ := rec.Last(); last.Message != "name must be unique" {
		t.Fatalf("unexpected notice %q", last.Message)
	}
}

func TestSummaryShowsRange(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(23)
	c, _ := newTestController(b)

	if rows, _ := c.Summary(); rows != "" {
		t.Fatal("nothing to summarise before the first fetch")
	}
	mustRefetch(t, c)
	c.Last(ctx)

	rows, pos := c.Summary()
	if rows != "Showing 21 to 23 of 23 records" {
		t.Fatalf("unexpected rows summary %q", rows)
	}
	if pos != "Page 3 of 3" {
		t.Fatalf("unexpected position %q", pos)
	}
}

func TestSetFiltersFetchesOnce(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(30)
	c, _ := newTestController(b)
	mustRefetch(t, c)
	c.SetPage(ctx, 2)
	calls := b.listCount()

	if err := c.SetFilters(ctx, query.FilterSet{"name": "item 1", "description": ""}); err != nil {
		t.Fatal(err)
	}
	if b.listCount() != calls+1 {
		t.Fatalf("expected one fetch, got %d", b.listCount()-calls)
	}
	st := c.State()
	if st.Page.Page != 1 || st.Filters["name"] != "item 1" {
		t.Fatalf("unexpected state %+v", st.Page)
	}
}
