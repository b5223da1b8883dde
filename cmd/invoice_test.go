package cmd

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"posdash/internal/invoice"
	"posdash/internal/notify"
	"posdash/pkg/models"
)

type catalogSearcher struct {
	products []invoice.Candidate

	mu    sync.Mutex
	gates map[string]chan struct{}
}

func (s *catalogSearcher) Search(_ context.Context, text string) ([]invoice.Candidate, error) {
	s.mu.Lock()
	gate := s.gates[text]
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	var out []invoice.Candidate
	for _, p := range s.products {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(text)) {
			out = append(out, p)
		}
	}
	return out, nil
}

// hold makes searches for text wait until the returned func is called.
func (s *catalogSearcher) hold(text string) func() {
	gate := make(chan struct{})
	s.mu.Lock()
	if s.gates == nil {
		s.gates = map[string]chan struct{}{}
	}
	s.gates[text] = gate
	s.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

type recordingSales struct {
	mu       sync.Mutex
	payloads []invoice.SalePayload
}

func (s *recordingSales) Create(_ context.Context, payload any) (*models.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := payload.(invoice.SalePayload)
	s.payloads = append(s.payloads, p)
	return &models.Sale{
		Entity:        models.Entity{ID: 41, DocumentID: "sale-41"},
		InvoiceNumber: p.InvoiceNumber,
	}, nil
}

func (s *recordingSales) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payloads)
}

type composerSession struct {
	*driver
	model    *composerModel
	composer *invoice.Composer
	searcher *catalogSearcher
	sales    *recordingSales
	notices  *notify.Recorder
}

func startComposer(t *testing.T) *composerSession {
	t.Helper()

	s := &composerSession{
		searcher: &catalogSearcher{products: []invoice.Candidate{
			{ProductID: "doc-cola", Name: "Cola", Price: 1.50, Stock: 24},
			{ProductID: "doc-cocoa", Name: "Cocoa", Price: 4.00, Stock: 1},
			{ProductID: "doc-chips", Name: "Chips", Price: 2.25, Stock: 10},
		}},
		sales:   &recordingSales{},
		notices: &notify.Recorder{},
	}

	feed := newResultsFeed()
	s.composer = invoice.NewComposer(s.sales, s.searcher, s.notices,
		invoice.WithClock(func() time.Time { return time.Date(2026, 10, 18, 9, 30, 0, 0, time.Local) }),
		invoice.WithLookupOptions(
			invoice.WithDelay(time.Millisecond),
			invoice.WithResultsHook(feed.publish),
		),
	)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s.model = newComposerModel(ctx, s.composer, feed, s.notices)
	s.driver = newDriver(t, s.model)
	return s
}

// search types text into the search box and waits for its results.
func (s *composerSession) search(text string) []invoice.Candidate {
	s.t.Helper()
	s.press("ctrl+u")
	s.typeText(text)
	s.await("results for "+text, func() bool {
		d := s.composer.Snapshot()
		return d.SearchText == text && d.Lookup == invoice.StateIdle
	})
	return s.composer.Suggestions()
}

// submit presses ctrl+s and applies the finished submit.
func (s *composerSession) submit() {
	s.t.Helper()
	_, cmd := s.model.Update(keyMsg("ctrl+s"))
	if cmd == nil {
		s.t.Fatal("ctrl+s started no submit")
	}
	s.apply(cmd())
}

func (s *composerSession) warnings() []string {
	var out []string
	for _, n := range s.notices.Notices() {
		if n.Level == notify.LevelWarning {
			out = append(out, n.Message)
		}
	}
	return out
}

func TestComposerSubmitsDraft(t *testing.T) {
	s := startComposer(t)

	s.press("ctrl+e")
	s.typeText("INV-1042")
	s.press("tab", "tab")
	s.typeText("Ana Lima")
	s.press("tab")
	s.typeText("ana@example.com")
	s.press("enter")

	if got := s.search("cola"); len(got) != 1 {
		t.Fatalf("search results = %v, want Cola only", got)
	}
	s.press("enter", "tab", "+")
	s.submit()

	if s.sales.count() != 1 {
		t.Fatalf("create calls = %d, want 1", s.sales.count())
	}
	p := s.sales.payloads[0]
	if p.InvoiceNumber != "INV-1042" || p.CustomerName != "Ana Lima" || p.CustomerEmail != "ana@example.com" {
		t.Errorf("header = %+v", p)
	}
	if len(p.Products) != 1 || p.Products[0].ProductID != "doc-cola" || p.Products[0].Quantity != 2 {
		t.Errorf("products = %+v", p.Products)
	}
	// 3.00 - 0.30 = 2.70, tax 0.216
	if p.Subtotal != 3 || p.DiscountAmount != 0.3 || p.TaxAmount != 0.216 || p.Total != 2.916 {
		t.Errorf("totals = %v / %v / %v / %v", p.Subtotal, p.DiscountAmount, p.TaxAmount, p.Total)
	}

	out := s.view()
	if !strings.Contains(out, "Sale INV-1042 created (id 41, document sale-41)") {
		t.Errorf("view missing created line:\n%s", out)
	}
	// The draft starts over after a successful submit.
	if !strings.Contains(out, "No products added yet") {
		t.Errorf("draft not reset after submit:\n%s", out)
	}
	if s.model.mode != composeSearch {
		t.Errorf("mode = %v after submit, want search", s.model.mode)
	}
	if n, _ := s.notices.Last(); n.Message != "Invoice created successfully" {
		t.Errorf("last notice = %+v", n)
	}
}

func TestComposerRejectsIncompleteDraft(t *testing.T) {
	s := startComposer(t)

	s.submit()
	s.composer.SetHeader(invoice.FieldInvoiceNumber, "INV-7")
	s.composer.SetHeader(invoice.FieldCustomerName, "Ana")
	s.composer.SetHeader(invoice.FieldCustomerEmail, "ana@example.com")
	s.submit()

	if s.sales.count() != 0 {
		t.Fatalf("create called %d times for an invalid draft", s.sales.count())
	}
	notices := s.notices.Notices()
	want := []string{"Invoice number is required", "Please add at least one product to the invoice"}
	if len(notices) != len(want) {
		t.Fatalf("notices = %v, want %v", notices, want)
	}
	for i, n := range notices {
		if n.Level != notify.LevelError || n.Message != want[i] {
			t.Errorf("notice %d = %+v, want error %q", i, n, want[i])
		}
	}
	if !strings.Contains(s.view(), "Please add at least one product to the invoice") {
		t.Errorf("view missing notice:\n%s", s.view())
	}
}

func TestComposerLineEditing(t *testing.T) {
	s := startComposer(t)

	if got := s.search("co"); len(got) != 2 {
		t.Fatalf("search results = %v, want Cola and Cocoa", got)
	}
	s.press("down", "enter")
	s.search("co")
	s.press("down", "enter")

	lines := s.composer.Lines()
	if len(lines) != 1 || lines[0].ProductID != "doc-cocoa" {
		t.Fatalf("lines = %+v, want Cocoa once", lines)
	}

	s.press("tab", "+", "+")
	if !strings.Contains(s.view(), "1 (short)") {
		t.Errorf("stock shortfall not shown:\n%s", s.view())
	}
	s.press("p", "ctrl+u")
	s.typeText("abc")
	s.press("enter")
	if got := s.composer.Lines()[0].Price; got != 0 {
		t.Errorf("price = %v after invalid input, want 0", got)
	}

	s.press("ctrl+e", "tab", "ctrl+u")
	s.typeText("someday")
	s.press("enter")

	want := []string{
		"Product already added to invoice",
		`Invalid price "abc", using 0`,
		`Invalid date "someday", use YYYY-MM-DD or YYYY-MM-DDTHH:MM`,
	}
	if strings.Join(s.warnings(), "|") != strings.Join(want, "|") {
		t.Errorf("warnings = %q, want %q", s.warnings(), want)
	}

	// Quitting with lines asks first.
	s.press("q")
	if !strings.Contains(s.view(), "Discard the current draft and quit? [y/N]") {
		t.Errorf("quit with lines did not ask:\n%s", s.view())
	}
	s.press("n")
	if s.quit || s.model.mode != composeLines {
		t.Fatalf("answering no must return to the lines (quit=%v mode=%v)", s.quit, s.model.mode)
	}

	s.press("d")
	if len(s.composer.Lines()) != 0 || s.model.mode != composeSearch {
		t.Fatalf("lines = %v, mode = %v after removing the only line", s.composer.Lines(), s.model.mode)
	}
	s.press("esc")
	s.awaitQuit()
}

func TestComposerWaitsForPendingSearch(t *testing.T) {
	s := startComposer(t)

	if got := s.search("co"); len(got) != 2 {
		t.Fatalf("search results = %v", got)
	}
	release := s.searcher.hold("coc")
	defer release()

	s.typeText("c")
	s.await("search in flight", func() bool {
		return s.composer.LookupState() == invoice.StateSearching
	})
	s.press("enter")

	if n := len(s.composer.Lines()); n != 0 {
		t.Fatalf("added %d lines from results of an older search", n)
	}
	if !strings.Contains(s.view(), "Still searching") {
		t.Errorf("view:\n%s", s.view())
	}

	release()
	s.await("results for coc", func() bool {
		return s.composer.LookupState() == invoice.StateIdle
	})
	s.press("enter")
	if lines := s.composer.Lines(); len(lines) != 1 || lines[0].ProductID != "doc-cocoa" {
		t.Errorf("lines = %+v, want Cocoa", lines)
	}
}

func TestComposerResetAsksFirst(t *testing.T) {
	s := startComposer(t)

	s.search("chips")
	s.press("enter", "ctrl+r")
	if !strings.Contains(s.view(), "Discard the current draft? [y/N]") {
		t.Fatalf("reset did not ask:\n%s", s.view())
	}
	s.press("y")
	if len(s.composer.Lines()) != 0 {
		t.Errorf("lines = %v after reset", s.composer.Lines())
	}
	if !strings.Contains(s.view(), "Draft discarded") {
		t.Errorf("view:\n%s", s.view())
	}
}
