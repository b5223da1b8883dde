package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"posdash/internal/api"
	"posdash/internal/invoice"
	"posdash/internal/logger"
	"posdash/internal/notify"
	"posdash/pkg/models"
)

var invoiceCmd = &cobra.Command{
	Use:   "invoice",
	Short: "Compose and submit invoices",
}

var invoiceNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Compose a new invoice interactively",
	Long: `Open an invoice draft on the terminal.

Type to search products; the search runs once typing pauses
(POSDASH_SEARCH_DELAY_MS, default 400ms). Enter adds the selected result,
tab switches to the lines for editing, ctrl+e edits the header and ctrl+s
submits. Totals apply a 10% discount to the subtotal and 8% tax to the
discounted amount. A successful submit discards the draft and starts a new one.`,
	Example: `  posdash invoice new --number INV-1042 --customer "Ana Lima" --email ana@example.com`,
	Args: cobra.NoArgs,
	RunE: runInvoiceNew,
}

func init() {
	rootCmd.AddCommand(invoiceCmd)
	invoiceCmd.AddCommand(invoiceNewCmd)

	invoiceNewCmd.Flags().String("number", "", "Invoice number")
	invoiceNewCmd.Flags().String("date", "", "Invoice date (YYYY-MM-DD or YYYY-MM-DDTHH:MM, default now)")
	invoiceNewCmd.Flags().String("customer", "", "Customer name")
	invoiceNewCmd.Flags().String("email", "", "Customer email")
	invoiceNewCmd.Flags().String("phone", "", "Customer phone")
	invoiceNewCmd.Flags().String("notes", "", "Notes")
}

// headerFlags maps command line flags to draft header fields.
var headerFlags = map[string]invoice.HeaderField{
	"number":   invoice.FieldInvoiceNumber,
	"date":     invoice.FieldDate,
	"customer": invoice.FieldCustomerName,
	"email":    invoice.FieldCustomerEmail,
	"phone":    invoice.FieldCustomerPhone,
	"notes":    invoice.FieldNotes,
}

func runInvoiceNew(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("invoice")

	a, err := openApp(log)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireSignIn(); err != nil {
		return err
	}

	ctx, cancel := commandContext(log)
	defer cancel()

	rec := &notify.Recorder{}
	feed := newResultsFeed()
	composer := invoice.NewComposer(
		api.NewResource[models.Sale](a.client, api.PathSaleTransactions),
		invoice.NewProductSearcher(api.NewResource[models.Product](a.client, api.PathProducts)),
		rec,
		invoice.WithLookupOptions(
			invoice.WithDelay(a.cfg.SearchDelay),
			invoice.WithResultsHook(feed.publish),
		),
	)

	for flag, field := range headerFlags {
		if value, _ := cmd.Flags().GetString(flag); value != "" {
			if err := composer.SetHeader(field, value); err != nil {
				return err
			}
		}
	}

	log.Info().Msg("Invoice composer started")
	_, err = runProgram(ctx, newComposerModel(ctx, composer, feed, rec))
	return err
}

// resultsMsg tells the composer view that the lookup applied new results.
type resultsMsg struct{}

// submittedMsg reports a finished submit.
type submittedMsg struct {
	sale *models.Sale
	err  error
}

// resultsFeed carries lookup completions into the update loop. Only a
// wake-up is queued; the view reads the applied results from the composer.
type resultsFeed chan struct{}

func newResultsFeed() resultsFeed {
	return make(resultsFeed, 1)
}

// publish is the lookup results hook.
func (f resultsFeed) publish(string, []invoice.Candidate) {
	select {
	case f <- struct{}{}:
	default:
	}
}

// wait delivers the next completion as a resultsMsg.
func (f resultsFeed) wait(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-f:
			return resultsMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

type composerMode int

const (
	composeSearch composerMode = iota
	composeLines
	composeEdit
	composeHeader
	composeConfirm
)

type confirmAction int

const (
	confirmQuit confirmAction = iota
	confirmReset
)

// composerModel edits one invoice draft: search box and suggestions, the
// line table, a header form and submit.
type composerModel struct {
	ctx      context.Context
	composer *invoice.Composer
	feed     resultsFeed
	notices  noticeLog

	mode       composerMode
	search     textinput.Model
	suggestion int
	line       int

	edit      textinput.Model
	editField invoice.Field

	header      []textinput.Model
	headerValue []string
	focus       int

	action   confirmAction
	previous composerMode
	status   string
}

func newComposerModel(ctx context.Context, c *invoice.Composer, feed resultsFeed, rec *notify.Recorder) *composerModel {
	m := &composerModel{
		ctx:      ctx,
		composer: c,
		feed:     feed,
		notices:  noticeLog{rec: rec, keep: 3},
		search:   newInput("type a product name"),
		edit:     newInput(""),
	}
	m.search.Prompt = "Search: "
	m.search.Focus()
	return m
}

func (m *composerModel) Init() tea.Cmd {
	return m.feed.wait(m.ctx)
}

func (m *composerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case resultsMsg:
		m.suggestion = min(m.suggestion, max(len(m.composer.Suggestions())-1, 0))
		return m, m.feed.wait(m.ctx)
	case submittedMsg:
		if msg.err == nil {
			m.status = fmt.Sprintf("Sale %s created (id %d, document %s)", msg.sale.InvoiceNumber, msg.sale.ID, msg.sale.DocumentID)
			m.startOver()
		}
		return m, nil
	case tea.KeyMsg:
		m.status = ""
		switch m.mode {
		case composeLines:
			return m.updateLines(msg)
		case composeEdit:
			return m.updateEdit(msg)
		case composeHeader:
			return m.updateHeader(msg)
		case composeConfirm:
			return m.updateConfirm(msg)
		}
		return m.updateSearch(msg)
	}
	return m, nil
}

// global handles the keys every mode except the forms shares.
func (m *composerModel) global(key tea.KeyMsg) (tea.Cmd, bool) {
	switch key.String() {
	case "ctrl+c":
		return m.askQuit(), true
	case "ctrl+s":
		return m.submit(), true
	case "ctrl+e":
		m.openHeader()
		return nil, true
	case "ctrl+r":
		m.ask(confirmReset)
		return nil, true
	}
	return nil, false
}

func (m *composerModel) updateSearch(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if cmd, ok := m.global(key); ok {
		return m, cmd
	}

	switch key.String() {
	case "esc":
		if m.search.Value() == "" {
			return m, m.askQuit()
		}
		m.search.Reset()
		m.composer.Search(m.ctx, "")
		return m, nil
	case "up":
		m.suggestion = max(m.suggestion-1, 0)
		return m, nil
	case "down":
		m.suggestion = min(m.suggestion+1, max(len(m.composer.Suggestions())-1, 0))
		return m, nil
	case "enter":
		m.addSelected()
		return m, nil
	case "tab":
		if len(m.composer.Lines()) > 0 {
			m.focusLines()
		}
		return m, nil
	}

	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(key)
	if text := m.search.Value(); text != before {
		m.suggestion = 0
		m.composer.Search(m.ctx, text)
	}
	return m, cmd
}

// addSelected adds the highlighted suggestion. Results shown while a newer
// search is pending belong to older text and are not offered.
func (m *composerModel) addSelected() {
	if m.composer.LookupState() != invoice.StateIdle {
		m.status = "Still searching, wait for the results"
		return
	}
	suggestions := m.composer.Suggestions()
	if len(suggestions) == 0 {
		return
	}
	if err := m.composer.Select(suggestions[m.suggestion]); err == nil {
		m.line = len(m.composer.Lines()) - 1
	}
	m.search.Reset()
	m.suggestion = 0
}

func (m *composerModel) updateLines(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if cmd, ok := m.global(key); ok {
		return m, cmd
	}

	lines := m.composer.Lines()
	if len(lines) == 0 {
		m.focusSearch()
		return m, nil
	}
	m.line = min(m.line, len(lines)-1)

	switch key.String() {
	case "q":
		return m, m.askQuit()
	case "tab", "esc":
		m.focusSearch()
	case "up", "k":
		m.line = max(m.line-1, 0)
	case "down", "j":
		m.line = min(m.line+1, len(lines)-1)
	case "+", "=":
		m.updateLine(invoice.FieldQuantity, strconv.Itoa(lines[m.line].Quantity+1))
	case "-":
		m.updateLine(invoice.FieldQuantity, strconv.Itoa(lines[m.line].Quantity-1))
	case "e", "enter":
		m.openEdit(invoice.FieldQuantity, strconv.Itoa(lines[m.line].Quantity))
	case "p":
		m.openEdit(invoice.FieldPrice, strconv.FormatFloat(lines[m.line].Price, 'f', -1, 64))
	case "d", "delete", "backspace":
		if err := m.composer.RemoveLine(m.line); err != nil {
			m.status = lineError(m.line, err)
			return m, nil
		}
		if n := len(m.composer.Lines()); n == 0 {
			m.focusSearch()
		} else {
			m.line = min(m.line, n-1)
		}
	}
	return m, nil
}

func (m *composerModel) updateLine(field invoice.Field, value string) {
	if err := m.composer.UpdateLine(m.line, field, value); err != nil {
		m.status = lineError(m.line, err)
	}
}

func lineError(index int, err error) string {
	if errors.Is(err, invoice.ErrIndexOutOfRange) {
		return fmt.Sprintf("no line %d", index+1)
	}
	return err.Error()
}

func (m *composerModel) openEdit(field invoice.Field, value string) {
	m.editField = field
	m.edit.Prompt = fmt.Sprintf("%s of line %d: ", strings.ToUpper(string(field[:1]))+string(field[1:]), m.line+1)
	m.edit.Reset()
	m.edit.SetValue(value)
	m.edit.Focus()
	m.mode = composeEdit
}

func (m *composerModel) updateEdit(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "esc", "ctrl+c":
		m.edit.Blur()
		m.mode = composeLines
		return m, nil
	case "enter":
		m.updateLine(m.editField, m.edit.Value())
		m.edit.Blur()
		m.mode = composeLines
		return m, nil
	}
	var cmd tea.Cmd
	m.edit, cmd = m.edit.Update(key)
	return m, cmd
}

func (m *composerModel) openHeader() {
	h := m.composer.Header()
	values := map[invoice.HeaderField]string{
		invoice.FieldInvoiceNumber: h.InvoiceNumber,
		invoice.FieldCustomerName:  h.CustomerName,
		invoice.FieldCustomerEmail: h.CustomerEmail,
		invoice.FieldCustomerPhone: h.CustomerPhone,
		invoice.FieldNotes:         h.Notes,
	}
	if !h.Date.IsZero() {
		values[invoice.FieldDate] = h.Date.Format("2006-01-02 15:04")
	}

	m.header = make([]textinput.Model, len(invoice.HeaderFields))
	m.headerValue = make([]string, len(invoice.HeaderFields))
	for i, field := range invoice.HeaderFields {
		in := newInput("")
		in.Prompt = fmt.Sprintf("%-16s", strings.ReplaceAll(string(field), "_", " "))
		in.SetValue(values[field])
		m.header[i] = in
		m.headerValue[i] = values[field]
	}
	m.search.Blur()
	m.focus = 0
	m.header[0].Focus()
	m.previous = m.mode
	m.mode = composeHeader
}

func (m *composerModel) updateHeader(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "esc", "ctrl+c":
		m.closeHeader()
		return m, nil
	case "enter":
		for i, field := range invoice.HeaderFields {
			if value := m.header[i].Value(); value != m.headerValue[i] {
				// Invalid input leaves the field unchanged and leaves a notice.
				m.composer.SetHeader(field, value)
			}
		}
		m.closeHeader()
		return m, nil
	case "tab", "down":
		m.moveHeaderFocus(1)
		return m, nil
	case "shift+tab", "up":
		m.moveHeaderFocus(-1)
		return m, nil
	}
	var cmd tea.Cmd
	m.header[m.focus], cmd = m.header[m.focus].Update(key)
	return m, cmd
}

func (m *composerModel) moveHeaderFocus(delta int) {
	m.header[m.focus].Blur()
	m.focus = (m.focus + delta + len(m.header)) % len(m.header)
	m.header[m.focus].Focus()
}

func (m *composerModel) closeHeader() {
	m.header = nil
	if m.previous == composeLines && len(m.composer.Lines()) > 0 {
		m.focusLines()
		return
	}
	m.focusSearch()
}

func (m *composerModel) askQuit() tea.Cmd {
	if len(m.composer.Lines()) == 0 {
		return tea.Quit
	}
	m.ask(confirmQuit)
	return nil
}

func (m *composerModel) ask(action confirmAction) {
	m.action = action
	if m.mode != composeConfirm {
		m.previous = m.mode
	}
	m.search.Blur()
	m.mode = composeConfirm
}

func (m *composerModel) updateConfirm(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !isYes(key) {
		if m.previous == composeLines && len(m.composer.Lines()) > 0 {
			m.focusLines()
		} else {
			m.focusSearch()
		}
		return m, nil
	}
	if m.action == confirmQuit {
		return m, tea.Quit
	}
	m.composer.Reset()
	m.startOver()
	m.status = "Draft discarded"
	return m, nil
}

func (m *composerModel) submit() tea.Cmd {
	ctx, c := m.ctx, m.composer
	return func() tea.Msg {
		sale, err := c.Submit(ctx)
		return submittedMsg{sale: sale, err: err}
	}
}

func (m *composerModel) startOver() {
	m.search.Reset()
	m.suggestion = 0
	m.line = 0
	m.focusSearch()
}

func (m *composerModel) focusSearch() {
	m.mode = composeSearch
	m.search.Focus()
}

func (m *composerModel) focusLines() {
	m.mode = composeLines
	m.search.Blur()
}

const composerHelp = "type to search · ↑/↓ pick · enter add · tab lines · ctrl+e header · ctrl+s submit · ctrl+r reset · esc quit"

const linesHelp = "↑/↓ pick · +/- quantity · e quantity · p price · d remove · tab search · ctrl+s submit · q quit"

func (m *composerModel) View() string {
	d := m.composer.Snapshot()

	var b strings.Builder
	b.WriteString(titleStyle.Render("New invoice") + "\n\n")

	selected := -1
	if m.mode == composeLines || m.mode == composeEdit {
		selected = m.line
	}
	b.WriteString(draftView(d, selected))
	b.WriteString("\n")

	switch m.mode {
	case composeHeader:
		b.WriteString(titleStyle.Render("Header") + "\n")
		for _, in := range m.header {
			b.WriteString("  " + in.View() + "\n")
		}
		b.WriteString(helpStyle.Render("tab next · enter apply · esc back") + "\n")
	case composeEdit:
		b.WriteString(m.edit.View() + "\n")
		b.WriteString(helpStyle.Render("enter apply · esc back") + "\n")
	default:
		b.WriteString(m.search.View())
		if d.Lookup != invoice.StateIdle {
			b.WriteString(helpStyle.Render("  searching…"))
		}
		b.WriteString("\n")
		b.WriteString(suggestionsView(d, m.suggestion, m.mode == composeSearch))
	}

	b.WriteString(m.notices.view())
	if d.Submitting {
		b.WriteString(helpStyle.Render("Submitting…") + "\n")
	}
	if m.status != "" {
		b.WriteString(m.status + "\n")
	}

	switch m.mode {
	case composeConfirm:
		if m.action == confirmQuit {
			b.WriteString("\nDiscard the current draft and quit? [y/N]\n")
		} else {
			b.WriteString("\nDiscard the current draft? [y/N]\n")
		}
	case composeLines:
		b.WriteString("\n" + helpStyle.Render(linesHelp) + "\n")
	case composeSearch:
		b.WriteString("\n" + helpStyle.Render(composerHelp) + "\n")
	}
	return b.String()
}

func suggestionsView(d invoice.Draft, selected int, active bool) string {
	if strings.TrimSpace(d.SearchText) == "" || d.Lookup != invoice.StateIdle {
		return ""
	}
	if len(d.Suggestions) == 0 {
		return fmt.Sprintf("No products match %q\n", d.SearchText)
	}
	if !active {
		selected = -1
	}
	return renderSelectable(suggestionColumns, d.Suggestions, selected)
}

var suggestionColumns = []column[invoice.Candidate]{
	{"NAME", func(c invoice.Candidate) string { return c.Name }},
	{"PRICE", func(c invoice.Candidate) string { return money(c.Price) }},
	{"STOCK", func(c invoice.Candidate) string { return fmt.Sprint(c.Stock) }},
}

var lineColumns = []column[invoice.LineItem]{
	{"PRODUCT", func(li invoice.LineItem) string { return li.Name }},
	{"QTY", func(li invoice.LineItem) string { return fmt.Sprint(li.Quantity) }},
	{"PRICE", func(li invoice.LineItem) string { return money(li.Price) }},
	{"AMOUNT", func(li invoice.LineItem) string { return money(li.Amount()) }},
	{"STOCK", func(li invoice.LineItem) string {
		if li.Quantity > li.Stock {
			return fmt.Sprintf("%d (short)", li.Stock)
		}
		return fmt.Sprint(li.Stock)
	}},
}

// draftView renders the header, the lines and the running totals.
func draftView(d invoice.Draft, selected int) string {
	var b strings.Builder
	h := d.Header
	fmt.Fprintf(&b, "Invoice:   %s\n", h.InvoiceNumber)
	if !h.Date.IsZero() {
		fmt.Fprintf(&b, "Date:      %s\n", h.Date.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&b, "Customer:  %s <%s>\n", h.CustomerName, h.CustomerEmail)
	if h.CustomerPhone != "" {
		fmt.Fprintf(&b, "Phone:     %s\n", h.CustomerPhone)
	}
	if h.Notes != "" {
		fmt.Fprintf(&b, "Notes:     %s\n", h.Notes)
	}
	b.WriteString("\n")

	if len(d.Items) == 0 {
		b.WriteString("No products added yet\n")
	} else {
		b.WriteString(renderSelectable(lineColumns, d.Items, selected))
	}
	b.WriteString("\n")
	b.WriteString(d.Totals.String() + "\n")
	return b.String()
}
