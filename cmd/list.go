package cmd

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"posdash/internal/api"
	"posdash/internal/logger"
	"posdash/internal/notify"
	"posdash/internal/query"
	"posdash/internal/resource"
	"posdash/pkg/models"
)

// listOptions are the flags shared by every list command
type listOptions struct {
	filters     query.FilterSet
	page        int
	pageSize    int
	interactive bool
}

// flagName turns a filter key into its flag name (invoice_number → invoice-number).
func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

func addFilterFlags(cmd *cobra.Command, fields []query.Field) {
	for _, f := range fields {
		usage := fmt.Sprintf("Filter by %s (contains, case-insensitive)", strings.ReplaceAll(f.Key, "_", " "))
		if f.Kind == query.Date {
			usage = fmt.Sprintf("Filter by %s (%s, local day)", strings.ReplaceAll(f.Key, "_", " "), "YYYY-MM-DD")
		}
		cmd.Flags().String(flagName(f.Key), "", usage)
	}
}

func addListFlags(cmd *cobra.Command, fields []query.Field) {
	addFilterFlags(cmd, fields)
	cmd.Flags().Int("page", 1, "Page to show")
	cmd.Flags().Int("page-size", resource.DefaultPageSize, fmt.Sprintf("Rows per page (%s)", joinInts(resource.DefaultPageSizes)))
	cmd.Flags().BoolP("interactive", "i", false, "Browse interactively (next, prev, filter, delete, ...)")
}

func readFilters(cmd *cobra.Command, fields []query.Field) query.FilterSet {
	filters := query.FilterSet{}
	for _, f := range fields {
		if value, _ := cmd.Flags().GetString(flagName(f.Key)); value != "" {
			filters[f.Key] = value
		}
	}
	return filters
}

func readListOptions(cmd *cobra.Command, fields []query.Field) (listOptions, error) {
	opts := listOptions{filters: readFilters(cmd, fields)}
	opts.page, _ = cmd.Flags().GetInt("page")
	opts.pageSize, _ = cmd.Flags().GetInt("page-size")
	opts.interactive, _ = cmd.Flags().GetBool("interactive")

	if !slices.Contains(resource.DefaultPageSizes, opts.pageSize) {
		return opts, fmt.Errorf("%w: %d", resource.ErrInvalidPageSize, opts.pageSize)
	}
	return opts, nil
}

// newController builds the list controller for def over the backend.
func newController[T models.Record](a *app, def resourceDef[T], pageSize int, notifier notify.Notifier) *resource.Controller[T] {
	cfg := def.config
	if pageSize > 0 {
		cfg.PageSize = pageSize
	}
	return resource.New[T](api.NewResource[T](a.client, def.path), cfg, notifier)
}

// runList lists one page of def, or starts the interactive browser.
func runList[T models.Record](cmd *cobra.Command, def resourceDef[T]) error {
	log := logger.WithResource("list", def.config.Name)

	opts, err := readListOptions(cmd, def.config.Fields)
	if err != nil {
		return handleAPIError(err, log)
	}

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

	log.Info().
		Interface("filters", opts.filters).
		Int("page", opts.page).
		Int("page_size", opts.pageSize).
		Bool("interactive", opts.interactive).
		Msg("Listing records")

	// The browser shows notices itself; printing them would tear its view.
	var notifier notify.Notifier = a.notifier
	rec := &notify.Recorder{}
	if opts.interactive {
		notifier = rec
	}

	ctl := newController(a, def, opts.pageSize, notifier)
	err = ctl.SetFilters(ctx, opts.filters)
	if err == nil && opts.page > 1 {
		err = ctl.SetPage(ctx, opts.page)
	}

	if opts.interactive {
		_, err := runProgram(ctx, newBrowseModel(ctx, ctl, def, rec))
		return err
	}
	if err != nil {
		return reported(err)
	}
	renderPage(os.Stdout, ctl, def.columns)
	return nil
}

type browseMode int

const (
	browseRows browseMode = iota
	browseFilters
	browseConfirm
)

// pageMsg reports a finished list fetch.
type pageMsg struct{ err error }

// deletedMsg reports a finished delete and its refetch.
type deletedMsg struct{ err error }

// browseModel is the interactive list of one resource: page through it,
// filter it and delete rows after confirmation.
type browseModel[T models.Record] struct {
	ctx     context.Context
	ctl     *resource.Controller[T]
	def     resourceDef[T]
	notices noticeLog

	mode     browseMode
	cursor   int
	pending  int
	status   string
	showHelp bool

	filters []textinput.Model
	focus   int
}

func newBrowseModel[T models.Record](ctx context.Context, ctl *resource.Controller[T], def resourceDef[T], rec *notify.Recorder) *browseModel[T] {
	return &browseModel[T]{
		ctx:     ctx,
		ctl:     ctl,
		def:     def,
		notices: noticeLog{rec: rec, keep: 3},
	}
}

func (m *browseModel[T]) Init() tea.Cmd {
	if m.ctl.State().Loaded {
		return nil
	}
	return m.fetch(m.ctl.Refetch)
}

// fetch runs a list operation off the update loop.
func (m *browseModel[T]) fetch(op func(context.Context) error) tea.Cmd {
	m.pending++
	ctx := m.ctx
	return func() tea.Msg {
		return pageMsg{err: op(ctx)}
	}
}

func (m *browseModel[T]) busy() bool {
	return m.pending > 0
}

func (m *browseModel[T]) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case pageMsg, deletedMsg:
		m.pending--
		m.clampCursor()
		return m, nil
	case tea.KeyMsg:
		switch m.mode {
		case browseFilters:
			return m.updateFilters(msg)
		case browseConfirm:
			return m.updateConfirm(msg)
		}
		return m.updateRows(msg)
	}
	return m, nil
}

func (m *browseModel[T]) updateRows(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status = ""

	switch key.String() {
	case "q", "esc", "ctrl+c":
		return m, tea.Quit
	case "?":
		m.showHelp = !m.showHelp
	case "n", "right", "pgdown":
		return m, m.fetch(m.ctl.Next)
	case "p", "left", "pgup":
		return m, m.fetch(m.ctl.Prev)
	case "g", "home":
		return m, m.fetch(m.ctl.First)
	case "G", "end":
		return m, m.fetch(m.ctl.Last)
	case "r":
		return m, m.fetch(m.ctl.Refetch)
	case "s":
		size := m.nextPageSize()
		return m, m.fetch(func(ctx context.Context) error {
			return m.ctl.SetPageSize(ctx, size)
		})
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.ctl.State().Items)-1 {
			m.cursor++
		}
	case "/", "f":
		m.openFilters()
	case "d", "delete":
		items := m.ctl.State().Items
		if len(items) == 0 {
			return m, nil
		}
		m.ctl.RequestDelete(items[m.cursor])
		m.mode = browseConfirm
	}
	return m, nil
}

func (m *browseModel[T]) updateConfirm(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.mode = browseRows
	if !isYes(key) {
		m.ctl.CancelDelete()
		m.status = "Canceled"
		return m, nil
	}

	m.pending++
	ctx := m.ctx
	return m, func() tea.Msg {
		return deletedMsg{err: m.ctl.ConfirmDelete(ctx)}
	}
}

func (m *browseModel[T]) openFilters() {
	current := m.ctl.State().Filters
	m.filters = make([]textinput.Model, len(m.def.config.Fields))
	for i, f := range m.def.config.Fields {
		placeholder := "contains…"
		if f.Kind == query.Date {
			placeholder = query.DateLayout
		}
		in := newInput(placeholder)
		in.Prompt = fmt.Sprintf("%-16s", strings.ReplaceAll(f.Key, "_", " "))
		in.SetValue(current[f.Key])
		m.filters[i] = in
	}
	m.focus = 0
	m.filters[0].Focus()
	m.mode = browseFilters
}

func (m *browseModel[T]) updateFilters(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "esc", "ctrl+c":
		m.mode = browseRows
		return m, nil
	case "enter":
		values := query.FilterSet{}
		for i, f := range m.def.config.Fields {
			values[f.Key] = strings.TrimSpace(m.filters[i].Value())
		}
		m.mode = browseRows
		m.cursor = 0
		return m, m.fetch(func(ctx context.Context) error {
			return m.ctl.SetFilters(ctx, values)
		})
	case "tab", "down":
		m.moveFilterFocus(1)
		return m, nil
	case "shift+tab", "up":
		m.moveFilterFocus(-1)
		return m, nil
	}

	var cmd tea.Cmd
	m.filters[m.focus], cmd = m.filters[m.focus].Update(key)
	return m, cmd
}

func (m *browseModel[T]) moveFilterFocus(delta int) {
	m.filters[m.focus].Blur()
	m.focus = (m.focus + delta + len(m.filters)) % len(m.filters)
	m.filters[m.focus].Focus()
}

func (m *browseModel[T]) nextPageSize() int {
	sizes := m.ctl.PageSizes()
	i := slices.Index(sizes, m.ctl.State().Page.PageSize)
	return sizes[(i+1)%len(sizes)]
}

func (m *browseModel[T]) clampCursor() {
	n := len(m.ctl.State().Items)
	m.cursor = min(m.cursor, max(n-1, 0))
}

const browseHelp = `n/→ next · p/← prev · g first · G last · ↑/↓ select row
s rows per page · / filter · d delete row · r reload · q quit`

func (m *browseModel[T]) View() string {
	var b strings.Builder
	label := m.def.config.Name
	b.WriteString(titleStyle.Render(strings.ToUpper(label[:1])+label[1:]) + "\n\n")

	st := m.ctl.State()
	if !st.Loaded {
		b.WriteString("Loading…\n")
		b.WriteString(m.notices.view())
		return b.String()
	}

	b.WriteString(renderSelectable(m.def.columns, st.Items, m.cursor))
	rows, position := m.ctl.Summary()
	fmt.Fprintf(&b, "\n%s  ·  %s  ·  %d rows per page\n", rows, position, st.Page.PageSize)
	if filters := describeFilters(st.Filters); filters != "" {
		fmt.Fprintf(&b, "Filters: %s\n", filters)
	}
	if m.busy() {
		b.WriteString(helpStyle.Render("Loading…") + "\n")
	}
	b.WriteString(m.notices.view())

	switch m.mode {
	case browseConfirm:
		if target, ok := m.ctl.PendingDelete(); ok {
			fmt.Fprintf(&b, "\nDelete %s %s? [y/N]\n", strings.ToLower(m.def.config.Label), m.def.describe(target))
		}
	case browseFilters:
		b.WriteString("\n" + titleStyle.Render("Filters") + "\n")
		for _, in := range m.filters {
			b.WriteString("  " + in.View() + "\n")
		}
		b.WriteString(helpStyle.Render("tab next · enter apply · esc back") + "\n")
	default:
		if m.status != "" {
			b.WriteString(m.status + "\n")
		}
		if m.showHelp {
			b.WriteString("\n" + helpStyle.Render(browseHelp) + "\n")
		} else {
			b.WriteString("\n" + helpStyle.Render("? help · q quit") + "\n")
		}
	}
	return b.String()
}
