package cmd

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"posdash/internal/invoice"
	"posdash/internal/resource"
	"posdash/pkg/models"
)

// column renders one table column for T.
type column[T any] struct {
	header string
	value  func(T) string
}

// renderTable prints items with a leading row number column.
func renderTable[T any](w io.Writer, cols []column[T], items []T, firstRow int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	headers := make([]string, 0, len(cols)+1)
	headers = append(headers, "#")
	for _, c := range cols {
		headers = append(headers, c.header)
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	for i, item := range items {
		cells := make([]string, 0, len(cols)+1)
		cells = append(cells, fmt.Sprint(firstRow+i))
		for _, c := range cols {
			cells = append(cells, cleanCell(c.value(item)))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
}

// renderSelectable renders items as a table with row selected marked.
func renderSelectable[T any](cols []column[T], items []T, selected int) string {
	var buf bytes.Buffer
	renderTable(&buf, cols, items, 1)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	for i, line := range lines {
		if i == selected+1 {
			lines[i] = selectedStyle.Render("> " + line)
		} else {
			lines[i] = "  " + line
		}
	}
	return strings.Join(lines, "\n") + "\n"
}

// renderPage prints the controller's current page and its footer.
func renderPage[T models.Record](w io.Writer, ctl *resource.Controller[T], cols []column[T]) {
	st := ctl.State()
	renderTable(w, cols, st.Items, 1)

	rows, position := ctl.Summary()
	fmt.Fprintf(w, "\n%s  ·  %s  ·  %d rows per page\n", rows, position, st.Page.PageSize)
	if filters := describeFilters(st.Filters); filters != "" {
		fmt.Fprintf(w, "Filters: %s\n", filters)
	}
}

func describeFilters(filters map[string]string) string {
	var parts []string
	for key, value := range filters {
		if strings.TrimSpace(value) != "" {
			parts = append(parts, fmt.Sprintf("%s=%q", key, value))
		}
	}
	slices.Sort(parts)
	return strings.Join(parts, " ")
}

func cleanCell(s string) string {
	s = strings.NewReplacer("\t", " ", "\n", " ", "\r", "").Replace(s)
	if len([]rune(s)) > 40 {
		return string([]rune(s)[:39]) + "…"
	}
	return s
}

func money(v float64) string {
	return invoice.Money(decimal.NewFromFloat(v))
}
