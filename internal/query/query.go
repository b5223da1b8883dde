// Package query turns list state (filters, page) into backend query parameters.
//
// The backend speaks the Strapi REST dialect:
//
//	pagination[page]=2&pagination[pageSize]=10
//	populate[0]=category
//	filters[name][$containsi]=cola
//	filters[barcode][$eq]=4006381333931
//	filters[date][$gte]=2025-03-01T05:00:00.000Z&filters[date][$lte]=...
package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Kind selects how a filter value is translated.
type Kind int

const (
	// Text filters become case-insensitive contains predicates.
	Text Kind = iota
	// Date filters become an inclusive range over one local calendar day.
	Date
	// Equals filters match the value exactly.
	Equals
)

// DateLayout is the accepted format of date filter values.
const DateLayout = "2006-01-02"

// isoLayout matches JavaScript's Date.toISOString, which the backend expects.
const isoLayout = "2006-01-02T15:04:05.000Z"

// Field maps a filter key to a backend field.
type Field struct {
	Key     string
	Backend string // defaults to Key
	Kind    Kind
}

func (f Field) backendName() string {
	if f.Backend != "" {
		return f.Backend
	}
	return f.Key
}

// FilterSet holds the current value per filter key.
type FilterSet map[string]string

// Clone returns an independent copy.
func (fs FilterSet) Clone() FilterSet {
	out := make(FilterSet, len(fs))
	for k, v := range fs {
		out[k] = v
	}
	return out
}

// Active reports whether any filter carries a non-blank value.
func (fs FilterSet) Active() bool {
	for _, v := range fs {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// PageRequest is the requested page and page size.
type PageRequest struct {
	Page     int
	PageSize int
}

// Options carries the parts of a query that are fixed per resource.
type Options struct {
	Fields   []Field
	Populate []string
	// Location is the time zone date filters are interpreted in. Defaults to time.Local.
	Location *time.Location
}

// Build returns the query parameters for one list call. Empty values and
// filter keys with no matching Field are skipped.
func Build(filters FilterSet, page PageRequest, opts Options) url.Values {
	params := url.Values{}
	params.Set("pagination[page]", strconv.Itoa(page.Page))
	params.Set("pagination[pageSize]", strconv.Itoa(page.PageSize))

	for i, rel := range opts.Populate {
		params.Set(fmt.Sprintf("populate[%d]", i), rel)
	}

	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	for _, field := range opts.Fields {
		value := strings.TrimSpace(filters[field.Key])
		if value == "" {
			continue
		}
		name := field.backendName()

		switch field.Kind {
		case Date:
			start, end, ok := DayRange(value, loc)
			if !ok {
				continue
			}
			params.Set(fmt.Sprintf("filters[%s][$gte]", name), start.UTC().Format(isoLayout))
			params.Set(fmt.Sprintf("filters[%s][$lte]", name), end.UTC().Format(isoLayout))
		case Equals:
			params.Set(fmt.Sprintf("filters[%s][$eq]", name), value)
		default:
			params.Set(fmt.Sprintf("filters[%s][$containsi]", name), value)
		}
	}

	return params
}

// DayRange returns the first and last instant of the calendar day named by
// value in loc.
func DayRange(value string, loc *time.Location) (time.Time, time.Time, bool) {
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(value), loc)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	end := time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, int(999*time.Millisecond), loc)
	return start, end, true
}
