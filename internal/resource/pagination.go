package resource

import (
	"context"
	"fmt"
)

// CanPrev reports whether First and Prev would move.
func (c *Controller[T]) CanPrev() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page.Page > 1
}

// CanNext reports whether Next and Last would move.
func (c *Controller[T]) CanNext() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page.Page < c.result.Meta.PageCount
}

// First goes to page 1; no-op on page 1.
func (c *Controller[T]) First(ctx context.Context) error {
	if !c.CanPrev() {
		return nil
	}
	return c.SetPage(ctx, 1)
}

// Prev goes back one page; no-op on page 1.
func (c *Controller[T]) Prev(ctx context.Context) error {
	if !c.CanPrev() {
		return nil
	}
	c.mu.Lock()
	target := c.page.Page - 1
	c.mu.Unlock()
	return c.SetPage(ctx, target)
}

// Next advances one page; no-op on the last page.
func (c *Controller[T]) Next(ctx context.Context) error {
	if !c.CanNext() {
		return nil
	}
	c.mu.Lock()
	target := c.page.Page + 1
	c.mu.Unlock()
	return c.SetPage(ctx, target)
}

// Last goes to the last page; no-op when already there.
func (c *Controller[T]) Last(ctx context.Context) error {
	c.mu.Lock()
	pageCount := c.result.Meta.PageCount
	atEnd := c.page.Page == max(pageCount, 1)
	c.mu.Unlock()
	if atEnd {
		return nil
	}
	return c.SetPage(ctx, pageCount)
}

// Summary renders the list footer: the visible row range and the page position.
func (c *Controller[T]) Summary() (rows string, position string) {
	st := c.State()
	if !st.Loaded {
		return "", ""
	}

	if len(st.Items) == 0 {
		rows = "No rows"
	} else {
		from := (st.Meta.Page-1)*st.Meta.PageSize + 1
		to := (st.Meta.Page-1)*st.Meta.PageSize + len(st.Items)
		rows = fmt.Sprintf("Showing %d to %d of %d records", from, to, st.Meta.Total)
	}
	position = fmt.Sprintf("Page %d of %d", st.Meta.Page, st.Meta.PageCount)
	return rows, position
}
