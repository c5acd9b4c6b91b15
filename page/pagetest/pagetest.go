// Package pagetest provides a scriptable page.Document for tests.
package pagetest

import (
	"context"
	"sync"

	"github.com/lukemcguire/linkscout/page"
)

// Doc wraps a page.Document and lets tests script load signals, element
// counts, scroll heights, and click behaviour. Methods without a script
// delegate to the embedded Document, which may be nil when unused.
type Doc struct {
	page.Document

	mu sync.Mutex

	// WaitErrs makes WaitFor fail with the given error for a state.
	WaitErrs map[page.LoadState]error
	// WaitBlocks makes WaitFor block until the context is done.
	WaitBlocks map[page.LoadState]bool
	// Counts scripts successive Count results per selector; the last value
	// repeats once the sequence is exhausted.
	Counts map[string][]int
	// Heights scripts successive ScrollHeight results.
	Heights []int
	// OnClick runs before the click is delegated. A non-nil error is
	// returned and the click is not delegated.
	OnClick func(el page.Element) error

	countCalls  map[string]int
	heightCalls int
	scrolls     []int
	keys        []string
}

// WaitFor implements page.Document.
func (d *Doc) WaitFor(ctx context.Context, state page.LoadState) error {
	d.mu.Lock()
	err, scripted := d.WaitErrs[state]
	block := d.WaitBlocks[state]
	d.mu.Unlock()

	switch {
	case block:
		<-ctx.Done()
		return ctx.Err()
	case scripted:
		return err
	case d.Document != nil:
		return d.Document.WaitFor(ctx, state)
	default:
		return nil
	}
}

// Count implements page.Document.
func (d *Doc) Count(ctx context.Context, selector string) (int, error) {
	d.mu.Lock()
	seq, ok := d.Counts[selector]
	if ok && len(seq) > 0 {
		if d.countCalls == nil {
			d.countCalls = make(map[string]int)
		}
		i := d.countCalls[selector]
		d.countCalls[selector]++
		d.mu.Unlock()
		if i >= len(seq) {
			i = len(seq) - 1
		}
		return seq[i], nil
	}
	d.mu.Unlock()
	if d.Document == nil {
		return 0, nil
	}
	return d.Document.Count(ctx, selector)
}

// CountCalls returns how many times Count was called for selector.
func (d *Doc) CountCalls(selector string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.countCalls[selector]
}

// ScrollHeight implements page.Document.
func (d *Doc) ScrollHeight(ctx context.Context) (int, error) {
	d.mu.Lock()
	if len(d.Heights) > 0 {
		i := min(d.heightCalls, len(d.Heights)-1)
		d.heightCalls++
		d.mu.Unlock()
		return d.Heights[i], nil
	}
	d.mu.Unlock()
	if d.Document == nil {
		return 0, nil
	}
	return d.Document.ScrollHeight(ctx)
}

// ScrollTo implements page.Document and records the position.
func (d *Doc) ScrollTo(ctx context.Context, y int) error {
	d.mu.Lock()
	d.scrolls = append(d.scrolls, y)
	d.mu.Unlock()
	if d.Document == nil {
		return nil
	}
	return d.Document.ScrollTo(ctx, y)
}

// Scrolls returns every recorded scroll position.
func (d *Doc) Scrolls() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.scrolls...)
}

// Click implements page.Document.
func (d *Doc) Click(ctx context.Context, el page.Element) error {
	if d.OnClick != nil {
		if err := d.OnClick(el); err != nil {
			return err
		}
	}
	if d.Document == nil {
		return nil
	}
	return d.Document.Click(ctx, el)
}

// PressKey implements page.Document and records the key.
func (d *Doc) PressKey(ctx context.Context, key string) error {
	d.mu.Lock()
	d.keys = append(d.keys, key)
	d.mu.Unlock()
	if d.Document == nil {
		return nil
	}
	return d.Document.PressKey(ctx, key)
}

// Keys returns every recorded key press.
func (d *Doc) Keys() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.keys...)
}
