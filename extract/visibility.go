package extract

import (
	"context"
	"strings"

	"github.com/lukemcguire/linkscout/page"
)

// IsVisible reports whether a real user could see the element. Checks run
// in order and short-circuit: display, visibility, opacity, box size, then
// aria-hidden on the element and its ancestors. Being outside the viewport
// does not make an element invisible.
func IsVisible(el page.Element) bool {
	if !el.Connected {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(el.Style.Display), "none") {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(el.Style.Visibility)) {
	case "hidden", "collapse":
		return false
	}
	if el.Style.Opacity <= 0 {
		return false
	}
	if el.Box.Width <= 0 || el.Box.Height <= 0 {
		return false
	}
	if isAriaHidden(el.AttrValue("aria-hidden")) {
		return false
	}
	for _, a := range el.Ancestors {
		if isAriaHidden(a.AriaHidden) {
			return false
		}
	}
	return true
}

// Visible re-reads el and applies IsVisible. Any failure to read the
// element counts as not visible.
func Visible(ctx context.Context, doc page.Document, el page.Element) bool {
	fresh, err := doc.Refresh(ctx, el)
	if err != nil {
		return false
	}
	return IsVisible(fresh)
}

func isAriaHidden(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "true")
}
