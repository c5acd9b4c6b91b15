// Package page defines the page-content capability the link engine drives.
// Any browser-automation backend can satisfy Document; the engine never
// depends on a concrete implementation.
package page

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrDetached is returned when an element no longer exists in the document.
	ErrDetached = errors.New("element detached from document")
	// ErrClosed is returned when the document or its tab has been closed.
	ErrClosed = errors.New("document closed")
	// ErrUnsupported is returned for capabilities a backend cannot provide.
	ErrUnsupported = errors.New("operation not supported by this document backend")
)

// LoadState is a document lifecycle signal that can be waited for.
type LoadState int

const (
	// ContentParsed is reached once the HTML has been parsed (DOMContentLoaded).
	ContentParsed LoadState = iota
	// FullyLoaded is reached once subresources have loaded (the load event).
	FullyLoaded
	// NetworkIdle is reached when no requests have been in flight for a short window.
	NetworkIdle
)

func (s LoadState) String() string {
	switch s {
	case ContentParsed:
		return "content-parsed"
	case FullyLoaded:
		return "fully-loaded"
	case NetworkIdle:
		return "network-idle"
	default:
		return "unknown"
	}
}

// Document is the set of operations the engine needs from a rendered page.
// A Document is a single mutable resource; callers must not use it from more
// than one goroutine at a time.
type Document interface {
	// Navigate starts loading url in the document.
	Navigate(ctx context.Context, url string) error
	// URL returns the document's current address.
	URL(ctx context.Context) (string, error)
	// WaitFor blocks until the given load state is reached or ctx is done.
	WaitFor(ctx context.Context, state LoadState) error
	// Count returns the number of elements matching selector.
	Count(ctx context.Context, selector string) (int, error)
	// QueryAll returns snapshots of the elements matching selector. A nil
	// scope searches the whole document; otherwise only descendants of scope.
	QueryAll(ctx context.Context, scope *Element, selector string) ([]Element, error)
	// Refresh re-reads the live state of a previously returned element.
	// It returns ErrDetached when the element is gone.
	Refresh(ctx context.Context, el Element) (Element, error)
	// Click dispatches a user click on the element.
	Click(ctx context.Context, el Element) error
	// PressKey sends a key press (e.g. "Escape") to the focused document.
	PressKey(ctx context.Context, key string) error
	// ScrollTo scrolls the viewport so its top is at y pixels.
	ScrollTo(ctx context.Context, y int) error
	// ScrollHeight returns the current scrollable height of the document.
	ScrollHeight(ctx context.Context) (int, error)
	// Screenshot captures the full page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
}

// Style holds the computed style properties relevant to visibility.
type Style struct {
	Display    string  `json:"display"`
	Visibility string  `json:"visibility"`
	Opacity    float64 `json:"opacity"`
}

// Box is an element's bounding box in CSS pixels.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Ancestor summarises one ancestor of an element, nearest first.
type Ancestor struct {
	Tag        string `json:"tag"`
	ID         string `json:"id"`
	Class      string `json:"class"`
	Role       string `json:"role"`
	AriaHidden string `json:"ariaHidden"`
}

// FirstClass returns the first class token, or "".
func (a Ancestor) FirstClass() string {
	return firstField(a.Class)
}

// Element is a point-in-time snapshot of a DOM element. Ref identifies the
// live node to the Document that produced it.
type Element struct {
	Ref       string            `json:"ref"`
	Tag       string            `json:"tag"`
	Attrs     map[string]string `json:"attrs"`
	Text      string            `json:"text"`
	Style     Style             `json:"style"`
	Box       Box               `json:"box"`
	Connected bool              `json:"connected"`
	Ancestors []Ancestor        `json:"ancestors"`
}

// Attr returns the named attribute and whether it is present.
func (e Element) Attr(name string) (string, bool) {
	if e.Attrs == nil {
		return "", false
	}
	v, ok := e.Attrs[name]
	return v, ok
}

// AttrValue returns the named attribute or "".
func (e Element) AttrValue(name string) string {
	v, _ := e.Attr(name)
	return v
}

// ID returns the element id attribute.
func (e Element) ID() string {
	return strings.TrimSpace(e.AttrValue("id"))
}

// FirstClass returns the first class token of the element.
func (e Element) FirstClass() string {
	return firstField(e.AttrValue("class"))
}

// Parent returns the nearest ancestor, if the snapshot recorded one.
func (e Element) Parent() (Ancestor, bool) {
	if len(e.Ancestors) == 0 {
		return Ancestor{}, false
	}
	return e.Ancestors[0], true
}

func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
