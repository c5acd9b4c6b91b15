// Package htmldoc implements page.Document over static HTML parsed with
// goquery. There is no script engine: computed style is approximated from
// inline styles and the hidden attribute, and overlays are simulated from the
// common data-target / aria-controls / dismiss conventions. It backs the
// --static audit mode and the engine's tests.
package htmldoc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/lukemcguire/linkscout/page"
)

const (
	nominalWidth  = 120
	nominalHeight = 20
	pageHeight    = 1000
)

var errNoDocument = errors.New("no document loaded")

// Document is a static, in-memory page.Document.
type Document struct {
	mu        sync.Mutex
	doc       *goquery.Document
	url       *url.URL
	client    *http.Client
	userAgent string
	headers   map[string]string

	refs     map[string]*html.Node
	nodeRefs map[*html.Node]string
	seq      int

	opened  []*html.Node
	scrollY int
	clicks  int
}

// Option configures a Document.
type Option func(*Document)

// WithClient sets the HTTP client used by Navigate.
func WithClient(client *http.Client) Option {
	return func(d *Document) {
		if client != nil {
			d.client = client
		}
	}
}

// WithUserAgent sets the User-Agent sent by Navigate.
func WithUserAgent(ua string) Option {
	return func(d *Document) {
		d.userAgent = ua
	}
}

// WithHeaders adds request headers sent by Navigate.
func WithHeaders(headers map[string]string) Option {
	return func(d *Document) {
		for k, v := range headers {
			d.headers[k] = v
		}
	}
}

// New returns an empty Document; call Navigate to load a page.
func New(opts ...Option) *Document {
	d := &Document{
		client:   &http.Client{},
		headers:  make(map[string]string),
		refs:     make(map[string]*html.Node),
		nodeRefs: make(map[*html.Node]string),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Parse builds a Document from HTML read from r, addressed at baseURL.
func Parse(r io.Reader, baseURL string, opts ...Option) (*Document, error) {
	d := New(opts...)
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL %q: %w", baseURL, err)
	}
	if err := d.load(r, parsedURL); err != nil {
		return nil, err
	}
	return d, nil
}

// Fetch loads targetURL into a new Document using client.
func Fetch(ctx context.Context, client *http.Client, targetURL string, opts ...Option) (*Document, error) {
	d := New(append([]Option{WithClient(client)}, opts...)...)
	if err := d.Navigate(ctx, targetURL); err != nil {
		return nil, err
	}
	return d, nil
}

// ParseString is Parse for an in-memory string.
func ParseString(markup, baseURL string, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(markup), baseURL, opts...)
}

func (d *Document) load(r io.Reader, u *url.URL) error {
	root, err := html.Parse(r)
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.doc = goquery.NewDocumentFromNode(root)
	d.url = u
	d.refs = make(map[string]*html.Node)
	d.nodeRefs = make(map[*html.Node]string)
	d.opened = nil
	d.scrollY = 0
	return nil
}

// Navigate fetches targetURL and replaces the document with the response.
// Error statuses still produce a document, as a browser would render them.
func (d *Document) Navigate(ctx context.Context, targetURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return fmt.Errorf("create request for %s: %w", targetURL, err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	for k, v := range d.headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", targetURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return fmt.Errorf("decode %s: %w", targetURL, err)
	}
	return d.load(body, resp.Request.URL)
}

// URL returns the address of the loaded document.
func (d *Document) URL(_ context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.url == nil {
		return "", errNoDocument
	}
	return d.url.String(), nil
}

// WaitFor returns immediately once a document is loaded; static documents
// reach every load state at parse time.
func (d *Document) WaitFor(ctx context.Context, _ page.LoadState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return errNoDocument
	}
	return nil
}

// Count returns the number of elements matching selector.
func (d *Document) Count(_ context.Context, selector string) (int, error) {
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return 0, fmt.Errorf("compile selector %q: %w", selector, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return 0, errNoDocument
	}
	return d.doc.FindMatcher(matcher).Length(), nil
}

// QueryAll returns snapshots of matching elements under scope.
func (d *Document) QueryAll(_ context.Context, scope *page.Element, selector string) ([]page.Element, error) {
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("compile selector %q: %w", selector, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return nil, errNoDocument
	}

	root := d.doc.Selection
	if scope != nil {
		node, ok := d.refs[scope.Ref]
		if !ok || !isConnected(node) {
			return nil, page.ErrDetached
		}
		root = d.doc.FindNodes(node)
	}

	matches := root.FindMatcher(matcher)
	elements := make([]page.Element, 0, matches.Length())
	for _, node := range matches.Nodes {
		elements = append(elements, d.snapshotLocked(node))
	}
	return elements, nil
}

// Refresh re-reads the element's current state.
func (d *Document) Refresh(_ context.Context, el page.Element) (page.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	node, ok := d.refs[el.Ref]
	if !ok || !isConnected(node) {
		return page.Element{}, page.ErrDetached
	}
	return d.snapshotLocked(node), nil
}

// Click simulates a user click: overlay toggles open their target and
// dismiss controls close the overlay that contains them.
func (d *Document) Click(_ context.Context, el page.Element) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	node, ok := d.refs[el.Ref]
	if !ok || !isConnected(node) {
		return page.ErrDetached
	}
	d.clicks++

	for current, depth := node, 0; current != nil && current.Type == html.ElementNode && depth < 4; current, depth = current.Parent, depth+1 {
		if isDismissControl(current) {
			if overlay := closestOverlay(current); overlay != nil {
				d.closeOverlay(overlay)
			}
			return nil
		}
		if targetID := toggleTarget(current); targetID != "" {
			target := findByID(d.doc, targetID)
			if target == nil {
				return nil
			}
			d.openOverlay(target)
			setAttr(current, "aria-expanded", "true")
			return nil
		}
	}
	return nil
}

// PressKey handles "Escape" by closing every overlay opened by Click.
func (d *Document) PressKey(_ context.Context, key string) error {
	if key != "Escape" {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, overlay := range d.opened {
		d.closeOverlay(overlay)
	}
	d.opened = nil
	return nil
}

// ScrollTo records the scroll position.
func (d *Document) ScrollTo(_ context.Context, y int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scrollY = y
	return nil
}

// ScrollHeight returns a fixed nominal page height.
func (d *Document) ScrollHeight(_ context.Context) (int, error) {
	return pageHeight, nil
}

// Screenshot is not available without a renderer.
func (d *Document) Screenshot(_ context.Context) ([]byte, error) {
	return nil, page.ErrUnsupported
}

// Clicks returns how many clicks were dispatched.
func (d *Document) Clicks() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clicks
}

// ScrollY returns the last scroll position.
func (d *Document) ScrollY() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scrollY
}

func (d *Document) openOverlay(n *html.Node) {
	removeAttr(n, "hidden")
	setStyleProperty(n, "display", "block")
	if n.Data == "dialog" {
		setAttr(n, "open", "")
	}
	if v, ok := attr(n, "aria-hidden"); ok && v == "true" {
		setAttr(n, "aria-hidden", "false")
	}
	addClass(n, "show")
	for _, o := range d.opened {
		if o == n {
			return
		}
	}
	d.opened = append(d.opened, n)
}

func (d *Document) closeOverlay(n *html.Node) {
	setStyleProperty(n, "display", "none")
	removeAttr(n, "open")
	removeClass(n, "show")
	kept := d.opened[:0]
	for _, o := range d.opened {
		if o != n {
			kept = append(kept, o)
		}
	}
	d.opened = kept
}

func (d *Document) snapshotLocked(n *html.Node) page.Element {
	ref, ok := d.nodeRefs[n]
	if !ok {
		d.seq++
		ref = strconv.Itoa(d.seq)
		d.nodeRefs[n] = ref
		d.refs[ref] = n
	}

	attrs := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		attrs[a.Key] = a.Val
	}

	var ancestors []page.Ancestor
	for p := n.Parent; p != nil && p.Type == html.ElementNode; p = p.Parent {
		a, _ := attr(p, "aria-hidden")
		ancestors = append(ancestors, page.Ancestor{
			Tag:        p.Data,
			ID:         attrValue(p, "id"),
			Class:      attrValue(p, "class"),
			Role:       attrValue(p, "role"),
			AriaHidden: a,
		})
	}

	return page.Element{
		Ref:       ref,
		Tag:       strings.ToLower(n.Data),
		Attrs:     attrs,
		Text:      strings.Join(strings.Fields(d.doc.FindNodes(n).Text()), " "),
		Style:     computeStyle(n),
		Box:       computeBox(n),
		Connected: isConnected(n),
		Ancestors: ancestors,
	}
}

func isConnected(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.DocumentNode {
			return true
		}
	}
	return false
}

func findByID(doc *goquery.Document, id string) *html.Node {
	id = strings.TrimPrefix(strings.TrimSpace(id), "#")
	if id == "" {
		return nil
	}
	var found *html.Node
	doc.Find("[id]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, _ := s.Attr("id"); v == id {
			found = s.Get(0)
			return false
		}
		return true
	})
	return found
}
