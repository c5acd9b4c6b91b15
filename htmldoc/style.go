package htmldoc

import (
	"slices"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/lukemcguire/linkscout/page"
)

// Tags never rendered regardless of styling.
var unrenderedTags = map[string]bool{
	"head":     true,
	"script":   true,
	"style":    true,
	"template": true,
	"noscript": true,
	"title":    true,
	"meta":     true,
	"link":     true,
}

var inlineTags = map[string]bool{
	"a": true, "area": true, "span": true, "em": true, "strong": true,
	"b": true, "i": true, "img": true, "button": true, "label": true,
}

// Attributes that point a trigger at the overlay it opens.
var toggleAttrs = []string{"data-target", "data-bs-target", "aria-controls", "data-modal-target", "data-open"}

var dismissClasses = []string{"close", "btn-close", "modal-close"}

func computeStyle(n *html.Node) page.Style {
	style := page.Style{
		Display:    ownDisplay(n),
		Visibility: "visible",
		Opacity:    1,
	}
	for p := n; p != nil && p.Type == html.ElementNode; p = p.Parent {
		if v, ok := inlineStyle(p)["visibility"]; ok {
			style.Visibility = v
			break
		}
	}
	if v, ok := inlineStyle(n)["opacity"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			style.Opacity = f
		}
	}
	return style
}

func ownDisplay(n *html.Node) string {
	if unrenderedTags[n.Data] {
		return "none"
	}
	if v, ok := inlineStyle(n)["display"]; ok {
		return v
	}
	if _, hidden := attr(n, "hidden"); hidden {
		return "none"
	}
	if n.Data == "dialog" {
		if _, open := attr(n, "open"); !open {
			return "none"
		}
	}
	if inlineTags[n.Data] {
		return "inline"
	}
	return "block"
}

// computeBox returns a nominal box, zero-sized when the element or any
// ancestor is not rendered or the element is sized to zero inline.
func computeBox(n *html.Node) page.Box {
	for p := n; p != nil && p.Type == html.ElementNode; p = p.Parent {
		if ownDisplay(p) == "none" {
			return page.Box{}
		}
	}
	box := page.Box{Width: nominalWidth, Height: nominalHeight}
	styles := inlineStyle(n)
	if isZeroLength(styles["width"]) {
		box.Width = 0
	}
	if isZeroLength(styles["height"]) {
		box.Height = 0
	}
	return box
}

func isZeroLength(v string) bool {
	if v == "" {
		return false
	}
	v = strings.TrimRight(v, "pxemrvwh%")
	f, err := strconv.ParseFloat(v, 64)
	return err == nil && f == 0
}

// inlineStyle parses the style attribute into lowercased declarations.
func inlineStyle(n *html.Node) map[string]string {
	raw, ok := attr(n, "style")
	if !ok || raw == "" {
		return map[string]string{}
	}
	decls := make(map[string]string)
	for _, decl := range strings.Split(raw, ";") {
		key, value, found := strings.Cut(decl, ":")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "!important"))
		if key != "" {
			decls[key] = strings.ToLower(value)
		}
	}
	return decls
}

func setStyleProperty(n *html.Node, key, value string) {
	decls := inlineStyle(n)
	decls[key] = value
	keys := make([]string, 0, len(decls))
	for k := range decls {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+decls[k])
	}
	setAttr(n, "style", strings.Join(parts, "; "))
}

func toggleTarget(n *html.Node) string {
	for _, key := range toggleAttrs {
		if v, ok := attr(n, key); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func isDismissControl(n *html.Node) bool {
	for _, key := range []string{"data-dismiss", "data-bs-dismiss", "data-close"} {
		if _, ok := attr(n, key); ok {
			return true
		}
	}
	if strings.EqualFold(attrValue(n, "aria-label"), "close") {
		return true
	}
	classes := strings.Fields(attrValue(n, "class"))
	for _, c := range dismissClasses {
		if slices.Contains(classes, c) {
			return true
		}
	}
	return false
}

func isOverlay(n *html.Node) bool {
	if n.Data == "dialog" {
		return true
	}
	switch attrValue(n, "role") {
	case "dialog", "alertdialog":
		return true
	}
	if attrValue(n, "aria-modal") == "true" {
		return true
	}
	return slices.Contains(strings.Fields(attrValue(n, "class")), "modal")
}

func closestOverlay(n *html.Node) *html.Node {
	for p := n; p != nil && p.Type == html.ElementNode; p = p.Parent {
		if isOverlay(p) {
			return p
		}
	}
	return nil
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func attrValue(n *html.Node, key string) string {
	v, _ := attr(n, key)
	return v
}

func setAttr(n *html.Node, key, value string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: value})
}

func removeAttr(n *html.Node, key string) {
	n.Attr = slices.DeleteFunc(n.Attr, func(a html.Attribute) bool { return a.Key == key })
}

func addClass(n *html.Node, class string) {
	classes := strings.Fields(attrValue(n, "class"))
	if slices.Contains(classes, class) {
		return
	}
	setAttr(n, "class", strings.Join(append(classes, class), " "))
}

func removeClass(n *html.Node, class string) {
	v, ok := attr(n, "class")
	if !ok {
		return
	}
	classes := slices.DeleteFunc(strings.Fields(v), func(c string) bool { return c == class })
	setAttr(n, "class", strings.Join(classes, " "))
}
