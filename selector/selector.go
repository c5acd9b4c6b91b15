// Package selector synthesizes durable CSS locators for link elements.
//
// A Synthesizer runs an ordered chain of strategies. Each strategy is a pure
// function that either produces a selector or declines; a strategy that
// panics or produces something cascadia cannot compile is treated as having
// declined, so synthesis always ends with at least the tag name.
package selector

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/andybalholm/cascadia"

	"github.com/lukemcguire/linkscout/page"
	"github.com/lukemcguire/linkscout/urlutil"
)

// MaxTextLength bounds the text used in a contains predicate, in runes.
const MaxTextLength = 30

// Strategy returns a selector for el, or false to defer to the next one.
type Strategy func(el page.Element) (string, bool)

// Synthesizer produces selectors from a chain of strategies.
type Synthesizer struct {
	chain []Strategy
}

// DefaultChain returns the strategies in priority order: id, parent-scoped
// text, href segment, classes, tag.
func DefaultChain() []Strategy {
	return []Strategy{ByID, ByParentText, ByHrefSegment, ByClass, ByTag}
}

// New returns a Synthesizer for the given chain, or DefaultChain if empty.
func New(chain ...Strategy) *Synthesizer {
	if len(chain) == 0 {
		chain = DefaultChain()
	}
	return &Synthesizer{chain: chain}
}

// Synthesize returns the first selector produced by the chain. It never
// fails; the final fallback is the element's tag name.
func (s *Synthesizer) Synthesize(el page.Element) string {
	for _, strategy := range s.chain {
		if sel, ok := try(strategy, el); ok {
			return sel
		}
	}
	if el.Tag != "" {
		return strings.ToLower(el.Tag)
	}
	return "*"
}

func try(strategy Strategy, el page.Element) (sel string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			sel, ok = "", false
		}
	}()
	sel, ok = strategy(el)
	if !ok || sel == "" {
		return "", false
	}
	if _, err := cascadia.Compile(sel); err != nil {
		return "", false
	}
	return sel, true
}

// ByID selects the element by its id.
func ByID(el page.Element) (string, bool) {
	id := el.ID()
	if id == "" {
		return "", false
	}
	return "#" + EscapeIdent(id), true
}

// ByParentText scopes a contains-text predicate under the parent's id or
// first class.
func ByParentText(el page.Element) (string, bool) {
	text := TruncateText(el.Text, MaxTextLength)
	if text == "" {
		return "", false
	}
	parent, ok := el.Parent()
	if !ok {
		return "", false
	}
	var qualifier string
	switch {
	case strings.TrimSpace(parent.ID) != "":
		qualifier = "#" + EscapeIdent(strings.TrimSpace(parent.ID))
	case parent.FirstClass() != "":
		qualifier = "." + EscapeIdent(parent.FirstClass())
	default:
		return "", false
	}
	return fmt.Sprintf(`%s %s:contains("%s")`, qualifier, tagOf(el), EscapeString(text)), true
}

// ByHrefSegment matches on the last path segment of the href.
func ByHrefSegment(el page.Element) (string, bool) {
	segment := urlutil.LastPathSegment(el.AttrValue("href"))
	if segment == "" {
		return "", false
	}
	return fmt.Sprintf(`%s[href*="%s"]`, tagOf(el), EscapeString(segment)), true
}

// ByClass combines the tag with every class token.
func ByClass(el page.Element) (string, bool) {
	classes := strings.Fields(el.AttrValue("class"))
	if len(classes) == 0 {
		return "", false
	}
	var b strings.Builder
	b.WriteString(tagOf(el))
	for _, c := range classes {
		b.WriteByte('.')
		b.WriteString(EscapeIdent(c))
	}
	return b.String(), true
}

// ByTag is the last resort.
func ByTag(el page.Element) (string, bool) {
	if el.Tag == "" {
		return "", false
	}
	return tagOf(el), true
}

func tagOf(el page.Element) string {
	if el.Tag == "" {
		return "*"
	}
	return strings.ToLower(el.Tag)
}

// TruncateText collapses whitespace and cuts s to at most n runes.
func TruncateText(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n]))
}

// EscapeString escapes s for use inside a double-quoted CSS string.
func EscapeString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\a `, "\r", "", "\f", "")
	return r.Replace(s)
}

// EscapeIdent escapes s as a CSS identifier.
func EscapeIdent(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == 0:
			b.WriteRune('�')
		case r >= 0x80, r == '_', r == '-' && !(i == 0 && len(s) == 1),
			r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 || (i == 1 && s[0] == '-') {
				fmt.Fprintf(&b, `\%x `, r)
			} else {
				b.WriteRune(r)
			}
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\%x `, r)
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}
