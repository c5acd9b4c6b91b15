package extract

import (
	"strings"

	"github.com/lukemcguire/linkscout/page"
)

// Location labels recorded on candidates.
const (
	LocationNavigation = "Navigation"
	LocationHeader     = "Header"
	LocationFooter     = "Footer"
	LocationSidebar    = "Sidebar"
	LocationContent    = "Content"

	modalLabelPrefix = "Modal: "
	genericModalName = "Dialog"
)

// Classify labels a link by its nearest structural ancestor.
func Classify(el page.Element) string {
	for _, a := range el.Ancestors {
		tag := strings.ToLower(a.Tag)
		role := strings.ToLower(strings.TrimSpace(a.Role))
		switch {
		case tag == "nav" || role == "navigation":
			return LocationNavigation
		case tag == "header" || role == "banner":
			return LocationHeader
		case tag == "footer" || role == "contentinfo":
			return LocationFooter
		case tag == "aside" || role == "complementary":
			return LocationSidebar
		}
	}
	return LocationContent
}

// ModalLabel returns the location label for links inside an overlay.
func ModalLabel(title string) string {
	if title == "" {
		title = genericModalName
	}
	return modalLabelPrefix + title
}
