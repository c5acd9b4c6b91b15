package extract

// OverlayPatterns are the CSS selector lists the modal engine uses. They are
// configuration so new overlay conventions need no code change.
type OverlayPatterns struct {
	// Triggers match elements that likely open an overlay.
	Triggers []string `yaml:"triggers"`
	// Containers match an opened overlay.
	Containers []string `yaml:"containers"`
	// Close match dismiss controls inside an overlay, in the order tried.
	Close []string `yaml:"close"`
	// Blocking match accept/close buttons of banners that intercept clicks.
	Blocking []string `yaml:"blocking"`
	// Headings match an overlay's title inside the container.
	Headings []string `yaml:"headings"`
}

// DefaultOverlayPatterns returns the built-in overlay conventions.
func DefaultOverlayPatterns() OverlayPatterns {
	return OverlayPatterns{
		Triggers: []string{
			`[data-toggle="modal"]`,
			`[data-bs-toggle="modal"]`,
			`[aria-haspopup="dialog"]`,
			`[data-modal-target]`,
			`button[data-target]`,
			`button[data-bs-target]`,
			`[aria-controls][aria-expanded="false"]`,
		},
		Containers: []string{
			`dialog[open]`,
			`[role="dialog"]`,
			`[role="alertdialog"]`,
			`[aria-modal="true"]`,
			`.modal.show`,
			`.modal.open`,
			`.modal.is-open`,
			`.popover`,
		},
		Close: []string{
			`[data-dismiss="modal"]`,
			`[data-bs-dismiss="modal"]`,
			`[aria-label="Close"]`,
			`[aria-label="close"]`,
			`.btn-close`,
			`.modal-close`,
			`.close`,
		},
		Blocking: []string{
			`#onetrust-accept-btn-handler`,
			`[data-testid="consent-accept"]`,
			`.cookie-accept`,
			`.consent-accept-button`,
			`.accept-all`,
			`[data-consent="accept"]`,
		},
		Headings: []string{
			`.modal-title`,
			`h1`,
			`h2`,
			`h3`,
			`h4`,
			`[role="heading"]`,
		},
	}
}

// withDefaults fills empty lists from DefaultOverlayPatterns.
func (p OverlayPatterns) withDefaults() OverlayPatterns {
	def := DefaultOverlayPatterns()
	if len(p.Triggers) == 0 {
		p.Triggers = def.Triggers
	}
	if len(p.Containers) == 0 {
		p.Containers = def.Containers
	}
	if len(p.Close) == 0 {
		p.Close = def.Close
	}
	if p.Blocking == nil {
		p.Blocking = def.Blocking
	}
	if len(p.Headings) == 0 {
		p.Headings = def.Headings
	}
	return p
}
