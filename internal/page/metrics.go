package page

// RGB is a color triple in 0-255 channels.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// ElementStyle holds the computed colors for one sampled element.
type ElementStyle struct {
	// Selector identifies the sampled element.
	Selector string `json:"selector"`
	// Color is the foreground color, nil when transparent or unresolvable.
	Color *RGB `json:"color,omitempty"`
	// Background is the effective background color.
	Background *RGB `json:"background,omitempty"`
}

// Carousel describes one carousel-like widget found on the page.
type Carousel struct {
	Selector        string `json:"selector"`
	SlideCount      int    `json:"slideCount"`
	HasPauseControl bool   `json:"hasPauseControl"`
	Autoplay        bool   `json:"autoplay"`
}

// CoverageCount is the raw input to a coverage-ratio check.
type CoverageCount struct {
	// Matching is the number of elements satisfying the predicate.
	Matching int `json:"matching"`
	// Total is the number of elements the predicate applies to.
	Total int `json:"total"`
}

// Coverage metric names produced by the extraction script.
const (
	CoverageImageAlt     = "image_alt"
	CoverageLinkStyle    = "link_decoration"
	CoverageExternalMark = "external_link_marked"
	CoverageNavLabel     = "nav_label"
)

// Metrics is the structural/visual snapshot a deterministic check runs
// against. It is extracted once per page and read-only afterwards.
type Metrics struct {
	// URL is the page the metrics were extracted from.
	URL string `json:"url"`
	// ViewportHeight is the layout viewport height in CSS pixels.
	ViewportHeight float64 `json:"viewportHeight"`
	// HeroHeight is the height of the first hero-like element, 0 when none.
	HeroHeight float64 `json:"heroHeight"`
	// HeroSelector identifies the hero element when found.
	HeroSelector string `json:"heroSelector,omitempty"`
	// Styles samples computed colors for text-bearing elements.
	Styles []ElementStyle `json:"styles"`
	// Carousels lists carousel-like widgets (at most a handful).
	Carousels []Carousel `json:"carousels"`
	// Coverage maps metric names to element counts.
	Coverage map[string]CoverageCount `json:"coverage"`
}
