package extractor

import "github.com/andybalholm/cascadia"

// Detail page selectors, compiled once.
var (
	selName     = cascadia.MustCompile(`h1`)
	selRating   = cascadia.MustCompile(`span[aria-label*="stars"]`)
	selReviews  = cascadia.MustCompile(`button[aria-label*="reviews"]`)
	selCategory = cascadia.MustCompile(`button[jsaction*="category"]`)
	selAddress  = cascadia.MustCompile(`button[data-item-id="address"]`)
	selPhone    = cascadia.MustCompile(`button[data-item-id*="phone"]`)
	selEmail    = cascadia.MustCompile(`button[data-item-id*="email"]`)
	selWebsite  = cascadia.MustCompile(`a[data-item-id="authority"]`)
	selHours    = cascadia.MustCompile(`div[aria-label*="Hours"]`)
	selAnchors  = cascadia.MustCompile(`a[href]`)
)

// Label prefixes stripped from accessible labels.
const (
	prefixAddress = "Address: "
	prefixPhone   = "Phone: "
	prefixEmail   = "Email: "
)
