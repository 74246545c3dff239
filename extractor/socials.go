package extractor

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/leadscout/models"
)

// socialPatterns match a profile href per platform.
var socialPatterns = map[models.Platform]*regexp.Regexp{
	models.Facebook:  regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?facebook\.com/[a-zA-Z0-9.]+/?`),
	models.Instagram: regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?instagram\.com/[a-zA-Z0-9._]+/?`),
	models.LinkedIn:  regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?linkedin\.com/[a-zA-Z0-9._\-/]+/?`),
	models.Twitter:   regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?(?:twitter\.com|x\.com)/[a-zA-Z0-9._]+/?`),
	models.YouTube:   regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?youtube\.com/[a-zA-Z0-9._\-/]+/?`),
	models.TikTok:    regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?tiktok\.com/@[a-zA-Z0-9._]+/?`),
}

// hrefs returns every anchor href in document order.
func hrefs(doc *goquery.Document) []string {
	var out []string
	doc.FindMatcher(selAnchors).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && href != "" {
			out = append(out, href)
		}
	})
	return out
}

// MatchSocials returns the first href matching each platform. Platforms
// with no match are unknown.
func MatchSocials(links []string) map[models.Platform]models.Field {
	socials := make(map[models.Platform]models.Field, len(models.Platforms))
	for _, p := range models.Platforms {
		socials[p] = models.Unknown
		re := socialPatterns[p]
		for _, link := range links {
			if re.MatchString(link) {
				socials[p] = models.Known(link)
				break
			}
		}
	}
	return socials
}
