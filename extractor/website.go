package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/leadscout/models"
)

// Contacts are the fields a business website can contribute to a record.
type Contacts struct {
	Email   models.Field
	Socials map[models.Platform]models.Field
}

// ParseWebsite extracts an email address and social profiles from a
// business's own site. Visible-text addresses come before mailto: links.
func ParseWebsite(rawHTML string) (Contacts, Report) {
	c := Contacts{Socials: MatchSocials(nil)}
	var rep Report

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		rep.Errors = append(rep.Errors, FieldError{Field: "document", Err: err})
		return c, rep
	}
	links := hrefs(doc)

	rep.run("email", func() error {
		candidates := FindEmails(VisibleText(rawHTML))
		for _, href := range links {
			if addr, ok := mailtoAddress(href); ok {
				candidates = append(candidates, addr)
			}
		}
		if addr, ok := firstEmail(candidates); ok {
			c.Email = models.Known(addr)
		}
		return nil
	})

	rep.run("socials", func() error {
		c.Socials = MatchSocials(links)
		return nil
	})

	return c, rep
}

// NeedsEnrichment reports whether a website visit could fill gaps in rec.
func NeedsEnrichment(rec models.BusinessRecord) bool {
	if !rec.Website.IsKnown() {
		return false
	}
	return !rec.Email.IsKnown() || rec.MissingSocial()
}

// Merge fills unknown fields of rec from c. Known fields are never
// overwritten. rec itself is not modified.
func Merge(rec models.BusinessRecord, c Contacts) models.BusinessRecord {
	out := rec.Clone()
	out.Email = out.Email.Or(c.Email)
	for _, p := range models.Platforms {
		out.SetSocial(p, out.Social(p).Or(c.Socials[p]))
	}
	return out
}
