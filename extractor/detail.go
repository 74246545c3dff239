// Package extractor turns rendered listing and website documents into
// business records. Parsing is pure: no network, no browser.
package extractor

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/leadscout/models"
)

// ParseDetail builds a record from a rendered detail page. Every field is
// extracted independently; failures are reported, never fatal.
func ParseDetail(rawHTML, sourceURL string) (models.BusinessRecord, Report) {
	rec := models.NewBusinessRecord(sourceURL)
	var rep Report

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		rep.Errors = append(rep.Errors, FieldError{Field: "document", Err: err})
		return rec, rep
	}

	rep.run("name", func() error {
		rec.Name = models.Known(text(doc, selName))
		return nil
	})

	rep.run("rating", func() error {
		label, ok := attr(doc, selRating, "aria-label")
		if !ok {
			return nil
		}
		fields := strings.Fields(label)
		if len(fields) == 0 {
			return nil
		}
		token := fields[0]
		if _, err := strconv.ParseFloat(strings.Replace(token, ",", ".", 1), 64); err != nil {
			return fmt.Errorf("non-numeric rating %q", token)
		}
		rec.Rating = models.Known(token)
		return nil
	})

	rep.run("reviews", func() error {
		s := doc.FindMatcher(selReviews).First()
		if s.Length() == 0 {
			return nil
		}
		rec.Reviews = models.Known(strings.NewReplacer("(", "", ")", "").Replace(s.Text()))
		return nil
	})

	rep.run("category", func() error {
		rec.Category = models.Known(text(doc, selCategory))
		return nil
	})

	rep.run("address", func() error {
		label, _ := attr(doc, selAddress, "aria-label")
		rec.Address = models.Known(strings.Replace(label, prefixAddress, "", 1))
		return nil
	})

	rep.run("phone", func() error {
		label, _ := attr(doc, selPhone, "aria-label")
		rec.Phone = models.Known(strings.Replace(label, prefixPhone, "", 1))
		return nil
	})

	rep.run("email", func() error {
		label, _ := attr(doc, selEmail, "aria-label")
		if v := strings.TrimSpace(strings.Replace(label, prefixEmail, "", 1)); strings.Contains(v, "@") {
			rec.Email = models.Known(v)
		}
		return nil
	})

	rep.run("website", func() error {
		href, ok := attr(doc, selWebsite, "href")
		if !ok || strings.TrimSpace(href) == "" {
			return nil
		}
		site, err := websiteTarget(href)
		if err != nil {
			return err
		}
		rec.Website = models.Known(site)
		return nil
	})

	rep.run("hours", func() error {
		label, _ := attr(doc, selHours, "aria-label")
		rec.Hours = models.Known(label)
		return nil
	})

	if !rec.Email.IsKnown() {
		rep.run("email_text", func() error {
			if addr, ok := firstEmail(FindEmails(VisibleText(rawHTML))); ok {
				rec.Email = models.Known(addr)
			}
			return nil
		})
	}

	rep.run("socials", func() error {
		for p, f := range MatchSocials(hrefs(doc)) {
			rec.SetSocial(p, f)
		}
		return nil
	})

	return rec, rep
}

// websiteTarget unwraps redirect links of the form /url?q=<target>.
func websiteTarget(href string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse website href: %w", err)
	}
	if u.Path == "/url" {
		if q := u.Query().Get("q"); q != "" {
			return q, nil
		}
	}
	return u.String(), nil
}

func text(doc *goquery.Document, sel cascadia.Selector) string {
	return strings.TrimSpace(doc.FindMatcher(sel).First().Text())
}

func attr(doc *goquery.Document, sel cascadia.Selector, name string) (string, bool) {
	return doc.FindMatcher(sel).First().Attr(name)
}
