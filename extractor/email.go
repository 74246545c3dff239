package extractor

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	emailRe  = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	mailtoRe = regexp.MustCompile(`(?i)^mailto:([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)
)

// placeholderMarkers are substrings that identify template or no-reply
// addresses. Matched case-insensitively.
var placeholderMarkers = []string{
	"example.com",
	"test.com",
	"your.email",
	"email@",
	"noreply",
	"no-reply",
	"donotreply",
}

// imageSuffixes catch asset names that look like addresses, e.g. logo@2x.png.
var imageSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg"}

// IsPlaceholderEmail reports whether addr should be ignored.
func IsPlaceholderEmail(addr string) bool {
	lower := strings.ToLower(addr)
	for _, m := range placeholderMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	for _, s := range imageSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

// firstEmail returns the first usable address among candidates.
func firstEmail(candidates []string) (string, bool) {
	for _, c := range candidates {
		if !IsPlaceholderEmail(c) {
			return c, true
		}
	}
	return "", false
}

// FindEmails returns every email-shaped token in text, in order.
func FindEmails(text string) []string {
	return emailRe.FindAllString(text, -1)
}

// mailtoAddress extracts the address from a mailto: href.
func mailtoAddress(href string) (string, bool) {
	m := mailtoRe.FindStringSubmatch(strings.TrimSpace(href))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// VisibleText returns the text content of rawHTML with script, style and
// template bodies removed. Text nodes are joined by single spaces.
func VisibleText(rawHTML string) string {
	z := html.NewTokenizer(strings.NewReader(rawHTML))
	var (
		b    strings.Builder
		skip int
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.StartTagToken:
			if hidden(z) {
				skip++
			}
		case html.EndTagToken:
			if hidden(z) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			text := strings.TrimSpace(string(z.Text()))
			if text == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(text)
		}
	}
}

func hidden(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch atom.Lookup(name) {
	case atom.Script, atom.Style, atom.Noscript, atom.Template:
		return true
	}
	return false
}
