package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/leadscout/models"
)

const detailHTML = `<html><head><script>var x = "bot@tracker.io";</script></head><body>
<div role="main">
  <h1> Blue Door Bakery </h1>
  <span aria-label="4.6 stars "></span>
  <button aria-label="1,204 reviews">(1,204)</button>
  <button jsaction="pane.rating.category">Bakery</button>
  <button data-item-id="address" aria-label="Address: 12 Rue de la Paix, Paris"></button>
  <button data-item-id="phone:tel:+33123456789" aria-label="Phone: +33 1 23 45 67 89"></button>
  <a data-item-id="authority" href="/url?q=https://bluedoor.example.org/&amp;sa=U">bluedoor.example.org</a>
  <div aria-label="Monday, 7 AM to 6 PM; Hours might differ"></div>
  <a href="https://www.facebook.com/bluedoorbakery">fb</a>
  <a href="https://x.com/bluedoor">x</a>
  <a href="https://instagram.com/bluedoor_paris/">ig</a>
  <a href="https://www.facebook.com/second">fb2</a>
  <p>Contact: info@example.com or hello@bluedoor.fr</p>
</div></body></html>`

func TestParseDetail(t *testing.T) {
	rec, rep := ParseDetail(detailHTML, "https://maps/place/blue-door")
	require.True(t, rep.OK(), rep.Err())

	assert.Equal(t, "https://maps/place/blue-door", rec.SourceURL)
	assert.Equal(t, "Blue Door Bakery", rec.Name.String())
	assert.Equal(t, "4.6", rec.Rating.String())
	assert.Equal(t, "1,204", rec.Reviews.String())
	assert.Equal(t, "Bakery", rec.Category.String())
	assert.Equal(t, "12 Rue de la Paix, Paris", rec.Address.String())
	assert.Equal(t, "+33 1 23 45 67 89", rec.Phone.String())
	assert.Equal(t, "https://bluedoor.example.org/", rec.Website.String())
	assert.Equal(t, "Monday, 7 AM to 6 PM; Hours might differ", rec.Hours.String())
	assert.Equal(t, "hello@bluedoor.fr", rec.Email.String(), "placeholder skipped, script ignored")

	assert.Equal(t, "https://www.facebook.com/bluedoorbakery", rec.Social(models.Facebook).String())
	assert.Equal(t, "https://x.com/bluedoor", rec.Social(models.Twitter).String())
	assert.Equal(t, "https://instagram.com/bluedoor_paris/", rec.Social(models.Instagram).String())
	assert.False(t, rec.Social(models.LinkedIn).IsKnown())
	assert.False(t, rec.Social(models.YouTube).IsKnown())
	assert.False(t, rec.Social(models.TikTok).IsKnown())
}

func TestParseDetail_EmailControlWins(t *testing.T) {
	html := `<h1>Shop</h1>
<button data-item-id="email" aria-label="Email: owner@shop.de"></button>
<p>other@shop.de</p>`
	rec, _ := ParseDetail(html, "u")
	assert.Equal(t, "owner@shop.de", rec.Email.String())
}

func TestParseDetail_EmailControlWithoutAt(t *testing.T) {
	html := `<h1>Shop</h1><button data-item-id="email" aria-label="Email: not provided"></button>`
	rec, _ := ParseDetail(html, "u")
	assert.False(t, rec.Email.IsKnown())
}

func TestParseDetail_EmptyDocument(t *testing.T) {
	rec, rep := ParseDetail("", "u")
	assert.True(t, rep.OK())
	assert.False(t, rec.Retainable())
	assert.False(t, rec.Phone.IsKnown())
	assert.Len(t, rec.Socials, len(models.Platforms))
}

func TestParseDetail_BadRatingIsReported(t *testing.T) {
	html := `<h1>Shop</h1><span aria-label="five stars"></span><button data-item-id="address" aria-label="Address: 1 Main St"></button>`
	rec, rep := ParseDetail(html, "u")

	require.Len(t, rep.Errors, 1)
	assert.Equal(t, "rating", rep.Errors[0].Field)
	assert.False(t, rec.Rating.IsKnown())
	assert.Equal(t, "1 Main St", rec.Address.String(), "other fields still parsed")
	assert.Equal(t, "Shop", rec.Name.String())
}

func TestReport_RecoversPanic(t *testing.T) {
	var rep Report
	rep.run("boom", func() error { panic("bad node") })
	rep.run("fine", func() error { return nil })

	require.Len(t, rep.Errors, 1)
	assert.Equal(t, "boom", rep.Errors[0].Field)
	assert.ErrorContains(t, rep.Err(), "bad node")
}

func TestParseWebsite(t *testing.T) {
	html := `<html><body>
<style>.a{background:url(logo@2x.png)}</style>
<img alt="logo@2x.png">
<p>Write to noreply@site.com</p>
<a href="mailto:Sales@Bluedoor.fr?subject=Hi">mail</a>
<a href="https://www.linkedin.com/company/blue-door/">in</a>
<a href="https://www.youtube.com/c/bluedoor">yt</a>
<a href="https://www.tiktok.com/@bluedoor">tt</a>
</body></html>`

	c, rep := ParseWebsite(html)
	require.True(t, rep.OK())
	assert.Equal(t, "Sales@Bluedoor.fr", c.Email.String())
	assert.Equal(t, "https://www.linkedin.com/company/blue-door/", c.Socials[models.LinkedIn].String())
	assert.Equal(t, "https://www.youtube.com/c/bluedoor", c.Socials[models.YouTube].String())
	assert.Equal(t, "https://www.tiktok.com/@bluedoor", c.Socials[models.TikTok].String())
	assert.False(t, c.Socials[models.Facebook].IsKnown())
}

func TestIsPlaceholderEmail(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"john@example.com", true},
		{"a@TEST.com", true},
		{"your.email@domain.org", true},
		{"email@company.org", true},
		{"NoReply@shop.io", true},
		{"no-reply@shop.io", true},
		{"donotreply@shop.io", true},
		{"icon@2x.png", true},
		{"contact@shop.io", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsPlaceholderEmail(tt.addr), tt.addr)
	}
}

func TestVisibleText(t *testing.T) {
	got := VisibleText(`<p>a &amp; b</p><script>secret()</script><style>.x{}</style><div> c </div>`)
	assert.Equal(t, "a & b c", got)
}

func TestNeedsEnrichment(t *testing.T) {
	rec := models.NewBusinessRecord("u")
	assert.False(t, NeedsEnrichment(rec), "no website")

	rec.Website = models.Known("https://shop.io")
	assert.True(t, NeedsEnrichment(rec), "email unknown")

	rec.Email = models.Known("a@shop.io")
	assert.True(t, NeedsEnrichment(rec), "socials unknown")

	for _, p := range models.Platforms {
		rec.SetSocial(p, models.Known("https://"+string(p)+".com/shop"))
	}
	assert.False(t, NeedsEnrichment(rec))
}

func TestMerge_NeverOverwrites(t *testing.T) {
	rec := models.NewBusinessRecord("u")
	rec.Email = models.Known("owner@shop.io")
	rec.SetSocial(models.Facebook, models.Known("https://facebook.com/shop"))

	c := Contacts{
		Email: models.Known("other@shop.io"),
		Socials: map[models.Platform]models.Field{
			models.Facebook:  models.Known("https://facebook.com/imposter"),
			models.Instagram: models.Known("https://instagram.com/shop"),
		},
	}

	out := Merge(rec, c)
	assert.Equal(t, "owner@shop.io", out.Email.String())
	assert.Equal(t, "https://facebook.com/shop", out.Social(models.Facebook).String())
	assert.Equal(t, "https://instagram.com/shop", out.Social(models.Instagram).String())
	assert.False(t, out.Social(models.TikTok).IsKnown())

	assert.False(t, rec.Social(models.Instagram).IsKnown(), "input untouched")
}
