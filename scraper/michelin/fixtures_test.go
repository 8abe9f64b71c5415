package michelin

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const baseListingURL = "https://guide.michelin.com/th/en/selection/thailand/restaurants"

func mustDoc(t *testing.T, html, pageURL string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	u, err := url.Parse(pageURL)
	require.NoError(t, err)
	doc.Url = u
	return doc
}

// card renders one listing card. award "bib" adds a Bib Gourmand glyph.
func card(name, slug string, stars int, award, location, blob string) string {
	var b strings.Builder
	b.WriteString(`<div class="card__menu"><div class="card__menu-content--distinction">`)
	for i := 0; i < stars; i++ {
		b.WriteString(`<img class="michelin-award" src="https://guide.michelin.com/assets/images/icons/1star.svg">`)
	}
	if award == "bib" {
		b.WriteString(`<img class="michelin-award" src="https://guide.michelin.com/assets/images/icons/bib-gourmand.svg">`)
	}
	b.WriteString(`</div>`)
	if name != "" {
		b.WriteString(`<h3 class="card__menu-content--title">`)
		if slug != "" {
			fmt.Fprintf(&b, `<a href="/th/en/bangkok-region/bangkok/restaurant/%s">%s</a>`, slug, name)
		} else {
			b.WriteString(name)
		}
		b.WriteString(`</h3>`)
	}
	if location != "" {
		fmt.Fprintf(&b, `<div class="card__menu-footer--score">%s</div>`, location)
	}
	if blob != "" {
		fmt.Fprintf(&b, `<div class="card__menu-footer--score">%s</div>`, blob)
	}
	b.WriteString(`</div>`)
	return b.String()
}

func listingPage(cards ...string) string {
	return `<html><body><main><div class="row">` + strings.Join(cards, "\n") + `</div></main></body></html>`
}

const emptyListingPage = `<html><body><main><p>No results</p></main></body></html>`

const detailPage = `<html><body>
<h1 class="restaurant-details__heading--title">Sorn</h1>
<ul class="restaurant-details__heading--list">
  <li class="restaurant-details__heading--list-item"><a href="https://maps.google.com/?q=sorn">56 Sukhumvit 26, Khlong Toei, Bangkok, 10110</a></li>
  <li class="restaurant-details__heading--list-item">฿฿฿฿ · Southern Thai</li>
</ul>
<div class="restaurant-details__heading--address">56 Sukhumvit 26, Khlong Toei, Bangkok, 10110</div>
<div class="restaurant-details__heading--price">฿฿฿฿</div>
<section class="restaurant-details__components">
  <div class="data-sheet__description">
    Southern Thai cooking of
    rare depth.
  </div>
  <div class="data-sheet__block--content"><span>Southern Thai</span></div>
  <a href="tel:+66 99 081 1119" data-event="CTA_tel">+66 99 081 1119</a>
  <a href="https://www.sornfinesouthern.com/">Visit website</a>
</section>
<div class="restaurant-details__services">
  <div class="title">Facilities &amp; Services</div>
  <ul><li>Air conditioning</li><li>Credit cards accepted</li><li>Facilities &amp; Services</li></ul>
</div>
<div class="opening-hours">
  <div class="card-borderline"><div class="card--title">Monday</div><div class="card--content">closed</div></div>
  <div class="card-borderline"><div class="card--title">Tuesday</div><div class="card--content">17:30-23:00</div></div>
  <div class="card-borderline"><div class="card--title">Wednesday</div><div class="card--content">17:30-23:00</div></div>
</div>
<section class="section-nearby-restaurants">%s</section>
</body></html>`

func nearbyCards(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, `<div class="card__menu"><h3><a href="https://guide.michelin.com/th/en/restaurant/near-%d">Nearby %d</a></h3></div>`, i, i)
	}
	return b.String()
}

// fakeFetcher serves canned HTML by URL and records the requests it got.
type fakeFetcher struct {
	pages    map[string]string
	errs     map[string]error
	requests []string
	closed   bool
}

func (f *fakeFetcher) Fetch(_ context.Context, pageURL, _ string) (*goquery.Document, error) {
	f.requests = append(f.requests, pageURL)
	if err, ok := f.errs[pageURL]; ok {
		return nil, err
	}
	html, ok := f.pages[pageURL]
	if !ok {
		html = emptyListingPage
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	doc.Url, _ = url.Parse(pageURL)
	return doc, nil
}

func (f *fakeFetcher) Close() error {
	f.closed = true
	return nil
}
