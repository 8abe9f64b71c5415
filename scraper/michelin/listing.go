package michelin

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"michelin-scraper/config"
	"michelin-scraper/models"
	"michelin-scraper/utils"
)

// ErrMalformedCard marks a listing card without a name or link. Such cards
// are skipped, never fatal.
var ErrMalformedCard = errors.New("malformed restaurant card")

const maxStars = 3

// ListingExtractor turns a rendered listing page into summary records.
type ListingExtractor struct {
	sel    config.ListingSelectors
	logger *utils.Logger
}

// NewListingExtractor creates a ListingExtractor using the given selectors.
func NewListingExtractor(sel config.ListingSelectors, logger *utils.Logger) *ListingExtractor {
	return &ListingExtractor{sel: sel, logger: logger}
}

// Extract returns one record per well-formed card on the page, in page
// order. A page without cards yields an empty slice.
func (e *ListingExtractor) Extract(doc *goquery.Document) []models.SummaryRecord {
	cards := doc.Find(e.sel.Card)
	if cards.Length() == 0 && e.sel.CardFallback != "" {
		cards = doc.Find(e.sel.CardFallback)
	}

	records := make([]models.SummaryRecord, 0, cards.Length())
	cards.Each(func(i int, card *goquery.Selection) {
		rec, err := e.extractCard(doc, card)
		if err != nil {
			e.logger.Warn("[listing] Skipping card %d: %v", i+1, err)
			return
		}
		records = append(records, rec)
	})
	return records
}

func (e *ListingExtractor) extractCard(doc *goquery.Document, card *goquery.Selection) (models.SummaryRecord, error) {
	name, ok := firstText(card, e.sel.Name).Get()
	if !ok {
		return models.SummaryRecord{}, fmt.Errorf("%w: no name", ErrMalformedCard)
	}

	link := card.Find(e.sel.Link).First()
	if link.Length() == 0 && card.Is(e.sel.Link) {
		link = card
	}
	href := resolveURL(doc.Url, link.AttrOr("href", ""))
	if href == "" {
		return models.SummaryRecord{}, fmt.Errorf("%w: no link for %q", ErrMalformedCard, name)
	}

	stars, distinction := e.awards(card)

	rec := models.SummaryRecord{
		Name:        name,
		URL:         href,
		Stars:       stars,
		Distinction: distinction,
		Location:    models.NotAvailable,
		Price:       models.NotAvailable,
		Cuisine:     models.NotAvailable,
	}

	scores := card.Find(e.sel.Score)
	if scores.Length() > 0 {
		rec.Location = models.OrNA(models.TextField(normaliseText(scores.Eq(0).Text())))
	}
	if scores.Length() > 1 {
		rec.Price, rec.Cuisine = e.splitBlob(name, normaliseText(scores.Eq(1).Text()))
	}
	return rec, nil
}

// awards counts the star glyphs in the card's distinction block and maps
// them, or a Bib Gourmand glyph, to a distinction.
func (e *ListingExtractor) awards(card *goquery.Selection) (int, models.Distinction) {
	stars := 0
	bib := false
	card.Find(e.sel.Distinction).Find(e.sel.AwardImage).Each(func(_ int, img *goquery.Selection) {
		src := img.AttrOr("src", img.AttrOr("data-src", ""))
		switch {
		case e.sel.StarGlyph != "" && strings.Contains(src, e.sel.StarGlyph):
			stars++
		case e.sel.BibGlyph != "" && strings.Contains(src, e.sel.BibGlyph):
			bib = true
		}
	})

	if stars > maxStars {
		e.logger.Warn("[listing] Card shows %d star glyphs, capping at %d", stars, maxStars)
		stars = maxStars
	}
	if bib {
		return stars, models.DistinctionBibGourmand
	}
	return stars, models.StarDistinction(stars)
}

// splitBlob splits the "price · cuisine" footer positionally. Ambiguous
// shapes are logged rather than silently assigned.
func (e *ListingExtractor) splitBlob(name, blob string) (price, cuisine string) {
	var parts []string
	for _, p := range strings.Split(blob, e.sel.BlobDelimiter) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}

	switch len(parts) {
	case 0:
		return models.NotAvailable, models.NotAvailable
	case 1:
		if containsAny(parts[0], e.sel.CurrencySigns) {
			e.logger.Debug("[listing] %q: footer %q has no delimiter, read as price", name, blob)
			return parts[0], models.NotAvailable
		}
		e.logger.Debug("[listing] %q: footer %q has no delimiter, read as cuisine", name, blob)
		return models.NotAvailable, parts[0]
	case 2:
		return parts[0], parts[1]
	default:
		e.logger.Warn("[listing] %q: footer %q has %d parts, keeping extras in cuisine", name, blob, len(parts))
		return parts[0], strings.Join(parts[1:], " "+e.sel.BlobDelimiter+" ")
	}
}
