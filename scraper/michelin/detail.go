package michelin

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"michelin-scraper/config"
	"michelin-scraper/models"
	"michelin-scraper/utils"
)

// DetailExtractor reads a rendered restaurant page. Each field is extracted
// independently; a missing element only affects its own field.
type DetailExtractor struct {
	sel    config.DetailSelectors
	logger *utils.Logger
}

// NewDetailExtractor creates a DetailExtractor using the given selectors.
func NewDetailExtractor(sel config.DetailSelectors, logger *utils.Logger) *DetailExtractor {
	return &DetailExtractor{sel: sel, logger: logger}
}

// Extract merges the page's fields into a copy of summary.
func (e *DetailExtractor) Extract(doc *goquery.Document, summary models.SummaryRecord) models.DetailRecord {
	root := doc.Selection

	rec := models.NewDetailRecord(summary)
	rec.Address = models.OrNA(e.address(root))
	rec.Phone = models.OrNA(e.phone(root))
	rec.Description = models.OrNA(e.description(root))
	rec.OpeningHours = e.openingHours(root).Or(nil)
	rec.PriceRange = models.OrNA(e.priceRange(root))
	rec.CuisineType = models.OrNA(firstText(root, e.sel.Cuisine))
	rec.Website = models.OrNA(e.website(root))
	rec.Facilities = e.facilities(root).Or(nil)
	rec.NearbyRestaurants = e.nearby(root).Or(nil)

	if missing := missingFields(rec); len(missing) > 0 {
		e.logger.Debug("[detail] %s: no %s on page", summary.Name, strings.Join(missing, ", "))
	}
	return rec
}

func (e *DetailExtractor) address(root *goquery.Selection) models.Field[string] {
	if f := firstText(root, e.sel.Address); f.Ok() {
		return f
	}
	return firstText(root, e.sel.AddressFallback)
}

func (e *DetailExtractor) phone(root *goquery.Selection) models.Field[string] {
	link := root.Find(e.sel.Phone).First()
	if link.Length() == 0 {
		return models.Missing[string]()
	}
	if text := normaliseText(link.Text()); text != "" {
		return models.Found(text)
	}
	return models.TextField(strings.TrimPrefix(link.AttrOr("href", ""), "tel:"))
}

func (e *DetailExtractor) description(root *goquery.Selection) models.Field[string] {
	if f := firstText(root, e.sel.Description); f.Ok() {
		return f
	}
	return firstText(root, e.sel.DescFallback)
}

// openingHours prefers the per-day cards. When the page only has a free
// text block, that text is kept whole under the "text" key.
func (e *DetailExtractor) openingHours(root *goquery.Selection) models.Field[models.OpeningHours] {
	var hours models.OpeningHours
	root.Find(e.sel.HoursCard).Each(func(_ int, card *goquery.Selection) {
		day, dayOK := firstText(card, e.sel.HoursDay).Get()
		slot, slotOK := firstText(card, e.sel.HoursContent).Get()
		if dayOK && slotOK {
			hours = append(hours, models.DayHours{Day: day, Hours: slot})
		}
	})
	if len(hours) > 0 {
		return models.Found(hours)
	}

	if text, ok := firstText(root, e.sel.HoursText).Get(); ok {
		return models.Found(models.UnstructuredHours(text))
	}
	return models.Missing[models.OpeningHours]()
}

func (e *DetailExtractor) priceRange(root *goquery.Selection) models.Field[string] {
	if f := firstText(root, e.sel.PriceRange); f.Ok() {
		return f
	}
	item := root.Find(e.sel.HeadingItem).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return containsAny(s.Text(), e.sel.CurrencySigns)
	}).First()
	if item.Length() == 0 {
		return models.Missing[string]()
	}
	return models.TextField(normaliseText(item.Text()))
}

func (e *DetailExtractor) website(root *goquery.Selection) models.Field[string] {
	if e.sel.Website == "" {
		return models.Missing[string]()
	}
	href, ok := root.Find(e.sel.Website).First().Attr("href")
	if !ok {
		return models.Missing[string]()
	}
	return models.TextField(strings.TrimSpace(href))
}

func (e *DetailExtractor) facilities(root *goquery.Selection) models.Field[models.NameList] {
	skip := make(map[string]struct{}, len(e.sel.ServiceLabels))
	for _, l := range e.sel.ServiceLabels {
		skip[l] = struct{}{}
	}

	var out models.NameList
	root.Find(e.sel.Services).Find(e.sel.ServiceItem).Each(func(_ int, s *goquery.Selection) {
		text := normaliseText(s.Text())
		if text == "" {
			return
		}
		if _, label := skip[text]; label {
			return
		}
		skip[text] = struct{}{}
		out = append(out, text)
	})
	if len(out) == 0 {
		return models.Missing[models.NameList]()
	}
	return models.Found(out)
}

// nearby collects up to NearbyLimit restaurant names; further cards are ignored.
func (e *DetailExtractor) nearby(root *goquery.Selection) models.Field[models.NameList] {
	limit := e.sel.NearbyLimit
	if limit <= 0 || limit > config.MaxNearbyRestaurants {
		limit = config.MaxNearbyRestaurants
	}

	var out models.NameList
	section := root.Find(e.sel.NearbySection).First()
	section.Find(e.sel.NearbyCard).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if name, ok := firstText(card, e.sel.NearbyName).Get(); ok {
			out = append(out, name)
		}
		return len(out) < limit
	})
	if len(out) == 0 {
		return models.Missing[models.NameList]()
	}
	return models.Found(out)
}

func missingFields(rec models.DetailRecord) []string {
	var missing []string
	check := func(name, v string) {
		if v == models.NotAvailable {
			missing = append(missing, name)
		}
	}
	check("address", rec.Address)
	check("phone", rec.Phone)
	check("description", rec.Description)
	check("price_range", rec.PriceRange)
	check("cuisine_type", rec.CuisineType)
	check("website", rec.Website)
	if len(rec.OpeningHours) == 0 {
		missing = append(missing, "opening_hours")
	}
	if len(rec.NearbyRestaurants) == 0 {
		missing = append(missing, "nearby_restaurants")
	}
	return missing
}
