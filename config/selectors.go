package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// MaxNearbyRestaurants caps how many nearby restaurant names a detail
// record keeps.
const MaxNearbyRestaurants = 9

// Selectors holds the CSS selectors and text heuristics the extractors use.
// The site's markup changes more often than the code, so every value can be
// overridden from a YAML file.
type Selectors struct {
	Listing ListingSelectors `yaml:"listing"`
	Detail  DetailSelectors  `yaml:"detail"`
}

// ListingSelectors locate the restaurant cards on a listing page and the
// fields inside each card.
type ListingSelectors struct {
	Ready        string `yaml:"ready"`
	Card         string `yaml:"card"`
	CardFallback string `yaml:"card_fallback"`
	Name         string `yaml:"name"`
	Link         string `yaml:"link"`
	Distinction  string `yaml:"distinction"`
	AwardImage   string `yaml:"award_image"`
	StarGlyph    string `yaml:"star_glyph"`
	BibGlyph     string `yaml:"bib_glyph"`
	Score        string `yaml:"score"`

	// BlobDelimiter splits the "price · cuisine" footer line. The split is
	// positional, which is a heuristic rather than a contract.
	BlobDelimiter string `yaml:"blob_delimiter"`
	// CurrencySigns lets a single undelimited footer part be recognised as
	// a price instead of a cuisine.
	CurrencySigns string `yaml:"currency_signs"`
}

// DetailSelectors locate the fields of a restaurant page.
type DetailSelectors struct {
	Ready           string   `yaml:"ready"`
	Address         string   `yaml:"address"`
	AddressFallback string   `yaml:"address_fallback"`
	Phone           string   `yaml:"phone"`
	Description     string   `yaml:"description"`
	DescFallback    string   `yaml:"description_fallback"`
	HoursCard       string   `yaml:"hours_card"`
	HoursDay        string   `yaml:"hours_day"`
	HoursContent    string   `yaml:"hours_content"`
	HoursText       string   `yaml:"hours_text"`
	PriceRange      string   `yaml:"price_range"`
	HeadingItem     string   `yaml:"heading_item"`
	CurrencySigns   string   `yaml:"currency_signs"`
	Cuisine         string   `yaml:"cuisine"`
	Website         string   `yaml:"website"`
	Services        string   `yaml:"services"`
	ServiceItem     string   `yaml:"service_item"`
	ServiceLabels   []string `yaml:"service_labels"`
	NearbySection   string   `yaml:"nearby_section"`
	NearbyCard      string   `yaml:"nearby_card"`
	NearbyName      string   `yaml:"nearby_name"`
	NearbyLimit     int      `yaml:"nearby_limit"`
}

// DefaultSelectors returns the selectors matching the Michelin Guide markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Listing: ListingSelectors{
			Ready:         "div[class*='card__menu'], a[data-track*='restaurant']",
			Card:          "div.card__menu",
			CardFallback:  "a[data-track*='restaurant']",
			Name:          "h3.card__menu-content--title, h3[class*='title']",
			Link:          "a[href*='/restaurant']",
			Distinction:   "div.card__menu-content--distinction",
			AwardImage:    "img.michelin-award",
			StarGlyph:     "1star.svg",
			BibGlyph:      "bib-gourmand.svg",
			Score:         "div.card__menu-footer--score",
			BlobDelimiter: "·",
			CurrencySigns: "฿$€£¥",
		},
		Detail: DetailSelectors{
			Ready:           "h1, div.restaurant-details",
			Address:         "div.restaurant-details__heading--address",
			AddressFallback: "li.restaurant-details__heading--list-item a[href*='maps']",
			Phone:           "a[href^='tel:'], a[data-event='CTA_tel']",
			Description:     "div.restaurant-details__description--text, div.data-sheet__description",
			DescFallback:    "div.restaurant-details__description",
			HoursCard:       "div.card-borderline",
			HoursDay:        "div.card--title",
			HoursContent:    "div.card--content",
			HoursText:       "div.restaurant-details__hours, div.opening-hours",
			PriceRange:      "div.restaurant-details__heading--price",
			HeadingItem:     "li.restaurant-details__heading--list-item",
			CurrencySigns:   "฿$€£",
			Cuisine:         "div.data-sheet__block--content span, div.restaurant-details__cuisine",
			Website:         "a[href^='http']:not([href*='michelin']):not([href*='maps']):not([href*='tel:'])",
			Services:        "div.restaurant-details__services",
			ServiceItem:     "li, div.service-item",
			ServiceLabels: []string{
				"OPENING HOURS", "Opening hours", "FACILITIES & SERVICES", "Facilities & Services",
			},
			NearbySection: "section.section-nearby-restaurants, div.nearby-restaurants",
			NearbyCard:    "div.card__menu, a.card__menu",
			NearbyName:    "h3, .card__menu-title",
			NearbyLimit:   MaxNearbyRestaurants,
		},
	}
}

// LoadSelectors overlays the YAML file at path on DefaultSelectors. An empty
// path returns the defaults. Keys absent from the file keep their default.
func LoadSelectors(path string) (Selectors, error) {
	sel := DefaultSelectors()
	if path == "" {
		return sel, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return sel, fmt.Errorf("config: read selectors %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &sel); err != nil {
		return sel, fmt.Errorf("config: parse selectors %q: %w", path, err)
	}
	defaults := DefaultSelectors()
	if sel.Detail.NearbyLimit <= 0 || sel.Detail.NearbyLimit > MaxNearbyRestaurants {
		sel.Detail.NearbyLimit = defaults.Detail.NearbyLimit
	}
	if sel.Listing.BlobDelimiter == "" {
		sel.Listing.BlobDelimiter = defaults.Listing.BlobDelimiter
	}
	return sel, nil
}
