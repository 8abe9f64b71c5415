package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Distinction is the Michelin award shown on a listing card. The zero value
// means the restaurant has no distinction; it serializes as JSON null.
type Distinction string

const (
	DistinctionNone        Distinction = ""
	DistinctionBibGourmand Distinction = "Bib Gourmand"
	DistinctionOneStar     Distinction = "1 star"
	DistinctionTwoStar     Distinction = "2 star"
	DistinctionThreeStar   Distinction = "3 star"
)

// StarDistinction maps a star count to its distinction. Counts outside 1..3
// yield DistinctionNone.
func StarDistinction(stars int) Distinction {
	switch stars {
	case 1:
		return DistinctionOneStar
	case 2:
		return DistinctionTwoStar
	case 3:
		return DistinctionThreeStar
	default:
		return DistinctionNone
	}
}

// ParseDistinction reads a distinction back from persisted text. Blank,
// "None" and "N/A" all mean no distinction.
func ParseDistinction(s string) Distinction {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "none", "null", strings.ToLower(NotAvailable):
		return DistinctionNone
	case "bib gourmand":
		return DistinctionBibGourmand
	}
	if n, err := strconv.Atoi(strings.TrimSuffix(strings.ToLower(s), " star")); err == nil {
		return StarDistinction(n)
	}
	return Distinction(s)
}

// IsNone reports whether the restaurant has no distinction.
func (d Distinction) IsNone() bool {
	return d == DistinctionNone
}

func (d Distinction) MarshalJSON() ([]byte, error) {
	if d.IsNone() {
		return []byte("null"), nil
	}
	return json.Marshal(string(d))
}

func (d *Distinction) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*d = DistinctionNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("distinction: %w", err)
	}
	*d = ParseDistinction(s)
	return nil
}

// SummaryRecord is one restaurant as shown on a listing page. URL is the
// identity key across both stages.
type SummaryRecord struct {
	Name        string      `json:"name"`
	URL         string      `json:"url"`
	Stars       int         `json:"stars"`
	Distinction Distinction `json:"distinction"`
	Location    string      `json:"location"`
	Price       string      `json:"price"`
	Cuisine     string      `json:"cuisine"`
}

var summaryHeader = []string{"name", "url", "stars", "distinction", "location", "price", "cuisine"}

// Header returns the tabular column names in output order.
func (SummaryRecord) Header() []string {
	return append([]string(nil), summaryHeader...)
}

// Row flattens the record for tabular output, in Header order.
func (r SummaryRecord) Row() []string {
	return []string{
		r.Name,
		r.URL,
		strconv.Itoa(r.Stars),
		string(r.Distinction),
		r.Location,
		r.Price,
		r.Cuisine,
	}
}

// DetailRecord is a SummaryRecord enriched from the restaurant's own page.
// Every field is always populated, with "N/A" standing in for anything the
// page did not provide.
type DetailRecord struct {
	SummaryRecord

	Address           string       `json:"address"`
	Phone             string       `json:"phone"`
	Description       string       `json:"description"`
	OpeningHours      OpeningHours `json:"opening_hours"`
	PriceRange        string       `json:"price_range"`
	CuisineType       string       `json:"cuisine_type"`
	Website           string       `json:"website"`
	Facilities        NameList     `json:"facilities"`
	NearbyRestaurants NameList     `json:"nearby_restaurants"`
}

var detailHeader = []string{
	"address", "phone", "description", "opening_hours", "price_range",
	"cuisine_type", "website", "facilities", "nearby_restaurants",
}

func (DetailRecord) Header() []string {
	return append(SummaryRecord{}.Header(), detailHeader...)
}

// Row flattens the record. Opening hours and nearby restaurants are written
// as JSON text, facilities joined with "; ".
func (r DetailRecord) Row() []string {
	facilities := NotAvailable
	if len(r.Facilities) > 0 {
		facilities = strings.Join(r.Facilities, "; ")
	}
	return append(r.SummaryRecord.Row(),
		r.Address,
		r.Phone,
		r.Description,
		r.OpeningHours.String(),
		r.PriceRange,
		r.CuisineType,
		r.Website,
		facilities,
		r.NearbyRestaurants.String(),
	)
}

// NewDetailRecord returns a detail record for summary with every detail field
// set to "N/A".
func NewDetailRecord(summary SummaryRecord) DetailRecord {
	return DetailRecord{
		SummaryRecord: summary,
		Address:       NotAvailable,
		Phone:         NotAvailable,
		Description:   NotAvailable,
		PriceRange:    NotAvailable,
		CuisineType:   NotAvailable,
		Website:       NotAvailable,
	}
}
