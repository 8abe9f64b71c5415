package models

import "time"

// Checkpoint records how far the detail stage got, so an interrupted run can
// pick up where it stopped instead of re-scraping everything.
// NextIndex counts from the start of the window, not of the listing.
type Checkpoint struct {
	RunID      string    `json:"run_id"`
	Source     string    `json:"source"`
	StartIndex int       `json:"start_index"`
	Total      int       `json:"total"`
	NextIndex  int       `json:"next_index"`
	Completed  bool      `json:"completed"`
	Failed     []string  `json:"failed,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ListingReport holds the aggregate view of a listing-stage result.
type ListingReport struct {
	TotalRestaurants int
	Starred          int
	ByStars          map[int]int
	BibGourmand      int
	TopLocations     []LocationCount
}

// LocationCount is one row of the per-location breakdown.
type LocationCount struct {
	Location string
	Count    int
}

// DetailReport measures how complete the detail-stage records are.
type DetailReport struct {
	Total           int
	WithPhone       int
	WithAddress     int
	WithDescription int
	WithWebsite     int
}
