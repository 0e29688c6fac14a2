package entity

import "time"

// Listing is owned by acquisition and immutable once stored; enrichment never
// writes to it.
type Listing struct {
	ID                string    `json:"id" db:"id"`
	Source            string    `json:"source" db:"source"`
	ExternalID        string    `json:"external_id" db:"external_id"`
	URL               *string   `json:"url,omitempty" db:"url"`
	Title             string    `json:"title" db:"title"`
	Description       *string   `json:"description,omitempty" db:"description"`
	Price             float64   `json:"price" db:"price"`
	Surface           *float64  `json:"surface,omitempty" db:"surface"`
	Lat               *float64  `json:"lat,omitempty" db:"lat"`
	Lon               *float64  `json:"lon,omitempty" db:"lon"`
	City              *string   `json:"city,omitempty" db:"city"`
	PostalCode        *string   `json:"postal_code,omitempty" db:"postal_code"`
	Address           *string   `json:"address,omitempty" db:"address"`
	PhotosCount       int       `json:"photos_count" db:"photos_count"`
	FloorLevel        *int      `json:"floor_level,omitempty" db:"floor_level"`
	AccessibilityTags []string  `json:"accessibility_tags" db:"-"`
	ScrapedAt         time.Time `json:"scraped_at" db:"scraped_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// HasLocation reports whether the listing carries usable coordinates.
func (l *Listing) HasLocation() bool {
	return l.Lat != nil && l.Lon != nil
}
