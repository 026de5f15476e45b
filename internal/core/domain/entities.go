package domain

import (
	"time"
)

// Category classifies a directory listing.
type Category string

const (
	CategoryRestaurant  Category = "restaurant"
	CategoryPolleria    Category = "polleria"
	CategoryCevicheria  Category = "cevicheria"
	CategoryLaundry     Category = "laundry"
	CategoryHotel       Category = "hotel"
	CategoryDentist     Category = "dentist"
	CategoryBakery      Category = "bakery"
	CategoryTouristSpot Category = "tourist_spot"
)

// Categories lists every known category in display order.
var Categories = []Category{
	CategoryRestaurant, CategoryPolleria, CategoryCevicheria, CategoryLaundry,
	CategoryHotel, CategoryDentist, CategoryBakery, CategoryTouristSpot,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// AdLevel is the sponsorship tier of a listing.
type AdLevel string

const (
	AdLevelNone     AdLevel = "none"
	AdLevelEstandar AdLevel = "estandar"
	AdLevelPremium  AdLevel = "premium"
)

// Rank orders ad levels for sorting; higher is more prominent.
func (a AdLevel) Rank() int {
	switch a {
	case AdLevelPremium:
		return 2
	case AdLevelEstandar:
		return 1
	default:
		return 0
	}
}

// Valid reports whether a is a known ad level.
func (a AdLevel) Valid() bool {
	return a == AdLevelNone || a == AdLevelEstandar || a == AdLevelPremium
}

// Status is the moderation state of a listing.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Business is a directory listing (restaurant, hotel, tourist spot...).
// It is the point of interest rendered as a marker on the city map.
type Business struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Category    Category          `json:"category"`
	Description string            `json:"description"`
	Address     string            `json:"address"`
	Location    GeoPoint          `json:"location"`
	Phone       string            `json:"phone,omitempty"`
	WhatsApp    string            `json:"whatsapp,omitempty"`
	Photos      []string          `json:"photos"`
	Schedule    map[string]string `json:"schedule,omitempty"`
	AdLevel     AdLevel           `json:"ad_level"`
	AdStartDate *time.Time        `json:"ad_start_date,omitempty"`
	AdEndDate   *time.Time        `json:"ad_end_date,omitempty"`
	QRCodeURL   string            `json:"qr_code_url,omitempty"`
	Status      Status            `json:"status"`
	OwnerUserID string            `json:"owner_user_id,omitempty"`
	MapsQuery   string            `json:"google_maps_query,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Sponsored reports whether the listing currently pays for prominence.
func (b *Business) Sponsored() bool {
	return b.AdLevel == AdLevelPremium || b.AdLevel == AdLevelEstandar
}

// BusinessFilter narrows a directory listing query.
type BusinessFilter struct {
	Category Category
	Query    string
	Status   Status // empty means any status
}

// Coupon is a discount offered by a business.
type Coupon struct {
	ID          string    `json:"id"`
	BusinessID  string    `json:"business_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Code        string    `json:"code"`
	ExpiryDate  time.Time `json:"expiry_date"`
}

// Expired reports whether the coupon is past its expiry date at now.
func (c *Coupon) Expired(now time.Time) bool {
	return !c.ExpiryDate.IsZero() && now.After(c.ExpiryDate)
}

// Sponsorship is an ad campaign applied to a business.
type Sponsorship struct {
	BusinessID string     `json:"business_id"`
	Level      AdLevel    `json:"level"`
	StartDate  *time.Time `json:"start_date,omitempty"`
	EndDate    *time.Time `json:"end_date,omitempty"`
}

// MarkerMoved is published when a business location is changed from the map editor.
type MarkerMoved struct {
	BusinessID string    `json:"business_id"`
	Location   GeoPoint  `json:"location"`
	SessionID  string    `json:"session_id,omitempty"`
	Time       time.Time `json:"time"`
}

// ChatReply is the assistant's answer to a visitor prompt.
type ChatReply struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Model    string `json:"model"`
}
