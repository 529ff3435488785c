package models

import "time"

// FarmerContact is the read-only projection of the owning farmer attached to
// a product at query time.
type FarmerContact struct {
	Username string  `json:"username"`
	Phone    *string `json:"phone"`
	Location *string `json:"location"`
}

// Product is a marketplace listing.
type Product struct {
	ID                string         `json:"id"`
	FarmerID          string         `json:"farmer_id"`
	Name              string         `json:"name"`
	Category          string         `json:"category"`
	PricePerKg        float64        `json:"price_per_kg"`
	QuantityAvailable float64        `json:"quantity_available"`
	Description       *string        `json:"description"`
	ImageURL          *string        `json:"image_url"`
	CreatedAt         time.Time      `json:"created_at"`
	Farmer            *FarmerContact `json:"farmer,omitempty"`
}

func (p *Product) FarmerName() string {
	if p.Farmer == nil {
		return ""
	}
	return p.Farmer.Username
}

func (p *Product) FarmerPhone() string {
	if p.Farmer == nil || p.Farmer.Phone == nil {
		return ""
	}
	return *p.Farmer.Phone
}

func (p *Product) FarmerLocation() string {
	if p.Farmer == nil || p.Farmer.Location == nil {
		return ""
	}
	return *p.Farmer.Location
}

// ProductDraft is the payload of a new listing. ID doubles as the
// idempotency key of the create call; it is generated when empty.
type ProductDraft struct {
	ID                string  `json:"id" validate:"omitempty,uuid"`
	Name              string  `json:"name" validate:"required,max=100"`
	Category          string  `json:"category" validate:"required,max=50"`
	PricePerKg        float64 `json:"price_per_kg" validate:"gt=0"`
	QuantityAvailable float64 `json:"quantity_available" validate:"gt=0"`
	Description       *string `json:"description,omitempty"`
	ImageURL          *string `json:"image_url,omitempty"`
}

// ProductPatch lists the fields to change; nil fields are left alone.
type ProductPatch struct {
	Name              *string  `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Category          *string  `json:"category,omitempty" validate:"omitempty,min=1,max=50"`
	PricePerKg        *float64 `json:"price_per_kg,omitempty" validate:"omitempty,gt=0"`
	QuantityAvailable *float64 `json:"quantity_available,omitempty" validate:"omitempty,gt=0"`
	Description       *string  `json:"description,omitempty"`
	ImageURL          *string  `json:"image_url,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ProductPatch) Empty() bool {
	return p.Name == nil && p.Category == nil && p.PricePerKg == nil &&
		p.QuantityAvailable == nil && p.Description == nil && p.ImageURL == nil
}

// Filter is the client-only view filter over the product collection.
type Filter struct {
	Category string
}

// FilterPatch is merged into the current Filter; nil fields are kept.
type FilterPatch struct {
	Category *string
}

// FetchParams are the optional server-side filters of a collection fetch.
type FetchParams struct {
	Category string
	FarmerID string
}

// MarketPrice is one observation on the market price board.
type MarketPrice struct {
	ID             string    `json:"id"`
	CropName       string    `json:"crop_name"`
	MarketLocation string    `json:"market_location"`
	Price          float64   `json:"price"`
	DateRecorded   time.Time `json:"date_recorded"`
}
