package models

import "time"

// Listing is the canonical, normalized property record produced from a raw
// willhaben advert summary. Numeric fields are pointers because the source may
// omit any attribute; nil means "not present".
type Listing struct {
	ID         string
	Price      *float64
	Rooms      *float64
	EstateSize *float64
	Location   string
	Heading    string
	URL        string
	ObservedAt time.Time
}

// Cursor is the single persisted "most recently seen listing" record. It only
// tracks listings that passed the price filter, so the cursor can never get
// pinned to a listing that would not have been surfaced.
type Cursor struct {
	ID         string    `json:"id"`
	Price      float64   `json:"price"`
	ObservedAt time.Time `json:"_lastUpdated"`
}

// FilterSpec holds the configured price and room-count bounds. A nil field
// means "no bound".
type FilterSpec struct {
	MinPrice *float64
	MaxPrice *float64
	MinRooms *float64
	MaxRooms *float64
}

// Merge overlays the set fields of other onto f and returns the result. Unset
// (nil) fields in other leave f's values in place.
func (f FilterSpec) Merge(other FilterSpec) FilterSpec {
	if other.MinPrice != nil {
		f.MinPrice = other.MinPrice
	}
	if other.MaxPrice != nil {
		f.MaxPrice = other.MaxPrice
	}
	if other.MinRooms != nil {
		f.MinRooms = other.MinRooms
	}
	if other.MaxRooms != nil {
		f.MaxRooms = other.MaxRooms
	}
	return f
}

// PriceInRange reports whether the price satisfies the active bounds. A nil
// price fails any set bound but passes when no bounds are configured.
func (f FilterSpec) PriceInRange(price *float64) bool {
	if price == nil {
		return f.MinPrice == nil && f.MaxPrice == nil
	}
	if f.MinPrice != nil && *price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && *price > *f.MaxPrice {
		return false
	}
	return true
}

// RoomsInRange reports whether the room count satisfies the active bounds,
// with the same nil semantics as PriceInRange.
func (f FilterSpec) RoomsInRange(rooms *float64) bool {
	if rooms == nil {
		return f.MinRooms == nil && f.MaxRooms == nil
	}
	if f.MinRooms != nil && *rooms < *f.MinRooms {
		return false
	}
	if f.MaxRooms != nil && *rooms > *f.MaxRooms {
		return false
	}
	return true
}
