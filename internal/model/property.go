package model

const (
	ListingTypeSale = "sale"
	ListingTypeRent = "rent"
)

const (
	PropertyTypeHouse      = "house"
	PropertyTypeApartment  = "apartment"
	PropertyTypeVilla      = "villa"
	PropertyTypeLand       = "land"
	PropertyTypeCommercial = "commercial"
)

const (
	PropertyStatusActive  = "active"
	PropertyStatusSold    = "sold"
	PropertyStatusRented  = "rented"
	PropertyStatusDeleted = "deleted"
)

type Property struct {
	ID           string           `json:"id"`
	OwnerID      string           `json:"owner_id"`
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	ListingType  string           `json:"listing_type"`
	PropertyType string           `json:"property_type"`
	Price        int64            `json:"price"`
	Bedrooms     int              `json:"bedrooms"`
	Bathrooms    int              `json:"bathrooms"`
	AreaSqft     int              `json:"area_sqft"`
	Address      string           `json:"address"`
	City         string           `json:"city"`
	State        string           `json:"state"`
	Country      string           `json:"country"`
	PostalCode   string           `json:"postal_code"`
	Latitude     float64          `json:"latitude"`
	Longitude    float64          `json:"longitude"`
	Geocoded     int              `json:"geocoded"`
	Status       string           `json:"status"`
	Ctime        int64            `json:"ctime"`
	Mtime        int64            `json:"mtime"`
	Images       []*PropertyImage `json:"images,omitempty"`
}

type PropertyImage struct {
	ID         string `json:"id"`
	PropertyID string `json:"property_id"`
	FileKey    string `json:"file_key"`
	URL        string `json:"url"`
	Sort       int    `json:"sort"`
	Ctime      int64  `json:"ctime"`
}

func IsListingType(v string) bool {
	return v == ListingTypeSale || v == ListingTypeRent
}

func IsPropertyType(v string) bool {
	switch v {
	case PropertyTypeHouse, PropertyTypeApartment, PropertyTypeVilla, PropertyTypeLand, PropertyTypeCommercial:
		return true
	}
	return false
}

// IsPropertyStatus reports whether v is a status an owner may set. Deleted is excluded.
func IsPropertyStatus(v string) bool {
	switch v {
	case PropertyStatusActive, PropertyStatusSold, PropertyStatusRented:
		return true
	}
	return false
}
