package domain

import "time"

type ItemType string

const (
	TypeShirt       ItemType = "Shirt"
	TypePant        ItemType = "Pant"
	TypeShoes       ItemType = "Shoes"
	TypeSportsGear  ItemType = "Sports Gear"
	TypeAccessories ItemType = "Accessories"
	TypeElectronics ItemType = "Electronics"
	TypeBooks       ItemType = "Books"
	TypeHomeGarden  ItemType = "Home & Garden"
	TypeOther       ItemType = "Other"
)

// ItemTypes lists every accepted category label, in display order.
var ItemTypes = []ItemType{
	TypeShirt,
	TypePant,
	TypeShoes,
	TypeSportsGear,
	TypeAccessories,
	TypeElectronics,
	TypeBooks,
	TypeHomeGarden,
	TypeOther,
}

// ParseItemType matches a submitted label against the accepted set.
func ParseItemType(raw string) (ItemType, bool) {
	for _, t := range ItemTypes {
		if string(t) == raw {
			return t, true
		}
	}
	return "", false
}

type Item struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        ItemType  `json:"type"`
	Description string    `json:"description"`
	CoverImage  string    `json:"coverImage"`
	Images      []string  `json:"images"`
	CreatedAt   time.Time `json:"createdAt"`
}
