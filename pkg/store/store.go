package store

import "github.com/VaibhavMttl21/ItemManager/pkg/domain"

// Store defines persistence operations for items.
//
// Insert serialization and identifier uniqueness are the store's job; the
// creation pipeline never coordinates concurrent submissions itself.
type Store interface {
	SaveItem(domain.Item) error
	// ListItems returns every item, newest first.
	ListItems() ([]domain.Item, error)
	GetItem(id string) (domain.Item, bool, error)
}
