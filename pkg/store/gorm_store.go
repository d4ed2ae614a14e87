package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/VaibhavMttl21/ItemManager/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&ItemModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveItem inserts one item row. Items are never updated after creation.
func (s *GormStore) SaveItem(item domain.Item) error {
	model, err := itemToModel(item)
	if err != nil {
		return err
	}
	return s.db.Create(&model).Error
}

// ListItems returns all items ordered by created_at descending.
func (s *GormStore) ListItems() ([]domain.Item, error) {
	var models []ItemModel
	if err := s.db.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Item, 0, len(models))
	for _, m := range models {
		res = append(res, itemFromModel(m))
	}
	return res, nil
}

// GetItem retrieves an item by ID.
func (s *GormStore) GetItem(id string) (domain.Item, bool, error) {
	var model ItemModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Item{}, false, nil
		}
		return domain.Item{}, false, err
	}
	return itemFromModel(model), true, nil
}

func itemToModel(item domain.Item) (ItemModel, error) {
	images := item.Images
	if images == nil {
		images = []string{}
	}
	raw, err := json.Marshal(images)
	if err != nil {
		return ItemModel{}, fmt.Errorf("marshal image urls: %w", err)
	}
	return ItemModel{
		ID:          item.ID,
		Name:        item.Name,
		Type:        string(item.Type),
		Description: item.Description,
		CoverImage:  item.CoverImage,
		Images:      raw,
		CreatedAt:   item.CreatedAt,
	}, nil
}

func itemFromModel(m ItemModel) domain.Item {
	images := []string{}
	if len(m.Images) > 0 {
		_ = json.Unmarshal(m.Images, &images)
	}
	return domain.Item{
		ID:          m.ID,
		Name:        m.Name,
		Type:        domain.ItemType(m.Type),
		Description: m.Description,
		CoverImage:  m.CoverImage,
		Images:      images,
		CreatedAt:   m.CreatedAt,
	}
}
