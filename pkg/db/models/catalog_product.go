package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CatalogProductsTable is the local mirror of the remote catalog.
const CatalogProductsTable = "catalog_products"

// CatalogProduct is one cached product row. Position keeps the upstream order.
type CatalogProduct struct {
	ID            string          `gorm:"column:id;primaryKey"`
	Position      int             `gorm:"column:position;not null"`
	Name          string          `gorm:"column:name;not null"`
	Description   string          `gorm:"column:description;not null;default:''"`
	Price         decimal.Decimal `gorm:"column:price;type:text;not null"`
	ImageURL      string          `gorm:"column:image_url;not null;default:''"`
	Category      string          `gorm:"column:category;not null"`
	IncludesDrink bool            `gorm:"column:includes_drink;not null;default:false"`
	SyncedAt      time.Time       `gorm:"column:synced_at;not null"`
}

func (CatalogProduct) TableName() string { return CatalogProductsTable }
