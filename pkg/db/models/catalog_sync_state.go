package models

import "time"

// CatalogSyncStateKey identifies the single catalog sync row.
const CatalogSyncStateKey = "catalog"

// CatalogSyncState records when the mirror was last replaced.
type CatalogSyncState struct {
	Key          string    `gorm:"column:sync_key;primaryKey"`
	LastSyncedAt time.Time `gorm:"column:last_synced_at;not null"`
	ProductCount int       `gorm:"column:product_count;not null"`
}

func (CatalogSyncState) TableName() string { return "catalog_sync_state" }
