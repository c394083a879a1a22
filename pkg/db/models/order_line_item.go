package models

import "github.com/shopspring/decimal"

// OrderLineItem is a value copy of a cart item at confirmation time.
type OrderLineItem struct {
	OrderID       string          `gorm:"column:order_id;primaryKey"`
	Position      int             `gorm:"column:position;primaryKey;autoIncrement:false"`
	ProductID     string          `gorm:"column:product_id;not null"`
	Name          string          `gorm:"column:name;not null"`
	Description   string          `gorm:"column:description;not null;default:''"`
	ImageURL      string          `gorm:"column:image_url;not null;default:''"`
	Price         decimal.Decimal `gorm:"column:price;type:text;not null"`
	Category      string          `gorm:"column:category;not null"`
	IncludesDrink bool            `gorm:"column:includes_drink;not null;default:false"`
	Quantity      int             `gorm:"column:quantity;not null"`
}

func (OrderLineItem) TableName() string { return "order_line_items" }
