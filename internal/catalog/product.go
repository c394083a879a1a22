package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packfinderz-shopper/internal/remote"
	"github.com/angelmondragon/packfinderz-shopper/pkg/db/models"
	"github.com/angelmondragon/packfinderz-shopper/pkg/stream"
)

// Product is a catalog entry as served to the shopper. Products are replaced
// wholesale on every sync and never edited in place.
type Product struct {
	ID            string
	Name          string
	Description   string
	Price         decimal.Decimal
	ImageURL      string
	Category      string
	IncludesDrink bool
}

// Equal compares every field, prices by numeric value.
func (p Product) Equal(other Product) bool {
	return p.ID == other.ID &&
		p.Name == other.Name &&
		p.Description == other.Description &&
		p.Price.Equal(other.Price) &&
		p.ImageURL == other.ImageURL &&
		p.Category == other.Category &&
		p.IncludesDrink == other.IncludesDrink
}

// FromDTO maps a remote product onto the domain shape.
func FromDTO(dto remote.ProductDTO) Product {
	return Product{
		ID:            dto.ID,
		Name:          dto.Name,
		Description:   dto.Description,
		Price:         dto.Price,
		ImageURL:      dto.ImageURL,
		Category:      dto.CategoryOrDefault(),
		IncludesDrink: dto.HasDrink(),
	}
}

func fromModel(row models.CatalogProduct) Product {
	return Product{
		ID:            row.ID,
		Name:          row.Name,
		Description:   row.Description,
		Price:         row.Price,
		ImageURL:      row.ImageURL,
		Category:      row.Category,
		IncludesDrink: row.IncludesDrink,
	}
}

func toModel(p Product, position int, syncedAt time.Time) models.CatalogProduct {
	return models.CatalogProduct{
		ID:            p.ID,
		Position:      position,
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price,
		ImageURL:      p.ImageURL,
		Category:      p.Category,
		IncludesDrink: p.IncludesDrink,
		SyncedAt:      syncedAt,
	}
}

func fromModels(rows []models.CatalogProduct) []Product {
	products := make([]Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, fromModel(row))
	}
	return products
}

func cloneProducts(products []Product) []Product {
	return stream.CopySlice(products)
}
