package remote

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/packfinderz-shopper/pkg/errors"
)

// UncategorizedCategory replaces a missing or null product category.
const UncategorizedCategory = "uncategorized"

const productsPath = "products"

var validate = validator.New()

// ProductDTO is one element of the GET /products payload.
type ProductDTO struct {
	ID            string          `json:"id" validate:"required"`
	Name          string          `json:"name" validate:"required"`
	Description   string          `json:"description"`
	ImageURL      string          `json:"imageUrl"`
	Price         decimal.Decimal `json:"price"`
	Category      *string         `json:"category"`
	IncludesDrink *bool           `json:"includesDrink"`
	CreatedAt     string          `json:"createdAt,omitempty"`
	UpdatedAt     string          `json:"updatedAt,omitempty"`
}

// CategoryOrDefault returns the category, falling back to UncategorizedCategory.
func (p ProductDTO) CategoryOrDefault() string {
	if p.Category == nil || strings.TrimSpace(*p.Category) == "" {
		return UncategorizedCategory
	}
	return *p.Category
}

// HasDrink reports includesDrink, treating an absent flag as false.
func (p ProductDTO) HasDrink() bool {
	return p.IncludesDrink != nil && *p.IncludesDrink
}

// FetchAll downloads the authoritative catalog. Transport failures surface as
// NetworkError and malformed payloads as DecodeError; nothing is retried here.
func (c *Client) FetchAll(ctx context.Context) ([]ProductDTO, error) {
	var products []ProductDTO
	if err := c.do(ctx, http.MethodGet, productsPath, nil, &products); err != nil {
		return nil, err
	}
	for i, product := range products {
		if err := validate.Struct(product); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDecode, err, fmt.Sprintf("invalid product at index %d", i)).
				WithDetails(map[string]any{"index": i, "id": product.ID})
		}
		if product.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeDecode, fmt.Sprintf("negative price for product %q", product.ID)).
				WithDetails(map[string]any{"index": i, "id": product.ID})
		}
	}
	if products == nil {
		products = []ProductDTO{}
	}
	return products, nil
}
