package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const ordersPath = "orders"

// OrderItemPayload is one line of the POST /orders body.
type OrderItemPayload struct {
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	ImageURL      string      `json:"imageUrl"`
	Price         json.Number `json:"price"`
	IncludesDrink bool        `json:"includesDrink"`
	Quantity      int         `json:"quantity"`
}

// OrderPayload is the POST /orders body.
type OrderPayload struct {
	OrderID   string             `json:"orderId"`
	Items     []OrderItemPayload `json:"items"`
	Total     json.Number        `json:"total"`
	Timestamp time.Time          `json:"timestamp"`
}

// OrderReceipt is the created order resource echoed by the service.
type OrderReceipt struct {
	ID string `json:"id"`
}

// SubmitOrder posts a locally confirmed order to the remote service.
func (c *Client) SubmitOrder(ctx context.Context, payload OrderPayload) (*OrderReceipt, error) {
	var receipt OrderReceipt
	if err := c.do(ctx, http.MethodPost, ordersPath, payload, &receipt); err != nil {
		return nil, err
	}
	if receipt.ID == "" {
		receipt.ID = payload.OrderID
	}
	return &receipt, nil
}
