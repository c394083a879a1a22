package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packfinderz-shopper/internal/cart"
	"github.com/angelmondragon/packfinderz-shopper/internal/catalog"
	"github.com/angelmondragon/packfinderz-shopper/internal/remote"
	"github.com/angelmondragon/packfinderz-shopper/pkg/db/models"
)

// SubmissionStatus tracks delivery of an order to the remote service.
type SubmissionStatus string

const (
	// SubmissionLocal marks orders kept only on this device.
	SubmissionLocal      SubmissionStatus = "local"
	SubmissionPending    SubmissionStatus = "pending"
	// SubmissionSubmitting marks an order claimed by one sender.
	SubmissionSubmitting SubmissionStatus = "submitting"
	SubmissionSubmitted  SubmissionStatus = "submitted"
	SubmissionFailed     SubmissionStatus = "failed"
)

// Submission is remote delivery bookkeeping. It never affects the order's
// items, total or date.
type Submission struct {
	Status      SubmissionStatus
	Attempts    int
	LastError   string
	RemoteID    string
	SubmittedAt *time.Time
}

// Order is a confirmed cart snapshot. Items are value copies, so later
// catalog changes never alter history.
type Order struct {
	ID         string
	Items      []cart.Item
	Total      decimal.Decimal
	PlacedAt   time.Time
	Submission Submission
}

func cloneOrders(orders []Order) []Order {
	out := make([]Order, len(orders))
	for i, order := range orders {
		order.Items = append([]cart.Item(nil), order.Items...)
		out[i] = order
	}
	return out
}

func toModel(order Order) models.Order {
	row := models.Order{
		ID:                 order.ID,
		Total:              order.Total,
		PlacedAt:           order.PlacedAt,
		SubmissionStatus:   string(order.Submission.Status),
		SubmissionAttempts: order.Submission.Attempts,
		SubmittedAt:        order.Submission.SubmittedAt,
		Items:              make([]models.OrderLineItem, 0, len(order.Items)),
	}
	if order.Submission.LastError != "" {
		msg := order.Submission.LastError
		row.LastSubmissionError = &msg
	}
	if order.Submission.RemoteID != "" {
		id := order.Submission.RemoteID
		row.RemoteID = &id
	}
	for i, item := range order.Items {
		row.Items = append(row.Items, models.OrderLineItem{
			OrderID:       order.ID,
			Position:      i,
			ProductID:     item.Product.ID,
			Name:          item.Product.Name,
			Description:   item.Product.Description,
			ImageURL:      item.Product.ImageURL,
			Price:         item.Product.Price,
			Category:      item.Product.Category,
			IncludesDrink: item.Product.IncludesDrink,
			Quantity:      item.Quantity,
		})
	}
	return row
}

func fromModel(row models.Order) Order {
	order := Order{
		ID:       row.ID,
		Total:    row.Total,
		PlacedAt: row.PlacedAt,
		Items:    make([]cart.Item, 0, len(row.Items)),
		Submission: Submission{
			Status:      SubmissionStatus(row.SubmissionStatus),
			Attempts:    row.SubmissionAttempts,
			SubmittedAt: row.SubmittedAt,
		},
	}
	if row.LastSubmissionError != nil {
		order.Submission.LastError = *row.LastSubmissionError
	}
	if row.RemoteID != nil {
		order.Submission.RemoteID = *row.RemoteID
	}
	for _, line := range row.Items {
		order.Items = append(order.Items, cart.Item{
			Product: catalog.Product{
				ID:            line.ProductID,
				Name:          line.Name,
				Description:   line.Description,
				Price:         line.Price,
				ImageURL:      line.ImageURL,
				Category:      line.Category,
				IncludesDrink: line.IncludesDrink,
			},
			Quantity: line.Quantity,
		})
	}
	return order
}

// payload renders the POST /orders body.
func payload(order Order) remote.OrderPayload {
	items := make([]remote.OrderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, remote.OrderItemPayload{
			Name:          item.Product.Name,
			Description:   item.Product.Description,
			ImageURL:      item.Product.ImageURL,
			Price:         json.Number(item.Product.Price.String()),
			IncludesDrink: item.Product.IncludesDrink,
			Quantity:      item.Quantity,
		})
	}
	return remote.OrderPayload{
		OrderID:   order.ID,
		Items:     items,
		Total:     json.Number(order.Total.String()),
		Timestamp: order.PlacedAt,
	}
}
