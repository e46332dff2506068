package order

import (
	"encoding/json"
	"time"

	"github.com/KretovDmitry/ordermart/internal/models/client"
	"github.com/shopspring/decimal"
)

type ID int64

// Sort selects the listing order of orders.
type Sort int

const (
	// ByDateDesc lists the newest orders first, ties broken by id.
	ByDateDesc Sort = iota
	// ByID lists orders in creation order.
	ByID
)

// Order is a single client purchase.
type Order struct {
	DateOrder time.Time
	Total     decimal.Decimal
	// ClientName is "<last name> <first name>" of the owner,
	// filled in by the repository for reports.
	ClientName string
	ID         ID
	ClientID   client.ID
}

// New returns an order for the client with the total rounded to cents.
func New(clientID client.ID, total decimal.Decimal, at time.Time) *Order {
	return &Order{
		ClientID:  clientID,
		DateOrder: at,
		Total:     total.Round(2),
	}
}

// Model name used in serialized records.
const Model = "orders.order"

type (
	serialized struct {
		Model  string `json:"model"`
		PK     ID     `json:"pk"`
		Fields fields `json:"fields"`
	}
	fields struct {
		ClientID  client.ID `json:"client_id"`
		DateOrder time.Time `json:"date_order"`
		Total     string    `json:"total"`
	}
)

// Serialize encodes orders as a JSON array of
// {"model", "pk", "fields": {"client_id", "date_order", "total"}} records.
// Totals are rendered with exactly two decimal places.
func Serialize(orders []*Order) (string, error) {
	records := make([]serialized, len(orders))
	for i, o := range orders {
		records[i] = serialized{
			Model: Model,
			PK:    o.ID,
			Fields: fields{
				ClientID:  o.ClientID,
				DateOrder: o.DateOrder,
				Total:     o.Total.StringFixed(2),
			},
		}
	}

	b, err := json.Marshal(records)
	if err != nil {
		return "", err
	}

	return string(b), nil
}
