package web

import (
	"github.com/KretovDmitry/ordermart/internal/models/client"
	"github.com/KretovDmitry/ordermart/internal/models/order"
	"github.com/KretovDmitry/ordermart/internal/week"
	"github.com/KretovDmitry/ordermart/pkg/paginator"
)

// Layout is shared by every page.
type Layout struct {
	// Viewer is nil for anonymous requests.
	Viewer     *client.Client
	ActivePage string
}

// IndexPage is the weekly statistics page.
type IndexPage struct {
	Layout
	Week    week.Week
	Summary week.Summary
	Orders  []*order.Order
	Page    paginator.Page
}

// MyOrdersPage is the staff order management page.
type MyOrdersPage struct {
	Layout
	Orders    []*order.Order
	Customers []*client.Client
	Page      paginator.Page
}

// LoginPage is the staff sign in form.
type LoginPage struct {
	Layout
	Username string
	Error    string
}
