package client

import (
	"context"
	"time"
)

type ID int64

// Client description. Fields aligned for the GC optimal scanning.
type Client struct {
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	Username  string    `db:"username" json:"username"`
	Password  string    `db:"password" json:"-"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	ID        ID        `db:"id" json:"id"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	IsStaff   bool      `db:"is_staff" json:"is_staff"`
}

// DisplayName returns "<last name> <first name>".
func (c *Client) DisplayName() string {
	return DisplayName(c.LastName, c.FirstName)
}

// DisplayName joins last and first name the way clients are shown in reports.
// Empty parts are kept, so the separating space is always there.
func DisplayName(lastName, firstName string) string {
	return lastName + " " + firstName
}

// key is an unexported type for keys defined in this package.
// This prevents collisions with keys defined in other packages.
type key int

// clientKey is the key for client.Client values in Contexts. It is
// unexported; clients use client.NewContext and client.FromContext
// instead of using this key directly.
var clientKey key

// NewContext returns a new Context that carries value c.
func NewContext(ctx context.Context, c *Client) context.Context {
	return context.WithValue(ctx, clientKey, c)
}

// FromContext returns the Client value stored in ctx, if any.
func FromContext(ctx context.Context) (*Client, bool) {
	c, ok := ctx.Value(clientKey).(*Client)
	return c, ok
}
