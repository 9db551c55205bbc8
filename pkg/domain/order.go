package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// PaymentStatus is the outcome reported by the payment processor.
type PaymentStatus string

const (
	PaymentSuccess   PaymentStatus = "success"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// PaymentInfo describes how an order was paid.
type PaymentInfo struct {
	Method    string        `json:"method"`
	Reference string        `json:"reference,omitempty"`
	Status    PaymentStatus `json:"status,omitempty"`
}

// OrderItem is a purchased line, priced at order time.
type OrderItem struct {
	Product  ProductRef      `json:"product"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Order is a placed order.
type Order struct {
	ID          string          `json:"_id"`
	User        string          `json:"user"`
	Items       []OrderItem     `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Status      OrderStatus     `json:"status"`
	PaymentInfo *PaymentInfo    `json:"paymentInfo,omitempty"`
	IsDigital   bool            `json:"isDigital"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (o *Order) Validate() error {
	if strings.TrimSpace(o.ID) == "" {
		return invalidf("order id is empty")
	}
	if !o.Status.Valid() {
		return invalidf("order %s has unknown status %q", o.ID, o.Status)
	}
	for _, item := range o.Items {
		if item.Quantity < 1 {
			return invalidf("order %s has item %s with quantity %d", o.ID, item.Product.ID, item.Quantity)
		}
	}
	return nil
}

// ItemCount sums the quantities of the order lines.
func (o *Order) ItemCount() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}
