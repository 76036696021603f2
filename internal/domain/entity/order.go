package entity

import (
	"time"
)

type OrderStatus string

const (
	OrderPending              OrderStatus = "pending"
	OrderVerification         OrderStatus = "verification"
	OrderSupplierConfirmation OrderStatus = "supplier_confirmation"
	OrderReceived             OrderStatus = "received"
	OrderTesting              OrderStatus = "testing"
	OrderPreparing            OrderStatus = "preparing"
	OrderPacked               OrderStatus = "packed"
	OrderOutForDelivery       OrderStatus = "out_for_delivery"
	OrderDelivered            OrderStatus = "delivered"
)

// OrderPipeline lists every status in fulfillment order.
var OrderPipeline = []OrderStatus{
	OrderPending,
	OrderVerification,
	OrderSupplierConfirmation,
	OrderReceived,
	OrderTesting,
	OrderPreparing,
	OrderPacked,
	OrderOutForDelivery,
	OrderDelivered,
}

var orderStatusLabels = map[OrderStatus]string{
	OrderPending:              "Pending",
	OrderVerification:         "Verification",
	OrderSupplierConfirmation: "Supplier Confirmation",
	OrderReceived:             "Received",
	OrderTesting:              "Testing",
	OrderPreparing:            "Preparing",
	OrderPacked:               "Packed",
	OrderOutForDelivery:       "Out for Delivery",
	OrderDelivered:            "Delivered",
}

const OrderSubmittedNote = "Bulk order request submitted"

// Index returns the position of s in OrderPipeline, or -1 for unknown values.
func (s OrderStatus) Index() int {
	for i, status := range OrderPipeline {
		if status == s {
			return i
		}
	}
	return -1
}

func (s OrderStatus) Valid() bool {
	return s.Index() >= 0
}

func (s OrderStatus) Label() string {
	if label, ok := orderStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderDelivered
}

// IsForwardOf reports whether s comes strictly after from in the pipeline.
func (s OrderStatus) IsForwardOf(from OrderStatus) bool {
	return s.Valid() && from.Valid() && s.Index() > from.Index()
}

type OrderLog struct {
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Note      string      `json:"note"`
}

// Order is a bulk order request tracked through the fulfillment pipeline.
type Order struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`

	ProductType    string `json:"product_type"`
	Quantity       int    `json:"quantity"`
	Budget         string `json:"budget,omitempty"`
	Purpose        string `json:"purpose,omitempty"`
	Specifications string `json:"specifications,omitempty"`
	Deadline       string `json:"deadline,omitempty"`

	Status OrderStatus `json:"status"`
	Paid   bool        `json:"paid"`
	Logs   []OrderLog  `json:"logs"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (o *Order) LastLog() *OrderLog {
	if len(o.Logs) == 0 {
		return nil
	}
	return &o.Logs[len(o.Logs)-1]
}
