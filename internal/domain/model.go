package domain

// SchemaVersion is stamped on every payload this module produces and is the
// only version it accepts. Payloads without a version are read as version 1.
const SchemaVersion = 1

// OrderBroadcast is one decomposed order as published by the inventory service.
// It is read-only for the worker that receives it.
type OrderBroadcast struct {
	SchemaVersion int        `json:"schema_version,omitempty"`
	OrderID       string     `json:"order_id"`
	OrderType     string     `json:"order_type"`
	Items         []LineItem `json:"items"`
}

// LineItem is one sku/aisle/quantity triple.
type LineItem struct {
	SKU      string `json:"sku"`
	Aisle    string `json:"aisle"`
	Quantity int32  `json:"quantity"`
}

// Validate checks the broadcast invariants. An empty item list is valid.
func (b OrderBroadcast) Validate() error {
	if b.OrderID == "" {
		return &ValidationError{Field: "order_id", Reason: "must not be empty"}
	}
	for i, it := range b.Items {
		if it.Quantity < 0 {
			return &ValidationError{Field: "items", Reason: "negative quantity", Index: i}
		}
	}
	return nil
}

// Robot identifies a worker process. A robot is bound to one aisle for life.
type Robot struct {
	ID    string
	Aisle string
}
