package baselinker

// Order is the subset of the getOrders response the pipeline needs.
// Orders are read-only to this system.
type Order struct {
	OrderID   int64  `json:"order_id"`
	Source    string `json:"order_source"`
	StatusID  int    `json:"order_status_id"`
	DateAdd   int64  `json:"date_add"` // unix seconds
	Phone     string `json:"phone"`
	OrderPage string `json:"order_page"`
}

// SourcePersonal marks orders placed directly with the shop rather than
// through a marketplace channel. Only these get shipment notifications.
const SourcePersonal = "personal"
