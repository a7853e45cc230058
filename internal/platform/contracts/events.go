// Package contracts holds the Avro schemas of the events exchanged between
// context services and the Go types that mirror them.
package contracts

import "time"

// Topics.
const (
	TopicOrders    = "erp.commerce.orders.v1"
	TopicCustomers = "erp.crm.customers.v1"
	TopicStock     = "erp.inventory.stock.v1"
)

// Event types, equal to the schema record names.
const (
	EventOrderPlaced           = "OrderPlaced"
	EventOrderCancelled        = "OrderCancelled"
	EventCustomerRegistered    = "CustomerRegistered"
	EventCustomerStatusChanged = "CustomerStatusChanged"
	EventStockLevelChanged     = "StockLevelChanged"
)

// Namespace of every contract schema.
const Namespace = "chiro.erp.contracts"

// OrderLine is one line of a placed order. Prices are decimal strings.
type OrderLine struct {
	SKU       string `avro:"sku" json:"sku"`
	Quantity  int64  `avro:"quantity" json:"quantity"`
	UnitPrice string `avro:"unit_price" json:"unit_price"`
}

type OrderPlaced struct {
	EventID     string      `avro:"event_id" json:"event_id"`
	OrderID     string      `avro:"order_id" json:"order_id"`
	TenantID    string      `avro:"tenant_id" json:"tenant_id"`
	CustomerID  string      `avro:"customer_id" json:"customer_id"`
	OrderNumber string      `avro:"order_number" json:"order_number"`
	Currency    string      `avro:"currency" json:"currency"`
	Total       string      `avro:"total" json:"total"`
	Lines       []OrderLine `avro:"lines" json:"lines"`
	PlacedAt    time.Time   `avro:"placed_at" json:"placed_at"`
}

// OrderCancelled announces a cancellation. WasPlaced is false for drafts,
// which never produced an OrderPlaced.
type OrderCancelled struct {
	EventID     string    `avro:"event_id" json:"event_id"`
	OrderID     string    `avro:"order_id" json:"order_id"`
	TenantID    string    `avro:"tenant_id" json:"tenant_id"`
	CustomerID  string    `avro:"customer_id" json:"customer_id"`
	OrderNumber string    `avro:"order_number" json:"order_number"`
	Currency    string    `avro:"currency" json:"currency"`
	Total       string    `avro:"total" json:"total"`
	WasPlaced   bool      `avro:"was_placed" json:"was_placed"`
	Reason      string    `avro:"reason" json:"reason"`
	CancelledAt time.Time `avro:"cancelled_at" json:"cancelled_at"`
}

type CustomerRegistered struct {
	EventID      string    `avro:"event_id" json:"event_id"`
	CustomerID   string    `avro:"customer_id" json:"customer_id"`
	TenantID     string    `avro:"tenant_id" json:"tenant_id"`
	Code         string    `avro:"code" json:"code"`
	Name         string    `avro:"name" json:"name"`
	Email        *string   `avro:"email" json:"email,omitempty"`
	Segment      string    `avro:"segment" json:"segment"`
	Status       string    `avro:"status" json:"status"`
	RegisteredAt time.Time `avro:"registered_at" json:"registered_at"`
}

type CustomerStatusChanged struct {
	EventID    string    `avro:"event_id" json:"event_id"`
	CustomerID string    `avro:"customer_id" json:"customer_id"`
	TenantID   string    `avro:"tenant_id" json:"tenant_id"`
	Name       string    `avro:"name" json:"name"`
	OldStatus  string    `avro:"old_status" json:"old_status"`
	NewStatus  string    `avro:"new_status" json:"new_status"`
	ChangedAt  time.Time `avro:"changed_at" json:"changed_at"`
}

type StockLevelChanged struct {
	EventID       string    `avro:"event_id" json:"event_id"`
	ItemID        string    `avro:"item_id" json:"item_id"`
	TenantID      string    `avro:"tenant_id" json:"tenant_id"`
	SKU           string    `avro:"sku" json:"sku"`
	WarehouseCode string    `avro:"warehouse_code" json:"warehouse_code"`
	OnHand        int64     `avro:"on_hand" json:"on_hand"`
	Reserved      int64     `avro:"reserved" json:"reserved"`
	Movement      string    `avro:"movement" json:"movement"`
	ChangedAt     time.Time `avro:"changed_at" json:"changed_at"`
}
