package models

// EntityType represents the type of WMS entity being synchronized
type EntityType string

const (
	EntityProduct       EntityType = "PRODUCT"
	EntityCustomer      EntityType = "CUSTOMER"
	EntitySupplier      EntityType = "SUPPLIER"
	EntityPurchaseOrder EntityType = "PURCHASE_ORDER"
	EntitySalesOrder    EntityType = "SALES_ORDER"
	EntityReceipt       EntityType = "RECEIPT"
	EntityShipment      EntityType = "SHIPMENT"
	EntityInvoice       EntityType = "INVOICE"
	EntityPayment       EntityType = "PAYMENT"
	EntityInventory     EntityType = "INVENTORY"
)

// AllEntityTypes lists every entity type the connector understands
var AllEntityTypes = []EntityType{
	EntityProduct,
	EntityCustomer,
	EntitySupplier,
	EntityPurchaseOrder,
	EntitySalesOrder,
	EntityReceipt,
	EntityShipment,
	EntityInvoice,
	EntityPayment,
	EntityInventory,
}

// IsValidEntityType reports whether the given entity type is known
func IsValidEntityType(e EntityType) bool {
	for _, t := range AllEntityTypes {
		if t == e {
			return true
		}
	}
	return false
}

// OrderStatus enumerates the WMS-side document statuses for purchase
// orders, receipts, invoices and payments
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderInProgress OrderStatus = "in_progress"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

// AllOrderStatuses lists every WMS order status
var AllOrderStatuses = []OrderStatus{
	OrderPending,
	OrderConfirmed,
	OrderInProgress,
	OrderCompleted,
	OrderCancelled,
}

// SalesOrderStatus enumerates the WMS-side sales order statuses
type SalesOrderStatus string

const (
	SalesOrderPending    SalesOrderStatus = "pending"
	SalesOrderConfirmed  SalesOrderStatus = "confirmed"
	SalesOrderProcessing SalesOrderStatus = "processing"
	SalesOrderShipped    SalesOrderStatus = "shipped"
	SalesOrderDelivered  SalesOrderStatus = "delivered"
	SalesOrderCancelled  SalesOrderStatus = "cancelled"
)

// AllSalesOrderStatuses lists every WMS sales order status
var AllSalesOrderStatuses = []SalesOrderStatus{
	SalesOrderPending,
	SalesOrderConfirmed,
	SalesOrderProcessing,
	SalesOrderShipped,
	SalesOrderDelivered,
	SalesOrderCancelled,
}

// EntityRecord is a WMS-side domain object handed to the connector for
// outbound synchronization. Key is the WMS-native natural key (SKU,
// customer code, order number). Fields carries the remaining attributes
// as the WMS shaped them; adapters read what they need and supply
// provider-required defaults for anything missing. Records are read-only
// inputs and are never mutated by the gateway or adapters.
type EntityRecord struct {
	Key    string `json:"key"`
	Status string `json:"status,omitempty"`
	Fields JSONB  `json:"fields,omitempty"`
}

// StringField returns the named field as a string, or the fallback when
// the field is absent or not a string
func (r EntityRecord) StringField(name, fallback string) string {
	if v, ok := r.Fields[name].(string); ok && v != "" {
		return v
	}
	return fallback
}

// FloatField returns the named field as a float64, or the fallback
func (r EntityRecord) FloatField(name string, fallback float64) float64 {
	switch v := r.Fields[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}

// IntField returns the named field as an int, or the fallback
func (r EntityRecord) IntField(name string, fallback int) int {
	switch v := r.Fields[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}

// BoolField returns the named field as a bool, or the fallback
func (r EntityRecord) BoolField(name string, fallback bool) bool {
	if v, ok := r.Fields[name].(bool); ok {
		return v
	}
	return fallback
}
