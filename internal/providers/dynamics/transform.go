package dynamics

import (
	"fmt"

	"erp-connector-service/internal/models"
	"erp-connector-service/internal/providers"
)

// purchaseStatusOut maps WMS order statuses to Dynamics purchase order
// statuses. Every WMS status has an entry; unknown values fall back to
// Draft in MapOrderStatus.
var purchaseStatusOut = map[models.OrderStatus]string{
	models.OrderPending:    "Draft",
	models.OrderConfirmed:  "Confirmed",
	models.OrderInProgress: "InProcess",
	models.OrderCompleted:  "Received",
	models.OrderCancelled:  "Cancelled",
}

// purchaseStatusIn maps Dynamics purchase order statuses back to WMS
// statuses. Invoiced collapses onto completed; unknown values fall back
// to pending in MapProviderOrderStatus.
var purchaseStatusIn = map[string]models.OrderStatus{
	"Draft":     models.OrderPending,
	"Confirmed": models.OrderConfirmed,
	"InProcess": models.OrderInProgress,
	"Received":  models.OrderCompleted,
	"Invoiced":  models.OrderCompleted,
	"Cancelled": models.OrderCancelled,
}

var salesStatusOut = map[models.SalesOrderStatus]string{
	models.SalesOrderPending:    "None",
	models.SalesOrderConfirmed:  "Backorder",
	models.SalesOrderProcessing: "Backorder",
	models.SalesOrderShipped:    "Delivered",
	models.SalesOrderDelivered:  "Invoiced",
	models.SalesOrderCancelled:  "Cancelled",
}

// salesStatusIn is lossy by construction: Backorder covers both
// confirmed and processing and maps back to confirmed.
var salesStatusIn = map[string]models.SalesOrderStatus{
	"None":      models.SalesOrderPending,
	"Backorder": models.SalesOrderConfirmed,
	"Delivered": models.SalesOrderShipped,
	"Invoiced":  models.SalesOrderDelivered,
	"Cancelled": models.SalesOrderCancelled,
}

// MapOrderStatus converts a WMS purchase order status to the Dynamics
// equivalent
func (a *Adapter) MapOrderStatus(status models.OrderStatus) string {
	if mapped, ok := purchaseStatusOut[status]; ok {
		return mapped
	}
	return "Draft"
}

// MapProviderOrderStatus converts a Dynamics purchase order status to
// the WMS equivalent
func (a *Adapter) MapProviderOrderStatus(status string) models.OrderStatus {
	if mapped, ok := purchaseStatusIn[status]; ok {
		return mapped
	}
	return models.OrderPending
}

// MapSalesOrderStatus converts a WMS sales order status to the Dynamics
// equivalent
func (a *Adapter) MapSalesOrderStatus(status models.SalesOrderStatus) string {
	if mapped, ok := salesStatusOut[status]; ok {
		return mapped
	}
	return "None"
}

// MapProviderSalesOrderStatus converts a Dynamics sales order status to
// the WMS equivalent
func (a *Adapter) MapProviderSalesOrderStatus(status string) models.SalesOrderStatus {
	if mapped, ok := salesStatusIn[status]; ok {
		return mapped
	}
	return models.SalesOrderPending
}

// TransformOutbound shapes a WMS record into the Dynamics payload for
// its entity type
func (a *Adapter) TransformOutbound(entityType models.EntityType, record models.EntityRecord) (map[string]interface{}, error) {
	switch entityType {
	case models.EntityProduct:
		return a.transformProduct(record), nil
	case models.EntityCustomer:
		return a.transformCustomer(record), nil
	case models.EntitySupplier:
		return a.transformSupplier(record), nil
	case models.EntityPurchaseOrder:
		return a.transformPurchaseOrder(record), nil
	case models.EntitySalesOrder:
		return a.transformSalesOrder(record), nil
	case models.EntityReceipt:
		return a.transformReceipt(record), nil
	case models.EntityShipment:
		return a.transformShipment(record), nil
	case models.EntityInvoice:
		return a.transformInvoice(record), nil
	case models.EntityPayment:
		return a.transformPayment(record), nil
	case models.EntityInventory:
		return a.transformInventory(record), nil
	default:
		return nil, &providers.UnsupportedEntityError{Provider: models.ProviderDynamics, EntityType: entityType}
	}
}

func (a *Adapter) transformProduct(record models.EntityRecord) map[string]interface{} {
	return map[string]interface{}{
		"ProductNumber":           record.Key,
		"ProductName":             record.StringField("name", record.Key),
		"ProductDescription":      record.StringField("description", ""),
		"ProductType":             "Item",
		"ProductSubtype":          "Product",
		"SalesPrice":              record.FloatField("price", 0),
		"PurchasePrice":           record.FloatField("cost", 0),
		"InventoryUnitSymbol":     record.StringField("unit", "ea"),
		"ProductSearchName":       record.StringField("name", record.Key),
		"ItemModelGroupId":        "STD",
		"StorageDimensionGroupId": "SiteWH",
	}
}

func (a *Adapter) transformCustomer(record models.EntityRecord) map[string]interface{} {
	return map[string]interface{}{
		"CustomerAccount":        record.Key,
		"OrganizationName":       record.StringField("name", record.Key),
		"PrimaryContactEmail":    record.StringField("email", ""),
		"PrimaryContactPhone":    record.StringField("phone", ""),
		"AddressStreet":          record.StringField("address", ""),
		"AddressCity":            record.StringField("city", ""),
		"AddressCountryRegionId": record.StringField("country", "USA"),
		"CustomerGroupId":        record.StringField("group", "DEFAULT"),
		"SalesCurrencyCode":      record.StringField("currency", "USD"),
		"PaymentTerms":           record.StringField("paymentTerms", "Net30"),
	}
}

func (a *Adapter) transformSupplier(record models.EntityRecord) map[string]interface{} {
	return map[string]interface{}{
		"VendorAccountNumber":    record.Key,
		"VendorOrganizationName": record.StringField("name", record.Key),
		"PrimaryEmailAddress":    record.StringField("email", ""),
		"PrimaryPhoneNumber":     record.StringField("phone", ""),
		"AddressCity":            record.StringField("city", ""),
		"AddressCountryRegionId": record.StringField("country", "USA"),
		"VendorGroupId":          record.StringField("group", "DEFAULT"),
		"CurrencyCode":           record.StringField("currency", "USD"),
	}
}

func (a *Adapter) transformPurchaseOrder(record models.EntityRecord) map[string]interface{} {
	return map[string]interface{}{
		"PurchaseOrderNumber":      record.Key,
		"OrderVendorAccountNumber": record.StringField("supplierKey", ""),
		"PurchaseOrderStatus":      a.MapOrderStatus(models.OrderStatus(record.Status)),
		"CurrencyCode":             record.StringField("currency", "USD"),
		"RequestedDeliveryDate":    record.StringField("expectedDate", ""),
		"DeliveryAddressName":      record.StringField("warehouse", "WH-MAIN"),
	}
}

func (a *Adapter) transformSalesOrder(record models.EntityRecord) map[string]interface{} {
	return map[string]interface{}{
		"SalesOrderNumber":        record.Key,
		"OrderingCustomerAccount": record.StringField("customerKey", ""),
		"SalesOrderStatus":        a.MapSalesOrderStatus(models.SalesOrderStatus(record.Status)),
		"CurrencyCode":            record.StringField("currency", "USD"),
		"RequestedShippingDate":   record.StringField("shipDate", ""),
		"DeliveryAddressName":     record.StringField("shipTo", ""),
	}
}

func (a *Adapter) transformReceipt(record models.EntityRecord) map[string]interface{} {
	return map[string]interface{}{
		"ProductReceiptNumber": record.Key,
		"PurchaseOrderNumber":  record.StringField("purchaseOrderKey", ""),
		"ProductReceiptDate":   record.StringField("receivedDate", ""),
		"DeliveryAddressName":  record.StringField("warehouse", "WH-MAIN"),
	}
}

func (a *Adapter) transformShipment(record models.EntityRecord) map[string]interface{} {
	return map[string]interface{}{
		"ShipmentId":       record.Key,
		"SalesOrderNumber": record.StringField("salesOrderKey", ""),
		"ShippingDate":     record.StringField("shippedDate", ""),
		"CarrierCode":      record.StringField("carrier", ""),
		"TrackingNumber":   record.StringField("trackingNumber", ""),
	}
}

func (a *Adapter) transformInvoice(record models.EntityRecord) map[string]interface{} {
	return map[string]interface{}{
		"InvoiceNumber":       record.Key,
		"InvoiceAccount":      record.StringField("accountKey", ""),
		"PurchaseOrderNumber": record.StringField("purchaseOrderKey", ""),
		"InvoiceDate":         record.StringField("invoiceDate", ""),
		"InvoiceTotalAmount":  record.FloatField("total", 0),
		"CurrencyCode":        record.StringField("currency", "USD"),
	}
}

func (a *Adapter) transformPayment(record models.EntityRecord) map[string]interface{} {
	return map[string]interface{}{
		"PaymentReference":  record.Key,
		"CustomerAccount":   record.StringField("customerKey", ""),
		"PaymentAmount":     record.FloatField("amount", 0),
		"PaymentDate":       record.StringField("paymentDate", ""),
		"PaymentMethodName": record.StringField("method", "Electronic"),
		"CurrencyCode":      record.StringField("currency", "USD"),
	}
}

func (a *Adapter) transformInventory(record models.EntityRecord) map[string]interface{} {
	return map[string]interface{}{
		"ItemNumber":              record.Key,
		"AvailableOnHandQuantity": record.FloatField("quantity", 0),
		"InventorySiteId":         record.StringField("warehouse", "WH-MAIN"),
		"InventoryStatusId":       record.StringField("status", "Available"),
	}
}

var _ providers.Adapter = (*Adapter)(nil)

// every declared status must have an outbound mapping
func init() {
	for _, s := range models.AllOrderStatuses {
		if _, ok := purchaseStatusOut[s]; !ok {
			panic(fmt.Sprintf("dynamics: missing purchase status mapping for %q", s))
		}
	}
	for _, s := range models.AllSalesOrderStatuses {
		if _, ok := salesStatusOut[s]; !ok {
			panic(fmt.Sprintf("dynamics: missing sales status mapping for %q", s))
		}
	}
}
