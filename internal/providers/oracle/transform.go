package oracle

import (
	"fmt"

	"erp-connector-service/internal/models"
	"erp-connector-service/internal/providers"
)

// purchaseStatusOut maps WMS order statuses to Oracle purchasing
// document statuses. Unknown values fall back to INCOMPLETE in
// MapOrderStatus.
var purchaseStatusOut = map[models.OrderStatus]string{
	models.OrderPending:    "INCOMPLETE",
	models.OrderConfirmed:  "OPEN",
	models.OrderInProgress: "IN PROCESS",
	models.OrderCompleted:  "CLOSED",
	models.OrderCancelled:  "CANCELED",
}

var purchaseStatusIn = map[string]models.OrderStatus{
	"INCOMPLETE":           models.OrderPending,
	"OPEN":                 models.OrderConfirmed,
	"IN PROCESS":           models.OrderInProgress,
	"CLOSED":               models.OrderCompleted,
	"CLOSED FOR RECEIVING": models.OrderCompleted,
	"CANCELED":             models.OrderCancelled,
}

var salesStatusOut = map[models.SalesOrderStatus]string{
	models.SalesOrderPending:    "DRAFT",
	models.SalesOrderConfirmed:  "AWAIT_SHIP",
	models.SalesOrderProcessing: "PICKED",
	models.SalesOrderShipped:    "SHIPPED",
	models.SalesOrderDelivered:  "CLOSED",
	models.SalesOrderCancelled:  "CANCELED",
}

var salesStatusIn = map[string]models.SalesOrderStatus{
	"DRAFT":      models.SalesOrderPending,
	"AWAIT_SHIP": models.SalesOrderConfirmed,
	"PICKED":     models.SalesOrderProcessing,
	"SHIPPED":    models.SalesOrderShipped,
	"CLOSED":     models.SalesOrderDelivered,
	"CANCELED":   models.SalesOrderCancelled,
}

// MapOrderStatus converts a WMS purchase order status to the Oracle
// equivalent
func (a *Adapter) MapOrderStatus(status models.OrderStatus) string {
	if mapped, ok := purchaseStatusOut[status]; ok {
		return mapped
	}
	return "INCOMPLETE"
}

// MapProviderOrderStatus converts an Oracle purchasing status to the WMS
// equivalent
func (a *Adapter) MapProviderOrderStatus(status string) models.OrderStatus {
	if mapped, ok := purchaseStatusIn[status]; ok {
		return mapped
	}
	return models.OrderPending
}

// MapSalesOrderStatus converts a WMS sales order status to the Oracle
// equivalent
func (a *Adapter) MapSalesOrderStatus(status models.SalesOrderStatus) string {
	if mapped, ok := salesStatusOut[status]; ok {
		return mapped
	}
	return "DRAFT"
}

// MapProviderSalesOrderStatus converts an Oracle fulfillment status to
// the WMS equivalent
func (a *Adapter) MapProviderSalesOrderStatus(status string) models.SalesOrderStatus {
	if mapped, ok := salesStatusIn[status]; ok {
		return mapped
	}
	return models.SalesOrderPending
}

// TransformOutbound shapes a WMS record into the Fusion payload for its
// entity type
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
		return nil, &providers.UnsupportedEntityError{Provider: models.ProviderOracle, EntityType: entityType}
	}
}

func (a *Adapter) transformProduct(record models.EntityRecord) map[string]interface{} {
	return map[string]interface{}{
		"ItemNumber":       record.Key,
		"ItemDescription":  record.StringField("name", record.Key),
		"LongDescription":  record.StringField("description", ""),
		"ItemClass":        "Root Item Class",
		"PrimaryUOMValue":  record.StringField("unit", "Each"),
		"ListPrice":        record.FloatField("price", 0),
		"ItemStatusValue":  "Active",
		"LifecyclePhase":   "Production",
		"OrganizationCode": record.StringField("warehouse", "WH-MAIN"),
	}
}

func (a *Adapter) transformCustomer(record models.EntityRecord) map[string]interface{} {
	return map[string]interface{}{
		"AccountNumber":    record.Key,
		"AccountName":      record.StringField("name", record.Key),
		"EmailAddress":     record.StringField("email", ""),
		"PhoneNumber":      record.StringField("phone", ""),
		"AddressLine1":     record.StringField("address", ""),
		"City":             record.StringField("city", ""),
		"Country":          record.StringField("country", "US"),
		"CustomerClass":    record.StringField("group", "DEFAULT"),
		"CurrencyCode":     record.StringField("currency", "USD"),
		"PaymentTermsName": record.StringField("paymentTerms", "30 Net"),
	}
}

func (a *Adapter) transformSupplier(record models.EntityRecord) map[string]interface{} {
	return map[string]interface{}{
		"SupplierNumber":       record.Key,
		"Supplier":             record.StringField("name", record.Key),
		"SupplierEmail":        record.StringField("email", ""),
		"PhoneNumber":          record.StringField("phone", ""),
		"City":                 record.StringField("city", ""),
		"Country":              record.StringField("country", "US"),
		"BusinessRelationship": "SPEND_AUTHORIZED",
		"DefaultCurrency":      record.StringField("currency", "USD"),
	}
}

func (a *Adapter) transformPurchaseOrder(record models.EntityRecord) map[string]interface{} {
	return map[string]interface{}{
		"OrderNumber":           record.Key,
		"SupplierNumber":        record.StringField("supplierKey", ""),
		"StatusCode":            a.MapOrderStatus(models.OrderStatus(record.Status)),
		"CurrencyCode":          record.StringField("currency", "USD"),
		"RequestedDeliveryDate": record.StringField("expectedDate", ""),
		"ShipToLocation":        record.StringField("warehouse", "WH-MAIN"),
	}
}

func (a *Adapter) transformSalesOrder(record models.EntityRecord) map[string]interface{} {
	return map[string]interface{}{
		"OrderNumber":               record.Key,
		"BuyingPartyNumber":         record.StringField("customerKey", ""),
		"StatusCode":                a.MapSalesOrderStatus(models.SalesOrderStatus(record.Status)),
		"TransactionalCurrencyCode": record.StringField("currency", "USD"),
		"RequestedShipDate":         record.StringField("shipDate", ""),
		"ShipToPartySiteName":       record.StringField("shipTo", ""),
	}
}

func (a *Adapter) transformReceipt(record models.EntityRecord) map[string]interface{} {
	return map[string]interface{}{
		"ReceiptNumber":       record.Key,
		"PurchaseOrderNumber": record.StringField("purchaseOrderKey", ""),
		"TransactionDate":     record.StringField("receivedDate", ""),
		"OrganizationCode":    record.StringField("warehouse", "WH-MAIN"),
		"ReceiptSourceCode":   "VENDOR",
	}
}

func (a *Adapter) transformShipment(record models.EntityRecord) map[string]interface{} {
	return map[string]interface{}{
		"Shipment":        record.Key,
		"OrderNumber":     record.StringField("salesOrderKey", ""),
		"ActualShipDate":  record.StringField("shippedDate", ""),
		"CarrierName":     record.StringField("carrier", ""),
		"TrackingNumber":  record.StringField("trackingNumber", ""),
		"ShipFromOrgCode": record.StringField("warehouse", "WH-MAIN"),
	}
}

func (a *Adapter) transformInvoice(record models.EntityRecord) map[string]interface{} {
	return map[string]interface{}{
		"InvoiceNumber":       record.Key,
		"SupplierNumber":      record.StringField("accountKey", ""),
		"PurchaseOrderNumber": record.StringField("purchaseOrderKey", ""),
		"InvoiceDate":         record.StringField("invoiceDate", ""),
		"InvoiceAmount":       record.FloatField("total", 0),
		"InvoiceCurrency":     record.StringField("currency", "USD"),
		"Source":              "EXTERNAL",
	}
}

func (a *Adapter) transformPayment(record models.EntityRecord) map[string]interface{} {
	return map[string]interface{}{
		"PaymentNumber":     record.Key,
		"PartyNumber":       record.StringField("customerKey", ""),
		"PaymentAmount":     record.FloatField("amount", 0),
		"PaymentDate":       record.StringField("paymentDate", ""),
		"PaymentMethodCode": record.StringField("method", "EFT"),
		"CurrencyCode":      record.StringField("currency", "USD"),
	}
}

func (a *Adapter) transformInventory(record models.EntityRecord) map[string]interface{} {
	return map[string]interface{}{
		"ItemNumber":       record.Key,
		"PrimaryQuantity":  record.FloatField("quantity", 0),
		"OrganizationCode": record.StringField("warehouse", "WH-MAIN"),
		"SubinventoryCode": record.StringField("subinventory", "STORES"),
	}
}

var _ providers.Adapter = (*Adapter)(nil)

// every declared status must have an outbound mapping
func init() {
	for _, s := range models.AllOrderStatuses {
		if _, ok := purchaseStatusOut[s]; !ok {
			panic(fmt.Sprintf("oracle: missing purchase status mapping for %q", s))
		}
	}
	for _, s := range models.AllSalesOrderStatuses {
		if _, ok := salesStatusOut[s]; !ok {
			panic(fmt.Sprintf("oracle: missing sales status mapping for %q", s))
		}
	}
}
