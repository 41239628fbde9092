package shopify

// REST payloads of the Admin API resources that are not worth a GraphQL round trip

type RESTVariant struct {
	ID              int64  `json:"id,omitempty"`
	ProductID       int64  `json:"product_id,omitempty"`
	SKU             string `json:"sku,omitempty"`
	Title           string `json:"title,omitempty"`
	Option1         string `json:"option1,omitempty"`
	Price           string `json:"price,omitempty"`
	InventoryItemID int64  `json:"inventory_item_id,omitempty"`
	// create only
	InventoryManagement string `json:"inventory_management,omitempty"`
	InventoryQuantity   *int   `json:"inventory_quantity,omitempty"`
}

type RESTImage struct {
	Src string `json:"src"`
}

type RESTOption struct {
	Name string `json:"name"`
}

type RESTProduct struct {
	ID          int64         `json:"id,omitempty"`
	Title       string        `json:"title,omitempty"`
	BodyHTML    string        `json:"body_html,omitempty"`
	Vendor      string        `json:"vendor,omitempty"`
	ProductType string        `json:"product_type,omitempty"`
	Status      string        `json:"status,omitempty"`
	Tags        string        `json:"tags,omitempty"` // comma separated
	Options     []RESTOption  `json:"options,omitempty"`
	Variants    []RESTVariant `json:"variants,omitempty"`
	Images      []RESTImage   `json:"images,omitempty"`
}

type ProductEnvelope struct {
	Product RESTProduct `json:"product"`
}

type VariantEnvelope struct {
	Variant RESTVariant `json:"variant"`
}

type VariantsEnvelope struct {
	Variants []RESTVariant `json:"variants"`
}

type RESTLocation struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
	Legacy bool   `json:"legacy"`
}

type LocationsEnvelope struct {
	Locations []RESTLocation `json:"locations"`
}

type InventoryLevelSet struct {
	LocationID      int64 `json:"location_id"`
	InventoryItemID int64 `json:"inventory_item_id"`
	Available       int   `json:"available"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason"`
	Email  bool   `json:"email"`
}

type FulfillmentOrder struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

type FulfillmentOrdersEnvelope struct {
	FulfillmentOrders []FulfillmentOrder `json:"fulfillment_orders"`
}

type TrackingInfo struct {
	Number  string `json:"number"`
	URL     string `json:"url"`
	Company string `json:"company"`
}

type LineItemsByFulfillmentOrder struct {
	FulfillmentOrderID int64 `json:"fulfillment_order_id"`
}

type Fulfillment struct {
	LineItemsByFulfillmentOrder []LineItemsByFulfillmentOrder `json:"line_items_by_fulfillment_order"`
	TrackingInfo                TrackingInfo                  `json:"tracking_info"`
	NotifyCustomer              bool                          `json:"notify_customer"`
}

type FulfillmentEnvelope struct {
	Fulfillment Fulfillment `json:"fulfillment"`
}
