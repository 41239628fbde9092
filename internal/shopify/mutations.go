package shopify

// ProductVariantsBulkUpdateMutation updates price and metafields of up to MaxVariantsPerBulkUpdate variants of one product
const ProductVariantsBulkUpdateMutation = `
mutation productVariantsBulkUpdate($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
  productVariantsBulkUpdate(productId: $productId, variants: $variants) {
    product {
      id
    }
    productVariants {
      id
      price
    }
    userErrors {
      field
      message
    }
  }
}
`

// InventorySetQuantitiesMutation sets absolute quantities for up to MaxInventoryPerBatch items
const InventorySetQuantitiesMutation = `
mutation inventorySetQuantities($input: InventorySetQuantitiesInput!) {
  inventorySetQuantities(input: $input) {
    inventoryAdjustmentGroup {
      id
    }
    userErrors {
      field
      message
      code
    }
  }
}
`

// InventoryActivateMutation starts tracking an inventory item at a location
const InventoryActivateMutation = `
mutation inventoryActivate($inventoryItemId: ID!, $locationId: ID!) {
  inventoryActivate(inventoryItemId: $inventoryItemId, locationId: $locationId) {
    inventoryLevel {
      id
    }
    userErrors {
      field
      message
    }
  }
}
`

// MetafieldsSetMutation sets metafields on a resource (used for the variant link to the supplier)
const MetafieldsSetMutation = `
mutation metafieldsSet($metafields: [MetafieldsSetInput!]!) {
  metafieldsSet(metafields: $metafields) {
    metafields {
      key
      namespace
      value
    }
    userErrors {
      field
      message
      code
    }
  }
}
`

const (
	// MaxVariantsPerBulkUpdate is the productVariantsBulkUpdate input limit
	MaxVariantsPerBulkUpdate = 100
	// MaxInventoryPerBatch is the inventorySetQuantities input limit
	MaxInventoryPerBatch = 250

	// ErrCodeItemNotStocked is reported by inventorySetQuantities for items not activated at the location
	ErrCodeItemNotStocked = "ITEM_NOT_STOCKED_AT_LOCATION"
)

// MetafieldInput is used to attach a metafield in a bulk variant update
type MetafieldInput struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Type      string `json:"type"`
	Value     string `json:"value"`
}

// MetafieldsSetInput is used with metafieldsSet mutation
type MetafieldsSetInput struct {
	OwnerID   string `json:"ownerId"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Type      string `json:"type"`
	Value     string `json:"value"`
}

// ProductVariantsBulkInput is one entry of productVariantsBulkUpdate
type ProductVariantsBulkInput struct {
	ID         string           `json:"id"`
	Price      string           `json:"price,omitempty"`
	Metafields []MetafieldInput `json:"metafields,omitempty"`
}

// InventorySetQuantitiesInput is the input of inventorySetQuantities
type InventorySetQuantitiesInput struct {
	Name                  string                   `json:"name"`
	Reason                string                   `json:"reason"`
	IgnoreCompareQuantity bool                     `json:"ignoreCompareQuantity"`
	Quantities            []InventoryQuantityInput `json:"quantities"`
}

// InventoryQuantityInput is one absolute quantity at one location
type InventoryQuantityInput struct {
	InventoryItemID string `json:"inventoryItemId"`
	LocationID      string `json:"locationId"`
	Quantity        int    `json:"quantity"`
}
