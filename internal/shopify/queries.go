package shopify

import "strings"

// ProductVariantBySKUQuery finds variants matching a search string built by SKUSearch.
// The search is fuzzy even for a quoted SKU; callers must scan the page for an exact sku.
const ProductVariantBySKUQuery = `
query getVariantBySku($query: String!) {
  productVariants(first: 10, query: $query) {
    edges {
      node {
        id
        sku
        title
        inventoryItem {
          id
        }
        product {
          id
          legacyResourceId
          title
          status
          vendor
        }
      }
    }
  }
}
`

// SKUSearch builds a variant search for a single SKU, quoted as one term
func SKUSearch(sku string) string {
	return `sku:"` + skuEscaper.Replace(sku) + `"`
}

var skuEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// VendorProductsQuery pages through products with the SKUs of their first variants.
// $query is a product search such as "(tag:'turum' OR vendor:'Turum') AND status:active".
const VendorProductsQuery = `
query getVendorProducts($first: Int!, $after: String, $query: String!, $variantsFirst: Int!) {
  products(first: $first, after: $after, query: $query) {
    pageInfo {
      hasNextPage
      endCursor
    }
    edges {
      node {
        id
        legacyResourceId
        title
        status
        vendor
        variants(first: $variantsFirst) {
          edges {
            node {
              sku
            }
          }
        }
      }
    }
  }
}
`

// VariantMetafieldQuery reads one metafield of a variant
const VariantMetafieldQuery = `
query getVariantMetafield($id: ID!, $namespace: String!, $key: String!) {
  productVariant(id: $id) {
    id
    metafield(namespace: $namespace, key: $key) {
      value
    }
  }
}
`
