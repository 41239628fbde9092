package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultSizeOption is the option value used when a supplier variant carries no size
const DefaultSizeOption = "Default"

// SupplierProduct is a product from the supplier feed. Images is already the canonical list.
type SupplierProduct struct {
	SKU         string
	Name        string
	Description string
	Brand       string
	Category    string
	Images      []string
	Variants    []SupplierVariant
}

// SupplierVariant is one size of a supplier product
type SupplierVariant struct {
	ID     string
	Size   string
	EUSize string
	Price  decimal.Decimal
	Stock  int
}

// SizeLabel returns the size used for matching: the display (EU) size wins over the native size
func (v SupplierVariant) SizeLabel() string {
	if s := strings.TrimSpace(v.EUSize); s != "" {
		return v.EUSize
	}
	return v.Size
}

// OptionLabel is SizeLabel with the storefront default for size-less variants
func (v SupplierVariant) OptionLabel() string {
	if s := v.SizeLabel(); s != "" {
		return s
	}
	return DefaultSizeOption
}

// FindVariant returns the variant with the given supplier id
func (p *SupplierProduct) FindVariant(id string) (SupplierVariant, bool) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return SupplierVariant{}, false
}

type supplierProductJSON struct {
	SKU         flexString        `json:"sku"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Brand       string            `json:"brand"`
	Category    string            `json:"category"`
	Type        string            `json:"type"` // legacy name for category
	Images      []imageEntry      `json:"images"`
	Image       string            `json:"image"`
	Variants    []SupplierVariant `json:"variants"`
}

// UnmarshalJSON resolves the polymorphic image payload into a flat URL list
func (p *SupplierProduct) UnmarshalJSON(data []byte) error {
	var raw supplierProductJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.SKU = string(raw.SKU)
	p.Name = raw.Name
	p.Description = raw.Description
	p.Brand = raw.Brand
	p.Category = raw.Category
	if p.Category == "" {
		p.Category = raw.Type
	}
	p.Variants = raw.Variants
	p.Images = nil
	for _, img := range raw.Images {
		if img.src != "" {
			p.Images = append(p.Images, img.src)
		}
	}
	if len(raw.Images) == 0 && strings.TrimSpace(raw.Image) != "" {
		p.Images = []string{raw.Image}
	}
	return nil
}

type supplierVariantJSON struct {
	VariantID flexString      `json:"variant_id"`
	ID        flexString      `json:"id"`
	Size      flexString      `json:"size"`
	EUSize    flexString      `json:"eu_size"`
	Price     decimal.Decimal `json:"price"`
	Stock     json.Number     `json:"stock"`
}

// UnmarshalJSON accepts variant_id or id as the identifier
func (v *SupplierVariant) UnmarshalJSON(data []byte) error {
	var raw supplierVariantJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v.ID = string(raw.VariantID)
	if v.ID == "" {
		v.ID = string(raw.ID)
	}
	v.Size = string(raw.Size)
	v.EUSize = string(raw.EUSize)
	v.Price = raw.Price
	v.Stock = 0
	if raw.Stock != "" {
		if n, err := raw.Stock.Int64(); err == nil {
			v.Stock = int(n)
		} else if f, err := raw.Stock.Float64(); err == nil {
			v.Stock = int(f)
		}
	}
	return nil
}

// imageEntry is one element of the supplier "images" array: a bare URL or an object with src/url
type imageEntry struct {
	src string
}

func (e *imageEntry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &e.src)
	}
	var obj struct {
		Src string `json:"src"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		// unknown shapes are ignored rather than failing the whole product
		return nil
	}
	e.src = obj.Src
	if e.src == "" {
		e.src = obj.URL
	}
	return nil
}

// flexString decodes JSON strings and numbers into a string
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if i, err := n.Int64(); err == nil {
		*f = flexString(strconv.FormatInt(i, 10))
		return nil
	}
	*f = flexString(n.String())
	return nil
}

// StorefrontVariant is a storefront product variant
type StorefrontVariant struct {
	ID              int64
	ProductID       int64
	SKU             string
	Option1         string
	Title           string
	Price           string
	InventoryItemID int64
}

// StorefrontVariantRef is the result of a SKU lookup in the storefront catalog
type StorefrontVariantRef struct {
	ProductID       int64
	VariantID       int64
	InventoryItemID int64
	Title           string
}

// StorefrontProduct is a storefront product with its variants
type StorefrontProduct struct {
	ID       int64
	GID      string
	Title    string
	Status   ProductStatus
	Vendor   string
	Variants []StorefrontVariant
	SKUs     []string
}

// Location is a storefront inventory location
type Location struct {
	ID     int64
	Name   string
	Active bool
	Legacy bool
}
