package turum

// ReservationItem is one variant/quantity pair of a reservation request
type ReservationItem struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

type createReservationRequest struct {
	Variants []ReservationItem `json:"variants"`
}

type createReservationResponse struct {
	ReservationID string `json:"reservation_id"`
}

// Reservation is the supplier's view of a reservation
type Reservation struct {
	ID     string `json:"reservation_id,omitempty"`
	Status string `json:"status"`
	// TrackingURL carries "carrier\ntracking number" once the parcel has shipped
	TrackingURL string `json:"tracking_url"`
}

// BillingAddress is the billing half of the supplier account address
type BillingAddress struct {
	CompanyName string `json:"company_name"`
	VATID       string `json:"vat_id"`
	Street      string `json:"street"`
	City        string `json:"city"`
	ZipCode     string `json:"zip_code"`
	Country     string `json:"country"`
}

// ShippingAddress is where the supplier ships reserved goods
type ShippingAddress struct {
	Name        string `json:"name"`
	Street      string `json:"street"`
	Street2     string `json:"street_2"`
	City        string `json:"city"`
	ZipCode     string `json:"zip_code"`
	Country     string `json:"country"`
	State       string `json:"state"`
	PhoneNumber string `json:"phone_number"`
}

// AccountAddress is the body of GET/POST /account/address
type AccountAddress struct {
	Billing  *BillingAddress  `json:"billing_address,omitempty"`
	Shipping *ShippingAddress `json:"shipping_address,omitempty"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
}
