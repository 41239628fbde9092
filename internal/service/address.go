package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kamranshah125/turum/internal/config"
	"github.com/kamranshah125/turum/internal/domain"
	"github.com/kamranshah125/turum/internal/turum"
)

// AddressSyncResult reports the outcome of a best-effort address propagation
type AddressSyncResult struct {
	Attempted bool
	Err       error
}

// AddressPropagator copies an order's shipping address to the supplier account
type AddressPropagator struct {
	supplier       Supplier
	defaultCountry string
	defaultPhone   string
	billingCompany string
	billingVATID   string
	logger         *zap.Logger
}

// NewAddressPropagator creates an address propagator
func NewAddressPropagator(supplier Supplier, cfg config.TurumConfig, logger *zap.Logger) *AddressPropagator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AddressPropagator{
		supplier:       supplier,
		defaultCountry: cfg.DefaultCountry,
		defaultPhone:   cfg.DefaultPhone,
		billingCompany: cfg.BillingCompany,
		billingVATID:   cfg.BillingVATID,
		logger:         logger,
	}
}

// Propagate never fails the caller; the outcome is returned for logging
func (p *AddressPropagator) Propagate(ctx context.Context, order *domain.ShopifyOrder) AddressSyncResult {
	if order.ShippingAddress == nil {
		return AddressSyncResult{}
	}

	company, vatID := p.billingCompany, p.billingVATID
	current, err := p.supplier.GetAccountAddress(ctx)
	if err != nil {
		p.logger.Warn("Could not read supplier account address, using configured billing details",
			zap.Int64("order_id", order.ID), zap.Error(err))
	} else if current != nil && current.Billing != nil {
		if current.Billing.CompanyName != "" {
			company = current.Billing.CompanyName
		}
		if current.Billing.VATID != "" {
			vatID = current.Billing.VATID
		}
	}

	addr := p.build(order.ShippingAddress, company, vatID)
	if err := p.supplier.UpdateAddress(ctx, addr); err != nil {
		return AddressSyncResult{Attempted: true, Err: fmt.Errorf("update supplier address: %w", err)}
	}
	return AddressSyncResult{Attempted: true}
}

func (p *AddressPropagator) build(s *domain.ShippingAddress, company, vatID string) turum.AccountAddress {
	country := firstNonEmpty(s.CountryCode, s.Country, p.defaultCountry)
	return turum.AccountAddress{
		Billing: &turum.BillingAddress{
			CompanyName: company,
			VATID:       vatID,
			Street:      s.Address1,
			City:        s.City,
			ZipCode:     s.Zip,
			Country:     country,
		},
		Shipping: &turum.ShippingAddress{
			Name:        strings.TrimSpace(s.FirstName + " " + s.LastName),
			Street:      s.Address1,
			Street2:     s.Address2,
			City:        s.City,
			ZipCode:     s.Zip,
			Country:     country,
			State:       firstNonEmpty(s.ProvinceCode, s.Province),
			PhoneNumber: firstNonEmpty(s.Phone, p.defaultPhone),
		},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
