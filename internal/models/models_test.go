package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartItemEffectivePrice(t *testing.T) {
	item := CartItem{
		Product:  Product{ID: 1, Price: decimal.RequireFromString("49.99"), CreditCost: 5},
		Quantity: 3,
	}

	assert.True(t, decimal.RequireFromString("149.97").Equal(item.LinePrice()))
	assert.Equal(t, int64(15), item.LineCredits())
	assert.False(t, item.IsConfigured())

	price := decimal.RequireFromString("120")
	credits := int64(12)
	item.ConfiguredPrice = &price
	item.ConfiguredCreditCost = &credits

	assert.True(t, decimal.RequireFromString("360").Equal(item.LinePrice()))
	assert.Equal(t, int64(36), item.LineCredits())
	assert.True(t, item.IsConfigured())
}

func TestProductTypeClassification(t *testing.T) {
	for _, pt := range []ProductType{ProductTypeVTS, ProductTypeAMS, ProductTypeFTS, ProductTypeMaritimeAlert} {
		assert.True(t, pt.IsLaunchable(), pt)
		assert.False(t, pt.IsReport(), pt)
	}
	for _, pt := range []ProductType{ProductTypeReportCompliance, ProductTypeReportChronology} {
		assert.True(t, pt.IsReport(), pt)
		assert.False(t, pt.IsLaunchable(), pt)
	}
	assert.False(t, ProductTypeInvestigation.IsLaunchable())
	assert.False(t, ProductTypeInvestigation.IsReport())
	assert.False(t, ProductType("SATELLITE").Valid())
}

func TestConfigurationScan(t *testing.T) {
	var cfg Configuration
	require.NoError(t, cfg.Scan([]byte(`{"alertType":"AIS_GAP","vesselIds":["IMO9321483"]}`)))
	assert.Equal(t, "AIS_GAP", cfg.AlertType)
	assert.Equal(t, []string{"IMO9321483"}, cfg.VesselIDs)

	assert.Error(t, cfg.Scan(42))
}

func TestAlertSeverityValid(t *testing.T) {
	assert.True(t, AlertSeverityWarning.Valid())
	assert.False(t, AlertSeverity("CRITICAL").Valid())
	assert.True(t, PaymentMethodCredits.Valid())
	assert.False(t, PaymentMethod("paypal").Valid())
}

func TestOrderTransitions(t *testing.T) {
	assert.True(t, CanTransitionOrder(OrderStatusPending, OrderStatusPaid))
	assert.True(t, CanTransitionOrder(OrderStatusPaid, OrderStatusConfirmed))
	assert.True(t, CanTransitionOrder(OrderStatusPending, OrderStatusCancelled))
	assert.True(t, CanTransitionOrder(OrderStatusConfirmed, OrderStatusConfirmed))

	assert.False(t, CanTransitionOrder(OrderStatusPending, OrderStatusConfirmed))
	assert.False(t, CanTransitionOrder(OrderStatusCancelled, OrderStatusPaid))
	assert.False(t, CanTransitionOrder(OrderStatusConfirmed, OrderStatusCancelled))

	assert.ElementsMatch(t, []string{OrderStatusConfirmed, OrderStatusPaid}, PriorOrderStatuses(OrderStatusConfirmed))
}
