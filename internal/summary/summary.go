// Package summary projects cart lines or placed order items into the order
// summary and confirmation view.
package summary

import (
	"strings"

	"maritime-marketplace/internal/models"

	"github.com/shopspring/decimal"
)

// Post-purchase calls to action
const (
	ActionLaunchProducts   = "launch_products"
	ActionViewReports      = "view_reports"
	ActionContinueShopping = "continue_shopping"
)

// Line is one itemized row
type Line struct {
	ProductID     int64              `json:"productId"`
	Name          string             `json:"name"`
	Type          models.ProductType `json:"type"`
	Quantity      int                `json:"quantity"`
	UnitPrice     decimal.Decimal    `json:"unitPrice"`
	LinePrice     decimal.Decimal    `json:"linePrice"`
	LineCredits   int64              `json:"lineCredits"`
	FormattedLine string             `json:"formattedLinePrice"`
}

// Summary is the order summary projection
type Summary struct {
	Lines                 []Line          `json:"lines"`
	ItemCount             int             `json:"itemCount"`
	TotalPrice            decimal.Decimal `json:"totalPrice"`
	TotalCredits          int64           `json:"totalCredits"`
	FormattedTotal        string          `json:"formattedTotal"`
	HasLaunchableProducts bool            `json:"hasLaunchableProducts"`
	HasReports            bool            `json:"hasReports"`
	NextActions           []string        `json:"nextActions"`
}

// FromCartItems builds a summary from cart lines
func FromCartItems(items []models.CartItem) Summary {
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, Line{
			ProductID:   item.Product.ID,
			Name:        item.Product.Name,
			Type:        item.Product.Type,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice(),
			LinePrice:   item.LinePrice(),
			LineCredits: item.LineCredits(),
		})
	}
	return build(lines)
}

// FromOrderItems builds a summary from the items of a placed order
func FromOrderItems(items []models.OrderItem) Summary {
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		qty := decimal.NewFromInt(int64(item.Quantity))
		lines = append(lines, Line{
			ProductID:   item.ProductID,
			Name:        item.ProductName,
			Type:        item.ProductType,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LinePrice:   item.UnitPrice.Mul(qty),
			LineCredits: item.UnitCredits * int64(item.Quantity),
		})
	}
	return build(lines)
}

func build(lines []Line) Summary {
	s := Summary{Lines: lines, TotalPrice: decimal.Zero}
	for i := range lines {
		lines[i].FormattedLine = FormatUSD(lines[i].LinePrice)
		s.ItemCount += lines[i].Quantity
		s.TotalPrice = s.TotalPrice.Add(lines[i].LinePrice)
		s.TotalCredits += lines[i].LineCredits
		if lines[i].Type.IsLaunchable() {
			s.HasLaunchableProducts = true
		}
		if lines[i].Type.IsReport() {
			s.HasReports = true
		}
	}
	s.FormattedTotal = FormatUSD(s.TotalPrice)

	if s.HasLaunchableProducts {
		s.NextActions = append(s.NextActions, ActionLaunchProducts)
	}
	if s.HasReports {
		s.NextActions = append(s.NextActions, ActionViewReports)
	}
	if len(s.NextActions) == 0 {
		s.NextActions = []string{ActionContinueShopping}
	}
	return s
}

// FormatUSD renders an amount as "$1,234.50"
func FormatUSD(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	fixed := amount.StringFixed(2)
	whole, frac := fixed, ""
	if dot := strings.IndexByte(fixed, '.'); dot >= 0 {
		whole, frac = fixed[:dot], fixed[dot:]
	}

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String() + frac
}
