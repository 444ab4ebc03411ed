// Package format shapes caller-supplied values into the request bodies the
// Klarna API accepts: order lines, addresses and required-field checks.
package format

import (
	"encoding/json"
	"math"

	"github.com/yourorg/klarna-connector/internal/apperror"
)

// Order line types accepted by the API.
const (
	LineTypePhysical    = "physical"
	LineTypeDigital     = "digital"
	LineTypeShippingFee = "shipping_fee"
	LineTypeSalesTax    = "sales_tax"
	LineTypeDiscount    = "discount"
	LineTypeStoreCredit = "store_credit"
	LineTypeGiftCard    = "gift_card"
	LineTypeSurcharge   = "surcharge"
)

// OrderLine is one line of an order. Amounts are minor units and TaxRate is
// in basis points (2500 = 25%).
type OrderLine struct {
	Type           string `json:"type"`
	Name           string `json:"name,omitempty"`
	Quantity       Number `json:"quantity"`
	UnitPrice      Number `json:"unit_price"`
	TaxRate        Number `json:"tax_rate"`
	TotalAmount    Number `json:"total_amount"`
	TotalTaxAmount Number `json:"total_tax_amount"`
	Reference      any    `json:"reference,omitempty"`
	ImageURL       any    `json:"image_url,omitempty"`
	ProductURL     any    `json:"product_url,omitempty"`
}

// FormatOrderLines parses a JSON array of order lines, applying the default
// type and casting the numeric fields. It does not check that the numbers
// are valid; see Number.Valid.
func FormatOrderLines(jsonText string) ([]OrderLine, error) {
	var parsed any
	if err := json.Unmarshal([]byte(jsonText), &parsed); err != nil {
		return nil, &apperror.ValidationError{Field: "orderLines", Message: "Invalid order lines JSON: " + err.Error()}
	}
	elems, ok := parsed.([]any)
	if !ok {
		return nil, &apperror.ValidationError{Field: "orderLines", Message: "Order lines must be an array"}
	}

	lines := make([]OrderLine, 0, len(elems))
	for _, elem := range elems {
		raw, _ := elem.(map[string]any)
		lines = append(lines, orderLineFrom(raw))
	}
	return lines, nil
}

func orderLineFrom(raw map[string]any) OrderLine {
	line := OrderLine{
		Type:           LineTypePhysical,
		Name:           Stringify(raw["name"]),
		Quantity:       castField(raw, "quantity"),
		UnitPrice:      castField(raw, "unit_price"),
		TaxRate:        castOrZero(raw, "tax_rate"),
		TotalAmount:    castField(raw, "total_amount"),
		TotalTaxAmount: castOrZero(raw, "total_tax_amount"),
		Reference:      raw["reference"],
		ImageURL:       raw["image_url"],
		ProductURL:     raw["product_url"],
	}
	if t := raw["type"]; Truthy(t) {
		line.Type = Stringify(t)
	}
	return line
}

// castField casts raw[key]; an absent key is NaN.
func castField(raw map[string]any, key string) Number {
	v, ok := raw[key]
	if !ok {
		return Number(math.NaN())
	}
	return ToNumber(v)
}

// castOrZero casts raw[key], using 0 when the value is absent or falsy.
func castOrZero(raw map[string]any, key string) Number {
	v := raw[key]
	if !Truthy(v) {
		return 0
	}
	return ToNumber(v)
}
