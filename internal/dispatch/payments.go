package dispatch

import (
	"github.com/yourorg/klarna-connector/internal/format"
)

// SessionDetails is the body shared by payment session create/update and
// customer token orders.
type SessionDetails struct {
	PurchaseCountry    string
	PurchaseCurrency   string
	Locale             string
	OrderAmount        int64
	OrderTaxAmount     int64
	OrderLines         []format.OrderLine
	MerchantReference1 string
	MerchantReference2 string
	BillingAddress     *format.Address
	ShippingAddress    *format.Address
}

func (d SessionDetails) body() map[string]any {
	body := map[string]any{
		"purchase_country":  d.PurchaseCountry,
		"purchase_currency": d.PurchaseCurrency,
		"locale":            d.Locale,
		"order_amount":      d.OrderAmount,
		"order_tax_amount":  d.OrderTaxAmount,
		"order_lines":       d.OrderLines,
	}
	if d.MerchantReference1 != "" {
		body["merchant_reference1"] = d.MerchantReference1
	}
	if d.MerchantReference2 != "" {
		body["merchant_reference2"] = d.MerchantReference2
	}
	if d.BillingAddress != nil {
		body["billing_address"] = d.BillingAddress
	}
	if d.ShippingAddress != nil {
		body["shipping_address"] = d.ShippingAddress
	}
	return body
}

var sessionRequired = []string{"purchaseCountry", "purchaseCurrency", "locale", "orderAmount", "orderTaxAmount", "orderLines"}

func parseSessionDetails(p params) (SessionDetails, error) {
	if err := p.require(sessionRequired...); err != nil {
		return SessionDetails{}, err
	}
	d := SessionDetails{
		PurchaseCountry:  p.str("purchaseCountry"),
		PurchaseCurrency: p.str("purchaseCurrency"),
		Locale:           p.str("locale"),
	}
	var err error
	if d.OrderAmount, err = p.amount("orderAmount", "purchaseCurrency"); err != nil {
		return SessionDetails{}, err
	}
	if d.OrderTaxAmount, err = p.amount("orderTaxAmount", "purchaseCurrency"); err != nil {
		return SessionDetails{}, err
	}
	if d.OrderLines, err = p.orderLines("orderLines"); err != nil {
		return SessionDetails{}, err
	}
	return d, nil
}

// CreatePaymentSession starts a Klarna Payments session.
type CreatePaymentSession struct {
	sealed
	Session SessionDetails
}

// UpdatePaymentSession replaces the details of an open session.
type UpdatePaymentSession struct {
	sealed
	SessionID string
	Session   SessionDetails
}

type GetPaymentSession struct {
	sealed
	SessionID string
}

// CreateAuthorizationOrder places an order from an authorization token.
// Zero or empty fields are left out of the request.
type CreateAuthorizationOrder struct {
	sealed
	AuthorizationToken string
	AutoCapture        bool
	PurchaseCountry    string
	PurchaseCurrency   string
	OrderAmount        int64
	OrderTaxAmount     int64
}

type CancelAuthorization struct {
	sealed
	AuthorizationToken string
}

func (o CreatePaymentSession) Amount() (int64, string) {
	return o.Session.OrderAmount, o.Session.PurchaseCurrency
}

func (o UpdatePaymentSession) Amount() (int64, string) {
	return o.Session.OrderAmount, o.Session.PurchaseCurrency
}

func (o CreateAuthorizationOrder) Amount() (int64, string) {
	return o.OrderAmount, o.PurchaseCurrency
}

// sessionAdditional applies additionalFields of a payment session.
func sessionAdditional(p params, d *SessionDetails) {
	af := p.collection("additionalFields")
	if v := af["merchantReference1"]; format.Truthy(v) {
		d.MerchantReference1 = format.Stringify(v)
	}
	if v := af["merchantReference2"]; format.Truthy(v) {
		d.MerchantReference2 = format.Stringify(v)
	}
	if addr, ok := nested(af, "billingAddress", "address"); ok {
		a := format.FormatAddress(addr)
		d.BillingAddress = &a
	}
	if addr, ok := nested(af, "shippingAddress", "address"); ok {
		a := format.FormatAddress(addr)
		d.ShippingAddress = &a
	}
}

func init() {
	register("paymentSession", map[string]parseFunc{
		"create": func(p params) (Operation, error) {
			d, err := parseSessionDetails(p)
			if err != nil {
				return nil, err
			}
			sessionAdditional(p, &d)
			return CreatePaymentSession{Session: d}, nil
		},
		"update": func(p params) (Operation, error) {
			if err := p.require("sessionId"); err != nil {
				return nil, err
			}
			d, err := parseSessionDetails(p)
			if err != nil {
				return nil, err
			}
			sessionAdditional(p, &d)
			return UpdatePaymentSession{SessionID: p.str("sessionId"), Session: d}, nil
		},
		"get": func(p params) (Operation, error) {
			if err := p.require("sessionId"); err != nil {
				return nil, err
			}
			return GetPaymentSession{SessionID: p.str("sessionId")}, nil
		},
		"createAuthorization": func(p params) (Operation, error) {
			if err := p.require("authorizationToken"); err != nil {
				return nil, err
			}
			opts := p.collection("authorizationOptions")
			op := CreateAuthorizationOrder{
				AuthorizationToken: p.str("authorizationToken"),
				AutoCapture:        format.Truthy(opts["autoCapture"]),
			}
			if v := opts["purchaseCountry"]; format.Truthy(v) {
				op.PurchaseCountry = format.Stringify(v)
			}
			if v := opts["purchaseCurrency"]; format.Truthy(v) {
				op.PurchaseCurrency = format.Stringify(v)
			}
			var err error
			if op.OrderAmount, err = p.optionalAmount(opts, "orderAmount", op.PurchaseCurrency, "purchaseCurrency"); err != nil {
				return nil, err
			}
			if op.OrderTaxAmount, err = p.optionalAmount(opts, "orderTaxAmount", op.PurchaseCurrency, "purchaseCurrency"); err != nil {
				return nil, err
			}
			return op, nil
		},
		"cancelAuthorization": func(p params) (Operation, error) {
			if err := p.require("authorizationToken"); err != nil {
				return nil, err
			}
			return CancelAuthorization{AuthorizationToken: p.str("authorizationToken")}, nil
		},
	})
}
