package dispatch

import (
	"github.com/yourorg/klarna-connector/internal/format"
)

// Order management operations.

type GetOrder struct {
	sealed
	OrderID string
}

type AcknowledgeOrder struct {
	sealed
	OrderID string
}

type SetMerchantReferences struct {
	sealed
	OrderID            string
	MerchantReference1 string
	MerchantReference2 string
}

type ExtendAuthorization struct {
	sealed
	OrderID string
}

type UpdateCustomerDetails struct {
	sealed
	OrderID                      string
	DateOfBirth                  string
	NationalIdentificationNumber string
}

type UpdateBillingAddress struct {
	sealed
	OrderID string
	Address format.Address
}

type UpdateShippingAddress struct {
	sealed
	OrderID string
	Address format.Address
}

type CancelOrder struct {
	sealed
	OrderID string
}

type ReleaseAuthorization struct {
	sealed
	OrderID string
}

// ShippingInfo describes one shipment attached to a capture.
type ShippingInfo struct {
	ShippingCompany       string `json:"shipping_company,omitempty"`
	ShippingMethod        string `json:"shipping_method,omitempty"`
	TrackingNumber        string `json:"tracking_number,omitempty"`
	TrackingURI           string `json:"tracking_uri,omitempty"`
	ReturnShippingCompany string `json:"return_shipping_company,omitempty"`
	ReturnTrackingNumber  string `json:"return_tracking_number,omitempty"`
	ReturnTrackingURI     string `json:"return_tracking_uri,omitempty"`
}

func shippingInfoFrom(m map[string]any) ShippingInfo {
	return ShippingInfo{
		ShippingCompany:       format.Stringify(m["shipping_company"]),
		ShippingMethod:        format.Stringify(m["shipping_method"]),
		TrackingNumber:        format.Stringify(m["tracking_number"]),
		TrackingURI:           format.Stringify(m["tracking_uri"]),
		ReturnShippingCompany: format.Stringify(m["return_shipping_company"]),
		ReturnTrackingNumber:  format.Stringify(m["return_tracking_number"]),
		ReturnTrackingURI:     format.Stringify(m["return_tracking_uri"]),
	}
}

// CreateCapture captures part or all of an order. Currency is only needed
// for amountsInMajorUnits and for reporting.
type CreateCapture struct {
	sealed
	OrderID        string
	CapturedAmount int64
	Currency       string
	Description    string
	OrderLines     []format.OrderLine
	ShippingInfo   *ShippingInfo
}

type GetCapture struct {
	sealed
	OrderID   string
	CaptureID string
}

type AddShippingInfo struct {
	sealed
	OrderID      string
	CaptureID    string
	ShippingInfo *ShippingInfo
}

type TriggerResend struct {
	sealed
	OrderID   string
	CaptureID string
}

type CreateRefund struct {
	sealed
	OrderID        string
	RefundedAmount int64
	Currency       string
	Description    string
	OrderLines     []format.OrderLine
}

type GetRefund struct {
	sealed
	OrderID  string
	RefundID string
}

func (o CreateCapture) Amount() (int64, string) { return o.CapturedAmount, o.Currency }

func (o CreateRefund) Amount() (int64, string) { return o.RefundedAmount, o.Currency }

// orderOp builds an operation that only needs orderId.
func orderOp(build func(orderID string) Operation) parseFunc {
	return func(p params) (Operation, error) {
		if err := p.require("orderId"); err != nil {
			return nil, err
		}
		return build(p.str("orderId")), nil
	}
}

// captureOp builds an operation that needs orderId and captureId.
func captureOp(build func(orderID, captureID string, p params) Operation) parseFunc {
	return func(p params) (Operation, error) {
		if err := p.require("orderId", "captureId"); err != nil {
			return nil, err
		}
		return build(p.str("orderId"), p.str("captureId"), p), nil
	}
}

func addressParam(p params, name string) format.Address {
	if addr, ok := nested(p.collection(name), "address"); ok {
		return format.FormatAddress(addr)
	}
	return format.Address{}
}

func init() {
	register("order", map[string]parseFunc{
		"get":         orderOp(func(id string) Operation { return GetOrder{OrderID: id} }),
		"acknowledge": orderOp(func(id string) Operation { return AcknowledgeOrder{OrderID: id} }),
		"setMerchantReferences": func(p params) (Operation, error) {
			if err := p.require("orderId"); err != nil {
				return nil, err
			}
			return SetMerchantReferences{
				OrderID:            p.str("orderId"),
				MerchantReference1: p.str("merchantReference1"),
				MerchantReference2: p.str("merchantReference2"),
			}, nil
		},
		"extendAuthorization": orderOp(func(id string) Operation { return ExtendAuthorization{OrderID: id} }),
		"updateCustomerDetails": func(p params) (Operation, error) {
			if err := p.require("orderId"); err != nil {
				return nil, err
			}
			op := UpdateCustomerDetails{OrderID: p.str("orderId")}
			if d, ok := nested(p.collection("customerDetails"), "details"); ok {
				if format.Truthy(d["date_of_birth"]) {
					op.DateOfBirth = format.Stringify(d["date_of_birth"])
				}
				if format.Truthy(d["national_identification_number"]) {
					op.NationalIdentificationNumber = format.Stringify(d["national_identification_number"])
				}
			}
			return op, nil
		},
		"updateBillingAddress": func(p params) (Operation, error) {
			if err := p.require("orderId"); err != nil {
				return nil, err
			}
			return UpdateBillingAddress{OrderID: p.str("orderId"), Address: addressParam(p, "billingAddress")}, nil
		},
		"updateShippingAddress": func(p params) (Operation, error) {
			if err := p.require("orderId"); err != nil {
				return nil, err
			}
			return UpdateShippingAddress{OrderID: p.str("orderId"), Address: addressParam(p, "shippingAddress")}, nil
		},
		"cancel":               orderOp(func(id string) Operation { return CancelOrder{OrderID: id} }),
		"releaseAuthorization": orderOp(func(id string) Operation { return ReleaseAuthorization{OrderID: id} }),
	})

	register("capture", map[string]parseFunc{
		"create": func(p params) (Operation, error) {
			if err := p.require("orderId", "capturedAmount"); err != nil {
				return nil, err
			}
			op := CreateCapture{OrderID: p.str("orderId"), Currency: p.str("currency")}
			var err error
			if op.CapturedAmount, err = p.amount("capturedAmount", "currency"); err != nil {
				return nil, err
			}
			opts := p.collection("captureOptions")
			if format.Truthy(opts["description"]) {
				op.Description = format.Stringify(opts["description"])
			}
			if format.Truthy(opts["orderLines"]) {
				if op.OrderLines, err = orderLinesFrom(opts["orderLines"]); err != nil {
					return nil, err
				}
			}
			if info, ok := nested(opts, "shippingInfo", "info"); ok {
				si := shippingInfoFrom(info)
				op.ShippingInfo = &si
			}
			return op, nil
		},
		"get": captureOp(func(orderID, captureID string, _ params) Operation {
			return GetCapture{OrderID: orderID, CaptureID: captureID}
		}),
		"addShippingInfo": captureOp(func(orderID, captureID string, p params) Operation {
			op := AddShippingInfo{OrderID: orderID, CaptureID: captureID}
			if info, ok := nested(p.collection("shippingInfo"), "info"); ok {
				si := shippingInfoFrom(info)
				op.ShippingInfo = &si
			}
			return op
		}),
		"triggerResend": captureOp(func(orderID, captureID string, _ params) Operation {
			return TriggerResend{OrderID: orderID, CaptureID: captureID}
		}),
	})

	register("refund", map[string]parseFunc{
		"create": func(p params) (Operation, error) {
			if err := p.require("orderId", "refundedAmount"); err != nil {
				return nil, err
			}
			op := CreateRefund{OrderID: p.str("orderId"), Currency: p.str("currency")}
			var err error
			if op.RefundedAmount, err = p.amount("refundedAmount", "currency"); err != nil {
				return nil, err
			}
			opts := p.collection("refundOptions")
			if format.Truthy(opts["description"]) {
				op.Description = format.Stringify(opts["description"])
			}
			if format.Truthy(opts["orderLines"]) {
				if op.OrderLines, err = orderLinesFrom(opts["orderLines"]); err != nil {
					return nil, err
				}
			}
			return op, nil
		},
		"get": func(p params) (Operation, error) {
			if err := p.require("orderId", "refundId"); err != nil {
				return nil, err
			}
			return GetRefund{OrderID: p.str("orderId"), RefundID: p.str("refundId")}, nil
		},
	})
}
