package dispatch

import (
	"net/url"

	"github.com/yourorg/klarna-connector/internal/format"
)

// Hosted payment page operations.

// HPPOptions customizes the hosted payment page.
type HPPOptions struct {
	BackgroundImageURL string `json:"background_image_url,omitempty"`
	LogoURL            string `json:"logo_url,omitempty"`
	PageTitle          string `json:"page_title,omitempty"`
}

// merchantURLKeys are the redirect and callback URLs an HPP session accepts.
var merchantURLKeys = []string{"success", "cancel", "back", "failure", "error", "status_update"}

type CreateHPPSession struct {
	sealed
	PaymentSessionURL string
	MerchantURLs      map[string]string
	Options           *HPPOptions // nil when no option is set
}

type GetHPPSession struct {
	sealed
	SessionID string
}

// DistributeHPPSession sends the payment link by email or SMS.
type DistributeHPPSession struct {
	sealed
	SessionID    string
	Method       string // "email" or "sms"
	Template     string
	Email        string
	Phone        string
	PhoneCountry string
}

type DisableHPPSession struct {
	sealed
	SessionID string
}

// Settlement operations. Filters are passed as query parameters.

type GetPayouts struct {
	sealed
	Filters   url.Values
	ReturnAll bool
}

type GetPayout struct {
	sealed
	PaymentReference string
}

type GetPayoutSummary struct {
	sealed
	PaymentReference string
}

type GetTransactions struct {
	sealed
	Filters   url.Values
	ReturnAll bool
}

// Dispute operations.

type ListDisputes struct {
	sealed
	Filters   url.Values
	ReturnAll bool
}

type GetDispute struct {
	sealed
	DisputeID string
}

type AcceptDispute struct {
	sealed
	DisputeID string
}

type AddDisputeFile struct {
	sealed
	DisputeID   string
	FileContent string // base64
	FileName    string
	ContentType string
}

type SubmitDisputeResponse struct {
	sealed
	DisputeID    string
	ResponseText string
}

// Customer token operations.

type GetCustomerToken struct {
	sealed
	CustomerToken string
}

// CreateCustomerTokenOrder charges a stored customer token.
type CreateCustomerTokenOrder struct {
	sealed
	CustomerToken string
	Session       SessionDetails
	AutoCapture   bool
	MerchantData  string
}

// Merchant card operations.

type CreateMerchantCardSession struct {
	sealed
	OrderID          string
	PurchaseCurrency string
	OrderAmount      int64
}

type GetMerchantCardSession struct {
	sealed
	SessionID string
}

type RetrieveCard struct {
	sealed
	SessionID string
}

// SettleMerchantCard settles a virtual card. A zero amount settles the
// full session amount.
type SettleMerchantCard struct {
	sealed
	SessionID        string
	SettlementAmount int64
	Currency         string
}

func (o CreateCustomerTokenOrder) Amount() (int64, string) {
	return o.Session.OrderAmount, o.Session.PurchaseCurrency
}

func (o CreateMerchantCardSession) Amount() (int64, string) {
	return o.OrderAmount, o.PurchaseCurrency
}

func (o SettleMerchantCard) Amount() (int64, string) {
	return o.SettlementAmount, o.Currency
}

func idOp(param string, build func(id string) Operation) parseFunc {
	return func(p params) (Operation, error) {
		if err := p.require(param); err != nil {
			return nil, err
		}
		return build(p.str(param)), nil
	}
}

var (
	payoutFilters = map[string]string{
		"startDate":    "start_date",
		"endDate":      "end_date",
		"currencyCode": "currency_code",
		"size":         "size",
		"offset":       "offset",
	}
	transactionFilters = map[string]string{
		"orderId":      "order_id",
		"captureId":    "capture_id",
		"currencyCode": "currency_code",
		"size":         "size",
		"offset":       "offset",
	}
	disputeFilters = map[string]string{
		"status": "status",
		"size":   "size",
		"offset": "offset",
	}
)

func init() {
	register("hpp", map[string]parseFunc{
		"createSession": func(p params) (Operation, error) {
			if err := p.require("paymentSessionUrl"); err != nil {
				return nil, err
			}
			op := CreateHPPSession{
				PaymentSessionURL: p.str("paymentSessionUrl"),
				MerchantURLs:      map[string]string{},
			}
			if urls, ok := nested(p.collection("merchantUrls"), "urls"); ok {
				for _, k := range merchantURLKeys {
					if format.Truthy(urls[k]) {
						op.MerchantURLs[k] = format.Stringify(urls[k])
					}
				}
			}
			opts := p.collection("hppOptions")
			o := HPPOptions{
				BackgroundImageURL: format.Stringify(opts["backgroundImageUrl"]),
				LogoURL:            format.Stringify(opts["logoUrl"]),
				PageTitle:          format.Stringify(opts["pageTitle"]),
			}
			if o != (HPPOptions{}) {
				op.Options = &o
			}
			return op, nil
		},
		"getSession": idOp("sessionId", func(id string) Operation { return GetHPPSession{SessionID: id} }),
		"distribute": func(p params) (Operation, error) {
			if err := p.require("sessionId", "method"); err != nil {
				return nil, err
			}
			op := DistributeHPPSession{
				SessionID: p.str("sessionId"),
				Method:    p.str("method"),
				Template:  p.strOr("template", "PAY_BY_LINK"),
			}
			if op.Method == "email" {
				if err := p.require("email"); err != nil {
					return nil, err
				}
				op.Email = p.str("email")
			} else {
				if err := p.require("phone"); err != nil {
					return nil, err
				}
				op.Phone = p.str("phone")
				op.PhoneCountry = p.strOr("phoneCountry", "US")
			}
			return op, nil
		},
		"disable": idOp("sessionId", func(id string) Operation { return DisableHPPSession{SessionID: id} }),
	})

	register("settlement", map[string]parseFunc{
		"getPayouts": func(p params) (Operation, error) {
			return GetPayouts{
				Filters:   queryFrom(p.collection("filters"), payoutFilters),
				ReturnAll: p.bool("returnAll"),
			}, nil
		},
		"getPayout": idOp("paymentReference", func(ref string) Operation {
			return GetPayout{PaymentReference: ref}
		}),
		"getPayoutSummary": idOp("paymentReference", func(ref string) Operation {
			return GetPayoutSummary{PaymentReference: ref}
		}),
		"getTransactions": func(p params) (Operation, error) {
			qs := queryFrom(p.collection("transactionFilters"), transactionFilters)
			if ref := p.str("paymentReference"); ref != "" {
				qs.Set("payment_reference", ref)
			}
			return GetTransactions{Filters: qs, ReturnAll: p.bool("returnAll")}, nil
		},
	})

	register("dispute", map[string]parseFunc{
		"getAll": func(p params) (Operation, error) {
			return ListDisputes{
				Filters:   queryFrom(p.collection("filters"), disputeFilters),
				ReturnAll: p.bool("returnAll"),
			}, nil
		},
		"get":    idOp("disputeId", func(id string) Operation { return GetDispute{DisputeID: id} }),
		"accept": idOp("disputeId", func(id string) Operation { return AcceptDispute{DisputeID: id} }),
		"addFile": func(p params) (Operation, error) {
			if err := p.require("disputeId", "fileContent", "fileName", "contentType"); err != nil {
				return nil, err
			}
			return AddDisputeFile{
				DisputeID:   p.str("disputeId"),
				FileContent: p.str("fileContent"),
				FileName:    p.str("fileName"),
				ContentType: p.str("contentType"),
			}, nil
		},
		"submitResponse": func(p params) (Operation, error) {
			if err := p.require("disputeId", "responseText"); err != nil {
				return nil, err
			}
			return SubmitDisputeResponse{DisputeID: p.str("disputeId"), ResponseText: p.str("responseText")}, nil
		},
	})

	register("customerToken", map[string]parseFunc{
		"get": idOp("customerToken", func(t string) Operation { return GetCustomerToken{CustomerToken: t} }),
		"createOrder": func(p params) (Operation, error) {
			if err := p.require("customerToken"); err != nil {
				return nil, err
			}
			d, err := parseSessionDetails(p)
			if err != nil {
				return nil, err
			}
			af := p.collection("additionalFields")
			if format.Truthy(af["merchantReference1"]) {
				d.MerchantReference1 = format.Stringify(af["merchantReference1"])
			}
			if format.Truthy(af["merchantReference2"]) {
				d.MerchantReference2 = format.Stringify(af["merchantReference2"])
			}
			op := CreateCustomerTokenOrder{
				CustomerToken: p.str("customerToken"),
				Session:       d,
				AutoCapture:   format.Truthy(af["autoCapture"]),
			}
			if format.Truthy(af["merchantData"]) {
				op.MerchantData = format.Stringify(af["merchantData"])
			}
			return op, nil
		},
	})

	register("merchantCard", map[string]parseFunc{
		"createSession": func(p params) (Operation, error) {
			if err := p.require("orderId", "purchaseCurrency", "orderAmount"); err != nil {
				return nil, err
			}
			amount, err := p.amount("orderAmount", "purchaseCurrency")
			if err != nil {
				return nil, err
			}
			return CreateMerchantCardSession{
				OrderID:          p.str("orderId"),
				PurchaseCurrency: p.str("purchaseCurrency"),
				OrderAmount:      amount,
			}, nil
		},
		"getSession":   idOp("sessionId", func(id string) Operation { return GetMerchantCardSession{SessionID: id} }),
		"retrieveCard": idOp("sessionId", func(id string) Operation { return RetrieveCard{SessionID: id} }),
		"settle": func(p params) (Operation, error) {
			if err := p.require("sessionId"); err != nil {
				return nil, err
			}
			amount, err := p.amount("settlementAmount", "currency")
			if err != nil {
				return nil, err
			}
			return SettleMerchantCard{SessionID: p.str("sessionId"), SettlementAmount: amount, Currency: p.str("currency")}, nil
		},
	})
}
