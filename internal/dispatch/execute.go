package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// call is the request an operation resolves to.
type call struct {
	method     string
	endpoint   string
	body       any
	query      url.Values
	itemsField string         // when set, every page's items are returned as records
	ack        map[string]any // returned instead of the response body
}

const (
	ordersPath   = "/ordermanagement/v1/orders/"
	disputesPath = "/disputes/v1/disputes/"
)

func success(key, id string) map[string]any {
	return map[string]any{"success": true, key: id}
}

func listCall(endpoint string, filters url.Values, returnAll bool, itemsField string) call {
	c := call{method: http.MethodGet, endpoint: endpoint, query: filters}
	if returnAll {
		c.itemsField = itemsField
	}
	return c
}

// plan maps an operation to its request.
func plan(op Operation) (call, error) {
	switch o := op.(type) {
	// payment sessions
	case CreatePaymentSession:
		return call{method: http.MethodPost, endpoint: "/payments/v1/sessions", body: o.Session.body()}, nil
	case GetPaymentSession:
		return call{method: http.MethodGet, endpoint: "/payments/v1/sessions/" + o.SessionID}, nil
	case UpdatePaymentSession:
		return call{method: http.MethodPost, endpoint: "/payments/v1/sessions/" + o.SessionID, body: o.Session.body()}, nil
	case CreateAuthorizationOrder:
		body := map[string]any{}
		if o.AutoCapture {
			body["auto_capture"] = true
		}
		if o.PurchaseCountry != "" {
			body["purchase_country"] = o.PurchaseCountry
		}
		if o.PurchaseCurrency != "" {
			body["purchase_currency"] = o.PurchaseCurrency
		}
		if o.OrderAmount != 0 {
			body["order_amount"] = o.OrderAmount
		}
		if o.OrderTaxAmount != 0 {
			body["order_tax_amount"] = o.OrderTaxAmount
		}
		return call{method: http.MethodPost, endpoint: "/payments/v1/authorizations/" + o.AuthorizationToken + "/order", body: body}, nil
	case CancelAuthorization:
		return call{method: http.MethodDelete, endpoint: "/payments/v1/authorizations/" + o.AuthorizationToken,
			ack: map[string]any{"success": true}}, nil

	// orders
	case GetOrder:
		return call{method: http.MethodGet, endpoint: ordersPath + o.OrderID}, nil
	case AcknowledgeOrder:
		return call{method: http.MethodPost, endpoint: ordersPath + o.OrderID + "/acknowledge", ack: success("order_id", o.OrderID)}, nil
	case SetMerchantReferences:
		body := map[string]any{}
		if o.MerchantReference1 != "" {
			body["merchant_reference1"] = o.MerchantReference1
		}
		if o.MerchantReference2 != "" {
			body["merchant_reference2"] = o.MerchantReference2
		}
		return call{method: http.MethodPatch, endpoint: ordersPath + o.OrderID + "/merchant-references", body: body,
			ack: success("order_id", o.OrderID)}, nil
	case ExtendAuthorization:
		return call{method: http.MethodPost, endpoint: ordersPath + o.OrderID + "/extend-authorization-time",
			ack: success("order_id", o.OrderID)}, nil
	case UpdateCustomerDetails:
		body := map[string]any{}
		if o.DateOfBirth != "" {
			body["date_of_birth"] = o.DateOfBirth
		}
		if o.NationalIdentificationNumber != "" {
			body["national_identification_number"] = o.NationalIdentificationNumber
		}
		return call{method: http.MethodPatch, endpoint: ordersPath + o.OrderID + "/customer-details", body: body,
			ack: success("order_id", o.OrderID)}, nil
	case UpdateBillingAddress:
		return call{method: http.MethodPatch, endpoint: ordersPath + o.OrderID + "/billing-address", body: o.Address,
			ack: success("order_id", o.OrderID)}, nil
	case UpdateShippingAddress:
		return call{method: http.MethodPatch, endpoint: ordersPath + o.OrderID + "/shipping-address", body: o.Address,
			ack: success("order_id", o.OrderID)}, nil
	case CancelOrder:
		return call{method: http.MethodPost, endpoint: ordersPath + o.OrderID + "/cancel", ack: success("order_id", o.OrderID)}, nil
	case ReleaseAuthorization:
		return call{method: http.MethodPost, endpoint: ordersPath + o.OrderID + "/release-remaining-authorization",
			ack: success("order_id", o.OrderID)}, nil

	// captures
	case CreateCapture:
		body := map[string]any{"captured_amount": o.CapturedAmount}
		if o.Description != "" {
			body["description"] = o.Description
		}
		if o.OrderLines != nil {
			body["order_lines"] = o.OrderLines
		}
		if o.ShippingInfo != nil {
			body["shipping_info"] = []ShippingInfo{*o.ShippingInfo}
		}
		return call{method: http.MethodPost, endpoint: ordersPath + o.OrderID + "/captures", body: body}, nil
	case GetCapture:
		return call{method: http.MethodGet, endpoint: ordersPath + o.OrderID + "/captures/" + o.CaptureID}, nil
	case AddShippingInfo:
		infos := []ShippingInfo{}
		if o.ShippingInfo != nil {
			infos = append(infos, *o.ShippingInfo)
		}
		return call{method: http.MethodPost, endpoint: ordersPath + o.OrderID + "/captures/" + o.CaptureID + "/shipping-info",
			body: map[string]any{"shipping_info": infos}, ack: success("capture_id", o.CaptureID)}, nil
	case TriggerResend:
		return call{method: http.MethodPost, endpoint: ordersPath + o.OrderID + "/captures/" + o.CaptureID + "/trigger-send-out",
			ack: success("capture_id", o.CaptureID)}, nil

	// refunds
	case CreateRefund:
		body := map[string]any{"refunded_amount": o.RefundedAmount}
		if o.Description != "" {
			body["description"] = o.Description
		}
		if o.OrderLines != nil {
			body["order_lines"] = o.OrderLines
		}
		return call{method: http.MethodPost, endpoint: ordersPath + o.OrderID + "/refunds", body: body}, nil
	case GetRefund:
		return call{method: http.MethodGet, endpoint: ordersPath + o.OrderID + "/refunds/" + o.RefundID}, nil

	// hosted payment page
	case CreateHPPSession:
		body := map[string]any{
			"payment_session_url": o.PaymentSessionURL,
			"merchant_urls":       o.MerchantURLs,
		}
		if o.Options != nil {
			body["options"] = o.Options
		}
		return call{method: http.MethodPost, endpoint: "/hpp/v1/sessions", body: body}, nil
	case GetHPPSession:
		return call{method: http.MethodGet, endpoint: "/hpp/v1/sessions/" + o.SessionID}, nil
	case DistributeHPPSession:
		contact := map[string]any{}
		if o.Method == "email" {
			contact["email"] = o.Email
		} else {
			contact["phone"] = o.Phone
			contact["phone_country"] = o.PhoneCountry
		}
		body := map[string]any{"method": o.Method, "template": o.Template, "contact_information": contact}
		return call{method: http.MethodPost, endpoint: "/hpp/v1/sessions/" + o.SessionID + "/distribution", body: body}, nil
	case DisableHPPSession:
		return call{method: http.MethodDelete, endpoint: "/hpp/v1/sessions/" + o.SessionID, ack: success("session_id", o.SessionID)}, nil

	// settlements
	case GetPayouts:
		return listCall("/settlements/v1/payouts", o.Filters, o.ReturnAll, "payouts"), nil
	case GetPayout:
		return call{method: http.MethodGet, endpoint: "/settlements/v1/payouts/" + o.PaymentReference}, nil
	case GetPayoutSummary:
		return call{method: http.MethodGet, endpoint: "/settlements/v1/payouts/" + o.PaymentReference + "/summary"}, nil
	case GetTransactions:
		return listCall("/settlements/v1/transactions", o.Filters, o.ReturnAll, "transactions"), nil

	// disputes
	case ListDisputes:
		return listCall("/disputes/v1/disputes", o.Filters, o.ReturnAll, "disputes"), nil
	case GetDispute:
		return call{method: http.MethodGet, endpoint: disputesPath + o.DisputeID}, nil
	case AcceptDispute:
		return call{method: http.MethodPost, endpoint: disputesPath + o.DisputeID + "/accept", ack: success("dispute_id", o.DisputeID)}, nil
	case AddDisputeFile:
		body := map[string]any{"file_content": o.FileContent, "file_name": o.FileName, "content_type": o.ContentType}
		return call{method: http.MethodPost, endpoint: disputesPath + o.DisputeID + "/files", body: body}, nil
	case SubmitDisputeResponse:
		return call{method: http.MethodPost, endpoint: disputesPath + o.DisputeID + "/submit",
			body: map[string]any{"response_text": o.ResponseText}, ack: success("dispute_id", o.DisputeID)}, nil

	// customer tokens
	case GetCustomerToken:
		return call{method: http.MethodGet, endpoint: "/customer-token/v1/tokens/" + o.CustomerToken}, nil
	case CreateCustomerTokenOrder:
		body := o.Session.body()
		if o.AutoCapture {
			body["auto_capture"] = true
		}
		if o.MerchantData != "" {
			body["merchant_data"] = o.MerchantData
		}
		return call{method: http.MethodPost, endpoint: "/customer-token/v1/tokens/" + o.CustomerToken + "/order", body: body}, nil

	// merchant cards
	case CreateMerchantCardSession:
		body := map[string]any{"order_id": o.OrderID, "purchase_currency": o.PurchaseCurrency, "order_amount": o.OrderAmount}
		return call{method: http.MethodPost, endpoint: "/merchantcard/v3/sessions", body: body}, nil
	case GetMerchantCardSession:
		return call{method: http.MethodGet, endpoint: "/merchantcard/v3/sessions/" + o.SessionID}, nil
	case RetrieveCard:
		return call{method: http.MethodPost, endpoint: "/merchantcard/v3/sessions/" + o.SessionID + "/cards"}, nil
	case SettleMerchantCard:
		body := map[string]any{}
		if o.SettlementAmount > 0 {
			body["settlement_amount"] = o.SettlementAmount
		}
		return call{method: http.MethodPost, endpoint: "/merchantcard/v3/sessions/" + o.SessionID + "/settle", body: body}, nil

	default:
		return call{}, fmt.Errorf("dispatch: unhandled operation %T", op)
	}
}

// Execute performs op and returns its output records: the response body,
// the acknowledgement object for calls that discard it, or one record per
// item when paginating.
func Execute(ctx context.Context, client APIClient, op Operation) ([]map[string]any, error) {
	c, err := plan(op)
	if err != nil {
		return nil, err
	}

	if c.itemsField != "" {
		items, err := client.RequestAllItems(ctx, c.method, c.endpoint, c.body, c.query, c.itemsField)
		if err != nil {
			return nil, err
		}
		records := make([]map[string]any, 0, len(items))
		for _, item := range items {
			if m, ok := item.(map[string]any); ok {
				records = append(records, m)
			} else {
				records = append(records, map[string]any{"value": item})
			}
		}
		return records, nil
	}

	resp, err := client.Request(ctx, c.method, c.endpoint, c.body, c.query)
	if err != nil {
		return nil, err
	}
	if c.ack != nil {
		return []map[string]any{c.ack}, nil
	}
	return []map[string]any{resp}, nil
}
