package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/klarna-connector/internal/apperror"
	"github.com/yourorg/klarna-connector/internal/credentials"
	"github.com/yourorg/klarna-connector/internal/transport"
)

// MockRequester is a testify mock of transport.Requester.
type MockRequester struct {
	mock.Mock
}

func (m *MockRequester) Do(ctx context.Context, credentialName string, req transport.Request) ([]byte, error) {
	args := m.Called(ctx, credentialName, req)
	body, _ := args.Get(0).([]byte)
	return body, args.Error(1)
}

func newStore(t *testing.T) *credentials.InMemoryStore {
	t.Helper()
	store := credentials.NewInMemoryStore()
	for _, name := range []string{"klarnaApi", "secondary"} {
		require.NoError(t, store.Add(name, credentials.Credentials{
			Environment: credentials.Playground, Region: credentials.RegionEU, Username: "PK", Password: "pw",
		}))
	}
	return store
}

func urlIs(url string) interface{} {
	return mock.MatchedBy(func(r transport.Request) bool { return r.URL == url })
}

const base = "https://api.playground.klarna.com"

func TestNewExecutor(t *testing.T) {
	ex := NewExecutor(new(MockRequester), credentials.NewInMemoryStore(), "")
	assert.NotNil(t, ex)
	assert.Panics(t, func() { NewExecutor(nil, credentials.NewInMemoryStore(), "") })
	assert.Panics(t, func() { NewExecutor(new(MockRequester), nil, "") })
}

func TestExecutor_Execute_AllSucceed(t *testing.T) {
	req := new(MockRequester)
	req.On("Do", mock.Anything, "klarnaApi", urlIs(base+"/ordermanagement/v1/orders/o1")).
		Return([]byte(`{"order_id":"o1","status":"AUTHORIZED"}`), nil).Once()
	req.On("Do", mock.Anything, "klarnaApi", urlIs(base+"/ordermanagement/v1/orders/o2")).
		Return([]byte(`{"order_id":"o2","status":"CAPTURED"}`), nil).Once()

	initial := testutil.ToFloat64(GetRecordsTotal().WithLabelValues("order", "get", "success"))

	ex := NewExecutor(req, newStore(t), "")
	res, err := ex.Execute(context.Background(), Batch{
		Resource:  "order",
		Operation: "get",
		Items:     []map[string]any{{"orderId": "o1"}, {"orderId": "o2"}},
	})
	require.NoError(t, err)
	req.AssertExpectations(t)

	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "o1", res.Items[0].JSON["order_id"])
	assert.Equal(t, 0, res.Items[0].PairedItem.Item)
	assert.Equal(t, "CAPTURED", res.Items[1].JSON["status"])
	assert.Equal(t, 1, res.Items[1].PairedItem.Item)

	assert.Equal(t, 2, res.Report.TotalRecords)
	assert.Equal(t, 2, res.Report.Succeeded)
	assert.Equal(t, map[string]int{"order.get": 2}, res.Report.ByOperation)
	assert.Equal(t, initial+2, testutil.ToFloat64(GetRecordsTotal().WithLabelValues("order", "get", "success")))
}

func TestExecutor_Execute_UsesNamedCredential(t *testing.T) {
	req := new(MockRequester)
	req.On("Do", mock.Anything, "secondary", mock.Anything).Return([]byte(`{}`), nil).Once()

	ex := NewExecutor(req, newStore(t), "")
	res, err := ex.Execute(context.Background(), Batch{
		Resource:   "order",
		Operation:  "acknowledge",
		Credential: "secondary",
		Items:      []map[string]any{{"orderId": "o9"}},
	})
	require.NoError(t, err)
	req.AssertExpectations(t)
	assert.Equal(t, map[string]any{"success": true, "order_id": "o9"}, res.Items[0].JSON)
}

func TestExecutor_Execute_ContinueOnFail(t *testing.T) {
	req := new(MockRequester)
	req.On("Do", mock.Anything, "klarnaApi", urlIs(base+"/ordermanagement/v1/orders/o1")).
		Return(nil, &transport.HTTPError{StatusCode: 404, ErrorCode: "NOT_FOUND", Messages: []string{"Order not found"}}).Once()
	req.On("Do", mock.Anything, "klarnaApi", urlIs(base+"/ordermanagement/v1/orders/o3")).
		Return([]byte(`{"order_id":"o3"}`), nil).Once()

	initialFailures := testutil.ToFloat64(GetRecordsTotal().WithLabelValues("order", "get", "failure"))

	ex := NewExecutor(req, newStore(t), "")
	res, err := ex.Execute(context.Background(), Batch{
		Resource:       "order",
		Operation:      "get",
		ContinueOnFail: true,
		Items:          []map[string]any{{"orderId": "o1"}, {}, {"orderId": "o3"}},
	})
	require.NoError(t, err)
	req.AssertExpectations(t)
	req.AssertNumberOfCalls(t, "Do", 2)

	require.Len(t, res.Items, 3)
	assert.Equal(t, map[string]any{"error": "NOT_FOUND: Order not found"}, res.Items[0].JSON)
	assert.Equal(t, map[string]any{"error": `Required field "orderId" is missing`}, res.Items[1].JSON)
	assert.Equal(t, 1, res.Items[1].PairedItem.Item)
	assert.Equal(t, "o3", res.Items[2].JSON["order_id"])

	assert.Equal(t, 1, res.Report.Succeeded)
	assert.Equal(t, 2, res.Report.Failed)
	assert.Equal(t, map[string]int{apperror.KindUpstream: 1, apperror.KindValidation: 1}, res.Report.ErrorBreakdown)
	assert.Equal(t, initialFailures+2, testutil.ToFloat64(GetRecordsTotal().WithLabelValues("order", "get", "failure")))
}

func TestExecutor_Execute_AbortsOnFirstFailure(t *testing.T) {
	req := new(MockRequester)
	req.On("Do", mock.Anything, "klarnaApi", mock.Anything).
		Return(nil, &transport.HTTPError{StatusCode: 500}).Once()

	ex := NewExecutor(req, newStore(t), "")
	res, err := ex.Execute(context.Background(), Batch{
		Resource:  "order",
		Operation: "cancel",
		Items:     []map[string]any{{"orderId": "o1"}, {"orderId": "o2"}},
	})
	require.Error(t, err)
	assert.Nil(t, res)
	req.AssertNumberOfCalls(t, "Do", 1)

	var recErr *RecordError
	require.True(t, errors.As(err, &recErr))
	assert.Equal(t, 0, recErr.Item)
	assert.Equal(t, apperror.KindUpstream, apperror.Kind(err))

	var apiErr *apperror.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 500, apiErr.StatusCode)
}

func TestExecutor_Execute_ValidationFailsBeforeNetwork(t *testing.T) {
	req := new(MockRequester)

	ex := NewExecutor(req, newStore(t), "")
	_, err := ex.Execute(context.Background(), Batch{
		Resource:  "paymentSession",
		Operation: "create",
		Items:     []map[string]any{{"purchaseCountry": "SE"}},
	})
	require.Error(t, err)
	assert.Equal(t, apperror.KindValidation, apperror.Kind(err))
	assert.Contains(t, err.Error(), "item 0:")
	req.AssertNotCalled(t, "Do", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecutor_Execute_UnknownOperation(t *testing.T) {
	ex := NewExecutor(new(MockRequester), newStore(t), "")
	_, err := ex.Execute(context.Background(), Batch{Resource: "order", Operation: "explode", Items: []map[string]any{{}}})
	require.Error(t, err)
	assert.Equal(t, apperror.KindValidation, apperror.Kind(err))
}

func TestExecutor_Execute_ReportsAmounts(t *testing.T) {
	req := new(MockRequester)
	req.On("Do", mock.Anything, "klarnaApi", mock.Anything).Return([]byte(`{"capture_id":"c"}`), nil)

	ex := NewExecutor(req, newStore(t), "")
	res, err := ex.Execute(context.Background(), Batch{
		Resource:  "capture",
		Operation: "create",
		Items: []map[string]any{
			{"orderId": "o1", "capturedAmount": float64(1050), "currency": "EUR"},
			{"orderId": "o2", "capturedAmount": float64(20.25), "currency": "EUR", "amountsInMajorUnits": true},
			{"orderId": "o3", "capturedAmount": float64(700)},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Report.AmountByCurrency, 1)
	assert.Equal(t, "30.75", res.Report.AmountByCurrency["EUR"].String())
}

func TestExecutor_Execute_ReturnAllFansOut(t *testing.T) {
	req := new(MockRequester)
	req.On("Do", mock.Anything, "klarnaApi", mock.Anything).
		Return([]byte(`{"disputes":[{"dispute_id":"d1"},{"dispute_id":"d2"}]}`), nil).Once()

	ex := NewExecutor(req, newStore(t), "")
	res, err := ex.Execute(context.Background(), Batch{
		Resource:  "dispute",
		Operation: "getAll",
		Items:     []map[string]any{{"returnAll": true}},
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "d2", res.Items[1].JSON["dispute_id"])
	assert.Equal(t, 0, res.Items[1].PairedItem.Item)
}

func TestExecutor_Execute_EmptyBatch(t *testing.T) {
	ex := NewExecutor(new(MockRequester), newStore(t), "")
	res, err := ex.Execute(context.Background(), Batch{Resource: "order", Operation: "get"})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.NotNil(t, res.Items)
	assert.Zero(t, res.Report.TotalRecords)
}
