package transport

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/klarna-connector/internal/credentials"
)

func newStore(t *testing.T) *credentials.InMemoryStore {
	t.Helper()
	store := credentials.NewInMemoryStore()
	require.NoError(t, store.Add("klarnaApi", credentials.Credentials{
		Environment: credentials.Playground,
		Region:      credentials.RegionEU,
		Username:    "PK_user",
		Password:    "s3cret",
	}))
	return store
}

func histogramCount(t *testing.T, method string) uint64 {
	t.Helper()
	m := &dto.Metric{}
	obs, err := GetRequestDuration().GetMetricWithLabelValues(method)
	require.NoError(t, err)
	require.NoError(t, obs.(interface{ Write(*dto.Metric) error }).Write(m))
	return m.GetHistogram().GetSampleCount()
}

func TestNewBasicAuthRequester(t *testing.T) {
	r := NewBasicAuthRequester(newStore(t), nil)
	require.NotNil(t, r)
	assert.NotNil(t, r.httpClient)
	assert.Equal(t, defaultTimeout, r.httpClient.Timeout)

	assert.Panics(t, func() { NewBasicAuthRequester(nil, nil) })
}

func TestBasicAuthRequester_Do_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/payments/v1/sessions", r.URL.Path)
		assert.Equal(t, "sv", r.URL.Query().Get("locale"))

		expected := "Basic " + base64.StdEncoding.EncodeToString([]byte("PK_user:s3cret"))
		assert.Equal(t, expected, r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"purchase_country":"SE"}`, string(body))

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"session_id":"abc"}`))
	}))
	defer server.Close()

	initial := testutil.ToFloat64(GetRequestsTotal().WithLabelValues("POST", "200"))
	initialCount := histogramCount(t, "POST")

	r := NewBasicAuthRequester(newStore(t), server.Client())
	body, err := r.Do(context.Background(), "klarnaApi", Request{
		Method:  "POST",
		URL:     server.URL + "/payments/v1/sessions",
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    map[string]any{"purchase_country": "SE"},
		Query:   url.Values{"locale": []string{"sv"}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"session_id":"abc"}`, string(body))

	assert.Equal(t, initial+1, testutil.ToFloat64(GetRequestsTotal().WithLabelValues("POST", "200")))
	assert.Equal(t, initialCount+1, histogramCount(t, "POST"))
}

func TestBasicAuthRequester_Do_NoBodyNoQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Empty(t, r.URL.RawQuery)
		body, _ := io.ReadAll(r.Body)
		assert.Empty(t, body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	r := NewBasicAuthRequester(newStore(t), server.Client())
	body, err := r.Do(context.Background(), "klarnaApi", Request{
		Method: "GET",
		URL:    server.URL + "/orders/1",
		Query:  url.Values{},
	})
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestBasicAuthRequester_Do_KlarnaError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error_code":"BAD_VALUE","error_messages":["Bad value: order_amount","Bad value: order_lines"],"correlation_id":"corr-1"}`))
	}))
	defer server.Close()

	initial := testutil.ToFloat64(GetRequestsTotal().WithLabelValues("POST", "400"))

	r := NewBasicAuthRequester(newStore(t), server.Client())
	_, err := r.Do(context.Background(), "klarnaApi", Request{Method: "POST", URL: server.URL})
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	assert.Equal(t, "BAD_VALUE", httpErr.Message())
	assert.Equal(t, "Bad value: order_amount; Bad value: order_lines (correlation_id: corr-1)", httpErr.Description())
	assert.Equal(t, "request failed with HTTP 400: BAD_VALUE", httpErr.Error())
	assert.Equal(t, initial+1, testutil.ToFloat64(GetRequestsTotal().WithLabelValues("POST", "400")))
}

func TestBasicAuthRequester_Do_NonJSONError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	r := NewBasicAuthRequester(newStore(t), server.Client())
	_, err := r.Do(context.Background(), "klarnaApi", Request{Method: "GET", URL: server.URL})

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, "HTTP 503", httpErr.Message())
	assert.Empty(t, httpErr.Description())
	assert.Equal(t, "upstream down", string(httpErr.Body))
	assert.Equal(t, 1, calls, "requests are never retried")
}

func TestBasicAuthRequester_Do_UnknownCredential(t *testing.T) {
	r := NewBasicAuthRequester(newStore(t), nil)
	_, err := r.Do(context.Background(), "other", Request{Method: "GET", URL: "http://127.0.0.1:1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials not found for name: other")
}

func TestBasicAuthRequester_Do_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverURL := server.URL
	server.Close()

	initial := testutil.ToFloat64(GetRequestsTotal().WithLabelValues("GET", "error"))

	r := NewBasicAuthRequester(newStore(t), nil)
	_, err := r.Do(context.Background(), "klarnaApi", Request{Method: "GET", URL: serverURL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transport: http client error")
	assert.Equal(t, initial+1, testutil.ToFloat64(GetRequestsTotal().WithLabelValues("GET", "error")))
}

func TestBasicAuthRequester_Do_UnencodableBody(t *testing.T) {
	r := NewBasicAuthRequester(newStore(t), nil)
	_, err := r.Do(context.Background(), "klarnaApi", Request{Method: "POST", URL: "http://127.0.0.1:1", Body: make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to encode request body")
}
