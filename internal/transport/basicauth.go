package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yourorg/klarna-connector/internal/credentials"
)

const defaultTimeout = 30 * time.Second

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "klarna_http_requests_total",
		Help: "Outbound Klarna API requests by method and status.",
	}, []string{"method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "klarna_http_request_duration_seconds",
		Help:    "Latency of outbound Klarna API requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

// GetRequestsTotal exposes the request counter for tests.
func GetRequestsTotal() *prometheus.CounterVec { return requestsTotal }

// GetRequestDuration exposes the latency histogram for tests.
func GetRequestDuration() *prometheus.HistogramVec { return requestDuration }

type klarnaErrorBody struct {
	ErrorCode     string   `json:"error_code"`
	ErrorMessages []string `json:"error_messages"`
	CorrelationID string   `json:"correlation_id"`
}

// BasicAuthRequester authenticates with HTTP Basic auth built from the
// stored username and password.
type BasicAuthRequester struct {
	store      credentials.Store
	httpClient *http.Client
}

// NewBasicAuthRequester creates a requester. A nil client gets a default
// one with a 30s timeout.
func NewBasicAuthRequester(store credentials.Store, client *http.Client) *BasicAuthRequester {
	if store == nil {
		panic("credentials.Store cannot be nil")
	}
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &BasicAuthRequester{store: store, httpClient: client}
}

// Do performs one request. It never retries.
func (r *BasicAuthRequester) Do(ctx context.Context, credentialName string, req Request) ([]byte, error) {
	ctx, span := otel.Tracer("transport").Start(ctx, "BasicAuthRequester.Do")
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.url", req.URL),
	)

	creds, err := r.store.Get(credentialName)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("transport: %w", err)
	}

	var payload io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("transport: failed to encode request body: %w", err)
		}
		payload = bytes.NewReader(encoded)
	}

	target := req.URL
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, payload)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("transport: failed to create http request: %w", err)
	}
	httpReq.SetBasicAuth(creds.Username, creds.Password)
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := r.httpClient.Do(httpReq)
	requestDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues(req.Method, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("transport: http client error: %w", err)
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(req.Method, strconv.Itoa(resp.StatusCode)).Inc()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("transport: failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Body: body}
		var kErr klarnaErrorBody
		if json.Unmarshal(body, &kErr) == nil {
			httpErr.ErrorCode = kErr.ErrorCode
			httpErr.Messages = kErr.ErrorMessages
			httpErr.CorrelationID = kErr.CorrelationID
		}
		span.SetStatus(codes.Error, httpErr.Error())
		return nil, httpErr
	}
	return body, nil
}
