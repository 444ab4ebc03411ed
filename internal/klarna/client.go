// Package klarna builds authenticated Klarna REST calls: it resolves the
// regional base URL from the stored credentials, performs a single request
// through a transport.Requester and drives offset/size pagination.
package klarna

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/yourorg/klarna-connector/internal/apperror"
	"github.com/yourorg/klarna-connector/internal/credentials"
	"github.com/yourorg/klarna-connector/internal/transport"
)

const (
	// DefaultCredentialName is the credential the client uses unless told otherwise.
	DefaultCredentialName = "klarnaApi"
	// DefaultPageSize is used when the caller's query carries no usable size.
	DefaultPageSize = 100

	defaultErrorMessage = "Klarna API request failed"
)

// DefaultNotice is the licensing notice logged once per process.
const DefaultNotice = "[Velocity BPA Licensing Notice] This connector is licensed under the Business Source License 1.1 (BSL 1.1). " +
	"Use by for-profit organizations in production environments requires a commercial license from Velocity BPA. " +
	"For licensing information, visit https://velobpa.com/licensing or contact licensing@velobpa.com."

// BaseURL returns the API root for an environment and region, e.g.
// https://api.playground.klarna.com or https://api-na.klarna.com.
func BaseURL(environment, region string) string {
	regionPrefix := ""
	if region != string(credentials.RegionEU) {
		regionPrefix = "-" + region
	}
	envPrefix := ""
	if environment == string(credentials.Playground) {
		envPrefix = "playground."
	}
	return fmt.Sprintf("https://api%s.%sklarna.com", regionPrefix, envPrefix)
}

// Client issues Klarna API requests on behalf of one credential.
type Client struct {
	requester      transport.Requester
	store          credentials.Store
	credentialName string
	baseURL        string // overrides the credential-derived base URL; tests only
}

// NewClient creates a client. An empty credentialName selects
// DefaultCredentialName.
func NewClient(r transport.Requester, store credentials.Store, credentialName string) *Client {
	if r == nil {
		panic("transport.Requester cannot be nil")
	}
	if store == nil {
		panic("credentials.Store cannot be nil")
	}
	if credentialName == "" {
		credentialName = DefaultCredentialName
	}
	return &Client{requester: r, store: store, credentialName: credentialName}
}

// CredentialName returns the credential the client authenticates with.
func (c *Client) CredentialName() string {
	return c.credentialName
}

func (c *Client) resolveBaseURL() (string, error) {
	if c.baseURL != "" {
		return c.baseURL, nil
	}
	creds, err := c.store.Get(c.credentialName)
	if err != nil {
		return "", err
	}
	return BaseURL(string(creds.Environment), string(creds.Region)), nil
}

// Request performs exactly one call. GET and DELETE never carry a body; other
// methods send body, or {} when body is nil. An empty query is omitted.
// Provider and transport failures come back as *apperror.APIError; a
// credential that cannot be resolved is a plain configuration error and
// nothing is sent.
func (c *Client) Request(ctx context.Context, method, endpoint string, body any, query url.Values) (map[string]any, error) {
	base, err := c.resolveBaseURL()
	if err != nil {
		return nil, fmt.Errorf("klarna: cannot resolve credentials: %w", err)
	}

	req := transport.Request{
		Method:  method,
		URL:     base + endpoint,
		Headers: map[string]string{"Content-Type": "application/json"},
	}
	if method != http.MethodGet && method != http.MethodDelete {
		if body == nil {
			body = map[string]any{}
		}
		req.Body = body
	}
	if len(query) > 0 {
		req.Query = cloneQuery(query)
	}

	raw, err := c.requester.Do(ctx, c.credentialName, req)
	if err != nil {
		return nil, wrapError(err)
	}

	result := map[string]any{}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return result, nil
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &apperror.APIError{
			Message:     defaultErrorMessage,
			Description: "unexpected response body: " + err.Error(),
			Err:         err,
		}
	}
	return result, nil
}

func wrapError(err error) *apperror.APIError {
	var httpErr *transport.HTTPError
	if errors.As(err, &httpErr) {
		return &apperror.APIError{
			Message:     httpErr.Message(),
			Description: httpErr.Description(),
			StatusCode:  httpErr.StatusCode,
			Err:         err,
		}
	}
	return &apperror.APIError{Message: defaultErrorMessage, Description: err.Error(), Err: err}
}

// RequestAllItems follows offset/size pagination and concatenates the
// elements of itemsField from every page. It stops when the field is
// missing or a page holds fewer than size items. Each page gets its own
// query; the caller's is not modified. A final page that is exactly size
// long costs one extra request.
func (c *Client) RequestAllItems(ctx context.Context, method, endpoint string, body any, query url.Values, itemsField string) ([]any, error) {
	size := pageSize(query.Get("size"))
	offset := 0

	var all []any
	for {
		qs := cloneQuery(query)
		qs.Set("size", strconv.Itoa(size))
		qs.Set("offset", strconv.Itoa(offset))
		page, err := c.Request(ctx, method, endpoint, body, qs)
		if err != nil {
			return nil, err
		}
		items, present := page[itemsField].([]any)
		all = append(all, items...)
		offset += size
		if !present || len(items) < size {
			break
		}
	}
	if all == nil {
		all = []any{}
	}
	return all, nil
}

func cloneQuery(query url.Values) url.Values {
	out := make(url.Values, len(query)+2)
	for k, v := range query {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func pageSize(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return DefaultPageSize
	}
	return n
}

var noticeOnce sync.Once

// LogNoticeOnce writes text to the log the first time it is called in the
// process; later calls do nothing.
func LogNoticeOnce(text string) {
	noticeOnce.Do(func() {
		log.Printf("Klarna: %s", text)
	})
}
