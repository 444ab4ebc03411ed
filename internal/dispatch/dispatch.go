// Package dispatch maps a (resource, operation) pair and one record's
// parameters onto a Klarna REST call.
//
// Every supported pair is its own Operation type carrying typed fields.
// Parse validates the record's parameters and builds the operation before
// anything touches the network; Execute turns it into exactly one request,
// or a paginated sequence of requests when returnAll is set.
package dispatch

import (
	"context"
	"net/url"
	"sort"

	"github.com/yourorg/klarna-connector/internal/apperror"
)

// Key identifies one supported call.
type Key struct {
	Resource  string
	Operation string
}

func (k Key) String() string {
	return k.Resource + "." + k.Operation
}

// Operation is implemented only by the operation types of this package.
type Operation interface {
	isOperation()
}

type sealed struct{}

func (sealed) isOperation() {}

// Amounted is implemented by operations that move money. Amount is in minor
// units; currency is empty when the record did not name one.
type Amounted interface {
	Amount() (minor int64, currency string)
}

// ParameterSource returns the value of a named parameter for one record.
type ParameterSource interface {
	Parameter(name string, item int) (any, bool)
}

// ItemParameters holds decoded JSON parameters, one map per record.
type ItemParameters []map[string]any

// Parameter implements ParameterSource.
func (ip ItemParameters) Parameter(name string, item int) (any, bool) {
	if item < 0 || item >= len(ip) {
		return nil, false
	}
	v, ok := ip[item][name]
	return v, ok
}

// APIClient is the subset of *klarna.Client used by Execute.
type APIClient interface {
	Request(ctx context.Context, method, endpoint string, body any, query url.Values) (map[string]any, error)
	RequestAllItems(ctx context.Context, method, endpoint string, body any, query url.Values, itemsField string) ([]any, error)
}

type parseFunc func(p params) (Operation, error)

var parsers = map[Key]parseFunc{}

func register(resource string, ops map[string]parseFunc) {
	for name, fn := range ops {
		parsers[Key{Resource: resource, Operation: name}] = fn
	}
}

// Supported lists every supported pair, sorted.
func Supported() []Key {
	keys := make([]Key, 0, len(parsers))
	for k := range parsers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Parse builds the operation for record item. Unknown pairs, missing
// required parameters and malformed values are reported as
// *apperror.ValidationError.
func Parse(resource, operation string, src ParameterSource, item int) (Operation, error) {
	fn, ok := parsers[Key{Resource: resource, Operation: operation}]
	if !ok {
		return nil, apperror.NewValidationError("The operation %q is not supported for resource %q", operation, resource)
	}
	return fn(newParams(src, item))
}
