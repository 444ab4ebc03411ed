package format

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// AddressFields is the whitelist of address keys accepted by the API, in
// the order they are serialized.
var AddressFields = []string{
	"given_name",
	"family_name",
	"email",
	"phone",
	"street_address",
	"street_address2",
	"postal_code",
	"city",
	"region",
	"country",
	"organization_name",
	"attention",
	"title",
}

// Address is a billing or shipping address restricted to AddressFields.
// Values are kept as given; JSON encoding emits the set fields in
// AddressFields order.
type Address struct {
	values map[string]any
}

// FormatAddress copies the whitelisted keys of input whose values are
// present and truthy. Every other key is dropped.
func FormatAddress(input map[string]any) Address {
	addr := Address{values: make(map[string]any)}
	for _, field := range AddressFields {
		if v, ok := input[field]; ok && Truthy(v) {
			addr.values[field] = v
		}
	}
	return addr
}

// Get returns the value of field, if set.
func (a Address) Get(field string) (any, bool) {
	v, ok := a.values[field]
	return v, ok
}

// Map returns the set fields as a sparse mapping.
func (a Address) Map() map[string]any {
	out := make(map[string]any, len(a.values))
	for k, v := range a.values {
		out[k] = v
	}
	return out
}

// IsEmpty reports whether no field is set.
func (a Address) IsEmpty() bool {
	return len(a.values) == 0
}

func (a Address) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, field := range AddressFields {
		v, ok := a.values[field]
		if !ok {
			continue
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode address field %s: %w", field, err)
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, _ := json.Marshal(field)
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(encoded)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
