package dispatch

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/yourorg/klarna-connector/internal/apperror"
	"github.com/yourorg/klarna-connector/internal/format"
	"github.com/yourorg/klarna-connector/internal/money"
)

// params reads one record's parameters.
type params struct {
	src   ParameterSource
	item  int
	major bool // amountsInMajorUnits
}

func newParams(src ParameterSource, item int) params {
	p := params{src: src, item: item}
	p.major = format.Truthy(p.get("amountsInMajorUnits"))
	return p
}

func (p params) get(name string) any {
	v, _ := p.src.Parameter(name, p.item)
	return v
}

// require fails on the first parameter that is absent, nil or "".
func (p params) require(names ...string) error {
	values := make(map[string]any, len(names))
	for _, name := range names {
		if v, ok := p.src.Parameter(name, p.item); ok {
			values[name] = v
		}
	}
	return format.ValidateRequiredFields(values, names)
}

func (p params) str(name string) string {
	return format.Stringify(p.get(name))
}

func (p params) strOr(name, def string) string {
	if s := p.str(name); s != "" {
		return s
	}
	return def
}

func (p params) bool(name string) bool {
	return format.Truthy(p.get(name))
}

// collection returns a nested object parameter, or an empty map.
func (p params) collection(name string) map[string]any {
	return asMap(p.get(name))
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// nested follows keys through nested objects, e.g. billingAddress.address.
func nested(m map[string]any, keys ...string) (map[string]any, bool) {
	cur := m
	for _, k := range keys {
		next, ok := cur[k].(map[string]any)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// orderLines accepts JSON text or an already decoded array.
func (p params) orderLines(name string) ([]format.OrderLine, error) {
	return orderLinesFrom(p.get(name))
}

func orderLinesFrom(v any) ([]format.OrderLine, error) {
	if s, ok := v.(string); ok {
		return format.FormatOrderLines(s)
	}
	text, err := json.Marshal(v)
	if err != nil {
		return nil, &apperror.ValidationError{Field: "orderLines", Message: "Invalid order lines JSON: " + err.Error()}
	}
	return format.FormatOrderLines(string(text))
}

// amount reads a money parameter as minor units. With amountsInMajorUnits
// the value is a display amount converted using the currency held in
// currencyParam.
func (p params) amount(name, currencyParam string) (int64, error) {
	v := p.get(name)
	if v == nil || v == "" {
		return 0, nil
	}
	return p.minorUnits(name, v, p.str(currencyParam), currencyParam)
}

// optionalAmount reads a money value from a collection; falsy means unset.
func (p params) optionalAmount(coll map[string]any, name, currency, currencyParam string) (int64, error) {
	v := coll[name]
	if !format.Truthy(v) {
		return 0, nil
	}
	return p.minorUnits(name, v, currency, currencyParam)
}

func (p params) minorUnits(field string, v any, currency, currencyParam string) (int64, error) {
	d, err := toDecimal(v)
	if err != nil {
		return 0, &apperror.ValidationError{Field: field, Message: fmt.Sprintf("Field %q is not a valid amount: %v", field, err)}
	}
	if p.major {
		if currency == "" {
			return 0, apperror.MissingField(currencyParam)
		}
		return money.ToMinorUnits(d, currency), nil
	}
	if !d.IsInteger() {
		return 0, &apperror.ValidationError{Field: field, Message: fmt.Sprintf("Field %q must be a whole number of minor units", field)}
	}
	return d.IntPart(), nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case float64:
		return decimal.NewFromFloat(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case json.Number:
		return decimal.NewFromString(x.String())
	case string:
		return decimal.NewFromString(x)
	default:
		return decimal.Decimal{}, fmt.Errorf("unexpected type %T", v)
	}
}

// queryFrom copies truthy collection values into a query, renaming keys.
func queryFrom(coll map[string]any, names map[string]string) url.Values {
	qs := url.Values{}
	for param, key := range names {
		if v, ok := coll[param]; ok && format.Truthy(v) {
			qs.Set(key, format.Stringify(v))
		}
	}
	return qs
}
